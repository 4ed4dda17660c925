package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	apperrors "github.com/pettime/companion/pkg/errors"
)

// ErrorBody mirrors the error payload returned by the pettime API:
//
//	{"error": "Not Found", "message": "Pet not found"}
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// ParseResponseError reads the body of a non-2xx HTTP response and classifies
// it as an AppError. The payload message is preserved verbatim; when the body
// is not the standard shape the message is left empty so callers fall back to
// their own wording.
//
// The response body is fully consumed and closed.
func ParseResponseError(resp *http.Response) error {
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // 1 MB limit
	if err != nil {
		appErr := apperrors.FromStatus(resp.StatusCode, "")
		if appErr.Err != nil {
			appErr.Err = fmt.Errorf("%w: read body: %w", appErr.Err, err)
		} else {
			appErr.Err = fmt.Errorf("read body: %w", err)
		}
		return appErr
	}

	var body ErrorBody
	if json.Unmarshal(bodyBytes, &body) == nil {
		return apperrors.FromStatus(resp.StatusCode, strings.TrimSpace(body.Message))
	}

	return apperrors.FromStatus(resp.StatusCode, "")
}

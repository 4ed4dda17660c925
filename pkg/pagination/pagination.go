package pagination

import (
	"net/url"
	"strconv"
)

// Server-side bounds for list endpoints. A limit outside (0, MaxLimit] is
// ignored by the server, which then falls back to DefaultLimit.
const (
	DefaultLimit = 50
	MaxLimit     = 100
)

// Params holds limit/offset paging for a list request. Zero values mean
// "let the server decide".
type Params struct {
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// Normalize clamps p into the range the server honors.
func (p Params) Normalize() Params {
	if p.Limit < 0 {
		p.Limit = 0
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// Apply writes the non-zero parameters of p into q.
func (p Params) Apply(q url.Values) {
	p = p.Normalize()
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.Offset > 0 {
		q.Set("offset", strconv.Itoa(p.Offset))
	}
}

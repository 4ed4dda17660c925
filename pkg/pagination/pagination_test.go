package pagination

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   Params
		want Params
	}{
		{"zero", Params{}, Params{}},
		{"in range", Params{Limit: 20, Offset: 40}, Params{Limit: 20, Offset: 40}},
		{"limit above max", Params{Limit: 500}, Params{Limit: MaxLimit}},
		{"negative", Params{Limit: -1, Offset: -5}, Params{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.Normalize())
		})
	}
}

func TestApply_SkipsZeroValues(t *testing.T) {
	q := url.Values{}
	Params{}.Apply(q)
	assert.Empty(t, q.Encode())
}

func TestApply_WritesClampedValues(t *testing.T) {
	q := url.Values{}
	Params{Limit: 1000, Offset: 10}.Apply(q)
	assert.Equal(t, "limit=100&offset=10", q.Encode())
}

package pagination

import (
	"net/http"
	"strconv"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// Params holds pagination parameters extracted from query strings.
type Params struct {
	Page   int `json:"page"`
	Limit  int `json:"limit"`
	Offset int `json:"-"`
}

// DefaultParams returns page 1 with the default limit.
func DefaultParams() Params {
	return Params{Page: 1, Limit: DefaultLimit}
}

// FromRequest reads page and limit from the query string. Invalid values fall
// back to the defaults; limit is capped at MaxLimit.
func FromRequest(r *http.Request) Params {
	q := r.URL.Query()
	p := DefaultParams()

	if v, err := strconv.Atoi(q.Get("page")); err == nil && v > 0 {
		p.Page = v
	}
	if v, err := strconv.Atoi(q.Get("limit")); err == nil && v > 0 {
		p.Limit = min(v, MaxLimit)
	}

	p.Offset = (p.Page - 1) * p.Limit
	return p
}

// Normalize applies defaults to zero or out-of-range values in place and
// returns the offset.
func (p *Params) Normalize() int {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	p.Offset = (p.Page - 1) * p.Limit
	return p.Offset
}

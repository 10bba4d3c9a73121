// Package pagination reads list windows from query strings and shapes the
// list envelope returned by every collection endpoint.
package pagination

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Params is the requested window over a list.
type Params struct {
	Limit  int
	Offset int
}

// FromContext reads limit and offset. A 1-based page is accepted in place of
// offset, with limit as the page size. Bad values fall back to the defaults.
func FromContext(c echo.Context) Params {
	p := Params{Limit: atoi(c.QueryParam("limit"))}
	switch {
	case p.Limit <= 0:
		p.Limit = DefaultLimit
	case p.Limit > MaxLimit:
		p.Limit = MaxLimit
	}

	if off := atoi(c.QueryParam("offset")); off > 0 {
		p.Offset = off
	} else if page := atoi(c.QueryParam("page")); page > 1 {
		p.Offset = (page - 1) * p.Limit
	}
	return p
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

// Page is the 1-based page the window starts on.
func (p Params) Page() int {
	if p.Limit <= 0 {
		return 1
	}
	return p.Offset/p.Limit + 1
}

// Response is the list envelope.
type Response struct {
	Data    interface{} `json:"data"`
	Total   int         `json:"total"`
	Limit   int         `json:"limit"`
	Offset  int         `json:"offset"`
	Page    int         `json:"page"`
	HasMore bool        `json:"has_more"`
}

func NewResponse(data interface{}, total int, p Params) *Response {
	return &Response{
		Data:    data,
		Total:   total,
		Limit:   p.Limit,
		Offset:  p.Offset,
		Page:    p.Page(),
		HasMore: p.Offset+p.Limit < total,
	}
}

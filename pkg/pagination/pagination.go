package pagination

import (
	"fmt"
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Params holds pagination parameters extracted from a request.
type Params struct {
	Limit  int
	Offset int
}

// FromContext extracts pagination parameters from the echo context. The wire
// parameters are page (1-based) and pageSize; limit/offset are honored as a
// fallback.
func FromContext(c echo.Context) Params {
	size, _ := strconv.Atoi(c.QueryParam("pageSize"))
	if size <= 0 {
		size, _ = strconv.Atoi(c.QueryParam("limit"))
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	offset := 0
	if page > 1 {
		offset = (page - 1) * size
	} else {
		offset, _ = strconv.Atoi(c.QueryParam("offset"))
		if offset < 0 {
			offset = 0
		}
	}

	return Params{Limit: size, Offset: offset}
}

// Response wraps a paginated API response.
type Response struct {
	Items    interface{} `json:"items"`
	Count    int         `json:"count"`
	Next     *string     `json:"next,omitempty"`
	Previous *string     `json:"previous,omitempty"`
}

// NewResponse builds the wire envelope, deriving next/previous page links
// relative to basePath.
func NewResponse(items interface{}, total int, p Params, basePath string) *Response {
	resp := &Response{Items: items, Count: total}

	if p.HasNext(total) {
		next := fmt.Sprintf("%s?page=%d&pageSize=%d", basePath, p.Page()+1, p.Limit)
		resp.Next = &next
	}
	if p.HasPrevious() {
		prev := fmt.Sprintf("%s?page=%d&pageSize=%d", basePath, p.Page()-1, p.Limit)
		resp.Previous = &prev
	}
	return resp
}

// Page returns the 1-based page number of the current offset.
func (p Params) Page() int {
	if p.Limit <= 0 {
		return 1
	}
	return p.Offset/p.Limit + 1
}

// HasNext returns true if there are more results after the current page.
func (p Params) HasNext(total int) bool {
	return p.Offset+p.Limit < total
}

// HasPrevious returns true if there are results before the current page.
func (p Params) HasPrevious() bool {
	return p.Offset > 0
}

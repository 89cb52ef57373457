package pagination

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// Params holds the bound extracted from a request. The backend serves
// most-recent-first slices, so there is no offset.
type Params struct {
	Limit int
}

// FromContext extracts the limit from the echo context, falling back to def
// (or DefaultLimit when def is not positive) and clamping to MaxLimit.
func FromContext(c echo.Context, def int) Params {
	if def <= 0 {
		def = DefaultLimit
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 {
		limit, _ = strconv.Atoi(c.QueryParam("_count"))
	}
	if limit <= 0 {
		limit = def
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return Params{Limit: limit}
}

// Response wraps a bounded list response.
type Response struct {
	Data    interface{} `json:"data"`
	Count   int         `json:"count"`
	Limit   int         `json:"limit"`
	HasMore bool        `json:"has_more"`
}

// NewResponse builds a Response. A full page may have more rows behind it.
func NewResponse(data interface{}, count, limit int) *Response {
	return &Response{
		Data:    data,
		Count:   count,
		Limit:   limit,
		HasMore: limit > 0 && count >= limit,
	}
}

package types

import "math"

// Paging defaults and limits for list endpoints. MaxOffset keeps the row
// offset within the range Postgres accepts for OFFSET on every platform.
const (
	DefaultPage     = 1
	DefaultPageSize = 10
	MaxPageSize     = 1000
	MaxOffset       = math.MaxInt32
)

// PageQuery carries the paging criteria of a list request.
// Sort entries take the form "field" or "field,asc|desc".
type PageQuery struct {
	Page int      `json:"page"`
	Size int      `json:"size"`
	Sort []string `json:"sort,omitempty"`
}

// Normalize returns a copy with defaults applied and the size clamped.
func (q PageQuery) Normalize() PageQuery {
	if q.Page < 1 {
		q.Page = DefaultPage
	}
	if q.Size < 1 {
		q.Size = DefaultPageSize
	}
	if q.Size > MaxPageSize {
		q.Size = MaxPageSize
	}
	return q
}

// InRange reports whether the normalized page starts at or below MaxOffset.
func (q PageQuery) InRange() bool {
	n := q.Normalize()
	return n.Page-1 <= MaxOffset/n.Size
}

// Offset returns the row offset of the (normalized) page, saturated at
// MaxOffset.
func (q PageQuery) Offset() int {
	n := q.Normalize()
	if !n.InRange() {
		return MaxOffset
	}
	return (n.Page - 1) * n.Size
}

// PageData is a bounded slice of rows plus the total row count.
type PageData[T any] struct {
	List  []T   `json:"list"`
	Total int64 `json:"total"`
}

// ResponseMeta contains non-blocking metadata returned with API responses.
type ResponseMeta struct {
	Warnings []string `json:"warnings,omitempty"`
}

package repository

// Pagination holds offset-based paging parameters.
type Pagination struct {
	Limit  int
	Offset int
}

// Page is one page of results along with the paging position.
type Page[T any] struct {
	Items      []T   `json:"items"`
	Total      int64 `json:"total"`
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
	HasMore    bool  `json:"has_more"`
	TotalPages int   `json:"total_pages"`
	Page       int   `json:"page"`
}

// DefaultLimit is the default number of items per page.
const DefaultLimit = 50

// MaxLimit is the maximum allowed items per page.
const MaxLimit = 500

// PageToPagination converts a 1-based page number to offset-based
// pagination, clamping the page size to [1, MaxLimit].
func PageToPagination(page, perPage int) Pagination {
	if page < 1 {
		page = 1
	}
	if perPage <= 0 {
		perPage = DefaultLimit
	}
	if perPage > MaxLimit {
		perPage = MaxLimit
	}
	return Pagination{
		Limit:  perPage,
		Offset: (page - 1) * perPage,
	}
}

func newPage[T any](items []T, total int64, p Pagination) Page[T] {
	totalPages := int(total) / p.Limit
	if int(total)%p.Limit > 0 {
		totalPages++
	}

	return Page[T]{
		Items:      items,
		Total:      total,
		Limit:      p.Limit,
		Offset:     p.Offset,
		HasMore:    p.Offset+len(items) < int(total),
		TotalPages: totalPages,
		Page:       (p.Offset / p.Limit) + 1,
	}
}

package repository

// DefaultPageSize is the number of posts shown per feed page.
const DefaultPageSize = 10

// Pagination describes where a page sits within an ordered collection.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
	HasPrev    bool  `json:"has_prev"`
}

// Offset is the number of rows preceding the page.
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// Page is one slice of an ordered collection plus its pagination metadata.
type Page[T any] struct {
	Items      []T        `json:"items"`
	Pagination Pagination `json:"pagination"`
}

// ResolvePage clamps requested into the valid range for total rows. An empty
// collection still has one (empty) page; numbers past the end land on the last page.
func ResolvePage(total int64, pageSize, requested int) Pagination {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if total < 0 {
		total = 0
	}
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	if totalPages < 1 {
		totalPages = 1
	}
	page := requested
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}
}

// Paginate cuts the requested page out of an in-memory sequence.
func Paginate[T any](items []T, pageSize, pageNumber int) Page[T] {
	p := ResolvePage(int64(len(items)), pageSize, pageNumber)
	start := p.Offset()
	end := start + p.PageSize
	if end > len(items) {
		end = len(items)
	}
	out := make([]T, 0, end-start)
	out = append(out, items[start:end]...)
	return Page[T]{Items: out, Pagination: p}
}

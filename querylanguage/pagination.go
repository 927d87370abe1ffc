package querylanguage

// Pagination limits.
const (
	DefaultLimit = 25
	MaxLimit     = 100
)

// Pagination is a 1-based page request.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// Normalize fills defaults and clamps the limit.
func (p Pagination) Normalize() Pagination {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	return p
}

// Offset returns the row offset of the page.
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.Limit
}

// PageInfo describes one page of results. Count is the number of rows on
// this page, Total the number of rows (or groups, for grouped queries)
// across all pages.
type PageInfo struct {
	Page            int  `json:"page"`
	Limit           int  `json:"limit"`
	Count           int  `json:"count"`
	Total           int  `json:"total"`
	PageCount       int  `json:"pageCount"`
	HasNextPage     bool `json:"hasNextPage"`
	HasPreviousPage bool `json:"hasPreviousPage"`
}

// NewPageInfo derives page statistics from a normalized request.
func NewPageInfo(p Pagination, count, total int) PageInfo {
	pages := total / p.Limit
	if total%p.Limit != 0 {
		pages++
	}
	return PageInfo{
		Page:            p.Page,
		Limit:           p.Limit,
		Count:           count,
		Total:           total,
		PageCount:       pages,
		HasNextPage:     p.Page < pages,
		HasPreviousPage: p.Page > 1 && total > 0,
	}
}

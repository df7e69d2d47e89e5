package domain

import "math"

// PagedResult is one page of accounts ordered by creation time.
type PagedResult struct {
	CurrentPage    int
	PageCount      int
	PageSize       int
	RowCount       int
	FirstRowOnPage int
	LastRowOnPage  int
	Results        []*Account
}

// Page bounds.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	// MaxPage keeps page*pageSize within int.
	MaxPage = math.MaxInt / MaxPageSize
)

// NormalizePage clamps page and pageSize to valid values (1-based page).
func NormalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if page > MaxPage {
		page = MaxPage
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}

// NewPagedResult fills the paging counters for results taken from page of size pageSize out of rowCount rows.
func NewPagedResult(page, pageSize, rowCount int, results []*Account) *PagedResult {
	r := &PagedResult{
		CurrentPage: page,
		PageSize:    pageSize,
		RowCount:    rowCount,
		Results:     results,
	}
	if pageSize > 0 {
		r.PageCount = (rowCount + pageSize - 1) / pageSize
	}
	if len(results) > 0 {
		r.FirstRowOnPage = (page-1)*pageSize + 1
		r.LastRowOnPage = r.FirstRowOnPage + len(results) - 1
	}
	return r
}

package models

import "fmt"

// Page window defaults
const (
	DefaultPage  = 1
	DefaultLimit = 10

	// AllLimit caps the "whole collection" fetches used by the dashboard
	// and the log editor's customer picker.
	AllLimit = 1000
)

// PageWindow selects one slice of a remote collection
type PageWindow struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// DefaultWindow returns the window a freshly mounted view starts with
func DefaultWindow() PageWindow {
	return PageWindow{Page: DefaultPage, Limit: DefaultLimit}
}

// AllWindow returns the capped window used to read a whole collection
func AllWindow() PageWindow {
	return PageWindow{Page: 1, Limit: AllLimit}
}

// Normalize replaces out-of-range values with defaults
func (w PageWindow) Normalize() PageWindow {
	if w.Page < 1 {
		w.Page = DefaultPage
	}
	if w.Limit < 1 {
		w.Limit = DefaultLimit
	}
	if w.Limit > AllLimit {
		w.Limit = AllLimit
	}
	return w
}

func (w PageWindow) String() string {
	return fmt.Sprintf("page=%d&limit=%d", w.Page, w.Limit)
}

// PaginationResult holds pagination metadata
type PaginationResult struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalCount int64 `json:"total_count"`
	TotalPages int   `json:"total_pages"`
}

// NewPaginationResult creates a pagination result
func NewPaginationResult(page, pageSize int, totalCount int64) PaginationResult {
	if pageSize < 1 {
		pageSize = 1
	}
	totalPages := int(totalCount) / pageSize
	if int(totalCount)%pageSize > 0 {
		totalPages++
	}

	return PaginationResult{
		Page:       page,
		PageSize:   pageSize,
		TotalCount: totalCount,
		TotalPages: totalPages,
	}
}

// ValidateAndSetDefaults validates pagination parameters and sets defaults
func ValidateAndSetDefaults(page, pageSize *int) {
	if *page < 1 {
		*page = 1
	}
	if *pageSize < 1 {
		*pageSize = 20
	}
	if *pageSize > 100 {
		*pageSize = 100
	}
}

// CalculateOffset calculates the SQL offset for pagination
func CalculateOffset(page, pageSize int) int {
	return (page - 1) * pageSize
}

package store

import "fmt"

const (
	defaultLimit = 20
	maxLimit     = 100
)

type PageParams struct {
	Page      int
	Limit     int
	SortBy    string
	SortOrder string
}

// Normalize clamps page and limit into their valid ranges and defaults the
// sort to newest-first.
func (p PageParams) Normalize() PageParams {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 || p.Limit > maxLimit {
		p.Limit = defaultLimit
	}
	if _, ok := orderSortColumns[p.SortBy]; !ok {
		p.SortBy = "created_at"
	}
	if p.SortOrder != "asc" && p.SortOrder != "desc" {
		p.SortOrder = "desc"
	}
	return p
}

func (p PageParams) Offset() int {
	return (p.Page - 1) * p.Limit
}

type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
	HasPrev    bool  `json:"has_prev"`
}

// NewPagination derives page metadata from an exact count. Total always
// comes from an independent COUNT query, never from the length of a fetched
// page.
func NewPagination(page, limit int, total int64) Pagination {
	totalPages := int(total) / limit
	if int(total)%limit > 0 {
		totalPages++
	}

	return Pagination{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}
}

// orderSortColumns whitelists user-selectable sort columns for order
// listings; anything else falls back to created_at.
var orderSortColumns = map[string]string{
	"created_at":   "o.created_at",
	"updated_at":   "o.updated_at",
	"total_amount": "o.total_amount",
	"order_number": "o.order_number",
	"status":       "o.status",
	"id":           "o.id",
}

// orderByClause always appends the primary key as a secondary sort so pages
// stay stable when the chosen column has duplicate values.
func orderByClause(p PageParams) string {
	dir := "DESC"
	if p.SortOrder == "asc" {
		dir = "ASC"
	}

	col := orderSortColumns[p.SortBy]
	if p.SortBy == "id" {
		return fmt.Sprintf("ORDER BY %s %s", col, dir)
	}
	return fmt.Sprintf("ORDER BY %s %s, o.id %s", col, dir, dir)
}

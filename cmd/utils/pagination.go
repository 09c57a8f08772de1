package utils

import (
	"math"
	"net/http"
	"strconv"

	"github.com/KAsare1/Gigstage-server/service/apperr"
)

type PaginatedResponse struct {
	Data       interface{}    `json:"data"`
	Pagination PaginationMeta `json:"pagination"`
}

type PaginationMeta struct {
	CurrentPage int   `json:"current_page"`
	PerPage     int   `json:"per_page"`
	TotalItems  int64 `json:"total_items"`
	TotalPages  int   `json:"total_pages"`
	HasPrevious bool  `json:"has_previous"`
	HasNext     bool  `json:"has_next"`
}

// ParsePaginationParams reads page (default 1) and per_page (default 10,
// capped at 100).
func ParsePaginationParams(r *http.Request) (int, int, error) {
	query := r.URL.Query()

	page := 1
	if query.Get("page") != "" {
		parsed, err := strconv.Atoi(query.Get("page"))
		if err != nil || parsed < 1 {
			return 0, 0, apperr.Invalid("page", "must be a positive integer")
		}
		page = parsed
	}

	perPage := 10
	if query.Get("per_page") != "" {
		parsed, err := strconv.Atoi(query.Get("per_page"))
		if err != nil || parsed < 1 {
			return 0, 0, apperr.Invalid("per_page", "must be a positive integer")
		}
		perPage = min(parsed, 100)
	}

	return page, perPage, nil
}

func NewPaginationMeta(page, perPage int, total int64) PaginationMeta {
	totalPages := int(math.Ceil(float64(total) / float64(perPage)))
	return PaginationMeta{
		CurrentPage: page,
		PerPage:     perPage,
		TotalItems:  total,
		TotalPages:  totalPages,
		HasPrevious: page > 1,
		HasNext:     page < totalPages,
	}
}

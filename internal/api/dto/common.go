package dto

import (
	"net/http"
	"strconv"

	"github.com/hugh/agentops/internal/database"
)

type ErrorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`
}

type SuccessResponse struct {
	Success bool `json:"success"`
}

// PaginationFromRequest reads ?page= and ?pageSize=; Paginate clamps the values.
func PaginationFromRequest(r *http.Request) database.Pagination {
	p := database.Pagination{}
	if v, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil {
		p.Page = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("pageSize")); err == nil {
		p.PageSize = v
	}
	p.Normalize()
	return p
}

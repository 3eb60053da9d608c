package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/axisprep/mocktest-backend/internal/response"
)

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

// parsePagination reads ?page and ?per_page with sane bounds.
func parsePagination(c *gin.Context) (page, perPage int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	perPage, _ = strconv.Atoi(c.DefaultQuery("per_page", strconv.Itoa(defaultPerPage)))
	if perPage < 1 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	return page, perPage
}

// buildPagination assembles the response pagination block.
func buildPagination(page, perPage, total int) *response.Pagination {
	totalPages := total / perPage
	if total%perPage != 0 {
		totalPages++
	}
	return &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: totalPages,
	}
}

// parseTestID parses the :test_id path parameter.
func parseTestID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("test_id"))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// parseAttemptID parses the :attempt_id path parameter.
func parseAttemptID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/axisprep/mocktest-backend/internal/model"
	"github.com/axisprep/mocktest-backend/internal/response"
	"github.com/axisprep/mocktest-backend/internal/service"
	"github.com/axisprep/mocktest-backend/internal/validator"
)

// AdminHandler handles the test authoring console and user administration.
type AdminHandler struct {
	testService    *service.TestService
	authService    *service.AuthService
	attemptService *service.AttemptService
	log            zerolog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(
	testService *service.TestService,
	authService *service.AuthService,
	attemptService *service.AttemptService,
	log zerolog.Logger,
) *AdminHandler {
	return &AdminHandler{
		testService:    testService,
		authService:    authService,
		attemptService: attemptService,
		log:            log.With().Str("component", "admin_handler").Logger(),
	}
}

// ─── Tests ──────────────────────────────────────────────────────────

// ListTests godoc
// GET /api/v1/admin/tests
func (h *AdminHandler) ListTests(c *gin.Context) {
	page, perPage := parsePagination(c)

	var status *model.TestStatus
	if raw := c.Query("status"); raw != "" {
		s := model.TestStatus(raw)
		status = &s
	}

	tests, total, err := h.testService.ListPaginated(c.Request.Context(), status, perPage, (page-1)*perPage)
	if err != nil {
		h.log.Error().Err(err).Msg("list tests failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.SuccessWithPagination(c, http.StatusOK, tests, buildPagination(page, perPage, total))
}

// GetTest godoc
// GET /api/v1/admin/tests/:test_id
func (h *AdminHandler) GetTest(c *gin.Context) {
	testID, ok := parseTestID(c)
	if !ok {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	test, err := h.testService.GetByID(c.Request.Context(), testID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		h.log.Error().Err(err).Msg("get test failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, test)
}

// CreateTest godoc
// POST /api/v1/admin/tests
func (h *AdminHandler) CreateTest(c *gin.Context) {
	var req model.CreateTestRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	test, err := h.testService.Create(c.Request.Context(), req)
	if err != nil {
		h.log.Error().Err(err).Msg("create test failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusCreated, test)
}

// UpdateTest godoc
// PUT /api/v1/admin/tests/:test_id
func (h *AdminHandler) UpdateTest(c *gin.Context) {
	testID, ok := parseTestID(c)
	if !ok {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.UpdateTestRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	test, err := h.testService.Update(c.Request.Context(), testID, req)
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		case errors.Is(err, service.ErrTestNotDraft):
			response.Fail(c, http.StatusConflict, response.ErrTestNotDraft)
		default:
			h.log.Error().Err(err).Msg("update test failed")
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}
	response.Success(c, http.StatusOK, test)
}

// SetAnswerKey godoc
// PUT /api/v1/admin/tests/:test_id/answer-key
func (h *AdminHandler) SetAnswerKey(c *gin.Context) {
	testID, ok := parseTestID(c)
	if !ok {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.SetAnswerKeyRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.testService.SetAnswerKey(c.Request.Context(), testID, req.AnswerKey); err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		case errors.Is(err, service.ErrTestNotDraft):
			response.Fail(c, http.StatusConflict, response.ErrTestNotDraft)
		default:
			h.log.Warn().Err(err).Msg("set answer key rejected")
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
		}
		return
	}
	response.Success(c, http.StatusOK, gin.H{"updated": true})
}

// PublishTest godoc
// POST /api/v1/admin/tests/:test_id/publish
func (h *AdminHandler) PublishTest(c *gin.Context) {
	testID, ok := parseTestID(c)
	if !ok {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	test, err := h.testService.Publish(c.Request.Context(), testID)
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		case errors.Is(err, service.ErrTestNotDraft):
			response.Fail(c, http.StatusConflict, response.ErrTestNotDraft)
		case errors.Is(err, service.ErrNoAnswerKey):
			response.Fail(c, http.StatusConflict, response.ErrNoAnswerKey)
		default:
			h.log.Error().Err(err).Msg("publish failed")
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}
	response.Success(c, http.StatusOK, test)
}

// ArchiveTest godoc
// POST /api/v1/admin/tests/:test_id/archive
func (h *AdminHandler) ArchiveTest(c *gin.Context) {
	testID, ok := parseTestID(c)
	if !ok {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.testService.Archive(c.Request.Context(), testID); err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		case errors.Is(err, service.ErrTestNotAvailable):
			response.Fail(c, http.StatusConflict, response.ErrTestNotPublished)
		default:
			h.log.Error().Err(err).Msg("archive failed")
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}
	response.Success(c, http.StatusOK, gin.H{"archived": true})
}

// ListResults godoc
// GET /api/v1/admin/tests/:test_id/results
// Ranked attempt listing for a test, same ordering students see on the
// leaderboard.
func (h *AdminHandler) ListResults(c *gin.Context) {
	testID, ok := parseTestID(c)
	if !ok {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}
	page, perPage := parsePagination(c)

	rows, total, err := h.attemptService.Leaderboard(c.Request.Context(), testID, perPage, (page-1)*perPage)
	if err != nil {
		h.log.Error().Err(err).Msg("list results failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.SuccessWithPagination(c, http.StatusOK, rows, buildPagination(page, perPage, total))
}

// ─── Users ──────────────────────────────────────────────────────────

// ListUsers godoc
// GET /api/v1/admin/users
func (h *AdminHandler) ListUsers(c *gin.Context) {
	page, perPage := parsePagination(c)

	users, total, err := h.authService.ListUsers(c.Request.Context(), perPage, (page-1)*perPage)
	if err != nil {
		h.log.Error().Err(err).Msg("list users failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.SuccessWithPagination(c, http.StatusOK, users, buildPagination(page, perPage, total))
}

// VerifyUser godoc
// PUT /api/v1/admin/users/:user_id/verify
func (h *AdminHandler) VerifyUser(c *gin.Context) {
	userID, err := strconv.Atoi(c.Param("user_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.VerifyUserRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.authService.SetUserVerified(c.Request.Context(), userID, *req.Verified); err != nil {
		h.log.Error().Err(err).Msg("verify user failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"verified": *req.Verified})
}

// ResetLogin godoc
// POST /api/v1/admin/users/:user_id/reset-login
// Clears a student's single-device login so they can sign in again.
func (h *AdminHandler) ResetLogin(c *gin.Context) {
	userID, err := strconv.Atoi(c.Param("user_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.authService.ResetLoginSession(c.Request.Context(), userID); err != nil {
		h.log.Error().Err(err).Msg("reset login failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"reset": true})
}

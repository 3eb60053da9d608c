package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/axisprep/mocktest-backend/internal/middleware"
	"github.com/axisprep/mocktest-backend/internal/model"
	"github.com/axisprep/mocktest-backend/internal/response"
	"github.com/axisprep/mocktest-backend/internal/scoring"
	"github.com/axisprep/mocktest-backend/internal/service"
	"github.com/axisprep/mocktest-backend/internal/validator"
)

// PortalHandler handles the student test-taking surface: lobby, live
// sessions, submissions, and results.
type PortalHandler struct {
	testService    *service.TestService
	sessionService *service.SessionService
	attemptService *service.AttemptService
	log            zerolog.Logger
}

// NewPortalHandler creates a new PortalHandler.
func NewPortalHandler(
	testService *service.TestService,
	sessionService *service.SessionService,
	attemptService *service.AttemptService,
	log zerolog.Logger,
) *PortalHandler {
	return &PortalHandler{
		testService:    testService,
		sessionService: sessionService,
		attemptService: attemptService,
		log:            log.With().Str("component", "portal_handler").Logger(),
	}
}

// Lobby godoc
// GET /api/v1/tests?section=&subsection=
func (h *PortalHandler) Lobby(c *gin.Context) {
	claims := middleware.GetClaims(c)

	lobby, err := h.testService.GetLobby(c.Request.Context(), claims.UserID,
		c.Query("section"), c.Query("subsection"))
	if err != nil {
		h.log.Error().Err(err).Msg("lobby failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, lobby)
}

// GetTest godoc
// GET /api/v1/tests/:test_id
func (h *PortalHandler) GetTest(c *gin.Context) {
	testID, ok := parseTestID(c)
	if !ok {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	payload, err := h.testService.GetPayload(c.Request.Context(), testID)
	if err != nil {
		if errors.Is(err, service.ErrTestNotAvailable) {
			response.Fail(c, http.StatusNotFound, response.ErrTestNotAvailable)
			return
		}
		h.log.Error().Err(err).Msg("get test failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, payload)
}

// StartAttempt godoc
// POST /api/v1/tests/:test_id/start
func (h *PortalHandler) StartAttempt(c *gin.Context) {
	claims := middleware.GetClaims(c)
	testID, ok := parseTestID(c)
	if !ok {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	session, err := h.sessionService.StartAttempt(c.Request.Context(), testID, claims.UserID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTestNotAvailable):
			response.Fail(c, http.StatusNotFound, response.ErrTestNotAvailable)
		case errors.Is(err, service.ErrAlreadySubmitted):
			response.Fail(c, http.StatusConflict, response.ErrAlreadySubmitted)
		default:
			h.log.Error().Err(err).Msg("start attempt failed")
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}
	response.Success(c, http.StatusOK, session)
}

// GetState godoc
// GET /api/v1/tests/:test_id/state
// Reload-safe: answers so far plus server-derived remaining seconds.
func (h *PortalHandler) GetState(c *gin.Context) {
	claims := middleware.GetClaims(c)
	testID, ok := parseTestID(c)
	if !ok {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	state, err := h.sessionService.GetState(c.Request.Context(), testID, claims.UserID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNoActiveSession):
			response.Fail(c, http.StatusNotFound, response.ErrNoActiveSession)
		case errors.Is(err, service.ErrAlreadySubmitted):
			response.Fail(c, http.StatusConflict, response.ErrAlreadySubmitted)
		default:
			h.log.Error().Err(err).Msg("get state failed")
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}
	response.Success(c, http.StatusOK, state)
}

// SelectAnswer godoc
// POST /api/v1/tests/:test_id/answers
func (h *PortalHandler) SelectAnswer(c *gin.Context) {
	claims := middleware.GetClaims(c)
	testID, ok := parseTestID(c)
	if !ok {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.SelectAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	err := h.sessionService.SelectAnswer(c.Request.Context(), testID, claims.UserID, req.Question, req.Option)
	if err != nil {
		switch {
		case errors.Is(err, scoring.ErrQuestionOutOfRange), errors.Is(err, scoring.ErrInvalidOption):
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidSelection)
		case errors.Is(err, service.ErrNoActiveSession):
			response.Fail(c, http.StatusNotFound, response.ErrNoActiveSession)
		case errors.Is(err, service.ErrAlreadySubmitted):
			response.Fail(c, http.StatusConflict, response.ErrAlreadySubmitted)
		default:
			h.log.Error().Err(err).Msg("select answer failed")
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}
	response.Success(c, http.StatusOK, gin.H{"saved": true})
}

// Submit godoc
// POST /api/v1/tests/:test_id/submit
func (h *PortalHandler) Submit(c *gin.Context) {
	claims := middleware.GetClaims(c)
	testID, ok := parseTestID(c)
	if !ok {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	attempt, err := h.attemptService.Submit(c.Request.Context(), testID, claims.UserID, service.TriggerManual)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNoActiveSession):
			response.Fail(c, http.StatusNotFound, response.ErrNoActiveSession)
		case errors.Is(err, service.ErrAlreadySubmitted):
			response.Fail(c, http.StatusConflict, response.ErrAlreadySubmitted)
		case errors.Is(err, service.ErrSubmitInProgress):
			response.Fail(c, http.StatusConflict, response.ErrSubmitInProgress)
		default:
			// The sheet is preserved on failure; the client may retry.
			h.log.Error().Err(err).
				Str("test_id", testID.String()).Int("user_id", claims.UserID).
				Msg("submission failed")
			response.Fail(c, http.StatusInternalServerError, response.ErrSubmissionFailed)
		}
		return
	}
	response.Success(c, http.StatusOK, attempt)
}

// GetResult godoc
// GET /api/v1/tests/:test_id/result
func (h *PortalHandler) GetResult(c *gin.Context) {
	claims := middleware.GetClaims(c)
	testID, ok := parseTestID(c)
	if !ok {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	attempt, err := h.attemptService.GetResult(c.Request.Context(), testID, claims.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		h.log.Error().Err(err).Msg("get result failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, attempt)
}

// GetAttempt godoc
// GET /api/v1/attempts/:attempt_id
func (h *PortalHandler) GetAttempt(c *gin.Context) {
	claims := middleware.GetClaims(c)
	attemptID, ok := parseAttemptID(c)
	if !ok {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	attempt, err := h.attemptService.GetAttempt(c.Request.Context(), attemptID, claims.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		h.log.Error().Err(err).Msg("get attempt failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, attempt)
}

// History godoc
// GET /api/v1/attempts
func (h *PortalHandler) History(c *gin.Context) {
	claims := middleware.GetClaims(c)

	attempts, err := h.attemptService.History(c.Request.Context(), claims.UserID)
	if err != nil {
		h.log.Error().Err(err).Msg("history failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, attempts)
}

// Leaderboard godoc
// GET /api/v1/tests/:test_id/leaderboard
func (h *PortalHandler) Leaderboard(c *gin.Context) {
	testID, ok := parseTestID(c)
	if !ok {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}
	page, perPage := parsePagination(c)

	rows, total, err := h.attemptService.Leaderboard(c.Request.Context(), testID, perPage, (page-1)*perPage)
	if err != nil {
		h.log.Error().Err(err).Msg("leaderboard failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.SuccessWithPagination(c, http.StatusOK, rows, buildPagination(page, perPage, total))
}

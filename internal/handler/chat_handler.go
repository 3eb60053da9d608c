package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/axisprep/mocktest-backend/internal/middleware"
	"github.com/axisprep/mocktest-backend/internal/model"
	"github.com/axisprep/mocktest-backend/internal/response"
	"github.com/axisprep/mocktest-backend/internal/service"
	"github.com/axisprep/mocktest-backend/internal/validator"
)

// ChatHandler handles per-test discussion threads.
type ChatHandler struct {
	chatService *service.ChatService
	log         zerolog.Logger
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(chatService *service.ChatService, log zerolog.Logger) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		log:         log.With().Str("component", "chat_handler").Logger(),
	}
}

// List godoc
// GET /api/v1/tests/:test_id/chat
func (h *ChatHandler) List(c *gin.Context) {
	testID, ok := parseTestID(c)
	if !ok {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}
	page, perPage := parsePagination(c)

	messages, total, err := h.chatService.List(c.Request.Context(), testID, perPage, (page-1)*perPage)
	if err != nil {
		h.log.Error().Err(err).Msg("list chat failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.SuccessWithPagination(c, http.StatusOK, messages, buildPagination(page, perPage, total))
}

// Post godoc
// POST /api/v1/tests/:test_id/chat
func (h *ChatHandler) Post(c *gin.Context) {
	claims := middleware.GetClaims(c)
	testID, ok := parseTestID(c)
	if !ok {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.PostChatMessageRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	msg, err := h.chatService.Post(c.Request.Context(), testID, claims.UserID, req.Content)
	if err != nil {
		if errors.Is(err, service.ErrDiscussionLocked) {
			response.Fail(c, http.StatusForbidden, response.ErrForbidden)
			return
		}
		h.log.Error().Err(err).Msg("post chat failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusCreated, msg)
}

// Like godoc
// POST /api/v1/chat/:message_id/like
func (h *ChatHandler) Like(c *gin.Context) {
	messageID, err := strconv.Atoi(c.Param("message_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	likes, err := h.chatService.Like(c.Request.Context(), messageID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		h.log.Error().Err(err).Msg("like failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"likes": likes})
}

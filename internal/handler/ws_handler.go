package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/axisprep/mocktest-backend/internal/middleware"
	"github.com/axisprep/mocktest-backend/internal/response"
	"github.com/axisprep/mocktest-backend/internal/scoring"
	"github.com/axisprep/mocktest-backend/internal/service"
	ws "github.com/axisprep/mocktest-backend/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams a live attempt over WebSocket: low-latency answer
// selection and submission without HTTP round trips per bubble.
type WSHandler struct {
	sessionService *service.SessionService
	attemptService *service.AttemptService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessionService *service.SessionService, attemptService *service.AttemptService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		sessionService: sessionService,
		attemptService: attemptService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// AttemptStream godoc
// WS /ws/v1/tests/:test_id/stream
func (h *WSHandler) AttemptStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	testID, err := uuid.Parse(c.Param("test_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid test ID"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	userID := claims.UserID

	if err := h.sessionService.VerifyActiveSession(c.Request.Context(), testID, userID); err != nil {
		ws.WriteError(conn, string(response.ErrNoActiveSession), "no active session for this test")
		return
	}

	wsLog := h.log.With().
		Int("user_id", userID).
		Str("test_id", testID.String()).
		Logger()

	wsLog.Info().Msg("student connected")

	for {
		var msg ws.Request
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("unexpected close")
			} else {
				wsLog.Debug().Msg("connection closed")
			}
			break
		}

		switch msg.Action {
		case ws.ActionSelect:
			h.handleSelect(conn, wsLog, testID, userID, &msg)
		case ws.ActionSubmit:
			done := h.handleSubmit(conn, wsLog, testID, userID)
			if done {
				return
			}
		case ws.ActionPing:
			_ = ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong})
		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("unknown action")
			ws.WriteError(conn, string(response.ErrInvalidPayload), "unknown action: "+string(msg.Action))
		}
	}
}

func (h *WSHandler) handleSelect(conn *websocket.Conn, wsLog zerolog.Logger, testID uuid.UUID, userID int, msg *ws.Request) {
	ctx := context.Background()

	err := h.sessionService.SelectAnswer(ctx, testID, userID, msg.Question, msg.Option)
	if err != nil {
		switch {
		case errors.Is(err, scoring.ErrQuestionOutOfRange), errors.Is(err, scoring.ErrInvalidOption):
			ws.WriteError(conn, string(response.ErrInvalidSelection), "selection out of range")
		case errors.Is(err, service.ErrNoActiveSession):
			ws.WriteError(conn, string(response.ErrNoActiveSession), "no active session")
		case errors.Is(err, service.ErrAlreadySubmitted):
			ws.WriteError(conn, string(response.ErrAlreadySubmitted), "test already submitted")
		default:
			wsLog.Error().Err(err).Msg("select failed")
			ws.WriteError(conn, string(response.ErrInternal), "save failed")
		}
		return
	}

	_ = ws.WriteTyped(conn, ws.SavedResponse{
		Event:    ws.EventSaved,
		Question: msg.Question,
		Option:   msg.Option,
	})
}

// handleSubmit finalizes the attempt. Returns true when the stream should
// close (the attempt is settled one way or the other).
func (h *WSHandler) handleSubmit(conn *websocket.Conn, wsLog zerolog.Logger, testID uuid.UUID, userID int) bool {
	ctx := context.Background()

	attempt, err := h.attemptService.Submit(ctx, testID, userID, service.TriggerManual)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAlreadySubmitted):
			ws.WriteError(conn, string(response.ErrAlreadySubmitted), "test already submitted")
			return true
		case errors.Is(err, service.ErrSubmitInProgress):
			ws.WriteError(conn, string(response.ErrSubmitInProgress), "submission already in progress")
			return false
		case errors.Is(err, service.ErrNoActiveSession):
			ws.WriteError(conn, string(response.ErrNoActiveSession), "no active session")
			return true
		default:
			// Answers are preserved; the client may retry.
			wsLog.Error().Err(err).Msg("submission failed")
			ws.WriteError(conn, string(response.ErrSubmissionFailed), "submission failed, answers preserved")
			return false
		}
	}

	_ = ws.WriteTyped(conn, ws.ScoredResponse{
		Event:       ws.EventScored,
		Score:       attempt.Score,
		Correct:     attempt.CorrectCount,
		Wrong:       attempt.WrongCount,
		Unattempted: attempt.UnattemptedCount,
	})
	return true
}

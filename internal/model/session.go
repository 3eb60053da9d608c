package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus enumerates live attempt session states.
type SessionStatus string

const (
	SessionStatusInProgress SessionStatus = "IN_PROGRESS"
	SessionStatusCompleted  SessionStatus = "COMPLETED"
)

// Session represents a user's live attempt at a test. One session per
// (test, user); created when the user starts the test, completed on
// submission.
type Session struct {
	ID         uuid.UUID     `json:"id"`
	TestID     uuid.UUID     `json:"test_id"`
	UserID     int           `json:"user_id"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
	Status     SessionStatus `json:"status"`
}

// SessionState is the reload-safe view of a live session: what has been
// answered so far and how many seconds remain on the clock.
type SessionState struct {
	TestID           uuid.UUID   `json:"test_id"`
	UserID           int         `json:"user_id"`
	Answers          map[int]int `json:"answers"`
	AnsweredCount    int         `json:"answered_count"`
	RemainingSeconds int         `json:"remaining_seconds"`
}

// SelectAnswerRequest records one OMR bubble selection.
type SelectAnswerRequest struct {
	Question int `json:"question" binding:"required,min=1"`
	Option   int `json:"option" binding:"required,min=1,max=4"`
}

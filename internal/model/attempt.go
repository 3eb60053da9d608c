package model

import (
	"time"

	"github.com/google/uuid"
)

// Attempt is the immutable record of one completed test submission.
// Created exactly once per logical submission; never mutated afterwards.
type Attempt struct {
	ID               uuid.UUID   `json:"id"`
	UserID           int         `json:"user_id"`
	TestID           uuid.UUID   `json:"test_id"`
	Answers          map[int]int `json:"answers"`
	Score            int         `json:"score"`
	CorrectCount     int         `json:"correct_count"`
	WrongCount       int         `json:"wrong_count"`
	UnattemptedCount int         `json:"unattempted_count"`
	TimeSpentSeconds int         `json:"time_spent_seconds"`
	CreatedAt        time.Time   `json:"created_at"`
}

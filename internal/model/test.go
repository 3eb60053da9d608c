package model

import (
	"time"

	"github.com/google/uuid"
)

// Section enumerates the supported examination tracks.
type Section string

const (
	SectionNEET Section = "NEET"
	SectionJEE  Section = "JEE"
)

// TestStatus enumerates the possible states of a test.
type TestStatus string

const (
	TestStatusDraft     TestStatus = "DRAFT"
	TestStatusPublished TestStatus = "PUBLISHED"
	TestStatusArchived  TestStatus = "ARCHIVED"
)

// DefaultTotalQuestions is the canonical full-paper question count.
const DefaultTotalQuestions = 180

// AnswerKey maps question number -> correct option (1..4). JSON object keys
// are the stringified question numbers, which encoding/json handles natively
// for integer-keyed maps.
type AnswerKey map[int]int

// Test represents a published or draft mock examination.
type Test struct {
	ID              uuid.UUID  `json:"id"`
	Title           string     `json:"title"`
	Section         Section    `json:"section"`
	Subsection      string     `json:"subsection"`
	DurationMinutes int        `json:"duration_minutes"`
	TotalQuestions  int        `json:"total_questions"`
	PaperURL        *string    `json:"paper_url,omitempty"`
	AnswerKey       AnswerKey  `json:"answer_key,omitempty"`
	Status          TestStatus `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// TestPayload is the Redis-cached descriptor sent to students (no answer key).
type TestPayload struct {
	TestID          uuid.UUID `json:"test_id"`
	Title           string    `json:"title"`
	Section         Section   `json:"section"`
	Subsection      string    `json:"subsection"`
	DurationMinutes int       `json:"duration_minutes"`
	TotalQuestions  int       `json:"total_questions"`
	PaperURL        *string   `json:"paper_url,omitempty"`
}

// CreateTestRequest is the payload for creating a new test.
type CreateTestRequest struct {
	Title           string  `json:"title" binding:"required,min=3,max=255"`
	Section         Section `json:"section" binding:"required,oneof=NEET JEE"`
	Subsection      string  `json:"subsection" binding:"required,min=2,max=100"`
	DurationMinutes int     `json:"duration_minutes" binding:"required,min=1,max=480"`
	TotalQuestions  int     `json:"total_questions" binding:"omitempty,min=1,max=400"`
	PaperURL        *string `json:"paper_url" binding:"omitempty,max=512"`
}

// UpdateTestRequest is the payload for updating a draft test.
type UpdateTestRequest struct {
	Title           string  `json:"title" binding:"omitempty,min=3,max=255"`
	Section         Section `json:"section" binding:"omitempty,oneof=NEET JEE"`
	Subsection      string  `json:"subsection" binding:"omitempty,min=2,max=100"`
	DurationMinutes int     `json:"duration_minutes" binding:"omitempty,min=1,max=480"`
	TotalQuestions  int     `json:"total_questions" binding:"omitempty,min=1,max=400"`
	PaperURL        *string `json:"paper_url" binding:"omitempty,max=512"`
}

// SetAnswerKeyRequest replaces the answer key of a draft test.
type SetAnswerKeyRequest struct {
	AnswerKey AnswerKey `json:"answer_key" binding:"required"`
}

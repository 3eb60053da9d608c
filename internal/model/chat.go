package model

import (
	"time"

	"github.com/google/uuid"
)

// ChatMessage is one post in a test's discussion thread.
type ChatMessage struct {
	ID        int       `json:"id"`
	TestID    uuid.UUID `json:"test_id"`
	UserID    int       `json:"user_id"`
	UserName  string    `json:"user_name,omitempty"`
	Content   string    `json:"content"`
	Likes     int       `json:"likes"`
	CreatedAt time.Time `json:"created_at"`
}

// PostChatMessageRequest is the payload for posting to a discussion thread.
type PostChatMessageRequest struct {
	Content string `json:"content" binding:"required,min=1,max=2000"`
}

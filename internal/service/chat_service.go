package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/axisprep/mocktest-backend/internal/model"
	"github.com/axisprep/mocktest-backend/internal/repository"
)

// ErrDiscussionLocked is returned when a user tries to post to a test they
// have not finished yet. Discussion opens after submission so answers cannot
// leak to students still on the clock.
var ErrDiscussionLocked = errors.New("discussion opens after you submit the test")

// ChatService handles per-test discussion threads.
type ChatService struct {
	chatRepo    *repository.ChatRepository
	attemptRepo *repository.AttemptRepository
}

// NewChatService creates a new ChatService.
func NewChatService(chatRepo *repository.ChatRepository, attemptRepo *repository.AttemptRepository) *ChatService {
	return &ChatService{chatRepo: chatRepo, attemptRepo: attemptRepo}
}

// Post adds a message to a test's discussion thread.
func (s *ChatService) Post(ctx context.Context, testID uuid.UUID, userID int, content string) (*model.ChatMessage, error) {
	if _, err := s.attemptRepo.GetByTestAndUser(ctx, testID, userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDiscussionLocked
		}
		return nil, fmt.Errorf("check attempt: %w", err)
	}

	msg := &model.ChatMessage{
		TestID:  testID,
		UserID:  userID,
		Content: content,
	}
	if err := s.chatRepo.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}
	return msg, nil
}

// List returns a test's discussion thread, oldest first.
func (s *ChatService) List(ctx context.Context, testID uuid.UUID, limit, offset int) ([]model.ChatMessage, int, error) {
	return s.chatRepo.ListByTest(ctx, testID, limit, offset)
}

// Like increments a message's like counter and returns the new count.
func (s *ChatService) Like(ctx context.Context, messageID int) (int, error) {
	return s.chatRepo.Like(ctx, messageID)
}

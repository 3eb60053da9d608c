package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/axisprep/mocktest-backend/internal/model"
	"github.com/axisprep/mocktest-backend/internal/repository"
	"github.com/axisprep/mocktest-backend/internal/scoring"
)

// Submission errors.
var (
	ErrAlreadySubmitted = errors.New("attempt already submitted")
	ErrSubmitInProgress = errors.New("submission already in progress")
)

// SubmitTrigger records what initiated a submission.
type SubmitTrigger string

const (
	// TriggerManual is the student pressing the submit button.
	TriggerManual SubmitTrigger = "manual"
	// TriggerTimer is the deadline worker firing on clock expiry.
	TriggerTimer SubmitTrigger = "timer"
)

// sheetSource is the live-attempt state the submission path needs.
// Satisfied by *LiveStore.
type sheetSource interface {
	Snapshot(ctx context.Context, testID uuid.UUID, userID int) (map[int]int, error)
	Clear(ctx context.Context, testID uuid.UUID, userID int) error
	AcquireSubmitGuard(ctx context.Context, testID uuid.UUID, userID int) (bool, error)
	ReleaseSubmitGuard(ctx context.Context, testID uuid.UUID, userID int) error
	RemoveDeadline(ctx context.Context, testID uuid.UUID, userID int) error
}

// keySource resolves the scoring inputs of a test. Satisfied by *TestService.
type keySource interface {
	AnswerKey(ctx context.Context, testID uuid.UUID) (scoring.Key, int, error)
	Duration(ctx context.Context, testID uuid.UUID) (int, error)
}

// attemptStore is the durable attempt record. Satisfied by
// *repository.AttemptRepository.
type attemptStore interface {
	Create(ctx context.Context, a *model.Attempt) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Attempt, error)
	GetByTestAndUser(ctx context.Context, testID uuid.UUID, userID int) (*model.Attempt, error)
	ListByUser(ctx context.Context, userID int) ([]model.Attempt, error)
	Leaderboard(ctx context.Context, testID uuid.UUID, limit, offset int) ([]repository.LeaderboardRow, int, error)
}

// sessionStore is the session lookup and completion the submission path
// needs. Satisfied by *repository.SessionRepository.
type sessionStore interface {
	GetByTestAndUser(ctx context.Context, testID uuid.UUID, userID int) (*model.Session, error)
	Complete(ctx context.Context, testID uuid.UUID, userID int) error
}

// AttemptService owns the submission workflow. At-most-once is enforced
// twice: a Redis SETNX guard serializes concurrent submitters (the manual
// button racing the expiry timer), and the unique index on
// attempts(test_id, user_id) is the durable backstop if the guard is lost.
// A failed submission releases the guard and leaves the sheet untouched so
// the student can retry without losing answers.
type AttemptService struct {
	sessions sessionStore
	attempts attemptStore
	sheets   sheetSource
	keys     keySource
	logger   zerolog.Logger
}

// NewAttemptService creates a new AttemptService.
func NewAttemptService(sessions sessionStore, attempts attemptStore, sheets sheetSource, keys keySource) *AttemptService {
	return &AttemptService{
		sessions: sessions,
		attempts: attempts,
		sheets:   sheets,
		keys:     keys,
		logger:   log.With().Str("component", "attempt_service").Logger(),
	}
}

// Submit finalizes a session into an immutable scored attempt.
func (s *AttemptService) Submit(ctx context.Context, testID uuid.UUID, userID int, trigger SubmitTrigger) (*model.Attempt, error) {
	session, err := s.sessions.GetByTestAndUser(ctx, testID, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoActiveSession
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	if session.Status == model.SessionStatusCompleted {
		return nil, ErrAlreadySubmitted
	}

	acquired, err := s.sheets.AcquireSubmitGuard(ctx, testID, userID)
	if err != nil {
		return nil, fmt.Errorf("acquire submit guard: %w", err)
	}
	if !acquired {
		return nil, ErrSubmitInProgress
	}

	attempt, err := s.finalize(ctx, session, trigger)
	if err != nil {
		if errors.Is(err, ErrAlreadySubmitted) {
			// Another process won the race at the database. The sheet and
			// guard are theirs to clean up.
			_ = s.sheets.RemoveDeadline(ctx, testID, userID)
			return nil, ErrAlreadySubmitted
		}
		// Release the guard so a retry is possible. The sheet is
		// deliberately left intact.
		if relErr := s.sheets.ReleaseSubmitGuard(ctx, testID, userID); relErr != nil {
			s.logger.Error().Err(relErr).
				Str("test_id", testID.String()).Int("user_id", userID).
				Msg("failed to release submit guard after failed submission")
		}
		return nil, err
	}

	s.logger.Info().
		Str("test_id", testID.String()).
		Int("user_id", userID).
		Str("trigger", string(trigger)).
		Int("score", attempt.Score).
		Msg("attempt submitted")
	return attempt, nil
}

// finalize scores the sheet and records the attempt. Called with the submit
// guard held.
func (s *AttemptService) finalize(ctx context.Context, session *model.Session, trigger SubmitTrigger) (*model.Attempt, error) {
	testID, userID := session.TestID, session.UserID

	snapshot, err := s.sheets.Snapshot(ctx, testID, userID)
	if err != nil {
		return nil, fmt.Errorf("snapshot sheet: %w", err)
	}

	key, totalQuestions, err := s.keys.AnswerKey(ctx, testID)
	if err != nil {
		return nil, fmt.Errorf("load answer key: %w", err)
	}

	breakdown := scoring.Score(snapshot, key, totalQuestions)

	durationMinutes, err := s.keys.Duration(ctx, testID)
	if err != nil {
		return nil, fmt.Errorf("load duration: %w", err)
	}
	timeSpent := int(time.Since(session.StartedAt).Seconds())
	if maxSeconds := durationMinutes * 60; timeSpent > maxSeconds {
		timeSpent = maxSeconds
	}
	if timeSpent < 0 {
		timeSpent = 0
	}

	attempt := &model.Attempt{
		UserID:           userID,
		TestID:           testID,
		Answers:          snapshot,
		Score:            breakdown.Score,
		CorrectCount:     breakdown.Correct,
		WrongCount:       breakdown.Wrong,
		UnattemptedCount: breakdown.Unattempted,
		TimeSpentSeconds: timeSpent,
	}
	if err := s.attempts.Create(ctx, attempt); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrAlreadySubmitted
		}
		return nil, fmt.Errorf("record attempt: %w", err)
	}

	// The attempt row is the durable outcome. Everything after it is
	// cleanup: log failures, never undo the submission.
	if err := s.sessions.Complete(ctx, testID, userID); err != nil {
		s.logger.Error().Err(err).
			Str("test_id", testID.String()).Int("user_id", userID).
			Msg("attempt recorded but session completion failed")
	}
	if err := s.sheets.Clear(ctx, testID, userID); err != nil {
		s.logger.Warn().Err(err).
			Str("test_id", testID.String()).Int("user_id", userID).
			Msg("failed to clear submitted sheet")
	}
	if err := s.sheets.RemoveDeadline(ctx, testID, userID); err != nil {
		s.logger.Warn().Err(err).
			Str("test_id", testID.String()).Int("user_id", userID).
			Msg("failed to drop session deadline")
	}

	return attempt, nil
}

// GetResult returns the user's recorded attempt for a test.
func (s *AttemptService) GetResult(ctx context.Context, testID uuid.UUID, userID int) (*model.Attempt, error) {
	return s.attempts.GetByTestAndUser(ctx, testID, userID)
}

// GetAttempt returns an attempt by ID, scoped to its owner. A foreign
// attempt looks like a missing one.
func (s *AttemptService) GetAttempt(ctx context.Context, attemptID uuid.UUID, userID int) (*model.Attempt, error) {
	attempt, err := s.attempts.GetByID(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.UserID != userID {
		return nil, pgx.ErrNoRows
	}
	return attempt, nil
}

// History returns all of a user's recorded attempts, newest first.
func (s *AttemptService) History(ctx context.Context, userID int) ([]model.Attempt, error) {
	return s.attempts.ListByUser(ctx, userID)
}

// Leaderboard returns a test's score ranking with pagination.
func (s *AttemptService) Leaderboard(ctx context.Context, testID uuid.UUID, limit, offset int) ([]repository.LeaderboardRow, int, error) {
	return s.attempts.Leaderboard(ctx, testID, limit, offset)
}

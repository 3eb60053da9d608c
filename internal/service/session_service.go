package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/axisprep/mocktest-backend/internal/config"
	"github.com/axisprep/mocktest-backend/internal/model"
	"github.com/axisprep/mocktest-backend/internal/repository"
	"github.com/axisprep/mocktest-backend/internal/scoring"
)

// ErrNoActiveSession is returned when the user has no IN_PROGRESS session
// for the test.
var ErrNoActiveSession = errors.New("no active session for this test")

// SessionService handles the live attempt: starting a session, recording
// selections, and the reload-safe state view. The clock is server-derived
// from the persisted start instant, so refreshing the page or switching
// devices never resets it.
type SessionService struct {
	sessionRepo *repository.SessionRepository
	attemptRepo *repository.AttemptRepository
	testService *TestService
	live        *LiveStore
	rdb         *redis.Client
}

// NewSessionService creates a new SessionService.
func NewSessionService(
	sessionRepo *repository.SessionRepository,
	attemptRepo *repository.AttemptRepository,
	testService *TestService,
	live *LiveStore,
	rdb *redis.Client,
) *SessionService {
	return &SessionService{
		sessionRepo: sessionRepo,
		attemptRepo: attemptRepo,
		testService: testService,
		live:        live,
		rdb:         rdb,
	}
}

// StartAttempt creates (or resumes) the user's session for a published test.
// Starting is idempotent: a second start returns the existing session with
// the original clock, it never grants fresh time.
func (s *SessionService) StartAttempt(ctx context.Context, testID uuid.UUID, userID int) (*model.Session, error) {
	payload, err := s.testService.GetPayload(ctx, testID)
	if err != nil {
		return nil, err
	}

	// A recorded attempt means this test is finished for good.
	if _, err := s.attemptRepo.GetByTestAndUser(ctx, testID, userID); err == nil {
		return nil, ErrAlreadySubmitted
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("check attempt: %w", err)
	}

	existing, err := s.sessionRepo.GetByTestAndUser(ctx, testID, userID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("check existing session: %w", err)
	}
	if existing != nil {
		if existing.Status == model.SessionStatusCompleted {
			return nil, ErrAlreadySubmitted
		}
		// Resume: make sure the clock and deadline survive cache loss.
		s.indexSession(ctx, existing, payload.DurationMinutes)
		return existing, nil
	}

	session := &model.Session{
		TestID:    testID,
		UserID:    userID,
		Status:    model.SessionStatusInProgress,
		StartedAt: time.Now(),
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Lost a concurrent start race; the winner's row is the session.
			session, err = s.sessionRepo.GetByTestAndUser(ctx, testID, userID)
			if err != nil {
				return nil, fmt.Errorf("refetch after concurrent start: %w", err)
			}
		} else {
			return nil, fmt.Errorf("create session: %w", err)
		}
	}

	s.indexSession(ctx, session, payload.DurationMinutes)
	return session, nil
}

// indexSession caches the start instant and registers the expiry deadline.
// Failures are non-fatal: the state path falls back to Postgres and the
// deadline is re-indexed on the next start call.
func (s *SessionService) indexSession(ctx context.Context, session *model.Session, durationMinutes int) {
	startKey := config.CacheKey.SessionStartKey(session.TestID.String(), session.UserID)
	if err := s.rdb.Set(ctx, startKey, session.StartedAt.Unix(), 0).Err(); err != nil {
		log.Warn().Err(err).Msg("failed to cache session start time")
	}

	deadline := session.StartedAt.Add(time.Duration(durationMinutes) * time.Minute)
	if err := s.live.SetDeadline(ctx, session.TestID, session.UserID, deadline); err != nil {
		log.Warn().Err(err).Msg("failed to index session deadline")
	}
}

// VerifyActiveSession checks that the user has an IN_PROGRESS session for
// the test.
func (s *SessionService) VerifyActiveSession(ctx context.Context, testID uuid.UUID, userID int) error {
	sess, err := s.sessionRepo.GetByTestAndUser(ctx, testID, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNoActiveSession
		}
		return fmt.Errorf("get session: %w", err)
	}
	if sess.Status == model.SessionStatusCompleted {
		return ErrAlreadySubmitted
	}
	return nil
}

// SelectAnswer records one bubble selection: validated, written to the live
// sheet, and queued for durable persistence.
func (s *SessionService) SelectAnswer(ctx context.Context, testID uuid.UUID, userID, question, option int) error {
	if err := s.VerifyActiveSession(ctx, testID, userID); err != nil {
		return err
	}

	total, err := s.testService.TotalQuestions(ctx, testID)
	if err != nil {
		return err
	}
	if err := scoring.ValidateSelection(question, option, total); err != nil {
		return err
	}

	if err := s.live.Select(ctx, testID, userID, question, option); err != nil {
		return err
	}

	// Queue the durable write; the answer worker batches these into Postgres.
	job, err := json.Marshal(repository.SheetAnswer{
		UserID:   userID,
		TestID:   testID,
		Question: question,
		Option:   option,
	})
	if err != nil {
		return fmt.Errorf("marshal persist job: %w", err)
	}
	if err := s.rdb.RPush(ctx, config.WorkerKey.PersistAnswersQueue, job).Err(); err != nil {
		// The selection is already in the live sheet; losing the durable
		// copy only matters if Redis also dies before submission.
		log.Warn().Err(err).Msg("failed to queue answer persistence")
	}
	return nil
}

// GetState returns the reload-safe view of a live session: the sheet so far
// and the remaining seconds derived from the persisted start instant.
func (s *SessionService) GetState(ctx context.Context, testID uuid.UUID, userID int) (*model.SessionState, error) {
	if err := s.VerifyActiveSession(ctx, testID, userID); err != nil {
		return nil, err
	}

	sheet, err := s.live.Snapshot(ctx, testID, userID)
	if err != nil {
		return nil, err
	}

	durationMinutes, err := s.testService.Duration(ctx, testID)
	if err != nil {
		return nil, err
	}

	startedAt, err := s.startTime(ctx, testID, userID)
	if err != nil {
		return nil, err
	}

	remaining := time.Until(startedAt.Add(time.Duration(durationMinutes) * time.Minute))
	if remaining < 0 {
		remaining = 0
	}

	return &model.SessionState{
		TestID:           testID,
		UserID:           userID,
		Answers:          sheet,
		AnsweredCount:    len(sheet),
		RemainingSeconds: int(remaining.Seconds()),
	}, nil
}

// startTime reads the session start instant from Redis, falling back to
// Postgres on a cache miss and self-healing the cache.
func (s *SessionService) startTime(ctx context.Context, testID uuid.UUID, userID int) (time.Time, error) {
	startKey := config.CacheKey.SessionStartKey(testID.String(), userID)

	val, err := s.rdb.Get(ctx, startKey).Result()
	if err == nil {
		unix, convErr := strconv.ParseInt(val, 10, 64)
		if convErr == nil {
			return time.Unix(unix, 0), nil
		}
		// Corrupt cache entry falls through to the DB path.
	} else if !errors.Is(err, redis.Nil) {
		return time.Time{}, fmt.Errorf("get start time: %w", err)
	}

	sess, err := s.sessionRepo.GetByTestAndUser(ctx, testID, userID)
	if err != nil {
		return time.Time{}, fmt.Errorf("session not in cache or db: %w", err)
	}

	_ = s.rdb.Set(ctx, startKey, sess.StartedAt.Unix(), 0).Err()
	return sess.StartedAt, nil
}

// ListByUser returns the user's session history.
func (s *SessionService) ListByUser(ctx context.Context, userID int) ([]model.Session, error) {
	return s.sessionRepo.ListByUser(ctx, userID)
}

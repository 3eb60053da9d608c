package worker

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/axisprep/mocktest-backend/internal/service"
)

// DeadlinePollInterval is how often expired session clocks are scanned for.
const DeadlinePollInterval = 1 * time.Second

// DeadlineWorker enforces the test clock on the server. It scans the
// deadline index for sessions whose time ran out and submits them, so a
// closed laptop or dead tab still produces a scored attempt. A manual
// submission racing the timer is settled by the submit guard and the
// attempts unique index: exactly one wins.
type DeadlineWorker struct {
	live     *service.LiveStore
	attempts *service.AttemptService
	log      zerolog.Logger
}

// NewDeadlineWorker creates a new DeadlineWorker.
func NewDeadlineWorker(live *service.LiveStore, attempts *service.AttemptService, log zerolog.Logger) *DeadlineWorker {
	return &DeadlineWorker{
		live:     live,
		attempts: attempts,
		log:      log.With().Str("component", "deadline_worker").Logger(),
	}
}

// Start begins the polling loop. Call in a goroutine.
func (w *DeadlineWorker) Start(ctx context.Context) {
	w.log.Info().Msg("deadline worker started")

	ticker := time.NewTicker(DeadlinePollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("deadline worker stopped")
			return
		case now := <-ticker.C:
			w.sweep(ctx, now)
		}
	}
}

// sweep submits every session whose deadline has passed.
func (w *DeadlineWorker) sweep(ctx context.Context, now time.Time) {
	due, err := w.live.DueSessions(ctx, now)
	if err != nil {
		w.log.Error().Err(err).Msg("deadline scan failed")
		return
	}

	for _, s := range due {
		w.expire(ctx, s)
	}
}

func (w *DeadlineWorker) expire(ctx context.Context, s service.DueSession) {
	attempt, err := w.attempts.Submit(ctx, s.TestID, s.UserID, service.TriggerTimer)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAlreadySubmitted), errors.Is(err, service.ErrNoActiveSession):
			// Settled elsewhere; just drop the stale index entry.
			if remErr := w.live.RemoveDeadline(ctx, s.TestID, s.UserID); remErr != nil {
				w.log.Warn().Err(remErr).Msg("failed to drop settled deadline")
			}
		case errors.Is(err, service.ErrSubmitInProgress):
			// A manual submission holds the guard. Leave the entry; either
			// they finish (and remove it) or the next sweep retries.
		default:
			w.log.Error().Err(err).
				Str("test_id", s.TestID.String()).Int("user_id", s.UserID).
				Msg("timer submission failed, will retry")
		}
		return
	}

	w.log.Info().
		Str("test_id", s.TestID.String()).
		Int("user_id", s.UserID).
		Int("score", attempt.Score).
		Msg("session auto-submitted on expiry")
}

package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/axisprep/mocktest-backend/internal/model"
)

// SessionRepository handles live attempt session data access.
type SessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

// GetByTestAndUser retrieves a session for a specific test-user combination.
func (r *SessionRepository) GetByTestAndUser(ctx context.Context, testID uuid.UUID, userID int) (*model.Session, error) {
	s := &model.Session{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, test_id, user_id, started_at, finished_at, status
		 FROM sessions
		 WHERE test_id = $1 AND user_id = $2`, testID, userID,
	).Scan(&s.ID, &s.TestID, &s.UserID, &s.StartedAt, &s.FinishedAt, &s.Status)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Create inserts a new session (user starts the test). The unique index on
// (test_id, user_id) plus DO NOTHING makes concurrent starts idempotent;
// the loser of the race gets pgx.ErrNoRows and must refetch.
func (r *SessionRepository) Create(ctx context.Context, s *model.Session) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO sessions (test_id, user_id, status)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (test_id, user_id) DO NOTHING
		 RETURNING id, started_at`,
		s.TestID, s.UserID, model.SessionStatusInProgress,
	).Scan(&s.ID, &s.StartedAt)
}

// Complete marks a session as completed.
func (r *SessionRepository) Complete(ctx context.Context, testID uuid.UUID, userID int) error {
	now := time.Now()
	_, err := r.pool.Exec(ctx,
		`UPDATE sessions
		 SET status = $1, finished_at = $2
		 WHERE test_id = $3 AND user_id = $4`,
		model.SessionStatusCompleted, now, testID, userID)
	return err
}

// ListByUser retrieves all sessions for a given user, newest first.
func (r *SessionRepository) ListByUser(ctx context.Context, userID int) ([]model.Session, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, test_id, user_id, started_at, finished_at, status
		 FROM sessions
		 WHERE user_id = $1
		 ORDER BY started_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []model.Session
	for rows.Next() {
		var s model.Session
		if err := rows.Scan(&s.ID, &s.TestID, &s.UserID, &s.StartedAt, &s.FinishedAt, &s.Status); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

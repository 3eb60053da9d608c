package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/axisprep/mocktest-backend/internal/model"
)

// LeaderboardRow is one entry in a test's score ranking.
type LeaderboardRow struct {
	UserID       int       `json:"user_id"`
	Name         string    `json:"name"`
	Score        int       `json:"score"`
	CorrectCount int       `json:"correct_count"`
	WrongCount   int       `json:"wrong_count"`
	SubmittedAt  time.Time `json:"submitted_at"`
}

// AttemptRepository handles completed attempt data access.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

// Create inserts the completed attempt in a single atomic statement.
// The unique index on (test_id, user_id) is the database-level backstop
// for at-most-once submission: a second insert for the same pair returns
// ErrDuplicate no matter which process attempts it.
func (r *AttemptRepository) Create(ctx context.Context, a *model.Attempt) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO attempts (user_id, test_id, answers, score, correct_count,
		                       wrong_count, unattempted_count, time_spent_seconds)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, created_at`,
		a.UserID, a.TestID, a.Answers, a.Score, a.CorrectCount,
		a.WrongCount, a.UnattemptedCount, a.TimeSpentSeconds,
	).Scan(&a.ID, &a.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// GetByID retrieves an attempt by its ID.
func (r *AttemptRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Attempt, error) {
	a := &model.Attempt{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, user_id, test_id, answers, score, correct_count,
		        wrong_count, unattempted_count, time_spent_seconds, created_at
		 FROM attempts
		 WHERE id = $1`, id,
	).Scan(&a.ID, &a.UserID, &a.TestID, &a.Answers, &a.Score, &a.CorrectCount,
		&a.WrongCount, &a.UnattemptedCount, &a.TimeSpentSeconds, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// GetByTestAndUser retrieves a user's attempt for a specific test.
func (r *AttemptRepository) GetByTestAndUser(ctx context.Context, testID uuid.UUID, userID int) (*model.Attempt, error) {
	a := &model.Attempt{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, user_id, test_id, answers, score, correct_count,
		        wrong_count, unattempted_count, time_spent_seconds, created_at
		 FROM attempts
		 WHERE test_id = $1 AND user_id = $2`, testID, userID,
	).Scan(&a.ID, &a.UserID, &a.TestID, &a.Answers, &a.Score, &a.CorrectCount,
		&a.WrongCount, &a.UnattemptedCount, &a.TimeSpentSeconds, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// ListByUser retrieves all attempts for a given user, newest first.
func (r *AttemptRepository) ListByUser(ctx context.Context, userID int) ([]model.Attempt, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, test_id, answers, score, correct_count,
		        wrong_count, unattempted_count, time_spent_seconds, created_at
		 FROM attempts
		 WHERE user_id = $1
		 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []model.Attempt
	for rows.Next() {
		var a model.Attempt
		if err := rows.Scan(&a.ID, &a.UserID, &a.TestID, &a.Answers, &a.Score, &a.CorrectCount,
			&a.WrongCount, &a.UnattemptedCount, &a.TimeSpentSeconds, &a.CreatedAt); err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// Leaderboard retrieves a test's attempts ranked by score, with pagination.
// Ties break on earlier submission.
func (r *AttemptRepository) Leaderboard(ctx context.Context, testID uuid.UUID, limit, offset int) ([]LeaderboardRow, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM attempts WHERE test_id = $1`, testID,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT a.user_id, u.name, a.score, a.correct_count, a.wrong_count, a.created_at
		 FROM attempts a
		 JOIN users u ON a.user_id = u.id
		 WHERE a.test_id = $1
		 ORDER BY a.score DESC, a.created_at ASC
		 LIMIT $2 OFFSET $3`, testID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var results []LeaderboardRow
	for rows.Next() {
		var row LeaderboardRow
		if err := rows.Scan(&row.UserID, &row.Name, &row.Score, &row.CorrectCount, &row.WrongCount, &row.SubmittedAt); err != nil {
			return nil, 0, err
		}
		results = append(results, row)
	}
	return results, total, rows.Err()
}

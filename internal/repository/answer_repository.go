package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SheetAnswer is one durable OMR selection, queued by the live path and
// flushed to Postgres in batches.
type SheetAnswer struct {
	UserID   int       `json:"user_id"`
	TestID   uuid.UUID `json:"test_id"`
	Question int       `json:"question"`
	Option   int       `json:"option"`
}

// AnswerRepository persists sheet answers as a durable fallback for the
// Redis live store.
type AnswerRepository struct {
	pool *pgxpool.Pool
}

// NewAnswerRepository creates a new AnswerRepository.
func NewAnswerRepository(pool *pgxpool.Pool) *AnswerRepository {
	return &AnswerRepository{pool: pool}
}

// BulkUpsert writes a batch of selections in one round trip using UNNEST.
// Later selections for the same question overwrite earlier ones.
func (r *AnswerRepository) BulkUpsert(ctx context.Context, answers []SheetAnswer) error {
	if len(answers) == 0 {
		return nil
	}

	userIDs := make([]int, len(answers))
	testIDs := make([]uuid.UUID, len(answers))
	questions := make([]int, len(answers))
	options := make([]int, len(answers))
	for i, a := range answers {
		userIDs[i] = a.UserID
		testIDs[i] = a.TestID
		questions[i] = a.Question
		options[i] = a.Option
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO sheet_answers (user_id, test_id, question, selected_option)
		 SELECT * FROM UNNEST($1::int[], $2::uuid[], $3::int[], $4::int[])
		 ON CONFLICT (user_id, test_id, question)
		 DO UPDATE SET selected_option = EXCLUDED.selected_option, updated_at = NOW()`,
		userIDs, testIDs, questions, options)
	return err
}

// GetSheet loads all durable selections for a user's test. Used to rebuild
// the Redis live sheet after a cache loss.
func (r *AnswerRepository) GetSheet(ctx context.Context, testID uuid.UUID, userID int) (map[int]int, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT question, selected_option
		 FROM sheet_answers
		 WHERE test_id = $1 AND user_id = $2`, testID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sheet := make(map[int]int)
	for rows.Next() {
		var question, option int
		if err := rows.Scan(&question, &option); err != nil {
			return nil, err
		}
		sheet[question] = option
	}
	return sheet, rows.Err()
}

// DeleteSheet removes the durable selections once the attempt is recorded.
func (r *AnswerRepository) DeleteSheet(ctx context.Context, testID uuid.UUID, userID int) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM sheet_answers WHERE test_id = $1 AND user_id = $2`,
		testID, userID)
	return err
}

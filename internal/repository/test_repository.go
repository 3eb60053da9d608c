package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/axisprep/mocktest-backend/internal/model"
)

// TestRepository handles test data access.
type TestRepository struct {
	pool *pgxpool.Pool
}

// NewTestRepository creates a new TestRepository.
func NewTestRepository(pool *pgxpool.Pool) *TestRepository {
	return &TestRepository{pool: pool}
}

// GetByID retrieves a test by its UUID, answer key included.
func (r *TestRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Test, error) {
	t := &model.Test{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, title, section, subsection, duration_minutes, total_questions,
		        paper_url, answer_key, status, created_at, updated_at
		 FROM tests WHERE id = $1`, id,
	).Scan(&t.ID, &t.Title, &t.Section, &t.Subsection, &t.DurationMinutes, &t.TotalQuestions,
		&t.PaperURL, &t.AnswerKey, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// ListPaginated retrieves tests with an optional status filter.
func (r *TestRepository) ListPaginated(ctx context.Context, status *model.TestStatus, limit, offset int) ([]model.Test, int, error) {
	countQuery := `SELECT COUNT(*) FROM tests`
	var countArgs []any
	if status != nil {
		countQuery += ` WHERE status = $1`
		countArgs = append(countArgs, *status)
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT id, title, section, subsection, duration_minutes, total_questions,
	                 paper_url, answer_key, status, created_at, updated_at
	          FROM tests`
	var args []any
	argIdx := 1
	if status != nil {
		query += ` WHERE status = $1`
		args = append(args, *status)
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, argIdx, argIdx+1)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var tests []model.Test
	for rows.Next() {
		var t model.Test
		if err := rows.Scan(&t.ID, &t.Title, &t.Section, &t.Subsection, &t.DurationMinutes, &t.TotalQuestions,
			&t.PaperURL, &t.AnswerKey, &t.Status, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, 0, err
		}
		tests = append(tests, t)
	}
	return tests, total, rows.Err()
}

// publishedQuery builds the published-test listing with optional section
// and subsection filters (empty string means no filter).
func publishedQuery(section, subsection string) (string, []any) {
	query := `SELECT id, title, section, subsection, duration_minutes, total_questions,
	                 paper_url, answer_key, status, created_at, updated_at
	          FROM tests WHERE status = $1`
	args := []any{model.TestStatusPublished}
	if section != "" {
		args = append(args, section)
		query += fmt.Sprintf(` AND section = $%d`, len(args))
	}
	if subsection != "" {
		args = append(args, subsection)
		query += fmt.Sprintf(` AND subsection = $%d`, len(args))
	}
	query += ` ORDER BY created_at DESC`
	return query, args
}

// ListPublished returns PUBLISHED tests, optionally narrowed to a section
// and subsection. Also used unfiltered for cache prewarming on startup.
func (r *TestRepository) ListPublished(ctx context.Context, section, subsection string) ([]model.Test, error) {
	query, args := publishedQuery(section, subsection)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tests []model.Test
	for rows.Next() {
		var t model.Test
		if err := rows.Scan(&t.ID, &t.Title, &t.Section, &t.Subsection, &t.DurationMinutes, &t.TotalQuestions,
			&t.PaperURL, &t.AnswerKey, &t.Status, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		tests = append(tests, t)
	}
	return tests, rows.Err()
}

// Create inserts a new test in DRAFT status.
func (r *TestRepository) Create(ctx context.Context, t *model.Test) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO tests (title, section, subsection, duration_minutes, total_questions, paper_url, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at, updated_at`,
		t.Title, t.Section, t.Subsection, t.DurationMinutes, t.TotalQuestions, t.PaperURL, t.Status,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
}

// Update replaces the mutable descriptor fields of a test.
func (r *TestRepository) Update(ctx context.Context, t *model.Test) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE tests
		 SET title = $1, section = $2, subsection = $3, duration_minutes = $4,
		     total_questions = $5, paper_url = $6, updated_at = NOW()
		 WHERE id = $7`,
		t.Title, t.Section, t.Subsection, t.DurationMinutes, t.TotalQuestions, t.PaperURL, t.ID)
	return err
}

// SetAnswerKey stores the JSONB answer key for a test.
func (r *TestRepository) SetAnswerKey(ctx context.Context, id uuid.UUID, key model.AnswerKey) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE tests SET answer_key = $1, updated_at = NOW() WHERE id = $2`,
		key, id)
	return err
}

// UpdateStatus updates a test's lifecycle status.
func (r *TestRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.TestStatus) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE tests SET status = $1, updated_at = NOW() WHERE id = $2`,
		status, id)
	return err
}

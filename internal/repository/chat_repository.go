package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/axisprep/mocktest-backend/internal/model"
)

// ChatRepository handles test discussion thread data access.
type ChatRepository struct {
	pool *pgxpool.Pool
}

// NewChatRepository creates a new ChatRepository.
func NewChatRepository(pool *pgxpool.Pool) *ChatRepository {
	return &ChatRepository{pool: pool}
}

// Create inserts a new discussion message.
func (r *ChatRepository) Create(ctx context.Context, m *model.ChatMessage) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO chat_messages (test_id, user_id, content)
		 VALUES ($1, $2, $3)
		 RETURNING id, likes, created_at`,
		m.TestID, m.UserID, m.Content,
	).Scan(&m.ID, &m.Likes, &m.CreatedAt)
}

// ListByTest retrieves a test's discussion messages, oldest first, with pagination.
func (r *ChatRepository) ListByTest(ctx context.Context, testID uuid.UUID, limit, offset int) ([]model.ChatMessage, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM chat_messages WHERE test_id = $1`, testID,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT m.id, m.test_id, m.user_id, u.name, m.content, m.likes, m.created_at
		 FROM chat_messages m
		 JOIN users u ON m.user_id = u.id
		 WHERE m.test_id = $1
		 ORDER BY m.created_at ASC
		 LIMIT $2 OFFSET $3`, testID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var messages []model.ChatMessage
	for rows.Next() {
		var m model.ChatMessage
		if err := rows.Scan(&m.ID, &m.TestID, &m.UserID, &m.UserName, &m.Content, &m.Likes, &m.CreatedAt); err != nil {
			return nil, 0, err
		}
		messages = append(messages, m)
	}
	return messages, total, rows.Err()
}

// Like increments a message's like counter and returns the new count.
func (r *ChatRepository) Like(ctx context.Context, id int) (int, error) {
	var likes int
	err := r.pool.QueryRow(ctx,
		`UPDATE chat_messages SET likes = likes + 1 WHERE id = $1 RETURNING likes`,
		id,
	).Scan(&likes)
	return likes, err
}

package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"dryengineer/internal/domain"
	"dryengineer/internal/repository"
)

type MessageRepository struct {
	db *sql.DB
}

func NewMessageRepository(db *sql.DB) repository.MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Init(ctx context.Context) error {
	return initCollection(ctx, r.db, domain.Messages)
}

func (r *MessageRepository) Create(ctx context.Context, msg *domain.Message) (int64, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO messages (text, "user") VALUES (?, ?)`, msg.Text, msg.User)
	if err != nil {
		return 0, fmt.Errorf("insert message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("message last insert id: %w", err)
	}
	msg.ID = id
	return id, nil
}

func (r *MessageRepository) List(ctx context.Context) ([]domain.Message, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, text, "user" FROM messages ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		var (
			msg  domain.Message
			user sql.NullString
		)
		if err := rows.Scan(&msg.ID, &msg.Text, &user); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.User = user.String
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

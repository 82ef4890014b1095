package repository

import (
	"context"

	"dryengineer/internal/domain"
)

// MessageRepository stores unanswered chat messages.
type MessageRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, msg *domain.Message) (int64, error)
	List(ctx context.Context) ([]domain.Message, error)
}

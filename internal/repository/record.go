package repository

import (
	"context"
	"errors"

	"dryengineer/internal/domain"
)

var (
	// ErrNotFound is returned when no row matches the requested key.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique column already holds the value.
	ErrDuplicate = errors.New("record already exists")
)

// RecordStore is a schema-driven table store. Column names in records must
// already be validated against the collection; implementations only build
// statements from the collection definition.
type RecordStore interface {
	Init(ctx context.Context) error
	List(ctx context.Context, c domain.Collection) ([]domain.Record, error)
	Get(ctx context.Context, c domain.Collection, id int64) (domain.Record, error)
	Insert(ctx context.Context, c domain.Collection, fields domain.Record) (int64, error)
	Update(ctx context.Context, c domain.Collection, id int64, fields domain.Record) error
	Delete(ctx context.Context, c domain.Collection, id int64) error
}

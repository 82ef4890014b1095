package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"dryengineer/internal/domain"
	"dryengineer/internal/repository"
)

// Synchronizer is the generic list/create/patch/delete engine shared by the
// user and recipe collections.
type Synchronizer interface {
	List(ctx context.Context, c domain.Collection) ([]domain.Record, error)
	Get(ctx context.Context, c domain.Collection, id int64) (domain.Record, error)
	Create(ctx context.Context, c domain.Collection, fields map[string]any) (int64, error)
	Patch(ctx context.Context, c domain.Collection, id int64, fields map[string]any) error
	Delete(ctx context.Context, c domain.Collection, id int64) error
}

type synchronizer struct {
	store       repository.RecordStore
	hash        PasswordHasher
	now         func() time.Time
	collections map[string]struct{}
}

func NewSynchronizer(store repository.RecordStore, hash PasswordHasher, collections ...domain.Collection) Synchronizer {
	allowed := make(map[string]struct{}, len(collections))
	for _, c := range collections {
		allowed[c.Name] = struct{}{}
	}
	return &synchronizer{
		store:       store,
		hash:        hash,
		now:         time.Now,
		collections: allowed,
	}
}

func (s *synchronizer) check(c domain.Collection) error {
	if _, ok := s.collections[c.Name]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCollection, c.Name)
	}
	return nil
}

func (s *synchronizer) List(ctx context.Context, c domain.Collection) ([]domain.Record, error) {
	if err := s.check(c); err != nil {
		return nil, err
	}
	records, err := s.store.List(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStore, err)
	}
	for _, rec := range records {
		stripSecrets(c, rec)
	}
	return records, nil
}

func (s *synchronizer) Get(ctx context.Context, c domain.Collection, id int64) (domain.Record, error) {
	if err := s.check(c); err != nil {
		return nil, err
	}
	rec, err := s.store.Get(ctx, c, id)
	if err != nil {
		return nil, translateStoreError(err)
	}
	stripSecrets(c, rec)
	return rec, nil
}

func (s *synchronizer) Create(ctx context.Context, c domain.Collection, fields map[string]any) (int64, error) {
	if err := s.check(c); err != nil {
		return 0, err
	}
	rec, err := s.build(c, fields)
	if err != nil {
		return 0, err
	}
	for _, col := range c.Columns {
		if col.StampOnCreate {
			rec[col.Name] = s.now().UTC()
			continue
		}
		if col.Required && rec[col.Name] == nil {
			return 0, fmt.Errorf("%w: %s is required", ErrInvalidValue, col.Name)
		}
	}

	id, err := s.store.Insert(ctx, c, rec)
	if err != nil {
		return 0, translateStoreError(err)
	}
	return id, nil
}

func (s *synchronizer) Patch(ctx context.Context, c domain.Collection, id int64, fields map[string]any) error {
	if err := s.check(c); err != nil {
		return err
	}
	if len(fields) == 0 {
		return ErrEmptyPatch
	}
	rec, err := s.build(c, fields)
	if err != nil {
		return err
	}
	if err := s.store.Update(ctx, c, id, rec); err != nil {
		return translateStoreError(err)
	}
	return nil
}

func (s *synchronizer) Delete(ctx context.Context, c domain.Collection, id int64) error {
	if err := s.check(c); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, c, id); err != nil {
		return translateStoreError(err)
	}
	return nil
}

// build validates every key against the schema before any statement exists.
func (s *synchronizer) build(c domain.Collection, fields map[string]any) (domain.Record, error) {
	rec := make(domain.Record, len(fields))
	for key, raw := range fields {
		if key == c.PrimaryKey {
			return nil, fmt.Errorf("%w: %s", ErrReadOnlyField, key)
		}
		col, ok := c.Column(key)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownField, key)
		}
		if col.ReadOnly {
			return nil, fmt.Errorf("%w: %s", ErrReadOnlyField, key)
		}
		v, err := s.coerce(col, raw)
		if err != nil {
			return nil, err
		}
		rec[col.Name] = v
	}
	return rec, nil
}

func (s *synchronizer) coerce(col domain.Column, raw any) (any, error) {
	if raw == nil {
		if col.Required {
			return nil, fmt.Errorf("%w: %s is required", ErrInvalidValue, col.Name)
		}
		return nil, nil
	}

	switch col.Kind {
	case domain.KindInteger:
		n, err := toInt64(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidValue, col.Name, err)
		}
		return n, nil
	case domain.KindSecret:
		plain, ok := raw.(string)
		if !ok || plain == "" {
			return nil, fmt.Errorf("%w: %s must be a non-empty string", ErrInvalidValue, col.Name)
		}
		return s.hash(plain)
	case domain.KindTime:
		str, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s must be a timestamp", ErrInvalidValue, col.Name)
		}
		t, err := time.Parse(time.RFC3339Nano, str)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidValue, col.Name, err)
		}
		return t.UTC(), nil
	default:
		switch v := raw.(type) {
		case string:
			if col.Required && strings.TrimSpace(v) == "" {
				return nil, fmt.Errorf("%w: %s is required", ErrInvalidValue, col.Name)
			}
			return v, nil
		case json.Number:
			return v.String(), nil
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64), nil
		default:
			return nil, fmt.Errorf("%w: %s must be a string", ErrInvalidValue, col.Name)
		}
	}
}

func toInt64(raw any) (int64, error) {
	switch v := raw.(type) {
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n, nil
		}
		f, err := v.Float64()
		if err != nil {
			return 0, err
		}
		return floatToInt(f)
	case float64:
		return floatToInt(v)
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case string:
		return strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	default:
		return 0, fmt.Errorf("unsupported type %T", raw)
	}
}

func floatToInt(f float64) (int64, error) {
	if f != math.Trunc(f) || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, fmt.Errorf("%v is not an integer", f)
	}
	// float64(math.MaxInt64) rounds up to 2^63, which is already out of range
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, fmt.Errorf("%v is out of range", f)
	}
	return int64(f), nil
}

func stripSecrets(c domain.Collection, rec domain.Record) {
	for _, col := range c.Columns {
		if col.Kind == domain.KindSecret {
			delete(rec, col.Name)
		}
	}
}

func translateStoreError(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, repository.ErrDuplicate):
		return fmt.Errorf("%w: %v", ErrDuplicateLogin, err)
	default:
		return fmt.Errorf("%w: %w", ErrStore, err)
	}
}

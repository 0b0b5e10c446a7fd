package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
)

var _ Repository[struct{}] = (*GenericRepository[struct{}])(nil)

// ErrNotFound is returned by GenericRepository.Get for a missing key
var ErrNotFound = errors.New("entity not found")

// GenericRepository stores JSON-encoded entities of one type in one bucket
//
// It implements Repository[T].
type GenericRepository[T any] struct {
	db     Database
	bucket string
	logger *slog.Logger
}

// NewGenericRepository creates a new generic repository
func NewGenericRepository[T any](db Database, bucket string, logger *slog.Logger) *GenericRepository[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &GenericRepository[T]{
		db:     db,
		bucket: bucket,
		logger: logger.With(slog.String("bucket", bucket)),
	}
}

func (r *GenericRepository[T]) encode(key string, entity T) ([]byte, error) {
	data, err := json.Marshal(entity)
	if err != nil {
		return nil, fmt.Errorf("encode %s/%s: %w", r.bucket, key, err)
	}
	return data, nil
}

func (r *GenericRepository[T]) decode(key string, data []byte, entity *T) error {
	if err := json.Unmarshal(data, entity); err != nil {
		return fmt.Errorf("decode %s/%s: %w", r.bucket, key, err)
	}
	return nil
}

// Save stores entity under key, replacing any previous value
func (r *GenericRepository[T]) Save(ctx context.Context, key string, entity T) error {
	data, err := r.encode(key, entity)
	if err != nil {
		return err
	}
	return r.db.PutKV(ctx, r.bucket, []byte(key), data)
}

// Get returns the entity under key, or an error wrapping ErrNotFound
func (r *GenericRepository[T]) Get(ctx context.Context, key string) (T, error) {
	var entity T
	data, err := r.db.GetKV(ctx, r.bucket, []byte(key))
	switch {
	case err != nil:
		return entity, fmt.Errorf("read %s/%s: %w", r.bucket, key, err)
	case data == nil:
		return entity, fmt.Errorf("%s/%s: %w", r.bucket, key, ErrNotFound)
	}
	err = r.decode(key, data, &entity)
	return entity, err
}

// Update loads the entity stored under key, lets fn change it and saves it
// back atomically. found is false when the key was absent, in which case
// fn starts from the zero value.
func (r *GenericRepository[T]) Update(ctx context.Context, key string, fn func(entity *T, found bool) error) error {
	return r.db.UpdateKV(ctx, r.bucket, []byte(key), func(current []byte) ([]byte, error) {
		var entity T
		found := current != nil
		if found {
			if err := r.decode(key, current, &entity); err != nil {
				return nil, err
			}
		}
		if err := fn(&entity, found); err != nil {
			return nil, err
		}
		return r.encode(key, entity)
	})
}

// GetAll returns every entity by key. Records that fail to decode are
// logged and skipped.
func (r *GenericRepository[T]) GetAll(ctx context.Context) (map[string]T, error) {
	raw, err := r.db.GetAllKV(ctx, r.bucket)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", r.bucket, err)
	}

	all := make(map[string]T, len(raw))
	for key, data := range raw {
		var entity T
		if err := r.decode(key, data, &entity); err != nil {
			r.logger.Warn("Skipping undecodable record", slog.String("key", key), slog.String("error", err.Error()))
			continue
		}
		all[key] = entity
	}
	return all, nil
}

func (r *GenericRepository[T]) Delete(ctx context.Context, key string) error {
	return r.db.DeleteKV(ctx, r.bucket, []byte(key))
}

func (r *GenericRepository[T]) DeleteAll(ctx context.Context) error {
	return r.db.DeleteAllKV(ctx, r.bucket)
}

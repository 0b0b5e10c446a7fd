package db

import (
	"context"
)

// Bucket suffixes appended to the configured bucket prefix
const (
	MetaBucket     = "_meta"
	SettingsBucket = "_settings"
	SessionsBucket = "_sessions"
)

// SchemaVersion is the layout written to MetaBucket. Files from a newer
// vmget are refused.
const SchemaVersion = 1

// UpdateFunc receives the current value of a key (nil when absent) and
// returns the value to store. Returning a nil value deletes the key.
type UpdateFunc func(current []byte) ([]byte, error)

// Database is key/value persistence grouped in buckets
type Database interface {
	Close() error
	GetKV(ctx context.Context, bucket string, key []byte) ([]byte, error)
	PutKV(ctx context.Context, bucket string, key, value []byte) error
	// UpdateKV runs fn and stores its result in a single transaction
	UpdateKV(ctx context.Context, bucket string, key []byte, fn UpdateFunc) error
	DeleteKV(ctx context.Context, bucket string, key []byte) error
	GetAllKV(ctx context.Context, bucket string) (map[string][]byte, error)
	DeleteAllKV(ctx context.Context, bucket string) error
	GetOrCreateBucket(ctx context.Context, name string) error
}

// Repository is a typed view of one bucket
type Repository[T any] interface {
	Save(ctx context.Context, key string, entity T) error
	Get(ctx context.Context, key string) (T, error)
	Update(ctx context.Context, key string, fn func(entity *T, found bool) error) error
	GetAll(ctx context.Context) (map[string]T, error)
	Delete(ctx context.Context, key string) error
	DeleteAll(ctx context.Context) error
}

package db

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"vmget/config"

	bolt "go.etcd.io/bbolt"
)

var schemaKey = []byte("schema_version")

var _ Database = (*BoltDB)(nil)

// BoltDB implements Database over a single bbolt file. Bucket names are
// the configured prefix plus one of the bucket suffixes.
type BoltDB struct {
	*bolt.DB
	prefix string
}

// NewBoltDB opens (or creates) the database file named by cfg, checks the
// schema version and makes sure every bucket exists.
func NewBoltDB(cfg *config.Config) (*BoltDB, error) {
	if err := os.MkdirAll(cfg.DB.DBPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// bbolt holds an exclusive file lock; fail fast when another vmget has it
	db, err := bolt.Open(cfg.DBFilePath(), 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	boltDB := &BoltDB{
		DB:     db,
		prefix: cfg.DB.Bucket,
	}
	if err := boltDB.init(); err != nil {
		db.Close()
		return nil, err
	}
	return boltDB, nil
}

func (b *BoltDB) init() error {
	return b.Update(func(tx *bolt.Tx) error {
		for _, suffix := range []string{MetaBucket, SettingsBucket, SessionsBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(b.Bucket(suffix))); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b.Bucket(suffix), err)
			}
		}

		meta := tx.Bucket([]byte(b.Bucket(MetaBucket)))
		if raw := meta.Get(schemaKey); raw != nil {
			v, err := strconv.Atoi(string(raw))
			if err != nil {
				return fmt.Errorf("corrupt schema version %q", raw)
			}
			if v > SchemaVersion {
				return fmt.Errorf("database schema version %d is newer than supported version %d", v, SchemaVersion)
			}
		}
		return meta.Put(schemaKey, []byte(strconv.Itoa(SchemaVersion)))
	})
}

// Bucket returns the full bucket name for a suffix such as SettingsBucket
func (b *BoltDB) Bucket(suffix string) string {
	return b.prefix + suffix
}

// GetOrCreateBucket creates a bucket if it doesn't exist
func (b *BoltDB) GetOrCreateBucket(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(name))
		return err
	})
}

// GetKV retrieves a value by key from the specified bucket. A missing key
// yields a nil value and no error.
func (b *BoltDB) GetKV(ctx context.Context, bucket string, key []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var value []byte
	err := b.View(func(tx *bolt.Tx) error {
		bkt, err := bucketOf(tx, bucket)
		if err != nil {
			return err
		}
		value = clone(bkt.Get(key))
		return nil
	})
	return value, err
}

// PutKV stores a key-value pair in the specified bucket
func (b *BoltDB) PutKV(ctx context.Context, bucket string, key, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return b.Update(func(tx *bolt.Tx) error {
		bkt, err := tx.CreateBucketIfNotExists([]byte(bucket))
		if err != nil {
			return fmt.Errorf("create bucket: %w", err)
		}
		return bkt.Put(key, value)
	})
}

// UpdateKV reads key, hands it to fn and writes the result back inside one
// read-write transaction, so concurrent updates never interleave.
func (b *BoltDB) UpdateKV(ctx context.Context, bucket string, key []byte, fn UpdateFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return b.Update(func(tx *bolt.Tx) error {
		bkt, err := tx.CreateBucketIfNotExists([]byte(bucket))
		if err != nil {
			return fmt.Errorf("create bucket: %w", err)
		}

		next, err := fn(clone(bkt.Get(key)))
		if err != nil {
			return err
		}
		if next == nil {
			return bkt.Delete(key)
		}
		return bkt.Put(key, next)
	})
}

// DeleteKV removes a key-value pair from the specified bucket
func (b *BoltDB) DeleteKV(ctx context.Context, bucket string, key []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return b.Update(func(tx *bolt.Tx) error {
		bkt, err := bucketOf(tx, bucket)
		if err != nil {
			return err
		}
		return bkt.Delete(key)
	})
}

// GetAllKV retrieves all key-value pairs in the specified bucket
func (b *BoltDB) GetAllKV(ctx context.Context, bucket string) (map[string][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := make(map[string][]byte)
	err := b.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket([]byte(bucket))
		if bkt == nil {
			return nil
		}

		return bkt.ForEach(func(k, v []byte) error {
			result[string(k)] = clone(v)
			return nil
		})
	})
	return result, err
}

// DeleteAllKV drops and recreates the bucket
func (b *BoltDB) DeleteAllKV(ctx context.Context, bucket string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return b.Update(func(tx *bolt.Tx) error {
		if _, err := bucketOf(tx, bucket); err != nil {
			return err
		}
		if err := tx.DeleteBucket([]byte(bucket)); err != nil {
			return err
		}
		_, err := tx.CreateBucket([]byte(bucket))
		return err
	})
}

func bucketOf(tx *bolt.Tx, name string) (*bolt.Bucket, error) {
	bkt := tx.Bucket([]byte(name))
	if bkt == nil {
		return nil, fmt.Errorf("bucket %q not found", name)
	}
	return bkt, nil
}

// clone copies a value out of bbolt's mmap, which is only valid for the
// life of the transaction.
func clone(v []byte) []byte {
	if v == nil {
		return nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out
}

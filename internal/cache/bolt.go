package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ssh-vom/archive-scout/internal/logger"
	"github.com/ssh-vom/archive-scout/internal/providers/archive"
	"go.etcd.io/bbolt"
)

var resultsBucket = []byte("results")

// Bolt persists records in a bbolt file, one key per canonical request.
type Bolt struct {
	db  *bbolt.DB
	log logger.Logger
}

// DefaultPath is results.db under the user cache dir.
func DefaultPath() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("unable to resolve cache dir: %w", err)
	}
	return filepath.Join(cacheDir, "archive-scout", "results.db"), nil
}

func OpenBolt(path string, log logger.Logger) (*Bolt, error) {
	if log == nil {
		log = logger.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("%w: unable to create cache dir: %w", ErrCache, err)
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("%w: unable to open cache %s: %w", ErrCache, path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(resultsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: unable to create results bucket: %w", ErrCache, err)
	}

	return &Bolt{db: db, log: log}, nil
}

func (store *Bolt) Get(_ context.Context, key string) ([]archive.Entry, bool) {
	var data []byte
	err := store.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(resultsBucket)
		if bucket == nil {
			return nil
		}
		if value := bucket.Get([]byte(key)); value != nil {
			data = append([]byte(nil), value...)
		}
		return nil
	})
	if err != nil {
		store.log.Warn("Cache read failed, treating as miss", logger.String("key", key), logger.Error(err))
		return nil, false
	}
	if data == nil {
		return nil, false
	}

	entries, err := decode(data)
	if err != nil {
		store.log.Warn("Corrupt cache record, treating as miss", logger.String("key", key), logger.Error(err))
		return nil, false
	}
	return entries, true
}

func (store *Bolt) Set(_ context.Context, key string, entries []archive.Entry) error {
	data, err := encode(entries)
	if err != nil {
		return fmt.Errorf("%w: unable to encode cache record: %w", ErrCache, err)
	}

	err = store.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(resultsBucket)
		if err != nil {
			return err
		}
		return bucket.Put([]byte(key), data)
	})
	if err != nil {
		return fmt.Errorf("%w: unable to write cache record: %w", ErrCache, err)
	}
	return nil
}

func (store *Bolt) Clear(context.Context) error {
	err := store.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket(resultsBucket) != nil {
			if err := tx.DeleteBucket(resultsBucket); err != nil {
				return err
			}
		}
		_, err := tx.CreateBucket(resultsBucket)
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: unable to clear cache: %w", ErrCache, err)
	}
	return nil
}

func (store *Bolt) Close() error {
	return store.db.Close()
}

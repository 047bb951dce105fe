package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
	berrors "go.etcd.io/bbolt/errors"
)

const (
	recentBucket   = "recent"
	recentKey      = "order"
	dbPermissions  = 0600
	defaultTimeout = 1 * time.Second
)

// RecentDB persists the recently used list in a bbolt database. The database
// is opened for each operation so that concurrent launcher processes
// serialize on its file lock instead of one of them owning it for life.
type RecentDB struct {
	path    string
	timeout time.Duration
}

// NewRecentDB returns the store kept at path.
func NewRecentDB(path string) *RecentDB {
	return &RecentDB{path: path, timeout: defaultTimeout}
}

// WithTimeout sets how long to wait for the file lock.
func (r *RecentDB) WithTimeout(d time.Duration) *RecentDB {
	r.timeout = d
	return r
}

// Path returns the database location.
func (r *RecentDB) Path() string {
	return r.path
}

func (r *RecentDB) open(readOnly bool) (*bbolt.DB, error) {
	db, err := bbolt.Open(r.path, dbPermissions, &bbolt.Options{
		Timeout:  r.timeout,
		ReadOnly: readOnly,
	})
	if err == nil {
		return db, nil
	}
	if errors.Is(err, berrors.ErrTimeout) {
		return nil, fmt.Errorf("%w: %s", ErrLocked, r.path)
	}
	if errors.Is(err, os.ErrPermission) {
		return nil, fmt.Errorf("opening %s: %w", r.path, err)
	}
	return nil, fmt.Errorf("%w: opening %s: %v", ErrCorrupt, r.path, err)
}

// LoadRecent returns the stored ids, most recent first. A missing database
// yields an empty list.
func (r *RecentDB) LoadRecent() ([]string, error) {
	if _, err := os.Stat(r.path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("stat %s: %w", r.path, err)
	}

	db, err := r.open(true)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	var ids []string
	err = db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(recentBucket))
		if b == nil {
			return nil // Bucket doesn't exist, nothing saved yet
		}

		val := b.Get([]byte(recentKey))
		if val == nil {
			return nil
		}

		decoded, err := DecodeStrings(val)
		if err != nil {
			return err
		}
		ids = decoded
		return nil
	})
	if err != nil {
		return nil, err
	}

	return ids, nil
}

// SaveRecent replaces the stored list.
func (r *RecentDB) SaveRecent(ids []string) error {
	_, err := r.UpdateRecent(func([]string) []string { return ids })
	return err
}

// UpdateRecent replaces the stored list with fn applied to it and returns the
// written list. Reading and writing happen in one transaction under the file
// lock, so updates from other processes are never lost.
func (r *RecentDB) UpdateRecent(fn func(stored []string) []string) ([]string, error) {
	if err := os.MkdirAll(filepath.Dir(r.path), 0750); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	db, err := r.open(false)
	if err != nil {
		return nil, err
	}

	var next []string
	err = db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(recentBucket))
		if err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}

		var stored []string
		if val := b.Get([]byte(recentKey)); val != nil {
			if stored, err = DecodeStrings(val); err != nil {
				return err
			}
		}

		next = fn(stored)
		return b.Put([]byte(recentKey), EncodeStrings(next))
	})
	if closeErr := db.Close(); err == nil && closeErr != nil {
		err = closeErr
	}
	if err != nil {
		return nil, fmt.Errorf("saving recent list: %w", err)
	}

	return next, nil
}

// Reset removes the database file. It is used to recover from corruption.
func (r *RecentDB) Reset() error {
	if err := os.Remove(r.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing %s: %w", r.path, err)
	}
	return nil
}

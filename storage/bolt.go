package storage

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"LocalFM/logger"
	"LocalFM/model"

	"go.etcd.io/bbolt"
	"golang.org/x/sync/singleflight"
)

var (
	dataBucket = []byte("blobs")
	typeBucket = []byte("content_types")
)

// BoltStore keeps blobs in a local bbolt file. The file is opened on first
// use; concurrent first calls share a single open.
type BoltStore struct {
	path    string
	timeout time.Duration
	noSync  bool

	group  singleflight.Group
	mu     sync.RWMutex
	db     *bbolt.DB
	opens  int
	closed bool
}

// BoltOption configures a BoltStore.
type BoltOption func(*BoltStore)

// WithOpenTimeout bounds how long Open waits for the file lock.
func WithOpenTimeout(d time.Duration) BoltOption {
	return func(s *BoltStore) { s.timeout = d }
}

// WithNoSync disables fsync per transaction. Tests only.
func WithNoSync(noSync bool) BoltOption {
	return func(s *BoltStore) { s.noSync = noSync }
}

// NewBoltStore returns a store backed by the file at path. Nothing is opened yet.
func NewBoltStore(path string, opts ...BoltOption) *BoltStore {
	s := &BoltStore{path: path, timeout: time.Second}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *BoltStore) handle() (*bbolt.DB, error) {
	s.mu.RLock()
	db, closed := s.db, s.closed
	s.mu.RUnlock()
	if closed {
		return nil, errStoreClosed
	}
	if db != nil {
		return db, nil
	}

	v, err, _ := s.group.Do("open", func() (interface{}, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed {
			return nil, errStoreClosed
		}
		if s.db != nil {
			return s.db, nil
		}
		if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create blob directory: %w", err)
		}
		db, err := bbolt.Open(s.path, 0o600, &bbolt.Options{Timeout: s.timeout, NoSync: s.noSync})
		if err != nil {
			return nil, fmt.Errorf("failed to open blob database %s: %w", s.path, err)
		}
		err = db.Update(func(tx *bbolt.Tx) error {
			for _, name := range [][]byte{dataBucket, typeBucket} {
				if _, err := tx.CreateBucketIfNotExists(name); err != nil {
					return fmt.Errorf("create bucket %s: %w", name, err)
				}
			}
			return nil
		})
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		s.db = db
		s.opens++
		logger.Debug("资源存储已打开", logger.String("path", s.path))
		return db, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*bbolt.DB), nil
}

func (s *BoltStore) Put(ctx context.Context, id model.AssetID, blob Blob) error {
	if err := validKey(id); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	db, err := s.handle()
	if err != nil {
		return err
	}
	key := []byte(id.String())
	contentType := contentTypeOf(blob)
	err = db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(dataBucket).Put(key, blob.Data); err != nil {
			return err
		}
		return tx.Bucket(typeBucket).Put(key, []byte(contentType))
	})
	if err != nil {
		return fmt.Errorf("failed to put blob %s: %w", id, err)
	}
	return nil
}

func (s *BoltStore) Get(ctx context.Context, id model.AssetID) (Blob, bool, error) {
	if err := validKey(id); err != nil {
		return Blob{}, false, err
	}
	if err := ctx.Err(); err != nil {
		return Blob{}, false, err
	}
	db, err := s.handle()
	if err != nil {
		return Blob{}, false, err
	}
	key := []byte(id.String())
	var blob Blob
	found := false
	err = db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(dataBucket).Get(key)
		if data == nil {
			return nil
		}
		found = true
		// Slices returned by bolt are only valid inside the transaction.
		blob.Data = bytes.Clone(data)
		if blob.Data == nil {
			blob.Data = []byte{}
		}
		blob.ContentType = string(tx.Bucket(typeBucket).Get(key))
		return nil
	})
	if err != nil {
		return Blob{}, false, fmt.Errorf("failed to get blob %s: %w", id, err)
	}
	return blob, found, nil
}

func (s *BoltStore) Delete(ctx context.Context, id model.AssetID) error {
	if err := validKey(id); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	db, err := s.handle()
	if err != nil {
		return err
	}
	key := []byte(id.String())
	return db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(dataBucket).Delete(key); err != nil {
			return err
		}
		return tx.Bucket(typeBucket).Delete(key)
	})
}

// List returns every key starting with prefix, in key order.
func (s *BoltStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}
	var objects []ObjectInfo
	err = db.View(func(tx *bbolt.Tx) error {
		types := tx.Bucket(typeBucket)
		c := tx.Bucket(dataBucket).Cursor()
		p := []byte(prefix)
		for k, v := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, v = c.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			objects = append(objects, ObjectInfo{
				Key:         string(k),
				Size:        int64(len(v)),
				ContentType: string(types.Get(k)),
			})
		}
		return nil
	})
	return objects, err
}

// DeletePrefix removes every key starting with prefix in one transaction.
func (s *BoltStore) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	objects, err := s.List(ctx, prefix)
	if err != nil {
		return 0, err
	}
	db, err := s.handle()
	if err != nil {
		return 0, err
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, obj := range objects {
			if err := tx.Bucket(dataBucket).Delete([]byte(obj.Key)); err != nil {
				return err
			}
			if err := tx.Bucket(typeBucket).Delete([]byte(obj.Key)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(objects), nil
}

// Close releases the file. Later calls fail.
func (s *BoltStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

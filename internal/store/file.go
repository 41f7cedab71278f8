package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/sirupsen/logrus"
)

const lockRetryDelay = 50 * time.Millisecond

// File is a KV persisted as a single JSON object on disk. Access is
// serialized across processes with a lock file next to it, and writes replace
// the file atomically. A corrupt file reads as empty and is rewritten by the
// next Set.
type File struct {
	path string
	lock *flock.Flock
	log  logrus.FieldLogger

	mu sync.Mutex // flock does not exclude goroutines sharing one handle
}

// NewFile returns a store persisted at path.
func NewFile(path string, log logrus.FieldLogger) *File {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &File{
		path: path,
		lock: flock.New(path + ".lock"),
		log:  log,
	}
}

// Path returns the JSON file location.
func (f *File) Path() string {
	return f.path
}

func (f *File) Get(ctx context.Context, key string) (string, bool, error) {
	unlock, err := f.acquire(ctx, false)
	if err != nil {
		return "", false, err
	}
	defer unlock()

	m, err := f.read()
	if err != nil {
		return "", false, err
	}
	v, ok := m[key]
	return v, ok, nil
}

func (f *File) Set(ctx context.Context, key, value string) error {
	unlock, err := f.acquire(ctx, true)
	if err != nil {
		return err
	}
	defer unlock()

	m, err := f.read()
	if err != nil {
		return err
	}
	m[key] = value
	return f.write(m)
}

func (f *File) acquire(ctx context.Context, exclusive bool) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return nil, fmt.Errorf("cannot create store dir: %w", err)
	}
	f.mu.Lock()

	var (
		locked bool
		err    error
	)
	if exclusive {
		locked, err = f.lock.TryLockContext(ctx, lockRetryDelay)
	} else {
		locked, err = f.lock.TryRLockContext(ctx, lockRetryDelay)
	}
	if err != nil || !locked {
		f.mu.Unlock()
		if err == nil {
			err = errors.New("lock not acquired")
		}
		return nil, fmt.Errorf("cannot lock store %s: %w", f.path, err)
	}
	return func() {
		_ = f.lock.Unlock()
		f.mu.Unlock()
	}, nil
}

func (f *File) read() (map[string]string, error) {
	b, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("cannot read store %s: %w", f.path, err)
	}
	m := map[string]string{}
	if len(b) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(b, &m); err != nil {
		f.log.WithFields(logrus.Fields{"path": f.path, "error": err}).Warn("store file is corrupt, treating as empty")
		return map[string]string{}, nil
	}
	return m, nil
}

func (f *File) write(m map[string]string) error {
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("cannot create temp file in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("cannot write store: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("cannot sync store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := replaceFile(tmpPath, f.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("cannot replace store %s: %w", f.path, err)
	}
	return nil
}

// Package jsonfile is the default record store: a single JSON document on
// disk holding {"users": [...], "tasks": [...]}.
//
// Every mutation is a full read-modify-write of the file, serialized by an
// in-process mutex and committed with a rename so readers never observe a
// partially written document. Two processes sharing one file can still lose
// updates; run a single instance per file.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Store owns the data file. All access goes through view and update.
type Store struct {
	path string

	// synchronize all access through this
	lock sync.Mutex
}

type document struct {
	Users []userRecord `json:"users"`
	Tasks []taskRecord `json:"tasks"`
}

type userRecord struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Password  string    `json:"password"` // bcrypt hash
	CreatedAt time.Time `json:"createdAt"`
}

type taskRecord struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Completed   bool      `json:"completed"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Open returns a Store backed by path, creating the file with empty
// collections when it does not exist yet.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("jsonfile: empty path")
	}
	s := &Store{path: path}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("jsonfile: create dir: %w", err)
		}
		if err := s.write(&document{}); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, fmt.Errorf("jsonfile: stat: %w", err)
	}

	// Fail fast on a corrupt file instead of on the first request.
	if _, err := s.read(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the data file location.
func (s *Store) Path() string { return s.path }

// Ping reports whether the data file is still readable.
func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := os.Stat(s.path); err != nil {
		return fmt.Errorf("jsonfile: %w", err)
	}
	return nil
}

// Close is a no-op; the file is not held open between calls.
func (s *Store) Close(context.Context) error { return nil }

func (s *Store) view(ctx context.Context, fn func(*document) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.lock.Lock()
	defer s.lock.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	return fn(doc)
}

// update runs fn on a fresh copy of the document and persists it only when
// fn succeeds.
func (s *Store) update(ctx context.Context, fn func(*document) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.lock.Lock()
	defer s.lock.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	if err := fn(doc); err != nil {
		return err
	}
	return s.write(doc)
}

func (s *Store) read() (*document, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("jsonfile: read: %w", err)
	}
	doc := &document{}
	if len(raw) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(raw, doc); err != nil {
		return nil, fmt.Errorf("jsonfile: decode %s: %w", s.path, err)
	}
	return doc, nil
}

func (s *Store) write(doc *document) error {
	if doc.Users == nil {
		doc.Users = []userRecord{}
	}
	if doc.Tasks == nil {
		doc.Tasks = []taskRecord{}
	}
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("jsonfile: encode: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("jsonfile: create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("jsonfile: write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("jsonfile: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("jsonfile: close: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("jsonfile: rename: %w", err)
	}
	return nil
}

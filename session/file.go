package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// FileStore keeps the record as a single JSON document on disk. Writes go
// to a temporary file in the same directory and are renamed into place, so
// the token and user entries always change together.
type FileStore struct {
	path string
	mu   sync.Mutex
}

type fileDocument struct {
	Token *string          `json:"token,omitempty"`
	User  *json.RawMessage `json:"user,omitempty"`
}

// NewFileStore returns a FileStore writing to path. The parent directory is
// created on first Save.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("session: file store requires a path")
	}
	return &FileStore{path: filepath.Clean(path)}, nil
}

// Path returns the file the store writes to.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Save(_ context.Context, rec Record) error {
	if err := checkRecord(rec); err != nil {
		return err
	}
	user, err := EncodeUser(rec.User)
	if err != nil {
		return err
	}
	raw := json.RawMessage(user)
	data, err := json.Marshal(fileDocument{Token: &rec.Token, User: &raw})
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}

func (s *FileStore) Load(_ context.Context) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	var doc fileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	var token string
	if doc.Token != nil {
		token = *doc.Token
	}
	var user []byte
	if doc.User != nil {
		user = *doc.User
	}
	return assemble(token, doc.Token != nil, user, doc.User != nil)
}

func (s *FileStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}

func (s *FileStore) Close() error { return nil }

package persist

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"pkt.systems/pslog"
)

// Store is a small key-value store for client-local documents.
type Store interface {
	Load(name string) ([]byte, bool, error)
	Save(name string, data []byte) error
	Delete(name string) error
	Close() error
}

// FileStore keeps one JSON file per name under a directory.
type FileStore struct {
	dir string
	log pslog.Logger
}

// NewFileStore constructs a file store at the given directory.
func NewFileStore(dir string, logger pslog.Logger) (*FileStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("state directory is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	if logger != nil {
		logger = logger.With("state_dir", dir)
	}
	return &FileStore{dir: dir, log: logger}, nil
}

// Load reads a document. A missing document is not an error.
func (s *FileStore) Load(name string) ([]byte, bool, error) {
	path := s.pathFor(name)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if s.log != nil {
				s.log.Debug("state load miss", "name", name)
			}
			return nil, false, nil
		}
		if s.log != nil {
			s.log.Warn("state load failed", "name", name, "err", err)
		}
		return nil, false, err
	}
	if s.log != nil {
		s.log.Debug("state load ok", "name", name, "bytes", len(data))
	}
	return data, true, nil
}

// Save writes a document atomically through a temp file and rename.
func (s *FileStore) Save(name string, data []byte) error {
	path := s.pathFor(name)
	if err := s.write(path, data); err != nil {
		if s.log != nil {
			s.log.Warn("state save failed", "name", name, "err", err)
		}
		return err
	}
	if s.log != nil {
		s.log.Debug("state save ok", "name", name, "bytes", len(data))
	}
	return nil
}

// Delete removes a document if present.
func (s *FileStore) Delete(name string) error {
	err := os.Remove(s.pathFor(name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Close is a no-op for the file store.
func (s *FileStore) Close() error { return nil }

func (s *FileStore) write(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "state-*.json")
	if err != nil {
		return err
	}
	cleanup := func(err error) error {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		return cleanup(err)
	}
	if err := tmp.Sync(); err != nil {
		return cleanup(err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("rename state file: %w", err)
	}
	return nil
}

func (s *FileStore) pathFor(name string) string {
	return filepath.Join(s.dir, sanitizeName(name)+".json")
}

func sanitizeName(name string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' || r == '.' {
			b.WriteRune(r)
			continue
		}
		b.WriteRune('_')
	}
	out := strings.Trim(b.String(), ".")
	if out == "" {
		return "default"
	}
	return out
}

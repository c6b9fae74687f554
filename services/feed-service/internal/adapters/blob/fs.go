package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/athebyme/gomarket-platform/pkg/interfaces"
	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// FSStore хранилище фидов в файловой системе.
// Запись идет во временный файл рядом с целевым, на Commit файл переименовывается.
type FSStore struct {
	fs afero.Fs
}

// NewFSStore создает хранилище с корнем root поверх fs
func NewFSStore(fs afero.Fs, root string) *FSStore {
	if root != "" {
		fs = afero.NewBasePathFs(fs, root)
	}
	return &FSStore{fs: fs}
}

// NewOsFSStore хранилище на локальном диске
func NewOsFSStore(root string) (*FSStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	return NewFSStore(afero.NewOsFs(), root), nil
}

func cleanPath(p string) (string, error) {
	cleaned := path.Clean("/" + strings.TrimSpace(p))
	if cleaned == "/" {
		return "", fmt.Errorf("invalid file path %q", p)
	}
	return strings.TrimPrefix(cleaned, "/"), nil
}

func (s *FSStore) Create(_ context.Context, p string) (interfaces.BlobWriter, error) {
	target, err := cleanPath(p)
	if err != nil {
		return nil, err
	}

	if dir := path.Dir(target); dir != "." {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	tmp := fmt.Sprintf("%s.%s.tmp", target, uuid.New().String())
	f, err := s.fs.Create(tmp)
	if err != nil {
		return nil, fmt.Errorf("failed to create file %s: %w", tmp, err)
	}

	return &fsWriter{fs: s.fs, file: f, tmp: tmp, target: target}, nil
}

func (s *FSStore) Open(_ context.Context, p string) (io.ReadCloser, error) {
	target, err := cleanPath(p)
	if err != nil {
		return nil, err
	}
	f, err := s.fs.Open(target)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", target, err)
	}
	return f, nil
}

// Exists проверяет наличие файла
func (s *FSStore) Exists(_ context.Context, p string) (bool, error) {
	target, err := cleanPath(p)
	if err != nil {
		return false, err
	}
	return afero.Exists(s.fs, target)
}

type fsWriter struct {
	fs     afero.Fs
	file   afero.File
	tmp    string
	target string

	mu   sync.Mutex
	done bool
}

var errWriterDone = errors.New("blob writer is already finished")

func (w *fsWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done {
		return 0, errWriterDone
	}
	return w.file.Write(p)
}

func (w *fsWriter) Commit() (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done {
		return "", errWriterDone
	}
	w.done = true

	if err := w.file.Sync(); err != nil {
		_ = w.file.Close()
		_ = w.fs.Remove(w.tmp)
		return "", fmt.Errorf("failed to sync %s: %w", w.tmp, err)
	}
	if err := w.file.Close(); err != nil {
		_ = w.fs.Remove(w.tmp)
		return "", fmt.Errorf("failed to close %s: %w", w.tmp, err)
	}
	if err := w.fs.Rename(w.tmp, w.target); err != nil {
		_ = w.fs.Remove(w.tmp)
		return "", fmt.Errorf("failed to publish %s: %w", w.target, err)
	}
	return w.target, nil
}

func (w *fsWriter) Abort(error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done {
		return
	}
	w.done = true
	_ = w.file.Close()
	_ = w.fs.Remove(w.tmp)
}

package tts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var ErrNotFound = errors.New("tts: audio not found")

// Object is one stored audio file.
type Object struct {
	Name    string
	ModTime time.Time
}

// AudioStore holds synthesized audio by name.
type AudioStore interface {
	Exists(ctx context.Context, name string) (bool, error)
	Put(ctx context.Context, name string, data []byte) error
	Open(ctx context.Context, name string) (io.ReadCloser, int64, error)
	List(ctx context.Context) ([]Object, error)
	Remove(ctx context.Context, name string) error
}

// FileStore keeps audio in a local directory.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "screening-tts")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("tts: create cache dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (f *FileStore) path(name string) string { return filepath.Join(f.dir, filepath.Base(name)) }

func (f *FileStore) Exists(ctx context.Context, name string) (bool, error) {
	st, err := os.Stat(f.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return st.Size() > 0, nil
}

// Put writes through a temp file so a reader never sees a partial file.
func (f *FileStore) Put(ctx context.Context, name string, data []byte) error {
	tmp, err := os.CreateTemp(f.dir, ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), f.path(name))
}

func (f *FileStore) Open(ctx context.Context, name string) (io.ReadCloser, int64, error) {
	fh, err := os.Open(f.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, 0, ErrNotFound
	}
	if err != nil {
		return nil, 0, err
	}
	st, err := fh.Stat()
	if err != nil {
		_ = fh.Close()
		return nil, 0, err
	}
	return fh, st.Size(), nil
}

func (f *FileStore) List(ctx context.Context) ([]Object, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, err
	}
	var out []Object
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), filePrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, Object{Name: e.Name(), ModTime: info.ModTime()})
	}
	return out, nil
}

func (f *FileStore) Remove(ctx context.Context, name string) error {
	err := os.Remove(f.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// Touch bumps the modification time so recently played audio survives count
// eviction.
func (f *FileStore) Touch(ctx context.Context, name string, at time.Time) error {
	return os.Chtimes(f.path(name), at, at)
}

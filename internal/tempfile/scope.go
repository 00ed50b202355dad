// Package tempfile scopes the transient files used to hand HTML to the
// renderer. Every path created or registered through a Scope is removed by
// Release, which is safe to call more than once.
package tempfile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

type Scope struct {
	dir string

	mu       sync.Mutex
	paths    []string
	released bool
}

// New returns a scope creating files in dir, or the system temp dir when
// dir is empty.
func New(dir string) *Scope {
	return &Scope{dir: dir}
}

// CreateHTML writes content to a new uniquely named *.html file.
func (s *Scope) CreateHTML(content string) (string, error) {
	f, err := os.CreateTemp(s.dir, "export-*.html")
	if err != nil {
		return "", fmt.Errorf("create temp html: %w", err)
	}
	path := f.Name()
	s.track(path)

	if _, err := io.WriteString(f, content); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write temp html: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close temp html: %w", err)
	}
	return path, nil
}

// Sibling registers and returns path with its extension replaced by ext.
func (s *Scope) Sibling(path, ext string) string {
	sib := strings.TrimSuffix(path, filepath.Ext(path)) + ext
	s.track(sib)
	return sib
}

// Body opens path for streaming. Closing the returned reader closes the file
// and releases the whole scope.
func (s *Scope) Body(path string) (io.ReadCloser, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, err
	}
	return &body{File: f, scope: s}, st.Size(), nil
}

// Paths returns the tracked paths.
func (s *Scope) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.paths...)
}

// Release removes every tracked path. Missing files are not an error.
func (s *Scope) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return nil
	}
	s.released = true

	var errs []error
	for _, p := range s.paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Scope) track(path string) {
	s.mu.Lock()
	s.paths = append(s.paths, path)
	s.mu.Unlock()
}

type body struct {
	*os.File
	scope *Scope
	once  sync.Once
	err   error
}

func (b *body) Close() error {
	b.once.Do(func() {
		b.err = errors.Join(b.File.Close(), b.scope.Release())
	})
	return b.err
}

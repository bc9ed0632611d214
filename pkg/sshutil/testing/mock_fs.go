// Package testing provides SSH mock utilities for testing.
// This package simulates a remote machine with an in-memory filesystem.
package testing

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// mockFile is a file with content and permission bits.
type mockFile struct {
	data []byte
	mode os.FileMode
}

// MockFS simulates an in-memory remote filesystem. It tracks permission
// bits so tests can assert on chmod behavior, and expands a leading ~ the
// way a remote shell would.
type MockFS struct {
	mu    sync.RWMutex
	home  string
	files map[string]*mockFile
	dirs  map[string]os.FileMode
}

// NewMockFS creates a mock filesystem with an existing home directory.
func NewMockFS() *MockFS {
	home := "/home/dev"
	return &MockFS{
		home:  home,
		files: make(map[string]*mockFile),
		dirs:  map[string]os.FileMode{home: 0755},
	}
}

// SetHome changes the home directory used for ~ expansion.
func (fs *MockFS) SetHome(home string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.home = filepath.Clean(home)
	if _, ok := fs.dirs[fs.home]; !ok {
		fs.dirs[fs.home] = 0755
	}
}

// Home returns the home directory used for ~ expansion.
func (fs *MockFS) Home() string {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.home
}

// normalize expands a leading ~ and cleans the path.
// Callers must hold fs.mu.
func (fs *MockFS) normalize(path string) string {
	if path == "~" {
		return fs.home
	}
	if strings.HasPrefix(path, "~/") {
		path = fs.home + "/" + strings.TrimPrefix(path, "~/")
	}
	return filepath.Clean(path)
}

// Mkdir creates a directory with mode 0755. Returns an error if the path
// already exists, mimicking `mkdir` without -p.
func (fs *MockFS) Mkdir(path string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	path = fs.normalize(path)

	if _, exists := fs.dirs[path]; exists {
		return errors.New("directory already exists")
	}
	if _, exists := fs.files[path]; exists {
		return errors.New("file exists at path")
	}

	fs.dirs[path] = 0755
	return nil
}

// MkdirAll creates a directory and all parent directories with mode 0755.
// Existing directories keep their mode, mimicking `mkdir -p`.
func (fs *MockFS) MkdirAll(path string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	path = fs.normalize(path)

	parts := strings.Split(path, "/")
	current := ""
	for _, part := range parts {
		if part == "" {
			current = "/"
			continue
		}
		if current == "/" {
			current = "/" + part
		} else {
			current = current + "/" + part
		}
		if _, exists := fs.dirs[current]; !exists {
			fs.dirs[current] = 0755
		}
	}
	return nil
}

// WriteFile writes content to a file, creating parent directories as
// needed. New files get mode 0644; existing files keep their mode, the
// way a shell > redirect does.
func (fs *MockFS) WriteFile(path string, content []byte) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	path = fs.normalize(path)
	fs.ensureParent(path)

	if existing, ok := fs.files[path]; ok {
		existing.data = content
		return nil
	}
	fs.files[path] = &mockFile{data: content, mode: 0644}
	return nil
}

// AppendFile appends content to a file, creating it with mode 0644 if it
// does not exist, the way a shell >> redirect does.
func (fs *MockFS) AppendFile(path string, content []byte) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	path = fs.normalize(path)
	fs.ensureParent(path)

	if existing, ok := fs.files[path]; ok {
		existing.data = append(existing.data, content...)
		return nil
	}
	fs.files[path] = &mockFile{data: append([]byte(nil), content...), mode: 0644}
	return nil
}

// ensureParent records the parent directory of path.
// Callers must hold fs.mu.
func (fs *MockFS) ensureParent(path string) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "/" {
		if _, exists := fs.dirs[dir]; !exists {
			fs.dirs[dir] = 0755
		}
	}
}

// ReadFile reads the content of a file. Returns an error if the file
// doesn't exist.
func (fs *MockFS) ReadFile(path string) ([]byte, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	path = fs.normalize(path)

	f, exists := fs.files[path]
	if !exists {
		return nil, errors.New("file not found")
	}
	return f.data, nil
}

// Remove removes a file or directory and all its contents.
// This mimics the behavior of `rm -rf`.
func (fs *MockFS) Remove(path string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	path = fs.normalize(path)

	delete(fs.files, path)
	delete(fs.dirs, path)

	prefix := path + "/"
	for p := range fs.files {
		if strings.HasPrefix(p, prefix) {
			delete(fs.files, p)
		}
	}
	for p := range fs.dirs {
		if strings.HasPrefix(p, prefix) {
			delete(fs.dirs, p)
		}
	}

	return nil
}

// Rename moves a file to a new path, keeping its content and mode. The
// destination is replaced if it exists, mimicking `mv -f`.
func (fs *MockFS) Rename(src, dst string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	src = fs.normalize(src)
	dst = fs.normalize(dst)

	f, exists := fs.files[src]
	if !exists {
		return errors.New("file not found")
	}

	fs.ensureParent(dst)
	fs.files[dst] = f
	delete(fs.files, src)
	return nil
}

// Chmod changes the mode of a file or directory.
func (fs *MockFS) Chmod(path string, mode os.FileMode) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	path = fs.normalize(path)

	if f, exists := fs.files[path]; exists {
		f.mode = mode
		return nil
	}
	if _, exists := fs.dirs[path]; exists {
		fs.dirs[path] = mode
		return nil
	}
	return errors.New("no such file or directory")
}

// Mode returns the permission bits of a file or directory, and whether
// the path exists.
func (fs *MockFS) Mode(path string) (os.FileMode, bool) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	path = fs.normalize(path)

	if f, exists := fs.files[path]; exists {
		return f.mode, true
	}
	if mode, exists := fs.dirs[path]; exists {
		return mode, true
	}
	return 0, false
}

// Exists returns true if the path exists (file or directory).
func (fs *MockFS) Exists(path string) bool {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	path = fs.normalize(path)

	if _, exists := fs.dirs[path]; exists {
		return true
	}
	if _, exists := fs.files[path]; exists {
		return true
	}
	return false
}

// IsDir returns true if the path exists and is a directory.
func (fs *MockFS) IsDir(path string) bool {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	path = fs.normalize(path)
	_, exists := fs.dirs[path]
	return exists
}

// IsFile returns true if the path exists and is a file.
func (fs *MockFS) IsFile(path string) bool {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	path = fs.normalize(path)
	_, exists := fs.files[path]
	return exists
}

package mock

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ZacxDev/lightrunner/fs"
	"github.com/bmatcuk/doublestar/v4"
)

type MockFile struct {
	*bytes.Buffer
	ReadOnly bool
	ModTime  time.Time
}

func (m *MockFile) Close() error {
	return nil
}

func (m *MockFile) Write(p []byte) (n int, err error) {
	if m.ReadOnly {
		return 0, os.ErrPermission
	}
	return m.Buffer.Write(p)
}

type mockFileInfo struct {
	name    string
	mode    os.FileMode
	size    int64
	modTime time.Time
}

func (m *mockFileInfo) Name() string       { return m.name }
func (m *mockFileInfo) Size() int64        { return m.size }
func (m *mockFileInfo) Mode() os.FileMode  { return m.mode }
func (m *mockFileInfo) ModTime() time.Time { return m.modTime }
func (m *mockFileInfo) IsDir() bool        { return m.mode.IsDir() }
func (m *mockFileInfo) Sys() interface{}   { return nil }

// MockFileSystem implements the FileSystem interface for testing
type MockFileSystem struct {
	Files    map[string]*MockFile
	Dirs     map[string]bool
	fileMode map[string]os.FileMode
	mu       sync.Mutex

	// Now supplies modification times for files written through the mock.
	Now func() time.Time
}

func NewMockFileSystem() *MockFileSystem {
	return &MockFileSystem{
		Files:    make(map[string]*MockFile),
		Dirs:     make(map[string]bool),
		fileMode: make(map[string]os.FileMode),
		Now:      time.Now,
	}
}

// AddFile seeds a file with an explicit modification time.
func (m *MockFileSystem) AddFile(name string, data []byte, modTime time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Files[name] = &MockFile{Buffer: bytes.NewBuffer(data), ModTime: modTime}
	m.fileMode[name] = 0644
}

func (m *MockFileSystem) ReadFile(filename string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if file, ok := m.Files[filename]; ok {
		if file.ReadOnly {
			return nil, os.ErrPermission
		}
		return append([]byte(nil), file.Bytes()...), nil
	}
	return nil, os.ErrNotExist
}

func (m *MockFileSystem) WriteFile(filename string, data []byte, perm os.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if file, ok := m.Files[filename]; ok && file.ReadOnly {
		return os.ErrPermission
	}
	m.Files[filename] = &MockFile{Buffer: bytes.NewBuffer(append([]byte(nil), data...)), ModTime: m.Now()}
	m.fileMode[filename] = perm

	return nil
}

func (m *MockFileSystem) MkdirAll(path string, perm os.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for p := filepath.Clean(path); ; p = filepath.Dir(p) {
		m.Dirs[p] = true
		if parent := filepath.Dir(p); parent == p {
			break
		}
	}
	return nil
}

func (m *MockFileSystem) Stat(name string) (os.FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if file, ok := m.Files[name]; ok {
		return &mockFileInfo{
			name:    filepath.Base(name),
			mode:    m.fileMode[name],
			size:    int64(file.Len()),
			modTime: file.ModTime,
		}, nil
	}
	if m.Dirs[filepath.Clean(name)] {
		return &mockFileInfo{name: filepath.Base(name), mode: os.ModeDir | 0755}, nil
	}
	return nil, os.ErrNotExist
}

func (m *MockFileSystem) Create(name string) (fs.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if file, ok := m.Files[name]; ok && file.ReadOnly {
		return nil, os.ErrPermission
	}
	file := &MockFile{Buffer: bytes.NewBuffer(nil), ModTime: m.Now()}
	m.Files[name] = file
	m.fileMode[name] = 0666
	return file, nil
}

func (m *MockFileSystem) OpenAppend(name string) (fs.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if file, ok := m.Files[name]; ok {
		if file.ReadOnly {
			return nil, os.ErrPermission
		}
		return file, nil
	}
	file := &MockFile{Buffer: bytes.NewBuffer(nil), ModTime: m.Now()}
	m.Files[name] = file
	m.fileMode[name] = 0644
	return file, nil
}

func (m *MockFileSystem) Remove(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Files[name]; !ok {
		return os.ErrNotExist
	}
	delete(m.Files, name)
	delete(m.fileMode, name)
	return nil
}

func (m *MockFileSystem) Rename(oldpath, newpath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if data, ok := m.Files[oldpath]; ok {
		if target, exists := m.Files[newpath]; exists && target.ReadOnly {
			return os.ErrPermission
		}
		m.Files[newpath] = data
		m.fileMode[newpath] = m.fileMode[oldpath]
		delete(m.Files, oldpath)
		delete(m.fileMode, oldpath)
		return nil
	}
	return os.ErrNotExist
}

func (m *MockFileSystem) DoublestarGlob(pattern string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matches []string
	for filename := range m.Files {
		matched, err := doublestar.Match(filepath.ToSlash(pattern), filepath.ToSlash(filename))
		if err != nil {
			return nil, err
		}
		if matched {
			matches = append(matches, filename)
		}
	}
	return matches, nil
}

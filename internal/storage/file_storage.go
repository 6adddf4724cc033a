package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	errpkg "github.com/veranemoloko/bookvault/internal/errors"
)

// FileStorage provides methods to manage files below a root directory.
// All names are slash-separated paths relative to the root.
type FileStorage struct {
	dir string
}

// NewFileStorage creates a new FileStorage instance with the given directory.
func NewFileStorage(dir string) *FileStorage {
	return &FileStorage{dir: filepath.Clean(dir)}
}

// Root returns the storage directory.
func (s *FileStorage) Root() string {
	return s.dir
}

// Path resolves a relative name to a path inside the storage directory.
// Names that would escape the directory are rejected.
func (s *FileStorage) Path(name string) (string, error) {
	local := filepath.FromSlash(name)
	if !filepath.IsLocal(local) {
		return "", errpkg.Invalid("path %q escapes storage root", name)
	}
	return filepath.Join(s.dir, local), nil
}

// FileExists checks whether a regular file exists in the storage directory.
func (s *FileStorage) FileExists(name string) bool {
	p, err := s.Path(name)
	if err != nil {
		return false
	}
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}

// MkdirAll creates a directory, and any parents, below the root.
func (s *FileStorage) MkdirAll(name string) (string, error) {
	p, err := s.Path(name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(p, 0o755); err != nil {
		return "", fmt.Errorf("create directory: %w", err)
	}
	return p, nil
}

// WriteFile writes data to name, creating parent directories as needed.
// The file is replaced atomically through a temporary file and rename.
func (s *FileStorage) WriteFile(name string, data []byte) error {
	p, err := s.Path(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("create parent directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(p), "."+filepath.Base(p)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temporary file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temporary file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temporary file: %w", err)
	}
	if err := os.Rename(tmpName, p); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temporary file: %w", err)
	}
	return nil
}

// ReadFile returns the content of name. A missing file yields a NotFoundError.
func (s *FileStorage) ReadFile(name string) ([]byte, error) {
	p, err := s.Path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if os.IsNotExist(err) {
		return nil, errpkg.NotFound("file", name)
	}
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return data, nil
}

// WriteJSON marshals v with indentation and writes it to name.
func (s *FileStorage) WriteJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	return s.WriteFile(name, data)
}

// ReadJSON reads name and unmarshals it into v.
func (s *FileStorage) ReadJSON(name string, v any) error {
	data, err := s.ReadFile(name)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal %s: %w", name, err)
	}
	return nil
}

// ListDirs returns the sorted names of the directories directly below the root.
func (s *FileStorage) ListDirs() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read dir: %w", err)
	}

	var dirs []string
	for _, entry := range entries {
		if entry.IsDir() {
			dirs = append(dirs, entry.Name())
		}
	}
	sort.Strings(dirs)
	return dirs, nil
}

package filestore

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrUnsafePath is returned when a requested path would escape the
	// store root.
	ErrUnsafePath = errors.New("unsafe file path")

	// ErrTooLarge is returned by Put when the payload exceeds the size limit.
	ErrTooLarge = errors.New("file exceeds maximum size")
)

var safeComponent = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// Store persists uploaded blobs under a single root directory. Writes go
// through a temp file and rename so a reader never observes a partial file
// and a crash never leaves a truncated blob at its final path.
type Store struct {
	root     string
	maxBytes int64
}

// NewStore returns a store rooted at root. maxBytes of 0 disables the
// size limit.
func NewStore(root string, maxBytes int64) *Store {
	return &Store{root: root, maxBytes: maxBytes}
}

func (s *Store) Root() string {
	return s.root
}

// VideoChunkPath builds the deterministic relative path for a video chunk.
// The same chunk identity always maps to the same path, which is what makes
// re-uploads detectable.
func (s *Store) VideoChunkPath(robotID string, sessionID uuid.UUID, cameraKey string, start, end float64, ext string) (string, error) {
	if !safeComponent.MatchString(robotID) {
		return "", fmt.Errorf("%w: robot id %q", ErrUnsafePath, robotID)
	}
	if !safeComponent.MatchString(cameraKey) {
		return "", fmt.Errorf("%w: camera key %q", ErrUnsafePath, cameraKey)
	}
	name := fmt.Sprintf("%s_%s_%s%s",
		cameraKey,
		strconv.FormatFloat(start, 'f', -1, 64),
		strconv.FormatFloat(end, 'f', -1, 64),
		ext,
	)
	return filepath.Join("videos", robotID, sessionID.String(), name), nil
}

// BackupPath builds the relative path for a synced dataset file, preserving
// the client's relative layout under backup/{dataset}/.
func (s *Store) BackupPath(dataset, relPath string) (string, error) {
	if !safeComponent.MatchString(dataset) {
		return "", fmt.Errorf("%w: dataset %q", ErrUnsafePath, dataset)
	}
	cleaned := filepath.Clean(filepath.FromSlash(relPath))
	if cleaned == "." || filepath.IsAbs(cleaned) || strings.HasPrefix(cleaned, "..") {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, relPath)
	}
	return filepath.Join("backup", dataset, cleaned), nil
}

// Exists reports whether a blob already sits at the relative path.
func (s *Store) Exists(relPath string) (bool, error) {
	abs, err := s.abs(relPath)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(abs); err == nil {
		return true, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("stat %s: %w", abs, err)
	}
	return false, nil
}

// Put streams content to the relative path. It returns the byte count
// written. If the payload exceeds the configured limit the temp file is
// discarded and ErrTooLarge returned; nothing appears at the final path.
func (s *Store) Put(relPath string, content io.Reader) (int64, error) {
	abs, err := s.abs(relPath)
	if err != nil {
		return 0, err
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(abs)+".tmp-*")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	src := content
	if s.maxBytes > 0 {
		// Read one byte past the limit so overflow is detectable
		src = io.LimitReader(content, s.maxBytes+1)
	}
	n, err := io.Copy(tmp, src)
	if err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return 0, fmt.Errorf("write temp file: %w", err)
	}
	if s.maxBytes > 0 && n > s.maxBytes {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return 0, ErrTooLarge
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return 0, fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, abs); err != nil {
		_ = os.Remove(tmpPath)
		return 0, fmt.Errorf("finalize %s: %w", abs, err)
	}
	return n, nil
}

// Remove deletes the blob at the relative path, used to roll back a write
// whose metadata could not be recorded.
func (s *Store) Remove(relPath string) error {
	abs, err := s.abs(relPath)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", abs, err)
	}
	return nil
}

// Usage walks the store and returns the total bytes and file count.
func (s *Store) Usage() (int64, int64, error) {
	var bytes, files int64
	err := filepath.Walk(s.root, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if !info.IsDir() {
			bytes += info.Size()
			files++
		}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return 0, 0, fmt.Errorf("walk storage root: %w", err)
	}
	return bytes, files, nil
}

func (s *Store) abs(relPath string) (string, error) {
	cleaned := filepath.Clean(relPath)
	if filepath.IsAbs(cleaned) || strings.HasPrefix(cleaned, "..") {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, relPath)
	}
	return filepath.Join(s.root, cleaned), nil
}

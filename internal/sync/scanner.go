// Package sync implements the sidecar synchronizer that mirrors locally
// recorded dataset files to the ingestion server. Upload completion is
// tracked with marker files next to the data, so state survives restarts
// and the worst failure mode is a duplicate upload the server overwrites
// with identical content.
package sync

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// MarkerSuffix is appended to a file path to record completed upload
const MarkerSuffix = ".uploaded"

// minFileAge guards against uploading a file the recorder is still writing
const minFileAge = 2 * time.Second

// Candidate is one discovered file that has not been confirmed uploaded
type Candidate struct {
	Dataset      string
	RelativePath string
	AbsPath      string
	Size         int64
}

// Scanner walks the dataset output directory for files awaiting upload.
// The expected layout is {root}/{dataset}/videos/**/*.mp4 for camera
// recordings and {root}/{dataset}/data/*.parquet for joint data.
type Scanner struct {
	root string
	now  func() time.Time
}

// NewScanner creates a scanner rooted at the dataset output directory
func NewScanner(root string) *Scanner {
	return &Scanner{root: root, now: time.Now}
}

// Scan returns all files that have no completion marker, oldest first.
// Files modified too recently are skipped and picked up on a later pass.
func (s *Scanner) Scan() ([]Candidate, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("read watch directory %s: %w", s.root, err)
	}

	var candidates []Candidate
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dataset := entry.Name()
		datasetRoot := filepath.Join(s.root, dataset)

		found, err := s.scanDataset(dataset, datasetRoot)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, found...)
	}
	return candidates, nil
}

func (s *Scanner) scanDataset(dataset, datasetRoot string) ([]Candidate, error) {
	var candidates []Candidate

	collect := func(dir string, accept func(string) bool) error {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			return nil
		}
		return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				if os.IsNotExist(err) {
					return nil
				}
				return err
			}
			if info.IsDir() || !accept(info.Name()) {
				return nil
			}
			if s.Confirmed(path) {
				return nil
			}
			if s.now().Sub(info.ModTime()) < minFileAge {
				return nil
			}
			rel, err := filepath.Rel(datasetRoot, path)
			if err != nil {
				return err
			}
			candidates = append(candidates, Candidate{
				Dataset:      dataset,
				RelativePath: filepath.ToSlash(rel),
				AbsPath:      path,
				Size:         info.Size(),
			})
			return nil
		})
	}

	isVideo := func(name string) bool {
		return strings.HasSuffix(name, ".mp4")
	}
	isParquet := func(name string) bool {
		return strings.HasSuffix(name, ".parquet")
	}

	if err := collect(filepath.Join(datasetRoot, "videos"), isVideo); err != nil {
		return nil, fmt.Errorf("scan videos of %s: %w", dataset, err)
	}
	if err := collect(filepath.Join(datasetRoot, "data"), isParquet); err != nil {
		return nil, fmt.Errorf("scan data of %s: %w", dataset, err)
	}
	return candidates, nil
}

// Confirmed reports whether the completion marker exists for a file
func (s *Scanner) Confirmed(path string) bool {
	_, err := os.Stat(path + MarkerSuffix)
	return err == nil
}

// MarkConfirmed writes the completion marker for an uploaded file. The
// marker records the confirmation time for operators; its existence alone
// carries the state.
func (s *Scanner) MarkConfirmed(path string) error {
	marker := path + MarkerSuffix
	content := fmt.Sprintf("uploaded %s\n", s.now().UTC().Format(time.RFC3339))
	if err := os.WriteFile(marker, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write marker %s: %w", marker, err)
	}
	return nil
}

package sync

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Syncer drives the synchronization loop. Filesystem events trigger a scan
// promptly; a polling ticker backstops them, since watch registrations can
// miss directories created between scan and watch setup.
type Syncer struct {
	scanner      *Scanner
	uploader     *Uploader
	pollInterval time.Duration
	logger       *slog.Logger

	// kick coalesces bursts of filesystem events into one pending scan
	kick chan struct{}
}

// NewSyncer creates a syncer from its parts
func NewSyncer(scanner *Scanner, uploader *Uploader, pollInterval time.Duration, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{
		scanner:      scanner,
		uploader:     uploader,
		pollInterval: pollInterval,
		logger:       logger,
		kick:         make(chan struct{}, 1),
	}
}

// Run blocks until the context is cancelled, scanning and uploading in a
// single goroutine so one file is in flight at a time.
func (s *Syncer) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		// Degrade to polling only
		s.logger.Warn("filesystem watcher unavailable, relying on polling", "error", err)
	} else {
		defer watcher.Close()
		s.watchTree(watcher)
		go s.forwardEvents(ctx, watcher)
	}

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	// Catch up on files recorded while the syncer was down
	s.syncOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.syncOnce(ctx)
		case <-s.kick:
			s.syncOnce(ctx)
			if watcher != nil {
				// New datasets bring new directories to watch
				s.watchTree(watcher)
			}
		}
	}
}

// SyncOnce runs a single scan-and-upload pass, returning the number of
// files confirmed. Used by Run and directly in tests.
func (s *Syncer) SyncOnce(ctx context.Context) (int, error) {
	candidates, err := s.scanner.Scan()
	if err != nil {
		return 0, err
	}

	confirmed := 0
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return confirmed, err
		}
		s.logger.Info("uploading", "dataset", c.Dataset, "path", c.RelativePath, "size", c.Size)
		if err := s.uploader.Upload(ctx, c); err != nil {
			// Leave the marker absent; the next pass retries
			s.logger.Warn("upload failed", "dataset", c.Dataset, "path", c.RelativePath, "error", err)
			continue
		}
		if err := s.scanner.MarkConfirmed(c.AbsPath); err != nil {
			// The server has the file; without the marker it will be
			// re-uploaded, which the server tolerates
			s.logger.Warn("marker write failed", "path", c.AbsPath, "error", err)
			continue
		}
		confirmed++
		s.logger.Info("upload confirmed", "dataset", c.Dataset, "path", c.RelativePath)
	}
	return confirmed, nil
}

func (s *Syncer) syncOnce(ctx context.Context) {
	if _, err := s.SyncOnce(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("sync pass failed", "error", err)
	}
}

func (s *Syncer) forwardEvents(ctx context.Context, watcher *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if strings.HasSuffix(event.Name, MarkerSuffix) {
				continue
			}
			select {
			case s.kick <- struct{}{}:
			default:
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("watcher error", "error", err)
		}
	}
}

// watchTree registers the root and every directory beneath it. fsnotify
// does not watch recursively, so this runs again whenever a scan is kicked.
func (s *Syncer) watchTree(watcher *fsnotify.Watcher) {
	root := s.scanner.root
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() {
			if err := watcher.Add(path); err != nil {
				return fmt.Errorf("watch %s: %w", path, err)
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("watch registration incomplete", "error", err)
	}
}

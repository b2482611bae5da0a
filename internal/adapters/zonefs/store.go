// Package zonefs publishes rendered zones to the directory read by the
// nameserver.
package zonefs

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/poyrazK/zonewriter/internal/core/domain"
)

const (
	zoneSuffix   = ".db"
	zoneFileMode = 0o755
	dirMode      = 0o755
	snapshotMode = 0o644
)

// Store writes <apex>.db files with a temp-file + rename protocol and keeps the
// reconciliation snapshot next to the directory as <dir>.json.
type Store struct {
	dir          string
	snapshotPath string
	logger       *slog.Logger
	mu           sync.Mutex

	// rename is swapped in tests to simulate a crash before publish.
	rename func(oldpath, newpath string) error
}

// NewStore creates a Store rooted at dir.
func NewStore(dir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	clean := filepath.Clean(dir)
	return &Store{
		dir:          clean,
		snapshotPath: clean + ".json",
		logger:       logger,
		rename:       os.Rename,
	}
}

func (s *Store) Dir() string { return s.dir }

func (s *Store) SnapshotPath() string { return s.snapshotPath }

// ZonePath returns the final path of the zone file for apex.
func (s *Store) ZonePath(apex string) string {
	return filepath.Join(s.dir, apex+zoneSuffix)
}

// Prepare creates the zone directory if needed, makes it world readable,
// checks both it and the snapshot location are writable and clears snapshot
// temp files left by a crash.
func (s *Store) Prepare() error {
	if err := os.MkdirAll(s.dir, dirMode); err != nil {
		return fmt.Errorf("%w: create zone dir %s: %w", domain.ErrInvalidConfig, s.dir, err)
	}
	if err := os.Chmod(s.dir, dirMode); err != nil {
		return fmt.Errorf("%w: chmod zone dir %s: %w", domain.ErrInvalidConfig, s.dir, err)
	}
	for _, dir := range []string{s.dir, filepath.Dir(s.snapshotPath)} {
		if err := checkWritable(dir); err != nil {
			return fmt.Errorf("%w: %s is not writable: %w", domain.ErrInvalidConfig, dir, err)
		}
	}
	s.removeSnapshotTemps()
	return nil
}

// removeSnapshotTemps deletes .<dir>.json.tmp-* files next to the snapshot.
// Only that pattern is touched; the parent directory is shared.
func (s *Store) removeSnapshotTemps() {
	parent, name := filepath.Split(s.snapshotPath)
	parent = filepath.Clean(parent)
	entries, err := os.ReadDir(parent)
	if err != nil {
		s.logger.Warn("failed to list snapshot directory", "dir", parent, "error", err)
		return
	}
	prefix := tempPrefix(name)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}
		path := filepath.Join(parent, entry.Name())
		if errRm := os.Remove(path); errRm != nil && !errors.Is(errRm, fs.ErrNotExist) {
			s.logger.Warn("failed to remove leftover snapshot temp file", "file", path, "error", errRm)
			continue
		}
		s.logger.Info("removed leftover snapshot temp file", "file", path)
	}
}

// WriteZone atomically replaces the zone file for apex. The file only becomes
// visible under its final name once fully written.
func (s *Store) WriteZone(apex string, content []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writeAtomic(s.dir, apex+zoneSuffix, content, zoneFileMode); err != nil {
		return fmt.Errorf("%w: zone %s: %w", domain.ErrWriteFailure, apex, err)
	}
	return nil
}

// ReadZone returns the current zone file for apex, or nil when it does not
// exist.
func (s *Store) ReadZone(apex string) ([]byte, error) {
	data, err := os.ReadFile(s.ZonePath(apex))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read zone %s: %w", apex, err)
	}
	return data, nil
}

// RemoveStale deletes every zone file whose apex is not in keep, plus temp
// files left behind by an interrupted write. Files that are already gone are
// ignored. It returns the apexes whose zones were removed.
func (s *Store) RemoveStale(keep []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: list %s: %w", domain.ErrWriteFailure, s.dir, err)
	}

	keepSet := make(map[string]struct{}, len(keep))
	for _, apex := range keep {
		keepSet[apex+zoneSuffix] = struct{}{}
	}

	var removed []string
	var result *multierror.Error
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			continue
		}

		switch {
		case isTempName(name):
			if errRm := os.Remove(filepath.Join(s.dir, name)); errRm != nil && !errors.Is(errRm, fs.ErrNotExist) {
				s.logger.Warn("failed to remove leftover temp file", "file", name, "error", errRm)
			}
		case strings.HasSuffix(name, zoneSuffix):
			if _, ok := keepSet[name]; ok {
				continue
			}
			errRm := os.Remove(filepath.Join(s.dir, name))
			if errRm != nil && !errors.Is(errRm, fs.ErrNotExist) {
				result = multierror.Append(result, errRm)
				continue
			}
			removed = append(removed, strings.TrimSuffix(name, zoneSuffix))
			s.logger.Info("removed stale zone", "file", name)
		}
	}

	sort.Strings(removed)
	if err := result.ErrorOrNil(); err != nil {
		return removed, fmt.Errorf("%w: remove stale zones: %w", domain.ErrWriteFailure, err)
	}
	return removed, nil
}

// LoadSnapshot returns the persisted canonical snapshot, or nil when none has
// been written yet.
func (s *Store) LoadSnapshot() ([]byte, error) {
	data, err := os.ReadFile(s.snapshotPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return data, nil
}

// SaveSnapshot atomically replaces the snapshot sidecar.
func (s *Store) SaveSnapshot(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir, name := filepath.Split(s.snapshotPath)
	if err := s.writeAtomic(filepath.Clean(dir), name, data, snapshotMode); err != nil {
		return fmt.Errorf("%w: snapshot: %w", domain.ErrWriteFailure, err)
	}
	return nil
}

// writeAtomic writes data to a temp file in dir (same filesystem as the
// target) and renames it to name. The temp file is removed on any failure.
func (s *Store) writeAtomic(dir, name string, data []byte, mode os.FileMode) error {
	tmp, err := os.CreateTemp(dir, tempPrefix(name))
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()

	publish := func() error {
		if _, err := tmp.Write(data); err != nil {
			_ = tmp.Close()
			return fmt.Errorf("write temp: %w", err)
		}
		if err := tmp.Close(); err != nil {
			return fmt.Errorf("close temp: %w", err)
		}
		if err := os.Chmod(tmpName, mode); err != nil {
			return fmt.Errorf("chmod temp: %w", err)
		}
		if err := s.rename(tmpName, filepath.Join(dir, name)); err != nil {
			return fmt.Errorf("rename: %w", err)
		}
		return nil
	}

	if err := publish(); err != nil {
		if errRm := os.Remove(tmpName); errRm != nil && !errors.Is(errRm, fs.ErrNotExist) {
			s.logger.Warn("failed to remove temp file", "file", tmpName, "error", errRm)
		}
		return err
	}
	return nil
}

// Temp files are hidden and never end in .db, so readers globbing *.db and
// the stale sweep never mistake them for zones.
func tempPrefix(name string) string {
	return "." + name + ".tmp-"
}

func isTempName(name string) bool {
	return strings.HasPrefix(name, ".") && strings.Contains(name, zoneSuffix+".tmp-")
}

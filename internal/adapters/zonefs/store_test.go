package zonefs

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/poyrazK/zonewriter/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore(filepath.Join(t.TempDir(), "zones"), nil)
	require.NoError(t, s.Prepare())
	return s
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func TestStore_Paths(t *testing.T) {
	s := NewStore("/var/lib/zones/", nil)
	assert.Equal(t, "/var/lib/zones", s.Dir())
	assert.Equal(t, "/var/lib/zones.json", s.SnapshotPath())
	assert.Equal(t, "/var/lib/zones/example.com.db", s.ZonePath("example.com"))
}

func TestStore_Prepare(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "zones")
	s := NewStore(dir, nil)
	require.NoError(t, s.Prepare())

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
}

func TestStore_PrepareRemovesSnapshotTempFiles(t *testing.T) {
	parent := t.TempDir()
	leftover := filepath.Join(parent, ".zones.json.tmp-4242")
	unrelated := filepath.Join(parent, ".other.json.tmp-1")
	require.NoError(t, os.WriteFile(leftover, []byte("{"), 0o644))
	require.NoError(t, os.WriteFile(unrelated, []byte("x"), 0o644))

	s := NewStore(filepath.Join(parent, "zones"), nil)
	require.NoError(t, s.Prepare())

	assert.NoFileExists(t, leftover)
	assert.FileExists(t, unrelated)
}

func TestStore_PrepareFailsOnFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zones")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	err := NewStore(path, nil).Prepare()
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidConfig))
}

func TestStore_WriteZone(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.WriteZone("example.com", []byte("first\n")))
	require.NoError(t, s.WriteZone("example.com", []byte("second\n")))

	data, err := os.ReadFile(s.ZonePath("example.com"))
	require.NoError(t, err)
	assert.Equal(t, "second\n", string(data))

	info, err := os.Stat(s.ZonePath("example.com"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())

	// No temp files remain after successful writes.
	assert.Equal(t, []string{"example.com.db"}, listDir(t, s.Dir()))
}

func TestStore_ReadZone(t *testing.T) {
	s := newTestStore(t)

	data, err := s.ReadZone("example.com")
	require.NoError(t, err)
	assert.Nil(t, data)

	require.NoError(t, s.WriteZone("example.com", []byte("zone\n")))
	data, err = s.ReadZone("example.com")
	require.NoError(t, err)
	assert.Equal(t, "zone\n", string(data))
}

func TestStore_WriteZoneFailedRenameKeepsOldContent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.WriteZone("example.com", []byte("good\n")))

	s.rename = func(_, _ string) error { return errors.New("simulated crash") }
	err := s.WriteZone("example.com", []byte("partial"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrWriteFailure))

	data, err := os.ReadFile(s.ZonePath("example.com"))
	require.NoError(t, err)
	assert.Equal(t, "good\n", string(data))
	assert.Equal(t, []string{"example.com.db"}, listDir(t, s.Dir()))
}

func TestStore_WriteZoneFailedRenameNeverPublishes(t *testing.T) {
	s := newTestStore(t)
	s.rename = func(_, _ string) error { return errors.New("simulated crash") }

	require.Error(t, s.WriteZone("new.org", []byte("$ORIGIN new.org.\n")))
	_, err := os.Stat(s.ZonePath("new.org"))
	assert.True(t, os.IsNotExist(err))
	assert.Empty(t, listDir(t, s.Dir()))
}

func TestStore_WriteZoneMissingDir(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "missing"), nil)
	err := s.WriteZone("example.com", []byte("x"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrWriteFailure))
}

func TestStore_RemoveStale(t *testing.T) {
	s := newTestStore(t)
	for _, apex := range []string{"keep.com", "gone.net", "old.org"} {
		require.NoError(t, s.WriteZone(apex, []byte(apex)))
	}
	// Unrelated files and leftover temp files from a crash.
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "README"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), ".keep.com.db.tmp-123"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(s.Dir(), "dir.db"), 0o755))

	removed, err := s.RemoveStale([]string{"keep.com"})
	require.NoError(t, err)
	assert.Equal(t, []string{"gone.net", "old.org"}, removed)
	assert.Equal(t, []string{"README", "dir.db", "keep.com.db"}, listDir(t, s.Dir()))

	// Idempotent.
	removed, err = s.RemoveStale([]string{"keep.com"})
	require.NoError(t, err)
	assert.Empty(t, removed)
}

func TestStore_RemoveStaleMissingDir(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "missing"), nil)
	_, err := s.RemoveStale(nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrWriteFailure))
}

func TestStore_Snapshot(t *testing.T) {
	s := newTestStore(t)

	data, err := s.LoadSnapshot()
	require.NoError(t, err)
	assert.Nil(t, data)

	require.NoError(t, s.SaveSnapshot([]byte(`{"example.com": {"a": "t1"}}`)))
	data, err = s.LoadSnapshot()
	require.NoError(t, err)
	assert.Equal(t, `{"example.com": {"a": "t1"}}`, string(data))

	// The sidecar lives beside the zone directory, not inside it.
	assert.Empty(t, listDir(t, s.Dir()))
	info, err := os.Stat(s.SnapshotPath())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
}

func TestStore_SnapshotFailedRename(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SaveSnapshot([]byte("{}")))

	s.rename = func(_, _ string) error { return errors.New("disk full") }
	err := s.SaveSnapshot([]byte(`{"a.com": {}}`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrWriteFailure))

	data, err := s.LoadSnapshot()
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))
}

func TestIsTempName(t *testing.T) {
	assert.True(t, isTempName(".example.com.db.tmp-42"))
	assert.False(t, isTempName("example.com.db"))
	assert.False(t, isTempName(".example.com.db"))
}

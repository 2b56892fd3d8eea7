package service

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarabaramaksym/jira-to-bulletpoints/internal/model"
)

func newTestFileManager(t *testing.T) *FileManager {
	t.Helper()
	fm, err := NewFileManager(t.TempDir(), time.Hour, nopLogger{})
	require.NoError(t, err)
	return fm
}

func TestSaveUploadCreatesUniqueSessionTaggedFiles(t *testing.T) {
	fm := newTestFileManager(t)

	first, err := fm.SaveUpload([]byte("a,b\n1,2\n"), "sess1")
	require.NoError(t, err)
	second, err := fm.SaveUpload([]byte("a,b\n3,4\n"), "sess1")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.True(t, fm.Exists(first))
	assert.True(t, fm.Exists(second))
	assert.True(t, strings.HasPrefix(filepath.Base(first), "sess1_"))
	assert.True(t, strings.HasSuffix(first, ".csv"))

	content, err := os.ReadFile(first)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(content))
}

func TestSaveAchievementsJoinsWithBlankLines(t *testing.T) {
	fm := newTestFileManager(t)

	path := fm.SaveAchievements([]string{"Did one thing", "Did another"}, "sess1")
	require.NotEmpty(t, path)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Did one thing\n\nDid another", string(content))
}

func TestSaveAchievementsEmptyListReturnsNoPath(t *testing.T) {
	fm := newTestFileManager(t)
	assert.Empty(t, fm.SaveAchievements(nil, "sess1"))
}

func TestCleanupTempFileIsIdempotent(t *testing.T) {
	fm := newTestFileManager(t)

	path, err := fm.SaveUpload([]byte("a\n"), "sess1")
	require.NoError(t, err)

	fm.CleanupTempFile(path)
	assert.False(t, fm.Exists(path))

	// Removing again, or removing nothing, must not blow up.
	fm.CleanupTempFile(path)
	fm.CleanupTempFile("")
}

func TestCleanupSessionFilesReleasesAllPaths(t *testing.T) {
	fm := newTestFileManager(t)

	upload, err := fm.SaveUpload([]byte("a\n"), "sess1")
	require.NoError(t, err)
	export := fm.SaveAchievements([]string{"item"}, "sess1")
	require.NotEmpty(t, export)

	session := &model.SessionData{
		ID:        "sess1",
		CSVData:   &model.CSVData{FilePath: upload},
		FinalData: &model.FinalData{FilePath: export},
	}

	fm.CleanupSessionFiles(session)
	assert.False(t, fm.Exists(upload))
	assert.False(t, fm.Exists(export))

	fm.CleanupSessionFiles(nil)
}

func TestCleanupOldTempFilesHonorsMaxAge(t *testing.T) {
	dir := t.TempDir()
	fm, err := NewFileManager(dir, time.Minute, nopLogger{})
	require.NoError(t, err)

	old, err := fm.SaveUpload([]byte("old\n"), "sess1")
	require.NoError(t, err)
	fresh, err := fm.SaveUpload([]byte("fresh\n"), "sess2")
	require.NoError(t, err)

	stale := time.Now().Add(-2 * time.Minute)
	require.NoError(t, os.Chtimes(old, stale, stale))

	fm.CleanupOldTempFiles()

	assert.False(t, fm.Exists(old))
	assert.True(t, fm.Exists(fresh))
}

func TestCleanupAllTempFilesEmptiesDirectory(t *testing.T) {
	fm := newTestFileManager(t)

	_, err := fm.SaveUpload([]byte("a\n"), "sess1")
	require.NoError(t, err)
	fm.SaveAchievements([]string{"item"}, "sess2")

	fm.CleanupAllTempFiles()

	entries, err := os.ReadDir(fm.TempDir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

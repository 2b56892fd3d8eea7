package service

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tarabaramaksym/jira-to-bulletpoints/internal/model"
	"github.com/tarabaramaksym/jira-to-bulletpoints/internal/pkg/logger"
)

// FileManager owns the shared temp directory: uploaded datasets and export
// files live there under collision-free names until their session lets go of
// them. Every cleanup path is idempotent and silent.
type FileManager struct {
	tempDir string
	maxAge  time.Duration
	logger  logger.ILogger
}

func NewFileManager(tempDir string, maxAge time.Duration, log logger.ILogger) (*FileManager, error) {
	if err := os.MkdirAll(tempDir, 0o700); err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	return &FileManager{
		tempDir: tempDir,
		maxAge:  maxAge,
		logger:  log,
	}, nil
}

func (m *FileManager) TempDir() string {
	return m.tempDir
}

func (m *FileManager) Exists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

// SaveUpload writes uploaded CSV bytes under a unique session-tagged name.
func (m *FileManager) SaveUpload(content []byte, sessionID string) (string, error) {
	name := fmt.Sprintf("%s_%d_%s.csv", sessionID, time.Now().UnixMilli(), randomSuffix())
	path := filepath.Join(m.tempDir, name)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		return "", fmt.Errorf("write upload: %w", err)
	}
	return path, nil
}

// SaveAchievements persists the export file and schedules its own removal
// an hour out in case the client never downloads it. Returns "" on failure;
// the download path falls back to the in-session copy.
func (m *FileManager) SaveAchievements(achievements []string, sessionID string) string {
	if len(achievements) == 0 {
		return ""
	}

	name := fmt.Sprintf("%s_%d_%s_achievements.txt", sessionID, time.Now().UnixMilli(), randomSuffix())
	path := filepath.Join(m.tempDir, name)

	content := strings.Join(achievements, "\n\n")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		m.logger.Warn("FileManager", "Failed to write achievements file", map[string]interface{}{"error": err.Error()})
		return ""
	}

	time.AfterFunc(time.Hour, func() {
		m.CleanupTempFile(path)
	})

	return path
}

// CleanupTempFile removes a temp file if it still exists. Deleting an
// already-deleted path is a no-op.
func (m *FileManager) CleanupTempFile(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		m.logger.Warn("FileManager", "Failed to remove temp file", map[string]interface{}{
			"path":  path,
			"error": err.Error(),
		})
	}
}

// CleanupSessionFiles releases every storage location a session owns.
func (m *FileManager) CleanupSessionFiles(session *model.SessionData) {
	if session == nil {
		return
	}
	for _, path := range session.TempFilePaths() {
		m.CleanupTempFile(path)
	}
}

// CleanupOldTempFiles removes temp files older than the configured max age.
// Runs on a timer from main.
func (m *FileManager) CleanupOldTempFiles() {
	entries, err := os.ReadDir(m.tempDir)
	if err != nil {
		return
	}

	now := time.Now()
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) > m.maxAge {
			m.CleanupTempFile(filepath.Join(m.tempDir, entry.Name()))
		}
	}
}

// CleanupAllTempFiles empties the temp directory. Used on shutdown.
func (m *FileManager) CleanupAllTempFiles() {
	entries, err := os.ReadDir(m.tempDir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			m.CleanupTempFile(filepath.Join(m.tempDir, entry.Name()))
		}
	}
}

func randomSuffix() string {
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}

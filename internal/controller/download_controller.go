package controller

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/tarabaramaksym/jira-to-bulletpoints/internal/model"
	"github.com/tarabaramaksym/jira-to-bulletpoints/internal/pkg/logger"
	"github.com/tarabaramaksym/jira-to-bulletpoints/internal/pkg/serverutils"
	"github.com/tarabaramaksym/jira-to-bulletpoints/internal/repository/memory"
	"github.com/tarabaramaksym/jira-to-bulletpoints/internal/service"
)

// downloadCleanupDelay leaves the session intact long enough for the
// response body to stream out before its files are released.
const downloadCleanupDelay = 5 * time.Second

type IDownloadController interface {
	RegisterRoutes(r fiber.Router)
	Download(ctx *fiber.Ctx) error
}

type downloadController struct {
	fileManager *service.FileManager
	sessionRepo *memory.SessionRepository
	logger      logger.ILogger
}

func NewDownloadController(
	fileManager *service.FileManager,
	sessionRepo *memory.SessionRepository,
	log logger.ILogger,
) IDownloadController {
	return &downloadController{
		fileManager: fileManager,
		sessionRepo: sessionRepo,
		logger:      log,
	}
}

func (c *downloadController) RegisterRoutes(r fiber.Router) {
	r.Get("/download", c.Download)
}

func (c *downloadController) Download(ctx *fiber.Ctx) error {
	sessionID := serverutils.SessionID(ctx)

	session, ok := c.sessionRepo.Get(sessionID)
	if !ok || session.FinalData == nil {
		recovered, found := c.sessionRepo.FindSessionWithData(memory.DataKeyFinal)
		if !found {
			return serverutils.NewAPIError(fiber.StatusNotFound, "No processed data available")
		}
		session = recovered
		sessionID = recovered.ID
	}

	content := c.exportContent(session)
	if content == "" {
		return serverutils.NewAPIError(fiber.StatusNotFound, "No processed data available")
	}

	ctx.Set(fiber.HeaderContentType, "text/plain; charset=utf-8")
	ctx.Set(fiber.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", exportFilename(session)))

	// The download is terminal: shortly after serving it, the whole session
	// and its temp files are released.
	c.scheduleCleanup(session, sessionID)

	return ctx.SendString(content)
}

// exportContent prefers the pre-rendered export file; a lost file falls back
// to the in-session copy.
func (c *downloadController) exportContent(session *model.SessionData) string {
	if path := session.FinalData.FilePath; path != "" {
		if data, err := os.ReadFile(path); err == nil {
			return string(data)
		}
	}
	return strings.Join(session.FinalData.Achievements, "\n\n")
}

func exportFilename(session *model.SessionData) string {
	base := "resume"
	if session.CSVData != nil && session.CSVData.Filename != "" {
		name := filepath.Base(session.CSVData.Filename)
		base = strings.TrimSuffix(name, filepath.Ext(name))
	}
	return base + "-resume-achievements.txt"
}

func (c *downloadController) scheduleCleanup(session *model.SessionData, sessionID string) {
	time.AfterFunc(downloadCleanupDelay, func() {
		c.fileManager.CleanupSessionFiles(session)
		c.sessionRepo.Destroy(sessionID)
		c.logger.Info("DownloadController", "Session released after download", map[string]interface{}{
			"session_id": sessionID,
		})
	})
}

package controller

import (
	"io"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/tarabaramaksym/jira-to-bulletpoints/internal/dto"
	"github.com/tarabaramaksym/jira-to-bulletpoints/internal/model"
	"github.com/tarabaramaksym/jira-to-bulletpoints/internal/pkg/logger"
	"github.com/tarabaramaksym/jira-to-bulletpoints/internal/pkg/serverutils"
	"github.com/tarabaramaksym/jira-to-bulletpoints/internal/repository/memory"
	"github.com/tarabaramaksym/jira-to-bulletpoints/internal/service"
	"github.com/tarabaramaksym/jira-to-bulletpoints/pkg/csvproc"
)

type IUploadController interface {
	RegisterRoutes(r fiber.Router)
	Upload(ctx *fiber.Ctx) error
}

type uploadController struct {
	fileManager *service.FileManager
	sessionRepo *memory.SessionRepository
	processor   *csvproc.Processor
	logger      logger.ILogger
}

func NewUploadController(
	fileManager *service.FileManager,
	sessionRepo *memory.SessionRepository,
	processor *csvproc.Processor,
	log logger.ILogger,
) IUploadController {
	return &uploadController{
		fileManager: fileManager,
		sessionRepo: sessionRepo,
		processor:   processor,
		logger:      log,
	}
}

func (c *uploadController) RegisterRoutes(r fiber.Router) {
	r.Post("/upload", c.Upload)
}

func (c *uploadController) Upload(ctx *fiber.Ctx) error {
	fileHeader, err := ctx.FormFile("csvFile")
	if err != nil {
		return serverutils.NewAPIError(fiber.StatusBadRequest, "No file uploaded")
	}
	if !strings.HasSuffix(strings.ToLower(fileHeader.Filename), ".csv") {
		return serverutils.NewAPIError(fiber.StatusBadRequest, "Only CSV files are allowed")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return serverutils.NewAPIError(fiber.StatusBadRequest, "Failed to read uploaded file")
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return serverutils.NewAPIError(fiber.StatusBadRequest, "Failed to read uploaded file")
	}

	originalHeaders, err := c.processor.Headers(string(content))
	if err != nil || len(originalHeaders) == 0 {
		return serverutils.NewAPIError(fiber.StatusBadRequest, "Invalid CSV format")
	}

	sessionID := serverutils.SessionID(ctx)
	session, ok := c.sessionRepo.Get(sessionID)
	if !ok {
		session = &model.SessionData{ID: sessionID}
	}

	// Replacing an earlier upload releases its temp file first.
	if session.CSVData != nil {
		c.fileManager.CleanupTempFile(session.CSVData.FilePath)
	}

	filePath, err := c.fileManager.SaveUpload(content, sessionID)
	if err != nil {
		c.logger.Error("UploadController", "Failed to persist upload", map[string]interface{}{
			"session_id": sessionID,
			"error":      err.Error(),
		})
		return serverutils.NewAPIError(fiber.StatusInternalServerError, "Failed to save uploaded file")
	}

	session.CSVData = &model.CSVData{
		FilePath:        filePath,
		Filename:        fileHeader.Filename,
		Headers:         dedupeHeaders(originalHeaders),
		OriginalHeaders: originalHeaders,
		RowCount:        countDataRows(string(content)),
		UploadTime:      time.Now(),
	}
	session.ProcessedData = nil
	session.FinalData = nil
	c.sessionRepo.Save(session)

	c.logger.Info("UploadController", "CSV uploaded", map[string]interface{}{
		"session_id": sessionID,
		"filename":   fileHeader.Filename,
		"rows":       session.CSVData.RowCount,
	})

	return ctx.JSON(dto.UploadResponse{
		Success:         true,
		Filename:        fileHeader.Filename,
		Headers:         session.CSVData.Headers,
		OriginalHeaders: originalHeaders,
		RowCount:        session.CSVData.RowCount,
	})
}

// dedupeHeaders keeps the first occurrence of each column name so the field
// picker shows one checkbox per distinct column.
func dedupeHeaders(headers []string) []string {
	seen := make(map[string]bool, len(headers))
	out := make([]string, 0, len(headers))
	for _, h := range headers {
		if seen[h] {
			continue
		}
		seen[h] = true
		out = append(out, h)
	}
	return out
}

func countDataRows(raw string) int {
	count := 0
	for _, line := range strings.Split(raw, "\n") {
		if strings.TrimSpace(line) != "" {
			count++
		}
	}
	if count > 0 {
		count-- // header line
	}
	return count
}

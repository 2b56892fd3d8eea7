package controller

import (
	"path/filepath"

	"github.com/gofiber/fiber/v2"

	"github.com/tarabaramaksym/jira-to-bulletpoints/internal/dto"
	"github.com/tarabaramaksym/jira-to-bulletpoints/internal/pkg/logger"
	"github.com/tarabaramaksym/jira-to-bulletpoints/internal/pkg/serverutils"
	"github.com/tarabaramaksym/jira-to-bulletpoints/internal/repository/memory"
	"github.com/tarabaramaksym/jira-to-bulletpoints/internal/service"
)

type IApiController interface {
	RegisterRoutes(r fiber.Router)
	AIStatus(ctx *fiber.Ctx) error
	Cleanup(ctx *fiber.Ctx) error
	SampleCSV(ctx *fiber.Ctx) error
}

type apiController struct {
	aiService   *service.AIService // nil when no LLM backend is configured
	fileManager *service.FileManager
	sessionRepo *memory.SessionRepository
	publicDir   string
	logger      logger.ILogger
}

func NewApiController(
	aiService *service.AIService,
	fileManager *service.FileManager,
	sessionRepo *memory.SessionRepository,
	publicDir string,
	log logger.ILogger,
) IApiController {
	return &apiController{
		aiService:   aiService,
		fileManager: fileManager,
		sessionRepo: sessionRepo,
		publicDir:   publicDir,
		logger:      log,
	}
}

func (c *apiController) RegisterRoutes(r fiber.Router) {
	r.Get("/api/ai-status", c.AIStatus)
	r.Post("/cleanup", c.Cleanup)
	r.Get("/cleanup", c.Cleanup)
	r.Get("/sample-csv", c.SampleCSV)
}

// AIStatus reports whether a summarizer backend is configured and, if so,
// whether a live round trip succeeds right now.
func (c *apiController) AIStatus(ctx *fiber.Ctx) error {
	if c.aiService == nil {
		return ctx.JSON(dto.AIStatusResponse{
			Enabled: false,
			Message: "AI processing is not configured. Files will be processed without summarization.",
		})
	}

	working := c.aiService.TestConnection(ctx.Context())
	message := "AI service is connected and working"
	if !working {
		message = "AI service is configured but not responding"
	}
	return ctx.JSON(dto.AIStatusResponse{
		Enabled: true,
		Working: &working,
		Message: message,
	})
}

// Cleanup releases the caller's session and its temp files. Calling it with
// nothing to clean succeeds the same way.
func (c *apiController) Cleanup(ctx *fiber.Ctx) error {
	sessionID := serverutils.SessionID(ctx)

	if session, ok := c.sessionRepo.Get(sessionID); ok {
		c.fileManager.CleanupSessionFiles(session)
		c.sessionRepo.Destroy(sessionID)
		c.logger.Info("ApiController", "Session cleaned up", map[string]interface{}{
			"session_id": sessionID,
		})
	}

	return ctx.JSON(dto.CleanupResponse{
		Success: true,
		Message: "Session cleaned up successfully",
	})
}

func (c *apiController) SampleCSV(ctx *fiber.Ctx) error {
	path := filepath.Join(c.publicDir, "sample-jira-data.csv")
	ctx.Set(fiber.HeaderContentDisposition, `attachment; filename="sample-jira-data.csv"`)
	return ctx.SendFile(path)
}

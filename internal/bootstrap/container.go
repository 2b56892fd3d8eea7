package bootstrap

import (
	"context"
	"log"

	"github.com/redis/go-redis/v9"

	"github.com/tarabaramaksym/jira-to-bulletpoints/internal/config"
	"github.com/tarabaramaksym/jira-to-bulletpoints/internal/controller"
	"github.com/tarabaramaksym/jira-to-bulletpoints/internal/pkg/logger"
	"github.com/tarabaramaksym/jira-to-bulletpoints/internal/repository/memory"
	"github.com/tarabaramaksym/jira-to-bulletpoints/internal/service"
	"github.com/tarabaramaksym/jira-to-bulletpoints/internal/websocket"
	"github.com/tarabaramaksym/jira-to-bulletpoints/pkg/csvproc"
	"github.com/tarabaramaksym/jira-to-bulletpoints/pkg/llm/factory"
)

type Container struct {
	// Controllers
	UploadController   controller.IUploadController
	DownloadController controller.IDownloadController
	ApiController      controller.IApiController

	// WebSocket pipeline plumbing
	WebSocketHub *websocket.Hub
	Dispatcher   *websocket.Dispatcher

	// Exposed for main.go lifecycle hooks
	FileManager *service.FileManager
}

func NewContainer(cfg *config.Config) *Container {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	fileManager, err := service.NewFileManager(cfg.Files.TempDir, cfg.Files.MaxAge, sysLogger)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize file manager: %v", err)
	}

	// Expired sessions take their temp files with them.
	sessionRepo := memory.NewSessionRepository(
		cfg.Session.TTL,
		cfg.Session.Grace,
		cfg.Session.RecoveryScan,
		fileManager.CleanupSessionFiles,
	)

	processor := csvproc.NewProcessor(cfg.Ai.TokenLimit)

	// 2. LLM Provider based on Config
	llmProvider, err := factory.NewLLMProvider(
		cfg.Ai.Provider,
		cfg.Ai.Model,
		cfg.Ai.OllamaBaseURL,
		cfg.Ai.OpenAIKey,
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}

	var aiService *service.AIService
	if llmProvider != nil {
		aiService = service.NewAIService(llmProvider, sysLogger)
		log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.Provider, cfg.Ai.Model)
	} else {
		log.Printf("[WARN] No LLM provider configured, running in degraded mode")
	}

	processingService := service.NewProcessingService(
		aiService,
		processor,
		fileManager,
		sessionRepo,
		sysLogger,
	)

	// 3. Infrastructure
	// Redis (optional): relays events between instances when configured.
	var rdb *redis.Client
	if cfg.App.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.App.RedisURL)
		if err != nil {
			log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
			opt = &redis.Options{Addr: cfg.App.RedisURL}
		}
		rdb = redis.NewClient(opt)
		if _, err := rdb.Ping(context.Background()).Result(); err != nil {
			log.Printf("[WARN] Failed to connect to Redis: %v", err)
		}
	}

	// WebSocket Hub
	wsLogger := logger.NewIsolatedLogger("logs/websocket.log")
	wsHub := websocket.NewHub(rdb, wsLogger)
	go wsHub.Run()

	dispatcher := websocket.NewDispatcher(processingService, sessionRepo, wsLogger)

	// 4. Controllers
	return &Container{
		UploadController:   controller.NewUploadController(fileManager, sessionRepo, processor, sysLogger),
		DownloadController: controller.NewDownloadController(fileManager, sessionRepo, sysLogger),
		ApiController:      controller.NewApiController(aiService, fileManager, sessionRepo, cfg.App.PublicDir, sysLogger),
		WebSocketHub:       wsHub,
		Dispatcher:         dispatcher,
		FileManager:        fileManager,
	}
}

package server

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"github.com/tarabaramaksym/jira-to-bulletpoints/internal/bootstrap"
	"github.com/tarabaramaksym/jira-to-bulletpoints/internal/config"
	"github.com/tarabaramaksym/jira-to-bulletpoints/internal/pkg/serverutils"
	internalWS "github.com/tarabaramaksym/jira-to-bulletpoints/internal/websocket"
)

type Server struct {
	app       *fiber.App
	cfg       *config.Config
	container *bootstrap.Container
}

func New(cfg *config.Config, container *bootstrap.Container) *Server {
	app := fiber.New(fiber.Config{
		BodyLimit: cfg.Files.MaxUploadBytes,
	})

	// Middleware
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.App.CorsAllowedOrigins,
		AllowCredentials: true,
		AllowHeaders:     "Origin, Content-Type, Accept",
		AllowMethods:     "GET, POST, OPTIONS",
		ExposeHeaders:    "Content-Length, Content-Type, Content-Disposition",
	}))

	app.Use(serverutils.ErrorHandlerMiddleware())
	app.Use(serverutils.SessionMiddleware())

	// Static frontend
	app.Static("/", cfg.App.PublicDir)

	registerRoutes(app, container)

	return &Server{
		app:       app,
		cfg:       cfg,
		container: container,
	}
}

func (s *Server) GetApp() *fiber.App {
	return s.app
}

func (s *Server) Run() error {
	log.Printf("Server is running on http://localhost:%s", s.cfg.App.Port)
	return s.app.Listen(":" + s.cfg.App.Port)
}

func registerRoutes(app *fiber.App, c *bootstrap.Container) {
	c.UploadController.RegisterRoutes(app)
	c.DownloadController.RegisterRoutes(app)
	c.ApiController.RegisterRoutes(app)

	app.Get("/ws", func(ctx *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(ctx) {
			return fiber.ErrUpgradeRequired
		}

		// The session cookie carries the identity across the upgrade; a
		// cookieless client still gets a fresh one from the middleware.
		sessionID := serverutils.SessionID(ctx)
		if sessionID == "" {
			sessionID = uuid.NewString()
		}

		return websocket.New(func(conn *websocket.Conn) {
			internalWS.ServeWs(c.WebSocketHub, c.Dispatcher, conn, sessionID)
		})(ctx)
	})
}

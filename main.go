package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/template/html/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/nicksnyder/go-i18n/v2/i18n"

	"feedcompose/backend"
	"feedcompose/compose"
	"feedcompose/config"
	"feedcompose/drafts"
	"feedcompose/handlers/api"
	"feedcompose/handlers/web"
	"feedcompose/middleware"
	"feedcompose/storage"
	"feedcompose/utils"
)

// Helper function to determine if request is an API request
func isAPIRequest(c *fiber.Ctx) bool {
	if c == nil {
		return false
	}
	path := c.Path()
	return len(path) >= 4 && path[:4] == "/api"
}

// localizedError resolves the user-facing message for an error using the
// request's localizer.
func localizedError(c *fiber.Ctx, err error) (int, string) {
	localizer, _ := c.Locals("localizer").(*i18n.Localizer)

	var appErr *utils.AppError
	if errors.As(err, &appErr) {
		msg := utils.T(localizer, appErr.MessageID)
		if remote := utils.SafeMessage(appErr.Err); remote != "" {
			msg = remote
		}
		if msg == "" {
			msg = utils.T(localizer, "error_generic")
		}
		return appErr.Code, msg
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fiberErr.Code, fiberErr.Message
	}
	return fiber.StatusInternalServerError, utils.T(localizer, "error_unknown")
}

// buildApp wires the Fiber app, routes and the composer core on top of the
// given backend client and draft storage.
func buildApp(cfg *config.Config, client backend.Client, kv storage.KV) (*fiber.App, *compose.Manager) {
	// Initialize template engine with custom functions
	engine := html.New("./templates", ".html")
	engine.AddFunc("lower", strings.ToLower)
	engine.AddFunc("trim", strings.TrimSpace)
	engine.AddFunc("t", func(messageID string) string {
		return utils.T(utils.Localizer, messageID)
	})
	engine.AddFunc("formatDate", func(t time.Time) string {
		return t.Format("Jan 02, 2006 15:04")
	})

	draftStore := drafts.NewStore(kv, utils.Log)
	hub := api.NewEventHub(utils.Log)
	manager := compose.NewManager(cfg, client, draftStore, hub, utils.Log)

	// Initialize Fiber with template engine
	app := fiber.New(fiber.Config{
		Views:       engine,
		ViewsLayout: "layouts/main",
		BodyLimit:   int(cfg.Uploads.MaxBytes) + (1 << 20),
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code, msg := localizedError(c, err)
			utils.Log.Error("Request failed: %s %s: %v", c.Method(), c.Path(), err)

			if isAPIRequest(c) {
				return c.Status(code).JSON(fiber.Map{"error": msg})
			}
			return c.Status(code).Render("error", fiber.Map{
				"Error": msg,
				"Code":  code,
			})
		},
	})

	// Add global middleware
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(compress.New())
	app.Use(helmet.New(helmet.Config{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "SAMEORIGIN",
		ReferrerPolicy:        "no-referrer",
		ContentSecurityPolicy: "default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'; img-src 'self' data: https:;",
	}))
	app.Use(middleware.LocaleMiddleware())

	// Rate limiting per client IP
	app.Use(middleware.RateLimiter(cfg.RateLimit))

	// Serve the browser bundle. Only the public directory is exposed.
	app.Static("/assets", "./public", fiber.Static{
		Compress:      true,
		CacheDuration: 24 * time.Hour,
	})

	// Initialize handlers
	composerHandler := api.NewComposerHandler(manager, utils.Log)
	recipientHandler := api.NewRecipientHandler(manager, utils.Log)
	i18nHandler := &api.I18nHandler{}
	composePage := web.NewComposeHandler(cfg)

	// Health check endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// Public i18n route
	app.Get("/api/i18n/:lang", i18nHandler.GetTranslations)

	// Protected routes group
	protected := app.Group("", middleware.RequireAuth(cfg.JWT.Secret))

	// Composer page
	protected.Get("/compose/:kind/:recordId", composePage.ShowComposer)

	// Composer API routes
	composer := protected.Group("/api/composer/:kind/:recordId")
	{
		composer.Post("/open", composerHandler.Open)
		composer.Post("/close", composerHandler.Close)
		composer.Get("/", composerHandler.State)
		composer.Put("/body", composerHandler.SetBody)
		composer.Put("/subject", composerHandler.SetSubject)
		composer.Put("/sender", composerHandler.SetSender)
		composer.Put("/visibility", composerHandler.SetVisibility)
		composer.Post("/paste", composerHandler.Paste)
		composer.Post("/images", composerHandler.InsertImage)
		composer.Post("/attachments", composerHandler.AddAttachment)
		composer.Delete("/attachments/:documentId", composerHandler.RemoveAttachment)
		composer.Post("/quicktext/:id", composerHandler.ApplyQuickText)
		composer.Post("/template/:id", composerHandler.ApplyTemplate)
		composer.Post("/submit", composerHandler.Submit)

		// Recipient field routes
		composer.Post("/recipients/:field/term", recipientHandler.Search)
		composer.Post("/recipients/:field/focus", recipientHandler.Focus)
		composer.Post("/recipients/:field/blur", recipientHandler.Blur)
		composer.Post("/recipients/:field/select", recipientHandler.Select)
		composer.Delete("/recipients/:field/:address", recipientHandler.Remove)
	}

	// Event streams
	protected.Get("/api/events/sse", hub.HandleSSE)
	protected.Use("/api/events/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	protected.Get("/api/events/ws", websocket.New(hub.HandleWebSocket))

	// 404 Handler for undefined routes
	app.Use(func(c *fiber.Ctx) error {
		localizer, _ := c.Locals("localizer").(*i18n.Localizer)
		if isAPIRequest(c) {
			return c.Status(404).JSON(fiber.Map{
				"error": utils.T(localizer, "error_404"),
			})
		}
		return c.Status(404).Render("error", fiber.Map{
			"Error": utils.T(localizer, "error_404"),
			"Code":  404,
		})
	})

	return app, manager
}

func main() {
	// Load configuration
	cfg, err := config.LoadConfig("config.toml")
	if err != nil {
		utils.Log.Error("Failed to load config: %v", err)
		return
	}
	utils.Log.SetLevel(utils.ParseLogLevel(cfg.Server.LogLevel))

	// Initialize i18n system
	if err := utils.InitI18n(); err != nil {
		utils.Log.Error("Failed to initialize i18n: %v", err)
	}

	// Open the draft store
	bolt, err := storage.OpenBolt(cfg.Drafts.Path)
	if err != nil {
		utils.Log.Error("Failed to open draft store: %v", err)
		return
	}
	defer bolt.Close()

	client := backend.NewHTTPClient(cfg.Backend.BaseURL, time.Duration(cfg.Backend.TimeoutSeconds)*time.Second, utils.Log)
	app, manager := buildApp(cfg, client, bolt)
	defer manager.Shutdown()

	// Start server
	utils.Log.Info("Starting server on port %d...", cfg.Server.Port)
	if err := app.Listen(fmt.Sprintf(":%d", cfg.Server.Port)); err != nil {
		utils.Log.Error("Error starting server: %v", err)
	}
}

package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/axisprep/mocktest-backend/internal/config"
	"github.com/axisprep/mocktest-backend/internal/handler"
	"github.com/axisprep/mocktest-backend/internal/middleware"
	"github.com/axisprep/mocktest-backend/internal/response"
	"github.com/axisprep/mocktest-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth   *handler.AuthHandler
	Portal *handler.PortalHandler
	Chat   *handler.ChatHandler
	Admin  *handler.AdminHandler
	Media  *handler.MediaHandler
	WS     *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Apply brotli middleware globally.
	router.Use(middleware.Brotli())

	// Serve uploaded papers statically with aggressive caching (1 year);
	// filenames are UUIDs, so stale content is impossible.
	uploadsGroup := router.Group("/uploads")
	uploadsGroup.Use(middleware.CacheControl(31536000))
	{
		uploadsGroup.Static("/", cfg.UploadDir)
	}

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Rate limiter for auth routes (30 requests per minute per IP).
	authLimiter := middleware.NewRateLimiter(30, time.Minute)

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	auth := router.Group("/api/v1/auth")
	auth.Use(authLimiter.Middleware())
	{
		auth.POST("/register", handlers.Auth.Register)
		auth.POST("/login", handlers.Auth.Login)

		// Authenticated profile routes.
		auth.POST("/logout", middleware.RequireStudentJWT(authService), handlers.Auth.Logout)
		auth.GET("/me", middleware.RequireStudentJWT(authService), handlers.Auth.Me)
	}

	// ─── 2. Student Group (JWT + Single Device) ────────────────────────
	studentAPI := router.Group("/api/v1")
	studentAPI.Use(
		middleware.RequireStudentJWT(authService),
		middleware.CheckSingleDeviceSession(authService),
	)
	{
		studentAPI.GET("/tests", handlers.Portal.Lobby)
		studentAPI.GET("/tests/:test_id", handlers.Portal.GetTest)
		studentAPI.POST("/tests/:test_id/start", handlers.Portal.StartAttempt)
		studentAPI.GET("/tests/:test_id/state", handlers.Portal.GetState)
		studentAPI.POST("/tests/:test_id/answers", handlers.Portal.SelectAnswer)
		studentAPI.POST("/tests/:test_id/submit", handlers.Portal.Submit)
		studentAPI.GET("/tests/:test_id/result", handlers.Portal.GetResult)
		studentAPI.GET("/tests/:test_id/leaderboard", handlers.Portal.Leaderboard)
		studentAPI.GET("/attempts", handlers.Portal.History)
		studentAPI.GET("/attempts/:attempt_id", handlers.Portal.GetAttempt)

		// Discussion threads (open after submission).
		studentAPI.GET("/tests/:test_id/chat", handlers.Chat.List)
		studentAPI.POST("/tests/:test_id/chat", handlers.Chat.Post)
		studentAPI.POST("/chat/:message_id/like", handlers.Chat.Like)
	}

	// ─── 3. WebSocket Group (Student WS Auth) ──────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireStudentWSAuth(authService))
	{
		ws.GET("/tests/:test_id/stream", handlers.WS.AttemptStream)
	}

	// ─── 4. Admin Group (Admin JWT) ────────────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(middleware.RequireAdminJWT(authService))
	{
		// Test authoring
		adminAPI.GET("/tests", handlers.Admin.ListTests)
		adminAPI.POST("/tests", handlers.Admin.CreateTest)
		adminAPI.GET("/tests/:test_id", handlers.Admin.GetTest)
		adminAPI.PUT("/tests/:test_id", handlers.Admin.UpdateTest)
		adminAPI.PUT("/tests/:test_id/answer-key", handlers.Admin.SetAnswerKey)
		adminAPI.POST("/tests/:test_id/publish", handlers.Admin.PublishTest)
		adminAPI.POST("/tests/:test_id/archive", handlers.Admin.ArchiveTest)
		adminAPI.GET("/tests/:test_id/results", handlers.Admin.ListResults)

		// Paper uploads
		adminAPI.POST("/media/upload", handlers.Media.Upload)

		// User administration
		adminAPI.GET("/users", handlers.Admin.ListUsers)
		adminAPI.PUT("/users/:user_id/verify", handlers.Admin.VerifyUser)
		adminAPI.POST("/users/:user_id/reset-login", handlers.Admin.ResetLogin)
	}

	return router
}

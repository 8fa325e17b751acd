package http

import (
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/sujalbistaa/lantern/internal/logging"
	"github.com/sujalbistaa/lantern/internal/ratelimit"
)

// Options carries the settings the router needs beyond the handlers.
type Options struct {
	ServiceName string
	AdminUser   string
	AdminPass   string
	CORSOrigin  string
	Limiter     *ratelimit.Limiter
	Sentry      bool
}

// SetupRoutes configures all application routes and middleware.
func SetupRoutes(router *gin.Engine, env *Env, opts Options) {

	// --- Middleware ---
	// The access log wraps Recovery so panics are logged with their 500.
	router.Use(logging.Middleware(env.Log))
	router.Use(gin.Recovery())
	if opts.Sentry {
		// After Recovery so repanics are still recovered.
		router.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}
	if opts.ServiceName != "" {
		router.Use(otelgin.Middleware(opts.ServiceName))
	}
	router.Use(SecurityHeadersMiddleware())
	router.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/ws"})))

	// CORS Middleware
	corsConfig := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Admin-Pass"},
		ExposeHeaders: []string{"Content-Length", "Content-Disposition", "Retry-After"},
	}
	if opts.CORSOrigin == "" || opts.CORSOrigin == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = []string{opts.CORSOrigin}
		corsConfig.AllowCredentials = true
	}
	router.Use(cors.New(corsConfig))

	router.GET("/health", env.Health)

	// --- API Routes ---
	api := router.Group("/api")
	{
		api.GET("/public/posts", env.GetPublicPosts)
		api.POST("/posts", RateLimitMiddleware(opts.Limiter), env.CreatePost)
		api.POST("/reactions/:id", env.AddReaction)
		api.POST("/report/:id", env.ReportPost)
	}

	admin := api.Group("/admin", AdminAuthMiddleware(opts.AdminUser, opts.AdminPass))
	{
		admin.GET("/posts", env.AdminListPosts)
		admin.PATCH("/posts/:id", env.AdminUpdatePost)
		admin.DELETE("/posts/:id", env.AdminDeletePost)
		admin.POST("/toggle-auto-publish", env.ToggleAutoPublish)
		admin.GET("/auto-publish", env.GetAutoPublish)
		admin.GET("/export", env.ExportPosts)
		admin.GET("/audit", env.GetAuditLog)
	}

	// --- WebSocket Route ---
	if env.Hub != nil {
		router.GET("/ws", env.ServeFeed)
	}
}

package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"finreview/internal/config"
	"finreview/internal/handler"
	"finreview/internal/middleware"
)

// Handlers groups the HTTP handlers mounted by Setup.
type Handlers struct {
	Session    *handler.SessionHandler
	Capability *handler.CapabilityHandler
	Record     *handler.RecordHandler
	Health     *handler.HealthHandler
}

// Setup configures the Gin engine with all routes and middleware.
func Setup(cfg *config.Config, h Handlers) *gin.Engine {
	r := gin.New()
	if cfg.Server.MaxUploadSize > 0 {
		r.MaxMultipartMemory = cfg.Server.MaxUploadSize << 20
	}

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS(cfg.CORS.AllowedOrigins))

	// Health checks and metrics
	r.GET("/healthz", h.Health.Liveness)
	r.GET("/readyz", h.Health.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")
	v1.Use(middleware.Reviewer(cfg.Auth))

	// Review sessions
	sessions := v1.Group("/sessions")
	sessions.POST("", h.Session.Create)
	sessions.GET("/:id", h.Session.Get)
	sessions.POST("/:id/upload", h.Session.Upload)
	sessions.PUT("/:id/fields", h.Session.EditField)
	sessions.POST("/:id/fields/confirm", h.Session.ConfirmField)
	sessions.POST("/:id/fields/accept", h.Session.AcceptField)
	sessions.POST("/:id/fields/standardize", h.Session.StandardizeField)
	sessions.POST("/:id/validate", h.Session.Validate)
	sessions.POST("/:id/continue", h.Session.ContinueAnyway)
	sessions.PUT("/:id/status", h.Session.SetStatus)
	sessions.POST("/:id/advance", h.Session.Advance)
	sessions.GET("/:id/export", h.Session.Export)
	sessions.POST("/:id/reset", h.Session.Reset)

	// Stateless capabilities
	v1.POST("/extract", h.Capability.Extract)
	v1.POST("/validate-field", h.Capability.ValidateField)
	v1.GET("/validation/rules", h.Capability.ValidationRules)
	v1.POST("/enforce-fields", h.Capability.EnforceFields)
	v1.GET("/enforce-fields/rules", h.Capability.EnforcementRules)
	v1.POST("/smart-mapping", h.Capability.SmartMapping)
	v1.GET("/smart-mapping/fields", h.Capability.MappingFields)
	v1.POST("/standardize", h.Capability.Standardize)
	v1.GET("/standardize/rules", h.Capability.StandardizationRules)

	// Saved records
	v1.GET("/records", h.Record.List)
	v1.GET("/records/:id", h.Record.GetByID)
	v1.GET("/analytics", h.Record.Analytics)

	return r
}

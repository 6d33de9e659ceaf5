package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"calculations-api/internal/auth"
	"calculations-api/internal/handler"
	"calculations-api/internal/metrics"
	"calculations-api/internal/repository"
)

// Server assembles the full HTTP surface: auth, calculations, reports and
// the operational endpoints.
type Server struct {
	router *gin.Engine
}

func New(store repository.Store, authSvc *auth.Service, m *metrics.Metrics, logger *zap.Logger) *Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestIDMiddleware())
	router.Use(requestLogger(logger))
	router.Use(m.GinMiddleware())

	authHandler := handler.NewAuthHandler(authSvc, logger)
	calcHandler := handler.NewCalculationHandler(store, m, logger)
	reportHandler := handler.NewReportHandler(store, logger)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(m.Handler()))

	authGroup := router.Group("/auth")
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/refresh", authHandler.Refresh)
	}

	protected := router.Group("/")
	protected.Use(authSvc.RequireAuth())
	{
		protected.POST("/calculations", calcHandler.Create)
		protected.GET("/calculations", calcHandler.List)
		protected.GET("/calculations/:id", calcHandler.Get)
		protected.PUT("/calculations/:id", calcHandler.Update)
		protected.DELETE("/calculations/:id", calcHandler.Delete)
		protected.POST("/calculations/evaluate", calcHandler.Evaluate)
		protected.GET("/reports/usage", reportHandler.Usage)
	}

	return &Server{router: router}
}

// Handler exposes the router for the HTTP server and for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

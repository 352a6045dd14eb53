package server

import (
	"llmarena/internal/web"

	"github.com/gin-gonic/gin"
)

func (s *Server) setupRoutes() {
	gin.SetMode(s.ginMode)
	s.router = gin.New()

	s.router.Use(s.requestIDMiddleware())
	s.router.Use(gin.Logger())
	s.router.Use(gin.CustomRecovery(s.recoverPanic))
	s.router.Use(s.corsMiddleware())
	s.router.Use(s.maxBodySizeMiddleware())

	// Front-end
	s.router.GET("/", web.ShowIndex)
	s.router.GET("/styles.css", web.ShowStyles)
	s.router.GET("/app.js", web.ShowScript)

	s.router.GET("/health", s.healthCheck)

	api := s.router.Group("/api")
	api.Use(s.metricsMiddleware())
	{
		api.POST("/compare", s.compare)
		api.POST("/reiterate", s.reiterate)
		api.GET("/llms", s.listLLMs)
		api.GET("/prompt_history", s.promptHistory)
		api.GET("/stats", s.getStatsData)
	}
}

package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	// Observability endpoints
	s.echo.GET("/healthz", s.handleLiveness)
	s.echo.GET("/readyz", s.handleReadiness)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	s.echo.GET("/", s.handleIndex)

	// Chat endpoints
	s.echo.GET("/ws", s.handleWebSocket)
	if s.history != nil {
		s.echo.GET("/history", s.handleHistory)
	}
}

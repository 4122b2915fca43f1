package server

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	goredis "github.com/redis/go-redis/v9"

	"github.com/hhoikoo/multiuser-webchat/internal/chat"
	"github.com/hhoikoo/multiuser-webchat/internal/config"
	"github.com/hhoikoo/multiuser-webchat/internal/router"
)

// historyReader is the read side of the history collaborator.
type historyReader interface {
	Recent(ctx context.Context, limit int64) ([]chat.Message, error)
}

// redisHealthChecker is a minimal interface for Redis health checks
type redisHealthChecker interface {
	Ping(ctx context.Context) *goredis.StatusCmd
}

type Server struct {
	echo      *echo.Echo
	config    *config.Config
	router    *router.Router
	history   historyReader
	redis     redisHealthChecker
	limiter   *ConnectionLimiter
	upgrader  websocket.Upgrader
	startTime time.Time
}

// NewServer wires the HTTP edge. history may be nil, in which case the
// replay endpoint is not registered.
func NewServer(cfg *config.Config, rtr *router.Router, history historyReader, redis redisHealthChecker) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	srv := &Server{
		echo:      e,
		config:    cfg,
		router:    rtr,
		history:   history,
		redis:     redis,
		limiter:   NewConnectionLimiter(int64(cfg.MaxConnections)),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     newCheckOrigin(cfg.AppURL, cfg.AppEnv == "development"),
		},
		startTime: time.Now(),
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

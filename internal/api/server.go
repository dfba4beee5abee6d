package api

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/letsgo999/music-video-maker/internal/config"
	"github.com/letsgo999/music-video-maker/internal/render"
)

// Renderer runs one render request synchronously.
type Renderer interface {
	Run(ctx context.Context, req render.Request) (*render.Result, error)
}

// Videos resolves a finished video by id.
type Videos interface {
	Path(id string) (string, error)
}

type Server struct {
	cfg      *config.Config
	renderer Renderer
	videos   Videos
	logger   zerolog.Logger
}

func NewServer(cfg *config.Config, renderer Renderer, videos Videos, logger zerolog.Logger) *Server {
	return &Server{cfg: cfg, renderer: renderer, videos: videos, logger: logger}
}

// NewRouter constructs a Gin engine with registered routes.
func (s *Server) NewRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())
	r.MaxMultipartMemory = 32 << 20

	RegisterHealthRoutes(r)
	s.RegisterPlanRoutes(r)
	s.RegisterRenderRoutes(r)
	return r
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}

package httpserver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"github.com/ncecere/readaloud/internal/app"
	"github.com/ncecere/readaloud/internal/config"
	"github.com/ncecere/readaloud/internal/httpserver/httputil"
	"github.com/ncecere/readaloud/internal/observability"
	publicroutes "github.com/ncecere/readaloud/internal/httpserver/public"
)

const accessLogFormat = "${time} ${locals:requestid} ${status} ${method} ${path} ${latency}\n"

type Server struct {
	app  *fiber.App
	addr string
	// grace bounds how long in-flight requests may finish on shutdown.
	grace time.Duration
}

// New assembles the read-aloud HTTP surface over a wired container.
func New(container *app.Container) (*Server, error) {
	switch {
	case container == nil:
		return nil, fmt.Errorf("dependency container is required")
	case container.Config == nil:
		return nil, fmt.Errorf("container missing config")
	}
	cfg := container.Config.Server

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ServerHeader:          "readaloud",
		BodyLimit:             cfg.BodyLimitMB << 20,
		ReadTimeout:           cfg.ReadTimeout,
		IdleTimeout:           cfg.IdleTimeout,
		ReadBufferSize:        8 << 10,
		WriteBufferSize:       4 << 10,
		ErrorHandler:          httputil.ErrorHandler,
	})
	useMiddleware(app, cfg, container.Observability)

	registerHealthRoutes(app, container)
	publicroutes.Register(app, container)
	mountEmbeddedPage(app)

	grace := cfg.GracefulShutdownDelay
	if grace <= 0 {
		grace = 5 * time.Second
	}
	return &Server{app: app, addr: cfg.ListenAddr, grace: grace}, nil
}

func useMiddleware(app *fiber.App, cfg config.ServerConfig, obs *observability.Provider) {
	app.Use(requestid.New(), logger.New(logger.Config{Format: accessLogFormat}), recover.New())
	if len(cfg.AllowedOrigins) > 0 {
		app.Use(cors.New(cors.Config{
			AllowOrigins: strings.Join(cfg.AllowedOrigins, ","),
			AllowMethods: "GET,POST,OPTIONS",
		}))
	}
	if obs == nil {
		return
	}
	app.Use(recordRequests(obs))
	if obs.TracerProvider() != nil {
		app.Use(traceRequests())
	}
	if handler := obs.PrometheusHandler(); handler != nil {
		app.Get("/metrics", adaptor.HTTPHandler(handler))
	}
}

func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Listen(ctx context.Context) error {
	stopped := make(chan error, 1)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.grace)
		defer cancel()
		stopped <- s.app.ShutdownWithContext(shutdownCtx)
	}()

	if err := s.app.Listen(s.addr); err != nil {
		return err
	}
	return <-stopped
}

package rest

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/badrabdoph/sitekeeper/internal/logging"
)

// Server owns the echo instance and its lifecycle.
type Server struct {
	echo *echo.Echo
	addr string
	log  logging.Logger
}

func NewServer(addr string, h *Handler, log logging.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	h.RegisterRoutes(e)
	return &Server{echo: e, addr: addr, log: log.With("module", "rest")}
}

// Start blocks until the server stops. A graceful shutdown is not
// reported as an error.
func (s *Server) Start(ctx context.Context) error {
	s.log.Info(ctx, "starting http server", "addr", s.addr)
	if err := s.echo.Start(s.addr); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

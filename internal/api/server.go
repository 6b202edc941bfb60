package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/rightsguard-cli/api/schemas"
	"github.com/xkilldash9x/rightsguard-cli/internal/config"
)

const shutdownGrace = 5 * time.Second

// Server is a thin wrapper over chi and http.Server.
type Server struct {
	srv    *http.Server
	logger *zap.Logger
}

// NewServer builds a server for the control API.
func NewServer(cfg config.APIConfig, automation schemas.Automation, records schemas.Records, logger *zap.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              cfg.ListenAddr,
			Handler:           NewRouter(cfg, automation, records, logger),
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger.Named("api"),
	}
}

// Handler exposes the routed handler.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// Run listens until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Control API listening.", zap.String("addr", ln.Addr().String()))
		errCh <- s.srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownGrace)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info("Control API stopped.")
	return nil
}

package gateway

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// Server wraps the gateway's [http.Server] lifecycle.
type Server struct {
	gw   *Gateway
	http *http.Server
}

// NewServer builds the HTTP server for a gateway.
//
// WriteTimeout is deliberately left unset: the stream relay holds the
// response open for the length of a track, and the per-request context
// already ends the relay when the client goes away.
func NewServer(gw *Gateway) *Server {
	return &Server{
		gw: gw,
		http: &http.Server{
			Addr:              gw.cfg.Addr(),
			Handler:           gw.Router(),
			ReadTimeout:       30 * time.Second,
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
	}
}

// Serve runs the server until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.gw.logger.Info("gateway listening", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.gw.logger.Info("shutting down gateway")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return s.http.Shutdown(shutdownCtx)
}

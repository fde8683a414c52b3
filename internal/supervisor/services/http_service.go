// Auditflow - Embeddable Audit Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditflow

package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/auditflow/internal/config"
	"github.com/tomtom215/auditflow/internal/logging"
)

// HTTPServer is the lifecycle subset of *http.Server.
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// HTTPService runs the admin endpoint under supervision.
//
// ListenAndServe runs in its own goroutine. Context cancellation triggers
// a graceful Shutdown bounded by the shutdown timeout; a listener failure
// is returned so the supervisor restarts the service with backoff.
//
//	server := services.NewAdminServer(cfg.Server, api.NewRouter(manager, api.RouterConfig{}))
//	tree.AddAPIService(services.NewHTTPService(server, cfg.Server.Addr, cfg.Server.ShutdownTimeout))
type HTTPService struct {
	server          HTTPServer
	addr            string
	shutdownTimeout time.Duration
	name            string
	logger          zerolog.Logger
}

// NewHTTPService wraps server. addr is used for logging only. A
// non-positive shutdownTimeout defaults to 10 seconds.
func NewHTTPService(server HTTPServer, addr string, shutdownTimeout time.Duration) *HTTPService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &HTTPService{
		server:          server,
		addr:            addr,
		shutdownTimeout: shutdownTimeout,
		name:            "admin-http",
		logger:          logging.WithComponent("http"),
	}
}

// NewAdminServer builds the *http.Server for the admin endpoint.
func NewAdminServer(cfg config.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       2 * cfg.ReadTimeout,
	}
}

// Serve implements suture.Service. It returns ctx.Err() after a clean
// shutdown; http.ErrServerClosed is never surfaced.
func (h *HTTPService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	h.logger.Info().Str("addr", h.addr).Msg("Admin endpoint listening")

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("admin http server on %s failed: %w", h.addr, err)
		}
		return nil

	case <-ctx.Done():
		// ctx is already canceled; shutdown needs its own deadline.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
		defer cancel()

		if err := h.server.Shutdown(shutdownCtx); err != nil {
			h.logger.Warn().Err(err).Dur("timeout", h.shutdownTimeout).Msg("Admin endpoint shutdown incomplete")
			return fmt.Errorf("admin http server shutdown failed: %w", err)
		}

		<-errCh
		h.logger.Info().Str("addr", h.addr).Msg("Admin endpoint stopped")
		return ctx.Err()
	}
}

// String implements fmt.Stringer for logging.
// Suture uses this to identify the service in log messages.
func (h *HTTPService) String() string {
	return h.name
}

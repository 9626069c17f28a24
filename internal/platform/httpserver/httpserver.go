package httpserver

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// New builds the API server. Connection-level errors go to logger and every
// request context derives from base so shutdown cancels in-flight work.
func New(base context.Context, addr string, handler http.Handler, logger *slog.Logger) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
		BaseContext:       func(net.Listener) context.Context { return base },
	}
}

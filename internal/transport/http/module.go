package http

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/hostyard/hostyard/internal/config"
)

// registerHooks binds the API server to the fx lifecycle for graceful
// startup and shutdown
func registerHooks(
	lifecycle fx.Lifecycle,
	cfg *config.Config,
	server *Server,
	logger *zap.Logger,
) {
	httpServer := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Server.Port),
		// Use h2c so we can serve HTTP/2 without TLS
		Handler: h2c.NewHandler(server.Handler(), &http2.Server{}),
	}

	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				logger.Info("starting HTTP server", zap.Int("port", cfg.Server.Port))
				if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Error("server error", zap.Error(err))
					os.Exit(1)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("shutting down HTTP server")
			return httpServer.Shutdown(ctx)
		},
	})
}

// Module provides the HTTP transport to the fx container
var Module = fx.Options(
	fx.Provide(NewServer),
	fx.Invoke(registerHooks),
)

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"emailwriter/internal/config"
	"emailwriter/internal/handler"
	"emailwriter/internal/httpserver"
	"emailwriter/internal/service/gemini"
	"emailwriter/internal/service/reply"
	"emailwriter/pkg/logger"
	"emailwriter/pkg/otel"
)

func main() {
	// 1. Load config
	cfg := config.Load()

	logger := logger.NewLogger()
	defer logger.Sync()

	if cfg.Gemini.APIURL == "" || cfg.Gemini.APIKey == "" {
		logger.Warn("Gemini API url or key is empty, every reply will fall back to the error text")
	}

	// 2. Init tracing
	shutdownOtel, err := otel.Init(otel.Config{
		ServiceName:    "email-writer",
		ServiceVersion: "1.0.0",
		Endpoint:       cfg.Otel.Endpoint,
		Enabled:        cfg.Otel.Enabled,
	}, logger)
	if err != nil {
		logger.Fatal("OpenTelemetry initialization failed", zap.Error(err))
	}
	defer shutdownOtel()

	// 3. 进程内共享的 HTTP client
	httpClient := &http.Client{Timeout: cfg.Gemini.Timeout}

	// 4. Init services
	geminiClient := gemini.NewClient(cfg.Gemini, httpClient, logger)
	replyService := reply.NewService(geminiClient, logger)

	// 5. Init handlers & router
	gin.SetMode(gin.ReleaseMode)
	emailHandler := handler.NewEmailHandler(replyService, cfg.Reply.FailureStatus)
	router := httpserver.NewRouter(emailHandler, geminiClient, cfg.Server.AllowedOrigins, logger)

	srv := &http.Server{
		Addr:              cfg.Server.Port,
		Handler:           router.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGTERM, syscall.SIGINT)

	stopHTTP, errHTTPCh := serveHTTP(srv, logger)
	defer stopHTTP()

	select {
	case err := <-errHTTPCh:
		logger.Error("HTTP server failed", zap.Error(err))
	case sig := <-shutdown:
		logger.Info("Shutdown signal received", zap.String("signal", sig.String()))
	}
}

func serveHTTP(srv *http.Server, logger *zap.Logger) (func(), <-chan error) {
	errHTTPCh := make(chan error, 1)
	go func() {
		defer close(errHTTPCh)

		logger.Info("Starting email writer service", zap.String("addr", srv.Addr))

		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errHTTPCh <- fmt.Errorf("srv.ListenAndServe failed: %w", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("srv.Shutdown failed", zap.Error(err))
		}

		<-errHTTPCh
		logger.Info("HTTP server stopped")
	}, errHTTPCh
}

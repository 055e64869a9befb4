// Command server runs the Eratosthenes game server: room WebSockets, the
// REST control surface, prometheus metrics and quickwit log shipping.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eratosthenes-game/server/internal/v1/api"
	"github.com/eratosthenes-game/server/internal/v1/auth"
	"github.com/eratosthenes-game/server/internal/v1/config"
	"github.com/eratosthenes-game/server/internal/v1/geo"
	"github.com/eratosthenes-game/server/internal/v1/health"
	"github.com/eratosthenes-game/server/internal/v1/logging"
	"github.com/eratosthenes-game/server/internal/v1/middleware"
	"github.com/eratosthenes-game/server/internal/v1/registry"
	"github.com/eratosthenes-game/server/internal/v1/room"
	"github.com/eratosthenes-game/server/internal/v1/tracing"
	"github.com/eratosthenes-game/server/internal/v1/transport"
	"github.com/eratosthenes-game/server/internal/v1/uploads"
)

const serviceName = "eratosthenes-server"

func main() {
	var cfg config.Config
	if err := newCmd(&cfg).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "eratosthenes-server",
		Short:         "Real-time multiplayer geography guessing game server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cfg)
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&cfg.ListenAddress, "listen-address", "0.0.0.0:3000", "host:port the HTTP server binds")
	fs.StringVar(&cfg.JWTSigningKey, "jwt-signing-key", "", "HMAC key signing passcodes")
	fs.StringVar(&cfg.LocationsPath, "locations", "locations.json", "path to the newline-delimited JSON location catalog")
	fs.StringVar(&cfg.QuickwitURL, "quickwit-url", "", "quickwit base URL; empty disables log shipping")
	fs.StringSliceVar(&cfg.AllowedOrigins, "allowed-origins", nil, "CORS and WebSocket origin allow-list; empty allows any origin")
	fs.BoolVar(&cfg.Development, "development", false, "human-readable log output")

	v := viper.New()
	v.SetEnvPrefix("ERT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		// .env files are a development convenience; absence is fine.
		_ = godotenv.Load(".env")

		var bindErr error
		fs.VisitAll(func(f *pflag.Flag) {
			if err := v.BindPFlag(f.Name, f); err != nil && bindErr == nil {
				bindErr = err
				return
			}
			if !f.Changed && v.IsSet(f.Name) {
				if err := fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name))); err != nil && bindErr == nil {
					bindErr = err
				}
			}
		})
		return bindErr
	}

	return cmd
}

func run(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	var quickwitCore *logging.QuickwitCore
	var extraCores []zapcore.Core
	if cfg.QuickwitURL != "" {
		quickwitCore = logging.NewQuickwitCore(cfg.QuickwitURL)
		extraCores = append(extraCores, quickwitCore)
	}
	if err := logging.Initialize(cfg.Development, extraCores...); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer func() {
		_ = logging.GetLogger().Sync()
		if quickwitCore != nil {
			quickwitCore.Close()
		}
	}()

	ctx := context.Background()

	tracingEnabled := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != ""
	if tracingEnabled {
		tp, err := tracing.InitTracer(ctx, serviceName, os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
		if err != nil {
			return fmt.Errorf("failed to initialize tracing: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = tp.Shutdown(shutdownCtx)
		}()
	}

	locations, err := geo.LoadLocations(cfg.LocationsPath)
	if err != nil {
		return err
	}
	logging.Info(ctx, "locations loaded",
		zap.String("path", cfg.LocationsPath),
		zap.Int("count", locations.Len()))

	passcodes := auth.NewPasscodes([]byte(cfg.JWTSigningKey))
	sockets := registry.New()
	engine := room.NewEngine(room.NewStore(), sockets, locations)
	hub := transport.NewHub(engine, sockets, passcodes, cfg.AllowedOrigins)
	uploadsClient := uploads.NewFromEnv(ctx)

	if cfg.Development {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.RequestLogger(passcodes))
	if tracingEnabled {
		router.Use(otelgin.Middleware(serviceName))
	}

	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, api.PasscodeHeader, middleware.HeaderXCorrelationID)
	router.Use(cors.New(corsConfig))

	router.GET("/health/check", health.NewHandler().Check)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/rooms/:id/ws", hub.ServeWs)
	api.NewHandler(engine, passcodes, uploadsClient).Register(router)

	stopCounting := startSocketsCountLoop(sockets)
	defer stopCounting()

	srv := &http.Server{
		Addr:    cfg.ListenAddress,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info(ctx, "server listening", zap.String("address", cfg.ListenAddress))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-quit:
		logging.Info(ctx, "shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	logging.Info(ctx, "server stopped")
	return nil
}

// startSocketsCountLoop logs the registry size every 10 seconds for the
// sockets_counts quickwit index. The returned function stops the loop.
func startSocketsCountLoop(sockets *registry.Registry) func() {
	ticker := time.NewTicker(10 * time.Second)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				logging.Info(context.Background(), "sockets count",
					zap.String(logging.TaskField, logging.TaskSocketsCount),
					zap.Int("count", sockets.Count()),
					zap.Int64("timestamp", time.Now().Unix()))
			case <-done:
				return
			}
		}
	}()
	return func() {
		ticker.Stop()
		close(done)
	}
}

package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"authapi/internal/config"
	routes "authapi/internal/modules"
	"authapi/internal/modules/auth"
	"authapi/internal/modules/credentials"
	"authapi/internal/modules/healthchecker"
	"authapi/internal/modules/notifier"
	"authapi/internal/modules/rateLimiter"
	"authapi/internal/modules/tokens"
	"authapi/internal/modules/users"
)

const shutdownTimeout = 30 * time.Second

// App owns every long-lived component of the service.
type App struct {
	config  *config.Config
	logger  *zap.Logger
	store   users.Store
	limiter *rateLimiter.FixedWindowLimiter
	health  *healthchecker.HealthChecker
	handler http.Handler
}

// NewApp wires the store, token manager, notifier, limiter and router from cfg.
func NewApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	sugar := logger.Sugar()

	store, err := users.Open(ctx, users.Options{
		Driver:        cfg.Store.Driver,
		RedisAddr:     cfg.Store.Redis.Addr,
		RedisPassword: cfg.Store.Redis.Password,
		RedisDB:       cfg.Store.Redis.DB,
		RedisPrefix:   cfg.Store.Redis.Prefix,
		Path:          cfg.Store.Libsql.Path,
		URL:           cfg.Store.Libsql.URL,
		AuthToken:     cfg.Store.Libsql.AuthToken,
	})
	if err != nil {
		return nil, fmt.Errorf("open user store: %w", err)
	}
	sugar.Infof("User store %q opened", cfg.Store.Driver)

	a, err := build(ctx, cfg, store, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return a, nil
}

func build(ctx context.Context, cfg *config.Config, store users.Store, logger *zap.Logger) (*App, error) {
	codec, err := credentials.NewCodec(cfg.Auth.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("credential codec: %w", err)
	}

	manager, err := tokens.NewManager(tokens.Config{
		Secret: []byte(cfg.Auth.JWTSecret),
		TTL:    cfg.Auth.TokenTTL,
		Issuer: cfg.Auth.Issuer,
	})
	if err != nil {
		return nil, fmt.Errorf("token manager: %w", err)
	}

	mailer, err := newNotifier(ctx, cfg.Notifier, logger)
	if err != nil {
		return nil, fmt.Errorf("notifier: %w", err)
	}

	limiter, err := rateLimiter.NewFixedWindowLimiter(rateLimiter.Config{
		Limit:  cfg.RateLimiter.Limit,
		Window: cfg.RateLimiter.Window,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	keyFn, err := limiterKeyFunc(cfg.RateLimiter)
	if err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	hc := healthchecker.NewHealthChecker(healthchecker.Config{
		HealthyFrequency:   cfg.HealthChecker.HealthyServerFrequency,
		UnhealthyFrequency: cfg.HealthChecker.UnhealthyServerFrequency,
		Timeout:            cfg.HealthChecker.Timeout,
	}, logger)
	hc.AddTarget("store", store)

	service := auth.NewService(store, codec, manager, mailer, auth.Options{
		BaseURL:        cfg.App.BaseURL,
		EchoResetToken: cfg.Auth.EchoResetToken,
	}, logger)

	router := routes.CreateRouter(routes.Deps{
		Auth:     auth.NewHandler(service, logger),
		Verifier: manager,
		Limiter:  limiter,
		KeyFunc:  keyFn,
		Health:   hc,
		Logger:   logger,
	}, routes.Options{
		PathPrefix:   cfg.App.PathPrefix,
		AdminEnabled: cfg.Admin.Enabled,
		AdminToken:   cfg.Admin.Token,
	})

	return &App{
		config:  cfg,
		logger:  logger,
		store:   store,
		limiter: limiter,
		health:  hc,
		handler: h2c.NewHandler(router, &http2.Server{}),
	}, nil
}

// limiterKeyFunc keys on the socket address unless a header or trusted proxies
// are configured.
func limiterKeyFunc(cfg config.RateLimiter) (rateLimiter.KeyFunc, error) {
	switch {
	case cfg.KeyHeader != "":
		return rateLimiter.HeaderKeyFunc(cfg.KeyHeader), nil
	case len(cfg.TrustedProxies) > 0:
		return rateLimiter.TrustedProxyKeyFunc(cfg.TrustedProxies)
	default:
		return rateLimiter.RemoteIPKeyFunc, nil
	}
}

func newNotifier(ctx context.Context, cfg config.Notifier, logger *zap.Logger) (notifier.Notifier, error) {
	var base notifier.Notifier
	switch cfg.Driver {
	case notifier.DriverSES:
		ses, err := notifier.NewSESNotifier(ctx, cfg.Region, cfg.From, logger)
		if err != nil {
			return nil, err
		}
		base = ses
	case notifier.DriverLog, "":
		base = notifier.NewLogNotifier(logger)
	default:
		return nil, fmt.Errorf("unknown notifier driver %q", cfg.Driver)
	}

	if cfg.RatePerSecond <= 0 {
		return base, nil
	}
	return notifier.NewThrottled(base, cfg.RatePerSecond, cfg.Burst), nil
}

func (a *App) Handler() http.Handler {
	return a.handler
}

// Run serves until ctx is cancelled or SIGINT/SIGTERM arrives, then shuts
// down gracefully.
func (a *App) Run(ctx context.Context) error {
	sugar := a.logger.Sugar()
	defer a.close()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.health.CheckAll(ctx)
	a.health.Start(ctx)
	sugar.Info("Health checker started")

	server := &http.Server{
		Addr:              a.config.App.ListenAddress(),
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		sugar.Infof("Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		sugar.Info("Received shutdown signal")
	}

	return handleShutdown(server, sugar)
}

func handleShutdown(server *http.Server, sugar *zap.SugaredLogger) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		sugar.Errorf("Shutdown error: %v", err)
		return err
	}
	sugar.Info("Server stopped gracefully")
	return nil
}

func (a *App) close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("Error closing user store", zap.Error(err))
	}
}

// InitLogger builds the production JSON logger, or the development console
// logger when level is "debug".
func InitLogger(level string) (*zap.Logger, error) {
	if level == "debug" {
		return zap.NewDevelopment()
	}

	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if level != "" {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	return cfg.Build()
}

// MustLogger is InitLogger for process start-up, where a broken logger is fatal.
func MustLogger(level string) *zap.Logger {
	logger, err := InitLogger(level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	return logger
}

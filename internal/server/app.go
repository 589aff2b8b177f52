// Package server wires the budget API together: storage, authentication
// services, the security event log, the REST API and the internal gRPC
// health endpoint. It also handles graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/jorenvermeersch/budget-api/internal/cryptox"
	"github.com/jorenvermeersch/budget-api/internal/logging"
	"github.com/jorenvermeersch/budget-api/internal/server/audit"
	"github.com/jorenvermeersch/budget-api/internal/server/auth"
	"github.com/jorenvermeersch/budget-api/internal/server/breach"
	"github.com/jorenvermeersch/budget-api/internal/server/config"
	"github.com/jorenvermeersch/budget-api/internal/server/mail"
	"github.com/jorenvermeersch/budget-api/internal/server/metrics"
	"github.com/jorenvermeersch/budget-api/internal/server/ratelimit"
	"github.com/jorenvermeersch/budget-api/internal/server/repositories/repomanager"
	"github.com/jorenvermeersch/budget-api/internal/server/rest"
	"github.com/jorenvermeersch/budget-api/internal/server/services"
	"github.com/redis/go-redis/v9"

	gs "github.com/jorenvermeersch/budget-api/internal/server/grpc"
)

const securityEventBuffer = 1024

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB

	archive *audit.AsyncSink
	redis   *redis.Client
	reset   *services.PasswordResetService

	httpServer *rest.Server
	grpcServer *gs.GRPCServer
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)
	if c.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := repomanager.OpenDB(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	app := &App{config: c, logger: logger, db: db}
	if err := app.build(ctx); err != nil {
		app.close(ctx)
		return nil, err
	}

	return app, nil
}

func (app *App) build(ctx context.Context) error {
	c := app.config

	m := repomanager.NewPostgresRepositoryManager()
	if err := m.RunMigrations(ctx, app.db); err != nil {
		return fmt.Errorf("migrations error: %w", err)
	}

	hasher, err := cryptox.NewHasher(cryptox.Params{
		Memory:      c.ArgonMemory,
		Iterations:  c.ArgonIterations,
		Parallelism: c.ArgonParallelism,
		SaltLength:  c.ArgonSaltLength,
		KeyLength:   c.ArgonKeyLength,
	})
	if err != nil {
		return fmt.Errorf("hasher init error: %w", err)
	}

	tokens, err := auth.NewTokenService([]byte(c.JWTSecret), c.JWTIssuer, c.JWTAudience, c.JWTValidity)
	if err != nil {
		return fmt.Errorf("token service init error: %w", err)
	}

	// security events
	meter := metrics.New()
	sinks := []audit.Sink{meter}
	if c.S3ArchiveEnabled {
		client, err := audit.NewS3Client(ctx, audit.S3Options{
			Bucket:       c.S3Bucket,
			Prefix:       c.S3Prefix,
			Region:       c.S3Region,
			BaseEndpoint: c.S3BaseEndpoint,
			AccessKey:    c.S3AccessKey,
			SecretKey:    c.S3SecretKey,
		})
		if err != nil {
			return fmt.Errorf("s3 init error: %w", err)
		}
		app.archive = audit.NewAsyncSink(audit.NewS3Sink(client, c.S3Bucket, c.S3Prefix), securityEventBuffer, app.logger)
		sinks = append(sinks, app.archive)
	}
	recorder := audit.NewRecorder(app.logger, sinks...)

	checker := breach.NewChecker(breach.Options{
		Enabled: c.BreachCheckEnabled,
		BaseURL: c.BreachCheckURL,
		Timeout: c.BreachCheckTimeout,
	}, app.logger)

	var sender mail.Sender = mail.NewLogSender(app.logger)
	if c.MailAPIKey != "" {
		sender = mail.NewAPISender(c.MailAPIURL, c.MailAPIKey, c.MailFrom, c.MailFromName, c.MailTimeout)
	}

	lockouts := services.NewLockoutTracker(app.db, m, c.LockoutThreshold, c.LockoutDuration)
	policy := services.NewPasswordPolicy(c.PasswordMinLength, c.PasswordMaxLength, c.PasswordMinScore, checker, recorder, app.logger)

	authService, err := services.NewAuthService(app.db, m, hasher, tokens, lockouts, policy, recorder, app.logger)
	if err != nil {
		return fmt.Errorf("auth service init error: %w", err)
	}

	app.reset = services.NewPasswordResetService(app.db, m, hasher, lockouts, policy, sender, recorder, app.logger,
		services.ResetOptions{
			Validity:    c.ResetTokenValidity,
			ResetURL:    c.ResetURL,
			MailTimeout: c.MailTimeout,
		})

	deps := rest.Deps{
		Auth:         authService,
		Reset:        app.reset,
		Users:        services.NewUserService(app.db, m, recorder, app.logger),
		Places:       services.NewPlaceService(app.db, m),
		Transactions: services.NewTransactionService(app.db, m, recorder),
		Recorder:     recorder,
		Logger:       app.logger,
		Metrics:      meter,
		Health:       app.db.PingContext,
	}

	if c.RedisAddr != "" {
		app.redis = redis.NewClient(&redis.Options{Addr: c.RedisAddr})
		if err := app.redis.Ping(ctx).Err(); err != nil {
			app.logger.Warn(ctx, "redis is unreachable, rate limiting fails open", "address", c.RedisAddr, "error", err)
		}
		deps.Limiter = ratelimit.NewLimiter(app.redis, app.logger)
	}

	router, err := rest.NewRouter(deps, rest.Options{
		CORSOrigins:       c.CORSOrigins,
		TimingMinDelay:    c.TimingMinDelay,
		TimingMaxDelay:    c.TimingMaxDelay,
		RateLimitRequests: c.RateLimitRequests,
		RateLimitWindow:   c.RateLimitWindow,
		TrustedProxies:    c.TrustedProxies,
	})
	if err != nil {
		return err
	}

	app.httpServer = rest.NewServer(c.HTTPAddr, router, app.logger)
	app.grpcServer = gs.NewGRPCServer(c.GRPCAddr, app.logger, authService, app.db)

	return nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.httpServer.Run(ctx); err != nil {
		app.logger.Error(ctx, "http server error", "error", err)
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.grpcServer.Run(ctx); err != nil {
		app.logger.Error(ctx, "grpc server error", "error", err)
		cancelFunc()
	}
}

// Run blocks until a signal arrives or one of the servers fails, then
// drains pending work and releases resources.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Wait()

	app.close(context.WithoutCancel(ctx))
	app.logger.Info(ctx, "App stopped")
}

func (app *App) close(ctx context.Context) {
	if app.reset != nil {
		app.reset.Wait()
	}
	if app.archive != nil {
		app.archive.Close()
	}
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error(ctx, "error closing redis client", "error", err)
		}
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "error closing database", "error", err)
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/nkiryanov/authkeeper/internal/cache"
	"github.com/nkiryanov/authkeeper/internal/db"
	"github.com/nkiryanov/authkeeper/internal/handlers"
	"github.com/nkiryanov/authkeeper/internal/logger"
	"github.com/nkiryanov/authkeeper/internal/repository/postgres"
	"github.com/nkiryanov/authkeeper/internal/service/auth"
	"github.com/nkiryanov/authkeeper/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/authkeeper/internal/service/user"
)

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler

	logger logger.Logger
	pool   *pgxpool.Pool
	redis  *redis.Client
}

func NewServerApp(ctx context.Context, c *Config) (*ServerApp, error) {
	// Initialize logger
	l, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}
	l.Info("starting authkeeper", "config", c)

	accessTTL, err := c.AccessTTL()
	if err != nil {
		return nil, fmt.Errorf("error while parsing access token lifetime: %w", err)
	}

	// Connect to the database and run migrations
	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}

	redisClient, err := connectRedis(ctx, c.RedisURL)
	if err != nil {
		pool.Close()
		return nil, err
	}

	storage := postgres.NewStorage(pool)

	// Initialize services
	userService := user.NewService(
		user.Config{CacheTTL: accessTTL},
		auth.BcryptHasher{},
		storage,
		cache.NewUserCache(redisClient),
		l,
	)
	authService, err := auth.NewAuthService(
		auth.AuthServiceConfig{Token: tokenmanager.Config{SecretKey: c.SecretKey, AccessTTL: accessTTL}},
		userService,
		storage.Refresh(),
		l,
	)
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("error while creating auth service. Err: %w", err)
	}

	mux := handlers.NewRouter(
		handlers.RouterConfig{SecureCookie: c.Environment == logger.EnvProduction},
		authService,
		userService,
		l,
	)

	return &ServerApp{
		ListenAddr: c.ListenAddr,
		Handler:    mux,
		logger:     l,
		pool:       pool,
		redis:      redisClient,
	}, nil
}

func connectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis url is not valid. Err: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis is not reachable. Err: %w", err)
	}

	return client, nil
}

// Run starts http server and closes gracefully on context cancellation
// Database and redis connections are closed when server stopped
func (s *ServerApp) Run(ctx context.Context) error {
	defer s.close()

	httpServer := &http.Server{
		Addr:              s.ListenAddr,
		Handler:           s.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	idleConnsClosed := make(chan struct{})
	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); errors.Is(err, context.DeadlineExceeded) {
			s.logger.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		s.logger.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully connections
	s.logger.Info("Starting server", "address", s.ListenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed

	return err
}

func (s *ServerApp) close() {
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Warn("redis client close error", "error", err)
		}
	}
	if s.pool != nil {
		s.pool.Close()
	}
}

// internal/app/server.go
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"blog-session/internal/config"
	"blog-session/internal/db"
	authHandler "blog-session/internal/handlers/auth"
	blogHandler "blog-session/internal/handlers/blog"
	"blog-session/internal/middleware"
	"blog-session/internal/pkg/jwt"
	"blog-session/internal/repository/memory"
	"blog-session/internal/repository/redisrepo"
	"blog-session/internal/service/account"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	cfg    config.StubConfig
	engine *gin.Engine
	logger *zap.Logger
	redis  redis.UniversalClient

	JWT      *jwt.Manager
	Accounts *memory.AccountRepository
	Posts    *memory.PostRepository
}

// NewServer connects to redis and wires the backend.
func NewServer(ctx context.Context, cfg config.StubConfig, logger *zap.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	redisClient, err := db.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	logger.Info("redis connected", zap.Strings("addrs", cfg.Redis.Addrs))

	s, err := Build(ctx, cfg, redisClient, logger)
	if err != nil {
		_ = redisClient.Close()
		return nil, err
	}
	return s, nil
}

// Build wires the backend over an existing redis client.
func Build(ctx context.Context, cfg config.StubConfig, redisClient redis.UniversalClient, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	gin.SetMode(cfg.GinMode)

	// ----- JWT Manager -----
	jwtManager, err := jwt.LoadAndBuild(cfg.JWT)
	if err != nil {
		return nil, fmt.Errorf("failed to load JWT manager: %w", err)
	}
	if cfg.JWT.PrivPath == "" {
		logger.Warn("no JWT key configured, using an ephemeral key")
	}

	// ----- Repositories -----
	accounts := memory.NewAccountRepository()
	posts := memory.NewPostRepository()
	sessions := redisrepo.NewSessionRepository(redisClient)
	if cfg.SeedPosts {
		if err := memory.SeedPosts(ctx, posts); err != nil {
			return nil, fmt.Errorf("failed to seed posts: %w", err)
		}
	}

	// ----- Services -----
	accountService := account.NewAccountService(accounts, posts, sessions, jwtManager, cfg.AdminSecret, logger)

	// ----- Handlers & Middlewares -----
	handlers := &Handlers{
		AuthHandler:    authHandler.NewAuthHandler(accountService, logger),
		BlogHandler:    blogHandler.NewBlogHandler(posts),
		AuthMiddleware: middleware.NewAuthMiddleware(jwtManager.Verifier, accounts),
	}

	engine := gin.New()
	engine.Use(
		middleware.RecoveryMiddleware(logger),
		middleware.LoggingMiddleware(logger),
	)
	SetupRouter(engine, handlers)

	return &Server{
		cfg:      cfg,
		engine:   engine,
		logger:   logger,
		redis:    redisClient,
		JWT:      jwtManager,
		Accounts: accounts,
		Posts:    posts,
	}, nil
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("authstub listening", zap.String("addr", s.cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return s.redis.Close()
}

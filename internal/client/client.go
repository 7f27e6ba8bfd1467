// Package client assembles the session pipeline: store, device identity,
// refresh resolver, dispatcher profiles and the API services on top.
package client

import (
	"context"
	"fmt"
	"io"

	"blog-session/internal/config"
	"blog-session/internal/db"
	"blog-session/internal/pkg/device"
	"blog-session/internal/pkg/session"
	authsvc "blog-session/internal/service/auth"
	blogsvc "blog-session/internal/service/blog"
	"blog-session/internal/service/refresh"
	"blog-session/internal/transport"

	"go.uber.org/zap"
)

type Client struct {
	Store      *session.Store
	Devices    *device.Provider
	Resolver   *refresh.Resolver
	Dispatcher *transport.Dispatcher
	Auth       *authsvc.AuthService
	Blog       *blogsvc.BlogService

	closers []io.Closer
}

// Options override parts of the default assembly.
type Options struct {
	Persister  session.Persister
	Redirector transport.Redirector
	Devices    *device.Provider
	Logger     *zap.Logger
}

// New builds a Client from cfg. The persister is chosen by cfg.StoreBackend
// unless opts.Persister is set.
func New(ctx context.Context, cfg config.ClientConfig, opts Options) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{}

	persister := opts.Persister
	if persister == nil {
		p, closer, err := openPersister(ctx, cfg)
		if err != nil {
			return nil, err
		}
		persister = p
		if closer != nil {
			c.closers = append(c.closers, closer)
		}
	}

	c.Store = session.NewStore(ctx, persister, logger.Named("session"))

	c.Devices = opts.Devices
	if c.Devices == nil {
		c.Devices = device.NewProvider(device.WithLogger(logger.Named("device")))
	}

	// The resolver refreshes through the anonymous profile, which in turn
	// needs the resolver; the refresher is attached once both exist.
	c.Resolver = refresh.NewResolver(c.Store, c.Devices, nil, logger.Named("refresh"))

	dispatcher, err := transport.New(transport.Config{
		BaseURL:   cfg.APIBaseURL,
		Timeout:   cfg.Timeout,
		LoginPath: cfg.LoginPath,
	}, c.Store, c.Resolver, opts.Redirector, logger.Named("transport"))
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	c.Dispatcher = dispatcher

	c.Auth = authsvc.NewAuthService(dispatcher, c.Store, c.Devices, c.Resolver, logger.Named("auth"))
	c.Resolver.SetRefresher(c.Auth)
	c.Blog = blogsvc.NewBlogService(dispatcher, logger.Named("blog"))

	return c, nil
}

// Close releases the persister's connections.
func (c *Client) Close() error {
	var first error
	for _, closer := range c.closers {
		if err := closer.Close(); err != nil && first == nil {
			first = err
		}
	}
	c.closers = nil
	return first
}

func openPersister(ctx context.Context, cfg config.ClientConfig) (session.Persister, io.Closer, error) {
	switch cfg.StoreBackend {
	case config.StoreRedis:
		rdb, err := db.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		return session.NewRedisStore(rdb, cfg.StoreKey), rdb, nil
	case config.StoreMemory:
		return session.NewMemoryStore(), nil, nil
	default:
		return session.NewFileStore(cfg.StorePath), nil, nil
	}
}

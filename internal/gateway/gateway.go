// ABOUTME: Gateway orchestrator that wires store, cache, tool registry, dispatcher and MCP server
// ABOUTME: Owns the HTTP listener lifecycle and the stdio transport entry point

package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/uavcrew/compliance-gateway/internal/auth"
	"github.com/uavcrew/compliance-gateway/internal/builtins"
	"github.com/uavcrew/compliance-gateway/internal/cache"
	"github.com/uavcrew/compliance-gateway/internal/config"
	"github.com/uavcrew/compliance-gateway/internal/dispatch"
	"github.com/uavcrew/compliance-gateway/internal/mcp"
	"github.com/uavcrew/compliance-gateway/internal/packs"
	"github.com/uavcrew/compliance-gateway/internal/store"
)

// Gateway orchestrates the compliance-gateway components.
type Gateway struct {
	config     *config.Config
	store      store.Store
	registry   *packs.Registry
	dispatcher *dispatch.Dispatcher
	mcpServer  *mcp.Server
	httpServer *http.Server
	logger     *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

// Option customizes New.
type Option func(*options)

type options struct {
	version        string
	store          store.Store
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	streamOnly     bool
}

// WithVersion sets the version reported by initialize.
func WithVersion(v string) Option {
	return func(o *options) { o.version = v }
}

// WithStore uses s instead of opening the configured database. The gateway
// still owns s and closes it on Shutdown.
func WithStore(s store.Store) Option {
	return func(o *options) { o.store = s }
}

// WithTracerProvider sets the provider for dispatcher spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracerProvider = tp }
}

// WithMeterProvider sets the provider for dispatcher metrics.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) { o.meterProvider = mp }
}

// WithStreamOnly allows a config without HTTP credentials. The HTTP
// handler then rejects every request; the stream transport is unaffected.
func WithStreamOnly() Option {
	return func(o *options) { o.streamOnly = true }
}

// OpenStore opens the configured database and seeds it when
// database.seed_demo_data is set.
func OpenStore(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (store.Store, error) {
	switch cfg.Driver {
	case "memory":
		if cfg.SeedDemoData {
			return store.NewMemoryStoreWithFixtures()
		}
		return store.NewMemoryStore(), nil

	case "sqlite", "postgres":
		var (
			s   *store.SQLStore
			err error
		)
		if cfg.Driver == "sqlite" {
			s, err = store.NewSQLiteStore(cfg.Path)
		} else {
			s, err = store.NewPostgresStore(ctx, cfg.URL, store.PoolOptions{
				MaxOpenConns:    cfg.MaxOpenConns,
				MaxIdleConns:    cfg.MaxIdleConns,
				ConnMaxLifetime: cfg.ConnMaxLifetime,
			})
		}
		if err != nil {
			return nil, fmt.Errorf("initializing store: %w", err)
		}
		if cfg.SeedDemoData {
			n, err := s.Seed(ctx)
			if err != nil {
				_ = s.Close()
				return nil, fmt.Errorf("seeding demo data: %w", err)
			}
			if n > 0 {
				logger.Info("demo data seeded", "records", n)
			}
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
}

// openCache returns the configured lookup cache, or nil when caching is off.
func openCache(ctx context.Context, cfg config.CacheConfig) (cache.Cache, error) {
	switch cfg.Driver {
	case "", "none":
		return nil, nil
	case "memory":
		return cache.NewMemory(cfg.TTL, cfg.MaxEntries), nil
	case "redis":
		c, err := cache.NewRedis(ctx, cache.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.KeyPrefix,
			TTL:      cfg.TTL,
		})
		if err != nil {
			return nil, fmt.Errorf("connecting to redis cache: %w", err)
		}
		return c, nil
	}
	return nil, fmt.Errorf("unknown cache driver %q", cfg.Driver)
}

// BuildRegistry registers every builtin pack enabled by cfg.
func BuildRegistry(cfg *config.Config, catalog store.Catalog, logger *slog.Logger) (*packs.Registry, error) {
	b := packs.NewBuilder(logger.With("component", "registry"))
	err := builtins.RegisterAll(b, catalog, builtins.Options{
		FilesRoot:    cfg.Files.Root,
		MaxReadBytes: cfg.Files.MaxReadBytes,
	})
	if err != nil {
		return nil, err
	}
	return b.Build(), nil
}

// New creates a new Gateway instance with the given configuration.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	s := o.store
	if s == nil {
		var err error
		s, err = OpenStore(ctx, cfg.Database, logger)
		if err != nil {
			return nil, err
		}
	}

	c, err := openCache(ctx, cfg.Cache)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	if c != nil {
		s = store.NewCached(s, c, logger)
		logger.Info("lookup cache enabled", "driver", cfg.Cache.Driver, "ttl", cfg.Cache.TTL)
	}

	gw, err := assemble(cfg, s, logger, o)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	return gw, nil
}

func assemble(cfg *config.Config, s store.Store, logger *slog.Logger, o options) (*Gateway, error) {
	registry, err := BuildRegistry(cfg, s.Catalog(), logger)
	if err != nil {
		return nil, err
	}

	dispatcher, err := dispatch.New(dispatch.Config{
		Registry:       registry,
		Store:          s,
		Logger:         logger,
		TracerProvider: o.tracerProvider,
		MeterProvider:  o.meterProvider,
	})
	if err != nil {
		return nil, fmt.Errorf("creating dispatcher: %w", err)
	}

	gate, err := auth.NewGate(auth.GateConfig{
		APIKey:    cfg.Auth.APIKey,
		JWTSecret: cfg.Auth.JWTSecret,
		Disabled:  cfg.Auth.Disabled,
		Logger:    logger,
	})
	switch {
	case errors.Is(err, auth.ErrNoCredential) && o.streamOnly:
		logger.Debug("no HTTP credential configured, HTTP transport closed")
		gate = nil
	case err != nil:
		return nil, fmt.Errorf("creating auth gate: %w", err)
	}

	mcpServer, err := mcp.NewServer(mcp.Config{
		Dispatcher:   dispatcher,
		Gate:         gate,
		Logger:       logger,
		Version:      o.version,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
	})
	if err != nil {
		return nil, fmt.Errorf("creating MCP server: %w", err)
	}

	return &Gateway{
		config:     cfg,
		store:      s,
		registry:   registry,
		dispatcher: dispatcher,
		mcpServer:  mcpServer,
		httpServer: &http.Server{
			Addr:              cfg.Server.HTTPAddr,
			Handler:           mcpServer.HTTPHandler(),
			ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		},
		logger: logger.With("component", "gateway"),
	}, nil
}

// Registry returns the frozen tool registry.
func (g *Gateway) Registry() *packs.Registry {
	return g.registry
}

// Handler returns the HTTP handler, for mounting in tests or other servers.
func (g *Gateway) Handler() http.Handler {
	return g.httpServer.Handler
}

// Run listens on server.http_addr and serves until ctx is canceled, then
// shuts down gracefully. Returns nil on graceful shutdown.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on HTTP address: %w", err)
	}
	return g.Serve(ctx, ln)
}

// Serve serves HTTP on ln until ctx is canceled or the server fails.
func (g *Gateway) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	serverErr := g.waitForShutdownSignal(ctx, errCh)
	shutdownErr := g.gracefulShutdown()

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// ServeStdio runs the stream transport on r and w until EOF or ctx is
// canceled, then closes the store.
func (g *Gateway) ServeStdio(ctx context.Context, r io.Reader, w io.Writer) error {
	serveErr := g.mcpServer.ServeStream(ctx, r, w)
	if errors.Is(serveErr, context.Canceled) {
		serveErr = nil
	}
	closeErr := g.Close()
	if serveErr != nil {
		return serveErr
	}
	return closeErr
}

// waitForShutdownSignal waits for context cancellation or server error.
func (g *Gateway) waitForShutdownSignal(ctx context.Context, errCh chan error) error {
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
		return nil
	case err := <-errCh:
		g.logger.Error("server error", "error", err)
		return err
	}
}

// gracefulShutdown uses a fresh context since the serving one is already canceled.
func (g *Gateway) gracefulShutdown() error {
	timeout := g.config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = config.DefaultShutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return g.Shutdown(ctx)
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Shutdown stops the HTTP server and releases the store.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", g.httpServer.Shutdown(ctx))
	errs = appendCloseError(errs, "store close", g.closeStore())
	return errors.Join(errs...)
}

// Close releases the store without touching the HTTP server. Only the first
// call closes; later calls return the same result.
func (g *Gateway) Close() error {
	if err := g.closeStore(); err != nil {
		return fmt.Errorf("store close: %w", err)
	}
	return nil
}

func (g *Gateway) closeStore() error {
	g.closeOnce.Do(func() {
		g.closeErr = g.store.Close()
	})
	return g.closeErr
}

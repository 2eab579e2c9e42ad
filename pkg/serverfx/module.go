package serverfx

import (
	"context"
	"crypto/tls"
	"errors"
	"io/fs"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/joeydtaylor/steeze-ssr/pkg/bundlefx"
	"github.com/joeydtaylor/steeze-ssr/pkg/core"
	"github.com/joeydtaylor/steeze-ssr/pkg/manifest"
	"github.com/joeydtaylor/steeze-ssr/pkg/middleware/auth"
	"github.com/joeydtaylor/steeze-ssr/pkg/middleware/logger"
	"github.com/joeydtaylor/steeze-ssr/pkg/middleware/metrics"
	"github.com/joeydtaylor/steeze-ssr/pkg/stream"
	"github.com/joeydtaylor/steeze-ssr/pkg/transport/httpx"
	"github.com/joho/godotenv"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// ---------- Options ----------

type Config struct {
	Service         string // for logs only
	ManifestEnv     string // e.g. STEEZE_MANIFEST
	DefaultManifest string // e.g. "manifest.toml"
	ListenEnv       string // SERVER_LISTEN_ADDRESS; overrides [server].listen
	TLSCertEnv      string // SSL_SERVER_CERTIFICATE
	TLSKeyEnv       string // SSL_SERVER_KEY
	EnvFiles        []string
}

type Option func(*Config)

func WithService(s string) Option            { return func(c *Config) { c.Service = s } }
func WithManifestEnv(k string) Option        { return func(c *Config) { c.ManifestEnv = k } }
func WithDefaultManifest(path string) Option { return func(c *Config) { c.DefaultManifest = path } }
func WithListenEnv(k string) Option          { return func(c *Config) { c.ListenEnv = k } }
func WithTLSCertKeyEnv(cert, key string) Option {
	return func(c *Config) { c.TLSCertEnv, c.TLSKeyEnv = cert, key }
}

// WithEnvFiles replaces the dotenv files read at start (default ".env").
func WithEnvFiles(files ...string) Option { return func(c *Config) { c.EnvFiles = files } }

func defaultConfig() Config {
	return Config{
		Service:         "steeze",
		ManifestEnv:     "STEEZE_MANIFEST",
		DefaultManifest: "manifest.toml",
		ListenEnv:       "SERVER_LISTEN_ADDRESS",
		TLSCertEnv:      "SSL_SERVER_CERTIFICATE",
		TLSKeyEnv:       "SSL_SERVER_KEY",
	}
}

// Module returns the complete Fx option set. Server functions come from
// core.Default; pages are contributed to the "pages" value group:
//
//	fx.Provide(fx.Annotate(func() stream.Page { ... }, fx.ResultTags(`group:"pages"`)))
func Module(opts ...Option) fx.Option {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	// Existing environment wins over dotenv values; a missing file is fine.
	_ = godotenv.Load(cfg.EnvFiles...)

	return fx.Options(
		bundlefx.Module,
		fx.Provide(httpx.NewChi),
		fx.Provide(func() Config { return cfg }),
		fx.Provide(provideManifest),
		fx.Provide(provideRegistry),
		fx.Provide(provideDispatcher),
		fx.Provide(fx.Annotate(provideRouter, fx.ResultTags(`name:"app"`))),
		fx.Invoke(registerHooks),
	)
}

// ---------- Manifest / registry ----------

func provideManifest(cfg Config, zl *zap.Logger) (manifest.Config, error) {
	path := envOr(cfg.ManifestEnv, cfg.DefaultManifest)
	man, err := core.LoadConfig(path)
	if errors.Is(err, fs.ErrNotExist) {
		zl.Info("no manifest; using defaults", zap.String("path", path))
		return manifest.Default(), nil
	}
	if err != nil {
		return manifest.Config{}, err
	}
	zl.Info("manifest loaded", zap.String("path", path), zap.Int("functions", len(man.Functions)), zap.Int("pages", len(man.Pages)))
	return man, nil
}

// provideRegistry applies the manifest to core.Default and seals it; from here
// on the registry is read-only.
func provideRegistry(man manifest.Config, zl *zap.Logger) (*core.Registry, error) {
	reg := core.Default
	if err := core.ApplyManifest(reg, man); err != nil {
		return nil, err
	}
	reg.Seal()
	for _, f := range man.Functions {
		for _, t := range f.Tags {
			if t == "log_body" {
				logger.AddBodyLogPaths(f.Path)
			}
		}
	}
	zl.Info("server functions registered", zap.Strings("paths", reg.Paths()))
	return reg, nil
}

func provideDispatcher(reg *core.Registry, zl *zap.Logger, obs metrics.Dispatch) *core.Dispatcher {
	return core.NewDispatcher(reg,
		core.WithLogger(zl.Named("serverfn")),
		core.WithObserver(obs),
	)
}

// ---------- Router ----------

type routerDeps struct {
	fx.In

	Manifest   manifest.Config
	AuthMW     *auth.Middleware
	LogMW      *logger.Middleware
	Metrics    http.Handler `name:"metrics"`
	Router     httpx.Router
	Registry   *core.Registry
	Dispatcher *core.Dispatcher
	Pages      []stream.Page `group:"pages"`
	Stream     metrics.Stream
	Log        *zap.Logger
}

func provideRouter(d routerDeps) http.Handler {
	return core.BuildRouter(d.Manifest, core.BuildDeps{
		Auth:       d.AuthMW,
		LogMW:      d.LogMW,
		Metrics:    d.Metrics,
		Router:     d.Router,
		Registry:   d.Registry,
		Dispatcher: d.Dispatcher,
		Pages:      d.Pages,
		Stream:     d.Stream,
		Logger:     d.Log.Named("stream"),
	})
}

// ---------- Lifecycle ----------

type serverDeps struct {
	fx.In
	Logger   *zap.Logger
	Manifest manifest.Config
	App      http.Handler `name:"app"`
}

func registerHooks(lc fx.Lifecycle, cfg Config, d serverDeps) {
	addr := envOr(cfg.ListenEnv, d.Manifest.Server.Listen)
	cert := os.Getenv(cfg.TLSCertEnv)
	key := os.Getenv(cfg.TLSKeyEnv)

	// No WriteTimeout: streamed pages stay open until their last resource.
	srv := &http.Server{
		Addr:              addr,
		Handler:           d.App,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	useTLS := fileExists(cert) && fileExists(key)
	if useTLS {
		srv.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS13}
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return err
			}
			d.Logger.Info("server starting", zap.String("service", cfg.Service), zap.String("addr", ln.Addr().String()), zap.Bool("tls", useTLS))
			go func() {
				var err error
				if useTLS {
					err = srv.ServeTLS(ln, cert, key)
				} else {
					err = srv.Serve(ln)
				}
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					d.Logger.Error("server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			d.Logger.Info("server stopping")
			return srv.Shutdown(ctx)
		},
	})
}

// ---------- tiny helpers ----------

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

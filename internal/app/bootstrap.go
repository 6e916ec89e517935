package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/serp1412/coinfeed/internal/api"
	"github.com/serp1412/coinfeed/internal/cache"
	"github.com/serp1412/coinfeed/internal/domain"
	"github.com/serp1412/coinfeed/internal/engine"
	"github.com/serp1412/coinfeed/internal/infra"
	"github.com/serp1412/coinfeed/internal/provider"
	"github.com/serp1412/coinfeed/internal/telemetry"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config    *infra.Config
	Providers provider.Set
	Engine    *engine.Engine
	Hub       *api.Hub
	Server    *api.Server
	Cache     *cache.Publisher
}

func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize loads the config from disk and wires every component.
func (b *Bootstrap) Initialize(ctx context.Context) error {
	cfg, err := infra.LoadConfig(infra.ResolveConfigPath())
	if err != nil {
		return err
	}
	return b.InitializeWith(ctx, cfg)
}

// InitializeWith wires every component from an already parsed config.
// Nothing is connected or started yet; see Start.
func (b *Bootstrap) InitializeWith(ctx context.Context, cfg *infra.Config) error {
	b.Config = cfg

	slog.SetDefault(infra.NewLogger(cfg))
	slog.Info("🚀 Bootstrapping coinfeed...", slog.String("version", cfg.App.Version))

	b.Providers = provider.NewFromConfig(cfg)
	if b.Providers.Catalog == nil {
		return fmt.Errorf("no catalog source configured")
	}

	if cfg.Redis.Enabled {
		pub, err := cache.NewRedisPublisher(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
			time.Duration(cfg.Redis.TTLSec)*time.Second)
		if err != nil {
			// The cache is optional, the service keeps running without it.
			slog.Warn("⚠️ Redis unavailable, snapshots disabled", slog.Any("error", err))
		} else {
			b.Cache = pub
			slog.Info("✅ Redis publisher ready", slog.String("addr", cfg.Redis.Addr))
		}
	}

	b.Hub = api.NewHub(0)
	b.Engine = engine.New(b.Providers.Catalog, b.Providers.Pulls, b.Providers.Pushes,
		engine.WithPageSize(cfg.Catalog.PageSize),
		engine.WithInboxSize(cfg.Engine.InboxSize),
		engine.WithReconnect(cfg.Engine.Reconnect),
		engine.WithObserver(telemetry.EngineObserver{}),
		engine.WithOnUpdate(b.onUpdate),
	)
	b.Server = api.NewServer(b.Engine, b.Hub)
	b.Server.OriginPatterns = cfg.API.AllowedOrigins

	slog.Info("✅ Engine wired", slog.Any("providers", b.Providers.Names()))
	return nil
}

func (b *Bootstrap) onUpdate(c domain.Coin) {
	b.Hub.Broadcast(c)
	if b.Cache != nil {
		b.Cache.Enqueue(c)
	}
}

// Start runs the engine loop, connects the streams and loads the first page.
// A failed first page is logged; clients can retry through the API.
func (b *Bootstrap) Start(ctx context.Context) {
	if b.Cache != nil {
		b.Cache.Start(ctx)
	}

	go b.Engine.Run(ctx)

	if err := b.Engine.Setup(ctx); err != nil {
		slog.Warn("⚠️ Some streams failed to connect", slog.Any("error", err))
	}

	if err := b.Engine.LoadNextPage(ctx); err != nil {
		slog.Error("❌ First page load failed", slog.Any("error", err))
	} else {
		st := b.Engine.Status()
		slog.Info("✅ First page loaded", slog.Int("coins", st.Coins))
	}
}

// Shutdown stops the engine and flushes the cache.
func (b *Bootstrap) Shutdown() {
	if b.Engine != nil {
		b.Engine.Shutdown()
	}
	if b.Cache != nil {
		if err := b.Cache.Close(); err != nil {
			slog.Warn("Redis close failed", slog.Any("error", err))
		}
	}
}

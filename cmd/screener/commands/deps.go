package commands

import (
	"fmt"

	"github.com/twquant/screener/internal/data/finmind"
	"github.com/twquant/screener/internal/screening"
	"github.com/twquant/screener/internal/store"
	"github.com/twquant/screener/pkg/config"
	"github.com/twquant/screener/pkg/logger"
	"github.com/twquant/screener/pkg/redis"
)

// deps bundles the wiring every command shares.
// ⭐ SSOT: 元件組裝只在這裡
type deps struct {
	cfg      *config.Config
	log      *logger.Logger
	redis    *redis.Client
	cache    *redis.Cache
	provider *finmind.Provider
	manager  *screening.Manager
	store    *store.Store
}

func buildDeps() (*deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	log := logger.New(cfg)

	redisClient, err := redis.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	cache := redis.NewCache(redisClient, "screener")

	client := finmind.NewClient(cfg, log)
	provider := finmind.NewProvider(client, cache, log)

	manager := screening.NewManager(log, screening.FilterDefaults{
		MinMarketCap:        cfg.Screening.MinMarketCap,
		LiquidityPercentile: cfg.Screening.MinLiquidityPercentile,
	})

	st, err := store.Open(cfg, log)
	if err != nil {
		redisClient.Close()
		return nil, fmt.Errorf("open result store: %w", err)
	}

	return &deps{
		cfg:      cfg,
		log:      log,
		redis:    redisClient,
		cache:    cache,
		provider: provider,
		manager:  manager,
		store:    st,
	}, nil
}

func (d *deps) Close() {
	d.store.Close()
	d.redis.Close()
}

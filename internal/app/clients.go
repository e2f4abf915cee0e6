package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/fundtracer/fundtracer-backend/internal/clients/redis"
	"github.com/fundtracer/fundtracer-backend/internal/platform/logger"
)

type Clients struct {
	// Redis is nil when REDIS_ADDR is unset.
	Redis  *goredis.Client
	Events redis.EventBus
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")

	if strings.TrimSpace(cfg.Redis.Addr) == "" {
		log.Warn("REDIS_ADDR not set; donation events will not be published")
		return Clients{Events: redis.NewNopEventBus()}, nil
	}
	rdb, err := redis.NewClient(ctx, redis.Options{
		Addr:        cfg.Redis.Addr,
		Password:    cfg.Redis.Password,
		DB:          cfg.Redis.DB,
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return Clients{}, fmt.Errorf("init redis: %w", err)
	}
	bus, err := redis.NewEventBusFromClient(log, rdb, cfg.Redis.EventsChannel)
	if err != nil {
		_ = rdb.Close()
		return Clients{}, fmt.Errorf("init redis event bus: %w", err)
	}
	return Clients{Redis: rdb, Events: bus}, nil
}

func (c Clients) Close() {
	if c.Events != nil {
		_ = c.Events.Close()
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
}

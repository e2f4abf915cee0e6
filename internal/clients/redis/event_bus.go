package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/fundtracer/fundtracer-backend/internal/domain/ledger"
	"github.com/fundtracer/fundtracer-backend/internal/platform/logger"
)

const DefaultEventsChannel = "fundtracer.donations"

type EventBus interface {
	Publish(ctx context.Context, ev ledger.StatusChangedEvent) error
	StartForwarder(ctx context.Context, onEvent func(ev ledger.StatusChangedEvent)) error
	Close() error
}

type Options struct {
	Addr        string
	Password    string
	DB          int
	Channel     string
	DialTimeout time.Duration
}

type eventBus struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
}

// NewClient dials and pings a Redis client.
func NewClient(ctx context.Context, opts Options) (*goredis.Client, error) {
	addr := strings.TrimSpace(opts.Addr)
	if addr == "" {
		return nil, fmt.Errorf("missing redis addr")
	}
	dial := opts.DialTimeout
	if dial <= 0 {
		dial = 5 * time.Second
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: dial,
	})
	pingCtx, cancel := context.WithTimeout(ctx, dial)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

// NewEventBusFromClient shares an existing client. Close leaves the client open.
func NewEventBusFromClient(log *logger.Logger, rdb *goredis.Client, channel string) (EventBus, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if rdb == nil {
		return nil, fmt.Errorf("redis client required")
	}
	return newEventBus(log, rdb, channel), nil
}

func newEventBus(log *logger.Logger, rdb *goredis.Client, channel string) *eventBus {
	channel = strings.TrimSpace(channel)
	if channel == "" {
		channel = DefaultEventsChannel
	}
	return &eventBus{
		log:     log.With("service", "RedisEventBus"),
		rdb:     rdb,
		channel: channel,
	}
}

func (b *eventBus) Publish(ctx context.Context, ev ledger.StatusChangedEvent) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis event bus not initialized")
	}
	raw, err := EncodeEvent(ev)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

func (b *eventBus) StartForwarder(ctx context.Context, onEvent func(ev ledger.StatusChangedEvent)) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis event bus not initialized")
	}
	if onEvent == nil {
		return fmt.Errorf("onEvent callback required")
	}

	sub := b.rdb.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				ev, err := DecodeEvent([]byte(m.Payload))
				if err != nil {
					b.log.Warn("bad redis event payload", "error", err)
					continue
				}
				onEvent(ev)
			}
		}
	}()
	return nil
}

// Close is a no-op; the shared client is closed by its owner.
func (b *eventBus) Close() error {
	return nil
}

func EncodeEvent(ev ledger.StatusChangedEvent) ([]byte, error) {
	if strings.TrimSpace(ev.Type) == "" {
		ev.Type = ledger.EventStatusChanged
	}
	return json.Marshal(ev)
}

func DecodeEvent(raw []byte) (ledger.StatusChangedEvent, error) {
	var ev ledger.StatusChangedEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return ev, err
	}
	if ev.Type != ledger.EventStatusChanged {
		return ev, fmt.Errorf("unexpected event type %q", ev.Type)
	}
	return ev, nil
}

type nopBus struct{}

// NewNopEventBus is used when no Redis address is configured.
func NewNopEventBus() EventBus { return nopBus{} }

func (nopBus) Publish(context.Context, ledger.StatusChangedEvent) error { return nil }
func (nopBus) StartForwarder(context.Context, func(ledger.StatusChangedEvent)) error {
	return nil
}
func (nopBus) Close() error { return nil }

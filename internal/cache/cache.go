package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ferumlab/ferum-hub/internal/config"
	"github.com/redis/go-redis/v9"
)

// NewClient builds a redis client from config and verifies the connection.
func NewClient(conf *config.Config) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     conf.REDIS_ADDR,
		Password: conf.REDIS_PASSWORD,
		DB:       conf.REDIS_DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		slog.Warn("Redis is not reachable, marker/session operations will degrade", slog.Any("error", err))
	}

	return client
}

// Markers is a best-effort TTL marker set used for rate-limit windows.
// Failures are swallowed: a broken cache must never block registration.
type Markers struct {
	client *redis.Client
	prefix string
}

func NewMarkers(client *redis.Client, prefix string) *Markers {
	if prefix == "" {
		prefix = "ferum:"
	}

	return &Markers{client: client, prefix: prefix}
}

// AnySet reports whether any of the keys currently has a marker. A redis
// error reads as "no marker" so the caller proceeds.
func (m *Markers) AnySet(ctx context.Context, keys ...string) bool {
	for _, k := range keys {
		n, err := m.client.Exists(ctx, m.prefix+k).Result()
		if err != nil {
			return false
		}
		if n > 0 {
			return true
		}
	}

	return false
}

// Set writes markers with the given TTL, best-effort.
func (m *Markers) Set(ctx context.Context, ttl time.Duration, keys ...string) {
	for _, k := range keys {
		if err := m.client.Set(ctx, m.prefix+k, "1", ttl).Err(); err != nil {
			slog.Warn("Failed to set rate-limit marker", slog.String("key", k), slog.Any("error", err))
		}
	}
}

func RegistrationChatKey(chatID int64, email string) string {
	return fmt.Sprintf("tg:reg:%d:%s", chatID, email)
}

func RegistrationEmailKey(email string) string {
	return fmt.Sprintf("tg:reg:email:%s", email)
}

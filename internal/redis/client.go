// Package redis mirrors live room membership into Redis so operators and
// other tooling can observe it. The relay's in-memory registry stays
// authoritative; the mirror is written asynchronously and never read back.
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/mossy-p/webrtc-relay/config"
)

// Connect creates a client and checks the server is reachable
func Connect(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}

const roomsKey = "rooms"

func peersKey(roomID string) string {
	return "room:" + roomID + ":peers"
}

// Package valkey connects to the Valkey/Redis instance backing the Message Cache's (component B) optional
// multi-replica mirror (internal/message.RedisStore): a bridge running several replicas behind a load balancer
// needs edit/delete lookups to find a group regardless of which replica handled the original send.
package valkey

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Connect parses rawURL, connects, and pings to verify the connection before handing the client to
// message.NewRedisStore. The valkey:// scheme is replaced with redis:// for go-redis compatibility, since Valkey
// speaks the Redis wire protocol but go-redis only recognizes its own scheme. dialTimeout bounds how long the
// client waits when establishing new connections, distinct from any per-request context deadline.
func Connect(ctx context.Context, rawURL string, dialTimeout time.Duration) (*redis.Client, error) {
	// go-redis only understands the redis:// scheme, so replace valkey:// (case-insensitive) before parsing.
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse valkey URL: %w", err)
	}
	if strings.EqualFold(parsed.Scheme, "valkey") {
		parsed.Scheme = "redis"
	}

	opts, err := redis.ParseURL(parsed.String())
	if err != nil {
		return nil, fmt.Errorf("parse valkey URL: %w", err)
	}
	opts.DialTimeout = dialTimeout

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping valkey: %w", err)
	}

	return client, nil
}

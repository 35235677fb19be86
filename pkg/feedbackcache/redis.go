package feedbackcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL bounds how long a rating is remembered in Redis.
const DefaultTTL = 30 * 24 * time.Hour

// Redis is a Cache shared between processes, e.g. several CLI sessions of
// the same user. Keys are namespaced so one Redis can serve many users.
type Redis struct {
	client    redis.Cmdable
	namespace string
	ttl       time.Duration
}

// NewRedis returns a Redis cache storing keys under
// "feedback:<namespace>:<conversationId>:<messageIndex>". A ttl <= 0 uses
// DefaultTTL.
func NewRedis(client redis.Cmdable, namespace string, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{client: client, namespace: namespace, ttl: ttl}
}

// Dial connects to addr and verifies the connection with PING.
func Dial(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis %s: %w", addr, err)
	}
	return client, nil
}

func (c *Redis) key(k Key) string {
	return "feedback:" + c.namespace + ":" + k.String()
}

func (c *Redis) Get(ctx context.Context, k Key) (Entry, bool, error) {
	raw, err := c.client.Get(ctx, c.key(k)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		// A corrupt entry is treated as a miss and dropped.
		_ = c.client.Del(ctx, c.key(k)).Err()
		return Entry{}, false, nil
	}
	return e, true, nil
}

func (c *Redis) Put(ctx context.Context, k Key, e Entry) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(k), raw, c.ttl).Err()
}

func (c *Redis) Delete(ctx context.Context, k Key) error {
	return c.client.Del(ctx, c.key(k)).Err()
}

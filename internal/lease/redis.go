package lease

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "portalerts:lease:entity:"

// Deletes the key only when it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis keeps leases as expiring keys.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis connects to redisURL, accepting either a redis:// URL or a bare host:port.
func NewRedis(ctx context.Context, redisURL string) (*Redis, error) {
	redisURL = strings.TrimSpace(redisURL)
	if redisURL == "" {
		return nil, fmt.Errorf("redis url is required")
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		opt = &redis.Options{Addr: redisURL}
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedisWithClient(client), nil
}

func NewRedisWithClient(client *redis.Client) *Redis {
	return &Redis{client: client, prefix: defaultKeyPrefix}
}

func (r *Redis) key(entityID int64) string {
	return r.prefix + strconv.FormatInt(entityID, 10)
}

func (r *Redis) Acquire(ctx context.Context, entityID int64, ttl time.Duration) (Lease, bool, error) {
	if r == nil || r.client == nil {
		return nil, false, fmt.Errorf("redis leaser is not initialized")
	}
	if ttl <= 0 {
		return nil, false, fmt.Errorf("lease ttl must be > 0")
	}

	token := newToken()
	key := r.key(entityID)
	ok, err := r.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire redis lease %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}
	return &redisLease{client: r.client, key: key, token: token}, true, nil
}

func (r *Redis) Close() error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Close()
}

type redisLease struct {
	client *redis.Client
	key    string
	token  string
}

func (l *redisLease) Token() string {
	return l.token
}

func (l *redisLease) Release(ctx context.Context) error {
	err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release redis lease %s: %w", l.key, err)
	}
	return nil
}

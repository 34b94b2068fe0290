package remotestore

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// client is the minimal surface RemoteStore needs from a Redis-compatible
// connection. Keeping it narrow (rather than depending on *redis.Client
// directly) lets tests fake L2 without a live server.
type client interface {
	Ping(ctx context.Context) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	SetEX(ctx context.Context, key string, value []byte, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) (int64, error)
	Exists(ctx context.Context, key string) (bool, error)
	TTL(ctx context.Context, key string) (time.Duration, bool, error)
	Scan(ctx context.Context, cursor uint64, match string, count int64) (keys []string, next uint64, err error)
	InfoStats(ctx context.Context) (map[string]string, error)
	Close() error
}

// goRedisClient adapts a *redis.Client to the client interface. It is the
// only file in this package that imports go-redis command types directly,
// isolating the wire library behind a thin wrapper.
type goRedisClient struct {
	rdb *redis.Client
}

// dialOptions builds a *redis.Options from the RemoteStore connection
// parameters (host/port/db/password/timeouts).
func dialOptions(host string, port, db int, password string, connectTimeout, socketTimeout time.Duration) *redis.Options {
	return &redis.Options{
		Addr:         fmtAddr(host, port),
		DB:           db,
		Password:     password,
		DialTimeout:  connectTimeout,
		ReadTimeout:  socketTimeout,
		WriteTimeout: socketTimeout,
	}
}

func newGoRedisClient(opts *redis.Options) *goRedisClient {
	return &goRedisClient{rdb: redis.NewClient(opts)}
}

func (c *goRedisClient) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *goRedisClient) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (c *goRedisClient) SetEX(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.rdb.SetEx(ctx, key, value, ttl).Err()
}

func (c *goRedisClient) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, key, value, ttl).Result()
}

func (c *goRedisClient) Del(ctx context.Context, keys ...string) (int64, error) {
	return c.rdb.Del(ctx, keys...).Result()
}

func (c *goRedisClient) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.rdb.Exists(ctx, key).Result()
	return n > 0, err
}

func (c *goRedisClient) TTL(ctx context.Context, key string) (time.Duration, bool, error) {
	d, err := c.rdb.TTL(ctx, key).Result()
	if err != nil {
		return 0, false, err
	}
	// go-redis maps both "no such key" and "no expiry" to negative durations.
	if d < 0 {
		return 0, false, nil
	}
	return d, true, nil
}

func (c *goRedisClient) Scan(ctx context.Context, cursor uint64, match string, count int64) ([]string, uint64, error) {
	return c.rdb.Scan(ctx, cursor, match, count).Result()
}

func (c *goRedisClient) InfoStats(ctx context.Context) (map[string]string, error) {
	raw, err := c.rdb.Info(ctx, "stats").Result()
	if err != nil {
		return nil, err
	}
	return parseInfo(raw), nil
}

func (c *goRedisClient) Close() error { return c.rdb.Close() }

// reconnectingClient wraps a client with a connect discipline: a PING before
// every command, exactly one reconnect attempt on failure, then a surfaced
// error. The failing call itself is never retried implicitly; the reconnect
// only re-establishes the connection for the *next* attempt inside the same
// call.
type reconnectingClient struct {
	mu      sync.Mutex
	current client
	dial    func() client
	log     *zap.Logger
}

func newReconnectingClient(dial func() client, log *zap.Logger) *reconnectingClient {
	if log == nil {
		log = zap.NewNop()
	}
	return &reconnectingClient{current: dial(), dial: dial, log: log}
}

// ensureLive pings the current connection and, on failure, makes exactly one
// reconnect attempt before giving up. The caller's in-flight command is never
// retried implicitly; ensureLive only guarantees the connection handed back
// is live at the moment of the check.
func (r *reconnectingClient) ensureLive(ctx context.Context) (client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.current.Ping(ctx); err == nil {
		return r.current, nil
	}

	r.log.Warn("L2 liveness check failed, attempting one reconnect")
	_ = r.current.Close()
	r.current = r.dial()

	if err := r.current.Ping(ctx); err != nil {
		return nil, err
	}
	return r.current, nil
}

func (r *reconnectingClient) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current.Close()
}

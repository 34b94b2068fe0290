// Package remotestore implements L2: the Redis-compatible remote tier
// fronted by the coordinator. It owns connection discipline (connect on
// demand, liveness probe, single reconnect attempt) and the SCAN-based bulk
// operations required to stay safe against large keyspaces.
package remotestore

import (
	"context"
	"strings"
	"time"

	"github.com/dclobato/resilient-cache/cacheerrors"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// scanBatchSize bounds every SCAN call; this store never issues KEYS or any
// other single call that blocks the server for O(N) of the keyspace.
const scanBatchSize = 100

// Config parameterizes a RemoteStore.
type Config struct {
	Host           string
	Port           int
	DB             int
	Password       string
	KeyPrefix      string
	TTL            time.Duration
	ConnectTimeout time.Duration
	SocketTimeout  time.Duration
}

// Validate enforces the constraints this store requires of its config.
func (c Config) Validate() error {
	if strings.TrimSpace(c.KeyPrefix) == "" {
		return cacheerrors.NewConfigurationError("l2_key_prefix", c.KeyPrefix, "must not be empty")
	}
	if c.TTL <= 0 {
		return cacheerrors.NewConfigurationError("l2_ttl", c.TTL, "must be > 0")
	}
	if c.Port <= 0 {
		return cacheerrors.NewConfigurationError("l2_port", c.Port, "must be > 0")
	}
	if c.ConnectTimeout <= 0 {
		return cacheerrors.NewConfigurationError("l2_connect_timeout", c.ConnectTimeout, "must be > 0")
	}
	if c.SocketTimeout <= 0 {
		return cacheerrors.NewConfigurationError("l2_socket_timeout", c.SocketTimeout, "must be > 0")
	}
	return nil
}

// RemoteStore is L2. All methods return *cacheerrors.ConnectionError when
// the backend is unreachable after the single reconnect attempt; the
// coordinator is responsible for turning repeated failures into an open
// circuit, not this package.
type RemoteStore struct {
	conn   *reconnectingClient
	prefix string
	ttl    time.Duration
	log    *zap.Logger
	sf     singleflight.Group
}

// New constructs a RemoteStore. The underlying connection is established
// lazily: the first Ping happens on the first call that needs the backend,
// not inside New, so a transient L2 outage at startup does not fail
// construction; callers that want to disable the tier instead can do so
// based on the returned error.
func New(cfg Config, log *zap.Logger) (*RemoteStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}

	opts := dialOptions(cfg.Host, cfg.Port, cfg.DB, cfg.Password, cfg.ConnectTimeout, cfg.SocketTimeout)
	dial := func() client { return newGoRedisClient(opts) }

	return &RemoteStore{
		conn:   newReconnectingClient(dial, log),
		prefix: cfg.KeyPrefix,
		ttl:    cfg.TTL,
		log:    log.Named("L2"),
	}, nil
}

func (r *RemoteStore) namespaced(key string) string {
	return r.prefix + ":" + key
}

func (r *RemoteStore) stripPrefix(namespaced string) (string, bool) {
	return strings.CutPrefix(namespaced, r.prefix+":")
}

func (r *RemoteStore) live(ctx context.Context) (client, error) {
	c, err := r.conn.ensureLive(ctx)
	if err != nil {
		return nil, cacheerrors.NewConnectionError("L2", err)
	}
	return c, nil
}

// Get fetches the raw value for key. Concurrent Gets for the same key are
// coalesced into a single round trip via singleflight; this is pure
// read-coalescing of an already-cached key, not a cache-aside loader.
func (r *RemoteStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	nk := r.namespaced(key)

	v, err, _ := r.sf.Do(nk, func() (any, error) {
		c, err := r.live(ctx)
		if err != nil {
			return nil, err
		}
		data, ok, err := c.Get(ctx, nk)
		if err != nil {
			return nil, cacheerrors.NewConnectionError("L2", err)
		}
		if !ok {
			return nil, nil
		}
		return data, nil
	})
	if err != nil {
		return nil, false, err
	}
	if v == nil {
		return nil, false, nil
	}
	return v.([]byte), true, nil
}

// Set writes value under key with the store's configured TTL.
func (r *RemoteStore) Set(ctx context.Context, key string, value []byte) error {
	c, err := r.live(ctx)
	if err != nil {
		return err
	}
	if err := c.SetEX(ctx, r.namespaced(key), value, r.ttl); err != nil {
		return cacheerrors.NewConnectionError("L2", err)
	}
	return nil
}

// SetIfAbsent stores value under key only if L2 has no live entry for it.
// L2 is authoritative for this decision: a concurrent writer relying on
// local state alone could otherwise both believe they won.
func (r *RemoteStore) SetIfAbsent(ctx context.Context, key string, value []byte) (bool, error) {
	c, err := r.live(ctx)
	if err != nil {
		return false, err
	}
	stored, err := c.SetNX(ctx, r.namespaced(key), value, r.ttl)
	if err != nil {
		return false, cacheerrors.NewConnectionError("L2", err)
	}
	return stored, nil
}

// Delete removes key. Deleting an absent key is a no-op, matching Redis DEL
// semantics and keeping the whole two-level delete path idempotent.
func (r *RemoteStore) Delete(ctx context.Context, key string) error {
	c, err := r.live(ctx)
	if err != nil {
		return err
	}
	if _, err := c.Del(ctx, r.namespaced(key)); err != nil {
		return cacheerrors.NewConnectionError("L2", err)
	}
	return nil
}

// Exists reports whether key has a live entry in L2.
func (r *RemoteStore) Exists(ctx context.Context, key string) (bool, error) {
	c, err := r.live(ctx)
	if err != nil {
		return false, err
	}
	ok, err := c.Exists(ctx, r.namespaced(key))
	if err != nil {
		return false, cacheerrors.NewConnectionError("L2", err)
	}
	return ok, nil
}

// TTL returns the remaining time-to-live for key. Redis reports both "no
// such key" and "key has no expiry" as negative durations; both collapse to
// ABSENT here, since every key this store writes always carries a TTL.
func (r *RemoteStore) TTL(ctx context.Context, key string) (time.Duration, bool, error) {
	c, err := r.live(ctx)
	if err != nil {
		return 0, false, err
	}
	ttl, ok, err := c.TTL(ctx, r.namespaced(key))
	if err != nil {
		return 0, false, cacheerrors.NewConnectionError("L2", err)
	}
	return ttl, ok, nil
}

// scanAll walks the keyspace under this store's prefix via SCAN, in batches
// of scanBatchSize, invoking visit for each namespaced key found. It never
// issues KEYS.
func (r *RemoteStore) scanAll(ctx context.Context, visit func(namespacedKey string)) error {
	c, err := r.live(ctx)
	if err != nil {
		return err
	}

	match := r.prefix + ":*"
	var cursor uint64
	for {
		keys, next, err := c.Scan(ctx, cursor, match, scanBatchSize)
		if err != nil {
			return cacheerrors.NewConnectionError("L2", err)
		}
		for _, k := range keys {
			visit(k)
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// Clear removes every key under this store's prefix and returns the count
// removed. Keys are collected via SCAN then deleted in batches, never via a
// single blocking call.
func (r *RemoteStore) Clear(ctx context.Context) (int, error) {
	c, err := r.live(ctx)
	if err != nil {
		return 0, err
	}

	removed := 0
	var batch []string
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := c.Del(ctx, batch...)
		if err != nil {
			return cacheerrors.NewConnectionError("L2", err)
		}
		removed += int(n)
		batch = batch[:0]
		return nil
	}

	err = r.scanAll(ctx, func(k string) {
		batch = append(batch, k)
		if len(batch) >= scanBatchSize {
			_ = flush()
		}
	})
	if err != nil {
		return removed, err
	}
	if ferr := flush(); ferr != nil {
		return removed, ferr
	}
	return removed, nil
}

// ListKeys returns the logical (un-namespaced) keys live under this store's
// prefix, optionally filtered by a further prefix on top of that.
func (r *RemoteStore) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := r.scanAll(ctx, func(nk string) {
		logical, ok := r.stripPrefix(nk)
		if !ok {
			return
		}
		if prefix != "" && !strings.HasPrefix(logical, prefix) {
			return
		}
		keys = append(keys, logical)
	})
	return keys, err
}

// Size returns the number of live keys under this store's prefix, counted
// via the same SCAN walk as ListKeys rather than DBSIZE, since DBSIZE would
// count keys outside this store's namespace in a shared Redis database.
func (r *RemoteStore) Size(ctx context.Context) (int, error) {
	n := 0
	err := r.scanAll(ctx, func(string) { n++ })
	return n, err
}

// Stats is a point-in-time snapshot of L2 health and server-reported counters.
type Stats struct {
	Enabled                  bool
	Reachable                bool
	Error                    string
	Size                     int
	KeyspaceHits             int64
	KeyspaceMisses           int64
	TotalConnectionsReceived int64
	TotalCommandsProcessed   int64
}

// Stats probes connectivity and, if reachable, parses INFO stats and counts
// this store's keys. A probe failure is reported in the snapshot rather than
// returned as an error: Stats is best-effort and never failure-propagating.
// The key count comes from the same SCAN walk Size always uses, so a slow or
// failing count does not blank out the rest of the snapshot.
func (r *RemoteStore) Stats(ctx context.Context) Stats {
	c, err := r.live(ctx)
	if err != nil {
		return Stats{Enabled: false, Reachable: false, Error: err.Error()}
	}

	info, err := c.InfoStats(ctx)
	if err != nil {
		return Stats{Enabled: false, Reachable: true, Error: err.Error()}
	}

	s := Stats{
		Enabled:                  true,
		Reachable:                true,
		KeyspaceHits:             parseIntStat(info, "keyspace_hits"),
		KeyspaceMisses:           parseIntStat(info, "keyspace_misses"),
		TotalConnectionsReceived: parseIntStat(info, "total_connections_received"),
		TotalCommandsProcessed:   parseIntStat(info, "total_commands_processed"),
	}

	if size, err := r.Size(ctx); err == nil {
		s.Size = size
	} else {
		r.log.Warn("L2 size scan failed, reporting stats without it", zap.Error(err))
	}

	return s
}

// Ping reports whether L2 is currently reachable, performing the same
// connect-and-probe discipline as every other operation.
func (r *RemoteStore) Ping(ctx context.Context) error {
	_, err := r.live(ctx)
	return err
}

// Close releases the underlying connection.
func (r *RemoteStore) Close() error {
	return r.conn.Close()
}

// Package coordinator implements the two-level cache proper: it orders L1
// and L2 operations, applies promotion and degradation rules, and exposes
// the system's public contract. It owns its L1/L2/breaker dependencies and
// never raises from a steady-state read or write; failures degrade silently
// and are only visible through logs and Stats.
package coordinator

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dclobato/resilient-cache/breaker"
	"github.com/dclobato/resilient-cache/localstore"
	"github.com/dclobato/resilient-cache/remotestore"
)

// l1 is the subset of localstore.Store the coordinator depends on. Declaring
// it here (rather than depending on *localstore.Store directly) keeps this
// package testable with hand-written fakes and documents exactly what the
// coordinator needs from L1.
type l1 interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte)
	SetIfAbsent(key string, value []byte) bool
	Delete(key string)
	Clear() int
	Exists(key string) bool
	TTL(key string) (time.Duration, bool)
	ListKeys(prefix string) []string
	Stats() localstore.Stats
}

// l2 is the subset of remotestore.RemoteStore the coordinator depends on.
type l2 interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	SetIfAbsent(ctx context.Context, key string, value []byte) (bool, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	TTL(ctx context.Context, key string) (time.Duration, bool, error)
	Clear(ctx context.Context) (int, error)
	ListKeys(ctx context.Context, prefix string) ([]string, error)
	Stats(ctx context.Context) remotestore.Stats
	Close() error
}

// ClearResult is the value returned by Clear.
type ClearResult struct {
	L1ItemsRemoved int
	L2ItemsRemoved int
	TimestampUnix  float64
}

// Stats is a point-in-time snapshot merging L1, L2, and breaker stats. It
// never fails: an unreachable L2 is reported inside L2.Error, not as a Go
// error.
type Stats struct {
	L1Enabled bool
	L1        localstore.Stats
	L2Enabled bool
	L2        remotestore.Stats
	Breaker   breaker.Stats
}

// Coordinator is the two-level cache's public entry point. A nil l1 or l2
// field means that tier is disabled (failed construction or intentionally
// turned off), and every operation below treats it as permanently absent.
type Coordinator struct {
	l1  l1
	l2  l2
	cb  *breaker.Breaker
	log *zap.Logger
}

// New assembles a Coordinator from already-constructed tiers. Use
// cachefactory.New to build one from Config; this constructor exists for
// tests and callers that want to inject fakes directly.
func New(l1Store l1, l2Store l2, cb *breaker.Breaker, log *zap.Logger) *Coordinator {
	if log == nil {
		log = zap.NewNop()
	}
	if cb == nil {
		cb = breaker.New(breaker.Config{Enabled: false}, log)
	}
	return &Coordinator{l1: l1Store, l2: l2Store, cb: cb, log: log}
}

func (c *Coordinator) l2Usable() bool {
	return c.l2 != nil && !c.cb.IsOpen()
}

// Get checks L1 first, then falls through to L2 (when the breaker allows
// it), promoting an L2 hit back into L1 on the way out.
func (c *Coordinator) Get(ctx context.Context, key string) ([]byte, bool) {
	if c.l1 != nil {
		if v, ok := c.l1.Get(key); ok {
			return v, true
		}
	}

	if !c.l2Usable() {
		return nil, false
	}

	v, ok, err := c.l2.Get(ctx, key)
	if err != nil {
		c.log.Warn("L2 get failed, degrading to miss", zap.String("key", key), zap.Error(err))
		c.cb.RecordFailure()
		return nil, false
	}
	if !ok {
		c.cb.RecordSuccess()
		return nil, false
	}

	c.cb.RecordSuccess()
	if c.l1 != nil {
		c.l1.Set(key, v)
	}
	return v, true
}

// Set writes through to both tiers: L1 first, then L2 (when the breaker
// allows it), each best-effort.
func (c *Coordinator) Set(ctx context.Context, key string, value []byte) error {
	if c.l1 != nil {
		c.l1.Set(key, value)
	}

	if !c.l2Usable() {
		return nil
	}

	if err := c.l2.Set(ctx, key, value); err != nil {
		c.log.Warn("L2 set failed, L1 holds the newer value until L2 recovers",
			zap.String("key", key), zap.Error(err))
		c.cb.RecordFailure()
		return nil
	}
	c.cb.RecordSuccess()
	return nil
}

// SetIfAbsent treats L2 as authoritative for existence when it is reachable:
// if L2 already holds key it returns false without touching L1; otherwise
// L2's conditional write decides the result and L1 gets a best-effort
// conditional write afterwards. When L2 is unavailable or fails during this
// call, L1's own conditional write decides the result.
func (c *Coordinator) SetIfAbsent(ctx context.Context, key string, value []byte) (bool, error) {
	if c.l2Usable() {
		exists, err := c.l2.Exists(ctx, key)
		if err != nil {
			c.log.Warn("L2 exists check failed", zap.String("key", key), zap.Error(err))
			c.cb.RecordFailure()
		} else if exists {
			c.cb.RecordSuccess()
			return false, nil
		} else {
			stored, err := c.l2.SetIfAbsent(ctx, key, value)
			if err != nil {
				c.log.Warn("L2 set_if_absent failed", zap.String("key", key), zap.Error(err))
				c.cb.RecordFailure()
			} else {
				c.cb.RecordSuccess()
				if c.l1 != nil {
					c.l1.SetIfAbsent(key, value)
				}
				return stored, nil
			}
		}
	}

	if c.l1 != nil {
		return c.l1.SetIfAbsent(key, value), nil
	}
	return false, nil
}

// Delete removes from L2 before L1, so no concurrent reader can repopulate
// this process's L1 from an L2 entry that is already gone.
func (c *Coordinator) Delete(ctx context.Context, key string) error {
	if c.l2Usable() {
		if err := c.l2.Delete(ctx, key); err != nil {
			c.log.Warn("L2 delete failed", zap.String("key", key), zap.Error(err))
			c.cb.RecordFailure()
		} else {
			c.cb.RecordSuccess()
		}
	}

	if c.l1 != nil {
		c.l1.Delete(key)
	}
	return nil
}

// Clear empties L1 first, then L2 if the breaker allows it, and reports how
// many items each tier actually removed.
func (c *Coordinator) Clear(ctx context.Context) ClearResult {
	result := ClearResult{TimestampUnix: nowUnix()}

	if c.l1 != nil {
		result.L1ItemsRemoved = c.l1.Clear()
	}

	if c.l2Usable() {
		n, err := c.l2.Clear(ctx)
		if err != nil {
			c.log.Warn("L2 clear failed", zap.Error(err))
			c.cb.RecordFailure()
		} else {
			c.cb.RecordSuccess()
			result.L2ItemsRemoved = n
		}
	}

	return result
}

// TTL returns L1's TTL first (the store's fixed configured TTL, not a
// remaining time), falling back to L2's remaining time-to-live if the
// breaker allows a call.
func (c *Coordinator) TTL(ctx context.Context, key string) (time.Duration, bool) {
	if c.l1 != nil {
		if ttl, ok := c.l1.TTL(key); ok {
			return ttl, true
		}
	}

	if !c.l2Usable() {
		return 0, false
	}

	ttl, ok, err := c.l2.TTL(ctx, key)
	if err != nil {
		c.log.Warn("L2 ttl failed", zap.String("key", key), zap.Error(err))
		c.cb.RecordFailure()
		return 0, false
	}
	c.cb.RecordSuccess()
	return ttl, ok
}

// ListKeys returns the deduplicated union of L1 and L2 keys, optionally
// filtered by prefix.
func (c *Coordinator) ListKeys(ctx context.Context, prefix string) []string {
	seen := make(map[string]struct{})
	var out []string

	add := func(keys []string) {
		for _, k := range keys {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, k)
		}
	}

	if c.l1 != nil {
		add(c.l1.ListKeys(prefix))
	}

	if c.l2Usable() {
		keys, err := c.l2.ListKeys(ctx, prefix)
		if err != nil {
			c.log.Warn("L2 list_keys failed, contributing nothing", zap.Error(err))
			c.cb.RecordFailure()
		} else {
			c.cb.RecordSuccess()
			add(keys)
		}
	}

	return out
}

// Exists reports true immediately on an L1 hit; otherwise it checks L2 if
// the breaker allows it.
func (c *Coordinator) Exists(ctx context.Context, key string) bool {
	if c.l1 != nil && c.l1.Exists(key) {
		return true
	}

	if !c.l2Usable() {
		return false
	}

	exists, err := c.l2.Exists(ctx, key)
	if err != nil {
		c.log.Warn("L2 exists failed", zap.String("key", key), zap.Error(err))
		c.cb.RecordFailure()
		return false
	}
	c.cb.RecordSuccess()
	return exists
}

// Stats merges L1, L2, and breaker stats. It never fails: an unreachable L2
// is reflected in the L2 snapshot's Error field rather than as a Go error.
//
// This probes L2 even while the breaker is OPEN, unlike every other
// operation above. That is intentional: an operator diagnosing an open
// breaker needs to see whether L2 has actually recovered, and a single
// best-effort probe here does not go through RecordFailure/RecordSuccess,
// so it cannot flap the breaker's state or count against its threshold.
func (c *Coordinator) Stats(ctx context.Context) Stats {
	s := Stats{Breaker: c.cb.Stats()}

	if c.l1 != nil {
		s.L1Enabled = true
		s.L1 = c.l1.Stats()
	}
	if c.l2 != nil {
		s.L2Enabled = true
		s.L2 = c.l2.Stats(ctx)
	}
	return s
}

// Close releases L2's underlying connection. L1 owns no external resource.
func (c *Coordinator) Close() error {
	if c.l2 != nil {
		return c.l2.Close()
	}
	return nil
}


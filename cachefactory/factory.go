package cachefactory

import (
	"go.uber.org/zap"

	"github.com/dclobato/resilient-cache/breaker"
	"github.com/dclobato/resilient-cache/cacheerrors"
	"github.com/dclobato/resilient-cache/coordinator"
	"github.com/dclobato/resilient-cache/localstore"
	"github.com/dclobato/resilient-cache/remotestore"
	"github.com/dclobato/resilient-cache/serializer"
)

func cacheConfigErr(field string, value any, cause error) error {
	return cacheerrors.NewConfigurationError(field, value, cause.Error())
}

// New validates cfg and assembles a Coordinator plus the serializer callers
// should use with coordinator.GetAs/SetAs to stay consistent with the
// configured wire format.
//
// A tier that fails to construct for reasons other than invalid
// configuration (an optional dependency unavailable, an immediate low-level
// construction fault) disables that tier rather than failing the whole
// factory call; invalid configuration itself (unknown backend name,
// out-of-range number, unknown serializer) always propagates as an error.
func New(cfg Config, log *zap.Logger) (*coordinator.Coordinator, serializer.Serializer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}

	ser, err := serializer.Get(cfg.Serializer)
	if err != nil {
		return nil, nil, cacheConfigErr("serializer", cfg.Serializer, err)
	}

	var l1Store *localstore.Store
	if cfg.L1Enabled {
		l1Store = localstore.New(cfg.L1MaxSize, cfg.L1TTL)
	}

	var l2Store *remotestore.RemoteStore
	if cfg.L2Enabled {
		store, err := remotestore.New(cfg.remoteStoreConfig(), log.Named("L2"))
		if err != nil {
			// cfg.Validate already rejected every value remotestore.Config.Validate
			// checks, so this path only fires for a construction fault outside
			// pure field validation; disable L2 instead of failing the factory.
			log.Warn("L2 construction failed, disabling remote tier", zap.Error(err))
		} else {
			l2Store = store
		}
	}

	cb := breaker.New(breaker.Config{
		Enabled:   cfg.CircuitBreakerEnabled,
		Threshold: cfg.CircuitBreakerThreshold,
		Timeout:   cfg.CircuitBreakerTimeout,
	}, log.Named("breaker"))

	// A nil *localstore.Store (or *remotestore.RemoteStore) passed directly as
	// an interface argument would produce a non-nil interface holding a nil
	// pointer, which Coordinator's "tier == nil means disabled" checks would
	// misread as enabled. Passing the untyped literal nil avoids that, so the
	// branching below is required, not cosmetic.
	var coord *coordinator.Coordinator
	switch {
	case l1Store != nil && l2Store != nil:
		coord = coordinator.New(l1Store, l2Store, cb, log.Named("coordinator"))
	case l1Store != nil:
		coord = coordinator.New(l1Store, nil, cb, log.Named("coordinator"))
	case l2Store != nil:
		coord = coordinator.New(nil, l2Store, cb, log.Named("coordinator"))
	default:
		coord = coordinator.New(nil, nil, cb, log.Named("coordinator"))
	}
	return coord, ser, nil
}

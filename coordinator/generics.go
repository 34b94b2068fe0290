package coordinator

import (
	"context"

	"github.com/dclobato/resilient-cache/cacheerrors"
	"github.com/dclobato/resilient-cache/serializer"
)

// GetAs decodes the cached bytes for key through ser into a T. It returns
// ok=false on a cache miss, same as Get; a decode failure surfaces as
// *cacheerrors.SerializationError rather than being swallowed, since the
// fault is in the stored payload, not in L2 reachability.
func GetAs[T any](ctx context.Context, c *Coordinator, ser serializer.Serializer, key string) (T, bool, error) {
	var zero T

	raw, ok := c.Get(ctx, key)
	if !ok {
		return zero, false, nil
	}

	decoded, err := ser.Deserialize(raw)
	if err != nil {
		return zero, false, cacheerrors.NewSerializationError(ser.Name(), key, err)
	}

	v, ok := decoded.(T)
	if !ok {
		return zero, false, cacheerrors.NewSerializationError(ser.Name(), key, errWrongType)
	}
	return v, true, nil
}

// SetAs encodes value through ser and writes it via Set.
func SetAs[T any](ctx context.Context, c *Coordinator, ser serializer.Serializer, key string, value T) error {
	raw, err := ser.Serialize(value)
	if err != nil {
		return cacheerrors.NewSerializationError(ser.Name(), key, err)
	}
	return c.Set(ctx, key, raw)
}

var errWrongType = wrongTypeError{}

type wrongTypeError struct{}

func (wrongTypeError) Error() string { return "decoded value does not match requested type" }

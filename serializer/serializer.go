// Package serializer converts values crossing the L2 process boundary to and
// from opaque byte strings.
//
// Two variants ship with the package: Binary (gob, self-describing, unsafe
// against adversarial input) and JSON (portable, JSON-safe shapes only). A
// process-wide registry maps short names to constructors so the factory can
// select a serializer by configuration string; custom serializers register
// themselves the same way.
package serializer

import "github.com/dclobato/resilient-cache/cacheerrors"

// Serializer converts a value to and from its wire representation. A
// Serializer instance must be safe for concurrent use by multiple
// goroutines; the coordinator treats it as shared.
type Serializer interface {
	// Serialize encodes value into bytes, or returns a
	// *cacheerrors.SerializationError on failure.
	Serialize(value any) ([]byte, error)
	// Deserialize decodes data back into a value, or returns a
	// *cacheerrors.SerializationError on failure.
	Deserialize(data []byte) (any, error)
	// Name identifies the serializer for stats and error reporting.
	Name() string
}

func wrapErr(name, key string, err error) error {
	if err == nil {
		return nil
	}
	return cacheerrors.NewSerializationError(name, key, err)
}

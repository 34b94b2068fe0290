package serializer

import (
	"bytes"
	"encoding/gob"
)

// BinarySerializer is the default, self-describing serializer. It preserves
// native composite Go types (structs, slices, maps, byte strings) across the
// L2 boundary via encoding/gob.
//
// Security: gob decodes by running the receiving program's own registered
// types against the wire stream; it must never be used to decode data from
// an untrusted source.
type BinarySerializer struct{}

// NewBinarySerializer constructs the default binary serializer.
func NewBinarySerializer() *BinarySerializer { return &BinarySerializer{} }

// RegisterType registers a concrete type for gob's interface-value encoding.
// Call it once at startup for every concrete type ever passed to Serialize;
// gob cannot encode an interface{} holding a type it has not seen.
func RegisterType(value any) { gob.Register(value) }

func (s *BinarySerializer) Name() string { return "binary" }

func (s *BinarySerializer) Serialize(value any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&value); err != nil {
		return nil, wrapErr(s.Name(), "", err)
	}
	return buf.Bytes(), nil
}

func (s *BinarySerializer) Deserialize(data []byte) (any, error) {
	var value any
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&value); err != nil {
		return nil, wrapErr(s.Name(), "", err)
	}
	return value, nil
}

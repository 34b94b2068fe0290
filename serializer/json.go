package serializer

import "encoding/json"

// JSONSerializer is the portable, textual serializer. It only supports
// mapping/sequence/string/number/bool/null shapes and must round-trip UTF-8.
type JSONSerializer struct{}

// NewJSONSerializer constructs the JSON serializer.
func NewJSONSerializer() *JSONSerializer { return &JSONSerializer{} }

func (s *JSONSerializer) Name() string { return "json" }

func (s *JSONSerializer) Serialize(value any) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, wrapErr(s.Name(), "", err)
	}
	return data, nil
}

func (s *JSONSerializer) Deserialize(data []byte) (any, error) {
	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, wrapErr(s.Name(), "", err)
	}
	return value, nil
}

package serializer

import (
	"reflect"
	"testing"
)

func init() {
	RegisterType("")
	RegisterType(float64(0))
	RegisterType(true)
	RegisterType(map[string]any{})
	RegisterType([]any{})
}

// TestRoundTrip covers P5: deserialize(serialize(v)) == v for every
// registered serializer on supported value shapes.
func TestRoundTrip(t *testing.T) {
	cases := []struct {
		name  string
		value any
	}{
		{"string", "hello"},
		{"number", float64(42)},
		{"bool", true},
		{"map", map[string]any{"n": "A"}},
		{"slice", []any{"a", "b", float64(3)}},
	}

	for _, serializerName := range List() {
		for _, tc := range cases {
			t.Run(serializerName+"/"+tc.name, func(t *testing.T) {
				s, err := Get(serializerName)
				if err != nil {
					t.Fatalf("Get(%q): %v", serializerName, err)
				}

				data, err := s.Serialize(tc.value)
				if err != nil {
					t.Fatalf("Serialize: %v", err)
				}

				got, err := s.Deserialize(data)
				if err != nil {
					t.Fatalf("Deserialize: %v", err)
				}

				if !reflect.DeepEqual(got, tc.value) {
					t.Errorf("round trip mismatch: got %#v, want %#v", got, tc.value)
				}
			})
		}
	}
}

func TestJSONUTF8RoundTrip(t *testing.T) {
	s := NewJSONSerializer()
	value := map[string]any{"greeting": "héllo wörld 日本語"}

	data, err := s.Serialize(value)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	got, err := s.Deserialize(data)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if !reflect.DeepEqual(got, value) {
		t.Errorf("got %#v, want %#v", got, value)
	}
}

func TestUnknownSerializer(t *testing.T) {
	if _, err := Get("does-not-exist"); err == nil {
		t.Fatal("expected error for unknown serializer name")
	}
}

func TestRegisterCustom(t *testing.T) {
	Register("upper", func() Serializer { return &upperSerializer{} })
	s, err := Get("upper")
	if err != nil {
		t.Fatalf("Get(upper): %v", err)
	}
	data, err := s.Serialize("abc")
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if string(data) != "ABC" {
		t.Errorf("got %q, want ABC", data)
	}
}

// upperSerializer is a minimal custom serializer used to exercise the
// registration contract from a caller's perspective.
type upperSerializer struct{}

func (s *upperSerializer) Name() string { return "upper" }

func (s *upperSerializer) Serialize(value any) ([]byte, error) {
	str, _ := value.(string)
	out := make([]byte, len(str))
	for i := 0; i < len(str); i++ {
		c := str[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		out[i] = c
	}
	return out, nil
}

func (s *upperSerializer) Deserialize(data []byte) (any, error) {
	return string(data), nil
}

package localstore

import (
	"testing"
	"time"
)

func TestGetSetRoundTrip(t *testing.T) {
	s := New(10, time.Minute)
	s.Set("k", []byte("v"))

	got, ok := s.Get("k")
	if !ok || string(got) != "v" {
		t.Fatalf("got (%q, %v), want (v, true)", got, ok)
	}
}

func TestMissIncrementsCounter(t *testing.T) {
	s := New(10, time.Minute)
	if _, ok := s.Get("missing"); ok {
		t.Fatal("expected miss")
	}
	if s.Stats().Misses != 1 {
		t.Fatalf("expected 1 miss, got %d", s.Stats().Misses)
	}
}

// TestMaxSizeOne covers the l1_maxsize=1 boundary: inserting two distinct
// keys leaves exactly one live.
func TestMaxSizeOne(t *testing.T) {
	s := New(1, time.Minute)
	s.Set("a", []byte("1"))
	s.Set("b", []byte("2"))

	if s.Size() != 1 {
		t.Fatalf("got size %d, want 1", s.Size())
	}
	if _, ok := s.Get("a"); ok {
		t.Fatal("expected a to have been evicted")
	}
	got, ok := s.Get("b")
	if !ok || string(got) != "2" {
		t.Fatal("expected b to remain live")
	}
}

// TestNeverExceedsCapacity covers P3/I1: size never exceeds maxsize.
func TestNeverExceedsCapacity(t *testing.T) {
	s := New(5, time.Minute)
	for i := 0; i < 100; i++ {
		s.Set(string(rune('a'+i%26))+string(rune(i)), []byte{byte(i)})
		if s.Size() > 5 {
			t.Fatalf("size exceeded capacity: %d > 5", s.Size())
		}
	}
}

func TestTTLExpiry(t *testing.T) {
	s := New(10, 20*time.Millisecond)
	s.Set("k", []byte("v"))

	time.Sleep(30 * time.Millisecond)

	if _, ok := s.Get("k"); ok {
		t.Fatal("expected expired entry to report as miss")
	}
	if s.Exists("k") {
		t.Fatal("expected expired entry to not exist")
	}
}

func TestSetIfAbsent(t *testing.T) {
	s := New(10, time.Minute)

	if !s.SetIfAbsent("k", []byte("first")) {
		t.Fatal("expected first SetIfAbsent to store")
	}
	if s.SetIfAbsent("k", []byte("second")) {
		t.Fatal("expected second SetIfAbsent to be a no-op")
	}

	got, _ := s.Get("k")
	if string(got) != "first" {
		t.Fatalf("got %q, want first", got)
	}
}

func TestSetIfAbsentAfterExpiry(t *testing.T) {
	s := New(10, 15*time.Millisecond)
	s.SetIfAbsent("k", []byte("first"))
	time.Sleep(25 * time.Millisecond)

	if !s.SetIfAbsent("k", []byte("second")) {
		t.Fatal("expected SetIfAbsent to succeed once the prior entry expired")
	}
}

// TestDeleteIdempotent covers the idempotence law: delete applied twice has
// the same observable effect as once.
func TestDeleteIdempotent(t *testing.T) {
	s := New(10, time.Minute)
	s.Set("k", []byte("v"))
	s.Delete("k")
	s.Delete("k")
	if s.Exists("k") {
		t.Fatal("expected key to be gone")
	}
}

func TestClearReturnsCountAndIsIdempotent(t *testing.T) {
	s := New(10, time.Minute)
	s.Set("a", []byte("1"))
	s.Set("b", []byte("2"))

	if n := s.Clear(); n != 2 {
		t.Fatalf("got %d, want 2", n)
	}
	if n := s.Clear(); n != 0 {
		t.Fatalf("got %d, want 0 on second clear", n)
	}
}

func TestListKeysFilteredByPrefix(t *testing.T) {
	s := New(10, time.Minute)
	s.Set("user:1", []byte("a"))
	s.Set("user:2", []byte("b"))
	s.Set("order:1", []byte("c"))

	keys := s.ListKeys("user:")
	if len(keys) != 2 {
		t.Fatalf("got %d keys, want 2: %v", len(keys), keys)
	}
}

func TestStats(t *testing.T) {
	s := New(4, time.Minute)
	s.Set("a", []byte("1"))
	s.Get("a")
	s.Get("missing")

	stats := s.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Fatalf("got hits=%d misses=%d, want 1/1", stats.Hits, stats.Misses)
	}
	if stats.Capacity != 4 {
		t.Fatalf("got capacity %d, want 4", stats.Capacity)
	}
	if stats.UsagePercent != 25 {
		t.Fatalf("got usage %v, want 25", stats.UsagePercent)
	}
}

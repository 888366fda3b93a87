package idgen

import (
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id, err := New(PrefixEvent)
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if !strings.HasPrefix(id, PrefixEvent) {
			t.Fatalf("id %q missing prefix %q", id, PrefixEvent)
		}
		if len(id) != len(PrefixEvent)+length {
			t.Fatalf("id %q has length %d", id, len(id))
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}

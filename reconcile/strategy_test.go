package reconcile

import (
	"encoding/json"
	"testing"

	syncErrors "github.com/c0deZ3R0/go-listing-sync/errors"
)

func TestParseStrategyKind(t *testing.T) {
	tests := []struct {
		in     string
		want   StrategyKind
		wantOK bool
	}{
		{"last_write_wins", LastWriteWins, true},
		{"LWW", LastWriteWins, true},
		{"local_priority", LocalPriority, true},
		{"remote_priority", RemotePriority, true},
		{"merge", Merge, true},
		{" manual ", Manual, true},
		{"manual_review", Manual, true},
		{"first_write_wins", RemotePriority, false},
		{"", RemotePriority, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseStrategyKind(tt.in)
			if got != tt.want || ok != tt.wantOK {
				t.Fatalf("ParseStrategyKind(%q) = %v,%v want %v,%v", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestStrategyKindNormalize(t *testing.T) {
	if got := StrategyKind(42).Normalize(); got != RemotePriority {
		t.Fatalf("Normalize(42) = %v", got)
	}
	if got := StrategyKind(-1).String(); got != "remote_priority" {
		t.Fatalf("String(-1) = %q", got)
	}
	if StrategyKind(42).Valid() {
		t.Fatal("Valid(42) = true")
	}
	for k := RemotePriority; k <= Manual; k++ {
		if k.Normalize() != k {
			t.Fatalf("Normalize changed known kind %v", k)
		}
	}
}

func TestStrategyKindJSON(t *testing.T) {
	data, err := json.Marshal(FieldStrategy{Field: "price", Strategy: LastWriteWins})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"field":"price","strategy":"last_write_wins"}` {
		t.Fatalf("unexpected JSON %s", data)
	}

	var fs FieldStrategy
	if err := json.Unmarshal([]byte(`{"field":"x","strategy":"bogus"}`), &fs); err != nil {
		t.Fatalf("unknown strategy must not fail decoding: %v", err)
	}
	if fs.Strategy != RemotePriority {
		t.Fatalf("unknown strategy decoded as %v", fs.Strategy)
	}
}

func TestStrategyRegistry(t *testing.T) {
	cfg := DefaultStrategyConfig()
	r, err := NewStrategyRegistry(cfg)
	if err != nil {
		t.Fatalf("NewStrategyRegistry: %v", err)
	}

	if got := r.Lookup("price"); got != LastWriteWins {
		t.Errorf("Lookup(price) = %v", got)
	}
	if got := r.Lookup("unmapped"); got != RemotePriority {
		t.Errorf("Lookup(unmapped) = %v, want remote_priority", got)
	}
	if r.Has("unmapped") || !r.Has("sku") {
		t.Error("Has() returned wrong membership")
	}

	fields := r.Fields()
	want := []string{"price", "inventory", "status", "title", "description", "images", "sku", "category"}
	if len(fields) != len(want) {
		t.Fatalf("Fields() = %v", fields)
	}
	for i := range want {
		if fields[i] != want[i] {
			t.Fatalf("Fields()[%d] = %s, want %s", i, fields[i], want[i])
		}
	}

	// the registry owns a private copy
	cfg[0].Strategy = Manual
	if r.Lookup("price") != LastWriteWins {
		t.Error("registry observed mutation of caller config")
	}
	got := r.Config()
	got[0].Field = "mutated"
	if r.Fields()[0] != "price" {
		t.Error("Config() leaked internal slice")
	}
}

func TestStrategyRegistryRejects(t *testing.T) {
	tests := []struct {
		name string
		cfg  StrategyConfig
	}{
		{"empty field", StrategyConfig{{Field: "", Strategy: Merge}}},
		{"reserved version", StrategyConfig{{Field: "version", Strategy: Merge}}},
		{"duplicate", StrategyConfig{{Field: "price"}, {Field: "price", Strategy: Merge}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewStrategyRegistry(tt.cfg)
			if err == nil {
				t.Fatal("expected error")
			}
			if !syncErrors.IsKind(err, syncErrors.KindInvalid) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestStrategyRegistryNormalizesUnknownKinds(t *testing.T) {
	r, err := NewStrategyRegistry(StrategyConfig{{Field: "weird", Strategy: StrategyKind(99)}})
	if err != nil {
		t.Fatal(err)
	}
	if r.Lookup("weird") != RemotePriority {
		t.Fatalf("Lookup(weird) = %v", r.Lookup("weird"))
	}
}

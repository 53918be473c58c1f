package reconcile

import (
	"fmt"
	"strings"
)

// StrategyKind is the closed set of per-field resolution policies.
type StrategyKind int

const (
	// RemotePriority is the zero value so that an unset strategy behaves as the default.
	RemotePriority StrategyKind = iota
	LastWriteWins
	LocalPriority
	Merge
	Manual
)

var strategyNames = [...]string{
	RemotePriority: "remote_priority",
	LastWriteWins:  "last_write_wins",
	LocalPriority:  "local_priority",
	Merge:          "merge",
	Manual:         "manual",
}

// Normalize maps any value outside the closed set onto RemotePriority.
func (k StrategyKind) Normalize() StrategyKind {
	if k < RemotePriority || k > Manual {
		return RemotePriority
	}
	return k
}

// Valid reports whether k is one of the five known strategies.
func (k StrategyKind) Valid() bool {
	return k >= RemotePriority && k <= Manual
}

func (k StrategyKind) String() string {
	return strategyNames[k.Normalize()]
}

// MarshalText implements encoding.TextMarshaler.
func (k StrategyKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Unknown names decode to
// RemotePriority rather than failing.
func (k *StrategyKind) UnmarshalText(text []byte) error {
	*k, _ = ParseStrategyKind(string(text))
	return nil
}

// ParseStrategyKind parses a strategy name. The second return value is false
// when the name was not recognised and RemotePriority was substituted.
func ParseStrategyKind(s string) (StrategyKind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "last_write_wins", "lww":
		return LastWriteWins, true
	case "local_priority", "local":
		return LocalPriority, true
	case "remote_priority", "remote":
		return RemotePriority, true
	case "merge":
		return Merge, true
	case "manual", "manual_review":
		return Manual, true
	default:
		return RemotePriority, false
	}
}

// FieldStrategy binds one snapshot field to its resolution policy.
type FieldStrategy struct {
	Field    string       `json:"field" yaml:"field" toml:"field"`
	Strategy StrategyKind `json:"strategy" yaml:"strategy" toml:"strategy"`
}

// StrategyConfig is the ordered field→policy mapping an engine is built with.
// Order matters: conflicts are reported in this order.
type StrategyConfig []FieldStrategy

// Clone returns a copy that shares no backing array with c.
func (c StrategyConfig) Clone() StrategyConfig {
	if c == nil {
		return nil
	}
	out := make(StrategyConfig, len(c))
	copy(out, c)
	return out
}

func (c StrategyConfig) String() string {
	parts := make([]string, len(c))
	for i, fs := range c {
		parts[i] = fmt.Sprintf("%s=%s", fs.Field, fs.Strategy)
	}
	return strings.Join(parts, ",")
}

// DefaultStrategyConfig returns the stock mapping for marketplace product listings.
func DefaultStrategyConfig() StrategyConfig {
	return StrategyConfig{
		{Field: "price", Strategy: LastWriteWins},
		{Field: "inventory", Strategy: LocalPriority},
		{Field: "status", Strategy: RemotePriority},
		{Field: "title", Strategy: Merge},
		{Field: "description", Strategy: Merge},
		{Field: "images", Strategy: Merge},
		{Field: "sku", Strategy: RemotePriority},
		{Field: "category", Strategy: RemotePriority},
	}
}

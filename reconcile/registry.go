package reconcile

import (
	"fmt"

	syncErrors "github.com/c0deZ3R0/go-listing-sync/errors"
)

// StrategyRegistry holds the immutable field→strategy configuration of an engine.
type StrategyRegistry struct {
	config  StrategyConfig
	byField map[string]StrategyKind
}

// NewStrategyRegistry validates cfg and takes a private copy of it.
// Empty field names, the reserved version field and duplicate fields are rejected.
func NewStrategyRegistry(cfg StrategyConfig) (*StrategyRegistry, error) {
	r := &StrategyRegistry{
		config:  make(StrategyConfig, 0, len(cfg)),
		byField: make(map[string]StrategyKind, len(cfg)),
	}
	for i, fs := range cfg {
		switch {
		case fs.Field == "":
			return nil, syncErrors.NewValidationError(syncErrors.OpRegistry,
				fmt.Errorf("empty field name at index %d", i))
		case fs.Field == VersionField:
			return nil, syncErrors.NewValidationError(syncErrors.OpRegistry,
				fmt.Errorf("field %q is reserved", VersionField))
		}
		if _, dup := r.byField[fs.Field]; dup {
			return nil, syncErrors.NewValidationError(syncErrors.OpRegistry,
				fmt.Errorf("duplicate field %q", fs.Field)).WithMetadata("field", fs.Field)
		}
		fs.Strategy = fs.Strategy.Normalize()
		r.byField[fs.Field] = fs.Strategy
		r.config = append(r.config, fs)
	}
	return r, nil
}

// Lookup returns the strategy for field, RemotePriority when unmapped.
func (r *StrategyRegistry) Lookup(field string) StrategyKind {
	if k, ok := r.byField[field]; ok {
		return k
	}
	return RemotePriority
}

// Has reports whether field is configured.
func (r *StrategyRegistry) Has(field string) bool {
	_, ok := r.byField[field]
	return ok
}

// Fields returns the configured fields in configuration order.
func (r *StrategyRegistry) Fields() []string {
	out := make([]string, len(r.config))
	for i, fs := range r.config {
		out[i] = fs.Field
	}
	return out
}

// Config returns a copy of the configuration.
func (r *StrategyRegistry) Config() StrategyConfig {
	return r.config.Clone()
}

// Len returns the number of configured fields.
func (r *StrategyRegistry) Len() int { return len(r.config) }

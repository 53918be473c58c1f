package reconcile

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	syncErrors "github.com/c0deZ3R0/go-listing-sync/errors"
	"github.com/c0deZ3R0/go-listing-sync/logging"
)

// StrategyFile is the on-disk form of an engine configuration.
//
//	version: "1"
//	name: marketplace-products
//	history_capacity: 1000
//	auto_resolve: true
//	fields:
//	  - field: price
//	    strategy: last_write_wins
type StrategyFile struct {
	Version         string       `json:"version" yaml:"version" toml:"version"`
	Name            string       `json:"name" yaml:"name" toml:"name"`
	Description     string       `json:"description,omitempty" yaml:"description,omitempty" toml:"description"`
	HistoryCapacity int          `json:"history_capacity,omitempty" yaml:"history_capacity,omitempty" toml:"history_capacity"`
	AutoResolve     *bool        `json:"auto_resolve,omitempty" yaml:"auto_resolve,omitempty" toml:"auto_resolve"`
	Fields          []FieldEntry `json:"fields" yaml:"fields" toml:"fields"`
}

// FieldEntry is one field→strategy line of a StrategyFile.
type FieldEntry struct {
	Field    string `json:"field" yaml:"field" toml:"field"`
	Strategy string `json:"strategy" yaml:"strategy" toml:"strategy"`
}

// ConfigValidator validates configuration before it is applied.
type ConfigValidator interface {
	Validate(config *StrategyFile) error
	Name() string
}

// ConfigWatcher is notified after a configuration is applied.
type ConfigWatcher interface {
	OnConfigChanged(oldConfig, newConfig *StrategyFile)
	OnConfigError(err error)
	Name() string
}

// ConfigTransformer may rewrite a configuration before validation.
type ConfigTransformer interface {
	Transform(config *StrategyFile) (*StrategyFile, error)
	Name() string
}

// ConfigLoader loads and validates strategy files in YAML, JSON or TOML.
type ConfigLoader struct {
	mu            sync.RWMutex
	currentConfig *StrategyFile
	validators    []ConfigValidator
	watchers      []ConfigWatcher
	transformers  []ConfigTransformer
	logger        *logging.Logger
}

// ConfigLoaderOption configures a ConfigLoader.
type ConfigLoaderOption interface {
	apply(*ConfigLoader)
}

type configLoaderOptionFunc func(*ConfigLoader)

func (f configLoaderOptionFunc) apply(cl *ConfigLoader) {
	f(cl)
}

// WithConfigValidator adds a configuration validator.
func WithConfigValidator(validator ConfigValidator) ConfigLoaderOption {
	return configLoaderOptionFunc(func(cl *ConfigLoader) {
		cl.validators = append(cl.validators, validator)
	})
}

// WithWatcher adds a configuration change watcher.
func WithWatcher(watcher ConfigWatcher) ConfigLoaderOption {
	return configLoaderOptionFunc(func(cl *ConfigLoader) {
		cl.watchers = append(cl.watchers, watcher)
	})
}

// WithTransformer adds a configuration transformer.
func WithTransformer(transformer ConfigTransformer) ConfigLoaderOption {
	return configLoaderOptionFunc(func(cl *ConfigLoader) {
		cl.transformers = append(cl.transformers, transformer)
	})
}

// WithConfigLogger sets a logger for the config loader.
func WithConfigLogger(logger *logging.Logger) ConfigLoaderOption {
	return configLoaderOptionFunc(func(cl *ConfigLoader) {
		cl.logger = logger
	})
}

// NewConfigLoader creates a loader. BasicValidator is always installed first.
func NewConfigLoader(opts ...ConfigLoaderOption) *ConfigLoader {
	cl := &ConfigLoader{
		validators: []ConfigValidator{&BasicValidator{}},
	}
	for _, opt := range opts {
		opt.apply(cl)
	}
	if cl.logger == nil {
		cl.logger = logging.WithComponent(logging.Component("config"))
	}
	return cl
}

// LoadFromFile loads configuration from a file; the format follows the extension.
func (cl *ConfigLoader) LoadFromFile(path string) error {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	cl.logger.Debug("loading strategy configuration", slog.String("path", path))

	data, err := os.ReadFile(path)
	if err != nil {
		return syncErrors.NewConfigError(syncErrors.OpLoadConfig,
			fmt.Errorf("read config file %s: %w", path, err)).WithMetadata("path", path)
	}
	return cl.loadFromBytes(data, DetectFormat(path))
}

// LoadFromBytes loads configuration from raw bytes in the given format
// ("yaml", "yml", "json" or "toml").
func (cl *ConfigLoader) LoadFromBytes(data []byte, format string) error {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	return cl.loadFromBytes(data, format)
}

func (cl *ConfigLoader) loadFromBytes(data []byte, format string) error {
	var config StrategyFile

	switch strings.ToLower(format) {
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return cl.fail(fmt.Errorf("parse YAML config: %w", err))
		}
	case "json":
		if err := json.Unmarshal(data, &config); err != nil {
			return cl.fail(fmt.Errorf("parse JSON config: %w", err))
		}
	case "toml":
		md, err := toml.Decode(string(data), &config)
		if err != nil {
			return cl.fail(fmt.Errorf("parse TOML config: %w", err))
		}
		for _, key := range md.Undecoded() {
			cl.logger.Warn("ignoring unknown config key", slog.String("key", key.String()))
		}
	default:
		return cl.fail(fmt.Errorf("unsupported config format: %s", format))
	}

	return cl.applyConfig(&config)
}

func (cl *ConfigLoader) fail(err error) error {
	syncErr := syncErrors.NewConfigError(syncErrors.OpLoadConfig, err)
	for _, w := range cl.watchers {
		w.OnConfigError(syncErr)
	}
	return syncErr
}

// applyConfig transforms, validates and installs a configuration.
func (cl *ConfigLoader) applyConfig(config *StrategyFile) error {
	for _, transformer := range cl.transformers {
		transformed, err := transformer.Transform(config)
		if err != nil {
			cl.logger.Error("configuration transformation failed",
				slog.String("transformer", transformer.Name()), slog.String("error", err.Error()))
			return cl.fail(fmt.Errorf("transformer %s failed: %w", transformer.Name(), err))
		}
		config = transformed
	}

	for _, validator := range cl.validators {
		if err := validator.Validate(config); err != nil {
			cl.logger.Error("configuration validation failed",
				slog.String("validator", validator.Name()), slog.String("error", err.Error()))
			return cl.fail(fmt.Errorf("validator %s failed: %w", validator.Name(), err))
		}
	}

	for _, f := range config.Fields {
		if _, ok := ParseStrategyKind(f.Strategy); !ok {
			cl.logger.Warn("unknown strategy, using remote_priority",
				slog.String("field", f.Field), slog.String("strategy", f.Strategy))
		}
	}

	oldConfig := cl.currentConfig
	cl.currentConfig = config

	for _, watcher := range cl.watchers {
		go func(w ConfigWatcher) {
			defer func() {
				if r := recover(); r != nil {
					cl.logger.Error("config watcher panic",
						slog.String("watcher", w.Name()), slog.Any("panic", r))
				}
			}()
			w.OnConfigChanged(oldConfig, config)
		}(watcher)
	}

	cl.logger.Info("strategy configuration applied",
		slog.String("name", config.Name),
		slog.String("version", config.Version),
		slog.Int("fields", len(config.Fields)),
	)
	return nil
}

// GetCurrentConfig returns the current configuration, nil before the first load.
func (cl *ConfigLoader) GetCurrentConfig() *StrategyFile {
	cl.mu.RLock()
	defer cl.mu.RUnlock()

	return cl.currentConfig
}

// StrategyConfig converts the current configuration into an ordered StrategyConfig.
func (cl *ConfigLoader) StrategyConfig() (StrategyConfig, error) {
	config := cl.GetCurrentConfig()
	if config == nil {
		return nil, syncErrors.NewConfigError(syncErrors.OpLoadConfig, fmt.Errorf("no configuration loaded"))
	}
	return config.StrategyConfig(), nil
}

// AutoResolve reports the configured auto_resolve flag, true when unset.
func (cl *ConfigLoader) AutoResolve() bool {
	config := cl.GetCurrentConfig()
	if config == nil || config.AutoResolve == nil {
		return true
	}
	return *config.AutoResolve
}

// BuildEngine creates an Engine from the current configuration. opts are
// applied after the configured history capacity and may override it.
func (cl *ConfigLoader) BuildEngine(opts ...Option) (*Engine, error) {
	config := cl.GetCurrentConfig()
	if config == nil {
		return nil, syncErrors.NewConfigError(syncErrors.OpLoadConfig, fmt.Errorf("no configuration loaded"))
	}

	all := make([]Option, 0, len(opts)+1)
	all = append(all, WithHistoryCapacity(config.HistoryCapacity))
	all = append(all, opts...)
	return NewEngine(config.StrategyConfig(), all...)
}

// StrategyConfig converts the file's field list. Unknown strategy names map
// to RemotePriority.
func (f *StrategyFile) StrategyConfig() StrategyConfig {
	out := make(StrategyConfig, 0, len(f.Fields))
	for _, entry := range f.Fields {
		kind, _ := ParseStrategyKind(entry.Strategy)
		out = append(out, FieldStrategy{Field: entry.Field, Strategy: kind})
	}
	return out
}

// DetectFormat determines the config format from a file extension, defaulting to YAML.
func DetectFormat(path string) string {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")) {
	case "json":
		return "json"
	case "toml":
		return "toml"
	default:
		return "yaml"
	}
}

// BasicValidator checks the structural rules every strategy file must meet.
type BasicValidator struct{}

func (v *BasicValidator) Name() string {
	return "basic"
}

func (v *BasicValidator) Validate(config *StrategyFile) error {
	if config.Version == "" {
		return fmt.Errorf("configuration version is required")
	}
	if config.HistoryCapacity < 0 {
		return fmt.Errorf("history_capacity must not be negative")
	}

	seen := make(map[string]bool, len(config.Fields))
	for i, f := range config.Fields {
		if f.Field == "" {
			return fmt.Errorf("field name is required (entry %d)", i)
		}
		if f.Field == VersionField {
			return fmt.Errorf("field %q is reserved", VersionField)
		}
		if seen[f.Field] {
			return fmt.Errorf("duplicate field: %s", f.Field)
		}
		seen[f.Field] = true
	}
	return nil
}

// LoggingWatcher logs configuration changes.
type LoggingWatcher struct {
	logger *logging.Logger
}

func NewLoggingWatcher(logger *logging.Logger) *LoggingWatcher {
	return &LoggingWatcher{logger: logger}
}

func (w *LoggingWatcher) Name() string {
	return "logging"
}

func (w *LoggingWatcher) OnConfigChanged(oldConfig, newConfig *StrategyFile) {
	if w.logger == nil {
		return
	}
	if oldConfig == nil {
		w.logger.Debug("initial configuration loaded",
			slog.String("version", newConfig.Version), slog.Int("fields", len(newConfig.Fields)))
		return
	}
	w.logger.Debug("configuration updated",
		slog.String("old_version", oldConfig.Version),
		slog.String("new_version", newConfig.Version),
		slog.Int("old_fields", len(oldConfig.Fields)),
		slog.Int("new_fields", len(newConfig.Fields)),
	)
}

func (w *LoggingWatcher) OnConfigError(err error) {
	if w.logger != nil {
		w.logger.Error("configuration error", slog.String("error", err.Error()))
	}
}

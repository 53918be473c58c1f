package reconcile

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	syncErrors "github.com/c0deZ3R0/go-listing-sync/errors"
	"github.com/c0deZ3R0/go-listing-sync/logging"
)

// BatchResult aggregates the outcomes of resolving a list of conflicts.
// ResolvedCount + ManualCount == TotalConflicts always holds.
type BatchResult struct {
	ResolvedData   map[string]any      `json:"resolved_data"`
	PendingManual  []ResolutionOutcome `json:"pending_manual"`
	TotalConflicts int                 `json:"total_conflicts"`
	ResolvedCount  int                 `json:"resolved_count"`
	ManualCount    int                 `json:"manual_count"`

	// Records holds the history records appended by this batch, in order,
	// so a caller can hand them to a durable archive.
	Records []HistoryRecord `json:"-"`
}

// Engine detects and resolves conflicts between local and remote snapshots
// and keeps a bounded audit log of its decisions. Construct one per process
// (or per sync service) and pass it explicitly; it is safe for concurrent use.
type Engine struct {
	registry *StrategyRegistry
	detector *ConflictDetector
	resolver *StrategyResolver
	history  *HistoryRecorder

	logger  *logging.Logger
	hooks   Hooks
	metrics MetricsCollector
	now     func() time.Time
	newID   func() string
}

type engineOptions struct {
	logger          *logging.Logger
	hooks           Hooks
	metrics         MetricsCollector
	historyCapacity int
	now             func() time.Time
	newID           func() string
}

// Option implements the functional options pattern for NewEngine.
type Option interface{ apply(*engineOptions) }

type optionFn func(*engineOptions)

func (f optionFn) apply(o *engineOptions) { f(o) }

// WithLogger sets the engine's logger.
func WithLogger(l *logging.Logger) Option {
	return optionFn(func(o *engineOptions) { o.logger = l })
}

// WithHooks sets optional observability hooks. Zero-value safe.
func WithHooks(h Hooks) Option {
	return optionFn(func(o *engineOptions) { o.hooks = h })
}

// WithMetrics sets the metrics collector.
func WithMetrics(m MetricsCollector) Option {
	return optionFn(func(o *engineOptions) { o.metrics = m })
}

// WithHistoryCapacity bounds the in-memory history. Non-positive values keep the default.
func WithHistoryCapacity(n int) Option {
	return optionFn(func(o *engineOptions) { o.historyCapacity = n })
}

// WithClock overrides the time source used for history timestamps.
func WithClock(now func() time.Time) Option {
	return optionFn(func(o *engineOptions) { o.now = now })
}

// WithIDGenerator overrides how history record IDs are generated.
func WithIDGenerator(gen func() string) Option {
	return optionFn(func(o *engineOptions) { o.newID = gen })
}

// NewEngine builds an engine over cfg. cfg is copied; later changes to the
// caller's slice do not affect the engine.
func NewEngine(cfg StrategyConfig, opts ...Option) (*Engine, error) {
	o := &engineOptions{}
	for _, opt := range opts {
		opt.apply(o)
	}

	registry, err := NewStrategyRegistry(cfg)
	if err != nil {
		return nil, err
	}

	if o.logger == nil {
		o.logger = logging.WithComponent(logging.Component("reconcile-engine"))
	}
	if o.metrics == nil {
		o.metrics = &NoOpMetricsCollector{}
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.newID == nil {
		o.newID = func() string { return uuid.Must(uuid.NewV7()).String() }
	}

	e := &Engine{
		registry: registry,
		detector: NewConflictDetector(registry),
		resolver: NewStrategyResolver(),
		history:  NewHistoryRecorder(o.historyCapacity),
		logger:   o.logger,
		hooks:    o.hooks,
		metrics:  o.metrics,
		now:      o.now,
		newID:    o.newID,
	}

	e.logger.Debug("reconciliation engine initialised",
		slog.Int("fields", registry.Len()),
		slog.Int("history_capacity", e.history.Cap()),
	)
	return e, nil
}

// Registry returns the engine's strategy registry.
func (e *Engine) Registry() *StrategyRegistry { return e.registry }

// Detect returns the conflicts between local and remote in configuration order.
func (e *Engine) Detect(local, remote Snapshot) ([]FieldConflict, error) {
	return e.detect(context.Background(), "", local, remote)
}

// withEntity tags ctx with the entity being reconciled so every log line of
// the run carries it.
func withEntity(ctx context.Context, entityID string) context.Context {
	if entityID == "" {
		return ctx
	}
	return context.WithValue(ctx, logging.EntityIDKey, entityID)
}

func (e *Engine) detect(ctx context.Context, entityID string, local, remote Snapshot) ([]FieldConflict, error) {
	log := e.logger.WithContext(ctx)

	conflicts, err := e.detector.Detect(local, remote)
	if err != nil {
		e.metrics.RecordValidationError()
		log.LogError(ctx, err, "snapshot rejected")
		return nil, err
	}

	for _, c := range conflicts {
		log.Warn("conflict detected",
			slog.String("field", c.Field),
			slog.Any("local", c.LocalValue),
			slog.Any("remote", c.RemoteValue),
			slog.String("strategy", c.Strategy.String()),
		)
		if e.hooks.OnConflict != nil {
			e.hooks.OnConflict(entityID, c)
		}
	}
	e.metrics.RecordConflicts(len(conflicts))
	return conflicts, nil
}

// ResolveOne resolves a single conflict. Resolved outcomes are appended to
// the history; pending outcomes are not.
func (e *Engine) ResolveOne(entityID string, c FieldConflict, autoResolve bool) ResolutionOutcome {
	out, _ := e.resolveOne(withEntity(context.Background(), entityID), entityID, c, autoResolve)
	return out
}

func (e *Engine) resolveOne(ctx context.Context, entityID string, c FieldConflict, autoResolve bool) (ResolutionOutcome, *HistoryRecord) {
	out := e.resolver.Resolve(c, autoResolve)

	if out.Pending() {
		e.metrics.RecordManualReview(c.Field)
		e.logger.WithContext(ctx).Info("conflict queued for manual review", slog.String("field", c.Field))
		if e.hooks.OnPending != nil {
			e.hooks.OnPending(entityID, c, out)
		}
		return out, nil
	}

	e.metrics.RecordResolution(c.Strategy.Normalize(), out.Source)
	if e.hooks.OnResolved != nil {
		e.hooks.OnResolved(entityID, c, out)
	}

	rec := e.record(ctx, entityID, c, out)
	return out, &rec
}

func (e *Engine) record(ctx context.Context, entityID string, c FieldConflict, out ResolutionOutcome) HistoryRecord {
	rec := HistoryRecord{
		ID:             e.newID(),
		EntityID:       entityID,
		Timestamp:      e.now().UTC(),
		Field:          c.Field,
		LocalValue:     c.LocalValue,
		RemoteValue:    c.RemoteValue,
		Strategy:       c.Strategy.Normalize(),
		ResolvedValue:  out.Value,
		ResolvedSource: out.Source,
		Reason:         out.Reason,
	}
	e.history.Append(rec)

	e.logger.WithContext(ctx).Debug("conflict recorded",
		slog.String("record_id", rec.ID),
		slog.String("field", rec.Field),
		slog.String("source", string(rec.ResolvedSource)),
	)
	if e.hooks.OnRecorded != nil {
		e.hooks.OnRecorded(rec)
	}
	return rec
}

// ResolveAll resolves conflicts in input order. Pending outcomes are collected
// in PendingManual and their fields left out of ResolvedData.
func (e *Engine) ResolveAll(entityID string, conflicts []FieldConflict, autoResolve bool) BatchResult {
	return e.resolveAll(withEntity(context.Background(), entityID), entityID, conflicts, autoResolve)
}

func (e *Engine) resolveAll(ctx context.Context, entityID string, conflicts []FieldConflict, autoResolve bool) BatchResult {
	res := BatchResult{
		ResolvedData:   make(map[string]any, len(conflicts)),
		PendingManual:  make([]ResolutionOutcome, 0),
		TotalConflicts: len(conflicts),
	}

	for _, c := range conflicts {
		out, rec := e.resolveOne(ctx, entityID, c, autoResolve)
		if out.Pending() {
			res.PendingManual = append(res.PendingManual, out)
			continue
		}
		res.ResolvedData[c.Field] = out.Value
		if rec != nil {
			res.Records = append(res.Records, *rec)
		}
	}

	res.ManualCount = len(res.PendingManual)
	res.ResolvedCount = res.TotalConflicts - res.ManualCount
	return res
}

// Reconcile detects the conflicts between local and remote and resolves them.
func (e *Engine) Reconcile(entityID string, local, remote Snapshot, autoResolve bool) (BatchResult, error) {
	return e.ReconcileContext(context.Background(), entityID, local, remote, autoResolve)
}

// ReconcileContext is Reconcile with a caller context. Identifiers stored in
// ctx under logging.RunIDKey are attached to the engine's log lines. The
// engine performs no I/O, so ctx is not checked for cancellation.
func (e *Engine) ReconcileContext(ctx context.Context, entityID string, local, remote Snapshot, autoResolve bool) (BatchResult, error) {
	ctx = withEntity(ctx, entityID)

	conflicts, err := e.detect(ctx, entityID, local, remote)
	if err != nil {
		return BatchResult{}, syncErrors.E(syncErrors.OpReconcile, syncErrors.Component("engine"), err)
	}
	res := e.resolveAll(ctx, entityID, conflicts, autoResolve)

	e.logger.WithContext(ctx).Info("reconciliation finished",
		slog.Int("total_conflicts", res.TotalConflicts),
		slog.Int("resolved", res.ResolvedCount),
		slog.Int("manual", res.ManualCount),
	)
	return res, nil
}

// History returns up to limit records, newest first, optionally filtered by field.
func (e *Engine) History(field string, limit int) []HistoryRecord {
	return e.history.Query(field, limit)
}

// HistoryLen returns the number of records held in memory.
func (e *Engine) HistoryLen() int {
	return e.history.Len()
}

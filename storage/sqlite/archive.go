// Package sqlite provides a durable SQLite archive for reconciliation history.
//
// The engine keeps only a bounded in-memory history. Operational tooling that
// needs a longer audit trail hands BatchResult.Records to a HistoryArchive.
package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	stdSync "sync"
	"time"

	syncErrors "github.com/c0deZ3R0/go-listing-sync/errors"
	"github.com/c0deZ3R0/go-listing-sync/logging"
	"github.com/c0deZ3R0/go-listing-sync/reconcile"

	// Go SQLite driver
	_ "github.com/mattn/go-sqlite3"
)

const component = "storage/sqlite"

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrArchiveClosed is returned by every operation after Close.
var ErrArchiveClosed = errors.New("archive is closed")

// Config holds configuration options for the HistoryArchive.
//
// DefaultConfig enables WAL mode and a small connection pool.
type Config struct {
	// DataSourceName is the connection string for the SQLite database,
	// e.g. "file:history.db" or ":memory:".
	DataSourceName string

	// EnableWAL appends "?_journal_mode=WAL" to DataSourceName when it
	// carries no journal mode of its own.
	EnableWAL bool

	// Logger defaults to the package logger tagged with this component.
	Logger *logging.Logger

	// Connection pool settings.
	// Defaults: MaxOpen=25, MaxIdle=5, Lifetime=1h, IdleTime=5m
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

func (c *Config) setDefaults() {
	if c.Logger == nil {
		c.Logger = logging.WithComponent(logging.Component(component))
	}
	// every connection to ":memory:" opens its own empty database
	if strings.Contains(c.DataSourceName, ":memory:") {
		c.MaxOpenConns = 1
	}
	if c.MaxOpenConns == 0 {
		c.MaxOpenConns = 25
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = 5
	}
	if c.ConnMaxLifetime == 0 {
		c.ConnMaxLifetime = time.Hour
	}
	if c.ConnMaxIdleTime == 0 {
		c.ConnMaxIdleTime = 5 * time.Minute
	}
	if c.EnableWAL && !strings.Contains(c.DataSourceName, "_journal_mode=") {
		sep := "?"
		if strings.Contains(c.DataSourceName, "?") {
			sep = "&"
		}
		c.DataSourceName += sep + "_journal_mode=WAL"
	}
}

// DefaultConfig returns a Config with WAL enabled and default pool settings.
func DefaultConfig(dataSourceName string) *Config {
	config := &Config{
		DataSourceName: dataSourceName,
		EnableWAL:      true,
	}
	config.setDefaults()
	return config
}

// HistoryFilter narrows an archive query. Zero values match everything;
// a non-positive Limit uses reconcile.DefaultQueryLimit.
type HistoryFilter struct {
	Field    string
	EntityID string
	Since    time.Time
	Limit    int
}

// HistoryArchive persists reconcile.HistoryRecord values. It is safe for
// concurrent use.
type HistoryArchive struct {
	db     *sql.DB
	mu     stdSync.RWMutex
	closed bool
	logger *logging.Logger

	// SQLite admits a single writer.
	writeMu stdSync.Mutex
}

// Open is a convenience constructor using DefaultConfig.
func Open(dataSourceName string) (*HistoryArchive, error) {
	return New(DefaultConfig(dataSourceName))
}

// New opens the database described by config and creates the schema.
func New(config *Config) (*HistoryArchive, error) {
	if config == nil {
		return nil, syncErrors.NewValidationError(syncErrors.OpArchive, fmt.Errorf("config cannot be nil"))
	}
	config.setDefaults()
	if config.DataSourceName == "" {
		return nil, syncErrors.NewValidationError(syncErrors.OpArchive, fmt.Errorf("DataSourceName is required"))
	}

	logger := config.Logger
	logger.Info("opening history archive",
		slog.String("data_source", config.DataSourceName),
		slog.Bool("wal_enabled", config.EnableWAL),
	)

	db, err := sql.Open("sqlite3", config.DataSourceName)
	if err != nil {
		return nil, syncErrors.NewStorageError(syncErrors.OpArchive, fmt.Errorf("open sqlite database: %w", err))
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, syncErrors.NewStorageError(syncErrors.OpArchive, fmt.Errorf("connect to sqlite database: %w", err))
	}

	a := &HistoryArchive{db: db, logger: logger}
	if err := a.setupSchema(); err != nil {
		db.Close()
		return nil, syncErrors.NewStorageError(syncErrors.OpArchive, fmt.Errorf("setup schema: %w", err))
	}

	logger.Debug("history archive ready",
		slog.Int("max_open_conns", config.MaxOpenConns),
		slog.Int("max_idle_conns", config.MaxIdleConns),
	)
	return a, nil
}

func (a *HistoryArchive) setupSchema() error {
	query := `
    CREATE TABLE IF NOT EXISTS conflict_history (
        seq             INTEGER PRIMARY KEY AUTOINCREMENT,
        id              TEXT NOT NULL UNIQUE,
        entity_id       TEXT NOT NULL,
        field           TEXT NOT NULL,
        strategy        TEXT NOT NULL,
        local_value     TEXT,
        remote_value    TEXT,
        resolved_value  TEXT,
        resolved_source TEXT NOT NULL,
        reason          TEXT NOT NULL,
        recorded_at     TEXT NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_history_field ON conflict_history (field);
    CREATE INDEX IF NOT EXISTS idx_history_entity ON conflict_history (entity_id);
    `
	_, err := a.db.Exec(query)
	return err
}

func (a *HistoryArchive) checkOpen() error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return syncErrors.NewStorageError(syncErrors.OpArchive, ErrArchiveClosed)
	}
	return nil
}

// Save appends records in one transaction. Records whose ID is already
// archived are skipped, so the same batch can be saved twice.
func (a *HistoryArchive) Save(ctx context.Context, records ...reconcile.HistoryRecord) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := a.checkOpen(); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	a.writeMu.Lock()
	defer a.writeMu.Unlock()

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return syncErrors.NewStorageError(syncErrors.OpArchive, fmt.Errorf("begin transaction: %w", err))
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO conflict_history
        (id, entity_id, field, strategy, local_value, remote_value, resolved_value, resolved_source, reason, recorded_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return syncErrors.NewStorageError(syncErrors.OpArchive, fmt.Errorf("prepare insert: %w", err))
	}
	defer stmt.Close()

	for _, rec := range records {
		local, err := encodeValue(rec.LocalValue)
		if err != nil {
			return syncErrors.NewValidationError(syncErrors.OpArchive, err).WithMetadata("record_id", rec.ID)
		}
		remote, err := encodeValue(rec.RemoteValue)
		if err != nil {
			return syncErrors.NewValidationError(syncErrors.OpArchive, err).WithMetadata("record_id", rec.ID)
		}
		resolved, err := encodeValue(rec.ResolvedValue)
		if err != nil {
			return syncErrors.NewValidationError(syncErrors.OpArchive, err).WithMetadata("record_id", rec.ID)
		}

		_, err = stmt.ExecContext(ctx,
			rec.ID,
			rec.EntityID,
			rec.Field,
			rec.Strategy.String(),
			local,
			remote,
			resolved,
			string(rec.ResolvedSource),
			rec.Reason,
			rec.Timestamp.UTC().Format(timeLayout),
		)
		if err != nil {
			return syncErrors.NewStorageError(syncErrors.OpArchive, fmt.Errorf("insert record %s: %w", rec.ID, err))
		}
	}

	if err = tx.Commit(); err != nil {
		return syncErrors.NewStorageError(syncErrors.OpArchive, fmt.Errorf("commit: %w", err))
	}

	a.logger.Debug("archived history records", slog.Int("count", len(records)))
	return nil
}

// Query returns archived records matching filter, newest first.
func (a *HistoryArchive) Query(ctx context.Context, filter HistoryFilter) ([]reconcile.HistoryRecord, error) {
	if err := a.checkOpen(); err != nil {
		return nil, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = reconcile.DefaultQueryLimit
	}

	where, args := filter.clause()
	query := `SELECT id, entity_id, field, strategy, local_value, remote_value, resolved_value, resolved_source, reason, recorded_at
        FROM conflict_history` + where + ` ORDER BY seq DESC LIMIT ?`
	args = append(args, limit)

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, syncErrors.WrapOpComponentKind(err, string(syncErrors.OpQueryHistory), component, syncErrors.KindStorage)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// Count returns the number of archived records matching filter. Limit is ignored.
func (a *HistoryArchive) Count(ctx context.Context, filter HistoryFilter) (int, error) {
	if err := a.checkOpen(); err != nil {
		return 0, err
	}

	where, args := filter.clause()
	var n int
	if err := a.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM conflict_history`+where, args...).Scan(&n); err != nil {
		return 0, syncErrors.WrapOpComponentKind(err, string(syncErrors.OpQueryHistory), component, syncErrors.KindStorage)
	}
	return n, nil
}

// Prune deletes all but the newest keep records and returns how many were removed.
func (a *HistoryArchive) Prune(ctx context.Context, keep int) (int64, error) {
	if err := a.checkOpen(); err != nil {
		return 0, err
	}
	if keep < 0 {
		return 0, syncErrors.NewValidationError(syncErrors.OpArchive, fmt.Errorf("keep must not be negative: %d", keep))
	}

	a.writeMu.Lock()
	defer a.writeMu.Unlock()

	res, err := a.db.ExecContext(ctx, `DELETE FROM conflict_history WHERE seq NOT IN
        (SELECT seq FROM conflict_history ORDER BY seq DESC LIMIT ?)`, keep)
	if err != nil {
		return 0, syncErrors.NewStorageError(syncErrors.OpArchive, fmt.Errorf("prune: %w", err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, syncErrors.NewStorageError(syncErrors.OpArchive, err)
	}
	if n > 0 {
		a.logger.Info("pruned history archive", slog.Int64("removed", n), slog.Int("kept", keep))
	}
	return n, nil
}

// Stats returns database statistics for monitoring.
func (a *HistoryArchive) Stats() sql.DBStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		return sql.DBStats{}
	}
	return a.db.Stats()
}

// Close closes the database. It is safe to call more than once.
func (a *HistoryArchive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}
	a.closed = true
	if err := a.db.Close(); err != nil {
		return syncErrors.NewStorageError(syncErrors.OpClose, err)
	}
	return nil
}

func (f HistoryFilter) clause() (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.Field != "" {
		conds = append(conds, "field = ?")
		args = append(args, f.Field)
	}
	if f.EntityID != "" {
		conds = append(conds, "entity_id = ?")
		args = append(args, f.EntityID)
	}
	if !f.Since.IsZero() {
		conds = append(conds, "recorded_at >= ?")
		args = append(args, f.Since.UTC().Format(timeLayout))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanRecords(rows *sql.Rows) ([]reconcile.HistoryRecord, error) {
	var records []reconcile.HistoryRecord
	for rows.Next() {
		var (
			rec                       reconcile.HistoryRecord
			strategy, source, stamp   string
			local, remote, resolvedTo sql.NullString
		)
		if err := rows.Scan(&rec.ID, &rec.EntityID, &rec.Field, &strategy,
			&local, &remote, &resolvedTo, &source, &rec.Reason, &stamp); err != nil {
			return nil, syncErrors.NewStorageError(syncErrors.OpQueryHistory, fmt.Errorf("scan history row: %w", err))
		}

		rec.Strategy, _ = reconcile.ParseStrategyKind(strategy)
		rec.ResolvedSource = reconcile.Source(source)

		ts, err := time.Parse(timeLayout, stamp)
		if err != nil {
			return nil, syncErrors.NewStorageError(syncErrors.OpQueryHistory, fmt.Errorf("parse timestamp of %s: %w", rec.ID, err))
		}
		rec.Timestamp = ts

		for _, col := range []struct {
			raw sql.NullString
			dst *any
		}{
			{local, &rec.LocalValue},
			{remote, &rec.RemoteValue},
			{resolvedTo, &rec.ResolvedValue},
		} {
			v, err := decodeValue(col.raw)
			if err != nil {
				return nil, syncErrors.NewStorageError(syncErrors.OpQueryHistory, fmt.Errorf("decode value of %s: %w", rec.ID, err))
			}
			*col.dst = v
		}

		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, syncErrors.NewStorageError(syncErrors.OpQueryHistory, fmt.Errorf("row iteration: %w", err))
	}
	return records, nil
}

func encodeValue(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode value: %w", err)
	}
	return string(data), nil
}

// decodeValue keeps numbers as json.Number so integers survive the round trip.
func decodeValue(raw sql.NullString) (any, error) {
	if !raw.Valid {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(raw.String)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"github.com/c0deZ3R0/go-listing-sync/internal/ui"
	"github.com/c0deZ3R0/go-listing-sync/logging"
	"github.com/c0deZ3R0/go-listing-sync/reconcile"
	"github.com/c0deZ3R0/go-listing-sync/storage/sqlite"
)

func configFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Strategy file (YAML, JSON or TOML); built-in defaults when omitted",
	}
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Reconcile one local snapshot against one remote snapshot",
		UsageText: `reconcile run --local local.json --remote remote.json [options]
   reconcile run --local p1-local.json --remote p1-remote.json --entity p1 --archive history.db
   reconcile run --local a.json --remote b.json --config strategies.yaml --manual --aggregate`,
		Description: `Compares two JSON product snapshots and resolves every conflicting field
   with its configured strategy. The batch result is written to stdout as JSON.

   Use --manual to queue fields with the manual strategy for review instead of
   falling back to remote priority. Use --archive to append the resolved
   conflicts to a SQLite history database.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "local",
				Aliases:  []string{"l"},
				Usage:    "Path to the local snapshot (JSON object). Required.",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "remote",
				Aliases:  []string{"r"},
				Usage:    "Path to the remote snapshot (JSON object). Required.",
				Required: true,
			},
			configFlag(),
			&cli.StringFlag{
				Name:    "entity",
				Aliases: []string{"e"},
				Usage:   "Entity identifier recorded in the history",
				Value:   "cli",
			},
			&cli.BoolFlag{
				Name:  "manual",
				Usage: "Disable auto-resolution of manual-review fields",
			},
			&cli.StringFlag{
				Name:  "archive",
				Usage: "SQLite database receiving the resolved conflicts",
			},
			&cli.BoolFlag{
				Name:  "aggregate",
				Usage: "Also print the reconciled entity",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runReconcile(ctx, cmd)
		},
	}
}

type runOutput struct {
	Result     reconcile.BatchResult `json:"result"`
	Aggregated reconcile.Snapshot    `json:"aggregated,omitempty"`
}

func runReconcile(ctx context.Context, cmd *cli.Command) error {
	local, err := readSnapshot(cmd.String("local"))
	if err != nil {
		return err
	}
	remote, err := readSnapshot(cmd.String("remote"))
	if err != nil {
		return err
	}

	engine, autoResolve, err := buildEngine(cmd.String("config"))
	if err != nil {
		return err
	}
	if cmd.Bool("manual") {
		autoResolve = false
	}

	ctx = context.WithValue(ctx, logging.RunIDKey, uuid.Must(uuid.NewV7()).String())
	res, err := engine.ReconcileContext(ctx, cmd.String("entity"), local, remote, autoResolve)
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}

	if path := cmd.String("archive"); path != "" {
		if err := archiveRecords(ctx, path, res.Records); err != nil {
			return err
		}
	}

	out := runOutput{Result: res}
	if cmd.Bool("aggregate") {
		out.Aggregated = engine.Aggregate(local, remote, res)
	}
	if err := writeJSON(cmd.Root().Writer, out); err != nil {
		return err
	}

	printSummary(cmd.Root().ErrWriter, res)
	return nil
}

func readSnapshot(path string) (reconcile.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	snap, err := reconcile.ParseSnapshotJSON(data)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", path, err)
	}
	return snap, nil
}

// buildEngine returns an engine and the auto-resolve default for the given
// strategy file, or the built-in defaults when path is empty.
func buildEngine(path string) (*reconcile.Engine, bool, error) {
	if path == "" {
		engine, err := reconcile.NewEngine(reconcile.DefaultStrategyConfig())
		return engine, true, err
	}

	loader := reconcile.NewConfigLoader()
	if err := loader.LoadFromFile(path); err != nil {
		return nil, false, err
	}
	engine, err := loader.BuildEngine()
	if err != nil {
		return nil, false, err
	}
	return engine, loader.AutoResolve(), nil
}

func archiveRecords(ctx context.Context, path string, records []reconcile.HistoryRecord) error {
	archive, err := sqlite.Open(path)
	if err != nil {
		return err
	}
	defer archive.Close()

	return logging.LogOperation(ctx, logging.Operation("archive"), logging.Component("cli"), func() error {
		return archive.Save(ctx, records...)
	})
}

func printSummary(w io.Writer, res reconcile.BatchResult) {
	if res.TotalConflicts == 0 {
		fmt.Fprintln(w, ui.StatusSuccess("no conflicts"))
		return
	}
	for _, rec := range res.Records {
		fmt.Fprintln(w, ui.StatusSuccess(fmt.Sprintf("%s %s", rec.Field, ui.Dim("("+rec.Reason+", "+string(rec.ResolvedSource)+")"))))
	}
	for _, p := range res.PendingManual {
		fmt.Fprintln(w, ui.StatusPending(fmt.Sprintf("%s %s", p.Field, ui.Dim("("+p.Reason+")"))))
	}
	fmt.Fprintf(w, "%s conflicts, %s resolved, %s pending review\n",
		ui.Bold(res.TotalConflicts), ui.Success(res.ResolvedCount), ui.Warning(res.ManualCount))
}

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show archived conflict resolutions, newest first",
		UsageText: `reconcile history --archive history.db [options]
   reconcile history --archive history.db --field price --limit 10
   reconcile history --archive history.db --entity p1 --json`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "archive",
				Usage:    "SQLite history database. Required.",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "field",
				Aliases: []string{"f"},
				Usage:   "Only show this field",
			},
			&cli.StringFlag{
				Name:    "entity",
				Aliases: []string{"e"},
				Usage:   "Only show this entity",
			},
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Maximum number of records",
				Value:   reconcile.DefaultQueryLimit,
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print records as JSON",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runHistory(ctx, cmd)
		},
	}
}

func runHistory(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("archive")
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("archive %s: %w", path, err)
	}

	archive, err := sqlite.Open(path)
	if err != nil {
		return err
	}
	defer archive.Close()

	records, err := archive.Query(ctx, sqlite.HistoryFilter{
		Field:    cmd.String("field"),
		EntityID: cmd.String("entity"),
		Limit:    int(cmd.Int("limit")),
	})
	if err != nil {
		return err
	}

	out := cmd.Root().Writer
	if cmd.Bool("json") {
		if records == nil {
			records = []reconcile.HistoryRecord{}
		}
		return writeJSON(out, records)
	}
	if len(records) == 0 {
		fmt.Fprintln(out, ui.Dim("no history records"))
		return nil
	}

	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			r.Timestamp.Format("2006-01-02 15:04:05"), r.EntityID, r.Field,
			r.Strategy.String(), string(r.ResolvedSource), fmt.Sprint(r.ResolvedValue),
		})
	}
	return writeTable(out, []string{"TIME", "ENTITY", "FIELD", "STRATEGY", "SOURCE", "VALUE"}, rows)
}

func strategiesCommand() *cli.Command {
	return &cli.Command{
		Name:  "strategies",
		Usage: "List the effective field strategies",
		Flags: []cli.Flag{configFlag()},
		Action: func(_ context.Context, cmd *cli.Command) error {
			engine, autoResolve, err := buildEngine(cmd.String("config"))
			if err != nil {
				return err
			}

			out := cmd.Root().Writer
			var rows [][]string
			for _, fs := range engine.Registry().Config() {
				rows = append(rows, []string{fs.Field, fs.Strategy.String()})
			}
			if err := writeTable(out, []string{"FIELD", "STRATEGY"}, rows); err != nil {
				return err
			}
			fmt.Fprintf(out, "auto_resolve: %t\n", autoResolve)
			fmt.Fprintln(out, ui.Dim("unlisted fields use remote_priority"))
			return nil
		},
	}
}

// writeTable aligns the rows before styling the header, so the colour
// escapes never reach the tabwriter cell widths.
func writeTable(w io.Writer, header []string, rows [][]string) error {
	var buf bytes.Buffer
	tw := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	head, body, _ := strings.Cut(buf.String(), "\n")
	_, err := fmt.Fprintf(w, "%s\n%s", ui.Header(head), body)
	return err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}

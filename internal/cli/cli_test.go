package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c0deZ3R0/go-listing-sync/internal/ui"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), append([]string{"reconcile", "--no-color"}, args...), &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func TestRunAndHistory(t *testing.T) {
	dir := t.TempDir()
	local := writeFile(t, dir, "local.json", `{"price": 100, "sku": "A1", "color": "red", "version": 1}`)
	remote := writeFile(t, dir, "remote.json", `{"price": 120, "sku": "A2", "color": "blue", "version": 1}`)
	db := filepath.Join(dir, "history.db")

	stdout, stderr, err := runCLI(t, "run", "--local", local, "--remote", remote,
		"--entity", "p-1", "--archive", db, "--aggregate")
	if err != nil {
		t.Fatalf("run: %v\nstderr: %s", err, stderr)
	}

	var out struct {
		Result struct {
			ResolvedData   map[string]any `json:"resolved_data"`
			PendingManual  []any          `json:"pending_manual"`
			TotalConflicts int            `json:"total_conflicts"`
			ResolvedCount  int            `json:"resolved_count"`
		} `json:"result"`
		Aggregated map[string]any `json:"aggregated"`
	}
	if err := json.Unmarshal([]byte(stdout), &out); err != nil {
		t.Fatalf("decode output: %v\n%s", err, stdout)
	}
	if out.Result.TotalConflicts != 2 || out.Result.ResolvedCount != 2 {
		t.Fatalf("result = %+v", out.Result)
	}
	if out.Result.ResolvedData["price"] != float64(120) || out.Result.ResolvedData["sku"] != "A2" {
		t.Fatalf("resolved_data = %v", out.Result.ResolvedData)
	}
	if out.Result.PendingManual == nil {
		t.Fatal("pending_manual should be an empty list")
	}
	if out.Aggregated["color"] != "blue" {
		t.Fatalf("aggregated = %v", out.Aggregated)
	}
	if !strings.Contains(stderr, "2 conflicts, 2 resolved, 0 pending review") {
		t.Fatalf("summary missing from stderr:\n%s", stderr)
	}

	stdout, stderr, err = runCLI(t, "history", "--archive", db, "--field", "price", "--json")
	if err != nil {
		t.Fatalf("history: %v\nstderr: %s", err, stderr)
	}
	var records []map[string]any
	if err := json.Unmarshal([]byte(stdout), &records); err != nil {
		t.Fatalf("decode history: %v\n%s", err, stdout)
	}
	if len(records) != 1 || records[0]["entity_id"] != "p-1" || records[0]["strategy"] != "last_write_wins" {
		t.Fatalf("history = %v", records)
	}

	stdout, _, err = runCLI(t, "history", "--archive", db)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout, "FIELD") || !strings.Contains(stdout, "sku") {
		t.Fatalf("history table:\n%s", stdout)
	}
}

func TestRunManual(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "strategies.yaml", `
version: "1"
name: test
fields:
  - field: status
    strategy: manual
  - field: inventory
    strategy: local_priority
`)
	local := writeFile(t, dir, "local.json", `{"status": "active", "inventory": 3}`)
	remote := writeFile(t, dir, "remote.json", `{"status": "paused", "inventory": 9}`)

	stdout, stderr, err := runCLI(t, "run", "--local", local, "--remote", remote, "--config", cfg, "--manual")
	if err != nil {
		t.Fatalf("run: %v\nstderr: %s", err, stderr)
	}
	var out struct {
		Result struct {
			PendingManual []struct {
				Field  string `json:"field"`
				Status string `json:"status"`
			} `json:"pending_manual"`
			ManualCount int `json:"manual_count"`
		} `json:"result"`
	}
	if err := json.Unmarshal([]byte(stdout), &out); err != nil {
		t.Fatal(err)
	}
	if out.Result.ManualCount != 1 || out.Result.PendingManual[0].Field != "status" ||
		out.Result.PendingManual[0].Status != "pending_manual_review" {
		t.Fatalf("result = %+v", out.Result)
	}
}

func TestRunErrors(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.json", `{"price": 1}`)
	badVersion := writeFile(t, dir, "bad.json", `{"price": 2, "version": "two"}`)
	notObject := writeFile(t, dir, "list.json", `[1, 2]`)

	tests := []struct {
		name string
		args []string
	}{
		{"missing required flag", []string{"run", "--local", good}},
		{"missing file", []string{"run", "--local", good, "--remote", filepath.Join(dir, "nope.json")}},
		{"bad version", []string{"run", "--local", good, "--remote", badVersion}},
		{"not an object", []string{"run", "--local", notObject, "--remote", good}},
		{"missing config", []string{"run", "--local", good, "--remote", good, "--config", filepath.Join(dir, "nope.yaml")}},
		{"missing archive", []string{"history", "--archive", filepath.Join(dir, "nope.db")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := runCLI(t, tt.args...); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestStrategiesCommand(t *testing.T) {
	stdout, _, err := runCLI(t, "strategies")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"price", "last_write_wins", "inventory", "local_priority", "auto_resolve: true"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("output missing %q:\n%s", want, stdout)
		}
	}

	dir := t.TempDir()
	cfg := writeFile(t, dir, "s.toml", "version = \"1\"\nauto_resolve = false\n\n[[fields]]\nfield = \"sku\"\nstrategy = \"merge\"\n")
	stdout, _, err = runCLI(t, "strategies", "--config", cfg)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout, "merge") || !strings.Contains(stdout, "auto_resolve: false") {
		t.Fatalf("output:\n%s", stdout)
	}
	if strings.Contains(stdout, "price") {
		t.Fatalf("default fields leaked into configured output:\n%s", stdout)
	}
}

var ansi = regexp.MustCompile("\x1b\\[[0-9;]*m")

func TestWriteTableColoredHeaderAlignment(t *testing.T) {
	ui.EnableColors()
	t.Cleanup(ui.DisableColors)

	var buf bytes.Buffer
	err := writeTable(&buf, []string{"TIME", "ENTITY", "FIELD"}, [][]string{
		{"2026-01-02 03:04:05", "product-with-long-id", "price"},
		{"2026-01-02 03:04:06", "p2", "inventory"},
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "\x1b[", "header should be styled")
	assert.NotContains(t, lines[1], "\x1b[", "body rows should be plain")

	header := ansi.ReplaceAllString(lines[0], "")
	assert.Equal(t, strings.Index(lines[1], "product-with-long-id"), strings.Index(header, "ENTITY"), "ENTITY column misaligned")
	assert.Equal(t, strings.Index(lines[1], "price"), strings.Index(header, "FIELD"), "FIELD column misaligned")
	assert.Equal(t, strings.Index(lines[2], "inventory"), strings.Index(header, "FIELD"), "FIELD column misaligned")
}

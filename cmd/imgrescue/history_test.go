package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/imgrescue/internal/database"
	"github.com/nao1215/imgrescue/internal/model"
)

func TestRunHistoryCmdWithoutDatabase(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	cmd := NewHistoryCmd()
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{"--db-dir", t.TempDir()})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "No runs recorded yet.") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestPrintHistory(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db, err := database.Open(t.TempDir(), database.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	var empty bytes.Buffer
	if err := printHistory(ctx, db, 0, &empty); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(empty.String(), "No runs recorded yet.") {
		t.Errorf("empty history output = %q", empty.String())
	}

	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	finished, err := db.StartRun(ctx, start)
	if err != nil {
		t.Fatal(err)
	}
	if err := db.FinishRun(ctx, finished, &model.RunSummary{
		StartedAt:    start,
		FinishedAt:   start.Add(1500 * time.Millisecond),
		Targets:      12,
		Stored:       10,
		Failed:       2,
		FilesWritten: 9,
	}); err != nil {
		t.Fatal(err)
	}

	canceled, err := db.StartRun(ctx, start.Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if err := db.FinishRun(ctx, canceled, &model.RunSummary{
		StartedAt:  start.Add(time.Hour),
		FinishedAt: start.Add(time.Hour + time.Second),
		Incomplete: 3,
		Canceled:   true,
	}); err != nil {
		t.Fatal(err)
	}

	if _, err := db.StartRun(ctx, start.Add(2*time.Hour)); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		limit   int
		want    []string
		notWant []string
	}{
		{
			name:  "all runs",
			limit: 0,
			want:  []string{"Run", "Status", "finished", "canceled", "unfinished", "1.5s"},
		},
		{
			name:    "newest only",
			limit:   1,
			want:    []string{"unfinished"},
			notWant: []string{"canceled", "1.5s"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			if err := printHistory(ctx, db, tt.limit, &buf); err != nil {
				t.Fatal(err)
			}
			out := buf.String()
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("output missing %q:\n%s", w, out)
				}
			}
			for _, w := range tt.notWant {
				if strings.Contains(out, w) {
					t.Errorf("output contains %q:\n%s", w, out)
				}
			}
		})
	}
}

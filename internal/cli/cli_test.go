package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"taskboard/internal/models"
	"taskboard/internal/storage/journal"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd("test")
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "taskboard.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taskboard.yaml")

	out, err := run(t, "config", "init", path)
	if err != nil {
		t.Fatalf("config init failed: %v", err)
	}
	if !strings.Contains(out, "Wrote "+path) {
		t.Errorf("Unexpected output: %q", out)
	}
	if _, err := run(t, "config", "init", path); err == nil {
		t.Error("Expected error when config exists")
	}
	if _, err := run(t, "config", "init", "--force", path); err != nil {
		t.Errorf("config init --force failed: %v", err)
	}
}

func TestConfigShowMasksToken(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "api:\n  token: hunter2\n")

	out, err := run(t, "config", "show", "--config", path)
	if err != nil {
		t.Fatalf("config show failed: %v", err)
	}
	if strings.Contains(out, "hunter2") {
		t.Error("Token leaked in config show output")
	}
	if !strings.Contains(out, "base_url:") {
		t.Errorf("Expected api section in output: %q", out)
	}
}

func TestMovesListAndPrune(t *testing.T) {
	dir := t.TempDir()
	dsn := filepath.Join(dir, "journal.db")
	path := writeConfig(t, dir, "journal:\n  driver: sqlite3\n  dsn: "+dsn+"\n")

	store, err := journal.Open(journal.DriverSQLite, dsn, nil)
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	ctx := context.Background()
	old := time.Now().Add(-48 * time.Hour)
	records := []models.MoveRecord{
		{Kind: models.KindMaintenance, TaskID: "T1", ActorID: "s1", ActorRole: models.RoleArborist,
			From: models.StatusOpen, To: models.StatusInProgress, Outcome: models.OutcomeApplied, CreatedAt: old},
		{Kind: models.KindPlant, TaskID: "P7", ActorID: "m1", ActorRole: models.RoleManager,
			From: models.StatusOpen, To: models.StatusCompleted, Outcome: models.OutcomeRejected, Error: "invalid transition"},
	}
	for _, rec := range records {
		if err := store.RecordMove(ctx, rec); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	store.Close()

	out, err := run(t, "moves", "--config", path)
	if err != nil {
		t.Fatalf("moves failed: %v", err)
	}
	if !strings.Contains(out, "T1") || !strings.Contains(out, "P7") {
		t.Errorf("Expected both tasks in output: %q", out)
	}

	out, err = run(t, "moves", "--config", path, "--task", "P7", "--json")
	if err != nil {
		t.Fatalf("moves --json failed: %v", err)
	}
	if strings.Contains(out, `"T1"`) || !strings.Contains(out, `"rejected"`) {
		t.Errorf("Unexpected filtered output: %q", out)
	}

	out, err = run(t, "moves", "prune", "--config", path, "--older-than", "24h")
	if err != nil {
		t.Fatalf("moves prune failed: %v", err)
	}
	if !strings.Contains(out, "Removed 1 entries") {
		t.Errorf("Unexpected prune output: %q", out)
	}

	if _, err := run(t, "moves", "--config", path, "--kind", "garden"); err == nil {
		t.Error("Expected error for unknown kind")
	}
}

func TestMovesJournalDisabled(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "journal:\n  driver: none\n")
	if _, err := run(t, "moves", "--config", path); err == nil {
		t.Error("Expected error with the journal disabled")
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{in: "short", n: 10, want: "short"},
		{in: "line one\nline two", n: 40, want: "line one line two"},
		{in: "abcdefghij", n: 8, want: "abcde..."},
		{in: "Bäume gießen überfällig", n: 10, want: "Bäume g..."},
	}
	for _, tt := range tests {
		got := truncate(tt.in, tt.n)
		if got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
		if !utf8.ValidString(got) {
			t.Errorf("truncate(%q, %d) produced invalid UTF-8", tt.in, tt.n)
		}
	}
}

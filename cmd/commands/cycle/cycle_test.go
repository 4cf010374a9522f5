package cycle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"nathanbeddoewebdev/snapcycle/internal/actionstore"
	"nathanbeddoewebdev/snapcycle/internal/auditlog"
	"nathanbeddoewebdev/snapcycle/internal/config"
	"nathanbeddoewebdev/snapcycle/internal/database"
	"nathanbeddoewebdev/snapcycle/internal/domain"
	"nathanbeddoewebdev/snapcycle/internal/providers"
	"nathanbeddoewebdev/snapcycle/internal/services/auth"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/cobra"
)

// --- Helpers ---

// setupTestEnv isolates config, database and environment for one test and
// returns the config file path.
func setupTestEnv(t *testing.T, env map[string]string) string {
	t.Helper()
	dir := t.TempDir()

	configPath := filepath.Join(dir, "config.json")
	config.SetPath(configPath)
	t.Cleanup(config.ResetPath)

	database.SetPath(filepath.Join(dir, "snapcycle.db"))
	t.Cleanup(database.ResetPath)

	saved := lookupEnv
	lookupEnv = func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
	t.Cleanup(func() { lookupEnv = saved })

	return configPath
}

// newMockProvider returns a provider holding droplet web-1 (ID 42) with one
// expired snapshot s1, one fresh snapshot s2, and an expired snapshot s3 of
// another droplet.
func newMockProvider() *domain.MockProvider {
	now := time.Now()
	return domain.NewMockProvider(
		[]domain.Resource{
			{ID: "42", Name: "web-1", Status: "active"},
			{ID: "7", Name: "db-1", Status: "active"},
		},
		[]domain.Snapshot{
			{ID: "s1", Name: "old", ResourceID: "42", CreatedAt: now.Add(-9 * 24 * time.Hour)},
			{ID: "s2", Name: "fresh", ResourceID: "42", CreatedAt: now.Add(-3 * 24 * time.Hour)},
			{ID: "s3", Name: "other", ResourceID: "7", CreatedAt: now.Add(-20 * 24 * time.Hour)},
		},
	)
}

// registerMockProvider resets the global registry and registers mock under
// the default provider name.
func registerMockProvider(t *testing.T, mock *domain.MockProvider) {
	t.Helper()
	providers.Reset()
	t.Cleanup(func() { providers.Reset() })
	providers.Register(providers.NameDigitalOcean, func(store auth.Store) (domain.Provider, error) {
		return mock, nil
	})
}

// execCycle builds a root command with the cycle commands, runs args and
// returns stdout, stderr and the execution error.
func execCycle(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var outBuf, errBuf bytes.Buffer

	root := &cobra.Command{Use: "snapcycle", SilenceErrors: true}
	AddGlobalFlags(root)
	root.AddCommand(RunCommand(), PruneCommand(), SnapshotsCommand(), HistoryCommand())

	root.SetOut(&outBuf)
	root.SetErr(&errBuf)
	root.SetArgs(args)
	err = root.Execute()
	return outBuf.String(), errBuf.String(), err
}

// fastRun runs the run command with a millisecond poll interval.
func fastRun(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	full := append([]string{"run"}, args...)
	full = append(full, "--wait-interval", "1ms", "--max-wait", "20ms")
	return execCycle(t, full...)
}

func lastAuditEntry(t *testing.T) auditlog.AuditEntry {
	t.Helper()
	repo, err := auditlog.Open()
	if err != nil {
		t.Fatalf("failed to open audit log: %v", err)
	}
	defer repo.Close()

	entries, err := repo.List(1)
	if err != nil {
		t.Fatalf("failed to list audit entries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(entries))
	}
	return entries[0]
}

// --- run ---

func TestRunCommand_FullCycle(t *testing.T) {
	setupTestEnv(t, nil)
	mock := newMockProvider()
	registerMockProvider(t, mock)

	_, stderr, err := fastRun(t, "web-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []domain.ActionType{
		domain.ActionShutdown, domain.ActionPowerOff, domain.ActionSnapshot, domain.ActionPowerOn,
	}
	if diff := cmp.Diff(want, mock.SubmittedTypes()); diff != "" {
		t.Errorf("submitted actions mismatch (-want +got):\n%s", diff)
	}

	today := time.Now().UTC().Format("2006-01-02")
	if got := mock.Submitted[2].Action.Payload["name"]; got != today {
		t.Errorf("snapshot name = %q, want %q", got, today)
	}

	if diff := cmp.Diff([]string{"s1"}, mock.Deleted); diff != "" {
		t.Errorf("deleted snapshots mismatch (-want +got):\n%s", diff)
	}

	for _, msg := range []string{
		"starting action shutdown",
		"action power_on finished in 0 seconds with success",
		"deleting snapshot old",
		"snapshot cycle succeeded",
	} {
		if !strings.Contains(stderr, msg) {
			t.Errorf("expected %q in log output, got:\n%s", msg, stderr)
		}
	}

	entry := lastAuditEntry(t)
	if entry.Outcome != auditlog.OutcomeSuccess {
		t.Errorf("audit outcome = %q, want success", entry.Outcome)
	}
	if entry.ResourceID != "42" || entry.ResourceName != "web-1" {
		t.Errorf("audit resource = %s (%s), want 42 (web-1)", entry.ResourceID, entry.ResourceName)
	}
	if entry.RunID == "" {
		t.Error("audit entry should carry the run ID")
	}

	repo, err := actionstore.Open()
	if err != nil {
		t.Fatalf("failed to open action store: %v", err)
	}
	defer repo.Close()
	records, err := repo.ListByRun(entry.RunID)
	if err != nil {
		t.Fatalf("ListByRun: %v", err)
	}
	if len(records) != 4 {
		t.Errorf("recorded actions = %d, want 4", len(records))
	}
}

func TestRunCommand_DropletNotFound_ReportsSuccess(t *testing.T) {
	setupTestEnv(t, nil)
	mock := newMockProvider()
	registerMockProvider(t, mock)

	_, stderr, err := fastRun(t, "missing")
	if err != nil {
		t.Fatalf("expected run to swallow the error, got %v", err)
	}

	if len(mock.Submitted) != 0 {
		t.Errorf("submitted %d actions, want 0", len(mock.Submitted))
	}
	if len(mock.Deleted) != 0 {
		t.Errorf("deleted %d snapshots, want 0", len(mock.Deleted))
	}
	if !strings.Contains(stderr, "resource not found") {
		t.Errorf("expected not-found error in log output, got:\n%s", stderr)
	}

	entry := lastAuditEntry(t)
	if entry.Outcome != auditlog.OutcomeError {
		t.Errorf("audit outcome = %q, want error", entry.Outcome)
	}
}

func TestRunCommand_FailOnError(t *testing.T) {
	setupTestEnv(t, nil)
	registerMockProvider(t, newMockProvider())

	_, _, err := fastRun(t, "missing", "--fail-on-error")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestRunCommand_FailOnErrorFromConfigFile(t *testing.T) {
	path := setupTestEnv(t, nil)
	registerMockProvider(t, newMockProvider())

	failOnError := true
	cfg := &config.Config{FailOnError: &failOnError}
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("failed to save config: %v", err)
	}

	if _, _, err := fastRun(t, "missing"); err == nil {
		t.Fatal("expected error with fail-on-error set in config")
	}
}

func TestRunCommand_DropletNameFromEnv(t *testing.T) {
	setupTestEnv(t, map[string]string{"DROPLET_NAME": "web-1"})
	mock := newMockProvider()
	registerMockProvider(t, mock)

	if _, _, err := fastRun(t); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mock.Submitted) != 4 {
		t.Errorf("submitted %d actions, want 4", len(mock.Submitted))
	}
	if mock.Submitted[0].ResourceID != "42" {
		t.Errorf("resource = %q, want 42", mock.Submitted[0].ResourceID)
	}
}

func TestRunCommand_MissingDropletName(t *testing.T) {
	setupTestEnv(t, nil)
	mock := newMockProvider()
	registerMockProvider(t, mock)

	_, stderr, err := fastRun(t)
	if err != nil {
		t.Fatalf("expected run to swallow the error, got %v", err)
	}
	if !strings.Contains(stderr, "droplet-name is required") {
		t.Errorf("expected validation error in log output, got:\n%s", stderr)
	}
	if len(mock.Submitted) != 0 {
		t.Error("no action should be submitted")
	}
}

func TestRunCommand_StrictPolicy(t *testing.T) {
	setupTestEnv(t, nil)
	mock := newMockProvider()
	mock.Statuses = map[domain.ActionType][]domain.OperationStatus{
		domain.ActionPowerOff: {domain.OperationErrored},
	}
	registerMockProvider(t, mock)

	_, _, err := fastRun(t, "web-1", "--step-policy", "strict", "--fail-on-error")
	if !errors.Is(err, domain.ErrStepFailed) {
		t.Fatalf("error = %v, want ErrStepFailed", err)
	}

	want := []domain.ActionType{domain.ActionShutdown, domain.ActionPowerOff, domain.ActionPowerOn}
	if diff := cmp.Diff(want, mock.SubmittedTypes()); diff != "" {
		t.Errorf("submitted actions mismatch (-want +got):\n%s", diff)
	}
}

func TestRunCommand_UnknownProvider(t *testing.T) {
	setupTestEnv(t, nil)
	providers.Reset()
	t.Cleanup(func() { providers.Reset() })

	_, stderr, err := fastRun(t, "web-1", "--fail-on-error")
	if err == nil {
		t.Fatal("expected error for unregistered provider")
	}
	if !strings.Contains(stderr, "unknown provider") {
		t.Errorf("expected 'unknown provider' in log output, got:\n%s", stderr)
	}
}

// --- prune ---

func TestPruneCommand_DryRun(t *testing.T) {
	setupTestEnv(t, nil)
	mock := newMockProvider()
	registerMockProvider(t, mock)

	stdout, _, err := execCycle(t, "prune", "web-1", "--dry-run")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mock.Deleted) != 0 {
		t.Errorf("dry run deleted %v", mock.Deleted)
	}
	if !strings.Contains(stdout, "s1") || !strings.Contains(stdout, "would delete") {
		t.Errorf("expected s1 marked 'would delete', got:\n%s", stdout)
	}
	if strings.Contains(stdout, "s2") || strings.Contains(stdout, "s3") {
		t.Errorf("only expired snapshots of web-1 should be listed, got:\n%s", stdout)
	}
}

func TestPruneCommand_Deletes(t *testing.T) {
	setupTestEnv(t, nil)
	mock := newMockProvider()
	registerMockProvider(t, mock)

	stdout, _, err := execCycle(t, "prune", "web-1", "-o", "json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]string{"s1"}, mock.Deleted); diff != "" {
		t.Errorf("deleted mismatch (-want +got):\n%s", diff)
	}

	var plan struct {
		Deleted []domain.Snapshot `json:"deleted"`
	}
	if err := json.Unmarshal([]byte(stdout), &plan); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, stdout)
	}
	if len(plan.Deleted) != 1 || plan.Deleted[0].ID != "s1" {
		t.Errorf("plan.Deleted = %+v, want [s1]", plan.Deleted)
	}
}

func TestPruneCommand_NotFound(t *testing.T) {
	setupTestEnv(t, nil)
	registerMockProvider(t, newMockProvider())

	_, _, err := execCycle(t, "prune", "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

// --- snapshots ---

func TestSnapshotsCommand_Table(t *testing.T) {
	setupTestEnv(t, nil)
	registerMockProvider(t, newMockProvider())

	stdout, _, err := execCycle(t, "snapshots", "web-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header, separator and 2 rows, got:\n%s", stdout)
	}
	if !strings.HasPrefix(lines[2], "s1") || !strings.HasSuffix(strings.TrimSpace(lines[2]), "yes") {
		t.Errorf("expected s1 first and expired, got %q", lines[2])
	}
	if !strings.HasPrefix(lines[3], "s2") || !strings.HasSuffix(strings.TrimSpace(lines[3]), "no") {
		t.Errorf("expected s2 second and not expired, got %q", lines[3])
	}
}

func TestSnapshotsCommand_JSON(t *testing.T) {
	setupTestEnv(t, nil)
	registerMockProvider(t, newMockProvider())

	stdout, _, err := execCycle(t, "snapshots", "web-1", "-o", "json", "--retention", "30d")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var views []struct {
		ID      string `json:"id"`
		Expired bool   `json:"expired"`
	}
	if err := json.Unmarshal([]byte(stdout), &views); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, stdout)
	}
	for _, v := range views {
		if v.Expired {
			t.Errorf("snapshot %s should not be expired with 30d retention", v.ID)
		}
	}
}

func TestSnapshotsCommand_InvalidOutput(t *testing.T) {
	setupTestEnv(t, nil)
	registerMockProvider(t, newMockProvider())

	_, _, err := execCycle(t, "snapshots", "web-1", "-o", "yaml")
	if err == nil || !strings.Contains(err.Error(), "unsupported output format") {
		t.Errorf("error = %v, want unsupported output format", err)
	}
}

// --- history ---

func TestHistoryCommand_Empty(t *testing.T) {
	setupTestEnv(t, nil)

	stdout, _, err := execCycle(t, "history")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(stdout, "No actions recorded.") {
		t.Errorf("expected empty message, got:\n%s", stdout)
	}
}

func TestHistoryCommand_AfterRun(t *testing.T) {
	setupTestEnv(t, nil)
	registerMockProvider(t, newMockProvider())

	if _, _, err := fastRun(t, "web-1"); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	stdout, _, err := execCycle(t, "history", "-o", "json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var records []actionstore.ActionRecord
	if err := json.Unmarshal([]byte(stdout), &records); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, stdout)
	}
	if len(records) != 4 {
		t.Fatalf("records = %d, want 4", len(records))
	}
	for _, r := range records {
		if r.Status != actionstore.StatusSuccess {
			t.Errorf("%s status = %q, want success", r.ActionType, r.Status)
		}
	}
}

func TestHistoryCommand_InvalidLimit(t *testing.T) {
	setupTestEnv(t, nil)

	_, _, err := execCycle(t, "history", "--limit", "0")
	if err == nil {
		t.Fatal("expected error for zero limit")
	}
}

func TestSignalContext_CanceledBySIGTERM(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())

	ctx, cancel := signalContext(cmd)
	defer cancel()

	self, err := os.FindProcess(os.Getpid())
	if err != nil {
		t.Fatalf("FindProcess: %v", err)
	}
	if err := self.Signal(syscall.SIGTERM); err != nil {
		t.Fatalf("Signal: %v", err)
	}

	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("context not canceled after SIGTERM")
	}
}

func TestSignalContext_NilCommandContext(t *testing.T) {
	ctx, cancel := signalContext(&cobra.Command{})
	defer cancel()

	if ctx.Err() != nil {
		t.Fatalf("context already done: %v", ctx.Err())
	}
}

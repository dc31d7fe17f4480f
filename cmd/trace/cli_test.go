package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/tracehq/trace/internal/types"
)

var inProcessMutex sync.Mutex // rootCmd, its flags and viper are process-global

// setupCLITestDB creates a fresh initialized project for CLI tests.
func setupCLITestDB(t *testing.T) string {
	t.Helper()
	t.Setenv("TRACE_DIR", "")
	t.Setenv("TRACE_DB", "")
	t.Setenv("TRACE_JSONL", "")
	t.Setenv("TRACE_ACTOR", "")
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("USER", "tester")

	dir := t.TempDir()
	runInProcess(t, dir, "init", "--prefix", "test", "--quiet")
	return dir
}

// resetFlags restores every flag in the tree to its default so state
// does not leak from one Execute into the next.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// execInProcess runs trace in dir and returns stdout, stderr and the
// command error.
func execInProcess(t *testing.T, dir string, args ...string) (string, string, error) {
	t.Helper()
	inProcessMutex.Lock()
	defer inProcessMutex.Unlock()

	oldDir, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to chdir to %s: %v", dir, err)
	}
	defer func() { _ = os.Chdir(oldDir) }()

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()
	finish()

	resetFlags(rootCmd)
	dbPath, actor, snapshotPath = "", "", ""
	jsonOutput, verbose, quiet = false, false, false
	noAutoFlush, noAutoImport = false, false
	rootCmd.SetArgs(nil)
	rootCmd.SetOut(nil)
	rootCmd.SetErr(nil)

	return stdout.String(), stderr.String(), err
}

func runInProcess(t *testing.T, dir string, args ...string) string {
	t.Helper()
	stdout, stderr, err := execInProcess(t, dir, args...)
	if err != nil {
		t.Fatalf("trace %v failed: %v\nStdout: %s\nStderr: %s", args, err, stdout, stderr)
	}
	return stdout
}

func runJSON(t *testing.T, dir string, v interface{}, args ...string) {
	t.Helper()
	out := runInProcess(t, dir, append(args, "--json")...)
	if err := json.Unmarshal([]byte(out), v); err != nil {
		t.Fatalf("Failed to parse JSON from trace %v: %v\nOutput: %s", args, err, out)
	}
}

func TestCLI_InitCreatesProject(t *testing.T) {
	dir := setupCLITestDB(t)
	for _, name := range []string{"trace.db", "metadata.json", "config.yaml", ".gitignore"} {
		if _, err := os.Stat(filepath.Join(dir, ".trace", name)); err != nil {
			t.Errorf("expected .trace/%s: %v", name, err)
		}
	}
	out := runInProcess(t, dir, "config", "get", "issue_prefix")
	if strings.TrimSpace(out) != "test" {
		t.Errorf("issue_prefix = %q, want test", out)
	}
}

func TestCLI_InitInsideTraceDirFails(t *testing.T) {
	dir := setupCLITestDB(t)
	if _, _, err := execInProcess(t, filepath.Join(dir, ".trace"), "init"); err == nil {
		t.Fatal("expected init inside .trace to fail")
	}
}

func TestCLI_NoDatabase(t *testing.T) {
	t.Setenv("TRACE_DIR", "")
	t.Setenv("TRACE_DB", "")
	_, _, err := execInProcess(t, t.TempDir(), "list")
	if err == nil || !strings.Contains(err.Error(), "no trace database found") {
		t.Fatalf("expected missing database error, got %v", err)
	}
}

func TestCLI_CreateAndShow(t *testing.T) {
	dir := setupCLITestDB(t)

	var created types.Issue
	runJSON(t, dir, &created, "create", "First issue", "-p", "P1", "-t", "bug", "-l", "backend,urgent", "--estimate", "30")
	if created.ID != "test-1" {
		t.Fatalf("ID = %q, want test-1", created.ID)
	}
	if created.Priority != 1 || created.IssueType != types.TypeBug {
		t.Errorf("unexpected issue: %+v", created)
	}

	var second types.Issue
	runJSON(t, dir, &second, "create", "--title", "Second", "--deps", "discovered-from:1")

	var details []struct {
		ID           string        `json:"id"`
		Labels       []string      `json:"labels"`
		Dependencies []types.Issue `json:"dependencies"`
		Dependents   []types.Issue `json:"dependents"`
	}
	runJSON(t, dir, &details, "show", "1", "test-2")
	if len(details) != 2 {
		t.Fatalf("expected 2 issues, got %d", len(details))
	}
	if got := strings.Join(details[0].Labels, ","); got != "backend,urgent" {
		t.Errorf("labels = %q", got)
	}
	if len(details[0].Dependents) != 1 || details[0].Dependents[0].ID != "test-2" {
		t.Errorf("dependents of test-1 = %+v", details[0].Dependents)
	}
	if len(details[1].Dependencies) != 1 || details[1].Dependencies[0].ID != "test-1" {
		t.Errorf("dependencies of test-2 = %+v", details[1].Dependencies)
	}
}

func TestCLI_CreateRejectsBadInput(t *testing.T) {
	dir := setupCLITestDB(t)
	for _, args := range [][]string{
		{"create"},
		{"create", "x", "-p", "7"},
		{"create", "x", "-t", "story"},
		{"create", "x", "--deps", "test-99"},
	} {
		if _, _, err := execInProcess(t, dir, args...); err == nil {
			t.Errorf("trace %v: expected error", args)
		}
	}
	var issues []types.Issue
	runJSON(t, dir, &issues, "list")
	if len(issues) != 0 {
		t.Errorf("rejected creates left %d issues behind", len(issues))
	}
}

func TestCLI_ReadyAndBlocked(t *testing.T) {
	dir := setupCLITestDB(t)
	runInProcess(t, dir, "create", "Blocker", "-p", "1")
	runInProcess(t, dir, "create", "Waiting", "-p", "0")
	runInProcess(t, dir, "dep", "add", "test-2", "test-1")

	var ready []types.Issue
	runJSON(t, dir, &ready, "ready")
	if len(ready) != 1 || ready[0].ID != "test-1" {
		t.Fatalf("ready = %+v, want only test-1", ready)
	}

	var blocked []types.BlockedIssue
	runJSON(t, dir, &blocked, "blocked")
	if len(blocked) != 1 || blocked[0].ID != "test-2" || strings.Join(blocked[0].BlockedBy, ",") != "test-1" {
		t.Fatalf("blocked = %+v", blocked)
	}

	runInProcess(t, dir, "close", "test-1", "--reason", "done")
	ready = nil
	runJSON(t, dir, &ready, "ready")
	if len(ready) != 1 || ready[0].ID != "test-2" {
		t.Fatalf("after close, ready = %+v, want only test-2", ready)
	}

	out := runInProcess(t, dir, "ready")
	if !strings.Contains(out, "Waiting") {
		t.Errorf("expected table output to mention Waiting, got: %s", out)
	}
}

func TestCLI_UpdateCloseReopen(t *testing.T) {
	dir := setupCLITestDB(t)
	runInProcess(t, dir, "create", "Task", "-a", "alice", "--external-ref", "gh-1")

	var updated []types.Issue
	runJSON(t, dir, &updated, "update", "test-1", "--assignee", "", "--status", "in_progress", "--external-ref", "")
	if len(updated) != 1 {
		t.Fatalf("expected one updated issue, got %d", len(updated))
	}
	if updated[0].Assignee != "" || updated[0].ExternalRef != nil || updated[0].Status != types.StatusInProgress {
		t.Errorf("unexpected update result: %+v", updated[0])
	}

	if _, _, err := execInProcess(t, dir, "update", "test-1"); err == nil {
		t.Error("expected an update without flags to fail")
	}

	var closed []types.Issue
	runJSON(t, dir, &closed, "close", "test-1")
	if closed[0].ClosedAt == nil {
		t.Fatal("closed issue has no closed_at")
	}

	var reopened []types.Issue
	runJSON(t, dir, &reopened, "reopen", "test-1", "--reason", "not fixed")
	if reopened[0].Status != types.StatusOpen || reopened[0].ClosedAt != nil {
		t.Errorf("reopened issue = %+v", reopened[0])
	}

	var events []types.Event
	runJSON(t, dir, &events, "events", "test-1")
	kinds := make(map[types.EventType]bool)
	for _, e := range events {
		kinds[e.EventType] = true
		if e.Actor != "tester" {
			t.Errorf("event %s actor = %q, want tester", e.EventType, e.Actor)
		}
	}
	for _, want := range []types.EventType{types.EventCreated, types.EventUpdated, types.EventClosed, types.EventReopened, types.EventCommented} {
		if !kinds[want] {
			t.Errorf("missing %s event in %+v", want, events)
		}
	}
}

func TestCLI_DeleteNeedsForce(t *testing.T) {
	dir := setupCLITestDB(t)
	runInProcess(t, dir, "create", "Doomed")
	runInProcess(t, dir, "create", "Dependent")
	runInProcess(t, dir, "dep", "add", "test-2", "test-1")

	out := runInProcess(t, dir, "delete", "test-1")
	if !strings.Contains(out, "would delete") || !strings.Contains(out, "test-2") {
		t.Errorf("expected preview mentioning test-2, got: %s", out)
	}
	var issues []types.Issue
	runJSON(t, dir, &issues, "list")
	if len(issues) != 2 {
		t.Fatalf("preview deleted something: %d issues left", len(issues))
	}

	runInProcess(t, dir, "delete", "test-1", "--force")
	issues = nil
	runJSON(t, dir, &issues, "list")
	if len(issues) != 1 || issues[0].ID != "test-2" {
		t.Fatalf("after delete, list = %+v", issues)
	}

	data, err := os.ReadFile(filepath.Join(dir, ".trace", "issues.jsonl"))
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if strings.Contains(string(data), `"id":"test-1"`) {
		t.Errorf("deleted issue still in snapshot:\n%s", data)
	}
}

func TestCLI_LabelsAndComments(t *testing.T) {
	dir := setupCLITestDB(t)
	runInProcess(t, dir, "create", "One")
	runInProcess(t, dir, "create", "Two")
	runInProcess(t, dir, "label", "add", "test-1", "test-2", "frontend")
	runInProcess(t, dir, "label", "remove", "test-2", "frontend")

	var labels []string
	runJSON(t, dir, &labels, "label", "list", "test-1")
	if len(labels) != 1 || labels[0] != "frontend" {
		t.Errorf("labels = %v", labels)
	}
	var tagged []types.Issue
	runJSON(t, dir, &tagged, "label", "list", "--label", "frontend")
	if len(tagged) != 1 || tagged[0].ID != "test-1" {
		t.Errorf("issues labeled frontend = %+v", tagged)
	}

	runInProcess(t, dir, "comment", "test-2", "looks", "good")
	var events []types.Event
	runJSON(t, dir, &events, "events", "test-2", "-n", "1")
	if len(events) != 1 || events[0].Comment == nil || *events[0].Comment != "looks good" {
		t.Errorf("latest event = %+v", events)
	}
}

func TestCLI_DepTreeAndCycles(t *testing.T) {
	dir := setupCLITestDB(t)
	for _, title := range []string{"Root", "Mid", "Leaf"} {
		runInProcess(t, dir, "create", title)
	}
	runInProcess(t, dir, "dep", "add", "test-1", "test-2")
	runInProcess(t, dir, "dep", "add", "test-2", "test-3")

	var tree []types.TreeNode
	runJSON(t, dir, &tree, "dep", "tree", "test-1")
	if len(tree) != 3 || tree[2].ID != "test-3" || tree[2].Depth != 2 {
		t.Fatalf("tree = %+v", tree)
	}

	var cycles [][]types.Issue
	runJSON(t, dir, &cycles, "dep", "cycles")
	if len(cycles) != 0 {
		t.Fatalf("unexpected cycles: %+v", cycles)
	}

	runInProcess(t, dir, "dep", "add", "test-3", "test-1", "-t", "related")
	runJSON(t, dir, &cycles, "dep", "cycles")
	if len(cycles) == 0 {
		t.Fatal("expected a cycle after closing the loop")
	}

	runInProcess(t, dir, "dep", "remove", "test-3", "test-1")
	cycles = nil
	runJSON(t, dir, &cycles, "dep", "cycles")
	if len(cycles) != 0 {
		t.Fatalf("cycle survived removal: %+v", cycles)
	}
}

func TestCLI_AutoFlushWritesSnapshot(t *testing.T) {
	dir := setupCLITestDB(t)
	snapshot := filepath.Join(dir, ".trace", "issues.jsonl")

	runInProcess(t, dir, "create", "Flushed")
	data, err := os.ReadFile(snapshot)
	if err != nil {
		t.Fatalf("snapshot not written: %v", err)
	}
	if !strings.Contains(string(data), `"title":"Flushed"`) {
		t.Errorf("snapshot missing new issue:\n%s", data)
	}

	runInProcess(t, dir, "create", "Held back", "--no-auto-flush")
	data, _ = os.ReadFile(snapshot)
	if strings.Contains(string(data), "Held back") {
		t.Error("--no-auto-flush still wrote the snapshot")
	}

	// the dirty issue goes out with the next flushing command
	runInProcess(t, dir, "stats")
	data, _ = os.ReadFile(snapshot)
	if !strings.Contains(string(data), "Held back") {
		t.Error("dirty issue was never flushed")
	}
}

func TestCLI_AutoImportPicksUpExternalEdits(t *testing.T) {
	dir := setupCLITestDB(t)
	runInProcess(t, dir, "create", "Local")

	snapshot := filepath.Join(dir, ".trace", "issues.jsonl")
	now := time.Now().UTC().Format(time.RFC3339Nano)
	line := `{"id":"test-7","title":"From a teammate","status":"open","priority":1,"issue_type":"feature","created_at":"` +
		now + `","updated_at":"` + now + `","dependencies":[{"issue_id":"test-7","depends_on_id":"test-1","type":"blocks","created_at":"` +
		now + `","created_by":"teammate"}]}` + "\n"
	f, err := os.OpenFile(snapshot, os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		t.Fatalf("open snapshot: %v", err)
	}
	if _, err := f.WriteString(line); err != nil {
		t.Fatalf("append: %v", err)
	}
	_ = f.Close()

	var issues []types.Issue
	runJSON(t, dir, &issues, "list", "--no-auto-import")
	if len(issues) != 1 {
		t.Fatalf("--no-auto-import still imported: %+v", issues)
	}

	issues = nil
	runJSON(t, dir, &issues, "list")
	if len(issues) != 2 {
		t.Fatalf("expected auto-import to add test-7, got %+v", issues)
	}

	// the counter moved past the imported ID
	var created types.Issue
	runJSON(t, dir, &created, "create", "Next")
	if created.ID != "test-8" {
		t.Errorf("next ID = %q, want test-8", created.ID)
	}
}

func TestCLI_AutoImportRejectsConflictMarkers(t *testing.T) {
	dir := setupCLITestDB(t)
	runInProcess(t, dir, "create", "Local")
	snapshot := filepath.Join(dir, ".trace", "issues.jsonl")
	if err := os.WriteFile(snapshot, []byte("<<<<<<< HEAD\n>>>>>>> theirs\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	_, _, err := execInProcess(t, dir, "list")
	if err == nil || !strings.Contains(err.Error(), "auto-import failed") {
		t.Fatalf("expected auto-import failure, got %v", err)
	}
}

func TestCLI_ExportAndImport(t *testing.T) {
	src := setupCLITestDB(t)
	runInProcess(t, src, "create", "Alpha", "-p", "0")
	runInProcess(t, src, "create", "Beta")
	runInProcess(t, src, "dep", "add", "test-2", "test-1")
	runInProcess(t, src, "close", "test-2")

	exported := filepath.Join(t.TempDir(), "out.jsonl")
	runInProcess(t, src, "export", "-o", exported)

	openOnly := runInProcess(t, src, "export", "--status", "open")
	if strings.Count(openOnly, "\n") != 1 || !strings.Contains(openOnly, "Alpha") {
		t.Errorf("filtered export = %q", openOnly)
	}

	dst := setupCLITestDB(t)
	var dry struct {
		Created int `json:"created"`
	}
	runJSON(t, dst, &dry, "import", "-i", exported, "--dry-run")
	if dry.Created != 2 {
		t.Errorf("dry run created = %d, want 2", dry.Created)
	}
	var issues []types.Issue
	runJSON(t, dst, &issues, "list")
	if len(issues) != 0 {
		t.Fatalf("dry run wrote %d issues", len(issues))
	}

	runInProcess(t, dst, "import", "-i", exported)
	issues = nil
	runJSON(t, dst, &issues, "list", "--status", "closed")
	if len(issues) != 1 || issues[0].ID != "test-2" || issues[0].ClosedAt == nil {
		t.Fatalf("closed issues after import = %+v", issues)
	}
	var deps []types.Issue
	var details []struct {
		Dependencies []types.Issue `json:"dependencies"`
	}
	runJSON(t, dst, &details, "show", "test-2")
	deps = details[0].Dependencies
	if len(deps) != 1 || deps[0].ID != "test-1" {
		t.Errorf("imported dependencies = %+v", deps)
	}
}

func TestCLI_ConfigStartupAndStoreKeys(t *testing.T) {
	dir := setupCLITestDB(t)

	runInProcess(t, dir, "config", "set", "actor", "robot")
	data, err := os.ReadFile(filepath.Join(dir, ".trace", "config.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "actor: robot") {
		t.Errorf("config.yaml not updated:\n%s", data)
	}
	if out := runInProcess(t, dir, "config", "get", "actor"); strings.TrimSpace(out) != "robot" {
		t.Errorf("config get actor = %q", out)
	}

	var created types.Issue
	runJSON(t, dir, &created, "create", "By robot")
	var events []types.Event
	runJSON(t, dir, &events, "events", created.ID)
	if len(events) == 0 || events[0].Actor != "robot" {
		t.Errorf("expected actor from config.yaml, got %+v", events)
	}

	// --actor beats config.yaml
	runInProcess(t, dir, "comment", created.ID, "hi", "--actor", "human")
	events = nil
	runJSON(t, dir, &events, "events", created.ID, "-n", "1")
	if events[0].Actor != "human" {
		t.Errorf("actor = %q, want human", events[0].Actor)
	}

	runInProcess(t, dir, "config", "set", "jira.url", "https://example.invalid")
	var all map[string]string
	runJSON(t, dir, &all, "config", "list")
	if all["jira.url"] != "https://example.invalid" || all["issue_prefix"] != "test" {
		t.Errorf("config list = %v", all)
	}
	runInProcess(t, dir, "config", "unset", "jira.url")
	if out := runInProcess(t, dir, "config", "get", "jira.url"); !strings.Contains(out, "not set") {
		t.Errorf("jira.url still set: %q", out)
	}
}

func TestCLI_StatsAndVersion(t *testing.T) {
	dir := setupCLITestDB(t)
	runInProcess(t, dir, "create", "Open one")
	runInProcess(t, dir, "create", "Closed one")
	runInProcess(t, dir, "close", "test-2")

	var stats types.Statistics
	runJSON(t, dir, &stats, "stats")
	if stats.TotalIssues != 2 || stats.OpenIssues != 1 || stats.ClosedIssues != 1 || stats.ReadyIssues != 1 {
		t.Errorf("stats = %+v", stats)
	}

	var version map[string]string
	runJSON(t, t.TempDir(), &version, "version")
	if version["version"] != Version {
		t.Errorf("version = %v", version)
	}

	out := runInProcess(t, t.TempDir(), "version", "--verbose")
	if !strings.Contains(out, "001 dirty_issues_table") || !strings.Contains(out, "004 metadata_table") {
		t.Errorf("verbose version missing migrations:\n%s", out)
	}
	var detailed struct {
		Migrations []string `json:"migrations"`
	}
	runJSON(t, t.TempDir(), &detailed, "version", "--verbose")
	if len(detailed.Migrations) != 4 {
		t.Errorf("migrations = %v", detailed.Migrations)
	}
}

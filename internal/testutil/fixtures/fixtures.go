// Package fixtures generates realistic issue graphs for tests and benchmarks.
package fixtures

import (
	"context"
	"fmt"
	"math/rand"
	"path/filepath"
	"time"

	"github.com/tracehq/trace/internal/debug"
	"github.com/tracehq/trace/internal/reconcile"
	"github.com/tracehq/trace/internal/storage"
	"github.com/tracehq/trace/internal/storage/memory"
	"github.com/tracehq/trace/internal/types"
)

const actor = "fixture"

var commonLabels = []string{
	"backend", "frontend", "urgent", "tech-debt", "documentation",
	"performance", "security", "ux", "api", "database",
}

var commonAssignees = []string{"alice", "bob", "charlie", "diana", "eve", "frank"}

var epicTitles = []string{
	"User Authentication System",
	"Payment Processing Integration",
	"Mobile App Redesign",
	"Performance Optimization",
	"API v2 Migration",
	"Search Functionality Enhancement",
	"Analytics Dashboard",
	"Multi-tenant Support",
	"Notification System",
	"Data Export Feature",
}

var featureTitles = []string{
	"OAuth2 Integration",
	"Password Reset Flow",
	"Two-Factor Authentication",
	"Session Management",
	"API Endpoints",
	"Database Schema",
	"UI Components",
	"Background Jobs",
	"Error Handling",
	"Testing Infrastructure",
}

var taskTitles = []string{
	"Implement login endpoint",
	"Add validation logic",
	"Write unit tests",
	"Update documentation",
	"Fix memory leak",
	"Optimize query performance",
	"Add error logging",
	"Refactor helper functions",
	"Update database migrations",
	"Configure deployment",
}

// DataConfig controls the shape of a generated issue graph.
type DataConfig struct {
	TotalIssues       int     // total number of issues to generate
	EpicRatio         float64 // share of issues that are epics
	FeatureRatio      float64 // share of issues that are features
	OpenRatio         float64 // share of issues that are not closed
	CrossLinkRatio    float64 // share of tasks given a blocks edge to another task
	MaxEpicAgeDays    int
	MaxFeatureAgeDays int
	MaxTaskAgeDays    int
	MaxClosedAgeDays  int
	RandSeed          int64 // same seed, same graph
}

// DefaultSmallConfig is sized for unit tests.
func DefaultSmallConfig() DataConfig {
	return DataConfig{
		TotalIssues:       100,
		EpicRatio:         0.1,
		FeatureRatio:      0.3,
		OpenRatio:         0.5,
		CrossLinkRatio:    0.2,
		MaxEpicAgeDays:    180,
		MaxFeatureAgeDays: 150,
		MaxTaskAgeDays:    120,
		MaxClosedAgeDays:  30,
		RandSeed:          41,
	}
}

// DefaultLargeConfig returns configuration for a 10K issue dataset.
func DefaultLargeConfig() DataConfig {
	cfg := DefaultSmallConfig()
	cfg.TotalIssues = 10000
	cfg.RandSeed = 42
	return cfg
}

// DefaultXLargeConfig returns configuration for a 20K issue dataset.
func DefaultXLargeConfig() DataConfig {
	cfg := DefaultSmallConfig()
	cfg.TotalIssues = 20000
	cfg.RandSeed = 43
	return cfg
}

// Small fills store with a 100 issue graph.
func Small(ctx context.Context, store storage.Storage) error {
	return Generate(ctx, store, DefaultSmallConfig())
}

// Large fills store with a 10K issue graph.
func Large(ctx context.Context, store storage.Storage) error {
	return Generate(ctx, store, DefaultLargeConfig())
}

// XLarge fills store with a 20K issue graph.
func XLarge(ctx context.Context, store storage.Storage) error {
	return Generate(ctx, store, DefaultXLargeConfig())
}

// LargeFromSnapshot loads a 10K issue graph into store through a snapshot
// file written under tempDir.
func LargeFromSnapshot(ctx context.Context, store storage.Storage, tempDir string) error {
	cfg := DefaultLargeConfig()
	cfg.RandSeed = 44
	return FromSnapshot(ctx, store, tempDir, cfg)
}

// FromSnapshot generates a graph in a scratch in-memory store, exports it
// to tempDir and imports the file into store, the way a fresh clone is
// populated.
func FromSnapshot(ctx context.Context, store storage.Storage, tempDir string, cfg DataConfig) error {
	scratch := memory.New("")
	defer func() { _ = scratch.Close() }()

	if err := Generate(ctx, scratch, cfg); err != nil {
		return fmt.Errorf("failed to generate issues: %w", err)
	}
	path := filepath.Join(tempDir, "issues.jsonl")
	if _, err := reconcile.ExportToFile(ctx, scratch, path); err != nil {
		return fmt.Errorf("failed to export snapshot: %w", err)
	}
	if _, err := reconcile.ImportIfNewer(ctx, store, path, actor); err != nil {
		return fmt.Errorf("failed to import snapshot: %w", err)
	}
	return nil
}

// Generate creates epics, features under epics, tasks under features and
// random blocks edges between tasks.
func Generate(ctx context.Context, store storage.Storage, cfg DataConfig) error {
	rng := rand.New(rand.NewSource(cfg.RandSeed)) // #nosec G404 - deterministic test data

	numEpics := max(1, int(float64(cfg.TotalIssues)*cfg.EpicRatio))
	numFeatures := max(1, int(float64(cfg.TotalIssues)*cfg.FeatureRatio))
	numTasks := cfg.TotalIssues - numEpics - numFeatures
	if numTasks < 1 {
		return fmt.Errorf("config yields no tasks for %d issues", cfg.TotalIssues)
	}

	created := 0
	lastPct := -1
	progress := func() {
		created++
		if pct := created * 100 / cfg.TotalIssues; pct >= lastPct+10 {
			debug.Logf("fixtures: %d%% (%d/%d issues)\n", pct, created, cfg.TotalIssues)
			lastPct = pct
		}
	}

	g := &generator{ctx: ctx, store: store, rng: rng, cfg: cfg}

	epics := make([]*types.Issue, 0, numEpics)
	for i := 0; i < numEpics; i++ {
		title := epicTitles[i%len(epicTitles)]
		issue, err := g.create(fmt.Sprintf("%s (Epic %d)", title, i), "Epic for "+title, types.TypeEpic, cfg.MaxEpicAgeDays, 3)
		if err != nil {
			return fmt.Errorf("failed to create epic: %w", err)
		}
		epics = append(epics, issue)
		progress()
	}

	features := make([]*types.Issue, 0, numFeatures)
	for i := 0; i < numFeatures; i++ {
		parent := epics[i%len(epics)]
		issue, err := g.create(fmt.Sprintf("%s (Feature %d)", featureTitles[i%len(featureTitles)], i),
			"Feature under "+parent.Title, types.TypeFeature, cfg.MaxFeatureAgeDays, 3)
		if err != nil {
			return fmt.Errorf("failed to create feature: %w", err)
		}
		if err := g.link(issue.ID, parent.ID, types.DepParentChild); err != nil {
			return fmt.Errorf("failed to add feature-epic dependency: %w", err)
		}
		features = append(features, issue)
		progress()
	}

	tasks := make([]*types.Issue, 0, numTasks)
	for i := 0; i < numTasks; i++ {
		parent := features[i%len(features)]
		issue, err := g.create(fmt.Sprintf("%s (Task %d)", taskTitles[i%len(taskTitles)], i),
			"Task under "+parent.Title, types.TypeTask, cfg.MaxTaskAgeDays, 2)
		if err != nil {
			return fmt.Errorf("failed to create task: %w", err)
		}
		if err := g.link(issue.ID, parent.ID, types.DepParentChild); err != nil {
			return fmt.Errorf("failed to add task-feature dependency: %w", err)
		}
		tasks = append(tasks, issue)
		progress()
	}

	// Cross links may close cycles; the graph engine reports those.
	numCrossLinks := int(float64(numTasks) * cfg.CrossLinkRatio)
	for i := 0; i < numCrossLinks; i++ {
		from := tasks[rng.Intn(len(tasks))]
		to := tasks[rng.Intn(len(tasks))]
		if from.ID == to.ID {
			continue
		}
		if err := g.link(from.ID, to.ID, types.DepBlocks); err != nil {
			return fmt.Errorf("failed to add cross link: %w", err)
		}
	}
	return nil
}

type generator struct {
	ctx   context.Context
	store storage.Storage
	rng   *rand.Rand
	cfg   DataConfig
}

func (g *generator) create(title, description string, issueType types.IssueType, maxAgeDays, maxLabels int) (*types.Issue, error) {
	issue := &types.Issue{
		Title:       title,
		Description: description,
		Status:      randomStatus(g.rng, g.cfg.OpenRatio),
		Priority:    randomPriority(g.rng),
		IssueType:   issueType,
		Assignee:    commonAssignees[g.rng.Intn(len(commonAssignees))],
		CreatedAt:   randomTime(g.rng, maxAgeDays),
		UpdatedAt:   time.Now(),
	}
	if issue.Status == types.StatusClosed {
		closedAt := randomTime(g.rng, g.cfg.MaxClosedAgeDays)
		issue.ClosedAt = &closedAt
	}
	if err := g.store.CreateIssue(g.ctx, issue, actor); err != nil {
		return nil, err
	}
	for j := 0; j < g.rng.Intn(maxLabels)+1; j++ {
		label := commonLabels[g.rng.Intn(len(commonLabels))]
		if err := g.store.AddLabel(g.ctx, issue.ID, label, actor); err != nil {
			return nil, err
		}
	}
	return issue, nil
}

func (g *generator) link(from, to string, depType types.DependencyType) error {
	return g.store.AddDependency(g.ctx, &types.Dependency{
		IssueID:     from,
		DependsOnID: to,
		Type:        depType,
		CreatedAt:   time.Now(),
		CreatedBy:   actor,
	}, actor)
}

// randomStatus returns a random status with given open ratio
func randomStatus(rng *rand.Rand, openRatio float64) types.Status {
	if rng.Float64() < openRatio {
		statuses := []types.Status{types.StatusOpen, types.StatusInProgress, types.StatusBlocked}
		return statuses[rng.Intn(len(statuses))]
	}
	return types.StatusClosed
}

// randomPriority returns a random priority with realistic distribution
// P0: 5%, P1: 15%, P2: 50%, P3: 25%, P4: 5%
func randomPriority(rng *rand.Rand) int {
	r := rng.Intn(100)
	switch {
	case r < 5:
		return 0
	case r < 20:
		return 1
	case r < 70:
		return 2
	case r < 95:
		return 3
	default:
		return 4
	}
}

// randomTime returns a random time up to maxDaysAgo days in the past
func randomTime(rng *rand.Rand, maxDaysAgo int) time.Time {
	daysAgo := rng.Intn(maxDaysAgo)
	return time.Now().Add(-time.Duration(daysAgo) * 24 * time.Hour)
}

//go:build bench

package sqlite

import (
	"context"
	"fmt"
	"testing"

	"github.com/tracehq/trace/internal/types"
)

// Graph shapes for the traversal benchmarks. Each builds n issues and
// returns them in creation order.
type graphShape func(i int) []int

// linear: bd-2 -> bd-1, bd-3 -> bd-2, ...
func linear(i int) []int {
	if i == 0 {
		return nil
	}
	return []int{i - 1}
}

// tree with branching factor 3
func tree(i int) []int {
	if i == 0 {
		return nil
	}
	return []int{(i - 1) / 3}
}

// dense: each issue depends on up to five predecessors
func dense(i int) []int {
	var out []int
	for j := 1; j <= 5 && i-j >= 0; j++ {
		out = append(out, i-j)
	}
	return out
}

func buildGraph(b *testing.B, n int, shape graphShape, closeLoop bool) (*SQLiteStorage, []*types.Issue) {
	b.Helper()
	store := setupEmptyBenchDB(b)
	ctx := context.Background()

	issues := make([]*types.Issue, n)
	for i := 0; i < n; i++ {
		issue := &types.Issue{Title: fmt.Sprintf("Issue %d", i), Priority: 2}
		if err := store.CreateIssue(ctx, issue, "benchmark"); err != nil {
			b.Fatalf("Failed to create issue: %v", err)
		}
		issues[i] = issue
		for _, parent := range shape(i) {
			dep := &types.Dependency{IssueID: issue.ID, DependsOnID: issues[parent].ID, Type: types.DepBlocks}
			if err := store.AddDependency(ctx, dep, "benchmark"); err != nil {
				b.Fatalf("Failed to add dependency: %v", err)
			}
		}
	}
	if closeLoop {
		dep := &types.Dependency{IssueID: issues[0].ID, DependsOnID: issues[n-1].ID, Type: types.DepBlocks}
		if err := store.AddDependency(ctx, dep, "benchmark"); err != nil {
			b.Fatalf("Failed to close loop: %v", err)
		}
	}
	return store, issues
}

func benchmarkDetectCycles(b *testing.B, n int, shape graphShape, closeLoop bool) {
	store, _ := buildGraph(b, n, shape, closeLoop)
	ctx := context.Background()

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		cycles, err := store.DetectCycles(ctx)
		if err != nil {
			b.Fatalf("DetectCycles failed: %v", err)
		}
		if closeLoop && len(cycles) == 0 {
			b.Fatal("expected a cycle")
		}
	}
}

func benchmarkDependencyTree(b *testing.B, n int, shape graphShape, maxDepth int) {
	store, issues := buildGraph(b, n, shape, false)
	ctx := context.Background()
	leaf := issues[n-1].ID

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := store.GetDependencyTree(ctx, leaf, maxDepth); err != nil {
			b.Fatalf("GetDependencyTree failed: %v", err)
		}
	}
}

func BenchmarkDetectCycles_Linear_100(b *testing.B)  { benchmarkDetectCycles(b, 100, linear, false) }
func BenchmarkDetectCycles_Linear_1000(b *testing.B) { benchmarkDetectCycles(b, 1000, linear, false) }
func BenchmarkDetectCycles_Linear_Loop(b *testing.B) { benchmarkDetectCycles(b, 1000, linear, true) }
func BenchmarkDetectCycles_Tree_1000(b *testing.B)   { benchmarkDetectCycles(b, 1000, tree, false) }
func BenchmarkDetectCycles_Dense_1000(b *testing.B)  { benchmarkDetectCycles(b, 1000, dense, false) }

func BenchmarkDependencyTree_Linear_1000(b *testing.B) {
	benchmarkDependencyTree(b, 1000, linear, types.DefaultMaxTreeDepth)
}

func BenchmarkDependencyTree_Dense_1000(b *testing.B) {
	benchmarkDependencyTree(b, 1000, dense, types.DefaultMaxTreeDepth)
}

// Adding an edge never walks the graph; this tracks the write path alone.
func BenchmarkAddDependency_Linear_1000(b *testing.B) {
	store, issues := buildGraph(b, 1000, linear, false)
	ctx := context.Background()
	extra := &types.Issue{Title: "New issue", Priority: 2}
	if err := store.CreateIssue(ctx, extra, "benchmark"); err != nil {
		b.Fatalf("Failed to create issue: %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		dep := &types.Dependency{IssueID: issues[0].ID, DependsOnID: extra.ID, Type: types.DepBlocks}
		if err := store.AddDependency(ctx, dep, "benchmark"); err != nil {
			b.Fatalf("AddDependency failed: %v", err)
		}
		if err := store.RemoveDependency(ctx, issues[0].ID, extra.ID, "benchmark"); err != nil {
			b.Fatalf("RemoveDependency failed: %v", err)
		}
	}
}

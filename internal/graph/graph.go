// Package graph holds the dependency graph algorithms shared by every
// storage backend: bounded tree traversal and cycle detection.
package graph

import (
	"sort"

	"github.com/tracehq/trace/internal/types"
)

// Source is the read side a traversal needs. Issue returns (nil, nil)
// for an ID that has no stored issue.
type Source interface {
	Issue(id string) (*types.Issue, error)
	DependsOn(id string) ([]string, error)
}

// Tree walks outgoing dependency edges from rootID in pre-order.
//
// Each issue is expanded at most once, at the depth where it is first
// reached, so the result spans the reachable set rather than listing
// every path. Nodes at depth maxDepth are emitted with Truncated set and
// not expanded further. Edges to missing issues are skipped. A maxDepth
// of zero or less means types.DefaultMaxTreeDepth.
func Tree(src Source, rootID string, maxDepth int) ([]*types.TreeNode, error) {
	if maxDepth <= 0 {
		maxDepth = types.DefaultMaxTreeDepth
	}
	w := &treeWalker{src: src, maxDepth: maxDepth, visited: make(map[string]bool)}
	if err := w.visit(rootID, "", 0); err != nil {
		return nil, err
	}
	return w.nodes, nil
}

type treeWalker struct {
	src      Source
	maxDepth int
	visited  map[string]bool
	nodes    []*types.TreeNode
}

func (w *treeWalker) visit(id, parentID string, depth int) error {
	if depth > w.maxDepth || w.visited[id] {
		return nil
	}
	w.visited[id] = true

	issue, err := w.src.Issue(id)
	if err != nil {
		return err
	}
	if issue == nil {
		return nil
	}

	truncated := depth >= w.maxDepth
	w.nodes = append(w.nodes, &types.TreeNode{
		Issue:     *issue,
		Depth:     depth,
		ParentID:  parentID,
		Truncated: truncated,
	})
	if truncated {
		return nil
	}

	next, err := w.src.DependsOn(id)
	if err != nil {
		return err
	}
	for _, child := range next {
		if err := w.visit(child, id, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// FindCycles runs a depth-first search over adjacency (issue ID -> the IDs
// it depends on, any edge type) and returns every cycle found as the
// slice of the current path from the first occurrence of the revisited
// node. Start nodes are tried in ascending ID order. The same cycle can be
// reported more than once; results are not deduplicated.
func FindCycles(adjacency map[string][]string) [][]string {
	starts := make([]string, 0, len(adjacency))
	for id := range adjacency {
		starts = append(starts, id)
	}
	sort.Strings(starts)

	c := &cycleFinder{
		adjacency: adjacency,
		visited:   make(map[string]bool),
		onStack:   make(map[string]bool),
	}
	for _, id := range starts {
		if !c.visited[id] {
			c.dfs(id)
		}
	}
	return c.cycles
}

type cycleFinder struct {
	adjacency map[string][]string
	visited   map[string]bool
	onStack   map[string]bool
	path      []string
	cycles    [][]string
}

func (c *cycleFinder) dfs(node string) {
	c.visited[node] = true
	c.onStack[node] = true
	c.path = append(c.path, node)

	for _, next := range c.adjacency[node] {
		switch {
		case !c.visited[next]:
			c.dfs(next)
		case c.onStack[next]:
			for i, id := range c.path {
				if id == next {
					cycle := make([]string, len(c.path)-i)
					copy(cycle, c.path[i:])
					c.cycles = append(c.cycles, cycle)
					break
				}
			}
		}
	}

	c.path = c.path[:len(c.path)-1]
	c.onStack[node] = false
}

// Adjacency builds the FindCycles input from dependency records, with
// each node's targets sorted for a deterministic walk.
func Adjacency(records map[string][]*types.Dependency) map[string][]string {
	adjacency := make(map[string][]string, len(records))
	for issueID, deps := range records {
		for _, dep := range deps {
			adjacency[issueID] = append(adjacency[issueID], dep.DependsOnID)
		}
		sort.Strings(adjacency[issueID])
	}
	return adjacency
}

// ResolveCycles maps ID cycles to issues, dropping IDs that lookup cannot
// find and cycles left empty.
func ResolveCycles(cycles [][]string, lookup func(id string) (*types.Issue, error)) ([][]*types.Issue, error) {
	var out [][]*types.Issue
	for _, cycle := range cycles {
		var issues []*types.Issue
		for _, id := range cycle {
			issue, err := lookup(id)
			if err != nil {
				return nil, err
			}
			if issue != nil {
				issues = append(issues, issue)
			}
		}
		if len(issues) > 0 {
			out = append(out, issues)
		}
	}
	return out, nil
}

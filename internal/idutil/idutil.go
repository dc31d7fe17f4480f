// Package idutil parses and resolves sequential issue IDs of the form
// <prefix>-<n>.
package idutil

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/tracehq/trace/internal/storage"
	"github.com/tracehq/trace/internal/types"
)

// FormatID builds an ID from a prefix and a counter value.
func FormatID(prefix string, n int64) string {
	return fmt.Sprintf("%s-%d", prefix, n)
}

// SplitID splits "bd-123" into ("bd", 123). The last hyphen separates the
// number, so prefixes may themselves contain hyphens ("my-app-7").
// ok is false when the ID has no positive numeric suffix.
func SplitID(issueID string) (prefix string, n int64, ok bool) {
	idx := strings.LastIndex(issueID, "-")
	if idx <= 0 || idx == len(issueID)-1 {
		return "", 0, false
	}
	n, err := strconv.ParseInt(issueID[idx+1:], 10, 64)
	if err != nil || n <= 0 {
		return "", 0, false
	}
	return issueID[:idx], n, true
}

// ExtractIssuePrefix extracts the prefix from an issue ID like "bd-123" -> "bd"
func ExtractIssuePrefix(issueID string) string {
	prefix, _, ok := SplitID(issueID)
	if !ok {
		return ""
	}
	return prefix
}

// ExtractIssueNumber extracts the number from an issue ID like "bd-123" -> 123
func ExtractIssueNumber(issueID string) int64 {
	_, n, _ := SplitID(issueID)
	return n
}

// ParseIssueID ensures an issue ID has the configured prefix.
// "12" with prefix "bd" becomes "bd-12"; "bd-12" is returned as-is.
func ParseIssueID(input, prefix string) string {
	if prefix == "" {
		prefix = storage.DefaultIssuePrefix
	}
	withHyphen := strings.TrimSuffix(prefix, "-") + "-"
	if strings.HasPrefix(input, withHyphen) {
		return input
	}
	return withHyphen + input
}

// ResolvePartialID resolves user input to a stored issue ID. It accepts
// full IDs, bare numbers ("12"), and IDs under a different prefix.
func ResolvePartialID(ctx context.Context, store storage.Storage, input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", fmt.Errorf("empty issue ID")
	}

	// Exact match wins, whatever the prefix.
	if _, err := store.GetIssue(ctx, input); err == nil {
		return input, nil
	} else if !storage.IsNotFound(err) {
		return "", err
	}

	prefix, err := store.GetConfig(ctx, storage.ConfigIssuePrefix)
	if err != nil {
		return "", err
	}
	candidate := ParseIssueID(input, prefix)
	if candidate != input {
		if _, err := store.GetIssue(ctx, candidate); err == nil {
			return candidate, nil
		} else if !storage.IsNotFound(err) {
			return "", err
		}
	}

	// A bare number may belong to an issue imported under another prefix.
	if _, convErr := strconv.ParseInt(input, 10, 64); convErr == nil {
		issues, err := store.SearchIssues(ctx, types.IssueFilter{})
		if err != nil {
			return "", fmt.Errorf("failed to search issues: %w", err)
		}
		var matches []string
		for _, issue := range issues {
			if strings.HasSuffix(issue.ID, "-"+input) {
				matches = append(matches, issue.ID)
			}
		}
		switch len(matches) {
		case 1:
			return matches[0], nil
		case 0:
		default:
			return "", fmt.Errorf("ambiguous ID %q matches %d issues: %v", input, len(matches), matches)
		}
	}

	return "", storage.NotFoundf("no issue found matching %q", input)
}

// ResolvePartialIDs resolves each input in order, stopping at the first error.
func ResolvePartialIDs(ctx context.Context, store storage.Storage, inputs []string) ([]string, error) {
	resolved := make([]string, 0, len(inputs))
	for _, input := range inputs {
		id, err := ResolvePartialID(ctx, store, input)
		if err != nil {
			return nil, err
		}
		resolved = append(resolved, id)
	}
	return resolved, nil
}

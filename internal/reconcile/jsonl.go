package reconcile

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"sort"

	"github.com/tracehq/trace/internal/types"
)

// maxLineSize bounds a single snapshot record.
const maxLineSize = 2 * 1024 * 1024

type record struct {
	issue *types.Issue
	line  int
}

// ReadJSONL parses a snapshot. Blank lines are skipped; any malformed line
// or merge conflict marker fails the whole read.
func ReadJSONL(r io.Reader) ([]*types.Issue, error) {
	records, err := readRecords(r)
	if err != nil {
		return nil, err
	}
	issues := make([]*types.Issue, len(records))
	for i, rec := range records {
		issues[i] = rec.issue
	}
	return issues, nil
}

func readRecords(r io.Reader) ([]record, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var records []record
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if isConflictMarker(line) {
			return nil, &Error{Op: "parse", Line: lineNo, Err: ErrConflictMarkers}
		}
		var issue types.Issue
		if err := json.Unmarshal(line, &issue); err != nil {
			return nil, &Error{Op: "parse", Line: lineNo, Err: err}
		}
		records = append(records, record{issue: &issue, line: lineNo})
	}
	if err := scanner.Err(); err != nil {
		return nil, &Error{Op: "read", Line: lineNo + 1, Err: err}
	}
	return records, nil
}

// isConflictMarker matches markers only as standalone lines, never inside
// a JSON string.
func isConflictMarker(line []byte) bool {
	return bytes.HasPrefix(line, []byte("<<<<<<< ")) ||
		bytes.Equal(line, []byte("=======")) ||
		bytes.HasPrefix(line, []byte(">>>>>>> "))
}

// WriteJSONL writes issues one per line, sorted by ID.
func WriteJSONL(w io.Writer, issues []*types.Issue) error {
	sorted := make([]*types.Issue, len(issues))
	copy(sorted, issues)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	enc := json.NewEncoder(w)
	for _, issue := range sorted {
		if err := enc.Encode(issue); err != nil {
			return &Error{Op: "write", Err: err}
		}
	}
	return nil
}

package dashboard

import (
	"fmt"
	"strings"

	"github.com/atinyakov/envmanager/internal/envfile"
)

// Row is one key/value line of the editor.
type Row struct {
	Key   string
	Value string
}

// Editor holds the working copy of an environment's variables together with
// the snapshot it was loaded from.
type Editor struct {
	snapshot map[string]string
	rows     []Row
}

// NewEditor starts an editor on vars. Rows are ordered by key.
func NewEditor(vars map[string]string) *Editor {
	e := &Editor{}
	e.load(vars)
	return e
}

func (e *Editor) load(vars map[string]string) {
	e.snapshot = make(map[string]string, len(vars))
	e.rows = make([]Row, 0, len(vars))
	for _, k := range envfile.Keys(vars) {
		e.snapshot[k] = vars[k]
		e.rows = append(e.rows, Row{Key: k, Value: vars[k]})
	}
}

// Rows returns the current rows in display order.
func (e *Editor) Rows() []Row {
	out := make([]Row, len(e.rows))
	copy(out, e.rows)
	return out
}

// SetRows replaces the working copy. Keys are trimmed and rows with a blank
// key are dropped, which is how empty "add" rows and removed rows disappear.
func (e *Editor) SetRows(rows []Row) {
	e.rows = e.rows[:0]
	for _, r := range rows {
		key := strings.TrimSpace(r.Key)
		if key == "" {
			continue
		}
		e.rows = append(e.rows, Row{Key: key, Value: r.Value})
	}
}

// Import merges pasted dotenv content into the working copy. Keys already
// present get the imported value in place, new keys are appended in the order
// they appear. It returns the number of assignments applied.
func (e *Editor) Import(content string) int {
	pairs := envfile.ParsePairs(content)
	index := make(map[string]int, len(e.rows))
	for i, r := range e.rows {
		index[r.Key] = i
	}
	for _, p := range pairs {
		if i, ok := index[p.Key]; ok {
			e.rows[i].Value = p.Value
			continue
		}
		index[p.Key] = len(e.rows)
		e.rows = append(e.rows, Row{Key: p.Key, Value: p.Value})
	}
	return len(pairs)
}

// Validate rejects keys that would not survive a round trip through a
// dotenv file and keys that appear more than once.
func (e *Editor) Validate() error {
	seen := make(map[string]bool, len(e.rows))
	for _, r := range e.rows {
		if strings.ContainsAny(r.Key, "= \t\r\n#") {
			return fmt.Errorf("invalid key %q", r.Key)
		}
		if strings.ContainsAny(r.Value, "\r\n") {
			return fmt.Errorf("value of %s must be a single line", r.Key)
		}
		if seen[r.Key] {
			return fmt.Errorf("duplicate key %s", r.Key)
		}
		seen[r.Key] = true
	}
	return nil
}

// Variables returns the working copy as a variable set. A later row wins
// over an earlier one with the same key.
func (e *Editor) Variables() map[string]string {
	vars := make(map[string]string, len(e.rows))
	for _, r := range e.rows {
		vars[r.Key] = r.Value
	}
	return vars
}

// Dirty reports whether the working copy differs from the snapshot.
func (e *Editor) Dirty() bool {
	return !envfile.Equal(e.Variables(), e.snapshot)
}

// MarkSaved makes the working copy the new snapshot.
func (e *Editor) MarkSaved(vars map[string]string) {
	e.load(vars)
}

// Package envfile reads and writes dotenv files.
//
// The format is deliberately small: KEY=VALUE per line, blank lines and lines
// starting with # are ignored, one pair of surrounding quotes is stripped from
// values and an optional leading "export " is tolerated. There is no variable
// expansion and no escape processing, so a rendered file parses back to the
// same variable set.
package envfile

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"
)

// Pair is one KEY=VALUE assignment in file order.
type Pair struct {
	Key   string
	Value string
}

// ParsePairs returns the assignments of content in the order they appear.
// Lines without "=" or with an empty key are skipped.
func ParsePairs(content string) []Pair {
	var pairs []Pair
	sc := bufio.NewScanner(strings.NewReader(content))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		key = strings.TrimSpace(strings.TrimPrefix(key, "export "))
		if key == "" {
			continue
		}
		pairs = append(pairs, Pair{Key: key, Value: unquote(strings.TrimSpace(value))})
	}
	return pairs
}

func unquote(v string) string {
	if len(v) >= 2 {
		first, last := v[0], v[len(v)-1]
		if (first == '"' || first == '\'') && first == last {
			return v[1 : len(v)-1]
		}
	}
	return v
}

// Parse returns the variable set of content. A key assigned twice keeps its
// last value.
func Parse(content string) map[string]string {
	vars := map[string]string{}
	for _, p := range ParsePairs(content) {
		vars[p.Key] = p.Value
	}
	return vars
}

// Keys returns the keys of vars in lexical order.
func Keys(vars map[string]string) []string {
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Render formats vars as KEY=VALUE lines, one per variable, keys sorted.
func Render(vars map[string]string) string {
	var b strings.Builder
	for _, k := range Keys(vars) {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(vars[k])
		b.WriteByte('\n')
	}
	return b.String()
}

// Equal reports whether a and b hold the same keys with the same values.
// A nil set equals an empty one.
func Equal(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		if bv, ok := b[k]; !ok || av != bv {
			return false
		}
	}
	return true
}

// State describes a dotenv file on disk.
type State struct {
	Exists  bool
	ModTime time.Time
	Vars    map[string]string
}

// Read loads the file at path. A missing file is not an error; it yields a
// State with Exists false.
func Read(fs afero.Fs, path string) (State, error) {
	info, err := fs.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return State{}, nil
		}
		return State{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return State{}, fmt.Errorf("%s is a directory", path)
	}
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return State{}, fmt.Errorf("read %s: %w", path, err)
	}
	return State{Exists: true, ModTime: info.ModTime(), Vars: Parse(string(data))}, nil
}

// WriteAtomic replaces path with data. The content goes to a temporary file in
// the same directory which is then renamed over the target, so the target is
// either the old or the new content, never a mix. An existing file keeps its
// permissions; a new one is created 0600.
func WriteAtomic(fs afero.Fs, path string, data []byte) error {
	perm := os.FileMode(0o600)
	if info, err := fs.Stat(path); err == nil {
		perm = info.Mode().Perm()
	}

	dir := filepath.Dir(path)
	tmp, err := afero.TempFile(fs, dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = fs.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := fs.Chmod(tmpName, perm); err != nil {
		cleanup()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := fs.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

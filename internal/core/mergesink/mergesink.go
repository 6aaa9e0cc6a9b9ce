// Package mergesink appends new lines to a persistent set-file such that
// the file always holds the union of everything ever merged into it, one
// entry per line, no duplicates.
//
// The pipeline's enumerate stage needs concurrent multi-producer merges:
// all three enumerators target subs.txt at once. Concurrent safety comes
// from an advisory file lock (github.com/gofrs/flock) taken for the
// duration of the read-merge-rewrite cycle.
package mergesink

import (
	"bufio"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gofrs/flock"
)

// Merge appends each of lines to targetFile iff not already present there.
// The resulting file contains the union, one entry per line, sorted and
// newline-terminated. Empty and whitespace-only lines are skipped. Calls
// from different goroutines or processes against the same targetFile are
// serialized via an advisory lock file at targetFile+".lock".
func Merge(targetFile string, lines []string) error {
	if err := os.MkdirAll(filepath.Dir(targetFile), 0o755); err != nil {
		return err
	}

	lock := flock.New(targetFile + ".lock")
	if err := lock.Lock(); err != nil {
		return err
	}
	defer lock.Unlock()

	existing, err := readLines(targetFile)
	if err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(existing)+len(lines))
	merged := make([]string, 0, len(existing)+len(lines))
	for _, l := range existing {
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		merged = append(merged, l)
	}
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		merged = append(merged, l)
	}

	sort.Strings(merged)
	return writeLines(targetFile, merged)
}

// Read returns the current contents of targetFile as a slice of lines,
// without taking the advisory lock — suitable for a reader that only cares
// about a stable snapshot once all producers have finished (the "read
// subs.txt as the authoritative subdomain set" step of the enumerate
// stage).
func Read(targetFile string) ([]string, error) {
	return readLines(targetFile)
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var lines []string
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

func writeLines(path string, lines []string) error {
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(b.String()), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

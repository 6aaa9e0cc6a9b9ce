package mergesink

import (
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMergeIsSetUnion(t *testing.T) {
	t.Parallel()

	target := filepath.Join(t.TempDir(), "subs.txt")
	if err := Merge(target, []string{"b.example.com", "a.example.com"}); err != nil {
		t.Fatalf("first Merge: %v", err)
	}
	if err := Merge(target, []string{"a.example.com", "c.example.com"}); err != nil {
		t.Fatalf("second Merge: %v", err)
	}

	got, err := Read(target)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	want := []string{"a.example.com", "b.example.com", "c.example.com"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("merged file mismatch (-want +got):\n%s", diff)
	}
}

func TestMergeSkipsBlankAndWhitespaceLines(t *testing.T) {
	t.Parallel()

	target := filepath.Join(t.TempDir(), "subs.txt")
	if err := Merge(target, []string{"", "   ", "\t", "a.example.com", " b.example.com "}); err != nil {
		t.Fatalf("Merge: %v", err)
	}

	got, err := Read(target)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	want := []string{"a.example.com", "b.example.com"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("merged file mismatch (-want +got):\n%s", diff)
	}
}

func TestMergeIsIdempotent(t *testing.T) {
	t.Parallel()

	target := filepath.Join(t.TempDir(), "subs.txt")
	lines := []string{"a.example.com", "b.example.com"}
	if err := Merge(target, lines); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	first, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	if err := Merge(target, lines); err != nil {
		t.Fatalf("second Merge: %v", err)
	}
	second, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(first) != string(second) {
		t.Errorf("re-merging the same lines changed the file:\nfirst:\n%ssecond:\n%s", first, second)
	}
}

func TestMergeNormalizesTerminators(t *testing.T) {
	t.Parallel()

	target := filepath.Join(t.TempDir(), "subs.txt")
	if err := Merge(target, []string{"a.example.com"}); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if got, want := string(data), "a.example.com\n"; got != want {
		t.Errorf("file contents = %q, want %q", got, want)
	}
}

func TestMergeConcurrentProducers(t *testing.T) {
	t.Parallel()

	target := filepath.Join(t.TempDir(), "subs.txt")

	const producers = 3
	const perProducer = 20
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		p := p
		wg.Add(1)
		go func() {
			defer wg.Done()
			var lines []string
			for i := 0; i < perProducer; i++ {
				// Half the entries overlap across producers, half are unique.
				if i%2 == 0 {
					lines = append(lines, "shared-"+strconv.Itoa(i)+".example.com")
				} else {
					lines = append(lines, "p"+strconv.Itoa(p)+"-"+strconv.Itoa(i)+".example.com")
				}
			}
			if err := Merge(target, lines); err != nil {
				t.Errorf("producer %d Merge: %v", p, err)
			}
		}()
	}
	wg.Wait()

	got, err := Read(target)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	seen := make(map[string]bool, len(got))
	for _, l := range got {
		if seen[l] {
			t.Fatalf("duplicate line %q in merged file", l)
		}
		seen[l] = true
	}
	// 10 shared + 3*10 unique.
	if want := 40; len(got) != want {
		t.Errorf("merged file has %d lines, want %d", len(got), want)
	}
}

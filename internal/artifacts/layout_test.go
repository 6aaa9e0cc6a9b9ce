package artifacts

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLayoutPaths(t *testing.T) {
	t.Parallel()

	l := Layout{Root: "jobs", JobID: "j1"}
	cases := map[string]string{
		l.SubsFile():             "jobs/j1/subs.txt",
		l.AmassRawFile():         "jobs/j1/amass_raw.txt",
		l.AmassFile():            "jobs/j1/amass.txt",
		l.LiveFile():             "jobs/j1/live.txt",
		l.LiveURLsFile():         "jobs/j1/live_urls.txt",
		l.WafResultsFile():       "jobs/j1/waf_results.json",
		l.URLsNoWafFile():        "jobs/j1/urls_no_waf.txt",
		l.LeaksResultsDir():      "jobs/j1/leaks_results",
		l.URLsForGowitnessFile(): "jobs/j1/urls_for_gowitness.txt",
		l.ShotsDir():             "jobs/j1/shots",
	}
	for got, want := range cases {
		if got != filepath.FromSlash(want) {
			t.Errorf("path = %q, want %q", got, want)
		}
	}
}

func TestNewCreatesAndRemoveDeletes(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	l, err := New(root, "job-1")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if info, err := os.Stat(l.Dir()); err != nil || !info.IsDir() {
		t.Fatalf("job dir not created: %v", err)
	}
	if err := os.WriteFile(l.SubsFile(), []byte("a.example.com\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if err := l.Remove(); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(l.Dir()); !os.IsNotExist(err) {
		t.Errorf("job dir still present after Remove: %v", err)
	}
}

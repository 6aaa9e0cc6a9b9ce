package parsers

import (
	"bufio"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSeverityFor(t *testing.T) {
	t.Parallel()

	cases := []struct {
		status int
		url    string
		want   Severity
	}{
		// Base table.
		{200, "https://a.example.com/readme.txt", SeverityHigh},
		{403, "https://a.example.com/readme.txt", SeverityMedium},
		{301, "https://a.example.com/readme.txt", SeverityLow},
		{500, "https://a.example.com/readme.txt", SeverityLow},
		// Sensitive-file patterns lift medium->high and low->medium.
		{403, "https://a.example.com/dump.sql", SeverityHigh},
		{301, "https://a.example.com/.env", SeverityMedium},
		{403, "https://a.example.com/.git/config", SeverityHigh},
		{301, "https://a.example.com/backup/old", SeverityMedium},
		{403, "https://a.example.com/database.yml", SeverityHigh},
		// Archive patterns lift low->medium only.
		{301, "https://a.example.com/site.zip", SeverityMedium},
		{301, "https://a.example.com/site.tar.gz", SeverityMedium},
		{403, "https://a.example.com/site.bak", SeverityMedium}, // already medium, archive rule doesn't lift further
		// 200 is already top; upgrades keep it there (documented dead branch).
		{200, "https://a.example.com/.env", SeverityHigh},
		{200, "https://a.example.com/site.zip", SeverityHigh},
	}

	for _, tc := range cases {
		if got := SeverityFor(tc.status, tc.url); got != tc.want {
			t.Errorf("SeverityFor(%d, %q) = %v, want %v", tc.status, tc.url, got, tc.want)
		}
	}
}

func TestPathBruteStdoutEnvLeak(t *testing.T) {
	t.Parallel()

	in := `[200] 42 0.1s text/plain https://a.example.com/.env`
	recs, errs := PathBruteStdout(bufio.NewScanner(strings.NewReader(in)))
	if len(errs) != 0 {
		t.Fatalf("unexpected errs: %v", errs)
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	got := recs[0]
	if got.StatusCode != 200 || got.Size != 42 || got.Time != "0.1s" ||
		got.ContentType != "text/plain" || got.URL != "https://a.example.com/.env" {
		t.Errorf("unexpected record: %+v", got)
	}
	if got.Severity != SeverityHigh {
		t.Errorf("severity = %v, want high", got.Severity)
	}
}

func TestPathBruteStdoutSkipsMalformedLines(t *testing.T) {
	t.Parallel()

	in := "garbage line\n[200] 10 0.2s text/html https://a.example.com/x\n"
	recs, errs := PathBruteStdout(bufio.NewScanner(strings.NewReader(in)))
	if len(errs) != 1 {
		t.Fatalf("expected 1 parse error, got %d: %v", len(errs), errs)
	}
	if len(recs) != 1 {
		t.Fatalf("expected the valid line to parse, got %d records", len(recs))
	}
}

func TestPathBruteCSV(t *testing.T) {
	t.Parallel()

	data := strings.Join([]string{
		"Code,Length,Time,Type,URL",
		"200,1024,0.3s,text/html,https://a.example.com/admin",
		"404,0,0.1s,text/html,https://a.example.com/nope",
		"403,512,0.2s,text/html,https://a.example.com/private",
		"not,a,valid",
	}, "\n")
	recs, errs := PathBruteCSV("200.csv", strings.NewReader(data))
	if len(errs) != 1 {
		t.Fatalf("expected 1 parse error for the short row, got %d: %v", len(errs), errs)
	}
	var urls []string
	for _, r := range recs {
		urls = append(urls, r.URL)
	}
	want := []string{"https://a.example.com/admin", "https://a.example.com/private"}
	if diff := cmp.Diff(want, urls); diff != "" {
		t.Errorf("CSV records mismatch (-want +got):\n%s", diff)
	}
}

func TestPathBruteCSVIgnores404File(t *testing.T) {
	t.Parallel()

	data := "Code,Length,Time,Type,URL\n404,0,0.1s,text/html,https://a.example.com/nope\n"
	recs, errs := PathBruteCSV("/jobs/j/leaks_results/404.csv", strings.NewReader(data))
	if len(recs) != 0 || len(errs) != 0 {
		t.Fatalf("404.csv must be ignored entirely, got %d records %d errors", len(recs), len(errs))
	}
}

func TestMergePathBrutePrefersStdout(t *testing.T) {
	t.Parallel()

	stdout := []LeakRecord{
		{StatusCode: 200, Size: 42, URL: "https://a.example.com/.env", Severity: SeverityHigh},
	}
	csv := []LeakRecord{
		// Same URL with divergent metadata: the stdout entry must win.
		{StatusCode: 200, Size: 9999, URL: "https://a.example.com/.env", Severity: SeverityHigh},
		{StatusCode: 403, Size: 512, URL: "https://a.example.com/private", Severity: SeverityMedium},
	}

	merged := MergePathBrute(stdout, csv)
	if len(merged) != 2 {
		t.Fatalf("expected 2 merged records, got %d: %+v", len(merged), merged)
	}
	if merged[0].URL != "https://a.example.com/.env" || merged[0].Size != 42 {
		t.Errorf("stdout entry did not win the merge: %+v", merged[0])
	}
	if merged[1].URL != "https://a.example.com/private" {
		t.Errorf("CSV-only entry missing: %+v", merged)
	}
}

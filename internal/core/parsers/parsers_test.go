package parsers

import (
	"bufio"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestHostnames(t *testing.T) {
	in := "  sub1.example.com\n[ info ] skip me\n\nSUB2.example.com\n"
	got := Hostnames(bufio.NewScanner(strings.NewReader(in)))
	want := []string{"sub1.example.com", "sub2.example.com"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Hostnames() mismatch (-want +got):\n%s", diff)
	}
}

func TestMixedHostnames(t *testing.T) {
	in := strings.Join([]string{
		"foo.example.com (FQDN) --> a_record --> 1.2.3.4",
		"evil-example.com",
		"bar.example.com",
		"not.other.com",
		"[info] noise",
	}, "\n")
	got := MixedHostnames(bufio.NewScanner(strings.NewReader(in)), "example.com")
	want := []string{"foo.example.com", "bar.example.com"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("MixedHostnames() mismatch (-want +got):\n%s", diff)
	}
}

func TestMixedHostnamesApexItself(t *testing.T) {
	got := MixedHostnames(bufio.NewScanner(strings.NewReader("example.com\n")), "example.com")
	if len(got) != 1 || got[0] != "example.com" {
		t.Fatalf("expected apex itself to be kept, got %v", got)
	}
}

func TestWafRecords(t *testing.T) {
	data := `[{"url":"https://a.example.com","detected":true,"firewall":"Cloudflare","manufacturer":"Cloudflare Inc."},
{"url":"https://b.example.com","detected":false,"firewall":"None","manufacturer":""}]`
	recs, err := WafRecords([]byte(data))
	if err != nil {
		t.Fatalf("WafRecords() error: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if !recs[0].HasWAF() {
		t.Errorf("recs[0].HasWAF() = false, want true")
	}
	if recs[1].HasWAF() {
		t.Errorf("recs[1].HasWAF() = true, want false (sentinel \"None\")")
	}
}

func TestWafRecordsMalformed(t *testing.T) {
	if _, err := WafRecords([]byte("not json")); err == nil {
		t.Fatal("expected error for malformed JSON, got nil")
	}
}

func TestProbeRecords(t *testing.T) {
	line := `{"url":"https://a.example.com","status_code":200,"title":"Home","content_length":512,"webserver":"nginx","final_url":"https://a.example.com/","time":"120ms","host":"1.2.3.4","tech":["nginx","php"]}`
	recs, errs := ProbeRecords(bufio.NewScanner(strings.NewReader(line)))
	if len(errs) != 0 {
		t.Fatalf("unexpected errs: %v", errs)
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	got := recs[0]
	if !got.IsLive() {
		t.Errorf("IsLive() = false, want true for status 200")
	}
	if got.StatusCode != 200 || got.Title != "Home" || got.ContentLength != 512 {
		t.Errorf("unexpected record: %+v", got)
	}
}

func TestProbeRecordsSkipsMalformedLines(t *testing.T) {
	in := "not json at all\n" + `{"url":"https://a.example.com"}`
	recs, errs := ProbeRecords(bufio.NewScanner(strings.NewReader(in)))
	if len(errs) != 1 {
		t.Fatalf("expected exactly 1 parse error, got %d: %v", len(errs), errs)
	}
	if len(recs) != 1 {
		t.Fatalf("expected the valid line to still parse, got %d records", len(recs))
	}
}

func TestPathBruteStdoutFilters404(t *testing.T) {
	in := strings.Join([]string{
		`[200] 1024 0.1s text/html https://a.example.com/.git/config`,
		`[404] 0 0.1s text/html https://a.example.com/nope`,
	}, "\n")
	recs, errs := PathBruteStdout(bufio.NewScanner(strings.NewReader(in)))
	if len(errs) != 0 {
		t.Fatalf("unexpected errs: %v", errs)
	}
	if len(recs) != 1 {
		t.Fatalf("expected exactly 1 non-404 record, got %d: %+v", len(recs), recs)
	}
	if recs[0].Severity != SeverityHigh {
		t.Errorf("expected .git/config to upgrade to high severity, got %v", recs[0].Severity)
	}
}

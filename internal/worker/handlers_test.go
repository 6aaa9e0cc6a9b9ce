package worker

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"reconctl/internal/core/dispatch"
	"reconctl/internal/core/parsers"
	"reconctl/internal/core/reconpipeline"
	"reconctl/internal/domain"
	apperrors "reconctl/internal/platform/errors"
	"reconctl/internal/repo"
)

func newTestDeps(t *testing.T) Dependencies {
	t.Helper()
	dir := t.TempDir()
	store, err := repo.Open(context.Background(), filepath.Join(dir, "recon.db"))
	if err != nil {
		t.Fatalf("repo.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return Dependencies{Store: store, JobsDir: filepath.Join(dir, "jobs")}
}

func createRunningJob(t *testing.T, d Dependencies, jobID, dom string) {
	t.Helper()
	ctx := context.Background()
	if err := d.Store.CreateJob(ctx, &domain.ScanJob{ID: jobID, Domain: dom}); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if err := d.Store.UpdateStatus(ctx, jobID, domain.ScanStatusRunning, ""); err != nil {
		t.Fatalf("->running: %v", err)
	}
}

func TestPersistResultFullPipeline(t *testing.T) {
	t.Parallel()
	d := newTestDeps(t)
	ctx := context.Background()
	createRunningJob(t, d, "job-1", "example.com")

	res := &reconpipeline.Result{
		Subdomains: []string{"a.example.com", "b.example.com"},
		Probes: map[string]parsers.ProbeRecord{
			"a.example.com": {
				URL: "https://a.example.com", StatusCode: 200, HasStatusCode: true,
				Title: "Home", FinalURL: "https://a.example.com/", Tech: []string{"nginx"},
			},
			// b.example.com has no probe record in the tool's output, so
			// persistResult must record it as dead.
		},
		WafResults: []parsers.WafRecord{
			{URL: "https://a.example.com", Detected: true, Firewall: "Cloudflare", Manufacturer: "Cloudflare Inc."},
		},
		Screenshots: []reconpipeline.Screenshot{
			{Filename: "https-a-example-com.png", URL: "https://a.example.com"},
		},
	}

	if err := d.persistResult(ctx, "job-1", res); err != nil {
		t.Fatalf("persistResult: %v", err)
	}

	subs, err := d.Store.ListSubdomains(ctx, "job-1")
	if err != nil {
		t.Fatalf("ListSubdomains: %v", err)
	}
	if len(subs) != 2 {
		t.Fatalf("expected 2 subdomains, got %d", len(subs))
	}
	byName := make(map[string]domain.Subdomain, len(subs))
	for _, s := range subs {
		byName[s.Name] = s
	}
	a := byName["a.example.com"]
	if !a.IsLive || a.Status != domain.SubdomainStatusLive || a.HTTPStatus == nil || *a.HTTPStatus != 200 || a.Title != "Home" {
		t.Errorf("live subdomain not persisted: %+v", a)
	}
	if a.URL != "https://a.example.com" {
		t.Errorf("raw probed url not persisted: %q", a.URL)
	}
	if b := byName["b.example.com"]; b.IsLive || b.Status != domain.SubdomainStatusDead {
		t.Errorf("unprobed subdomain should be marked dead: %+v", b)
	}

	wafs, err := d.Store.ListWafDetections(ctx, "job-1")
	if err != nil {
		t.Fatalf("ListWafDetections: %v", err)
	}
	if len(wafs) != 1 || !wafs[0].HasWAF() {
		t.Errorf("expected one WAF detection with HasWAF=true, got %+v", wafs)
	}

	shots, err := d.Store.ListScreenshots(ctx, "job-1")
	if err != nil {
		t.Fatalf("ListScreenshots: %v", err)
	}
	if len(shots) != 1 || shots[0].Filename != "https-a-example-com.png" {
		t.Errorf("screenshot not persisted: %+v", shots)
	}

	id, ok, err := d.Store.SubdomainIDByName(ctx, "job-1", "a.example.com")
	if err != nil || !ok {
		t.Fatalf("SubdomainIDByName: (%v, %v)", ok, err)
	}
	var techCount int
	if err := d.Store.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM technologies WHERE subdomain_id = ?", id).Scan(&techCount); err != nil {
		t.Fatalf("counting technologies: %v", err)
	}
	if techCount != 1 {
		t.Errorf("expected 1 technology row, got %d", techCount)
	}
}

func TestFailOrRetryFullScan(t *testing.T) {
	t.Parallel()
	d := newTestDeps(t)
	ctx := context.Background()
	createRunningJob(t, d, "job-1", "example.com")

	cause := errors.New("no live hosts found")

	// Attempts remain: retryable, job left running.
	err := d.failOrRetryFullScan(ctx, "job-1", dispatch.Task{Attempt: 1, MaxAttempts: 3}, cause)
	if !apperrors.IsRetryable(err) {
		t.Fatalf("mid-retry error = %v, want RetryableError", err)
	}
	job, getErr := d.Store.GetJob(ctx, "job-1")
	if getErr != nil {
		t.Fatalf("GetJob: %v", getErr)
	}
	if job.Status != domain.ScanStatusRunning {
		t.Errorf("job status = %v after retryable failure, want running", job.Status)
	}

	// Last attempt: terminal, job failed with the cause's message.
	err = d.failOrRetryFullScan(ctx, "job-1", dispatch.Task{Attempt: 3, MaxAttempts: 3}, cause)
	if apperrors.IsRetryable(err) {
		t.Fatalf("final-attempt error = %v, want terminal", err)
	}
	job, getErr = d.Store.GetJob(ctx, "job-1")
	if getErr != nil {
		t.Fatalf("GetJob: %v", getErr)
	}
	if job.Status != domain.ScanStatusFailed || job.ErrorMsg != "no live hosts found" {
		t.Errorf("job = (%v, %q), want (failed, cause message)", job.Status, job.ErrorMsg)
	}
	if job.CompletedAt == nil {
		t.Error("CompletedAt not stamped on failure")
	}
}

package api

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"reconctl/internal/core/dispatch"
	"reconctl/internal/domain"
	apperrors "reconctl/internal/platform/errors"
	"reconctl/internal/repo"
)

func newTestFacade(t *testing.T) (*Facade, *dispatch.InMemoryBroker) {
	t.Helper()
	dir := t.TempDir()
	store, err := repo.Open(context.Background(), filepath.Join(dir, "recon.db"))
	if err != nil {
		t.Fatalf("repo.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	broker := dispatch.NewInMemoryBroker()
	return New(store, broker, filepath.Join(dir, "jobs")), broker
}

// completeJobWithLiveHost drives a job through its legal transitions and
// records one live probed host, standing in for a full pipeline run. url is
// the prober's raw url field; finalURL is where its redirects landed (pass
// them equal for a host that never redirected).
func completeJobWithLiveHost(t *testing.T, f *Facade, jobID, url, finalURL string) {
	t.Helper()
	ctx := context.Background()
	if err := f.Store.UpdateStatus(ctx, jobID, domain.ScanStatusRunning, ""); err != nil {
		t.Fatalf("->running: %v", err)
	}
	if err := f.Store.InsertSubdomains(ctx, jobID, []string{"a.example.com"}, "enumerate"); err != nil {
		t.Fatalf("InsertSubdomains: %v", err)
	}
	status := 200
	upd := repo.ProbeUpdate{Name: "a.example.com", IsLive: true, HTTPStatus: &status, URL: url, FinalURL: finalURL}
	if err := f.Store.UpdateProbeResults(ctx, jobID, upd); err != nil {
		t.Fatalf("UpdateProbeResults: %v", err)
	}
	if err := f.Store.UpdateStatus(ctx, jobID, domain.ScanStatusCompleted, ""); err != nil {
		t.Fatalf("->completed: %v", err)
	}
}

func TestSubmitScanCreatesJobAndTask(t *testing.T) {
	t.Parallel()
	f, broker := newTestFacade(t)
	ctx := context.Background()

	job, err := f.SubmitScan(ctx, "Example.COM")
	if err != nil {
		t.Fatalf("SubmitScan: %v", err)
	}
	if job.Domain != "example.com" {
		t.Errorf("domain not lowercased: %q", job.Domain)
	}
	if job.TaskID == "" {
		t.Error("no task id recorded on the job")
	}

	stored, err := f.Store.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if stored.Status != domain.ScanStatusPending || stored.TaskID != job.TaskID {
		t.Errorf("persisted job mismatch: %+v", stored)
	}

	task, err := broker.Reserve(ctx, []string{dispatch.QueueReconFull})
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if task.ID != job.TaskID {
		t.Errorf("enqueued task id %q != recorded %q", task.ID, job.TaskID)
	}
}

func TestSubmitBulkSkipsMalformedDomains(t *testing.T) {
	t.Parallel()
	f, _ := newTestFacade(t)

	jobs, skipped := f.SubmitBulk(context.Background(), []string{"ok.com", "bad", "also-ok.com"})
	if len(jobs) != 2 {
		t.Fatalf("total_submitted = %d, want 2", len(jobs))
	}
	if diff := cmp.Diff([]string{"bad"}, skipped); diff != "" {
		t.Errorf("skipped mismatch (-want +got):\n%s", diff)
	}
}

func TestSubmitLeakScanFiltersToLiveSet(t *testing.T) {
	t.Parallel()
	f, broker := newTestFacade(t)
	ctx := context.Background()

	job, err := f.SubmitScan(ctx, "example.com")
	if err != nil {
		t.Fatalf("SubmitScan: %v", err)
	}
	completeJobWithLiveHost(t, f, job.ID, "https://a.example.com", "https://a.example.com")

	taskID, filtered, err := f.SubmitLeakScan(ctx, job.ID,
		[]string{"https://a.example.com", "https://x.other.com"}, "tiny")
	if err != nil {
		t.Fatalf("SubmitLeakScan: %v", err)
	}
	if diff := cmp.Diff([]string{"https://a.example.com"}, filtered); diff != "" {
		t.Errorf("filtered mismatch (-want +got):\n%s", diff)
	}

	task, err := broker.Reserve(ctx, []string{dispatch.QueueLeakCheck})
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if task.ID != taskID {
		t.Errorf("enqueued task id %q != returned %q", task.ID, taskID)
	}
}

func TestSubmitLeakScanMatchesRawProbedURL(t *testing.T) {
	t.Parallel()
	f, _ := newTestFacade(t)
	ctx := context.Background()

	job, err := f.SubmitScan(ctx, "example.com")
	if err != nil {
		t.Fatalf("SubmitScan: %v", err)
	}
	// The probe redirected http->https+www: the live set must still be
	// addressed by the raw probed url, not the redirect target.
	completeJobWithLiveHost(t, f, job.ID, "http://a.example.com", "https://www.a.example.com/")

	_, filtered, err := f.SubmitLeakScan(ctx, job.ID, []string{"http://a.example.com"}, "tiny")
	if err != nil {
		t.Fatalf("SubmitLeakScan: %v", err)
	}
	if diff := cmp.Diff([]string{"http://a.example.com"}, filtered); diff != "" {
		t.Errorf("filtered mismatch (-want +got):\n%s", diff)
	}

	// The redirect target is not a member of the live set.
	if _, _, err := f.SubmitLeakScan(ctx, job.ID, []string{"https://www.a.example.com/"}, "tiny"); !apperrors.IsInvalidArgument(err) {
		t.Errorf("final_url match = %v, want InvalidArgumentError", err)
	}
}

func TestSubmitLeakScanPreconditions(t *testing.T) {
	t.Parallel()
	f, _ := newTestFacade(t)
	ctx := context.Background()

	job, err := f.SubmitScan(ctx, "example.com")
	if err != nil {
		t.Fatalf("SubmitScan: %v", err)
	}

	// Still pending: not eligible yet.
	if _, _, err := f.SubmitLeakScan(ctx, job.ID, []string{"https://a.example.com"}, "tiny"); !apperrors.IsInvalidArgument(err) {
		t.Errorf("leak scan on pending job = %v, want InvalidArgumentError", err)
	}

	completeJobWithLiveHost(t, f, job.ID, "https://a.example.com", "https://a.example.com")

	if _, _, err := f.SubmitLeakScan(ctx, job.ID, []string{"https://a.example.com"}, "huge"); !apperrors.IsInvalidArgument(err) {
		t.Errorf("invalid mode = %v, want InvalidArgumentError", err)
	}
	// Every requested URL filtered out.
	if _, _, err := f.SubmitLeakScan(ctx, job.ID, []string{"https://x.other.com"}, "tiny"); !apperrors.IsInvalidArgument(err) {
		t.Errorf("all-filtered = %v, want InvalidArgumentError", err)
	}
	if _, _, err := f.SubmitLeakScan(ctx, "nope", []string{"https://a.example.com"}, "tiny"); !apperrors.IsNotFound(err) {
		t.Errorf("unknown job = %v, want NotFoundError", err)
	}
}

func TestDeleteScanRevokesAndCleansUp(t *testing.T) {
	t.Parallel()
	f, broker := newTestFacade(t)
	ctx := context.Background()

	job, err := f.SubmitScan(ctx, "example.com")
	if err != nil {
		t.Fatalf("SubmitScan: %v", err)
	}

	artifactDir := filepath.Join(f.JobsDir, job.ID)
	if err := os.MkdirAll(artifactDir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(artifactDir, "subs.txt"), []byte("a.example.com\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if err := f.DeleteScan(ctx, job.ID); err != nil {
		t.Fatalf("DeleteScan: %v", err)
	}

	if _, err := f.Store.GetJob(ctx, job.ID); !apperrors.IsNotFound(err) {
		t.Errorf("job still present after delete: %v", err)
	}
	if _, err := os.Stat(artifactDir); !os.IsNotExist(err) {
		t.Errorf("artifact dir still present after delete: %v", err)
	}
	if _, state, ok := broker.Progress(ctx, job.TaskID); !ok || state != domain.TaskStateRevoked {
		t.Errorf("task state = (%v, %v), want REVOKED", state, ok)
	}
}

func TestAddSubdomainScopeAndConflict(t *testing.T) {
	t.Parallel()
	f, _ := newTestFacade(t)
	ctx := context.Background()

	job, err := f.SubmitScan(ctx, "example.com")
	if err != nil {
		t.Fatalf("SubmitScan: %v", err)
	}

	if _, err := f.AddSubdomain(ctx, job.ID, AddSubdomainParams{Subdomain: "Manual.Example.com"}); err != nil {
		t.Fatalf("AddSubdomain: %v", err)
	}
	if _, err := f.AddSubdomain(ctx, job.ID, AddSubdomainParams{Subdomain: "manual.example.com"}); !apperrors.IsConflict(err) {
		t.Errorf("duplicate = %v, want ConflictError", err)
	}
	// A sibling registrable domain must not pass the label-boundary check.
	if _, err := f.AddSubdomain(ctx, job.ID, AddSubdomainParams{Subdomain: "evil-example.com"}); !apperrors.IsInvalidArgument(err) {
		t.Errorf("sibling domain = %v, want InvalidArgumentError", err)
	}
	if _, err := f.AddSubdomain(ctx, job.ID, AddSubdomainParams{Subdomain: "other.com"}); !apperrors.IsInvalidArgument(err) {
		t.Errorf("out-of-scope = %v, want InvalidArgumentError", err)
	}
}

func TestProgressFallsBackToJobStatus(t *testing.T) {
	t.Parallel()
	f, broker := newTestFacade(t)
	ctx := context.Background()

	job, err := f.SubmitScan(ctx, "example.com")
	if err != nil {
		t.Fatalf("SubmitScan: %v", err)
	}

	// No heartbeat published yet: the DB status is the answer.
	view, err := f.Progress(ctx, job.ID)
	if err != nil {
		t.Fatalf("Progress: %v", err)
	}
	if view.FromTask || view.Status != string(domain.ScanStatusPending) {
		t.Errorf("expected DB fallback, got %+v", view)
	}

	// Once the dispatcher publishes, its state wins.
	if err := broker.PublishProgress(ctx, job.TaskID, domain.Progress{Current: 40, Total: 100, Status: "probing"}, domain.TaskStateProgress); err != nil {
		t.Fatalf("PublishProgress: %v", err)
	}
	view, err = f.Progress(ctx, job.ID)
	if err != nil {
		t.Fatalf("Progress: %v", err)
	}
	if !view.FromTask || view.Status != string(domain.TaskStateProgress) || view.Progress.Current != 40 {
		t.Errorf("expected dispatcher state, got %+v", view)
	}
}

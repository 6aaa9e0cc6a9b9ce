// Package api is the job API facade and its HTTP binding: validates and
// mints scan jobs, dispatches them onto the task dispatcher, and assembles
// full-result views from the repository layer.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"reconctl/internal/artifacts"
	"reconctl/internal/core/dispatch"
	"reconctl/internal/core/leakscan"
	"reconctl/internal/domain"
	apperrors "reconctl/internal/platform/errors"
	"reconctl/internal/platform/logx"
	"reconctl/internal/platform/urlutil"
	"reconctl/internal/repo"
)

// Facade is the single entry point the router (and any future transport)
// calls into; it owns no HTTP concerns.
type Facade struct {
	Store   *repo.Store
	Broker  dispatch.Broker
	JobsDir string
}

// New builds a Facade over an already-open store and broker.
func New(store *repo.Store, broker dispatch.Broker, jobsDir string) *Facade {
	return &Facade{Store: store, Broker: broker, JobsDir: jobsDir}
}

// fullScanPayload is the JSON body of a recon_full task.
type fullScanPayload struct {
	JobID  string `json:"job_id"`
	Domain string `json:"domain"`
}

// leakScanPayload is the JSON body of a leak_check task.
type leakScanPayload struct {
	JobID string   `json:"job_id"`
	URLs  []string `json:"urls"`
	Mode  string   `json:"mode"`
}

// ValidateDomain enforces the job-minting precondition: nonempty, contains
// a dot, lowercased. Callers may submit a bare domain or a full
// URL; NormalizeScope reduces either to a hostname before validation.
func ValidateDomain(raw string) (string, error) {
	d := strings.ToLower(strings.TrimSpace(urlutil.NormalizeScope(raw)))
	if d == "" {
		return "", apperrors.NewInvalidArgumentError("domain", "must not be empty")
	}
	if !strings.Contains(d, ".") {
		return "", apperrors.NewInvalidArgumentError("domain", "must contain a dot")
	}
	return d, nil
}

// SubmitScan validates the domain, mints a job id, persists a pending
// ScanJob and dispatches the full-scan task, recording the returned task id
// on the job.
func (f *Facade) SubmitScan(ctx context.Context, rawDomain string) (*domain.ScanJob, error) {
	d, err := ValidateDomain(rawDomain)
	if err != nil {
		return nil, err
	}

	job := &domain.ScanJob{ID: uuid.NewString(), Domain: d}
	if err := f.Store.CreateJob(ctx, job); err != nil {
		return nil, err
	}

	taskID, err := f.dispatchFullScan(ctx, job.ID, d)
	if err != nil {
		if delErr := f.Store.DeleteJob(ctx, job.ID); delErr != nil {
			logx.Warnf("api: cleaning up job %s after dispatch failure: %v", job.ID, delErr)
		}
		return nil, err
	}
	job.TaskID = taskID
	return job, nil
}

// SubmitBulk validates and submits each domain independently; malformed
// domains are skipped rather than aborting the whole batch.
func (f *Facade) SubmitBulk(ctx context.Context, rawDomains []string) (submitted []*domain.ScanJob, skipped []string) {
	for _, raw := range rawDomains {
		job, err := f.SubmitScan(ctx, raw)
		if err != nil {
			skipped = append(skipped, raw)
			continue
		}
		submitted = append(submitted, job)
	}
	return submitted, skipped
}

func (f *Facade) dispatchFullScan(ctx context.Context, jobID, d string) (string, error) {
	payload, err := json.Marshal(fullScanPayload{JobID: jobID, Domain: d})
	if err != nil {
		return "", err
	}
	taskID := uuid.NewString()
	task := dispatch.Task{
		ID:          taskID,
		Kind:        dispatch.QueueReconFull,
		Queue:       dispatch.QueueReconFull,
		Priority:    dispatch.DefaultPriority,
		Payload:     payload,
		MaxAttempts: 3,
	}
	if err := f.Broker.Enqueue(ctx, task); err != nil {
		return "", err
	}
	if err := f.Store.SetTaskID(ctx, jobID, taskID); err != nil {
		return "", err
	}
	return taskID, nil
}

// ScanResult is the full assembled view for one job.
type ScanResult struct {
	Job           domain.ScanJob
	Subdomains    []domain.Subdomain
	Screenshots   []domain.Screenshot
	WafDetections []domain.WafDetection
	Leaks         []domain.LeakDetection
}

// GetScan returns every persisted fact about a job.
func (f *Facade) GetScan(ctx context.Context, jobID string) (*ScanResult, error) {
	job, err := f.Store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	subs, err := f.Store.ListSubdomains(ctx, jobID)
	if err != nil {
		return nil, err
	}
	shots, err := f.Store.ListScreenshots(ctx, jobID)
	if err != nil {
		return nil, err
	}
	wafs, err := f.Store.ListWafDetections(ctx, jobID)
	if err != nil {
		return nil, err
	}
	leaks, err := f.Store.ListLeakDetections(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return &ScanResult{Job: *job, Subdomains: subs, Screenshots: shots, WafDetections: wafs, Leaks: leaks}, nil
}

// ListScans returns jobs newest first, offset/limit paginated.
func (f *Facade) ListScans(ctx context.Context, limit, offset int) ([]domain.ScanJob, error) {
	return f.Store.ListJobs(ctx, limit, offset)
}

// DeleteScan revokes the job's task, deletes the job row (cascading to
// every dependent row by foreign key), and removes the job's artifact
// directory, in that order. Revocation of
// a task a worker has already reserved is best-effort: this broker has no
// out-of-band kill signal for an in-flight subprocess, so such a task runs
// to completion and its writes target a job row that no longer exists:
// status updates return a NotFoundError and inserts fail the foreign-key
// check, so that task ends in an error.
func (f *Facade) DeleteScan(ctx context.Context, jobID string) error {
	job, err := f.Store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}

	if job.TaskID != "" {
		if err := f.Broker.Revoke(ctx, job.TaskID); err != nil {
			logx.Warnf("api: revoking task %s for job %s: %v", job.TaskID, jobID, err)
		}
	}

	if err := f.Store.DeleteJob(ctx, jobID); err != nil {
		return err
	}

	layout := artifacts.Layout{Root: f.JobsDir, JobID: jobID}
	if err := layout.Remove(); err != nil {
		logx.Warnf("api: removing artifact dir for job %s: %v", jobID, err)
	}
	return nil
}

// ProgressView is the progress endpoint's response shape: dispatcher state
// if a task id was recorded and the dispatcher still has it, else a
// DB-status fallback.
type ProgressView struct {
	JobID    string
	Status   string
	Progress domain.Progress
	FromTask bool
}

// Progress reads dispatcher state for the job's task id, falling back to
// the persisted job status if no task id was recorded or the dispatcher no
// longer has it (e.g. after a restart of an in-memory broker).
func (f *Facade) Progress(ctx context.Context, jobID string) (*ProgressView, error) {
	job, err := f.Store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.TaskID != "" {
		if p, state, ok := f.Broker.Progress(ctx, job.TaskID); ok {
			return &ProgressView{JobID: jobID, Status: string(state), Progress: p, FromTask: true}, nil
		}
	}
	return &ProgressView{JobID: jobID, Status: string(job.Status), FromTask: false}, nil
}

// SubmitLeakScan enforces the selective-scan preconditions: the job must
// have completed, and at least one requested URL must be among the job's
// live URLs. Requested URLs that are not live are dropped from the scan.
func (f *Facade) SubmitLeakScan(ctx context.Context, jobID string, requested []string, mode string) (taskID string, filtered []string, err error) {
	job, err := f.Store.GetJob(ctx, jobID)
	if err != nil {
		return "", nil, err
	}
	if job.Status != domain.ScanStatusCompleted {
		return "", nil, apperrors.NewInvalidArgumentError("job", "scan must be completed before a leak scan")
	}
	if mode != string(leakscan.ModeTiny) && mode != string(leakscan.ModeFull) {
		return "", nil, apperrors.NewInvalidArgumentError("mode", fmt.Sprintf("must be %q or %q", leakscan.ModeTiny, leakscan.ModeFull))
	}

	liveURLs, err := f.Store.LiveURLs(ctx, jobID)
	if err != nil {
		return "", nil, err
	}
	filtered, err = leakscan.Filter(liveURLs, requested)
	if err != nil {
		return "", nil, err
	}

	payload, err := json.Marshal(leakScanPayload{JobID: jobID, URLs: filtered, Mode: mode})
	if err != nil {
		return "", nil, err
	}
	taskID = uuid.NewString()
	task := dispatch.Task{
		ID:          taskID,
		Kind:        dispatch.QueueLeakCheck,
		Queue:       dispatch.QueueLeakCheck,
		Priority:    dispatch.DefaultPriority,
		Payload:     payload,
		MaxAttempts: 3,
	}
	if err := f.Broker.Enqueue(ctx, task); err != nil {
		return "", nil, err
	}
	return taskID, filtered, nil
}

// AddSubdomainParams is the body of the manual-subdomain endpoint.
type AddSubdomainParams struct {
	Subdomain  string
	IsLive     *bool
	HTTPStatus *int
}

// AddSubdomain records a manually supplied hostname, returning a
// ConflictError if it already exists for this job.
func (f *Facade) AddSubdomain(ctx context.Context, jobID string, p AddSubdomainParams) (*domain.Subdomain, error) {
	job, err := f.Store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	name := strings.ToLower(strings.TrimSpace(p.Subdomain))
	if name == "" {
		return nil, apperrors.NewInvalidArgumentError("subdomain", "must not be empty")
	}
	if name != job.Domain && !strings.HasSuffix(name, "."+job.Domain) {
		return nil, apperrors.NewInvalidArgumentError("subdomain", fmt.Sprintf("must end with job domain %q", job.Domain))
	}

	id, err := f.Store.AddSubdomain(ctx, jobID, name)
	if err != nil {
		return nil, err
	}

	if p.IsLive != nil && *p.IsLive {
		upd := repo.ProbeUpdate{Name: name, IsLive: true, HTTPStatus: p.HTTPStatus}
		if err := f.Store.UpdateProbeResults(ctx, jobID, upd); err != nil {
			return nil, err
		}
	}

	return &domain.Subdomain{ID: id, JobID: jobID, Name: name, Source: "manual", Status: domain.SubdomainStatusFound}, nil
}

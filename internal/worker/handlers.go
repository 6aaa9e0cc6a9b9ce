// Package worker wires dispatch.Handler functions for the two task kinds
// the Job API Facade dispatches (full scan, selective leak scan): each
// handler runs the corresponding core package (reconpipeline, leakscan)
// then persists its result through the repository layer, translating
// between the pipeline's plain value types and the stored entities.
package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"reconctl/internal/artifacts"
	"reconctl/internal/core/dispatch"
	"reconctl/internal/core/leakscan"
	"reconctl/internal/core/reconpipeline"
	"reconctl/internal/domain"
	apperrors "reconctl/internal/platform/errors"
	"reconctl/internal/platform/logx"
	"reconctl/internal/platform/urlutil"
	"reconctl/internal/repo"
)

// Dependencies bundles everything a handler needs beyond the task payload.
type Dependencies struct {
	Store   *repo.Store
	JobsDir string

	EnumeratorBinaries map[string]string
	EnumTimeoutS       int

	ProberBinary   string
	ProberTimeoutS int
	ProberRetries  int

	WafBinary   string
	WafTimeoutS int

	ScreenshotBinary   string
	ScreenshotTimeoutS int
	ScreenshotThreads  int

	LeakScanBinary   string
	LeakScanDir      string
	LeakScanThreads  int
	LeakScanTimeoutS int
}

type fullScanPayload struct {
	JobID  string `json:"job_id"`
	Domain string `json:"domain"`
}

type leakScanPayload struct {
	JobID string   `json:"job_id"`
	URLs  []string `json:"urls"`
	Mode  string   `json:"mode"`
}

// RegisterHandlers returns the Handler map a dispatch.Worker should use.
func RegisterHandlers(d Dependencies) map[string]dispatch.Handler {
	return map[string]dispatch.Handler{
		dispatch.QueueReconFull: d.handleFullScan,
		dispatch.QueueLeakCheck: d.handleLeakScan,
	}
}

// handleFullScan runs the recon pipeline end to end and persists every
// stage's output. recon_full retries on any pipeline or persistence failure
// (unlike leak_check's connection/timeout/IO-only classification; payload,
// status-transition and artifact-layout errors are fatal) up to the task's
// MaxAttempts;
// the job is only marked failed once retries are exhausted, so a transient
// stage error doesn't strand the ScanJob in a terminal state while the
// dispatcher still has attempts left.
func (d Dependencies) handleFullScan(ctx context.Context, t dispatch.Task, progress func(domain.Progress)) error {
	var p fullScanPayload
	if err := json.Unmarshal(t.Payload, &p); err != nil {
		return apperrors.NewFatalError(err)
	}

	if err := d.Store.UpdateStatus(ctx, p.JobID, domain.ScanStatusRunning, ""); err != nil {
		return apperrors.NewFatalError(err)
	}

	layout, err := artifacts.New(d.JobsDir, p.JobID)
	if err != nil {
		return apperrors.NewFatalError(err)
	}

	cfg := reconpipeline.Config{
		JobID:  p.JobID,
		Domain: p.Domain,
		OutDir: layout.Dir(),
		Enumerators: []reconpipeline.Enumerator{
			{Name: "subfinder", Argv: []string{d.EnumeratorBinaries["subfinder"], "-d", p.Domain, "-silent"}, Timeout: d.EnumTimeoutS},
			{Name: "assetfinder", Argv: []string{d.EnumeratorBinaries["assetfinder"], p.Domain}, Timeout: d.EnumTimeoutS},
			{Name: "amass", Argv: []string{d.EnumeratorBinaries["amass"], "enum", "-passive", "-d", p.Domain}, Timeout: d.EnumTimeoutS, Graph: true},
		},
		ProberBinary:      d.ProberBinary,
		ProberTimeout:     d.ProberTimeoutS,
		ProberRetries:     d.ProberRetries,
		WafBinary:         d.WafBinary,
		WafTimeout:        d.WafTimeoutS,
		ScreenshotBinary:  d.ScreenshotBinary,
		ScreenshotTimeout: d.ScreenshotTimeoutS,
		ScreenshotThreads: d.ScreenshotThreads,
		Progress: func(pct int, msg string) {
			progress(domain.Progress{Current: pct, Total: 100, Status: msg, JobID: p.JobID})
		},
	}

	res, runErr := reconpipeline.Run(ctx, cfg)
	if runErr != nil {
		return d.failOrRetryFullScan(ctx, p.JobID, t, runErr)
	}

	if err := d.persistResult(ctx, p.JobID, res); err != nil {
		return d.failOrRetryFullScan(ctx, p.JobID, t, err)
	}

	return d.Store.UpdateStatus(ctx, p.JobID, domain.ScanStatusCompleted, "")
}

// failOrRetryFullScan marks the job failed and returns a FatalError only on
// the task's last attempt; otherwise it leaves the job's status untouched
// (still "running") and returns a RetryablePipeline error so the dispatcher
// reschedules it with backoff.
func (d Dependencies) failOrRetryFullScan(ctx context.Context, jobID string, t dispatch.Task, cause error) error {
	if t.Attempt < t.MaxAttempts {
		return apperrors.NewRetryableError(apperrors.RetryablePipeline, cause)
	}
	_ = d.Store.UpdateStatus(ctx, jobID, domain.ScanStatusFailed, cause.Error())
	return apperrors.NewFatalError(cause)
}

func (d Dependencies) persistResult(ctx context.Context, jobID string, res *reconpipeline.Result) error {
	if err := d.Store.InsertSubdomains(ctx, jobID, res.Subdomains, "enumerate"); err != nil {
		return err
	}

	// A hostname the prober emitted no record for is assumed dead.
	for _, name := range res.Subdomains {
		if _, ok := res.Probes[name]; ok {
			continue
		}
		if err := d.Store.UpdateProbeResults(ctx, jobID, repo.ProbeUpdate{Name: name, IsLive: false}); err != nil {
			logx.Warnf("worker: marking %s dead: %v", name, err)
		}
	}

	for host, rec := range res.Probes {
		upd := repo.ProbeUpdate{
			Name: host, IsLive: rec.IsLive(), URL: rec.URL, Title: rec.Title, Webserver: rec.Webserver,
			FinalURL: rec.FinalURL, ResponseTime: rec.ResponseTime, CDNName: rec.CDNName,
			ContentType: rec.ContentType, Host: rec.Host, ChainStatusCodes: rec.ChainStatusCodes,
			IPv4Addresses: rec.IPv4, IPv6Addresses: rec.IPv6,
		}
		if rec.HasStatusCode {
			sc := rec.StatusCode
			upd.HTTPStatus = &sc
		}
		if rec.HasContentLength {
			cl := rec.ContentLength
			upd.ContentLength = &cl
		}
		if err := d.Store.UpdateProbeResults(ctx, jobID, upd); err != nil {
			logx.Warnf("worker: persisting probe result for %s: %v", host, err)
			continue
		}
		if len(rec.Tech) > 0 {
			if id, ok, err := d.Store.SubdomainIDByName(ctx, jobID, host); err == nil && ok {
				if err := d.Store.InsertTechnologies(ctx, id, rec.Tech); err != nil {
					logx.Warnf("worker: persisting technologies for %s: %v", host, err)
				}
			}
		}
	}

	var wafDets []domain.WafDetection
	for _, w := range res.WafResults {
		wafDets = append(wafDets, domain.WafDetection{JobID: jobID, URL: w.URL, Detected: w.Detected, Firewall: w.Firewall, Manufacturer: w.Manufacturer})
	}
	if err := d.Store.InsertWafDetections(ctx, wafDets); err != nil {
		return err
	}

	layout, err := artifacts.New(d.JobsDir, jobID)
	if err != nil {
		return err
	}
	var shots []domain.Screenshot
	for _, s := range res.Screenshots {
		shots = append(shots, domain.Screenshot{JobID: jobID, URL: s.URL, Filename: s.Filename, FilePath: layout.ShotsDir() + "/" + s.Filename})
	}
	return d.Store.InsertScreenshots(ctx, shots)
}

// handleLeakScan runs the Selective Leak Scanner and persists its
// findings. A retryable error (connection/timeout/IO) propagates
// unmodified so the dispatcher applies backoff; any other failure is
// terminal for the task only — the underlying ScanJob's status is
// untouched.
func (d Dependencies) handleLeakScan(ctx context.Context, t dispatch.Task, progress func(domain.Progress)) error {
	var p leakScanPayload
	if err := json.Unmarshal(t.Payload, &p); err != nil {
		return apperrors.NewFatalError(err)
	}

	layout, err := artifacts.New(d.JobsDir, p.JobID)
	if err != nil {
		return apperrors.NewFatalError(err)
	}

	// Re-derive the job's live-host set from the store rather than trusting
	// the task payload as both "live" and "requested": the Job API Facade
	// already filtered p.URLs against it once at submission time, but a
	// handler that re-used the payload for both sides of leakscan.Filter
	// would make that precondition check a no-op for any other path that
	// ever enqueues a leak_check task directly.
	liveURLs, err := d.Store.LiveURLs(ctx, p.JobID)
	if err != nil {
		return apperrors.NewFatalError(err)
	}

	cfg := leakscan.Config{
		JobID: p.JobID, OutDir: layout.Dir(),
		LiveURLs: liveURLs, RequestedURLs: p.URLs, Mode: leakscan.Mode(p.Mode),
		BinaryDir: d.LeakScanDir, Binary: d.LeakScanBinary,
		Threads: d.LeakScanThreads, Timeout: d.LeakScanTimeoutS,
	}

	progress(domain.Progress{Status: fmt.Sprintf("scanning %d urls (%s)", len(p.URLs), p.Mode), JobID: p.JobID})

	res, err := leakscan.Run(ctx, cfg)
	if err != nil {
		return err
	}

	var leaks []domain.LeakDetection
	for _, l := range res.Leaks {
		leaks = append(leaks, domain.LeakDetection{
			JobID: p.JobID, BaseURL: urlutil.SchemeHost(l.URL), LeakURL: l.URL,
			FileType: urlutil.ExtractExtension(l.URL),
			Severity: domain.Severity(l.Severity), FileSize: l.Size, HTTPStatus: l.StatusCode,
		})
	}
	return d.Store.InsertLeakDetections(ctx, leaks)
}

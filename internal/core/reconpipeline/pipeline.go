// Package reconpipeline implements the per-job scan pipeline:
// enumerate -> probe -> fingerprint-WAF -> capture-screenshots, with
// progress reporting and per-stage error policy. The shape is a concurrent
// group of enumerator steps followed by sequential stages, each wrapped in
// a timeout and reporting through an injected progress function.
package reconpipeline

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"reconctl/internal/core/mergesink"
	"reconctl/internal/core/parsers"
	"reconctl/internal/core/runner"
	apperrors "reconctl/internal/platform/errors"
	"reconctl/internal/platform/logx"
	"reconctl/internal/platform/netutil"
	"reconctl/internal/platform/taskctx"
	"reconctl/internal/platform/urlutil"
)

// ProgressFunc is the capability injected into the pipeline to report
// (percent, message) at each stage boundary. A nil ProgressFunc is a no-op.
type ProgressFunc func(percent int, message string)

// Enumerator describes one of the three concurrent subdomain sources run
// during the enumerate stage.
type Enumerator struct {
	Name    string
	Argv    []string
	Timeout int // seconds
	// Graph reports whether this enumerator's raw output must be run
	// through the graph-form parser (Enumerator B) before merging.
	Graph bool
}

// Config is everything the pipeline needs for one job run.
type Config struct {
	JobID       string
	Domain      string // apex domain, lowercased
	OutDir      string // jobs/{job_id}
	Enumerators []Enumerator

	ProberBinary  string
	ProberTimeout int
	ProberRetries int

	WafBinary  string
	WafTimeout int

	ScreenshotBinary  string
	ScreenshotTimeout int
	ScreenshotThreads int

	Progress ProgressFunc
}

// Result accumulates everything the pipeline produced, for the worker to
// persist via the repository layer.
type Result struct {
	Subdomains  []string
	Probes      map[string]parsers.ProbeRecord // keyed by hostname
	WafResults  []parsers.WafRecord
	Screenshots []Screenshot
	Errors      []string
}

// Screenshot is one best-effort filename-decoded capture.
type Screenshot struct {
	Filename string
	URL      string // best-effort decode, display-only (see DecodeScreenshotFilename)
}

func (c *Config) report(pct int, msg string) {
	if c.Progress != nil {
		c.Progress(pct, msg)
	}
}

// Run drives the four mandatory stages in order. It never returns an error
// for a recoverable per-stage failure (WAF, screenshots); it returns an
// error only when the job as a whole must transition to failed (no
// subdomains found at all, or the prober stage failing outright).
func Run(ctx context.Context, cfg Config) (*Result, error) {
	res := &Result{Probes: make(map[string]parsers.ProbeRecord)}

	if err := os.MkdirAll(cfg.OutDir, 0o755); err != nil {
		return nil, err
	}

	if err := stageEnumerate(ctx, cfg, res); err != nil {
		return res, err
	}
	cfg.report(40, "subdomain enumeration complete")

	if err := stageProbe(ctx, cfg, res); err != nil {
		return res, err
	}
	cfg.report(75, "http probe complete")

	// Past this point every remaining stage is best-effort (the dispatcher's
	// soft timeout is a signal the task may self-terminate cleanly): once it
	// elapses, stop advancing and hand back whatever was already gathered
	// rather than risk the hard timeout killing a stage mid-subprocess.
	if taskctx.SoftDeadlineExceeded(ctx) {
		cfg.report(100, "soft deadline reached; skipping waf and screenshot stages")
		return res, nil
	}

	stageWAF(ctx, cfg, res)
	cfg.report(85, "waf fingerprint complete")

	if taskctx.SoftDeadlineExceeded(ctx) {
		cfg.report(100, "soft deadline reached; skipping screenshot stage")
		return res, nil
	}

	stageScreenshots(ctx, cfg, res)
	cfg.report(100, "screenshots complete")

	return res, nil
}

// --- stage 1: enumerate -----------------------------------------------------

func stageEnumerate(ctx context.Context, cfg Config, res *Result) error {
	cfg.report(10, "starting subdomain enumeration")

	subsFile := filepath.Join(cfg.OutDir, "subs.txt")
	amassRaw := filepath.Join(cfg.OutDir, "amass_raw.txt")
	amassFiltered := filepath.Join(cfg.OutDir, "amass.txt")

	var group errgroup.Group
	var mu sync.Mutex

	for _, enum := range cfg.Enumerators {
		enum := enum
		group.Go(func() error {
			runCtx, cancel := runner.WithTimeout(ctx, enum.Timeout)
			defer cancel()

			out := make(chan string, 256)
			done := make(chan error, 1)
			go func() {
				defer close(out)
				done <- runner.Stream(runCtx, runner.Options{Argv: enum.Argv, Timeout: 0}, out)
			}()

			var lines []string
			for line := range out {
				lines = append(lines, line)
			}
			runErr := <-done

			if enum.Graph {
				if err := os.WriteFile(amassRaw, []byte(strings.Join(lines, "\n")), 0o644); err != nil {
					logx.Warnf("reconpipeline: writing amass_raw.txt: %v", err)
				}
				sc := bufio.NewScanner(strings.NewReader(strings.Join(lines, "\n")))
				sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
				filtered := parsers.MixedHostnames(sc, cfg.Domain)
				if err := mergesink.Merge(amassFiltered, filtered); err != nil {
					logx.Warnf("reconpipeline: merging amass.txt: %v", err)
				}
				lines = filtered
			} else {
				sc := bufio.NewScanner(strings.NewReader(strings.Join(lines, "\n")))
				sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
				lines = parsers.Hostnames(sc)
			}

			if err := mergesink.Merge(subsFile, lines); err != nil {
				logx.Warnf("reconpipeline: merging subs.txt: %v", err)
				return nil
			}

			// A tool-level failure (missing binary, timeout, non-zero exit)
			// is tolerated here; only total absence of results across every
			// enumerator is fatal for the job, checked once all have joined.
			// Never returned as this goroutine's error: group.Wait would
			// then report it as the stage's error.
			if runErr != nil {
				mu.Lock()
				res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", enum.Name, runErr))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = group.Wait()

	subs, err := mergesink.Read(subsFile)
	if err != nil {
		return err
	}

	// Non-graph enumerators (subfinder, assetfinder) are not apex-gated by
	// their own parser the way amass's graph form is; scope every hostname
	// here so a tool returning an out-of-scope result never reaches storage.
	scope := netutil.NewScope(cfg.Domain, "subdomains")
	inScope := subs[:0]
	for _, s := range subs {
		if scope.AllowsDomain(s) {
			inScope = append(inScope, s)
		}
	}
	subs = inScope

	sort.Strings(subs)
	res.Subdomains = subs

	if len(subs) == 0 {
		return apperrors.NewFatalError(errors.New("no subdomains found"))
	}
	return nil
}

// --- stage 2: probe ----------------------------------------------------------

func stageProbe(ctx context.Context, cfg Config, res *Result) error {
	if cfg.ProberBinary == "" {
		return apperrors.NewFatalError(errors.New("no http prober configured"))
	}

	runCtx, cancel := runner.WithTimeout(ctx, cfg.ProberTimeout)
	defer cancel()

	stdin := strings.NewReader(strings.Join(res.Subdomains, "\n"))
	argv := []string{
		cfg.ProberBinary, "-json", "-silent",
		"-retries", fmt.Sprintf("%d", cfg.ProberRetries),
		"-timeout", "30",
		"-follow-redirects",
	}
	result, err := runner.Run(runCtx, runner.Options{Argv: argv, Stdin: stdin, Timeout: 0})
	if err != nil && result.Stdout == "" {
		return apperrors.NewFatalError(fmt.Errorf("http prober failed: %w", err))
	}

	liveFile := filepath.Join(cfg.OutDir, "live.txt")
	if err := os.WriteFile(liveFile, []byte(result.Stdout), 0o644); err != nil {
		logx.Warnf("reconpipeline: writing live.txt: %v", err)
	}

	sc := bufio.NewScanner(strings.NewReader(result.Stdout))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	records, parseErrs := parsers.ProbeRecords(sc)
	for _, e := range parseErrs {
		logx.Debugf("reconpipeline: probe parse error: %v", e)
	}

	for _, rec := range records {
		host := rec.Host
		if host == "" {
			host = hostFromURL(rec.URL)
		}
		res.Probes[host] = rec
	}

	if len(res.Probes) == 0 {
		return apperrors.NewFatalError(errors.New("no live hosts found"))
	}

	var liveURLs []string
	for _, rec := range res.Probes {
		if rec.IsLive() {
			liveURLs = append(liveURLs, rec.URL)
		}
	}
	sort.Strings(liveURLs)
	if err := mergesink.Merge(filepath.Join(cfg.OutDir, "live_urls.txt"), liveURLs); err != nil {
		logx.Warnf("reconpipeline: writing live_urls.txt: %v", err)
	}

	return nil
}

func hostFromURL(u string) string {
	u = strings.TrimPrefix(u, "https://")
	u = strings.TrimPrefix(u, "http://")
	if idx := strings.IndexAny(u, "/:"); idx != -1 {
		u = u[:idx]
	}
	return u
}

// --- stage 3: fingerprint WAF ------------------------------------------------

func stageWAF(ctx context.Context, cfg Config, res *Result) {
	if cfg.WafBinary == "" {
		res.Errors = append(res.Errors, "waf fingerprint skipped: no binary configured")
		return
	}

	urlsFile := filepath.Join(cfg.OutDir, "live_urls.txt")
	outFile := filepath.Join(cfg.OutDir, "waf_results.json")

	runCtx, cancel := runner.WithTimeout(ctx, cfg.WafTimeout)
	defer cancel()

	argv := []string{cfg.WafBinary, "-l", urlsFile, "-o", outFile, "-json"}
	_, err := runner.Run(runCtx, runner.Options{Argv: argv, Timeout: 0})
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("waf fingerprint: %v", err))
		return
	}

	data, err := os.ReadFile(outFile)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("waf fingerprint: reading output: %v", err))
		return
	}

	records, err := parsers.WafRecords(data)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("waf fingerprint: parsing output: %v", err))
		return
	}
	res.WafResults = records
}

// --- stage 4: screenshots -----------------------------------------------------

func stageScreenshots(ctx context.Context, cfg Config, res *Result) {
	if cfg.ScreenshotBinary == "" {
		res.Errors = append(res.Errors, "screenshot capture skipped: no binary configured")
		return
	}

	var liveURLs []string
	for _, rec := range res.Probes {
		if rec.IsLive() && !urlutil.ShouldSkipByExtension(rec.URL, urlutil.LowPriorityExtensions) {
			liveURLs = append(liveURLs, rec.URL)
		}
	}
	sort.Strings(liveURLs)

	inputFile, err := filepath.Abs(filepath.Join(cfg.OutDir, "urls_for_gowitness.txt"))
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("screenshots: %v", err))
		return
	}
	if err := os.WriteFile(inputFile, []byte(strings.Join(liveURLs, "\n")), 0o644); err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("screenshots: writing input: %v", err))
		return
	}

	shotsDir, err := filepath.Abs(filepath.Join(cfg.OutDir, "shots"))
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("screenshots: %v", err))
		return
	}
	if err := os.MkdirAll(shotsDir, 0o755); err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("screenshots: %v", err))
		return
	}

	runCtx, cancel := runner.WithTimeout(ctx, cfg.ScreenshotTimeout)
	defer cancel()

	threads := cfg.ScreenshotThreads
	if threads <= 0 {
		threads = 4
	}
	argv := []string{
		cfg.ScreenshotBinary, "file", "-f", inputFile,
		"-P", shotsDir,
		"--threads", fmt.Sprintf("%d", threads),
		"--timeout", "30",
	}
	if _, err := runner.Run(runCtx, runner.Options{Argv: argv, Timeout: 0}); err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("screenshots: %v", err))
		return
	}

	entries, err := os.ReadDir(shotsDir)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("screenshots: listing output dir: %v", err))
		return
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if ext != ".png" && ext != ".jpg" && ext != ".jpeg" {
			continue
		}
		res.Screenshots = append(res.Screenshots, Screenshot{
			Filename: name,
			URL:      DecodeScreenshotFilename(name),
		})
	}
}

// DecodeScreenshotFilename is a best-effort, display-only inverse of the
// screenshot tool's "https-host-path.png" filename encoding. It is lossy —
// a literal dot in a hostname is indistinguishable from a dot the encoder
// injected as a path separator — and must never be used as a join key.
// Screenshot.URL holds this decoded value; screenshots are stored without
// a link to a subdomain row (see repo.InsertScreenshots).
func DecodeScreenshotFilename(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	parts := strings.SplitN(base, "-", 2)
	if len(parts) != 2 {
		return ""
	}
	scheme, rest := parts[0], parts[1]
	if scheme != "http" && scheme != "https" {
		return ""
	}
	rest = strings.ReplaceAll(rest, "-", ".")
	return scheme + "://" + rest
}

// Package leakscan implements the Selective Leak Scanner: an on-demand
// subsystem that filters a caller-supplied URL set against a job's live
// hosts, invokes the path-brute tool in a chosen mode, and classifies
// findings. It never runs as part of the mandatory pipeline (see
// reconpipeline) — only through an explicit API trigger.
package leakscan

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"reconctl/internal/core/parsers"
	"reconctl/internal/core/runner"
	apperrors "reconctl/internal/platform/errors"
	"reconctl/internal/platform/logx"
)

// Mode selects the path-wordlist size: tiny is ~10^2 paths, full ~10^3.
type Mode string

const (
	ModeTiny Mode = "tiny"
	ModeFull Mode = "full"
)

// Config is everything one selective scan invocation needs.
type Config struct {
	JobID         string
	OutDir        string   // jobs/{job_id}
	LiveURLs      []string // the job's live-host URL set
	RequestedURLs []string
	Mode          Mode

	// BinaryDir is the tool's own installation directory; it is invoked
	// from there because it depends on co-located wordlist files.
	BinaryDir string
	Binary    string
	Threads   int
	Timeout   int // seconds
}

// Result is the outcome of one selective scan.
type Result struct {
	URLsScanned int
	Leaks       []parsers.LeakRecord
	Mode        Mode
}

// Filter applies the selective-scan preconditions: each requested URL must appear in
// liveURLs; URLs not present are silently dropped. An empty result after
// filtering is an InvalidArgument error.
func Filter(liveURLs, requested []string) ([]string, error) {
	live := make(map[string]struct{}, len(liveURLs))
	for _, u := range liveURLs {
		live[u] = struct{}{}
	}

	var filtered []string
	for _, u := range requested {
		if _, ok := live[u]; ok {
			filtered = append(filtered, u)
		}
	}
	if len(filtered) == 0 {
		return nil, apperrors.NewInvalidArgumentError("urls", "none of the requested URLs are in the job's live set")
	}
	return filtered, nil
}

// Run filters, invokes the path-brute tool, parses, and merges its output.
// Retryable failures (connection/timeout/IO) are surfaced via
// apperrors.RetryableError so the dispatcher can apply backoff; any other
// tool failure is a terminal task failure (the underlying job's status is
// not affected).
func Run(ctx context.Context, cfg Config) (*Result, error) {
	filtered, err := Filter(cfg.LiveURLs, cfg.RequestedURLs)
	if err != nil {
		return nil, err
	}

	urlsFile := filepath.Join(cfg.OutDir, "urls_no_waf.txt")
	if err := os.MkdirAll(filepath.Dir(urlsFile), 0o755); err != nil {
		return nil, apperrors.NewFatalError(err)
	}
	if err := os.WriteFile(urlsFile, []byte(strings.Join(filtered, "\n")), 0o644); err != nil {
		return nil, apperrors.NewFatalError(err)
	}
	absURLs, err := filepath.Abs(urlsFile)
	if err != nil {
		return nil, apperrors.NewFatalError(err)
	}

	resultsDir := filepath.Join(cfg.OutDir, "leaks_results")
	if err := os.MkdirAll(resultsDir, 0o755); err != nil {
		return nil, apperrors.NewFatalError(err)
	}
	absResults, err := filepath.Abs(resultsDir)
	if err != nil {
		return nil, apperrors.NewFatalError(err)
	}

	mode := cfg.Mode
	if mode == "" {
		mode = ModeTiny
	}

	runCtx, cancel := runner.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	threads := cfg.Threads
	if threads <= 0 {
		threads = 10
	}
	argv := []string{
		cfg.Binary, "-mode", string(mode),
		"-l", absURLs,
		"-o", absResults,
		"-t", fmt.Sprintf("%d", threads),
	}
	res, runErr := runner.Run(runCtx, runner.Options{Argv: argv, Dir: cfg.BinaryDir, Timeout: 0})
	if runErr != nil && res.Stdout == "" {
		return nil, classifyFailure(runErr)
	}

	sc := bufio.NewScanner(strings.NewReader(res.Stdout))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	stdoutRecords, parseErrs := parsers.PathBruteStdout(sc)
	for _, e := range parseErrs {
		logx.Debugf("leakscan: stdout parse error: %v", e)
	}

	var csvRecordSets [][]parsers.LeakRecord
	entries, err := os.ReadDir(resultsDir)
	if err == nil {
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".csv") {
				continue
			}
			path := filepath.Join(resultsDir, e.Name())
			f, err := os.Open(path)
			if err != nil {
				continue
			}
			records, csvErrs := parsers.PathBruteCSV(path, f)
			f.Close()
			for _, e := range csvErrs {
				logx.Debugf("leakscan: csv parse error: %v", e)
			}
			csvRecordSets = append(csvRecordSets, records)
		}
	}

	merged := parsers.MergePathBrute(stdoutRecords, csvRecordSets...)
	sort.Slice(merged, func(i, j int) bool { return merged[i].URL < merged[j].URL })

	return &Result{
		URLsScanned: len(filtered),
		Leaks:       merged,
		Mode:        mode,
	}, nil
}

func classifyFailure(err error) error {
	if apperrors.IsToolError(err, apperrors.ToolTimeout) {
		return apperrors.NewRetryableError(apperrors.RetryableTimeout, err)
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "connection") {
		return apperrors.NewRetryableError(apperrors.RetryableConnection, err)
	}
	if strings.Contains(msg, "i/o") || strings.Contains(msg, "no such file") {
		return apperrors.NewRetryableError(apperrors.RetryableIO, err)
	}
	return apperrors.NewFatalError(err)
}

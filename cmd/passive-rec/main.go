package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"reconctl/internal/core/reconpipeline"
	"reconctl/internal/platform/config"
	"reconctl/internal/platform/logx"
)

// buildEnumerators maps the CLI's free-form -tools CSV onto the fixed
// enumerator set the pipeline knows how to run; a tool name outside that
// set is simply not an enumerator stage input.
func buildEnumerators(tools []string, timeoutS int) []reconpipeline.Enumerator {
	want := make(map[string]bool, len(tools))
	for _, t := range tools {
		want[t] = true
	}

	var enums []reconpipeline.Enumerator
	if want["subfinder"] {
		enums = append(enums, reconpipeline.Enumerator{Name: "subfinder", Argv: []string{"subfinder", "-d", "{domain}", "-silent"}, Timeout: timeoutS})
	}
	if want["assetfinder"] {
		enums = append(enums, reconpipeline.Enumerator{Name: "assetfinder", Argv: []string{"assetfinder", "{domain}"}, Timeout: timeoutS})
	}
	if want["amass"] {
		enums = append(enums, reconpipeline.Enumerator{Name: "amass", Argv: []string{"amass", "enum", "-passive", "-d", "{domain}"}, Timeout: timeoutS, Graph: true})
	}
	return enums
}

// resolveArgv substitutes the {domain} placeholder now that Target is known.
func resolveArgv(enums []reconpipeline.Enumerator, domain string) []reconpipeline.Enumerator {
	out := make([]reconpipeline.Enumerator, len(enums))
	for i, e := range enums {
		argv := make([]string, len(e.Argv))
		for j, a := range e.Argv {
			if a == "{domain}" {
				a = domain
			}
			argv[j] = a
		}
		e.Argv = argv
		out[i] = e
	}
	return out
}

func main() {
	cfg := config.ParseFlags()

	logx.SetVerbosity(cfg.Verbosity)
	logx.Infof("starting passive-rec target=%s outdir=%s tools=%v active=%v", cfg.Target, cfg.OutDir, cfg.Tools, cfg.Active)

	if cfg.Target == "" {
		fmt.Fprintln(os.Stderr, "usage: -target example.com")
		flag.PrintDefaults()
		os.Exit(1)
	}

	// The proxy env vars are inherited by every tool the pipeline spawns.
	if err := config.ApplyProxy(cfg.Proxy); err != nil {
		logx.Errorf("%v", err)
		os.Exit(1)
	}
	if err := config.ConfigureRootCAs(cfg.ProxyCACert); err != nil {
		logx.Errorf("%v", err)
		os.Exit(1)
	}

	enumerators := resolveArgv(buildEnumerators(cfg.Tools, cfg.TimeoutS), cfg.Target)

	pcfg := reconpipeline.Config{
		JobID:             "local",
		Domain:            cfg.Target,
		OutDir:            cfg.OutDir,
		Enumerators:       enumerators,
		ProberBinary:      "httpx",
		ProberTimeout:     cfg.TimeoutS,
		ProberRetries:     3,
		WafBinary:         "wafw00f",
		WafTimeout:        cfg.TimeoutS,
		ScreenshotBinary:  "gowitness",
		ScreenshotTimeout: cfg.TimeoutS * 2,
		ScreenshotThreads: cfg.Workers,
		Progress: func(pct int, msg string) {
			logx.V(1, "[%3d%%] %s", pct, msg)
		},
	}

	if !cfg.Active {
		pcfg.WafBinary = ""
		pcfg.ScreenshotBinary = ""
	}

	res, err := reconpipeline.Run(context.Background(), pcfg)
	if err != nil {
		logx.Errorf("%v", err)
		os.Exit(1)
	}

	for _, e := range res.Errors {
		logx.Warnf("%s", e)
	}
	logx.Infof("done: %d subdomains, %d probed, %d screenshots. Artifacts in %s",
		len(res.Subdomains), len(res.Probes), len(res.Screenshots), cfg.OutDir)
}

package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// ServiceConfig is the environment configuration for the service binaries
// (cmd/reconserver, cmd/reconworker): DB path, broker address, jobs
// directory, tool binaries/timeouts, and the leak scanner's defaults. It is
// a separate struct from the CLI's flag-driven Config and shares no fields
// with it.
type ServiceConfig struct {
	ListenAddr string
	DBPath     string
	RedisAddr  string // empty means use the in-memory broker
	JobsDir    string

	EnumeratorBinaries map[string]string // name -> path, e.g. "subfinder" -> "/usr/local/bin/subfinder"
	EnumeratorTimeoutS int

	ProberBinary   string
	ProberTimeoutS int
	ProberRetries  int

	WafBinary   string
	WafTimeoutS int

	ScreenshotBinary   string
	ScreenshotTimeoutS int
	ScreenshotThreads  int

	LeakScanEnabled  bool
	LeakScanMode     string
	LeakScanThreads  int
	LeakScanTimeoutS int
	LeakScanBinary   string
	LeakScanDir      string // the tool's own installation directory

	WorkerQueues []string
}

// LoadServiceConfig loads a ".env" file if present (via godotenv, matching
// the retrieved pack's convention for local development) then reads every
// field from the environment, applying the defaults a fresh checkout needs
// to at least start.
func LoadServiceConfig() ServiceConfig {
	_ = godotenv.Load() // optional; service runs fine from real env vars alone

	cfg := ServiceConfig{
		ListenAddr:         envOr("RECONCTL_LISTEN_ADDR", ":8080"),
		DBPath:             envOr("RECONCTL_DB_PATH", "./reconctl.db"),
		RedisAddr:          os.Getenv("RECONCTL_REDIS_ADDR"),
		JobsDir:            envOr("RECONCTL_JOBS_DIR", "./jobs"),
		EnumeratorTimeoutS: envInt("RECONCTL_ENUM_TIMEOUT_S", 300),

		ProberBinary:   envOr("RECONCTL_PROBER_BIN", "httpx"),
		ProberTimeoutS: envInt("RECONCTL_PROBER_TIMEOUT_S", 300),
		ProberRetries:  envInt("RECONCTL_PROBER_RETRIES", 3),

		WafBinary:   envOr("RECONCTL_WAF_BIN", "wafw00f"),
		WafTimeoutS: envInt("RECONCTL_WAF_TIMEOUT_S", 180),

		ScreenshotBinary:   envOr("RECONCTL_SCREENSHOT_BIN", "gowitness"),
		ScreenshotTimeoutS: envInt("RECONCTL_SCREENSHOT_TIMEOUT_S", 600),
		ScreenshotThreads:  envInt("RECONCTL_SCREENSHOT_THREADS", 4),

		LeakScanEnabled:  envBool("RECONCTL_LEAKSCAN_ENABLED", true),
		LeakScanMode:     envOr("RECONCTL_LEAKSCAN_MODE", "tiny"),
		LeakScanThreads:  envInt("RECONCTL_LEAKSCAN_THREADS", 10),
		LeakScanTimeoutS: envInt("RECONCTL_LEAKSCAN_TIMEOUT_S", 300),
		LeakScanBinary:   envOr("RECONCTL_LEAKSCAN_BIN", "sourceleakhacker"),
		LeakScanDir:      envOr("RECONCTL_LEAKSCAN_DIR", "."),
	}

	cfg.EnumeratorBinaries = map[string]string{
		"subfinder":   envOr("RECONCTL_SUBFINDER_BIN", "subfinder"),
		"amass":       envOr("RECONCTL_AMASS_BIN", "amass"),
		"assetfinder": envOr("RECONCTL_ASSETFINDER_BIN", "assetfinder"),
	}

	if q := os.Getenv("RECONCTL_WORKER_QUEUES"); q != "" {
		cfg.WorkerQueues = splitClean(q)
	} else {
		cfg.WorkerQueues = []string{"recon_full", "recon_enum", "recon_check", "recon_screenshot", "waf_check", "leak_check"}
	}

	return cfg
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func splitClean(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

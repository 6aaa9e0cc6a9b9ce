package parsers

import (
	"bufio"
	"encoding/csv"
	"io"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"reconctl/internal/domain"
	apperrors "reconctl/internal/platform/errors"
)

// LeakRecord is one parsed path-brute finding. Status-404 records are never
// produced by this package: 404 lines and rows are skipped without a record
// or a ParseError.
type LeakRecord struct {
	StatusCode  int
	Size        int64
	Time        string
	ContentType string
	URL         string
	Severity    Severity
}

// Severity classifies a LeakRecord by status code and URL path.
type Severity = domain.Severity

const (
	SeverityLow    = domain.SeverityLow
	SeverityMedium = domain.SeverityMedium
	SeverityHigh   = domain.SeverityHigh
)

var (
	upgradeHigh   = []string{".sql", ".env", ".git/config", "backup", "database"}
	upgradeMedium = []string{".zip", ".tar", ".rar", ".bak", ".7z"}
)

// SeverityFor is a pure function of (status, url) implementing the base
// table (200->high, 403->medium, other->low) followed unconditionally by
// the upgrade rules — including the documented dead branch where a 200
// (already high) is not downgraded by failing to match an upgrade rule.
func SeverityFor(status int, url string) Severity {
	var sev Severity
	switch status {
	case 200:
		sev = SeverityHigh
	case 403:
		sev = SeverityMedium
	default:
		sev = SeverityLow
	}

	lowered := strings.ToLower(url)
	matchesAny := func(needles []string) bool {
		for _, n := range needles {
			if strings.Contains(lowered, n) {
				return true
			}
		}
		return false
	}

	if matchesAny(upgradeHigh) {
		if sev == SeverityMedium {
			sev = SeverityHigh
		} else if sev == SeverityLow {
			sev = SeverityMedium
		}
	} else if matchesAny(upgradeMedium) {
		if sev == SeverityLow {
			sev = SeverityMedium
		}
	}
	return sev
}

// stdoutLineRe matches "[<code>] <size> <time>s <content-type> <url>".
var stdoutLineRe = regexp.MustCompile(`^\[(\d+)\]\s+(\d+)\s+([\d.]+)s\s+(\S+)\s+(\S+)$`)

// PathBruteStdout parses the live stdout stream of the path-brute tool.
// Status-404 lines are skipped (they are never leaks).
func PathBruteStdout(r *bufio.Scanner) (records []LeakRecord, errs []error) {
	for r.Scan() {
		line := strings.TrimSpace(r.Text())
		if line == "" {
			continue
		}
		m := stdoutLineRe.FindStringSubmatch(line)
		if m == nil {
			errs = append(errs, apperrors.NewParseError("pathbrute", line, "unrecognized line format"))
			continue
		}

		code, err := strconv.Atoi(m[1])
		if err != nil {
			errs = append(errs, apperrors.NewParseError("pathbrute", line, "bad status code"))
			continue
		}
		if code == 404 {
			continue
		}
		size, _ := strconv.ParseInt(m[2], 10, 64)
		url := m[5]

		records = append(records, LeakRecord{
			StatusCode:  code,
			Size:        size,
			Time:        m[3] + "s",
			ContentType: m[4],
			URL:         url,
			Severity:    SeverityFor(code, url),
		})
	}
	return records, errs
}

// PathBruteCSV parses one per-status CSV file (columns Code,Length,Time,Type,URL).
// A file whose name starts with "404" is ignored entirely: it yields no
// records and no errors.
func PathBruteCSV(path string, r io.Reader) (records []LeakRecord, errs []error) {
	base := strings.ToLower(filepath.Base(path))
	if strings.HasPrefix(base, "404") {
		return nil, nil
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	first := true
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			errs = append(errs, apperrors.NewParseError("pathbrute-csv", path, err.Error()))
			break
		}
		if first {
			first = false
			if len(row) > 0 && strings.EqualFold(strings.TrimSpace(row[0]), "Code") {
				continue // header row
			}
		}
		if len(row) < 5 {
			errs = append(errs, apperrors.NewParseError("pathbrute-csv", strings.Join(row, ","), "too few columns"))
			continue
		}

		code, err := strconv.Atoi(strings.TrimSpace(row[0]))
		if err != nil {
			errs = append(errs, apperrors.NewParseError("pathbrute-csv", strings.Join(row, ","), "bad status code"))
			continue
		}
		if code == 404 {
			continue
		}
		size, _ := strconv.ParseInt(strings.TrimSpace(row[1]), 10, 64)
		url := strings.TrimSpace(row[4])

		records = append(records, LeakRecord{
			StatusCode:  code,
			Size:        size,
			Time:        strings.TrimSpace(row[2]),
			ContentType: strings.TrimSpace(row[3]),
			URL:         url,
			Severity:    SeverityFor(code, url),
		})
	}
	return records, errs
}

// MergePathBrute combines a stdout parse with the per-status CSV parses:
// stdout entries win, CSV supplies any URL not already present.
func MergePathBrute(stdout []LeakRecord, csvRecords ...[]LeakRecord) []LeakRecord {
	seen := make(map[string]struct{}, len(stdout))
	merged := make([]LeakRecord, 0, len(stdout))
	for _, r := range stdout {
		if _, ok := seen[r.URL]; ok {
			continue
		}
		seen[r.URL] = struct{}{}
		merged = append(merged, r)
	}
	for _, set := range csvRecords {
		for _, r := range set {
			if _, ok := seen[r.URL]; ok {
				continue
			}
			seen[r.URL] = struct{}{}
			merged = append(merged, r)
		}
	}
	return merged
}

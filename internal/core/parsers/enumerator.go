// Package parsers normalizes the line-oriented, line-delimited-JSON and
// multi-status-CSV output of the external recon tools into the uniform
// record shapes the pipeline and leak scanner work with. Every parser here
// is total: malformed input never aborts the parse, it just skips the
// offending line.
package parsers

import (
	"bufio"
	"regexp"
	"strings"
)

// Hostnames parses "Enumerator A/C" flat output: one hostname per line,
// comments (lines beginning with '[') and blanks stripped, lowercased.
func Hostnames(r *bufio.Scanner) []string {
	var out []string
	for r.Scan() {
		line := strings.TrimSpace(r.Text())
		if line == "" || strings.HasPrefix(line, "[") {
			continue
		}
		out = append(out, strings.ToLower(line))
	}
	return out
}

// graphLineRe matches the "graph form" Enumerator B line:
//
//	host.example.com (FQDN) → a_record → 1.2.3.4
//
// The hostname is the first whitespace-delimited token when it is
// immediately followed by a "(FQDN)" marker.
var graphLineRe = regexp.MustCompile(`^(\S+)\s+\(FQDN\)\s*(?:→|-->)`)

// MixedHostnames parses "Enumerator B" output: same flat form as Hostnames,
// plus the graph form. Only hostnames ending with apex (already lowercased,
// with a leading dot check so "evil-example.com" doesn't falsely match
// "example.com") are kept from either form.
func MixedHostnames(r *bufio.Scanner, apex string) []string {
	apex = strings.ToLower(strings.TrimSpace(apex))
	var out []string
	for r.Scan() {
		line := strings.TrimSpace(r.Text())
		if line == "" || strings.HasPrefix(line, "[") {
			continue
		}

		var host string
		if m := graphLineRe.FindStringSubmatch(line); m != nil {
			host = strings.ToLower(m[1])
		} else if !strings.ContainsAny(line, " \t") {
			host = strings.ToLower(line)
		} else {
			continue
		}

		if !endsWithApex(host, apex) {
			continue
		}
		out = append(out, host)
	}
	return out
}

func endsWithApex(host, apex string) bool {
	if apex == "" {
		return true
	}
	if host == apex {
		return true
	}
	return strings.HasSuffix(host, "."+apex)
}

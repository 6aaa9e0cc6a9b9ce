package parsers

import (
	"bufio"
	"encoding/json"
	"strings"

	apperrors "reconctl/internal/platform/errors"
)

// liveStatusCodes are the HTTP status codes that count a probed host as
// live; anything else (or a missing record) is dead.
var liveStatusCodes = map[int]bool{
	200: true, 201: true, 202: true, 204: true,
	301: true, 302: true, 303: true, 304: true, 307: true, 308: true,
	400: true, 401: true, 403: true, 404: true,
	500: true, 501: true, 502: true, 503: true, 504: true,
}

// ProbeRecord is one parsed HTTP-prober line.
type ProbeRecord struct {
	URL              string
	StatusCode       int
	HasStatusCode    bool
	Title            string
	ContentLength    int64
	HasContentLength bool
	Webserver        string
	FinalURL         string
	ResponseTime     string
	CDNName          string
	ContentType      string
	Host             string
	ChainStatusCodes []int
	IPv4             []string
	IPv6             []string
	Tech             []string
}

// IsLive reports whether this record counts as a live host.
func (p ProbeRecord) IsLive() bool {
	return p.HasStatusCode && liveStatusCodes[p.StatusCode]
}

type probeJSON struct {
	URL              string   `json:"url"`
	StatusCode       *int     `json:"status_code"`
	Title            string   `json:"title"`
	ContentLength    *int64   `json:"content_length"`
	Webserver        string   `json:"webserver"`
	FinalURL         string   `json:"final_url"`
	Time             string   `json:"time"`
	CDNName          string   `json:"cdn_name"`
	ContentType      string   `json:"content_type"`
	Host             string   `json:"host"`
	ChainStatusCodes []int    `json:"chain_status_codes"`
	A                []string `json:"a"`
	AAAA             []string `json:"aaaa"`
	Tech             []string `json:"tech"`
}

// ProbeRecords parses the HTTP prober's line-delimited JSON output. Each
// line is a self-contained record; a record missing the required "url"
// field is skipped with a *apperrors.ParseError appended to errs.
func ProbeRecords(r *bufio.Scanner) (records []ProbeRecord, errs []error) {
	for r.Scan() {
		line := strings.TrimSpace(r.Text())
		if line == "" {
			continue
		}

		var raw probeJSON
		if err := json.Unmarshal([]byte(line), &raw); err != nil {
			errs = append(errs, apperrors.NewParseError("httpx", line, err.Error()))
			continue
		}
		if raw.URL == "" {
			errs = append(errs, apperrors.NewParseError("httpx", line, "missing url field"))
			continue
		}

		rec := ProbeRecord{
			URL:              raw.URL,
			Title:            raw.Title,
			Webserver:        raw.Webserver,
			FinalURL:         raw.FinalURL,
			ResponseTime:     raw.Time,
			CDNName:          raw.CDNName,
			ContentType:      raw.ContentType,
			Host:             raw.Host,
			ChainStatusCodes: raw.ChainStatusCodes,
			IPv4:             raw.A,
			IPv6:             raw.AAAA,
			Tech:             raw.Tech,
		}
		if raw.StatusCode != nil {
			rec.StatusCode = *raw.StatusCode
			rec.HasStatusCode = true
		}
		if raw.ContentLength != nil {
			rec.ContentLength = *raw.ContentLength
			rec.HasContentLength = true
		}
		records = append(records, rec)
	}
	return records, errs
}

package repo

import (
	"context"
	"database/sql"
	"encoding/json"

	"reconctl/internal/domain"
	apperrors "reconctl/internal/platform/errors"
)

// AddSubdomain inserts one manually supplied hostname for a job, returning
// a ConflictError if it already exists.
func (s *Store) AddSubdomain(ctx context.Context, jobID, name string) (int64, error) {
	res, err := s.DB.ExecContext(ctx, `
		INSERT OR IGNORE INTO subdomains (job_id, name, source, status)
		VALUES (?,?,'manual',?)`, jobID, name, domain.SubdomainStatusFound)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, apperrors.NewConflictError("subdomain", name)
	}
	return res.LastInsertId()
}

// InsertSubdomains bulk-inserts discovered hostnames for a job, ignoring
// duplicates by (job_id, name) so re-running enumeration on an existing job
// is idempotent.
func (s *Store) InsertSubdomains(ctx context.Context, jobID string, names []string, source string) error {
	if len(names) == 0 {
		return nil
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO subdomains (job_id, name, source, status)
		VALUES (?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, n := range names {
		if _, err := stmt.ExecContext(ctx, jobID, n, source, domain.SubdomainStatusFound); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// UpdateProbeResults writes one httpx probe outcome onto its matching
// subdomain row, flipping status to live/dead and filling every probe
// field. It upserts: a probed host with no row for the job gets a new row
// with source "probe".
func (s *Store) UpdateProbeResults(ctx context.Context, jobID string, rec ProbeUpdate) error {
	chain, err := json.Marshal(rec.ChainStatusCodes)
	if err != nil {
		return err
	}
	ipv4, err := json.Marshal(rec.IPv4Addresses)
	if err != nil {
		return err
	}
	ipv6, err := json.Marshal(rec.IPv6Addresses)
	if err != nil {
		return err
	}

	status := domain.SubdomainStatusDead
	if rec.IsLive {
		status = domain.SubdomainStatusLive
	}

	res, err := s.DB.ExecContext(ctx, `
		UPDATE subdomains SET
			status = ?, is_live = ?, url = ?, http_status = ?, title = ?, content_length = ?,
			webserver = ?, final_url = ?, response_time = ?, cdn_name = ?,
			content_type = ?, host = ?, chain_status_codes = ?, ipv4_addresses = ?, ipv6_addresses = ?
		WHERE job_id = ? AND name = ?`,
		status, rec.IsLive, rec.URL, rec.HTTPStatus, rec.Title, rec.ContentLength,
		rec.Webserver, rec.FinalURL, rec.ResponseTime, rec.CDNName,
		rec.ContentType, rec.Host, string(chain), string(ipv4), string(ipv6),
		jobID, rec.Name,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	// No existing row: the probed host was never inserted for this job
	// (for instance, one the prober reported that enumeration did not).
	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO subdomains (
			job_id, name, source, status, is_live, url, http_status, title, content_length,
			webserver, final_url, response_time, cdn_name, content_type, host,
			chain_status_codes, ipv4_addresses, ipv6_addresses
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		jobID, rec.Name, "probe", status, rec.IsLive, rec.URL, rec.HTTPStatus, rec.Title, rec.ContentLength,
		rec.Webserver, rec.FinalURL, rec.ResponseTime, rec.CDNName, rec.ContentType, rec.Host,
		string(chain), string(ipv4), string(ipv6),
	)
	return err
}

// ProbeUpdate carries one parsed httpx record's fields, keyed by hostname.
// URL is the prober's own url field, before any redirect.
type ProbeUpdate struct {
	Name             string
	IsLive           bool
	URL              string
	HTTPStatus       *int
	Title            string
	ContentLength    *int64
	Webserver        string
	FinalURL         string
	ResponseTime     string
	CDNName          string
	ContentType      string
	Host             string
	ChainStatusCodes []int
	IPv4Addresses    []string
	IPv6Addresses    []string
}

// ListSubdomains returns every subdomain for a job, newest id first.
func (s *Store) ListSubdomains(ctx context.Context, jobID string) ([]domain.Subdomain, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, job_id, name, source, status, is_live, url, http_status, title, content_length,
			webserver, final_url, response_time, cdn_name, content_type, host,
			chain_status_codes, ipv4_addresses, ipv6_addresses
		FROM subdomains WHERE job_id = ? ORDER BY id DESC`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Subdomain
	for rows.Next() {
		var d domain.Subdomain
		var chain, ipv4, ipv6 string
		if err := rows.Scan(&d.ID, &d.JobID, &d.Name, &d.Source, &d.Status, &d.IsLive,
			&d.URL, &d.HTTPStatus, &d.Title, &d.ContentLength, &d.Webserver, &d.FinalURL,
			&d.ResponseTime, &d.CDNName, &d.ContentType, &d.Host, &chain, &ipv4, &ipv6); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(chain), &d.ChainStatusCodes); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(ipv4), &d.IPv4Addresses); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(ipv6), &d.IPv6Addresses); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// LiveURLs returns the probed url (falling back to https://name for rows
// recorded without one, e.g. manual adds) of every live subdomain in a
// job, the authoritative input set for WAF checks, screenshots and leak
// scans. The raw url, not final_url, is the identity callers filter
// against: a host whose probe redirected (http->https, bare->www) is still
// addressed by the URL the prober was given.
func (s *Store) LiveURLs(ctx context.Context, jobID string) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT name, url FROM subdomains WHERE job_id = ? AND is_live = 1 ORDER BY id`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name, url string
		if err := rows.Scan(&name, &url); err != nil {
			return nil, err
		}
		if url != "" {
			out = append(out, url)
		} else {
			out = append(out, "https://"+name)
		}
	}
	return out, rows.Err()
}

// InsertTechnologies bulk-inserts the tech fingerprints observed for one
// subdomain, ignoring duplicates.
func (s *Store) InsertTechnologies(ctx context.Context, subdomainID int64, names []string) error {
	if len(names) == 0 {
		return nil
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO technologies (subdomain_id, name) VALUES (?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, n := range names {
		if _, err := stmt.ExecContext(ctx, subdomainID, n); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// SubdomainIDByName resolves a hostname to its row id within a job, or
// (0, false) if it isn't known yet.
func (s *Store) SubdomainIDByName(ctx context.Context, jobID, name string) (int64, bool, error) {
	var id int64
	err := s.DB.QueryRowContext(ctx, `SELECT id FROM subdomains WHERE job_id = ? AND name = ?`, jobID, name).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

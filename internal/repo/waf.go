package repo

import (
	"context"

	"reconctl/internal/domain"
)

// InsertWafDetections bulk-inserts one WAF fingerprint row per probed URL.
func (s *Store) InsertWafDetections(ctx context.Context, dets []domain.WafDetection) error {
	if len(dets) == 0 {
		return nil
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO waf_detections (job_id, url, detected, firewall, manufacturer)
		VALUES (?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, d := range dets {
		if _, err := stmt.ExecContext(ctx, d.JobID, d.URL, d.Detected, d.Firewall, d.Manufacturer); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListWafDetections returns every WAF detection recorded for a job.
func (s *Store) ListWafDetections(ctx context.Context, jobID string) ([]domain.WafDetection, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, job_id, url, detected, firewall, manufacturer
		FROM waf_detections WHERE job_id = ? ORDER BY id`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.WafDetection
	for rows.Next() {
		var d domain.WafDetection
		if err := rows.Scan(&d.ID, &d.JobID, &d.URL, &d.Detected, &d.Firewall, &d.Manufacturer); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

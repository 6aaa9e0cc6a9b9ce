package repo

import (
	"context"

	"reconctl/internal/domain"
)

// InsertLeakDetections bulk-inserts leak-scan findings for a job. Callers
// must never pass a record with HTTPStatus == 404; the schema's CHECK
// constraint rejects it anyway, so a malformed record fails the whole
// transaction loudly rather than silently persisting a non-leak.
func (s *Store) InsertLeakDetections(ctx context.Context, leaks []domain.LeakDetection) error {
	if len(leaks) == 0 {
		return nil
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO leak_detections (job_id, base_url, leak_url, file_type, severity, file_size, http_status)
		VALUES (?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, l := range leaks {
		if _, err := stmt.ExecContext(ctx, l.JobID, l.BaseURL, l.LeakURL, l.FileType, l.Severity, l.FileSize, l.HTTPStatus); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListLeakDetections returns every leak finding recorded for a job.
func (s *Store) ListLeakDetections(ctx context.Context, jobID string) ([]domain.LeakDetection, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, job_id, base_url, leak_url, file_type, severity, file_size, http_status
		FROM leak_detections WHERE job_id = ? ORDER BY id`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.LeakDetection
	for rows.Next() {
		var l domain.LeakDetection
		if err := rows.Scan(&l.ID, &l.JobID, &l.BaseURL, &l.LeakURL, &l.FileType, &l.Severity, &l.FileSize, &l.HTTPStatus); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

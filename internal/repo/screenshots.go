package repo

import (
	"context"

	"reconctl/internal/domain"
)

// InsertScreenshots bulk-inserts captured screenshots for a job. SubdomainID
// is left nil: the capture tool's filename encoding is lossy (see
// reconpipeline.DecodeScreenshotFilename) and must not be used to join back
// to a subdomain row, so every screenshot is recorded standalone, keyed only
// by job and file path.
func (s *Store) InsertScreenshots(ctx context.Context, shots []domain.Screenshot) error {
	if len(shots) == 0 {
		return nil
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO screenshots (job_id, subdomain_id, url, filename, file_path, file_size)
		VALUES (?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, sh := range shots {
		if _, err := stmt.ExecContext(ctx, sh.JobID, sh.SubdomainID, sh.URL, sh.Filename, sh.FilePath, sh.FileSize); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListScreenshots returns every screenshot recorded for a job.
func (s *Store) ListScreenshots(ctx context.Context, jobID string) ([]domain.Screenshot, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, job_id, subdomain_id, url, filename, file_path, file_size
		FROM screenshots WHERE job_id = ? ORDER BY id`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Screenshot
	for rows.Next() {
		var sh domain.Screenshot
		if err := rows.Scan(&sh.ID, &sh.JobID, &sh.SubdomainID, &sh.URL, &sh.Filename, &sh.FilePath, &sh.FileSize); err != nil {
			return nil, err
		}
		out = append(out, sh)
	}
	return out, rows.Err()
}

package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"reconctl/internal/domain"
	apperrors "reconctl/internal/platform/errors"
)

// CreateJob persists a new pending ScanJob.
func (s *Store) CreateJob(ctx context.Context, j *domain.ScanJob) error {
	now := time.Now().UTC()
	j.CreatedAt, j.UpdatedAt = now, now
	j.Status = domain.ScanStatusPending

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO scan_jobs (id, task_id, domain, status, error_message, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?)`,
		j.ID, j.TaskID, j.Domain, j.Status, j.ErrorMsg, j.CreatedAt, j.UpdatedAt,
	)
	return err
}

// SetTaskID records the dispatcher-assigned task id. The update does not
// check the job's status: it replaces the task id in any state.
func (s *Store) SetTaskID(ctx context.Context, jobID, taskID string) error {
	res, err := s.DB.ExecContext(ctx, `UPDATE scan_jobs SET task_id = ?, updated_at = ? WHERE id = ?`,
		taskID, time.Now().UTC(), jobID)
	if err != nil {
		return err
	}
	return checkAffected(res, "scan_job", jobID)
}

// fromStatusesFor lists the current statuses UpdateStatus accepts a job in
// before moving it to the given target, the only legal transitions being
// pending->running, running->running (a retried attempt) and
// running->{completed,failed}.
func fromStatusesFor(target domain.ScanStatus) []domain.ScanStatus {
	switch target {
	case domain.ScanStatusRunning:
		// Also reachable from running itself: a retried full-scan attempt
		// re-enters handleFullScan and re-marks the job running without
		// having ever left that state.
		return []domain.ScanStatus{domain.ScanStatusPending, domain.ScanStatusRunning}
	case domain.ScanStatusCompleted, domain.ScanStatusFailed:
		return []domain.ScanStatus{domain.ScanStatusRunning}
	default:
		return nil
	}
}

// UpdateStatus performs the only legal transitions (pending->running,
// running->running, running->{completed,failed}), auto-stamping completed_at iff the new
// status is terminal. A call whose target isn't reachable from the job's
// current status affects no row and returns a NotFoundError, the same as a
// missing job id: the caller already distinguishes "job gone" from "job in
// an unexpected state" by checking GetJob first when that matters.
func (s *Store) UpdateStatus(ctx context.Context, jobID string, status domain.ScanStatus, errMsg string) error {
	from := fromStatusesFor(status)
	if len(from) == 0 {
		return apperrors.NewInvalidArgumentError("status", "no legal transition into "+string(status))
	}

	now := time.Now().UTC()
	var completedAt *time.Time
	if status == domain.ScanStatusCompleted || status == domain.ScanStatusFailed {
		completedAt = &now
	}

	placeholders := make([]any, 0, len(from))
	inClause := ""
	for i, st := range from {
		if i > 0 {
			inClause += ","
		}
		inClause += "?"
		placeholders = append(placeholders, st)
	}

	args := append([]any{status, errMsg, now, completedAt, jobID}, placeholders...)
	res, err := s.DB.ExecContext(ctx, `
		UPDATE scan_jobs SET status = ?, error_message = ?, updated_at = ?, completed_at = ?
		WHERE id = ? AND status IN (`+inClause+`)`,
		args...,
	)
	if err != nil {
		return err
	}
	return checkAffected(res, "scan_job", jobID)
}

// GetJob returns one job or a NotFoundError.
func (s *Store) GetJob(ctx context.Context, id string) (*domain.ScanJob, error) {
	j := &domain.ScanJob{}
	var completedAt sql.NullTime

	err := s.DB.QueryRowContext(ctx, `
		SELECT id, task_id, domain, status, error_message, created_at, updated_at, completed_at
		FROM scan_jobs WHERE id = ?`, id).Scan(
		&j.ID, &j.TaskID, &j.Domain, &j.Status, &j.ErrorMsg, &j.CreatedAt, &j.UpdatedAt, &completedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("scan_job", id)
	}
	if err != nil {
		return nil, err
	}
	if completedAt.Valid {
		j.CompletedAt = &completedAt.Time
	}
	return j, nil
}

// ListJobs returns jobs newest first, offset/limit paginated.
func (s *Store) ListJobs(ctx context.Context, limit, offset int) ([]domain.ScanJob, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, task_id, domain, status, error_message, created_at, updated_at, completed_at
		FROM scan_jobs ORDER BY created_at DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ScanJob
	for rows.Next() {
		var j domain.ScanJob
		var completedAt sql.NullTime
		if err := rows.Scan(&j.ID, &j.TaskID, &j.Domain, &j.Status, &j.ErrorMsg, &j.CreatedAt, &j.UpdatedAt, &completedAt); err != nil {
			return nil, err
		}
		if completedAt.Valid {
			j.CompletedAt = &completedAt.Time
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// DeleteJob removes the job and cascades to every dependent row (the
// foreign keys declare ON DELETE CASCADE/SET NULL); the caller is
// responsible for revoking any in-flight task and removing the artifact
// directory first.
func (s *Store) DeleteJob(ctx context.Context, id string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM scan_jobs WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkAffected(res, "scan_job", id)
}

func checkAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperrors.NewNotFoundError(kind, id)
	}
	return nil
}

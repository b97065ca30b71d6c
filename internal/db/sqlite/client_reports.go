package sqlite

import (
	"context"
	"database/sql"

	"github.com/Lora-Technologies/LoraGuard/internal/db"
)

func (c *sqliteClient) CreateReport(ctx context.Context, r *db.Report) (int64, error) {
	res, err := c.db.ExecContext(ctx, `
		INSERT INTO reports (reporter_uuid, reporter_name, reported_uuid, reported_name, reason, reported_message, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ReporterUUID, r.ReporterName, r.ReportedUUID, r.ReportedName, r.Reason, r.Message, r.Status)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (c *sqliteClient) GetReport(ctx context.Context, reportID int64) (*db.Report, error) {
	report := &db.Report{}
	err := c.db.GetContext(ctx, report, selectReport+" WHERE id = ?", reportID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return report, nil
}

func (c *sqliteClient) ListReportsByStatus(ctx context.Context, status string) ([]*db.Report, error) {
	var reports []*db.Report
	err := c.db.SelectContext(ctx, &reports,
		selectReport+" WHERE status = ? ORDER BY created_at ASC, id ASC", status)
	return reports, err
}

func (c *sqliteClient) ResolveReport(ctx context.Context, reportID int64, reviewer, actionTaken string) (bool, error) {
	res, err := c.db.ExecContext(ctx, `
		UPDATE reports
		SET status = ?, reviewer_name = ?, action_taken = ?, reviewed_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = ?`,
		db.ReportStatusReviewed, reviewer, actionTaken, reportID, db.ReportStatusPending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

const selectReport = `
	SELECT id, reporter_uuid, reporter_name, reported_uuid, reported_name,
	       reason, reported_message, status, reviewer_name, action_taken,
	       created_at, reviewed_at
	FROM reports`

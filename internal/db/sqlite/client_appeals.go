package sqlite

import (
	"context"
	"database/sql"

	"github.com/Lora-Technologies/LoraGuard/internal/db"
)

func (c *sqliteClient) CreateAppeal(ctx context.Context, a *db.Appeal) (int64, error) {
	res, err := c.db.ExecContext(ctx, `
		INSERT INTO appeals (uuid, player_name, punishment_id, punishment_type, reason, status)
		VALUES (?, ?, ?, ?, ?, ?)`,
		a.PlayerUUID, a.PlayerName, a.PunishmentID, a.PunishmentType, a.Reason, a.Status)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (c *sqliteClient) GetAppeal(ctx context.Context, appealID int64) (*db.Appeal, error) {
	appeal := &db.Appeal{}
	err := c.db.GetContext(ctx, appeal, selectAppeal+" WHERE id = ?", appealID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return appeal, nil
}

func (c *sqliteClient) GetPendingAppeal(ctx context.Context, playerUUID string) (*db.Appeal, error) {
	appeal := &db.Appeal{}
	err := c.db.GetContext(ctx, appeal,
		selectAppeal+" WHERE uuid = ? AND status = ? LIMIT 1", playerUUID, db.AppealStatusPending)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return appeal, nil
}

func (c *sqliteClient) ListAppealsByStatus(ctx context.Context, status string) ([]*db.Appeal, error) {
	var appeals []*db.Appeal
	err := c.db.SelectContext(ctx, &appeals,
		selectAppeal+" WHERE status = ? ORDER BY created_at ASC, id ASC", status)
	return appeals, err
}

func (c *sqliteClient) ListPlayerAppeals(ctx context.Context, playerUUID string) ([]*db.Appeal, error) {
	var appeals []*db.Appeal
	err := c.db.SelectContext(ctx, &appeals,
		selectAppeal+" WHERE uuid = ? ORDER BY created_at DESC, id DESC", playerUUID)
	return appeals, err
}

// ResolveAppeal flips a pending appeal to its final status. The status
// guard in the predicate makes double resolution a no-op; the caller
// learns it lost the race from the false return.
func (c *sqliteClient) ResolveAppeal(ctx context.Context, appealID int64, status, reviewer, note string) (bool, error) {
	res, err := c.db.ExecContext(ctx, `
		UPDATE appeals
		SET status = ?, reviewer_name = ?, review_note = ?, reviewed_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = ?`,
		status, reviewer, note, appealID, db.AppealStatusPending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

const selectAppeal = `
	SELECT id, uuid, player_name, punishment_id, punishment_type, reason,
	       status, reviewer_name, review_note, created_at, reviewed_at
	FROM appeals`

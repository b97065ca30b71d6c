package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Lora-Technologies/LoraGuard/internal/db"
)

func (c *sqliteClient) LogViolation(ctx context.Context, v *db.Violation) (int64, error) {
	res, err := c.db.ExecContext(ctx, `
		INSERT INTO violations (uuid, player_name, message, category, score, action)
		VALUES (?, ?, ?, ?, ?, ?)`,
		v.PlayerUUID, v.PlayerName, v.Message, v.Category, v.Score, v.Action)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (c *sqliteClient) UpdateViolationAction(ctx context.Context, violationID int64, action string) error {
	_, err := c.db.ExecContext(ctx, "UPDATE violations SET action = ? WHERE id = ?", action, violationID)
	return err
}

func (c *sqliteClient) GetPlayerViolations(ctx context.Context, playerUUID string, limit int) ([]*db.Violation, error) {
	var violations []*db.Violation
	err := c.db.SelectContext(ctx, &violations, `
		SELECT id, uuid, player_name, message, category, score, action, created_at
		FROM violations WHERE uuid = ?
		ORDER BY created_at DESC, id DESC LIMIT ?`,
		playerUUID, limit)
	return violations, err
}

func (c *sqliteClient) AddViolationPoints(ctx context.Context, playerUUID, playerName string, points int) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO violation_ledger (uuid, player_name, violation_points, total_violations, last_violation)
		VALUES (?, ?, ?, 1, CURRENT_TIMESTAMP)
		ON CONFLICT(uuid) DO UPDATE SET
		violation_points = violation_points + excluded.violation_points,
		total_violations = total_violations + 1,
		player_name = excluded.player_name,
		last_violation = CURRENT_TIMESTAMP`,
		playerUUID, playerName, points)
	return err
}

func (c *sqliteClient) GetViolationPoints(ctx context.Context, playerUUID string) (int, error) {
	var points int
	err := c.db.GetContext(ctx, &points, "SELECT violation_points FROM violation_ledger WHERE uuid = ?", playerUUID)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return points, err
}

func (c *sqliteClient) GetLedger(ctx context.Context, playerUUID string) (*db.Ledger, error) {
	ledger := &db.Ledger{}
	err := c.db.GetContext(ctx, ledger, `
		SELECT uuid, player_name, violation_points, total_violations, last_violation
		FROM violation_ledger WHERE uuid = ?`, playerUUID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return ledger, nil
}

func (c *sqliteClient) ResetViolationPoints(ctx context.Context, playerUUID string) error {
	_, err := c.db.ExecContext(ctx, "UPDATE violation_ledger SET violation_points = 0 WHERE uuid = ?", playerUUID)
	return err
}

func (c *sqliteClient) DecayViolationPoints(ctx context.Context, idleFor time.Duration, amount int) (int64, error) {
	// Cutoff is computed inside sqlite so it compares against
	// CURRENT_TIMESTAMP values in their own format.
	modifier := fmt.Sprintf("-%d seconds", int64(idleFor.Seconds()))
	res, err := c.db.ExecContext(ctx, `
		UPDATE violation_ledger
		SET violation_points = MAX(violation_points - ?, 0)
		WHERE violation_points > 0
		AND last_violation IS NOT NULL
		AND last_violation <= datetime('now', ?)`,
		amount, modifier)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

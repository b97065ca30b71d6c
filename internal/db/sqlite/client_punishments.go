package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/Lora-Technologies/LoraGuard/internal/db"
)

func (c *sqliteClient) AddPunishment(ctx context.Context, p *db.Punishment) (int64, error) {
	res, err := c.db.ExecContext(ctx, `
		INSERT INTO punishments (uuid, player_name, type, reason, duration, active, original_message)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.PlayerUUID, p.PlayerName, p.Type, p.Reason, p.DurationMinutes, p.Active, p.OriginalMessage)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (c *sqliteClient) DeactivateMute(ctx context.Context, playerUUID string) error {
	_, err := c.db.ExecContext(ctx,
		"UPDATE punishments SET active = 0 WHERE uuid = ? AND type = 'mute' AND active = 1", playerUUID)
	return err
}

func (c *sqliteClient) DeactivateBan(ctx context.Context, playerUUID string) error {
	_, err := c.db.ExecContext(ctx,
		"UPDATE punishments SET active = 0 WHERE uuid = ? AND type = 'ban' AND active = 1", playerUUID)
	return err
}

func (c *sqliteClient) GetActiveMutes(ctx context.Context) ([]db.ActiveMute, error) {
	var rows []struct {
		PlayerUUID      string    `db:"uuid"`
		Reason          string    `db:"reason"`
		DurationMinutes int       `db:"duration"`
		CreatedAt       time.Time `db:"created_at"`
	}
	err := c.db.SelectContext(ctx, &rows, `
		SELECT uuid, reason, duration, created_at
		FROM punishments WHERE type = 'mute' AND active = 1
		ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}

	mutes := make([]db.ActiveMute, 0, len(rows))
	for _, row := range rows {
		mute := db.ActiveMute{PlayerUUID: row.PlayerUUID, Reason: row.Reason}
		if row.DurationMinutes > 0 {
			mute.Expiry = row.CreatedAt.Add(time.Duration(row.DurationMinutes) * time.Minute)
		}
		mutes = append(mutes, mute)
	}
	return mutes, nil
}

func (c *sqliteClient) HasActiveBan(ctx context.Context, playerUUID string) (bool, error) {
	var count int
	err := c.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM punishments
		WHERE uuid = ? AND type = 'ban' AND active = 1
		AND (duration <= 0 OR datetime(created_at, '+' || duration || ' minutes') > datetime('now'))`,
		playerUUID)
	return count > 0, err
}

func (c *sqliteClient) LatestActivePunishment(ctx context.Context, playerUUID, punishmentType string) (*db.Punishment, error) {
	punishment := &db.Punishment{}
	err := c.db.GetContext(ctx, punishment, `
		SELECT id, uuid, player_name, type, reason, duration, active, original_message, created_at
		FROM punishments
		WHERE uuid = ? AND type = ? AND active = 1
		ORDER BY created_at DESC, id DESC LIMIT 1`,
		playerUUID, punishmentType)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return punishment, nil
}

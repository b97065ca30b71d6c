package db

import (
	"context"
	"time"
)

// Client is the durable store the moderation core depends on.
// Consumers declare their own narrow views of it; the sqlite client
// implements everything here.
type Client interface {
	Close() error

	LogViolation(ctx context.Context, v *Violation) (int64, error)
	UpdateViolationAction(ctx context.Context, violationID int64, action string) error
	GetPlayerViolations(ctx context.Context, playerUUID string, limit int) ([]*Violation, error)

	AddViolationPoints(ctx context.Context, playerUUID, playerName string, points int) error
	GetViolationPoints(ctx context.Context, playerUUID string) (int, error)
	GetLedger(ctx context.Context, playerUUID string) (*Ledger, error)
	ResetViolationPoints(ctx context.Context, playerUUID string) error
	DecayViolationPoints(ctx context.Context, idleFor time.Duration, amount int) (int64, error)

	AddPunishment(ctx context.Context, p *Punishment) (int64, error)
	DeactivateMute(ctx context.Context, playerUUID string) error
	DeactivateBan(ctx context.Context, playerUUID string) error
	GetActiveMutes(ctx context.Context) ([]ActiveMute, error)
	HasActiveBan(ctx context.Context, playerUUID string) (bool, error)
	LatestActivePunishment(ctx context.Context, playerUUID, punishmentType string) (*Punishment, error)

	CreateAppeal(ctx context.Context, a *Appeal) (int64, error)
	GetAppeal(ctx context.Context, appealID int64) (*Appeal, error)
	GetPendingAppeal(ctx context.Context, playerUUID string) (*Appeal, error)
	ListAppealsByStatus(ctx context.Context, status string) ([]*Appeal, error)
	ListPlayerAppeals(ctx context.Context, playerUUID string) ([]*Appeal, error)
	ResolveAppeal(ctx context.Context, appealID int64, status, reviewer, note string) (bool, error)

	CreateReport(ctx context.Context, r *Report) (int64, error)
	GetReport(ctx context.Context, reportID int64) (*Report, error)
	ListReportsByStatus(ctx context.Context, status string) ([]*Report, error)
	ResolveReport(ctx context.Context, reportID int64, reviewer, actionTaken string) (bool, error)
}

package db

import (
	"time"
)

type (
	// Violation is one qualifying offense. Action starts as "pending"
	// and is rewritten once the escalation engine has decided.
	Violation struct {
		ID         int64     `db:"id"`
		PlayerUUID string    `db:"uuid"`
		PlayerName string    `db:"player_name"`
		Message    string    `db:"message"`
		Category   string    `db:"category"`
		Score      float64   `db:"score"`
		Action     string    `db:"action"`
		CreatedAt  time.Time `db:"created_at"`
	}

	// Punishment rows are append-only; Active flips to false on expiry
	// or reversal, rows are never deleted.
	Punishment struct {
		ID              int64     `db:"id"`
		PlayerUUID      string    `db:"uuid"`
		PlayerName      string    `db:"player_name"`
		Type            string    `db:"type"`
		Reason          string    `db:"reason"`
		DurationMinutes int       `db:"duration"`
		Active          bool      `db:"active"`
		OriginalMessage *string   `db:"original_message"`
		CreatedAt       time.Time `db:"created_at"`
	}

	// Ledger is the per-player running violation balance.
	Ledger struct {
		PlayerUUID      string     `db:"uuid"`
		PlayerName      string     `db:"player_name"`
		ViolationPoints int        `db:"violation_points"`
		TotalViolations int        `db:"total_violations"`
		LastViolation   *time.Time `db:"last_violation"`
	}

	Appeal struct {
		ID             int64      `db:"id"`
		PlayerUUID     string     `db:"uuid"`
		PlayerName     string     `db:"player_name"`
		PunishmentID   int64      `db:"punishment_id"`
		PunishmentType string     `db:"punishment_type"`
		Reason         string     `db:"reason"`
		Status         string     `db:"status"`
		ReviewerName   *string    `db:"reviewer_name"`
		ReviewNote     *string    `db:"review_note"`
		CreatedAt      time.Time  `db:"created_at"`
		ReviewedAt     *time.Time `db:"reviewed_at"`
	}

	Report struct {
		ID           int64      `db:"id"`
		ReporterUUID string     `db:"reporter_uuid"`
		ReporterName string     `db:"reporter_name"`
		ReportedUUID string     `db:"reported_uuid"`
		ReportedName string     `db:"reported_name"`
		Reason       string     `db:"reason"`
		Message      *string    `db:"reported_message"`
		Status       string     `db:"status"`
		ReviewerName *string    `db:"reviewer_name"`
		ActionTaken  *string    `db:"action_taken"`
		CreatedAt    time.Time  `db:"created_at"`
		ReviewedAt   *time.Time `db:"reviewed_at"`
	}

	// ActiveMute is the projection the in-memory mute index loads at
	// startup. A zero Expiry means the mute is indefinite.
	ActiveMute struct {
		PlayerUUID string
		Reason     string
		Expiry     time.Time
	}
)

const (
	AppealStatusPending  = "pending"
	AppealStatusApproved = "approved"
	AppealStatusDenied   = "denied"

	ReportStatusPending  = "pending"
	ReportStatusReviewed = "reviewed"
)

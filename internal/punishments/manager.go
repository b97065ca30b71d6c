package punishments

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/Lora-Technologies/LoraGuard/internal/db"
	"github.com/Lora-Technologies/LoraGuard/internal/observability"
)

type punishmentStore interface {
	AddPunishment(ctx context.Context, p *db.Punishment) (int64, error)
	DeactivateBan(ctx context.Context, playerUUID string) error
	HasActiveBan(ctx context.Context, playerUUID string) (bool, error)
}

// Notifier delivers punishment side effects to the messaging surface.
// Implementations must tolerate players that are no longer present.
type Notifier interface {
	NotifyPlayer(player, message string)
	DisconnectPlayer(player, reason string)
	NotifyStaff(message string)
}

// Player carries the identity fields punishments persist.
type Player struct {
	UUID string
	Name string
}

// Manager executes punishments and owns the consistency between the
// in-memory mute index and the durable punishment ledger. In-memory
// state changes synchronously; durable writes are fire-and-forget.
type Manager struct {
	store    punishmentStore
	index    *MuteIndex
	notifier Notifier

	writeWG sync.WaitGroup
	logger  *log.Entry
	now     func() time.Time
}

func NewManager(store punishmentStore, index *MuteIndex, notifier Notifier) *Manager {
	return &Manager{
		store:    store,
		index:    index,
		notifier: notifier,
		logger:   log.WithField("object", "PunishmentManager"),
		now:      time.Now,
	}
}

// Execute applies a parsed punishment spec to a player. Durable
// writes happen off the hot path, so none of these block.
func (m *Manager) Execute(player Player, spec Spec, reason, originalMessage string) {
	switch spec.Type {
	case TypeWarn:
		m.Warn(player, reason)
	case TypeMute:
		m.Mute(player, reason, spec.DurationMinutes, originalMessage)
	case TypeKick:
		m.Kick(player, reason)
	case TypeBan:
		m.Ban(player, reason, spec.DurationMinutes, originalMessage)
	default:
		m.logger.WithField("type", string(spec.Type)).Warn("unknown punishment type, no action taken")
	}
}

func (m *Manager) Warn(player Player, reason string) {
	observability.RecordPunishment(string(TypeWarn))
	m.notifier.NotifyPlayer(player.UUID, fmt.Sprintf("You have been warned: %s", reason))
	m.notifier.NotifyStaff(fmt.Sprintf("%s was warned: %s", player.Name, reason))
}

func (m *Manager) Mute(player Player, reason string, minutes int, originalMessage string) {
	observability.RecordPunishment(string(TypeMute))

	expiry := time.Time{}
	if minutes > 0 {
		expiry = m.now().Add(time.Duration(minutes) * time.Minute)
	}
	m.index.Add(player.UUID, expiry)

	m.persistAsync("mute", &db.Punishment{
		PlayerUUID:      player.UUID,
		PlayerName:      player.Name,
		Type:            string(TypeMute),
		Reason:          reason,
		DurationMinutes: minutes,
		Active:          true,
		OriginalMessage: optional(originalMessage),
	})

	m.notifier.NotifyPlayer(player.UUID, fmt.Sprintf("You have been muted for %s: %s", FormatDuration(minutes), reason))
	m.notifier.NotifyStaff(fmt.Sprintf("%s was muted for %s: %s", player.Name, FormatDuration(minutes), reason))
}

func (m *Manager) Unmute(player Player) {
	m.index.Remove(player.UUID)
	m.notifier.NotifyPlayer(player.UUID, "Your mute has been lifted.")
}

func (m *Manager) Kick(player Player, reason string) {
	observability.RecordPunishment(string(TypeKick))

	m.persistAsync("kick", &db.Punishment{
		PlayerUUID: player.UUID,
		PlayerName: player.Name,
		Type:       string(TypeKick),
		Reason:     reason,
		Active:     false,
	})

	m.notifier.DisconnectPlayer(player.UUID, reason)
	m.notifier.NotifyStaff(fmt.Sprintf("%s was kicked: %s", player.Name, reason))
}

func (m *Manager) Ban(player Player, reason string, minutes int, originalMessage string) {
	observability.RecordPunishment(string(TypeBan))

	m.persistAsync("ban", &db.Punishment{
		PlayerUUID:      player.UUID,
		PlayerName:      player.Name,
		Type:            string(TypeBan),
		Reason:          reason,
		DurationMinutes: minutes,
		Active:          true,
		OriginalMessage: optional(originalMessage),
	})

	m.notifier.DisconnectPlayer(player.UUID, fmt.Sprintf("Banned (%s): %s", FormatDuration(minutes), reason))
	m.notifier.NotifyStaff(fmt.Sprintf("%s was banned for %s: %s", player.Name, FormatDuration(minutes), reason))
}

func (m *Manager) Unban(ctx context.Context, player Player) error {
	return m.store.DeactivateBan(ctx, player.UUID)
}

func (m *Manager) IsMuted(player string) bool {
	return m.index.IsMuted(player)
}

// MuteRemaining formats the time left on a player's mute for display.
func (m *Manager) MuteRemaining(player string) string {
	if !m.index.IsMuted(player) {
		return "0m"
	}
	expiry, ok := m.index.Expiry(player)
	if !ok {
		return "0m"
	}
	if expiry.IsZero() {
		return "permanent"
	}
	remaining := int(expiry.Sub(m.now()).Minutes())
	if remaining < 1 {
		// Sub-minute remainders must not truncate into "permanent".
		remaining = 1
	}
	return FormatDuration(remaining)
}

// HasActiveBan queries the durable store; bans are checked at
// connection time, not per message, so no in-memory index is kept.
func (m *Manager) HasActiveBan(ctx context.Context, player string) (bool, error) {
	return m.store.HasActiveBan(ctx, player)
}

// Stop waits for outstanding durable writes.
func (m *Manager) Stop(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		m.writeWG.Wait()
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (m *Manager) Start(_ context.Context) error { return nil }

// persistAsync appends a punishment row off the hot path. A store
// failure loses the audit row but never blocks the in-memory decision.
func (m *Manager) persistAsync(kind string, p *db.Punishment) {
	m.writeWG.Add(1)
	go func() {
		defer m.writeWG.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := m.store.AddPunishment(ctx, p); err != nil {
			m.logger.WithField("error", err.Error()).WithField("type", kind).Error("failed to persist punishment")
		}
	}()
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

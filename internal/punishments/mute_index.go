package punishments

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/Lora-Technologies/LoraGuard/internal/db"
)

type muteStore interface {
	GetActiveMutes(ctx context.Context) ([]db.ActiveMute, error)
	DeactivateMute(ctx context.Context, playerUUID string) error
}

// MuteIndex answers "is this player muted right now" without touching
// the durable store on the hot path. A zero expiry means indefinite.
// Expired entries are dropped lazily on read; removal happens under
// the index lock, so only the goroutine that actually removed the
// entry schedules the durable mark-inactive write.
type MuteIndex struct {
	store muteStore

	mu    sync.RWMutex
	mutes map[string]time.Time

	writeWG sync.WaitGroup
	now     func() time.Time
}

func NewMuteIndex(store muteStore) *MuteIndex {
	return &MuteIndex{
		store: store,
		mutes: map[string]time.Time{},
		now:   time.Now,
	}
}

// Start rebuilds the index from active mute rows. Rows already expired
// at load time are reconciled: marked inactive and left out.
func (m *MuteIndex) Start(ctx context.Context) error {
	active, err := m.store.GetActiveMutes(ctx)
	if err != nil {
		return err
	}

	now := m.now()
	loaded := 0
	for _, mute := range active {
		if !mute.Expiry.IsZero() && !now.Before(mute.Expiry) {
			if err := m.store.DeactivateMute(ctx, mute.PlayerUUID); err != nil {
				log.WithField("error", err.Error()).WithField("player", mute.PlayerUUID).Error("failed to reconcile expired mute")
			}
			continue
		}
		m.mu.Lock()
		m.mutes[mute.PlayerUUID] = mute.Expiry
		m.mu.Unlock()
		loaded++
	}
	log.WithField("count", loaded).Info("loaded active mutes")
	return nil
}

// Stop waits for in-flight asynchronous deactivation writes.
func (m *MuteIndex) Stop(ctx context.Context) error {
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

// IsMuted reports whether the player is muted at this instant. An
// expired entry is removed and its durable record marked inactive
// asynchronously; concurrent callers racing past the expiry boundary
// trigger at most one such write.
func (m *MuteIndex) IsMuted(player string) bool {
	m.mu.RLock()
	expiry, ok := m.mutes[player]
	m.mu.RUnlock()
	if !ok {
		return false
	}
	if expiry.IsZero() || m.now().Before(expiry) {
		return true
	}

	m.mu.Lock()
	current, ok := m.mutes[player]
	if !ok || !current.Equal(expiry) {
		// Someone else already cleaned up, or the player was re-muted.
		m.mu.Unlock()
		return ok && (current.IsZero() || m.now().Before(current))
	}
	delete(m.mutes, player)
	m.mu.Unlock()

	m.deactivateAsync(player)
	return false
}

// Expiry returns the player's mute expiry. The second result is false
// when the player has no index entry at all.
func (m *MuteIndex) Expiry(player string) (time.Time, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	expiry, ok := m.mutes[player]
	return expiry, ok
}

// Add inserts or overwrites the in-memory entry only; the caller owns
// durable persistence of the punishment row.
func (m *MuteIndex) Add(player string, expiry time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mutes[player] = expiry
}

// Remove drops the in-memory entry and marks the durable record
// inactive asynchronously.
func (m *MuteIndex) Remove(player string) {
	m.mu.Lock()
	delete(m.mutes, player)
	m.mu.Unlock()
	m.deactivateAsync(player)
}

func (m *MuteIndex) deactivateAsync(player string) {
	m.writeWG.Add(1)
	go func() {
		defer m.writeWG.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := m.store.DeactivateMute(ctx, player); err != nil {
			log.WithField("error", err.Error()).WithField("player", player).Error("failed to deactivate mute")
		}
	}()
}

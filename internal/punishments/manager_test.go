package punishments

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Lora-Technologies/LoraGuard/internal/db"
)

type recordingStore struct {
	countingMuteStore

	mu          sync.Mutex
	punishments []*db.Punishment
	banActive   bool
}

func (s *recordingStore) AddPunishment(_ context.Context, p *db.Punishment) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.punishments = append(s.punishments, p)
	return int64(len(s.punishments)), nil
}

func (s *recordingStore) DeactivateBan(_ context.Context, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.banActive = false
	return nil
}

func (s *recordingStore) HasActiveBan(_ context.Context, _ string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.banActive, nil
}

func (s *recordingStore) persisted() []*db.Punishment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*db.Punishment(nil), s.punishments...)
}

type silentNotifier struct {
	mu           sync.Mutex
	disconnected []string
}

func (n *silentNotifier) NotifyPlayer(_, _ string) {}
func (n *silentNotifier) NotifyStaff(_ string)     {}
func (n *silentNotifier) DisconnectPlayer(player, _ string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.disconnected = append(n.disconnected, player)
}

func newTestManager(t *testing.T) (*Manager, *recordingStore, *silentNotifier) {
	t.Helper()
	store := &recordingStore{}
	notifier := &silentNotifier{}
	manager := NewManager(store, NewMuteIndex(store), notifier)
	return manager, store, notifier
}

func TestMuteIsImmediateAndPersistsAsync(t *testing.T) {
	t.Parallel()
	manager, store, _ := newTestManager(t)
	player := Player{UUID: "u1", Name: "alice"}

	manager.Execute(player, Spec{Type: TypeMute, DurationMinutes: 10}, "spam", "the message")
	if !manager.IsMuted("u1") {
		t.Fatal("mute must take effect before the durable write lands")
	}

	if err := manager.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	rows := store.persisted()
	if len(rows) != 1 {
		t.Fatalf("expected 1 persisted punishment, got %d", len(rows))
	}
	row := rows[0]
	if row.Type != "mute" || row.DurationMinutes != 10 || !row.Active {
		t.Fatalf("unexpected row: %+v", row)
	}
	if row.OriginalMessage == nil || *row.OriginalMessage != "the message" {
		t.Fatalf("original message not kept: %+v", row)
	}
}

func TestUnmuteLiftsImmediately(t *testing.T) {
	t.Parallel()
	manager, _, _ := newTestManager(t)
	player := Player{UUID: "u1", Name: "alice"}

	manager.Mute(player, "spam", -1, "")
	if !manager.IsMuted("u1") {
		t.Fatal("should be muted")
	}
	manager.Unmute(player)
	if manager.IsMuted("u1") {
		t.Fatal("should be unmuted immediately")
	}
	if err := manager.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestBanDisconnectsAndUnbanClears(t *testing.T) {
	t.Parallel()
	manager, store, notifier := newTestManager(t)
	store.banActive = true
	player := Player{UUID: "u1", Name: "alice"}

	manager.Ban(player, "hate", 1440, "msg")
	notifier.mu.Lock()
	disconnected := len(notifier.disconnected)
	notifier.mu.Unlock()
	if disconnected != 1 {
		t.Fatalf("ban should disconnect the player, got %d", disconnected)
	}

	if err := manager.Unban(context.Background(), player); err != nil {
		t.Fatalf("unban: %v", err)
	}
	banned, err := manager.HasActiveBan(context.Background(), "u1")
	if err != nil {
		t.Fatalf("has active ban: %v", err)
	}
	if banned {
		t.Fatal("ban should be cleared")
	}
	if err := manager.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestMuteRemaining(t *testing.T) {
	t.Parallel()
	manager, _, _ := newTestManager(t)
	current := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	manager.now = func() time.Time { return current }
	manager.index.now = manager.now

	manager.Mute(Player{UUID: "u1", Name: "alice"}, "spam", 90, "")
	if got := manager.MuteRemaining("u1"); got != "1h" {
		t.Fatalf("expected 1h remaining, got %q", got)
	}

	manager.Mute(Player{UUID: "u2", Name: "bob"}, "hate", -1, "")
	if got := manager.MuteRemaining("u2"); got != "permanent" {
		t.Fatalf("expected permanent, got %q", got)
	}

	if got := manager.MuteRemaining("nobody"); got != "0m" {
		t.Fatalf("expected 0m for unmuted player, got %q", got)
	}

	// A timed mute in its final minute is still timed, never permanent.
	manager.Mute(Player{UUID: "u3", Name: "carol"}, "caps", 1, "")
	current = current.Add(30 * time.Second)
	if got := manager.MuteRemaining("u3"); got != "1m" {
		t.Fatalf("expected 1m with 30s left, got %q", got)
	}
	if err := manager.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

package punishments

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Lora-Technologies/LoraGuard/internal/db"
)

type countingMuteStore struct {
	active        []db.ActiveMute
	deactivations atomic.Int64
}

func (s *countingMuteStore) GetActiveMutes(_ context.Context) ([]db.ActiveMute, error) {
	return s.active, nil
}

func (s *countingMuteStore) DeactivateMute(_ context.Context, _ string) error {
	s.deactivations.Add(1)
	return nil
}

func TestMuteIndexLoadReconcilesExpired(t *testing.T) {
	t.Parallel()
	store := &countingMuteStore{active: []db.ActiveMute{
		{PlayerUUID: "live", Expiry: time.Now().Add(time.Hour)},
		{PlayerUUID: "forever"},
		{PlayerUUID: "stale", Expiry: time.Now().Add(-time.Hour)},
	}}
	index := NewMuteIndex(store)

	if err := index.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	if !index.IsMuted("live") || !index.IsMuted("forever") {
		t.Fatal("active mutes should be loaded")
	}
	if index.IsMuted("stale") {
		t.Fatal("expired mute should not be loaded")
	}
	if got := store.deactivations.Load(); got != 1 {
		t.Fatalf("expected 1 reconciliation write, got %d", got)
	}
}

func TestMuteExpiryBoundary(t *testing.T) {
	t.Parallel()
	index := NewMuteIndex(&countingMuteStore{})
	current := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	index.now = func() time.Time { return current }

	expiry := current.Add(10 * time.Minute)
	index.Add("u1", expiry)

	if !index.IsMuted("u1") {
		t.Fatal("should be muted immediately")
	}
	current = expiry.Add(-time.Second)
	if !index.IsMuted("u1") {
		t.Fatal("should be muted just before expiry")
	}
	current = expiry
	if index.IsMuted("u1") {
		t.Fatal("should not be muted at expiry")
	}
	if index.IsMuted("u1") {
		t.Fatal("should stay unmuted")
	}
}

func TestIndefiniteMuteNeverExpires(t *testing.T) {
	t.Parallel()
	index := NewMuteIndex(&countingMuteStore{})
	index.Add("u1", time.Time{})

	if !index.IsMuted("u1") {
		t.Fatal("indefinite mute should hold")
	}
	index.Remove("u1")
	if index.IsMuted("u1") {
		t.Fatal("removed mute should not hold")
	}
	if err := index.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestConcurrentExpiryFiresOneWrite(t *testing.T) {
	t.Parallel()
	store := &countingMuteStore{}
	index := NewMuteIndex(store)

	var mu sync.Mutex
	current := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	index.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return current
	}

	expiry := current.Add(10 * time.Minute)
	index.Add("u1", expiry)

	mu.Lock()
	current = expiry.Add(time.Second)
	mu.Unlock()

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if index.IsMuted("u1") {
				t.Error("expired mute reported as active")
			}
		}()
	}
	close(start)
	wg.Wait()

	if err := index.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if got := store.deactivations.Load(); got != 1 {
		t.Fatalf("expected exactly 1 deactivation write, got %d", got)
	}
}

package decay

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/Lora-Technologies/LoraGuard/internal/config"
	"github.com/Lora-Technologies/LoraGuard/internal/infra"
)

type ledgerStore interface {
	DecayViolationPoints(ctx context.Context, idleFor time.Duration, amount int) (int64, error)
}

// Task periodically bleeds violation points off players who have kept
// quiet, so an old offense does not count against them forever.
type Task struct {
	store  ledgerStore
	cfg    config.Decay
	logger *log.Entry
	done   chan struct{}
	wg     chan struct{}
}

func NewTask(store ledgerStore, cfg config.Decay) *Task {
	return &Task{
		store:  store,
		cfg:    cfg,
		logger: log.WithField("object", "DecayTask"),
		done:   make(chan struct{}),
		wg:     make(chan struct{}),
	}
}

func (t *Task) Start(_ context.Context) error {
	if !t.cfg.Enabled {
		close(t.wg)
		return nil
	}
	go func() {
		defer close(t.wg)
		infra.GoRecoverable(3, "decay", t.loop)
	}()
	return nil
}

func (t *Task) loop() {
	ticker := time.NewTicker(t.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			t.runOnce()
		}
	}
}

func (t *Task) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	decayed, err := t.store.DecayViolationPoints(ctx, t.cfg.IdleThreshold, t.cfg.Amount)
	if err != nil {
		t.logger.WithField("error", err.Error()).Error("decay pass failed")
		return
	}
	if decayed > 0 {
		t.logger.WithField("players", decayed).Info("decayed violation points")
	}
}

func (t *Task) Stop(ctx context.Context) error {
	if !t.cfg.Enabled {
		return nil
	}
	close(t.done)
	select {
	case <-t.wg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

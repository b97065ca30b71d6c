package appeals

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/Lora-Technologies/LoraGuard/internal/config"
	"github.com/Lora-Technologies/LoraGuard/internal/db"
	"github.com/Lora-Technologies/LoraGuard/internal/errors"
	"github.com/Lora-Technologies/LoraGuard/internal/punishments"
)

type appealStore interface {
	CreateAppeal(ctx context.Context, a *db.Appeal) (int64, error)
	GetAppeal(ctx context.Context, appealID int64) (*db.Appeal, error)
	GetPendingAppeal(ctx context.Context, playerUUID string) (*db.Appeal, error)
	ListAppealsByStatus(ctx context.Context, status string) ([]*db.Appeal, error)
	ListPlayerAppeals(ctx context.Context, playerUUID string) ([]*db.Appeal, error)
	ResolveAppeal(ctx context.Context, appealID int64, status, reviewer, note string) (bool, error)
	LatestActivePunishment(ctx context.Context, playerUUID, punishmentType string) (*db.Punishment, error)
}

type reverser interface {
	Unmute(player punishments.Player)
	Unban(ctx context.Context, player punishments.Player) error
}

// Service runs the punishment appeal workflow: players file one
// pending appeal at a time against an active mute or ban, staff
// approve or deny it, approval reverses the punishment.
type Service struct {
	store    appealStore
	reverser reverser
	cfg      config.Appeals
	logger   *log.Entry
	now      func() time.Time
}

func NewService(store appealStore, reverser reverser, cfg config.Appeals) *Service {
	return &Service{
		store:    store,
		reverser: reverser,
		cfg:      cfg,
		logger:   log.WithField("object", "AppealService"),
		now:      time.Now,
	}
}

// Create files an appeal against the player's latest active punishment
// of the claimed type. The player must actually hold one, must not
// already have a pending appeal, and must be past the cooldown since
// their last appeal of any outcome.
func (s *Service) Create(ctx context.Context, player punishments.Player, punishmentType punishments.Type, reason string) (*db.Appeal, error) {
	if !s.cfg.Enabled {
		return nil, errors.ErrDisabled
	}
	if punishmentType != punishments.TypeMute && punishmentType != punishments.TypeBan {
		return nil, errors.ErrInvalidInput
	}

	if pending, err := s.store.GetPendingAppeal(ctx, player.UUID); err != nil {
		return nil, err
	} else if pending != nil {
		return nil, errors.ErrPendingExists
	}

	if err := s.checkCooldown(ctx, player.UUID); err != nil {
		return nil, err
	}

	punishment, err := s.store.LatestActivePunishment(ctx, player.UUID, string(punishmentType))
	if err != nil {
		return nil, err
	}
	if punishment == nil {
		return nil, errors.ErrNoActivePunishment
	}

	appeal := &db.Appeal{
		PlayerUUID:     player.UUID,
		PlayerName:     player.Name,
		PunishmentID:   punishment.ID,
		PunishmentType: string(punishmentType),
		Reason:         reason,
		Status:         db.AppealStatusPending,
	}
	id, err := s.store.CreateAppeal(ctx, appeal)
	if err != nil {
		return nil, err
	}
	appeal.ID = id
	s.logger.WithField("player", player.Name).WithField("appeal", id).Info("appeal filed")
	return appeal, nil
}

func (s *Service) checkCooldown(ctx context.Context, playerUUID string) error {
	if s.cfg.Cooldown <= 0 {
		return nil
	}
	previous, err := s.store.ListPlayerAppeals(ctx, playerUUID)
	if err != nil {
		return err
	}
	cutoff := s.now().Add(-s.cfg.Cooldown)
	for _, appeal := range previous {
		if appeal.CreatedAt.After(cutoff) {
			return errors.ErrCooldownActive
		}
	}
	return nil
}

// Approve resolves a pending appeal in the player's favor and reverses
// the appealed punishment. Resolution is a guarded state transition;
// an appeal that is no longer pending cannot be resolved again.
func (s *Service) Approve(ctx context.Context, appealID int64, reviewer, note string) error {
	appeal, err := s.resolve(ctx, appealID, db.AppealStatusApproved, reviewer, note)
	if err != nil {
		return err
	}

	player := punishments.Player{UUID: appeal.PlayerUUID, Name: appeal.PlayerName}
	switch appeal.PunishmentType {
	case string(punishments.TypeMute):
		s.reverser.Unmute(player)
	case string(punishments.TypeBan):
		if err := s.reverser.Unban(ctx, player); err != nil {
			return err
		}
	}
	s.logger.WithField("appeal", appealID).WithField("reviewer", reviewer).Info("appeal approved")
	return nil
}

// Deny resolves a pending appeal against the player. The punishment
// stands.
func (s *Service) Deny(ctx context.Context, appealID int64, reviewer, note string) error {
	if _, err := s.resolve(ctx, appealID, db.AppealStatusDenied, reviewer, note); err != nil {
		return err
	}
	s.logger.WithField("appeal", appealID).WithField("reviewer", reviewer).Info("appeal denied")
	return nil
}

func (s *Service) resolve(ctx context.Context, appealID int64, status, reviewer, note string) (*db.Appeal, error) {
	appeal, err := s.store.GetAppeal(ctx, appealID)
	if err != nil {
		return nil, err
	}
	if appeal == nil {
		return nil, errors.ErrNotFound
	}
	if appeal.Status != db.AppealStatusPending {
		return nil, errors.ErrNotPending
	}
	updated, err := s.store.ResolveAppeal(ctx, appealID, status, reviewer, note)
	if err != nil {
		return nil, err
	}
	if !updated {
		// Lost the race to another reviewer.
		return nil, errors.ErrNotPending
	}
	return appeal, nil
}

// Get returns a single appeal by id.
func (s *Service) Get(ctx context.Context, appealID int64) (*db.Appeal, error) {
	appeal, err := s.store.GetAppeal(ctx, appealID)
	if err != nil {
		return nil, err
	}
	if appeal == nil {
		return nil, errors.ErrNotFound
	}
	return appeal, nil
}

// Pending lists all appeals awaiting review, oldest first.
func (s *Service) Pending(ctx context.Context) ([]*db.Appeal, error) {
	return s.store.ListAppealsByStatus(ctx, db.AppealStatusPending)
}

// History lists every appeal the player has ever filed.
func (s *Service) History(ctx context.Context, playerUUID string) ([]*db.Appeal, error) {
	return s.store.ListPlayerAppeals(ctx, playerUUID)
}

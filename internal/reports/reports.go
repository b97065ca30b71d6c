package reports

import (
	"context"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/Lora-Technologies/LoraGuard/internal/db"
	"github.com/Lora-Technologies/LoraGuard/internal/errors"
	"github.com/Lora-Technologies/LoraGuard/internal/punishments"
)

type reportStore interface {
	CreateReport(ctx context.Context, r *db.Report) (int64, error)
	GetReport(ctx context.Context, reportID int64) (*db.Report, error)
	ListReportsByStatus(ctx context.Context, status string) ([]*db.Report, error)
	ResolveReport(ctx context.Context, reportID int64, reviewer, actionTaken string) (bool, error)
}

type cooldowns interface {
	TryAcquire(key string) (bool, time.Duration)
}

// Service lets players flag each other for staff review. A per
// reporter cooldown keeps the queue from being flooded.
type Service struct {
	store    reportStore
	cooldown cooldowns
	logger   *log.Entry
}

func NewService(store reportStore, cooldown cooldowns) *Service {
	return &Service{
		store:    store,
		cooldown: cooldown,
		logger:   log.WithField("object", "ReportService"),
	}
}

func (s *Service) Create(ctx context.Context, reporter, reported punishments.Player, reason string, message *string) (int64, error) {
	if strings.TrimSpace(reason) == "" || reporter.UUID == reported.UUID {
		return 0, errors.ErrInvalidInput
	}
	if s.cooldown != nil {
		if ok, _ := s.cooldown.TryAcquire(reporter.UUID); !ok {
			return 0, errors.ErrCooldownActive
		}
	}

	id, err := s.store.CreateReport(ctx, &db.Report{
		ReporterUUID: reporter.UUID,
		ReporterName: reporter.Name,
		ReportedUUID: reported.UUID,
		ReportedName: reported.Name,
		Reason:       reason,
		Message:      message,
		Status:       db.ReportStatusPending,
	})
	if err != nil {
		return 0, err
	}
	s.logger.WithField("reporter", reporter.Name).WithField("reported", reported.Name).Info("report filed")
	return id, nil
}

func (s *Service) Get(ctx context.Context, reportID int64) (*db.Report, error) {
	report, err := s.store.GetReport(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if report == nil {
		return nil, errors.ErrNotFound
	}
	return report, nil
}

// Pending lists reports awaiting review, oldest first.
func (s *Service) Pending(ctx context.Context) ([]*db.Report, error) {
	return s.store.ListReportsByStatus(ctx, db.ReportStatusPending)
}

// Resolve marks a pending report reviewed, recording what was done
// about it. Resolving twice is rejected.
func (s *Service) Resolve(ctx context.Context, reportID int64, reviewer, actionTaken string) error {
	report, err := s.store.GetReport(ctx, reportID)
	if err != nil {
		return err
	}
	if report == nil {
		return errors.ErrNotFound
	}
	updated, err := s.store.ResolveReport(ctx, reportID, reviewer, actionTaken)
	if err != nil {
		return err
	}
	if !updated {
		return errors.ErrNotPending
	}
	s.logger.WithField("report", reportID).WithField("reviewer", reviewer).Info("report resolved")
	return nil
}

package pendingimports

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lodgetix/reconcile/pkg/config"
	"github.com/lodgetix/reconcile/pkg/db/models"
	"github.com/lodgetix/reconcile/pkg/logger"
)

// Service runs the bounded-retry queue for registrations staged without a
// verified payment.
type Service interface {
	Enqueue(ctx context.Context, reg *models.RegistrationImport, reason string) error
	Sweep(ctx context.Context) (*SweepSummary, error)
}

// SweepSummary reports one pass over the pending queue.
type SweepSummary struct {
	Checked  int `json:"checked"`
	Promoted int `json:"promoted"`
	Retried  int `json:"retried"`
	Failed   int `json:"failed"`
}

type stagedRegistrationStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.RegistrationImport, error)
}

type paymentFinder interface {
	FindByReference(ctx context.Context, sourcePaymentID, paymentIntentID string) (*models.Payment, error)
}

type registrationPromoter interface {
	PromoteRegistration(ctx context.Context, stagedReg *models.RegistrationImport, payment *models.Payment) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams wires the pending-import service dependencies.
type ServiceParams struct {
	Config              *config.Config
	Logger              *logger.Logger
	DB                  txRunner
	Pending             Repository
	Failed              FailedRegistrationRepository
	RegistrationImports stagedRegistrationStore
	Payments            paymentFinder
	Promoter            registrationPromoter
	Now                 func() time.Time
}

type service struct {
	cfg        *config.Config
	logg       *logger.Logger
	db         txRunner
	pending    Repository
	failed     FailedRegistrationRepository
	stagedRegs stagedRegistrationStore
	payments   paymentFinder
	promoter   registrationPromoter
	now        func() time.Time
}

// NewService validates the dependencies and returns a pending-import service.
func NewService(params ServiceParams) (Service, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	if params.Pending == nil || params.Failed == nil {
		return nil, errors.New("pending and failed repositories are required")
	}
	if params.RegistrationImports == nil {
		return nil, errors.New("registration import repository is required")
	}
	if params.Payments == nil {
		return nil, errors.New("payment finder is required")
	}
	if params.Promoter == nil {
		return nil, errors.New("registration promoter is required")
	}

	now := params.Now
	if now == nil {
		now = time.Now
	}

	return &service{
		cfg:        params.Config,
		logg:       params.Logger,
		db:         params.DB,
		pending:    params.Pending,
		failed:     params.Failed,
		stagedRegs: params.RegistrationImports,
		payments:   params.Payments,
		promoter:   params.Promoter,
		now:        now,
	}, nil
}

// Enqueue parks a staged registration until its payment arrives. Safe to
// call repeatedly for the same registration.
func (s *service) Enqueue(ctx context.Context, reg *models.RegistrationImport, reason string) error {
	if reg == nil {
		return errors.New("registration import is required")
	}
	return s.pending.Enqueue(ctx, &models.PendingImport{
		RegistrationImportID: reg.ID,
		ConfirmationNumber:   reg.ConfirmationNumber,
		Reason:               reason,
	})
}

// Sweep re-checks every queued registration for a now-existing payment.
// A match promotes the registration; otherwise the check count climbs
// until the ceiling moves the record to failed_registrations.
func (s *service) Sweep(ctx context.Context) (*SweepSummary, error) {
	rows, err := s.pending.List(ctx, s.cfg.Reconcile.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("listing pending imports: %w", err)
	}

	summary := &SweepSummary{}
	for i := range rows {
		entry := rows[i]
		summary.Checked++

		if err := s.check(ctx, &entry, summary); err != nil {
			s.logg.Error(s.logg.WithField(ctx, "confirmation_number", entry.ConfirmationNumber), "pending import check failed", err)
		}
	}
	return summary, nil
}

func (s *service) check(ctx context.Context, entry *models.PendingImport, summary *SweepSummary) error {
	reg, err := s.stagedRegs.GetByID(ctx, entry.RegistrationImportID)
	if err != nil {
		return fmt.Errorf("loading staged registration: %w", err)
	}
	if reg == nil {
		// The staging row is gone; nothing left to wait for.
		return s.pending.Delete(ctx, entry.ID)
	}
	if reg.Processed {
		return s.pending.Delete(ctx, entry.ID)
	}

	payment, err := s.payments.FindByReference(ctx, stringValue(reg.SquarePaymentID), stringValue(reg.StripePaymentIntentID))
	if err != nil {
		return fmt.Errorf("checking payments: %w", err)
	}

	if payment != nil {
		if err := s.promoter.PromoteRegistration(ctx, reg, payment); err != nil {
			return fmt.Errorf("promoting registration: %w", err)
		}
		if err := s.pending.Delete(ctx, entry.ID); err != nil {
			return err
		}
		summary.Promoted++
		s.logg.Info(s.logg.WithRegistrationID(ctx, reg.RegistrationID.String()), "pending registration promoted after payment arrived")
		return nil
	}

	if entry.CheckCount+1 >= s.cfg.Reconcile.MaxPendingChecks {
		if err := s.moveToFailed(ctx, entry, reg); err != nil {
			return err
		}
		summary.Failed++
		return nil
	}

	if err := s.pending.RecordCheck(ctx, entry.ID, s.now()); err != nil {
		return err
	}
	summary.Retried++
	return nil
}

// moveToFailed retires a pending entry that hit the retry ceiling,
// carrying the staged document along for later triage.
func (s *service) moveToFailed(ctx context.Context, entry *models.PendingImport, reg *models.RegistrationImport) error {
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		row := &models.FailedRegistration{
			RegistrationImportID: entry.RegistrationImportID,
			ConfirmationNumber:   entry.ConfirmationNumber,
			Reason:               fmt.Sprintf("no payment after %d checks", entry.CheckCount+1),
			CheckCount:           entry.CheckCount + 1,
			Data:                 reg.Data,
			FailedAt:             s.now(),
		}
		if err := s.failed.WithTx(tx).Insert(ctx, row); err != nil {
			return err
		}
		return s.pending.WithTx(tx).Delete(ctx, entry.ID)
	})
	if err != nil {
		return fmt.Errorf("retiring pending import: %w", err)
	}

	s.logg.Warn(s.logg.WithField(ctx, "confirmation_number", entry.ConfirmationNumber), "pending registration exhausted its retries")
	return nil
}

func stringValue(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

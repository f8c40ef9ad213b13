package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lodgetix/reconcile/internal/matching"
	"github.com/lodgetix/reconcile/internal/payments"
	"github.com/lodgetix/reconcile/internal/registrations"
	"github.com/lodgetix/reconcile/internal/staging"
	"github.com/lodgetix/reconcile/internal/tickets"
	"github.com/lodgetix/reconcile/pkg/config"
	"github.com/lodgetix/reconcile/pkg/db/models"
	dbtypes "github.com/lodgetix/reconcile/pkg/db/types"
	"github.com/lodgetix/reconcile/pkg/enums"
	"github.com/lodgetix/reconcile/pkg/logger"
	"github.com/lodgetix/reconcile/pkg/metrics"
	"github.com/lodgetix/reconcile/pkg/outbox"
	"github.com/lodgetix/reconcile/pkg/outbox/payloads"
)

// Service drives the reconciliation state machine: staged payments are
// matched to staged registrations, promoted to production, and their
// staging rows stamped with a terminal outcome.
type Service interface {
	ProcessPayments(ctx context.Context) (*Summary, error)
	ProcessPayment(ctx context.Context, id uuid.UUID) (enums.ProcessedStatus, error)
	PromoteRegistration(ctx context.Context, stagedReg *models.RegistrationImport, payment *models.Payment) error
	SweepOrphans(ctx context.Context) (*SweepSummary, error)
}

// Summary reports one reconciliation pass over staged payments.
type Summary struct {
	Processed     int `json:"processed"`
	Imported      int `json:"imported"`
	Skipped       int `json:"skipped"`
	FailedNoMatch int `json:"failed_no_match"`
	Failed        int `json:"failed"`
	Pending       int `json:"pending"`
}

// SweepSummary reports one orphan sweep over staged registrations.
type SweepSummary struct {
	Checked  int `json:"checked"`
	Orphaned int `json:"orphaned"`
	Retained int `json:"retained"`
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type paymentMatcher interface {
	Match(ctx context.Context, payment *models.PaymentImport) (*matching.Result, error)
}

type ticketExtractor interface {
	Extract(ctx context.Context, reg *models.RegistrationImport) (*tickets.ExtractResult, error)
	NormalizedData(reg *models.RegistrationImport, rows []models.Ticket) dbtypes.JSONMap
}

// ServiceParams wires the reconciliation service dependencies.
type ServiceParams struct {
	Config              *config.Config
	Logger              *logger.Logger
	DB                  txRunner
	PaymentImports      staging.PaymentImportRepository
	RegistrationImports staging.RegistrationImportRepository
	Payments            payments.Repository
	Registrations       registrations.Repository
	Tickets             tickets.TicketRepository
	Matcher             paymentMatcher
	Transformer         ticketExtractor
	Outbox              outboxEmitter
	Metrics             *metrics.PipelineMetrics
	Now                 func() time.Time
}

type service struct {
	cfg         *config.Config
	logg        *logger.Logger
	db          txRunner
	stagedPays  staging.PaymentImportRepository
	stagedRegs  staging.RegistrationImportRepository
	payments    payments.Repository
	regs        registrations.Repository
	tickets     tickets.TicketRepository
	matcher     paymentMatcher
	transformer ticketExtractor
	outbox      outboxEmitter
	metrics     *metrics.PipelineMetrics
	now         func() time.Time
}

// NewService validates the dependencies and returns a reconciliation service.
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
	if params.PaymentImports == nil || params.RegistrationImports == nil {
		return nil, errors.New("staging repositories are required")
	}
	if params.Payments == nil || params.Registrations == nil || params.Tickets == nil {
		return nil, errors.New("production repositories are required")
	}
	if params.Matcher == nil {
		return nil, errors.New("matcher is required")
	}
	if params.Transformer == nil {
		return nil, errors.New("ticket transformer is required")
	}
	if params.Outbox == nil {
		return nil, errors.New("outbox service is required")
	}

	now := params.Now
	if now == nil {
		now = time.Now
	}

	return &service{
		cfg:         params.Config,
		logg:        params.Logger,
		db:          params.DB,
		stagedPays:  params.PaymentImports,
		stagedRegs:  params.RegistrationImports,
		payments:    params.Payments,
		regs:        params.Registrations,
		tickets:     params.Tickets,
		matcher:     params.Matcher,
		transformer: params.Transformer,
		outbox:      params.Outbox,
		metrics:     params.Metrics,
		now:         now,
	}, nil
}

// ProcessPayments runs the state machine over one batch of unprocessed
// staged payments. Each payment is handled independently; a failure marks
// that row failed and the pass continues.
func (s *service) ProcessPayments(ctx context.Context) (*Summary, error) {
	rows, err := s.stagedPays.ListUnprocessed(ctx, s.cfg.Reconcile.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("listing unprocessed payments: %w", err)
	}

	summary := &Summary{}
	for i := range rows {
		payment := rows[i]
		status, err := s.processOne(ctx, &payment)
		if err != nil {
			summary.Failed++
			summary.Processed++
			s.markFailed(ctx, &payment, err)
			continue
		}
		s.tally(summary, status)
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"processed":       summary.Processed,
		"imported":        summary.Imported,
		"skipped":         summary.Skipped,
		"failed_no_match": summary.FailedNoMatch,
		"failed":          summary.Failed,
		"pending":         summary.Pending,
	}), "reconciliation pass complete")
	return summary, nil
}

// ProcessPayment runs the state machine for a single staged payment.
func (s *service) ProcessPayment(ctx context.Context, id uuid.UUID) (enums.ProcessedStatus, error) {
	payment, err := s.stagedPays.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	if payment == nil {
		return "", fmt.Errorf("staged payment %s not found", id)
	}
	if payment.Processed {
		if payment.ProcessedStatus != nil {
			return *payment.ProcessedStatus, nil
		}
		return "", fmt.Errorf("staged payment %s already processed", id)
	}

	status, err := s.processOne(ctx, payment)
	if err != nil {
		s.markFailed(ctx, payment, err)
		return enums.ProcessedStatusFailed, err
	}
	return status, nil
}

// processOne walks a single payment through the state machine and returns
// the outcome it settled on. An empty status means the payment was left
// unprocessed for a later pass.
func (s *service) processOne(ctx context.Context, payment *models.PaymentImport) (enums.ProcessedStatus, error) {
	logCtx := s.logg.WithPaymentID(ctx, payment.SourcePaymentID)

	exists, err := s.payments.Exists(ctx, payment.Source, payment.SourcePaymentID)
	if err != nil {
		return "", fmt.Errorf("checking production payments: %w", err)
	}
	if exists {
		// Production data always wins; the staged copy is never promoted
		// over it.
		if err := s.stagedPays.MarkProcessed(ctx, payment.ID, enums.ProcessedStatusSkippedExists, nil); err != nil {
			return "", err
		}
		s.metrics.IncProcessed(enums.ProcessedStatusSkippedExists.String())
		return enums.ProcessedStatusSkippedExists, nil
	}

	if !s.promotable(payment.Status) {
		if payment.Status == enums.PaymentStatusPending || payment.Status == enums.PaymentStatusUnknown {
			// Not settled yet; leave the row for a later pass.
			return "", nil
		}
		reason := fmt.Sprintf("payment never settled (status %s)", payment.Status)
		if err := s.stagedPays.MarkProcessed(ctx, payment.ID, enums.ProcessedStatusFailed, &reason); err != nil {
			return "", err
		}
		s.metrics.IncProcessed(enums.ProcessedStatusFailed.String())
		return enums.ProcessedStatusFailed, nil
	}

	match, err := s.matcher.Match(ctx, payment)
	if err != nil {
		return "", err
	}
	if !match.Found() {
		// Unmatched money is never recorded in production without a
		// registration to hang it on.
		reason := "no registration references this payment"
		if err := s.stagedPays.MarkProcessed(ctx, payment.ID, enums.ProcessedStatusFailedNoRegistration, &reason); err != nil {
			return "", err
		}
		s.metrics.IncProcessed(enums.ProcessedStatusFailedNoRegistration.String())
		s.logg.Warn(logCtx, "staged payment has no matching registration")
		return enums.ProcessedStatusFailedNoRegistration, nil
	}

	if err := s.promote(ctx, payment, match); err != nil {
		return "", err
	}
	s.metrics.IncProcessed(enums.ProcessedStatusImported.String())
	s.logg.Info(s.logg.WithRegistrationID(logCtx, match.Registration.RegistrationID.String()), "staged payment promoted to production")
	return enums.ProcessedStatusImported, nil
}

// promote commits the matched payment, its registration, and the
// registration's tickets in one transaction. An existing production
// registration is reused, never overwritten.
func (s *service) promote(ctx context.Context, payment *models.PaymentImport, match *matching.Result) error {
	stagedReg := match.Registration

	return s.db.WithTx(ctx, func(tx *gorm.DB) error {
		regs := s.regs.WithTx(tx)
		stagedPays := s.stagedPays.WithTx(tx)
		stagedRegs := s.stagedRegs.WithTx(tx)

		production, err := regs.GetByRegistrationID(ctx, stagedReg.RegistrationID)
		if err != nil {
			return fmt.Errorf("resolving production registration: %w", err)
		}
		if production == nil {
			production, err = s.importRegistration(ctx, tx, stagedReg)
			if err != nil {
				return err
			}
			if err := stagedRegs.MarkProcessed(ctx, stagedReg.ID, enums.ProcessedStatusImported, nil); err != nil {
				return fmt.Errorf("marking staged registration: %w", err)
			}
		}

		row := s.buildPayment(payment, production, match.Method)
		if err := s.payments.WithTx(tx).Insert(ctx, row); err != nil {
			return fmt.Errorf("inserting production payment: %w", err)
		}
		if err := regs.LinkPayment(ctx, production.ID, row.ID); err != nil {
			return fmt.Errorf("linking payment to registration: %w", err)
		}

		if err := stagedPays.SetMatch(ctx, payment.ID, stagedReg.ID, match.Method, match.Confidence); err != nil {
			return fmt.Errorf("stamping match on staged payment: %w", err)
		}
		if err := stagedPays.MarkProcessed(ctx, payment.ID, enums.ProcessedStatusImported, nil); err != nil {
			return fmt.Errorf("marking staged payment: %w", err)
		}
		return nil
	})
}

// PromoteRegistration imports a staged registration into production and
// links the given payment. The pending-import sweep calls this once a
// payment finally arrives for a registration staged without one.
func (s *service) PromoteRegistration(ctx context.Context, stagedReg *models.RegistrationImport, payment *models.Payment) error {
	if stagedReg == nil {
		return errors.New("staged registration is required")
	}

	return s.db.WithTx(ctx, func(tx *gorm.DB) error {
		regs := s.regs.WithTx(tx)

		production, err := regs.GetByRegistrationID(ctx, stagedReg.RegistrationID)
		if err != nil {
			return fmt.Errorf("resolving production registration: %w", err)
		}
		if production == nil {
			production, err = s.importRegistration(ctx, tx, stagedReg)
			if err != nil {
				return err
			}
		}
		if err := s.stagedRegs.WithTx(tx).MarkProcessed(ctx, stagedReg.ID, enums.ProcessedStatusImported, nil); err != nil {
			return fmt.Errorf("marking staged registration: %w", err)
		}
		if payment != nil {
			if err := regs.LinkPayment(ctx, production.ID, payment.ID); err != nil {
				return fmt.Errorf("linking payment to registration: %w", err)
			}
		}
		return nil
	})
}

// importRegistration promotes a staged registration, extracting its
// tickets into unit rows as part of the same transaction.
func (s *service) importRegistration(ctx context.Context, tx *gorm.DB, stagedReg *models.RegistrationImport) (*models.Registration, error) {
	extraction, err := s.transformer.Extract(ctx, stagedReg)
	if err != nil {
		return nil, fmt.Errorf("extracting tickets: %w", err)
	}
	for _, resolution := range extraction.Resolutions {
		if resolution.Outcome == tickets.ResolutionFallback {
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
				"event_ticket_id": resolution.EventTicketID,
				"reason":          resolution.Reason,
			}), "ticket resolved from embedded fallback values")
		}
	}

	production := &models.Registration{
		RegistrationID:        stagedReg.RegistrationID,
		ConfirmationNumber:    stagedReg.ConfirmationNumber,
		RegistrationType:      stagedReg.RegistrationType,
		StripePaymentIntentID: stagedReg.StripePaymentIntentID,
		SquarePaymentID:       stagedReg.SquarePaymentID,
		PrimaryAttendeeName:   stagedReg.PrimaryAttendeeName,
		PrimaryEmail:          stagedReg.PrimaryEmail,
		TotalAmountPaid:       stagedReg.TotalAmountPaid,
		SubtotalAmount:        stagedReg.SubtotalAmount,
		Data:                  s.transformer.NormalizedData(stagedReg, extraction.Tickets),
	}
	if lodgeID, ok := stagedReg.Data.FirstString("lodgeId", "lodge_id"); ok {
		production.LodgeID = &lodgeID
	}
	if orgID, ok := stagedReg.Data.FirstString("organisationId", "organisation_id"); ok {
		production.OrganisationID = &orgID
	}

	if err := s.regs.WithTx(tx).Insert(ctx, production); err != nil {
		return nil, fmt.Errorf("inserting production registration: %w", err)
	}

	if len(extraction.Tickets) > 0 {
		rows := make([]models.Ticket, len(extraction.Tickets))
		copy(rows, extraction.Tickets)
		for i := range rows {
			rows[i].RegistrationID = production.RegistrationID
		}
		if err := s.tickets.WithTx(tx).CreateBatch(ctx, rows); err != nil {
			return nil, fmt.Errorf("inserting tickets: %w", err)
		}
	}
	return production, nil
}

// buildPayment shapes the production row from the staged one. The match
// method comes from the matcher result, not the staged row, which is
// only stamped later in the same transaction.
func (s *service) buildPayment(payment *models.PaymentImport, production *models.Registration, method enums.MatchMethod) *models.Payment {
	return &models.Payment{
		Source:          payment.Source,
		SourcePaymentID: payment.SourcePaymentID,
		PaymentIntentID: payment.PaymentIntentID,
		Status:          payment.Status,
		GrossAmount:     payment.GrossAmount,
		FeeAmount:       payment.FeeAmount,
		NetAmount:       payment.NetAmount,
		Currency:        payment.Currency,
		CustomerEmail:   payment.CustomerEmail,
		CustomerName:    payment.CustomerName,
		PaymentDate:     payment.PaymentDate,
		RegistrationID:  &production.ID,
		MatchMethod:     method,
	}
}

// SweepOrphans flags staged registrations that outlived the import
// lookback window with no payment anywhere referencing them. Rows whose
// payment has since arrived are left for the pending-import retry path.
func (s *service) SweepOrphans(ctx context.Context) (*SweepSummary, error) {
	cutoff := s.now().Add(-s.cfg.Reconcile.ImportLookback)
	rows, err := s.stagedRegs.ListUnprocessedOlderThan(ctx, cutoff, s.cfg.Reconcile.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("listing stale registrations: %w", err)
	}

	summary := &SweepSummary{}
	for i := range rows {
		reg := rows[i]
		summary.Checked++

		existing, err := s.payments.FindByReference(ctx, deref(reg.SquarePaymentID), deref(reg.StripePaymentIntentID))
		if err != nil {
			return summary, fmt.Errorf("checking payments for registration %s: %w", reg.RegistrationID, err)
		}
		if existing != nil {
			summary.Retained++
			continue
		}

		flaggedAt := s.now()
		err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
			reason := "no payment arrived within the import lookback window"
			if err := s.stagedRegs.WithTx(tx).MarkProcessed(ctx, reg.ID, enums.ProcessedStatusOrphanedNoPayment, &reason); err != nil {
				return err
			}
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.OutboxEventRegistrationOrphaned,
				AggregateType: enums.OutboxAggregateRegistration,
				AggregateID:   reg.RegistrationID,
				Data: payloads.RegistrationOrphanedEvent{
					RegistrationID:     reg.RegistrationID,
					ConfirmationNumber: reg.ConfirmationNumber,
					Reason:             reason,
					FlaggedAt:          flaggedAt,
				},
				Version:    1,
				OccurredAt: flaggedAt,
			})
		})
		if err != nil {
			return summary, fmt.Errorf("flagging registration %s: %w", reg.RegistrationID, err)
		}
		summary.Orphaned++
		s.metrics.IncOrphaned()
	}

	return summary, nil
}

// promotable reports whether money in this status belongs in production.
// Refunds settled once, so they are promoted and carry their status.
func (s *service) promotable(status enums.PaymentStatus) bool {
	return status == enums.PaymentStatusPaid || status == enums.PaymentStatusRefunded
}

func (s *service) markFailed(ctx context.Context, payment *models.PaymentImport, cause error) {
	msg := cause.Error()
	if len(msg) > 500 {
		msg = msg[:500]
	}
	if err := s.stagedPays.MarkProcessed(ctx, payment.ID, enums.ProcessedStatusFailed, &msg); err != nil {
		s.logg.Error(ctx, "marking staged payment failed", err)
		return
	}
	s.metrics.IncProcessed(enums.ProcessedStatusFailed.String())
}

func (s *service) tally(summary *Summary, status enums.ProcessedStatus) {
	switch status {
	case enums.ProcessedStatusImported:
		summary.Processed++
		summary.Imported++
	case enums.ProcessedStatusSkippedExists:
		summary.Processed++
		summary.Skipped++
	case enums.ProcessedStatusFailedNoRegistration:
		summary.Processed++
		summary.FailedNoMatch++
	case enums.ProcessedStatusFailed:
		summary.Processed++
		summary.Failed++
	default:
		summary.Pending++
	}
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

package staging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	sq "github.com/square/square-go-sdk"
	"github.com/stripe/stripe-go/v84"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/lodgetix/reconcile/pkg/config"
	pkgdb "github.com/lodgetix/reconcile/pkg/db"
	"github.com/lodgetix/reconcile/pkg/db/models"
	"github.com/lodgetix/reconcile/pkg/enums"
	"github.com/lodgetix/reconcile/pkg/logger"
	"github.com/lodgetix/reconcile/pkg/metrics"
	"github.com/lodgetix/reconcile/pkg/outbox"
	"github.com/lodgetix/reconcile/pkg/outbox/payloads"
	pkgsquare "github.com/lodgetix/reconcile/pkg/square"
	pkgstripe "github.com/lodgetix/reconcile/pkg/stripe"
)

// Service stages gateway payments and registration documents for the
// reconciliation pipeline.
type Service interface {
	ImportSquarePayments(ctx context.Context, window *ImportWindow) (*ImportSummary, error)
	ImportStripeCharges(ctx context.Context, window *ImportWindow) (*ImportSummary, error)
	IngestRegistrations(ctx context.Context, docs []RegistrationDocument) (*IngestSummary, error)
}

// ImportWindow overrides the configured lookback for one import run.
// Zero fields fall back to their defaults: End to now, Begin to
// End minus the lookback.
type ImportWindow struct {
	Begin time.Time
	End   time.Time
}

// ImportSummary reports the outcome of one gateway import run.
type ImportSummary struct {
	ImportID string `json:"import_id"`
	Fetched  int    `json:"fetched"`
	Staged   int    `json:"staged"`
	Skipped  int    `json:"skipped"`
	Failed   int    `json:"failed"`
}

// IngestSummary reports the outcome of a registration document ingest.
type IngestSummary struct {
	ImportID string   `json:"import_id"`
	Received int      `json:"received"`
	Staged   int      `json:"staged"`
	Rejected int      `json:"rejected"`
	Pending  int      `json:"pending"`
	Errors   []string `json:"errors,omitempty"`
}

type squareLister interface {
	ListPayments(ctx context.Context, params pkgsquare.ListPaymentsParams) ([]*sq.Payment, error)
}

type stripeLister interface {
	ListCharges(ctx context.Context, params pkgstripe.ListChargesParams) ([]*stripe.Charge, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type pendingEnqueuer interface {
	Enqueue(ctx context.Context, reg *models.RegistrationImport, reason string) error
}

// ServiceParams wires the staging service dependencies.
type ServiceParams struct {
	Config        *config.Config
	Logger        *logger.Logger
	DB            txRunner
	Payments      PaymentImportRepository
	Registrations RegistrationImportRepository
	Square        squareLister
	Stripe        stripeLister
	Outbox        outboxEmitter
	Pending       pendingEnqueuer
	Metrics       *metrics.PipelineMetrics
	IDGenerator   func() string
	Now           func() time.Time
}

type service struct {
	cfg           *config.Config
	logg          *logger.Logger
	db            txRunner
	payments      PaymentImportRepository
	registrations RegistrationImportRepository
	square        squareLister
	stripe        stripeLister
	outbox        outboxEmitter
	pending       pendingEnqueuer
	metrics       *metrics.PipelineMetrics
	newImportID   func() string
	now           func() time.Time
}

// NewService validates the dependencies and returns a staging service.
// Square and Stripe listers are optional so a deployment can run with a
// single gateway configured.
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
	if params.Payments == nil {
		return nil, errors.New("payment import repository is required")
	}
	if params.Registrations == nil {
		return nil, errors.New("registration import repository is required")
	}
	if params.Outbox == nil {
		return nil, errors.New("outbox service is required")
	}

	idGen := params.IDGenerator
	if idGen == nil {
		idGen = defaultImportID
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}

	return &service{
		cfg:           params.Config,
		logg:          params.Logger,
		db:            params.DB,
		payments:      params.Payments,
		registrations: params.Registrations,
		square:        params.Square,
		stripe:        params.Stripe,
		outbox:        params.Outbox,
		pending:       params.Pending,
		metrics:       params.Metrics,
		newImportID:   idGen,
		now:           now,
	}, nil
}

func defaultImportID() string {
	return fmt.Sprintf("imp-%s", time.Now().UTC().Format("20060102-150405"))
}

// ImportSquarePayments fetches the import window from every configured
// Square location and stages whatever is not already staged.
func (s *service) ImportSquarePayments(ctx context.Context, window *ImportWindow) (*ImportSummary, error) {
	if s.square == nil {
		return nil, errors.New("square client is not configured")
	}

	importID := s.newImportID()
	begin, end := s.resolveWindow(window)

	fetched := []*sq.Payment{}
	locations := s.cfg.Square.Locations()
	if len(locations) == 0 {
		locations = []string{""}
	}
	for _, location := range locations {
		payments, err := s.square.ListPayments(ctx, pkgsquare.ListPaymentsParams{
			LocationID: location,
			BeginTime:  begin,
			EndTime:    end,
		})
		if err != nil {
			return nil, err
		}
		fetched = append(fetched, payments...)
	}

	summary := &ImportSummary{ImportID: importID, Fetched: len(fetched)}
	rows := make([]*models.PaymentImport, 0, len(fetched))
	for _, payment := range fetched {
		row, err := normalizeSquarePayment(payment, importID)
		if err != nil {
			summary.Failed++
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "skipping malformed square payment")
			continue
		}
		rows = append(rows, row)
	}

	if err := s.stageRows(ctx, rows, summary); err != nil {
		return summary, err
	}
	s.logImportSummary(ctx, "square", summary)
	return summary, nil
}

// ImportStripeCharges fetches the import window of Stripe charges and
// stages whatever is not already staged.
func (s *service) ImportStripeCharges(ctx context.Context, window *ImportWindow) (*ImportSummary, error) {
	if s.stripe == nil {
		return nil, errors.New("stripe client is not configured")
	}

	importID := s.newImportID()
	begin, end := s.resolveWindow(window)

	charges, err := s.stripe.ListCharges(ctx, pkgstripe.ListChargesParams{Begin: begin, End: end})
	if err != nil {
		return nil, err
	}

	summary := &ImportSummary{ImportID: importID, Fetched: len(charges)}
	rows := make([]*models.PaymentImport, 0, len(charges))
	for _, ch := range charges {
		row, err := normalizeStripeCharge(ch, importID)
		if err != nil {
			summary.Failed++
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "skipping malformed stripe charge")
			continue
		}
		rows = append(rows, row)
	}

	if err := s.stageRows(ctx, rows, summary); err != nil {
		return summary, err
	}
	s.logImportSummary(ctx, "stripe", summary)
	return summary, nil
}

func (s *service) resolveWindow(window *ImportWindow) (time.Time, time.Time) {
	end := s.now()
	if window != nil && !window.End.IsZero() {
		end = window.End
	}
	begin := end.Add(-s.cfg.Reconcile.ImportLookback)
	if window != nil && !window.Begin.IsZero() {
		begin = window.Begin
	}
	return begin, end
}

// stageRows writes the normalized rows with bounded concurrency. Each row
// gets its own transaction so one bad payment never poisons the batch.
func (s *service) stageRows(ctx context.Context, rows []*models.PaymentImport, summary *ImportSummary) error {
	workers := s.cfg.Reconcile.ImportConcurrency
	if workers <= 0 {
		workers = 1
	}

	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		errs error
	)
	jobs := make(chan *models.PaymentImport)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for row := range jobs {
				staged, err := s.stageOne(ctx, row)
				mu.Lock()
				switch {
				case err != nil:
					summary.Failed++
					errs = multierr.Append(errs, err)
				case staged:
					summary.Staged++
				default:
					summary.Skipped++
				}
				mu.Unlock()
			}
		}()
	}

	for _, row := range rows {
		jobs <- row
	}
	close(jobs)
	wg.Wait()

	return errs
}

func (s *service) stageOne(ctx context.Context, row *models.PaymentImport) (bool, error) {
	exists, err := s.payments.Exists(ctx, row.Source, row.SourcePaymentID)
	if err != nil {
		return false, fmt.Errorf("checking staged payment %s: %w", row.SourcePaymentID, err)
	}
	if exists {
		return false, nil
	}

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.payments.WithTx(tx).Insert(ctx, row); err != nil {
			return fmt.Errorf("staging payment %s: %w", row.SourcePaymentID, err)
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.OutboxEventPaymentImported,
			AggregateType: enums.OutboxAggregatePayment,
			AggregateID:   row.ID,
			Version:       1,
			Data: payloads.PaymentImportedEvent{
				PaymentImportID: row.ID,
				Source:          row.Source,
				SourcePaymentID: row.SourcePaymentID,
				Status:          row.Status,
				GrossAmount:     row.GrossAmount.StringFixed(2),
				Currency:        row.Currency,
				PaymentDate:     row.PaymentDate,
			},
		})
	})
	if err != nil {
		// A concurrent import (manual trigger racing the cron sweep) may
		// have staged the same payment between the Exists check and the
		// insert. The unique index makes the loser's write a skip, not a
		// failure.
		if pkgdb.IsUniqueViolation(err, "idx_payment_imports_source_payment") {
			return false, nil
		}
		return false, err
	}

	s.metrics.IncImported(row.Source.String())
	return true, nil
}

// IngestRegistrations upserts pre-parsed registration documents. Rejected
// documents are reported but do not abort the batch.
func (s *service) IngestRegistrations(ctx context.Context, docs []RegistrationDocument) (*IngestSummary, error) {
	importID := s.newImportID()
	summary := &IngestSummary{ImportID: importID, Received: len(docs)}

	maxErrs := s.cfg.Invoice.MaxErrorMessages
	for _, doc := range docs {
		row := &models.RegistrationImport{
			ImportID:           importID,
			RegistrationID:     doc.RegistrationID,
			ConfirmationNumber: doc.ConfirmationNumber,
			RegistrationType:   doc.RegistrationType,
			TotalAmountPaid:    doc.TotalAmountPaid,
			SubtotalAmount:     doc.SubtotalAmount,
			Data:               doc.Raw,
		}
		if doc.StripePaymentIntentID != "" {
			row.StripePaymentIntentID = &doc.StripePaymentIntentID
		}
		if doc.SquarePaymentID != "" {
			row.SquarePaymentID = &doc.SquarePaymentID
		}
		if doc.PrimaryAttendeeName != "" {
			row.PrimaryAttendeeName = &doc.PrimaryAttendeeName
		}
		if doc.PrimaryEmail != "" {
			row.PrimaryEmail = &doc.PrimaryEmail
		}

		if err := s.registrations.Upsert(ctx, row); err != nil {
			summary.Rejected++
			if len(summary.Errors) < maxErrs {
				summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %v", doc.ConfirmationNumber, err))
			}
			continue
		}
		summary.Staged++

		// A registration with no payment reference cannot be matched;
		// park it on the bounded retry queue instead.
		if s.pending != nil && !doc.HasPaymentReference() {
			if err := s.pending.Enqueue(ctx, row, "registration staged without a payment reference"); err != nil {
				s.logg.Error(s.logg.WithField(ctx, "confirmation_number", doc.ConfirmationNumber), "queueing pending import", err)
				continue
			}
			summary.Pending++
		}
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"import_id": summary.ImportID,
		"received":  summary.Received,
		"staged":    summary.Staged,
		"rejected":  summary.Rejected,
	})
	s.logg.Info(ctx, "registration ingest finished")
	return summary, nil
}

func (s *service) logImportSummary(ctx context.Context, source string, summary *ImportSummary) {
	ctx = s.logg.WithFields(ctx, map[string]any{
		"import_id": summary.ImportID,
		"source":    source,
		"fetched":   summary.Fetched,
		"staged":    summary.Staged,
		"skipped":   summary.Skipped,
		"failed":    summary.Failed,
	})
	s.logg.Info(ctx, "payment import finished")
}

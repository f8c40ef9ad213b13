package invoices

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/lodgetix/reconcile/pkg/config"
)

// CounterRepository allocates values from named sequences with a single
// atomic upsert. This is the only concurrency-safe way invoice and ledger
// numbers are issued; nothing reads the counter and adds one client-side.
type CounterRepository interface {
	WithTx(tx *gorm.DB) CounterRepository
	Next(ctx context.Context, name string) (int64, error)
	Current(ctx context.Context, name string) (int64, error)
}

type counterRepository struct {
	db *gorm.DB
}

// NewCounterRepository returns a repository bound to the provided database.
func NewCounterRepository(db *gorm.DB) CounterRepository {
	return &counterRepository{db: db}
}

func (r *counterRepository) WithTx(tx *gorm.DB) CounterRepository {
	if tx == nil {
		return r
	}
	return &counterRepository{db: tx}
}

// Next increments the named counter and returns the post-increment value.
func (r *counterRepository) Next(ctx context.Context, name string) (int64, error) {
	var value int64
	err := r.db.WithContext(ctx).Raw(
		`INSERT INTO counters (name, value, updated_at) VALUES (?, 1, NOW())
		 ON CONFLICT (name) DO UPDATE SET value = counters.value + 1, updated_at = NOW()
		 RETURNING value`, name).Scan(&value).Error
	if err != nil {
		return 0, fmt.Errorf("incrementing counter %s: %w", name, err)
	}
	return value, nil
}

func (r *counterRepository) Current(ctx context.Context, name string) (int64, error) {
	var value int64
	err := r.db.WithContext(ctx).Raw(
		`SELECT COALESCE((SELECT value FROM counters WHERE name = ?), 0)`, name).Scan(&value).Error
	if err != nil {
		return 0, fmt.Errorf("reading counter %s: %w", name, err)
	}
	return value, nil
}

// Allocator issues invoice sequence numbers and renders them into the
// business format. Customer and supplier invoices for one payment share a
// sequence number and differ only in prefix.
type Allocator struct {
	counters CounterRepository
	cfg      config.InvoiceConfig
}

// NewAllocator wires an allocator over the counter store.
func NewAllocator(counters CounterRepository, cfg config.InvoiceConfig) *Allocator {
	return &Allocator{counters: counters, cfg: cfg}
}

// NextSequence allocates the next invoice sequence number for the month
// the invoice is issued in. Counters are scoped per month so the rendered
// numbers restart each period.
func (a *Allocator) NextSequence(ctx context.Context, tx *gorm.DB, issued time.Time) (int64, error) {
	return a.counters.WithTx(tx).Next(ctx, a.monthCounter(issued))
}

// PreviewSequence reads the value the next issuance in the month would
// take without consuming it. Advisory only: a concurrent run may claim
// the value first.
func (a *Allocator) PreviewSequence(ctx context.Context, issued time.Time) (int64, error) {
	current, err := a.counters.Current(ctx, a.monthCounter(issued))
	if err != nil {
		return 0, err
	}
	return current + 1, nil
}

func (a *Allocator) monthCounter(issued time.Time) string {
	return fmt.Sprintf("%s_%s", a.cfg.CounterName, issued.Format("0601"))
}

// NextLedgerID allocates the next ledger row id from the global
// transaction sequence.
func (a *Allocator) NextLedgerID(ctx context.Context, tx *gorm.DB) (int64, error) {
	return a.counters.WithTx(tx).Next(ctx, a.cfg.LedgerCounter)
}

// CustomerNumber renders a customer invoice number, e.g. LTIV-2508-0042.
func (a *Allocator) CustomerNumber(issued time.Time, sequence int64) string {
	return renderNumber(a.cfg.CustomerPrefix, issued, sequence)
}

// SupplierNumber renders the paired supplier invoice number with the same
// sequence, e.g. LTSP-2508-0042.
func (a *Allocator) SupplierNumber(issued time.Time, sequence int64) string {
	return renderNumber(a.cfg.SupplierPrefix, issued, sequence)
}

// SupplierNumberFor derives the supplier number from an already-issued
// customer number. The regenerate path uses this so retries never leak a
// fresh sequence value.
func (a *Allocator) SupplierNumberFor(customerNumber string) string {
	if len(customerNumber) <= len(a.cfg.CustomerPrefix) {
		return customerNumber
	}
	return a.cfg.SupplierPrefix + customerNumber[len(a.cfg.CustomerPrefix):]
}

func renderNumber(prefix string, issued time.Time, sequence int64) string {
	return fmt.Sprintf("%s-%s-%04d", prefix, issued.Format("0601"), sequence)
}

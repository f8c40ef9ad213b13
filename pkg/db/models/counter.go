package models

import "time"

// Counter is an atomically incremented named sequence. Invoice counters
// are scoped per month (e.g. customer_invoice_2508); the ledger sequence
// is a single global counter.
type Counter struct {
	Name      string    `gorm:"column:name;primaryKey"`
	Value     int64     `gorm:"column:value;not null;default:0"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

package enums

import "fmt"

// ProcessedStatus is the terminal outcome stamped on a staging row once the
// reconciliation pass has claimed it.
type ProcessedStatus string

const (
	ProcessedStatusImported              ProcessedStatus = "imported"
	ProcessedStatusSkippedExists         ProcessedStatus = "skipped_exists_in_production"
	ProcessedStatusFailedNoRegistration  ProcessedStatus = "failed_no_matching_registration"
	ProcessedStatusFailed                ProcessedStatus = "failed"
	ProcessedStatusOrphanedNoPayment     ProcessedStatus = "orphaned_no_payment"
)

var validProcessedStatuses = []ProcessedStatus{
	ProcessedStatusImported,
	ProcessedStatusSkippedExists,
	ProcessedStatusFailedNoRegistration,
	ProcessedStatusFailed,
	ProcessedStatusOrphanedNoPayment,
}

// String implements fmt.Stringer.
func (p ProcessedStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known ProcessedStatus.
func (p ProcessedStatus) IsValid() bool {
	for _, candidate := range validProcessedStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// IsFailure reports whether the status records a failed import.
func (p ProcessedStatus) IsFailure() bool {
	return p == ProcessedStatusFailed || p == ProcessedStatusFailedNoRegistration
}

// ParseProcessedStatus converts raw input into a ProcessedStatus.
func ParseProcessedStatus(value string) (ProcessedStatus, error) {
	for _, candidate := range validProcessedStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid processed status %q", value)
}

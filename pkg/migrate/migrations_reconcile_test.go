package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lodgetix/reconcile/pkg/migrate"
)

func TestMigrationsDirValidates(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations dir: %v", err)
	}
}

func TestStagingMigrationContainsConstraints(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_staging_tables.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no staging migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS payment_imports",
		"CREATE TABLE IF NOT EXISTS registration_imports",
		"CREATE UNIQUE INDEX idx_payment_imports_source_payment ON payment_imports (source, source_payment_id)",
		"CHECK (gross_amount >= 0)",
		"DROP TABLE IF EXISTS payment_imports",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestInvoicingMigrationKeepsLedgerIDsUnsequenced(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_invoicing_tables.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no invoicing migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	// transactions ids come from the counters table, never from a
	// database sequence
	if !strings.Contains(content, "id BIGINT PRIMARY KEY") {
		t.Error("transactions table should declare a plain BIGINT primary key")
	}
	if strings.Contains(content, "BIGSERIAL") || strings.Contains(content, "GENERATED ALWAYS AS IDENTITY") {
		t.Error("transactions ids must not be issued by a database sequence")
	}
	if !strings.Contains(content, "CREATE TABLE IF NOT EXISTS counters") {
		t.Error("missing counters table")
	}
}

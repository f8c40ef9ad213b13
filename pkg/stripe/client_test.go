package stripe

import (
	"context"
	"testing"
	"time"
)

func TestChargeListParamsDefaultsLimit(t *testing.T) {
	params := chargeListParams(context.Background(), ListChargesParams{})
	if params.Limit == nil || *params.Limit != defaultPageLimit {
		t.Fatalf("expected default limit %d, got %v", defaultPageLimit, params.Limit)
	}
	if params.CreatedRange != nil {
		t.Fatal("expected zero window to be omitted")
	}
	if len(params.Expand) != 1 || *params.Expand[0] != "data.balance_transaction" {
		t.Fatalf("expected balance transaction expansion, got %v", params.Expand)
	}
}

func TestChargeListParamsSetsCreatedWindow(t *testing.T) {
	begin := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 8, 15, 0, 0, 0, 0, time.UTC)
	params := chargeListParams(context.Background(), ListChargesParams{Begin: begin, End: end, Limit: 10})
	if params.Limit == nil || *params.Limit != 10 {
		t.Fatalf("expected limit 10, got %v", params.Limit)
	}
	if params.CreatedRange == nil {
		t.Fatal("expected created range")
	}
	if params.CreatedRange.GreaterThanOrEqual != begin.Unix() {
		t.Fatalf("unexpected range start %d", params.CreatedRange.GreaterThanOrEqual)
	}
	if params.CreatedRange.LesserThan != end.Unix() {
		t.Fatalf("unexpected range end %d", params.CreatedRange.LesserThan)
	}
}

func TestChargeListParamsEndOnlyWindow(t *testing.T) {
	end := time.Date(2025, 8, 15, 0, 0, 0, 0, time.UTC)
	params := chargeListParams(context.Background(), ListChargesParams{End: end})
	if params.CreatedRange == nil || params.CreatedRange.LesserThan != end.Unix() {
		t.Fatalf("expected end-only range, got %+v", params.CreatedRange)
	}
	if params.CreatedRange.GreaterThanOrEqual != 0 {
		t.Fatalf("expected open range start, got %d", params.CreatedRange.GreaterThanOrEqual)
	}
}

func TestNormalizeEnv(t *testing.T) {
	if env, err := normalizeEnv(""); err != nil || env != testEnv {
		t.Fatalf("expected empty env to default to test, got %q err %v", env, err)
	}
	if env, err := normalizeEnv(" Live "); err != nil || env != liveEnv {
		t.Fatalf("expected normalized live env, got %q err %v", env, err)
	}
	if _, err := normalizeEnv("staging"); err == nil {
		t.Fatal("expected error for unknown environment")
	}
}

func TestValidateAPIKey(t *testing.T) {
	tests := []struct {
		env     string
		key     string
		wantErr bool
	}{
		{testEnv, "sk_test_abc", false},
		{testEnv, "rk_test_abc", false},
		{testEnv, "sk_live_abc", true},
		{liveEnv, "sk_live_abc", false},
		{liveEnv, "rk_live_abc", false},
		{liveEnv, "sk_test_abc", true},
		{"staging", "sk_test_abc", true},
	}
	for _, tt := range tests {
		err := validateAPIKey(tt.env, tt.key)
		if tt.wantErr && err == nil {
			t.Fatalf("env %s key %s: expected error", tt.env, tt.key)
		}
		if !tt.wantErr && err != nil {
			t.Fatalf("env %s key %s: unexpected error %v", tt.env, tt.key, err)
		}
	}
}

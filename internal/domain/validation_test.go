package domain

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestValidateCurrency(t *testing.T) {
	tests := []struct {
		currency string
		wantErr  bool
	}{
		{"USD", false},
		{"usd", false},
		{" EUR ", false},
		{"XYZ", true},
		{"", true},
	}

	for _, tt := range tests {
		err := ValidateCurrency(tt.currency)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateCurrency(%q): unexpected result %v", tt.currency, err)
		}
	}
}

func TestValidateAmount(t *testing.T) {
	if err := ValidateAmount(decimal.NewFromInt(100)); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	if err := ValidateAmount(decimal.NewFromInt(-1)); err == nil {
		t.Error("expected error for negative amount")
	}

	huge, _ := decimal.NewFromString("2000000000000")
	if err := ValidateAmount(huge); err == nil {
		t.Error("expected error for amount above maximum")
	}
}

func TestValidateMetadata(t *testing.T) {
	if err := ValidateMetadata(nil); err != nil {
		t.Errorf("nil metadata must be valid: %v", err)
	}

	if err := ValidateMetadata(map[string]any{"check_number": "1042"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	big := map[string]any{"blob": strings.Repeat("x", MaxMetadataSize+1)}
	if err := ValidateMetadata(big); err == nil {
		t.Error("expected error for oversized metadata")
	}
}

package services

import (
	"testing"

	"fintrack/internal/core"
)

func TestDecideAlert(t *testing.T) {
	limit := core.Money{Cents: 100000}
	tests := []struct {
		name     string
		spent    int64
		wantKind core.AlertKind
		wantOK   bool
	}{
		{"below warning", 79999, "", false},
		{"at warning", 80000, core.AlertWarning, true},
		{"between", 99999, core.AlertWarning, true},
		{"at limit", 100000, core.AlertExceeded, true},
		{"over limit", 250000, core.AlertExceeded, true},
		{"nothing spent", 0, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spent := core.Money{Cents: tt.spent}
			got, ok := DecideAlert("Shopping", spent, limit, core.Percentage(spent, limit))
			if ok != tt.wantOK {
				t.Fatalf("DecideAlert() ok = %v, want %v", ok, tt.wantOK)
			}
			if got.Kind != tt.wantKind {
				t.Errorf("DecideAlert() kind = %q, want %q", got.Kind, tt.wantKind)
			}
		})
	}
}

func TestDecideAlertMessages(t *testing.T) {
	limit := core.Money{Cents: 10000}

	warning, _ := DecideAlert("Food & Dining", core.Money{Cents: 8500}, limit, 85)
	if want := "Budget warning for Food & Dining! 85.0% spent ($85.00 of $100.00)"; warning.Message != want {
		t.Errorf("warning message = %q, want %q", warning.Message, want)
	}

	exceeded, _ := DecideAlert("Food & Dining", core.Money{Cents: 10500}, limit, 105)
	if want := "Budget exceeded for Food & Dining! Spent $105.00 of $100.00"; exceeded.Message != want {
		t.Errorf("exceeded message = %q, want %q", exceeded.Message, want)
	}
}

func TestDecideAlertZeroLimit(t *testing.T) {
	spent := core.Money{Cents: 5000}
	limit := core.Money{}
	if _, ok := DecideAlert("Other", spent, limit, core.Percentage(spent, limit)); ok {
		t.Fatal("a zero limit clamps the percentage to 0 and never alerts")
	}
}

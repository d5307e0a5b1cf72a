package models

import "testing"

func TestIsTerminalBillStatus(t *testing.T) {
	terminal := []string{
		BillStatusCompleted,
		BillStatusFailed,
		BillStatusManualReviewNeeded,
		BillStatusParsingFailed,
	}
	for _, status := range terminal {
		if !IsTerminalBillStatus(status) {
			t.Errorf("expected %q to be terminal", status)
		}
	}
	for _, status := range []string{BillStatusPending, BillStatusProcessing, "bogus"} {
		if IsTerminalBillStatus(status) {
			t.Errorf("expected %q to be non-terminal", status)
		}
	}
}

func TestBillStatusTransitions(t *testing.T) {
	tests := []struct {
		name string
		from string
		to   string
		want bool
	}{
		{"pending to processing", BillStatusPending, BillStatusProcessing, true},
		{"pending straight to completed", BillStatusPending, BillStatusCompleted, true},
		{"pending straight to parsing_failed", BillStatusPending, BillStatusParsingFailed, true},
		{"processing to completed", BillStatusProcessing, BillStatusCompleted, true},
		{"processing to manual review", BillStatusProcessing, BillStatusManualReviewNeeded, true},
		{"processing to failed", BillStatusProcessing, BillStatusFailed, true},
		{"terminal never reverts", BillStatusCompleted, BillStatusProcessing, false},
		{"terminal to terminal", BillStatusFailed, BillStatusCompleted, false},
		{"processing back to pending", BillStatusProcessing, BillStatusPending, false},
		{"no self transition", BillStatusProcessing, BillStatusProcessing, false},
		{"unknown source", "bogus", BillStatusCompleted, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := canTransitionBillStatus(tt.from, tt.to); got != tt.want {
				t.Errorf("canTransitionBillStatus(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestPriceEffective(t *testing.T) {
	if got := (Price{MRP: 550, SellingPrice: 500}).Effective(); got != 500 {
		t.Errorf("Effective() = %v, want selling price 500", got)
	}
	if got := (Price{MRP: 550}).Effective(); got != 550 {
		t.Errorf("Effective() = %v, want MRP fallback 550", got)
	}
}

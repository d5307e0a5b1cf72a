package catalog

import (
	"testing"

	"github.com/Pegais/Sretails-RetailStore-Management-Application/internal/models"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "lowercases", in: "Tap X", want: "tap x"},
		{name: "trims edges", in: "  Cement OPC 53  ", want: "cement opc 53"},
		{name: "collapses internal whitespace", in: "PVC\t Pipe   3/4", want: "pvc pipe 3/4"},
		{name: "empty input", in: "", want: ""},
		{name: "whitespace only", in: "   \t ", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.in)
			if got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
			if again := Normalize(got); again != got {
				t.Errorf("Normalize not idempotent: %q -> %q", got, again)
			}
		})
	}
}

func TestPriceEqual(t *testing.T) {
	tests := []struct {
		name string
		a    models.Price
		b    models.Price
		want bool
	}{
		{
			name: "identical selling prices",
			a:    models.Price{SellingPrice: 100},
			b:    models.Price{SellingPrice: 100},
			want: true,
		},
		{
			name: "difference just under tolerance",
			a:    models.Price{SellingPrice: 100},
			b:    models.Price{SellingPrice: 100.0099},
			want: true,
		},
		{
			name: "difference of exactly one paisa is not equal",
			a:    models.Price{SellingPrice: 100},
			b:    models.Price{SellingPrice: 100.01},
			want: false,
		},
		{
			name: "selling price falls back to MRP",
			a:    models.Price{MRP: 250},
			b:    models.Price{SellingPrice: 250, MRP: 300},
			want: true,
		},
		{
			name: "clearly different",
			a:    models.Price{SellingPrice: 100},
			b:    models.Price{SellingPrice: 110},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PriceEqual(tt.a, tt.b); got != tt.want {
				t.Errorf("PriceEqual(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestDealerEqual(t *testing.T) {
	if !DealerEqual("Acme  Traders", "acme traders") {
		t.Error("expected case and whitespace variants to compare equal")
	}
	if DealerEqual("Acme Traders", "Apex Traders") {
		t.Error("expected different dealers to compare unequal")
	}
}

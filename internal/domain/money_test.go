package domain_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/encontrar/internal/domain"
)

func TestOrderTotal(t *testing.T) {
	cases := []struct {
		name  string
		items []domain.OrderItem
		want  string
	}{
		{
			name: "two lines",
			items: []domain.OrderItem{
				{ProductID: 1, Quantity: 2, Price: decimal.RequireFromString("10.00")},
				{ProductID: 2, Quantity: 1, Price: decimal.RequireFromString("5.50")},
			},
			want: "25.50",
		},
		{
			name: "half rounds up",
			items: []domain.OrderItem{
				{ProductID: 1, Quantity: 1, Price: decimal.RequireFromString("0.125")},
			},
			want: "0.13",
		},
		{
			name: "below half rounds down",
			items: []domain.OrderItem{
				{ProductID: 1, Quantity: 3, Price: decimal.RequireFromString("0.3333")},
			},
			want: "1.00",
		},
		{
			name:  "empty",
			items: nil,
			want:  "0",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := domain.OrderTotal(tc.items)
			if !got.Equal(decimal.RequireFromString(tc.want)) {
				t.Fatalf("OrderTotal() = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestProductSalePrice(t *testing.T) {
	explicit := decimal.RequireFromString("12.345")
	withPrice := domain.Product{Price: &explicit, PurchasePrice: decimal.RequireFromString("1")}
	if got := withPrice.SalePrice(); !got.Equal(decimal.RequireFromString("12.35")) {
		t.Fatalf("explicit price: got %s", got)
	}

	fallback := domain.Product{PurchasePrice: decimal.RequireFromString("10")}
	if got := fallback.SalePrice(); !got.Equal(decimal.RequireFromString("11")) {
		t.Fatalf("markup fallback: got %s", got)
	}

	commissioned := domain.Product{PurchasePrice: decimal.RequireFromString("4000"), Commission: decimal.RequireFromString("15")}
	if got := commissioned.SalePrice(); !got.Equal(decimal.RequireFromString("4600")) {
		t.Fatalf("commission: got %s", got)
	}

	fractional := domain.Product{PurchasePrice: decimal.RequireFromString("8.99"), Commission: decimal.RequireFromString("12.5")}
	if got := fractional.SalePrice(); !got.Equal(decimal.RequireFromString("10.11")) {
		t.Fatalf("fractional commission: got %s", got)
	}

	explicitWins := domain.Product{Price: &explicit, PurchasePrice: decimal.RequireFromString("10"), Commission: decimal.RequireFromString("50")}
	if got := explicitWins.SalePrice(); !got.Equal(decimal.RequireFromString("12.35")) {
		t.Fatalf("explicit price with commission: got %s", got)
	}
}

func TestParseRole(t *testing.T) {
	cases := map[string]domain.Role{
		"Admin":      domain.RoleAdmin,
		"manager":    domain.RoleManager,
		"sales":      domain.RoleSales,
		"shopkeeper": domain.RoleShopkeeper,
		"":           domain.RoleCustomer,
		"root":       domain.RoleCustomer,
	}
	for raw, want := range cases {
		if got := domain.ParseRole(raw); got != want {
			t.Errorf("ParseRole(%q) = %q, want %q", raw, got, want)
		}
	}
	if domain.RoleShopkeeper.Privileged() || !domain.RoleSales.Privileged() {
		t.Fatal("unexpected privileged flags")
	}
}

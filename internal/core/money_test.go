package core_test

import (
	"errors"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"billing-engine/internal/core"
)

func TestNormalizeItems(t *testing.T) {
	tests := []struct {
		name    string
		in      core.RawItem
		want    core.LineItem
		wantErr bool
	}{
		{
			name: "product defaults to taxable",
			in:   core.RawItem{Name: " Pipe ", Type: "product", Quantity: dec("3"), UnitPrice: core.Price(dec("4.50"))},
			want: core.LineItem{Name: "Pipe", Type: core.ItemTypeProduct, Taxable: true, Quantity: 3, UnitPrice: dec("4.50"), LineTotal: dec("13.50")},
		},
		{
			name: "service defaults to non-taxable",
			in:   core.RawItem{Name: "Labour", Type: "SERVICE", Quantity: dec("1"), UnitPrice: core.Price(dec("80"))},
			want: core.LineItem{Name: "Labour", Type: core.ItemTypeService, Taxable: false, Quantity: 1, UnitPrice: dec("80"), LineTotal: dec("80")},
		},
		{
			name: "explicit taxable wins",
			in:   core.RawItem{Name: "Labour", Type: "SERVICE", Taxable: ptr(true), Quantity: dec("1"), UnitPrice: core.Price(dec("10"))},
			want: core.LineItem{Name: "Labour", Type: core.ItemTypeService, Taxable: true, Quantity: 1, UnitPrice: dec("10"), LineTotal: dec("10")},
		},
		{
			name: "unknown type becomes product",
			in:   core.RawItem{Name: "Thing", Type: "widget", Quantity: dec("1"), UnitPrice: core.Price(dec("1"))},
			want: core.LineItem{Name: "Thing", Type: core.ItemTypeProduct, Taxable: true, Quantity: 1, UnitPrice: dec("1"), LineTotal: dec("1")},
		},
		{
			name: "quantity floored and clamped, price clamped",
			in:   core.RawItem{Name: "", Quantity: dec("0.7"), UnitPrice: core.Price(dec("-5"))},
			want: core.LineItem{Name: "Item", Type: core.ItemTypeProduct, Taxable: true, Quantity: 1, UnitPrice: decimal.Zero, LineTotal: decimal.Zero},
		},
		{
			name: "fractional quantity truncated",
			in:   core.RawItem{Name: "Bolt", Quantity: dec("2.9"), UnitPrice: core.Price(dec("1.25"))},
			want: core.LineItem{Name: "Bolt", Type: core.ItemTypeProduct, Taxable: true, Quantity: 2, UnitPrice: dec("1.25"), LineTotal: dec("2.50")},
		},
		{
			name: "missing price is zero",
			in:   core.RawItem{Name: "Freebie", Quantity: dec("3")},
			want: core.LineItem{Name: "Freebie", Type: core.ItemTypeProduct, Taxable: true, Quantity: 3, UnitPrice: decimal.Zero, LineTotal: decimal.Zero},
		},
		{
			name: "largest quantity accepted",
			in:   core.RawItem{Name: "Screw", Quantity: dec("1000000"), UnitPrice: core.Price(dec("0.05"))},
			want: core.LineItem{Name: "Screw", Type: core.ItemTypeProduct, Taxable: true, Quantity: core.MaxItemQuantity, UnitPrice: dec("0.05"), LineTotal: dec("50000")},
		},
		{
			name:    "quantity above maximum rejected",
			in:      core.RawItem{Name: "Screw", Quantity: dec("1000001"), UnitPrice: core.Price(dec("1"))},
			wantErr: true,
		},
		{
			name:    "huge quantity rejected",
			in:      core.RawItem{Name: "Screw", Quantity: dec("1e20"), UnitPrice: core.Price(dec("1"))},
			wantErr: true,
		},
		{
			name:    "unit price above storable amount rejected",
			in:      core.RawItem{Name: "Yacht", Quantity: dec("1"), UnitPrice: core.Price(dec("1000000000000"))},
			wantErr: true,
		},
		{
			name:    "line total above storable amount rejected",
			in:      core.RawItem{Name: "Yacht", Quantity: dec("10"), UnitPrice: core.Price(dec("100000000000"))},
			wantErr: true,
		},
		{
			name:    "overlong name rejected",
			in:      core.RawItem{Name: strings.Repeat("x", core.MaxItemNameLength+1), Quantity: dec("1"), UnitPrice: core.Price(dec("1"))},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := core.NormalizeItems([]core.RawItem{tt.in})
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, core.ErrValidation))
				return
			}
			require.NoError(t, err)
			require.Len(t, items, 1)
			got := items[0]
			assert.Equal(t, tt.want.Name, got.Name)
			assert.Equal(t, tt.want.Type, got.Type)
			assert.Equal(t, tt.want.Taxable, got.Taxable)
			assert.Equal(t, tt.want.Quantity, got.Quantity)
			assertMoney(t, tt.want.UnitPrice.String(), got.UnitPrice)
			assertMoney(t, tt.want.LineTotal.String(), got.LineTotal)
		})
	}
}

func TestNormalizeItems_Empty(t *testing.T) {
	_, err := core.NormalizeItems(nil)
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestNormalizeTaxRateAndDiscount(t *testing.T) {
	assertMoney(t, "0", core.NormalizeTaxRate(dec("-3")))
	assertMoney(t, "100", core.NormalizeTaxRate(dec("150")))
	assertMoney(t, "8.875", core.NormalizeTaxRate(dec("8.875")))
	assertMoney(t, "0", core.NormalizeDiscount(dec("-1")))
	assertMoney(t, "12.35", core.NormalizeDiscount(dec("12.345")))
}

func TestPriceLines_ProportionalScenario(t *testing.T) {
	priced, err := core.PriceLines(scenarioItems(), dec("10"), dec("10"))
	require.NoError(t, err)

	assertMoney(t, "100", priced.SubtotalAmount)
	assertMoney(t, "10", priced.DiscountAmount)
	assertMoney(t, "9", priced.TaxAmount)
	assertMoney(t, "99", priced.TotalAmount)
}

func TestPriceLines_TotalMustFitStorage(t *testing.T) {
	big := core.RawItem{Name: "Yacht", Type: "PRODUCT", Quantity: dec("1"), UnitPrice: core.Price(core.MaxAmount)}

	_, err := core.PriceLines([]core.RawItem{big}, decimal.Zero, decimal.Zero)
	require.NoError(t, err)

	_, err = core.PriceLines([]core.RawItem{big, big}, decimal.Zero, decimal.Zero)
	assert.ErrorIs(t, err, core.ErrValidation)

	// tax pushes the total over
	_, err = core.PriceLines([]core.RawItem{big}, decimal.Zero, dec("10"))
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestComputeFinancials_MixedTaxability(t *testing.T) {
	items, err := core.NormalizeItems([]core.RawItem{
		{Name: "Part", Type: "PRODUCT", Quantity: dec("1"), UnitPrice: core.Price(dec("60"))},
		{Name: "Labour", Type: "SERVICE", Quantity: dec("1"), UnitPrice: core.Price(dec("40"))},
	})
	require.NoError(t, err)

	// discount 20 splits 12 taxable / 8 non-taxable; tax = 48 × 8.25% = 3.96
	fin := core.ComputeFinancials(items, dec("20"), dec("8.25"))
	assertMoney(t, "100", fin.SubtotalAmount)
	assertMoney(t, "20", fin.DiscountAmount)
	assertMoney(t, "3.96", fin.TaxAmount)
	assertMoney(t, "83.96", fin.TotalAmount)
}

func TestComputeFinancials_DiscountCappedAtSubtotal(t *testing.T) {
	items, err := core.NormalizeItems(scenarioItems())
	require.NoError(t, err)

	fin := core.ComputeFinancials(items, dec("500"), dec("10"))
	assertMoney(t, "100", fin.DiscountAmount)
	assertMoney(t, "0", fin.TaxAmount)
	assertMoney(t, "0", fin.TotalAmount)
}

func TestComputeFinancials_Identities(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 500; i++ {
		n := 1 + rng.IntN(6)
		raw := make([]core.RawItem, n)
		for j := range raw {
			raw[j] = core.RawItem{
				Name:      "line",
				Type:      []string{"PRODUCT", "SERVICE", ""}[rng.IntN(3)],
				Quantity:  decimal.NewFromInt(int64(rng.IntN(20))),
				UnitPrice: core.Price(decimal.New(int64(rng.IntN(100000)), -2)),
			}
		}
		discount := decimal.New(int64(rng.IntN(200000)), -2)
		taxRate := decimal.New(int64(rng.IntN(2000)), -2)

		priced, err := core.PriceLines(raw, discount, taxRate)
		require.NoError(t, err)

		sum := decimal.Zero
		for _, it := range priced.Items {
			require.GreaterOrEqual(t, it.Quantity, 1)
			require.False(t, it.UnitPrice.IsNegative())
			require.True(t, it.LineTotal.Equal(decimal.NewFromInt(int64(it.Quantity)).Mul(it.UnitPrice)))
			sum = sum.Add(it.LineTotal)
		}
		require.True(t, sum.Equal(priced.SubtotalAmount), "Σ lineTotal == subtotal")
		require.True(t, priced.DiscountAmount.LessThanOrEqual(priced.SubtotalAmount))

		want := decimal.Max(priced.SubtotalAmount.Sub(priced.DiscountAmount).Add(priced.TaxAmount), decimal.Zero)
		require.True(t, want.Equal(priced.TotalAmount), "total identity")
		require.True(t, priced.TaxAmount.Equal(priced.TaxAmount.Round(2)), "tax is in cents")
	}
}

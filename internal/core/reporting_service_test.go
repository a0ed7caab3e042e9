package core_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"billing-engine/internal/core"
)

func TestResolveRange(t *testing.T) {
	now := time.Date(2026, time.March, 15, 10, 0, 0, 0, time.UTC)
	day := func(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }
	endOf := func(y int, m time.Month, d int) time.Time { return day(y, m, d+1).Add(-time.Nanosecond) }

	tests := []struct {
		name      string
		preset    core.RangePreset
		from, to  string
		wantStart time.Time
		wantEnd   time.Time
		wantErr   bool
	}{
		{name: "default", preset: "", wantStart: day(2026, 2, 14), wantEnd: endOf(2026, 3, 15)},
		{name: "last7", preset: core.RangeLast7, wantStart: day(2026, 3, 9), wantEnd: endOf(2026, 3, 15)},
		{name: "last30", preset: core.RangeLast30, wantStart: day(2026, 2, 14), wantEnd: endOf(2026, 3, 15)},
		{name: "last90", preset: core.RangeLast90, wantStart: day(2025, 12, 16), wantEnd: endOf(2026, 3, 15)},
		{name: "thisMonth", preset: core.RangeThisMonth, wantStart: day(2026, 3, 1), wantEnd: endOf(2026, 3, 15)},
		{name: "lastMonth", preset: core.RangeLastMonth, wantStart: day(2026, 2, 1), wantEnd: endOf(2026, 2, 28)},
		{name: "ytd", preset: core.RangeYTD, wantStart: day(2026, 1, 1), wantEnd: endOf(2026, 3, 15)},
		{name: "custom", preset: core.RangeCustom, from: "2026-02-01", to: "2026-02-10", wantStart: day(2026, 2, 1), wantEnd: endOf(2026, 2, 10)},
		{name: "custom single day", preset: core.RangeCustom, from: "2026-02-01", to: "2026-02-01", wantStart: day(2026, 2, 1), wantEnd: endOf(2026, 2, 1)},
		{name: "custom reversed", preset: core.RangeCustom, from: "2026-02-10", to: "2026-02-01", wantErr: true},
		{name: "custom malformed", preset: core.RangeCustom, from: "02/01/2026", to: "2026-02-10", wantErr: true},
		{name: "unknown", preset: "fortnight", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := core.ResolveRange(tt.preset, now, tt.from, tt.to)
			if tt.wantErr {
				assert.ErrorIs(t, err, core.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStart, r.Start)
			assert.Equal(t, tt.wantEnd, r.End)
		})
	}
}

func TestResolveRange_LastMonthAcrossYear(t *testing.T) {
	now := time.Date(2026, time.January, 5, 8, 0, 0, 0, time.UTC)
	r, err := core.ResolveRange(core.RangeLastMonth, now, "", "")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, time.December, 1, 0, 0, 0, 0, time.UTC), r.Start)
	assert.Equal(t, time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC).Add(-time.Nanosecond), r.End)
}

func TestSummary(t *testing.T) {
	f := newFixture(t)

	// converted estimate: total 99, tax 9
	est := f.createEstimate(t)
	conv, err := f.conversion.Convert(f.ctx, f.orgID, est.ID)
	require.NoError(t, err)
	_, err = f.ledger.ApplyPayment(f.ctx, f.orgID, conv.SaleID, core.PaymentInput{Amount: dec("40")})
	require.NoError(t, err)

	f.createSale(t, "50")

	old := time.Date(2026, time.January, 10, 12, 0, 0, 0, time.UTC)
	oldSale, err := f.sales.Create(f.ctx, f.orgID, core.SaleInput{
		CustomerID: f.customer.ID,
		Items:      []core.RawItem{{Name: "Old job", Type: "SERVICE", Quantity: dec("1"), UnitPrice: core.Price(dec("20"))}},
		SaleDate:   &old,
	})
	require.NoError(t, err)
	_, err = f.ledger.ApplyPayment(f.ctx, f.orgID, oldSale.ID, core.PaymentInput{Amount: dec("5"), PaidAt: &old})
	require.NoError(t, err)

	r, err := f.reports.ResolveRange("last30", "", "")
	require.NoError(t, err)
	sum, err := f.reports.Summary(f.ctx, f.orgID, r)
	require.NoError(t, err)

	assert.Equal(t, 2, sum.InvoiceCount)
	assertMoney(t, "149", sum.TotalInvoiced)
	assertMoney(t, "9", sum.TotalTax)
	assertMoney(t, "74.50", sum.AvgInvoice)
	assert.Equal(t, 1, sum.PaymentCount)
	assertMoney(t, "40", sum.TotalPayments)
	// outstanding ignores the range
	assertMoney(t, "124", sum.Outstanding)
	assert.Equal(t, 3, sum.OpenCount)

	other, err := f.reports.Summary(f.ctx, f.otherOrgID, r)
	require.NoError(t, err)
	assert.Zero(t, other.InvoiceCount)
	assertMoney(t, "0", other.Outstanding)
	assertMoney(t, "0", other.AvgInvoice)
}

func TestCheckIntegrity(t *testing.T) {
	f := newFixture(t)
	est := f.createEstimate(t)
	_, err := f.conversion.Convert(f.ctx, f.orgID, est.ID)
	require.NoError(t, err)
	sale := f.createSale(t, "40")

	report, err := f.reports.CheckIntegrity(f.ctx, f.orgID)
	require.NoError(t, err)
	assert.True(t, report.Healthy())
	assert.Equal(t, 1, report.EstimatesScanned)
	assert.Equal(t, 2, report.SalesScanned)

	// corrupt the stored aggregates behind the ledger's back
	stored, err := f.store.GetSale(f.ctx, f.orgID, sale.ID)
	require.NoError(t, err)
	stored.PaidAmount = dec("15")
	require.NoError(t, f.store.UpdateSale(f.ctx, stored))

	report, err = f.reports.CheckIntegrity(f.ctx, f.orgID)
	require.NoError(t, err)
	assert.False(t, report.Healthy())
	require.Len(t, report.Mismatches, 1)
	m := report.Mismatches[0]
	assert.Equal(t, sale.ID, m.SaleID)
	assertMoney(t, "15", m.StoredPaid)
	assertMoney(t, "0", m.ExpectedPaid)
	assertMoney(t, "40", m.ExpectedBalance)
	assert.False(t, m.Overpaid)
}

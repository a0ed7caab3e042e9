package core_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"billing-engine/internal/core"
)

func TestApplyPayment_SettlesSale(t *testing.T) {
	f := newFixture(t)
	sale := f.createSale(t, "100")

	res, err := f.ledger.ApplyPayment(f.ctx, f.orgID, sale.ID, core.PaymentInput{Amount: dec("60"), Method: "zelle"})
	require.NoError(t, err)
	assert.Equal(t, core.PaymentMethodZelle, res.Payment.Method)
	assertMoney(t, "60", res.Sale.PaidAmount)
	assertMoney(t, "40", res.Sale.BalanceAmount)
	assert.Equal(t, core.SaleStatusPending, res.Sale.Status)

	res, err = f.ledger.ApplyPayment(f.ctx, f.orgID, sale.ID, core.PaymentInput{Amount: dec("30"), Method: "CARD"})
	require.NoError(t, err)
	assertMoney(t, "90", res.Sale.PaidAmount)
	assertMoney(t, "10", res.Sale.BalanceAmount)

	_, err = f.ledger.ApplyPayment(f.ctx, f.orgID, sale.ID, core.PaymentInput{Amount: dec("15")})
	require.Error(t, err)
	assert.Equal(t, core.CodeExceedsBalance, core.CodeOf(err))
	assert.Contains(t, err.Error(), "10.00")

	res, err = f.ledger.ApplyPayment(f.ctx, f.orgID, sale.ID, core.PaymentInput{Amount: dec("10")})
	require.NoError(t, err)
	assert.Equal(t, core.PaymentMethodOther, res.Payment.Method)
	assertMoney(t, "100", res.Sale.PaidAmount)
	assertMoney(t, "0", res.Sale.BalanceAmount)
	assert.Equal(t, core.SaleStatusPaid, res.Sale.Status)

	_, err = f.ledger.ApplyPayment(f.ctx, f.orgID, sale.ID, core.PaymentInput{Amount: dec("1")})
	assert.Equal(t, core.CodeAlreadyPaid, core.CodeOf(err))

	payments, err := f.ledger.ListPayments(f.ctx, f.orgID, sale.ID)
	require.NoError(t, err)
	assert.Len(t, payments, 3)
}

func TestApplyPayment_RejectionLeavesNoTrace(t *testing.T) {
	f := newFixture(t)
	sale := f.createSale(t, "50")
	before, err := f.sales.Get(f.ctx, f.orgID, sale.ID)
	require.NoError(t, err)

	_, err = f.ledger.ApplyPayment(f.ctx, f.orgID, sale.ID, core.PaymentInput{Amount: dec("50.01")})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrConflict)

	after, err := f.sales.Get(f.ctx, f.orgID, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Empty(t, after.Payments)
}

func TestApplyPayment_Validation(t *testing.T) {
	f := newFixture(t)
	sale := f.createSale(t, "50")

	tests := []struct {
		name string
		in   core.PaymentInput
	}{
		{"zero", core.PaymentInput{Amount: dec("0")}},
		{"negative", core.PaymentInput{Amount: dec("-5")}},
		{"sub-cent", core.PaymentInput{Amount: dec("1.005")}},
		{"unknown method", core.PaymentInput{Amount: dec("5"), Method: "bitcoin"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ledger.ApplyPayment(f.ctx, f.orgID, sale.ID, tt.in)
			assert.ErrorIs(t, err, core.ErrValidation)
		})
	}

	_, err := f.ledger.ApplyPayment(f.ctx, f.otherOrgID, sale.ID, core.PaymentInput{Amount: dec("5")})
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestApplyPayment_PaidAtAndNotes(t *testing.T) {
	f := newFixture(t)
	sale := f.createSale(t, "50")
	paidAt := f.now.Add(-48 * time.Hour)

	res, err := f.ledger.ApplyPayment(f.ctx, f.orgID, sale.ID, core.PaymentInput{
		Amount: dec("20"), Method: " check ", Notes: "  #1042 ", PaidAt: &paidAt,
	})
	require.NoError(t, err)
	assert.Equal(t, core.PaymentMethodCheck, res.Payment.Method)
	assert.Equal(t, "#1042", res.Payment.Notes)
	assert.Equal(t, paidAt, res.Payment.PaidAt)
}

func TestApplyPayment_RollsBackWhenSaleUpdateFails(t *testing.T) {
	f := newFixture(t)
	sale := f.createSale(t, "50")

	f.store.FailNext("UpdateSale", errBoom)
	_, err := f.ledger.ApplyPayment(f.ctx, f.orgID, sale.ID, core.PaymentInput{Amount: dec("20")})
	assert.ErrorIs(t, err, errBoom)

	got, err := f.sales.Get(f.ctx, f.orgID, sale.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Payments)
	assertMoney(t, "0", got.PaidAmount)
	assertMoney(t, "50", got.BalanceAmount)
}

func TestApplyPayment_ConcurrentSubmissionsNeverOverpay(t *testing.T) {
	f := newFixture(t)
	sale := f.createSale(t, "100")

	const workers = 10
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
		rejected int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.ledger.ApplyPayment(f.ctx, f.orgID, sale.ID, core.PaymentInput{Amount: dec("30")})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				rejected++
				return
			}
			accepted++
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, accepted)
	assert.Equal(t, workers-3, rejected)

	got, err := f.sales.Get(f.ctx, f.orgID, sale.ID)
	require.NoError(t, err)
	assertMoney(t, "90", got.PaidAmount)
	assertMoney(t, "10", got.BalanceAmount)
	assert.Len(t, got.Payments, 3)
}

func TestSettle(t *testing.T) {
	sale := &core.Sale{Financials: core.Financials{TotalAmount: dec("80")}}

	core.Settle(sale, nil)
	assertMoney(t, "0", sale.PaidAmount)
	assertMoney(t, "80", sale.BalanceAmount)
	assert.Equal(t, core.SaleStatusPending, sale.Status)

	core.Settle(sale, []core.Payment{{Amount: dec("50")}, {Amount: dec("30")}})
	assertMoney(t, "80", sale.PaidAmount)
	assertMoney(t, "0", sale.BalanceAmount)
	assert.Equal(t, core.SaleStatusPaid, sale.Status)

	zero := &core.Sale{}
	core.Settle(zero, nil)
	assert.Equal(t, core.SaleStatusPaid, zero.Status)
}

func TestSendReceipt(t *testing.T) {
	f := newFixture(t)
	sale := f.createSale(t, "50")
	res, err := f.ledger.ApplyPayment(f.ctx, f.orgID, sale.ID, core.PaymentInput{Amount: dec("50")})
	require.NoError(t, err)

	receipt, err := f.ledger.SendReceipt(f.ctx, f.orgID, res.Payment.ID, "")
	require.NoError(t, err)
	assert.Equal(t, core.DeliveryStatusSent, receipt.Delivery.Status)
	assert.Equal(t, []string{"receipt:jane@example.test"}, f.notifier.sent)

	_, err = f.ledger.SendReceipt(f.ctx, f.otherOrgID, res.Payment.ID, "")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

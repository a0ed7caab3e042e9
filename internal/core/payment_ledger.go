package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PaymentInput is a payment as submitted. An empty Method records OTHER;
// a nil PaidAt means now.
type PaymentInput struct {
	Amount decimal.Decimal
	Method string
	Notes  string
	PaidAt *time.Time
}

// PaymentResult carries the new payment and the sale after recomputation.
type PaymentResult struct {
	Payment *Payment `json:"payment"`
	Sale    *Sale    `json:"sale"`
}

// ReceiptResult is returned by SendReceipt.
type ReceiptResult struct {
	PaymentID int            `json:"payment_id"`
	Delivery  DeliveryResult `json:"delivery"`
}

// PaymentLedger records payments against sales.
type PaymentLedger interface {
	// ApplyPayment holds a row lock on the sale for the whole transaction, so
	// concurrent submissions against one sale are checked one at a time.
	ApplyPayment(ctx context.Context, orgID, saleID int, in PaymentInput) (*PaymentResult, error)
	ListPayments(ctx context.Context, orgID, saleID int) ([]Payment, error)
	SendReceipt(ctx context.Context, orgID, paymentID int, recipient string) (*ReceiptResult, error)
}

type paymentLedger struct {
	store Store
	opts  options
}

func NewPaymentLedger(store Store, opts ...Option) PaymentLedger {
	return &paymentLedger{store: store, opts: newOptions(opts)}
}

// ParsePaymentMethod maps input onto a PaymentMethod. Blank means OTHER.
func ParsePaymentMethod(raw string) (PaymentMethod, error) {
	m := PaymentMethod(strings.ToUpper(strings.TrimSpace(raw)))
	if m == "" {
		return PaymentMethodOther, nil
	}
	if !m.IsValid() {
		return "", Validationf("unknown payment method %q", raw)
	}
	return m, nil
}

// SumPayments totals payment amounts.
func SumPayments(payments []Payment) decimal.Decimal {
	sum := decimal.Zero
	for _, p := range payments {
		sum = sum.Add(p.Amount)
	}
	return sum
}

// Settle recomputes the payment aggregates of sale from the full payment set.
// Nothing is carried over from the previous aggregate values.
func Settle(sale *Sale, payments []Payment) {
	sale.PaidAmount = SumPayments(payments)
	sale.BalanceAmount = decimal.Max(sale.TotalAmount.Sub(sale.PaidAmount), decimal.Zero)
	if sale.BalanceAmount.Sign() <= 0 {
		sale.Status = SaleStatusPaid
	} else {
		sale.Status = SaleStatusPending
	}
	sale.Payments = payments
}

func (l *paymentLedger) ApplyPayment(ctx context.Context, orgID, saleID int, in PaymentInput) (*PaymentResult, error) {
	ctx = detach(ctx)
	log := l.opts.logger(ctx, orgID)

	var res PaymentResult
	err := l.store.InTx(ctx, func(tx Repository) error {
		sale, err := tx.GetSaleForUpdate(ctx, orgID, saleID)
		if err != nil {
			return err
		}
		current, err := tx.ListPayments(ctx, orgID, PaymentFilter{SaleID: &sale.ID})
		if err != nil {
			return fmt.Errorf("failed to load payments: %w", err)
		}
		remaining := decimal.Max(sale.TotalAmount.Sub(SumPayments(current)), decimal.Zero)

		if in.Amount.Sign() <= 0 {
			return Validationf("payment amount must be greater than zero")
		}
		if !in.Amount.Equal(in.Amount.Round(2)) {
			return Validationf("payment amount must have at most 2 decimal places")
		}
		method, err := ParsePaymentMethod(in.Method)
		if err != nil {
			return err
		}
		if remaining.Sign() <= 0 {
			return Conflictf(CodeAlreadyPaid, "sale %d is already fully paid", sale.ID)
		}
		if in.Amount.GreaterThan(remaining) {
			return Conflictf(CodeExceedsBalance, "amount exceeds remaining balance of %s", remaining.StringFixed(2))
		}

		now := l.opts.now()
		paidAt := now
		if in.PaidAt != nil {
			paidAt = *in.PaidAt
		}
		p := &Payment{
			OrganizationID: orgID,
			SaleID:         sale.ID,
			Amount:         in.Amount,
			Method:         method,
			Notes:          strings.TrimSpace(in.Notes),
			PaidAt:         paidAt,
			CreatedAt:      now,
		}
		if err := tx.CreatePayment(ctx, p); err != nil {
			return fmt.Errorf("failed to record payment: %w", err)
		}

		all, err := tx.ListPayments(ctx, orgID, PaymentFilter{SaleID: &sale.ID})
		if err != nil {
			return fmt.Errorf("failed to reload payments: %w", err)
		}
		Settle(sale, all)
		sale.UpdatedAt = now
		if err := tx.UpdateSale(ctx, sale); err != nil {
			return fmt.Errorf("failed to update sale totals: %w", err)
		}

		res.Payment = p
		res.Sale = sale
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info("payment applied",
		zap.Int("sale_id", saleID),
		zap.Int("payment_id", res.Payment.ID),
		zap.String("amount", res.Payment.Amount.StringFixed(2)),
		zap.String("balance", res.Sale.BalanceAmount.StringFixed(2)),
		zap.String("status", string(res.Sale.Status)))
	return &res, nil
}

func (l *paymentLedger) ListPayments(ctx context.Context, orgID, saleID int) ([]Payment, error) {
	if _, err := l.store.GetSale(ctx, orgID, saleID); err != nil {
		return nil, err
	}
	return l.store.ListPayments(ctx, orgID, PaymentFilter{SaleID: &saleID})
}

func (l *paymentLedger) SendReceipt(ctx context.Context, orgID, paymentID int, recipient string) (*ReceiptResult, error) {
	ctx = detach(ctx)
	log := l.opts.logger(ctx, orgID)

	p, err := l.store.GetPayment(ctx, orgID, paymentID)
	if err != nil {
		return nil, err
	}
	sale, err := l.store.GetSale(ctx, orgID, p.SaleID)
	if err != nil {
		return nil, err
	}
	dc, err := loadDocumentContext(ctx, l.store, orgID, sale.CustomerID, recipient)
	if err != nil {
		return nil, err
	}

	sendErr := l.opts.notifier.SendReceipt(ctx, dc, sale, p)
	saleID := sale.ID
	res := recordDelivery(ctx, l.store, log, DeliveryLog{
		OrganizationID: orgID,
		SaleID:         &saleID,
		Kind:           DeliveryKindReceipt,
		Recipient:      dc.Recipient,
		CreatedAt:      l.opts.now(),
	}, sendErr)
	return &ReceiptResult{PaymentID: p.ID, Delivery: res}, nil
}

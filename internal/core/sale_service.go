package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SaleInput is the full writable state of a sale created or edited directly.
type SaleInput struct {
	CustomerID     int
	Description    string
	Items          []RawItem
	TaxRate        decimal.Decimal
	Discount       decimal.Decimal
	PONumber       string
	ServiceAddress string
	Notes          string
	DueDate        *time.Time
	SaleDate       *time.Time // nil means now
}

// InvoiceResult is returned by SendInvoice.
type InvoiceResult struct {
	SaleID   int            `json:"sale_id"`
	Delivery DeliveryResult `json:"delivery"`
}

// SaleService manages invoices outside of estimate conversion.
type SaleService interface {
	Create(ctx context.Context, orgID int, in SaleInput) (*Sale, error)
	// Update re-prices the sale and recomputes its payment aggregates. It is
	// rejected when the new total would fall below what was already paid.
	Update(ctx context.Context, orgID, saleID int, in SaleInput) (*Sale, error)
	Get(ctx context.Context, orgID, saleID int) (*Sale, error)
	List(ctx context.Context, orgID int, f SaleFilter) ([]Sale, error)
	// MarkOverdue moves PENDING sales with a balance and a due date before
	// asOf to OVERDUE and returns how many were moved.
	MarkOverdue(ctx context.Context, orgID int, asOf time.Time) (int, error)
	SendInvoice(ctx context.Context, orgID, saleID int, recipient string) (*InvoiceResult, error)
}

type saleService struct {
	store Store
	opts  options
}

func NewSaleService(store Store, opts ...Option) SaleService {
	return &saleService{store: store, opts: newOptions(opts)}
}

func (s *saleService) Create(ctx context.Context, orgID int, in SaleInput) (*Sale, error) {
	if in.CustomerID <= 0 {
		return nil, Validationf("customer is required")
	}
	if len(in.Items) == 0 {
		return nil, Validationf("at least one line item is required")
	}
	ctx = detach(ctx)

	var sale *Sale
	err := s.store.InTx(ctx, func(tx Repository) error {
		cust, err := tx.GetCustomer(ctx, orgID, in.CustomerID)
		if err != nil {
			return err
		}
		priced, err := price(ctx, tx, orgID, in.Items, in.Discount, in.TaxRate)
		if err != nil {
			return err
		}
		now := s.opts.now()
		saleDate := now
		if in.SaleDate != nil {
			saleDate = *in.SaleDate
		}
		sale = &Sale{
			OrganizationID: orgID,
			CustomerID:     cust.ID,
			CustomerName:   cust.FullName,
			Description:    strings.TrimSpace(in.Description),
			PONumber:       strings.TrimSpace(in.PONumber),
			ServiceAddress: strings.TrimSpace(in.ServiceAddress),
			Notes:          strings.TrimSpace(in.Notes),
			DueDate:        in.DueDate,
			SaleDate:       saleDate,
			Financials:     priced.Financials,
			Items:          priced.Items,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		Settle(sale, nil)
		if err := tx.CreateSale(ctx, sale); err != nil {
			return fmt.Errorf("failed to create sale: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.opts.logger(ctx, orgID).Info("sale created",
		zap.Int("sale_id", sale.ID),
		zap.String("total", sale.TotalAmount.StringFixed(2)))
	return sale, nil
}

func (s *saleService) Update(ctx context.Context, orgID, saleID int, in SaleInput) (*Sale, error) {
	if in.CustomerID <= 0 {
		return nil, Validationf("customer is required")
	}
	ctx = detach(ctx)

	var sale *Sale
	err := s.store.InTx(ctx, func(tx Repository) error {
		var err error
		sale, err = tx.GetSaleForUpdate(ctx, orgID, saleID)
		if err != nil {
			return err
		}
		cust, err := tx.GetCustomer(ctx, orgID, in.CustomerID)
		if err != nil {
			return err
		}
		priced, err := price(ctx, tx, orgID, in.Items, in.Discount, in.TaxRate)
		if err != nil {
			return err
		}
		payments, err := tx.ListPayments(ctx, orgID, PaymentFilter{SaleID: &sale.ID})
		if err != nil {
			return fmt.Errorf("failed to load payments: %w", err)
		}
		paid := SumPayments(payments)
		if priced.TotalAmount.LessThan(paid) {
			return Conflictf(CodeTotalBelowPaid,
				"new total %s is below the %s already paid", priced.TotalAmount.StringFixed(2), paid.StringFixed(2))
		}

		now := s.opts.now()
		wasOverdue := sale.Status == SaleStatusOverdue
		sale.CustomerID = cust.ID
		sale.CustomerName = cust.FullName
		sale.Description = strings.TrimSpace(in.Description)
		sale.PONumber = strings.TrimSpace(in.PONumber)
		sale.ServiceAddress = strings.TrimSpace(in.ServiceAddress)
		sale.Notes = strings.TrimSpace(in.Notes)
		sale.DueDate = in.DueDate
		if in.SaleDate != nil {
			sale.SaleDate = *in.SaleDate
		}
		sale.Financials = priced.Financials
		Settle(sale, payments)
		if wasOverdue && sale.Status == SaleStatusPending && isPastDue(sale, now) {
			sale.Status = SaleStatusOverdue
		}
		sale.UpdatedAt = now

		if err := tx.UpdateSale(ctx, sale); err != nil {
			return fmt.Errorf("failed to update sale: %w", err)
		}
		if err := tx.ReplaceSaleItems(ctx, orgID, sale.ID, priced.Items); err != nil {
			return fmt.Errorf("failed to replace sale items: %w", err)
		}
		sale.Items = priced.Items
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.store.GetSale(ctx, orgID, sale.ID)
}

func (s *saleService) Get(ctx context.Context, orgID, saleID int) (*Sale, error) {
	return s.store.GetSale(ctx, orgID, saleID)
}

func (s *saleService) List(ctx context.Context, orgID int, f SaleFilter) ([]Sale, error) {
	if f.Status != nil && !f.Status.IsValid() {
		return nil, Validationf("unknown sale status %q", *f.Status)
	}
	return s.store.ListSales(ctx, orgID, f)
}

func isPastDue(sale *Sale, asOf time.Time) bool {
	return sale.DueDate != nil && sale.DueDate.Before(asOf) && sale.BalanceAmount.IsPositive()
}

func (s *saleService) MarkOverdue(ctx context.Context, orgID int, asOf time.Time) (int, error) {
	ctx = detach(ctx)
	pending := SaleStatusPending

	moved := 0
	err := s.store.InTx(ctx, func(tx Repository) error {
		moved = 0
		candidates, err := tx.ListSales(ctx, orgID, SaleFilter{Status: &pending, OpenOnly: true, DueBefore: &asOf})
		if err != nil {
			return fmt.Errorf("failed to list overdue candidates: %w", err)
		}
		for _, c := range candidates {
			sale, err := tx.GetSaleForUpdate(ctx, orgID, c.ID)
			if err != nil {
				return err
			}
			if sale.Status != SaleStatusPending || !isPastDue(sale, asOf) {
				continue
			}
			sale.Status = SaleStatusOverdue
			sale.UpdatedAt = s.opts.now()
			if err := tx.UpdateSale(ctx, sale); err != nil {
				return fmt.Errorf("failed to mark sale %d overdue: %w", sale.ID, err)
			}
			moved++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if moved > 0 {
		s.opts.logger(ctx, orgID).Info("sales marked overdue", zap.Int("count", moved), zap.Time("as_of", asOf))
	}
	return moved, nil
}

func (s *saleService) SendInvoice(ctx context.Context, orgID, saleID int, recipient string) (*InvoiceResult, error) {
	ctx = detach(ctx)
	log := s.opts.logger(ctx, orgID)

	sale, err := s.store.GetSale(ctx, orgID, saleID)
	if err != nil {
		return nil, err
	}
	dc, err := loadDocumentContext(ctx, s.store, orgID, sale.CustomerID, recipient)
	if err != nil {
		return nil, err
	}

	sendErr := s.opts.notifier.SendInvoice(ctx, dc, sale)
	res := recordDelivery(ctx, s.store, log, DeliveryLog{
		OrganizationID: orgID,
		SaleID:         &sale.ID,
		Kind:           DeliveryKindInvoice,
		Recipient:      dc.Recipient,
		CreatedAt:      s.opts.now(),
	}, sendErr)
	return &InvoiceResult{SaleID: sale.ID, Delivery: res}, nil
}

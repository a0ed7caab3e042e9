package core

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Repair outcome reasons.
const (
	RepairReasonNoSale           = "no saleId set"
	RepairReasonAlreadyConverted = "already converted"
	RepairReasonOrphanCleared    = "linked sale missing; link cleared"
)

// ConversionResult reports the sale an estimate is linked to.
// Created is false when the estimate had already been converted.
type ConversionResult struct {
	EstimateID int  `json:"estimate_id"`
	SaleID     int  `json:"sale_id"`
	Created    bool `json:"created"`
}

// UnconvertResult reports what unconvert removed. RemovedSaleID is nil when
// the estimate was not converted.
type UnconvertResult struct {
	EstimateID      int  `json:"estimate_id"`
	RemovedSaleID   *int `json:"removed_sale_id,omitempty"`
	RemovedPayments int  `json:"removed_payments"`
}

// RepairResult reports the outcome of an orphan-link repair.
type RepairResult struct {
	EstimateID int    `json:"estimate_id"`
	Repaired   bool   `json:"repaired"`
	Reason     string `json:"reason"`
}

// ConversionService owns the 1:0..1 link between an estimate and its sale.
// Every operation locks the estimate row for the duration of its transaction.
type ConversionService interface {
	// Convert creates the sale for an estimate. Retrying is safe: an estimate
	// that already carries a sale id returns that id without writing.
	Convert(ctx context.Context, orgID, estimateID int) (*ConversionResult, error)
	// Approve is the customer-facing name for Convert.
	Approve(ctx context.Context, orgID, estimateID int) (*ConversionResult, error)
	// Unconvert clears the link, then deletes the sale's payments, items and
	// the sale itself, in that order.
	Unconvert(ctx context.Context, orgID, estimateID int) (*UnconvertResult, error)
	// Repair clears a link whose sale no longer exists. It never touches a
	// link to a live sale.
	Repair(ctx context.Context, orgID, estimateID int) (*RepairResult, error)
}

type conversionService struct {
	store Store
	opts  options
}

func NewConversionService(store Store, opts ...Option) ConversionService {
	return &conversionService{store: store, opts: newOptions(opts)}
}

// saleFromEstimate copies the already-computed money fields and items verbatim.
func saleFromEstimate(est *Estimate, now time.Time) *Sale {
	items := make([]LineItem, len(est.Items))
	for i, it := range est.Items {
		it.ID = 0
		items[i] = it
	}
	return &Sale{
		OrganizationID: est.OrganizationID,
		CustomerID:     est.CustomerID,
		CustomerName:   est.CustomerName,
		Description:    est.Title,
		Status:         SaleStatusPending,
		PONumber:       est.PONumber,
		ServiceAddress: est.ServiceAddress,
		Notes:          est.Notes,
		SaleDate:       now,
		Financials:     est.Financials,
		PaidAmount:     decimal.Zero,
		BalanceAmount:  est.TotalAmount,
		Items:          items,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func (s *conversionService) Convert(ctx context.Context, orgID, estimateID int) (*ConversionResult, error) {
	ctx = detach(ctx)
	log := s.opts.logger(ctx, orgID)

	res := &ConversionResult{EstimateID: estimateID}
	err := s.store.InTx(ctx, func(tx Repository) error {
		est, err := tx.GetEstimateForUpdate(ctx, orgID, estimateID)
		if err != nil {
			return err
		}
		if est.SaleID != nil {
			res.SaleID = *est.SaleID
			return nil
		}
		if len(est.Items) == 0 {
			return Validationf("estimate %d has no line items and cannot be converted", est.ID)
		}
		next, err := est.Status.Next(EstimateEventConvert)
		if err != nil {
			return err
		}

		sale := saleFromEstimate(est, s.opts.now())
		if err := tx.CreateSale(ctx, sale); err != nil {
			return fmt.Errorf("failed to create sale: %w", err)
		}

		est.SaleID = &sale.ID
		est.Status = next
		est.UpdatedAt = sale.CreatedAt
		if err := tx.UpdateEstimate(ctx, est); err != nil {
			return fmt.Errorf("failed to link estimate to sale: %w", err)
		}

		res.SaleID = sale.ID
		res.Created = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if res.Created {
		log.Info("estimate converted", zap.Int("estimate_id", estimateID), zap.Int("sale_id", res.SaleID))
	} else {
		log.Debug("estimate already converted", zap.Int("estimate_id", estimateID), zap.Int("sale_id", res.SaleID))
	}
	return res, nil
}

func (s *conversionService) Approve(ctx context.Context, orgID, estimateID int) (*ConversionResult, error) {
	return s.Convert(ctx, orgID, estimateID)
}

func (s *conversionService) Unconvert(ctx context.Context, orgID, estimateID int) (*UnconvertResult, error) {
	ctx = detach(ctx)
	log := s.opts.logger(ctx, orgID)

	res := &UnconvertResult{EstimateID: estimateID}
	err := s.store.InTx(ctx, func(tx Repository) error {
		est, err := tx.GetEstimateForUpdate(ctx, orgID, estimateID)
		if err != nil {
			return err
		}
		if est.SaleID == nil {
			return nil
		}
		saleID := *est.SaleID
		next, err := est.Status.Next(EstimateEventUnconvert)
		if err != nil {
			return err
		}

		// Back-link first so no committed state ever references a deleted sale.
		est.SaleID = nil
		est.Status = next
		est.UpdatedAt = s.opts.now()
		if err := tx.UpdateEstimate(ctx, est); err != nil {
			return fmt.Errorf("failed to unlink estimate: %w", err)
		}

		payments, err := tx.ListPayments(ctx, orgID, PaymentFilter{SaleID: &saleID})
		if err != nil {
			return fmt.Errorf("failed to load sale payments: %w", err)
		}
		if err := tx.DeleteSalePayments(ctx, orgID, saleID); err != nil {
			return fmt.Errorf("failed to delete sale payments: %w", err)
		}
		if err := tx.DeleteSaleItems(ctx, orgID, saleID); err != nil {
			return fmt.Errorf("failed to delete sale items: %w", err)
		}
		if err := tx.DeleteSale(ctx, orgID, saleID); err != nil {
			return fmt.Errorf("failed to delete sale: %w", err)
		}

		res.RemovedSaleID = &saleID
		res.RemovedPayments = len(payments)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if res.RemovedSaleID != nil {
		log.Info("estimate unconverted",
			zap.Int("estimate_id", estimateID),
			zap.Int("sale_id", *res.RemovedSaleID),
			zap.Int("payments_removed", res.RemovedPayments))
	}
	return res, nil
}

func (s *conversionService) Repair(ctx context.Context, orgID, estimateID int) (*RepairResult, error) {
	ctx = detach(ctx)
	log := s.opts.logger(ctx, orgID)

	res := &RepairResult{EstimateID: estimateID}
	var staleSaleID int
	err := s.store.InTx(ctx, func(tx Repository) error {
		est, err := tx.GetEstimateForUpdate(ctx, orgID, estimateID)
		if err != nil {
			return err
		}
		if est.SaleID == nil {
			res.Reason = RepairReasonNoSale
			return nil
		}
		exists, err := tx.SaleExists(ctx, orgID, *est.SaleID)
		if err != nil {
			return fmt.Errorf("failed to check linked sale: %w", err)
		}
		if exists {
			res.Reason = RepairReasonAlreadyConverted
			return nil
		}

		next, err := est.Status.Next(EstimateEventRepair)
		if err != nil {
			return err
		}
		staleSaleID = *est.SaleID
		est.SaleID = nil
		est.Status = next
		est.UpdatedAt = s.opts.now()
		if err := tx.UpdateEstimate(ctx, est); err != nil {
			return fmt.Errorf("failed to repair estimate: %w", err)
		}
		res.Repaired = true
		res.Reason = RepairReasonOrphanCleared
		return nil
	})
	if err != nil {
		return nil, err
	}

	if res.Repaired {
		log.Info("orphan sale link repaired",
			zap.Int("estimate_id", estimateID), zap.Int("missing_sale_id", staleSaleID))
	}
	return res, nil
}

package core

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// OrphanLink is an estimate whose sale id points at a missing sale.
type OrphanLink struct {
	EstimateID int `json:"estimate_id"`
	SaleID     int `json:"sale_id"`
}

// SharedLink is a sale referenced by more than one estimate.
type SharedLink struct {
	SaleID      int   `json:"sale_id"`
	EstimateIDs []int `json:"estimate_ids"`
}

// SettlementMismatch is a sale whose stored aggregates differ from what its
// payments imply, or whose payments exceed its total.
type SettlementMismatch struct {
	SaleID          int             `json:"sale_id"`
	StoredPaid      decimal.Decimal `json:"stored_paid"`
	StoredBalance   decimal.Decimal `json:"stored_balance"`
	ExpectedPaid    decimal.Decimal `json:"expected_paid"`
	ExpectedBalance decimal.Decimal `json:"expected_balance"`
	Overpaid        bool            `json:"overpaid"`
}

// IntegrityReport lists every violation found by CheckIntegrity.
type IntegrityReport struct {
	EstimatesScanned int                  `json:"estimates_scanned"`
	SalesScanned     int                  `json:"sales_scanned"`
	Orphans          []OrphanLink         `json:"orphans"`
	Shared           []SharedLink         `json:"shared"`
	Mismatches       []SettlementMismatch `json:"mismatches"`
}

// Healthy reports whether the scan found nothing.
func (r *IntegrityReport) Healthy() bool {
	return len(r.Orphans) == 0 && len(r.Shared) == 0 && len(r.Mismatches) == 0
}

func (s *reportingService) CheckIntegrity(ctx context.Context, orgID int) (*IntegrityReport, error) {
	estimates, err := s.store.ListEstimates(ctx, orgID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list estimates: %w", err)
	}
	sales, err := s.store.ListSales(ctx, orgID, SaleFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to list sales: %w", err)
	}

	rep := &IntegrityReport{EstimatesScanned: len(estimates), SalesScanned: len(sales)}

	live := make(map[int]bool, len(sales))
	for _, sale := range sales {
		live[sale.ID] = true
	}

	links := map[int][]int{}
	for _, e := range estimates {
		if e.SaleID == nil {
			continue
		}
		if !live[*e.SaleID] {
			rep.Orphans = append(rep.Orphans, OrphanLink{EstimateID: e.ID, SaleID: *e.SaleID})
			continue
		}
		links[*e.SaleID] = append(links[*e.SaleID], e.ID)
	}
	for saleID, ids := range links {
		if len(ids) > 1 {
			sort.Ints(ids)
			rep.Shared = append(rep.Shared, SharedLink{SaleID: saleID, EstimateIDs: ids})
		}
	}
	sort.Slice(rep.Shared, func(i, j int) bool { return rep.Shared[i].SaleID < rep.Shared[j].SaleID })

	for _, sale := range sales {
		saleID := sale.ID
		payments, err := s.store.ListPayments(ctx, orgID, PaymentFilter{SaleID: &saleID})
		if err != nil {
			return nil, fmt.Errorf("failed to list payments for sale %d: %w", sale.ID, err)
		}
		paid := SumPayments(payments)
		balance := decimal.Max(sale.TotalAmount.Sub(paid), decimal.Zero)
		overpaid := paid.GreaterThan(sale.TotalAmount)
		if overpaid || !paid.Equal(sale.PaidAmount) || !balance.Equal(sale.BalanceAmount) {
			rep.Mismatches = append(rep.Mismatches, SettlementMismatch{
				SaleID:          sale.ID,
				StoredPaid:      sale.PaidAmount,
				StoredBalance:   sale.BalanceAmount,
				ExpectedPaid:    paid,
				ExpectedBalance: balance,
				Overpaid:        overpaid,
			})
		}
	}
	return rep, nil
}

package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ── Report types ──────────────────────────────────────────────────────────────

// RangePreset names a reporting window.
type RangePreset string

const (
	RangeLast7     RangePreset = "last7"
	RangeLast30    RangePreset = "last30"
	RangeLast90    RangePreset = "last90"
	RangeThisMonth RangePreset = "thisMonth"
	RangeLastMonth RangePreset = "lastMonth"
	RangeYTD       RangePreset = "ytd"
	RangeCustom    RangePreset = "custom"
)

// DefaultRangePreset applies when no preset is given.
const DefaultRangePreset = RangeLast30

// dateLayout is the format of custom range bounds.
const dateLayout = "2006-01-02"

// DateRange is an inclusive [Start, End] window. End is always the last
// instant of a day.
type DateRange struct {
	Preset RangePreset `json:"preset"`
	Start  time.Time   `json:"start"`
	End    time.Time   `json:"end"`
}

// Summary is the period report. Outstanding is a point-in-time figure over
// all open sales and ignores the range.
type Summary struct {
	Range         DateRange       `json:"range"`
	TotalInvoiced decimal.Decimal `json:"total_invoiced"`
	TotalTax      decimal.Decimal `json:"total_tax"`
	TotalPayments decimal.Decimal `json:"total_payments"`
	Outstanding   decimal.Decimal `json:"outstanding"`
	AvgInvoice    decimal.Decimal `json:"avg_invoice"`
	InvoiceCount  int             `json:"invoice_count"`
	PaymentCount  int             `json:"payment_count"`
	OpenCount     int             `json:"open_count"`
}

// ── Interface ─────────────────────────────────────────────────────────────────

// ReportingService provides read-only reporting queries.
type ReportingService interface {
	// ResolveRange turns a preset (and, for custom, from/to dates in
	// YYYY-MM-DD form) into a concrete window relative to the service clock.
	ResolveRange(preset, from, to string) (DateRange, error)

	// Summary aggregates sales by sale date and payments by payment date
	// within r.
	Summary(ctx context.Context, orgID int, r DateRange) (*Summary, error)

	// ListDeliveryLogs returns the delivery history, newest first.
	ListDeliveryLogs(ctx context.Context, orgID int, f DeliveryLogFilter) ([]DeliveryLog, error)

	// CheckIntegrity scans the tenant for orphan links, double links and
	// sales whose aggregates disagree with their payments.
	CheckIntegrity(ctx context.Context, orgID int) (*IntegrityReport, error)
}

// ── Implementation ────────────────────────────────────────────────────────────

type reportingService struct {
	store Store
	opts  options
}

// NewReportingService constructs a ReportingService over the given store.
func NewReportingService(store Store, opts ...Option) ReportingService {
	return &reportingService{store: store, opts: newOptions(opts)}
}

// ── Ranges ────────────────────────────────────────────────────────────────────

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	return startOfDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// ResolveRange computes the window for preset as seen at now. The last-N-days
// presets include today, so last7 covers today and the six days before it.
func ResolveRange(preset RangePreset, now time.Time, from, to string) (DateRange, error) {
	if preset == "" {
		preset = DefaultRangePreset
	}
	today := startOfDay(now)
	r := DateRange{Preset: preset, End: endOfDay(now)}

	switch preset {
	case RangeLast7:
		r.Start = today.AddDate(0, 0, -6)
	case RangeLast30:
		r.Start = today.AddDate(0, 0, -29)
	case RangeLast90:
		r.Start = today.AddDate(0, 0, -89)
	case RangeThisMonth:
		r.Start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	case RangeLastMonth:
		firstOfThis := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		r.Start = firstOfThis.AddDate(0, -1, 0)
		r.End = firstOfThis.Add(-time.Nanosecond)
	case RangeYTD:
		r.Start = time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())
	case RangeCustom:
		start, err := time.ParseInLocation(dateLayout, strings.TrimSpace(from), now.Location())
		if err != nil {
			return DateRange{}, Validationf("invalid from date %q: expected YYYY-MM-DD", from)
		}
		end, err := time.ParseInLocation(dateLayout, strings.TrimSpace(to), now.Location())
		if err != nil {
			return DateRange{}, Validationf("invalid to date %q: expected YYYY-MM-DD", to)
		}
		if end.Before(start) {
			return DateRange{}, Validationf("from date %s is after to date %s", from, to)
		}
		r.Start = start
		r.End = endOfDay(end)
	default:
		return DateRange{}, Validationf("unknown range preset %q", preset)
	}
	return r, nil
}

func (s *reportingService) ResolveRange(preset, from, to string) (DateRange, error) {
	return ResolveRange(RangePreset(strings.TrimSpace(preset)), s.opts.now(), from, to)
}

// ── Summary ───────────────────────────────────────────────────────────────────

func (s *reportingService) Summary(ctx context.Context, orgID int, r DateRange) (*Summary, error) {
	if r.End.Before(r.Start) {
		return nil, Validationf("range end is before range start")
	}

	sales, err := s.store.ListSales(ctx, orgID, SaleFilter{From: &r.Start, To: &r.End})
	if err != nil {
		return nil, fmt.Errorf("failed to query sales in range: %w", err)
	}
	payments, err := s.store.ListPayments(ctx, orgID, PaymentFilter{From: &r.Start, To: &r.End})
	if err != nil {
		return nil, fmt.Errorf("failed to query payments in range: %w", err)
	}
	open, err := s.store.ListSales(ctx, orgID, SaleFilter{OpenOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to query open sales: %w", err)
	}

	sum := &Summary{
		Range:         r,
		TotalInvoiced: decimal.Zero,
		TotalTax:      decimal.Zero,
		Outstanding:   decimal.Zero,
		AvgInvoice:    decimal.Zero,
		TotalPayments: SumPayments(payments),
		InvoiceCount:  len(sales),
		PaymentCount:  len(payments),
	}
	for _, sale := range sales {
		sum.TotalInvoiced = sum.TotalInvoiced.Add(sale.TotalAmount)
		sum.TotalTax = sum.TotalTax.Add(sale.TaxAmount)
	}
	for _, sale := range open {
		if !sale.BalanceAmount.IsPositive() {
			continue
		}
		sum.Outstanding = sum.Outstanding.Add(sale.BalanceAmount)
		sum.OpenCount++
	}
	if sum.InvoiceCount > 0 {
		sum.AvgInvoice = sum.TotalInvoiced.Div(decimal.NewFromInt(int64(sum.InvoiceCount))).Round(2)
	}
	return sum, nil
}

// ── Delivery log ──────────────────────────────────────────────────────────────

func (s *reportingService) ListDeliveryLogs(ctx context.Context, orgID int, f DeliveryLogFilter) ([]DeliveryLog, error) {
	return s.store.ListDeliveryLogs(ctx, orgID, f)
}

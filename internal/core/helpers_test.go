package core_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"billing-engine/internal/core"
	"billing-engine/internal/store/memory"
)

var errBoom = errors.New("boom")

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertMoney(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.Truef(t, dec(want).Equal(got), "want %s, got %s %v", want, got.String(), msgAndArgs)
}

func ptr[T any](v T) *T { return &v }

// recordingNotifier captures deliveries and fails when err is set.
type recordingNotifier struct {
	mu       sync.Mutex
	err      error
	sent     []string // kind:recipient
	lastDocs []core.DocumentContext
}

func (n *recordingNotifier) record(kind string, dc core.DocumentContext) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, kind+":"+dc.Recipient)
	n.lastDocs = append(n.lastDocs, dc)
	return n.err
}

func (n *recordingNotifier) SendEstimate(_ context.Context, dc core.DocumentContext, _ *core.Estimate) error {
	return n.record("estimate", dc)
}

func (n *recordingNotifier) SendInvoice(_ context.Context, dc core.DocumentContext, _ *core.Sale) error {
	return n.record("invoice", dc)
}

func (n *recordingNotifier) SendReceipt(_ context.Context, dc core.DocumentContext, _ *core.Sale, _ *core.Payment) error {
	return n.record("receipt", dc)
}

type fixture struct {
	ctx      context.Context
	store    *memory.Store
	now      time.Time
	notifier *recordingNotifier

	orgID      int
	otherOrgID int
	customer   *core.Customer

	catalog    core.CatalogService
	estimates  core.EstimateService
	conversion core.ConversionService
	ledger     core.PaymentLedger
	sales      core.SaleService
	reports    core.ReportingService
	users      core.UserService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ctx:      context.Background(),
		store:    memory.New(),
		now:      time.Date(2026, time.March, 15, 10, 0, 0, 0, time.UTC),
		notifier: &recordingNotifier{},
	}

	org := &core.Organization{Name: "Acme Plumbing", Email: "office@acme.test"}
	require.NoError(t, f.store.CreateOrganization(f.ctx, org))
	other := &core.Organization{Name: "Other Co"}
	require.NoError(t, f.store.CreateOrganization(f.ctx, other))
	f.orgID, f.otherOrgID = org.ID, other.ID

	opts := []core.Option{
		core.WithClock(func() time.Time { return f.now }),
		core.WithNotifier(f.notifier),
	}
	f.catalog = core.NewCatalogService(f.store, opts...)
	f.estimates = core.NewEstimateService(f.store, opts...)
	f.conversion = core.NewConversionService(f.store, opts...)
	f.ledger = core.NewPaymentLedger(f.store, opts...)
	f.sales = core.NewSaleService(f.store, opts...)
	f.reports = core.NewReportingService(f.store, opts...)
	f.users = core.NewUserService(f.store, opts...)

	cust, err := f.catalog.CreateCustomer(f.ctx, f.orgID, core.CustomerInput{
		FullName: "Jane Homeowner",
		Email:    "jane@example.test",
	})
	require.NoError(t, err)
	f.customer = cust
	return f
}

// scenarioItems is one taxable line: 2 × 50.00.
func scenarioItems() []core.RawItem {
	return []core.RawItem{{
		Name:      "Faucet",
		Type:      "PRODUCT",
		Taxable:   ptr(true),
		Quantity:  dec("2"),
		UnitPrice: core.Price(dec("50")),
	}}
}

func (f *fixture) createEstimate(t *testing.T) *core.Estimate {
	t.Helper()
	est, err := f.estimates.Create(f.ctx, f.orgID, core.EstimateInput{
		CustomerID:       f.customer.ID,
		Items:            scenarioItems(),
		TaxRate:          dec("10"),
		Discount:         dec("10"),
		EstimateMetadata: core.EstimateMetadata{Title: "Kitchen faucet", PONumber: "PO-7"},
	})
	require.NoError(t, err)
	return est
}

// createSale makes a direct sale whose total is exactly total (one untaxed line).
func (f *fixture) createSale(t *testing.T, total string) *core.Sale {
	t.Helper()
	sale, err := f.sales.Create(f.ctx, f.orgID, core.SaleInput{
		CustomerID:  f.customer.ID,
		Description: "Service call",
		Items: []core.RawItem{{
			Name:      "Labour",
			Type:      "SERVICE",
			Quantity:  dec("1"),
			UnitPrice: core.Price(dec(total)),
		}},
	})
	require.NoError(t, err)
	return sale
}

package postgres_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap/zaptest"

	"billing-engine/internal/core"
	"billing-engine/internal/migration"
	"billing-engine/internal/store/postgres"
)

// testDatabaseURL prefers TEST_DATABASE_URL and otherwise starts a throwaway
// PostgreSQL container. The test is skipped when neither is available.
func testDatabaseURL(t *testing.T) string {
	t.Helper()
	_ = godotenv.Load("../../../.env")
	if url := os.Getenv("TEST_DATABASE_URL"); url != "" {
		return url
	}

	testcontainers.SkipIfProviderIsNotHealthy(t)
	ctx := context.Background()
	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("billing_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "failed to start PostgreSQL container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return url
}

type env struct {
	ctx   context.Context
	pool  *pgxpool.Pool
	store *postgres.Store
	org   *core.Organization
	cust  *core.Customer
}

func setup(t *testing.T) *env {
	t.Helper()
	url := testDatabaseURL(t)

	migrationsPath, err := filepath.Abs("../../../migrations")
	require.NoError(t, err)
	m, err := migration.New(url, migrationsPath, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, m.Up())
	require.NoError(t, m.Close())

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, `
		TRUNCATE TABLE delivery_logs, payments, sale_items, sales, estimate_items, estimates,
			products, customers, users, organizations RESTART IDENTITY CASCADE
	`)
	require.NoError(t, err, "failed to reset test database")

	e := &env{ctx: ctx, pool: pool, store: postgres.New(pool)}
	e.org = &core.Organization{Name: "Acme Plumbing", Email: "office@acme.test"}
	require.NoError(t, e.store.CreateOrganization(ctx, e.org))
	e.cust = &core.Customer{OrganizationID: e.org.ID, FullName: "Jane Homeowner", Email: "jane@example.test"}
	require.NoError(t, e.store.CreateCustomer(ctx, e.cust))
	return e
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestStore_EstimateLifecycle(t *testing.T) {
	e := setup(t)
	estimates := core.NewEstimateService(e.store)
	conversion := core.NewConversionService(e.store)
	ledger := core.NewPaymentLedger(e.store)

	est, err := estimates.Create(e.ctx, e.org.ID, core.EstimateInput{
		CustomerID: e.cust.ID,
		Items: []core.RawItem{{
			Name: "Faucet", Type: "PRODUCT", Quantity: dec("2"), UnitPrice: core.Price(dec("50")),
		}},
		TaxRate:  dec("10"),
		Discount: dec("10"),
	})
	require.NoError(t, err)
	assert.True(t, dec("99").Equal(est.TotalAmount))

	conv, err := conversion.Convert(e.ctx, e.org.ID, est.ID)
	require.NoError(t, err)
	again, err := conversion.Convert(e.ctx, e.org.ID, est.ID)
	require.NoError(t, err)
	assert.Equal(t, conv.SaleID, again.SaleID)

	_, err = estimates.Update(e.ctx, e.org.ID, est.ID, core.EstimateInput{
		CustomerID: e.cust.ID,
		Items:      []core.RawItem{{Name: "x", Quantity: dec("1"), UnitPrice: core.Price(dec("1"))}},
	})
	assert.Equal(t, core.CodeEstimateLocked, core.CodeOf(err))

	res, err := ledger.ApplyPayment(e.ctx, e.org.ID, conv.SaleID, core.PaymentInput{Amount: dec("99"), Method: "card"})
	require.NoError(t, err)
	assert.Equal(t, core.SaleStatusPaid, res.Sale.Status)

	// payments still reference the sale
	err = e.store.DeleteSale(e.ctx, e.org.ID, conv.SaleID)
	assert.ErrorIs(t, err, core.ErrConflict)

	un, err := conversion.Unconvert(e.ctx, e.org.ID, est.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, un.RemovedPayments)

	exists, err := e.store.SaleExists(e.ctx, e.org.ID, conv.SaleID)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestStore_RepairOrphan(t *testing.T) {
	e := setup(t)
	estimates := core.NewEstimateService(e.store)
	conversion := core.NewConversionService(e.store)

	est, err := estimates.Create(e.ctx, e.org.ID, core.EstimateInput{
		CustomerID: e.cust.ID,
		Items:      []core.RawItem{{Name: "Labour", Type: "SERVICE", Quantity: dec("1"), UnitPrice: core.Price(dec("80"))}},
	})
	require.NoError(t, err)
	conv, err := conversion.Convert(e.ctx, e.org.ID, est.ID)
	require.NoError(t, err)

	// delete the sale behind the estimate's back
	_, err = e.pool.Exec(e.ctx, "DELETE FROM sale_items WHERE sale_id = $1", conv.SaleID)
	require.NoError(t, err)
	_, err = e.pool.Exec(e.ctx, "DELETE FROM sales WHERE id = $1", conv.SaleID)
	require.NoError(t, err)

	rep, err := conversion.Repair(e.ctx, e.org.ID, est.ID)
	require.NoError(t, err)
	assert.True(t, rep.Repaired)

	got, err := estimates.Get(e.ctx, e.org.ID, est.ID)
	require.NoError(t, err)
	assert.Nil(t, got.SaleID)
	assert.Equal(t, core.EstimateStatusDraft, got.Status)
}

func TestStore_ConcurrentPaymentsSerialize(t *testing.T) {
	e := setup(t)
	sales := core.NewSaleService(e.store)
	ledger := core.NewPaymentLedger(e.store)

	sale, err := sales.Create(e.ctx, e.org.ID, core.SaleInput{
		CustomerID: e.cust.ID,
		Items:      []core.RawItem{{Name: "Labour", Type: "SERVICE", Quantity: dec("1"), UnitPrice: core.Price(dec("100"))}},
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = ledger.ApplyPayment(e.ctx, e.org.ID, sale.ID, core.PaymentInput{Amount: dec("30")})
		}(i)
	}
	wg.Wait()

	accepted := 0
	for _, err := range errs {
		if err == nil {
			accepted++
		} else {
			assert.Equal(t, core.CodeExceedsBalance, core.CodeOf(err))
		}
	}
	assert.Equal(t, 3, accepted)

	got, err := sales.Get(e.ctx, e.org.ID, sale.ID)
	require.NoError(t, err)
	assert.True(t, dec("90").Equal(got.PaidAmount), got.PaidAmount.String())
	assert.Len(t, got.Payments, 3)
}

func TestStore_TenantIsolationAndUniqueness(t *testing.T) {
	e := setup(t)
	other := &core.Organization{Name: "Other"}
	require.NoError(t, e.store.CreateOrganization(e.ctx, other))

	_, err := e.store.GetCustomer(e.ctx, other.ID, e.cust.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)

	err = e.store.CreateSale(e.ctx, &core.Sale{OrganizationID: other.ID, CustomerID: e.cust.ID, Status: core.SaleStatusPending})
	assert.ErrorIs(t, err, core.ErrNotFound)

	u := &core.User{OrganizationID: e.org.ID, Username: "alice", PasswordHash: "x", Role: core.RoleAdmin, IsActive: true}
	require.NoError(t, e.store.CreateUser(e.ctx, u))
	dup := &core.User{OrganizationID: other.ID, Username: "alice", PasswordHash: "y", Role: core.RoleOperator, IsActive: true}
	err = e.store.CreateUser(e.ctx, dup)
	assert.Equal(t, core.CodeDuplicate, core.CodeOf(err))

	price := dec("12.50")
	p := &core.Product{OrganizationID: e.org.ID, Name: "Washer", Type: core.ItemTypeProduct, Price: &price}
	require.NoError(t, e.store.CreateProduct(e.ctx, p))
	got, err := e.store.GetProduct(e.ctx, e.org.ID, p.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Price)
	assert.True(t, price.Equal(*got.Price))
	_, err = e.store.GetProduct(e.ctx, other.ID, p.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

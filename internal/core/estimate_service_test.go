package core_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"billing-engine/internal/core"
)

func TestEstimateCreate(t *testing.T) {
	f := newFixture(t)
	est := f.createEstimate(t)

	assert.Equal(t, core.EstimateStatusDraft, est.Status)
	assert.Nil(t, est.SaleID)
	assert.NotEmpty(t, est.PublicToken)
	assert.Equal(t, "Jane Homeowner", est.CustomerName)
	assertMoney(t, "99", est.TotalAmount)
	require.Len(t, est.Items, 1)
	assert.NotZero(t, est.Items[0].ID)

	byToken, err := f.estimates.GetByPublicToken(f.ctx, est.PublicToken)
	require.NoError(t, err)
	assert.Equal(t, est.ID, byToken.ID)

	_, err = f.estimates.GetByPublicToken(f.ctx, "  ")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestEstimateCreate_Validation(t *testing.T) {
	f := newFixture(t)

	_, err := f.estimates.Create(f.ctx, f.orgID, core.EstimateInput{CustomerID: f.customer.ID})
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = f.estimates.Create(f.ctx, f.orgID, core.EstimateInput{Items: scenarioItems()})
	assert.ErrorIs(t, err, core.ErrValidation)

	// another tenant's customer
	_, err = f.estimates.Create(f.ctx, f.otherOrgID, core.EstimateInput{CustomerID: f.customer.ID, Items: scenarioItems()})
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestEstimateCreate_DefaultTitleAndCatalogPrice(t *testing.T) {
	f := newFixture(t)
	price := dec("12.5")
	prod, err := f.catalog.CreateProduct(f.ctx, f.orgID, core.ProductInput{Name: "Washer", Type: "product", Price: &price})
	require.NoError(t, err)

	est, err := f.estimates.Create(f.ctx, f.orgID, core.EstimateInput{
		CustomerID: f.customer.ID,
		Items:      []core.RawItem{{ProductID: &prod.ID, Quantity: dec("4")}},
	})
	require.NoError(t, err)
	assert.Equal(t, core.DefaultEstimateTitle, est.Title)
	require.Len(t, est.Items, 1)
	assert.Equal(t, "Washer", est.Items[0].Name)
	assertMoney(t, "12.50", est.Items[0].UnitPrice)
	assertMoney(t, "50", est.TotalAmount)

	// catalog entries do not cross tenants
	otherCust, err := f.catalog.CreateCustomer(f.ctx, f.otherOrgID, core.CustomerInput{FullName: "Someone Else"})
	require.NoError(t, err)
	_, err = f.estimates.Create(f.ctx, f.otherOrgID, core.EstimateInput{
		CustomerID: otherCust.ID,
		Items:      []core.RawItem{{ProductID: &prod.ID, Quantity: dec("1")}},
	})
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestEstimateCreate_ExplicitZeroPriceKept(t *testing.T) {
	f := newFixture(t)
	price := dec("80")
	prod, err := f.catalog.CreateProduct(f.ctx, f.orgID, core.ProductInput{Name: "Inspection", Type: "service", Price: &price})
	require.NoError(t, err)

	est, err := f.estimates.Create(f.ctx, f.orgID, core.EstimateInput{
		CustomerID: f.customer.ID,
		Items: []core.RawItem{
			{ProductID: &prod.ID, Quantity: dec("1"), UnitPrice: core.Price(dec("0"))},
			{ProductID: &prod.ID, Quantity: dec("1")},
		},
	})
	require.NoError(t, err)
	require.Len(t, est.Items, 2)
	assertMoney(t, "0", est.Items[0].UnitPrice)
	assertMoney(t, "0", est.Items[0].LineTotal)
	assertMoney(t, "80", est.Items[1].UnitPrice)
	assertMoney(t, "80", est.TotalAmount)
}

func TestEstimateUpdate_Reprices(t *testing.T) {
	f := newFixture(t)
	est := f.createEstimate(t)

	updated, err := f.estimates.Update(f.ctx, f.orgID, est.ID, core.EstimateInput{
		CustomerID: f.customer.ID,
		Items: []core.RawItem{
			{Name: "Faucet", Type: "PRODUCT", Quantity: dec("3"), UnitPrice: core.Price(dec("50"))},
		},
		TaxRate: dec("10"),
	})
	require.NoError(t, err)
	assertMoney(t, "150", updated.SubtotalAmount)
	assertMoney(t, "15", updated.TaxAmount)
	assertMoney(t, "165", updated.TotalAmount)
	assert.Equal(t, est.PublicToken, updated.PublicToken)
}

func TestEstimateUpdate_LockedWhileConverted(t *testing.T) {
	f := newFixture(t)
	est := f.createEstimate(t)
	_, err := f.conversion.Convert(f.ctx, f.orgID, est.ID)
	require.NoError(t, err)
	before, err := f.estimates.Get(f.ctx, f.orgID, est.ID)
	require.NoError(t, err)

	_, err = f.estimates.Update(f.ctx, f.orgID, est.ID, core.EstimateInput{
		CustomerID: f.customer.ID,
		Items:      []core.RawItem{{Name: "Other", Quantity: dec("1"), UnitPrice: core.Price(dec("1"))}},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrConflict)
	assert.Equal(t, core.CodeEstimateLocked, core.CodeOf(err))

	after, err := f.estimates.Get(f.ctx, f.orgID, est.ID)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	// metadata stays editable
	meta, err := f.estimates.UpdateMetadata(f.ctx, f.orgID, est.ID, core.MetadataPatch{Notes: ptr("gate code 1234")})
	require.NoError(t, err)
	assert.Equal(t, "gate code 1234", meta.Notes)
	assert.Equal(t, core.EstimateStatusApproved, meta.Status)
	assertMoney(t, "99", meta.TotalAmount)
}

func TestEstimateUpdate_DropsStaleLink(t *testing.T) {
	f := newFixture(t)
	est := f.createEstimate(t)
	conv, err := f.conversion.Convert(f.ctx, f.orgID, est.ID)
	require.NoError(t, err)
	f.store.DeleteSaleOutOfBand(conv.SaleID)

	updated, err := f.estimates.Update(f.ctx, f.orgID, est.ID, core.EstimateInput{
		CustomerID: f.customer.ID,
		Items:      scenarioItems(),
	})
	require.NoError(t, err)
	assert.Nil(t, updated.SaleID)
	assert.Equal(t, core.EstimateStatusDraft, updated.Status)
	assertMoney(t, "100", updated.TotalAmount)
}

func TestEstimateUpdate_RollsBackOnItemFailure(t *testing.T) {
	f := newFixture(t)
	est := f.createEstimate(t)

	f.store.FailNext("ReplaceEstimateItems", errBoom)
	_, err := f.estimates.Update(f.ctx, f.orgID, est.ID, core.EstimateInput{
		CustomerID: f.customer.ID,
		Items:      []core.RawItem{{Name: "Other", Quantity: dec("5"), UnitPrice: core.Price(dec("5"))}},
	})
	assert.ErrorIs(t, err, errBoom)

	got, err := f.estimates.Get(f.ctx, f.orgID, est.ID)
	require.NoError(t, err)
	assertMoney(t, "99", got.TotalAmount)
	assert.Equal(t, "Faucet", got.Items[0].Name)
}

func TestEstimateMarkSent(t *testing.T) {
	f := newFixture(t)
	est := f.createEstimate(t)

	res, err := f.estimates.MarkSent(f.ctx, f.orgID, est.ID, "")
	require.NoError(t, err)
	assert.Equal(t, core.EstimateStatusSent, res.Estimate.Status)
	assert.Equal(t, 1, res.Estimate.SentCount)
	require.NotNil(t, res.Estimate.LastSentAt)
	assert.Equal(t, f.now, *res.Estimate.LastSentAt)
	assert.Equal(t, core.DeliveryStatusSent, res.Delivery.Status)
	assert.Equal(t, []string{"estimate:jane@example.test"}, f.notifier.sent)

	res, err = f.estimates.MarkSent(f.ctx, f.orgID, est.ID, "pm@example.test")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Estimate.SentCount)
	assert.Equal(t, "estimate:pm@example.test", f.notifier.sent[1])
}

func TestEstimateMarkSent_DeliveryFailureIsRecorded(t *testing.T) {
	f := newFixture(t)
	est := f.createEstimate(t)
	f.notifier.err = errBoom

	res, err := f.estimates.MarkSent(f.ctx, f.orgID, est.ID, "")
	require.NoError(t, err)
	assert.Equal(t, core.EstimateStatusSent, res.Estimate.Status)
	assert.Equal(t, core.DeliveryStatusFailed, res.Delivery.Status)
	assert.Equal(t, "boom", res.Delivery.Error)

	stored, err := f.estimates.Get(f.ctx, f.orgID, est.ID)
	require.NoError(t, err)
	assert.Equal(t, core.EstimateStatusSent, stored.Status)

	logs, err := f.reports.ListDeliveryLogs(f.ctx, f.orgID, core.DeliveryLogFilter{EstimateID: &est.ID})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, core.DeliveryStatusFailed, logs[0].Status)
	assert.Equal(t, core.DeliveryKindEstimate, logs[0].Kind)
}

func TestEstimateMarkSent_NeedsRecipient(t *testing.T) {
	f := newFixture(t)
	noEmail, err := f.catalog.CreateCustomer(f.ctx, f.orgID, core.CustomerInput{FullName: "No Mail"})
	require.NoError(t, err)
	est, err := f.estimates.Create(f.ctx, f.orgID, core.EstimateInput{CustomerID: noEmail.ID, Items: scenarioItems()})
	require.NoError(t, err)

	_, err = f.estimates.MarkSent(f.ctx, f.orgID, est.ID, "")
	assert.ErrorIs(t, err, core.ErrValidation)

	stored, err := f.estimates.Get(f.ctx, f.orgID, est.ID)
	require.NoError(t, err)
	assert.Equal(t, core.EstimateStatusDraft, stored.Status)
	assert.Empty(t, f.notifier.sent)
}

func TestEstimateDuplicate(t *testing.T) {
	f := newFixture(t)
	est := f.createEstimate(t)
	_, err := f.conversion.Convert(f.ctx, f.orgID, est.ID)
	require.NoError(t, err)

	dup, err := f.estimates.Duplicate(f.ctx, f.orgID, est.ID)
	require.NoError(t, err)
	assert.NotEqual(t, est.ID, dup.ID)
	assert.Equal(t, "Kitchen faucet (Copy)", dup.Title)
	assert.Equal(t, core.EstimateStatusDraft, dup.Status)
	assert.Nil(t, dup.SaleID)
	assert.NotEqual(t, est.PublicToken, dup.PublicToken)
	assertMoney(t, "99", dup.TotalAmount)
	require.Len(t, dup.Items, 1)
	assert.NotEqual(t, est.Items[0].ID, dup.Items[0].ID)
}

func TestEstimateList(t *testing.T) {
	f := newFixture(t)
	a := f.createEstimate(t)
	b := f.createEstimate(t)
	_, err := f.estimates.MarkSent(f.ctx, f.orgID, b.ID, "")
	require.NoError(t, err)

	all, err := f.estimates.List(f.ctx, f.orgID, nil)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, b.ID, all[0].ID)
	assert.Equal(t, a.ID, all[1].ID)

	sent := core.EstimateStatusSent
	onlySent, err := f.estimates.List(f.ctx, f.orgID, &sent)
	require.NoError(t, err)
	require.Len(t, onlySent, 1)
	assert.Equal(t, b.ID, onlySent[0].ID)

	bogus := core.EstimateStatus("NOPE")
	_, err = f.estimates.List(f.ctx, f.orgID, &bogus)
	assert.ErrorIs(t, err, core.ErrValidation)

	other, err := f.estimates.List(f.ctx, f.otherOrgID, nil)
	require.NoError(t, err)
	assert.Empty(t, other)
}

package app

import (
	"billing-engine/internal/ai"
	"billing-engine/internal/core"
)

// CustomerListResult holds the customers of an organization.
type CustomerListResult struct {
	Customers []core.Customer `json:"customers"`
}

// ProductListResult holds the catalog of an organization.
type ProductListResult struct {
	Products []core.Product `json:"products"`
}

// EstimateListResult holds estimates, newest first.
type EstimateListResult struct {
	Estimates []core.Estimate `json:"estimates"`
}

// SaleListResult holds sale headers, newest first.
type SaleListResult struct {
	Sales []core.Sale `json:"sales"`
}

// PaymentListResult holds the payments of one sale in payment order.
type PaymentListResult struct {
	Payments []core.Payment `json:"payments"`
}

// DeliveryLogListResult holds delivery attempts, newest first.
type DeliveryLogListResult struct {
	Logs []core.DeliveryLog `json:"logs"`
}

// OverdueResult reports the outcome of an overdue sweep.
type OverdueResult struct {
	Moved int    `json:"moved"`
	AsOf  string `json:"as_of"`
}

// PublicEstimateResult is what a customer sees through the public link.
type PublicEstimateResult struct {
	Organization *core.Organization `json:"organization"`
	Estimate     *core.Estimate     `json:"estimate"`
}

// DocumentResult is a rendered file ready to download.
type DocumentResult struct {
	Filename    string
	ContentType string
	Data        []byte
}

// DraftResult is an assistant proposal with the totals it would produce.
// Nothing is persisted.
type DraftResult struct {
	Draft *ai.LineItemDraft `json:"draft"`
	Items []core.LineItem   `json:"items"`
	core.Financials
}

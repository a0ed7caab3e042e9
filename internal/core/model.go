package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Organization is the tenant boundary. Every other record carries its ID.
type Organization struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"created_at"`
}

// Customer is a billing contact, scoped to an organization.
type Customer struct {
	ID             int       `json:"id"`
	OrganizationID int       `json:"organization_id"`
	FullName       string    `json:"full_name"`
	Email          string    `json:"email"`
	Phone          string    `json:"phone"`
	Address        string    `json:"address"`
	CreatedAt      time.Time `json:"created_at"`
}

// ItemType distinguishes goods from labour on a line item and in the catalog.
type ItemType string

const (
	ItemTypeProduct ItemType = "PRODUCT"
	ItemTypeService ItemType = "SERVICE"
)

// IsValid reports whether t is a known item type.
func (t ItemType) IsValid() bool {
	return t == ItemTypeProduct || t == ItemTypeService
}

// Product is an optional catalog entry referenced by line items.
// Price is nil for items quoted case by case.
type Product struct {
	ID             int              `json:"id"`
	OrganizationID int              `json:"organization_id"`
	Name           string           `json:"name"`
	Type           ItemType         `json:"type"`
	Price          *decimal.Decimal `json:"price,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
}

// LineItem is the shape shared by estimate and sale items.
// LineTotal is always Quantity × UnitPrice; it is never set independently.
type LineItem struct {
	ID        int             `json:"id"`
	ProductID *int            `json:"product_id,omitempty"`
	Name      string          `json:"name"`
	Type      ItemType        `json:"type"`
	Taxable   bool            `json:"taxable"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// Financials are the six derived money fields shared by estimates and sales.
type Financials struct {
	SubtotalAmount decimal.Decimal `json:"subtotal_amount"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	TaxRate        decimal.Decimal `json:"tax_rate"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
}

// EstimateStatus is the lifecycle state of an estimate.
//
//	DRAFT → SENT → APPROVED
//	APPROVED → DRAFT only through unconvert or orphan repair
type EstimateStatus string

const (
	EstimateStatusDraft    EstimateStatus = "DRAFT"
	EstimateStatusSent     EstimateStatus = "SENT"
	EstimateStatusApproved EstimateStatus = "APPROVED"
)

// Estimate is a quote. Once a real linked sale exists it is locked against
// structural edits.
type Estimate struct {
	ID             int            `json:"id"`
	OrganizationID int            `json:"organization_id"`
	CustomerID     int            `json:"customer_id"`
	CustomerName   string         `json:"customer_name"` // joined from customers
	Title          string         `json:"title"`
	Status         EstimateStatus `json:"status"`
	Notes          string         `json:"notes"`
	PONumber       string         `json:"po_number"`
	ServiceAddress string         `json:"service_address"`
	ValidUntil     *time.Time     `json:"valid_until,omitempty"`
	PublicToken    string         `json:"public_token"`
	Financials
	SaleID     *int       `json:"sale_id,omitempty"`
	LastSentAt *time.Time `json:"last_sent_at,omitempty"`
	SentCount  int        `json:"sent_count"`
	Items      []LineItem `json:"items"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// SaleStatus is the payment state of an invoice.
type SaleStatus string

const (
	SaleStatusPending SaleStatus = "PENDING"
	SaleStatusPaid    SaleStatus = "PAID"
	SaleStatusOverdue SaleStatus = "OVERDUE"
)

// IsValid reports whether s is a known sale status.
func (s SaleStatus) IsValid() bool {
	switch s {
	case SaleStatusPending, SaleStatusPaid, SaleStatusOverdue:
		return true
	}
	return false
}

// Sale is an invoice. PaidAmount and BalanceAmount are derived from the
// payment set on every payment event and never adjusted by increments.
type Sale struct {
	ID             int        `json:"id"`
	OrganizationID int        `json:"organization_id"`
	CustomerID     int        `json:"customer_id"`
	CustomerName   string     `json:"customer_name"` // joined from customers
	Description    string     `json:"description"`
	Status         SaleStatus `json:"status"`
	PONumber       string     `json:"po_number"`
	ServiceAddress string     `json:"service_address"`
	Notes          string     `json:"notes"`
	DueDate        *time.Time `json:"due_date,omitempty"`
	SaleDate       time.Time  `json:"sale_date"`
	Financials
	PaidAmount    decimal.Decimal `json:"paid_amount"`
	BalanceAmount decimal.Decimal `json:"balance_amount"`
	Items         []LineItem      `json:"items"`
	Payments      []Payment       `json:"payments"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// PaymentMethod is how a payment was received.
type PaymentMethod string

const (
	PaymentMethodCash  PaymentMethod = "CASH"
	PaymentMethodZelle PaymentMethod = "ZELLE"
	PaymentMethodCard  PaymentMethod = "CARD"
	PaymentMethodCheck PaymentMethod = "CHECK"
	PaymentMethodOther PaymentMethod = "OTHER"
)

// IsValid reports whether m is a known payment method.
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodZelle, PaymentMethodCard, PaymentMethodCheck, PaymentMethodOther:
		return true
	}
	return false
}

// Payment is immutable once created.
type Payment struct {
	ID             int             `json:"id"`
	OrganizationID int             `json:"organization_id"`
	SaleID         int             `json:"sale_id"`
	Amount         decimal.Decimal `json:"amount"`
	Method         PaymentMethod   `json:"method"`
	Notes          string          `json:"notes"`
	PaidAt         time.Time       `json:"paid_at"`
	CreatedAt      time.Time       `json:"created_at"`
}

// DeliveryKind names the document that was delivered.
type DeliveryKind string

const (
	DeliveryKindEstimate DeliveryKind = "ESTIMATE"
	DeliveryKindInvoice  DeliveryKind = "INVOICE"
	DeliveryKindReceipt  DeliveryKind = "RECEIPT"
)

// DeliveryStatus is the outcome of one delivery attempt.
type DeliveryStatus string

const (
	DeliveryStatusSent   DeliveryStatus = "SENT"
	DeliveryStatusFailed DeliveryStatus = "FAILED"
)

// DeliveryLog is an append-only record of an email delivery attempt.
// It is a side artifact and never participates in core invariants.
type DeliveryLog struct {
	ID             int            `json:"id"`
	OrganizationID int            `json:"organization_id"`
	EstimateID     *int           `json:"estimate_id,omitempty"`
	SaleID         *int           `json:"sale_id,omitempty"`
	Kind           DeliveryKind   `json:"kind"`
	Recipient      string         `json:"recipient"`
	Status         DeliveryStatus `json:"status"`
	Error          string         `json:"error,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

package app

import (
	"github.com/shopspring/decimal"

	"billing-engine/internal/core"
)

// Dates in requests are YYYY-MM-DD strings.
const dateLayout = "2006-01-02"

// LoginRequest is the input for password authentication.
type LoginRequest struct {
	Username string `json:"username" validate:"required,max=100"`
	Password string `json:"password" validate:"required,max=200"`
}

// RegisterUserRequest creates an operator account in the caller's organization.
type RegisterUserRequest struct {
	Username string `json:"username" validate:"required,min=3,max=100"`
	Email    string `json:"email" validate:"omitempty,email"`
	Password string `json:"password" validate:"required,min=8,max=200"`
	Role     string `json:"role" validate:"omitempty,oneof=ADMIN OPERATOR"`
}

// CustomerRequest is the input for creating a customer.
type CustomerRequest struct {
	FullName string `json:"full_name" validate:"required,max=200"`
	Email    string `json:"email" validate:"omitempty,email"`
	Phone    string `json:"phone" validate:"max=50"`
	Address  string `json:"address" validate:"max=500"`
}

// ProductRequest is the input for creating a catalog entry. A nil Price
// means the item is quoted per job.
type ProductRequest struct {
	Name  string           `json:"name" validate:"required,max=200"`
	Type  string           `json:"type" validate:"omitempty,oneof=PRODUCT SERVICE"`
	Price *decimal.Decimal `json:"price,omitempty"`
}

// EstimateRequest is the full writable state of an estimate. On update, Items
// replaces the existing list.
type EstimateRequest struct {
	CustomerID     int             `json:"customer_id" validate:"required,gt=0"`
	Title          string          `json:"title" validate:"max=200"`
	Items          []core.RawItem  `json:"items"`
	TaxRate        decimal.Decimal `json:"tax_rate"`
	Discount       decimal.Decimal `json:"discount"`
	Notes          string          `json:"notes" validate:"max=5000"`
	PONumber       string          `json:"po_number" validate:"max=100"`
	ServiceAddress string          `json:"service_address" validate:"max=500"`
	ValidUntil     string          `json:"valid_until" validate:"omitempty,datetime=2006-01-02"`
}

// MetadataRequest patches descriptive estimate fields. Nil fields are left
// alone; an empty ValidUntil clears it.
type MetadataRequest struct {
	Title          *string `json:"title" validate:"omitempty,max=200"`
	Notes          *string `json:"notes" validate:"omitempty,max=5000"`
	PONumber       *string `json:"po_number" validate:"omitempty,max=100"`
	ServiceAddress *string `json:"service_address" validate:"omitempty,max=500"`
	ValidUntil     *string `json:"valid_until"`
}

// SendRequest addresses an outgoing document. An empty Recipient falls back
// to the customer's email.
type SendRequest struct {
	Recipient string `json:"recipient" validate:"omitempty,email"`
}

// SaleRequest is the full writable state of a sale entered directly.
type SaleRequest struct {
	CustomerID     int             `json:"customer_id" validate:"required,gt=0"`
	Description    string          `json:"description" validate:"max=500"`
	Items          []core.RawItem  `json:"items"`
	TaxRate        decimal.Decimal `json:"tax_rate"`
	Discount       decimal.Decimal `json:"discount"`
	PONumber       string          `json:"po_number" validate:"max=100"`
	ServiceAddress string          `json:"service_address" validate:"max=500"`
	Notes          string          `json:"notes" validate:"max=5000"`
	DueDate        string          `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
	SaleDate       string          `json:"sale_date" validate:"omitempty,datetime=2006-01-02"`
}

// SaleQuery filters the sales list.
type SaleQuery struct {
	Status     string `json:"status" validate:"omitempty,oneof=PENDING PAID OVERDUE"`
	CustomerID int    `json:"customer_id" validate:"gte=0"`
	OpenOnly   bool   `json:"open_only"`
}

// PaymentRequest records a payment. Method is case-insensitive and defaults
// to OTHER.
type PaymentRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Method string          `json:"method" validate:"max=20"`
	Notes  string          `json:"notes" validate:"max=1000"`
	PaidAt string          `json:"paid_at" validate:"omitempty,datetime=2006-01-02"`
}

// RangeRequest selects a reporting window. From and To apply to the custom
// preset only.
type RangeRequest struct {
	Preset string `json:"preset" validate:"omitempty,oneof=last7 last30 last90 thisMonth lastMonth ytd custom"`
	From   string `json:"from" validate:"omitempty,datetime=2006-01-02"`
	To     string `json:"to" validate:"omitempty,datetime=2006-01-02"`
}

// OverdueRequest runs the overdue sweep. An empty AsOf means today.
type OverdueRequest struct {
	AsOf string `json:"as_of" validate:"omitempty,datetime=2006-01-02"`
}

// DraftRequest asks the assistant for line items. TaxRate and Discount only
// shape the preview totals.
type DraftRequest struct {
	Description string          `json:"description" validate:"required,max=4000"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
	Discount    decimal.Decimal `json:"discount"`
}

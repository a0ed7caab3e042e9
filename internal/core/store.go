package core

import (
	"context"
	"time"
)

// SaleFilter narrows ListSales. Zero values mean "no constraint".
type SaleFilter struct {
	Status     *SaleStatus
	CustomerID *int
	From       *time.Time // sale_date >= From
	To         *time.Time // sale_date <= To
	OpenOnly   bool       // balance_amount > 0
	DueBefore  *time.Time // due_date < DueBefore
}

// PaymentFilter narrows ListPayments.
type PaymentFilter struct {
	SaleID *int
	From   *time.Time // paid_at >= From
	To     *time.Time // paid_at <= To
}

// DeliveryLogFilter narrows ListDeliveryLogs.
type DeliveryLogFilter struct {
	EstimateID *int
	SaleID     *int
}

// Repository is the persistence contract consumed by the services.
// Every tenant-owned lookup takes the organization id and must treat a row
// owned by another organization exactly like a missing row (NotFound).
type Repository interface {
	CreateOrganization(ctx context.Context, o *Organization) error
	GetOrganization(ctx context.Context, orgID int) (*Organization, error)

	CreateUser(ctx context.Context, u *User) error
	GetUser(ctx context.Context, userID int) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	CreateCustomer(ctx context.Context, c *Customer) error
	GetCustomer(ctx context.Context, orgID, customerID int) (*Customer, error)
	ListCustomers(ctx context.Context, orgID int) ([]Customer, error)

	CreateProduct(ctx context.Context, p *Product) error
	GetProduct(ctx context.Context, orgID, productID int) (*Product, error)
	ListProducts(ctx context.Context, orgID int) ([]Product, error)

	// CreateEstimate inserts the header and its items, assigning IDs in place.
	CreateEstimate(ctx context.Context, e *Estimate) error
	// GetEstimate returns the header with items.
	GetEstimate(ctx context.Context, orgID, estimateID int) (*Estimate, error)
	// GetEstimateForUpdate is GetEstimate plus a row lock held until the
	// surrounding transaction ends.
	GetEstimateForUpdate(ctx context.Context, orgID, estimateID int) (*Estimate, error)
	GetEstimateByToken(ctx context.Context, token string) (*Estimate, error)
	GetEstimateBySale(ctx context.Context, orgID, saleID int) (*Estimate, error)
	ListEstimates(ctx context.Context, orgID int, status *EstimateStatus) ([]Estimate, error)
	// UpdateEstimate writes header fields, including the sale link. Items are untouched.
	UpdateEstimate(ctx context.Context, e *Estimate) error
	// ReplaceEstimateItems deletes every item of the estimate and inserts items.
	ReplaceEstimateItems(ctx context.Context, orgID, estimateID int, items []LineItem) error

	// CreateSale inserts the header and its items, assigning IDs in place.
	CreateSale(ctx context.Context, s *Sale) error
	// GetSale returns the header with items and payments.
	GetSale(ctx context.Context, orgID, saleID int) (*Sale, error)
	// GetSaleForUpdate is GetSale plus a row lock held until the surrounding
	// transaction ends. Concurrent payment application serializes on it.
	GetSaleForUpdate(ctx context.Context, orgID, saleID int) (*Sale, error)
	SaleExists(ctx context.Context, orgID, saleID int) (bool, error)
	// ListSales returns headers only (no items or payments).
	ListSales(ctx context.Context, orgID int, f SaleFilter) ([]Sale, error)
	// UpdateSale writes header fields including the payment aggregates.
	UpdateSale(ctx context.Context, s *Sale) error
	ReplaceSaleItems(ctx context.Context, orgID, saleID int, items []LineItem) error
	// The Delete methods succeed when nothing matches.
	DeleteSaleItems(ctx context.Context, orgID, saleID int) error
	DeleteSale(ctx context.Context, orgID, saleID int) error

	CreatePayment(ctx context.Context, p *Payment) error
	GetPayment(ctx context.Context, orgID, paymentID int) (*Payment, error)
	ListPayments(ctx context.Context, orgID int, f PaymentFilter) ([]Payment, error)
	DeleteSalePayments(ctx context.Context, orgID, saleID int) error

	AppendDeliveryLog(ctx context.Context, l *DeliveryLog) error
	ListDeliveryLogs(ctx context.Context, orgID int, f DeliveryLogFilter) ([]DeliveryLog, error)
}

// Store is a Repository that can also open transactions.
type Store interface {
	Repository

	// InTx runs fn inside one transaction. If fn returns an error every write
	// made through tx is rolled back and the error is returned unchanged.
	InTx(ctx context.Context, fn func(tx Repository) error) error
}

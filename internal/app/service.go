package app

import (
	"context"

	"billing-engine/internal/core"
)

// ApplicationService is the single interface the CLI and web adapters call.
// It validates raw requests, resolves tenant-scoped documents and delegates
// the domain work to the core services. It holds no presentation logic.
type ApplicationService interface {
	// Authenticate checks a username and password and returns the active user.
	Authenticate(ctx context.Context, req LoginRequest) (*core.User, error)

	// RegisterUser creates a user in orgID.
	RegisterUser(ctx context.Context, orgID int, req RegisterUserRequest) (*core.User, error)

	// GetUser returns a user by id.
	GetUser(ctx context.Context, userID int) (*core.User, error)

	// GetOrganization returns the tenant record.
	GetOrganization(ctx context.Context, orgID int) (*core.Organization, error)

	CreateCustomer(ctx context.Context, orgID int, req CustomerRequest) (*core.Customer, error)
	GetCustomer(ctx context.Context, orgID, customerID int) (*core.Customer, error)
	ListCustomers(ctx context.Context, orgID int) (*CustomerListResult, error)

	CreateProduct(ctx context.Context, orgID int, req ProductRequest) (*core.Product, error)
	ListProducts(ctx context.Context, orgID int) (*ProductListResult, error)

	// CreateEstimate normalizes items and stores a DRAFT estimate.
	CreateEstimate(ctx context.Context, orgID int, req EstimateRequest) (*core.Estimate, error)

	// UpdateEstimate replaces the structural fields of an estimate. Fails with
	// ESTIMATE_LOCKED while a linked sale exists.
	UpdateEstimate(ctx context.Context, orgID, estimateID int, req EstimateRequest) (*core.Estimate, error)

	// UpdateEstimateMetadata edits descriptive fields, allowed in every state.
	UpdateEstimateMetadata(ctx context.Context, orgID, estimateID int, req MetadataRequest) (*core.Estimate, error)

	GetEstimate(ctx context.Context, orgID, estimateID int) (*core.Estimate, error)

	// ListEstimates returns estimates newest first, optionally filtered by status.
	ListEstimates(ctx context.Context, orgID int, status string) (*EstimateListResult, error)

	// SendEstimate emails the estimate and marks it SENT.
	SendEstimate(ctx context.Context, orgID, estimateID int, req SendRequest) (*core.SendResult, error)

	// DuplicateEstimate copies an estimate into a new unlinked DRAFT.
	DuplicateEstimate(ctx context.Context, orgID, estimateID int) (*core.Estimate, error)

	// ConvertEstimate creates the linked sale, or returns the existing one.
	ConvertEstimate(ctx context.Context, orgID, estimateID int) (*core.ConversionResult, error)

	// UnconvertEstimate deletes the linked sale with its payments and
	// returns the estimate to DRAFT.
	UnconvertEstimate(ctx context.Context, orgID, estimateID int) (*core.UnconvertResult, error)

	// RepairEstimate clears a link to a sale that no longer exists.
	RepairEstimate(ctx context.Context, orgID, estimateID int) (*core.RepairResult, error)

	// GetPublicEstimate resolves a customer-facing link.
	GetPublicEstimate(ctx context.Context, token string) (*PublicEstimateResult, error)

	// ApprovePublicEstimate lets the customer approve through the link; it
	// converts the estimate exactly like ConvertEstimate.
	ApprovePublicEstimate(ctx context.Context, token string) (*core.ConversionResult, error)

	CreateSale(ctx context.Context, orgID int, req SaleRequest) (*core.Sale, error)

	// UpdateSale re-prices a sale. Rejected with TOTAL_BELOW_PAID when the
	// new total is below the amount already paid.
	UpdateSale(ctx context.Context, orgID, saleID int, req SaleRequest) (*core.Sale, error)

	GetSale(ctx context.Context, orgID, saleID int) (*core.Sale, error)
	ListSales(ctx context.Context, orgID int, q SaleQuery) (*SaleListResult, error)
	SendInvoice(ctx context.Context, orgID, saleID int, req SendRequest) (*core.InvoiceResult, error)

	// MarkOverdue moves past-due PENDING sales to OVERDUE.
	MarkOverdue(ctx context.Context, orgID int, req OverdueRequest) (*OverdueResult, error)

	// ApplyPayment records a payment and recomputes the sale.
	ApplyPayment(ctx context.Context, orgID, saleID int, req PaymentRequest) (*core.PaymentResult, error)

	ListPayments(ctx context.Context, orgID, saleID int) (*PaymentListResult, error)
	SendReceipt(ctx context.Context, orgID, paymentID int, req SendRequest) (*core.ReceiptResult, error)

	// GetSummary aggregates the selected window.
	GetSummary(ctx context.Context, orgID int, req RangeRequest) (*core.Summary, error)

	// ExportSummary renders the summary and its sales as an XLSX workbook.
	ExportSummary(ctx context.Context, orgID int, req RangeRequest) (*DocumentResult, error)

	ListDeliveryLogs(ctx context.Context, orgID int, f core.DeliveryLogFilter) (*DeliveryLogListResult, error)

	// CheckIntegrity reports orphan links and settlement mismatches.
	CheckIntegrity(ctx context.Context, orgID int) (*core.IntegrityReport, error)

	// EstimatePDF, InvoicePDF and ReceiptPDF render documents for download.
	EstimatePDF(ctx context.Context, orgID, estimateID int) (*DocumentResult, error)
	InvoicePDF(ctx context.Context, orgID, saleID int) (*DocumentResult, error)
	ReceiptPDF(ctx context.Context, orgID, paymentID int) (*DocumentResult, error)

	// DraftLineItems asks the assistant for line items and previews their
	// totals. Nothing is saved.
	DraftLineItems(ctx context.Context, orgID int, req DraftRequest) (*DraftResult, error)
}

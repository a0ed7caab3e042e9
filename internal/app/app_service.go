package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"billing-engine/internal/ai"
	"billing-engine/internal/core"
	"billing-engine/internal/render"
)

// ErrDraftingDisabled is returned by DraftLineItems when no assistant is
// configured.
var ErrDraftingDisabled = errors.New("line-item drafting is not configured")

// Deps are the collaborators of the application service. Store is required;
// everything else has a working default.
type Deps struct {
	Store    core.Store
	Notifier core.Notifier
	Drafter  ai.Drafter // nil disables DraftLineItems
	Logger   *zap.Logger
	Now      func() time.Time
}

type appService struct {
	store      core.Store
	users      core.UserService
	catalog    core.CatalogService
	estimates  core.EstimateService
	conversion core.ConversionService
	sales      core.SaleService
	ledger     core.PaymentLedger
	reports    core.ReportingService
	drafter    ai.Drafter
	now        func() time.Time
}

// NewAppService wires the core services over deps.Store and returns an
// ApplicationService.
func NewAppService(deps Deps) ApplicationService {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	opts := []core.Option{
		core.WithLogger(deps.Logger),
		core.WithClock(deps.Now),
		core.WithNotifier(deps.Notifier),
	}
	return &appService{
		store:      deps.Store,
		users:      core.NewUserService(deps.Store, opts...),
		catalog:    core.NewCatalogService(deps.Store, opts...),
		estimates:  core.NewEstimateService(deps.Store, opts...),
		conversion: core.NewConversionService(deps.Store, opts...),
		sales:      core.NewSaleService(deps.Store, opts...),
		ledger:     core.NewPaymentLedger(deps.Store, opts...),
		reports:    core.NewReportingService(deps.Store, opts...),
		drafter:    deps.Drafter,
		now:        deps.Now,
	}
}

// ── Users and tenants ────────────────────────────────────────────────────────

func (s *appService) Authenticate(ctx context.Context, req LoginRequest) (*core.User, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	return s.users.Authenticate(ctx, req.Username, req.Password)
}

func (s *appService) RegisterUser(ctx context.Context, orgID int, req RegisterUserRequest) (*core.User, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	return s.users.Register(ctx, orgID, req.Username, req.Email, req.Password, req.Role)
}

func (s *appService) GetUser(ctx context.Context, userID int) (*core.User, error) {
	return s.users.GetByID(ctx, userID)
}

func (s *appService) GetOrganization(ctx context.Context, orgID int) (*core.Organization, error) {
	return s.store.GetOrganization(ctx, orgID)
}

// ── Catalog ──────────────────────────────────────────────────────────────────

func (s *appService) CreateCustomer(ctx context.Context, orgID int, req CustomerRequest) (*core.Customer, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	return s.catalog.CreateCustomer(ctx, orgID, core.CustomerInput{
		FullName: req.FullName,
		Email:    req.Email,
		Phone:    req.Phone,
		Address:  req.Address,
	})
}

func (s *appService) GetCustomer(ctx context.Context, orgID, customerID int) (*core.Customer, error) {
	return s.catalog.GetCustomer(ctx, orgID, customerID)
}

func (s *appService) ListCustomers(ctx context.Context, orgID int) (*CustomerListResult, error) {
	customers, err := s.catalog.ListCustomers(ctx, orgID)
	if err != nil {
		return nil, err
	}
	return &CustomerListResult{Customers: customers}, nil
}

func (s *appService) CreateProduct(ctx context.Context, orgID int, req ProductRequest) (*core.Product, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	return s.catalog.CreateProduct(ctx, orgID, core.ProductInput{Name: req.Name, Type: req.Type, Price: req.Price})
}

func (s *appService) ListProducts(ctx context.Context, orgID int) (*ProductListResult, error) {
	products, err := s.catalog.ListProducts(ctx, orgID)
	if err != nil {
		return nil, err
	}
	return &ProductListResult{Products: products}, nil
}

// ── Estimates ────────────────────────────────────────────────────────────────

func (s *appService) estimateInput(req EstimateRequest) (core.EstimateInput, error) {
	if err := validateRequest(req); err != nil {
		return core.EstimateInput{}, err
	}
	validUntil, err := parseDate("valid_until", req.ValidUntil)
	if err != nil {
		return core.EstimateInput{}, err
	}
	return core.EstimateInput{
		CustomerID: req.CustomerID,
		Items:      req.Items,
		TaxRate:    req.TaxRate,
		Discount:   req.Discount,
		EstimateMetadata: core.EstimateMetadata{
			Title:          req.Title,
			Notes:          req.Notes,
			PONumber:       req.PONumber,
			ServiceAddress: req.ServiceAddress,
			ValidUntil:     validUntil,
		},
	}, nil
}

func (s *appService) CreateEstimate(ctx context.Context, orgID int, req EstimateRequest) (*core.Estimate, error) {
	in, err := s.estimateInput(req)
	if err != nil {
		return nil, err
	}
	return s.estimates.Create(ctx, orgID, in)
}

func (s *appService) UpdateEstimate(ctx context.Context, orgID, estimateID int, req EstimateRequest) (*core.Estimate, error) {
	in, err := s.estimateInput(req)
	if err != nil {
		return nil, err
	}
	return s.estimates.Update(ctx, orgID, estimateID, in)
}

func (s *appService) UpdateEstimateMetadata(ctx context.Context, orgID, estimateID int, req MetadataRequest) (*core.Estimate, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	patch := core.MetadataPatch{
		Title:          req.Title,
		Notes:          req.Notes,
		PONumber:       req.PONumber,
		ServiceAddress: req.ServiceAddress,
	}
	if req.ValidUntil != nil {
		validUntil, err := parseDate("valid_until", *req.ValidUntil)
		if err != nil {
			return nil, err
		}
		patch.ValidUntil = validUntil
		patch.ClearValidUntil = validUntil == nil
	}
	return s.estimates.UpdateMetadata(ctx, orgID, estimateID, patch)
}

func (s *appService) GetEstimate(ctx context.Context, orgID, estimateID int) (*core.Estimate, error) {
	return s.estimates.Get(ctx, orgID, estimateID)
}

func (s *appService) ListEstimates(ctx context.Context, orgID int, status string) (*EstimateListResult, error) {
	var filter *core.EstimateStatus
	if status = strings.ToUpper(strings.TrimSpace(status)); status != "" {
		st := core.EstimateStatus(status)
		filter = &st
	}
	estimates, err := s.estimates.List(ctx, orgID, filter)
	if err != nil {
		return nil, err
	}
	return &EstimateListResult{Estimates: estimates}, nil
}

func (s *appService) SendEstimate(ctx context.Context, orgID, estimateID int, req SendRequest) (*core.SendResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	return s.estimates.MarkSent(ctx, orgID, estimateID, req.Recipient)
}

func (s *appService) DuplicateEstimate(ctx context.Context, orgID, estimateID int) (*core.Estimate, error) {
	return s.estimates.Duplicate(ctx, orgID, estimateID)
}

func (s *appService) ConvertEstimate(ctx context.Context, orgID, estimateID int) (*core.ConversionResult, error) {
	return s.conversion.Convert(ctx, orgID, estimateID)
}

func (s *appService) UnconvertEstimate(ctx context.Context, orgID, estimateID int) (*core.UnconvertResult, error) {
	return s.conversion.Unconvert(ctx, orgID, estimateID)
}

func (s *appService) RepairEstimate(ctx context.Context, orgID, estimateID int) (*core.RepairResult, error) {
	return s.conversion.Repair(ctx, orgID, estimateID)
}

func (s *appService) GetPublicEstimate(ctx context.Context, token string) (*PublicEstimateResult, error) {
	est, err := s.estimates.GetByPublicToken(ctx, token)
	if err != nil {
		return nil, err
	}
	org, err := s.store.GetOrganization(ctx, est.OrganizationID)
	if err != nil {
		return nil, err
	}
	return &PublicEstimateResult{Organization: org, Estimate: est}, nil
}

func (s *appService) ApprovePublicEstimate(ctx context.Context, token string) (*core.ConversionResult, error) {
	est, err := s.estimates.GetByPublicToken(ctx, token)
	if err != nil {
		return nil, err
	}
	return s.conversion.Approve(ctx, est.OrganizationID, est.ID)
}

// ── Sales ────────────────────────────────────────────────────────────────────

func (s *appService) saleInput(req SaleRequest) (core.SaleInput, error) {
	if err := validateRequest(req); err != nil {
		return core.SaleInput{}, err
	}
	due, err := parseDate("due_date", req.DueDate)
	if err != nil {
		return core.SaleInput{}, err
	}
	saleDate, err := parseDate("sale_date", req.SaleDate)
	if err != nil {
		return core.SaleInput{}, err
	}
	return core.SaleInput{
		CustomerID:     req.CustomerID,
		Description:    req.Description,
		Items:          req.Items,
		TaxRate:        req.TaxRate,
		Discount:       req.Discount,
		PONumber:       req.PONumber,
		ServiceAddress: req.ServiceAddress,
		Notes:          req.Notes,
		DueDate:        due,
		SaleDate:       saleDate,
	}, nil
}

func (s *appService) CreateSale(ctx context.Context, orgID int, req SaleRequest) (*core.Sale, error) {
	in, err := s.saleInput(req)
	if err != nil {
		return nil, err
	}
	return s.sales.Create(ctx, orgID, in)
}

func (s *appService) UpdateSale(ctx context.Context, orgID, saleID int, req SaleRequest) (*core.Sale, error) {
	in, err := s.saleInput(req)
	if err != nil {
		return nil, err
	}
	return s.sales.Update(ctx, orgID, saleID, in)
}

func (s *appService) GetSale(ctx context.Context, orgID, saleID int) (*core.Sale, error) {
	return s.sales.Get(ctx, orgID, saleID)
}

func (s *appService) ListSales(ctx context.Context, orgID int, q SaleQuery) (*SaleListResult, error) {
	if err := validateRequest(q); err != nil {
		return nil, err
	}
	f := core.SaleFilter{OpenOnly: q.OpenOnly}
	if q.Status != "" {
		st := core.SaleStatus(q.Status)
		f.Status = &st
	}
	if q.CustomerID > 0 {
		f.CustomerID = &q.CustomerID
	}
	sales, err := s.sales.List(ctx, orgID, f)
	if err != nil {
		return nil, err
	}
	return &SaleListResult{Sales: sales}, nil
}

func (s *appService) SendInvoice(ctx context.Context, orgID, saleID int, req SendRequest) (*core.InvoiceResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	return s.sales.SendInvoice(ctx, orgID, saleID, req.Recipient)
}

func (s *appService) MarkOverdue(ctx context.Context, orgID int, req OverdueRequest) (*OverdueResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	asOf, err := parseDate("as_of", req.AsOf)
	if err != nil {
		return nil, err
	}
	if asOf == nil {
		y, m, d := s.now().UTC().Date()
		today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		asOf = &today
	}
	moved, err := s.sales.MarkOverdue(ctx, orgID, *asOf)
	if err != nil {
		return nil, err
	}
	return &OverdueResult{Moved: moved, AsOf: asOf.Format(dateLayout)}, nil
}

// ── Payments ─────────────────────────────────────────────────────────────────

func (s *appService) ApplyPayment(ctx context.Context, orgID, saleID int, req PaymentRequest) (*core.PaymentResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	paidAt, err := parseDate("paid_at", req.PaidAt)
	if err != nil {
		return nil, err
	}
	return s.ledger.ApplyPayment(ctx, orgID, saleID, core.PaymentInput{
		Amount: req.Amount,
		Method: req.Method,
		Notes:  req.Notes,
		PaidAt: paidAt,
	})
}

func (s *appService) ListPayments(ctx context.Context, orgID, saleID int) (*PaymentListResult, error) {
	payments, err := s.ledger.ListPayments(ctx, orgID, saleID)
	if err != nil {
		return nil, err
	}
	return &PaymentListResult{Payments: payments}, nil
}

func (s *appService) SendReceipt(ctx context.Context, orgID, paymentID int, req SendRequest) (*core.ReceiptResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	return s.ledger.SendReceipt(ctx, orgID, paymentID, req.Recipient)
}

// ── Reports ──────────────────────────────────────────────────────────────────

func (s *appService) resolveRange(req RangeRequest) (core.DateRange, error) {
	if err := validateRequest(req); err != nil {
		return core.DateRange{}, err
	}
	return s.reports.ResolveRange(req.Preset, req.From, req.To)
}

func (s *appService) GetSummary(ctx context.Context, orgID int, req RangeRequest) (*core.Summary, error) {
	r, err := s.resolveRange(req)
	if err != nil {
		return nil, err
	}
	return s.reports.Summary(ctx, orgID, r)
}

func (s *appService) ExportSummary(ctx context.Context, orgID int, req RangeRequest) (*DocumentResult, error) {
	r, err := s.resolveRange(req)
	if err != nil {
		return nil, err
	}
	summary, err := s.reports.Summary(ctx, orgID, r)
	if err != nil {
		return nil, err
	}
	sales, err := s.sales.List(ctx, orgID, core.SaleFilter{From: &r.Start, To: &r.End})
	if err != nil {
		return nil, err
	}
	org, err := s.store.GetOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}
	data, err := render.SummaryWorkbook(org.Name, summary, sales)
	if err != nil {
		return nil, err
	}
	return &DocumentResult{
		Filename:    fmt.Sprintf("summary-%s-%s.xlsx", r.Start.Format(dateLayout), r.End.Format(dateLayout)),
		ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		Data:        data,
	}, nil
}

func (s *appService) ListDeliveryLogs(ctx context.Context, orgID int, f core.DeliveryLogFilter) (*DeliveryLogListResult, error) {
	logs, err := s.reports.ListDeliveryLogs(ctx, orgID, f)
	if err != nil {
		return nil, err
	}
	return &DeliveryLogListResult{Logs: logs}, nil
}

func (s *appService) CheckIntegrity(ctx context.Context, orgID int) (*core.IntegrityReport, error) {
	return s.reports.CheckIntegrity(ctx, orgID)
}

// ── Documents ────────────────────────────────────────────────────────────────

func (s *appService) EstimatePDF(ctx context.Context, orgID, estimateID int) (*DocumentResult, error) {
	est, err := s.estimates.Get(ctx, orgID, estimateID)
	if err != nil {
		return nil, err
	}
	org, cust, err := s.parties(ctx, orgID, est.CustomerID)
	if err != nil {
		return nil, err
	}
	data, err := render.EstimatePDF(org, cust, est)
	if err != nil {
		return nil, err
	}
	return pdfResult(fmt.Sprintf("estimate-%d.pdf", est.ID), data), nil
}

func (s *appService) InvoicePDF(ctx context.Context, orgID, saleID int) (*DocumentResult, error) {
	sale, err := s.sales.Get(ctx, orgID, saleID)
	if err != nil {
		return nil, err
	}
	org, cust, err := s.parties(ctx, orgID, sale.CustomerID)
	if err != nil {
		return nil, err
	}
	data, err := render.InvoicePDF(org, cust, sale)
	if err != nil {
		return nil, err
	}
	return pdfResult(fmt.Sprintf("invoice-%d.pdf", sale.ID), data), nil
}

func (s *appService) ReceiptPDF(ctx context.Context, orgID, paymentID int) (*DocumentResult, error) {
	p, err := s.store.GetPayment(ctx, orgID, paymentID)
	if err != nil {
		return nil, err
	}
	sale, err := s.sales.Get(ctx, orgID, p.SaleID)
	if err != nil {
		return nil, err
	}
	org, cust, err := s.parties(ctx, orgID, sale.CustomerID)
	if err != nil {
		return nil, err
	}
	data, err := render.ReceiptPDF(org, cust, sale, p)
	if err != nil {
		return nil, err
	}
	return pdfResult(fmt.Sprintf("receipt-%d.pdf", p.ID), data), nil
}

// ── Assistant ────────────────────────────────────────────────────────────────

func (s *appService) DraftLineItems(ctx context.Context, orgID int, req DraftRequest) (*DraftResult, error) {
	if s.drafter == nil {
		return nil, ErrDraftingDisabled
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	catalog, err := s.catalog.ListProducts(ctx, orgID)
	if err != nil {
		return nil, err
	}
	draft, err := s.drafter.DraftLineItems(ctx, req.Description, catalog)
	if err != nil {
		return nil, err
	}
	priced, err := core.PriceLines(draft.RawItems(catalog), req.Discount, req.TaxRate)
	if err != nil {
		return nil, fmt.Errorf("draft could not be priced: %w", err)
	}
	return &DraftResult{Draft: draft, Items: priced.Items, Financials: priced.Financials}, nil
}

// ── private helpers ──────────────────────────────────────────────────────────

func (s *appService) parties(ctx context.Context, orgID, customerID int) (*core.Organization, *core.Customer, error) {
	org, err := s.store.GetOrganization(ctx, orgID)
	if err != nil {
		return nil, nil, err
	}
	cust, err := s.store.GetCustomer(ctx, orgID, customerID)
	if err != nil {
		return nil, nil, err
	}
	return org, cust, nil
}

func pdfResult(name string, data []byte) *DocumentResult {
	return &DocumentResult{Filename: name, ContentType: "application/pdf", Data: data}
}

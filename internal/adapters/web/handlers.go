// Package web exposes the application service over a JSON HTTP API.
package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"billing-engine/internal/app"
)

// Config configures the HTTP adapter.
type Config struct {
	AllowedOrigins string
	JWTSecret      string
	TokenTTL       time.Duration
	// SecureCookies marks the auth cookie Secure. Enable behind TLS.
	SecureCookies bool
}

// Handler holds the ApplicationService and the chi router.
type Handler struct {
	svc    app.ApplicationService
	cfg    Config
	log    *zap.Logger
	router chi.Router
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.ApplicationService, cfg Config, log *zap.Logger) http.Handler {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = time.Hour
	}
	if log == nil {
		log = zap.NewNop()
	}
	h := &Handler{svc: svc, cfg: cfg, log: log}

	r := chi.NewRouter()
	r.Use(RequestID(log))
	r.Use(Logger)
	r.Use(Recoverer)
	r.Use(CORS(cfg.AllowedOrigins))
	r.Use(RequestBodyLimit(1 << 20)) // 1 MB

	// ── Public ────────────────────────────────────────────────────────────────
	r.Get("/api/health", h.health)
	r.Post("/api/auth/login", h.login)
	r.Post("/api/auth/logout", h.logout)

	// customer-facing estimate link
	r.Get("/public/estimates/{token}", h.publicEstimatePage)
	r.Get("/api/public/estimates/{token}", h.apiPublicEstimate)
	r.Post("/api/public/estimates/{token}/approve", h.apiPublicApprove)

	// ── Protected API routes (401 JSON if unauthenticated) ───────────────────
	r.Group(func(r chi.Router) {
		r.Use(h.RequireAuth)

		r.Get("/api/auth/me", h.me)
		r.With(h.RequireAdmin).Post("/api/users", h.registerUser)

		// Catalog
		r.Get("/api/customers", h.apiListCustomers)
		r.Post("/api/customers", h.apiCreateCustomer)
		r.Get("/api/customers/{id}", h.apiGetCustomer)
		r.Get("/api/products", h.apiListProducts)
		r.Post("/api/products", h.apiCreateProduct)

		// Estimates
		r.Get("/api/estimates", h.apiListEstimates)
		r.Post("/api/estimates", h.apiCreateEstimate)
		r.Post("/api/estimates/draft", h.apiDraftLineItems)
		r.Get("/api/estimates/{id}", h.apiGetEstimate)
		r.Put("/api/estimates/{id}", h.apiUpdateEstimate)
		r.Patch("/api/estimates/{id}", h.apiUpdateEstimateMetadata)
		r.Get("/api/estimates/{id}/pdf", h.apiEstimatePDF)
		r.Post("/api/estimates/{id}/send", h.apiSendEstimate)
		r.Post("/api/estimates/{id}/duplicate", h.apiDuplicateEstimate)
		r.Post("/api/estimates/{id}/convert", h.apiConvertEstimate)
		r.Post("/api/estimates/{id}/approve", h.apiConvertEstimate)
		r.Post("/api/estimates/{id}/unconvert", h.apiUnconvertEstimate)
		r.Post("/api/estimates/{id}/repair", h.apiRepairEstimate)

		// Sales and payments
		r.Get("/api/sales", h.apiListSales)
		r.Post("/api/sales", h.apiCreateSale)
		r.Post("/api/sales/overdue", h.apiMarkOverdue)
		r.Get("/api/sales/{id}", h.apiGetSale)
		r.Put("/api/sales/{id}", h.apiUpdateSale)
		r.Get("/api/sales/{id}/pdf", h.apiInvoicePDF)
		r.Post("/api/sales/{id}/send", h.apiSendInvoice)
		r.Get("/api/sales/{id}/payments", h.apiListPayments)
		r.Post("/api/sales/{id}/payments", h.apiApplyPayment)
		r.Get("/api/payments/{id}/pdf", h.apiReceiptPDF)
		r.Post("/api/payments/{id}/send", h.apiSendReceipt)

		// Reporting
		r.Get("/api/reports/summary", h.apiSummary)
		r.Get("/api/reports/summary.xlsx", h.apiExportSummary)
		r.Get("/api/reports/integrity", h.apiIntegrity)
		r.Get("/api/delivery-logs", h.apiDeliveryLogs)
	})

	h.router = r
	return r
}

// health returns service status.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// pathID parses the {id} URL parameter. It writes a 400 and returns false
// when the parameter is not a positive integer.
func pathID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		writeError(w, r, "invalid id in path", "BAD_REQUEST", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// queryInt parses an optional positive integer query parameter.
func queryInt(r *http.Request, name string) (*int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return nil, errors.New(name + " must be a positive integer")
	}
	return &v, nil
}

// decodeJSON decodes the request body into v and returns false after writing
// an error response on failure: 413 when the body exceeds the size limit,
// 400 for all other decode errors. An empty body leaves v untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return true
		}
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return false
	}
	return true
}

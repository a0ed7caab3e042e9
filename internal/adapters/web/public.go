package web

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"billing-engine/internal/app"
	"billing-engine/internal/logger"
	"billing-engine/internal/render"
)

//go:embed templates/*.html
var templateFS embed.FS

var publicEstimateTmpl = template.Must(
	template.New("public_estimate.html").
		Funcs(template.FuncMap{"money": render.Money}).
		ParseFS(templateFS, "templates/public_estimate.html"),
)

type publicEstimateView struct {
	*app.PublicEstimateResult
	Approvable bool
}

// publicEstimatePage renders the customer-facing estimate page.
func (h *Handler) publicEstimatePage(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.GetPublicEstimate(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		http.Error(w, "estimate not found", http.StatusNotFound)
		return
	}
	view := publicEstimateView{PublicEstimateResult: res, Approvable: res.Estimate.SaleID == nil && len(res.Estimate.Items) > 0}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := publicEstimateTmpl.Execute(w, view); err != nil {
		logger.FromContext(r.Context()).Error("failed to render public estimate", zap.Error(err))
	}
}

func (h *Handler) apiPublicEstimate(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.GetPublicEstimate(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// apiPublicApprove converts the estimate on the customer's behalf. Approving
// twice returns the same sale.
func (h *Handler) apiPublicApprove(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.ApprovePublicEstimate(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

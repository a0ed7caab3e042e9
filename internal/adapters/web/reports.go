package web

import (
	"net/http"

	"billing-engine/internal/app"
	"billing-engine/internal/core"
)

func rangeRequest(r *http.Request) app.RangeRequest {
	q := r.URL.Query()
	return app.RangeRequest{Preset: q.Get("preset"), From: q.Get("from"), To: q.Get("to")}
}

func (h *Handler) apiSummary(w http.ResponseWriter, r *http.Request) {
	s, err := h.svc.GetSummary(r.Context(), orgID(r), rangeRequest(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, s)
}

func (h *Handler) apiExportSummary(w http.ResponseWriter, r *http.Request) {
	doc, err := h.svc.ExportSummary(r.Context(), orgID(r), rangeRequest(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeDocument(w, doc)
}

func (h *Handler) apiIntegrity(w http.ResponseWriter, r *http.Request) {
	rep, err := h.svc.CheckIntegrity(r.Context(), orgID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	type response struct {
		*core.IntegrityReport
		Healthy bool `json:"healthy"`
	}
	writeJSON(w, response{IntegrityReport: rep, Healthy: rep.Healthy()})
}

func (h *Handler) apiDeliveryLogs(w http.ResponseWriter, r *http.Request) {
	var f core.DeliveryLogFilter
	var err error
	if f.EstimateID, err = queryInt(r, "estimate_id"); err != nil {
		writeError(w, r, err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	if f.SaleID, err = queryInt(r, "sale_id"); err != nil {
		writeError(w, r, err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	res, err := h.svc.ListDeliveryLogs(r.Context(), orgID(r), f)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

package web

import (
	"net/http"

	"billing-engine/internal/app"
)

func (h *Handler) apiListEstimates(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.ListEstimates(r.Context(), orgID(r), r.URL.Query().Get("status"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

func (h *Handler) apiCreateEstimate(w http.ResponseWriter, r *http.Request) {
	var req app.EstimateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	est, err := h.svc.CreateEstimate(r.Context(), orgID(r), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeCreated(w, est)
}

func (h *Handler) apiGetEstimate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	est, err := h.svc.GetEstimate(r.Context(), orgID(r), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, est)
}

// apiUpdateEstimate handles PUT: a full replacement of the structural fields.
func (h *Handler) apiUpdateEstimate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req app.EstimateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	est, err := h.svc.UpdateEstimate(r.Context(), orgID(r), id, req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, est)
}

// apiUpdateEstimateMetadata handles PATCH: descriptive fields only, allowed
// on converted estimates too.
func (h *Handler) apiUpdateEstimateMetadata(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req app.MetadataRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	est, err := h.svc.UpdateEstimateMetadata(r.Context(), orgID(r), id, req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, est)
}

func (h *Handler) apiSendEstimate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req app.SendRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.SendEstimate(r.Context(), orgID(r), id, req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

func (h *Handler) apiDuplicateEstimate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	est, err := h.svc.DuplicateEstimate(r.Context(), orgID(r), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeCreated(w, est)
}

func (h *Handler) apiConvertEstimate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	res, err := h.svc.ConvertEstimate(r.Context(), orgID(r), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if res.Created {
		writeCreated(w, res)
		return
	}
	writeJSON(w, res)
}

func (h *Handler) apiUnconvertEstimate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	res, err := h.svc.UnconvertEstimate(r.Context(), orgID(r), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

func (h *Handler) apiRepairEstimate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	res, err := h.svc.RepairEstimate(r.Context(), orgID(r), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

func (h *Handler) apiEstimatePDF(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	doc, err := h.svc.EstimatePDF(r.Context(), orgID(r), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeDocument(w, doc)
}

// apiDraftLineItems handles POST /api/estimates/draft. The proposal is
// returned for review and never saved.
func (h *Handler) apiDraftLineItems(w http.ResponseWriter, r *http.Request) {
	var req app.DraftRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.DraftLineItems(r.Context(), orgID(r), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

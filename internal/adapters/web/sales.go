package web

import (
	"net/http"
	"strconv"

	"billing-engine/internal/app"
)

func (h *Handler) apiListSales(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := app.SaleQuery{Status: q.Get("status")}
	if cid, err := queryInt(r, "customer_id"); err != nil {
		writeError(w, r, err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return
	} else if cid != nil {
		query.CustomerID = *cid
	}
	if raw := q.Get("open"); raw != "" {
		open, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, r, "open must be true or false", "BAD_REQUEST", http.StatusBadRequest)
			return
		}
		query.OpenOnly = open
	}

	res, err := h.svc.ListSales(r.Context(), orgID(r), query)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

func (h *Handler) apiCreateSale(w http.ResponseWriter, r *http.Request) {
	var req app.SaleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sale, err := h.svc.CreateSale(r.Context(), orgID(r), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeCreated(w, sale)
}

func (h *Handler) apiGetSale(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	sale, err := h.svc.GetSale(r.Context(), orgID(r), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, sale)
}

func (h *Handler) apiUpdateSale(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req app.SaleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sale, err := h.svc.UpdateSale(r.Context(), orgID(r), id, req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, sale)
}

func (h *Handler) apiMarkOverdue(w http.ResponseWriter, r *http.Request) {
	var req app.OverdueRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.MarkOverdue(r.Context(), orgID(r), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

func (h *Handler) apiSendInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req app.SendRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.SendInvoice(r.Context(), orgID(r), id, req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

func (h *Handler) apiInvoicePDF(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	doc, err := h.svc.InvoicePDF(r.Context(), orgID(r), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeDocument(w, doc)
}

// ── Payments ──────────────────────────────────────────────────────────────────

func (h *Handler) apiListPayments(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	res, err := h.svc.ListPayments(r.Context(), orgID(r), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

func (h *Handler) apiApplyPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req app.PaymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.ApplyPayment(r.Context(), orgID(r), id, req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeCreated(w, res)
}

func (h *Handler) apiSendReceipt(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req app.SendRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.SendReceipt(r.Context(), orgID(r), id, req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

func (h *Handler) apiReceiptPDF(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	doc, err := h.svc.ReceiptPDF(r.Context(), orgID(r), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeDocument(w, doc)
}

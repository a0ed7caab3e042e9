package web

import (
	"net/http"

	"billing-engine/internal/app"
)

func (h *Handler) apiListCustomers(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.ListCustomers(r.Context(), orgID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

func (h *Handler) apiCreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req app.CustomerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := h.svc.CreateCustomer(r.Context(), orgID(r), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeCreated(w, c)
}

func (h *Handler) apiGetCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	c, err := h.svc.GetCustomer(r.Context(), orgID(r), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, c)
}

func (h *Handler) apiListProducts(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.ListProducts(r.Context(), orgID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

func (h *Handler) apiCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req app.ProductRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.svc.CreateProduct(r.Context(), orgID(r), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeCreated(w, p)
}

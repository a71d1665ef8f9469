package web

import (
	"net/http"

	"commercial-docs/internal/app"

	"github.com/go-chi/chi/v5"
)

// apiListProducts handles GET /api/products.
func (h *Handler) apiListProducts(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.ListProducts(r.Context())
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// apiStockHistory handles GET /api/products/{id}/movements.
func (h *Handler) apiStockHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	res, err := h.svc.StockHistory(r.Context(), id)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	if !res.Success {
		writeFailure(w, r, res.Error)
		return
	}
	writeJSON(w, res)
}

// apiReconcile handles GET /api/products/{id}/reconcile.
func (h *Handler) apiReconcile(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	res, err := h.svc.ReconcileStock(r.Context(), id)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	if !res.Success {
		writeFailure(w, r, res.Error)
		return
	}
	writeJSON(w, res)
}

// apiRecordMovement handles POST /api/stock/movements.
// Body: { product_id, direction, quantity, date?, note? }
func (h *Handler) apiRecordMovement(w http.ResponseWriter, r *http.Request) {
	var req app.StockMovementRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.RecordStockMovement(r.Context(), req)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	if !res.Success {
		writeStockFailure(w, r, res.Error, res.ProductID, res.CurrentStock)
		return
	}
	writeJSONStatus(w, http.StatusCreated, res)
}

// ── Configuration and numbering ──────────────────────────────────────────────

// apiApplicableTaxes handles GET /api/taxes?type=facture.
func (h *Handler) apiApplicableTaxes(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.ApplicableTaxes(r.Context(), r.URL.Query().Get("type"))
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	if !res.Success {
		writeFailure(w, r, res.Error)
		return
	}
	writeJSON(w, res)
}

// apiReloadConfig handles POST /api/config/reload.
func (h *Handler) apiReloadConfig(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.ReloadConfiguration(r.Context())
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// apiComputeTotals handles POST /api/totals.
func (h *Handler) apiComputeTotals(w http.ResponseWriter, r *http.Request) {
	var req app.TotalsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.ComputeTotals(r.Context(), req)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	if !res.Success {
		writeFailure(w, r, res.Error)
		return
	}
	writeJSON(w, res)
}

func (h *Handler) writeNumber(w http.ResponseWriter, r *http.Request, res *app.NumberResult, err error) {
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	if !res.Success {
		writeFailure(w, r, res.Error)
		return
	}
	writeJSON(w, res)
}

// apiNumberingState handles GET /api/numbering/{type}.
func (h *Handler) apiNumberingState(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.NumberingState(r.Context(), chi.URLParam(r, "type"))
	h.writeNumber(w, r, res, err)
}

// apiAllocateNumber handles POST /api/numbering/{type}/allocate.
func (h *Handler) apiAllocateNumber(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.AllocateNumber(r.Context(), chi.URLParam(r, "type"))
	h.writeNumber(w, r, res, err)
}

// apiResetNumbering handles POST /api/numbering/{type}/reset.
// Body: { year? }
func (h *Handler) apiResetNumbering(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Year int `json:"year"`
	}
	if r.ContentLength != 0 && !decodeJSON(w, r, &body) {
		return
	}
	res, err := h.svc.ResetNumbering(r.Context(), app.ResetNumberingRequest{
		DocumentType: chi.URLParam(r, "type"),
		Year:         body.Year,
	})
	h.writeNumber(w, r, res, err)
}

package web

import (
	"net/http"

	"commercial-docs/internal/app"
)

// writeDocument renders a DocumentResult with the given success status.
func (h *Handler) writeDocument(w http.ResponseWriter, r *http.Request, res *app.DocumentResult, err error, status int) {
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	if !res.Success {
		writeStockFailure(w, r, res.Error, res.ProductID, res.CurrentStock)
		return
	}
	writeJSONStatus(w, status, res)
}

// apiListDocuments handles GET /api/documents?type=facture.
func (h *Handler) apiListDocuments(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.ListDocuments(r.Context(), r.URL.Query().Get("type"))
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

// apiSaveDocument handles POST /api/documents.
func (h *Handler) apiSaveDocument(w http.ResponseWriter, r *http.Request) {
	var req app.SaveDocumentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.SaveDocument(r.Context(), req)
	h.writeDocument(w, r, res, err, http.StatusCreated)
}

// apiGetDocument handles GET /api/documents/{id}.
func (h *Handler) apiGetDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	res, err := h.svc.GetDocument(r.Context(), id)
	h.writeDocument(w, r, res, err, http.StatusOK)
}

// apiAmendDocument handles PUT /api/documents/{id}/lines.
// Body: { lines: [...] }
func (h *Handler) apiAmendDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var body struct {
		Lines []app.LineInput `json:"lines"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	res, err := h.svc.AmendDocument(r.Context(), app.AmendDocumentRequest{ID: id, Lines: body.Lines})
	h.writeDocument(w, r, res, err, http.StatusOK)
}

// apiTransitionDocument handles POST /api/documents/{id}/transition.
// Body: { status }
func (h *Handler) apiTransitionDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var body struct {
		Status string `json:"status"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	res, err := h.svc.TransitionDocument(r.Context(), app.TransitionRequest{ID: id, Status: body.Status})
	h.writeDocument(w, r, res, err, http.StatusOK)
}

// apiConvertDocument handles POST /api/documents/{id}/convert.
// Body: { document_type }
func (h *Handler) apiConvertDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var body struct {
		DocumentType string `json:"document_type"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	res, err := h.svc.ConvertDocument(r.Context(), app.ConvertRequest{ID: id, DocumentType: body.DocumentType})
	h.writeDocument(w, r, res, err, http.StatusCreated)
}

// apiCreateCreditNote handles POST /api/documents/{id}/credit-notes.
// Body: { lines: [...] }
func (h *Handler) apiCreateCreditNote(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var body struct {
		Lines []app.LineInput `json:"lines"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	res, err := h.svc.CreateCreditNote(r.Context(), app.CreditNoteRequest{InvoiceID: id, Lines: body.Lines})
	h.writeDocument(w, r, res, err, http.StatusCreated)
}

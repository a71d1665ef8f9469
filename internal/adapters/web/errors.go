package web

import (
	"encoding/json"
	"net/http"

	"commercial-docs/internal/app"

	"github.com/shopspring/decimal"
)

type errorResponse struct {
	Error        string           `json:"error"`
	Code         string           `json:"code"`
	Field        string           `json:"field,omitempty"`
	ProductID    int64            `json:"product_id,omitempty"`
	CurrentStock *decimal.Decimal `json:"current_stock,omitempty"`
	RequestID    string           `json:"request_id,omitempty"`
}

func writeErrorResponse(w http.ResponseWriter, r *http.Request, resp errorResponse, status int) {
	resp.RequestID = requestIDFromContext(r.Context())
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, message, code string, status int) {
	writeErrorResponse(w, r, errorResponse{Error: message, Code: code}, status)
}

// failureStatus maps a business failure code to its HTTP status.
func failureStatus(code string) int {
	switch code {
	case app.CodeNotFound:
		return http.StatusNotFound
	case app.CodeNegativeStock, app.CodeInvalidTransition:
		return http.StatusConflict
	case app.CodeValidation:
		return http.StatusUnprocessableEntity
	}
	return http.StatusBadRequest
}

// writeFailure writes a refused operation.
func writeFailure(w http.ResponseWriter, r *http.Request, f *app.Failure) {
	writeErrorResponse(w, r, errorResponse{Error: f.Message, Code: f.Code, Field: f.Field}, failureStatus(f.Code))
}

// writeStockFailure writes a refusal that may come from the negative stock
// policy, in which case the product and its on-hand quantity are included.
func writeStockFailure(w http.ResponseWriter, r *http.Request, f *app.Failure, productID int64, currentStock *decimal.Decimal) {
	writeErrorResponse(w, r, errorResponse{
		Error:        f.Message,
		Code:         f.Code,
		Field:        f.Field,
		ProductID:    productID,
		CurrentStock: currentStock,
	}, failureStatus(f.Code))
}

// writeJSON writes a JSON response with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

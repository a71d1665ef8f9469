package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"commercial-docs/internal/app"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler holds the ApplicationService and the chi router.
type Handler struct {
	svc    app.ApplicationService
	logger zerolog.Logger
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.ApplicationService, allowedOrigins []string, logger zerolog.Logger) http.Handler {
	h := &Handler{
		svc:    svc,
		logger: logger.With().Str("component", "web").Logger(),
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger(h.logger))
	r.Use(Recoverer(h.logger))
	r.Use(CORS(allowedOrigins))
	r.Use(RequestBodyLimit(1 << 20))

	r.Get("/api/health", h.health)
	r.Get("/api/schema/{name}", h.schema)

	// ── Configuration ────────────────────────────────────────────────────────
	r.Get("/api/taxes", h.apiApplicableTaxes)
	r.Post("/api/config/reload", h.apiReloadConfig)
	r.Post("/api/totals", h.apiComputeTotals)

	// ── Numbering ────────────────────────────────────────────────────────────
	r.Get("/api/numbering/{type}", h.apiNumberingState)
	r.Post("/api/numbering/{type}/allocate", h.apiAllocateNumber)
	r.Post("/api/numbering/{type}/reset", h.apiResetNumbering)

	// ── Stock ────────────────────────────────────────────────────────────────
	r.Get("/api/products", h.apiListProducts)
	r.Get("/api/products/{id}/movements", h.apiStockHistory)
	r.Get("/api/products/{id}/reconcile", h.apiReconcile)
	r.Post("/api/stock/movements", h.apiRecordMovement)

	// ── Documents ────────────────────────────────────────────────────────────
	r.Get("/api/documents", h.apiListDocuments)
	r.Post("/api/documents", h.apiSaveDocument)
	r.Get("/api/documents/{id}", h.apiGetDocument)
	r.Put("/api/documents/{id}/lines", h.apiAmendDocument)
	r.Post("/api/documents/{id}/transition", h.apiTransitionDocument)
	r.Post("/api/documents/{id}/convert", h.apiConvertDocument)
	r.Post("/api/documents/{id}/credit-notes", h.apiCreateCreditNote)

	return r
}

// health returns service status.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// idParam parses the {id} URL parameter, writing a 400 when it is not a
// positive integer.
func idParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, "id must be a positive integer", "BAD_REQUEST", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// decodeJSON decodes the request body into v and returns false + writes an appropriate
// error response on failure. Returns HTTP 413 when the body exceeds the size limit set
// by RequestBodyLimit middleware; HTTP 400 for all other decode errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
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

// serverError logs a store failure and writes a 500.
func (h *Handler) serverError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Error().Err(err).Str("request_id", requestIDFromContext(r.Context())).
		Str("path", r.URL.Path).Msg("request failed")
	writeError(w, r, "internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
}

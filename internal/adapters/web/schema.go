package web

import (
	"net/http"
	"reflect"

	"commercial-docs/internal/app"

	"github.com/go-chi/chi/v5"
	"github.com/invopop/jsonschema"
	"github.com/shopspring/decimal"
)

// requestSchemas are the payloads published under /api/schema/{name} for
// form generators.
var requestSchemas = map[string]any{
	"totals":          app.TotalsRequest{},
	"document":        app.SaveDocumentRequest{},
	"amend":           app.AmendDocumentRequest{},
	"transition":      app.TransitionRequest{},
	"convert":         app.ConvertRequest{},
	"credit-note":     app.CreditNoteRequest{},
	"stock-movement":  app.StockMovementRequest{},
	"reset-numbering": app.ResetNumberingRequest{},
}

var decimalType = reflect.TypeOf(decimal.Decimal{})

// reflectSchema builds the JSON Schema of v. Decimals travel as strings.
func reflectSchema(v any) *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			if t == decimalType {
				return &jsonschema.Schema{Type: "string", Pattern: `^-?[0-9]+(\.[0-9]+)?$`}
			}
			return nil
		},
	}
	return reflector.Reflect(v)
}

// schema handles GET /api/schema/{name}.
func (h *Handler) schema(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	v, ok := requestSchemas[name]
	if !ok {
		writeError(w, r, "unknown schema "+name, "NOT_FOUND", http.StatusNotFound)
		return
	}
	writeJSON(w, reflectSchema(v))
}

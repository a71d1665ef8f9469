package web_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"commercial-docs/internal/adapters/web"
	"commercial-docs/internal/app"
	"commercial-docs/internal/core"
	"commercial-docs/internal/store/memory"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	svc := app.New(context.Background(), memory.NewSeeded(), zerolog.Nop())
	srv := httptest.NewServer(web.NewHandler(svc, []string{"http://localhost:3000"}, zerolog.Nop()))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

type errorBody struct {
	Error        string           `json:"error"`
	Code         string           `json:"code"`
	Field        string           `json:"field"`
	ProductID    int64            `json:"product_id"`
	CurrentStock *decimal.Decimal `json:"current_stock"`
	RequestID    string           `json:"request_id"`
}

func TestHealth(t *testing.T) {
	srv := newServer(t)
	resp := do(t, srv, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestComputeTotals(t *testing.T) {
	srv := newServer(t)

	resp := do(t, srv, http.MethodPost, "/api/totals", `{
		"document_type": "devis",
		"selection": {"tax_ids": [2]},
		"lines": [{"product_id": 3, "quantity": "2", "unit_price": "50"}]
	}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	res := decode[app.TotalsResult](t, resp)
	require.True(t, res.Success)
	assert.True(t, res.Totals.NetTotal.Equal(decimal.NewFromInt(100)), res.Totals.NetTotal.String())
	assert.True(t, res.Totals.TaxTotal.Equal(decimal.NewFromInt(19)), res.Totals.TaxTotal.String())
	assert.True(t, res.Totals.GrandTotal.Equal(decimal.NewFromInt(119)), res.Totals.GrandTotal.String())
}

func TestComputeTotals_NoLines(t *testing.T) {
	srv := newServer(t)
	resp := do(t, srv, http.MethodPost, "/api/totals", `{"document_type": "devis", "lines": []}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	body := decode[errorBody](t, resp)
	assert.Equal(t, app.CodeValidation, body.Code)
	assert.NotEmpty(t, body.RequestID)
}

func TestComputeTotals_BadJSON(t *testing.T) {
	srv := newServer(t)
	resp := do(t, srv, http.MethodPost, "/api/totals", `{"document_type": `)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, srv, http.MethodPost, "/api/totals", `{"document_type": "devis", "unknown": 1}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStockMovement_NegativeStockRefused(t *testing.T) {
	srv := newServer(t)

	resp := do(t, srv, http.MethodPost, "/api/stock/movements",
		`{"product_id": 1, "direction": "out", "quantity": "3"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	body := decode[errorBody](t, resp)
	assert.Equal(t, app.CodeNegativeStock, body.Code)
	require.NotNil(t, body.CurrentStock)
	assert.True(t, body.CurrentStock.IsZero())
}

func TestStockMovement_HistoryAndReconcile(t *testing.T) {
	srv := newServer(t)

	resp := do(t, srv, http.MethodPost, "/api/stock/movements",
		`{"product_id": 1, "direction": "in", "quantity": "10", "note": "inventaire"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = do(t, srv, http.MethodPost, "/api/stock/movements",
		`{"product_id": 1, "direction": "out", "quantity": "4"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	moved := decode[app.StockMovementResult](t, resp)
	require.NotNil(t, moved.Balance)
	assert.True(t, moved.Balance.Equal(decimal.NewFromInt(6)))

	resp = do(t, srv, http.MethodGet, "/api/products/1/movements", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	hist := decode[app.StockHistoryResult](t, resp)
	assert.Len(t, hist.Movements, 2)
	assert.True(t, hist.Balance.Equal(decimal.NewFromInt(6)))

	resp = do(t, srv, http.MethodGet, "/api/products/1/reconcile", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rec := decode[app.ReconcileResult](t, resp)
	require.NotNil(t, rec.Reconciliation)
	assert.True(t, rec.Reconciliation.InSync)
}

func TestDocuments_SaveAndGet(t *testing.T) {
	srv := newServer(t)

	resp := do(t, srv, http.MethodPost, "/api/stock/movements",
		`{"product_id": 2, "direction": "in", "quantity": "5"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = do(t, srv, http.MethodPost, "/api/documents", `{
		"document_type": "bonLivraison",
		"date": "2026-03-14",
		"party_id": 7,
		"lines": [{"product_id": 2, "quantity": "2"}]
	}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	saved := decode[app.DocumentResult](t, resp)
	require.True(t, saved.Success)
	require.NotNil(t, saved.Document)
	assert.Equal(t, "BL-001", saved.Document.Number)
	assert.Equal(t, core.StatusStockCommitted, saved.Document.Status)

	resp = do(t, srv, http.MethodGet, "/api/documents/1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[app.DocumentResult](t, resp)
	assert.Equal(t, saved.Document.Number, got.Document.Number)

	resp = do(t, srv, http.MethodGet, "/api/products/2/movements", "")
	hist := decode[app.StockHistoryResult](t, resp)
	assert.True(t, hist.Balance.Equal(decimal.NewFromInt(3)))

	resp = do(t, srv, http.MethodGet, "/api/documents?type=bonLivraison", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decode[app.DocumentListResult](t, resp)
	assert.Len(t, list.Documents, 1)
}

func TestDocuments_SaveRefusedWithoutStock(t *testing.T) {
	srv := newServer(t)

	resp := do(t, srv, http.MethodPost, "/api/documents", `{
		"document_type": "facture",
		"party_id": 7,
		"lines": [{"product_id": 1, "quantity": "1"}]
	}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, app.CodeNegativeStock, decode[errorBody](t, resp).Code)

	resp = do(t, srv, http.MethodGet, "/api/documents", "")
	list := decode[app.DocumentListResult](t, resp)
	assert.Empty(t, list.Documents)

	resp = do(t, srv, http.MethodGet, "/api/numbering/facture", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	state := decode[app.NumberResult](t, resp)
	assert.Contains(t, state.Number, "-001")
}

func TestDocuments_DeliveryNoteRefusalReportsStock(t *testing.T) {
	srv := newServer(t)

	resp := do(t, srv, http.MethodPost, "/api/stock/movements",
		`{"product_id": 1, "direction": "in", "quantity": "4"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = do(t, srv, http.MethodPost, "/api/documents", `{
		"document_type": "bonLivraison",
		"party_id": 7,
		"lines": [{"product_id": 3, "quantity": "1"}, {"product_id": 1, "quantity": "100000"}]
	}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	body := decode[errorBody](t, resp)
	assert.Equal(t, app.CodeNegativeStock, body.Code)
	assert.Equal(t, int64(1), body.ProductID)
	require.NotNil(t, body.CurrentStock)
	assert.True(t, body.CurrentStock.Equal(decimal.NewFromInt(4)), "current stock %s", body.CurrentStock)
}

func TestDocuments_NotFoundAndBadID(t *testing.T) {
	srv := newServer(t)

	resp := do(t, srv, http.MethodGet, "/api/documents/42", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, app.CodeNotFound, decode[errorBody](t, resp).Code)

	resp = do(t, srv, http.MethodGet, "/api/documents/abc", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDocuments_InvalidTransition(t *testing.T) {
	srv := newServer(t)

	resp := do(t, srv, http.MethodPost, "/api/documents", `{
		"document_type": "devis",
		"party_id": 7,
		"lines": [{"product_id": 3, "quantity": "1"}]
	}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = do(t, srv, http.MethodPost, "/api/documents/1/transition", `{"status": "PAID"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, app.CodeInvalidTransition, decode[errorBody](t, resp).Code)
}

func TestAllocateNumber(t *testing.T) {
	srv := newServer(t)

	first := decode[app.NumberResult](t, do(t, srv, http.MethodPost, "/api/numbering/devis/allocate", ""))
	second := decode[app.NumberResult](t, do(t, srv, http.MethodPost, "/api/numbering/devis/allocate", ""))
	assert.Equal(t, "DEV-001", first.Number)
	assert.Equal(t, "DEV-002", second.Number)

	resp := do(t, srv, http.MethodPost, "/api/numbering/unknown/allocate", "")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestSchema(t *testing.T) {
	srv := newServer(t)

	resp := do(t, srv, http.MethodGet, "/api/schema/stock-movement", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var schema struct {
		Properties map[string]struct {
			Type string `json:"type"`
		} `json:"properties"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&schema))
	assert.Equal(t, "string", schema.Properties["quantity"].Type)
	assert.Equal(t, "integer", schema.Properties["product_id"].Type)

	resp = do(t, srv, http.MethodGet, "/api/schema/nope", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCORS(t *testing.T) {
	srv := newServer(t)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/documents", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))
}

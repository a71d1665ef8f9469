package app

import (
	"context"
)

// ApplicationService is the single interface all adapters (CLI, REPL, Web) call.
// It decouples presentation from business rules. Implementations contain no
// display logic.
//
// Business failures (invalid input, negative stock, unknown ids, forbidden
// status changes) are reported inside the returned result with Success=false.
// A non-nil error means the store failed and the operation had no effect.
type ApplicationService interface {
	// ComputeTotals prices lines for a document type without persisting anything.
	ComputeTotals(ctx context.Context, req TotalsRequest) (*TotalsResult, error)

	// ApplicableTaxes lists the active taxes that apply to a document type, in
	// application order.
	ApplicableTaxes(ctx context.Context, documentType string) (*TaxListResult, error)

	// ReloadConfiguration re-reads settings and the tax catalog after an
	// external edit.
	ReloadConfiguration(ctx context.Context) (*ConfigurationResult, error)

	// AllocateNumber consumes and returns the next number of a document type.
	AllocateNumber(ctx context.Context, documentType string) (*NumberResult, error)

	// NumberingState returns the next number a type would issue, without consuming it.
	NumberingState(ctx context.Context, documentType string) (*NumberResult, error)

	// ResetNumbering puts a counter back to its configured start number.
	// Administrative: ordinary saves never reset counters.
	ResetNumbering(ctx context.Context, req ResetNumberingRequest) (*NumberResult, error)

	// RecordStockMovement records a manual stock movement under the
	// configured negative-stock policy.
	RecordStockMovement(ctx context.Context, req StockMovementRequest) (*StockMovementResult, error)

	// ReconcileStock compares a product's cached balance with its movement history.
	ReconcileStock(ctx context.Context, productID int64) (*ReconcileResult, error)

	// StockHistory returns a product's movements in recording order.
	StockHistory(ctx context.Context, productID int64) (*StockHistoryResult, error)

	// ListProducts returns the product catalog with current balances.
	ListProducts(ctx context.Context) (*ProductListResult, error)

	// SaveDocument prices, numbers and persists a draft, recording its stock
	// movements in the same transaction.
	SaveDocument(ctx context.Context, req SaveDocumentRequest) (*DocumentResult, error)

	// AmendDocument replaces the lines of a saved document and compensates stock.
	AmendDocument(ctx context.Context, req AmendDocumentRequest) (*DocumentResult, error)

	// TransitionDocument moves a document to another lifecycle status.
	TransitionDocument(ctx context.Context, req TransitionRequest) (*DocumentResult, error)

	// ConvertDocument derives a facture or delivery note from a saved document.
	ConvertDocument(ctx context.Context, req ConvertRequest) (*DocumentResult, error)

	// CreateCreditNote issues an avoir against a saved invoice.
	CreateCreditNote(ctx context.Context, req CreditNoteRequest) (*DocumentResult, error)

	// GetDocument returns one document with its revision history.
	GetDocument(ctx context.Context, id int64) (*DocumentResult, error)

	// ListDocuments returns documents, optionally filtered by type.
	ListDocuments(ctx context.Context, documentType string) (*DocumentListResult, error)
}

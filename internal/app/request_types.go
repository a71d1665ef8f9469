package app

import (
	"github.com/shopspring/decimal"
)

// LineInput is a single line within a document request.
type LineInput struct {
	LineID          int             `json:"line_id,omitempty" jsonschema:"description=Keep the id of an existing line when amending"`
	ProductID       int64           `json:"product_id,omitempty" validate:"gte=0"`
	Description     string          `json:"description,omitempty" validate:"max=500"`
	Quantity        decimal.Decimal `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price,omitempty" jsonschema:"description=Zero means the product's default price"`
	DiscountPercent decimal.Decimal `json:"discount_percent,omitempty"`
}

// TaxSelectionInput picks the taxes of a document. Leave both fields empty to
// apply every tax configured for the document type.
type TaxSelectionInput struct {
	GroupID *int64  `json:"group_id,omitempty" validate:"omitempty,gt=0"`
	TaxIDs  []int64 `json:"tax_ids,omitempty" validate:"dive,gt=0"`
}

// TotalsRequest is the input of ComputeTotals.
type TotalsRequest struct {
	DocumentType string            `json:"document_type" validate:"required"`
	Selection    TaxSelectionInput `json:"selection"`
	Lines        []LineInput       `json:"lines" validate:"required,min=1,dive"`
}

// SaveDocumentRequest is the input for saving a new document.
type SaveDocumentRequest struct {
	DocumentType     string            `json:"document_type" validate:"required"`
	Date             string            `json:"date,omitempty" jsonschema:"description=YYYY-MM-DD; today when empty"`
	DueDate          string            `json:"due_date,omitempty" jsonschema:"description=YYYY-MM-DD"`
	PartyID          int64             `json:"party_id" validate:"gte=0"`
	SourceDocumentID *int64            `json:"source_document_id,omitempty" validate:"omitempty,gt=0"`
	Selection        TaxSelectionInput `json:"selection"`
	Lines            []LineInput       `json:"lines" validate:"required,min=1,dive"`
}

// AmendDocumentRequest replaces the lines of a saved document.
type AmendDocumentRequest struct {
	ID    int64       `json:"id" validate:"gt=0"`
	Lines []LineInput `json:"lines" validate:"required,min=1,dive"`
}

// TransitionRequest moves a document to another status.
type TransitionRequest struct {
	ID     int64  `json:"id" validate:"gt=0"`
	Status string `json:"status" validate:"required" jsonschema:"enum=SAVED,enum=STOCK_COMMITTED,enum=INVOICED,enum=DELIVERED,enum=PAID,enum=CANCELLED"`
}

// ConvertRequest derives a document of another type from a saved one.
type ConvertRequest struct {
	ID           int64  `json:"id" validate:"gt=0"`
	DocumentType string `json:"document_type" validate:"required" jsonschema:"enum=facture,enum=bonLivraison"`
}

// CreditNoteRequest issues an avoir against an invoice. Lines without a unit
// price take the invoiced price.
type CreditNoteRequest struct {
	InvoiceID int64       `json:"invoice_id" validate:"gt=0"`
	Lines     []LineInput `json:"lines" validate:"required,min=1,dive"`
}

// StockMovementRequest is a manual stock adjustment.
type StockMovementRequest struct {
	ProductID int64           `json:"product_id" validate:"gt=0"`
	Direction string          `json:"direction" validate:"required,oneof=in out"`
	Quantity  decimal.Decimal `json:"quantity"`
	Date      string          `json:"date,omitempty" jsonschema:"description=YYYY-MM-DD; today when empty"`
	Note      string          `json:"note,omitempty" validate:"max=500"`
}

// ResetNumberingRequest resets one numbering counter.
type ResetNumberingRequest struct {
	DocumentType string `json:"document_type" validate:"required"`
	Year         int    `json:"year,omitempty" validate:"gte=0" jsonschema:"description=Counter year; current year when zero. Ignored for types without the year in their numbers"`
}

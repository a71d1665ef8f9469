package core

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DocumentType is the tag identifying a kind of commercial document.
type DocumentType string

const (
	Facture             DocumentType = "facture"
	Devis               DocumentType = "devis"
	BonLivraison        DocumentType = "bonLivraison"
	CommandeFournisseur DocumentType = "commandeFournisseur"
	Avoir               DocumentType = "avoir"
)

// AllDocumentTypes lists every supported type in display order.
func AllDocumentTypes() []DocumentType {
	return []DocumentType{Facture, Devis, BonLivraison, CommandeFournisseur, Avoir}
}

// Valid reports whether t is one of the supported document types.
func (t DocumentType) Valid() bool {
	switch t {
	case Facture, Devis, BonLivraison, CommandeFournisseur, Avoir:
		return true
	}
	return false
}

// ParseDocumentType validates a user-supplied document type tag.
func ParseDocumentType(s string) (DocumentType, error) {
	t := DocumentType(s)
	if !t.Valid() {
		return "", invalid("document_type", "unknown document type %q", s)
	}
	return t, nil
}

// defaultPrefix is used when no numbering settings exist for the type.
func (t DocumentType) defaultPrefix() string {
	switch t {
	case Facture:
		return "FAC"
	case Devis:
		return "DEV"
	case BonLivraison:
		return "BL"
	case CommandeFournisseur:
		return "CF"
	case Avoir:
		return "AV"
	}
	return string(t)
}

// DocumentStatus is the lifecycle state of a persisted document.
//
//	DRAFT → SAVED → STOCK_COMMITTED → INVOICED | DELIVERED | PAID
//	any non-terminal status → CANCELLED
type DocumentStatus string

const (
	StatusDraft          DocumentStatus = "DRAFT"
	StatusSaved          DocumentStatus = "SAVED"
	StatusStockCommitted DocumentStatus = "STOCK_COMMITTED"
	StatusInvoiced       DocumentStatus = "INVOICED"
	StatusDelivered      DocumentStatus = "DELIVERED"
	StatusPaid           DocumentStatus = "PAID"
	StatusCancelled      DocumentStatus = "CANCELLED"
)

// Terminal reports whether no further transition is possible.
func (s DocumentStatus) Terminal() bool {
	return s == StatusCancelled || s == StatusDelivered || s == StatusPaid
}

// Amendable reports whether line quantities may still be corrected.
func (s DocumentStatus) Amendable() bool {
	return s == StatusSaved || s == StatusStockCommitted
}

// DocumentLine is one line item. NetAmount, TaxAmount and GrossAmount are
// filled by ComputeTotals and frozen when the document is saved.
type DocumentLine struct {
	LineID          int             `json:"line_id"`
	ProductID       int64           `json:"product_id" validate:"gte=0"`
	Description     string          `json:"description"`
	Quantity        decimal.Decimal `json:"quantity" validate:"dgte=0,dscale=6"`
	UnitPrice       decimal.Decimal `json:"unit_price" validate:"dgte=0,dscale=6"`
	DiscountPercent decimal.Decimal `json:"discount_percent" validate:"dgte=0,dlte=100,dscale=6"`
	NetAmount       decimal.Decimal `json:"net_amount"`
	TaxAmount       decimal.Decimal `json:"tax_amount"`
	GrossAmount     decimal.Decimal `json:"gross_amount"`
}

// TaxSelection picks the taxes applied to a document. The zero value means
// "every applicable tax for the document type".
type TaxSelection struct {
	GroupID *int64  `json:"group_id,omitempty"`
	TaxIDs  []int64 `json:"tax_ids,omitempty"`
}

// Empty reports whether the selection defers to the catalog defaults.
func (s TaxSelection) Empty() bool {
	return s.GroupID == nil && len(s.TaxIDs) == 0
}

// Draft is the transient, unsaved form of a document.
type Draft struct {
	Type             DocumentType   `json:"type"`
	Date             time.Time      `json:"date"`
	DueDate          *time.Time     `json:"due_date,omitempty"`
	PartyID          int64          `json:"party_id"`
	SourceDocumentID *int64         `json:"source_document_id,omitempty"`
	Selection        TaxSelection   `json:"selection"`
	Lines            []DocumentLine `json:"lines"`
}

// Document is a saved document with frozen totals and an allocated number.
type Document struct {
	ID               int64               `json:"id"`
	Type             DocumentType        `json:"type"`
	Number           string              `json:"number"`
	Date             time.Time           `json:"date"`
	DueDate          *time.Time          `json:"due_date,omitempty"`
	PartyID          int64               `json:"party_id"`
	SourceDocumentID *int64              `json:"source_document_id,omitempty"`
	Selection        TaxSelection        `json:"selection"`
	Lines            []DocumentLine      `json:"lines"`
	Decimals         int32               `json:"decimals"`
	NetTotal         decimal.Decimal     `json:"net_total"`
	Breakdown        []TaxBreakdownEntry `json:"tax_breakdown"`
	TaxTotal         decimal.Decimal     `json:"tax_total"`
	GrandTotal       decimal.Decimal     `json:"grand_total"`
	Status           DocumentStatus      `json:"status"`
	Revision         int                 `json:"revision"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

// applyTotals copies computed totals onto the document.
func (d *Document) applyTotals(t Totals) {
	d.Lines = t.Lines
	d.Decimals = t.Decimals
	d.NetTotal = t.NetTotal
	d.Breakdown = t.Breakdown
	d.TaxTotal = t.TaxTotal
	d.GrandTotal = t.GrandTotal
}

// DocumentRevision is the frozen state of a document before an amendment or cancellation.
type DocumentRevision struct {
	DocumentID int64               `json:"document_id"`
	Revision   int                 `json:"revision"`
	Status     DocumentStatus      `json:"status"`
	Lines      []DocumentLine      `json:"lines"`
	NetTotal   decimal.Decimal     `json:"net_total"`
	Breakdown  []TaxBreakdownEntry `json:"tax_breakdown"`
	TaxTotal   decimal.Decimal     `json:"tax_total"`
	GrandTotal decimal.Decimal     `json:"grand_total"`
	CreatedAt  time.Time           `json:"created_at"`
}

func revisionOf(d *Document, at time.Time) DocumentRevision {
	return DocumentRevision{
		DocumentID: d.ID,
		Revision:   d.Revision,
		Status:     d.Status,
		Lines:      d.Lines,
		NetTotal:   d.NetTotal,
		Breakdown:  d.Breakdown,
		TaxTotal:   d.TaxTotal,
		GrandTotal: d.GrandTotal,
		CreatedAt:  at,
	}
}

// NumberingSettings is the configured numbering scheme for one document type.
type NumberingSettings struct {
	Type        DocumentType `json:"type"`
	Prefix      string       `json:"prefix"`
	StartNumber int64        `json:"start_number"`
	IncludeYear bool         `json:"include_year"`
}

// NumberingState is the counter for one document type and year.
// Year is 0 when the type does not include the year in its numbers.
// CurrentNumber is the next number to be issued.
type NumberingState struct {
	Type          DocumentType `json:"type"`
	Year          int          `json:"year"`
	CurrentNumber int64        `json:"current_number"`
}

// Product is the subset of the product catalog the engine reads.
// StockBalance is the denormalized running total maintained by the StockLedger.
type Product struct {
	ID           int64           `json:"id"`
	Code         string          `json:"code"`
	Name         string          `json:"name"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	TracksStock  bool            `json:"tracks_stock"`
	StockBalance decimal.Decimal `json:"stock_balance"`
}

func (p Product) String() string {
	return fmt.Sprintf("%s (%d)", p.Code, p.ID)
}

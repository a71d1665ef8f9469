package core

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Direction is the sign of a stock movement.
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// Valid reports whether d is in or out.
func (d Direction) Valid() bool {
	return d == DirectionIn || d == DirectionOut
}

// signed returns qty with the movement's sign applied.
func (d Direction) signed(qty decimal.Decimal) decimal.Decimal {
	if d == DirectionOut {
		return qty.Neg()
	}
	return qty
}

// StockEffect returns the movement direction a saved document of type t
// produces, and false for types that never touch stock.
func (t DocumentType) StockEffect() (Direction, bool) {
	switch t {
	case BonLivraison, Facture:
		return DirectionOut, true
	case CommandeFournisseur, Avoir:
		return DirectionIn, true
	}
	return "", false
}

// MovementOrigin links a movement to the document line that caused it.
// A zero DocumentID marks a manual adjustment.
type MovementOrigin struct {
	DocumentType   DocumentType `json:"document_type,omitempty"`
	DocumentID     int64        `json:"document_id,omitempty"`
	DocumentNumber string       `json:"document_number,omitempty"`
	LineID         int          `json:"line_id,omitempty"`
	Revision       int          `json:"revision,omitempty"`
}

// Manual reports whether the movement was entered without a source document.
func (o MovementOrigin) Manual() bool {
	return o.DocumentID == 0
}

// StockMovement is one immutable ledger entry.
type StockMovement struct {
	ID        uuid.UUID       `json:"id"`
	ProductID int64           `json:"product_id"`
	Direction Direction       `json:"direction"`
	Quantity  decimal.Decimal `json:"quantity"`
	Date      time.Time       `json:"date"`
	Origin    MovementOrigin  `json:"origin"`
	Note      string          `json:"note,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Signed returns the movement's contribution to the product balance.
func (m StockMovement) Signed() decimal.Decimal {
	return m.Direction.signed(m.Quantity)
}

// MovementRequest is the input of StockLedger.Record.
type MovementRequest struct {
	ProductID int64           `json:"product_id"`
	Direction Direction       `json:"direction"`
	Quantity  decimal.Decimal `json:"quantity"`
	Date      time.Time       `json:"date"`
	Origin    MovementOrigin  `json:"origin"`
	Note      string          `json:"note,omitempty"`
}

// MovementResult is returned for an accepted movement.
type MovementResult struct {
	Movement StockMovement   `json:"movement"`
	Balance  decimal.Decimal `json:"balance"`
}

// StockPolicy carries the negative-stock rule in force for a call.
type StockPolicy struct {
	AllowNegativeStock bool
}

// Reconciliation compares the cached balance with the movement history.
type Reconciliation struct {
	ProductID int64           `json:"product_id"`
	Cached    decimal.Decimal `json:"cached"`
	Computed  decimal.Decimal `json:"computed"`
	InSync    bool            `json:"in_sync"`
}

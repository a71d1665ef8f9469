package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// StockLedger records inventory movements and keeps each product's cached
// balance equal to the signed sum of its movement history.
//
// Every write goes through the caller's transaction: the product row is
// locked first, the policy is checked against the locked balance, then the
// movement is appended and the balance written. A rejected movement leaves
// both untouched.
type StockLedger struct {
	logger zerolog.Logger
	now    func() time.Time
}

// NewStockLedger constructs a StockLedger.
func NewStockLedger(logger zerolog.Logger) *StockLedger {
	return &StockLedger{
		logger: logger.With().Str("component", "stock_ledger").Logger(),
		now:    time.Now,
	}
}

// Record appends one movement. With policy.AllowNegativeStock off, an out
// movement that would drive the balance below zero returns *PolicyViolation
// carrying the current on-hand quantity.
func (l *StockLedger) Record(ctx context.Context, tx Tx, policy StockPolicy, req MovementRequest) (MovementResult, error) {
	if req.ProductID <= 0 {
		return MovementResult{}, invalid("product_id", "must be positive")
	}
	if !req.Direction.Valid() {
		return MovementResult{}, invalid("direction", "must be %q or %q", DirectionIn, DirectionOut)
	}
	if !req.Quantity.IsPositive() {
		return MovementResult{}, invalid("quantity", "must be greater than zero, got %s", req.Quantity)
	}
	if !req.Quantity.Equal(req.Quantity.Round(MaxInputScale)) {
		return MovementResult{}, invalid("quantity", "at most %d decimal places, got %s", MaxInputScale, req.Quantity)
	}

	balance, err := tx.Products().LockBalance(ctx, req.ProductID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return MovementResult{}, invalid("product_id", "product %d does not exist", req.ProductID)
		}
		return MovementResult{}, fmt.Errorf("failed to lock stock balance for product %d: %w", req.ProductID, err)
	}

	next := balance.Add(req.Direction.signed(req.Quantity))
	if req.Direction == DirectionOut && next.IsNegative() && !policy.AllowNegativeStock {
		l.logger.Info().Int64("product_id", req.ProductID).Str("requested", req.Quantity.String()).
			Str("on_hand", balance.String()).Msg("out movement rejected by negative stock policy")
		return MovementResult{}, &PolicyViolation{
			ProductID:    req.ProductID,
			Requested:    req.Quantity,
			CurrentStock: balance,
		}
	}

	now := l.now()
	date := req.Date
	if date.IsZero() {
		date = now
	}
	m := StockMovement{
		ID:        uuid.New(),
		ProductID: req.ProductID,
		Direction: req.Direction,
		Quantity:  req.Quantity,
		Date:      date,
		Origin:    req.Origin,
		Note:      req.Note,
		CreatedAt: now,
	}
	if err := tx.Stock().Append(ctx, m); err != nil {
		return MovementResult{}, fmt.Errorf("failed to append stock movement for product %d: %w", req.ProductID, err)
	}
	if err := tx.Products().SetBalance(ctx, req.ProductID, next); err != nil {
		return MovementResult{}, fmt.Errorf("failed to update stock balance for product %d: %w", req.ProductID, err)
	}

	l.logger.Debug().Int64("product_id", req.ProductID).Str("direction", string(req.Direction)).
		Str("quantity", req.Quantity.String()).Str("balance", next.String()).
		Str("document_number", req.Origin.DocumentNumber).Msg("stock movement recorded")
	return MovementResult{Movement: m, Balance: next}, nil
}

// History returns a product's movements in recording order.
func (l *StockLedger) History(ctx context.Context, tx Tx, productID int64) ([]StockMovement, error) {
	ms, err := tx.Stock().History(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to read stock history for product %d: %w", productID, err)
	}
	return ms, nil
}

// Reconcile checks the cached balance against the movement history.
func (l *StockLedger) Reconcile(ctx context.Context, tx Tx, productID int64) (Reconciliation, error) {
	p, err := tx.Products().Get(ctx, productID)
	if err != nil {
		return Reconciliation{}, fmt.Errorf("failed to read product %d: %w", productID, err)
	}
	sum, err := tx.Stock().Sum(ctx, productID)
	if err != nil {
		return Reconciliation{}, fmt.Errorf("failed to sum stock movements for product %d: %w", productID, err)
	}
	r := Reconciliation{
		ProductID: productID,
		Cached:    p.StockBalance,
		Computed:  sum,
		InSync:    p.StockBalance.Equal(sum),
	}
	if !r.InSync {
		l.logger.Error().Int64("product_id", productID).Str("cached", r.Cached.String()).
			Str("computed", r.Computed.String()).Msg("stock balance out of sync with movement history")
	}
	return r, nil
}

// lineKey identifies the stock position of one document line on one product.
type lineKey struct {
	lineID    int
	productID int64
}

// netByLine sums a document's recorded movements per line and product.
func netByLine(ms []StockMovement) map[lineKey]decimal.Decimal {
	out := make(map[lineKey]decimal.Decimal)
	for _, m := range ms {
		k := lineKey{lineID: m.Origin.LineID, productID: m.ProductID}
		out[k] = out[k].Add(m.Signed())
	}
	return out
}

// RecordForLine records the movement that brings a document line's stock
// position by signedQty. A positive quantity is an in movement. Recording the
// same line, product and revision twice fails with ErrDuplicate.
func (l *StockLedger) RecordForLine(ctx context.Context, tx Tx, policy StockPolicy, origin MovementOrigin, productID int64, signedQty decimal.Decimal, date time.Time) (MovementResult, error) {
	if origin.Manual() || origin.LineID <= 0 {
		return MovementResult{}, invalid("origin", "a line movement needs a document id and a line id")
	}
	dir := DirectionIn
	if signedQty.IsNegative() {
		dir = DirectionOut
	}
	return l.Record(ctx, tx, policy, MovementRequest{
		ProductID: productID,
		Direction: dir,
		Quantity:  signedQty.Abs(),
		Date:      date,
		Origin:    origin,
	})
}

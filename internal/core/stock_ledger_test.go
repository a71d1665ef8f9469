package core_test

import (
	"context"
	"testing"
	"time"

	"commercial-docs/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (h *harness) record(policy core.StockPolicy, req core.MovementRequest) (core.MovementResult, error) {
	var res core.MovementResult
	err := h.store.WithinTx(context.Background(), func(ctx context.Context, tx core.Tx) error {
		var err error
		res, err = h.ledger.Record(ctx, tx, policy, req)
		return err
	})
	return res, err
}

func TestStockLedger_RecordKeepsBalanceInSync(t *testing.T) {
	h := newHarness(t)

	res, err := h.record(h.policy(), core.MovementRequest{ProductID: 1, Direction: core.DirectionIn, Quantity: dec("10"), Note: "inventaire"})
	require.NoError(t, err)
	assertDec(t, "10", res.Balance)
	assert.True(t, res.Movement.Origin.Manual())

	res, err = h.record(h.policy(), core.MovementRequest{ProductID: 1, Direction: core.DirectionOut, Quantity: dec("2.5")})
	require.NoError(t, err)
	assertDec(t, "7.5", res.Balance)

	assertDec(t, "7.5", h.product(t, 1).StockBalance)
	history := h.history(t, 1)
	require.Len(t, history, 2)
	assert.Equal(t, "inventaire", history[0].Note)
	assert.True(t, h.reconcile(t, 1).InSync)
}

func TestStockLedger_NegativeStockRefused(t *testing.T) {
	h := newHarness(t)
	h.receive(t, 2, "3")

	_, err := h.record(core.StockPolicy{AllowNegativeStock: false}, core.MovementRequest{
		ProductID: 2, Direction: core.DirectionOut, Quantity: dec("5"),
	})
	var perr *core.PolicyViolation
	require.ErrorAs(t, err, &perr)
	assertDec(t, "3", perr.CurrentStock)
	assertDec(t, "5", perr.Requested)

	assertDec(t, "3", h.product(t, 2).StockBalance)
	assert.Len(t, h.history(t, 2), 1)
}

func TestStockLedger_NegativeStockAllowed(t *testing.T) {
	h := newHarness(t)

	res, err := h.record(core.StockPolicy{AllowNegativeStock: true}, core.MovementRequest{
		ProductID: 2, Direction: core.DirectionOut, Quantity: dec("4"),
	})
	require.NoError(t, err)
	assertDec(t, "-4", res.Balance)
	assert.True(t, h.reconcile(t, 2).InSync)
}

func TestStockLedger_InvalidRequests(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name  string
		req   core.MovementRequest
		field string
	}{
		{"zero quantity", core.MovementRequest{ProductID: 1, Direction: core.DirectionIn, Quantity: dec("0")}, "quantity"},
		{"negative quantity", core.MovementRequest{ProductID: 1, Direction: core.DirectionIn, Quantity: dec("-1")}, "quantity"},
		{"quantity too precise", core.MovementRequest{ProductID: 1, Direction: core.DirectionIn, Quantity: dec("0.0000001")}, "quantity"},
		{"bad direction", core.MovementRequest{ProductID: 1, Direction: "sideways", Quantity: dec("1")}, "direction"},
		{"unknown product", core.MovementRequest{ProductID: 404, Direction: core.DirectionIn, Quantity: dec("1")}, "product_id"},
		{"missing product", core.MovementRequest{Direction: core.DirectionIn, Quantity: dec("1")}, "product_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.record(h.policy(), tt.req)
			var verr *core.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestStockLedger_DuplicateLineMovementRejected(t *testing.T) {
	h := newHarness(t)
	origin := core.MovementOrigin{DocumentType: core.CommandeFournisseur, DocumentID: 9, DocumentNumber: "CF-009", LineID: 1, Revision: 1}

	err := h.store.WithinTx(context.Background(), func(ctx context.Context, tx core.Tx) error {
		if _, err := h.ledger.RecordForLine(ctx, tx, h.policy(), origin, 1, dec("2"), time.Now()); err != nil {
			return err
		}
		_, err := h.ledger.RecordForLine(ctx, tx, h.policy(), origin, 1, dec("1"), time.Now())
		return err
	})
	require.ErrorIs(t, err, core.ErrDuplicate)

	// The whole transaction rolled back.
	assert.Empty(t, h.history(t, 1))
	assertDec(t, "0", h.product(t, 1).StockBalance)
}

func TestStockLedger_RecordForLineNeedsDocumentOrigin(t *testing.T) {
	h := newHarness(t)

	err := h.store.WithinTx(context.Background(), func(ctx context.Context, tx core.Tx) error {
		_, err := h.ledger.RecordForLine(ctx, tx, h.policy(), core.MovementOrigin{}, 1, dec("1"), time.Now())
		return err
	})
	var verr *core.ValidationError
	assert.ErrorAs(t, err, &verr)
}

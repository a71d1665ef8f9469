package core_test

import (
	"context"
	"testing"

	"commercial-docs/internal/core"
	"commercial-docs/internal/store/memory"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// harness wires the engine over a seeded in-memory store.
type harness struct {
	store   *memory.Store
	config  *core.ConfigHolder
	numbers *core.SequenceAllocator
	ledger  *core.StockLedger
	docs    core.DocumentService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWith(t, memory.NewSeeded())
}

func newHarnessWith(t *testing.T, store *memory.Store) *harness {
	t.Helper()
	logger := zerolog.Nop()
	h := &harness{
		store:   store,
		config:  core.NewConfigHolder(context.Background(), store, logger),
		numbers: core.NewSequenceAllocator(logger),
		ledger:  core.NewStockLedger(logger),
	}
	h.docs = core.NewDocumentService(store, h.config, h.numbers, h.ledger, logger)
	return h
}

func (h *harness) policy() core.StockPolicy {
	return h.config.Current().Settings.StockPolicy()
}

// receive records a manual in movement.
func (h *harness) receive(t *testing.T, productID int64, qty string) {
	t.Helper()
	err := h.store.WithinTx(context.Background(), func(ctx context.Context, tx core.Tx) error {
		_, err := h.ledger.Record(ctx, tx, h.policy(), core.MovementRequest{
			ProductID: productID,
			Direction: core.DirectionIn,
			Quantity:  dec(qty),
		})
		return err
	})
	require.NoError(t, err)
}

func (h *harness) product(t *testing.T, id int64) core.Product {
	t.Helper()
	var p *core.Product
	err := h.store.WithinTx(context.Background(), func(ctx context.Context, tx core.Tx) error {
		var err error
		p, err = tx.Products().Get(ctx, id)
		return err
	})
	require.NoError(t, err)
	return *p
}

func (h *harness) history(t *testing.T, id int64) []core.StockMovement {
	t.Helper()
	var ms []core.StockMovement
	err := h.store.WithinTx(context.Background(), func(ctx context.Context, tx core.Tx) error {
		var err error
		ms, err = h.ledger.History(ctx, tx, id)
		return err
	})
	require.NoError(t, err)
	return ms
}

func (h *harness) reconcile(t *testing.T, id int64) core.Reconciliation {
	t.Helper()
	var r core.Reconciliation
	err := h.store.WithinTx(context.Background(), func(ctx context.Context, tx core.Tx) error {
		var err error
		r, err = h.ledger.Reconcile(ctx, tx, id)
		return err
	})
	require.NoError(t, err)
	return r
}

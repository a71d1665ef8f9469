package core_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"commercial-docs/internal/core"
	"commercial-docs/internal/store/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (h *harness) counter(t *testing.T, dt core.DocumentType, at time.Time) int64 {
	t.Helper()
	var st core.NumberingState
	err := h.store.WithinTx(context.Background(), func(ctx context.Context, tx core.Tx) error {
		var err error
		st, err = h.numbers.State(ctx, tx, dt, at)
		return err
	})
	require.NoError(t, err)
	return st.CurrentNumber
}

func (h *harness) next(t *testing.T, dt core.DocumentType, at time.Time) string {
	t.Helper()
	var n string
	err := h.store.WithinTx(context.Background(), func(ctx context.Context, tx core.Tx) error {
		var err error
		n, err = h.numbers.Next(ctx, tx, dt, at)
		return err
	})
	require.NoError(t, err)
	return n
}

var (
	in2026 = time.Date(2026, time.March, 3, 10, 0, 0, 0, time.UTC)
	in2027 = time.Date(2027, time.January, 2, 10, 0, 0, 0, time.UTC)
)

func TestFormatNumber(t *testing.T) {
	ns := core.NumberingSettings{Type: core.Facture, Prefix: "FAC", StartNumber: 1, IncludeYear: true}
	assert.Equal(t, "FAC-2026-007", core.FormatNumber(ns, 2026, 7))
	ns.IncludeYear = false
	assert.Equal(t, "FAC-1234", core.FormatNumber(ns, 2026, 1234))
}

func TestSequence_Sequential(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, "DEV-001", h.next(t, core.Devis, in2026))
	assert.Equal(t, "DEV-002", h.next(t, core.Devis, in2026))
	// Devis numbers do not carry the year, so the counter continues.
	assert.Equal(t, "DEV-003", h.next(t, core.Devis, in2027))
	assert.Equal(t, "BL-001", h.next(t, core.BonLivraison, in2026))
}

func TestSequence_YearlyCounters(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, "FAC-2026-001", h.next(t, core.Facture, in2026))
	assert.Equal(t, "FAC-2026-002", h.next(t, core.Facture, in2026))
	assert.Equal(t, "FAC-2027-001", h.next(t, core.Facture, in2027))
	assert.Equal(t, "FAC-2026-003", h.next(t, core.Facture, in2026))
}

func TestSequence_RollbackDoesNotConsume(t *testing.T) {
	h := newHarness(t)
	boom := errors.New("boom")

	err := h.store.WithinTx(context.Background(), func(ctx context.Context, tx core.Tx) error {
		n, err := h.numbers.Next(ctx, tx, core.Devis, in2026)
		require.NoError(t, err)
		assert.Equal(t, "DEV-001", n)
		return boom
	})
	require.ErrorIs(t, err, boom)

	assert.Equal(t, "DEV-001", h.next(t, core.Devis, in2026))
}

func TestSequence_ConcurrentAllocationsAreDistinct(t *testing.T) {
	h := newHarness(t)
	const workers = 25

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		numbers = make(map[string]bool)
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var n string
			err := h.store.WithinTx(context.Background(), func(ctx context.Context, tx core.Tx) error {
				var err error
				n, err = h.numbers.Next(ctx, tx, core.Facture, in2026)
				return err
			})
			assert.NoError(t, err)
			mu.Lock()
			numbers[n] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, numbers, workers)
	for i := 1; i <= workers; i++ {
		assert.True(t, numbers[fmt.Sprintf("FAC-2026-%03d", i)], "missing number %d", i)
	}
	// The counter holds the next number: start 1 advanced by exactly 25.
	assert.Equal(t, int64(1+workers), h.counter(t, core.Facture, in2026))
}

func TestSequence_ResetOnlyTouchesItsYear(t *testing.T) {
	h := newHarness(t)
	h.next(t, core.Facture, in2026)
	h.next(t, core.Facture, in2026)
	h.next(t, core.Facture, in2027)

	err := h.store.WithinTx(context.Background(), func(ctx context.Context, tx core.Tx) error {
		return h.numbers.Reset(ctx, tx, core.Facture, 2026)
	})
	require.NoError(t, err)

	assert.Equal(t, "FAC-2026-001", h.next(t, core.Facture, in2026))
	assert.Equal(t, "FAC-2027-002", h.next(t, core.Facture, in2027))
}

func TestSequence_StateDoesNotConsume(t *testing.T) {
	h := newHarness(t)
	h.next(t, core.Avoir, in2026)

	var state core.NumberingState
	err := h.store.WithinTx(context.Background(), func(ctx context.Context, tx core.Tx) error {
		var err error
		state, err = h.numbers.State(ctx, tx, core.Avoir, in2026)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), state.CurrentNumber)
	assert.Equal(t, 2026, state.Year)
	assert.Equal(t, "AV-2026-002", h.next(t, core.Avoir, in2026))
}

func TestSequence_MissingSettingsFallBackToDefaultPrefix(t *testing.T) {
	h := newHarnessWith(t, memory.New())

	assert.Equal(t, "CF-001", h.next(t, core.CommandeFournisseur, in2026))
}

func TestSequence_UnknownType(t *testing.T) {
	h := newHarness(t)

	err := h.store.WithinTx(context.Background(), func(ctx context.Context, tx core.Tx) error {
		_, err := h.numbers.Next(ctx, tx, core.DocumentType("ticket"), in2026)
		return err
	})
	var verr *core.ValidationError
	assert.ErrorAs(t, err, &verr)
}

package postgres_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"commercial-docs/internal/core"
	"commercial-docs/internal/db"
	"commercial-docs/internal/store/postgres"
	"commercial-docs/internal/store/seed"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestDB migrates, empties and seeds the database named by
// TEST_DATABASE_URL. Tests are skipped when it is not set so the live
// database is never touched.
func setupTestDB(t *testing.T) (*pgxpool.Pool, *postgres.Store) {
	t.Helper()
	_ = godotenv.Load("../../../.env")

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test to protect live database")
	}

	require.NoError(t, db.Migrate(dbURL, zerolog.Nop()))

	ctx := context.Background()
	pool, err := db.NewPool(ctx, dbURL)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, postgres.Truncate(ctx, pool))
	require.NoError(t, postgres.Seed(ctx, pool, seed.Default()))
	return pool, postgres.New(pool)
}

func newDocuments(store core.Store) (core.DocumentService, *core.StockLedger, *core.ConfigHolder) {
	logger := zerolog.Nop()
	config := core.NewConfigHolder(context.Background(), store, logger)
	ledger := core.NewStockLedger(logger)
	return core.NewDocumentService(store, config, core.NewSequenceAllocator(logger), ledger, logger), ledger, config
}

func TestPostgres_ConfigurationRoundTrip(t *testing.T) {
	_, store := setupTestDB(t)

	cfg := core.LoadConfiguration(context.Background(), store, zerolog.Nop())
	assert.Equal(t, int32(3), cfg.Settings.CurrencyDecimals)
	assert.False(t, cfg.Settings.AllowNegativeStock)
	assert.Equal(t, 4, cfg.Catalog.Len())

	g, ok := cfg.Catalog.Group(2)
	require.True(t, ok)
	require.Len(t, g.Members, 2)
	require.NotNil(t, g.Members[0].BaseOverride)
	assert.Equal(t, core.BaseTotalHT, *g.Members[0].BaseOverride)
}

func TestPostgres_SaveAndReload(t *testing.T) {
	_, store := setupTestDB(t)
	docs, ledger, config := newDocuments(store)
	ctx := context.Background()

	err := store.WithinTx(ctx, func(ctx context.Context, tx core.Tx) error {
		_, err := ledger.Record(ctx, tx, config.Current().Settings.StockPolicy(), core.MovementRequest{
			ProductID: 1, Direction: core.DirectionIn, Quantity: decimal.NewFromInt(10),
		})
		return err
	})
	require.NoError(t, err)

	saved, err := docs.Save(ctx, core.Draft{
		Type:  core.BonLivraison,
		Date:  time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC),
		Lines: []core.DocumentLine{{ProductID: 1, Quantity: decimal.NewFromInt(3)}},
	})
	require.NoError(t, err)
	assert.Equal(t, "BL-001", saved.Number)

	got, err := docs.Get(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusStockCommitted, got.Status)
	require.Len(t, got.Lines, 1)
	assert.Equal(t, "Clavier USB", got.Lines[0].Description)
	assert.True(t, saved.GrandTotal.Equal(got.GrandTotal))
	assert.Len(t, got.Breakdown, len(saved.Breakdown))

	_, err = docs.Amend(ctx, saved.ID, []core.DocumentLine{{LineID: 1, ProductID: 1, Quantity: decimal.NewFromInt(5)}})
	require.NoError(t, err)
	revs, err := docs.Revisions(ctx, saved.ID)
	require.NoError(t, err)
	assert.Len(t, revs, 1)

	err = store.WithinTx(ctx, func(ctx context.Context, tx core.Tx) error {
		r, err := ledger.Reconcile(ctx, tx, 1)
		require.NoError(t, err)
		assert.True(t, r.InSync)
		assert.True(t, r.Computed.Equal(decimal.NewFromInt(5)))
		return nil
	})
	require.NoError(t, err)
}

func TestPostgres_RefusedSaveRollsBack(t *testing.T) {
	_, store := setupTestDB(t)
	docs, _, _ := newDocuments(store)
	ctx := context.Background()

	_, err := docs.Save(ctx, core.Draft{
		Type:  core.Facture,
		Lines: []core.DocumentLine{{ProductID: 2, Quantity: decimal.NewFromInt(1)}},
	})
	var perr *core.PolicyViolation
	require.ErrorAs(t, err, &perr)

	list, err := docs.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, list)

	err = store.WithinTx(ctx, func(ctx context.Context, tx core.Tx) error {
		_, err := tx.Numbering().State(ctx, core.Facture, time.Now().Year())
		assert.ErrorIs(t, err, core.ErrNotFound)
		return nil
	})
	require.NoError(t, err)
}

func TestPostgres_ConcurrentSavesGetDistinctNumbers(t *testing.T) {
	pool, store := setupTestDB(t)
	docs, _, _ := newDocuments(store)
	ctx := context.Background()
	const workers = 10

	var wg sync.WaitGroup
	errCh := make(chan error, workers)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := docs.Save(ctx, core.Draft{
				Type:  core.CommandeFournisseur,
				Lines: []core.DocumentLine{{ProductID: 2, Quantity: decimal.NewFromInt(1)}},
			})
			if err != nil {
				errCh <- err
			}
		}()
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Errorf("concurrent save error: %v", err)
	}

	var count int
	err := pool.QueryRow(ctx, "SELECT count(DISTINCT number) FROM documents WHERE document_type = 'commandeFournisseur'").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, workers, count)

	var balance decimal.Decimal
	err = pool.QueryRow(ctx, "SELECT stock_balance FROM products WHERE id = 2").Scan(&balance)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(workers)), "balance %s", balance)
}

func TestPostgres_MovementsAreImmutable(t *testing.T) {
	pool, store := setupTestDB(t)
	_, ledger, _ := newDocuments(store)
	ctx := context.Background()

	err := store.WithinTx(ctx, func(ctx context.Context, tx core.Tx) error {
		_, err := ledger.Record(ctx, tx, core.StockPolicy{AllowNegativeStock: true}, core.MovementRequest{
			ProductID: 3, Direction: core.DirectionIn, Quantity: decimal.NewFromInt(1),
		})
		return err
	})
	require.NoError(t, err)

	_, err = pool.Exec(ctx, "UPDATE stock_movements SET quantity = 99")
	assert.Error(t, err)
	_, err = pool.Exec(ctx, "DELETE FROM stock_movements")
	assert.Error(t, err)
}

func TestPostgres_DuplicateMovementOrigin(t *testing.T) {
	_, store := setupTestDB(t)
	_, ledger, _ := newDocuments(store)
	ctx := context.Background()
	origin := core.MovementOrigin{DocumentType: core.CommandeFournisseur, DocumentID: 1, DocumentNumber: "CF-001", LineID: 1, Revision: 1}

	err := store.WithinTx(ctx, func(ctx context.Context, tx core.Tx) error {
		if _, err := ledger.RecordForLine(ctx, tx, core.StockPolicy{}, origin, 1, decimal.NewFromInt(1), time.Now()); err != nil {
			return err
		}
		_, err := ledger.RecordForLine(ctx, tx, core.StockPolicy{}, origin, 1, decimal.NewFromInt(1), time.Now())
		return err
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrDuplicate), "%v", err)
}

func TestPostgres_OppositeLineOrdersDoNotDeadlock(t *testing.T) {
	_, store := setupTestDB(t)
	docs, ledger, _ := newDocuments(store)
	ctx := context.Background()

	err := store.WithinTx(ctx, func(ctx context.Context, tx core.Tx) error {
		for _, id := range []int64{1, 2} {
			if _, err := ledger.Record(ctx, tx, core.StockPolicy{}, core.MovementRequest{
				ProductID: id, Direction: core.DirectionIn, Quantity: decimal.NewFromInt(100),
			}); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	const rounds = 10
	var wg sync.WaitGroup
	errCh := make(chan error, 2*rounds)
	for range rounds {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := docs.Save(ctx, core.Draft{
				Type: core.BonLivraison,
				Lines: []core.DocumentLine{
					{ProductID: 1, Quantity: decimal.NewFromInt(1)},
					{ProductID: 2, Quantity: decimal.NewFromInt(1)},
				},
			})
			errCh <- err
		}()
		go func() {
			defer wg.Done()
			_, err := docs.Save(ctx, core.Draft{
				Type: core.CommandeFournisseur,
				Lines: []core.DocumentLine{
					{ProductID: 2, Quantity: decimal.NewFromInt(1)},
					{ProductID: 1, Quantity: decimal.NewFromInt(1)},
				},
			})
			errCh <- err
		}()
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		assert.NoError(t, err)
	}

	err = store.WithinTx(ctx, func(ctx context.Context, tx core.Tx) error {
		for _, id := range []int64{1, 2} {
			r, err := ledger.Reconcile(ctx, tx, id)
			if err != nil {
				return err
			}
			assert.True(t, r.InSync)
			assert.True(t, r.Computed.Equal(decimal.NewFromInt(100)), "product %d: %s", id, r.Computed)
		}
		return nil
	})
	require.NoError(t, err)
}

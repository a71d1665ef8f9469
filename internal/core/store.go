package core

import (
	"context"

	"github.com/shopspring/decimal"
)

// Store is the persistence boundary of the engine. WithinTx runs fn inside one
// transaction: every write made through tx commits together when fn returns
// nil, and none of them is visible when fn returns an error. Implementations
// serialize writers on the rows they lock (numbering counters, product
// balances) so concurrent saves never lose an update.
type Store interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx exposes the repositories bound to one transaction.
type Tx interface {
	Config() ConfigRepository
	Numbering() NumberingRepository
	Products() ProductRepository
	Stock() StockRepository
	Documents() DocumentRepository
}

// ConfigRepository reads configuration written by the external settings UI.
type ConfigRepository interface {
	Settings(ctx context.Context) (map[string]string, error)
	TaxRecords(ctx context.Context) ([]TaxRecord, error)
	TaxGroupRecords(ctx context.Context) ([]TaxGroupRecord, error)
	// NumberingSettings wraps ErrNotFound when the type has no numbering row.
	NumberingSettings(ctx context.Context, t DocumentType) (NumberingSettings, error)
}

// NumberingRepository owns the per-type, per-year counters.
type NumberingRepository interface {
	// Next returns the number to issue for (t, year) and stores its successor.
	// A missing counter starts at start. The read and the increment are one
	// atomic step with respect to other transactions.
	Next(ctx context.Context, t DocumentType, year int, start int64) (int64, error)
	// Reset sets the counter back to start.
	Reset(ctx context.Context, t DocumentType, year int, start int64) error
	// State wraps ErrNotFound when no number was ever issued for (t, year).
	State(ctx context.Context, t DocumentType, year int) (NumberingState, error)
}

// ProductRepository reads the product catalog and maintains the cached balance.
type ProductRepository interface {
	Get(ctx context.Context, id int64) (*Product, error)
	List(ctx context.Context) ([]Product, error)
	// LockBalance returns the cached balance and holds the product row until
	// the transaction ends.
	LockBalance(ctx context.Context, id int64) (decimal.Decimal, error)
	SetBalance(ctx context.Context, id int64, balance decimal.Decimal) error
}

// StockRepository is the append-only movement log.
type StockRepository interface {
	// Append stores a movement. A second movement with the same document
	// origin, product and revision wraps ErrDuplicate.
	Append(ctx context.Context, m StockMovement) error
	History(ctx context.Context, productID int64) ([]StockMovement, error)
	Sum(ctx context.Context, productID int64) (decimal.Decimal, error)
	ForDocument(ctx context.Context, t DocumentType, documentID int64) ([]StockMovement, error)
}

// DocumentRepository persists saved documents.
type DocumentRepository interface {
	// Insert assigns the document ID.
	Insert(ctx context.Context, d *Document) error
	Update(ctx context.Context, d *Document) error
	// Get locks the document row until the transaction ends.
	Get(ctx context.Context, id int64) (*Document, error)
	List(ctx context.Context, t DocumentType) ([]Document, error)
	ListBySource(ctx context.Context, sourceID int64) ([]Document, error)
	AppendRevision(ctx context.Context, r DocumentRevision) error
	Revisions(ctx context.Context, documentID int64) ([]DocumentRevision, error)
}

// Package memory is an in-process core.Store used by tests and demo mode.
//
// Transactions are serialized by one writer mutex. Each transaction works on a
// copy of the state that replaces the committed state only when the callback
// succeeds, which gives all-or-nothing semantics without undo logs.
package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"

	"commercial-docs/internal/core"

	"github.com/shopspring/decimal"
)

type counterKey struct {
	t    core.DocumentType
	year int
}

type originKey struct {
	t         core.DocumentType
	docID     int64
	lineID    int
	productID int64
	revision  int
}

type state struct {
	settings  map[string]string
	taxes     []core.TaxRecord
	groups    []core.TaxGroupRecord
	numbering map[core.DocumentType]core.NumberingSettings
	counters  map[counterKey]int64
	products  map[int64]core.Product
	movements []core.StockMovement
	origins   map[originKey]bool
	documents map[int64]core.Document
	revisions map[int64][]core.DocumentRevision
	nextDocID int64
}

func newState() *state {
	return &state{
		settings:  make(map[string]string),
		numbering: make(map[core.DocumentType]core.NumberingSettings),
		counters:  make(map[counterKey]int64),
		products:  make(map[int64]core.Product),
		origins:   make(map[originKey]bool),
		documents: make(map[int64]core.Document),
		revisions: make(map[int64][]core.DocumentRevision),
		nextDocID: 1,
	}
}

// clone copies every container. Stored documents and revisions are never
// mutated in place, so their line slices may be shared.
func (s *state) clone() *state {
	c := &state{
		settings:  maps.Clone(s.settings),
		taxes:     slices.Clone(s.taxes),
		groups:    slices.Clone(s.groups),
		numbering: maps.Clone(s.numbering),
		counters:  maps.Clone(s.counters),
		products:  maps.Clone(s.products),
		movements: slices.Clone(s.movements),
		origins:   maps.Clone(s.origins),
		documents: maps.Clone(s.documents),
		revisions: make(map[int64][]core.DocumentRevision, len(s.revisions)),
		nextDocID: s.nextDocID,
	}
	for id, revs := range s.revisions {
		c.revisions[id] = slices.Clone(revs)
	}
	return c
}

// Store implements core.Store in memory.
type Store struct {
	mu    sync.Mutex
	state *state
}

// New returns an empty store.
func New() *Store {
	return &Store{state: newState()}
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx core.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(ctx, &tx{st: work}); err != nil {
		return err
	}
	s.state = work
	return nil
}

// SetSetting writes one raw business setting.
func (s *Store) SetSetting(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.settings[key] = value
}

// AddTax appends a tax row.
func (s *Store) AddTax(r core.TaxRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.taxes = append(s.state.taxes, r)
}

// AddTaxGroup appends a tax group row.
func (s *Store) AddTaxGroup(g core.TaxGroupRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.groups = append(s.state.groups, g)
}

// SetNumbering writes the numbering scheme of ns.Type.
func (s *Store) SetNumbering(ns core.NumberingSettings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.numbering[ns.Type] = ns
}

// AddProduct inserts or replaces a product. StockBalance is taken as is and
// should be zero for products without movements.
func (s *Store) AddProduct(p core.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.products[p.ID] = p
}

type tx struct {
	st *state
}

func (t *tx) Config() core.ConfigRepository       { return configRepo{t.st} }
func (t *tx) Numbering() core.NumberingRepository { return numberingRepo{t.st} }
func (t *tx) Products() core.ProductRepository    { return productRepo{t.st} }
func (t *tx) Stock() core.StockRepository         { return stockRepo{t.st} }
func (t *tx) Documents() core.DocumentRepository  { return documentRepo{t.st} }

type configRepo struct{ st *state }

func (r configRepo) Settings(ctx context.Context) (map[string]string, error) {
	return maps.Clone(r.st.settings), nil
}

func (r configRepo) TaxRecords(ctx context.Context) ([]core.TaxRecord, error) {
	return slices.Clone(r.st.taxes), nil
}

func (r configRepo) TaxGroupRecords(ctx context.Context) ([]core.TaxGroupRecord, error) {
	return slices.Clone(r.st.groups), nil
}

func (r configRepo) NumberingSettings(ctx context.Context, t core.DocumentType) (core.NumberingSettings, error) {
	ns, ok := r.st.numbering[t]
	if !ok {
		return core.NumberingSettings{}, fmt.Errorf("numbering settings for %s: %w", t, core.ErrNotFound)
	}
	return ns, nil
}

type numberingRepo struct{ st *state }

func (r numberingRepo) Next(ctx context.Context, t core.DocumentType, year int, start int64) (int64, error) {
	k := counterKey{t, year}
	n, ok := r.st.counters[k]
	if !ok {
		n = start
	}
	r.st.counters[k] = n + 1
	return n, nil
}

func (r numberingRepo) Reset(ctx context.Context, t core.DocumentType, year int, start int64) error {
	r.st.counters[counterKey{t, year}] = start
	return nil
}

func (r numberingRepo) State(ctx context.Context, t core.DocumentType, year int) (core.NumberingState, error) {
	n, ok := r.st.counters[counterKey{t, year}]
	if !ok {
		return core.NumberingState{}, fmt.Errorf("counter %s/%d: %w", t, year, core.ErrNotFound)
	}
	return core.NumberingState{Type: t, Year: year, CurrentNumber: n}, nil
}

type productRepo struct{ st *state }

func (r productRepo) Get(ctx context.Context, id int64) (*core.Product, error) {
	p, ok := r.st.products[id]
	if !ok {
		return nil, fmt.Errorf("product %d: %w", id, core.ErrNotFound)
	}
	return &p, nil
}

func (r productRepo) List(ctx context.Context) ([]core.Product, error) {
	out := slices.Collect(maps.Values(r.st.products))
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r productRepo) LockBalance(ctx context.Context, id int64) (decimal.Decimal, error) {
	p, ok := r.st.products[id]
	if !ok {
		return decimal.Zero, fmt.Errorf("product %d: %w", id, core.ErrNotFound)
	}
	return p.StockBalance, nil
}

func (r productRepo) SetBalance(ctx context.Context, id int64, balance decimal.Decimal) error {
	p, ok := r.st.products[id]
	if !ok {
		return fmt.Errorf("product %d: %w", id, core.ErrNotFound)
	}
	p.StockBalance = balance
	r.st.products[id] = p
	return nil
}

type stockRepo struct{ st *state }

func (r stockRepo) Append(ctx context.Context, m core.StockMovement) error {
	if !m.Origin.Manual() {
		k := originKey{m.Origin.DocumentType, m.Origin.DocumentID, m.Origin.LineID, m.ProductID, m.Origin.Revision}
		if r.st.origins[k] {
			return &core.PersistenceError{
				Op:  "append stock movement",
				Err: fmt.Errorf("%w: %s %d line %d revision %d", core.ErrDuplicate, k.t, k.docID, k.lineID, k.revision),
			}
		}
		r.st.origins[k] = true
	}
	r.st.movements = append(r.st.movements, m)
	return nil
}

func (r stockRepo) History(ctx context.Context, productID int64) ([]core.StockMovement, error) {
	var out []core.StockMovement
	for _, m := range r.st.movements {
		if m.ProductID == productID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r stockRepo) Sum(ctx context.Context, productID int64) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, m := range r.st.movements {
		if m.ProductID == productID {
			sum = sum.Add(m.Signed())
		}
	}
	return sum, nil
}

func (r stockRepo) ForDocument(ctx context.Context, t core.DocumentType, documentID int64) ([]core.StockMovement, error) {
	var out []core.StockMovement
	for _, m := range r.st.movements {
		if m.Origin.DocumentType == t && m.Origin.DocumentID == documentID {
			out = append(out, m)
		}
	}
	return out, nil
}

type documentRepo struct{ st *state }

func copyDocument(d core.Document) *core.Document {
	d.Lines = slices.Clone(d.Lines)
	d.Breakdown = slices.Clone(d.Breakdown)
	d.Selection.TaxIDs = slices.Clone(d.Selection.TaxIDs)
	return &d
}

func (r documentRepo) Insert(ctx context.Context, d *core.Document) error {
	for _, existing := range r.st.documents {
		if existing.Number == d.Number {
			return &core.PersistenceError{
				Op:  "insert document",
				Err: fmt.Errorf("%w: number %s", core.ErrDuplicate, d.Number),
			}
		}
	}
	d.ID = r.st.nextDocID
	r.st.nextDocID++
	r.st.documents[d.ID] = *copyDocument(*d)
	return nil
}

func (r documentRepo) Update(ctx context.Context, d *core.Document) error {
	if _, ok := r.st.documents[d.ID]; !ok {
		return fmt.Errorf("document %d: %w", d.ID, core.ErrNotFound)
	}
	r.st.documents[d.ID] = *copyDocument(*d)
	return nil
}

func (r documentRepo) Get(ctx context.Context, id int64) (*core.Document, error) {
	d, ok := r.st.documents[id]
	if !ok {
		return nil, fmt.Errorf("document %d: %w", id, core.ErrNotFound)
	}
	return copyDocument(d), nil
}

func (r documentRepo) sorted(keep func(core.Document) bool) []core.Document {
	var out []core.Document
	for _, d := range r.st.documents {
		if keep(d) {
			out = append(out, *copyDocument(d))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r documentRepo) List(ctx context.Context, t core.DocumentType) ([]core.Document, error) {
	return r.sorted(func(d core.Document) bool { return t == "" || d.Type == t }), nil
}

func (r documentRepo) ListBySource(ctx context.Context, sourceID int64) ([]core.Document, error) {
	return r.sorted(func(d core.Document) bool {
		return d.SourceDocumentID != nil && *d.SourceDocumentID == sourceID
	}), nil
}

func (r documentRepo) AppendRevision(ctx context.Context, rev core.DocumentRevision) error {
	for _, existing := range r.st.revisions[rev.DocumentID] {
		if existing.Revision == rev.Revision {
			return &core.PersistenceError{
				Op:  "append document revision",
				Err: fmt.Errorf("%w: document %d revision %d", core.ErrDuplicate, rev.DocumentID, rev.Revision),
			}
		}
	}
	rev.Lines = slices.Clone(rev.Lines)
	rev.Breakdown = slices.Clone(rev.Breakdown)
	r.st.revisions[rev.DocumentID] = append(r.st.revisions[rev.DocumentID], rev)
	return nil
}

func (r documentRepo) Revisions(ctx context.Context, documentID int64) ([]core.DocumentRevision, error) {
	return slices.Clone(r.st.revisions[documentID]), nil
}

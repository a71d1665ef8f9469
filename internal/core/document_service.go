package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// DocumentService couples the catalog, the calculator, the sequence allocator
// and the stock ledger. Every mutating call runs in one store transaction:
// the number, the document row and its stock movements commit together or
// not at all.
type DocumentService interface {
	// Preview prices a draft without persisting anything.
	Preview(ctx context.Context, d Draft) (Totals, error)
	Save(ctx context.Context, d Draft) (*Document, error)
	// Amend replaces the lines of a saved document, keeps the previous state
	// as a revision and records compensating stock movements for the delta.
	Amend(ctx context.Context, id int64, lines []DocumentLine) (*Document, error)
	Transition(ctx context.Context, id int64, to DocumentStatus) (*Document, error)
	// Convert creates a new document of type to from a saved source document.
	Convert(ctx context.Context, id int64, to DocumentType) (*Document, error)
	// CreditNote issues an avoir against a saved invoice.
	CreditNote(ctx context.Context, invoiceID int64, lines []DocumentLine) (*Document, error)
	Get(ctx context.Context, id int64) (*Document, error)
	// List returns the documents of type t, or every document when t is empty.
	List(ctx context.Context, t DocumentType) ([]Document, error)
	Revisions(ctx context.Context, id int64) ([]DocumentRevision, error)
}

type documentService struct {
	store   Store
	config  *ConfigHolder
	numbers *SequenceAllocator
	ledger  *StockLedger
	logger  zerolog.Logger
	now     func() time.Time
}

// NewDocumentService wires a DocumentService over store.
func NewDocumentService(store Store, config *ConfigHolder, numbers *SequenceAllocator, ledger *StockLedger, logger zerolog.Logger) DocumentService {
	return &documentService{
		store:   store,
		config:  config,
		numbers: numbers,
		ledger:  ledger,
		logger:  logger.With().Str("component", "documents").Logger(),
		now:     time.Now,
	}
}

// conversions lists the allowed source → target pairs of Convert.
var conversions = map[DocumentType][]DocumentType{
	Devis:        {Facture, BonLivraison},
	BonLivraison: {Facture},
}

func convertible(from, to DocumentType) bool {
	for _, t := range conversions[from] {
		if t == to {
			return true
		}
	}
	return false
}

func (s *documentService) Preview(ctx context.Context, d Draft) (Totals, error) {
	if !d.Type.Valid() {
		return Totals{}, invalid("type", "unknown document type %q", d.Type)
	}
	if err := ValidateLines(d.Lines); err != nil {
		return Totals{}, err
	}
	cfg := s.config.Current()
	taxes, err := cfg.Catalog.Resolve(d.Type, d.Selection, cfg.Settings)
	if err != nil {
		return Totals{}, err
	}

	var totals Totals
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		lines, _, err := priceLines(ctx, tx, d.Lines)
		if err != nil {
			return err
		}
		totals = ComputeTotals(lines, taxes, cfg.Settings.CurrencyDecimals)
		return nil
	})
	if err != nil {
		return Totals{}, err
	}
	return totals, nil
}

func (s *documentService) Save(ctx context.Context, d Draft) (*Document, error) {
	if err := ValidateDraft(d); err != nil {
		return nil, err
	}
	var doc *Document
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		doc, err = s.saveTx(ctx, tx, d)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Int64("document_id", doc.ID).Str("number", doc.Number).Str("type", string(doc.Type)).
		Str("grand_total", doc.GrandTotal.String()).Str("status", string(doc.Status)).Msg("document saved")
	return doc, nil
}

// saveTx prices, numbers and persists a validated draft inside tx.
func (s *documentService) saveTx(ctx context.Context, tx Tx, d Draft) (*Document, error) {
	cfg := s.config.Current()
	taxes, err := cfg.Catalog.Resolve(d.Type, d.Selection, cfg.Settings)
	if err != nil {
		return nil, err
	}

	now := s.now()
	date := d.Date
	if date.IsZero() {
		date = now
	}

	lines, products, err := priceLines(ctx, tx, assignLineIDs(d.Lines, 0))
	if err != nil {
		return nil, err
	}

	var source *Document
	if d.SourceDocumentID != nil {
		source, err = tx.Documents().Get(ctx, *d.SourceDocumentID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, invalid("source_document_id", "document %d does not exist", *d.SourceDocumentID)
			}
			return nil, fmt.Errorf("failed to read source document: %w", err)
		}
	}
	if d.Type == Avoir {
		if err := checkCreditable(ctx, tx, source, lines, 0); err != nil {
			return nil, err
		}
	}

	totals := ComputeTotals(lines, taxes, cfg.Settings.CurrencyDecimals)

	number, err := s.numbers.Next(ctx, tx, d.Type, date)
	if err != nil {
		return nil, err
	}

	doc := &Document{
		Type:             d.Type,
		Number:           number,
		Date:             date,
		DueDate:          d.DueDate,
		PartyID:          d.PartyID,
		SourceDocumentID: d.SourceDocumentID,
		Selection:        d.Selection,
		Status:           StatusSaved,
		Revision:         1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	doc.applyTotals(totals)
	if doc.Type == Facture && doc.DueDate == nil && cfg.Settings.InvoiceDueDateEnabled {
		due := date.AddDate(0, 0, cfg.Settings.PaymentTermsDays)
		doc.DueDate = &due
	}

	dir, moves := stockEffect(doc, source)
	if moves {
		doc.Status = StatusStockCommitted
	}
	if err := tx.Documents().Insert(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to insert document %s: %w", number, err)
	}
	if moves {
		if err := s.compensate(ctx, tx, cfg.Settings.StockPolicy(), doc, desiredStock(doc.Lines, products, dir)); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

func (s *documentService) Amend(ctx context.Context, id int64, lines []DocumentLine) (*Document, error) {
	if len(lines) == 0 {
		return nil, invalid("lines", "a document needs at least one line")
	}
	if err := ValidateLines(lines); err != nil {
		return nil, err
	}
	cfg := s.config.Current()

	var doc *Document
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		if doc, err = getDocument(ctx, tx, id); err != nil {
			return err
		}
		if !doc.Status.Amendable() {
			return fmt.Errorf("%w: %s %s cannot be amended", ErrInvalidTransition, doc.Number, doc.Status)
		}
		taxes, err := cfg.Catalog.Resolve(doc.Type, doc.Selection, cfg.Settings)
		if err != nil {
			return err
		}

		maxID := 0
		for _, l := range doc.Lines {
			maxID = max(maxID, l.LineID)
		}
		priced, products, err := priceLines(ctx, tx, assignLineIDs(lines, maxID))
		if err != nil {
			return err
		}

		var source *Document
		if doc.SourceDocumentID != nil {
			if source, err = getDocument(ctx, tx, *doc.SourceDocumentID); err != nil {
				return err
			}
		}
		if doc.Type == Avoir {
			if err := checkCreditable(ctx, tx, source, priced, doc.ID); err != nil {
				return err
			}
		}

		now := s.now()
		if err := tx.Documents().AppendRevision(ctx, revisionOf(doc, now)); err != nil {
			return fmt.Errorf("failed to store revision %d of %s: %w", doc.Revision, doc.Number, err)
		}
		doc.Revision++
		doc.applyTotals(ComputeTotals(priced, taxes, doc.Decimals))
		doc.UpdatedAt = now

		if doc.Status == StatusStockCommitted {
			dir, moves := stockEffect(doc, source)
			if moves {
				if err := s.compensate(ctx, tx, cfg.Settings.StockPolicy(), doc, desiredStock(doc.Lines, products, dir)); err != nil {
					return err
				}
			}
		}
		if err := tx.Documents().Update(ctx, doc); err != nil {
			return fmt.Errorf("failed to update document %s: %w", doc.Number, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Int64("document_id", doc.ID).Str("number", doc.Number).Int("revision", doc.Revision).
		Str("grand_total", doc.GrandTotal.String()).Msg("document amended")
	return doc, nil
}

// allowedStatus reports whether a document of type t may ever hold status to.
func allowedStatus(t DocumentType, to DocumentStatus) bool {
	switch to {
	case StatusPaid:
		return t == Facture || t == Avoir
	case StatusDelivered:
		return t == BonLivraison || t == CommandeFournisseur
	case StatusInvoiced:
		return t == Devis || t == BonLivraison || t == CommandeFournisseur
	case StatusStockCommitted:
		_, ok := t.StockEffect()
		return ok
	}
	return true
}

// transitionAllowed is the lifecycle state machine.
func transitionAllowed(from, to DocumentStatus) bool {
	if from.Terminal() || from == to {
		return false
	}
	switch to {
	case StatusCancelled:
		return true
	case StatusSaved:
		return from == StatusDraft
	case StatusStockCommitted:
		return from == StatusSaved
	case StatusInvoiced, StatusDelivered, StatusPaid:
		return from == StatusSaved || from == StatusStockCommitted
	}
	return false
}

func (s *documentService) Transition(ctx context.Context, id int64, to DocumentStatus) (*Document, error) {
	cfg := s.config.Current()

	var (
		doc  *Document
		from DocumentStatus
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		if doc, err = getDocument(ctx, tx, id); err != nil {
			return err
		}
		from = doc.Status
		if !transitionAllowed(from, to) || !allowedStatus(doc.Type, to) {
			return fmt.Errorf("%w: %s %s cannot move from %s to %s", ErrInvalidTransition, doc.Type, doc.Number, from, to)
		}

		var source *Document
		if doc.SourceDocumentID != nil {
			if source, err = getDocument(ctx, tx, *doc.SourceDocumentID); err != nil {
				return err
			}
		}
		now := s.now()

		switch to {
		case StatusCancelled:
			if doc.Type == Facture {
				open, err := openCreditNotes(ctx, tx, doc.ID, 0)
				if err != nil {
					return err
				}
				if len(open) > 0 {
					return fmt.Errorf("%w: %s has %d credit note(s) outstanding", ErrInvalidTransition, doc.Number, len(open))
				}
			}
			if err := tx.Documents().AppendRevision(ctx, revisionOf(doc, now)); err != nil {
				return fmt.Errorf("failed to store revision %d of %s: %w", doc.Revision, doc.Number, err)
			}
			doc.Revision++
			if err := s.compensate(ctx, tx, cfg.Settings.StockPolicy(), doc, nil); err != nil {
				return err
			}
		case StatusStockCommitted:
			dir, moves := stockEffect(doc, source)
			if !moves {
				return fmt.Errorf("%w: %s %s moves no stock and cannot be %s", ErrInvalidTransition, doc.Type, doc.Number, to)
			}
			_, products, err := priceLines(ctx, tx, doc.Lines)
			if err != nil {
				return err
			}
			if err := s.compensate(ctx, tx, cfg.Settings.StockPolicy(), doc, desiredStock(doc.Lines, products, dir)); err != nil {
				return err
			}
		}

		doc.Status = to
		doc.UpdatedAt = now
		if err := tx.Documents().Update(ctx, doc); err != nil {
			return fmt.Errorf("failed to update document %s: %w", doc.Number, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Int64("document_id", doc.ID).Str("number", doc.Number).
		Str("from", string(from)).Str("to", string(to)).Msg("document status changed")
	return doc, nil
}

func (s *documentService) Convert(ctx context.Context, id int64, to DocumentType) (*Document, error) {
	var doc *Document
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		source, err := getDocument(ctx, tx, id)
		if err != nil {
			return err
		}
		if !convertible(source.Type, to) {
			return invalid("type", "a %s cannot be converted to %s", source.Type, to)
		}
		if source.Status != StatusSaved && source.Status != StatusStockCommitted {
			return fmt.Errorf("%w: %s is %s and cannot be converted", ErrInvalidTransition, source.Number, source.Status)
		}

		lines := make([]DocumentLine, len(source.Lines))
		for i, l := range source.Lines {
			lines[i] = DocumentLine{
				LineID:          l.LineID,
				ProductID:       l.ProductID,
				Description:     l.Description,
				Quantity:        l.Quantity,
				UnitPrice:       l.UnitPrice,
				DiscountPercent: l.DiscountPercent,
			}
		}
		sourceID := source.ID
		draft := Draft{
			Type:             to,
			Date:             s.now(),
			PartyID:          source.PartyID,
			SourceDocumentID: &sourceID,
			Selection:        source.Selection,
			Lines:            lines,
		}
		if err := ValidateDraft(draft); err != nil {
			return err
		}
		if doc, err = s.saveTx(ctx, tx, draft); err != nil {
			return err
		}

		if to == Facture {
			source.Status = StatusInvoiced
			source.UpdatedAt = doc.CreatedAt
			if err := tx.Documents().Update(ctx, source); err != nil {
				return fmt.Errorf("failed to mark %s invoiced: %w", source.Number, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Int64("source_id", id).Int64("document_id", doc.ID).Str("number", doc.Number).
		Str("type", string(to)).Msg("document converted")
	return doc, nil
}

func (s *documentService) CreditNote(ctx context.Context, invoiceID int64, lines []DocumentLine) (*Document, error) {
	if len(lines) == 0 {
		return nil, invalid("lines", "a credit note needs at least one line")
	}
	var doc *Document
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		inv, err := getDocument(ctx, tx, invoiceID)
		if err != nil {
			return err
		}

		// Unpriced lines take the price they were invoiced at.
		invoiced := make(map[int64]DocumentLine, len(inv.Lines))
		for _, l := range inv.Lines {
			if _, ok := invoiced[l.ProductID]; !ok && l.ProductID > 0 {
				invoiced[l.ProductID] = l
			}
		}
		priced := make([]DocumentLine, len(lines))
		for i, l := range lines {
			if src, ok := invoiced[l.ProductID]; ok && l.UnitPrice.IsZero() {
				l.UnitPrice = src.UnitPrice
				if l.DiscountPercent.IsZero() {
					l.DiscountPercent = src.DiscountPercent
				}
			}
			priced[i] = l
		}

		draft := Draft{
			Type:             Avoir,
			Date:             s.now(),
			PartyID:          inv.PartyID,
			SourceDocumentID: &invoiceID,
			Selection:        inv.Selection,
			Lines:            priced,
		}
		if err := ValidateDraft(draft); err != nil {
			return err
		}
		doc, err = s.saveTx(ctx, tx, draft)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Int64("invoice_id", invoiceID).Int64("document_id", doc.ID).Str("number", doc.Number).
		Str("grand_total", doc.GrandTotal.String()).Msg("credit note issued")
	return doc, nil
}

func (s *documentService) Get(ctx context.Context, id int64) (*Document, error) {
	var doc *Document
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		doc, err = getDocument(ctx, tx, id)
		return err
	})
	return doc, err
}

func (s *documentService) List(ctx context.Context, t DocumentType) ([]Document, error) {
	if t != "" && !t.Valid() {
		return nil, invalid("type", "unknown document type %q", t)
	}
	var docs []Document
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		docs, err = tx.Documents().List(ctx, t)
		if err != nil {
			return fmt.Errorf("failed to list documents: %w", err)
		}
		return nil
	})
	return docs, err
}

func (s *documentService) Revisions(ctx context.Context, id int64) ([]DocumentRevision, error) {
	var revs []DocumentRevision
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := getDocument(ctx, tx, id); err != nil {
			return err
		}
		var err error
		revs, err = tx.Documents().Revisions(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to read revisions of document %d: %w", id, err)
		}
		return nil
	})
	return revs, err
}

// compensate records, for every (line, product) position of doc, the movement
// that brings the recorded net quantity to desired. A nil desired map reverses
// everything. Positions are processed in line then product order so the
// movement log of a document is reproducible.
func (s *documentService) compensate(ctx context.Context, tx Tx, policy StockPolicy, doc *Document, desired map[lineKey]decimal.Decimal) error {
	recorded, err := tx.Stock().ForDocument(ctx, doc.Type, doc.ID)
	if err != nil {
		return fmt.Errorf("failed to read stock movements of %s: %w", doc.Number, err)
	}
	existing := netByLine(recorded)

	keys := make([]lineKey, 0, len(desired)+len(existing))
	seen := make(map[lineKey]bool, cap(keys))
	for _, m := range []map[lineKey]decimal.Decimal{desired, existing} {
		for k := range m {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].productID != keys[j].productID {
			return keys[i].productID < keys[j].productID
		}
		return keys[i].lineID < keys[j].lineID
	})

	for _, k := range keys {
		delta := desired[k].Sub(existing[k])
		if delta.IsZero() {
			continue
		}
		origin := MovementOrigin{
			DocumentType:   doc.Type,
			DocumentID:     doc.ID,
			DocumentNumber: doc.Number,
			LineID:         k.lineID,
			Revision:       doc.Revision,
		}
		if _, err := s.ledger.RecordForLine(ctx, tx, policy, origin, k.productID, delta, doc.Date); err != nil {
			return err
		}
	}
	return nil
}

// stockEffect is the movement direction of doc. A facture generated from a
// delivery note moves nothing: the goods already left with the note.
func stockEffect(doc *Document, source *Document) (Direction, bool) {
	dir, ok := doc.Type.StockEffect()
	if !ok {
		return "", false
	}
	if doc.Type == Facture && source != nil && source.Type == BonLivraison {
		return "", false
	}
	return dir, true
}

// desiredStock is the signed quantity each stock-tracked line should hold.
func desiredStock(lines []DocumentLine, products map[int64]*Product, dir Direction) map[lineKey]decimal.Decimal {
	out := make(map[lineKey]decimal.Decimal, len(lines))
	for _, l := range lines {
		p, ok := products[l.ProductID]
		if !ok || !p.TracksStock || l.Quantity.IsZero() {
			continue
		}
		k := lineKey{lineID: l.LineID, productID: l.ProductID}
		out[k] = out[k].Add(dir.signed(l.Quantity))
	}
	return out
}

// assignLineIDs numbers lines that have no id, continuing after the highest id
// in use or after floor.
func assignLineIDs(lines []DocumentLine, floor int) []DocumentLine {
	out := make([]DocumentLine, len(lines))
	copy(out, lines)
	next := floor
	for _, l := range out {
		next = max(next, l.LineID)
	}
	for i := range out {
		if out[i].LineID == 0 {
			next++
			out[i].LineID = next
		}
	}
	return out
}

// priceLines fills missing prices and descriptions from the product catalog
// and returns the products referenced by the lines.
func priceLines(ctx context.Context, tx Tx, lines []DocumentLine) ([]DocumentLine, map[int64]*Product, error) {
	products := make(map[int64]*Product)
	out := make([]DocumentLine, len(lines))
	for i, l := range lines {
		if l.ProductID > 0 {
			p, ok := products[l.ProductID]
			if !ok {
				var err error
				p, err = tx.Products().Get(ctx, l.ProductID)
				if err != nil {
					if errors.Is(err, ErrNotFound) {
						return nil, nil, invalid(fmt.Sprintf("lines[%d].product_id", i), "product %d does not exist", l.ProductID)
					}
					return nil, nil, fmt.Errorf("failed to read product %d: %w", l.ProductID, err)
				}
				products[l.ProductID] = p
			}
			if l.UnitPrice.IsZero() {
				l.UnitPrice = p.UnitPrice
			}
			if l.Description == "" {
				l.Description = p.Name
			}
		}
		out[i] = l
	}
	return out, products, nil
}

func getDocument(ctx context.Context, tx Tx, id int64) (*Document, error) {
	doc, err := tx.Documents().Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to read document %d: %w", id, err)
	}
	return doc, nil
}

// openCreditNotes returns the non-cancelled avoirs issued against invoiceID,
// skipping exclude.
func openCreditNotes(ctx context.Context, tx Tx, invoiceID, exclude int64) ([]Document, error) {
	derived, err := tx.Documents().ListBySource(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents derived from %d: %w", invoiceID, err)
	}
	var out []Document
	for _, d := range derived {
		if d.Type == Avoir && d.Status != StatusCancelled && d.ID != exclude {
			out = append(out, d)
		}
	}
	return out, nil
}

// checkCreditable enforces that a credit note references a live invoice and
// never credits more of a product than was invoiced, counting the other open
// credit notes of the same invoice.
func checkCreditable(ctx context.Context, tx Tx, invoice *Document, lines []DocumentLine, exclude int64) error {
	if invoice == nil || invoice.Type != Facture {
		return invalid("source_document_id", "a credit note must reference an invoice")
	}
	if invoice.Status == StatusCancelled {
		return fmt.Errorf("%w: invoice %s is cancelled", ErrInvalidTransition, invoice.Number)
	}

	available := make(map[int64]decimal.Decimal)
	for _, l := range invoice.Lines {
		if l.ProductID > 0 {
			available[l.ProductID] = available[l.ProductID].Add(l.Quantity)
		}
	}
	prior, err := openCreditNotes(ctx, tx, invoice.ID, exclude)
	if err != nil {
		return err
	}
	for _, cn := range prior {
		for _, l := range cn.Lines {
			if l.ProductID > 0 {
				available[l.ProductID] = available[l.ProductID].Sub(l.Quantity)
			}
		}
	}

	requested := make(map[int64]decimal.Decimal)
	for i, l := range lines {
		if l.ProductID == 0 {
			continue
		}
		left, ok := available[l.ProductID]
		if !ok {
			return invalid(fmt.Sprintf("lines[%d].product_id", i), "product %d is not on invoice %s", l.ProductID, invoice.Number)
		}
		requested[l.ProductID] = requested[l.ProductID].Add(l.Quantity)
		if requested[l.ProductID].GreaterThan(left) {
			return invalid(fmt.Sprintf("lines[%d].quantity", i), "credits %s of product %d but only %s remain on invoice %s",
				requested[l.ProductID], l.ProductID, left, invoice.Number)
		}
	}
	return nil
}

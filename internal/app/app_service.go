package app

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"commercial-docs/internal/core"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

const dateLayout = "2006-01-02"

type appService struct {
	store   core.Store
	config  *core.ConfigHolder
	docs    core.DocumentService
	numbers *core.SequenceAllocator
	ledger  *core.StockLedger
	logger  zerolog.Logger
	now     func() time.Time
	check   *validator.Validate
}

// NewAppService constructs an appService that satisfies ApplicationService.
func NewAppService(
	store core.Store,
	config *core.ConfigHolder,
	docs core.DocumentService,
	numbers *core.SequenceAllocator,
	ledger *core.StockLedger,
	logger zerolog.Logger,
) ApplicationService {
	check := validator.New(validator.WithRequiredStructEnabled())
	check.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &appService{
		store:   store,
		config:  config,
		docs:    docs,
		numbers: numbers,
		ledger:  ledger,
		logger:  logger,
		now:     time.Now,
		check:   check,
	}
}

// New wires the core services over store and loads the configuration.
func New(ctx context.Context, store core.Store, logger zerolog.Logger) ApplicationService {
	config := core.NewConfigHolder(ctx, store, logger)
	numbers := core.NewSequenceAllocator(logger)
	ledger := core.NewStockLedger(logger)
	docs := core.NewDocumentService(store, config, numbers, ledger, logger)
	return NewAppService(store, config, docs, numbers, ledger, logger)
}

// classify turns business errors into a Failure. Anything it does not
// recognize is a store failure and is returned unchanged.
func classify(err error) (*Failure, error) {
	var verr *core.ValidationError
	var perr *core.PolicyViolation
	switch {
	case errors.As(err, &verr):
		return &Failure{Code: CodeValidation, Message: verr.Message, Field: verr.Field}, nil
	case errors.As(err, &perr):
		return &Failure{Code: CodeNegativeStock, Message: perr.Error()}, nil
	case errors.Is(err, core.ErrNotFound):
		return &Failure{Code: CodeNotFound, Message: err.Error()}, nil
	case errors.Is(err, core.ErrInvalidTransition):
		return &Failure{Code: CodeInvalidTransition, Message: err.Error()}, nil
	}
	return nil, err
}

// validate checks request struct tags and returns the first problem.
func (s *appService) validate(req any) *Failure {
	err := s.check.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		field := fe.Namespace()
		if _, rest, ok := strings.Cut(field, "."); ok {
			field = rest
		}
		msg := fmt.Sprintf("failed %q constraint", fe.Tag())
		if fe.Param() != "" {
			msg = fmt.Sprintf("failed %q constraint (%s)", fe.Tag(), fe.Param())
		}
		return &Failure{Code: CodeValidation, Message: msg, Field: field}
	}
	return &Failure{Code: CodeValidation, Message: err.Error()}
}

func invalidField(field, format string, args ...any) *Failure {
	return &Failure{Code: CodeValidation, Field: field, Message: fmt.Sprintf(format, args...)}
}

// parseDate reads an optional YYYY-MM-DD date. Empty means today.
func (s *appService) parseDate(field, v string) (time.Time, *Failure) {
	if v == "" {
		return s.now(), nil
	}
	t, err := time.ParseInLocation(dateLayout, v, time.Local)
	if err != nil {
		return time.Time{}, invalidField(field, "invalid date %q, expected YYYY-MM-DD", v)
	}
	return t, nil
}

func parseType(v string) (core.DocumentType, *Failure) {
	t, err := core.ParseDocumentType(v)
	if err != nil {
		f, _ := classify(err)
		return "", f
	}
	return t, nil
}

func toLines(in []LineInput) []core.DocumentLine {
	out := make([]core.DocumentLine, len(in))
	for i, l := range in {
		out[i] = core.DocumentLine{
			LineID:          l.LineID,
			ProductID:       l.ProductID,
			Description:     l.Description,
			Quantity:        l.Quantity,
			UnitPrice:       l.UnitPrice,
			DiscountPercent: l.DiscountPercent,
		}
	}
	return out
}

func toSelection(in TaxSelectionInput) core.TaxSelection {
	return core.TaxSelection{GroupID: in.GroupID, TaxIDs: in.TaxIDs}
}

// ComputeTotals prices lines without persisting anything.
func (s *appService) ComputeTotals(ctx context.Context, req TotalsRequest) (*TotalsResult, error) {
	if f := s.validate(req); f != nil {
		return &TotalsResult{Error: f}, nil
	}
	dt, f := parseType(req.DocumentType)
	if f != nil {
		return &TotalsResult{Error: f}, nil
	}
	totals, err := s.docs.Preview(ctx, core.Draft{Type: dt, Selection: toSelection(req.Selection), Lines: toLines(req.Lines)})
	if err != nil {
		f, err := classify(err)
		return &TotalsResult{Error: f}, err
	}
	return &TotalsResult{Success: true, Totals: &totals}, nil
}

// ApplicableTaxes lists the taxes a document type receives by default.
func (s *appService) ApplicableTaxes(ctx context.Context, documentType string) (*TaxListResult, error) {
	dt, f := parseType(documentType)
	if f != nil {
		return &TaxListResult{DocumentType: documentType, Error: f}, nil
	}
	taxes := s.config.Current().Catalog.ApplicableTaxes(dt)
	views := make([]TaxView, len(taxes))
	for i, t := range taxes {
		base, _ := t.Base()
		views[i] = TaxView{
			ID:              t.ID,
			Name:            t.Name,
			Kind:            t.Kind(),
			Value:           t.Value(),
			Base:            base,
			Order:           t.Order,
			IsStandard:      t.IsStandard,
			Surcharge:       t.Surcharge,
			ApplicableTypes: t.ApplicableTypes,
		}
	}
	return &TaxListResult{Success: true, DocumentType: string(dt), Taxes: views}, nil
}

// ReloadConfiguration swaps in a fresh configuration snapshot.
func (s *appService) ReloadConfiguration(ctx context.Context) (*ConfigurationResult, error) {
	cfg := s.config.Reload(ctx)
	s.logger.Info().Int("taxes", cfg.Catalog.Len()).Msg("configuration reloaded")
	return &ConfigurationResult{Settings: cfg.Settings, Taxes: cfg.Catalog.Len()}, nil
}

// AllocateNumber consumes the next number of a document type.
func (s *appService) AllocateNumber(ctx context.Context, documentType string) (*NumberResult, error) {
	dt, f := parseType(documentType)
	if f != nil {
		return &NumberResult{Error: f}, nil
	}
	var number string
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx core.Tx) error {
		var err error
		number, err = s.numbers.Next(ctx, tx, dt, s.now())
		return err
	})
	if err != nil {
		f, err := classify(err)
		return &NumberResult{Error: f}, err
	}
	return &NumberResult{Success: true, Number: number}, nil
}

// NumberingState reports the next number without consuming it.
func (s *appService) NumberingState(ctx context.Context, documentType string) (*NumberResult, error) {
	dt, f := parseType(documentType)
	if f != nil {
		return &NumberResult{Error: f}, nil
	}
	var (
		state core.NumberingState
		ns    core.NumberingSettings
	)
	now := s.now()
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx core.Tx) error {
		var err error
		if ns, err = s.numbers.Settings(ctx, tx, dt); err != nil {
			return err
		}
		state, err = s.numbers.State(ctx, tx, dt, now)
		return err
	})
	if err != nil {
		f, err := classify(err)
		return &NumberResult{Error: f}, err
	}
	return &NumberResult{
		Success: true,
		Number:  core.FormatNumber(ns, now.Year(), state.CurrentNumber),
		State:   &state,
	}, nil
}

// ResetNumbering is the administrative counter reset.
func (s *appService) ResetNumbering(ctx context.Context, req ResetNumberingRequest) (*NumberResult, error) {
	if f := s.validate(req); f != nil {
		return &NumberResult{Error: f}, nil
	}
	dt, f := parseType(req.DocumentType)
	if f != nil {
		return &NumberResult{Error: f}, nil
	}
	year := req.Year
	if year == 0 {
		year = s.now().Year()
	}
	at := time.Date(year, time.January, 1, 0, 0, 0, 0, time.Local)

	var state core.NumberingState
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx core.Tx) error {
		if err := s.numbers.Reset(ctx, tx, dt, year); err != nil {
			return err
		}
		var err error
		state, err = s.numbers.State(ctx, tx, dt, at)
		return err
	})
	if err != nil {
		f, err := classify(err)
		return &NumberResult{Error: f}, err
	}
	s.logger.Warn().Str("document_type", string(dt)).Int("year", state.Year).Msg("numbering counter reset by operator")
	return &NumberResult{Success: true, State: &state}, nil
}

// RecordStockMovement records a manual adjustment.
func (s *appService) RecordStockMovement(ctx context.Context, req StockMovementRequest) (*StockMovementResult, error) {
	if f := s.validate(req); f != nil {
		return &StockMovementResult{Error: f}, nil
	}
	date, f := s.parseDate("date", req.Date)
	if f != nil {
		return &StockMovementResult{Error: f}, nil
	}
	policy := s.config.Current().Settings.StockPolicy()

	var res core.MovementResult
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx core.Tx) error {
		var err error
		res, err = s.ledger.Record(ctx, tx, policy, core.MovementRequest{
			ProductID: req.ProductID,
			Direction: core.Direction(req.Direction),
			Quantity:  req.Quantity,
			Date:      date,
			Note:      req.Note,
		})
		return err
	})
	if err != nil {
		out := &StockMovementResult{}
		var perr *core.PolicyViolation
		if errors.As(err, &perr) {
			current := perr.CurrentStock
			out.ProductID = perr.ProductID
			out.CurrentStock = &current
		}
		out.Error, err = classify(err)
		return out, err
	}
	return &StockMovementResult{Success: true, Movement: &res.Movement, Balance: &res.Balance}, nil
}

// ReconcileStock compares the cached balance with the movement history.
func (s *appService) ReconcileStock(ctx context.Context, productID int64) (*ReconcileResult, error) {
	var r core.Reconciliation
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx core.Tx) error {
		var err error
		r, err = s.ledger.Reconcile(ctx, tx, productID)
		return err
	})
	if err != nil {
		f, err := classify(err)
		return &ReconcileResult{Error: f}, err
	}
	return &ReconcileResult{Success: true, Reconciliation: &r}, nil
}

// StockHistory returns a product's movements and current balance.
func (s *appService) StockHistory(ctx context.Context, productID int64) (*StockHistoryResult, error) {
	out := &StockHistoryResult{ProductID: productID}
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx core.Tx) error {
		p, err := tx.Products().Get(ctx, productID)
		if err != nil {
			return err
		}
		out.Balance = p.StockBalance
		out.Movements, err = s.ledger.History(ctx, tx, productID)
		return err
	})
	if err != nil {
		out.Error, err = classify(err)
		return out, err
	}
	out.Success = true
	return out, nil
}

// ListProducts returns the product catalog.
func (s *appService) ListProducts(ctx context.Context) (*ProductListResult, error) {
	var products []core.Product
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx core.Tx) error {
		var err error
		products, err = tx.Products().List(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return &ProductListResult{Products: products}, nil
}

func documentResult(doc *core.Document, err error) (*DocumentResult, error) {
	if err != nil {
		out := &DocumentResult{}
		var perr *core.PolicyViolation
		if errors.As(err, &perr) {
			current := perr.CurrentStock
			out.ProductID = perr.ProductID
			out.CurrentStock = &current
		}
		out.Error, err = classify(err)
		return out, err
	}
	return &DocumentResult{Success: true, Document: doc}, nil
}

// SaveDocument persists a new document.
func (s *appService) SaveDocument(ctx context.Context, req SaveDocumentRequest) (*DocumentResult, error) {
	if f := s.validate(req); f != nil {
		return &DocumentResult{Error: f}, nil
	}
	dt, f := parseType(req.DocumentType)
	if f != nil {
		return &DocumentResult{Error: f}, nil
	}
	date, f := s.parseDate("date", req.Date)
	if f != nil {
		return &DocumentResult{Error: f}, nil
	}
	var due *time.Time
	if req.DueDate != "" {
		d, f := s.parseDate("due_date", req.DueDate)
		if f != nil {
			return &DocumentResult{Error: f}, nil
		}
		due = &d
	}
	return documentResult(s.docs.Save(ctx, core.Draft{
		Type:             dt,
		Date:             date,
		DueDate:          due,
		PartyID:          req.PartyID,
		SourceDocumentID: req.SourceDocumentID,
		Selection:        toSelection(req.Selection),
		Lines:            toLines(req.Lines),
	}))
}

// AmendDocument replaces the lines of a saved document.
func (s *appService) AmendDocument(ctx context.Context, req AmendDocumentRequest) (*DocumentResult, error) {
	if f := s.validate(req); f != nil {
		return &DocumentResult{Error: f}, nil
	}
	return documentResult(s.docs.Amend(ctx, req.ID, toLines(req.Lines)))
}

// TransitionDocument changes a document's status.
func (s *appService) TransitionDocument(ctx context.Context, req TransitionRequest) (*DocumentResult, error) {
	if f := s.validate(req); f != nil {
		return &DocumentResult{Error: f}, nil
	}
	to := core.DocumentStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
	return documentResult(s.docs.Transition(ctx, req.ID, to))
}

// ConvertDocument derives a new document from a saved one.
func (s *appService) ConvertDocument(ctx context.Context, req ConvertRequest) (*DocumentResult, error) {
	if f := s.validate(req); f != nil {
		return &DocumentResult{Error: f}, nil
	}
	dt, f := parseType(req.DocumentType)
	if f != nil {
		return &DocumentResult{Error: f}, nil
	}
	return documentResult(s.docs.Convert(ctx, req.ID, dt))
}

// CreateCreditNote issues an avoir against an invoice.
func (s *appService) CreateCreditNote(ctx context.Context, req CreditNoteRequest) (*DocumentResult, error) {
	if f := s.validate(req); f != nil {
		return &DocumentResult{Error: f}, nil
	}
	return documentResult(s.docs.CreditNote(ctx, req.InvoiceID, toLines(req.Lines)))
}

// GetDocument returns a document and its revision history.
func (s *appService) GetDocument(ctx context.Context, id int64) (*DocumentResult, error) {
	res, err := documentResult(s.docs.Get(ctx, id))
	if err != nil || !res.Success {
		return res, err
	}
	revs, err := s.docs.Revisions(ctx, id)
	if err != nil {
		return documentResult(nil, err)
	}
	res.Revisions = revs
	return res, nil
}

// ListDocuments returns documents, all types when documentType is empty.
func (s *appService) ListDocuments(ctx context.Context, documentType string) (*DocumentListResult, error) {
	var dt core.DocumentType
	if documentType != "" {
		var f *Failure
		if dt, f = parseType(documentType); f != nil {
			return &DocumentListResult{Error: f}, nil
		}
	}
	docs, err := s.docs.List(ctx, dt)
	if err != nil {
		f, err := classify(err)
		return &DocumentListResult{Error: f}, err
	}
	if docs == nil {
		docs = []core.Document{}
	}
	return &DocumentListResult{Success: true, Documents: docs}, nil
}


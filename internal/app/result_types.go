package app

import (
	"commercial-docs/internal/core"

	"github.com/shopspring/decimal"
)

// Failure codes carried by results with Success=false.
const (
	CodeValidation        = "VALIDATION_ERROR"
	CodeNegativeStock     = "NEGATIVE_STOCK"
	CodeNotFound          = "NOT_FOUND"
	CodeInvalidTransition = "INVALID_TRANSITION"
)

// Failure describes why an operation was refused.
type Failure struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// TotalsResult is returned by ComputeTotals.
type TotalsResult struct {
	Success bool         `json:"success"`
	Totals  *core.Totals `json:"totals,omitempty"`
	Error   *Failure     `json:"error,omitempty"`
}

// TaxView is the display form of one configured tax.
type TaxView struct {
	ID              int64                `json:"id"`
	Name            string               `json:"name"`
	Kind            core.TaxKind         `json:"kind"`
	Value           decimal.Decimal      `json:"value"`
	Base            core.CalculationBase `json:"calculation_base,omitempty"`
	Order           int                  `json:"order"`
	IsStandard      bool                 `json:"is_standard"`
	Surcharge       bool                 `json:"surcharge"`
	ApplicableTypes []core.DocumentType  `json:"applicable_document_types"`
}

// TaxListResult is returned by ApplicableTaxes.
type TaxListResult struct {
	Success      bool      `json:"success"`
	DocumentType string    `json:"document_type"`
	Taxes        []TaxView `json:"taxes"`
	Error        *Failure  `json:"error,omitempty"`
}

// ConfigurationResult summarizes the active configuration snapshot.
type ConfigurationResult struct {
	Settings core.Settings `json:"settings"`
	Taxes    int           `json:"taxes"`
}

// NumberResult is returned by the numbering operations. Number is the
// allocated number for AllocateNumber and the next one to be issued otherwise.
type NumberResult struct {
	Success bool                 `json:"success"`
	Number  string               `json:"number,omitempty"`
	State   *core.NumberingState `json:"state,omitempty"`
	Error   *Failure             `json:"error,omitempty"`
}

// StockMovementResult is returned by RecordStockMovement. A negative stock
// refusal carries the product and its on-hand quantity.
type StockMovementResult struct {
	Success      bool                `json:"success"`
	Movement     *core.StockMovement `json:"movement,omitempty"`
	Balance      *decimal.Decimal    `json:"balance,omitempty"`
	ProductID    int64               `json:"product_id,omitempty"`
	CurrentStock *decimal.Decimal    `json:"current_stock,omitempty"`
	Error        *Failure            `json:"error,omitempty"`
}

// ReconcileResult is returned by ReconcileStock.
type ReconcileResult struct {
	Success        bool                 `json:"success"`
	Reconciliation *core.Reconciliation `json:"reconciliation,omitempty"`
	Error          *Failure             `json:"error,omitempty"`
}

// StockHistoryResult is returned by StockHistory.
type StockHistoryResult struct {
	Success   bool                 `json:"success"`
	ProductID int64                `json:"product_id"`
	Movements []core.StockMovement `json:"movements"`
	Balance   decimal.Decimal      `json:"balance"`
	Error     *Failure             `json:"error,omitempty"`
}

// ProductListResult is returned by ListProducts.
type ProductListResult struct {
	Products []core.Product `json:"products"`
}

// DocumentResult is returned by document operations. When a line is refused
// by the negative stock policy, ProductID and CurrentStock name the product
// and its on-hand quantity.
type DocumentResult struct {
	Success      bool                    `json:"success"`
	Document     *core.Document          `json:"document,omitempty"`
	Revisions    []core.DocumentRevision `json:"revisions,omitempty"`
	ProductID    int64                   `json:"product_id,omitempty"`
	CurrentStock *decimal.Decimal        `json:"current_stock,omitempty"`
	Error        *Failure                `json:"error,omitempty"`
}

// DocumentListResult is returned by ListDocuments.
type DocumentListResult struct {
	Success   bool            `json:"success"`
	Documents []core.Document `json:"documents"`
	Error     *Failure        `json:"error,omitempty"`
}

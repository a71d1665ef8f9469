// Package cli runs one-shot commands against the ApplicationService. Commands
// that take a document body read it as JSON from the input stream.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"commercial-docs/internal/app"

	"github.com/shopspring/decimal"
)

// ErrUsage is returned for a malformed command line.
var ErrUsage = errors.New("usage")

// RefusedError reports a business failure returned by the service.
type RefusedError struct {
	Failure *app.Failure
}

func (e *RefusedError) Error() string {
	if e.Failure.Field != "" {
		return fmt.Sprintf("%s (%s): %s", e.Failure.Code, e.Failure.Field, e.Failure.Message)
	}
	return fmt.Sprintf("%s: %s", e.Failure.Code, e.Failure.Message)
}

func refused(f *app.Failure) error {
	return &RefusedError{Failure: f}
}

func usage(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUsage, fmt.Sprintf(format, args...))
}

// Usage is the command summary printed by help.
const Usage = `Commands:
  totals                         price a TotalsRequest read from stdin
  taxes <type>                   list taxes applicable to a document type
  reload                         reload settings and the tax catalog
  numbering <type>               show the next number of a type
  allocate <type>                consume the next number of a type
  reset-numbering <type> [year]  reset a counter to its start number
  products                       list products and stock balances
  move <product-id> in|out <qty> [note]
                                 record a manual stock movement
  stock <product-id>             show a product's movement history
  reconcile <product-id>         compare cached and computed stock
  save                           save a SaveDocumentRequest read from stdin
  amend <id>                     replace the lines of a document (JSON lines on stdin)
  transition <id> <status>       change a document status
  convert <id> <type>            derive a facture or bonLivraison
  credit-note <invoice-id>       issue an avoir (JSON lines on stdin)
  show <id>                      show a document and its revisions
  list [type]                    list documents`

// Run executes one command. args[0] is the command name.
func Run(ctx context.Context, svc app.ApplicationService, args []string, in io.Reader, out io.Writer) error {
	if len(args) == 0 {
		return usage("no command given")
	}
	cmd, args := strings.ToLower(args[0]), args[1:]

	switch cmd {
	case "totals":
		var req app.TotalsRequest
		if err := decodeInput(in, &req); err != nil {
			return err
		}
		res, err := svc.ComputeTotals(ctx, req)
		if err != nil {
			return err
		}
		if !res.Success {
			return refused(res.Error)
		}
		printTotals(out, res.Totals)

	case "taxes":
		if len(args) < 1 {
			return usage("taxes <type>")
		}
		res, err := svc.ApplicableTaxes(ctx, args[0])
		if err != nil {
			return err
		}
		if !res.Success {
			return refused(res.Error)
		}
		printTaxes(out, res)

	case "reload":
		res, err := svc.ReloadConfiguration(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Configuration reloaded: %d taxes, %d decimals, negative stock allowed: %t\n",
			res.Taxes, res.Settings.CurrencyDecimals, res.Settings.AllowNegativeStock)

	case "numbering", "allocate":
		if len(args) < 1 {
			return usage("%s <type>", cmd)
		}
		call := svc.NumberingState
		if cmd == "allocate" {
			call = svc.AllocateNumber
		}
		res, err := call(ctx, args[0])
		if err != nil {
			return err
		}
		if !res.Success {
			return refused(res.Error)
		}
		fmt.Fprintln(out, res.Number)

	case "reset-numbering":
		if len(args) < 1 {
			return usage("reset-numbering <type> [year]")
		}
		req := app.ResetNumberingRequest{DocumentType: args[0]}
		if len(args) > 1 {
			year, err := strconv.Atoi(args[1])
			if err != nil {
				return usage("invalid year %q", args[1])
			}
			req.Year = year
		}
		res, err := svc.ResetNumbering(ctx, req)
		if err != nil {
			return err
		}
		if !res.Success {
			return refused(res.Error)
		}
		fmt.Fprintf(out, "Counter %s/%d reset to %d\n", res.State.Type, res.State.Year, res.State.CurrentNumber)

	case "products":
		res, err := svc.ListProducts(ctx)
		if err != nil {
			return err
		}
		printProducts(out, res.Products)

	case "move":
		if len(args) < 3 {
			return usage("move <product-id> in|out <qty> [note]")
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		qty, err := decimal.NewFromString(args[2])
		if err != nil {
			return usage("invalid quantity %q", args[2])
		}
		res, err := svc.RecordStockMovement(ctx, app.StockMovementRequest{
			ProductID: id,
			Direction: strings.ToLower(args[1]),
			Quantity:  qty,
			Note:      strings.Join(args[3:], " "),
		})
		if err != nil {
			return err
		}
		if !res.Success {
			if res.CurrentStock != nil {
				fmt.Fprintf(out, "Current stock: %s\n", res.CurrentStock.String())
			}
			return refused(res.Error)
		}
		fmt.Fprintf(out, "Recorded %s %s of product %d. Balance: %s\n",
			res.Movement.Direction, res.Movement.Quantity.String(), id, res.Balance.String())

	case "stock":
		if len(args) < 1 {
			return usage("stock <product-id>")
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		res, err := svc.StockHistory(ctx, id)
		if err != nil {
			return err
		}
		if !res.Success {
			return refused(res.Error)
		}
		printHistory(out, res)

	case "reconcile":
		if len(args) < 1 {
			return usage("reconcile <product-id>")
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		res, err := svc.ReconcileStock(ctx, id)
		if err != nil {
			return err
		}
		if !res.Success {
			return refused(res.Error)
		}
		r := res.Reconciliation
		fmt.Fprintf(out, "Product %d: cached %s, computed %s, in sync: %t\n",
			r.ProductID, r.Cached.String(), r.Computed.String(), r.InSync)

	case "save":
		var req app.SaveDocumentRequest
		if err := decodeInput(in, &req); err != nil {
			return err
		}
		return document(out)(svc.SaveDocument(ctx, req))

	case "amend", "credit-note":
		if len(args) < 1 {
			return usage("%s <id>", cmd)
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		var lines []app.LineInput
		if err := decodeInput(in, &lines); err != nil {
			return err
		}
		if cmd == "amend" {
			return document(out)(svc.AmendDocument(ctx, app.AmendDocumentRequest{ID: id, Lines: lines}))
		}
		return document(out)(svc.CreateCreditNote(ctx, app.CreditNoteRequest{InvoiceID: id, Lines: lines}))

	case "transition", "convert":
		if len(args) < 2 {
			return usage("%s <id> <target>", cmd)
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		if cmd == "transition" {
			return document(out)(svc.TransitionDocument(ctx, app.TransitionRequest{ID: id, Status: strings.ToUpper(args[1])}))
		}
		return document(out)(svc.ConvertDocument(ctx, app.ConvertRequest{ID: id, DocumentType: args[1]}))

	case "show":
		if len(args) < 1 {
			return usage("show <id>")
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return document(out)(svc.GetDocument(ctx, id))

	case "list":
		var t string
		if len(args) > 0 {
			t = args[0]
		}
		res, err := svc.ListDocuments(ctx, t)
		if err != nil {
			return err
		}
		if !res.Success {
			return refused(res.Error)
		}
		printDocumentList(out, res.Documents)

	case "help":
		fmt.Fprintln(out, Usage)

	default:
		return usage("unknown command %q", cmd)
	}
	return nil
}

// document prints a DocumentResult or turns its failure into an error.
func document(out io.Writer) func(*app.DocumentResult, error) error {
	return func(res *app.DocumentResult, err error) error {
		if err != nil {
			return err
		}
		if !res.Success {
			if res.CurrentStock != nil {
				fmt.Fprintf(out, "Current stock of product %d: %s\n", res.ProductID, res.CurrentStock.String())
			}
			return refused(res.Error)
		}
		printDocument(out, res.Document, res.Revisions)
		return nil
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, usage("invalid id %q", s)
	}
	return id, nil
}

func decodeInput(in io.Reader, v any) error {
	if in == nil {
		return usage("this command reads JSON from stdin")
	}
	dec := json.NewDecoder(in)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

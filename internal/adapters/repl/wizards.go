package repl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"commercial-docs/internal/adapters/cli"
	"commercial-docs/internal/app"

	"github.com/shopspring/decimal"
)

// readLines prompts for document lines until 'done'. It returns false when
// the user cancels or enters nothing.
func (s *session) readLines() ([]app.LineInput, bool) {
	fmt.Fprintln(s.out, "Enter lines. Type 'done' when finished, 'cancel' to abort.")
	fmt.Fprintln(s.out, "Format per line: <product-id> <quantity> [unit-price] [discount-%]")
	fmt.Fprintln(s.out, "  Example: 1 10")
	fmt.Fprintln(s.out, "  Example: 2 1 300.000 5   (overrides the product price, 5% discount)")

	var lines []app.LineInput
	for n := 1; ; {
		fmt.Fprintf(s.out, "  Line %d: ", n)
		raw, err := s.reader.ReadString('\n')
		raw = strings.TrimSpace(raw)
		switch strings.ToLower(raw) {
		case "cancel":
			fmt.Fprintln(s.out, "Cancelled.")
			return nil, false
		case "done":
			err = io.EOF
			raw = ""
		}
		if raw != "" {
			if l, ok := s.parseLine(raw); ok {
				lines = append(lines, l)
				n++
			}
		}
		if err != nil {
			break
		}
	}
	if len(lines) == 0 {
		fmt.Fprintln(s.out, "No lines entered.")
		return nil, false
	}
	return lines, true
}

func (s *session) parseLine(raw string) (app.LineInput, bool) {
	parts := strings.Fields(raw)
	if len(parts) < 2 {
		fmt.Fprintln(s.out, "  Invalid format. Use: <product-id> <quantity> [unit-price] [discount-%]")
		return app.LineInput{}, false
	}
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || id <= 0 {
		fmt.Fprintln(s.out, "  Invalid product id.")
		return app.LineInput{}, false
	}
	qty, err := decimal.NewFromString(parts[1])
	if err != nil || !qty.IsPositive() {
		fmt.Fprintln(s.out, "  Invalid quantity.")
		return app.LineInput{}, false
	}
	l := app.LineInput{ProductID: id, Quantity: qty}
	if len(parts) >= 3 {
		if l.UnitPrice, err = decimal.NewFromString(parts[2]); err != nil || l.UnitPrice.IsNegative() {
			fmt.Fprintln(s.out, "  Invalid price.")
			return app.LineInput{}, false
		}
	}
	if len(parts) >= 4 {
		if l.DiscountPercent, err = decimal.NewFromString(parts[3]); err != nil {
			fmt.Fprintln(s.out, "  Invalid discount.")
			return app.LineInput{}, false
		}
	}
	return l, true
}

func (s *session) prompt(label string) string {
	fmt.Fprint(s.out, label)
	v, _ := s.reader.ReadString('\n')
	return strings.TrimSpace(v)
}

// newDocument runs an interactive document creation session: lines, date,
// preview, then save on confirmation.
func (s *session) newDocument(ctx context.Context, args []string) error {
	req := app.SaveDocumentRequest{DocumentType: args[0]}
	if len(args) > 1 {
		party, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			fmt.Fprintf(s.out, "Invalid party id: %s\n", args[1])
			return nil
		}
		req.PartyID = party
	}
	fmt.Fprintf(s.out, "Creating %s\n", req.DocumentType)

	lines, ok := s.readLines()
	if !ok {
		return nil
	}
	req.Lines = lines
	req.Date = s.prompt("Date (YYYY-MM-DD, leave blank for today): ")
	if group := s.prompt("Tax group id (leave blank for the default taxes): "); group != "" {
		id, err := strconv.ParseInt(group, 10, 64)
		if err != nil {
			fmt.Fprintf(s.out, "Invalid group id: %s\n", group)
			return nil
		}
		req.Selection.GroupID = &id
	}

	preview, err := s.svc.ComputeTotals(ctx, app.TotalsRequest{
		DocumentType: req.DocumentType,
		Selection:    req.Selection,
		Lines:        req.Lines,
	})
	if err != nil {
		return err
	}
	if !preview.Success {
		return &cli.RefusedError{Failure: preview.Error}
	}
	fmt.Fprintf(s.out, "Preview: HT %s, taxes %s, TTC %s\n",
		preview.Totals.NetTotal.String(), preview.Totals.TaxTotal.String(), preview.Totals.GrandTotal.String())

	choice := strings.ToLower(s.prompt("Save this document? (y/n): "))
	if choice != "y" && choice != "yes" {
		fmt.Fprintln(s.out, "Not saved.")
		return nil
	}

	body, err := json.Marshal(req)
	if err != nil {
		return err
	}
	return cli.Run(ctx, s.svc, []string{"save"}, bytes.NewReader(body), s.out)
}

func linesJSON(lines []app.LineInput) io.Reader {
	body, _ := json.Marshal(lines)
	return bytes.NewReader(body)
}

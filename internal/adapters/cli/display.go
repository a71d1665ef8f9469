package cli

import (
	"fmt"
	"io"
	"strings"

	"commercial-docs/internal/app"
	"commercial-docs/internal/core"
)

func printTotals(w io.Writer, t *core.Totals) {
	fmt.Fprintln(w, strings.Repeat("-", 72))
	fmt.Fprintf(w, "  %-4s %-28s %10s %12s %12s\n", "LINE", "DESCRIPTION", "QTY", "UNIT", "NET")
	for _, l := range t.Lines {
		fmt.Fprintf(w, "  %-4d %-28s %10s %12s %12s\n",
			l.LineID, truncate(l.Description, 28), l.Quantity.String(),
			core.FormatAmount(l.UnitPrice, t.Decimals), core.FormatAmount(l.NetAmount, t.Decimals))
	}
	fmt.Fprintln(w, strings.Repeat("-", 72))
	fmt.Fprintf(w, "  %-56s %12s\n", "Total HT", core.FormatAmount(t.NetTotal, t.Decimals))
	for _, b := range t.Breakdown {
		fmt.Fprintf(w, "  %-56s %12s\n", b.Name, core.FormatAmount(b.Amount, t.Decimals))
	}
	fmt.Fprintf(w, "  %-56s %12s\n", "Total TTC", core.FormatAmount(t.GrandTotal, t.Decimals))
}

func printTaxes(w io.Writer, res *app.TaxListResult) {
	fmt.Fprintf(w, "Taxes for %s:\n", res.DocumentType)
	if len(res.Taxes) == 0 {
		fmt.Fprintln(w, "  none")
		return
	}
	fmt.Fprintf(w, "  %-4s %-20s %-12s %10s %-26s %s\n", "ID", "NAME", "KIND", "VALUE", "BASE", "STANDARD")
	for _, t := range res.Taxes {
		fmt.Fprintf(w, "  %-4d %-20s %-12s %10s %-26s %t\n",
			t.ID, truncate(t.Name, 20), t.Kind, t.Value.String(), t.Base, t.IsStandard)
	}
}

func printProducts(w io.Writer, products []core.Product) {
	fmt.Fprintf(w, "  %-4s %-10s %-28s %12s %10s\n", "ID", "CODE", "NAME", "PRICE", "STOCK")
	for _, p := range products {
		stock := "-"
		if p.TracksStock {
			stock = p.StockBalance.String()
		}
		fmt.Fprintf(w, "  %-4d %-10s %-28s %12s %10s\n", p.ID, p.Code, truncate(p.Name, 28), p.UnitPrice.String(), stock)
	}
}

func printHistory(w io.Writer, res *app.StockHistoryResult) {
	fmt.Fprintf(w, "Product %d, balance %s\n", res.ProductID, res.Balance.String())
	for _, m := range res.Movements {
		origin := "manual"
		if !m.Origin.Manual() {
			origin = fmt.Sprintf("%s line %d rev %d", m.Origin.DocumentNumber, m.Origin.LineID, m.Origin.Revision)
		}
		fmt.Fprintf(w, "  %s  %-3s %10s  %s\n", m.Date.Format("2006-01-02"), m.Direction, m.Quantity.String(), origin)
	}
}

func printDocument(w io.Writer, d *core.Document, revisions []core.DocumentRevision) {
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintf(w, "  %s %s (id %d)  %s  rev %d\n", d.Type, d.Number, d.ID, d.Status, d.Revision)
	fmt.Fprintf(w, "  Date: %s", d.Date.Format("2006-01-02"))
	if d.DueDate != nil {
		fmt.Fprintf(w, "  Due: %s", d.DueDate.Format("2006-01-02"))
	}
	if d.SourceDocumentID != nil {
		fmt.Fprintf(w, "  Source: %d", *d.SourceDocumentID)
	}
	fmt.Fprintln(w)
	printTotals(w, &core.Totals{
		Lines:      d.Lines,
		Decimals:   d.Decimals,
		NetTotal:   d.NetTotal,
		Breakdown:  d.Breakdown,
		TaxTotal:   d.TaxTotal,
		GrandTotal: d.GrandTotal,
	})
	for _, r := range revisions {
		fmt.Fprintf(w, "  rev %d  %-16s %12s  %s\n",
			r.Revision, r.Status, core.FormatAmount(r.GrandTotal, d.Decimals), r.CreatedAt.Format("2006-01-02 15:04"))
	}
}

func printDocumentList(w io.Writer, docs []core.Document) {
	if len(docs) == 0 {
		fmt.Fprintln(w, "No documents.")
		return
	}
	fmt.Fprintf(w, "  %-4s %-20s %-18s %-16s %-10s %12s\n", "ID", "NUMBER", "TYPE", "STATUS", "DATE", "TOTAL")
	for _, d := range docs {
		fmt.Fprintf(w, "  %-4d %-20s %-18s %-16s %-10s %12s\n",
			d.ID, d.Number, d.Type, d.Status, d.Date.Format("2006-01-02"), core.FormatAmount(d.GrandTotal, d.Decimals))
	}
}

func truncate(s string, n int) string {
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-1]) + "…"
}

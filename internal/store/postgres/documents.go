package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"commercial-docs/internal/core"

	"github.com/jackc/pgx/v5"
)

type documentRepo struct{ tx pgx.Tx }

const documentColumns = `id, document_type, number, document_date, due_date, party_id, source_document_id,
	tax_group_id, tax_ids, decimals, net_total, tax_breakdown, tax_total, grand_total,
	status, revision, created_at, updated_at`

func (r documentRepo) Insert(ctx context.Context, d *core.Document) error {
	breakdown, err := json.Marshal(d.Breakdown)
	if err != nil {
		return fmt.Errorf("failed to encode tax breakdown: %w", err)
	}
	taxIDs := d.Selection.TaxIDs
	if taxIDs == nil {
		taxIDs = []int64{}
	}
	err = r.tx.QueryRow(ctx, `
		INSERT INTO documents (document_type, number, document_date, due_date, party_id, source_document_id,
			tax_group_id, tax_ids, decimals, net_total, tax_breakdown, tax_total, grand_total,
			status, revision, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING id
	`, string(d.Type), d.Number, d.Date, d.DueDate, d.PartyID, d.SourceDocumentID,
		d.Selection.GroupID, taxIDs, d.Decimals, d.NetTotal, breakdown, d.TaxTotal, d.GrandTotal,
		string(d.Status), d.Revision, d.CreatedAt, d.UpdatedAt,
	).Scan(&d.ID)
	if err != nil {
		return wrap("insert document "+d.Number, err)
	}
	return r.insertLines(ctx, d)
}

func (r documentRepo) insertLines(ctx context.Context, d *core.Document) error {
	for i, l := range d.Lines {
		_, err := r.tx.Exec(ctx, `
			INSERT INTO document_lines (document_id, line_id, position, product_id, description,
				quantity, unit_price, discount_percent, net_amount, tax_amount, gross_amount)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`, d.ID, l.LineID, i, l.ProductID, l.Description,
			l.Quantity, l.UnitPrice, l.DiscountPercent, l.NetAmount, l.TaxAmount, l.GrossAmount)
		if err != nil {
			return wrap(fmt.Sprintf("insert line %d of %s", l.LineID, d.Number), err)
		}
	}
	return nil
}

func (r documentRepo) Update(ctx context.Context, d *core.Document) error {
	breakdown, err := json.Marshal(d.Breakdown)
	if err != nil {
		return fmt.Errorf("failed to encode tax breakdown: %w", err)
	}
	tag, err := r.tx.Exec(ctx, `
		UPDATE documents
		SET due_date = $2, decimals = $3, net_total = $4, tax_breakdown = $5, tax_total = $6,
		    grand_total = $7, status = $8, revision = $9, updated_at = $10
		WHERE id = $1
	`, d.ID, d.DueDate, d.Decimals, d.NetTotal, breakdown, d.TaxTotal,
		d.GrandTotal, string(d.Status), d.Revision, d.UpdatedAt)
	if err != nil {
		return wrap("update document "+d.Number, err)
	}
	if tag.RowsAffected() == 0 {
		return wrap("update document "+d.Number, pgx.ErrNoRows)
	}
	if _, err := r.tx.Exec(ctx, "DELETE FROM document_lines WHERE document_id = $1", d.ID); err != nil {
		return wrap("replace lines of "+d.Number, err)
	}
	return r.insertLines(ctx, d)
}

func scanDocument(row pgx.Row) (*core.Document, error) {
	var (
		d         core.Document
		docType   string
		status    string
		breakdown []byte
	)
	err := row.Scan(&d.ID, &docType, &d.Number, &d.Date, &d.DueDate, &d.PartyID, &d.SourceDocumentID,
		&d.Selection.GroupID, &d.Selection.TaxIDs, &d.Decimals, &d.NetTotal, &breakdown, &d.TaxTotal, &d.GrandTotal,
		&status, &d.Revision, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	d.Type = core.DocumentType(docType)
	d.Status = core.DocumentStatus(status)
	if len(d.Selection.TaxIDs) == 0 {
		d.Selection.TaxIDs = nil
	}
	if err := json.Unmarshal(breakdown, &d.Breakdown); err != nil {
		return nil, fmt.Errorf("failed to decode tax breakdown of %s: %w", d.Number, err)
	}
	return &d, nil
}

// Get locks the document row for the rest of the transaction.
func (r documentRepo) Get(ctx context.Context, id int64) (*core.Document, error) {
	d, err := scanDocument(r.tx.QueryRow(ctx, "SELECT "+documentColumns+" FROM documents WHERE id = $1 FOR UPDATE", id))
	if err != nil {
		return nil, wrap(fmt.Sprintf("read document %d", id), err)
	}
	docs := []core.Document{*d}
	if err := r.loadLines(ctx, docs); err != nil {
		return nil, err
	}
	return &docs[0], nil
}

func (r documentRepo) query(ctx context.Context, op, where string, args ...any) ([]core.Document, error) {
	rows, err := r.tx.Query(ctx, "SELECT "+documentColumns+" FROM documents "+where+" ORDER BY id", args...)
	if err != nil {
		return nil, wrap(op, err)
	}
	var docs []core.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			rows.Close()
			return nil, wrap(op, err)
		}
		docs = append(docs, *d)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, wrap(op, err)
	}
	if err := r.loadLines(ctx, docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (r documentRepo) List(ctx context.Context, t core.DocumentType) ([]core.Document, error) {
	if t == "" {
		return r.query(ctx, "list documents", "")
	}
	return r.query(ctx, "list documents", "WHERE document_type = $1", string(t))
}

func (r documentRepo) ListBySource(ctx context.Context, sourceID int64) ([]core.Document, error) {
	return r.query(ctx, fmt.Sprintf("list documents derived from %d", sourceID), "WHERE source_document_id = $1", sourceID)
}

// loadLines fills the lines of docs with one query.
func (r documentRepo) loadLines(ctx context.Context, docs []core.Document) error {
	if len(docs) == 0 {
		return nil
	}
	ids := make([]int64, len(docs))
	index := make(map[int64]int, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
		index[d.ID] = i
	}

	rows, err := r.tx.Query(ctx, `
		SELECT document_id, line_id, product_id, description, quantity, unit_price,
		       discount_percent, net_amount, tax_amount, gross_amount
		FROM document_lines
		WHERE document_id = ANY($1)
		ORDER BY document_id, position
	`, ids)
	if err != nil {
		return wrap("query document lines", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			docID int64
			l     core.DocumentLine
		)
		if err := rows.Scan(&docID, &l.LineID, &l.ProductID, &l.Description, &l.Quantity, &l.UnitPrice,
			&l.DiscountPercent, &l.NetAmount, &l.TaxAmount, &l.GrossAmount); err != nil {
			return wrap("scan document line", err)
		}
		i := index[docID]
		docs[i].Lines = append(docs[i].Lines, l)
	}
	return wrap("read document lines", rows.Err())
}

func (r documentRepo) AppendRevision(ctx context.Context, rev core.DocumentRevision) error {
	lines, err := json.Marshal(rev.Lines)
	if err != nil {
		return fmt.Errorf("failed to encode revision lines: %w", err)
	}
	breakdown, err := json.Marshal(rev.Breakdown)
	if err != nil {
		return fmt.Errorf("failed to encode revision breakdown: %w", err)
	}
	_, err = r.tx.Exec(ctx, `
		INSERT INTO document_revisions (document_id, revision, status, lines, net_total, tax_breakdown,
			tax_total, grand_total, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, rev.DocumentID, rev.Revision, string(rev.Status), lines, rev.NetTotal, breakdown,
		rev.TaxTotal, rev.GrandTotal, rev.CreatedAt)
	return wrap(fmt.Sprintf("append revision %d of document %d", rev.Revision, rev.DocumentID), err)
}

func (r documentRepo) Revisions(ctx context.Context, documentID int64) ([]core.DocumentRevision, error) {
	rows, err := r.tx.Query(ctx, `
		SELECT document_id, revision, status, lines, net_total, tax_breakdown, tax_total, grand_total, created_at
		FROM document_revisions
		WHERE document_id = $1
		ORDER BY revision
	`, documentID)
	if err != nil {
		return nil, wrap("query document revisions", err)
	}
	defer rows.Close()

	var out []core.DocumentRevision
	for rows.Next() {
		var (
			rev              core.DocumentRevision
			status           string
			lines, breakdown []byte
		)
		if err := rows.Scan(&rev.DocumentID, &rev.Revision, &status, &lines, &rev.NetTotal, &breakdown,
			&rev.TaxTotal, &rev.GrandTotal, &rev.CreatedAt); err != nil {
			return nil, wrap("scan document revision", err)
		}
		rev.Status = core.DocumentStatus(status)
		if err := json.Unmarshal(lines, &rev.Lines); err != nil {
			return nil, fmt.Errorf("failed to decode revision lines: %w", err)
		}
		if err := json.Unmarshal(breakdown, &rev.Breakdown); err != nil {
			return nil, fmt.Errorf("failed to decode revision breakdown: %w", err)
		}
		out = append(out, rev)
	}
	return out, wrap("read document revisions", rows.Err())
}

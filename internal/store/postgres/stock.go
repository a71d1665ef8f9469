package postgres

import (
	"context"
	"fmt"

	"commercial-docs/internal/core"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type stockRepo struct{ tx pgx.Tx }

const movementColumns = `id, product_id, direction, quantity, movement_date,
	document_type, document_id, document_number, line_id, revision, note, created_at`

func nullable[T comparable](v T) *T {
	var zero T
	if v == zero {
		return nil
	}
	return &v
}

func (r stockRepo) Append(ctx context.Context, m core.StockMovement) error {
	o := m.Origin
	var docType, docNumber *string
	var docID *int64
	var lineID, revision *int
	if !o.Manual() {
		docType = nullable(string(o.DocumentType))
		docID = &o.DocumentID
		docNumber = nullable(o.DocumentNumber)
		lineID = &o.LineID
		revision = &o.Revision
	}
	_, err := r.tx.Exec(ctx, `
		INSERT INTO stock_movements (`+movementColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, m.ID, m.ProductID, string(m.Direction), m.Quantity, m.Date,
		docType, docID, docNumber, lineID, revision, m.Note, m.CreatedAt)
	return wrap("append stock movement", err)
}

func scanMovements(rows pgx.Rows) ([]core.StockMovement, error) {
	defer rows.Close()
	var out []core.StockMovement
	for rows.Next() {
		var (
			m         core.StockMovement
			direction string
			docType   *string
			docID     *int64
			docNumber *string
			lineID    *int
			revision  *int
		)
		if err := rows.Scan(&m.ID, &m.ProductID, &direction, &m.Quantity, &m.Date,
			&docType, &docID, &docNumber, &lineID, &revision, &m.Note, &m.CreatedAt); err != nil {
			return nil, wrap("scan stock movement", err)
		}
		m.Direction = core.Direction(direction)
		if docType != nil {
			m.Origin.DocumentType = core.DocumentType(*docType)
		}
		if docID != nil {
			m.Origin.DocumentID = *docID
		}
		if docNumber != nil {
			m.Origin.DocumentNumber = *docNumber
		}
		if lineID != nil {
			m.Origin.LineID = *lineID
		}
		if revision != nil {
			m.Origin.Revision = *revision
		}
		out = append(out, m)
	}
	return out, wrap("read stock movements", rows.Err())
}

func (r stockRepo) History(ctx context.Context, productID int64) ([]core.StockMovement, error) {
	rows, err := r.tx.Query(ctx,
		"SELECT "+movementColumns+" FROM stock_movements WHERE product_id = $1 ORDER BY seq",
		productID)
	if err != nil {
		return nil, wrap(fmt.Sprintf("query stock history of product %d", productID), err)
	}
	return scanMovements(rows)
}

func (r stockRepo) Sum(ctx context.Context, productID int64) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.tx.QueryRow(ctx, `
		SELECT COALESCE(SUM(CASE direction WHEN 'in' THEN quantity ELSE -quantity END), 0)
		FROM stock_movements
		WHERE product_id = $1
	`, productID).Scan(&sum)
	if err != nil {
		return decimal.Zero, wrap(fmt.Sprintf("sum stock movements of product %d", productID), err)
	}
	return sum, nil
}

func (r stockRepo) ForDocument(ctx context.Context, t core.DocumentType, documentID int64) ([]core.StockMovement, error) {
	rows, err := r.tx.Query(ctx,
		"SELECT "+movementColumns+" FROM stock_movements WHERE document_type = $1 AND document_id = $2 ORDER BY seq",
		string(t), documentID)
	if err != nil {
		return nil, wrap(fmt.Sprintf("query stock movements of %s %d", t, documentID), err)
	}
	return scanMovements(rows)
}

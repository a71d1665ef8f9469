package postgres

import (
	"context"
	"fmt"

	"commercial-docs/internal/core"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type productRepo struct{ tx pgx.Tx }

func (r productRepo) Get(ctx context.Context, id int64) (*core.Product, error) {
	var p core.Product
	err := r.tx.QueryRow(ctx,
		"SELECT id, code, name, unit_price, tracks_stock, stock_balance FROM products WHERE id = $1",
		id,
	).Scan(&p.ID, &p.Code, &p.Name, &p.UnitPrice, &p.TracksStock, &p.StockBalance)
	if err != nil {
		return nil, wrap(fmt.Sprintf("read product %d", id), err)
	}
	return &p, nil
}

func (r productRepo) List(ctx context.Context) ([]core.Product, error) {
	rows, err := r.tx.Query(ctx, "SELECT id, code, name, unit_price, tracks_stock, stock_balance FROM products ORDER BY id")
	if err != nil {
		return nil, wrap("query products", err)
	}
	defer rows.Close()

	var out []core.Product
	for rows.Next() {
		var p core.Product
		if err := rows.Scan(&p.ID, &p.Code, &p.Name, &p.UnitPrice, &p.TracksStock, &p.StockBalance); err != nil {
			return nil, wrap("scan product", err)
		}
		out = append(out, p)
	}
	return out, wrap("read products", rows.Err())
}

func (r productRepo) LockBalance(ctx context.Context, id int64) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := r.tx.QueryRow(ctx, "SELECT stock_balance FROM products WHERE id = $1 FOR UPDATE", id).Scan(&balance)
	if err != nil {
		return decimal.Zero, wrap(fmt.Sprintf("lock product %d", id), err)
	}
	return balance, nil
}

func (r productRepo) SetBalance(ctx context.Context, id int64, balance decimal.Decimal) error {
	tag, err := r.tx.Exec(ctx, "UPDATE products SET stock_balance = $1 WHERE id = $2", balance, id)
	if err != nil {
		return wrap(fmt.Sprintf("update balance of product %d", id), err)
	}
	if tag.RowsAffected() == 0 {
		return wrap(fmt.Sprintf("update balance of product %d", id), pgx.ErrNoRows)
	}
	return nil
}

package postgres

import (
	"context"
	"fmt"

	"commercial-docs/internal/store/seed"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Truncate removes every document, movement and configuration row. The
// movement immutability trigger is row-level, so TRUNCATE bypasses it.
func Truncate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		TRUNCATE TABLE stock_movements, document_revisions, document_lines, documents,
			numbering_counters, numbering_settings, tax_group_members, tax_groups, taxes,
			products, settings RESTART IDENTITY CASCADE
	`)
	if err != nil {
		return fmt.Errorf("failed to truncate tables: %w", err)
	}
	return nil
}

// Seed upserts d in one transaction. Existing stock balances are kept.
func Seed(ctx context.Context, pool *pgxpool.Pool, d seed.Data) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for k, v := range d.Settings {
		if _, err := tx.Exec(ctx, `
			INSERT INTO settings (key, value) VALUES ($1, $2)
			ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
		`, k, v); err != nil {
			return fmt.Errorf("failed to seed setting %s: %w", k, err)
		}
	}

	for _, t := range d.Taxes {
		if _, err := tx.Exec(ctx, `
			INSERT INTO taxes (id, name, kind, value, calculation_base, applicable_document_types,
				sort_order, active, is_standard, surcharge, schema_version)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name, kind = EXCLUDED.kind, value = EXCLUDED.value,
				calculation_base = EXCLUDED.calculation_base,
				applicable_document_types = EXCLUDED.applicable_document_types,
				sort_order = EXCLUDED.sort_order, active = EXCLUDED.active,
				is_standard = EXCLUDED.is_standard, surcharge = EXCLUDED.surcharge,
				schema_version = EXCLUDED.schema_version
		`, t.ID, t.Name, t.Kind, t.Value, t.CalculationBase, t.ApplicableTypes,
			t.Order, t.Active, t.IsStandard, t.Surcharge, t.SchemaVersion); err != nil {
			return fmt.Errorf("failed to seed tax %d: %w", t.ID, err)
		}
	}

	for _, g := range d.Groups {
		if _, err := tx.Exec(ctx, `
			INSERT INTO tax_groups (id, name, description, active) VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name, description = EXCLUDED.description, active = EXCLUDED.active
		`, g.ID, g.Name, g.Description, g.Active); err != nil {
			return fmt.Errorf("failed to seed tax group %d: %w", g.ID, err)
		}
		if _, err := tx.Exec(ctx, "DELETE FROM tax_group_members WHERE group_id = $1", g.ID); err != nil {
			return fmt.Errorf("failed to clear members of tax group %d: %w", g.ID, err)
		}
		for _, m := range g.Members {
			if _, err := tx.Exec(ctx, `
				INSERT INTO tax_group_members (group_id, tax_id, order_in_group, base_override)
				VALUES ($1, $2, $3, $4)
			`, g.ID, m.TaxID, m.OrderInGroup, m.BaseOverride); err != nil {
				return fmt.Errorf("failed to seed member %d of tax group %d: %w", m.TaxID, g.ID, err)
			}
		}
	}

	for _, ns := range d.Numbering {
		if _, err := tx.Exec(ctx, `
			INSERT INTO numbering_settings (document_type, prefix, start_number, include_year)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (document_type) DO UPDATE SET
				prefix = EXCLUDED.prefix, start_number = EXCLUDED.start_number,
				include_year = EXCLUDED.include_year
		`, string(ns.Type), ns.Prefix, ns.StartNumber, ns.IncludeYear); err != nil {
			return fmt.Errorf("failed to seed numbering for %s: %w", ns.Type, err)
		}
	}

	for _, p := range d.Products {
		if _, err := tx.Exec(ctx, `
			INSERT INTO products (id, code, name, unit_price, tracks_stock, stock_balance)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO UPDATE SET
				code = EXCLUDED.code, name = EXCLUDED.name, unit_price = EXCLUDED.unit_price,
				tracks_stock = EXCLUDED.tracks_stock
		`, p.ID, p.Code, p.Name, p.UnitPrice, p.TracksStock, p.StockBalance); err != nil {
			return fmt.Errorf("failed to seed product %s: %w", p.Code, err)
		}
	}

	if err := resyncSequences(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// resyncSequences moves identity sequences past the explicit ids just seeded.
func resyncSequences(ctx context.Context, tx pgx.Tx) error {
	for _, table := range []string{"taxes", "tax_groups", "products"} {
		_, err := tx.Exec(ctx, fmt.Sprintf(
			"SELECT setval(pg_get_serial_sequence('%[1]s', 'id'), COALESCE((SELECT MAX(id) FROM %[1]s), 0) + 1, false)",
			table))
		if err != nil {
			return fmt.Errorf("failed to resync %s id sequence: %w", table, err)
		}
	}
	return nil
}

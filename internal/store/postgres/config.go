package postgres

import (
	"context"

	"commercial-docs/internal/core"

	"github.com/jackc/pgx/v5"
)

type configRepo struct{ tx pgx.Tx }

func (r configRepo) Settings(ctx context.Context) (map[string]string, error) {
	rows, err := r.tx.Query(ctx, "SELECT key, value FROM settings")
	if err != nil {
		return nil, wrap("query settings", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, wrap("scan setting", err)
		}
		out[k] = v
	}
	return out, wrap("read settings", rows.Err())
}

func (r configRepo) TaxRecords(ctx context.Context) ([]core.TaxRecord, error) {
	rows, err := r.tx.Query(ctx, `
		SELECT id, name, kind, value, calculation_base, applicable_document_types,
		       sort_order, active, is_standard, surcharge, schema_version
		FROM taxes
		ORDER BY id
	`)
	if err != nil {
		return nil, wrap("query taxes", err)
	}
	defer rows.Close()

	var out []core.TaxRecord
	for rows.Next() {
		var t core.TaxRecord
		if err := rows.Scan(&t.ID, &t.Name, &t.Kind, &t.Value, &t.CalculationBase, &t.ApplicableTypes,
			&t.Order, &t.Active, &t.IsStandard, &t.Surcharge, &t.SchemaVersion); err != nil {
			return nil, wrap("scan tax", err)
		}
		out = append(out, t)
	}
	return out, wrap("read taxes", rows.Err())
}

func (r configRepo) TaxGroupRecords(ctx context.Context) ([]core.TaxGroupRecord, error) {
	rows, err := r.tx.Query(ctx, "SELECT id, name, description, active FROM tax_groups ORDER BY id")
	if err != nil {
		return nil, wrap("query tax groups", err)
	}
	var groups []core.TaxGroupRecord
	index := make(map[int64]int)
	for rows.Next() {
		var g core.TaxGroupRecord
		if err := rows.Scan(&g.ID, &g.Name, &g.Description, &g.Active); err != nil {
			rows.Close()
			return nil, wrap("scan tax group", err)
		}
		index[g.ID] = len(groups)
		groups = append(groups, g)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, wrap("read tax groups", err)
	}

	rows, err = r.tx.Query(ctx, `
		SELECT group_id, tax_id, order_in_group, base_override
		FROM tax_group_members
		ORDER BY group_id, order_in_group, tax_id
	`)
	if err != nil {
		return nil, wrap("query tax group members", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			groupID int64
			m       core.TaxGroupMemberRecord
		)
		if err := rows.Scan(&groupID, &m.TaxID, &m.OrderInGroup, &m.BaseOverride); err != nil {
			return nil, wrap("scan tax group member", err)
		}
		if i, ok := index[groupID]; ok {
			groups[i].Members = append(groups[i].Members, m)
		}
	}
	return groups, wrap("read tax group members", rows.Err())
}

func (r configRepo) NumberingSettings(ctx context.Context, t core.DocumentType) (core.NumberingSettings, error) {
	ns := core.NumberingSettings{Type: t}
	err := r.tx.QueryRow(ctx,
		"SELECT prefix, start_number, include_year FROM numbering_settings WHERE document_type = $1",
		string(t),
	).Scan(&ns.Prefix, &ns.StartNumber, &ns.IncludeYear)
	if err != nil {
		return core.NumberingSettings{}, wrap("read numbering settings for "+string(t), err)
	}
	return ns, nil
}

package postgres

import (
	"context"

	"commercial-docs/internal/core"

	"github.com/jackc/pgx/v5"
)

type numberingRepo struct{ tx pgx.Tx }

// Next is one upsert: the first allocation stores start+1 and returns start,
// later ones increment under the row lock the upsert takes.
func (r numberingRepo) Next(ctx context.Context, t core.DocumentType, year int, start int64) (int64, error) {
	var n int64
	err := r.tx.QueryRow(ctx, `
		INSERT INTO numbering_counters (document_type, year, current_number)
		VALUES ($1, $2, $3::bigint + 1)
		ON CONFLICT (document_type, year)
		DO UPDATE SET current_number = numbering_counters.current_number + 1, updated_at = NOW()
		RETURNING current_number - 1
	`, string(t), year, start).Scan(&n)
	if err != nil {
		return 0, wrap("advance numbering counter", err)
	}
	return n, nil
}

func (r numberingRepo) Reset(ctx context.Context, t core.DocumentType, year int, start int64) error {
	_, err := r.tx.Exec(ctx, `
		INSERT INTO numbering_counters (document_type, year, current_number)
		VALUES ($1, $2, $3)
		ON CONFLICT (document_type, year)
		DO UPDATE SET current_number = EXCLUDED.current_number, updated_at = NOW()
	`, string(t), year, start)
	return wrap("reset numbering counter", err)
}

func (r numberingRepo) State(ctx context.Context, t core.DocumentType, year int) (core.NumberingState, error) {
	st := core.NumberingState{Type: t, Year: year}
	err := r.tx.QueryRow(ctx,
		"SELECT current_number FROM numbering_counters WHERE document_type = $1 AND year = $2",
		string(t), year,
	).Scan(&st.CurrentNumber)
	if err != nil {
		return core.NumberingState{}, wrap("read numbering counter", err)
	}
	return st, nil
}

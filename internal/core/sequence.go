package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// SequenceAllocator hands out externally visible document numbers. It holds
// no state of its own: counters live in the store and are advanced inside the
// caller's transaction, so a rolled back save never consumes a number.
type SequenceAllocator struct {
	logger zerolog.Logger
}

// NewSequenceAllocator constructs a SequenceAllocator.
func NewSequenceAllocator(logger zerolog.Logger) *SequenceAllocator {
	return &SequenceAllocator{logger: logger.With().Str("component", "sequence").Logger()}
}

// FormatNumber renders prefix[-year]-NNN. Numbers wider than three digits are
// printed in full.
func FormatNumber(ns NumberingSettings, year int, n int64) string {
	var b strings.Builder
	b.WriteString(ns.Prefix)
	if ns.IncludeYear {
		fmt.Fprintf(&b, "-%d", year)
	}
	fmt.Fprintf(&b, "-%03d", n)
	return b.String()
}

// Settings returns the numbering scheme of t, falling back to the type's
// default prefix when the configuration row is missing or malformed.
func (a *SequenceAllocator) Settings(ctx context.Context, tx Tx, t DocumentType) (NumberingSettings, error) {
	ns, err := tx.Config().NumberingSettings(ctx, t)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return NumberingSettings{}, err
		}
		a.logger.Warn().Err(configErr("numbering "+string(t), "no numbering settings")).
			Str("document_type", string(t)).Msg("using default numbering")
		return defaultNumbering(t), nil
	}
	if strings.TrimSpace(ns.Prefix) == "" || ns.StartNumber < 0 {
		a.logger.Warn().Err(configErr("numbering "+string(t), "invalid prefix %q or start %d", ns.Prefix, ns.StartNumber)).
			Str("document_type", string(t)).Msg("using default numbering")
		fallback := defaultNumbering(t)
		fallback.IncludeYear = ns.IncludeYear
		return fallback, nil
	}
	ns.Type = t
	return ns, nil
}

func defaultNumbering(t DocumentType) NumberingSettings {
	return NumberingSettings{Type: t, Prefix: t.defaultPrefix(), StartNumber: 1}
}

func counterYear(ns NumberingSettings, at time.Time) int {
	if ns.IncludeYear {
		return at.Year()
	}
	return 0
}

// Next allocates the next number for t inside tx. at selects the counter year
// when the type includes the year in its numbers.
func (a *SequenceAllocator) Next(ctx context.Context, tx Tx, t DocumentType, at time.Time) (string, error) {
	if !t.Valid() {
		return "", invalid("document_type", "unknown document type %q", t)
	}
	ns, err := a.Settings(ctx, tx, t)
	if err != nil {
		return "", err
	}
	year := counterYear(ns, at)

	n, err := tx.Numbering().Next(ctx, t, year, ns.StartNumber)
	if err != nil {
		return "", fmt.Errorf("failed to allocate %s number: %w", t, err)
	}

	number := FormatNumber(ns, year, n)
	a.logger.Debug().Str("document_type", string(t)).Int("year", year).Int64("sequence", n).
		Str("number", number).Msg("number allocated")
	return number, nil
}

// Reset is the administrative operation that puts the counter of (t, year)
// back to the configured start number. Ordinary saves never call it.
func (a *SequenceAllocator) Reset(ctx context.Context, tx Tx, t DocumentType, year int) error {
	if !t.Valid() {
		return invalid("document_type", "unknown document type %q", t)
	}
	ns, err := a.Settings(ctx, tx, t)
	if err != nil {
		return err
	}
	if !ns.IncludeYear {
		year = 0
	}
	if err := tx.Numbering().Reset(ctx, t, year, ns.StartNumber); err != nil {
		return fmt.Errorf("failed to reset %s numbering: %w", t, err)
	}
	a.logger.Info().Str("document_type", string(t)).Int("year", year).Int64("start", ns.StartNumber).
		Msg("numbering reset")
	return nil
}

// State returns the counter of t for the year of at. A counter that never
// issued a number reports the configured start.
func (a *SequenceAllocator) State(ctx context.Context, tx Tx, t DocumentType, at time.Time) (NumberingState, error) {
	if !t.Valid() {
		return NumberingState{}, invalid("document_type", "unknown document type %q", t)
	}
	ns, err := a.Settings(ctx, tx, t)
	if err != nil {
		return NumberingState{}, err
	}
	year := counterYear(ns, at)
	st, err := tx.Numbering().State(ctx, t, year)
	if errors.Is(err, ErrNotFound) {
		return NumberingState{Type: t, Year: year, CurrentNumber: ns.StartNumber}, nil
	}
	if err != nil {
		return NumberingState{}, err
	}
	return st, nil
}

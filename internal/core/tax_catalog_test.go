package core_test

import (
	"errors"
	"testing"

	"commercial-docs/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestLoadCatalog_MigratesVersionOneRecords(t *testing.T) {
	catalog, problems := core.LoadCatalog([]core.TaxRecord{
		{ID: 1, Name: "TVA", Kind: "percentage", Value: dec("19"), Order: 1, Active: true},
	}, nil)

	assert.Empty(t, problems)
	tax, ok := catalog.Tax(1)
	require.True(t, ok)
	assert.True(t, tax.IsStandard)
	assert.ElementsMatch(t, core.AllDocumentTypes(), tax.ApplicableTypes)
	base, ok := tax.Base()
	require.True(t, ok)
	assert.Equal(t, core.BaseTotalHT, base)
}

func TestLoadCatalog_ReportsMalformedRecords(t *testing.T) {
	catalog, problems := core.LoadCatalog([]core.TaxRecord{
		{ID: 1, Name: "Bad kind", Kind: "magic", Value: dec("1"), Active: true, SchemaVersion: 2, ApplicableTypes: ptr("facture")},
		{ID: 2, Name: "Negative", Kind: "fixed", Value: dec("-1"), Active: true, SchemaVersion: 2, ApplicableTypes: ptr("facture")},
		{ID: 3, Name: "No types", Kind: "fixed", Value: dec("1"), Active: true, SchemaVersion: 2},
		{ID: 4, Name: "Future", Kind: "fixed", Value: dec("1"), Active: true, SchemaVersion: 9},
	}, []core.TaxGroupRecord{
		{ID: 1, Name: "Broken", Active: true, Members: []core.TaxGroupMemberRecord{{TaxID: 99, OrderInGroup: 1}}},
	})

	require.Len(t, problems, 5)
	for _, p := range problems {
		var cerr *core.ConfigurationError
		assert.True(t, errors.As(p, &cerr), "%v", p)
	}
	assert.Equal(t, 1, catalog.Len())
	assert.Empty(t, catalog.ApplicableTaxes(core.Facture))
}

func TestApplicableTaxes_OrderAndFilter(t *testing.T) {
	catalog, problems := core.LoadCatalog([]core.TaxRecord{
		{ID: 1, Name: "C", Kind: "fixed", Value: dec("1"), Order: 30, Active: true, SchemaVersion: 2, ApplicableTypes: ptr("facture")},
		{ID: 2, Name: "A", Kind: "fixed", Value: dec("1"), Order: 10, Active: true, SchemaVersion: 2, ApplicableTypes: ptr("facture,devis")},
		{ID: 3, Name: "B1", Kind: "fixed", Value: dec("1"), Order: 20, Active: true, SchemaVersion: 2, ApplicableTypes: ptr("facture")},
		{ID: 4, Name: "B2", Kind: "fixed", Value: dec("1"), Order: 20, Active: true, SchemaVersion: 2, ApplicableTypes: ptr("facture")},
		{ID: 5, Name: "Off", Kind: "fixed", Value: dec("1"), Order: 5, Active: false, SchemaVersion: 2, ApplicableTypes: ptr("facture")},
	}, nil)
	require.Empty(t, problems)

	var names []string
	for _, tax := range catalog.ApplicableTaxes(core.Facture) {
		names = append(names, tax.Name)
	}
	assert.Equal(t, []string{"A", "B1", "B2", "C"}, names)
	assert.Len(t, catalog.ApplicableTaxes(core.Devis), 1)
	assert.Empty(t, catalog.ApplicableTaxes(core.CommandeFournisseur))
}

func seededCatalog(t *testing.T) *core.TaxCatalog {
	t.Helper()
	catalog, problems := core.LoadCatalog([]core.TaxRecord{
		{ID: 1, Name: "FODEC", Kind: "percentage", Value: dec("1"), CalculationBase: ptr("totalHT"),
			ApplicableTypes: ptr("facture,devis"), Order: 10, Active: true, IsStandard: ptr(false), Surcharge: true, SchemaVersion: 2},
		{ID: 2, Name: "TVA 19%", Kind: "percentage", Value: dec("19"), CalculationBase: ptr("totalHTWithPreviousTaxes"),
			ApplicableTypes: ptr("facture,devis"), Order: 20, Active: true, IsStandard: ptr(true), SchemaVersion: 2},
		{ID: 3, Name: "Timbre", Kind: "fixed", Value: dec("1"),
			ApplicableTypes: ptr("facture"), Order: 30, Active: true, IsStandard: ptr(true), SchemaVersion: 2},
		{ID: 4, Name: "TVA 7%", Kind: "percentage", Value: dec("7"), CalculationBase: ptr("totalHTWithPreviousTaxes"),
			ApplicableTypes: ptr("facture,devis"), Order: 20, Active: true, IsStandard: ptr(false), SchemaVersion: 2},
	}, []core.TaxGroupRecord{
		{ID: 1, Name: "Reduced", Active: true, Members: []core.TaxGroupMemberRecord{
			{TaxID: 3, OrderInGroup: 2},
			{TaxID: 4, OrderInGroup: 1, BaseOverride: ptr("totalHT")},
		}},
		{ID: 2, Name: "Retired", Active: false},
	})
	require.Empty(t, problems)
	return catalog
}

func ids(taxes []core.Tax) []int64 {
	out := make([]int64, 0, len(taxes))
	for _, t := range taxes {
		out = append(out, t.ID)
	}
	return out
}

func TestResolve(t *testing.T) {
	catalog := seededCatalog(t)
	noFodec := core.DefaultSettings()
	noFodec.FodecAutoEnable = false
	withFodec := core.DefaultSettings()
	withFodec.FodecAutoEnable = true

	t.Run("empty selection skips surcharge when disabled", func(t *testing.T) {
		taxes, err := catalog.Resolve(core.Facture, core.TaxSelection{}, noFodec)
		require.NoError(t, err)
		assert.Equal(t, []int64{2, 4, 3}, ids(taxes))
	})

	t.Run("empty selection includes surcharge when enabled", func(t *testing.T) {
		taxes, err := catalog.Resolve(core.Facture, core.TaxSelection{}, withFodec)
		require.NoError(t, err)
		assert.Equal(t, []int64{1, 2, 4, 3}, ids(taxes))
	})

	t.Run("explicit ids add to standard taxes", func(t *testing.T) {
		taxes, err := catalog.Resolve(core.Facture, core.TaxSelection{TaxIDs: []int64{1}}, noFodec)
		require.NoError(t, err)
		assert.Equal(t, []int64{1, 2, 3}, ids(taxes))
	})

	t.Run("tax not applicable to type", func(t *testing.T) {
		_, err := catalog.Resolve(core.Devis, core.TaxSelection{TaxIDs: []int64{3}}, noFodec)
		var verr *core.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "selection.tax_ids", verr.Field)
	})

	t.Run("group order and base override", func(t *testing.T) {
		taxes, err := catalog.Resolve(core.Facture, core.TaxSelection{GroupID: ptr(int64(1))}, noFodec)
		require.NoError(t, err)
		require.Equal(t, []int64{4, 3}, ids(taxes))
		base, _ := taxes[0].Base()
		assert.Equal(t, core.BaseTotalHT, base)

		original, _ := catalog.Tax(4)
		base, _ = original.Base()
		assert.Equal(t, core.BaseTotalHTWithPreviousTaxes, base)
	})

	t.Run("inactive group", func(t *testing.T) {
		_, err := catalog.Resolve(core.Facture, core.TaxSelection{GroupID: ptr(int64(2))}, noFodec)
		var verr *core.ValidationError
		assert.ErrorAs(t, err, &verr)
	})
}

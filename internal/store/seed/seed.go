// Package seed holds the demo configuration and catalog loaded into a fresh
// store by cmd/seed and by the in-memory demo mode.
package seed

import (
	"commercial-docs/internal/core"

	"github.com/shopspring/decimal"
)

// Data is everything a store needs before the first document is saved.
type Data struct {
	Settings  map[string]string
	Taxes     []core.TaxRecord
	Groups    []core.TaxGroupRecord
	Numbering []core.NumberingSettings
	Products  []core.Product
}

func ptr[T any](v T) *T { return &v }

// Default returns a Tunisian-style setup: TVA 19% computed on the net plus
// previous taxes, FODEC 1% as an opt-in surcharge and a 1.000 stamp duty on
// invoices.
func Default() Data {
	return Data{
		Settings: map[string]string{
			core.SettingCurrencyDecimals:      "3",
			core.SettingCurrencySymbol:        "DT",
			core.SettingAllowNegativeStock:    "false",
			core.SettingFodecAutoEnable:       "false",
			core.SettingInvoiceDueDateEnabled: "true",
			core.SettingPaymentTermsDays:      "30",
		},
		Taxes: []core.TaxRecord{
			{
				ID: 1, Name: "FODEC", Kind: "percentage", Value: decimal.NewFromInt(1),
				CalculationBase: ptr("totalHT"),
				ApplicableTypes: ptr("facture,devis,bonLivraison,avoir"),
				Order:           10, Active: true, IsStandard: ptr(false), Surcharge: true, SchemaVersion: 2,
			},
			{
				ID: 2, Name: "TVA 19%", Kind: "percentage", Value: decimal.NewFromInt(19),
				CalculationBase: ptr("totalHTWithPreviousTaxes"),
				ApplicableTypes: ptr("facture,devis,bonLivraison,commandeFournisseur,avoir"),
				Order:           20, Active: true, IsStandard: ptr(true), SchemaVersion: 2,
			},
			{
				ID: 3, Name: "Timbre fiscal", Kind: "fixed", Value: decimal.RequireFromString("1.000"),
				ApplicableTypes: ptr("facture"),
				Order:           30, Active: true, IsStandard: ptr(true), SchemaVersion: 2,
			},
			{
				ID: 4, Name: "TVA 7%", Kind: "percentage", Value: decimal.NewFromInt(7),
				CalculationBase: ptr("totalHT"),
				ApplicableTypes: ptr("facture,devis,bonLivraison,avoir"),
				Order:           20, Active: true, IsStandard: ptr(false), SchemaVersion: 2,
			},
		},
		Groups: []core.TaxGroupRecord{
			{
				ID: 1, Name: "Standard", Description: "FODEC, TVA 19% and stamp duty", Active: true,
				Members: []core.TaxGroupMemberRecord{
					{TaxID: 1, OrderInGroup: 1},
					{TaxID: 2, OrderInGroup: 2},
					{TaxID: 3, OrderInGroup: 3},
				},
			},
			{
				ID: 2, Name: "Reduced", Description: "TVA 7% on the net only", Active: true,
				Members: []core.TaxGroupMemberRecord{
					{TaxID: 4, OrderInGroup: 1, BaseOverride: ptr("totalHT")},
					{TaxID: 3, OrderInGroup: 2},
				},
			},
		},
		Numbering: []core.NumberingSettings{
			{Type: core.Facture, Prefix: "FAC", StartNumber: 1, IncludeYear: true},
			{Type: core.Devis, Prefix: "DEV", StartNumber: 1},
			{Type: core.BonLivraison, Prefix: "BL", StartNumber: 1},
			{Type: core.CommandeFournisseur, Prefix: "CF", StartNumber: 1},
			{Type: core.Avoir, Prefix: "AV", StartNumber: 1, IncludeYear: true},
		},
		Products: []core.Product{
			{ID: 1, Code: "P-100", Name: "Clavier USB", UnitPrice: decimal.RequireFromString("25.500"), TracksStock: true},
			{ID: 2, Code: "P-200", Name: "Ecran 24 pouces", UnitPrice: decimal.RequireFromString("320.000"), TracksStock: true},
			{ID: 3, Code: "SRV-01", Name: "Installation sur site", UnitPrice: decimal.RequireFromString("80.000")},
		},
	}
}

package core_test

import (
	"context"
	"errors"
	"testing"

	"commercial-docs/internal/core"
	"commercial-docs/internal/store/memory"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSettings(t *testing.T) {
	s, problems := core.ParseSettings(map[string]string{
		core.SettingCurrencyDecimals:   "2",
		core.SettingAllowNegativeStock: "false",
		core.SettingPaymentTermsDays:   "45",
		core.SettingCurrencySymbol:     " EUR ",
	})
	assert.Empty(t, problems)
	assert.Equal(t, int32(2), s.CurrencyDecimals)
	assert.False(t, s.AllowNegativeStock)
	assert.Equal(t, 45, s.PaymentTermsDays)
	assert.Equal(t, "EUR", s.CurrencySymbol)
}

func TestParseSettings_InvalidValuesKeepDefaults(t *testing.T) {
	s, problems := core.ParseSettings(map[string]string{
		core.SettingCurrencyDecimals:   "lots",
		core.SettingAllowNegativeStock: "maybe",
		core.SettingPaymentTermsDays:   "-3",
	})
	require.Len(t, problems, 3)
	var cerr *core.ConfigurationError
	assert.True(t, errors.As(problems[0], &cerr))

	defaults := core.DefaultSettings()
	assert.Equal(t, defaults, s)
	assert.Equal(t, core.DefaultDecimals, s.CurrencyDecimals)
	assert.True(t, s.AllowNegativeStock)
}

func TestLoadConfiguration_EmptyStoreUsesDefaults(t *testing.T) {
	cfg := core.LoadConfiguration(context.Background(), memory.New(), zerolog.Nop())

	assert.Equal(t, core.DefaultSettings(), cfg.Settings)
	assert.Equal(t, 0, cfg.Catalog.Len())
	assert.Empty(t, cfg.Catalog.ApplicableTaxes(core.Facture))
}

func TestConfigHolder_Reload(t *testing.T) {
	store := memory.NewSeeded()
	holder := core.NewConfigHolder(context.Background(), store, zerolog.Nop())
	require.Equal(t, 4, holder.Current().Catalog.Len())
	before := holder.Current()

	store.AddTax(core.TaxRecord{ID: 9, Name: "Eco", Kind: "fixed", Value: dec("0.5"), Active: true, SchemaVersion: 2, ApplicableTypes: ptr("devis")})
	store.SetSetting(core.SettingAllowNegativeStock, "true")

	after := holder.Reload(context.Background())
	assert.Equal(t, 5, after.Catalog.Len())
	assert.True(t, after.Settings.AllowNegativeStock)
	assert.Same(t, after, holder.Current())
	assert.Equal(t, 4, before.Catalog.Len())
}

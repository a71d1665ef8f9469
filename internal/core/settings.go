package core

import (
	"context"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Settings keys as stored in the settings table.
const (
	SettingCurrencyDecimals      = "currency_decimals"
	SettingCurrencySymbol        = "currency_symbol"
	SettingAllowNegativeStock    = "allow_negative_stock"
	SettingFodecAutoEnable       = "fodec_auto_enable"
	SettingInvoiceDueDateEnabled = "invoice_due_date_enabled"
	SettingPaymentTermsDays      = "payment_terms_days"
)

// Settings is the explicit business configuration passed to the engine.
type Settings struct {
	CurrencyDecimals      int32  `json:"currency_decimals"`
	CurrencySymbol        string `json:"currency_symbol"`
	AllowNegativeStock    bool   `json:"allow_negative_stock"`
	FodecAutoEnable       bool   `json:"fodec_auto_enable"`
	InvoiceDueDateEnabled bool   `json:"invoice_due_date_enabled"`
	PaymentTermsDays      int    `json:"payment_terms_days"`
}

// DefaultSettings are the safe values used when the settings store is damaged:
// 3-decimal currency and negative stock allowed.
func DefaultSettings() Settings {
	return Settings{
		CurrencyDecimals:   DefaultDecimals,
		CurrencySymbol:     "DT",
		AllowNegativeStock: true,
		FodecAutoEnable:    true,
		PaymentTermsDays:   30,
	}
}

// StockPolicy returns the negative-stock rule derived from the settings.
func (s Settings) StockPolicy() StockPolicy {
	return StockPolicy{AllowNegativeStock: s.AllowNegativeStock}
}

// ParseSettings reads raw key/value settings. Invalid values keep their
// default and are reported as *ConfigurationError.
func ParseSettings(raw map[string]string) (Settings, []error) {
	s := DefaultSettings()
	var problems []error

	if v, ok := raw[SettingCurrencyDecimals]; ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || n < 0 || n > 6 {
			problems = append(problems, configErr(SettingCurrencyDecimals, "invalid value %q, using %d", v, DefaultDecimals))
		} else {
			s.CurrencyDecimals = int32(n)
		}
	}
	if v, ok := raw[SettingCurrencySymbol]; ok && strings.TrimSpace(v) != "" {
		s.CurrencySymbol = strings.TrimSpace(v)
	}
	parseBool := func(key string, dst *bool) {
		v, ok := raw[key]
		if !ok {
			return
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			problems = append(problems, configErr(key, "invalid boolean %q, using %t", v, *dst))
			return
		}
		*dst = b
	}
	parseBool(SettingAllowNegativeStock, &s.AllowNegativeStock)
	parseBool(SettingFodecAutoEnable, &s.FodecAutoEnable)
	parseBool(SettingInvoiceDueDateEnabled, &s.InvoiceDueDateEnabled)

	if v, ok := raw[SettingPaymentTermsDays]; ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || n < 0 {
			problems = append(problems, configErr(SettingPaymentTermsDays, "invalid value %q, using %d", v, s.PaymentTermsDays))
		} else {
			s.PaymentTermsDays = n
		}
	}
	return s, problems
}

// Configuration is the read-only snapshot the engine calculates with.
type Configuration struct {
	Settings Settings
	Catalog  *TaxCatalog
}

// DefaultConfiguration applies no taxes and uses DefaultSettings.
func DefaultConfiguration() *Configuration {
	return &Configuration{Settings: DefaultSettings(), Catalog: EmptyCatalog()}
}

// LoadConfiguration reads settings and the tax catalog from the store. It
// never fails: unreadable or malformed records are logged and replaced with
// safe defaults so the engine stays usable.
func LoadConfiguration(ctx context.Context, store Store, logger zerolog.Logger) *Configuration {
	cfg := DefaultConfiguration()

	var raw map[string]string
	err := store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		raw, err = tx.Config().Settings(ctx)
		return err
	})
	if err != nil {
		logger.Warn().Err(&ConfigurationError{Source: "settings", Err: err}).Msg("settings unreadable, using defaults")
	} else {
		s, problems := ParseSettings(raw)
		for _, p := range problems {
			logger.Warn().Err(p).Msg("settings value ignored")
		}
		cfg.Settings = s
	}

	var (
		records []TaxRecord
		groups  []TaxGroupRecord
	)
	err = store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		if records, err = tx.Config().TaxRecords(ctx); err != nil {
			return err
		}
		groups, err = tx.Config().TaxGroupRecords(ctx)
		return err
	})
	if err != nil {
		logger.Warn().Err(&ConfigurationError{Source: "taxes", Err: err}).Msg("tax configuration unreadable, no taxes will be applied")
		return cfg
	}

	catalog, problems := LoadCatalog(records, groups)
	for _, p := range problems {
		logger.Warn().Err(p).Msg("tax record ignored")
	}
	cfg.Catalog = catalog
	logger.Debug().Int("taxes", catalog.Len()).Int32("decimals", cfg.Settings.CurrencyDecimals).
		Bool("allow_negative_stock", cfg.Settings.AllowNegativeStock).Msg("configuration loaded")
	return cfg
}

// ConfigHolder publishes the current Configuration to concurrent readers.
// Reload swaps in a fresh snapshot; readers never observe a partial one.
type ConfigHolder struct {
	store  Store
	logger zerolog.Logger
	cur    atomic.Pointer[Configuration]
}

// NewConfigHolder loads the initial configuration from store.
func NewConfigHolder(ctx context.Context, store Store, logger zerolog.Logger) *ConfigHolder {
	h := &ConfigHolder{store: store, logger: logger}
	h.cur.Store(LoadConfiguration(ctx, store, logger))
	return h
}

// StaticConfig wraps a fixed configuration, mainly for tests.
func StaticConfig(cfg *Configuration) *ConfigHolder {
	h := &ConfigHolder{logger: zerolog.Nop()}
	h.cur.Store(cfg)
	return h
}

// Current returns the active snapshot.
func (h *ConfigHolder) Current() *Configuration {
	return h.cur.Load()
}

// Reload re-reads configuration after an external edit.
func (h *ConfigHolder) Reload(ctx context.Context) *Configuration {
	if h.store == nil {
		return h.Current()
	}
	cfg := LoadConfiguration(ctx, h.store, h.logger)
	h.cur.Store(cfg)
	return cfg
}

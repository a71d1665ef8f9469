package core

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

// currentTaxSchema is the TaxRecord layout written by the configuration UI today.
const currentTaxSchema = 2

// TaxCatalog is the in-memory index of configured taxes and tax groups.
// Taxes are kept sorted by Order, ties broken by insertion order.
// A catalog is immutable once built and safe for concurrent readers.
type TaxCatalog struct {
	taxes  []Tax
	byID   map[int64]int
	groups map[int64]TaxGroup
}

// NewTaxCatalog indexes taxes and groups. The order of the taxes slice is the
// insertion order used to break ties between equal Order values.
func NewTaxCatalog(taxes []Tax, groups []TaxGroup) *TaxCatalog {
	sorted := slices.Clone(taxes)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Order < sorted[j].Order })

	c := &TaxCatalog{
		taxes:  sorted,
		byID:   make(map[int64]int, len(sorted)),
		groups: make(map[int64]TaxGroup, len(groups)),
	}
	for i, t := range sorted {
		c.byID[t.ID] = i
	}
	for _, g := range groups {
		g.Members = slices.Clone(g.Members)
		sort.SliceStable(g.Members, func(i, j int) bool { return g.Members[i].OrderInGroup < g.Members[j].OrderInGroup })
		c.groups[g.ID] = g
	}
	return c
}

// EmptyCatalog is the fallback used when the tax configuration cannot be read.
func EmptyCatalog() *TaxCatalog {
	return NewTaxCatalog(nil, nil)
}

// LoadCatalog migrates stored records to the current model and indexes them.
// Malformed rows are skipped; each one is reported as a *ConfigurationError
// while the rest of the catalog stays usable.
func LoadCatalog(records []TaxRecord, groups []TaxGroupRecord) (*TaxCatalog, []error) {
	var problems []error

	taxes := make([]Tax, 0, len(records))
	known := make(map[int64]Tax, len(records))
	for _, r := range records {
		t, warnings, err := migrateTaxRecord(r)
		problems = append(problems, warnings...)
		if err != nil {
			problems = append(problems, err)
			continue
		}
		if _, dup := known[t.ID]; dup {
			problems = append(problems, configErr(fmt.Sprintf("tax %d", t.ID), "duplicate tax id"))
			continue
		}
		known[t.ID] = t
		taxes = append(taxes, t)
	}

	tgs := make([]TaxGroup, 0, len(groups))
	for _, gr := range groups {
		g := TaxGroup{ID: gr.ID, Name: gr.Name, Description: gr.Description, Active: gr.Active}
		for _, m := range gr.Members {
			tax, ok := known[m.TaxID]
			if !ok {
				problems = append(problems, configErr(fmt.Sprintf("tax group %d", gr.ID), "member tax %d does not exist", m.TaxID))
				continue
			}
			member := TaxGroupMember{TaxID: m.TaxID, OrderInGroup: m.OrderInGroup}
			if m.BaseOverride != nil && *m.BaseOverride != "" {
				b := CalculationBase(*m.BaseOverride)
				switch {
				case !b.Valid():
					problems = append(problems, configErr(fmt.Sprintf("tax group %d", gr.ID), "unknown calculation base %q for tax %d", *m.BaseOverride, m.TaxID))
				case tax.Kind() == KindFixed:
					problems = append(problems, configErr(fmt.Sprintf("tax group %d", gr.ID), "calculation base override on fixed tax %d ignored", m.TaxID))
				default:
					member.BaseOverride = &b
				}
			}
			g.Members = append(g.Members, member)
		}
		tgs = append(tgs, g)
	}

	return NewTaxCatalog(taxes, tgs), problems
}

// migrateTaxRecord converts a stored row of any schema version into a Tax.
// Warnings are recoverable problems; a non-nil error means the row is unusable.
func migrateTaxRecord(r TaxRecord) (Tax, []error, error) {
	source := fmt.Sprintf("tax %d", r.ID)
	var warnings []error

	version := r.SchemaVersion
	if version == 0 {
		version = 1
	}
	if version > currentTaxSchema {
		return Tax{}, nil, configErr(source, "unsupported schema version %d", r.SchemaVersion)
	}
	if r.Value.IsNegative() {
		return Tax{}, nil, configErr(source, "negative value %s", r.Value)
	}

	t := Tax{
		ID:        r.ID,
		Name:      strings.TrimSpace(r.Name),
		Order:     r.Order,
		Active:    r.Active,
		Surcharge: r.Surcharge,
	}
	if t.Name == "" {
		t.Name = source
	}

	switch parseTaxKind(r.Kind) {
	case KindFixed:
		t.Rule = FixedRule{Amount: r.Value}
	case KindPercentage:
		base := BaseTotalHT
		if r.CalculationBase != nil && *r.CalculationBase != "" {
			b := CalculationBase(*r.CalculationBase)
			if !b.Valid() {
				if version >= currentTaxSchema {
					return Tax{}, nil, configErr(source, "unknown calculation base %q", *r.CalculationBase)
				}
				warnings = append(warnings, configErr(source, "legacy calculation base %q treated as %s", *r.CalculationBase, BaseTotalHT))
			} else {
				base = b
			}
		}
		t.Rule = PercentageRule{Rate: r.Value, Base: base}
	default:
		return Tax{}, nil, configErr(source, "unknown tax kind %q", r.Kind)
	}

	// Version 1 rows predate per-document applicability and the standard flag:
	// they applied to every document type automatically.
	if r.ApplicableTypes == nil {
		if version >= currentTaxSchema {
			warnings = append(warnings, configErr(source, "missing applicable document types, tax applies to none"))
		} else {
			t.ApplicableTypes = AllDocumentTypes()
		}
	} else {
		for _, raw := range strings.Split(*r.ApplicableTypes, ",") {
			raw = strings.TrimSpace(raw)
			if raw == "" {
				continue
			}
			dt := DocumentType(raw)
			if !dt.Valid() {
				warnings = append(warnings, configErr(source, "unknown document type %q ignored", raw))
				continue
			}
			if !slices.Contains(t.ApplicableTypes, dt) {
				t.ApplicableTypes = append(t.ApplicableTypes, dt)
			}
		}
	}

	if r.IsStandard != nil {
		t.IsStandard = *r.IsStandard
	} else {
		t.IsStandard = version < currentTaxSchema
	}

	return t, warnings, nil
}

func parseTaxKind(s string) TaxKind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "percentage", "percent", "pourcentage", "%":
		return KindPercentage
	case "fixed", "fixe", "montant", "amount":
		return KindFixed
	}
	return ""
}

// Len returns the number of taxes in the catalog, active or not.
func (c *TaxCatalog) Len() int {
	return len(c.taxes)
}

// Tax looks up a tax by id.
func (c *TaxCatalog) Tax(id int64) (Tax, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Tax{}, false
	}
	return c.taxes[i], true
}

// Taxes returns every tax in application order.
func (c *TaxCatalog) Taxes() []Tax {
	return slices.Clone(c.taxes)
}

// Group looks up a tax group by id.
func (c *TaxCatalog) Group(id int64) (TaxGroup, bool) {
	g, ok := c.groups[id]
	return g, ok
}

// ApplicableTaxes returns the active taxes configured for documents of type
// dt, ascending by Order (ties by insertion order). An empty result is valid.
func (c *TaxCatalog) ApplicableTaxes(dt DocumentType) []Tax {
	var out []Tax
	for _, t := range c.taxes {
		if t.Active && t.AppliesTo(dt) {
			out = append(out, t)
		}
	}
	return out
}

// GroupTaxes returns the active members of a tax group that apply to dt, in
// group order, with calculation base overrides applied.
func (c *TaxCatalog) GroupTaxes(groupID int64, dt DocumentType) ([]Tax, error) {
	g, ok := c.groups[groupID]
	if !ok || !g.Active {
		return nil, fmt.Errorf("tax group %d: %w", groupID, ErrNotFound)
	}
	var out []Tax
	for _, m := range g.Members {
		t, ok := c.Tax(m.TaxID)
		if !ok || !t.Active || !t.AppliesTo(dt) {
			continue
		}
		if m.BaseOverride != nil {
			t = t.withBase(*m.BaseOverride)
		}
		out = append(out, t)
	}
	return out, nil
}

// Resolve turns a document's tax selection into the ordered tax list fed to
// ComputeTotals.
//
//   - empty selection: every applicable tax; surcharge taxes only when the
//     FODEC auto-enable setting is on
//   - group: the group's taxes
//   - explicit ids: applicable standard taxes plus the selected ones, in
//     catalog order
func (c *TaxCatalog) Resolve(dt DocumentType, sel TaxSelection, s Settings) ([]Tax, error) {
	if sel.GroupID != nil {
		taxes, err := c.GroupTaxes(*sel.GroupID, dt)
		if err != nil {
			return nil, invalid("selection.group_id", "%v", err)
		}
		return taxes, nil
	}

	selected := make(map[int64]bool, len(sel.TaxIDs))
	for _, id := range sel.TaxIDs {
		t, ok := c.Tax(id)
		if !ok || !t.Active {
			return nil, invalid("selection.tax_ids", "tax %d is not an active tax", id)
		}
		if !t.AppliesTo(dt) {
			return nil, invalid("selection.tax_ids", "tax %d does not apply to %s", id, dt)
		}
		selected[id] = true
	}

	var out []Tax
	for _, t := range c.ApplicableTaxes(dt) {
		switch {
		case selected[t.ID]:
			out = append(out, t)
		case t.Surcharge && !s.FodecAutoEnable:
		case sel.Empty() || t.IsStandard:
			out = append(out, t)
		}
	}
	return out, nil
}

package memory

import "commercial-docs/internal/store/seed"

// Load copies d into the store.
func (s *Store) Load(d seed.Data) {
	for k, v := range d.Settings {
		s.SetSetting(k, v)
	}
	for _, t := range d.Taxes {
		s.AddTax(t)
	}
	for _, g := range d.Groups {
		s.AddTaxGroup(g)
	}
	for _, ns := range d.Numbering {
		s.SetNumbering(ns)
	}
	for _, p := range d.Products {
		s.AddProduct(p)
	}
}

// NewSeeded returns a store holding seed.Default.
func NewSeeded() *Store {
	s := New()
	s.Load(seed.Default())
	return s
}

package sourcing

// Selection walks the ordering funnel. Narrowing an upstream choice clears
// everything downstream of it, so the funnel can never hand out a material
// whose project, product, or supplier is no longer selected.
type Selection struct {
	idx        *Index
	projectIDs []int64
	productIDs []int64
	supplier   string
}

// NewSelection starts an empty funnel over the index.
func NewSelection(idx *Index) *Selection {
	return &Selection{idx: idx}
}

// SetProjects replaces the project selection and resets products and supplier.
func (s *Selection) SetProjects(ids []int64) {
	s.projectIDs = append([]int64(nil), ids...)
	s.productIDs = nil
	s.supplier = ""
}

// SetProducts replaces the product selection and resets the supplier. Products
// outside the current project selection are dropped rather than kept stale.
func (s *Selection) SetProducts(ids []int64) {
	valid := make(map[int64]bool)
	for _, p := range s.idx.ProductsWithUnorderedMaterials(s.projectIDs) {
		valid[p.ID] = true
	}
	s.productIDs = nil
	for _, id := range ids {
		if valid[id] {
			s.productIDs = append(s.productIDs, id)
		}
	}
	s.supplier = ""
}

// SetSupplier picks the supplier; an unavailable name clears the choice.
func (s *Selection) SetSupplier(name string) {
	for _, available := range s.idx.SuppliersFor(s.productIDs) {
		if available == name {
			s.supplier = name
			return
		}
	}
	s.supplier = ""
}

// Projects returns the current project selection.
func (s *Selection) Projects() []int64 { return append([]int64(nil), s.projectIDs...) }

// Products returns the current product selection.
func (s *Selection) Products() []int64 { return append([]int64(nil), s.productIDs...) }

// Supplier returns the chosen supplier name, empty when unset.
func (s *Selection) Supplier() string { return s.supplier }

// Materials returns the materials reachable from the full current selection,
// or nil while the funnel is incomplete.
func (s *Selection) Materials() []Material {
	if len(s.productIDs) == 0 || s.supplier == "" {
		return nil
	}
	return s.idx.MaterialsFor(s.productIDs, s.supplier)
}

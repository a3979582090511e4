// Package sourcing derives, from a catalog snapshot, which materials still
// need a purchase order and groups them by project, product, and supplier so
// the ordering screen can walk project → product → supplier → material.
package sourcing

import (
	"sort"

	"github.com/atelier-erp/atelier-erp/internal/catalog"
)

// Material is an unordered material enriched with display context.
type Material struct {
	catalog.ProductMaterial
	ProductName string
	ProjectID   int64
	ProjectName string
	ClientName  string
}

// ProductSummary is a product that still owns unordered materials.
type ProductSummary struct {
	ID          int64
	Name        string
	ProjectID   int64
	ProjectName string
	Pending     int
}

// Index is an immutable view over one catalog snapshot. Build a fresh one
// after any material status change; it performs no I/O of its own.
type Index struct {
	materials []Material
	byProduct map[int64][]int
}

// NewIndex builds the index from a catalog snapshot.
func NewIndex(projects []catalog.Project) *Index {
	idx := &Index{byProduct: make(map[int64][]int)}
	for _, project := range projects {
		for _, product := range project.Products {
			for _, material := range product.Materials {
				if !material.Status.Pending() {
					continue
				}
				idx.byProduct[product.ID] = append(idx.byProduct[product.ID], len(idx.materials))
				idx.materials = append(idx.materials, Material{
					ProductMaterial: material,
					ProductName:     product.Name,
					ProjectID:       project.ID,
					ProjectName:     project.Name,
					ClientName:      project.ClientName,
				})
			}
		}
	}
	return idx
}

// UnorderedMaterials returns every material still awaiting sourcing.
func (idx *Index) UnorderedMaterials() []Material {
	out := make([]Material, len(idx.materials))
	copy(out, idx.materials)
	return out
}

// ProductsWithUnorderedMaterials returns products in the given projects that
// own at least one unordered material.
func (idx *Index) ProductsWithUnorderedMaterials(projectIDs []int64) []ProductSummary {
	wanted := toSet(projectIDs)
	summaries := make(map[int64]*ProductSummary)
	var order []int64
	for _, m := range idx.materials {
		if len(wanted) > 0 && !wanted[m.ProjectID] {
			continue
		}
		sum, ok := summaries[m.ProductID]
		if !ok {
			sum = &ProductSummary{ID: m.ProductID, Name: m.ProductName, ProjectID: m.ProjectID, ProjectName: m.ProjectName}
			summaries[m.ProductID] = sum
			order = append(order, m.ProductID)
		}
		sum.Pending++
	}
	out := make([]ProductSummary, 0, len(order))
	for _, id := range order {
		out = append(out, *summaries[id])
	}
	return out
}

// SuppliersFor returns the distinct supplier names declared on unordered
// materials of the given products, sorted for stable display.
func (idx *Index) SuppliersFor(productIDs []int64) []string {
	seen := make(map[string]bool)
	var suppliers []string
	for _, productID := range productIDs {
		for _, i := range idx.byProduct[productID] {
			name := idx.materials[i].SupplierName
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			suppliers = append(suppliers, name)
		}
	}
	sort.Strings(suppliers)
	return suppliers
}

// MaterialsFor returns unordered materials of the given products declared
// for the given supplier.
func (idx *Index) MaterialsFor(productIDs []int64, supplierName string) []Material {
	var out []Material
	for _, productID := range productIDs {
		for _, i := range idx.byProduct[productID] {
			if idx.materials[i].SupplierName == supplierName {
				out = append(out, idx.materials[i])
			}
		}
	}
	return out
}

func toSet(ids []int64) map[int64]bool {
	set := make(map[int64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

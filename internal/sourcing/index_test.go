package sourcing

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/atelier-erp/atelier-erp/internal/catalog"
)

func snapshot() []catalog.Project {
	return []catalog.Project{
		{
			ID: 1, Name: "Apartment Lozenets", ClientName: "Petrovi",
			Products: []catalog.Product{
				{
					ID: 10, ProjectID: 1, Name: "Wardrobe",
					Materials: []catalog.ProductMaterial{
						{ID: 100, ProductID: 10, Name: "MDF 18mm", SupplierName: "WoodHouse", Status: catalog.MaterialNotOrdered, TotalPrice: 240},
						{ID: 101, ProductID: 10, Name: "Hinges", SupplierName: "Hafele", Status: ""},
						{ID: 102, ProductID: 10, Name: "Rails", SupplierName: "Hafele", Status: catalog.MaterialOrdered},
					},
				},
				{
					ID: 11, ProjectID: 1, Name: "Desk",
					Materials: []catalog.ProductMaterial{
						{ID: 110, ProductID: 11, Name: "Oak top", SupplierName: "WoodHouse", Status: catalog.MaterialNotOrdered},
					},
				},
			},
		},
		{
			ID: 2, Name: "Office Mladost", ClientName: "Dizain OOD",
			Products: []catalog.Product{
				{
					ID: 20, ProjectID: 2, Name: "Reception",
					Materials: []catalog.ProductMaterial{
						{ID: 200, ProductID: 20, Name: "Plexiglass", SupplierName: "AcrylCo", Status: catalog.MaterialInStock},
					},
				},
			},
		},
	}
}

func TestUnorderedMaterials(t *testing.T) {
	idx := NewIndex(snapshot())
	materials := idx.UnorderedMaterials()
	require.Len(t, materials, 3)

	ids := []int64{materials[0].ID, materials[1].ID, materials[2].ID}
	require.ElementsMatch(t, []int64{100, 101, 110}, ids)

	// Enrichment carries project and product display names.
	require.Equal(t, "Wardrobe", materials[0].ProductName)
	require.Equal(t, "Apartment Lozenets", materials[0].ProjectName)
}

func TestProductsWithUnorderedMaterials(t *testing.T) {
	idx := NewIndex(snapshot())

	products := idx.ProductsWithUnorderedMaterials([]int64{1})
	require.Len(t, products, 2)
	require.Equal(t, int64(10), products[0].ID)
	require.Equal(t, 2, products[0].Pending)

	// Project 2 has only an in-stock material left.
	require.Empty(t, idx.ProductsWithUnorderedMaterials([]int64{2}))

	// No filter means every project.
	require.Len(t, idx.ProductsWithUnorderedMaterials(nil), 2)
}

func TestSuppliersFor(t *testing.T) {
	idx := NewIndex(snapshot())
	require.Equal(t, []string{"Hafele", "WoodHouse"}, idx.SuppliersFor([]int64{10}))
	require.Equal(t, []string{"WoodHouse"}, idx.SuppliersFor([]int64{11}))
	require.Empty(t, idx.SuppliersFor([]int64{20}))
}

func TestMaterialsFor(t *testing.T) {
	idx := NewIndex(snapshot())
	materials := idx.MaterialsFor([]int64{10, 11}, "WoodHouse")
	require.Len(t, materials, 2)
	require.Equal(t, int64(100), materials[0].ID)
	require.Equal(t, int64(110), materials[1].ID)
}

func TestSelectionFunnelInvalidation(t *testing.T) {
	idx := NewIndex(snapshot())
	sel := NewSelection(idx)

	sel.SetProjects([]int64{1})
	sel.SetProducts([]int64{10, 11})
	sel.SetSupplier("WoodHouse")
	require.Len(t, sel.Materials(), 2)

	// Narrowing the product selection clears the supplier downstream.
	sel.SetProducts([]int64{11})
	require.Empty(t, sel.Supplier())
	require.Nil(t, sel.Materials())

	sel.SetSupplier("WoodHouse")
	require.Len(t, sel.Materials(), 1)

	// Narrowing the project selection clears both downstream levels.
	sel.SetProjects([]int64{2})
	require.Empty(t, sel.Products())
	require.Empty(t, sel.Supplier())
	require.Nil(t, sel.Materials())
}

func TestSelectionDropsForeignProducts(t *testing.T) {
	idx := NewIndex(snapshot())
	sel := NewSelection(idx)

	sel.SetProjects([]int64{1})
	// Product 20 belongs to project 2 and product 99 does not exist.
	sel.SetProducts([]int64{10, 20, 99})
	require.Equal(t, []int64{10}, sel.Products())
}

func TestSelectionRejectsUnavailableSupplier(t *testing.T) {
	idx := NewIndex(snapshot())
	sel := NewSelection(idx)

	sel.SetProjects([]int64{1})
	sel.SetProducts([]int64{11})
	sel.SetSupplier("Hafele") // Hafele only supplies product 10
	require.Empty(t, sel.Supplier())
}

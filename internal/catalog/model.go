// Package catalog is the read-only port onto the project catalog: projects,
// their products, and each product's raw materials. The engine reads this
// data to seed offers and to drive material sourcing; it never mutates
// anything here except material statuses, which the fulfillment side owns.
package catalog

import "time"

// MaterialStatus tracks where a raw material sits in the sourcing pipeline.
type MaterialStatus string

const (
	MaterialNotOrdered MaterialStatus = "NOT_ORDERED"
	MaterialOrdered    MaterialStatus = "ORDERED"
	MaterialInStock    MaterialStatus = "IN_STOCK"
	MaterialReceived   MaterialStatus = "RECEIVED"
)

// Pending reports whether the material still needs sourcing. An empty status
// on old rows counts as not ordered.
func (s MaterialStatus) Pending() bool {
	return s == MaterialNotOrdered || s == ""
}

// Project is a client engagement owning an ordered set of products.
type Project struct {
	ID         int64     `json:"id"`
	ClientName string    `json:"client_name"`
	Name       string    `json:"name"`
	Products   []Product `json:"products"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Product belongs to exactly one project.
type Product struct {
	ID               int64             `json:"id"`
	ProjectID        int64             `json:"project_id"`
	Name             string            `json:"name"`
	Qty              float64           `json:"qty"`
	Width            float64           `json:"width,omitempty"`
	Height           float64           `json:"height,omitempty"`
	Depth            float64           `json:"depth,omitempty"`
	BaseMaterialCost float64           `json:"base_material_cost"`
	Materials        []ProductMaterial `json:"materials"`
	LineOrder        int               `json:"line_order"`
}

// ProductMaterial is a raw material declared on a product, with the supplier
// it should be sourced from.
type ProductMaterial struct {
	ID           int64          `json:"id"`
	ProductID    int64          `json:"product_id"`
	Name         string         `json:"name"`
	Qty          float64        `json:"qty"`
	Unit         string         `json:"unit"`
	UnitPrice    float64        `json:"unit_price"`
	TotalPrice   float64        `json:"total_price"`
	SupplierName string         `json:"supplier_name"`
	Status       MaterialStatus `json:"status"`
}

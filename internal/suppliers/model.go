// Package suppliers is the supplier directory: the names offered in the
// sourcing funnel and printed on purchase orders.
package suppliers

import (
	"time"
)

// Supplier is one directory entry.
type Supplier struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Contact   string    `json:"contact"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ListFilters narrows supplier listings.
type ListFilters struct {
	Search string
	Limit  int
	Offset int
}

// Package labor reads labor cost postings. Postings are written by the time
// tracking system; this core only sums them per product.
package labor

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Posting is one recorded labor cost against a product.
type Posting struct {
	ID        int64     `json:"id"`
	ProductID int64     `json:"product_id"`
	Amount    float64   `json:"amount"`
	PostedOn  time.Time `json:"posted_on"`
}

// Repository provides read access to labor_postings.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// PostingsForProduct returns the product's postings, oldest first.
func (r *Repository) PostingsForProduct(ctx context.Context, productID int64) ([]Posting, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, product_id, amount, posted_on
		FROM labor_postings
		WHERE product_id = $1
		ORDER BY posted_on, id`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var postings []Posting
	for rows.Next() {
		var p Posting
		if err := rows.Scan(&p.ID, &p.ProductID, &p.Amount, &p.PostedOn); err != nil {
			return nil, err
		}
		postings = append(postings, p)
	}
	return postings, rows.Err()
}

// Sum adds up posting amounts.
func Sum(postings []Posting) float64 {
	var total float64
	for _, p := range postings {
		total += p.Amount
	}
	return total
}

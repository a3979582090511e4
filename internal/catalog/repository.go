package catalog

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atelier-erp/atelier-erp/internal/shared"
)

// Repository loads the project catalog from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListProjects returns all projects with nested products and materials.
func (r *Repository) ListProjects(ctx context.Context) ([]Project, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, client_name, name, created_at, updated_at
		FROM projects
		ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []Project
	index := make(map[int64]int)
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.ClientName, &p.Name, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		index[p.ID] = len(projects)
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(projects) == 0 {
		return nil, nil
	}

	products, productIndex, err := r.loadProducts(ctx)
	if err != nil {
		return nil, err
	}
	if err := r.loadMaterials(ctx, products, productIndex); err != nil {
		return nil, err
	}
	for _, prod := range products {
		if i, ok := index[prod.ProjectID]; ok {
			projects[i].Products = append(projects[i].Products, *prod)
		}
	}
	return projects, nil
}

// GetProject returns a single project with its nested collections.
func (r *Repository) GetProject(ctx context.Context, id int64) (Project, error) {
	var p Project
	err := r.pool.QueryRow(ctx, `
		SELECT id, client_name, name, created_at, updated_at
		FROM projects WHERE id = $1`, id).
		Scan(&p.ID, &p.ClientName, &p.Name, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Project{}, shared.ErrNotFound
		}
		return Project{}, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, project_id, name, qty, COALESCE(width, 0), COALESCE(height, 0), COALESCE(depth, 0),
		       base_material_cost, line_order
		FROM products WHERE project_id = $1
		ORDER BY line_order, id`, id)
	if err != nil {
		return Project{}, err
	}
	defer rows.Close()

	var products []*Product
	productIndex := make(map[int64]int)
	for rows.Next() {
		var prod Product
		if err := rows.Scan(&prod.ID, &prod.ProjectID, &prod.Name, &prod.Qty, &prod.Width,
			&prod.Height, &prod.Depth, &prod.BaseMaterialCost, &prod.LineOrder); err != nil {
			return Project{}, err
		}
		productIndex[prod.ID] = len(products)
		products = append(products, &prod)
	}
	if err := rows.Err(); err != nil {
		return Project{}, err
	}

	if err := r.loadMaterials(ctx, products, productIndex); err != nil {
		return Project{}, err
	}
	for _, prod := range products {
		p.Products = append(p.Products, *prod)
	}
	return p, nil
}

// GetMaterials fetches the named materials regardless of owning product.
func (r *Repository) GetMaterials(ctx context.Context, ids []int64) ([]ProductMaterial, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, product_id, name, qty, unit, unit_price, total_price, supplier_name, status
		FROM product_materials WHERE id = ANY($1)
		ORDER BY id`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var materials []ProductMaterial
	for rows.Next() {
		var m ProductMaterial
		if err := rows.Scan(&m.ID, &m.ProductID, &m.Name, &m.Qty, &m.Unit,
			&m.UnitPrice, &m.TotalPrice, &m.SupplierName, &m.Status); err != nil {
			return nil, err
		}
		materials = append(materials, m)
	}
	return materials, rows.Err()
}

func (r *Repository) loadProducts(ctx context.Context) ([]*Product, map[int64]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, project_id, name, qty, COALESCE(width, 0), COALESCE(height, 0), COALESCE(depth, 0),
		       base_material_cost, line_order
		FROM products
		ORDER BY project_id, line_order, id`)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var products []*Product
	index := make(map[int64]int)
	for rows.Next() {
		var prod Product
		if err := rows.Scan(&prod.ID, &prod.ProjectID, &prod.Name, &prod.Qty, &prod.Width,
			&prod.Height, &prod.Depth, &prod.BaseMaterialCost, &prod.LineOrder); err != nil {
			return nil, nil, err
		}
		index[prod.ID] = len(products)
		products = append(products, &prod)
	}
	return products, index, rows.Err()
}

func (r *Repository) loadMaterials(ctx context.Context, products []*Product, productIndex map[int64]int) error {
	if len(products) == 0 {
		return nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, product_id, name, qty, unit, unit_price, total_price, supplier_name, status
		FROM product_materials
		ORDER BY product_id, id`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var m ProductMaterial
		if err := rows.Scan(&m.ID, &m.ProductID, &m.Name, &m.Qty, &m.Unit,
			&m.UnitPrice, &m.TotalPrice, &m.SupplierName, &m.Status); err != nil {
			return err
		}
		if i, ok := productIndex[m.ProductID]; ok {
			products[i].Materials = append(products[i].Materials, m)
		}
	}
	return rows.Err()
}

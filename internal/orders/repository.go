package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atelier-erp/atelier-erp/internal/catalog"
	"github.com/atelier-erp/atelier-erp/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for purchase orders.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps fn in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

const orderColumns = `id, number, supplier_name, status, total_amount, version, created_at, updated_at`

const itemColumns = `id, order_id, material_id, product_id, project_id, qty, unit, expected_price, status`

// Get returns the order with its items.
func (r *Repository) Get(ctx context.Context, id int64) (Order, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, err
	}
	items, err := queryItems(ctx, r.pool, `SELECT `+itemColumns+` FROM order_items WHERE order_id = $1 ORDER BY id`, id)
	if err != nil {
		return Order{}, err
	}
	order.Items = items
	return order, nil
}

// List returns order summaries matching the filters plus the total count.
func (r *Repository) List(ctx context.Context, filters ListFilters) ([]Summary, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	argNum := 1
	if filters.SupplierName != "" {
		where += fmt.Sprintf(` AND supplier_name = $%d`, argNum)
		args = append(args, filters.SupplierName)
		argNum++
	}
	if filters.Status != "" {
		where += fmt.Sprintf(` AND status = $%d`, argNum)
		args = append(args, string(filters.Status))
		argNum++
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM orders`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT o.id, o.number, o.supplier_name, o.status, o.total_amount,
			(SELECT COUNT(*) FROM order_items i WHERE i.order_id = o.id), o.created_at
		FROM orders o` + where + fmt.Sprintf(` ORDER BY o.created_at DESC, o.id DESC LIMIT $%d OFFSET $%d`, argNum, argNum+1)
	args = append(args, limit, filters.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var summaries []Summary
	for rows.Next() {
		var s Summary
		if err := rows.Scan(&s.ID, &s.Number, &s.SupplierName, &s.Status, &s.TotalAmount, &s.ItemCount, &s.CreatedAt); err != nil {
			return nil, 0, err
		}
		summaries = append(summaries, s)
	}
	return summaries, total, rows.Err()
}

// GenerateNumber issues the next PO-YYMM-NNNN document number.
func (r *Repository) GenerateNumber(ctx context.Context, date time.Time) (string, error) {
	var seq int64
	period := date.Format("200601")
	err := r.pool.QueryRow(ctx, `
		INSERT INTO document_sequences (doc_type, period, seq)
		VALUES ($1, $2, 1)
		ON CONFLICT (doc_type, period)
		DO UPDATE SET seq = document_sequences.seq + 1
		RETURNING seq`, "PO", period).Scan(&seq)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("PO-%s-%04d", date.Format("0601"), seq), nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func queryItems(ctx context.Context, q querier, sql string, args ...any) ([]Item, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ID, &item.OrderID, &item.MaterialID, &item.ProductID,
			&item.ProjectID, &item.Qty, &item.Unit, &item.ExpectedPrice, &item.Status); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.Number, &o.SupplierName, &o.Status, &o.TotalAmount,
		&o.Version, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

func (tx *txRepo) GetOrder(ctx context.Context, id int64) (Order, error) {
	row := tx.tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	order, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	return order, err
}

func (tx *txRepo) InsertOrder(ctx context.Context, order Order) (int64, error) {
	var id int64
	err := tx.tx.QueryRow(ctx, `
		INSERT INTO orders (number, supplier_name, status, total_amount, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 1, NOW(), NOW())
		RETURNING id`,
		order.Number, order.SupplierName, string(order.Status), order.TotalAmount).Scan(&id)
	return id, err
}

func (tx *txRepo) InsertItems(ctx context.Context, orderID int64, items []Item) error {
	for _, item := range items {
		if _, err := tx.tx.Exec(ctx, `
			INSERT INTO order_items (order_id, material_id, product_id, project_id, qty, unit, expected_price, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			orderID, item.MaterialID, item.ProductID, item.ProjectID,
			item.Qty, item.Unit, item.ExpectedPrice, string(item.Status)); err != nil {
			return err
		}
	}
	return nil
}

// UpdateOrderAmount rewrites the re-summed total. The version predicate
// rejects writes based on a stale load.
func (tx *txRepo) UpdateOrderAmount(ctx context.Context, id int64, total float64, version int64) error {
	tag, err := tx.tx.Exec(ctx, `
		UPDATE orders SET total_amount = $1, version = version + 1, updated_at = NOW()
		WHERE id = $2 AND version = $3`, total, id, version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return tx.staleOrMissing(ctx, id)
	}
	return nil
}

func (tx *txRepo) UpdateOrderStatus(ctx context.Context, id int64, status OrderStatus, version int64) error {
	tag, err := tx.tx.Exec(ctx, `
		UPDATE orders SET status = $1, version = version + 1, updated_at = NOW()
		WHERE id = $2 AND version = $3`, string(status), id, version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return tx.staleOrMissing(ctx, id)
	}
	return nil
}

func (tx *txRepo) ItemsForOrder(ctx context.Context, orderID int64) ([]Item, error) {
	return queryItems(ctx, tx.tx, `SELECT `+itemColumns+` FROM order_items WHERE order_id = $1 ORDER BY id`, orderID)
}

func (tx *txRepo) LockItems(ctx context.Context, itemIDs []int64) ([]Item, error) {
	return queryItems(ctx, tx.tx, `SELECT `+itemColumns+` FROM order_items WHERE id = ANY($1) ORDER BY id FOR UPDATE`, itemIDs)
}

func (tx *txRepo) UpdateItemQty(ctx context.Context, itemID int64, qty, expectedPrice float64) error {
	tag, err := tx.tx.Exec(ctx, `
		UPDATE order_items SET qty = $1, expected_price = $2
		WHERE id = $3`, qty, expectedPrice, itemID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (tx *txRepo) UpdateItemStatus(ctx context.Context, itemIDs []int64, status ItemStatus) error {
	_, err := tx.tx.Exec(ctx, `UPDATE order_items SET status = $1 WHERE id = ANY($2)`, string(status), itemIDs)
	return err
}

func (tx *txRepo) DeleteItems(ctx context.Context, orderID int64, itemIDs []int64) error {
	_, err := tx.tx.Exec(ctx, `DELETE FROM order_items WHERE order_id = $1 AND id = ANY($2)`, orderID, itemIDs)
	return err
}

// LockMaterials reads the selected materials with a row lock, joined to their
// products for the project reference. Locking here is what makes the
// still-unordered check hold to the end of the transaction.
func (tx *txRepo) LockMaterials(ctx context.Context, materialIDs []int64) ([]MaterialSnapshot, error) {
	rows, err := tx.tx.Query(ctx, `
		SELECT pm.id, pm.product_id, p.project_id, pm.name, pm.qty, pm.unit, pm.total_price, pm.status
		FROM product_materials pm
		JOIN products p ON p.id = pm.product_id
		WHERE pm.id = ANY($1)
		ORDER BY pm.id
		FOR UPDATE OF pm`, materialIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var materials []MaterialSnapshot
	for rows.Next() {
		var m MaterialSnapshot
		if err := rows.Scan(&m.ID, &m.ProductID, &m.ProjectID, &m.Name, &m.Qty, &m.Unit, &m.TotalPrice, &m.Status); err != nil {
			return nil, err
		}
		materials = append(materials, m)
	}
	return materials, rows.Err()
}

func (tx *txRepo) UpdateMaterialStatus(ctx context.Context, materialIDs []int64, status catalog.MaterialStatus) error {
	_, err := tx.tx.Exec(ctx, `UPDATE product_materials SET status = $1 WHERE id = ANY($2)`, string(status), materialIDs)
	return err
}

func (tx *txRepo) staleOrMissing(ctx context.Context, id int64) error {
	var exists bool
	if err := tx.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return ErrStaleWrite
	}
	return ErrNotFound
}

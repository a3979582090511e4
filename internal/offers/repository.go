package offers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atelier-erp/atelier-erp/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for offers.
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

const offerColumns = `id, number, project_id, status, currency, include_tax, tax_rate,
	transport_cost, onsite_assembly, onsite_discount, notes, valid_until,
	subtotal, total, version, created_at, updated_at`

// Get returns the offer with lines and extras.
func (r *Repository) Get(ctx context.Context, id int64) (Offer, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+offerColumns+` FROM offers WHERE id = $1`, id)
	offer, err := scanOffer(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Offer{}, ErrNotFound
		}
		return Offer{}, err
	}
	lines, err := r.loadLines(ctx, []int64{id})
	if err != nil {
		return Offer{}, err
	}
	offer.Lines = lines[id]
	return offer, nil
}

// ListByProject returns every offer of a project with its lines; the conflict
// resolver needs the lines to see which products are claimed.
func (r *Repository) ListByProject(ctx context.Context, projectID int64) ([]Offer, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+offerColumns+` FROM offers WHERE project_id = $1 ORDER BY id`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Offer
	var ids []int64
	for rows.Next() {
		offer, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, offer)
		ids = append(ids, offer.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, nil
	}

	lines, err := r.loadLines(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range result {
		result[i].Lines = lines[result[i].ID]
	}
	return result, nil
}

// List returns offer summaries matching the filters plus the total count.
func (r *Repository) List(ctx context.Context, filters ListFilters) ([]Summary, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	argNum := 1
	if filters.ProjectID > 0 {
		where += fmt.Sprintf(` AND project_id = $%d`, argNum)
		args = append(args, filters.ProjectID)
		argNum++
	}
	if filters.Status != "" {
		where += fmt.Sprintf(` AND status = $%d`, argNum)
		args = append(args, string(filters.Status))
		argNum++
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM offers`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT id, number, project_id, status, currency, subtotal, total, valid_until, created_at
		FROM offers` + where + fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`, argNum, argNum+1)
	args = append(args, limit, filters.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var summaries []Summary
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, 0, err
		}
		summaries = append(summaries, s)
	}
	return summaries, total, rows.Err()
}

// ListOverdue returns SENT offers whose validity date passed before asOf.
func (r *Repository) ListOverdue(ctx context.Context, asOf time.Time) ([]Summary, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, number, project_id, status, currency, subtotal, total, valid_until, created_at
		FROM offers
		WHERE status = $1 AND valid_until IS NOT NULL AND valid_until < $2
		ORDER BY valid_until, id`, string(StatusSent), asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []Summary
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

func scanSummary(row pgx.Row) (Summary, error) {
	var s Summary
	var validUntil pgtype.Timestamptz
	err := row.Scan(&s.ID, &s.Number, &s.ProjectID, &s.Status, &s.Currency,
		&s.Subtotal, &s.Total, &validUntil, &s.CreatedAt)
	if validUntil.Valid {
		s.ValidUntil = validUntil.Time
	}
	return s, err
}

// FindAcceptedLineForProduct locates the product's line inside the accepted
// offer of its project. Profit analysis reads selling price and cost shares
// from here.
func (r *Repository) FindAcceptedLineForProduct(ctx context.Context, productID int64) (Offer, Line, error) {
	var offerID int64
	err := r.pool.QueryRow(ctx, `
		SELECT o.id
		FROM offers o
		JOIN offer_lines l ON l.offer_id = o.id
		WHERE o.status = $1 AND l.product_id = $2 AND l.included
		ORDER BY o.id
		LIMIT 1`, string(StatusAccepted), productID).Scan(&offerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Offer{}, Line{}, ErrNotFound
		}
		return Offer{}, Line{}, err
	}
	offer, err := r.Get(ctx, offerID)
	if err != nil {
		return Offer{}, Line{}, err
	}
	for _, line := range offer.Lines {
		if line.ProductID == productID && line.Included {
			return offer, line, nil
		}
	}
	return Offer{}, Line{}, ErrNotFound
}

// GenerateNumber issues the next OF-YYMM-NNNN document number.
func (r *Repository) GenerateNumber(ctx context.Context, date time.Time) (string, error) {
	var seq int64
	period := date.Format("200601")
	err := r.pool.QueryRow(ctx, `
		INSERT INTO document_sequences (doc_type, period, seq)
		VALUES ($1, $2, 1)
		ON CONFLICT (doc_type, period)
		DO UPDATE SET seq = document_sequences.seq + 1
		RETURNING seq`, "OF", period).Scan(&seq)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("OF-%s-%04d", date.Format("0601"), seq), nil
}

func (r *Repository) loadLines(ctx context.Context, offerIDs []int64) (map[int64][]Line, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT l.id, l.offer_id, l.product_id, COALESCE(p.name, ''), l.included, l.qty,
		       l.material_cost, l.margin, l.labor_workers, l.labor_days, l.labor_daily_rate,
		       l.line_total, l.line_order
		FROM offer_lines l
		LEFT JOIN products p ON p.id = l.product_id
		WHERE l.offer_id = ANY($1)
		ORDER BY l.offer_id, l.line_order, l.id`, offerIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byOffer := make(map[int64][]Line)
	lineIndex := make(map[int64]*Line)
	var lineIDs []int64
	for rows.Next() {
		var line Line
		if err := rows.Scan(&line.ID, &line.OfferID, &line.ProductID, &line.ProductName,
			&line.Included, &line.Qty, &line.MaterialCost, &line.Margin, &line.LaborWorkers,
			&line.LaborDays, &line.LaborDailyRate, &line.LineTotal, &line.LineOrder); err != nil {
			return nil, err
		}
		byOffer[line.OfferID] = append(byOffer[line.OfferID], line)
		lineIDs = append(lineIDs, line.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for offerID, lines := range byOffer {
		for i := range lines {
			lineIndex[lines[i].ID] = &byOffer[offerID][i]
		}
	}
	if len(lineIDs) == 0 {
		return byOffer, nil
	}

	extraRows, err := r.pool.Query(ctx, `
		SELECT id, offer_line_id, name, qty, unit, unit_price, total
		FROM offer_line_extras
		WHERE offer_line_id = ANY($1)
		ORDER BY offer_line_id, id`, lineIDs)
	if err != nil {
		return nil, err
	}
	defer extraRows.Close()

	for extraRows.Next() {
		var e Extra
		if err := extraRows.Scan(&e.ID, &e.LineID, &e.Name, &e.Qty, &e.Unit, &e.UnitPrice, &e.Total); err != nil {
			return nil, err
		}
		if line, ok := lineIndex[e.LineID]; ok {
			line.Extras = append(line.Extras, e)
		}
	}
	return byOffer, extraRows.Err()
}

func scanOffer(row pgx.Row) (Offer, error) {
	var o Offer
	var validUntil pgtype.Timestamptz
	err := row.Scan(&o.ID, &o.Number, &o.ProjectID, &o.Status, &o.Currency, &o.IncludeTax,
		&o.TaxRate, &o.TransportCost, &o.OnsiteAssembly, &o.OnsiteDiscount, &o.Notes,
		&validUntil, &o.Subtotal, &o.Total, &o.Version, &o.CreatedAt, &o.UpdatedAt)
	if validUntil.Valid {
		o.ValidUntil = validUntil.Time
	}
	return o, err
}

func nullTime(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func (tx *txRepo) InsertOffer(ctx context.Context, offer Offer) (int64, error) {
	var id int64
	err := tx.tx.QueryRow(ctx, `
		INSERT INTO offers (number, project_id, status, currency, include_tax, tax_rate,
			transport_cost, onsite_assembly, onsite_discount, notes, valid_until,
			subtotal, total, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, 1, NOW(), NOW())
		RETURNING id`,
		offer.Number, offer.ProjectID, string(offer.Status), offer.Currency, offer.IncludeTax,
		offer.TaxRate, offer.TransportCost, offer.OnsiteAssembly, offer.OnsiteDiscount,
		offer.Notes, nullTime(offer.ValidUntil), offer.Subtotal, offer.Total).Scan(&id)
	return id, err
}

// UpdateOffer rewrites the header. The version predicate rejects saves based
// on a stale load instead of silently applying last-write-wins.
func (tx *txRepo) UpdateOffer(ctx context.Context, offer Offer) error {
	tag, err := tx.tx.Exec(ctx, `
		UPDATE offers SET currency = $1, include_tax = $2, tax_rate = $3, transport_cost = $4,
			onsite_assembly = $5, onsite_discount = $6, notes = $7, valid_until = $8,
			subtotal = $9, total = $10, version = version + 1, updated_at = NOW()
		WHERE id = $11 AND version = $12`,
		offer.Currency, offer.IncludeTax, offer.TaxRate, offer.TransportCost,
		offer.OnsiteAssembly, offer.OnsiteDiscount, offer.Notes, nullTime(offer.ValidUntil),
		offer.Subtotal, offer.Total, offer.ID, offer.Version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return tx.staleOrMissing(ctx, offer.ID)
	}
	return nil
}

// ReplaceLines swaps the full line set: delete then insert, never patching.
func (tx *txRepo) ReplaceLines(ctx context.Context, offerID int64, lines []Line) error {
	if _, err := tx.tx.Exec(ctx, `DELETE FROM offer_line_extras WHERE offer_line_id IN (SELECT id FROM offer_lines WHERE offer_id = $1)`, offerID); err != nil {
		return err
	}
	if _, err := tx.tx.Exec(ctx, `DELETE FROM offer_lines WHERE offer_id = $1`, offerID); err != nil {
		return err
	}
	for _, line := range lines {
		var lineID int64
		err := tx.tx.QueryRow(ctx, `
			INSERT INTO offer_lines (offer_id, product_id, included, qty, material_cost, margin,
				labor_workers, labor_days, labor_daily_rate, line_total, line_order)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			RETURNING id`,
			offerID, line.ProductID, line.Included, line.Qty, line.MaterialCost, line.Margin,
			line.LaborWorkers, line.LaborDays, line.LaborDailyRate, line.LineTotal, line.LineOrder).Scan(&lineID)
		if err != nil {
			return err
		}
		for _, extra := range line.Extras {
			if _, err := tx.tx.Exec(ctx, `
				INSERT INTO offer_line_extras (offer_line_id, name, qty, unit, unit_price, total)
				VALUES ($1, $2, $3, $4, $5, $6)`,
				lineID, extra.Name, extra.Qty, extra.Unit, extra.UnitPrice, extra.Total); err != nil {
				return err
			}
		}
	}
	return nil
}

func (tx *txRepo) UpdateStatus(ctx context.Context, id int64, status OfferStatus, version int64) error {
	tag, err := tx.tx.Exec(ctx, `
		UPDATE offers SET status = $1, version = version + 1, updated_at = NOW()
		WHERE id = $2 AND version = $3`, string(status), id, version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return tx.staleOrMissing(ctx, id)
	}
	return nil
}

func (tx *txRepo) DeleteOffer(ctx context.Context, id int64) error {
	if _, err := tx.tx.Exec(ctx, `DELETE FROM offer_line_extras WHERE offer_line_id IN (SELECT id FROM offer_lines WHERE offer_id = $1)`, id); err != nil {
		return err
	}
	if _, err := tx.tx.Exec(ctx, `DELETE FROM offer_lines WHERE offer_id = $1`, id); err != nil {
		return err
	}
	tag, err := tx.tx.Exec(ctx, `DELETE FROM offers WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (tx *txRepo) staleOrMissing(ctx context.Context, id int64) error {
	var exists bool
	if err := tx.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM offers WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return ErrStaleWrite
	}
	return ErrNotFound
}

package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/flyerflutter/dealcomb/app/deal"
)

// ErrStoreUnavailable wraps low-level database failures so callers can
// distinguish "the store is broken" from "the store is empty".
var ErrStoreUnavailable = errors.New("deal store unavailable")

// Filters narrows a deal listing. Zero values mean "no constraint".
type Filters struct {
	Category       string
	MinPrice       float64
	MaxPrice       float64
	MinDiscount    float64
	Merchants      []string
	BlockMerchants []string
	Search         string
}

type DealRepository struct {
	db              *DB
	freshnessWindow time.Duration
}

func NewDealRepository(db *DB, freshnessWindow time.Duration) *DealRepository {
	return &DealRepository{db: db, freshnessWindow: freshnessWindow}
}

// UpsertMany writes a normalized batch for one area. Rows are matched on
// (area_key, merchant_id, source_item_id); existing rows are updated in
// place so repeated refreshes do not accumulate duplicates. A batch that
// contains the same identity twice is rejected outright, since that
// indicates a normalization bug rather than bad upstream data.
func (r *DealRepository) UpsertMany(areaKey string, deals []deal.Deal) error {
	seen := make(map[string]struct{}, len(deals))
	for _, d := range deals {
		key := d.MerchantID + "\x00" + d.SourceItemID
		if _, dup := seen[key]; dup {
			return fmt.Errorf("duplicate deal identity in batch: merchant=%s item=%s", d.MerchantID, d.SourceItemID)
		}
		seen[key] = struct{}{}
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO deals (
			id, area_key, merchant_id, merchant_name, source_item_id,
			name, description, category, price, original_price, discount_percent,
			image_url, flyer_url, valid_from, valid_to, fetched_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (area_key, merchant_id, source_item_id) DO UPDATE SET
			merchant_name = excluded.merchant_name,
			name = excluded.name,
			description = excluded.description,
			category = excluded.category,
			price = excluded.price,
			original_price = excluded.original_price,
			discount_percent = excluded.discount_percent,
			image_url = excluded.image_url,
			flyer_url = excluded.flyer_url,
			valid_from = excluded.valid_from,
			valid_to = excluded.valid_to,
			fetched_at = excluded.fetched_at,
			updated_at = CURRENT_TIMESTAMP
	`)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	defer stmt.Close()

	for _, d := range deals {
		id := d.ID
		if id == "" {
			id = uuid.NewString()
		}
		_, err := stmt.Exec(
			id, areaKey, d.MerchantID, d.MerchantName, d.SourceItemID,
			d.Name, d.Description, d.Category, d.Price, d.OriginalPrice, d.DiscountPercent,
			d.ImageURL, d.FlyerURL, d.ValidFrom, d.ValidTo, d.FetchedAt,
		)
		if err != nil {
			return fmt.Errorf("%w: upsert %s/%s: %w", ErrStoreUnavailable, d.MerchantID, d.SourceItemID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return nil
}

// Query returns deals for an area that are both inside their validity
// window and fetched within the freshness window, cheapest first.
func (r *DealRepository) Query(areaKey string, f Filters, now time.Time) ([]deal.Deal, error) {
	var (
		conds = []string{
			"area_key = ?",
			"valid_from <= ?",
			"(valid_to IS NULL OR valid_to >= ?)",
			"fetched_at >= ?",
		}
		args = []any{areaKey, now, now, now.Add(-r.freshnessWindow)}
	)

	if f.Category != "" {
		conds = append(conds, "category = ?")
		args = append(args, f.Category)
	}
	if f.MinPrice > 0 {
		conds = append(conds, "price >= ?")
		args = append(args, f.MinPrice)
	}
	if f.MaxPrice > 0 {
		conds = append(conds, "price <= ?")
		args = append(args, f.MaxPrice)
	}
	if f.MinDiscount > 0 {
		conds = append(conds, "discount_percent IS NOT NULL AND discount_percent >= ?")
		args = append(args, f.MinDiscount)
	}
	if len(f.Merchants) > 0 {
		conds = append(conds, "merchant_id IN ("+placeholders(len(f.Merchants))+")")
		for _, m := range f.Merchants {
			args = append(args, m)
		}
	}
	if len(f.BlockMerchants) > 0 {
		conds = append(conds, "merchant_id NOT IN ("+placeholders(len(f.BlockMerchants))+")")
		for _, m := range f.BlockMerchants {
			args = append(args, m)
		}
	}
	if f.Search != "" {
		conds = append(conds, "(name LIKE ? OR description LIKE ?)")
		pattern := "%" + f.Search + "%"
		args = append(args, pattern, pattern)
	}

	query := `
		SELECT id, area_key, merchant_id, merchant_name, source_item_id,
			name, description, category, price, original_price, discount_percent,
			image_url, flyer_url, valid_from, valid_to, fetched_at
		FROM deals
		WHERE ` + strings.Join(conds, " AND ") + `
		ORDER BY price ASC, fetched_at DESC, merchant_name ASC`

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	return scanDeals(rows)
}

// CountForArea counts deals still inside the freshness window,
// regardless of validity dates.
func (r *DealRepository) CountForArea(areaKey string, now time.Time) (int, error) {
	var n int
	err := r.db.QueryRow(
		"SELECT COUNT(*) FROM deals WHERE area_key = ? AND fetched_at >= ?",
		areaKey, now.Add(-r.freshnessWindow),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return n, nil
}

// PruneExpired deletes rows that fell out of the freshness window and
// rows whose validity window has ended. Returns the number removed.
func (r *DealRepository) PruneExpired(now time.Time) (int64, error) {
	res, err := r.db.Exec(
		"DELETE FROM deals WHERE fetched_at < ? OR (valid_to IS NOT NULL AND valid_to < ?)",
		now.Add(-r.freshnessWindow), now,
	)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (r *DealRepository) Stats() (Stats, error) {
	var s Stats
	err := r.db.QueryRow("SELECT COUNT(*), COUNT(DISTINCT area_key) FROM deals").Scan(&s.TotalDeals, &s.TotalAreas)
	if err != nil {
		return Stats{}, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return s, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func scanDeals(rows *sql.Rows) ([]deal.Deal, error) {
	var deals []deal.Deal
	for rows.Next() {
		var d deal.Deal
		err := rows.Scan(
			&d.ID, &d.AreaKey, &d.MerchantID, &d.MerchantName, &d.SourceItemID,
			&d.Name, &d.Description, &d.Category, &d.Price, &d.OriginalPrice, &d.DiscountPercent,
			&d.ImageURL, &d.FlyerURL, &d.ValidFrom, &d.ValidTo, &d.FetchedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("%w: scan: %w", ErrStoreUnavailable, err)
		}
		deals = append(deals, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return deals, nil
}

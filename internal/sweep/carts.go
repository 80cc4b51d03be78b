package sweep

import (
	"context"
	"database/sql"
	"time"

	"github.com/joao-fontenele/storefront-orderflow/internal/domain"
)

// CartRepository reads carts written by the storefront. Only the reminder
// timestamp is ever written here.
type CartRepository struct {
	db *sql.DB
}

func NewCartRepository(db *sql.DB) *CartRepository {
	return &CartRepository{db: db}
}

func (r *CartRepository) ListAbandoned(ctx context.Context, cutoff time.Time, limit int) ([]domain.Cart, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, email, item_count, updated_at
		FROM carts
		WHERE converted_at IS NULL
		  AND reminder_sent_at IS NULL
		  AND email <> ''
		  AND item_count > 0
		  AND updated_at <= $1
		ORDER BY updated_at
		LIMIT $2
	`, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var carts []domain.Cart
	for rows.Next() {
		var c domain.Cart
		if err := rows.Scan(&c.ID, &c.Email, &c.ItemCount, &c.UpdatedAt); err != nil {
			return nil, err
		}
		carts = append(carts, c)
	}

	return carts, rows.Err()
}

func (r *CartRepository) MarkReminded(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE carts SET reminder_sent_at = $2 WHERE id = $1 AND reminder_sent_at IS NULL
	`, id, at)
	return err
}

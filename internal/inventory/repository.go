package inventory

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/joao-fontenele/storefront-orderflow/internal/domain"
)

type ProductRepository struct {
	db *sql.DB
}

func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

func (r *ProductRepository) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	p := &domain.Product{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, title, price, COALESCE(image_url, ''), active
		FROM products
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Title, &p.Price, &p.ImageURL, &p.Active)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

func (r *ProductRepository) ListStock(ctx context.Context, productID string) ([]domain.StockLevel, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT product_id, size, available
		FROM product_stock
		WHERE product_id = $1
		ORDER BY size
	`, productID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	levels := []domain.StockLevel{}
	for rows.Next() {
		var s domain.StockLevel
		if err := rows.Scan(&s.ProductID, &s.Size, &s.Available); err != nil {
			return nil, err
		}
		levels = append(levels, s)
	}

	return levels, rows.Err()
}

// SetStock stores the new level and returns the previous one (0 when the
// size had no row). The row lock serialises concurrent edits of one size.
func (r *ProductRepository) SetStock(ctx context.Context, productID, size string, available int) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	var previous int
	err = tx.QueryRowContext(ctx, `
		SELECT available FROM product_stock WHERE product_id = $1 AND size = $2 FOR UPDATE
	`, productID, size).Scan(&previous)
	if err != nil && err != sql.ErrNoRows {
		return 0, fmt.Errorf("read stock: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO product_stock (product_id, size, available, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (product_id, size) DO UPDATE SET available = EXCLUDED.available, updated_at = NOW()
	`, productID, size, available)
	if err != nil {
		return 0, fmt.Errorf("write stock: %w", err)
	}

	return previous, tx.Commit()
}

// Subscribe adds an email to a size's waitlist. Re-subscribing while a
// pending subscription exists returns the existing one.
func (r *ProductRepository) Subscribe(ctx context.Context, sub *domain.RestockSubscription) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO restock_subscriptions (id, product_id, size, email, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (product_id, size, email) WHERE notified_at IS NULL DO NOTHING
		RETURNING id, created_at
	`, sub.ID, sub.ProductID, sub.Size, sub.Email, sub.CreatedAt).Scan(&sub.ID, &sub.CreatedAt)
	if err != sql.ErrNoRows {
		return err
	}

	return r.db.QueryRowContext(ctx, `
		SELECT id, created_at
		FROM restock_subscriptions
		WHERE product_id = $1 AND size = $2 AND email = $3 AND notified_at IS NULL
	`, sub.ProductID, sub.Size, sub.Email).Scan(&sub.ID, &sub.CreatedAt)
}

// ListRestockDue returns pending subscriptions whose size is in stock. An
// empty productID matches every product.
func (r *ProductRepository) ListRestockDue(ctx context.Context, productID, size string, limit int) ([]RestockCandidate, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT s.id, s.product_id, s.size, s.email, s.created_at, p.title
		FROM restock_subscriptions s
		JOIN products p ON p.id = s.product_id
		JOIN product_stock st ON st.product_id = s.product_id AND st.size = s.size
		WHERE s.notified_at IS NULL
		  AND st.available > 0
		  AND p.active
		  AND ($1 = '' OR s.product_id = $1)
		  AND ($2 = '' OR s.size = $2)
		ORDER BY s.created_at
		LIMIT $3
	`, productID, size, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []RestockCandidate
	for rows.Next() {
		var c RestockCandidate
		if err := rows.Scan(&c.Subscription.ID, &c.Subscription.ProductID, &c.Subscription.Size,
			&c.Subscription.Email, &c.Subscription.CreatedAt, &c.ProductTitle); err != nil {
			return nil, err
		}
		out = append(out, c)
	}

	return out, rows.Err()
}

func (r *ProductRepository) MarkNotified(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE restock_subscriptions SET notified_at = $2 WHERE id = $1 AND notified_at IS NULL
	`, id, at)
	return err
}

package orders

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/joao-fontenele/storefront-orderflow/internal/domain"
	"github.com/joao-fontenele/storefront-orderflow/internal/notify"
	"github.com/joao-fontenele/storefront-orderflow/internal/sequence"
)

type OrderRepository struct {
	db        *sql.DB
	counter   *sequence.Counter
	formatter sequence.Formatter
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{
		db:        db,
		counter:   sequence.NewCounter(sequence.OrderNumbers),
		formatter: sequence.DefaultFormatter,
	}
}

// Create allocates the order number, then writes the order, its items, the
// first history entry and any intents in one transaction.
func (r *OrderRepository) Create(ctx context.Context, o *domain.Order, build IntentBuilder) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	n, err := r.counter.Next(ctx, tx)
	if err != nil {
		return err
	}
	o.OrderNumber = r.formatter.Format(n)
	o.Version = 1

	addr := o.ShippingAddress
	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (
			id, order_number, total, currency, status, payment_status, payment_method,
			customer_name, customer_email, customer_phone, street, city, province, postal_code, country,
			created_at, updated_at, expires_at, version
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`, o.ID, o.OrderNumber, o.Total, o.Currency, o.Status, o.PaymentStatus, o.PaymentMethod,
		addr.Name, addr.Email, addr.Phone, addr.Street, addr.City, addr.Province, addr.PostalCode, addr.Country,
		o.CreatedAt, o.UpdatedAt, o.ExpiresAt, o.Version)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for i, item := range o.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, position, product_id, size, quantity, unit_price, title, image_url)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, o.ID, i, item.ProductID, item.Size, item.Quantity, item.UnitPrice, item.Title, item.ImageURL)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	for _, entry := range o.StatusHistory {
		if err := insertHistory(ctx, tx, o.ID, entry); err != nil {
			return err
		}
	}

	if build != nil {
		intents, err := build(o)
		if err != nil {
			return err
		}
		for _, in := range intents {
			if err := notify.InsertIntent(ctx, tx, in); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

func insertHistory(ctx context.Context, tx *sql.Tx, orderID string, entry domain.StatusHistoryEntry) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO order_status_history (order_id, status, note, created_at)
		VALUES ($1, $2, NULLIF($3, ''), $4)
	`, orderID, entry.Status, entry.Note, entry.Timestamp)
	if err != nil {
		return fmt.Errorf("insert status history: %w", err)
	}
	return nil
}

func (r *OrderRepository) Update(ctx context.Context, o *domain.Order, expectedVersion int, entry *domain.StatusHistoryEntry, intents []*domain.NotificationIntent) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET status = $3, payment_status = $4, payment_confirmed_at = $5,
		    tracking_number = NULLIF($6, ''), carrier = NULLIF($7, ''),
		    updated_at = $8, version = version + 1
		WHERE id = $1 AND version = $2
	`, o.ID, expectedVersion, o.Status, o.PaymentStatus, o.PaymentConfirmedAt,
		o.TrackingNumber, o.Carrier, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrConcurrentUpdate
	}

	if entry != nil {
		if err := insertHistory(ctx, tx, o.ID, *entry); err != nil {
			return err
		}
	}

	for _, in := range intents {
		if err := notify.InsertIntent(ctx, tx, in); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	o.Version = expectedVersion + 1
	return nil
}

// Delete removes the order; items and history go with it via ON DELETE CASCADE.
func (r *OrderRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	return r.get(ctx, "id = $1", id)
}

func (r *OrderRepository) GetByNumber(ctx context.Context, number string) (*domain.Order, error) {
	if _, err := r.formatter.Parse(number); err != nil {
		return nil, nil
	}
	return r.get(ctx, "order_number = $1", number)
}

func (r *OrderRepository) get(ctx context.Context, where string, arg any) (*domain.Order, error) {
	o := &domain.Order{}
	var (
		phone, tracking, carrier sql.NullString
		confirmedAt              sql.NullTime
	)

	err := r.db.QueryRowContext(ctx, `
		SELECT id, order_number, total, currency, status, payment_status, payment_method,
		       customer_name, customer_email, customer_phone, street, city, province, postal_code, country,
		       tracking_number, carrier, created_at, updated_at, expires_at, payment_confirmed_at, version
		FROM orders
		WHERE `+where, arg).Scan(
		&o.ID, &o.OrderNumber, &o.Total, &o.Currency, &o.Status, &o.PaymentStatus, &o.PaymentMethod,
		&o.ShippingAddress.Name, &o.ShippingAddress.Email, &phone, &o.ShippingAddress.Street,
		&o.ShippingAddress.City, &o.ShippingAddress.Province, &o.ShippingAddress.PostalCode, &o.ShippingAddress.Country,
		&tracking, &carrier, &o.CreatedAt, &o.UpdatedAt, &o.ExpiresAt, &confirmedAt, &o.Version,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	o.ShippingAddress.Phone = phone.String
	o.TrackingNumber = tracking.String
	o.Carrier = carrier.String
	if confirmedAt.Valid {
		t := confirmedAt.Time
		o.PaymentConfirmedAt = &t
	}

	if o.Items, err = r.items(ctx, o.ID); err != nil {
		return nil, err
	}
	if o.StatusHistory, err = r.history(ctx, o.ID); err != nil {
		return nil, err
	}

	return o, nil
}

func (r *OrderRepository) items(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT product_id, size, quantity, unit_price, title, COALESCE(image_url, '')
		FROM order_items
		WHERE order_id = $1
		ORDER BY position
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	items := []domain.OrderItem{}
	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ProductID, &it.Size, &it.Quantity, &it.UnitPrice, &it.Title, &it.ImageURL); err != nil {
			return nil, err
		}
		items = append(items, it)
	}

	return items, rows.Err()
}

func (r *OrderRepository) history(ctx context.Context, orderID string) ([]domain.StatusHistoryEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT status, COALESCE(note, ''), created_at
		FROM order_status_history
		WHERE order_id = $1
		ORDER BY id
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var history []domain.StatusHistoryEntry
	for rows.Next() {
		var e domain.StatusHistoryEntry
		if err := rows.Scan(&e.Status, &e.Note, &e.Timestamp); err != nil {
			return nil, err
		}
		history = append(history, e)
	}

	return history, rows.Err()
}

// ListFollowUpDue returns fulfilled orders placed before cutoff that have not
// had a follow-up yet.
func (r *OrderRepository) ListFollowUpDue(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id
		FROM orders
		WHERE status IN ('shipped', 'delivered', 'completed')
		  AND created_at <= $1
		  AND follow_up_sent_at IS NULL
		ORDER BY created_at
		LIMIT $2
	`, cutoff, limit)
	if err != nil {
		return nil, err
	}

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	orders := make([]*domain.Order, 0, len(ids))
	for _, id := range ids {
		o, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if o != nil {
			orders = append(orders, o)
		}
	}

	return orders, nil
}

func (r *OrderRepository) MarkFollowUpSent(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE orders SET follow_up_sent_at = $2 WHERE id = $1 AND follow_up_sent_at IS NULL
	`, id, at)
	return err
}

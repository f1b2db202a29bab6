package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	domain "github.com/Zhima-Mochi/minishop-orders/internal/domain/order"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// Ledger stores orders in Postgres. Update holds the order's row lock for the
// duration of fn.
type Ledger struct{ db DB }

var _ domain.Ledger = (*Ledger)(nil)

func NewLedger(db DB) *Ledger { return &Ledger{db: db} }

const orderColumns = `id, customer_id, idempotency_key, lines, total::text, status, payment_ref,
	failure_reason, shipping_address, delivery_task_id, created_at, updated_at`

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		o     domain.Order
		lines []byte
		total string
	)
	err := row.Scan(&o.ID, &o.CustomerID, &o.IdempotencyKey, &lines, &total, &o.Status, &o.PaymentRef,
		&o.FailureReason, &o.ShippingAddress, &o.DeliveryTaskID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(lines, &o.Lines); err != nil {
		return nil, fmt.Errorf("order ledger: decode lines of %s: %w", o.ID, err)
	}
	if o.Total, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("order ledger: parse total of %s: %w", o.ID, err)
	}
	return &o, nil
}

func (l *Ledger) Put(ctx context.Context, o *domain.Order) error {
	if o == nil || o.ID == "" {
		return fmt.Errorf("order ledger: id is required")
	}
	lines, err := json.Marshal(o.Lines)
	if err != nil {
		return fmt.Errorf("order ledger: encode lines: %w", err)
	}
	tag, err := l.db.Exec(ctx, `
		INSERT INTO orders (id, customer_id, idempotency_key, lines, total, status, payment_ref,
			failure_reason, shipping_address, delivery_task_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO NOTHING`,
		o.ID, o.CustomerID, o.IdempotencyKey, lines, o.Total.String(), string(o.Status), o.PaymentRef,
		o.FailureReason, o.ShippingAddress, o.DeliveryTaskID, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrConflict
	}
	return nil
}

func (l *Ledger) Get(ctx context.Context, id string) (*domain.Order, error) {
	return scanOrder(l.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
}

func (l *Ledger) Update(ctx context.Context, id string, fn func(*domain.Order) error) (*domain.Order, error) {
	tx, err := l.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	o, err := scanOrder(tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, err
	}
	if err := fn(o); err != nil {
		return nil, err
	}
	lines, err := json.Marshal(o.Lines)
	if err != nil {
		return nil, fmt.Errorf("order ledger: encode lines: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		UPDATE orders SET lines = $2, total = $3::numeric, status = $4, payment_ref = $5,
			failure_reason = $6, shipping_address = $7, delivery_task_id = $8, updated_at = $9
		WHERE id = $1`,
		o.ID, lines, o.Total.String(), string(o.Status), o.PaymentRef,
		o.FailureReason, o.ShippingAddress, o.DeliveryTaskID, o.UpdatedAt); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return o, nil
}

// List returns orders oldest first; an empty customerID lists every order.
func (l *Ledger) List(ctx context.Context, customerID string) ([]*domain.Order, error) {
	rows, err := l.db.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE $1 = '' OR customer_id = $1
		ORDER BY created_at, id`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

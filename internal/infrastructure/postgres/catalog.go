package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/Zhima-Mochi/minishop-orders/internal/domain/catalog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// Catalog stores products in Postgres. The row lock taken by SELECT ... FOR
// UPDATE is the per-product critical section; different products never contend.
type Catalog struct{ db DB }

var _ domain.Catalog = (*Catalog)(nil)

func NewCatalog(db DB) *Catalog { return &Catalog{db: db} }

const productColumns = `id, name, author, price::text, stock, updated_at`

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var (
		p     domain.Product
		price string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Author, &price, &p.Stock, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrProductNotFound
		}
		return nil, err
	}
	d, err := decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("catalog: parse price %q: %w", price, err)
	}
	p.Price = d
	return &p, nil
}

func (c *Catalog) Add(ctx context.Context, p *domain.Product) error {
	if p == nil || p.ID == "" {
		return domain.ErrInvalidProduct
	}
	tag, err := c.db.Exec(ctx, `
		INSERT INTO products (id, name, author, price, stock, updated_at)
		VALUES ($1, $2, $3, $4::numeric, $5, $6)
		ON CONFLICT (id) DO NOTHING`,
		p.ID, p.Name, p.Author, p.Price.String(), p.Stock, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("catalog: insert %s: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateProduct, p.ID)
	}
	return nil
}

func (c *Catalog) Reserve(ctx context.Context, productID string, quantity int) (domain.Reservation, error) {
	if quantity <= 0 {
		return domain.Reservation{}, domain.ErrInvalidQuantity
	}
	tx, err := c.db.Begin(ctx)
	if err != nil {
		return domain.Reservation{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	p, err := scanProduct(tx.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1 FOR UPDATE`, productID))
	if err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			return domain.Reservation{}, fmt.Errorf("%w: %s", domain.ErrProductNotFound, productID)
		}
		return domain.Reservation{}, err
	}
	if err := p.Deduct(quantity); err != nil {
		return domain.Reservation{}, err
	}

	r := domain.Reservation{
		ID:         uuid.NewString(),
		ProductID:  productID,
		Quantity:   quantity,
		UnitPrice:  p.Price,
		ReservedAt: time.Now().UTC(),
	}
	if _, err := tx.Exec(ctx, `UPDATE products SET stock = $2, updated_at = $3 WHERE id = $1`, productID, p.Stock, p.UpdatedAt); err != nil {
		return domain.Reservation{}, err
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO reservations (id, product_id, quantity, unit_price, state, reserved_at)
		VALUES ($1, $2, $3, $4::numeric, $5, $6)`,
		r.ID, r.ProductID, r.Quantity, r.UnitPrice.String(), string(domain.HoldActive), r.ReservedAt); err != nil {
		return domain.Reservation{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Reservation{}, err
	}
	return r, nil
}

// Release puts an active reservation's units back. Released and committed
// reservations are left alone.
func (c *Catalog) Release(ctx context.Context, r domain.Reservation) error {
	tx, err := c.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var (
		state    string
		quantity int
	)
	err = tx.QueryRow(ctx, `SELECT state, quantity FROM reservations WHERE id = $1 FOR UPDATE`, r.ID).Scan(&state, &quantity)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}
	if domain.HoldState(state) != domain.HoldActive {
		return nil
	}
	if _, err := tx.Exec(ctx, `UPDATE products SET stock = stock + $2, updated_at = now() WHERE id = $1`, r.ProductID, quantity); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `UPDATE reservations SET state = $2 WHERE id = $1`, r.ID, string(domain.HoldReleased)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (c *Catalog) Commit(ctx context.Context, r domain.Reservation) error {
	tag, err := c.db.Exec(ctx, `UPDATE reservations SET state = $2 WHERE id = $1 AND state = $3`,
		r.ID, string(domain.HoldCommitted), string(domain.HoldActive))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	var state string
	err = c.db.QueryRow(ctx, `SELECT state FROM reservations WHERE id = $1`, r.ID).Scan(&state)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return fmt.Errorf("%w: unknown reservation %s", domain.ErrReservationNotHeld, r.ID)
	case err != nil:
		return err
	case domain.HoldState(state) == domain.HoldCommitted:
		return nil
	default:
		return fmt.Errorf("%w: reservation %s already %s", domain.ErrReservationNotHeld, r.ID, state)
	}
}

func (c *Catalog) Get(ctx context.Context, productID string) (*domain.Product, error) {
	p, err := scanProduct(c.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, productID))
	if errors.Is(err, domain.ErrProductNotFound) {
		return nil, fmt.Errorf("%w: %s", domain.ErrProductNotFound, productID)
	}
	return p, err
}

func (c *Catalog) List(ctx context.Context) ([]*domain.Product, error) {
	rows, err := c.db.Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (c *Catalog) Replenish(ctx context.Context, productID string, quantity int) (*domain.Product, error) {
	if quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}
	p, err := scanProduct(c.db.QueryRow(ctx, `
		UPDATE products SET stock = stock + $2, updated_at = now()
		WHERE id = $1
		RETURNING `+productColumns, productID, quantity))
	if errors.Is(err, domain.ErrProductNotFound) {
		return nil, fmt.Errorf("%w: %s", domain.ErrProductNotFound, productID)
	}
	if isOutOfRange(err) {
		return nil, fmt.Errorf("%w: %s adding %d", domain.ErrStockOverflow, productID, quantity)
	}
	return p, err
}

// isOutOfRange reports a value that does not fit its INTEGER column.
func isOutOfRange(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "22003"
}

func (c *Catalog) UpdatePrice(ctx context.Context, productID string, price decimal.Decimal) (*domain.Product, error) {
	if price.IsNegative() {
		return nil, domain.ErrInvalidPrice
	}
	p, err := scanProduct(c.db.QueryRow(ctx, `
		UPDATE products SET price = $2::numeric, updated_at = now()
		WHERE id = $1
		RETURNING `+productColumns, productID, price.String()))
	if errors.Is(err, domain.ErrProductNotFound) {
		return nil, fmt.Errorf("%w: %s", domain.ErrProductNotFound, productID)
	}
	return p, err
}

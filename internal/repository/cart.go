package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/craftista/checkout/internal/domain/cart"
)

const (
	getCartSQL = `SELECT user_id, lines, updated_at FROM carts WHERE user_id = $1`

	// One row per user: a concurrent first add upserts instead of failing.
	saveCartSQL = `INSERT INTO carts (user_id, lines, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET lines = EXCLUDED.lines, updated_at = EXCLUDED.updated_at`

	deleteCartSQL = `DELETE FROM carts WHERE user_id = $1`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL. The cart is
// a single JSONB document per user, so every mutation is one statement.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// Get returns the user's cart, or cart.ErrNotFound when none exists yet.
func (r *CartRepository) Get(ctx context.Context, userID string) (*cart.Cart, error) {
	var (
		c         cart.Cart
		linesJSON []byte
	)
	err := r.pool.QueryRow(ctx, getCartSQL, userID).Scan(&c.UserID, &linesJSON, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrNotFound
		}
		return nil, fmt.Errorf("getting cart for user %q: %w", userID, err)
	}
	if err := json.Unmarshal(linesJSON, &c.Lines); err != nil {
		return nil, fmt.Errorf("unmarshaling cart lines: %w", err)
	}
	return &c, nil
}

// Save upserts the user's cart document.
func (r *CartRepository) Save(ctx context.Context, c *cart.Cart) error {
	lines := c.Lines
	if lines == nil {
		lines = []cart.Line{}
	}
	linesJSON, err := json.Marshal(lines)
	if err != nil {
		return fmt.Errorf("marshaling cart lines: %w", err)
	}

	_, err = r.pool.Exec(ctx, saveCartSQL, c.UserID, linesJSON, time.Now())
	if err != nil {
		return fmt.Errorf("saving cart for user %q: %w", c.UserID, err)
	}
	return nil
}

// Delete removes the user's cart. Deleting an absent cart returns
// cart.ErrNotFound.
func (r *CartRepository) Delete(ctx context.Context, userID string) error {
	tag, err := r.pool.Exec(ctx, deleteCartSQL, userID)
	if err != nil {
		return fmt.Errorf("deleting cart for user %q: %w", userID, err)
	}
	if tag.RowsAffected() == 0 {
		return cart.ErrNotFound
	}
	return nil
}

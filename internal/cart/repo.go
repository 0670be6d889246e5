package cart

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"storefront/internal/apperr"
	"storefront/internal/db"
	"storefront/internal/domain/cart"
	"storefront/internal/domain/product"
)

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{db: db}
}

// Items loads the user's lines. Lines whose product was deleted keep a nil
// Product so the cart view can still show and remove them.
func (r *Repo) Items(ctx context.Context, userID int64) ([]cart.Item, error) {
	rows, err := r.db.Query(ctx, `
		SELECT ci.id, ci.product_id, ci.quantity, ci.selected_size, ci.selected_color, ci.added_at,
		       p.id, COALESCE(p.name, ''), COALESCE(p.price, 0), p.original_price, COALESCE(p.images, '{}'),
		       COALESCE(p.stock, 0), COALESCE(p.in_stock, false), COALESCE(p.is_active, false),
		       COALESCE(p.rating, 0), COALESCE(p.review_count, 0)
		FROM cart_items ci
		LEFT JOIN products p ON p.id = ci.product_id AND p.deleted_at IS NULL
		WHERE ci.user_id = $1
		ORDER BY ci.added_at DESC, ci.id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	defer rows.Close()

	out := []cart.Item{}
	for rows.Next() {
		var (
			it  cart.Item
			pid *int64
			s   product.Summary
		)
		if err := rows.Scan(&it.ID, &it.ProductID, &it.Quantity, &it.SelectedSize, &it.SelectedColor, &it.AddedAt,
			&pid, &s.Name, &s.Price, &s.OriginalPrice, &s.Images, &s.Stock, &s.InStock, &s.IsActive,
			&s.Rating, &s.ReviewCount); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		if pid != nil {
			s.ID = *pid
			it.Product = &s
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (r *Repo) Count(ctx context.Context, userID int64) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COALESCE(SUM(quantity), 0) FROM cart_items WHERE user_id = $1`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count cart: %w", err)
	}
	return n, nil
}

// Add merges into an existing line with the same size and colour. The merged
// quantity is capped at cart.MaxQuantity.
func (r *Repo) Add(ctx context.Context, userID int64, l Line, qty int) error {
	var active bool
	err := r.db.QueryRow(ctx, `SELECT is_active FROM products WHERE id = $1 AND deleted_at IS NULL`, l.ProductID).Scan(&active)
	if err != nil {
		return db.Translate(err, "Product", "")
	}
	if !active {
		return apperr.Invalid("Product is not available")
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO cart_items (user_id, product_id, quantity, selected_size, selected_color)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, product_id, selected_size, selected_color)
		DO UPDATE SET quantity = LEAST(cart_items.quantity + EXCLUDED.quantity, $6)
	`, userID, l.ProductID, qty, l.SelectedSize, l.SelectedColor, cart.MaxQuantity)
	if err != nil {
		return fmt.Errorf("add cart item: %w", err)
	}
	return nil
}

func (r *Repo) SetQuantity(ctx context.Context, userID int64, l Line, qty int) error {
	ct, err := r.db.Exec(ctx, `
		UPDATE cart_items SET quantity = $5
		WHERE user_id = $1 AND product_id = $2 AND selected_size = $3 AND selected_color = $4
	`, userID, l.ProductID, l.SelectedSize, l.SelectedColor, qty)
	if err != nil {
		return fmt.Errorf("update cart item: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperr.NotFound("Cart item")
	}
	return nil
}

func (r *Repo) Remove(ctx context.Context, userID int64, l Line) error {
	_, err := r.db.Exec(ctx, `
		DELETE FROM cart_items
		WHERE user_id = $1 AND product_id = $2 AND selected_size = $3 AND selected_color = $4
	`, userID, l.ProductID, l.SelectedSize, l.SelectedColor)
	if err != nil {
		return fmt.Errorf("remove cart item: %w", err)
	}
	return nil
}

func (r *Repo) Clear(ctx context.Context, userID int64) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

package wishlist

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"storefront/internal/db"
	"storefront/internal/domain/product"
)

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{db: db}
}

// Items returns the saved products, newest first. Deleted products drop out.
func (r *Repo) Items(ctx context.Context, userID int64) ([]Item, error) {
	rows, err := r.db.Query(ctx, `
		SELECT w.added_at, p.id, p.name, p.price, p.original_price, p.images, p.stock, p.in_stock,
		       p.is_active, p.rating, p.review_count
		FROM wishlist_items w
		JOIN products p ON p.id = w.product_id AND p.deleted_at IS NULL
		WHERE w.user_id = $1
		ORDER BY w.added_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("load wishlist: %w", err)
	}
	defer rows.Close()

	out := []Item{}
	for rows.Next() {
		var (
			it Item
			s  product.Summary
		)
		if err := rows.Scan(&it.AddedAt, &s.ID, &s.Name, &s.Price, &s.OriginalPrice, &s.Images, &s.Stock,
			&s.InStock, &s.IsActive, &s.Rating, &s.ReviewCount); err != nil {
			return nil, fmt.Errorf("scan wishlist item: %w", err)
		}
		if s.Images == nil {
			s.Images = []string{}
		}
		it.ProductID, it.Product = s.ID, s
		out = append(out, it)
	}
	return out, rows.Err()
}

// Add is a no-op when the product is already saved.
func (r *Repo) Add(ctx context.Context, userID, productID int64) error {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT true FROM products WHERE id = $1 AND deleted_at IS NULL`, productID).Scan(&exists)
	if err != nil {
		return db.Translate(err, "Product", "")
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO wishlist_items (user_id, product_id) VALUES ($1, $2)
		ON CONFLICT (user_id, product_id) DO NOTHING
	`, userID, productID)
	if err != nil {
		return fmt.Errorf("add wishlist item: %w", err)
	}
	return nil
}

func (r *Repo) Remove(ctx context.Context, userID, productID int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM wishlist_items WHERE user_id = $1 AND product_id = $2`, userID, productID)
	if err != nil {
		return fmt.Errorf("remove wishlist item: %w", err)
	}
	return nil
}

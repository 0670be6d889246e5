package reviews

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"storefront/internal/db"
	"storefront/internal/domain/review"
)

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{db: db}
}

const selectReview = `
	SELECT r.id, r.product_id, r.user_id, trim(u.first_name || ' ' || u.last_name), r.rating, r.comment,
	       r.is_verified, r.created_at, r.updated_at
	FROM reviews r
	JOIN users u ON u.id = r.user_id`

func scanReview(row pgx.Row) (review.Review, error) {
	var rv review.Review
	err := row.Scan(&rv.ID, &rv.ProductID, &rv.UserID, &rv.UserName, &rv.Rating, &rv.Comment,
		&rv.IsVerified, &rv.CreatedAt, &rv.UpdatedAt)
	return rv, err
}

func (r *Repo) ByProduct(ctx context.Context, productID int64) ([]review.Review, error) {
	rows, err := r.db.Query(ctx, selectReview+` WHERE r.product_id = $1 ORDER BY r.created_at DESC`, productID)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	out := []review.Review{}
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		out = append(out, rv)
	}
	return out, rows.Err()
}

func (r *Repo) Get(ctx context.Context, id int64) (review.Review, error) {
	rv, err := scanReview(r.db.QueryRow(ctx, selectReview+` WHERE r.id = $1`, id))
	if err != nil {
		return review.Review{}, db.Translate(err, "Review", "")
	}
	return rv, nil
}

// refresh writes the product's average rating and review count.
func refresh(ctx context.Context, tx pgx.Tx, productID int64) error {
	_, err := tx.Exec(ctx, `
		UPDATE products SET
		  rating = COALESCE((SELECT round(avg(rating)::numeric, 2) FROM reviews WHERE product_id = $1), 0),
		  review_count = (SELECT count(*) FROM reviews WHERE product_id = $1),
		  updated_at = now()
		WHERE id = $1
	`, productID)
	if err != nil {
		return fmt.Errorf("refresh product rating: %w", err)
	}
	return nil
}

// Create marks the review verified when the author has a delivered order
// containing the product.
func (r *Repo) Create(ctx context.Context, productID, userID int64, rating int, comment string) (review.Review, error) {
	var id int64
	err := db.InTx(ctx, r.db, func(tx pgx.Tx) error {
		var exists bool
		err := tx.QueryRow(ctx, `SELECT true FROM products WHERE id = $1 AND deleted_at IS NULL`, productID).Scan(&exists)
		if err != nil {
			return db.Translate(err, "Product", "")
		}
		err = tx.QueryRow(ctx, `
			INSERT INTO reviews (product_id, user_id, rating, comment, is_verified)
			VALUES ($1, $2, $3, $4, EXISTS (
			  SELECT 1 FROM orders o JOIN order_items i ON i.order_id = o.id
			  WHERE o.user_id = $2 AND i.product_id = $1 AND o.order_status = 'delivered'))
			RETURNING id
		`, productID, userID, rating, comment).Scan(&id)
		if err != nil {
			return db.Translate(err, "Product", "You have already reviewed this product")
		}
		return refresh(ctx, tx, productID)
	})
	if err != nil {
		return review.Review{}, err
	}
	return r.Get(ctx, id)
}

func (r *Repo) Update(ctx context.Context, id int64, rating int, comment string) (review.Review, error) {
	err := db.InTx(ctx, r.db, func(tx pgx.Tx) error {
		var productID int64
		err := tx.QueryRow(ctx, `
			UPDATE reviews SET rating = $2, comment = $3, updated_at = now()
			WHERE id = $1 RETURNING product_id
		`, id, rating, comment).Scan(&productID)
		if err != nil {
			return db.Translate(err, "Review", "")
		}
		return refresh(ctx, tx, productID)
	})
	if err != nil {
		return review.Review{}, err
	}
	return r.Get(ctx, id)
}

func (r *Repo) Delete(ctx context.Context, id int64) error {
	return db.InTx(ctx, r.db, func(tx pgx.Tx) error {
		var productID int64
		err := tx.QueryRow(ctx, `DELETE FROM reviews WHERE id = $1 RETURNING product_id`, id).Scan(&productID)
		if err != nil {
			return db.Translate(err, "Review", "")
		}
		return refresh(ctx, tx, productID)
	})
}

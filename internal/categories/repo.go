package categories

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"storefront/internal/apperr"
	"storefront/internal/db"
	"storefront/internal/domain/category"
)

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{db: db}
}

const selectCategory = `
	SELECT c.id, c.name, c.slug, c.description, c.image, c.subcategories, c.featured,
	       c.sort_order, c.is_active, c.created_at, c.updated_at,
	       (SELECT count(*) FROM products p
	         WHERE p.category_id = c.id AND p.is_active AND p.deleted_at IS NULL) AS product_count
	FROM categories c`

func scanCategory(row pgx.Row) (category.Category, error) {
	var c category.Category
	err := row.Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &c.Image, &c.Subcategories, &c.Featured,
		&c.SortOrder, &c.IsActive, &c.CreatedAt, &c.UpdatedAt, &c.ProductCount)
	if c.Subcategories == nil {
		c.Subcategories = []category.Subcategory{}
	}
	return c, err
}

func (r *Repo) list(ctx context.Context, where string) ([]category.Category, error) {
	rows, err := r.db.Query(ctx, selectCategory+where+` ORDER BY c.sort_order ASC, c.name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	out := []category.Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repo) ListActive(ctx context.Context) ([]category.Category, error) {
	return r.list(ctx, ` WHERE c.is_active = true`)
}

func (r *Repo) ListAll(ctx context.Context) ([]category.Category, error) {
	return r.list(ctx, "")
}

// Get accepts a numeric id or a slug.
func (r *Repo) Get(ctx context.Context, idOrSlug string) (category.Category, error) {
	var row pgx.Row
	if id, err := strconv.ParseInt(idOrSlug, 10, 64); err == nil {
		row = r.db.QueryRow(ctx, selectCategory+` WHERE c.id = $1`, id)
	} else {
		row = r.db.QueryRow(ctx, selectCategory+` WHERE c.slug = $1`, idOrSlug)
	}
	c, err := scanCategory(row)
	return c, db.Translate(err, "Category", "")
}

func (r *Repo) Create(ctx context.Context, in Input) (category.Category, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO categories (name, slug, description, image, subcategories, featured, sort_order, is_active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING id
	`, in.Name, in.Slug, in.Description, in.Image, in.Subcategories, in.Featured, in.SortOrder, in.IsActive).Scan(&id)
	if err != nil {
		return category.Category{}, db.Translate(err, "Category", "Category with this name already exists")
	}
	return r.Get(ctx, strconv.FormatInt(id, 10))
}

func (r *Repo) Update(ctx context.Context, id int64, p Patch) (category.Category, error) {
	var subs any
	if p.Subcategories != nil {
		subs = p.Subcategories
	}
	ct, err := r.db.Exec(ctx, `
		UPDATE categories SET
		  name          = COALESCE($2, name),
		  slug          = COALESCE($3, slug),
		  description   = COALESCE($4, description),
		  image         = COALESCE($5, image),
		  subcategories = COALESCE($6, subcategories),
		  featured      = COALESCE($7, featured),
		  sort_order    = COALESCE($8, sort_order),
		  is_active     = COALESCE($9, is_active),
		  updated_at    = now()
		WHERE id = $1
	`, id, p.Name, p.Slug, p.Description, p.Image, subs, p.Featured, p.SortOrder, p.IsActive)
	if err != nil {
		return category.Category{}, db.Translate(err, "Category", "Category with this name already exists")
	}
	if ct.RowsAffected() == 0 {
		return category.Category{}, apperr.NotFound("Category")
	}
	return r.Get(ctx, strconv.FormatInt(id, 10))
}

// Delete refuses while any product, even a soft-deleted one, still points
// at the category.
func (r *Repo) Delete(ctx context.Context, id int64) error {
	return db.InTx(ctx, r.db, func(tx pgx.Tx) error {
		var n int
		if err := tx.QueryRow(ctx, `SELECT count(*) FROM products WHERE category_id=$1`, id).Scan(&n); err != nil {
			return err
		}
		if n > 0 {
			return apperr.Conflict("Cannot delete category with %d existing products", n)
		}
		ct, err := tx.Exec(ctx, `DELETE FROM categories WHERE id=$1`, id)
		if err != nil {
			return err
		}
		if ct.RowsAffected() == 0 {
			return apperr.NotFound("Category")
		}
		return nil
	})
}

// UpsertBySlug is used by the seed command.
func (r *Repo) UpsertBySlug(ctx context.Context, in Input) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO categories (name, slug, description, image, subcategories, featured, sort_order, is_active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (slug) DO UPDATE SET
		  name = EXCLUDED.name, description = EXCLUDED.description, image = EXCLUDED.image,
		  subcategories = EXCLUDED.subcategories, featured = EXCLUDED.featured,
		  sort_order = EXCLUDED.sort_order, is_active = EXCLUDED.is_active, updated_at = now()
	`, in.Name, in.Slug, in.Description, in.Image, in.Subcategories, in.Featured, in.SortOrder, in.IsActive)
	if err != nil {
		return fmt.Errorf("upsert category %q: %w", in.Slug, err)
	}
	return nil
}

package products

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"storefront/internal/apperr"
	"storefront/internal/db"
	"storefront/internal/domain/product"
)

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{db: db}
}

const selectProduct = `
	SELECT p.id, p.name, p.description, p.price, p.original_price, p.category_id, c.name, c.slug,
	       p.subcategory, p.material, p.colors, p.sizes, p.images, p.tags, p.stock, p.rating,
	       p.review_count, p.in_stock, p.is_featured, p.is_new, p.is_active, p.created_by,
	       p.updated_by, p.created_at, p.updated_at
	FROM products p
	JOIN categories c ON c.id = p.category_id`

func scanProduct(row pgx.Row) (product.Product, error) {
	var p product.Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.OriginalPrice, &p.CategoryID,
		&p.Category.Name, &p.Category.Slug, &p.Subcategory, &p.Material, &p.Colors, &p.Sizes,
		&p.Images, &p.Tags, &p.Stock, &p.Rating, &p.ReviewCount, &p.InStock, &p.IsFeatured,
		&p.IsNew, &p.IsActive, &p.CreatedBy, &p.UpdatedBy, &p.CreatedAt, &p.UpdatedAt)
	p.Category.ID = p.CategoryID
	p.Fill()
	return p, err
}

var sorts = map[string]string{
	"price":      "p.price ASC, p.id ASC",
	"-price":     "p.price DESC, p.id DESC",
	"createdAt":  "p.created_at ASC, p.id ASC",
	"-createdAt": "p.created_at DESC, p.id DESC",
	"rating":     "p.rating ASC, p.id ASC",
	"-rating":    "p.rating DESC, p.review_count DESC, p.id DESC",
}

func buildWhere(f Filter) *db.Where {
	w := &db.Where{}
	w.Raw("p.deleted_at IS NULL")
	if !f.IncludeInactive {
		w.Raw("p.is_active = true AND c.is_active = true")
	}
	if f.CategoryID > 0 {
		w.Add("p.category_id = ?", f.CategoryID)
	}
	if f.CategorySlug != "" {
		w.Add("c.slug = ?", f.CategorySlug)
	}
	if f.Subcategory != "" {
		w.Add("lower(p.subcategory) = lower(?)", f.Subcategory)
	}
	if f.MinPrice != nil {
		w.Add("p.price >= ?", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		w.Add("p.price <= ?", *f.MaxPrice)
	}
	if f.Query != "" {
		like := "%" + f.Query + "%"
		// tags are stored lower-case
		w.Add("(p.name ILIKE ? OR p.description ILIKE ? OR p.material ILIKE ? OR lower(?) = ANY(p.tags))",
			like, like, like, f.Query)
	}
	if f.InStock != nil {
		if *f.InStock {
			w.Raw("p.in_stock = true AND p.stock > 0")
		} else {
			w.Raw("(p.in_stock = false OR p.stock = 0)")
		}
	}
	if f.Featured != nil {
		w.Add("p.is_featured = ?", *f.Featured)
	}
	if f.IsNew != nil {
		w.Add("p.is_new = ?", *f.IsNew)
	}
	if f.Active != nil {
		w.Add("p.is_active = ?", *f.Active)
	}
	return w
}

func (r *Repo) List(ctx context.Context, f Filter) ([]product.Product, int, error) {
	w := buildWhere(f)

	var total int
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM products p JOIN categories c ON c.id = p.category_id`+w.String(), w.Args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	order, ok := sorts[f.Sort]
	if !ok {
		order = sorts["-createdAt"]
	}
	page, args := w.Page(f.Limit, f.Offset)
	q := selectProduct + w.String() + " ORDER BY " + order + page

	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	out := []product.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

func (r *Repo) Get(ctx context.Context, id int64, includeInactive bool) (product.Product, error) {
	q := selectProduct + ` WHERE p.id = $1 AND p.deleted_at IS NULL`
	if !includeInactive {
		q += ` AND p.is_active = true AND c.is_active = true`
	}
	p, err := scanProduct(r.db.QueryRow(ctx, q, id))
	return p, db.Translate(err, "Product", "")
}

func invalidCategory(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		return apperr.Invalid("Category not found")
	}
	return err
}

func (r *Repo) Create(ctx context.Context, in Input, by int64) (product.Product, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO products (name, description, price, original_price, category_id, subcategory, material,
		  colors, sizes, images, tags, stock, in_stock, is_featured, is_new, is_active, created_by, updated_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$17)
		RETURNING id
	`, in.Name, in.Description, in.Price, in.OriginalPrice, in.CategoryID, in.Subcategory, in.Material,
		in.Colors, in.Sizes, in.Images, in.Tags, in.Stock, in.Stock > 0, in.IsFeatured, in.IsNew, in.IsActive, by).Scan(&id)
	if err != nil {
		return product.Product{}, invalidCategory(err)
	}
	return r.Get(ctx, id, true)
}

func (r *Repo) Update(ctx context.Context, id int64, p Patch, by int64) (product.Product, error) {
	ct, err := r.db.Exec(ctx, `
		UPDATE products SET
		  name           = COALESCE($2, name),
		  description    = COALESCE($3, description),
		  price          = COALESCE($4, price),
		  original_price = CASE WHEN $5::boolean THEN NULL ELSE COALESCE($6, original_price) END,
		  category_id    = COALESCE($7, category_id),
		  subcategory    = COALESCE($8, subcategory),
		  material       = COALESCE($9, material),
		  colors         = COALESCE($10, colors),
		  sizes          = COALESCE($11, sizes),
		  images         = COALESCE($12, images),
		  tags           = COALESCE($13, tags),
		  stock          = COALESCE($14, stock),
		  in_stock       = COALESCE($14, stock) > 0,
		  is_featured    = COALESCE($15, is_featured),
		  is_new         = COALESCE($16, is_new),
		  is_active      = COALESCE($17, is_active),
		  updated_by     = $18,
		  updated_at     = now()
		WHERE id = $1 AND deleted_at IS NULL
	`, id, p.Name, p.Description, p.Price, p.ClearOriginalPrice, p.OriginalPrice, p.CategoryID, p.Subcategory,
		p.Material, p.Colors, p.Sizes, p.Images, p.Tags, p.Stock, p.IsFeatured, p.IsNew, p.IsActive, by)
	if err != nil {
		return product.Product{}, invalidCategory(err)
	}
	if ct.RowsAffected() == 0 {
		return product.Product{}, apperr.NotFound("Product")
	}
	return r.Get(ctx, id, true)
}

// SoftDelete hides the product everywhere but keeps it for order history.
func (r *Repo) SoftDelete(ctx context.Context, id, by int64) error {
	ct, err := r.db.Exec(ctx, `
		UPDATE products SET deleted_at = now(), deleted_by = $2, is_active = false, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
	`, id, by)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperr.NotFound("Product")
	}
	return nil
}

func (r *Repo) toggle(ctx context.Context, id, by int64, column string) (product.Product, error) {
	ct, err := r.db.Exec(ctx, `
		UPDATE products SET `+column+` = NOT `+column+`, updated_by = $2, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
	`, id, by)
	if err != nil {
		return product.Product{}, fmt.Errorf("toggle %s: %w", column, err)
	}
	if ct.RowsAffected() == 0 {
		return product.Product{}, apperr.NotFound("Product")
	}
	return r.Get(ctx, id, true)
}

func (r *Repo) ToggleStatus(ctx context.Context, id, by int64) (product.Product, error) {
	return r.toggle(ctx, id, by, "is_active")
}

func (r *Repo) ToggleFeatured(ctx context.Context, id, by int64) (product.Product, error) {
	return r.toggle(ctx, id, by, "is_featured")
}

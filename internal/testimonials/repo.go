package testimonials

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"storefront/internal/apperr"
	"storefront/internal/db"
	"storefront/internal/domain/testimonial"
)

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{db: db}
}

const selectTestimonial = `
	SELECT id, customer_name, location, rating, comment, is_active, display_order, created_at, updated_at
	FROM customer_reviews`

var sortColumns = map[string]string{
	"createdAt":    "created_at",
	"rating":       "rating",
	"displayOrder": "display_order",
	"customerName": "lower(customer_name)",
}

func scan(row pgx.Row) (testimonial.Testimonial, error) {
	var t testimonial.Testimonial
	err := row.Scan(&t.ID, &t.CustomerName, &t.Location, &t.Rating, &t.Comment, &t.IsActive,
		&t.DisplayOrder, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

func (r *Repo) query(ctx context.Context, sql string, args ...any) ([]testimonial.Testimonial, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list customer reviews: %w", err)
	}
	defer rows.Close()

	out := []testimonial.Testimonial{}
	for rows.Next() {
		t, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan customer review: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *Repo) Active(ctx context.Context, limit int) ([]testimonial.Testimonial, error) {
	return r.query(ctx, selectTestimonial+`
		WHERE is_active ORDER BY display_order ASC, created_at DESC LIMIT $1`, limit)
}

func (r *Repo) List(ctx context.Context, f Filter) ([]testimonial.Testimonial, int, error) {
	var w db.Where
	switch f.Status {
	case "active":
		w.Raw("is_active")
	case "inactive":
		w.Raw("NOT is_active")
	}
	if f.Search != "" {
		w.Add("(customer_name ILIKE ? OR location ILIKE ? OR comment ILIKE ?)",
			"%"+f.Search+"%", "%"+f.Search+"%", "%"+f.Search+"%")
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM customer_reviews`+w.String(), w.Args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count customer reviews: %w", err)
	}

	col, ok := sortColumns[f.SortBy]
	if !ok {
		col = "created_at"
	}
	dir := " DESC"
	if f.Ascending {
		dir = " ASC"
	}
	page, args := w.Page(f.Limit, f.Offset)
	list, err := r.query(ctx, selectTestimonial+w.String()+" ORDER BY "+col+dir+", id DESC"+page, args...)
	return list, total, err
}

func (r *Repo) Get(ctx context.Context, id int64) (testimonial.Testimonial, error) {
	t, err := scan(r.db.QueryRow(ctx, selectTestimonial+` WHERE id = $1`, id))
	return t, db.Translate(err, "Customer review", "")
}

func (r *Repo) Create(ctx context.Context, in Input) (testimonial.Testimonial, error) {
	t, err := scan(r.db.QueryRow(ctx, `
		INSERT INTO customer_reviews (customer_name, location, rating, comment, is_active, display_order)
		VALUES ($1, $2, $3, $4, true, $5)
		RETURNING id, customer_name, location, rating, comment, is_active, display_order, created_at, updated_at
	`, in.CustomerName, in.Location, in.Rating, in.Comment, in.DisplayOrder))
	if err != nil {
		return testimonial.Testimonial{}, fmt.Errorf("create customer review: %w", err)
	}
	return t, nil
}

func (r *Repo) Update(ctx context.Context, id int64, p Patch) (testimonial.Testimonial, error) {
	t, err := scan(r.db.QueryRow(ctx, `
		UPDATE customer_reviews SET
		  customer_name = COALESCE($2, customer_name),
		  location      = COALESCE($3, location),
		  rating        = COALESCE($4, rating),
		  comment       = COALESCE($5, comment),
		  is_active     = COALESCE($6, is_active),
		  display_order = COALESCE($7, display_order),
		  updated_at    = now()
		WHERE id = $1
		RETURNING id, customer_name, location, rating, comment, is_active, display_order, created_at, updated_at
	`, id, p.CustomerName, p.Location, p.Rating, p.Comment, p.IsActive, p.DisplayOrder))
	return t, db.Translate(err, "Customer review", "")
}

func (r *Repo) Delete(ctx context.Context, id int64) error {
	ct, err := r.db.Exec(ctx, `DELETE FROM customer_reviews WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete customer review: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperr.NotFound("Customer review")
	}
	return nil
}

func (r *Repo) ToggleStatus(ctx context.Context, id int64) (testimonial.Testimonial, error) {
	t, err := scan(r.db.QueryRow(ctx, `
		UPDATE customer_reviews SET is_active = NOT is_active, updated_at = now()
		WHERE id = $1
		RETURNING id, customer_name, location, rating, comment, is_active, display_order, created_at, updated_at
	`, id))
	return t, db.Translate(err, "Customer review", "")
}

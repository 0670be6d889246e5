package addresses

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"storefront/internal/apperr"
	"storefront/internal/db"
	"storefront/internal/domain/user"
)

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{db: db}
}

const columns = `id, user_id, full_name, phone, address, city, state, pincode, country, is_default, created_at, updated_at`

func (r *Repo) List(ctx context.Context, userID int64) ([]user.Address, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+columns+` FROM addresses
		WHERE user_id = $1
		ORDER BY is_default DESC, created_at ASC, id ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list addresses: %w", err)
	}
	out, err := pgx.CollectRows(rows, scanAddress)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []user.Address{}
	}
	return out, nil
}

func scanAddress(row pgx.CollectableRow) (user.Address, error) {
	var a user.Address
	err := row.Scan(&a.ID, &a.UserID, &a.FullName, &a.Phone, &a.Address, &a.City, &a.State,
		&a.Pincode, &a.Country, &a.IsDefault, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

// Create inserts the address. The user's first address, or one flagged as
// default, becomes the only default.
func (r *Repo) Create(ctx context.Context, userID int64, in Input) error {
	return db.InTx(ctx, r.db, func(tx pgx.Tx) error {
		var count int
		if err := tx.QueryRow(ctx, `SELECT count(*) FROM addresses WHERE user_id=$1`, userID).Scan(&count); err != nil {
			return err
		}
		makeDefault := count == 0 || in.IsDefault
		if makeDefault {
			if _, err := tx.Exec(ctx, `UPDATE addresses SET is_default=false WHERE user_id=$1 AND is_default`, userID); err != nil {
				return err
			}
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO addresses (user_id, full_name, phone, address, city, state, pincode, country, is_default)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		`, userID, in.FullName, in.Phone, in.Address, in.City, in.State, in.Pincode, in.Country, makeDefault)
		return err
	})
}

func (r *Repo) Update(ctx context.Context, userID, id int64, p Patch) error {
	return db.InTx(ctx, r.db, func(tx pgx.Tx) error {
		if p.IsDefault != nil && *p.IsDefault {
			if _, err := tx.Exec(ctx, `UPDATE addresses SET is_default=false WHERE user_id=$1 AND id<>$2`, userID, id); err != nil {
				return err
			}
		}
		ct, err := tx.Exec(ctx, `
			UPDATE addresses SET
			  full_name  = COALESCE($3, full_name),
			  phone      = COALESCE($4, phone),
			  address    = COALESCE($5, address),
			  city       = COALESCE($6, city),
			  state      = COALESCE($7, state),
			  pincode    = COALESCE($8, pincode),
			  country    = COALESCE($9, country),
			  is_default = CASE WHEN $10::boolean THEN true ELSE is_default END,
			  updated_at = now()
			WHERE id=$1 AND user_id=$2
		`, id, userID, p.FullName, p.Phone, p.Address, p.City, p.State, p.Pincode, p.Country,
			p.IsDefault != nil && *p.IsDefault)
		if err != nil {
			return err
		}
		if ct.RowsAffected() == 0 {
			return apperr.NotFound("Address")
		}
		return nil
	})
}

// Delete removes the address. When it was the default, the oldest remaining
// address takes over.
func (r *Repo) Delete(ctx context.Context, userID, id int64) error {
	return db.InTx(ctx, r.db, func(tx pgx.Tx) error {
		var wasDefault bool
		err := tx.QueryRow(ctx, `
			DELETE FROM addresses WHERE id=$1 AND user_id=$2 RETURNING is_default
		`, id, userID).Scan(&wasDefault)
		if err != nil {
			return db.Translate(err, "Address", "")
		}
		if !wasDefault {
			return nil
		}
		_, err = tx.Exec(ctx, `
			UPDATE addresses SET is_default=true
			WHERE id = (SELECT id FROM addresses WHERE user_id=$1 ORDER BY created_at ASC, id ASC LIMIT 1)
		`, userID)
		return err
	})
}

func (r *Repo) SetDefault(ctx context.Context, userID, id int64) error {
	return db.InTx(ctx, r.db, func(tx pgx.Tx) error {
		ct, err := tx.Exec(ctx, `
			UPDATE addresses SET is_default = (id = $2), updated_at = now()
			WHERE user_id = $1 AND EXISTS (SELECT 1 FROM addresses WHERE id=$2 AND user_id=$1)
		`, userID, id)
		if err != nil {
			return err
		}
		if ct.RowsAffected() == 0 {
			return apperr.NotFound("Address")
		}
		return nil
	})
}

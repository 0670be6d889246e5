package auth

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"storefront/internal/apperr"
	"storefront/internal/db"
	"storefront/internal/domain/user"
)

type NewUser struct {
	FirstName     string
	LastName      string
	Email         string
	Phone         string
	PasswordHash  string
	Role          string
	EmailVerified bool
}

// ProfileUpdate carries the optional fields of PUT /auth/profile.
type ProfileUpdate struct {
	FirstName *string
	LastName  *string
	Phone     *string
}

type UserRepo struct {
	db *pgxpool.Pool
}

func NewUserRepo(db *pgxpool.Pool) *UserRepo {
	return &UserRepo{db: db}
}

const userColumns = `id, first_name, last_name, email, phone, password_hash, role,
	is_active, email_verified, last_login_at, created_at, updated_at`

func scanUser(row pgx.Row) (user.User, error) {
	var u user.User
	err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.Phone, &u.PasswordHash, &u.Role,
		&u.IsActive, &u.EmailVerified, &u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func (r *UserRepo) Create(ctx context.Context, in NewUser) (user.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, `
		INSERT INTO users (first_name, last_name, email, phone, password_hash, role, email_verified)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING `+userColumns,
		in.FirstName, in.LastName, in.Email, in.Phone, in.PasswordHash, in.Role, in.EmailVerified))
	if err != nil {
		return user.User{}, db.Translate(err, "user", "User already exists with this email")
	}
	return u, nil
}

func (r *UserRepo) ByEmail(ctx context.Context, email string) (user.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email=$1`, email))
	return u, db.Translate(err, "user", "")
}

func (r *UserRepo) ByID(ctx context.Context, id int64) (user.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id))
	return u, db.Translate(err, "user", "")
}

func (r *UserRepo) UpdatePassword(ctx context.Context, userID int64, newHash string) error {
	ct, err := r.db.Exec(ctx, `UPDATE users SET password_hash=$1, updated_at=now() WHERE id=$2`, newHash, userID)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperr.NotFound("user")
	}
	return nil
}

func (r *UserRepo) UpdateProfile(ctx context.Context, userID int64, in ProfileUpdate) (user.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, `
		UPDATE users SET
		  first_name = COALESCE($2, first_name),
		  last_name  = COALESCE($3, last_name),
		  phone      = COALESCE($4, phone),
		  updated_at = now()
		WHERE id = $1
		RETURNING `+userColumns, userID, in.FirstName, in.LastName, in.Phone))
	return u, db.Translate(err, "user", "")
}

func (r *UserRepo) SetEmailVerified(ctx context.Context, userID int64) error {
	_, err := r.db.Exec(ctx, `UPDATE users SET email_verified=true, updated_at=now() WHERE id=$1`, userID)
	return err
}

func (r *UserRepo) TouchLogin(ctx context.Context, userID int64) error {
	_, err := r.db.Exec(ctx, `UPDATE users SET last_login_at=now() WHERE id=$1`, userID)
	return err
}

// Promote creates an admin or upgrades an existing account. Used by the seed
// command.
func (r *UserRepo) Promote(ctx context.Context, in NewUser) (user.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, `
		INSERT INTO users (first_name, last_name, email, phone, password_hash, role, email_verified)
		VALUES ($1,$2,$3,$4,$5,'admin',true)
		ON CONFLICT (email) DO UPDATE SET
		  role = 'admin', password_hash = EXCLUDED.password_hash,
		  email_verified = true, is_active = true, updated_at = now()
		RETURNING `+userColumns,
		in.FirstName, in.LastName, in.Email, in.Phone, in.PasswordHash))
	if err != nil {
		return user.User{}, fmt.Errorf("promote admin: %w", err)
	}
	return u, nil
}

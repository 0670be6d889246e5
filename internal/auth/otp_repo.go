package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"storefront/internal/db"
)

// maxOTPAttempts bounds wrong guesses before a code is thrown away.
const maxOTPAttempts = 5

// OTPRepo keeps at most one live code per user and purpose in user_otps.
type OTPRepo struct {
	pool *pgxpool.Pool
}

func NewOTPRepo(pool *pgxpool.Pool) *OTPRepo {
	return &OTPRepo{pool: pool}
}

// Issue replaces any previous code for the purpose and resets its attempts.
func (r *OTPRepo) Issue(ctx context.Context, userID int64, purpose, codeHash string, expiresAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO user_otps (user_id, purpose, otp_hash, attempts, expires_at)
		VALUES ($1, $2, $3, 0, $4)
		ON CONFLICT (user_id, purpose) DO UPDATE
		SET otp_hash = EXCLUDED.otp_hash, attempts = 0,
		    expires_at = EXCLUDED.expires_at, created_at = now()`,
		userID, purpose, codeHash, expiresAt)
	if err != nil {
		return fmt.Errorf("issue otp: %w", err)
	}
	return nil
}

// Consume reports whether codeHash matches the live code. A match deletes
// the code. A miss counts against the code, and the code is dropped once
// maxOTPAttempts misses have been recorded.
func (r *OTPRepo) Consume(ctx context.Context, userID int64, purpose, codeHash string) (bool, error) {
	var matched bool
	err := db.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		var stored string
		var attempts int
		err := tx.QueryRow(ctx, `
			SELECT otp_hash, attempts FROM user_otps
			WHERE user_id = $1 AND purpose = $2 AND expires_at > now()
			FOR UPDATE`, userID, purpose).Scan(&stored, &attempts)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}

		matched = stored == codeHash
		if matched || attempts+1 >= maxOTPAttempts {
			_, err = tx.Exec(ctx, `DELETE FROM user_otps WHERE user_id = $1 AND purpose = $2`, userID, purpose)
			return err
		}
		_, err = tx.Exec(ctx, `
			UPDATE user_otps SET attempts = attempts + 1
			WHERE user_id = $1 AND purpose = $2`, userID, purpose)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("consume otp: %w", err)
	}
	return matched, nil
}

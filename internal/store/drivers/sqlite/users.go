package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/AAReynosoG/gateward/internal/domain"
	"github.com/AAReynosoG/gateward/internal/store"
)

type usersRepo struct {
	db *sql.DB
}

type userRow struct {
	ID                     string
	Email                  string
	PasswordHash           string
	EmailVerified          bool
	EmailVerifiedAt        sql.NullTime
	VerificationLinkSentAt sql.NullTime
	TOTPSecret             sql.NullString
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

const userColumns = `id, email, password_hash, email_verified, email_verified_at,
	verification_link_sent_at, totp_secret, created_at, updated_at`

func scanUser(scanner interface{ Scan(...any) error }) (userRow, error) {
	var row userRow
	err := scanner.Scan(
		&row.ID,
		&row.Email,
		&row.PasswordHash,
		&row.EmailVerified,
		&row.EmailVerifiedAt,
		&row.VerificationLinkSentAt,
		&row.TOTPSecret,
		&row.CreatedAt,
		&row.UpdatedAt,
	)
	return row, err
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	row, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return mapUser(row), nil
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	row, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email))
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return mapUser(row), nil
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, email_verified, created_at, updated_at)
		 VALUES (?, ?, ?, 0, ?, ?)`,
		u.ID, u.Email, u.PasswordHash, now, now)
	return mapConstraint(err)
}

func (r *usersRepo) MarkEmailVerified(ctx context.Context, userID string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users
		 SET email_verified = 1, email_verified_at = ?, updated_at = ?
		 WHERE id = ? AND email_verified = 0`,
		at.UTC(), time.Now().UTC(), userID)
	if err != nil {
		return err
	}
	// Zero rows means either an unknown user or an already-verified one;
	// the caller distinguishes by fetching the user first, so treat the
	// second verification as the idempotent no-op it is.
	_, err = res.RowsAffected()
	return err
}

func (r *usersRepo) SetVerificationLinkSentAt(ctx context.Context, userID string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET verification_link_sent_at = ?, updated_at = ? WHERE id = ?`,
		at.UTC(), time.Now().UTC(), userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *usersRepo) LinkTOTPSecret(ctx context.Context, userID string, encryptedSecret string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET totp_secret = ?, updated_at = ?
		 WHERE id = ? AND totp_secret IS NULL`,
		encryptedSecret, time.Now().UTC(), userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Either the user is gone or a secret is already linked. Check
		// which so re-enrollment is reported distinctly.
		if _, err := r.GetUserByID(ctx, userID); err != nil {
			return err
		}
		return store.ErrAlreadyExists
	}
	return nil
}

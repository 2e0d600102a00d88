package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/utils"
)

// UserRepo persists accounts, KYC state and wallet balances.
type UserRepo struct{ db *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{db: db} }

const userColumns = `id, email, password_hash, display_name, role, kyc_status, kyc_document, is_blocked, wallet_balance, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.DisplayName, &u.Role,
		&u.KYCStatus, &u.KYCDocument, &u.Blocked, &u.WalletBalance, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// Create hashes the password, inserts the user and returns its ID.  A
// duplicate email yields model.ErrConflict.
func (r *UserRepo) Create(ctx context.Context, email, password, displayName string, role model.Role, cost int) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO users (email, password_hash, display_name, role) VALUES (?,?,?,?)",
		email, hash, strings.TrimSpace(displayName), role)
	if err != nil {
		return 0, translate(err, "email")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := scanUser(r.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email))
	return u, translate(err, "user")
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (*model.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
	return u, translate(err, fmt.Sprintf("user %d", id))
}

// SetKYC moves the KYC status from -> to.  When the row is no longer in
// from the update is refused with model.ErrConflict.
func (r *UserRepo) SetKYC(ctx context.Context, id uint64, from, to model.KYCStatus, document string) error {
	q := "UPDATE users SET kyc_status=? WHERE id=? AND kyc_status=?"
	args := []any{to, id, from}
	if document != "" {
		q = "UPDATE users SET kyc_status=?, kyc_document=? WHERE id=? AND kyc_status=?"
		args = []any{to, document, id, from}
	}
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	return r.expectOne(ctx, res, id)
}

// SetBlocked flips the blocked flag.
func (r *UserRepo) SetBlocked(ctx context.Context, id uint64, blocked bool) error {
	res, err := r.db.ExecContext(ctx, "UPDATE users SET is_blocked=? WHERE id=?", blocked, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// MySQL reports 0 rows when the value is unchanged; distinguish from missing.
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// TopUp credits the wallet and records the transaction atomically.  It
// returns the new balance.
func (r *UserRepo) TopUp(ctx context.Context, id uint64, amount decimal.Decimal) (decimal.Decimal, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return decimal.Zero, err
	}
	defer rollback(tx)

	var balance decimal.Decimal
	err = tx.QueryRowContext(ctx, "SELECT wallet_balance FROM users WHERE id=? FOR UPDATE", id).Scan(&balance)
	if err != nil {
		return decimal.Zero, translate(err, fmt.Sprintf("user %d", id))
	}
	balance = balance.Add(amount)
	if _, err := tx.ExecContext(ctx, "UPDATE users SET wallet_balance=? WHERE id=?", balance, id); err != nil {
		return decimal.Zero, err
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO wallet_transactions (user_id, amount, kind) VALUES (?,?,?)",
		id, amount, "topup"); err != nil {
		return decimal.Zero, err
	}
	if err := tx.Commit(); err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}

func (r *UserRepo) expectOne(ctx context.Context, res sql.Result, id uint64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return fmt.Errorf("%w: user %d changed concurrently", model.ErrConflict, id)
}

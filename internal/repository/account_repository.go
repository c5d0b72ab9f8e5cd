package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/iliyamo/review-channels/internal/model"
)

// AccountRepo encapsulates all queries on the accounts table.
type AccountRepo struct {
	db *sql.DB
}

// NewAccountRepo constructs an AccountRepo with the provided DB handle.
func NewAccountRepo(db *sql.DB) *AccountRepo { return &AccountRepo{db: db} }

// AccountUpdate lists the profile columns a PATCH may touch.  Nil fields
// are left unchanged.
type AccountUpdate struct {
	Email        *string
	Name         *string
	PasswordHash *string
}

const accountColumns = "username, email, name, password_hash, account_type, credit, created_at, updated_at"

func scanAccount(row interface{ Scan(...any) error }) (*model.Account, error) {
	var a model.Account
	var typ string
	if err := row.Scan(&a.Username, &a.Email, &a.Name, &a.PasswordHash, &typ, &a.Credit, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.Type = model.AccountType(typ)
	if !a.Type.Valid() {
		return nil, errors.Errorf("account %s has unknown type %q", a.Username, typ)
	}
	return &a, nil
}

// Create inserts a new account.  Username and email collisions are reported
// as ErrUsernameExists and ErrEmailExists.
func (r *AccountRepo) Create(ctx context.Context, a *model.Account) error {
	const q = `INSERT INTO accounts (username, email, name, password_hash, account_type, credit) VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, q, a.Username, a.Email, a.Name, a.PasswordHash, string(a.Type), a.Credit); err != nil {
		if isDuplicate(err) {
			if strings.Contains(duplicateKey(err), "email") {
				return ErrEmailExists
			}
			return ErrUsernameExists
		}
		return errors.Wrap(err, "insert account")
	}
	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	return nil
}

// GetByUsername fetches a live account.
func (r *AccountRepo) GetByUsername(ctx context.Context, username string) (*model.Account, error) {
	q := "SELECT " + accountColumns + " FROM accounts WHERE username = ? AND deleted_at IS NULL LIMIT 1"
	a, err := scanAccount(r.db.QueryRowContext(ctx, q, username))
	if err != nil {
		return nil, notFound(err, ErrAccountNotFound)
	}
	return a, nil
}

// EmailTaken reports whether another account already uses email.
func (r *AccountRepo) EmailTaken(ctx context.Context, email, exceptUsername string) (bool, error) {
	const q = `SELECT COUNT(*) FROM accounts WHERE email = ? AND username <> ?`
	var n int
	if err := r.db.QueryRowContext(ctx, q, email, exceptUsername).Scan(&n); err != nil {
		return false, errors.Wrap(err, "count email")
	}
	return n > 0, nil
}

// Update applies the non-nil fields of upd and returns the fresh row.
func (r *AccountRepo) Update(ctx context.Context, username string, upd AccountUpdate) (*model.Account, error) {
	sets := make([]string, 0, 3)
	args := make([]any, 0, 4)
	if upd.Email != nil {
		sets = append(sets, "email = ?")
		args = append(args, *upd.Email)
	}
	if upd.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *upd.Name)
	}
	if upd.PasswordHash != nil {
		sets = append(sets, "password_hash = ?")
		args = append(args, *upd.PasswordHash)
	}
	if len(sets) > 0 {
		args = append(args, username)
		q := "UPDATE accounts SET " + strings.Join(sets, ", ") + ", updated_at = CURRENT_TIMESTAMP WHERE username = ? AND deleted_at IS NULL"
		if _, err := r.db.ExecContext(ctx, q, args...); err != nil {
			if isDuplicate(err) {
				return nil, ErrEmailExists
			}
			return nil, errors.Wrap(err, "update account")
		}
	}
	// MySQL reports zero affected rows for unchanged values, so the read
	// decides between "missing" and "unchanged".
	return r.GetByUsername(ctx, username)
}

// Mutate runs fn against the account row while holding its row lock
// (SELECT ... FOR UPDATE) and persists the tier and credit it leaves
// behind.  Concurrent top-ups and upgrades on the same account therefore
// serialize instead of losing updates.  An error from fn aborts the
// transaction and is returned unchanged.
func (r *AccountRepo) Mutate(ctx context.Context, username string, fn func(a *model.Account) error) (*model.Account, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "begin account tx")
	}
	defer rollback(tx)

	q := "SELECT " + accountColumns + " FROM accounts WHERE username = ? AND deleted_at IS NULL FOR UPDATE"
	a, err := scanAccount(tx.QueryRowContext(ctx, q, username))
	if err != nil {
		return nil, notFound(err, ErrAccountNotFound)
	}
	if err := fn(a); err != nil {
		return nil, err
	}
	const upd = `UPDATE accounts SET account_type = ?, credit = ?, updated_at = CURRENT_TIMESTAMP WHERE username = ?`
	if _, err := tx.ExecContext(ctx, upd, string(a.Type), a.Credit, username); err != nil {
		return nil, errors.Wrap(err, "update credit")
	}
	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "commit account tx")
	}
	a.UpdatedAt = time.Now().UTC()
	return a, nil
}

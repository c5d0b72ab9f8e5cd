package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/iliyamo/review-channels/internal/model"
)

// ChannelRepo provides data access for channels.
type ChannelRepo struct {
	db *sql.DB
}

// NewChannelRepo constructs a ChannelRepo.
func NewChannelRepo(db *sql.DB) *ChannelRepo { return &ChannelRepo{db: db} }

const channelColumns = "id, name, user_prefix, access_token_hash, account_username, created_at, updated_at"

func scanChannel(row interface{ Scan(...any) error }) (*model.Channel, error) {
	var c model.Channel
	if err := row.Scan(&c.ID, &c.Name, &c.UserPrefix, &c.AccessTokenHash, &c.AccountUsername, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateForAccount inserts ch for its owning account.  The account row is
// locked for the duration of the transaction and allow is called with the
// account and its current number of live channels; a non-nil error from
// allow aborts the insert and is returned unchanged.  Two concurrent
// creations on a free account can therefore never both pass the tier check.
func (r *ChannelRepo) CreateForAccount(ctx context.Context, ch *model.Channel, allow func(a *model.Account, owned int) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin channel tx")
	}
	defer rollback(tx)

	q := "SELECT " + accountColumns + " FROM accounts WHERE username = ? AND deleted_at IS NULL FOR UPDATE"
	acc, err := scanAccount(tx.QueryRowContext(ctx, q, ch.AccountUsername))
	if err != nil {
		return notFound(err, ErrAccountNotFound)
	}
	var owned int
	const cnt = `SELECT COUNT(*) FROM channels WHERE account_username = ? AND deleted_at IS NULL`
	if err := tx.QueryRowContext(ctx, cnt, ch.AccountUsername).Scan(&owned); err != nil {
		return errors.Wrap(err, "count channels")
	}
	if allow != nil {
		if err := allow(acc, owned); err != nil {
			return err
		}
	}
	const ins = `INSERT INTO channels (id, name, user_prefix, access_token_hash, account_username) VALUES (?, ?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, ins, ch.ID, ch.Name, ch.UserPrefix, ch.AccessTokenHash, ch.AccountUsername); err != nil {
		return errors.Wrap(err, "insert channel")
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "commit channel tx")
	}
	now := time.Now().UTC()
	ch.CreatedAt, ch.UpdatedAt = now, now
	return nil
}

// GetByID returns a live channel.
func (r *ChannelRepo) GetByID(ctx context.Context, id string) (*model.Channel, error) {
	q := "SELECT " + channelColumns + " FROM channels WHERE id = ? AND deleted_at IS NULL LIMIT 1"
	c, err := scanChannel(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		return nil, notFound(err, ErrChannelNotFound)
	}
	return c, nil
}

// ListByAccount returns the live channels owned by username, newest first.
// A non-empty name restricts the result to channels whose name contains it
// (case-insensitive).
func (r *ChannelRepo) ListByAccount(ctx context.Context, username, name string) ([]*model.Channel, error) {
	q := "SELECT " + channelColumns + " FROM channels WHERE account_username = ? AND deleted_at IS NULL"
	args := []any{username}
	if name != "" {
		q += " AND LOWER(name) LIKE ?"
		args = append(args, "%"+escapeLike(strings.ToLower(name))+"%")
	}
	q += " ORDER BY created_at DESC, id"
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list channels")
	}
	defer rows.Close()
	var out []*model.Channel
	for rows.Next() {
		c, err := scanChannel(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan channel")
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// RotateToken replaces the stored token hash in a single statement.  The
// previous token stops verifying as soon as the statement commits.
func (r *ChannelRepo) RotateToken(ctx context.Context, id, hash string) error {
	const q = `UPDATE channels SET access_token_hash = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND deleted_at IS NULL`
	res, err := r.db.ExecContext(ctx, q, hash, id)
	if err != nil {
		return errors.Wrap(err, "rotate token")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrChannelNotFound
	}
	return nil
}

// SoftDelete marks the channel deleted.
func (r *ChannelRepo) SoftDelete(ctx context.Context, id string) error {
	const q = `UPDATE channels SET deleted_at = CURRENT_TIMESTAMP WHERE id = ? AND deleted_at IS NULL`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return errors.Wrap(err, "delete channel")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrChannelNotFound
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }

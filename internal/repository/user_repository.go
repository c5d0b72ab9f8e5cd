package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/iliyamo/review-channels/internal/model"
)

// UserRepo provides data access for channel users.
type UserRepo struct {
	db *sql.DB
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{db: db} }

const userColumns = "id, acc_id, channel_id, created_at, updated_at, deleted_at"

func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	var deleted sql.NullTime
	if err := row.Scan(&u.ID, &u.AccID, &u.ChannelID, &u.CreatedAt, &u.UpdatedAt, &deleted); err != nil {
		return nil, err
	}
	if deleted.Valid {
		t := deleted.Time
		u.DeletedAt = &t
	}
	return &u, nil
}

// MintFunc produces the acc_ids of one batch given the live user count of
// the channel.
type MintFunc func(base int) ([]string, error)

// Allocate creates a batch of users in channelID inside one transaction:
//
//  1. the channel row is locked with SELECT ... FOR UPDATE, which
//     serializes allocators of the same channel;
//  2. the live users are counted;
//  3. mint turns that count into acc_ids;
//  4. every acc_id is inserted.
//
// A unique key violation rolls the whole batch back and yields
// ErrAccIDTaken so the caller can retry with a fresh count.
func (r *UserRepo) Allocate(ctx context.Context, channelID string, mint MintFunc) ([]*model.User, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "begin allocation tx")
	}
	defer rollback(tx)

	var locked string
	const lock = `SELECT id FROM channels WHERE id = ? AND deleted_at IS NULL FOR UPDATE`
	if err := tx.QueryRowContext(ctx, lock, channelID).Scan(&locked); err != nil {
		return nil, notFound(err, ErrChannelNotFound)
	}
	var base int
	const cnt = `SELECT COUNT(*) FROM users WHERE channel_id = ? AND deleted_at IS NULL`
	if err := tx.QueryRowContext(ctx, cnt, channelID).Scan(&base); err != nil {
		return nil, errors.Wrap(err, "count users")
	}
	accIDs, err := mint(base)
	if err != nil {
		return nil, err
	}

	const ins = `INSERT INTO users (acc_id, channel_id) VALUES (?, ?)`
	now := time.Now().UTC()
	users := make([]*model.User, 0, len(accIDs))
	for _, accID := range accIDs {
		res, err := tx.ExecContext(ctx, ins, accID, channelID)
		if err != nil {
			if isDuplicate(err) {
				return nil, ErrAccIDTaken
			}
			return nil, errors.Wrap(err, "insert user")
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, errors.Wrap(err, "user id")
		}
		users = append(users, &model.User{ID: uint64(id), AccID: accID, ChannelID: channelID, CreatedAt: now, UpdatedAt: now})
	}
	if err := tx.Commit(); err != nil {
		if isDuplicate(err) {
			return nil, ErrAccIDTaken
		}
		return nil, errors.Wrap(err, "commit allocation tx")
	}
	return users, nil
}

// GetByAccID resolves a live user of the channel.
func (r *UserRepo) GetByAccID(ctx context.Context, channelID, accID string) (*model.User, error) {
	q := "SELECT " + userColumns + " FROM users WHERE channel_id = ? AND acc_id = ? AND deleted_at IS NULL LIMIT 1"
	u, err := scanUser(r.db.QueryRowContext(ctx, q, channelID, accID))
	if err != nil {
		return nil, notFound(err, ErrUserNotFound)
	}
	return u, nil
}

// IDsByAccID returns the internal ids of the live users carrying accID in
// any of the given channels.
func (r *UserRepo) IDsByAccID(ctx context.Context, channelIDs []string, accID string) ([]uint64, error) {
	if len(channelIDs) == 0 {
		return nil, nil
	}
	q := "SELECT id FROM users WHERE acc_id = ? AND deleted_at IS NULL AND channel_id IN (" + placeholders(len(channelIDs)) + ")"
	args := make([]any, 0, len(channelIDs)+1)
	args = append(args, accID)
	for _, id := range channelIDs {
		args = append(args, id)
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "resolve acc_id")
	}
	defer rows.Close()
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "scan user id")
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListByChannel pages through the live users of a channel in allocation order.
func (r *UserRepo) ListByChannel(ctx context.Context, channelID string, limit, offset int) ([]*model.User, error) {
	q := "SELECT " + userColumns + " FROM users WHERE channel_id = ? AND deleted_at IS NULL ORDER BY id LIMIT ? OFFSET ?"
	rows, err := r.db.QueryContext(ctx, q, channelID, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "list users")
	}
	defer rows.Close()
	var out []*model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan user")
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// SoftDelete marks the user deleted.  Its acc_id becomes free for reuse and
// it no longer counts towards allocation.
func (r *UserRepo) SoftDelete(ctx context.Context, id uint64) error {
	const q = `UPDATE users SET deleted_at = CURRENT_TIMESTAMP WHERE id = ? AND deleted_at IS NULL`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return errors.Wrap(err, "delete user")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/iliyamo/review-channels/internal/model"
)

// ReviewRepo provides data access for reviews.
type ReviewRepo struct {
	db *sql.DB
}

// NewReviewRepo constructs a ReviewRepo.
func NewReviewRepo(db *sql.DB) *ReviewRepo { return &ReviewRepo{db: db} }

// ReviewQuery is the resolved form of a review listing request.  All set
// dimensions are ANDed.  ChannelIDs is mandatory and bounds the scope.
type ReviewQuery struct {
	ChannelIDs []string
	GameID     *uint64
	UserIDs    []uint64
	Limit      int
	Offset     int
}

const reviewSelect = `SELECT r.id, r.user_id, u.acc_id, u.channel_id, r.game_id, r.game_name, r.rating, r.review, r.screenshot, r.created_at, r.updated_at
FROM reviews r JOIN users u ON u.id = r.user_id`

func scanReview(row interface{ Scan(...any) error }) (*model.Review, error) {
	var rv model.Review
	var text, shot sql.NullString
	if err := row.Scan(&rv.ID, &rv.UserID, &rv.AccID, &rv.ChannelID, &rv.GameID, &rv.GameName, &rv.Rating, &text, &shot, &rv.CreatedAt, &rv.UpdatedAt); err != nil {
		return nil, err
	}
	if text.Valid {
		rv.Review = &text.String
	}
	if shot.Valid {
		rv.Screenshot = &shot.String
	}
	return &rv, nil
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// Create inserts a review for rv.UserID and fills the generated id.
func (r *ReviewRepo) Create(ctx context.Context, rv *model.Review) error {
	const q = `INSERT INTO reviews (user_id, game_id, game_name, rating, review, screenshot) VALUES (?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, rv.UserID, rv.GameID, rv.GameName, rv.Rating, nullable(rv.Review), nullable(rv.Screenshot))
	if err != nil {
		return errors.Wrap(err, "insert review")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return errors.Wrap(err, "review id")
	}
	now := time.Now().UTC()
	rv.ID = uint64(id)
	rv.CreatedAt, rv.UpdatedAt = now, now
	return nil
}

// GetForUser returns a live review written by userID.
func (r *ReviewRepo) GetForUser(ctx context.Context, id, userID uint64) (*model.Review, error) {
	q := reviewSelect + " WHERE r.id = ? AND r.user_id = ? AND r.deleted_at IS NULL LIMIT 1"
	rv, err := scanReview(r.db.QueryRowContext(ctx, q, id, userID))
	if err != nil {
		return nil, notFound(err, ErrReviewNotFound)
	}
	return rv, nil
}

// GetInChannels returns a live review by explicit id as long as its author
// belongs to one of channelIDs.  The author may be soft-deleted.
func (r *ReviewRepo) GetInChannels(ctx context.Context, id uint64, channelIDs []string) (*model.Review, error) {
	if len(channelIDs) == 0 {
		return nil, ErrReviewNotFound
	}
	q := reviewSelect + " WHERE r.id = ? AND r.deleted_at IS NULL AND u.channel_id IN (" + placeholders(len(channelIDs)) + ") LIMIT 1"
	args := make([]any, 0, len(channelIDs)+1)
	args = append(args, id)
	for _, c := range channelIDs {
		args = append(args, c)
	}
	rv, err := scanReview(r.db.QueryRowContext(ctx, q, args...))
	if err != nil {
		return nil, notFound(err, ErrReviewNotFound)
	}
	return rv, nil
}

// Find runs a scoped listing.  Reviews of soft-deleted users are left out.
func (r *ReviewRepo) Find(ctx context.Context, f ReviewQuery) ([]*model.Review, error) {
	if len(f.ChannelIDs) == 0 {
		return nil, nil
	}
	where := []string{"r.deleted_at IS NULL", "u.deleted_at IS NULL", "u.channel_id IN (" + placeholders(len(f.ChannelIDs)) + ")"}
	args := make([]any, 0, len(f.ChannelIDs)+len(f.UserIDs)+3)
	for _, c := range f.ChannelIDs {
		args = append(args, c)
	}
	if f.GameID != nil {
		where = append(where, "r.game_id = ?")
		args = append(args, *f.GameID)
	}
	if len(f.UserIDs) > 0 {
		where = append(where, "r.user_id IN ("+placeholders(len(f.UserIDs))+")")
		for _, id := range f.UserIDs {
			args = append(args, id)
		}
	}
	q := reviewSelect + " WHERE " + strings.Join(where, " AND ") + " ORDER BY r.created_at DESC, r.id DESC"
	if f.Limit > 0 {
		q += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, f.Offset)
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query reviews")
	}
	defer rows.Close()
	var out []*model.Review
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan review")
		}
		out = append(out, rv)
	}
	return out, rows.Err()
}

// Update persists rating, text and screenshot of rv.
func (r *ReviewRepo) Update(ctx context.Context, rv *model.Review) error {
	const q = `UPDATE reviews SET rating = ?, review = ?, screenshot = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND deleted_at IS NULL`
	if _, err := r.db.ExecContext(ctx, q, rv.Rating, nullable(rv.Review), nullable(rv.Screenshot), rv.ID); err != nil {
		return errors.Wrap(err, "update review")
	}
	rv.UpdatedAt = time.Now().UTC()
	return nil
}

// SoftDelete marks a review of userID deleted.
func (r *ReviewRepo) SoftDelete(ctx context.Context, id, userID uint64) error {
	const q = `UPDATE reviews SET deleted_at = CURRENT_TIMESTAMP WHERE id = ? AND user_id = ? AND deleted_at IS NULL`
	res, err := r.db.ExecContext(ctx, q, id, userID)
	if err != nil {
		return errors.Wrap(err, "delete review")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrReviewNotFound
	}
	return nil
}

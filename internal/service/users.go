package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/review-channels/internal/acctid"
	"github.com/iliyamo/review-channels/internal/config"
	"github.com/iliyamo/review-channels/internal/model"
	"github.com/iliyamo/review-channels/internal/queue"
	"github.com/iliyamo/review-channels/internal/repository"
	"github.com/iliyamo/review-channels/internal/utils"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// UserService allocates and manages the users of a channel.
type UserService struct {
	users  UserStore
	cfg    config.AllocationConfig
	events emitter
	log    *logrus.Logger
}

// NewUserService wires a UserService.
func NewUserService(users UserStore, pub queue.Publisher, log *logrus.Logger, cfg config.AllocationConfig) *UserService {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.MaxBatch < 1 {
		cfg.MaxBatch = 1
	}
	return &UserService{users: users, cfg: cfg, events: emitter{pub: pub, log: log}, log: log}
}

// Allocate creates n users in ch.  Counters continue from the channel's
// live user count, so a count of k yields counters k+1..k+n in order.  A
// collision on acc_id (a concurrent allocator or a reused id left behind by
// a deletion) rolls the batch back and the whole batch is retried with a
// freshly counted base, up to the configured bound.
func (s *UserService) Allocate(ctx context.Context, ch *model.Channel, n int) ([]*model.User, error) {
	if n < 1 {
		return nil, validationError("amount must be a positive integer")
	}
	if n > s.cfg.MaxBatch {
		return nil, validationError("amount must be at most %d", s.cfg.MaxBatch)
	}
	tpl, err := acctid.Parse(ch.UserPrefix)
	if err != nil {
		return nil, fmt.Errorf("channel %s has invalid user_prefix %q: %w", ch.ID, ch.UserPrefix, err)
	}
	mint := func(base int) ([]string, error) { return tpl.Batch(base, n) }

	entry := s.log.WithFields(logrus.Fields{"channel": ch.ID, "amount": n})
	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		users, err := s.users.Allocate(ctx, ch.ID, mint)
		switch {
		case err == nil:
			ids := make([]string, len(users))
			for i, u := range users {
				ids[i] = u.AccID
			}
			ev := queue.NewEvent(queue.UsersAllocated)
			ev.AccountUsername = ch.AccountUsername
			ev.ChannelID = utils.EncodeChannelID(ch.ID)
			ev.AccIDs = ids
			s.events.emit(ev)
			return users, nil
		case errors.Is(err, repository.ErrAccIDTaken):
			entry.WithField("attempt", attempt+1).Warn("acc_id collision, recomputing base")
		case errors.Is(err, repository.ErrChannelNotFound):
			return nil, notFound("channel not found")
		default:
			return nil, err
		}
	}
	entry.WithField("attempts", s.cfg.MaxRetries+1).Error("acc_id allocation retries exhausted")
	return nil, conflict("acc_id counter of this channel collides with a live user")
}

// List pages through the live users of ch.  An empty page is NotFound.
func (s *UserService) List(ctx context.Context, ch *model.Channel, limit, offset int) ([]*model.User, error) {
	limit, offset, err := page(limit, offset)
	if err != nil {
		return nil, err
	}
	users, err := s.users.ListByChannel(ctx, ch.ID, limit, offset)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, notFound("no users found")
	}
	return users, nil
}

// Get resolves acc_id to a live user of ch.
func (s *UserService) Get(ctx context.Context, ch *model.Channel, accID string) (*model.User, error) {
	accID = strings.TrimSpace(accID)
	if accID == "" {
		return nil, validationError("acc_id is required")
	}
	// An acc_id the channel template could never have produced is not
	// looked up at all.
	if tpl, err := acctid.Parse(ch.UserPrefix); err == nil {
		if _, ok := tpl.Sequence(accID); !ok {
			return nil, notFound("user %s not found", accID)
		}
	}
	u, err := s.users.GetByAccID(ctx, ch.ID, accID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, notFound("user %s not found", accID)
		}
		return nil, err
	}
	return u, nil
}

// Delete soft-deletes u.  Its reviews stay retrievable by explicit id.
func (s *UserService) Delete(ctx context.Context, ch *model.Channel, u *model.User) error {
	if err := s.users.SoftDelete(ctx, u.ID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return notFound("user %s not found", u.AccID)
		}
		return err
	}
	ev := queue.NewEvent(queue.UserDeleted)
	ev.AccountUsername = ch.AccountUsername
	ev.ChannelID = utils.EncodeChannelID(ch.ID)
	ev.AccIDs = []string{u.AccID}
	s.events.emit(ev)
	return nil
}

// page applies listing defaults and bounds.
func page(limit, offset int) (int, int, error) {
	if limit < 0 || offset < 0 {
		return 0, 0, validationError("limit and offset must not be negative")
	}
	if limit == 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return limit, offset, nil
}

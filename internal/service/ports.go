package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/review-channels/internal/model"
	"github.com/iliyamo/review-channels/internal/queue"
	"github.com/iliyamo/review-channels/internal/repository"
)

// AccountStore is implemented by repository.AccountRepo.
type AccountStore interface {
	Create(ctx context.Context, a *model.Account) error
	GetByUsername(ctx context.Context, username string) (*model.Account, error)
	EmailTaken(ctx context.Context, email, exceptUsername string) (bool, error)
	Update(ctx context.Context, username string, upd repository.AccountUpdate) (*model.Account, error)
	Mutate(ctx context.Context, username string, fn func(a *model.Account) error) (*model.Account, error)
}

// ChannelStore is implemented by repository.ChannelRepo.
type ChannelStore interface {
	CreateForAccount(ctx context.Context, ch *model.Channel, allow func(a *model.Account, owned int) error) error
	GetByID(ctx context.Context, id string) (*model.Channel, error)
	ListByAccount(ctx context.Context, username, name string) ([]*model.Channel, error)
	RotateToken(ctx context.Context, id, hash string) error
	SoftDelete(ctx context.Context, id string) error
}

// UserStore is implemented by repository.UserRepo.
type UserStore interface {
	Allocate(ctx context.Context, channelID string, mint repository.MintFunc) ([]*model.User, error)
	GetByAccID(ctx context.Context, channelID, accID string) (*model.User, error)
	IDsByAccID(ctx context.Context, channelIDs []string, accID string) ([]uint64, error)
	ListByChannel(ctx context.Context, channelID string, limit, offset int) ([]*model.User, error)
	SoftDelete(ctx context.Context, id uint64) error
}

// ReviewStore is implemented by repository.ReviewRepo.
type ReviewStore interface {
	Create(ctx context.Context, rv *model.Review) error
	GetForUser(ctx context.Context, id, userID uint64) (*model.Review, error)
	GetInChannels(ctx context.Context, id uint64, channelIDs []string) (*model.Review, error)
	Find(ctx context.Context, q repository.ReviewQuery) ([]*model.Review, error)
	Update(ctx context.Context, rv *model.Review) error
	SoftDelete(ctx context.Context, id, userID uint64) error
}

var (
	_ AccountStore = (*repository.AccountRepo)(nil)
	_ ChannelStore = (*repository.ChannelRepo)(nil)
	_ UserStore    = (*repository.UserRepo)(nil)
	_ ReviewStore  = (*repository.ReviewRepo)(nil)
)

// publishTimeout bounds a single asynchronous event publish.
const publishTimeout = 5 * time.Second

// emitter publishes domain events off the request path.  A failed publish
// is logged and otherwise ignored: the state change has already committed.
type emitter struct {
	pub queue.Publisher
	log *logrus.Logger
}

func (e emitter) emit(ev queue.Event) {
	if e.pub == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := e.pub.Publish(ctx, ev); err != nil {
			e.log.WithError(err).WithField("event", string(ev.Type)).Warn("publish event failed")
		}
	}()
}

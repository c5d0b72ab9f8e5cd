package service

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/review-channels/internal/acctid"
	"github.com/iliyamo/review-channels/internal/model"
	"github.com/iliyamo/review-channels/internal/queue"
	"github.com/iliyamo/review-channels/internal/repository"
	"github.com/iliyamo/review-channels/internal/utils"
)

const maxChannelNameLen = 255

// ChannelOptions configures ChannelService.
type ChannelOptions struct {
	BcryptCost       int
	FreeChannelLimit int
}

// ChannelService manages channels and their bearer tokens.
type ChannelService struct {
	channels ChannelStore
	opts     ChannelOptions
	events   emitter
	log      *logrus.Logger
}

// NewChannelService wires a ChannelService.
func NewChannelService(channels ChannelStore, pub queue.Publisher, log *logrus.Logger, opts ChannelOptions) *ChannelService {
	if opts.FreeChannelLimit < 0 {
		opts.FreeChannelLimit = 0
	}
	return &ChannelService{channels: channels, opts: opts, events: emitter{pub: pub, log: log}, log: log}
}

var defaultTemplate = acctid.MustParse(model.DefaultUserPrefix)

// Create validates the prefix template, enforces the tier limit and stores
// the channel.  The returned token is the only copy of the plaintext.
func (s *ChannelService) Create(ctx context.Context, acc *model.Account, name, prefix string) (*model.Channel, string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, "", validationError("name is required")
	}
	if len(name) > maxChannelNameLen {
		return nil, "", validationError("name must be at most %d characters", maxChannelNameLen)
	}
	tpl := defaultTemplate
	if prefix != "" {
		var err error
		if tpl, err = acctid.Parse(prefix); err != nil {
			return nil, "", validationError("%s", err.Error())
		}
	}

	token, hash, err := s.newToken()
	if err != nil {
		return nil, "", err
	}
	ch := &model.Channel{
		ID:              utils.NewChannelID(),
		Name:            name,
		UserPrefix:      tpl.String(),
		AccessTokenHash: hash,
		AccountUsername: acc.Username,
	}
	limit := s.opts.FreeChannelLimit
	err = s.channels.CreateForAccount(ctx, ch, func(a *model.Account, owned int) error {
		if !a.IsPremium() && owned >= limit {
			return forbidden("free accounts can own at most %d channel(s); upgrade to premium", limit)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, "", unauthenticated("account no longer exists")
		}
		return nil, "", err
	}

	ev := queue.NewEvent(queue.ChannelCreated)
	ev.AccountUsername = acc.Username
	ev.ChannelID = utils.EncodeChannelID(ch.ID)
	s.events.emit(ev)
	return ch, token, nil
}

// List returns the account's channels.  name and externalID are mutually
// exclusive filters; an empty result is NotFound.
func (s *ChannelService) List(ctx context.Context, acc *model.Account, name, externalID string) ([]*model.Channel, error) {
	name, externalID = strings.TrimSpace(name), strings.TrimSpace(externalID)
	if name != "" && externalID != "" {
		return nil, validationError("filter by either name or id, not both")
	}
	if externalID != "" {
		ch, err := s.Get(ctx, externalID)
		if err != nil {
			return nil, err
		}
		if !ch.OwnedBy(acc.Username) {
			return nil, notFound("channel not found")
		}
		return []*model.Channel{ch}, nil
	}
	out, err := s.channels.ListByAccount(ctx, acc.Username, name)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, notFound("no channels found")
	}
	return out, nil
}

// Get resolves a live channel by its external (base64url) id.
func (s *ChannelService) Get(ctx context.Context, externalID string) (*model.Channel, error) {
	id, err := utils.DecodeChannelID(externalID)
	if err != nil {
		return nil, badRequest("channel id is malformed")
	}
	ch, err := s.channels.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrChannelNotFound) {
			return nil, notFound("channel not found")
		}
		return nil, err
	}
	return ch, nil
}

// Authorize fails with an authorization error unless acc owns ch.
func (s *ChannelService) Authorize(acc *model.Account, ch *model.Channel) error {
	if acc == nil || ch == nil || !ch.OwnedBy(acc.Username) {
		return forbidden("you do not own this channel")
	}
	return nil
}

// Access is the bearer gate: it resolves the channel named by externalID
// and verifies token against its stored hash.
func (s *ChannelService) Access(ctx context.Context, externalID, token string) (*model.Channel, error) {
	if token == "" {
		return nil, unauthenticated("access token required")
	}
	if externalID == "" {
		return nil, unauthenticated("channel id required")
	}
	ch, err := s.Get(ctx, externalID)
	if err != nil {
		return nil, err
	}
	if !utils.VerifySecret(ch.AccessTokenHash, token) {
		return nil, unauthenticated("invalid access token")
	}
	return ch, nil
}

// RotateToken replaces the channel token.  The old token is rejected from
// the moment the new hash is stored.
func (s *ChannelService) RotateToken(ctx context.Context, ch *model.Channel) (string, error) {
	token, hash, err := s.newToken()
	if err != nil {
		return "", err
	}
	if err := s.channels.RotateToken(ctx, ch.ID, hash); err != nil {
		if errors.Is(err, repository.ErrChannelNotFound) {
			return "", notFound("channel not found")
		}
		return "", err
	}
	ch.AccessTokenHash = hash
	ev := queue.NewEvent(queue.ChannelTokenRotated)
	ev.AccountUsername = ch.AccountUsername
	ev.ChannelID = utils.EncodeChannelID(ch.ID)
	s.events.emit(ev)
	return token, nil
}

// Delete soft-deletes the channel.  Its token stops working and it no
// longer counts against the tier limit.
func (s *ChannelService) Delete(ctx context.Context, ch *model.Channel) error {
	if err := s.channels.SoftDelete(ctx, ch.ID); err != nil {
		if errors.Is(err, repository.ErrChannelNotFound) {
			return notFound("channel not found")
		}
		return err
	}
	ev := queue.NewEvent(queue.ChannelDeleted)
	ev.AccountUsername = ch.AccountUsername
	ev.ChannelID = utils.EncodeChannelID(ch.ID)
	s.events.emit(ev)
	return nil
}

// OwnedIDs returns the internal ids of every live channel of username.
func (s *ChannelService) OwnedIDs(ctx context.Context, username string) ([]string, error) {
	chs, err := s.channels.ListByAccount(ctx, username, "")
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(chs))
	for _, ch := range chs {
		ids = append(ids, ch.ID)
	}
	return ids, nil
}

func (s *ChannelService) newToken() (token, hash string, err error) {
	token, err = utils.NewAccessToken()
	if err != nil {
		return "", "", err
	}
	hash, err = utils.HashSecret(token, s.opts.BcryptCost)
	if err != nil {
		return "", "", err
	}
	return token, hash, nil
}

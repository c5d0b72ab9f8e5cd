package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/review-channels/internal/gamelookup"
	"github.com/iliyamo/review-channels/internal/model"
	"github.com/iliyamo/review-channels/internal/queue"
	"github.com/iliyamo/review-channels/internal/repository"
	"github.com/iliyamo/review-channels/internal/utils"
)

// Missing marks an absent optional field in review responses.
const Missing = "-"

// ReviewView is a review enriched for clients: the author's acc_id, the
// external channel id and a fully qualified screenshot URL.
type ReviewView struct {
	ID         uint64    `json:"id"`
	AccID      string    `json:"acc_id"`
	ChannelID  string    `json:"channel_id"`
	GameID     uint64    `json:"game_id"`
	GameName   string    `json:"game_name"`
	Rating     int       `json:"rating"`
	Review     string    `json:"review"`
	Screenshot string    `json:"screenshot"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Scope is the set of channels a review query may see.  Bearer access
// scopes to one channel; an account may see all of its channels.
type Scope struct {
	ChannelIDs []string
}

// ChannelScope scopes queries to ch.
func ChannelScope(ch *model.Channel) Scope { return Scope{ChannelIDs: []string{ch.ID}} }

// ReviewFilter carries the optional listing dimensions.
type ReviewFilter struct {
	GameID   *uint64
	GameName string
	First    bool
	AccID    string
	Limit    int
	Offset   int
}

// CreateReviewInput is the payload of a new review.  One of GameID and
// GameName is required.
type CreateReviewInput struct {
	Rating     int
	Review     *string
	Screenshot *string
	GameID     *uint64
	GameName   string
	First      bool
}

// UpdateReviewInput lists optional review changes.
type UpdateReviewInput struct {
	Rating     *int
	Review     *string
	Screenshot *string
}

// ReviewService creates, edits and queries reviews.
type ReviewService struct {
	reviews   ReviewStore
	users     UserStore
	channels  ChannelStore
	games     gamelookup.Searcher
	assetBase string
	events    emitter
	log       *logrus.Logger
}

// NewReviewService wires a ReviewService.
func NewReviewService(reviews ReviewStore, users UserStore, channels ChannelStore, games gamelookup.Searcher, pub queue.Publisher, log *logrus.Logger, assetBaseURL string) *ReviewService {
	return &ReviewService{
		reviews:   reviews,
		users:     users,
		channels:  channels,
		games:     games,
		assetBase: strings.TrimRight(assetBaseURL, "/"),
		events:    emitter{pub: pub, log: log},
		log:       log,
	}
}

// Create stores a review written by u.  A game name is resolved through the
// lookup; several candidates without First yield a MultipleChoices error
// carrying the candidates.
func (s *ReviewService) Create(ctx context.Context, ch *model.Channel, u *model.User, in CreateReviewInput) (*ReviewView, error) {
	if !model.ValidRating(in.Rating) {
		return nil, validationError("rating must be between %d and %d", model.MinRating, model.MaxRating)
	}
	rv := &model.Review{
		UserID:     u.ID,
		AccID:      u.AccID,
		ChannelID:  u.ChannelID,
		Rating:     in.Rating,
		Review:     blankToNil(in.Review),
		Screenshot: blankToNil(in.Screenshot),
	}
	switch {
	case in.GameID != nil:
		if *in.GameID == 0 {
			return nil, validationError("game_id must be a positive integer")
		}
		rv.GameID = *in.GameID
	case strings.TrimSpace(in.GameName) != "":
		g, err := s.resolveGame(ctx, in.GameName, in.First)
		if err != nil {
			return nil, err
		}
		rv.GameID, rv.GameName = g.ID, g.Name
	default:
		return nil, badRequest("game_name or game_id is required")
	}

	if err := s.reviews.Create(ctx, rv); err != nil {
		return nil, err
	}
	ev := queue.NewEvent(queue.ReviewCreated)
	ev.AccountUsername = ch.AccountUsername
	ev.ChannelID = utils.EncodeChannelID(ch.ID)
	ev.AccIDs = []string{u.AccID}
	ev.ReviewID = rv.ID
	ev.GameID = rv.GameID
	s.events.emit(ev)
	return s.view(rv), nil
}

// Update edits a live review written by u.
func (s *ReviewService) Update(ctx context.Context, u *model.User, id uint64, in UpdateReviewInput) (*ReviewView, error) {
	if in.Rating == nil && in.Review == nil && in.Screenshot == nil {
		return nil, validationError("nothing to update")
	}
	if in.Rating != nil && !model.ValidRating(*in.Rating) {
		return nil, validationError("rating must be between %d and %d", model.MinRating, model.MaxRating)
	}
	rv, err := s.reviews.GetForUser(ctx, id, u.ID)
	if err != nil {
		return nil, reviewErr(err)
	}
	if in.Rating != nil {
		rv.Rating = *in.Rating
	}
	if in.Review != nil {
		rv.Review = blankToNil(in.Review)
	}
	if in.Screenshot != nil {
		rv.Screenshot = blankToNil(in.Screenshot)
	}
	if err := s.reviews.Update(ctx, rv); err != nil {
		return nil, err
	}
	return s.view(rv), nil
}

// Delete soft-deletes a review written by u.
func (s *ReviewService) Delete(ctx context.Context, u *model.User, id uint64) error {
	return reviewErr(s.reviews.SoftDelete(ctx, id, u.ID))
}

// Get fetches a review by explicit id inside scope.  Reviews of deleted
// users stay reachable this way.
func (s *ReviewService) Get(ctx context.Context, scope Scope, id uint64) (*ReviewView, error) {
	rv, err := s.reviews.GetInChannels(ctx, id, scope.ChannelIDs)
	if err != nil {
		return nil, reviewErr(err)
	}
	return s.view(rv), nil
}

// List resolves the filter dimensions and returns matching reviews of the
// scope.  The dimensions are ANDed; with none set every review of the scope
// is returned.
func (s *ReviewService) List(ctx context.Context, scope Scope, f ReviewFilter) ([]*ReviewView, error) {
	limit, offset, err := page(f.Limit, f.Offset)
	if err != nil {
		return nil, err
	}
	q := repository.ReviewQuery{ChannelIDs: scope.ChannelIDs, Limit: limit, Offset: offset}

	switch {
	case f.GameID != nil:
		id := *f.GameID
		q.GameID = &id
	case strings.TrimSpace(f.GameName) != "":
		g, err := s.resolveGame(ctx, f.GameName, f.First)
		if err != nil {
			return nil, err
		}
		q.GameID = &g.ID
	}

	if accID := strings.TrimSpace(f.AccID); accID != "" {
		ids, err := s.users.IDsByAccID(ctx, scope.ChannelIDs, accID)
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			return nil, badRequest("user %s is not found", accID)
		}
		q.UserIDs = ids
	}

	rows, err := s.reviews.Find(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, notFound("no reviews found")
	}
	out := make([]*ReviewView, len(rows))
	for i, rv := range rows {
		out[i] = s.view(rv)
	}
	return out, nil
}

// AccountScope widens the scope to every live channel of acc, or to the
// single owned channel named by externalID.
func (s *ReviewService) AccountScope(ctx context.Context, acc *model.Account, externalID string) (Scope, error) {
	if externalID = strings.TrimSpace(externalID); externalID != "" {
		id, err := utils.DecodeChannelID(externalID)
		if err != nil {
			return Scope{}, badRequest("channel id is malformed")
		}
		ch, err := s.channels.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrChannelNotFound) {
				return Scope{}, notFound("channel not found")
			}
			return Scope{}, err
		}
		if !ch.OwnedBy(acc.Username) {
			return Scope{}, notFound("channel not found")
		}
		return ChannelScope(ch), nil
	}
	chs, err := s.channels.ListByAccount(ctx, acc.Username, "")
	if err != nil {
		return Scope{}, err
	}
	scope := Scope{ChannelIDs: make([]string, 0, len(chs))}
	for _, ch := range chs {
		scope.ChannelIDs = append(scope.ChannelIDs, ch.ID)
	}
	return scope, nil
}

func (s *ReviewService) resolveGame(ctx context.Context, name string, first bool) (model.Game, error) {
	res, err := gamelookup.Resolve(ctx, s.games, name, first)
	if err != nil {
		s.log.WithError(err).WithField("game_name", name).Warn("game lookup failed")
		return model.Game{}, external("game lookup failed, try again later or send game_id")
	}
	switch res.Kind {
	case gamelookup.Resolved:
		return res.Game, nil
	case gamelookup.Ambiguous:
		return model.Game{}, &Error{
			Kind:       KindMultipleChoices,
			Message:    "please choose one of the following games",
			Candidates: res.Candidates,
		}
	default:
		return model.Game{}, badRequest("%s is not found", strings.TrimSpace(name))
	}
}

func (s *ReviewService) view(rv *model.Review) *ReviewView {
	v := &ReviewView{
		ID:         rv.ID,
		AccID:      rv.AccID,
		ChannelID:  utils.EncodeChannelID(rv.ChannelID),
		GameID:     rv.GameID,
		GameName:   orMissing(rv.GameName),
		Rating:     rv.Rating,
		Review:     Missing,
		Screenshot: Missing,
		CreatedAt:  rv.CreatedAt,
		UpdatedAt:  rv.UpdatedAt,
	}
	if rv.Review != nil && *rv.Review != "" {
		v.Review = *rv.Review
	}
	if rv.Screenshot != nil && *rv.Screenshot != "" {
		v.Screenshot = s.assetBase + "/" + strings.TrimLeft(*rv.Screenshot, "/")
	}
	return v
}

func reviewErr(err error) error {
	if errors.Is(err, repository.ErrReviewNotFound) {
		return notFound("review not found")
	}
	return err
}

func orMissing(s string) string {
	if s == "" {
		return Missing
	}
	return s
}

func blankToNil(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}

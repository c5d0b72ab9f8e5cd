// Package testutil provides in-memory stand-ins for the repositories, the
// game lookup and the event publisher, shared by the package tests.
package testutil

import (
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/review-channels/internal/model"
	"github.com/iliyamo/review-channels/internal/queue"
	"github.com/iliyamo/review-channels/internal/repository"
)

// MemDB is an in-memory stand-in for MySQL.  Its mutex plays the part of
// the row locks taken by the real repositories.
type MemDB struct {
	mu         sync.Mutex
	accounts   map[string]*model.Account
	channels   map[string]*model.Channel
	chDeleted  map[string]bool
	users      []*model.User
	reviews    []*model.Review
	revDeleted map[uint64]bool
	nextUser   uint64
	nextReview uint64
}

// NewMemDB returns an empty store.
func NewMemDB() *MemDB {
	return &MemDB{
		accounts:   map[string]*model.Account{},
		channels:   map[string]*model.Channel{},
		chDeleted:  map[string]bool{},
		revDeleted: map[uint64]bool{},
	}
}

func (db *MemDB) userByID(id uint64) *model.User {
	for _, u := range db.users {
		if u.ID == id {
			return u
		}
	}
	return nil
}

// LiveUsers lists the live users of a channel in allocation order.
func (db *MemDB) LiveUsers(channelID string) []*model.User {
	var out []*model.User
	for _, u := range db.users {
		if u.ChannelID == channelID && u.DeletedAt == nil {
			out = append(out, u)
		}
	}
	return out
}

// Accounts implements service.AccountStore.
type Accounts struct{ DB *MemDB }

func (f Accounts) Create(_ context.Context, a *model.Account) error {
	f.DB.mu.Lock()
	defer f.DB.mu.Unlock()
	if _, ok := f.DB.accounts[a.Username]; ok {
		return repository.ErrUsernameExists
	}
	for _, o := range f.DB.accounts {
		if o.Email == a.Email {
			return repository.ErrEmailExists
		}
	}
	cp := *a
	f.DB.accounts[a.Username] = &cp
	return nil
}

func (f Accounts) GetByUsername(_ context.Context, username string) (*model.Account, error) {
	f.DB.mu.Lock()
	defer f.DB.mu.Unlock()
	a, ok := f.DB.accounts[username]
	if !ok {
		return nil, repository.ErrAccountNotFound
	}
	cp := *a
	return &cp, nil
}

func (f Accounts) EmailTaken(_ context.Context, email, except string) (bool, error) {
	f.DB.mu.Lock()
	defer f.DB.mu.Unlock()
	for _, o := range f.DB.accounts {
		if o.Email == email && o.Username != except {
			return true, nil
		}
	}
	return false, nil
}

func (f Accounts) Update(_ context.Context, username string, upd repository.AccountUpdate) (*model.Account, error) {
	f.DB.mu.Lock()
	defer f.DB.mu.Unlock()
	a, ok := f.DB.accounts[username]
	if !ok {
		return nil, repository.ErrAccountNotFound
	}
	if upd.Email != nil {
		a.Email = *upd.Email
	}
	if upd.Name != nil {
		a.Name = *upd.Name
	}
	if upd.PasswordHash != nil {
		a.PasswordHash = *upd.PasswordHash
	}
	cp := *a
	return &cp, nil
}

func (f Accounts) Mutate(_ context.Context, username string, fn func(a *model.Account) error) (*model.Account, error) {
	f.DB.mu.Lock()
	defer f.DB.mu.Unlock()
	a, ok := f.DB.accounts[username]
	if !ok {
		return nil, repository.ErrAccountNotFound
	}
	cp := *a
	if err := fn(&cp); err != nil {
		return nil, err
	}
	*a = cp
	return &cp, nil
}

// Channels implements service.ChannelStore.
type Channels struct{ DB *MemDB }

func (f Channels) CreateForAccount(_ context.Context, ch *model.Channel, allow func(*model.Account, int) error) error {
	f.DB.mu.Lock()
	defer f.DB.mu.Unlock()
	a, ok := f.DB.accounts[ch.AccountUsername]
	if !ok {
		return repository.ErrAccountNotFound
	}
	owned := 0
	for id, c := range f.DB.channels {
		if c.AccountUsername == a.Username && !f.DB.chDeleted[id] {
			owned++
		}
	}
	if allow != nil {
		if err := allow(a, owned); err != nil {
			return err
		}
	}
	ch.CreatedAt = time.Now()
	cp := *ch
	f.DB.channels[ch.ID] = &cp
	return nil
}

func (f Channels) GetByID(_ context.Context, id string) (*model.Channel, error) {
	f.DB.mu.Lock()
	defer f.DB.mu.Unlock()
	c, ok := f.DB.channels[id]
	if !ok || f.DB.chDeleted[id] {
		return nil, repository.ErrChannelNotFound
	}
	cp := *c
	return &cp, nil
}

func (f Channels) ListByAccount(_ context.Context, username, name string) ([]*model.Channel, error) {
	f.DB.mu.Lock()
	defer f.DB.mu.Unlock()
	var out []*model.Channel
	for id, c := range f.DB.channels {
		if c.AccountUsername != username || f.DB.chDeleted[id] {
			continue
		}
		if name != "" && !strings.Contains(strings.ToLower(c.Name), strings.ToLower(name)) {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f Channels) RotateToken(_ context.Context, id, hash string) error {
	f.DB.mu.Lock()
	defer f.DB.mu.Unlock()
	c, ok := f.DB.channels[id]
	if !ok || f.DB.chDeleted[id] {
		return repository.ErrChannelNotFound
	}
	c.AccessTokenHash = hash
	return nil
}

func (f Channels) SoftDelete(_ context.Context, id string) error {
	f.DB.mu.Lock()
	defer f.DB.mu.Unlock()
	if _, ok := f.DB.channels[id]; !ok || f.DB.chDeleted[id] {
		return repository.ErrChannelNotFound
	}
	f.DB.chDeleted[id] = true
	return nil
}

// Users implements service.UserStore.  Injected errors are returned by
// Allocate, one per call, before any real allocation happens.
type Users struct {
	DB       *MemDB
	Injected []error
	Calls    int
}

func (f *Users) Allocate(_ context.Context, channelID string, mint repository.MintFunc) ([]*model.User, error) {
	f.DB.mu.Lock()
	defer f.DB.mu.Unlock()
	f.Calls++
	if len(f.Injected) > 0 {
		err := f.Injected[0]
		f.Injected = f.Injected[1:]
		return nil, err
	}
	if _, ok := f.DB.channels[channelID]; !ok || f.DB.chDeleted[channelID] {
		return nil, repository.ErrChannelNotFound
	}
	live := f.DB.LiveUsers(channelID)
	ids, err := mint(len(live))
	if err != nil {
		return nil, err
	}
	taken := map[string]bool{}
	for _, u := range live {
		taken[u.AccID] = true
	}
	for _, id := range ids {
		if taken[id] {
			return nil, repository.ErrAccIDTaken
		}
		taken[id] = true
	}
	out := make([]*model.User, 0, len(ids))
	for _, id := range ids {
		f.DB.nextUser++
		u := &model.User{ID: f.DB.nextUser, AccID: id, ChannelID: channelID, CreatedAt: time.Now()}
		f.DB.users = append(f.DB.users, u)
		cp := *u
		out = append(out, &cp)
	}
	return out, nil
}

func (f *Users) GetByAccID(_ context.Context, channelID, accID string) (*model.User, error) {
	f.DB.mu.Lock()
	defer f.DB.mu.Unlock()
	for _, u := range f.DB.LiveUsers(channelID) {
		if u.AccID == accID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (f *Users) IDsByAccID(_ context.Context, channelIDs []string, accID string) ([]uint64, error) {
	f.DB.mu.Lock()
	defer f.DB.mu.Unlock()
	var ids []uint64
	for _, c := range channelIDs {
		for _, u := range f.DB.LiveUsers(c) {
			if u.AccID == accID {
				ids = append(ids, u.ID)
			}
		}
	}
	return ids, nil
}

func (f *Users) ListByChannel(_ context.Context, channelID string, limit, offset int) ([]*model.User, error) {
	f.DB.mu.Lock()
	defer f.DB.mu.Unlock()
	live := f.DB.LiveUsers(channelID)
	if offset >= len(live) {
		return nil, nil
	}
	live = live[offset:]
	if len(live) > limit {
		live = live[:limit]
	}
	return live, nil
}

func (f *Users) SoftDelete(_ context.Context, id uint64) error {
	f.DB.mu.Lock()
	defer f.DB.mu.Unlock()
	u := f.DB.userByID(id)
	if u == nil || u.DeletedAt != nil {
		return repository.ErrUserNotFound
	}
	now := time.Now()
	u.DeletedAt = &now
	return nil
}

// Reviews implements service.ReviewStore.
type Reviews struct{ DB *MemDB }

func (f Reviews) joined(rv *model.Review) *model.Review {
	cp := *rv
	if u := f.DB.userByID(rv.UserID); u != nil {
		cp.AccID, cp.ChannelID = u.AccID, u.ChannelID
	}
	return &cp
}

func (f Reviews) Create(_ context.Context, rv *model.Review) error {
	f.DB.mu.Lock()
	defer f.DB.mu.Unlock()
	f.DB.nextReview++
	rv.ID = f.DB.nextReview
	rv.CreatedAt = time.Now()
	cp := *rv
	f.DB.reviews = append(f.DB.reviews, &cp)
	return nil
}

func (f Reviews) GetForUser(_ context.Context, id, userID uint64) (*model.Review, error) {
	f.DB.mu.Lock()
	defer f.DB.mu.Unlock()
	for _, rv := range f.DB.reviews {
		if rv.ID == id && rv.UserID == userID && !f.DB.revDeleted[id] {
			return f.joined(rv), nil
		}
	}
	return nil, repository.ErrReviewNotFound
}

func (f Reviews) GetInChannels(_ context.Context, id uint64, channelIDs []string) (*model.Review, error) {
	f.DB.mu.Lock()
	defer f.DB.mu.Unlock()
	for _, rv := range f.DB.reviews {
		if rv.ID != id || f.DB.revDeleted[id] {
			continue
		}
		j := f.joined(rv)
		for _, c := range channelIDs {
			if j.ChannelID == c {
				return j, nil
			}
		}
	}
	return nil, repository.ErrReviewNotFound
}

func (f Reviews) Find(_ context.Context, q repository.ReviewQuery) ([]*model.Review, error) {
	f.DB.mu.Lock()
	defer f.DB.mu.Unlock()
	inScope := map[string]bool{}
	for _, c := range q.ChannelIDs {
		inScope[c] = true
	}
	wantUser := map[uint64]bool{}
	for _, id := range q.UserIDs {
		wantUser[id] = true
	}
	var out []*model.Review
	for i := len(f.DB.reviews) - 1; i >= 0; i-- {
		rv := f.DB.reviews[i]
		u := f.DB.userByID(rv.UserID)
		switch {
		case f.DB.revDeleted[rv.ID], u == nil, u.DeletedAt != nil, !inScope[u.ChannelID]:
			continue
		case q.GameID != nil && rv.GameID != *q.GameID:
			continue
		case len(wantUser) > 0 && !wantUser[rv.UserID]:
			continue
		}
		out = append(out, f.joined(rv))
	}
	if q.Offset >= len(out) {
		return nil, nil
	}
	out = out[q.Offset:]
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (f Reviews) Update(_ context.Context, rv *model.Review) error {
	f.DB.mu.Lock()
	defer f.DB.mu.Unlock()
	for i, o := range f.DB.reviews {
		if o.ID == rv.ID {
			cp := *rv
			f.DB.reviews[i] = &cp
			return nil
		}
	}
	return repository.ErrReviewNotFound
}

func (f Reviews) SoftDelete(_ context.Context, id, userID uint64) error {
	f.DB.mu.Lock()
	defer f.DB.mu.Unlock()
	for _, rv := range f.DB.reviews {
		if rv.ID == id && rv.UserID == userID && !f.DB.revDeleted[id] {
			f.DB.revDeleted[id] = true
			return nil
		}
	}
	return repository.ErrReviewNotFound
}

// Games implements gamelookup.Searcher over a fixed name index.
type Games struct {
	ByName map[string][]model.Game
	Err    error
}

func (f Games) Search(_ context.Context, name string) ([]model.Game, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return f.ByName[strings.ToLower(name)], nil
}

// Publisher records every published event.
type Publisher struct {
	mu     sync.Mutex
	events []queue.Event
}

func (p *Publisher) Publish(_ context.Context, ev queue.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

// Types lists the recorded event types in publish order.
func (p *Publisher) Types() []queue.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]queue.EventType, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}

// QuietLogger returns a logger that discards its output.
func QuietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

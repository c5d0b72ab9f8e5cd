package service

import (
	"context"
	"errors"
	"math"
	"net/mail"
	"strings"
	"time"
	"unicode"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/review-channels/internal/config"
	"github.com/iliyamo/review-channels/internal/model"
	"github.com/iliyamo/review-channels/internal/queue"
	"github.com/iliyamo/review-channels/internal/repository"
	"github.com/iliyamo/review-channels/internal/utils"
)

const (
	minPasswordLen = 8
	maxPasswordLen = 32
	maxUsernameLen = 64
)

// AccountOptions configures AccountService.
type AccountOptions struct {
	JWTSecret  string
	SessionTTL time.Duration
	BcryptCost int
	Billing    config.BillingConfig
}

// AccountService owns registration, sessions, profile updates and billing.
type AccountService struct {
	accounts AccountStore
	opts     AccountOptions
	events   emitter
	log      *logrus.Logger
}

// NewAccountService wires an AccountService.
func NewAccountService(accounts AccountStore, pub queue.Publisher, log *logrus.Logger, opts AccountOptions) *AccountService {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 24 * time.Hour
	}
	return &AccountService{accounts: accounts, opts: opts, events: emitter{pub: pub, log: log}, log: log}
}

// RegisterInput is the payload of a registration.
type RegisterInput struct {
	Username             string
	Email                string
	Name                 string
	Password             string
	PasswordConfirmation string
}

// Register creates a free account with zero credit.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*model.Account, error) {
	username, err := normalizeUsername(in.Username)
	if err != nil {
		return nil, err
	}
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, validationError("name is required")
	}
	if err := checkPassword(in.Password, in.PasswordConfirmation); err != nil {
		return nil, err
	}
	hash, err := utils.HashSecret(in.Password, s.opts.BcryptCost)
	if err != nil {
		return nil, err
	}

	acc := &model.Account{
		Username:     username,
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		Type:         model.AccountFree,
	}
	switch err := s.accounts.Create(ctx, acc); {
	case errors.Is(err, repository.ErrUsernameExists):
		return nil, conflict("username %s is already taken", username)
	case errors.Is(err, repository.ErrEmailExists):
		return nil, conflict("email %s is already registered", email)
	case err != nil:
		return nil, err
	}
	return acc, nil
}

// Login checks credentials and issues a session token.
func (s *AccountService) Login(ctx context.Context, username, password string) (utils.SessionToken, *model.Account, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || password == "" {
		return utils.SessionToken{}, nil, validationError("username and password are required")
	}
	acc, err := s.accounts.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return utils.SessionToken{}, nil, unauthenticated("invalid username or password")
		}
		return utils.SessionToken{}, nil, err
	}
	if !utils.VerifySecret(acc.PasswordHash, password) {
		return utils.SessionToken{}, nil, unauthenticated("invalid username or password")
	}
	tok, err := utils.IssueSessionToken(s.opts.JWTSecret, acc.Username, s.opts.SessionTTL)
	if err != nil {
		return utils.SessionToken{}, nil, err
	}
	return tok, acc, nil
}

// Authenticate resolves the account behind a session token.  An account
// deleted after the token was issued no longer authenticates.
func (s *AccountService) Authenticate(ctx context.Context, token string) (*model.Account, error) {
	if strings.TrimSpace(token) == "" {
		return nil, unauthenticated("session token required")
	}
	username, err := utils.VerifySessionToken(s.opts.JWTSecret, token)
	if err != nil {
		return nil, unauthenticated("invalid or expired session token")
	}
	acc, err := s.accounts.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, unauthenticated("account no longer exists")
		}
		return nil, err
	}
	return acc, nil
}

// UpdateInput lists the optional profile changes.
type UpdateInput struct {
	Email                *string
	Name                 *string
	Password             *string
	PasswordConfirmation *string
}

// Update applies the provided profile changes and reports which fields
// changed.
func (s *AccountService) Update(ctx context.Context, username string, in UpdateInput) (*model.Account, []string, error) {
	var upd repository.AccountUpdate
	var fields []string

	if in.Email != nil {
		email, err := normalizeEmail(*in.Email)
		if err != nil {
			return nil, nil, err
		}
		taken, err := s.accounts.EmailTaken(ctx, email, username)
		if err != nil {
			return nil, nil, err
		}
		if taken {
			return nil, nil, conflict("email %s is already registered", email)
		}
		upd.Email = &email
		fields = append(fields, "email")
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, nil, validationError("name must not be empty")
		}
		upd.Name = &name
		fields = append(fields, "name")
	}
	if in.Password != nil || in.PasswordConfirmation != nil {
		if in.Password == nil || in.PasswordConfirmation == nil {
			return nil, nil, validationError("password and password_confirmation must be sent together")
		}
		if err := checkPassword(*in.Password, *in.PasswordConfirmation); err != nil {
			return nil, nil, err
		}
		hash, err := utils.HashSecret(*in.Password, s.opts.BcryptCost)
		if err != nil {
			return nil, nil, err
		}
		upd.PasswordHash = &hash
		fields = append(fields, "password")
	}
	if len(fields) == 0 {
		return nil, nil, validationError("nothing to update")
	}

	acc, err := s.accounts.Update(ctx, username, upd)
	switch {
	case errors.Is(err, repository.ErrEmailExists):
		return nil, nil, conflict("email is already registered")
	case errors.Is(err, repository.ErrAccountNotFound):
		return nil, nil, notFound("account not found")
	case err != nil:
		return nil, nil, err
	}
	return acc, fields, nil
}

// TopUp adds amount to the account credit under the account row lock.
func (s *AccountService) TopUp(ctx context.Context, username string, amount uint64) (*model.Account, error) {
	if amount < s.opts.Billing.TopUpMin {
		return nil, validationError("credit must be at least %d", s.opts.Billing.TopUpMin)
	}
	acc, err := s.accounts.Mutate(ctx, username, func(a *model.Account) error {
		if a.Credit > math.MaxUint64-amount {
			return validationError("credit balance would overflow")
		}
		a.Credit += amount
		return nil
	})
	if err != nil {
		return nil, accountErr(err)
	}
	ev := queue.NewEvent(queue.AccountToppedUp)
	ev.AccountUsername = acc.Username
	ev.Credit = amount
	s.events.emit(ev)
	return acc, nil
}

// Upgrade moves a free account to premium, debiting the upgrade cost.  The
// balance check and the debit happen under the same row lock.
func (s *AccountService) Upgrade(ctx context.Context, username string) (*model.Account, error) {
	cost := s.opts.Billing.UpgradeCost
	acc, err := s.accounts.Mutate(ctx, username, func(a *model.Account) error {
		if a.IsPremium() {
			return forbidden("account is already premium")
		}
		if a.Credit < cost {
			return forbidden("insufficient credit: upgrading requires %d, balance is %d", cost, a.Credit)
		}
		a.Credit -= cost
		a.Type = model.AccountPremium
		return nil
	})
	if err != nil {
		return nil, accountErr(err)
	}
	s.log.WithField("account", acc.Username).Info("account upgraded to premium")
	ev := queue.NewEvent(queue.AccountUpgraded)
	ev.AccountUsername = acc.Username
	ev.Credit = cost
	s.events.emit(ev)
	return acc, nil
}

func accountErr(err error) error {
	if errors.Is(err, repository.ErrAccountNotFound) {
		return notFound("account not found")
	}
	return err
}

func normalizeUsername(raw string) (string, error) {
	u := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case u == "":
		return "", validationError("username is required")
	case len(u) > maxUsernameLen:
		return "", validationError("username must be at most %d characters", maxUsernameLen)
	case strings.IndexFunc(u, unicode.IsSpace) >= 0:
		return "", validationError("username cannot contain spaces")
	}
	return u, nil
}

func normalizeEmail(raw string) (string, error) {
	e := strings.ToLower(strings.TrimSpace(raw))
	addr, err := mail.ParseAddress(e)
	if err != nil || addr.Address != e {
		return "", validationError("email must be a valid email address")
	}
	return e, nil
}

func checkPassword(pw, confirm string) error {
	if n := len(pw); n < minPasswordLen || n > maxPasswordLen {
		return validationError("password must be %d to %d characters", minPasswordLen, maxPasswordLen)
	}
	if pw != confirm {
		return validationError("password_confirmation does not match password")
	}
	return nil
}

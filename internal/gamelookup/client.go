// Package gamelookup resolves game names against the IGDB search API.
package gamelookup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/singleflight"

	"github.com/iliyamo/review-channels/internal/config"
	"github.com/iliyamo/review-channels/internal/model"
)

// ErrUnavailable wraps every failure to obtain an answer from the lookup
// service, including an open circuit breaker.
var ErrUnavailable = errors.New("game lookup unavailable")

// Client searches IGDB.  Concurrent searches for the same name share one
// upstream request and the upstream is guarded by a circuit breaker.
type Client struct {
	url         string
	clientID    string
	accessToken string
	limit       int
	timeout     time.Duration
	http        *http.Client
	cb          *gobreaker.CircuitBreaker
	sf          singleflight.Group
}

// NewClient builds a Client from cfg.  Breaker state changes are logged at
// warn level.
func NewClient(cfg config.GameLookupConfig, log *logrus.Logger) *Client {
	st := gobreaker.Settings{
		Name:         "GameLookup",
		MaxRequests:  3,
		Interval:     10 * time.Second,
		Timeout:      30 * time.Second,
		IsSuccessful: countsAsSuccess,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 5 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warnf("CircuitBreaker[%s] state changed from %s to %s", name, from, to)
		},
	}
	limit := cfg.Limit
	if limit <= 0 {
		limit = 5
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		url:         cfg.URL,
		clientID:    cfg.ClientID,
		accessToken: cfg.AccessToken,
		limit:       limit,
		timeout:     timeout,
		http:        &http.Client{Timeout: timeout},
		cb:          gobreaker.NewCircuitBreaker(st),
	}
}

// Search returns at most limit candidates for name in IGDB relevance order.
// The upstream request is shared by every concurrent caller for the same
// name and runs on a context detached from any single caller, bounded by
// the client timeout.  A caller that gives up early only abandons its own
// wait.
func (c *Client) Search(ctx context.Context, name string) ([]model.Game, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	flight := context.WithoutCancel(ctx)
	ch := c.sf.DoChan(key, func() (interface{}, error) {
		fctx, cancel := context.WithTimeout(flight, c.timeout)
		defer cancel()
		return c.cb.Execute(func() (interface{}, error) {
			return c.search(fctx, name)
		})
	})
	select {
	case <-ctx.Done():
		return nil, errors.Wrapf(ErrUnavailable, "search %q: %v", name, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, errors.Wrapf(ErrUnavailable, "search %q: %v", name, res.Err)
		}
		return res.Val.([]model.Game), nil
	}
}

// countsAsSuccess keeps cancellations and deadlines out of the breaker's
// failure ratio.
func countsAsSuccess(err error) bool {
	return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (c *Client) search(ctx context.Context, name string) ([]model.Game, error) {
	body := fmt.Sprintf("search %s; fields id,name; limit %d;", quote(name), c.limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewBufferString(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Client-ID", c.clientID)
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "text/plain")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("igdb status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	var games []model.Game
	if err := json.NewDecoder(resp.Body).Decode(&games); err != nil {
		return nil, fmt.Errorf("decode igdb response: %w", err)
	}
	return games, nil
}

// quote renders s as an APIcalypse string literal.
func quote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(s) + `"`
}

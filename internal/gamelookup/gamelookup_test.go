package gamelookup

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/review-channels/internal/config"
	"github.com/iliyamo/review-channels/internal/model"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestClientSearch_SendsQueryAndCredentials(t *testing.T) {
	var gotBody, gotClient, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		gotClient = r.Header.Get("Client-ID")
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[{"id":1942,"name":"The Witcher 3: Wild Hunt"}]`)
	}))
	defer srv.Close()

	c := NewClient(config.GameLookupConfig{URL: srv.URL, ClientID: "cid", AccessToken: "tok", Limit: 5, Timeout: time.Second}, quietLogger())
	games, err := c.Search(context.Background(), `witcher "3"`)
	require.NoError(t, err)
	assert.Equal(t, []model.Game{{ID: 1942, Name: "The Witcher 3: Wild Hunt"}}, games)
	assert.Equal(t, `search "witcher \"3\""; fields id,name; limit 5;`, gotBody)
	assert.Equal(t, "cid", gotClient)
	assert.Equal(t, "Bearer tok", gotAuth)
}

func TestClientSearch_UpstreamErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(config.GameLookupConfig{URL: srv.URL, Timeout: time.Second}, quietLogger())
	_, err := c.Search(context.Background(), "doom")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestClientSearch_BreakerOpensAfterFailures(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(config.GameLookupConfig{URL: srv.URL, Timeout: time.Second}, quietLogger())
	for i := 0; i < 8; i++ {
		_, err := c.Search(context.Background(), "doom")
		require.Error(t, err)
	}
	assert.Equal(t, int32(5), atomic.LoadInt32(&hits))
}

func TestClientSearch_ImpatientCallersDoNotTripBreaker(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		time.Sleep(30 * time.Millisecond)
		_, _ = io.WriteString(w, `[{"id":7,"name":"DOOM Eternal"}]`)
	}))
	defer srv.Close()

	c := NewClient(config.GameLookupConfig{URL: srv.URL, Timeout: time.Second}, quietLogger())
	for i := 0; i < 6; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
		_, err := c.Search(ctx, fmt.Sprintf("doom %d", i))
		cancel()
		require.ErrorIs(t, err, ErrUnavailable)
	}

	games, err := c.Search(context.Background(), "doom eternal")
	require.NoError(t, err)
	assert.Equal(t, uint64(7), games[0].ID)
}

func TestClientSearch_JoinedCallerSurvivesFirstCallerCancel(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			close(started)
		}
		<-release
		_, _ = io.WriteString(w, `[{"id":7,"name":"DOOM Eternal"}]`)
	}))
	defer srv.Close()

	c := NewClient(config.GameLookupConfig{URL: srv.URL, Timeout: 5 * time.Second}, quietLogger())

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := c.Search(firstCtx, "doom")
		firstErr <- err
	}()
	<-started

	type result struct {
		games []model.Game
		err   error
	}
	second := make(chan result, 1)
	go func() {
		games, err := c.Search(context.Background(), "DOOM")
		second <- result{games, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelFirst()
	err := <-firstErr
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Contains(t, err.Error(), context.Canceled.Error())

	close(release)
	res := <-second
	require.NoError(t, res.err)
	assert.Equal(t, []model.Game{{ID: 7, Name: "DOOM Eternal"}}, res.games)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

type fakeSearcher struct {
	games []model.Game
	err   error
}

func (f fakeSearcher) Search(context.Context, string) ([]model.Game, error) { return f.games, f.err }

func TestResolve(t *testing.T) {
	one := []model.Game{{ID: 1, Name: "Doom"}}
	many := []model.Game{{ID: 1, Name: "Doom"}, {ID: 2, Name: "Doom II"}}

	tests := map[string]struct {
		games []model.Game
		first bool
		kind  Kind
		id    uint64
	}{
		"zero candidates":    {games: nil, kind: NotFound},
		"single candidate":   {games: one, kind: Resolved, id: 1},
		"many without first": {games: many, kind: Ambiguous},
		"many with first":    {games: many, first: true, kind: Resolved, id: 1},
		"single with first":  {games: one, first: true, kind: Resolved, id: 1},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			res, err := Resolve(context.Background(), fakeSearcher{games: tc.games}, "doom", tc.first)
			require.NoError(t, err)
			assert.Equal(t, tc.kind, res.Kind)
			if tc.kind == Resolved {
				assert.Equal(t, tc.id, res.Game.ID)
			}
			if tc.kind == Ambiguous {
				assert.Len(t, res.Candidates, len(tc.games))
			}
		})
	}
}

func TestResolve_BlankNameAndErrors(t *testing.T) {
	res, err := Resolve(context.Background(), fakeSearcher{}, "   ", false)
	require.NoError(t, err)
	assert.Equal(t, NotFound, res.Kind)

	_, err = Resolve(context.Background(), fakeSearcher{err: ErrUnavailable}, "doom", false)
	assert.ErrorIs(t, err, ErrUnavailable)
}

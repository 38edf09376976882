package lichess

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleLine = `{"id":"abc123","rated":true,"speed":"blitz","winner":"white","createdAt":1700000000000,` +
	`"players":{"white":{"user":{"name":"Alice","id":"alice"},"rating":1800},"black":{"user":{"name":"Bob","id":"bob"}}},` +
	`"opening":{"eco":"B90","name":"Sicilian Defense: Najdorf Variation","ply":10},"pgn":"1. e4 c5 *"}`

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, &http.Client{Timeout: time.Second})
}

func TestStreamGames_RequestShape(t *testing.T) {
	var got *http.Request
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		w.Header().Set("Content-Type", "application/x-ndjson")
		fmt.Fprintln(w, sampleLine)
	})

	games, err := client.FetchGames(context.Background(), "Alice", "secret", GameQuery{Max: 30, Until: 1699999999999, PerfType: "blitz"})
	require.NoError(t, err)
	require.Len(t, games, 1)

	require.NotNil(t, got)
	assert.Equal(t, "/api/games/user/Alice", got.URL.Path)
	assert.Equal(t, "Bearer secret", got.Header.Get("Authorization"))
	assert.Equal(t, "application/x-ndjson", got.Header.Get("Accept"))

	q := got.URL.Query()
	assert.Equal(t, "30", q.Get("max"))
	assert.Equal(t, "true", q.Get("pgnInJson"))
	assert.Equal(t, "true", q.Get("opening"))
	assert.Equal(t, "1699999999999", q.Get("until"))
	assert.Equal(t, "blitz", q.Get("perfType"))
	assert.False(t, q.Has("since"))
}

func TestStreamGames_NoCursorOmitsUntil(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.False(t, r.URL.Query().Has("until"))
	})

	games, err := client.FetchGames(context.Background(), "alice", "t", GameQuery{Max: 10})
	require.NoError(t, err)
	assert.Empty(t, games)
}

func TestStreamGames_DecodesRecords(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, sampleLine)
		fmt.Fprintln(w)
		fmt.Fprintln(w, `{"id":"def456","speed":"bullet"}`)
	})

	games, err := client.FetchGames(context.Background(), "alice", "t", GameQuery{Max: 10})
	require.NoError(t, err)
	require.Len(t, games, 2)

	first := games[0]
	assert.Equal(t, "abc123", first.ID)
	assert.Equal(t, "white", first.Winner)
	require.NotNil(t, first.CreatedAt)
	assert.Equal(t, int64(1700000000000), *first.CreatedAt)
	require.NotNil(t, first.Players)
	assert.Equal(t, "Alice", first.Players.White.User.Name)
	assert.Equal(t, "B90", first.Opening.ECO)
	require.NotNil(t, first.PGN)
	assert.Equal(t, "1. e4 c5 *", *first.PGN)

	second := games[1]
	assert.Equal(t, "def456", second.ID)
	assert.Nil(t, second.CreatedAt)
	assert.Nil(t, second.Players)
	assert.Nil(t, second.Opening)
	assert.Nil(t, second.PGN)
}

func TestStreamGames_MalformedLine(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, sampleLine)
		fmt.Fprintln(w, `{"id": broken`)
		fmt.Fprintln(w, sampleLine)
	})

	var yielded int
	var lastErr error
	for _, err := range client.StreamGames(context.Background(), "alice", "t", GameQuery{Max: 10}) {
		if err != nil {
			lastErr = err
			continue
		}
		yielded++
	}
	assert.Equal(t, 1, yielded)
	assert.ErrorIs(t, lastErr, ErrMalformedResponse)

	_, err := client.FetchGames(context.Background(), "alice", "t", GameQuery{Max: 10})
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestStreamGames_NonSuccessStatus(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such user", http.StatusNotFound)
	})

	_, err := client.FetchGames(context.Background(), "ghost", "t", GameQuery{Max: 10})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRemoteRejected)
	assert.NotErrorIs(t, err, ErrRemoteUnavailable)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	assert.Equal(t, "no such user", statusErr.Body)
}

func TestStreamGames_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)
	client := New(srv.URL, &http.Client{Timeout: 50 * time.Millisecond})

	_, err := client.FetchGames(context.Background(), "alice", "t", GameQuery{Max: 10})
	assert.ErrorIs(t, err, ErrRemoteUnavailable)
}

func TestStreamGames_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	client := New(addr, &http.Client{Timeout: time.Second})
	_, err := client.FetchGames(context.Background(), "alice", "t", GameQuery{Max: 10})
	assert.ErrorIs(t, err, ErrRemoteUnavailable)
}

func TestStreamGames_StopEarly(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		for i := 0; i < 5; i++ {
			fmt.Fprintln(w, strings.Replace(sampleLine, "abc123", fmt.Sprintf("g%d", i), 1))
		}
	})

	var ids []string
	for game, err := range client.StreamGames(context.Background(), "alice", "t", GameQuery{Max: 5}) {
		require.NoError(t, err)
		ids = append(ids, game.ID)
		if len(ids) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"g0", "g1"}, ids)
}

func TestGetAccount(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/account", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"id":"alice","username":"Alice","createdAt":1500000000000,"seenAt":1700000000000,`+
			`"perfs":{"blitz":{"games":10,"rating":1850,"rd":60},"storm":{"runs":3,"score":40}},"count":{"all":12,"win":7}}`)
	})

	account, err := client.GetAccount(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "alice", account.ID)
	assert.Equal(t, "Alice", account.Username)
	assert.Equal(t, int64(1500000000000), account.CreatedAt)
	assert.Equal(t, map[string]int{"blitz": 1850}, account.Ratings())
	assert.Equal(t, 12, account.Count["all"])
}

func TestGetAccount_Errors(t *testing.T) {
	t.Run("unauthorized", func(t *testing.T) {
		client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})
		_, err := client.GetAccount(context.Background(), "bad")
		assert.ErrorIs(t, err, ErrRemoteRejected)
	})

	t.Run("not json", func(t *testing.T) {
		client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, "<html>")
		})
		_, err := client.GetAccount(context.Background(), "tok")
		assert.ErrorIs(t, err, ErrMalformedResponse)
	})
}

func TestGetEmail(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/account/email", r.URL.Path)
		fmt.Fprint(w, `{"email":"alice@example.org"}`)
	})

	email, err := client.GetEmail(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.org", email)
}

func TestEndpoints(t *testing.T) {
	client := New("https://lichess.org/", nil)
	assert.Equal(t, "https://lichess.org", client.BaseURL())
	assert.Equal(t, "https://lichess.org/oauth", client.AuthURL())
	assert.Equal(t, "https://lichess.org/api/token", client.TokenURL())
}

package lichess

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/LichessStats/internal/pkg/config"
)

const (
	accountPath = "/api/account"
	emailPath   = "/api/account/email"
	gamesPath   = "/api/games/user/"
	authPath    = "/oauth"
	tokenPath   = "/api/token"

	// single PGN lines in the export can be long
	maxLineSize = 8 << 20
	maxErrBody  = 512
)

// Client talks to the Lichess HTTP API. It never retries.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a client from config; every request is bounded by timeout.
func NewClient(cfg config.LichessConfig, timeout time.Duration) *Client {
	return New(cfg.BaseURL, &http.Client{Timeout: timeout})
}

func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.DefaultRequestTimeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

func (c *Client) BaseURL() string { return c.baseURL }

// AuthURL is the OAuth authorization endpoint.
func (c *Client) AuthURL() string { return c.baseURL + authPath }

// TokenURL is the OAuth token endpoint.
func (c *Client) TokenURL() string { return c.baseURL + tokenPath }

// StreamGames lazily yields the user's games newest first. The sequence ends
// after the first error; a malformed line fails the whole fetch.
func (c *Client) StreamGames(ctx context.Context, username, token string, q GameQuery) iter.Seq2[RawGame, error] {
	return func(yield func(RawGame, error) bool) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.gamesURL(username, q), nil)
		if err != nil {
			yield(RawGame{}, fmt.Errorf("%w: %w", ErrRemoteUnavailable, err))
			return
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/x-ndjson")

		log.Debugf("[Lichess] Fetching games for %s: max=%d since=%d until=%d", username, q.Max, q.Since, q.Until)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			yield(RawGame{}, fmt.Errorf("%w: %w", ErrRemoteUnavailable, err))
			return
		}
		defer resp.Body.Close()

		if err := checkStatus(resp); err != nil {
			yield(RawGame{}, err)
			return
		}

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
		line := 0
		for scanner.Scan() {
			line++
			raw := bytes.TrimSpace(scanner.Bytes())
			if len(raw) == 0 {
				continue
			}
			var game RawGame
			if err := json.Unmarshal(raw, &game); err != nil {
				yield(RawGame{}, fmt.Errorf("%w: line %d: %w", ErrMalformedResponse, line, err))
				return
			}
			if !yield(game, nil) {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			if errors.Is(err, bufio.ErrTooLong) {
				yield(RawGame{}, fmt.Errorf("%w: line %d: %w", ErrMalformedResponse, line+1, err))
				return
			}
			yield(RawGame{}, fmt.Errorf("%w: %w", ErrRemoteUnavailable, err))
		}
	}
}

// FetchGames drains StreamGames into a slice.
func (c *Client) FetchGames(ctx context.Context, username, token string, q GameQuery) ([]RawGame, error) {
	var games []RawGame
	for game, err := range c.StreamGames(ctx, username, token, q) {
		if err != nil {
			return nil, err
		}
		games = append(games, game)
	}
	return games, nil
}

// GetAccount returns the account the token belongs to.
func (c *Client) GetAccount(ctx context.Context, token string) (*Account, error) {
	var account Account
	if err := c.getJSON(ctx, accountPath, token, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

// GetEmail returns the confirmed email address; needs the email:read scope.
func (c *Client) GetEmail(ctx context.Context, token string) (string, error) {
	var body struct {
		Email string `json:"email"`
	}
	if err := c.getJSON(ctx, emailPath, token, &body); err != nil {
		return "", err
	}
	return body.Email, nil
}

func (c *Client) getJSON(ctx context.Context, path, token string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRemoteUnavailable, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRemoteUnavailable, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	return nil
}

func (c *Client) gamesURL(username string, q GameQuery) string {
	params := url.Values{}
	if q.Max > 0 {
		params.Set("max", strconv.Itoa(q.Max))
	}
	params.Set("pgnInJson", "true")
	params.Set("opening", "true")
	if q.Until > 0 {
		params.Set("until", strconv.FormatInt(q.Until, 10))
	}
	if q.Since > 0 {
		params.Set("since", strconv.FormatInt(q.Since, 10))
	}
	if q.PerfType != "" {
		params.Set("perfType", q.PerfType)
	}
	return c.baseURL + gamesPath + url.PathEscape(username) + "?" + params.Encode()
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrBody))
	return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}

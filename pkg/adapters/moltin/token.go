package moltin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/evgen4ikrus/pizza-bot/pkg/domain"
	"golang.org/x/sync/singleflight"
)

// TokenMargin is the remaining validity below which a token is refreshed.
const TokenMargin = 30 * time.Second

const tokenFetchTimeout = 10 * time.Second

// TokenSource caches an access token and refreshes it before it expires.
// Concurrent callers that hit an expired token share a single refresh.
type TokenSource struct {
	httpClient   *http.Client
	endpoint     string
	clientID     string
	clientSecret string
	now          func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time

	group singleflight.Group
}

// NewTokenSource creates a token source for the given API base URL.
// An empty secret requests an implicit (read-only) token.
func NewTokenSource(httpClient *http.Client, baseURL, clientID, clientSecret string) *TokenSource {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &TokenSource{
		httpClient:   httpClient,
		endpoint:     strings.TrimRight(baseURL, "/") + "/oauth/access_token",
		clientID:     clientID,
		clientSecret: clientSecret,
		now:          time.Now,
	}
}

// Token returns a valid access token, fetching a new one if needed.
func (s *TokenSource) Token(ctx context.Context) (string, error) {
	if tok, ok := s.cached(); ok {
		return tok, nil
	}

	ch := s.group.DoChan("token", func() (any, error) {
		// Another caller may have refreshed while we waited for the group.
		if tok, ok := s.cached(); ok {
			return tok, nil
		}
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), tokenFetchTimeout)
		defer cancel()
		return s.fetch(fetchCtx)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %w", domain.ErrBackendUnavailable, ctx.Err())
	}
}

// Invalidate drops the cached token so the next call fetches a fresh one.
func (s *TokenSource) Invalidate() {
	s.mu.Lock()
	s.token = ""
	s.expiresAt = time.Time{}
	s.mu.Unlock()
}

func (s *TokenSource) cached() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == "" || s.expiresAt.Sub(s.now()) < TokenMargin {
		return "", false
	}
	return s.token, true
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	Expires     int64  `json:"expires"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (s *TokenSource) fetch(ctx context.Context) (string, error) {
	form := url.Values{"client_id": {s.clientID}}
	if s.clientSecret != "" {
		form.Set("client_secret", s.clientSecret)
		form.Set("grant_type", "client_credentials")
	} else {
		form.Set("grant_type", "implicit")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: token request: %w", domain.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", decodeError(resp)
	}

	var body tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("%w: decode token: %w", domain.ErrBackendUnavailable, err)
	}
	if body.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access token", domain.ErrBackendUnavailable)
	}

	// expires is an absolute unix timestamp; expires_in is the fallback.
	expiresAt := time.Unix(body.Expires, 0)
	if body.Expires == 0 {
		expiresAt = s.now().Add(time.Duration(body.ExpiresIn) * time.Second)
	}

	s.mu.Lock()
	s.token = body.AccessToken
	s.expiresAt = expiresAt
	s.mu.Unlock()

	return body.AccessToken, nil
}

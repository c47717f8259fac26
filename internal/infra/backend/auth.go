package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"golang.org/x/sync/singleflight"
)

type tokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// credentials holds the single active token pair of a client. Concurrent
// renewals collapse into one backend call.
type credentials struct {
	username string
	password string

	mu   sync.Mutex
	pair tokenPair

	group singleflight.Group
}

func newCredentials(username, password string) *credentials {
	return &credentials{username: username, password: password}
}

func (cr *credentials) token() string {
	cr.mu.Lock()
	defer cr.mu.Unlock()
	return cr.pair.AccessToken
}

func (cr *credentials) set(pair tokenPair) {
	cr.mu.Lock()
	defer cr.mu.Unlock()
	cr.pair = pair
}

// current returns the active access token, logging in first if there is none.
func (cr *credentials) current(ctx context.Context, c *Client) (string, error) {
	if token := cr.token(); token != "" {
		return token, nil
	}

	v, err, _ := cr.group.Do("login", func() (any, error) {
		if token := cr.token(); token != "" {
			return token, nil
		}
		return cr.login(ctx, c)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// renew replaces a token the backend rejected. If another caller already
// replaced it, the newer token is returned without a new request.
func (cr *credentials) renew(ctx context.Context, c *Client, stale string) (string, error) {
	v, err, _ := cr.group.Do("renew", func() (any, error) {
		if token := cr.token(); token != "" && token != stale {
			return token, nil
		}

		cr.mu.Lock()
		refresh := cr.pair.RefreshToken
		cr.mu.Unlock()

		if refresh != "" {
			token, err := cr.refresh(ctx, c, refresh)
			if err == nil {
				return token, nil
			}
			c.logger.Warn("Token refresh failed, logging in again", "error", err)
		}
		return cr.login(ctx, c)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (cr *credentials) login(ctx context.Context, c *Client) (string, error) {
	body := map[string]string{"username": cr.username, "password": cr.password}
	pair, err := cr.exchange(ctx, c, "/auth/login", body)
	if err != nil {
		return "", fmt.Errorf("login: %w", err)
	}
	c.logger.Info("Logged in to backend", "username", cr.username)
	return pair.AccessToken, nil
}

func (cr *credentials) refresh(ctx context.Context, c *Client, refreshToken string) (string, error) {
	pair, err := cr.exchange(ctx, c, "/auth/refresh", map[string]string{"refresh_token": refreshToken})
	if err != nil {
		return "", fmt.Errorf("refresh token: %w", err)
	}
	return pair.AccessToken, nil
}

func (cr *credentials) exchange(ctx context.Context, c *Client, path string, reqBody any) (*tokenPair, error) {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("json marshal request: %w", err)
	}

	status, body, err := c.send(ctx, http.MethodPost, path, nil, payload, "")
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, newAPIError(status, body)
	}

	var pair tokenPair
	if err := json.Unmarshal(body, &pair); err != nil {
		return nil, fmt.Errorf("json unmarshal response: %w", err)
	}
	if pair.AccessToken == "" {
		return nil, fmt.Errorf("empty access token in %s response", path)
	}
	if pair.RefreshToken == "" {
		cr.mu.Lock()
		pair.RefreshToken = cr.pair.RefreshToken
		cr.mu.Unlock()
	}

	cr.set(pair)
	return &pair, nil
}

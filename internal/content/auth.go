package content

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"planted-staging/internal/config"
	"planted-staging/internal/logger"
	"planted-staging/pkg/errors"

	"github.com/rs/zerolog"
)

type AuthManager struct {
	cfg       config.ContentAPIConfig
	client    *http.Client
	token     string
	expiresAt time.Time
	mu        sync.RWMutex
	log       zerolog.Logger
}

func NewAuthManager(cfg config.ContentAPIConfig, client *http.Client) *AuthManager {
	return &AuthManager{
		cfg:    cfg,
		client: client,
		log:    logger.Component("content-auth"),
	}
}

type loginResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    struct {
		Tokens struct {
			AccessToken string `json:"accessToken"`
			ExpiresIn   int    `json:"expiresIn"`
		} `json:"tokens"`
		AccessToken string `json:"accessToken"`
	} `json:"data"`
}

func (a *AuthManager) GetToken(ctx context.Context) (string, error) {
	a.mu.RLock()
	if a.token != "" && time.Now().Before(a.expiresAt.Add(-30*time.Second)) {
		token := a.token
		a.mu.RUnlock()
		return token, nil
	}
	a.mu.RUnlock()

	return a.refreshToken(ctx)
}

// Invalidate drops the cached token, e.g. after the API answered 401.
func (a *AuthManager) Invalidate() {
	a.mu.Lock()
	a.token = ""
	a.expiresAt = time.Time{}
	a.mu.Unlock()
}

func (a *AuthManager) refreshToken(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Double check after acquiring write lock
	if a.token != "" && time.Now().Before(a.expiresAt.Add(-30*time.Second)) {
		return a.token, nil
	}

	a.log.Debug().Msg("Refreshing content API token")

	jsonData, err := json.Marshal(map[string]string{
		"email":    a.cfg.Email,
		"password": a.cfg.Password,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal login: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.BaseURL+a.cfg.AuthEndpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("auth request failed: %w", err)
	}
	defer resp.Body.Close()

	var body loginResponse
	_ = json.NewDecoder(resp.Body).Decode(&body)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("%w: HTTP %d %s", errors.ErrAuthenticationFailed, resp.StatusCode, body.Message)
	}

	token := body.Data.Tokens.AccessToken
	if token == "" {
		token = body.Data.AccessToken
	}
	if token == "" {
		return "", fmt.Errorf("%w: login response carried no access token", errors.ErrAuthenticationFailed)
	}

	expires := a.cfg.TokenExpires
	if body.Data.Tokens.ExpiresIn > 0 {
		expires = time.Duration(body.Data.Tokens.ExpiresIn) * time.Second
	}

	a.token = token
	a.expiresAt = time.Now().Add(expires)

	a.log.Debug().Time("expires_at", a.expiresAt).Msg("Token refreshed successfully")

	return a.token, nil
}

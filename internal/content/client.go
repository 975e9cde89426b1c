package content

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"planted-staging/internal/config"
	"planted-staging/internal/logger"
	"planted-staging/pkg/errors"

	"github.com/rs/zerolog"
)

// Client talks to the content-management REST API.
type Client struct {
	cfg         config.ContentAPIConfig
	httpClient  *http.Client
	authManager *AuthManager
	log         zerolog.Logger
}

func NewClient(cfg config.ContentAPIConfig) *Client {
	httpClient := &http.Client{Timeout: cfg.Timeout}
	return &Client{
		cfg:         cfg,
		httpClient:  httpClient,
		authManager: NewAuthManager(cfg, httpClient),
		log:         logger.Component("content-client"),
	}
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c *Client) CreateDevotional(ctx context.Context, in DevotionalInput) (string, error) {
	return c.create(ctx, c.cfg.DevotionalsEndpoint, in)
}

func (c *Client) CreateMemoryVerse(ctx context.Context, in MemoryVerseInput) (string, error) {
	return c.create(ctx, c.cfg.MemoryVersesEndpoint, in)
}

func (c *Client) CreateKeyLesson(ctx context.Context, in KeyLessonInput) (string, error) {
	return c.create(ctx, c.cfg.KeyLessonsEndpoint, in)
}

func (c *Client) CreateQuiz(ctx context.Context, in QuizInput, linkedDevotionalID string) (string, error) {
	in.DevotionalID = linkedDevotionalID
	return c.create(ctx, c.cfg.QuizzesEndpoint, in)
}

// create posts once, and once more with a fresh token if the first attempt
// was rejected as unauthorized.
func (c *Client) create(ctx context.Context, endpoint string, payload interface{}) (string, error) {
	id, err := c.post(ctx, endpoint, payload)
	if err != nil && errors.IsRetryable(err) {
		c.authManager.Invalidate()
		id, err = c.post(ctx, endpoint, payload)
	}
	return id, err
}

func (c *Client) post(ctx context.Context, endpoint string, payload interface{}) (string, error) {
	token, err := c.authManager.GetToken(ctx)
	if err != nil {
		return "", err
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	c.log.Debug().Str("endpoint", endpoint).Msg("Creating content")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrExternalAPIError, err)
	}
	defer resp.Body.Close()

	var body envelope
	_ = json.NewDecoder(resp.Body).Decode(&body)

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return "", errors.NewRetryableError(APIError{StatusCode: resp.StatusCode, Message: body.Message}, "authentication failed")
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return "", APIError{StatusCode: resp.StatusCode, Message: body.Message}
	case body.Status == "error":
		return "", APIError{StatusCode: resp.StatusCode, Message: body.Message}
	}

	id := extractID(body.Data)
	if id == "" {
		return "", fmt.Errorf("%w: response from %s carried no id", errors.ErrExternalAPIError, endpoint)
	}
	return id, nil
}

// extractID finds "id" or "_id" in data, or one level below it
// (data.data, data.quiz, data.memoryVerse, ...).
func extractID(raw json.RawMessage) string {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return ""
	}
	if id := idField(obj); id != "" {
		return id
	}
	for _, key := range []string{"data", "devotional", "memoryVerse", "keyLesson", "quiz"} {
		var inner map[string]json.RawMessage
		if v, ok := obj[key]; ok && json.Unmarshal(v, &inner) == nil {
			if id := idField(inner); id != "" {
				return id
			}
		}
	}
	return ""
}

func idField(obj map[string]json.RawMessage) string {
	for _, key := range []string{"id", "_id"} {
		v, ok := obj[key]
		if !ok {
			continue
		}
		var s string
		if json.Unmarshal(v, &s) == nil && s != "" {
			return s
		}
		var n json.Number
		if json.Unmarshal(v, &n) == nil && n != "" {
			return n.String()
		}
	}
	return ""
}

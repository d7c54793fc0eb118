package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/iamasit07/chat-app/backend/internal/domain"
	"github.com/pkg/errors"
)

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("chat api: %d %s", e.Status, e.Message)
}

func (e *APIError) Is(target error) bool {
	switch target {
	case domain.ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	case domain.ErrNotFound:
		return e.Status == http.StatusNotFound
	case domain.ErrValidation:
		return e.Status == http.StatusBadRequest
	}
	return false
}

type SendRequest struct {
	Text     string `json:"text,omitempty"`
	Image    string `json:"image,omitempty"`
	ClientID string `json:"clientId,omitempty"`
}

type authResponse struct {
	domain.UserResponse
	Token string `json:"token"`
}

// API talks to the REST surface. The session token from login or signup is
// kept in a cookie jar and sent as a bearer token, so plain-http dev
// servers with Secure cookies still work.
type API struct {
	base   *url.URL
	client *http.Client

	mu    sync.RWMutex
	token string
}

func NewAPI(baseURL string) (*API, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, errors.Wrap(err, "invalid base URL")
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &API{
		base:   base,
		client: &http.Client{Jar: jar, Timeout: 30 * time.Second},
	}, nil
}

func (a *API) Token() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.token
}

func (a *API) SetToken(token string) {
	a.mu.Lock()
	a.token = token
	a.mu.Unlock()
}

// SocketURL is the websocket endpoint for this server.
func (a *API) SocketURL() string {
	u := *a.base
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String()
}

func (a *API) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.base.String()+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token := a.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var payload struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&payload)
		return &APIError{Status: resp.StatusCode, Message: payload.Message}
	}
	if out == nil {
		return nil
	}
	return errors.Wrap(json.NewDecoder(resp.Body).Decode(out), "decode response")
}

func (a *API) Signup(ctx context.Context, fullName, email, password string) (*domain.UserResponse, error) {
	var resp authResponse
	body := map[string]string{"fullName": fullName, "email": email, "password": password}
	if err := a.do(ctx, http.MethodPost, "/api/auth/signup", body, &resp); err != nil {
		return nil, err
	}
	a.SetToken(resp.Token)
	return &resp.UserResponse, nil
}

func (a *API) Login(ctx context.Context, email, password string) (*domain.UserResponse, error) {
	var resp authResponse
	body := map[string]string{"email": email, "password": password}
	if err := a.do(ctx, http.MethodPost, "/api/auth/login", body, &resp); err != nil {
		return nil, err
	}
	a.SetToken(resp.Token)
	return &resp.UserResponse, nil
}

func (a *API) Logout(ctx context.Context) error {
	err := a.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
	a.SetToken("")
	return err
}

func (a *API) Contacts(ctx context.Context) ([]domain.UserResponse, error) {
	var users []domain.UserResponse
	if err := a.do(ctx, http.MethodGet, "/api/messages/users", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (a *API) History(ctx context.Context, peer int64) ([]domain.Message, error) {
	var messages []domain.Message
	if err := a.do(ctx, http.MethodGet, fmt.Sprintf("/api/messages/%d", peer), nil, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

func (a *API) Send(ctx context.Context, peer int64, req SendRequest) (*domain.Message, error) {
	var msg domain.Message
	if err := a.do(ctx, http.MethodPost, fmt.Sprintf("/api/messages/send/%d", peer), req, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

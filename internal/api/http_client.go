package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/creatorhub/sessiond/internal/logger"
	"github.com/creatorhub/sessiond/internal/model"
)

const (
	RequestIDHeader     = "X-Request-ID"
	AuthorizationHeader = "Authorization"

	maxResponseBytes = 4 << 20
)

// Default user-facing messages when the backend gives none
const (
	MsgLoginFailed        = "Login failed"
	MsgTwoFactorFailed    = "Two-factor verification failed"
	MsgRegisterFailed     = "Registration failed"
	MsgLogoutFailed       = "Logout failed"
	MsgCurrentUserFailed  = "Could not load your profile"
	MsgRefreshFailed      = "Session refresh failed"
	MsgInvalidAPIResponse = "Unexpected response from server"
)

// HTTPClientConfig holds configuration for the backend client
type HTTPClientConfig struct {
	// BaseURL is the API root, e.g. http://localhost:5000/api
	BaseURL string
	Timeout time.Duration
}

// HTTPClient implements Client over the backend's JSON REST API
type HTTPClient struct {
	httpClient *http.Client
	log        zerolog.Logger
	baseURL    string
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient creates a client. If httpClient is nil a client with
// cfg.Timeout is created.
func NewHTTPClient(cfg HTTPClientConfig, httpClient *http.Client) *HTTPClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &HTTPClient{
		httpClient: httpClient,
		log:        logger.Component("api.http_client"),
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type verifyTwoFactorRequest struct {
	UserID     string `json:"userId"`
	Token      string `json:"token"`
	BackupCode string `json:"backupCode"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type meResponse struct {
	Data struct {
		User model.Document `json:"user"`
	} `json:"data"`
}

// Login handles POST /auth/login
func (c *HTTPClient) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	var out AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", "", loginRequest{Email: email, Password: password}, &out, MsgLoginFailed); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyTwoFactor handles POST /auth/2fa/verify-login
func (c *HTTPClient) VerifyTwoFactor(ctx context.Context, userID, code, backupCode string) (*AuthResponse, error) {
	req := verifyTwoFactorRequest{UserID: userID, Token: code, BackupCode: backupCode}
	var out AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/2fa/verify-login", "", req, &out, MsgTwoFactorFailed); err != nil {
		return nil, err
	}
	return &out, nil
}

// Register handles POST /auth/register. userData is forwarded as is.
func (c *HTTPClient) Register(ctx context.Context, userData map[string]any) (*AuthResponse, error) {
	var out AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/register", "", userData, &out, MsgRegisterFailed); err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout handles POST /auth/logout
func (c *HTTPClient) Logout(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", token, nil, nil, MsgLogoutFailed)
}

// Me handles GET /users/me
func (c *HTTPClient) Me(ctx context.Context, token string) (model.Document, error) {
	var out meResponse
	if err := c.do(ctx, http.MethodGet, "/users/me", token, nil, &out, MsgCurrentUserFailed); err != nil {
		return nil, err
	}
	if out.Data.User == nil {
		return nil, &Error{StatusCode: http.StatusBadGateway, Message: MsgInvalidAPIResponse}
	}
	return out.Data.User, nil
}

// Refresh handles POST /auth/refresh-token
func (c *HTTPClient) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	var out TokenPair
	if err := c.do(ctx, http.MethodPost, "/auth/refresh-token", "", refreshRequest{RefreshToken: refreshToken}, &out, MsgRefreshFailed); err != nil {
		return nil, err
	}
	if out.Token == "" {
		return nil, &Error{StatusCode: http.StatusBadGateway, Message: MsgInvalidAPIResponse}
	}
	return &out, nil
}

// do sends a JSON request and decodes a JSON response into out (if non-nil).
// Non-2xx answers become *Error with the backend's message or fallback.
func (c *HTTPClient) do(ctx context.Context, method, path, token string, in, out any, fallback string) (err error) {
	requestID := uuid.NewString()
	start := time.Now()
	status := 0

	defer func() {
		ev := c.log.Debug()
		if err != nil {
			ev = c.log.Warn().Err(err)
		}
		ev.Str("method", method).
			Str("path", path).
			Str("request_id", requestID).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Msg("backend call")
	}()

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(RequestIDHeader, requestID)
	if token != "" {
		req.Header.Set(AuthorizationHeader, "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	status = resp.StatusCode

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Error{StatusCode: resp.StatusCode, Message: messageFrom(raw, fallback)}
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &Error{StatusCode: http.StatusBadGateway, Message: MsgInvalidAPIResponse}
	}
	return nil
}

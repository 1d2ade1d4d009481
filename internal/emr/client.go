package emr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/clinic-scheduler/internal/observability/metrics"
	"github.com/wolfman30/clinic-scheduler/pkg/logging"
)

const (
	loginPath   = "/connect-auth/v1/account/login"
	refreshPath = "/connect-auth/v1/account/refresh"

	defaultTokenTTL = 30 * time.Minute
	refreshBuffer   = 5 * time.Minute
)

// Client is an authenticated executor for the upstream scheduling API.
type Client struct {
	baseURL       string
	clientID      string
	clientSecret  string
	apiKey        string
	staticToken   string
	customHeaders map[string]string
	httpClient    *http.Client
	logger        *logging.Logger
	metrics       *metrics.SchedulingMetrics
	tracer        trace.Tracer

	mu           sync.Mutex
	accessToken  string
	refreshToken string
	tokenExpiry  time.Time
}

// Config holds configuration for the scheduling API client.
type Config struct {
	BaseURL      string // e.g., "https://api.eka.care"
	ClientID     string
	ClientSecret string
	APIKey       string
	// AccessToken, when set, is used as-is and disables login/refresh.
	AccessToken   string
	CustomHeaders map[string]string
	Timeout       time.Duration
	HTTPClient    *http.Client
	Logger        *logging.Logger
	Metrics       *metrics.SchedulingMetrics
}

// New creates a new scheduling API client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("emr: BaseURL is required")
	}
	if cfg.AccessToken == "" && (cfg.ClientID == "" || cfg.ClientSecret == "") {
		return nil, fmt.Errorf("emr: AccessToken or ClientID/ClientSecret is required")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	return &Client{
		baseURL:       strings.TrimSuffix(cfg.BaseURL, "/"),
		clientID:      cfg.ClientID,
		clientSecret:  cfg.ClientSecret,
		apiKey:        cfg.APIKey,
		staticToken:   cfg.AccessToken,
		customHeaders: cfg.CustomHeaders,
		httpClient:    httpClient,
		logger:        logger,
		metrics:       cfg.Metrics,
		tracer:        otel.Tracer("clinic.internal.emr"),
	}, nil
}

// Do executes an authenticated request. A non-nil body is sent as JSON and a
// successful response is decoded into out when out is non-nil. Responses
// with status 204 or an empty body leave out untouched.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	ctx, span := c.tracer.Start(ctx, "emr."+strings.ToLower(method),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("emr.path", path),
		),
	)
	defer span.End()

	token, err := c.token(ctx)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("emr: authentication failed: %w", err)
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("emr: failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("emr: failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-Id", uuid.NewString())
	if c.clientID != "" {
		req.Header.Set("client-id", c.clientID)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	for k, v := range c.customHeaders {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveUpstream(method, "error", time.Since(start).Seconds())
		span.RecordError(err)
		return fmt.Errorf("emr: request failed: %w", err)
	}
	defer resp.Body.Close()
	c.metrics.ObserveUpstream(method, strconv.Itoa(resp.StatusCode), time.Since(start).Seconds())
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("emr: failed to read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		apiErr := parseAPIError(resp.StatusCode, respBody)
		c.logger.Warn("upstream API error",
			"method", method,
			"path", path,
			"status", resp.StatusCode,
			"code", apiErr.Code,
		)
		return apiErr
	}
	if resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(respBody)) == 0 || out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("emr: failed to decode response: %w", err)
	}
	return nil
}

// token returns a bearer token, logging in or refreshing as needed.
func (c *Client) token(ctx context.Context) (string, error) {
	if c.staticToken != "" {
		return c.staticToken, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Check if token is still valid (with 5-minute buffer)
	if c.accessToken != "" && time.Now().Add(refreshBuffer).Before(c.tokenExpiry) {
		return c.accessToken, nil
	}
	if c.refreshToken != "" {
		err := c.authenticate(ctx, refreshPath, map[string]string{"refresh_token": c.refreshToken})
		if err == nil {
			return c.accessToken, nil
		}
		c.logger.Warn("token refresh failed, logging in again", "error", err)
	}
	login := map[string]string{
		"client_id":     c.clientID,
		"client_secret": c.clientSecret,
	}
	if c.apiKey != "" {
		login["api_key"] = c.apiKey
	}
	if err := c.authenticate(ctx, loginPath, login); err != nil {
		return "", err
	}
	return c.accessToken, nil
}

// authenticate posts credentials to path and stores the issued tokens.
// Callers hold c.mu.
func (c *Client) authenticate(ctx context.Context, path string, payload map[string]string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal auth request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("auth request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return parseAPIError(resp.StatusCode, respBody)
	}

	var tokenResp struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return fmt.Errorf("failed to decode auth response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return fmt.Errorf("auth response missing access_token")
	}

	ttl := time.Duration(tokenResp.ExpiresIn) * time.Second
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	c.accessToken = tokenResp.AccessToken
	c.refreshToken = tokenResp.RefreshToken
	c.tokenExpiry = time.Now().Add(ttl)
	return nil
}

package fleet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ruteri/snippet-provisioning-backend/interfaces"
	"github.com/ruteri/snippet-provisioning-backend/metrics"
)

const (
	DefaultURL      = "http://provisioner:9000"
	DefaultUsername = "saltuser"
	DefaultEAuth    = "pam"
	DefaultTimeout  = 30 * time.Second

	// AuthTokenHeader carries the session token on every authenticated call.
	AuthTokenHeader = "X-Auth-Token"

	opLogin  = "login"
	opList   = "list_nodes"
	opSubmit = "submit"

	maxResponseSize = 32 << 20
)

// Config describes how to reach and authenticate to the control plane.
type Config struct {
	// URL is the base endpoint. A srv+http:// or srv+https:// scheme resolves
	// the host part as a DNS SRV name at login time.
	URL      string
	Username string
	Password string
	EAuth    string

	// Timeout bounds every individual HTTP call.
	Timeout time.Duration

	// Retries is how many extra attempts login and node listing get after a
	// connection failure. Zero means a single attempt.
	Retries       uint64
	RetryInterval time.Duration

	// Resolver is used for srv+ URLs. Defaults to a DNSResolver.
	Resolver SRVResolver
}

// Client talks to a salt-api compatible control plane.
type Client struct {
	cfg      Config
	endpoint *url.URL
	srv      bool
	session  *AuthSession
	http     *http.Client
	log      *slog.Logger
}

// NewClient validates cfg and creates an unauthenticated client.
func NewClient(cfg Config, log *slog.Logger) (*Client, error) {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Username == "" {
		cfg.Username = DefaultUsername
	}
	if cfg.EAuth == "" {
		cfg.EAuth = DefaultEAuth
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 500 * time.Millisecond
	}

	endpoint, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid control plane URL: %w", err)
	}

	c := &Client{
		cfg:      cfg,
		endpoint: endpoint,
		session:  &AuthSession{},
		http:     &http.Client{Timeout: cfg.Timeout},
		log:      log,
	}

	switch endpoint.Scheme {
	case "http", "https":
	case "srv+http", "srv+https":
		c.srv = true
		if c.cfg.Resolver == nil {
			c.cfg.Resolver = NewDNSResolver("", cfg.Timeout)
		}
	default:
		return nil, fmt.Errorf("invalid control plane URL: unsupported scheme %q", endpoint.Scheme)
	}
	if endpoint.Host == "" {
		return nil, fmt.Errorf("invalid control plane URL: missing host")
	}

	return c, nil
}

// Session returns the client's authentication session.
func (c *Client) Session() *AuthSession {
	return c.session
}

// Authenticate logs in unless the session already holds a token.
func (c *Client) Authenticate(ctx context.Context) error {
	if c.session.Authenticated() {
		return nil
	}

	return c.retry(ctx, func() error {
		if c.session.Authenticated() {
			return nil
		}
		return c.login(ctx)
	})
}

func (c *Client) login(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.record(opLogin, err, start) }()

	baseURL, err := c.resolveBaseURL(ctx)
	if err != nil {
		return &RemoteCallError{Op: opLogin, Kind: KindConnection, Err: err}
	}

	creds, err := json.Marshal(map[string]string{
		"username": c.cfg.Username,
		"password": c.cfg.Password,
		"eauth":    c.cfg.EAuth,
	})
	if err != nil {
		return backoff.Permanent(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/login", bytes.NewReader(creds))
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	status, body, err := c.roundTrip(req, opLogin)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		rce := &RemoteCallError{Op: opLogin, Kind: KindStatus, StatusCode: status, Body: body}
		if status < http.StatusInternalServerError {
			return backoff.Permanent(rce)
		}
		return rce
	}

	var parsed struct {
		Return []struct {
			Token string `json:"token"`
		} `json:"return"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return backoff.Permanent(&RemoteCallError{Op: opLogin, Kind: KindMalformed, Body: body, Err: err})
	}
	if len(parsed.Return) == 0 || parsed.Return[0].Token == "" {
		return backoff.Permanent(&RemoteCallError{Op: opLogin, Kind: KindMalformed, Body: body, Err: errors.New("no token in login response")})
	}

	c.session.set(parsed.Return[0].Token, baseURL)
	c.log.Info("Authenticated to control plane", slog.String("endpoint", baseURL))
	return nil
}

// ListNodes returns the execution node ids the control plane knows, in
// response order. An empty result with a nil error means there are none.
func (c *Client) ListNodes(ctx context.Context) ([]string, error) {
	var nodes []string
	err := c.retry(ctx, func() error {
		resp, err := c.call(ctx, opList, http.MethodGet, "/minions", nil)
		if err != nil {
			if errors.Is(err, interfaces.ErrAuthFailure) || !transient(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(&RemoteCallError{Op: opList, Kind: KindStatus, StatusCode: resp.StatusCode, Body: resp.Body})
		}

		nodes, err = parseNodeList(resp.Body)
		if err != nil {
			return backoff.Permanent(&RemoteCallError{Op: opList, Kind: KindMalformed, Body: resp.Body, Err: err})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return nodes, nil
}

// Submit posts an execution payload. Any HTTP answer is returned so the caller
// can inspect it; a non-200 answer additionally yields a RemoteCallError of
// kind KindStatus. Submissions are never retried after the request was sent,
// except once after the control plane rejected an expired token.
func (c *Client) Submit(ctx context.Context, payload any) (*interfaces.SubmitResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrInvalidPayload, err)
	}

	resp, err := c.call(ctx, opSubmit, http.MethodPost, "/", body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return resp, &RemoteCallError{Op: opSubmit, Kind: KindStatus, StatusCode: resp.StatusCode, Body: resp.Body}
	}
	return resp, nil
}

// call performs an authenticated request. A 401 drops the session and the
// request is repeated once with a fresh token.
func (c *Client) call(ctx context.Context, op, method, path string, body []byte) (*interfaces.SubmitResponse, error) {
	for attempt := 0; ; attempt++ {
		if err := c.Authenticate(ctx); err != nil {
			return nil, err
		}
		token, baseURL, _ := c.session.Token()

		resp, err := c.do(ctx, op, method, baseURL+path, token, body)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode == http.StatusUnauthorized {
			c.log.Warn("Control plane rejected session token", slog.String("op", op))
			c.session.resetIf(token)
			if attempt == 0 {
				continue
			}
			return nil, &RemoteCallError{Op: op, Kind: KindStatus, StatusCode: resp.StatusCode, Body: resp.Body}
		}
		return resp, nil
	}
}

func (c *Client) do(ctx context.Context, op, method, reqURL, token string, body []byte) (resp *interfaces.SubmitResponse, err error) {
	start := time.Now()
	defer func() {
		if err == nil && resp.StatusCode != http.StatusOK {
			c.record(op, &RemoteCallError{Kind: KindStatus}, start)
			return
		}
		c.record(op, err, start)
	}()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set(AuthTokenHeader, token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	status, respBody, err := c.roundTrip(req, op)
	if err != nil {
		return nil, err
	}
	return &interfaces.SubmitResponse{StatusCode: status, Body: respBody}, nil
}

func (c *Client) roundTrip(req *http.Request, op string) (int, []byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, transportError(op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return 0, nil, transportError(op, err)
	}
	return resp.StatusCode, body, nil
}

func (c *Client) resolveBaseURL(ctx context.Context) (string, error) {
	if !c.srv {
		return strings.TrimSuffix(c.endpoint.String(), "/"), nil
	}

	targets, err := c.cfg.Resolver.LookupSRV(ctx, c.endpoint.Hostname())
	if err != nil {
		return "", err
	}
	if len(targets) == 0 {
		return "", fmt.Errorf("no SRV records for %s", c.endpoint.Hostname())
	}

	resolved := *c.endpoint
	resolved.Scheme = strings.TrimPrefix(c.endpoint.Scheme, "srv+")
	resolved.Host = targets[0].Address()
	return strings.TrimSuffix(resolved.String(), "/"), nil
}

// retry runs fn with the configured bounded backoff. Only errors not marked
// permanent are retried.
func (c *Client) retry(ctx context.Context, fn func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.RetryInterval
	b.MaxElapsedTime = 0

	return backoff.RetryNotify(fn,
		backoff.WithContext(backoff.WithMaxRetries(b, c.cfg.Retries), ctx),
		func(err error, next time.Duration) {
			c.log.Warn("Control plane call failed, retrying", "err", err, slog.Duration("in", next))
		})
}

// transient reports whether err is a connection-level failure worth retrying.
func transient(err error) bool {
	switch KindOf(err) {
	case KindConnection, KindTimeout:
		return true
	}
	return false
}

func (c *Client) record(op string, err error, start time.Time) {
	result := "ok"
	if err != nil {
		result = string(KindOf(err))
		if result == "" {
			result = "error"
		}
	}
	metrics.RecordFleetCall(op, result, time.Since(start))
}

// parseNodeList extracts node ids from a /minions answer, keeping the order
// in which the control plane listed them.
func parseNodeList(body []byte) ([]string, error) {
	var parsed struct {
		Return *[]json.RawMessage `json:"return"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, err
	}
	if parsed.Return == nil {
		return nil, errors.New("missing return key")
	}

	nodes := []string{}
	seen := make(map[string]struct{})
	for _, entry := range *parsed.Return {
		keys, err := objectKeys(entry)
		if err != nil {
			return nil, err
		}
		for _, key := range keys {
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			nodes = append(nodes, key)
		}
	}
	return nodes, nil
}

// objectKeys returns the keys of a JSON object in document order.
func objectKeys(raw json.RawMessage) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected an object, got %s", string(raw))
	}

	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, _ := tok.(string)
		keys = append(keys, key)

		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil, err
		}
	}
	return keys, nil
}

package client

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	hclient "github.com/cloudwego/hertz/pkg/app/client"
	"github.com/cloudwego/hertz/pkg/protocol"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/pkg/errors"

	"github.com/Zereker/relations/internal/domain"
	"github.com/Zereker/relations/pkg/log"
)

const defaultTimeout = 30 * time.Second

// Doer sends one HTTP exchange. *hclient.Client satisfies it.
type Doer interface {
	Do(ctx context.Context, req *protocol.Request, resp *protocol.Response) error
}

// Config holds the connection settings of a Client.
type Config struct {
	BaseURL     string
	AccessToken string
	Version     domain.Version
	Timeout     time.Duration
}

// Validate checks client configuration.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("base url is required")
	}
	if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		return errors.Errorf("base url must start with http:// or https://, got %q", c.BaseURL)
	}
	if c.AccessToken == "" {
		return errors.New("access token is required")
	}
	if c.Version == "" {
		c.Version = domain.VersionV1
	}
	if _, err := domain.ParseVersion(string(c.Version)); err != nil {
		return err
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	return nil
}

// Option customizes a Client.
type Option func(*Client)

// WithDoer replaces the hertz HTTP client, mainly for tests.
func WithDoer(d Doer) Option {
	return func(c *Client) {
		c.doer = d
	}
}

// Client fetches relating events over HTTP. It keeps no state between calls
// and is safe for concurrent use.
type Client struct {
	logger      *slog.Logger
	doer        Doer
	baseURL     string
	accessToken string
	version     domain.Version
}

// New creates a Client.
func New(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.WithMessage(err, "invalid client config")
	}

	c := &Client{
		logger:      log.Logger("client"),
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		accessToken: cfg.AccessToken,
		version:     cfg.Version,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.doer == nil {
		hc, err := hclient.NewClient(
			hclient.WithDialTimeout(cfg.Timeout),
			hclient.WithClientReadTimeout(cfg.Timeout),
			hclient.WithDisablePathNormalizing(true),
		)
		if err != nil {
			return nil, errors.Wrap(err, "create http client")
		}
		c.doer = hc
	}
	return c, nil
}

// errorBody is the standard error object servers return.
type errorBody struct {
	ErrCode      string `json:"errcode"`
	Error        string `json:"error"`
	RetryAfterMs int64  `json:"retry_after_ms"`
}

// GetRelatingEvents performs one request. Failures are *domain.RemoteError,
// *domain.TransportError, or domain.ErrMalformedIdentifier.
func (c *Client) GetRelatingEvents(ctx context.Context, r domain.RelationsRequest) (*domain.RelationsResponse, error) {
	uri, err := EncodeURI(c.version, r)
	if err != nil {
		return nil, err
	}

	req := protocol.AcquireRequest()
	resp := protocol.AcquireResponse()
	defer protocol.ReleaseRequest(req)
	defer protocol.ReleaseResponse(resp)

	req.SetMethod(consts.MethodGet)
	req.SetRequestURI(c.baseURL + uri)
	req.Header.Set(consts.HeaderAuthorization, "Bearer "+c.accessToken)
	req.Header.Set(consts.HeaderAccept, consts.MIMEApplicationJSON)

	start := time.Now()
	if err := c.doer.Do(ctx, req, resp); err != nil {
		c.logger.Warn("request failed", "room_id", r.RoomID, "event_id", r.EventID, "error", err)
		return nil, &domain.TransportError{Err: err}
	}

	status := resp.StatusCode()
	c.logger.Debug("relations fetched",
		"room_id", r.RoomID,
		"event_id", r.EventID,
		"rel_type", r.RelType,
		"event_type", r.EventType,
		"has_from", r.From != nil,
		"status", status,
		"duration", time.Since(start).Milliseconds(),
	)

	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		return nil, remoteError(status, resp.Body())
	}

	var out domain.RelationsResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, &domain.TransportError{Err: errors.Wrap(err, "decode relations response")}
	}
	if out.Chunk == nil {
		out.Chunk = []json.RawMessage{}
	}
	return &out, nil
}

func remoteError(status int, body []byte) *domain.RemoteError {
	e := &domain.RemoteError{StatusCode: status}

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil || eb.ErrCode == "" {
		e.Code = domain.CodeUnknown
		e.Message = http.StatusText(status)
		return e
	}

	e.Code = eb.ErrCode
	e.Message = eb.Error
	if eb.RetryAfterMs > 0 {
		e.RetryAfter = time.Duration(eb.RetryAfterMs) * time.Millisecond
	}
	return e
}

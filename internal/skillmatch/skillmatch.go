package skillmatch

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	apiURL            = "http://localhost:8000/api"
	userAgent         = "spigell/skillmatch"
	defaultAuthScheme = "Bearer"
	defaultTimeout    = 10 * time.Second
)

// TokenSource supplies the credential attached to every outgoing request.
type TokenSource interface {
	Token() string
}

type Config struct {
	APIURL     string
	AuthScheme string
	UserAgent  string
	Timeout    time.Duration
	// HTTPClient replaces the underlying transport. Used by tests.
	HTTPClient *http.Client
}

type Client struct {
	http   *resty.Client
	tokens TokenSource
	logger *zap.Logger

	authScheme string
}

func New(cfg Config, tokens TokenSource, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	base := strings.TrimRight(strings.TrimSpace(cfg.APIURL), "/")
	if base == "" {
		base = apiURL
	}

	scheme := strings.TrimSpace(cfg.AuthScheme)
	if scheme == "" {
		scheme = defaultAuthScheme
	}

	agent := strings.TrimSpace(cfg.UserAgent)
	if agent == "" {
		agent = userAgent
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	var rc *resty.Client
	if cfg.HTTPClient != nil {
		rc = resty.NewWithClient(cfg.HTTPClient)
	} else {
		rc = resty.New()
	}

	c := &Client{
		tokens:     tokens,
		logger:     logger,
		authScheme: scheme,
	}

	c.http = rc.
		SetBaseURL(base).
		SetTimeout(timeout).
		SetHeader("Content-Type", contentType).
		SetHeader("Accept", contentType).
		SetHeader("User-Agent", agent).
		SetLogger(logger.Sugar()).
		OnBeforeRequest(c.setHeaders).
		OnAfterResponse(c.logResponse)

	return c
}

// BaseURL returns the API root every path is resolved against.
func (c *Client) BaseURL() string {
	return c.http.BaseURL
}

package transport

import (
	"context"
	"net/http"
	"time"

	"blog-session/internal/pkg/session"

	"go.uber.org/zap"
)

// Config configures the dispatcher's transport.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	LoginPath  string
	HTTPClient *http.Client
}

// Client issues requests through one profile's pipeline.
type Client struct {
	mode    Mode
	handler Handler
}

func (c *Client) Mode() Mode {
	return c.mode
}

// Do sends req through the pipeline.
func (c *Client) Do(ctx context.Context, req *Request, opts ...Option) (*Response, error) {
	if req.Header == nil {
		req.Header = make(http.Header)
	}
	for _, opt := range opts {
		opt(req)
	}
	return c.handler(ctx, req)
}

// JSON sends in as the body (if non-nil) and decodes the response into out
// (if non-nil).
func (c *Client) JSON(ctx context.Context, method, path string, in, out any, opts ...Option) error {
	req, err := NewRequest(method, path, in)
	if err != nil {
		return err
	}
	resp, err := c.Do(ctx, req, opts...)
	if err != nil {
		return err
	}
	return resp.Decode(out)
}

// Dispatcher holds the three transport profiles sharing one store, resolver
// and error policy.
type Dispatcher struct {
	anonymous *Client
	mandatory *Client
	optional  *Client
}

// New builds the profiles over an HTTP transport.
func New(cfg Config, store *session.Store, resolver TokenResolver, redirector Redirector, logger *zap.Logger) (*Dispatcher, error) {
	t, err := NewHTTPTransport(cfg.BaseURL, cfg.Timeout, cfg.HTTPClient)
	if err != nil {
		return nil, err
	}
	return NewWithHandler(t.Do, cfg.LoginPath, store, resolver, redirector, logger), nil
}

// NewWithHandler builds the profiles over an arbitrary terminal handler.
func NewWithHandler(terminal Handler, loginPath string, store *session.Store, resolver TokenResolver, redirector Redirector, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if redirector == nil {
		redirector = LogRedirector{Logger: logger}
	}
	build := func(mode Mode) *Client {
		l := logger.With(zap.String("profile", mode.String()))
		return &Client{
			mode: mode,
			handler: Chain(terminal,
				ClassifyError(store, redirector, loginPath, l),
				AttachCredential(mode, resolver),
				ReplayOnStale(store, resolver, l),
			),
		}
	}
	return &Dispatcher{
		anonymous: build(ModeAnonymous),
		mandatory: build(ModeMandatory),
		optional:  build(ModeOptional),
	}
}

// Anonymous never attaches a stored token.
func (d *Dispatcher) Anonymous() *Client { return d.anonymous }

// Mandatory requires a token and aborts locally without one.
func (d *Dispatcher) Mandatory() *Client { return d.mandatory }

// Optional attaches a token when one can be resolved.
func (d *Dispatcher) Optional() *Client { return d.optional }

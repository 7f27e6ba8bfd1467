package transport

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// BypassHeader suppresses the redirect-on-401 policy for a single request.
const BypassHeader = "X-Bypass-401-Interceptor"

// Request is a buffered request; the body is kept so it can be replayed.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte

	// credentialed marks a bearer that came from the session store, either
	// attached by AttachCredential or passed with WithSessionBearer.
	credentialed bool
}

// NewRequest builds a request with an optional JSON body.
func NewRequest(method, path string, body any) (*Request, error) {
	req := &Request{
		Method: method,
		Path:   path,
		Header: make(http.Header),
	}
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		req.Body = data
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// Clone deep-copies the request.
func (r *Request) Clone() *Request {
	c := *r
	c.Header = r.Header.Clone()
	if c.Header == nil {
		c.Header = make(http.Header)
	}
	if r.Query != nil {
		c.Query = url.Values{}
		for k, v := range r.Query {
			c.Query[k] = append([]string(nil), v...)
		}
	}
	if r.Body != nil {
		c.Body = append([]byte(nil), r.Body...)
	}
	return &c
}

// Bearer returns the token in the Authorization header, or "".
func (r *Request) Bearer() string {
	if r.Header == nil {
		return ""
	}
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return parts[1]
	}
	return ""
}

func (r *Request) setBearer(token string) {
	if r.Header == nil {
		r.Header = make(http.Header)
	}
	r.Header.Set("Authorization", "Bearer "+token)
}

// Bypasses401 reports whether the request opted out of the 401 redirect.
func (r *Request) Bypasses401() bool {
	return r.Header != nil && strings.EqualFold(r.Header.Get(BypassHeader), "true")
}

func (r *Request) op() string {
	return strings.ToLower(r.Method) + " " + r.Path
}

// Option adjusts a request before dispatch.
type Option func(*Request)

// WithBearer sends an explicit token, bypassing credential attachment.
func WithBearer(token string) Option {
	return func(r *Request) { r.setBearer(token) }
}

// WithSessionBearer sends a token the caller resolved from the session store.
// A stale-token answer refreshes and replays it like an attached credential,
// and an empty token is rejected with a local 401 before transmission.
func WithSessionBearer(token string) Option {
	return func(r *Request) {
		r.credentialed = true
		if token != "" {
			r.setBearer(token)
		}
	}
}

// WithBypass401 marks a 401 as an expected, locally handled outcome.
func WithBypass401() Option {
	return func(r *Request) {
		if r.Header == nil {
			r.Header = make(http.Header)
		}
		r.Header.Set(BypassHeader, "true")
	}
}

func WithQuery(q url.Values) Option {
	return func(r *Request) { r.Query = q }
}

func WithHeader(key, value string) Option {
	return func(r *Request) {
		if r.Header == nil {
			r.Header = make(http.Header)
		}
		r.Header.Set(key, value)
	}
}

// Response is a fully read response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Decode unmarshals the JSON body into v.
func (r *Response) Decode(v any) error {
	if r == nil || len(r.Body) == 0 || v == nil {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response body: %w", err)
	}
	return nil
}

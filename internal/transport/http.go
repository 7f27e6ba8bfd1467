package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	xerrors "blog-session/internal/pkg/errors"

	"github.com/google/uuid"
)

const maxResponseBytes = 2 * 1024 * 1024

// HTTPTransport is the terminal handler: it puts a Request on the wire and
// normalizes every failure into *xerrors.APIError.
type HTTPTransport struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
}

func NewHTTPTransport(baseURL string, timeout time.Duration, httpClient *http.Client) (*HTTPTransport, error) {
	trimmed := strings.TrimSpace(baseURL)
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse api base url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid api base url: %q", baseURL)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &HTTPTransport{
		baseURL:    strings.TrimRight(trimmed, "/"),
		httpClient: httpClient,
		userAgent:  "blog-session/1",
	}, nil
}

// Do is a Handler.
func (t *HTTPTransport) Do(ctx context.Context, req *Request) (*Response, error) {
	fullURL := t.baseURL + ensureLeadingSlash(req.Path)
	if len(req.Query) > 0 {
		fullURL += "?" + req.Query.Encode()
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return nil, &xerrors.APIError{Op: req.op(), Local: true, Err: err}
	}
	for k, v := range req.Header {
		httpReq.Header[k] = append([]string(nil), v...)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", t.userAgent)
	if httpReq.Header.Get("X-Request-ID") == "" {
		httpReq.Header.Set("X-Request-ID", uuid.NewString())
	}

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return nil, &xerrors.APIError{Op: req.op(), Network: true, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &xerrors.APIError{Op: req.op(), Status: resp.StatusCode, Network: true, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(data))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &xerrors.APIError{
			Op:     req.op(),
			Status: resp.StatusCode,
			Data:   data,
			Err:    errors.New(msg),
		}
	}

	return &Response{Status: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

func ensureLeadingSlash(path string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "/"
	}
	if strings.HasPrefix(trimmed, "/") {
		return trimmed
	}
	return "/" + trimmed
}

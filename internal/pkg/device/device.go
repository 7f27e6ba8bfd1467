// Package device produces the per-process device fingerprint sent with
// login, refresh, logout and OAuth linking requests.
package device

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"os/user"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ProbeFunc computes a raw fingerprint of the runtime environment.
type ProbeFunc func(ctx context.Context) (string, error)

// Provider memoizes the device id for the lifetime of the process. Callers
// racing on the first computation share one probe.
type Provider struct {
	probe  ProbeFunc
	logger *zap.Logger

	group singleflight.Group
	mu    sync.RWMutex
	id    string
}

type Option func(*Provider)

// WithProbe replaces the default environment probe.
func WithProbe(p ProbeFunc) Option {
	return func(pr *Provider) { pr.probe = p }
}

func WithLogger(l *zap.Logger) Option {
	return func(pr *Provider) { pr.logger = l }
}

func NewProvider(opts ...Option) *Provider {
	p := &Provider{probe: ProbeEnvironment, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// DeviceID returns the memoized id, computing it on first use. Probe errors
// are returned as-is and not cached.
func (p *Provider) DeviceID(ctx context.Context) (string, error) {
	p.mu.RLock()
	id := p.id
	p.mu.RUnlock()
	if id != "" {
		return id, nil
	}

	ch := p.group.DoChan("device-id", func() (interface{}, error) {
		p.mu.RLock()
		cached := p.id
		p.mu.RUnlock()
		if cached != "" {
			return cached, nil
		}

		// Other callers share this flight; it must outlive the first caller's cancellation.
		id, err := p.probe(context.WithoutCancel(ctx))
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(id) == "" {
			return "", errors.New("device probe returned an empty fingerprint")
		}

		p.mu.Lock()
		p.id = id
		p.mu.Unlock()
		p.logger.Debug("device fingerprint computed", zap.String("device_id", id))
		return id, nil
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", fmt.Errorf("device probe: %w", res.Err)
		}
		return res.Val.(string), nil
	}
}

// ProbeEnvironment hashes stable characteristics of the host and user.
func ProbeEnvironment(_ context.Context) (string, error) {
	parts := []string{runtime.GOOS, runtime.GOARCH, strconv.Itoa(runtime.NumCPU())}

	host, err := os.Hostname()
	if err != nil {
		return "", fmt.Errorf("read hostname: %w", err)
	}
	parts = append(parts, host)

	if u, err := user.Current(); err == nil {
		parts = append(parts, u.Username, u.HomeDir)
	}
	for _, path := range []string{"/etc/machine-id", "/var/lib/dbus/machine-id"} {
		if b, err := os.ReadFile(path); err == nil {
			parts = append(parts, strings.TrimSpace(string(b)))
			break
		}
	}

	sum := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(sum[:16]), nil
}

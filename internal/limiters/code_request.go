package limiters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goReset/store"
)

var (
	ErrCodeRequestRateLimited = errors.New("code request rate limited")
	ErrLimiterUnavailable     = errors.New("rate limiter store unavailable")
)

// CodeRequestConfig sets the window policy.
type CodeRequestConfig struct {
	Window      time.Duration
	MaxRequests int
	// EnableIdentifierThrottle adds a second window keyed by the target email
	// on top of the per-client window.
	EnableIdentifierThrottle bool
	KeyPrefix                string
}

// CodeRequestLimiter admits at most MaxRequests code requests per client per
// Window.
type CodeRequestLimiter struct {
	store  store.Store
	config CodeRequestConfig
}

func NewCodeRequestLimiter(s store.Store, cfg CodeRequestConfig) *CodeRequestLimiter {
	return &CodeRequestLimiter{
		store:  s,
		config: cfg,
	}
}

// Check counts one request from client (usually the caller's IP) targeting
// email. When client is empty the email stands in as the client identity.
func (l *CodeRequestLimiter) Check(ctx context.Context, client, email string) error {
	if l == nil {
		return nil
	}
	if client == "" {
		client = "email:" + email
	}
	if err := l.enforceFixedWindow(ctx, l.clientKey(client)); err != nil {
		return err
	}
	if l.config.EnableIdentifierThrottle {
		if err := l.enforceFixedWindow(ctx, l.identifierKey(email)); err != nil {
			return err
		}
	}
	return nil
}

// RetryAfter reports how long until the client's current window closes. It
// returns zero when there is no open window.
func (l *CodeRequestLimiter) RetryAfter(ctx context.Context, client, email string) time.Duration {
	if l == nil {
		return 0
	}
	if client == "" {
		client = "email:" + email
	}
	ttl, err := l.store.TTL(ctx, l.clientKey(client))
	if err != nil {
		return 0
	}
	return ttl
}

func (l *CodeRequestLimiter) enforceFixedWindow(ctx context.Context, key string) error {
	count, err := l.store.Incr(ctx, key, l.config.Window)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLimiterUnavailable, err)
	}

	if count > int64(l.config.MaxRequests) {
		return ErrCodeRequestRateLimited
	}

	return nil
}

func (l *CodeRequestLimiter) clientKey(client string) string {
	return l.config.KeyPrefix + "rl:code:" + client
}

func (l *CodeRequestLimiter) identifierKey(email string) string {
	return l.config.KeyPrefix + "rl:code:id:" + email
}

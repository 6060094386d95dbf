package goReset

import (
	"errors"
	"strings"
	"time"
)

// Config is the complete engine configuration. Build it from DefaultConfig
// and override fields; Builder.Build validates it.
type Config struct {
	Code      CodeConfig
	Token     TokenConfig
	RateLimit RateLimitConfig
	Sweep     SweepConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
	Store     StoreConfig
}

/*
====================================
CODE CONFIG
====================================
*/

// CodeConfig shapes verification codes.
type CodeConfig struct {
	Digits int
	TTL    time.Duration
	// ExpiredGrace keeps a lapsed code readable this much longer so a late
	// submission is reported as ErrCodeExpired instead of ErrNoPendingCode.
	// Zero drops the code together with its TTL.
	ExpiredGrace time.Duration
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig shapes reset tokens and their signing keys.
type TokenConfig struct {
	TTL           time.Duration
	SigningMethod string // "hs256" (default) or "ed25519"
	PrivateKey    []byte
	PublicKey     []byte
	KeyID         string
	Issuer        string
	Audience      string
	Leeway        time.Duration
}

/*
====================================
RATE LIMIT / SWEEP / STORE
====================================
*/

// RateLimitConfig is the code-issuance window policy.
type RateLimitConfig struct {
	Enabled                  bool
	Window                   time.Duration
	MaxRequests              int
	EnableIdentifierThrottle bool
}

// SweepConfig controls the background purge of stores without native expiry.
type SweepConfig struct {
	Enabled  bool
	Interval time.Duration
}

// StoreConfig holds key layout options shared by every component.
type StoreConfig struct {
	KeyPrefix string
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig toggles in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the stock policy: 6-digit codes valid 5 minutes,
// 15-minute HS256 reset tokens, 20 code requests per client per 15 minutes
// and a 5-minute sweep. Token.PrivateKey must still be supplied.
func DefaultConfig() Config {
	return Config{
		Code: CodeConfig{
			Digits:       6,
			TTL:          5 * time.Minute,
			ExpiredGrace: 5 * time.Minute,
		},
		Token: TokenConfig{
			TTL:           15 * time.Minute,
			SigningMethod: "hs256",
			Leeway:        5 * time.Second,
		},
		RateLimit: RateLimitConfig{
			Enabled:     true,
			Window:      15 * time.Minute,
			MaxRequests: 20,
		},
		Sweep: SweepConfig{
			Enabled:  true,
			Interval: 5 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.PrivateKey = cloneBytes(cfg.Token.PrivateKey)
	out.Token.PublicKey = cloneBytes(cfg.Token.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	return c.validate(true)
}

// validate skips signing key checks when requireKeys is false; Build does
// that when a custom TokenSigner is installed.
func (c *Config) validate(requireKeys bool) error {
	// Code
	if c.Code.Digits < 4 || c.Code.Digits > 10 {
		return errors.New("Code Digits must be between 4 and 10")
	}
	if c.Code.TTL <= 0 {
		return errors.New("Code TTL must be > 0")
	}
	if c.Code.ExpiredGrace < 0 {
		return errors.New("Code ExpiredGrace must be >= 0")
	}

	// Token
	if c.Token.TTL <= 0 {
		return errors.New("Token TTL must be > 0")
	}
	switch strings.ToLower(c.Token.SigningMethod) {
	case "hs256":
		if requireKeys && len(c.Token.PrivateKey) < 32 {
			return errors.New("hs256 requires a PrivateKey of at least 32 bytes")
		}
	case "ed25519":
		if !requireKeys {
			break
		}
		if len(c.Token.PrivateKey) == 0 {
			return errors.New("ed25519 requires PrivateKey")
		}
		if len(c.Token.PublicKey) == 0 {
			return errors.New("ed25519 requires PublicKey")
		}
	default:
		return errors.New("unsupported Token signing method")
	}
	if c.Token.Leeway < 0 || c.Token.Leeway > 2*time.Minute {
		return errors.New("Token Leeway must be between 0 and 2m")
	}

	// Rate limit
	if c.RateLimit.Enabled {
		if c.RateLimit.Window <= 0 {
			return errors.New("RateLimit Window must be > 0")
		}
		if c.RateLimit.MaxRequests <= 0 {
			return errors.New("RateLimit MaxRequests must be > 0")
		}
	}

	// Sweep
	if c.Sweep.Enabled && c.Sweep.Interval <= 0 {
		return errors.New("Sweep Interval must be > 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0")
	}

	if strings.ContainsAny(c.Store.KeyPrefix, " \t\r\n") {
		return errors.New("Store KeyPrefix must not contain whitespace")
	}

	return nil
}

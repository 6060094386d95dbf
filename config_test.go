package goReset

import (
	"testing"
	"time"
)

func validTestConfig() Config {
	cfg := DefaultConfig()
	cfg.Token.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	return cfg
}

func TestDefaultConfigMatchesPolicy(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Code.Digits != 6 || cfg.Code.TTL != 5*time.Minute || cfg.Code.ExpiredGrace != 5*time.Minute {
		t.Fatalf("unexpected code defaults %+v", cfg.Code)
	}
	if cfg.Token.TTL != 15*time.Minute {
		t.Fatalf("unexpected token ttl %v", cfg.Token.TTL)
	}
	if cfg.RateLimit.MaxRequests != 20 || cfg.RateLimit.Window != 15*time.Minute {
		t.Fatalf("unexpected rate limit defaults %+v", cfg.RateLimit)
	}
	if cfg.Sweep.Interval != 5*time.Minute {
		t.Fatalf("unexpected sweep interval %v", cfg.Sweep.Interval)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name:      "defaults with secret",
			mutate:    func(*Config) {},
			wantValid: true,
		},
		{
			name: "digits too small",
			mutate: func(c *Config) {
				c.Code.Digits = 3
			},
			wantValid: false,
		},
		{
			name: "code ttl zero",
			mutate: func(c *Config) {
				c.Code.TTL = 0
			},
			wantValid: false,
		},
		{
			name: "negative grace",
			mutate: func(c *Config) {
				c.Code.ExpiredGrace = -time.Second
			},
			wantValid: false,
		},
		{
			name: "weak hs256 secret",
			mutate: func(c *Config) {
				c.Token.PrivateKey = []byte("short")
			},
			wantValid: false,
		},
		{
			name: "ed25519 without public key",
			mutate: func(c *Config) {
				c.Token.SigningMethod = "ed25519"
				c.Token.PublicKey = nil
			},
			wantValid: false,
		},
		{
			name: "unknown signing method",
			mutate: func(c *Config) {
				c.Token.SigningMethod = "rs256"
			},
			wantValid: false,
		},
		{
			name: "leeway too large",
			mutate: func(c *Config) {
				c.Token.Leeway = 3 * time.Minute
			},
			wantValid: false,
		},
		{
			name: "rate limit window zero",
			mutate: func(c *Config) {
				c.RateLimit.Window = 0
			},
			wantValid: false,
		},
		{
			name: "rate limit disabled ignores window",
			mutate: func(c *Config) {
				c.RateLimit.Enabled = false
				c.RateLimit.Window = 0
			},
			wantValid: true,
		},
		{
			name: "sweep interval zero",
			mutate: func(c *Config) {
				c.Sweep.Interval = 0
			},
			wantValid: false,
		},
		{
			name: "audit buffer zero",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Audit.BufferSize = 0
			},
			wantValid: false,
		},
		{
			name: "prefix with whitespace",
			mutate: func(c *Config) {
				c.Store.KeyPrefix = "bad prefix:"
			},
			wantValid: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validTestConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantValid && err != nil {
				t.Fatalf("expected valid, got %v", err)
			}
			if !tc.wantValid && err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestCloneConfigCopiesKeys(t *testing.T) {
	cfg := validTestConfig()
	clone := cloneConfig(cfg)
	clone.Token.PrivateKey[0] = 'X'
	if cfg.Token.PrivateKey[0] == 'X' {
		t.Fatal("cloneConfig must deep copy key material")
	}
}

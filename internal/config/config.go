// Package config loads the resetd daemon configuration from .env, the
// environment, an optional config file and command-line flags, in that
// order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	goReset "github.com/MrEthical07/goReset"
)

var (
	validLogLevels = []string{"debug", "info", "warn", "error"}
	validEnvs      = []string{"development", "production", "test"}
)

// Config holds every daemon setting.
type Config struct {
	App       App
	Redis     Redis
	Token     Token
	Code      Code
	RateLimit RateLimit
	Sweep     Sweep
	Audit     Audit
	SMTP      SMTP
	AWS       AWS
	Dynamo    Dynamo
	HTTP      HTTP
}

type App struct {
	Port     int
	Env      string
	LogLevel string
}

type Redis struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// Token configures reset token signing. HS256 uses Secret; Ed25519 reads
// PEM keys from the two paths.
type Token struct {
	SigningMethod  string
	Secret         string
	PrivateKeyPath string
	PublicKeyPath  string
	KeyID          string
	Issuer         string
	Audience       string
	TTL            time.Duration
}

type Code struct {
	Digits       int
	TTL          time.Duration
	ExpiredGrace time.Duration
}

// RateLimit covers both the engine's per-client code window and the
// transport's per-IP token bucket.
type RateLimit struct {
	Enabled     bool
	Window      time.Duration
	MaxRequests int
	HTTPRate    float64
	HTTPBurst   int
}

type Sweep struct {
	Enabled  bool
	Interval time.Duration
}

type Audit struct {
	Enabled    bool
	BufferSize int
}

type SMTP struct {
	Host     string
	Port     int
	From     string
	Username string
	Password string
}

// AWS holds the SDK settings. EndpointURL is empty in production and points
// at a local DynamoDB in development.
type AWS struct {
	Region      string
	EndpointURL string
	AccessKeyID string
	SecretKey   string
}

// Dynamo names the identity table, its email index and the optional table
// receiving minted tokens. An empty TokensTable disables the token sink.
type Dynamo struct {
	UsersTable      string
	UsersEmailIndex string
	TokensTable     string
}

type HTTP struct {
	AllowedOrigins  []string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Load reads configuration for the given command-line arguments (without
// the program name). A missing .env file is not an error.
func Load(args []string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	flags := pflag.NewFlagSet("resetd", pflag.ContinueOnError)
	configFile := flags.String("config", "", "path to a config file (toml, yaml or json)")
	flags.Int("port", v.GetInt("app.port"), "HTTP listen port")
	flags.String("log-level", v.GetString("app.log_level"), "log level: debug, info, warn, error")
	flags.String("redis-addr", v.GetString("redis.addr"), "Redis address")
	if err := flags.Parse(args); err != nil {
		return nil, err
	}
	_ = v.BindPFlag("app.port", flags.Lookup("port"))
	_ = v.BindPFlag("app.log_level", flags.Lookup("log-level"))
	_ = v.BindPFlag("redis.addr", flags.Lookup("redis-addr"))

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if *configFile != "" {
		v.SetConfigFile(*configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := fromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	engine := goReset.DefaultConfig()

	v.SetDefault("app.port", 3001)
	v.SetDefault("app.env", "development")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "")

	v.SetDefault("token.signing_method", engine.Token.SigningMethod)
	v.SetDefault("token.ttl", engine.Token.TTL)
	v.SetDefault("token.issuer", "resetd")

	v.SetDefault("code.digits", engine.Code.Digits)
	v.SetDefault("code.ttl", engine.Code.TTL)
	v.SetDefault("code.expired_grace", engine.Code.ExpiredGrace)

	v.SetDefault("ratelimit.enabled", engine.RateLimit.Enabled)
	v.SetDefault("ratelimit.window", engine.RateLimit.Window)
	v.SetDefault("ratelimit.max_requests", engine.RateLimit.MaxRequests)
	v.SetDefault("ratelimit.http_rate", 5.0)
	v.SetDefault("ratelimit.http_burst", 10)

	v.SetDefault("sweep.enabled", engine.Sweep.Enabled)
	v.SetDefault("sweep.interval", engine.Sweep.Interval)

	v.SetDefault("audit.enabled", true)
	v.SetDefault("audit.buffer_size", engine.Audit.BufferSize)

	v.SetDefault("smtp.host", "localhost")
	v.SetDefault("smtp.port", 1025)
	v.SetDefault("smtp.from", "noreply@example.com")

	v.SetDefault("aws.region", "us-east-1")

	v.SetDefault("dynamo.users_table", "users")
	v.SetDefault("dynamo.users_email_index", "email-index")
	v.SetDefault("dynamo.tokens_table", "reset_tokens")

	v.SetDefault("http.allowed_origins", "*")
	v.SetDefault("http.read_timeout", 15*time.Second)
	v.SetDefault("http.write_timeout", 15*time.Second)
	v.SetDefault("http.idle_timeout", 60*time.Second)
	v.SetDefault("http.shutdown_timeout", 10*time.Second)
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		App: App{
			Port:     v.GetInt("app.port"),
			Env:      v.GetString("app.env"),
			LogLevel: v.GetString("app.log_level"),
		},
		Redis: Redis{
			Addr:      v.GetString("redis.addr"),
			Password:  v.GetString("redis.password"),
			DB:        v.GetInt("redis.db"),
			KeyPrefix: v.GetString("redis.key_prefix"),
		},
		Token: Token{
			SigningMethod:  strings.ToLower(v.GetString("token.signing_method")),
			Secret:         v.GetString("token.secret"),
			PrivateKeyPath: v.GetString("token.private_key_path"),
			PublicKeyPath:  v.GetString("token.public_key_path"),
			KeyID:          v.GetString("token.key_id"),
			Issuer:         v.GetString("token.issuer"),
			Audience:       v.GetString("token.audience"),
			TTL:            v.GetDuration("token.ttl"),
		},
		Code: Code{
			Digits:       v.GetInt("code.digits"),
			TTL:          v.GetDuration("code.ttl"),
			ExpiredGrace: v.GetDuration("code.expired_grace"),
		},
		RateLimit: RateLimit{
			Enabled:     v.GetBool("ratelimit.enabled"),
			Window:      v.GetDuration("ratelimit.window"),
			MaxRequests: v.GetInt("ratelimit.max_requests"),
			HTTPRate:    v.GetFloat64("ratelimit.http_rate"),
			HTTPBurst:   v.GetInt("ratelimit.http_burst"),
		},
		Sweep: Sweep{
			Enabled:  v.GetBool("sweep.enabled"),
			Interval: v.GetDuration("sweep.interval"),
		},
		Audit: Audit{
			Enabled:    v.GetBool("audit.enabled"),
			BufferSize: v.GetInt("audit.buffer_size"),
		},
		SMTP: SMTP{
			Host:     v.GetString("smtp.host"),
			Port:     v.GetInt("smtp.port"),
			From:     v.GetString("smtp.from"),
			Username: v.GetString("smtp.username"),
			Password: v.GetString("smtp.password"),
		},
		AWS: AWS{
			Region:      v.GetString("aws.region"),
			EndpointURL: v.GetString("aws.endpoint_url"),
			AccessKeyID: v.GetString("aws.access_key_id"),
			SecretKey:   v.GetString("aws.secret_access_key"),
		},
		Dynamo: Dynamo{
			UsersTable:      v.GetString("dynamo.users_table"),
			UsersEmailIndex: v.GetString("dynamo.users_email_index"),
			TokensTable:     v.GetString("dynamo.tokens_table"),
		},
		HTTP: HTTP{
			AllowedOrigins:  splitList(v.GetString("http.allowed_origins")),
			ReadTimeout:     v.GetDuration("http.read_timeout"),
			WriteTimeout:    v.GetDuration("http.write_timeout"),
			IdleTimeout:     v.GetDuration("http.idle_timeout"),
			ShutdownTimeout: v.GetDuration("http.shutdown_timeout"),
		},
	}
}

// Validate checks the daemon-only settings. Engine policy is checked again
// by goReset's Builder.
func (c *Config) Validate() error {
	if c.App.Port <= 0 || c.App.Port > 65535 {
		return errors.New("invalid port provided")
	}
	if !slices.Contains(validEnvs, c.App.Env) {
		return fmt.Errorf("invalid app.env %q", c.App.Env)
	}
	if !slices.Contains(validLogLevels, c.App.LogLevel) {
		return errors.New("invalid log level provided")
	}
	if c.Redis.Addr == "" {
		return errors.New("redis.addr can't be empty")
	}
	switch c.Token.SigningMethod {
	case "hs256":
		if c.Token.Secret == "" {
			return errors.New("token.secret is required for hs256")
		}
	case "ed25519":
		if c.Token.PrivateKeyPath == "" || c.Token.PublicKeyPath == "" {
			return errors.New("token.private_key_path and token.public_key_path are required for ed25519")
		}
	default:
		return fmt.Errorf("unsupported token.signing_method %q", c.Token.SigningMethod)
	}
	if c.SMTP.Host == "" || c.SMTP.From == "" {
		return errors.New("smtp.host and smtp.from can't be empty")
	}
	if c.SMTP.Port <= 0 || c.SMTP.Port > 65535 {
		return fmt.Errorf("invalid smtp port %d", c.SMTP.Port)
	}
	if c.Dynamo.UsersTable == "" || c.Dynamo.UsersEmailIndex == "" {
		return errors.New("dynamo.users_table and dynamo.users_email_index can't be empty")
	}
	if c.RateLimit.HTTPRate <= 0 || c.RateLimit.HTTPBurst <= 0 {
		return errors.New("ratelimit.http_rate and ratelimit.http_burst must be bigger than 0")
	}
	return nil
}

// Engine converts the settings into a goReset.Config, reading key files
// when Ed25519 is selected.
func (c *Config) Engine() (goReset.Config, error) {
	out := goReset.DefaultConfig()

	out.Code.Digits = c.Code.Digits
	out.Code.TTL = c.Code.TTL
	out.Code.ExpiredGrace = c.Code.ExpiredGrace

	out.Token.TTL = c.Token.TTL
	out.Token.SigningMethod = c.Token.SigningMethod
	out.Token.KeyID = c.Token.KeyID
	out.Token.Issuer = c.Token.Issuer
	out.Token.Audience = c.Token.Audience
	switch c.Token.SigningMethod {
	case "ed25519":
		priv, err := os.ReadFile(c.Token.PrivateKeyPath)
		if err != nil {
			return goReset.Config{}, fmt.Errorf("read private key: %w", err)
		}
		pub, err := os.ReadFile(c.Token.PublicKeyPath)
		if err != nil {
			return goReset.Config{}, fmt.Errorf("read public key: %w", err)
		}
		out.Token.PrivateKey = priv
		out.Token.PublicKey = pub
	default:
		out.Token.PrivateKey = []byte(c.Token.Secret)
	}

	out.RateLimit.Enabled = c.RateLimit.Enabled
	out.RateLimit.Window = c.RateLimit.Window
	out.RateLimit.MaxRequests = c.RateLimit.MaxRequests

	out.Sweep.Enabled = c.Sweep.Enabled
	out.Sweep.Interval = c.Sweep.Interval

	out.Audit.Enabled = c.Audit.Enabled
	out.Audit.BufferSize = c.Audit.BufferSize

	out.Store.KeyPrefix = c.Redis.KeyPrefix

	if err := out.Validate(); err != nil {
		return goReset.Config{}, err
	}
	return out, nil
}

// IsProduction reports whether the daemon runs with production defaults.
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

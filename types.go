package goReset

import (
	"context"
	"io"
	"time"

	"go.uber.org/zap"

	internalaudit "github.com/MrEthical07/goReset/internal/audit"
	"github.com/MrEthical07/goReset/jwt"
)

// IdentityResolver answers whether an email belongs to a known account.
type IdentityResolver interface {
	Exists(ctx context.Context, email string) (bool, error)
}

// IdentityResolverFunc adapts a function to IdentityResolver.
type IdentityResolverFunc func(ctx context.Context, email string) (bool, error)

func (f IdentityResolverFunc) Exists(ctx context.Context, email string) (bool, error) {
	return f(ctx, email)
}

// CodeMessage is what the Notifier delivers.
type CodeMessage struct {
	To        string
	Code      string
	ExpiresIn time.Duration
}

// Notifier delivers a verification code out-of-band (mail). Delivery is
// best effort; a returned error rolls the pending code back.
type Notifier interface {
	SendCode(ctx context.Context, msg CodeMessage) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, msg CodeMessage) error

func (f NotifierFunc) SendCode(ctx context.Context, msg CodeMessage) error {
	return f(ctx, msg)
}

// TokenSink persists a freshly minted token for the downstream system that
// will consume it.
type TokenSink interface {
	Persist(ctx context.Context, token IssuedToken) error
}

// TokenSinkFunc adapts a function to TokenSink.
type TokenSinkFunc func(ctx context.Context, token IssuedToken) error

func (f TokenSinkFunc) Persist(ctx context.Context, token IssuedToken) error {
	return f(ctx, token)
}

// IssuedToken is returned by Engine.VerifyCode and handed to the TokenSink.
type IssuedToken struct {
	Email     string
	Token     string
	JTI       string
	IssuedAt  time.Time
	ExpiresAt time.Time
	ExpiresIn time.Duration
}

// TokenState is the registry state of a reset token.
type TokenState uint8

const (
	// TokenNotFound means the jti is unknown or lapsed.
	TokenNotFound TokenState = iota
	// TokenUnused means the token is live and unconsumed.
	TokenUnused
	// TokenUsed means the token was consumed.
	TokenUsed
)

func (s TokenState) String() string {
	switch s {
	case TokenUnused:
		return "unused"
	case TokenUsed:
		return "used"
	default:
		return "not_found"
	}
}

// TokenStatus is the full registry view of a jti.
type TokenStatus struct {
	JTI       string
	State     TokenState
	Email     string
	CreatedAt time.Time
	ExpiresAt time.Time
	UsedAt    time.Time
}

// TokenLiveness answers "is this jti known, unused and unexpired".
type TokenLiveness struct {
	JTI   string
	Live  bool
	Email string
}

// AuditEvent is one audit record.
type AuditEvent = internalaudit.Event

// AuditSink receives audit events from the dispatcher goroutine.
type AuditSink = internalaudit.Sink

// NoOpSink drops audit events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink buffers audit events in a channel; tests read Events().
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes one JSON audit event per line.
type JSONWriterSink = internalaudit.JSONWriterSink

// ZapSink writes audit events through a zap logger.
type ZapSink = internalaudit.ZapSink

// NewChannelSink returns a ChannelSink with the given buffer.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink returns a sink writing JSON lines to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// NewZapSink returns a sink that logs each audit event through logger.
func NewZapSink(logger *zap.Logger) *ZapSink {
	return internalaudit.NewZapSink(logger)
}

// TokenSigner signs reset claims. *jwt.Manager implements it.
type TokenSigner interface {
	Sign(claims jwt.ResetClaims) (string, error)
}

// TokenVerifier parses and validates a presented reset token. *jwt.Manager
// implements it.
type TokenVerifier interface {
	Verify(token string) (*jwt.ResetClaims, error)
}

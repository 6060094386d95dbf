package test

import (
	"context"
	"errors"
	"log"

	"github.com/redis/go-redis/v9"

	goReset "github.com/MrEthical07/goReset"
)

// ExampleNew demonstrates engine construction with production-style dependencies.
func ExampleNew() {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:6379"})

	cfg := goReset.DefaultConfig()
	cfg.Token.PrivateKey = []byte("replace-with-a-32-byte-secret!!!")

	engine, _ := goReset.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithIdentityResolver(goReset.IdentityResolverFunc(func(ctx context.Context, email string) (bool, error) {
			return email == "alice@example.com", nil
		})).
		WithNotifier(goReset.NotifierFunc(func(ctx context.Context, msg goReset.CodeMessage) error {
			log.Printf("send %s to %s", msg.Code, msg.To)
			return nil
		})).
		Build()
	_ = engine
}

// ExampleEngine_RequestCode shows rate-limit handling keyed on the caller's IP.
func ExampleEngine_RequestCode() {
	var engine *goReset.Engine
	ctx := goReset.WithClientIP(context.Background(), "203.0.113.7")

	err := engine.RequestCode(ctx, "alice@example.com")
	if errors.Is(err, goReset.ErrRateLimited) {
		_ = engine.RetryAfter(ctx, "alice@example.com")
	}
}

// ExampleEngine_VerifyCode shows structured error handling on verification.
func ExampleEngine_VerifyCode() {
	var engine *goReset.Engine
	issued, err := engine.VerifyCode(context.Background(), "alice@example.com", "048213")
	switch goReset.Classify(err) {
	case goReset.KindNone:
		_ = issued.Token
	case goReset.KindConflictOrExpired:
		// wrong, expired or already consumed code
	default:
		_ = err
	}
}

// ExampleEngine_MarkTokenUsed consumes a token once the password is stored.
func ExampleEngine_MarkTokenUsed() {
	var engine *goReset.Engine
	live, err := engine.ValidateToken(context.Background(), "3f1c1e9e-7d7a-4c55-9d0f-2c5d7a0c8b11")
	if err != nil || !live.Live {
		return
	}
	_ = engine.MarkTokenUsed(context.Background(), live.JTI)
}

// ExampleEngine_MetricsSnapshot shows how to read in-process metrics counters.
func ExampleEngine_MetricsSnapshot() {
	var engine *goReset.Engine
	snapshot := engine.MetricsSnapshot()
	_ = snapshot
}

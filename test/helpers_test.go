//go:build integration
// +build integration

package test

import (
	"context"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	goReset "github.com/MrEthical07/goReset"
)

const integrationSecret = "integration-secret-0123456789abc"

// redisMode describes which Redis backend a suite is running against.
type redisMode struct {
	name  string
	setup func(t *testing.T) (redis.UniversalClient, func())
}

// redisModes returns the Redis backends to test. miniredis is always
// available; a real standalone server is added when REDIS_ADDR is set and a
// cluster when REDIS_CLUSTER_ADDRS is set.
func redisModes(t *testing.T) []redisMode {
	t.Helper()
	modes := []redisMode{
		{
			name: "miniredis",
			setup: func(t *testing.T) (redis.UniversalClient, func()) {
				t.Helper()
				mr, err := miniredis.Run()
				if err != nil {
					t.Fatalf("miniredis: %v", err)
				}
				rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
				return rdb, func() { _ = rdb.Close(); mr.Close() }
			},
		},
	}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		modes = append(modes, redisMode{
			name: "standalone:" + addr,
			setup: func(t *testing.T) (redis.UniversalClient, func()) {
				t.Helper()
				rdb := redis.NewClient(&redis.Options{Addr: addr})
				ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
				defer cancel()
				if err := rdb.Ping(ctx).Err(); err != nil {
					t.Skipf("cannot connect to Redis at %s: %v", addr, err)
				}
				rdb.FlushDB(context.Background())
				return rdb, func() { rdb.FlushDB(context.Background()); _ = rdb.Close() }
			},
		})
	}

	if addrs := os.Getenv("REDIS_CLUSTER_ADDRS"); addrs != "" {
		modes = append(modes, redisMode{
			name: "cluster",
			setup: func(t *testing.T) (redis.UniversalClient, func()) {
				t.Helper()
				rdb := redis.NewClusterClient(&redis.ClusterOptions{Addrs: splitAddrs(addrs)})
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := rdb.Ping(ctx).Err(); err != nil {
					t.Skipf("cannot connect to Redis cluster: %v", err)
				}
				return rdb, func() { _ = rdb.Close() }
			},
		})
	}

	return modes
}

func splitAddrs(s string) []string {
	var addrs []string
	for _, a := range strings.Split(s, ",") {
		if a = strings.TrimSpace(a); a != "" {
			addrs = append(addrs, a)
		}
	}
	return addrs
}

// outbox records every code the engine hands to its notifier.
type outbox struct {
	mu    sync.Mutex
	codes map[string]string
}

func (o *outbox) SendCode(_ context.Context, msg goReset.CodeMessage) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.codes[msg.To] = msg.Code
	return nil
}

func (o *outbox) code(email string) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.codes[email]
}

// newIntegrationEngine builds an engine over client that knows every email
// ending in @example.com. Each test gets its own key prefix so suites can
// share a real server.
func newIntegrationEngine(t *testing.T, client redis.UniversalClient, tweak func(*goReset.Config)) (*goReset.Engine, *outbox) {
	t.Helper()

	cfg := goReset.DefaultConfig()
	cfg.Token.PrivateKey = []byte(integrationSecret)
	cfg.Store.KeyPrefix = "it:" + strings.ReplaceAll(t.Name(), "/", ":") + ":"
	if tweak != nil {
		tweak(&cfg)
	}

	box := &outbox{codes: make(map[string]string)}
	engine, err := goReset.New().
		WithConfig(cfg).
		WithRedis(client).
		WithIdentityResolver(goReset.IdentityResolverFunc(func(_ context.Context, email string) (bool, error) {
			return strings.HasSuffix(email, "@example.com"), nil
		})).
		WithNotifier(box).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine, box
}

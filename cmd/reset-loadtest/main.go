package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	goReset "github.com/MrEthical07/goReset"
)

// codeBook captures every delivered code by recipient.
type codeBook struct {
	mu    sync.Mutex
	codes map[string]string
}

func (b *codeBook) SendCode(_ context.Context, msg goReset.CodeMessage) error {
	b.mu.Lock()
	b.codes[msg.To] = msg.Code
	b.mu.Unlock()
	return nil
}

func (b *codeBook) get(email string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.codes[email]
}

func main() {
	var (
		identities  = flag.Int("identities", 2000, "number of emails to run through the flow")
		contenders  = flag.Int("contenders", 8, "concurrent verifies per email with the correct code")
		concurrency = flag.Int("concurrency", 128, "number of concurrent workers")
		ops         = flag.Int("ops", 100000, "token status checks in the validate phase")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "lt:", "store key prefix")
	)
	flag.Parse()

	if *identities <= 0 || *contenders <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "identities, contenders, concurrency and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", mr.Addr())
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	cfg := goReset.DefaultConfig()
	cfg.Token.PrivateKey = []byte("loadtest-secret-0123456789abcdef")
	cfg.RateLimit.Enabled = false
	cfg.Store.KeyPrefix = *prefix

	book := &codeBook{codes: make(map[string]string, *identities)}
	engine, err := goReset.New().
		WithConfig(cfg).
		WithRedis(client).
		WithIdentityResolver(goReset.IdentityResolverFunc(func(context.Context, string) (bool, error) {
			return true, nil
		})).
		WithNotifier(book).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	emails := make([]string, *identities)
	for i := range emails {
		emails[i] = fmt.Sprintf("user%d@loadtest.example", i)
	}

	requestStats := runRequestPhase(ctx, engine, emails, *concurrency)
	verifyStats, jtis := runVerifyPhase(ctx, engine, book, emails, *contenders, *concurrency)
	validateStats := runValidatePhase(ctx, engine, jtis, *ops, *concurrency)

	fmt.Println("---- results ----")
	printStats("request", requestStats)
	printStats("verify", verifyStats)
	printStats("validate", validateStats)
	fmt.Printf("tokens minted: %d for %d identities\n", len(jtis), len(emails))
	if len(jtis) != len(emails) {
		fmt.Fprintln(os.Stderr, "FAIL: a code was accepted more or less than once")
		os.Exit(1)
	}
}

func runRequestPhase(ctx context.Context, engine *goReset.Engine, emails []string, concurrency int) phaseStats {
	return runPool(len(emails), concurrency, func(i int, _ *rand.Rand) error {
		return engine.RequestCode(ctx, emails[i])
	})
}

// runVerifyPhase races contenders correct verifies per email. Exactly one
// per email must succeed; the rest see ErrNoPendingCode.
func runVerifyPhase(ctx context.Context, engine *goReset.Engine, book *codeBook, emails []string, contenders, concurrency int) (phaseStats, []string) {
	var (
		mu      sync.Mutex
		jtis    []string
		winners = make([]int32, len(emails))
	)

	stats := runPool(len(emails)*contenders, concurrency, func(i int, _ *rand.Rand) error {
		idx := i % len(emails)
		issued, err := engine.VerifyCode(ctx, emails[idx], book.get(emails[idx]))
		if errors.Is(err, goReset.ErrNoPendingCode) {
			return nil
		}
		if err != nil {
			return err
		}
		atomic.AddInt32(&winners[idx], 1)
		mu.Lock()
		jtis = append(jtis, issued.JTI)
		mu.Unlock()
		return nil
	})

	for idx, n := range winners {
		if n != 1 {
			fmt.Fprintf(os.Stderr, "email %s verified %d times\n", emails[idx], n)
		}
	}
	return stats, jtis
}

func runValidatePhase(ctx context.Context, engine *goReset.Engine, jtis []string, ops, concurrency int) phaseStats {
	if len(jtis) == 0 {
		return phaseStats{}
	}
	return runPool(ops, concurrency, func(_ int, r *rand.Rand) error {
		live, err := engine.ValidateToken(ctx, jtis[r.Intn(len(jtis))])
		if err != nil {
			return err
		}
		if !live.Live {
			return errors.New("token unexpectedly not live")
		}
		return nil
	})
}

func runPool(ops, concurrency int, fn func(i int, r *rand.Rand) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := fn(i, r)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}

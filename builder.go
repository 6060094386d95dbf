package goReset

import (
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	internalaudit "github.com/MrEthical07/goReset/internal/audit"
	"github.com/MrEthical07/goReset/internal/codes"
	"github.com/MrEthical07/goReset/internal/limiters"
	"github.com/MrEthical07/goReset/internal/tokens"
	"github.com/MrEthical07/goReset/jwt"
	"github.com/MrEthical07/goReset/store"
)

// Builder assembles an Engine. Configure it during initialization, call
// Build once, and discard it.
type Builder struct {
	config Config
	store  store.Store

	identity IdentityResolver
	notifier Notifier
	sink     TokenSink
	signer   TokenSigner
	verifier TokenVerifier

	logger    *zap.Logger
	auditSink AuditSink
	now       func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis backs the engine with a Redis (or Redis Cluster) client.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	if client != nil {
		b.store = store.NewRedis(client)
	}
	return b
}

// WithStore backs the engine with any store.Store. A store that also
// implements store.Sweepable gets a background sweeper.
func (b *Builder) WithStore(s store.Store) *Builder {
	b.store = s
	return b
}

// WithIdentityResolver sets the collaborator that answers "does this email
// belong to an account". Required.
func (b *Builder) WithIdentityResolver(r IdentityResolver) *Builder {
	b.identity = r
	return b
}

// WithNotifier sets the code delivery collaborator. Required.
func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

// WithTokenSink sets the collaborator told about every minted token.
// Optional.
func (b *Builder) WithTokenSink(s TokenSink) *Builder {
	b.sink = s
	return b
}

// WithTokenSigner replaces the jwt.Manager built from Config.Token for
// signing. Pair it with WithTokenVerifier if InspectToken is used.
func (b *Builder) WithTokenSigner(s TokenSigner) *Builder {
	b.signer = s
	return b
}

// WithTokenVerifier replaces the verifier used by InspectToken.
func (b *Builder) WithTokenVerifier(v TokenVerifier) *Builder {
	b.verifier = v
	return b
}

// WithLogger sets the structured logger. Defaults to zap.NewNop.
func (b *Builder) WithLogger(l *zap.Logger) *Builder {
	b.logger = l
	return b
}

// WithAuditSink sets the audit destination. Audit must also be enabled in
// Config.Audit.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithClock injects the time source for code and token timestamps. The
// store keeps its own clock.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithMetricsEnabled toggles in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the verify latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires every component. A Builder
// can be built only once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.store == nil {
		return nil, errors.New("store required: use WithRedis or WithStore")
	}
	if err := cfg.validate(b.signer == nil); err != nil {
		return nil, err
	}
	if b.identity == nil {
		return nil, errors.New("identity resolver required")
	}
	if b.notifier == nil {
		return nil, errors.New("notifier required")
	}

	now := b.now
	if now == nil {
		now = time.Now
	}
	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	// -------- SIGNER / VERIFIER --------
	signer, verifier := b.signer, b.verifier
	if signer == nil || verifier == nil {
		jm, err := jwt.NewManager(jwt.Config{
			SigningMethod: jwt.SigningMethod(cfg.Token.SigningMethod),
			PrivateKey:    cloneBytes(cfg.Token.PrivateKey),
			PublicKey:     cloneBytes(cfg.Token.PublicKey),
			KeyID:         cfg.Token.KeyID,
			Issuer:        cfg.Token.Issuer,
			Audience:      cfg.Token.Audience,
			Leeway:        cfg.Token.Leeway,
		})
		if err != nil && signer == nil {
			return nil, err
		}
		if err == nil {
			if signer == nil {
				signer = jm
			}
			if verifier == nil {
				verifier = jm
			}
		}
	}

	engine := &Engine{
		config:   cloneConfig(cfg),
		store:    b.store,
		identity: b.identity,
		notifier: b.notifier,
		sink:     b.sink,
		verifier: verifier,
		logger:   logger,
		now:      now,
	}

	// -------- COMPONENTS --------
	engine.codes = codes.NewManager(b.store, codes.Config{
		Digits:       cfg.Code.Digits,
		TTL:          cfg.Code.TTL,
		ExpiredGrace: cfg.Code.ExpiredGrace,
		KeyPrefix:    cfg.Store.KeyPrefix,
	}, codes.WithClock(now))
	engine.issuer = tokens.NewIssuer(signer, cfg.Token.TTL, tokens.WithIssuerClock(now))
	engine.registry = tokens.NewRegistry(b.store,
		tokens.WithRegistryClock(now),
		tokens.WithKeyPrefix(cfg.Store.KeyPrefix),
	)
	if cfg.RateLimit.Enabled {
		engine.limiter = limiters.NewCodeRequestLimiter(b.store, limiters.CodeRequestConfig{
			Window:                   cfg.RateLimit.Window,
			MaxRequests:              cfg.RateLimit.MaxRequests,
			EnableIdentifierThrottle: cfg.RateLimit.EnableIdentifierThrottle,
			KeyPrefix:                cfg.Store.KeyPrefix,
		})
	}

	engine.metrics = NewMetrics(cfg.Metrics)
	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)

	// -------- SWEEPER --------
	if sweepable, ok := b.store.(store.Sweepable); ok && cfg.Sweep.Enabled {
		engine.sweeper = store.NewSweeper(sweepable,
			store.WithSweepInterval(cfg.Sweep.Interval),
			store.WithSweepLogger(logger),
			store.WithSweepHook(engine.recordSweep),
		)
		engine.sweeper.Start()
	}

	engine.flows = engine.buildFlowDeps()
	b.built = true

	return engine, nil
}

func (e *Engine) recordSweep(purged int, err error) {
	if e.metrics == nil {
		return
	}
	if err != nil {
		e.metrics.Inc(MetricSweepFailure)
		return
	}
	e.metrics.Inc(MetricSweepRun)
	e.metrics.Add(MetricSweepPurged, uint64(purged))
}

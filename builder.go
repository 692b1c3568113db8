package goPhoneAuth

import (
	"errors"
	"time"

	internalaudit "github.com/MrEthical07/goPhoneAuth/internal/audit"
	"github.com/MrEthical07/goPhoneAuth/internal/stores"
	"github.com/MrEthical07/goPhoneAuth/phone"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Builder assembles an [Engine]. A Builder is single-use and not safe for
// concurrent use.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	otpStore     OTPStore
	accountStore AccountStore
	auditSinks   []AuditSink
	logger       *zap.Logger
	now          func() time.Time
	strategies   []LoginStrategy

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis stores OTP records in Redis under Config.OTP.RedisPrefix.
// It is ignored when WithOTPStore is also used.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithOTPStore(store OTPStore) *Builder {
	b.otpStore = store
	return b
}

func (b *Builder) WithAccountStore(store AccountStore) *Builder {
	b.accountStore = store
	return b
}

// WithAuditSink adds a sink. Every sink receives every audit event.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSinks = append(b.auditSinks, sink)
	return b
}

// WithLogger sets the operational logger. Defaults to zap.NewNop().
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock replaces time.Now for OTP timestamps, expiry checks and audit events.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithLoginStrategy registers an extra strategy tried after the phone strategy.
func (b *Builder) WithLoginStrategy(strategy LoginStrategy) *Builder {
	b.strategies = append(b.strategies, strategy)
	return b
}

func (b *Builder) WithAmbiguousErrors(enabled bool) *Builder {
	b.config.Login.AmbiguousErrorMessages = enabled
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns a ready Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.accountStore == nil {
		return nil, errors.New("account store required")
	}

	otpStore := b.otpStore
	if otpStore == nil {
		if b.redis == nil {
			return nil, errors.New("redis client or otp store required")
		}
		otpStore = stores.NewRedisOTPStore(b.redis, cfg.OTP.RedisPrefix)
	}
	otpBackend := "custom"
	switch otpStore.(type) {
	case *stores.RedisOTPStore:
		otpBackend = "redis"
	case *stores.MemoryOTPStore:
		otpBackend = "memory"
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("phoneauth")

	now := b.now
	if now == nil {
		now = time.Now
	}

	engine := &Engine{
		config: cfg,
		normalizer: phone.NewNormalizer(phone.Options{
			DefaultRegion:      cfg.Phone.DefaultRegion,
			RequireValidNumber: cfg.Phone.RequireValidNumber,
			Format:             cfg.Phone.Format,
		}),
		otps:       otpStore,
		otpBackend: otpBackend,
		accounts:   b.accountStore,
		metrics:    NewMetrics(cfg.Metrics),
		logger:     logger,
		now:        now,
		logins:     NewLoginRegistry(),
	}

	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
		OnDrop: func(event AuditEvent) {
			logger.Debug("audit event dropped", zap.String("event_type", event.EventType))
		},
	}, b.auditSinks...)

	if err := engine.logins.Register(&PhoneLoginStrategy{engine: engine}); err != nil {
		engine.Close()
		return nil, err
	}
	for _, s := range b.strategies {
		if err := engine.logins.Register(s); err != nil {
			engine.Close()
			return nil, err
		}
	}

	b.built = true

	return engine, nil
}

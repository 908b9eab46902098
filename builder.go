package authcore

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/wokengineers/tezdm-authcore/credstore"
	"github.com/wokengineers/tezdm-authcore/gateway"
)

// Builder assembles an [Engine]. Construction is allocation-only until
// Build, which validates the configuration, runs startup reconciliation
// against the credential store, and starts the global-logout watcher.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	store  CredentialStore
	gw     Gateway
	sink   Sink
	logger *slog.Logger
	logout <-chan struct{}

	built bool
}

// New creates a Builder with default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the configuration. Unset fields fall back to defaults.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = fillConfig(cfg)
	return b
}

// WithRedis sets the redis client backing the credential store.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithCredentialStore injects a store directly, bypassing WithRedis. Used by
// tests and by callers with their own persistence.
func (b *Builder) WithCredentialStore(store CredentialStore) *Builder {
	b.store = store
	return b
}

// WithGateway injects a gateway client. When omitted, Build constructs one
// from Config.Gateway.
func (b *Builder) WithGateway(gw Gateway) *Builder {
	b.gw = gw
	return b
}

// WithEventSink sets the sink receiving lifecycle events. Events must also be
// enabled in the configuration.
func (b *Builder) WithEventSink(sink Sink) *Builder {
	b.sink = sink
	return b
}

// WithLogger sets the structured logger. Defaults to a discard logger.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithGlobalLogout overrides the out-of-band logout signal source. When
// omitted, Build uses the gateway's own signal if it exposes one.
func (b *Builder) WithGlobalLogout(signal <-chan struct{}) *Builder {
	b.logout = signal
	return b
}

// WithMetricsEnabled toggles metric collection.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the validation latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration, wires the collaborators, restores any
// stored session, and starts the watcher goroutine. A Builder builds once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := fillConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	store := b.store
	if store == nil {
		if b.redis == nil {
			return nil, errors.New("redis client required")
		}
		store = credstore.NewStore(b.redis, cfg.Credentials.RedisPrefix)
	}

	gw := b.gw
	if gw == nil {
		if cfg.Gateway.BaseURL == "" {
			return nil, errors.New("gateway base URL or client required")
		}
		client, err := gateway.NewClient(gateway.Config{
			BaseURL: cfg.Gateway.BaseURL,
			Timeout: cfg.Gateway.Timeout,
			Logger:  logger,
		})
		if err != nil {
			return nil, err
		}
		gw = client
	}

	logout := b.logout
	if logout == nil {
		if source, ok := gw.(interface{ GlobalLogout() <-chan struct{} }); ok {
			logout = source.GlobalLogout()
		}
	}

	engine := &Engine{
		config:    cfg,
		store:     store,
		gateway:   gw,
		events:    newEventDispatcher(cfg.Events, b.sink),
		metrics:   NewMetrics(cfg.Metrics),
		logger:    logger,
		session:   Session{Status: StatusAnonymous, Step: StepEmail},
		redirects: make(map[string]redirectEntry),
		nowFn:     time.Now,
		newID:     uuid.NewString,
	}

	if err := engine.restoreSession(context.Background()); err != nil {
		engine.events.Close()
		return nil, err
	}

	if logout != nil {
		watchCtx, cancel := context.WithCancel(context.Background())
		engine.watchCancel = cancel
		engine.watchDone = make(chan struct{})
		go engine.watchGlobalLogout(watchCtx, logout)
	}

	b.built = true
	return engine, nil
}

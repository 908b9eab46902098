package authcore

import (
	"errors"
	"time"
)

// Config defines the engine's tunables. Zero values are filled from
// defaultConfig by the builder; a fully zero Config is usable once a gateway
// and redis client are supplied.
type Config struct {
	Gateway     GatewayConfig
	Session     SessionConfig
	Credentials CredentialConfig
	Connect     ConnectConfig
	Redirect    RedirectConfig
	Events      EventConfig
	Metrics     MetricsConfig
}

// GatewayConfig configures the remote gateway client built by the builder
// when no explicit Gateway is injected.
type GatewayConfig struct {
	BaseURL string
	Timeout time.Duration
}

// SessionConfig configures the login sequence.
type SessionConfig struct {
	// OTPCodeLength is the exact digit count a passcode must have.
	OTPCodeLength int
	// AvatarURLTemplate synthesizes an avatar for new profiles; "{name}" is
	// replaced with the display name. Empty means no avatar.
	AvatarURLTemplate string
	// DefaultPlan is the plan tier assigned to synthesized profiles.
	DefaultPlan string
}

// CredentialConfig configures the redis-backed credential store.
type CredentialConfig struct {
	RedisPrefix string
}

// ConnectConfig configures the connection poller.
type ConnectConfig struct {
	// PollInterval is the period of both the status timer and the countdown
	// timer.
	PollInterval time.Duration
	// CountdownSeconds is the countdown's starting value; the attempt times
	// out after this many countdown ticks.
	CountdownSeconds int
	// SuccessGraceDelay is the pause between observing success and notifying
	// listeners, so the user perceives the success state.
	SuccessGraceDelay time.Duration
}

// RedirectConfig configures the redirect resolver.
type RedirectConfig struct {
	// NavigationDelay is how long the caller should display the outcome
	// before navigating away.
	NavigationDelay time.Duration
}

// EventConfig configures the async event dispatcher.
type EventConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig configures the in-process metrics system.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

func defaultConfig() Config {
	return Config{
		Gateway: GatewayConfig{
			Timeout: 15 * time.Second,
		},
		Session: SessionConfig{
			OTPCodeLength: 6,
			DefaultPlan:   "free",
		},
		Credentials: CredentialConfig{
			RedisPrefix: "tzc",
		},
		Connect: ConnectConfig{
			PollInterval:      time.Second,
			CountdownSeconds:  300,
			SuccessGraceDelay: 1500 * time.Millisecond,
		},
		Redirect: RedirectConfig{
			NavigationDelay: 3 * time.Second,
		},
		Events: EventConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

// fillConfig overlays defaults onto unset fields so a partially populated
// Config behaves predictably.
func fillConfig(cfg Config) Config {
	def := defaultConfig()
	if cfg.Gateway.Timeout <= 0 {
		cfg.Gateway.Timeout = def.Gateway.Timeout
	}
	if cfg.Session.OTPCodeLength <= 0 {
		cfg.Session.OTPCodeLength = def.Session.OTPCodeLength
	}
	if cfg.Session.DefaultPlan == "" {
		cfg.Session.DefaultPlan = def.Session.DefaultPlan
	}
	if cfg.Credentials.RedisPrefix == "" {
		cfg.Credentials.RedisPrefix = def.Credentials.RedisPrefix
	}
	if cfg.Connect.PollInterval <= 0 {
		cfg.Connect.PollInterval = def.Connect.PollInterval
	}
	if cfg.Connect.CountdownSeconds <= 0 {
		cfg.Connect.CountdownSeconds = def.Connect.CountdownSeconds
	}
	if cfg.Connect.SuccessGraceDelay < 0 {
		cfg.Connect.SuccessGraceDelay = def.Connect.SuccessGraceDelay
	}
	if cfg.Redirect.NavigationDelay < 0 {
		cfg.Redirect.NavigationDelay = def.Redirect.NavigationDelay
	}
	if cfg.Events.BufferSize <= 0 {
		cfg.Events.BufferSize = def.Events.BufferSize
	}
	return cfg
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if c.Session.OTPCodeLength < 4 || c.Session.OTPCodeLength > 10 {
		return errors.New("Session OTPCodeLength must be between 4 and 10")
	}
	if c.Connect.PollInterval <= 0 {
		return errors.New("Connect PollInterval must be > 0")
	}
	if c.Connect.CountdownSeconds <= 0 {
		return errors.New("Connect CountdownSeconds must be > 0")
	}
	if c.Connect.SuccessGraceDelay < 0 {
		return errors.New("Connect SuccessGraceDelay must be >= 0")
	}
	if c.Redirect.NavigationDelay < 0 {
		return errors.New("Redirect NavigationDelay must be >= 0")
	}
	if c.Events.Enabled && c.Events.BufferSize <= 0 {
		return errors.New("Events BufferSize must be > 0 when Events are enabled")
	}
	if c.Credentials.RedisPrefix == "" {
		return errors.New("Credentials RedisPrefix must not be empty")
	}
	return nil
}

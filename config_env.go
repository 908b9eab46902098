package authcore

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type envConfig struct {
	GatewayBaseURL string        `env:"TEZDM_GATEWAY_URL"`
	GatewayTimeout time.Duration `env:"TEZDM_GATEWAY_TIMEOUT" envDefault:"15s"`

	OTPCodeLength     int    `env:"TEZDM_OTP_CODE_LENGTH" envDefault:"6"`
	AvatarURLTemplate string `env:"TEZDM_AVATAR_URL_TEMPLATE"`
	DefaultPlan       string `env:"TEZDM_DEFAULT_PLAN" envDefault:"free"`

	RedisPrefix string `env:"TEZDM_REDIS_PREFIX" envDefault:"tzc"`

	PollInterval      time.Duration `env:"TEZDM_POLL_INTERVAL" envDefault:"1s"`
	CountdownSeconds  int           `env:"TEZDM_POLL_COUNTDOWN_SECONDS" envDefault:"300"`
	SuccessGraceDelay time.Duration `env:"TEZDM_POLL_SUCCESS_GRACE" envDefault:"1500ms"`

	NavigationDelay time.Duration `env:"TEZDM_REDIRECT_NAV_DELAY" envDefault:"3s"`

	EventsEnabled    bool `env:"TEZDM_EVENTS_ENABLED"`
	EventsBufferSize int  `env:"TEZDM_EVENTS_BUFFER" envDefault:"1024"`
	EventsDropIfFull bool `env:"TEZDM_EVENTS_DROP_IF_FULL" envDefault:"true"`

	MetricsEnabled    bool `env:"TEZDM_METRICS_ENABLED"`
	LatencyHistograms bool `env:"TEZDM_METRICS_LATENCY_HISTOGRAMS"`
}

// ConfigFromEnv builds a Config from TEZDM_* environment variables, starting
// from the package defaults.
func ConfigFromEnv() (Config, error) {
	var raw envConfig
	if err := env.Parse(&raw); err != nil {
		return Config{}, err
	}

	cfg := defaultConfig()
	cfg.Gateway.BaseURL = raw.GatewayBaseURL
	cfg.Gateway.Timeout = raw.GatewayTimeout
	cfg.Session.OTPCodeLength = raw.OTPCodeLength
	cfg.Session.AvatarURLTemplate = raw.AvatarURLTemplate
	cfg.Session.DefaultPlan = raw.DefaultPlan
	cfg.Credentials.RedisPrefix = raw.RedisPrefix
	cfg.Connect.PollInterval = raw.PollInterval
	cfg.Connect.CountdownSeconds = raw.CountdownSeconds
	cfg.Connect.SuccessGraceDelay = raw.SuccessGraceDelay
	cfg.Redirect.NavigationDelay = raw.NavigationDelay
	cfg.Events.Enabled = raw.EventsEnabled
	cfg.Events.BufferSize = raw.EventsBufferSize
	cfg.Events.DropIfFull = raw.EventsDropIfFull
	cfg.Metrics.Enabled = raw.MetricsEnabled
	cfg.Metrics.EnableLatencyHistograms = raw.LatencyHistograms

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

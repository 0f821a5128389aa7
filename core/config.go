package core

import (
	"fmt"
	"strings"
	"time"
)

type RateLimitConfig struct {
	// RedisURL selects the networked counter backend. Empty means the
	// in-process store; an unreachable backend at startup also falls back.
	RedisURL   string        `koanf:"redis_url" mapstructure:"redis_url"`
	SendLimit  int           `koanf:"send_limit" mapstructure:"send_limit"`
	SendWindow time.Duration `koanf:"send_window" mapstructure:"send_window"`
}

type SMSConfig struct {
	GatewayURL  string        `koanf:"gateway_url" mapstructure:"gateway_url"`
	OpenTimeout time.Duration `koanf:"open_timeout" mapstructure:"open_timeout"`
	ReadTimeout time.Duration `koanf:"read_timeout" mapstructure:"read_timeout"`
	MaxAttempts int           `koanf:"max_attempts" mapstructure:"max_attempts"`
	DedupWindow time.Duration `koanf:"dedup_window" mapstructure:"dedup_window"`
}

type WebhookConfig struct {
	UserAgent string        `koanf:"user_agent" mapstructure:"user_agent"`
	Timeout   time.Duration `koanf:"timeout" mapstructure:"timeout"`
}

type Config struct {
	ServiceName string `koanf:"service_name" mapstructure:"service_name"`
	// Multitenant enables the HTTPS/localhost transport policy on webhook
	// delivery. Single-tenant deployments may target internal networks
	// intentionally, so the gate is off by default.
	Multitenant bool            `koanf:"multitenant" mapstructure:"multitenant"`
	RateLimit   RateLimitConfig `koanf:"rate_limit" mapstructure:"rate_limit"`
	SMS         SMSConfig       `koanf:"sms" mapstructure:"sms"`
	Webhook     WebhookConfig   `koanf:"webhook" mapstructure:"webhook"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "outbound",
		Multitenant: false,
		RateLimit: RateLimitConfig{
			SendLimit:  10,
			SendWindow: time.Hour,
		},
		SMS: SMSConfig{
			GatewayURL:  "https://api.twilio.com/2010-04-01",
			OpenTimeout: 8 * time.Second,
			ReadTimeout: 15 * time.Second,
			MaxAttempts: 5,
			DedupWindow: 10 * time.Hour,
		},
		Webhook: WebhookConfig{
			UserAgent: "Outbound Webhook",
			Timeout:   30 * time.Second,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.RateLimit.SendLimit < 0 {
		return fmt.Errorf("core: rate_limit.send_limit must not be negative")
	}
	if c.SMS.MaxAttempts <= 0 {
		return fmt.Errorf("core: sms.max_attempts must be positive")
	}
	if c.SMS.DedupWindow <= 0 {
		return fmt.Errorf("core: sms.dedup_window must be positive")
	}
	return nil
}

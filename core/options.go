package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-config/cfgx"
	opts "github.com/goliatone/go-options"
)

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type staticRawConfigLoader struct {
	Values map[string]any
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

// NewStaticRawConfigLoader wraps an already-materialized configuration map,
// typically sourced from environment parsing in the host application.
func NewStaticRawConfigLoader(values map[string]any) RawConfigLoader {
	return staticRawConfigLoader{Values: values}
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	defaultLayer := configToLayerMap(defaults, true)
	loadedLayer := configToLayerMap(loaded, false)
	runtimeLayer := configToLayerMap(runtime, false)

	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			defaultLayer,
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			loadedLayer,
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			runtimeLayer,
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.ServiceName) != "" {
		layer["service_name"] = cfg.ServiceName
	}
	if includeZero || cfg.Multitenant {
		layer["multitenant"] = cfg.Multitenant
	}

	rateLimit := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.RateLimit.RedisURL) != "" {
		rateLimit["redis_url"] = cfg.RateLimit.RedisURL
	}
	if includeZero || cfg.RateLimit.SendLimit != 0 {
		rateLimit["send_limit"] = cfg.RateLimit.SendLimit
	}
	if includeZero || cfg.RateLimit.SendWindow != 0 {
		rateLimit["send_window"] = cfg.RateLimit.SendWindow
	}
	if len(rateLimit) > 0 {
		layer["rate_limit"] = rateLimit
	}

	sms := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.SMS.GatewayURL) != "" {
		sms["gateway_url"] = cfg.SMS.GatewayURL
	}
	if includeZero || cfg.SMS.OpenTimeout != 0 {
		sms["open_timeout"] = cfg.SMS.OpenTimeout
	}
	if includeZero || cfg.SMS.ReadTimeout != 0 {
		sms["read_timeout"] = cfg.SMS.ReadTimeout
	}
	if includeZero || cfg.SMS.MaxAttempts != 0 {
		sms["max_attempts"] = cfg.SMS.MaxAttempts
	}
	if includeZero || cfg.SMS.DedupWindow != 0 {
		sms["dedup_window"] = cfg.SMS.DedupWindow
	}
	if len(sms) > 0 {
		layer["sms"] = sms
	}

	webhook := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.Webhook.UserAgent) != "" {
		webhook["user_agent"] = cfg.Webhook.UserAgent
	}
	if includeZero || cfg.Webhook.Timeout != 0 {
		webhook["timeout"] = cfg.Webhook.Timeout
	}
	if len(webhook) > 0 {
		layer["webhook"] = webhook
	}

	return layer
}

package outbound

import (
	"context"
	"fmt"

	glog "github.com/goliatone/go-logger/glog"
	repositorycache "github.com/goliatone/go-repository-cache/cache"

	"github.com/goliatone/go-outbound/adapters/gojob"
	"github.com/goliatone/go-outbound/adapters/gologger"
	"github.com/goliatone/go-outbound/command"
	"github.com/goliatone/go-outbound/core"
	"github.com/goliatone/go-outbound/dispatch"
	"github.com/goliatone/go-outbound/ratelimit"
	"github.com/goliatone/go-outbound/sms"
	sqlstore "github.com/goliatone/go-outbound/store/sql"
)

// Jobs bundles the queue-side handlers the host registers with its worker
// runtime.
type Jobs struct {
	InvitationSMS   *dispatch.InvitationSMSJob
	WebhookDispatch *dispatch.WebhookDispatchJob
}

// Commands bundles the request-path handlers the host mounts behind its
// command dispatcher.
type Commands struct {
	SendSMS         *command.SendSMSCommand
	SendTestWebhook *command.SendTestWebhookCommand
}

// Service is the assembled subsystem: stores, limiter, gateway, jobs, and
// commands wired onto one configuration.
type Service struct {
	config   core.Config
	logger   glog.Logger
	provider glog.LoggerProvider
	factory  *sqlstore.RepositoryFactory
	limiter  *ratelimit.FixedWindowLimiter
	gateway  core.SmsGateway
	enqueuer core.JobEnqueuer
	jobs     Jobs
	commands Commands
}

type Option func(*serviceOptions)

type serviceOptions struct {
	logger            glog.Logger
	loggerProvider    glog.LoggerProvider
	configProvider    core.ConfigProvider
	optionsResolver   core.OptionsResolver
	persistenceClient any
	factory           *sqlstore.RepositoryFactory
	secrets           core.SecretProvider
	cacheService      repositorycache.CacheService
	counterStore      ratelimit.CounterStore
	gateway           core.SmsGateway
	enqueuer          core.JobEnqueuer
	webhookHTTP       dispatch.HTTPDoer
}

func WithLogger(logger glog.Logger) Option {
	return func(o *serviceOptions) { o.logger = logger }
}

func WithLoggerProvider(provider glog.LoggerProvider) Option {
	return func(o *serviceOptions) { o.loggerProvider = provider }
}

func WithConfigProvider(provider core.ConfigProvider) Option {
	return func(o *serviceOptions) { o.configProvider = provider }
}

func WithOptionsResolver(resolver core.OptionsResolver) Option {
	return func(o *serviceOptions) { o.optionsResolver = resolver }
}

// WithPersistenceClient accepts a *persistence.Client, a *bun.DB, or any
// value exposing DB() *bun.DB.
func WithPersistenceClient(client any) Option {
	return func(o *serviceOptions) { o.persistenceClient = client }
}

func WithRepositoryFactory(factory *sqlstore.RepositoryFactory) Option {
	return func(o *serviceOptions) { o.factory = factory }
}

func WithSecretProvider(secrets core.SecretProvider) Option {
	return func(o *serviceOptions) { o.secrets = secrets }
}

// WithCacheService fronts the SMS job's template-override reads with the
// shared cache service.
func WithCacheService(cacheService repositorycache.CacheService) Option {
	return func(o *serviceOptions) { o.cacheService = cacheService }
}

func WithCounterStore(store ratelimit.CounterStore) Option {
	return func(o *serviceOptions) { o.counterStore = store }
}

func WithSmsGateway(gateway core.SmsGateway) Option {
	return func(o *serviceOptions) { o.gateway = gateway }
}

func WithEnqueuer(enqueuer core.JobEnqueuer) Option {
	return func(o *serviceOptions) { o.enqueuer = enqueuer }
}

func WithWebhookHTTPClient(doer dispatch.HTTPDoer) Option {
	return func(o *serviceOptions) { o.webhookHTTP = doer }
}

// New assembles the subsystem from an already-resolved configuration. The
// persistence client and job enqueuer come from the host application; the
// counter backend, gateway client, and HTTP transport fall back to the
// built-in implementations when not supplied.
func New(ctx context.Context, cfg Config, opts ...Option) (*Service, error) {
	options := collectOptions(opts)

	if err := cfg.Validate(); err != nil {
		return nil, core.MapError(err)
	}

	provider, logger := gologger.Resolve(cfg.ServiceName, options.loggerProvider, options.logger)

	factory, err := resolveFactory(cfg, options)
	if err != nil {
		return nil, err
	}
	if factory.EncryptedConfigStore() == nil {
		return nil, fmt.Errorf("outbound: secret provider is required for sms credential storage")
	}
	if options.enqueuer == nil {
		return nil, fmt.Errorf("outbound: job enqueuer is required")
	}

	enqueuer, err := gojob.NewScheduledEnqueuer(options.enqueuer, logger)
	if err != nil {
		return nil, err
	}

	counterStore := options.counterStore
	if counterStore == nil {
		counterStore = ratelimit.NewCounterStore(ctx, cfg.RateLimit.RedisURL, logger)
	}
	limiter := ratelimit.NewFixedWindowLimiter(counterStore)

	gateway := options.gateway
	if gateway == nil {
		gateway = sms.NewClient(cfg.SMS)
	}

	smsJob, err := dispatch.NewInvitationSMSJob(dispatch.InvitationSMSJobDeps{
		Submitters: factory.SubmitterStore(),
		Events:     factory.NotificationEventStore(),
		Configs:    factory.EncryptedConfigStore(),
		Templates:  factory.TemplateStore(),
		Gateway:    gateway,
		Enqueuer:   enqueuer,
		Config:     cfg.SMS,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	webhookJob, err := dispatch.NewWebhookDispatchJob(dispatch.WebhookDispatchJobDeps{
		Targets:    factory.WebhookTargetStore(),
		Submitters: factory.SubmitterStore(),
		Policy:     dispatch.TransportPolicy{Multitenant: cfg.Multitenant},
		HTTP:       options.webhookHTTP,
		Config:     cfg.Webhook,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	sendSMS, err := command.NewSendSMSCommand(command.SendSMSDeps{
		Submitters: factory.SubmitterStore(),
		Events:     factory.NotificationEventStore(),
		Limiter:    limiter,
		Enqueuer:   enqueuer,
		Config:     cfg,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	sendTestWebhook, err := command.NewSendTestWebhookCommand(command.SendTestWebhookDeps{
		Targets:    factory.WebhookTargetStore(),
		Submitters: factory.SubmitterStore(),
		Enqueuer:   enqueuer,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	return &Service{
		config:   cfg,
		logger:   logger,
		provider: provider,
		factory:  factory,
		limiter:  limiter,
		gateway:  gateway,
		enqueuer: enqueuer,
		jobs: Jobs{
			InvitationSMS:   smsJob,
			WebhookDispatch: webhookJob,
		},
		commands: Commands{
			SendSMS:         sendSMS,
			SendTestWebhook: sendTestWebhook,
		},
	}, nil
}

// Setup resolves configuration through the provider and layered resolver,
// then assembles the subsystem. cfg acts as the runtime layer and wins over
// loaded and default values.
func Setup(ctx context.Context, cfg Config, opts ...Option) (*Service, error) {
	options := collectOptions(opts)
	resolved, err := resolveConfig(ctx, cfg, options)
	if err != nil {
		return nil, err
	}
	return New(ctx, resolved, opts...)
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Logger() glog.Logger {
	if s == nil {
		return glog.Nop()
	}
	return s.logger
}

func (s *Service) LoggerProvider() glog.LoggerProvider {
	if s == nil {
		return nil
	}
	return s.provider
}

func (s *Service) Stores() *sqlstore.RepositoryFactory {
	if s == nil {
		return nil
	}
	return s.factory
}

func (s *Service) Limiter() *ratelimit.FixedWindowLimiter {
	if s == nil {
		return nil
	}
	return s.limiter
}

func (s *Service) Gateway() core.SmsGateway {
	if s == nil {
		return nil
	}
	return s.gateway
}

func (s *Service) Enqueuer() core.JobEnqueuer {
	if s == nil {
		return nil
	}
	return s.enqueuer
}

func (s *Service) Jobs() Jobs {
	if s == nil {
		return Jobs{}
	}
	return s.jobs
}

func (s *Service) Commands() Commands {
	if s == nil {
		return Commands{}
	}
	return s.commands
}

func collectOptions(opts []Option) serviceOptions {
	options := serviceOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&options)
	}
	return options
}

func resolveConfig(ctx context.Context, runtime Config, options serviceOptions) (Config, error) {
	defaults := core.DefaultConfig()

	provider := options.configProvider
	if provider == nil {
		provider = core.NewCfgxConfigProvider(nil)
	}
	loaded, err := provider.Load(ctx, defaults)
	if err != nil {
		return Config{}, err
	}

	resolver := options.optionsResolver
	if resolver == nil {
		resolver = core.GoOptionsResolver{}
	}
	return resolver.Resolve(defaults, loaded, runtime)
}

func resolveFactory(cfg Config, options serviceOptions) (*sqlstore.RepositoryFactory, error) {
	factory := options.factory
	if factory == nil {
		if options.persistenceClient == nil {
			return nil, fmt.Errorf("outbound: persistence client or repository factory is required")
		}
		factory = sqlstore.NewRepositoryFactory(options.secrets, cfg.SMS.DedupWindow)
	}
	if factory.DB() == nil || factory.SubmitterStore() == nil {
		if err := factory.BuildStores(options.persistenceClient); err != nil {
			return nil, err
		}
	}
	if options.cacheService != nil {
		if err := factory.WithCacheService(options.cacheService); err != nil {
			return nil, err
		}
	}
	return factory, nil
}

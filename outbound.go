package outbound

import (
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-outbound/core"
)

type Config = core.Config

type RateLimitConfig = core.RateLimitConfig
type SMSConfig = core.SMSConfig
type WebhookConfig = core.WebhookConfig

type ConfigProvider = core.ConfigProvider
type OptionsResolver = core.OptionsResolver
type RawConfigLoader = core.RawConfigLoader

type Submitter = core.Submitter
type NotificationEvent = core.NotificationEvent
type SmsCredentials = core.SmsCredentials
type SmsReceipt = core.SmsReceipt
type WebhookTarget = core.WebhookTarget
type JobExecutionMessage = core.JobExecutionMessage
type RecordEventInput = core.RecordEventInput

type SubmitterStore = core.SubmitterStore
type NotificationEventLedger = core.NotificationEventLedger
type SmsConfigStore = core.SmsConfigStore
type TemplateStore = core.TemplateStore
type WebhookTargetStore = core.WebhookTargetStore
type SmsGateway = core.SmsGateway
type JobEnqueuer = core.JobEnqueuer
type SecretProvider = core.SecretProvider

type Logger = core.Logger
type LoggerProvider = core.LoggerProvider

var (
	ErrSubmitterNotFound     = core.ErrSubmitterNotFound
	ErrWebhookTargetNotFound = core.ErrWebhookTargetNotFound
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

// MapError translates plain errors into the envelope the request layer
// expects.
func MapError(err error) *goerrors.Error {
	return core.MapError(err)
}

// NewStaticRawConfigLoader wraps an already-materialized configuration map.
func NewStaticRawConfigLoader(values map[string]any) RawConfigLoader {
	return core.NewStaticRawConfigLoader(values)
}

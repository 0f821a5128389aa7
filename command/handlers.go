package command

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gocmd "github.com/goliatone/go-command"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-outbound/core"
	"github.com/goliatone/go-outbound/dispatch"
	"github.com/goliatone/go-outbound/ratelimit"
)

const rateLimitKeyPrefix = "sms_send"

// RateLimitKey builds the per-sender counter key for the SMS send window.
func RateLimitKey(userID string) string {
	return rateLimitKeyPrefix + ":" + strings.TrimSpace(userID)
}

// SendSMSResult is stored on the command result collector after a successful
// send request.
type SendSMSResult struct {
	SubmitterID string
	EnqueuedAt  time.Time
}

// SendTestWebhookResult is stored on the command result collector after a
// test delivery request is queued.
type SendTestWebhookResult struct {
	WebhookTargetID string
	SubmitterID     string
}

type SendSMSDeps struct {
	Submitters core.SubmitterStore
	Events     core.NotificationEventLedger
	Limiter    *ratelimit.FixedWindowLimiter
	Enqueuer   core.JobEnqueuer
	Config     core.Config
	Logger     core.Logger
	Now        func() time.Time
}

// SendSMSCommand is the request-path gate in front of the invitation SMS
// job: it applies the per-sender rate limit, rejects recipients the job
// would skip anyway, suppresses repeats inside the dedup window, then
// enqueues and stamps sent_at.
type SendSMSCommand struct {
	submitters core.SubmitterStore
	events     core.NotificationEventLedger
	limiter    *ratelimit.FixedWindowLimiter
	enqueuer   core.JobEnqueuer
	config     core.Config
	logger     core.Logger
	now        func() time.Time
}

func NewSendSMSCommand(deps SendSMSDeps) (*SendSMSCommand, error) {
	if deps.Submitters == nil {
		return nil, fmt.Errorf("command: submitter store is required")
	}
	if deps.Events == nil {
		return nil, fmt.Errorf("command: notification event ledger is required")
	}
	if deps.Enqueuer == nil {
		return nil, fmt.Errorf("command: job enqueuer is required")
	}
	if deps.Config.RateLimit.SendWindow <= 0 {
		deps.Config.RateLimit.SendWindow = core.DefaultConfig().RateLimit.SendWindow
	}
	if deps.Config.SMS.DedupWindow <= 0 {
		deps.Config.SMS.DedupWindow = core.DefaultConfig().SMS.DedupWindow
	}
	if deps.Now == nil {
		deps.Now = func() time.Time { return time.Now().UTC() }
	}
	return &SendSMSCommand{
		submitters: deps.Submitters,
		events:     deps.Events,
		limiter:    deps.Limiter,
		enqueuer:   deps.Enqueuer,
		config:     deps.Config,
		logger:     glog.Ensure(deps.Logger),
		now:        deps.Now,
	}, nil
}

func (c *SendSMSCommand) Execute(ctx context.Context, msg SendSMSMessage) error {
	if c == nil || c.submitters == nil {
		return commandDependencyError("command: send sms command is not configured")
	}
	if err := msg.Validate(); err != nil {
		return commandInvalidInputError(err.Error())
	}

	if err := c.checkRateLimit(ctx, msg.UserID); err != nil {
		return err
	}

	submitter, err := c.submitters.Get(ctx, strings.TrimSpace(msg.SubmitterID))
	if err != nil {
		return core.MapError(err)
	}
	if !submitter.HasPhone() {
		return commandInvalidInputError("command: submitter has no phone number")
	}
	if submitter.Archived() {
		return commandInvalidInputError("command: submission is archived")
	}
	if submitter.Completed() {
		return commandConflictError("command: submitter already completed the form", map[string]any{
			"submitter_id": submitter.ID,
		})
	}

	seen, err := c.events.SeenWithin(ctx, submitter.ID, core.EventTypeSendSMS, c.config.SMS.DedupWindow)
	if err != nil {
		return core.MapError(err)
	}
	if seen {
		return commandConflictError("command: sms already sent inside the dedup window", map[string]any{
			"submitter_id": submitter.ID,
		})
	}

	now := c.now().UTC()
	if err := c.enqueuer.Enqueue(ctx, &core.JobExecutionMessage{
		JobID: dispatch.JobIDInvitationSMS,
		Parameters: map[string]any{
			dispatch.ParamSubmitterID: submitter.ID,
		},
		IdempotencyKey: strings.Join([]string{dispatch.JobIDInvitationSMS, submitter.ID}, ":"),
	}); err != nil {
		return core.MapError(err)
	}

	if err := c.submitters.MarkSent(ctx, submitter.ID, now); err != nil {
		return core.MapError(err)
	}

	c.logger.Info("sms send requested",
		"submitter_id", submitter.ID,
		"user_id", strings.TrimSpace(msg.UserID),
	)
	storeResult(ctx, SendSMSResult{SubmitterID: submitter.ID, EnqueuedAt: now})
	return nil
}

func (c *SendSMSCommand) checkRateLimit(ctx context.Context, userID string) error {
	limit := c.config.RateLimit.SendLimit
	enabled := c.limiter != nil && limit > 0
	err := c.limiter.Check(ctx, RateLimitKey(userID), limit, c.config.RateLimit.SendWindow, enabled)
	if err == nil {
		return nil
	}
	var limited ratelimit.LimitExceededError
	if errors.As(err, &limited) {
		c.logger.Warn("sms send rate limited",
			"user_id", strings.TrimSpace(userID),
			"limit", limited.Limit,
		)
		return limited.ToServiceError()
	}
	return core.MapError(err)
}

type SendTestWebhookDeps struct {
	Targets    core.WebhookTargetStore
	Submitters core.SubmitterStore
	Enqueuer   core.JobEnqueuer
	Logger     core.Logger
}

// SendTestWebhookCommand queues a one-off webhook dispatch after verifying
// both the target and the sample submitter exist, so the caller gets a 404
// here instead of a silently dropped job.
type SendTestWebhookCommand struct {
	targets    core.WebhookTargetStore
	submitters core.SubmitterStore
	enqueuer   core.JobEnqueuer
	logger     core.Logger
}

func NewSendTestWebhookCommand(deps SendTestWebhookDeps) (*SendTestWebhookCommand, error) {
	if deps.Targets == nil {
		return nil, fmt.Errorf("command: webhook target store is required")
	}
	if deps.Submitters == nil {
		return nil, fmt.Errorf("command: submitter store is required")
	}
	if deps.Enqueuer == nil {
		return nil, fmt.Errorf("command: job enqueuer is required")
	}
	return &SendTestWebhookCommand{
		targets:    deps.Targets,
		submitters: deps.Submitters,
		enqueuer:   deps.Enqueuer,
		logger:     glog.Ensure(deps.Logger),
	}, nil
}

func (c *SendTestWebhookCommand) Execute(ctx context.Context, msg SendTestWebhookMessage) error {
	if c == nil || c.targets == nil {
		return commandDependencyError("command: send test webhook command is not configured")
	}
	if err := msg.Validate(); err != nil {
		return commandInvalidInputError(err.Error())
	}

	target, err := c.targets.Get(ctx, strings.TrimSpace(msg.WebhookTargetID))
	if err != nil {
		return core.MapError(err)
	}
	submitter, err := c.submitters.Get(ctx, strings.TrimSpace(msg.SubmitterID))
	if err != nil {
		return core.MapError(err)
	}

	if err := c.enqueuer.Enqueue(ctx, &core.JobExecutionMessage{
		JobID: dispatch.JobIDWebhookDispatch,
		Parameters: map[string]any{
			dispatch.ParamWebhookTargetID: target.ID,
			dispatch.ParamSubmitterID:     submitter.ID,
		},
	}); err != nil {
		return core.MapError(err)
	}

	c.logger.Info("test webhook queued",
		"webhook_target_id", target.ID,
		"submitter_id", submitter.ID,
	)
	storeResult(ctx, SendTestWebhookResult{
		WebhookTargetID: target.ID,
		SubmitterID:     submitter.ID,
	})
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}

package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-outbound/core"
)

// JobIDInvitationSMS identifies the invitation SMS delivery job on the queue.
const JobIDInvitationSMS = "outbound.sms.invitation"

// RetryBackoff returns the delay before the re-enqueue that carries the given
// attempt number: 2m, 4m, 8m, 16m for attempts 1 through 4.
func RetryBackoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return time.Duration(1<<uint(attempt)) * time.Minute
}

// InvitationSMSJobDeps carries the collaborators of the SMS delivery job.
type InvitationSMSJobDeps struct {
	Submitters core.SubmitterStore
	Events     core.NotificationEventLedger
	Configs    core.SmsConfigStore
	Templates  core.TemplateStore
	Gateway    core.SmsGateway
	Enqueuer   core.JobEnqueuer
	Config     core.SMSConfig
	Logger     core.Logger
	Now        func() time.Time
}

// InvitationSMSJob delivers the invitation SMS for a single submitter. The
// job is terminal on every precondition miss: a submitter that already
// completed, an archived parent, a missing phone number, or an account with
// no SMS configuration all end the run without error. Delivery failures
// re-enqueue the job itself with an exponential delay until the attempt
// budget is spent.
type InvitationSMSJob struct {
	submitters core.SubmitterStore
	events     core.NotificationEventLedger
	configs    core.SmsConfigStore
	templates  core.TemplateStore
	gateway    core.SmsGateway
	enqueuer   core.JobEnqueuer
	config     core.SMSConfig
	logger     core.Logger
	now        func() time.Time
}

func NewInvitationSMSJob(deps InvitationSMSJobDeps) (*InvitationSMSJob, error) {
	if deps.Submitters == nil {
		return nil, fmt.Errorf("dispatch: submitter store is required")
	}
	if deps.Events == nil {
		return nil, fmt.Errorf("dispatch: notification event ledger is required")
	}
	if deps.Configs == nil {
		return nil, fmt.Errorf("dispatch: sms config store is required")
	}
	if deps.Gateway == nil {
		return nil, fmt.Errorf("dispatch: sms gateway is required")
	}
	if deps.Enqueuer == nil {
		return nil, fmt.Errorf("dispatch: job enqueuer is required")
	}
	if deps.Config.MaxAttempts <= 0 {
		deps.Config.MaxAttempts = core.DefaultConfig().SMS.MaxAttempts
	}
	if deps.Config.DedupWindow <= 0 {
		deps.Config.DedupWindow = core.DefaultConfig().SMS.DedupWindow
	}
	now := deps.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &InvitationSMSJob{
		submitters: deps.Submitters,
		events:     deps.Events,
		configs:    deps.Configs,
		templates:  deps.Templates,
		gateway:    deps.Gateway,
		enqueuer:   deps.Enqueuer,
		config:     deps.Config,
		logger:     glog.Ensure(deps.Logger),
		now:        now,
	}, nil
}

func (j *InvitationSMSJob) JobID() string {
	return JobIDInvitationSMS
}

func (j *InvitationSMSJob) Execute(ctx context.Context, msg *core.JobExecutionMessage) error {
	if j == nil {
		return fmt.Errorf("dispatch: invitation sms job not initialized")
	}
	if msg == nil {
		return fmt.Errorf("dispatch: execution message is required")
	}

	submitterID := stringParam(msg.Parameters, ParamSubmitterID)
	if submitterID == "" {
		return fmt.Errorf("dispatch: %s parameter is required", ParamSubmitterID)
	}
	attempt := intParam(msg.Parameters, ParamAttempt)

	submitter, err := j.submitters.Get(ctx, submitterID)
	if err != nil {
		if errors.Is(err, core.ErrSubmitterNotFound) {
			j.logger.Debug("sms skipped: submitter not found", "submitter_id", submitterID)
			return nil
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "dispatch: resolve submitter")
	}

	switch {
	case submitter.Completed():
		j.logger.Debug("sms skipped: submitter already completed", "submitter_id", submitterID)
		return nil
	case submitter.Archived():
		j.logger.Debug("sms skipped: submission or template archived", "submitter_id", submitterID)
		return nil
	case !submitter.HasPhone():
		j.logger.Debug("sms skipped: submitter has no phone", "submitter_id", submitterID)
		return nil
	}

	creds, ok, err := j.configs.Credentials(ctx, submitter.AccountID)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "dispatch: resolve sms credentials")
	}
	if !ok || !creds.Valid() {
		j.logger.Debug("sms skipped: account has no sms configuration",
			"submitter_id", submitterID, "account_id", submitter.AccountID)
		return nil
	}

	seen, err := j.events.SeenWithin(ctx, submitter.ID, core.EventTypeSendSMS, j.config.DedupWindow)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "dispatch: dedup lookup")
	}
	if seen {
		j.logger.Debug("sms skipped: already sent inside dedup window", "submitter_id", submitterID)
		return nil
	}

	template, err := ResolveTemplate(ctx, j.templates, submitter.AccountID,
		TemplateKeyInvitationSMS, DefaultInvitationSMSTemplate)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "dispatch: resolve sms template")
	}
	body := RenderTemplate(template, submitter)

	receipt, err := j.gateway.Send(ctx, submitter.Phone, body, creds)
	if err != nil {
		return j.retryDelivery(ctx, submitter.ID, attempt, err)
	}

	data := map[string]any{"provider_sid": receipt.SID}
	if _, err := j.events.Record(ctx, core.RecordEventInput{
		SubmitterID: submitter.ID,
		EventType:   core.EventTypeSendSMS,
		Data:        data,
		OccurredAt:  j.now(),
	}); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "dispatch: record sms event")
	}

	if err := j.submitters.MarkSent(ctx, submitter.ID, j.now()); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "dispatch: mark submitter sent")
	}

	j.logger.Info("sms delivered",
		"submitter_id", submitter.ID,
		"provider_sid", receipt.SID,
		"attempt", attempt)
	return nil
}

// retryDelivery schedules the next attempt or exhausts the budget. Exhaustion
// terminates the job without error so the queue does not keep redelivering a
// message that already consumed its retries.
func (j *InvitationSMSJob) retryDelivery(ctx context.Context, submitterID string, attempt int, cause error) error {
	next := attempt + 1
	if next >= j.config.MaxAttempts {
		j.logger.Error("sms delivery abandoned: attempt budget exhausted",
			"submitter_id", submitterID,
			"attempts", next,
			"error", cause)
		return nil
	}

	delay := RetryBackoff(next)
	j.logger.Warn("sms delivery failed, scheduling retry",
		"submitter_id", submitterID,
		"attempt", next,
		"delay", delay.String(),
		"error", cause)

	retry := &core.JobExecutionMessage{
		JobID: JobIDInvitationSMS,
		Parameters: map[string]any{
			ParamSubmitterID: submitterID,
			ParamAttempt:     next,
		},
		IdempotencyKey: retryIdempotencyKey(submitterID, next),
		Delay:          delay,
	}
	if err := j.enqueuer.Enqueue(ctx, retry); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "dispatch: enqueue sms retry")
	}
	return nil
}

func retryIdempotencyKey(submitterID string, attempt int) string {
	return strings.Join([]string{JobIDInvitationSMS, submitterID, fmt.Sprintf("%d", attempt)}, ":")
}

package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/google/uuid"

	"github.com/goliatone/go-outbound/core"
)

// JobIDWebhookDispatch identifies the completion webhook delivery job on the
// queue.
const JobIDWebhookDispatch = "outbound.webhook.dispatch"

const maxWebhookResponseBytes = 64 * 1024

// HTTPDoer lets tests substitute the webhook transport.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// WebhookDispatchJobDeps carries the collaborators of the webhook delivery
// job.
type WebhookDispatchJobDeps struct {
	Targets    core.WebhookTargetStore
	Submitters core.SubmitterStore
	Policy     TransportPolicy
	HTTP       HTTPDoer
	Config     core.WebhookConfig
	Logger     core.Logger
	Now        func() time.Time
	// NewRequestID overrides request id generation, mainly in tests.
	NewRequestID func() string
}

// WebhookDispatchJob delivers a single signed form-completed callback. The
// job performs exactly one POST per execution; retry cadence belongs to the
// queue, so any delivery failure surfaces as an error. Policy violations are
// also errors but carry the authz envelope so adapters can park them instead
// of retrying a URL that will never pass.
type WebhookDispatchJob struct {
	targets      core.WebhookTargetStore
	submitters   core.SubmitterStore
	policy       TransportPolicy
	http         HTTPDoer
	config       core.WebhookConfig
	logger       core.Logger
	now          func() time.Time
	newRequestID func() string
}

func NewWebhookDispatchJob(deps WebhookDispatchJobDeps) (*WebhookDispatchJob, error) {
	if deps.Targets == nil {
		return nil, fmt.Errorf("dispatch: webhook target store is required")
	}
	if deps.Submitters == nil {
		return nil, fmt.Errorf("dispatch: submitter store is required")
	}
	cfg := deps.Config
	if cfg.Timeout <= 0 {
		cfg.Timeout = core.DefaultConfig().Webhook.Timeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = core.DefaultConfig().Webhook.UserAgent
	}
	doer := deps.HTTP
	if doer == nil {
		doer = &http.Client{Timeout: cfg.Timeout}
	}
	now := deps.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	newRequestID := deps.NewRequestID
	if newRequestID == nil {
		newRequestID = uuid.NewString
	}
	return &WebhookDispatchJob{
		targets:      deps.Targets,
		submitters:   deps.Submitters,
		policy:       deps.Policy,
		http:         doer,
		config:       cfg,
		logger:       glog.Ensure(deps.Logger),
		now:          now,
		newRequestID: newRequestID,
	}, nil
}

func (j *WebhookDispatchJob) JobID() string {
	return JobIDWebhookDispatch
}

func (j *WebhookDispatchJob) Execute(ctx context.Context, msg *core.JobExecutionMessage) error {
	if j == nil {
		return fmt.Errorf("dispatch: webhook dispatch job not initialized")
	}
	if msg == nil {
		return fmt.Errorf("dispatch: execution message is required")
	}

	targetID := stringParam(msg.Parameters, ParamWebhookTargetID)
	if targetID == "" {
		return fmt.Errorf("dispatch: %s parameter is required", ParamWebhookTargetID)
	}
	submitterID := stringParam(msg.Parameters, ParamSubmitterID)
	if submitterID == "" {
		return fmt.Errorf("dispatch: %s parameter is required", ParamSubmitterID)
	}

	target, err := j.targets.Get(ctx, targetID)
	if err != nil {
		if errors.Is(err, core.ErrWebhookTargetNotFound) {
			j.logger.Debug("webhook skipped: target not found", "webhook_target_id", targetID)
			return nil
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "dispatch: resolve webhook target")
	}

	submitter, err := j.submitters.Get(ctx, submitterID)
	if err != nil {
		if errors.Is(err, core.ErrSubmitterNotFound) {
			j.logger.Debug("webhook skipped: submitter not found", "submitter_id", submitterID)
			return nil
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "dispatch: resolve submitter")
	}

	if err := j.policy.Validate(target.URL); err != nil {
		j.logger.Warn("webhook rejected by transport policy",
			"webhook_target_id", target.ID,
			"url", target.URL,
			"error", err)
		return err
	}

	now := j.now().UTC()
	payload := map[string]any{
		"event_type": core.WebhookEventFormCompleted,
		"timestamp":  now.Format(time.RFC3339),
		"data":       submitterPayload(submitter),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "dispatch: encode webhook payload")
	}

	signingKey, err := j.targets.EnsureSigningKey(ctx, target.ID)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "dispatch: ensure signing key")
	}

	timestamp := strconv.FormatInt(now.Unix(), 10)
	signature := Signature([]byte(signingKey), timestamp, body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.URL, bytes.NewReader(body))
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "dispatch: build webhook request")
	}
	req.Header.Set(HeaderContentType, "application/json")
	req.Header.Set(HeaderUserAgent, j.config.UserAgent)
	req.Header.Set(HeaderWebhookSignature, SignatureHeaderValue(signature))
	req.Header.Set(HeaderWebhookTimestamp, timestamp)
	req.Header.Set(HeaderWebhookRequestID, j.newRequestID())
	// Extra headers are applied last so accounts can override the defaults.
	for name, value := range target.ExtraHeaders {
		req.Header.Set(name, value)
	}

	resp, err := j.http.Do(req)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryExternal, "dispatch: webhook delivery failed").
			WithTextCode(core.OutboundErrorDeliveryFailed).
			WithCode(http.StatusBadGateway)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxWebhookResponseBytes))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return goerrors.New(
			fmt.Sprintf("dispatch: webhook endpoint returned status %d", resp.StatusCode),
			goerrors.CategoryExternal,
		).
			WithTextCode(core.OutboundErrorDeliveryFailed).
			WithCode(http.StatusBadGateway).
			WithMetadata(map[string]any{
				"webhook_target_id": target.ID,
				"status":            resp.StatusCode,
			})
	}

	j.logger.Info("webhook delivered",
		"webhook_target_id", target.ID,
		"submitter_id", submitter.ID,
		"status", resp.StatusCode)
	return nil
}

// submitterPayload is the webhook body's data section: the submitter record
// as downstream consumers see it.
func submitterPayload(s core.Submitter) map[string]any {
	payload := map[string]any{
		"id":            s.ID,
		"submission_id": s.SubmissionID,
		"template_id":   s.TemplateID,
		"slug":          s.Slug,
		"name":          s.Name,
		"email":         s.Email,
		"phone":         s.Phone,
		"completed_at":  formatNullableTime(s.CompletedAt),
		"sent_at":       formatNullableTime(s.SentAt),
	}
	return payload
}

func formatNullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

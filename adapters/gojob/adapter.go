package gojob

import (
	"context"
	"fmt"
	"strings"
	"time"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-outbound/core"
)

// RetryPolicy defines queue retry bounds to avoid unbounded retry loops.
type RetryPolicy struct {
	MaxAttempts     int
	MaxDelay        time.Duration
	DeadLetterOnMax bool
}

// NormalizeAttempt enforces bounded retry behavior for a nack operation.
func (p RetryPolicy) NormalizeAttempt(opts core.JobNackOptions, attempt int) core.JobNackOptions {
	out := opts
	out.Reason = strings.TrimSpace(out.Reason)
	if out.Delay < 0 {
		out.Delay = 0
	}
	if p.MaxDelay > 0 && out.Delay > p.MaxDelay {
		out.Delay = p.MaxDelay
	}
	if out.DeadLetter {
		out.Requeue = false
	}
	if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
		out.Requeue = false
		if p.DeadLetterOnMax || out.DeadLetter {
			out.DeadLetter = true
		}
	}
	if !out.Requeue && !out.DeadLetter {
		out.Requeue = true
	}
	return out
}

// ToExecutionMessage maps the outbound runtime message to go-job. Delay is a
// scheduling concern and does not cross the boundary; ScheduledEnqueuer
// consumes it before the message reaches the queue.
func ToExecutionMessage(msg *core.JobExecutionMessage) *job.ExecutionMessage {
	if msg == nil {
		return nil
	}
	return &job.ExecutionMessage{
		JobID:          strings.TrimSpace(msg.JobID),
		Parameters:     copyAnyMap(msg.Parameters),
		IdempotencyKey: strings.TrimSpace(msg.IdempotencyKey),
		DedupPolicy:    job.DeduplicationPolicy(strings.TrimSpace(msg.DedupPolicy)),
	}
}

// FromExecutionMessage maps a go-job message into the outbound contract.
func FromExecutionMessage(msg *job.ExecutionMessage) *core.JobExecutionMessage {
	if msg == nil {
		return nil
	}
	return &core.JobExecutionMessage{
		JobID:          strings.TrimSpace(msg.JobID),
		Parameters:     copyAnyMap(msg.Parameters),
		IdempotencyKey: strings.TrimSpace(msg.IdempotencyKey),
		DedupPolicy:    strings.TrimSpace(string(msg.DedupPolicy)),
	}
}

// ToNackOptions maps outbound nack options to go-job.
func ToNackOptions(opts core.JobNackOptions) queue.NackOptions {
	return queue.NackOptions{
		Delay:      opts.Delay,
		Requeue:    opts.Requeue,
		DeadLetter: opts.DeadLetter,
		Reason:     opts.Reason,
	}
}

// FromNackOptions maps go-job nack options to the outbound contract.
func FromNackOptions(opts queue.NackOptions) core.JobNackOptions {
	return core.JobNackOptions{
		Delay:      opts.Delay,
		Requeue:    opts.Requeue,
		DeadLetter: opts.DeadLetter,
		Reason:     opts.Reason,
	}
}

type EnqueuerAdapter struct {
	enqueuer queue.Enqueuer
}

func NewEnqueuerAdapter(enqueuer queue.Enqueuer) *EnqueuerAdapter {
	return &EnqueuerAdapter{enqueuer: enqueuer}
}

func (a *EnqueuerAdapter) Enqueue(ctx context.Context, msg *core.JobExecutionMessage) error {
	if a == nil || a.enqueuer == nil {
		return fmt.Errorf("gojob: enqueuer is not configured")
	}
	if msg == nil {
		return fmt.Errorf("gojob: execution message is required")
	}
	return a.enqueuer.Enqueue(ctx, ToExecutionMessage(msg))
}

// ScheduledEnqueuer honors JobExecutionMessage.Delay by holding the message
// back before it reaches the wrapped enqueuer. The hold runs off the caller's
// goroutine; enqueue failures after the delay surface through the logger
// because there is no caller left to return them to.
type ScheduledEnqueuer struct {
	base   core.JobEnqueuer
	logger core.Logger
	// afterFunc is swappable in tests.
	afterFunc func(d time.Duration, f func()) *time.Timer
}

func NewScheduledEnqueuer(base core.JobEnqueuer, logger core.Logger) (*ScheduledEnqueuer, error) {
	if base == nil {
		return nil, fmt.Errorf("gojob: base enqueuer is required")
	}
	return &ScheduledEnqueuer{
		base:      base,
		logger:    glog.Ensure(logger),
		afterFunc: time.AfterFunc,
	}, nil
}

func (s *ScheduledEnqueuer) Enqueue(ctx context.Context, msg *core.JobExecutionMessage) error {
	if s == nil || s.base == nil {
		return fmt.Errorf("gojob: scheduled enqueuer is not configured")
	}
	if msg == nil {
		return fmt.Errorf("gojob: execution message is required")
	}
	if msg.Delay <= 0 {
		return s.base.Enqueue(ctx, msg)
	}

	deferred := *msg
	deferred.Delay = 0
	s.afterFunc(msg.Delay, func() {
		// The triggering request is long gone; deliver on a fresh context.
		if err := s.base.Enqueue(context.Background(), &deferred); err != nil {
			s.logger.Error("deferred enqueue failed",
				"job_id", deferred.JobID,
				"idempotency_key", deferred.IdempotencyKey,
				"error", err)
		}
	})
	return nil
}

type DeliveryAdapter struct {
	delivery queue.Delivery
	policy   RetryPolicy
}

func NewDeliveryAdapter(delivery queue.Delivery, policy RetryPolicy) *DeliveryAdapter {
	return &DeliveryAdapter{delivery: delivery, policy: policy}
}

func (d *DeliveryAdapter) Message() *core.JobExecutionMessage {
	if d == nil || d.delivery == nil {
		return nil
	}
	return FromExecutionMessage(d.delivery.Message())
}

func (d *DeliveryAdapter) Ack(ctx context.Context) error {
	if d == nil || d.delivery == nil {
		return fmt.Errorf("gojob: delivery is not configured")
	}
	return d.delivery.Ack(ctx)
}

func (d *DeliveryAdapter) Nack(ctx context.Context, opts core.JobNackOptions) error {
	return d.NackForAttempt(ctx, opts, 0)
}

func (d *DeliveryAdapter) NackForAttempt(ctx context.Context, opts core.JobNackOptions, attempt int) error {
	if d == nil || d.delivery == nil {
		return fmt.Errorf("gojob: delivery is not configured")
	}
	normalized := d.policy.NormalizeAttempt(opts, attempt)
	return d.delivery.Nack(ctx, ToNackOptions(normalized))
}

type DequeuerAdapter struct {
	dequeuer queue.Dequeuer
	policy   RetryPolicy
}

func NewDequeuerAdapter(dequeuer queue.Dequeuer, policy RetryPolicy) *DequeuerAdapter {
	return &DequeuerAdapter{dequeuer: dequeuer, policy: policy}
}

func (a *DequeuerAdapter) Dequeue(ctx context.Context) (core.JobDelivery, error) {
	if a == nil || a.dequeuer == nil {
		return nil, fmt.Errorf("gojob: dequeuer is not configured")
	}
	delivery, err := a.dequeuer.Dequeue(ctx)
	if err != nil {
		return nil, err
	}
	return NewDeliveryAdapter(delivery, a.policy), nil
}

// LoggingWorkerHook reports queue worker lifecycle transitions through the
// shared logger.
type LoggingWorkerHook struct {
	logger core.Logger
}

func NewLoggingWorkerHook(logger core.Logger) *LoggingWorkerHook {
	return &LoggingWorkerHook{logger: glog.Ensure(logger)}
}

func (h *LoggingWorkerHook) OnStart(_ context.Context, event worker.Event) {
	if h == nil {
		return
	}
	h.logger.Debug("job started", "job_id", eventJobID(event), "attempt", event.Attempt)
}

func (h *LoggingWorkerHook) OnSuccess(_ context.Context, event worker.Event) {
	if h == nil {
		return
	}
	h.logger.Debug("job succeeded",
		"job_id", eventJobID(event),
		"attempt", event.Attempt,
		"duration", event.Duration.String())
}

func (h *LoggingWorkerHook) OnFailure(_ context.Context, event worker.Event) {
	if h == nil {
		return
	}
	h.logger.Error("job failed",
		"job_id", eventJobID(event),
		"attempt", event.Attempt,
		"error", event.Err)
}

func (h *LoggingWorkerHook) OnRetry(_ context.Context, event worker.Event) {
	if h == nil {
		return
	}
	h.logger.Warn("job retrying",
		"job_id", eventJobID(event),
		"attempt", event.Attempt,
		"delay", event.Delay.String())
}

func eventJobID(event worker.Event) string {
	if event.Message != nil {
		return event.Message.JobID
	}
	if event.Delivery != nil {
		if msg := event.Delivery.Message(); msg != nil {
			return msg.JobID
		}
	}
	return ""
}

func copyAnyMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

var (
	_ core.JobEnqueuer = (*EnqueuerAdapter)(nil)
	_ core.JobEnqueuer = (*ScheduledEnqueuer)(nil)
	_ core.JobDelivery = (*DeliveryAdapter)(nil)
	_ core.JobDequeuer = (*DequeuerAdapter)(nil)
	_ worker.Hook      = (*LoggingWorkerHook)(nil)
)

package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-outbound/core"
)

type capturedRequest struct {
	headers http.Header
	body    []byte
}

func newWebhookJobFixture(t *testing.T, targetURL string, policy TransportPolicy) (*WebhookDispatchJob, *fakeWebhookTargetStore, *fakeSubmitterStore) {
	t.Helper()

	targets := &fakeWebhookTargetStore{
		targets: map[string]core.WebhookTarget{
			"wh-1": {
				ID:         "wh-1",
				AccountID:  "acct-1",
				URL:        targetURL,
				SigningKey: "whsec_test_key",
			},
		},
		signingKey: "whsec_test_key",
	}
	submitters := &fakeSubmitterStore{
		submitters: map[string]core.Submitter{"sub-1": testSubmitter()},
	}

	job, err := NewWebhookDispatchJob(WebhookDispatchJobDeps{
		Targets:      targets,
		Submitters:   submitters,
		Policy:       policy,
		Config:       core.DefaultConfig().Webhook,
		Now:          func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) },
		NewRequestID: func() string { return "req-fixed" },
	})
	if err != nil {
		t.Fatalf("expected job construction to succeed, got %v", err)
	}
	return job, targets, submitters
}

func webhookMessage() *core.JobExecutionMessage {
	return &core.JobExecutionMessage{
		JobID: JobIDWebhookDispatch,
		Parameters: map[string]any{
			ParamWebhookTargetID: "wh-1",
			ParamSubmitterID:     "sub-1",
		},
	}
}

func TestWebhookDispatchJob_DeliversSignedPayload(t *testing.T) {
	received := make(chan capturedRequest, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		received <- capturedRequest{headers: r.Header.Clone(), body: body}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	job, targets, _ := newWebhookJobFixture(t, server.URL, TransportPolicy{})

	if err := job.Execute(context.Background(), webhookMessage()); err != nil {
		t.Fatalf("expected delivery to succeed, got %v", err)
	}

	var req capturedRequest
	select {
	case req = <-received:
	default:
		t.Fatalf("expected the endpoint to receive a request")
	}

	if got := req.headers.Get(HeaderUserAgent); got != "Outbound Webhook" {
		t.Fatalf("expected default user agent, got %q", got)
	}
	if got := req.headers.Get(HeaderContentType); got != "application/json" {
		t.Fatalf("expected json content type, got %q", got)
	}
	if got := req.headers.Get(HeaderWebhookRequestID); got != "req-fixed" {
		t.Fatalf("expected injected request id, got %q", got)
	}

	timestamp := req.headers.Get(HeaderWebhookTimestamp)
	if _, err := strconv.ParseInt(timestamp, 10, 64); err != nil {
		t.Fatalf("expected unix timestamp header, got %q", timestamp)
	}

	wantSignature := SignatureHeaderValue(Signature([]byte("whsec_test_key"), timestamp, req.body))
	if got := req.headers.Get(HeaderWebhookSignature); got != wantSignature {
		t.Fatalf("expected signature %q, got %q", wantSignature, got)
	}

	var payload struct {
		EventType string         `json:"event_type"`
		Timestamp string         `json:"timestamp"`
		Data      map[string]any `json:"data"`
	}
	if err := json.Unmarshal(req.body, &payload); err != nil {
		t.Fatalf("expected json body, got %v", err)
	}
	if payload.EventType != core.WebhookEventFormCompleted {
		t.Fatalf("expected form.completed event, got %s", payload.EventType)
	}
	if _, err := time.Parse(time.RFC3339, payload.Timestamp); err != nil {
		t.Fatalf("expected RFC3339 timestamp, got %q", payload.Timestamp)
	}
	if payload.Data["id"] != "sub-1" {
		t.Fatalf("expected submitter payload, got %v", payload.Data)
	}

	if targets.ensureCalls != 1 {
		t.Fatalf("expected one signing key resolution, got %d", targets.ensureCalls)
	}
}

func TestWebhookDispatchJob_AppliesExtraHeadersLast(t *testing.T) {
	received := make(chan capturedRequest, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received <- capturedRequest{headers: r.Header.Clone()}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	job, targets, _ := newWebhookJobFixture(t, server.URL, TransportPolicy{})
	target := targets.targets["wh-1"]
	target.ExtraHeaders = map[string]string{
		"Authorization": "Bearer token",
		"User-Agent":    "Custom Agent",
	}
	targets.targets["wh-1"] = target

	if err := job.Execute(context.Background(), webhookMessage()); err != nil {
		t.Fatalf("expected delivery to succeed, got %v", err)
	}

	req := <-received
	if got := req.headers.Get("Authorization"); got != "Bearer token" {
		t.Fatalf("expected extra header, got %q", got)
	}
	if got := req.headers.Get(HeaderUserAgent); got != "Custom Agent" {
		t.Fatalf("expected extra header to override default, got %q", got)
	}
}

func TestWebhookDispatchJob_BlocksLocalhostBeforeTransport(t *testing.T) {
	job, _, _ := newWebhookJobFixture(t, "https://localhost/hooks", TransportPolicy{Multitenant: true})
	job.http = failingDoer{t: t}

	err := job.Execute(context.Background(), webhookMessage())
	if err == nil {
		t.Fatalf("expected policy violation")
	}
	var policyErr PolicyViolationError
	if !errors.As(err, &policyErr) {
		t.Fatalf("expected PolicyViolationError, got %T: %v", err, err)
	}
}

func TestWebhookDispatchJob_RequiresHTTPSWhenMultitenant(t *testing.T) {
	job, _, _ := newWebhookJobFixture(t, "http://example.com/hooks", TransportPolicy{Multitenant: true})
	job.http = failingDoer{t: t}

	if err := job.Execute(context.Background(), webhookMessage()); err == nil {
		t.Fatalf("expected policy violation for plain http")
	}
}

func TestWebhookDispatchJob_NoopWhenTargetOrSubmitterMissing(t *testing.T) {
	t.Run("target missing", func(t *testing.T) {
		job, targets, _ := newWebhookJobFixture(t, "https://example.com", TransportPolicy{})
		job.http = failingDoer{t: t}
		delete(targets.targets, "wh-1")

		if err := job.Execute(context.Background(), webhookMessage()); err != nil {
			t.Fatalf("expected no-op for missing target, got %v", err)
		}
	})

	t.Run("submitter missing", func(t *testing.T) {
		job, _, submitters := newWebhookJobFixture(t, "https://example.com", TransportPolicy{})
		job.http = failingDoer{t: t}
		delete(submitters.submitters, "sub-1")

		if err := job.Execute(context.Background(), webhookMessage()); err != nil {
			t.Fatalf("expected no-op for missing submitter, got %v", err)
		}
	})
}

func TestWebhookDispatchJob_ErrorsOnNon2xxResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	job, _, _ := newWebhookJobFixture(t, server.URL, TransportPolicy{})

	err := job.Execute(context.Background(), webhookMessage())
	if err == nil {
		t.Fatalf("expected delivery error for 500 response")
	}

	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		t.Fatalf("expected enveloped error, got %T", err)
	}
	if richErr.Category != goerrors.CategoryExternal {
		t.Fatalf("expected external category, got %s", richErr.Category)
	}
	if richErr.TextCode != core.OutboundErrorDeliveryFailed {
		t.Fatalf("expected delivery failed text code, got %s", richErr.TextCode)
	}
}

func TestWebhookDispatchJob_ErrorsOnTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	server.Close()

	job, _, _ := newWebhookJobFixture(t, server.URL, TransportPolicy{})

	if err := job.Execute(context.Background(), webhookMessage()); err == nil {
		t.Fatalf("expected transport failure to surface")
	}
}

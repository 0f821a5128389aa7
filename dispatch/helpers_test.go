package dispatch

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/goliatone/go-outbound/core"
)

type fakeSubmitterStore struct {
	submitters map[string]core.Submitter
	markCalls  []string
	markErr    error
}

func (s *fakeSubmitterStore) Get(_ context.Context, id string) (core.Submitter, error) {
	submitter, ok := s.submitters[id]
	if !ok {
		return core.Submitter{}, core.ErrSubmitterNotFound
	}
	return submitter, nil
}

func (s *fakeSubmitterStore) MarkSent(_ context.Context, id string, _ time.Time) error {
	if s.markErr != nil {
		return s.markErr
	}
	s.markCalls = append(s.markCalls, id)
	return nil
}

type fakeEventLedger struct {
	seen      bool
	seenErr   error
	records   []core.RecordEventInput
	recordErr error
}

func (l *fakeEventLedger) Record(_ context.Context, input core.RecordEventInput) (bool, error) {
	if l.recordErr != nil {
		return false, l.recordErr
	}
	l.records = append(l.records, input)
	return true, nil
}

func (l *fakeEventLedger) SeenWithin(_ context.Context, _ string, _ string, _ time.Duration) (bool, error) {
	return l.seen, l.seenErr
}

type fakeSmsConfigStore struct {
	creds core.SmsCredentials
	ok    bool
	err   error
}

func (s *fakeSmsConfigStore) Credentials(_ context.Context, _ string) (core.SmsCredentials, bool, error) {
	return s.creds, s.ok, s.err
}

type fakeTemplateStore struct {
	template string
	ok       bool
	err      error
}

func (s *fakeTemplateStore) MessageTemplate(_ context.Context, _ string, _ string) (string, bool, error) {
	return s.template, s.ok, s.err
}

type gatewayCall struct {
	to   string
	body string
}

type fakeSmsGateway struct {
	receipt core.SmsReceipt
	err     error
	calls   []gatewayCall
}

func (g *fakeSmsGateway) Send(_ context.Context, to string, body string, _ core.SmsCredentials) (core.SmsReceipt, error) {
	g.calls = append(g.calls, gatewayCall{to: to, body: body})
	if g.err != nil {
		return core.SmsReceipt{}, g.err
	}
	return g.receipt, nil
}

type fakeEnqueuer struct {
	messages []*core.JobExecutionMessage
	err      error
}

func (e *fakeEnqueuer) Enqueue(_ context.Context, msg *core.JobExecutionMessage) error {
	if e.err != nil {
		return e.err
	}
	e.messages = append(e.messages, msg)
	return nil
}

type fakeWebhookTargetStore struct {
	targets     map[string]core.WebhookTarget
	signingKey  string
	ensureCalls int
	ensureErr   error
}

func (s *fakeWebhookTargetStore) Get(_ context.Context, id string) (core.WebhookTarget, error) {
	target, ok := s.targets[id]
	if !ok {
		return core.WebhookTarget{}, core.ErrWebhookTargetNotFound
	}
	return target, nil
}

func (s *fakeWebhookTargetStore) EnsureSigningKey(_ context.Context, _ string) (string, error) {
	if s.ensureErr != nil {
		return "", s.ensureErr
	}
	s.ensureCalls++
	return s.signingKey, nil
}

type failingDoer struct {
	t *testing.T
}

func (d failingDoer) Do(_ *http.Request) (*http.Response, error) {
	d.t.Fatalf("transport must not be reached")
	return nil, nil
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func testSubmitter() core.Submitter {
	return core.Submitter{
		ID:            "sub-1",
		AccountID:     "acct-1",
		SubmissionID:  "subm-1",
		TemplateID:    "tmpl-1",
		Slug:          "abc123",
		Name:          "Ada Lovelace",
		Email:         "ada@example.com",
		Phone:         "+15550001111",
		TemplateName:  "NDA",
		InvitationURL: "https://forms.example.com/s/abc123",
	}
}

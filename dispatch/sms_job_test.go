package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-outbound/core"
)

func newSMSJobFixture(t *testing.T) (*InvitationSMSJob, *fakeSubmitterStore, *fakeEventLedger, *fakeSmsGateway, *fakeEnqueuer) {
	t.Helper()

	submitters := &fakeSubmitterStore{
		submitters: map[string]core.Submitter{"sub-1": testSubmitter()},
	}
	events := &fakeEventLedger{}
	gateway := &fakeSmsGateway{receipt: core.SmsReceipt{SID: "SM123", Status: "queued"}}
	enqueuer := &fakeEnqueuer{}

	job, err := NewInvitationSMSJob(InvitationSMSJobDeps{
		Submitters: submitters,
		Events:     events,
		Configs: &fakeSmsConfigStore{
			creds: core.SmsCredentials{AccountSID: "AC1", AuthToken: "tok", FromNumber: "+15559990000"},
			ok:    true,
		},
		Templates: &fakeTemplateStore{},
		Gateway:   gateway,
		Enqueuer:  enqueuer,
		Config:    core.DefaultConfig().SMS,
		Now:       func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("expected job construction to succeed, got %v", err)
	}
	return job, submitters, events, gateway, enqueuer
}

func smsMessage(attempt int) *core.JobExecutionMessage {
	return &core.JobExecutionMessage{
		JobID: JobIDInvitationSMS,
		Parameters: map[string]any{
			ParamSubmitterID: "sub-1",
			ParamAttempt:     attempt,
		},
	}
}

func TestInvitationSMSJob_DeliversRecordsAndMarksSent(t *testing.T) {
	job, submitters, events, gateway, enqueuer := newSMSJobFixture(t)

	if err := job.Execute(context.Background(), smsMessage(0)); err != nil {
		t.Fatalf("expected delivery to succeed, got %v", err)
	}

	if len(gateway.calls) != 1 {
		t.Fatalf("expected one gateway call, got %d", len(gateway.calls))
	}
	call := gateway.calls[0]
	if call.to != "+15550001111" {
		t.Fatalf("expected delivery to submitter phone, got %s", call.to)
	}
	want := "Hi Ada Lovelace, you are invited to sign NDA: https://forms.example.com/s/abc123"
	if call.body != want {
		t.Fatalf("expected rendered default template %q, got %q", want, call.body)
	}

	if len(events.records) != 1 {
		t.Fatalf("expected one recorded event, got %d", len(events.records))
	}
	record := events.records[0]
	if record.EventType != core.EventTypeSendSMS {
		t.Fatalf("expected send_sms event, got %s", record.EventType)
	}
	if record.Data["provider_sid"] != "SM123" {
		t.Fatalf("expected provider sid in event data, got %v", record.Data)
	}

	if len(submitters.markCalls) != 1 || submitters.markCalls[0] != "sub-1" {
		t.Fatalf("expected submitter marked sent, got %v", submitters.markCalls)
	}
	if len(enqueuer.messages) != 0 {
		t.Fatalf("expected no retry on success, got %d", len(enqueuer.messages))
	}
}

func TestInvitationSMSJob_PreconditionsEndJobWithoutError(t *testing.T) {
	completed := testSubmitter()
	completed.CompletedAt = timePtr(time.Now().UTC())

	archived := testSubmitter()
	archived.SubmissionArchivedAt = timePtr(time.Now().UTC())

	templateArchived := testSubmitter()
	templateArchived.TemplateArchivedAt = timePtr(time.Now().UTC())

	noPhone := testSubmitter()
	noPhone.Phone = "  "

	cases := []struct {
		name      string
		submitter *core.Submitter
	}{
		{name: "submitter not found", submitter: nil},
		{name: "already completed", submitter: &completed},
		{name: "submission archived", submitter: &archived},
		{name: "template archived", submitter: &templateArchived},
		{name: "no phone", submitter: &noPhone},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			job, submitters, events, gateway, _ := newSMSJobFixture(t)
			if tc.submitter == nil {
				delete(submitters.submitters, "sub-1")
			} else {
				submitters.submitters["sub-1"] = *tc.submitter
			}

			if err := job.Execute(context.Background(), smsMessage(0)); err != nil {
				t.Fatalf("expected no-op, got %v", err)
			}
			if len(gateway.calls) != 0 {
				t.Fatalf("expected gateway untouched, got %d calls", len(gateway.calls))
			}
			if len(events.records) != 0 {
				t.Fatalf("expected no events recorded, got %d", len(events.records))
			}
		})
	}
}

func TestInvitationSMSJob_SkipsWhenAccountHasNoConfig(t *testing.T) {
	job, _, _, gateway, _ := newSMSJobFixture(t)
	job.configs = &fakeSmsConfigStore{ok: false}

	if err := job.Execute(context.Background(), smsMessage(0)); err != nil {
		t.Fatalf("expected no-op without sms config, got %v", err)
	}
	if len(gateway.calls) != 0 {
		t.Fatalf("expected gateway untouched, got %d calls", len(gateway.calls))
	}
}

func TestInvitationSMSJob_SkipsWhenSeenInsideDedupWindow(t *testing.T) {
	job, submitters, events, gateway, _ := newSMSJobFixture(t)
	events.seen = true

	if err := job.Execute(context.Background(), smsMessage(0)); err != nil {
		t.Fatalf("expected dedup skip, got %v", err)
	}
	if len(gateway.calls) != 0 {
		t.Fatalf("expected gateway untouched, got %d calls", len(gateway.calls))
	}
	if len(submitters.markCalls) != 0 {
		t.Fatalf("expected submitter untouched, got %v", submitters.markCalls)
	}
}

func TestInvitationSMSJob_UsesAccountTemplateOverride(t *testing.T) {
	job, _, _, gateway, _ := newSMSJobFixture(t)
	job.templates = &fakeTemplateStore{
		template: "Sign here: {{submitter.link}}",
		ok:       true,
	}

	if err := job.Execute(context.Background(), smsMessage(0)); err != nil {
		t.Fatalf("expected delivery to succeed, got %v", err)
	}
	if len(gateway.calls) != 1 {
		t.Fatalf("expected one gateway call, got %d", len(gateway.calls))
	}
	want := "Sign here: https://forms.example.com/s/abc123"
	if gateway.calls[0].body != want {
		t.Fatalf("expected override body %q, got %q", want, gateway.calls[0].body)
	}
}

func TestInvitationSMSJob_ReschedulesWithBackoffOnDeliveryFailure(t *testing.T) {
	job, submitters, events, gateway, enqueuer := newSMSJobFixture(t)
	gateway.err = errors.New("gateway timeout")

	if err := job.Execute(context.Background(), smsMessage(0)); err != nil {
		t.Fatalf("expected retry to be scheduled without error, got %v", err)
	}

	if len(enqueuer.messages) != 1 {
		t.Fatalf("expected one retry enqueued, got %d", len(enqueuer.messages))
	}
	retry := enqueuer.messages[0]
	if retry.JobID != JobIDInvitationSMS {
		t.Fatalf("expected retry on same job, got %s", retry.JobID)
	}
	if got := retry.Parameters[ParamAttempt]; got != 1 {
		t.Fatalf("expected attempt 1, got %v", got)
	}
	if retry.Delay != 2*time.Minute {
		t.Fatalf("expected 2m delay for attempt 1, got %s", retry.Delay)
	}
	if retry.IdempotencyKey == "" {
		t.Fatalf("expected retry idempotency key")
	}

	if len(events.records) != 0 {
		t.Fatalf("expected no event on failed delivery, got %d", len(events.records))
	}
	if len(submitters.markCalls) != 0 {
		t.Fatalf("expected submitter not marked sent, got %v", submitters.markCalls)
	}
}

func TestInvitationSMSJob_ExhaustsAttemptBudget(t *testing.T) {
	job, _, _, gateway, enqueuer := newSMSJobFixture(t)
	gateway.err = errors.New("gateway timeout")

	// Attempt 4 is the fifth execution; the budget of 5 is spent.
	if err := job.Execute(context.Background(), smsMessage(4)); err != nil {
		t.Fatalf("expected exhaustion to terminate without error, got %v", err)
	}
	if len(enqueuer.messages) != 0 {
		t.Fatalf("expected no further retries, got %d", len(enqueuer.messages))
	}
}

func TestInvitationSMSJob_PropagatesLedgerFailure(t *testing.T) {
	job, submitters, events, _, _ := newSMSJobFixture(t)
	events.recordErr = errors.New("ledger unavailable")

	if err := job.Execute(context.Background(), smsMessage(0)); err == nil {
		t.Fatalf("expected ledger failure to propagate")
	}
	if len(submitters.markCalls) != 0 {
		t.Fatalf("expected submitter not marked when event recording fails")
	}
}

func TestInvitationSMSJob_RequiresSubmitterParameter(t *testing.T) {
	job, _, _, _, _ := newSMSJobFixture(t)

	err := job.Execute(context.Background(), &core.JobExecutionMessage{
		JobID:      JobIDInvitationSMS,
		Parameters: map[string]any{},
	})
	if err == nil {
		t.Fatalf("expected missing parameter error")
	}
}

func TestRetryBackoff(t *testing.T) {
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{attempt: 1, want: 2 * time.Minute},
		{attempt: 2, want: 4 * time.Minute},
		{attempt: 3, want: 8 * time.Minute},
		{attempt: 4, want: 16 * time.Minute},
	}
	for _, tc := range cases {
		if got := RetryBackoff(tc.attempt); got != tc.want {
			t.Fatalf("attempt %d: expected %s, got %s", tc.attempt, tc.want, got)
		}
	}
}

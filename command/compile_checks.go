package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[SendSMSMessage]         = (*SendSMSCommand)(nil)
	_ gocmd.Commander[SendTestWebhookMessage] = (*SendTestWebhookCommand)(nil)
)

package sms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-outbound/core"
)

const defaultGatewayBaseURL = "https://api.twilio.com/2010-04-01"

const maxResponseBodyBytes int64 = 1 << 20 // 1 MiB

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// GatewayError is the provider's rejection of a message: a non-2xx response
// carrying a message field, or the raw body when the response is not JSON.
// Transport-level failures are a different error kind so callers can apply a
// different retry policy.
type GatewayError struct {
	StatusCode int
	Message    string
}

func (e GatewayError) Error() string {
	return fmt.Sprintf("sms: gateway rejected message (status %d): %s", e.StatusCode, e.Message)
}

func (e GatewayError) ToServiceError() *goerrors.Error {
	return goerrors.New(e.Error(), goerrors.CategoryOperation).
		WithCode(http.StatusBadGateway).
		WithTextCode(core.OutboundErrorDeliveryFailed).
		WithMetadata(map[string]any{
			"status_code": e.StatusCode,
			"message":     e.Message,
		})
}

// Client wraps a Twilio-style Messages API. One POST per send, basic auth
// from the per-account credentials, URL-encoded form body.
type Client struct {
	HTTP    HTTPDoer
	BaseURL string
}

// NewClient builds a client whose connection open timeout and total request
// deadline come from the SMS configuration.
func NewClient(cfg core.SMSConfig) *Client {
	openTimeout := cfg.OpenTimeout
	if openTimeout <= 0 {
		openTimeout = core.DefaultConfig().SMS.OpenTimeout
	}
	readTimeout := cfg.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = core.DefaultConfig().SMS.ReadTimeout
	}
	baseURL := strings.TrimSpace(cfg.GatewayURL)
	if baseURL == "" {
		baseURL = defaultGatewayBaseURL
	}
	return &Client{
		HTTP: &http.Client{
			Timeout: readTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: openTimeout}).DialContext,
			},
		},
		BaseURL: baseURL,
	}
}

func (c *Client) Send(ctx context.Context, to string, body string, creds core.SmsCredentials) (core.SmsReceipt, error) {
	if c == nil || c.HTTP == nil {
		return core.SmsReceipt{}, fmt.Errorf("sms: client requires an http client")
	}
	if !creds.Valid() {
		return core.SmsReceipt{}, fmt.Errorf("sms: account credentials are required")
	}
	to = strings.TrimSpace(to)
	if to == "" {
		return core.SmsReceipt{}, fmt.Errorf("sms: destination number is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	endpoint := fmt.Sprintf(
		"%s/Accounts/%s/Messages.json",
		strings.TrimRight(c.baseURL(), "/"),
		url.PathEscape(creds.AccountSID),
	)
	form := url.Values{}
	form.Set("To", to)
	form.Set("From", creds.FromNumber)
	form.Set("Body", body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return core.SmsReceipt{}, goerrors.Wrap(err, goerrors.CategoryBadInput, "sms: create gateway request").
			WithCode(http.StatusBadRequest).
			WithTextCode(core.OutboundErrorBadInput)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(creds.AccountSID, creds.AuthToken)

	res, err := c.HTTP.Do(req)
	if err != nil {
		return core.SmsReceipt{}, goerrors.Wrap(err, goerrors.CategoryExternal, "sms: execute gateway request").
			WithCode(http.StatusBadGateway).
			WithTextCode(core.OutboundErrorDeliveryFailed).
			WithMetadata(map[string]any{"to": to})
	}
	defer res.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBodyBytes))
	if err != nil {
		return core.SmsReceipt{}, goerrors.Wrap(err, goerrors.CategoryExternal, "sms: read gateway response").
			WithCode(http.StatusBadGateway).
			WithTextCode(core.OutboundErrorDeliveryFailed)
	}

	if res.StatusCode >= 200 && res.StatusCode < 300 {
		return parseReceipt(payload), nil
	}

	message := strings.TrimSpace(string(payload))
	parsed := map[string]any{}
	if err := json.Unmarshal(payload, &parsed); err == nil {
		if value := strings.TrimSpace(fmt.Sprint(parsed["message"])); value != "" && value != "<nil>" {
			message = value
		}
	}
	return core.SmsReceipt{}, GatewayError{StatusCode: res.StatusCode, Message: message}
}

// parseReceipt tolerates empty and non-JSON success bodies: some providers
// return nothing for accepted-but-unqueued states.
func parseReceipt(payload []byte) core.SmsReceipt {
	parsed := map[string]any{}
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return core.SmsReceipt{Raw: map[string]any{}}
	}
	receipt := core.SmsReceipt{Raw: parsed}
	if value := strings.TrimSpace(fmt.Sprint(parsed["sid"])); value != "" && value != "<nil>" {
		receipt.SID = value
	}
	if value := strings.TrimSpace(fmt.Sprint(parsed["status"])); value != "" && value != "<nil>" {
		receipt.Status = value
	}
	return receipt
}

func (c *Client) baseURL() string {
	if c != nil && strings.TrimSpace(c.BaseURL) != "" {
		return strings.TrimSpace(c.BaseURL)
	}
	return defaultGatewayBaseURL
}

// IsTransportError reports whether err is a network-level failure rather
// than a provider rejection.
func IsTransportError(err error) bool {
	if err == nil {
		return false
	}
	var gatewayErr GatewayError
	if errors.As(err, &gatewayErr) {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.Category == goerrors.CategoryExternal
	}
	return false
}

var _ core.SmsGateway = (*Client)(nil)

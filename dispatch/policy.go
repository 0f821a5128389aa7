package dispatch

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-outbound/core"
)

// localhostNames are hostnames and literal addresses a hosted deployment must
// never deliver to. Matches are exact against the lowercased URL host.
var localhostNames = []string{
	"localhost",
	"127.0.0.1",
	"0.0.0.0",
	"::1",
	"[::1]",
}

// PolicyViolationError is fatal: a violating target is misconfiguration or an
// SSRF attempt, not a transient fault, so the job must fail without retry.
type PolicyViolationError struct {
	URL    string
	Reason string
}

func (e PolicyViolationError) Error() string {
	return fmt.Sprintf("dispatch: webhook target %q rejected: %s", strings.TrimSpace(e.URL), e.Reason)
}

func (e PolicyViolationError) ToServiceError() *goerrors.Error {
	return goerrors.New(e.Error(), goerrors.CategoryAuthz).
		WithCode(http.StatusForbidden).
		WithTextCode(core.OutboundErrorPolicyViolation).
		WithMetadata(map[string]any{
			"url":    strings.TrimSpace(e.URL),
			"reason": e.Reason,
		})
}

// TransportPolicy gates outbound webhook delivery. The gate only applies in
// multi-tenant mode: single-tenant deployments may target internal networks
// intentionally.
type TransportPolicy struct {
	Multitenant bool
}

func (p TransportPolicy) Validate(rawURL string) error {
	if !p.Multitenant {
		return nil
	}
	trimmed := strings.TrimSpace(rawURL)
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return PolicyViolationError{URL: trimmed, Reason: "invalid url"}
	}
	if !strings.EqualFold(parsed.Scheme, "https") {
		return PolicyViolationError{URL: trimmed, Reason: "only https is allowed"}
	}
	host := strings.ToLower(strings.TrimSpace(parsed.Hostname()))
	for _, name := range localhostNames {
		if host == name {
			return PolicyViolationError{URL: trimmed, Reason: "localhost targets are not allowed"}
		}
	}
	return nil
}

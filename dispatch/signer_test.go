package dispatch

import (
	"strings"
	"testing"
)

func TestSignature_KnownVector(t *testing.T) {
	got := Signature(
		[]byte("whsec_test_key"),
		"1700000000",
		[]byte(`{"event_type":"form.completed"}`),
	)
	want := "4ebff07b376535a920db9bf12be1215abaad002b8d2c632cc0dc852cc227ce78"
	if got != want {
		t.Fatalf("expected signature %s, got %s", want, got)
	}
}

func TestSignature_SensitivityToInputs(t *testing.T) {
	base := Signature([]byte("key"), "100", []byte("body"))

	if got := Signature([]byte("other"), "100", []byte("body")); got == base {
		t.Fatalf("expected different signature for different key")
	}
	if got := Signature([]byte("key"), "101", []byte("body")); got == base {
		t.Fatalf("expected different signature for different timestamp")
	}
	if got := Signature([]byte("key"), "100", []byte("body2")); got == base {
		t.Fatalf("expected different signature for different body")
	}
	// "10" + "0.body" must not collide with "100" + ".body".
	if got := Signature([]byte("key"), "10", []byte("0.body")); got == base {
		t.Fatalf("expected timestamp and body to be separated")
	}
}

func TestSignatureHeaderValue(t *testing.T) {
	value := SignatureHeaderValue("abc123")
	if value != "sha256=abc123" {
		t.Fatalf("expected sha256 prefixed header value, got %q", value)
	}
	if !strings.HasPrefix(value, "sha256=") {
		t.Fatalf("expected algorithm tag prefix, got %q", value)
	}
}

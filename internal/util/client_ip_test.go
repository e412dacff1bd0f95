package util

import (
	"net/http/httptest"
	"testing"
)

func TestClientIPForwardedFor(t *testing.T) {
	r := httptest.NewRequest("POST", "/ai_chat/send", nil)
	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	r.RemoteAddr = "10.0.0.1:42180"
	if got := ClientIP(r); got != "203.0.113.7" {
		t.Fatalf("expected forwarded client ip, got %q", got)
	}
}

func TestClientIPRealIP(t *testing.T) {
	r := httptest.NewRequest("POST", "/ai_chat/send", nil)
	r.Header.Set("X-Real-IP", "198.51.100.9")
	r.RemoteAddr = "10.0.0.1:42180"
	if got := ClientIP(r); got != "198.51.100.9" {
		t.Fatalf("expected real ip, got %q", got)
	}
}

func TestClientIPRemoteAddr(t *testing.T) {
	r := httptest.NewRequest("POST", "/ai_chat/send", nil)
	r.RemoteAddr = "192.0.2.4:55001"
	if got := ClientIP(r); got != "192.0.2.4" {
		t.Fatalf("expected remote addr host, got %q", got)
	}
}

func TestHashIdentityStableAndShort(t *testing.T) {
	a := HashIdentity("user-42")
	b := HashIdentity("user-42")
	if a != b {
		t.Fatalf("hash should be stable: %q vs %q", a, b)
	}
	if len(a) != 12 {
		t.Fatalf("expected 12-char digest, got %q", a)
	}
	if a == "user-42" {
		t.Fatalf("hash must not echo the raw identity")
	}
	if HashIdentity("") != "anonymous" {
		t.Fatalf("empty identity should hash to anonymous")
	}
}

package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	c := Load()
	if c.HTTPPort == "" {
		t.Fatal("expected a default HTTP port")
	}
	if c.Addr() == "" {
		t.Fatal("expected a non-empty bind address")
	}
}

func TestClientIPHeaderFollowsCloudflareFlag(t *testing.T) {
	c := Config{HTTPUsingCloudflare: true}
	if got := c.ClientIPHeader(); got != "CF-Connecting-IP" {
		t.Fatalf("expected CF-Connecting-IP, got %q", got)
	}
	c.HTTPUsingCloudflare = false
	if got := c.ClientIPHeader(); got != "X-Real-IP" {
		t.Fatalf("expected X-Real-IP, got %q", got)
	}
}

func TestGetIntFallsBackOnBadValue(t *testing.T) {
	t.Setenv("PS_MINIMUM_CLIENT_YEAR", "not-a-number")
	c := Load()
	if c.MinClientYear != 2016 {
		t.Fatalf("expected default 2016 on unparsable env value, got %d", c.MinClientYear)
	}
}

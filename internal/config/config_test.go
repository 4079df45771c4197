package config

import (
	"strings"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default("shop-1")
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Workshop.ID != "shop-1" {
		t.Fatalf("workshop id not applied: %q", cfg.Workshop.ID)
	}
	if cfg.FirstPhase().Key != "planning" || cfg.TerminalPhase().Key != "complete" {
		t.Fatalf("unexpected phase boundaries: %s .. %s", cfg.FirstPhase().Key, cfg.TerminalPhase().Key)
	}
	if len(cfg.Backends) != 3 {
		t.Fatalf("expected three backends, got %d", len(cfg.Backends))
	}
}

func TestPhaseHelpers(t *testing.T) {
	cfg := Default("shop-1")
	next, ok := cfg.NextPhase("planning")
	if !ok || next.Key != "fabrication" {
		t.Fatalf("next of planning: %v %v", next.Key, ok)
	}
	if _, ok := cfg.NextPhase("complete"); ok {
		t.Fatalf("terminal phase must have no next")
	}
	if _, ok := cfg.NextPhase("nonexistent"); ok {
		t.Fatalf("unknown phase must have no next")
	}
	if i := cfg.PhaseIndex("electrical"); i != 3 {
		t.Fatalf("expected electrical at index 3, got %d", i)
	}
}

func TestValidateRejections(t *testing.T) {
	base := func() *Config { return Default("shop-1") }

	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing workshop id", func(c *Config) { c.Workshop.ID = "" }, "workshop.id"},
		{"single phase", func(c *Config) { c.Phases = c.Phases[:1] }, "at least two"},
		{"duplicate phase key", func(c *Config) { c.Phases[1].Key = c.Phases[0].Key }, "duplicate phase"},
		{"empty phase key", func(c *Config) { c.Phases[0].Key = "" }, "empty key"},
		{"duplicate gate", func(c *Config) {
			c.Phases[1].Gates = append(c.Phases[1].Gates, c.Phases[1].Gates[0])
		}, "duplicate gate"},
		{"terminal gates", func(c *Config) {
			c.Phases[len(c.Phases)-1].Gates = []Gate{{ID: "g", Description: "d"}}
		}, "terminal phase"},
		{"unknown backend", func(c *Config) { c.Backends["oracle"] = c.Backends["foreman"] }, "unknown backend"},
		{"zero timeout", func(c *Config) {
			b := c.Backends["foreman"]
			b.TimeoutSeconds = 0
			c.Backends["foreman"] = b
		}, "timeout_seconds"},
		{"zero image limit", func(c *Config) { c.Limits.MaxImageBytes = 0 }, "max_image_bytes"},
	}
	for _, tc := range cases {
		cfg := base()
		tc.mutate(cfg)
		err := cfg.Validate()
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("%s: expected error containing %q, got %v", tc.name, tc.want, err)
		}
	}
}

func TestFromYAMLRejectsGarbage(t *testing.T) {
	if _, err := FromYAML([]byte("{not yaml")); err == nil {
		t.Fatalf("expected parse error")
	}
	if _, err := FromYAML([]byte("workshop:\n  id: x\nphases: []\n")); err == nil {
		t.Fatalf("expected validation error")
	}
}

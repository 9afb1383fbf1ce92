package config

import "testing"

func TestDefaultConfigValidates(t *testing.T) {
	c := Default()
	if err := c.Validate(); err != nil {
		t.Fatalf("the default config should always validate cleanly: %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
	}{
		{"stride too small", func(c *Config) { c.SparseIndexStride = 0 }},
		{"max points too small", func(c *Config) { c.MaxDisplayPoints = 1 }},
		{"minmax ratio zero", func(c *Config) { c.MinMaxRatio = 0 }},
		{"poll interval zero", func(c *Config) { c.PollInterval = 0 }},
		{"sample rows min zero", func(c *Config) { c.SampleRowsMin = 0 }},
		{"sample row rate out of range", func(c *Config) { c.SampleRowRate = 1.5 }},
		{"diagnostics top k zero", func(c *Config) { c.DiagnosticsTopK = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := Default()
			tc.mutate(&c)
			if err := c.Validate(); err == nil {
				t.Fatalf("expected Validate to reject: %s", tc.name)
			}
		})
	}
}

func TestValidateClampsStatsWindowInsteadOfRejecting(t *testing.T) {
	c := Default()
	c.StatsWindow = 0
	if err := c.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.StatsWindow != 1 {
		t.Fatalf("expected StatsWindow to be clamped to 1, got %d", c.StatsWindow)
	}
}

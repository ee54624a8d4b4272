package engine

import "testing"

func TestDefaultConfigIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestConfigValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero capital", func(c *Config) { c.InitialCapital = 0 }},
		{"negative capital", func(c *Config) { c.InitialCapital = -1 }},
		{"commission too high", func(c *Config) { c.Commission = 1 }},
		{"negative slippage", func(c *Config) { c.Slippage = -0.01 }},
		{"zero position size", func(c *Config) { c.PositionSize = 0 }},
		{"oversized position", func(c *Config) { c.PositionSize = 1.5 }},
		{"stop loss one", func(c *Config) { c.StopLoss = 1 }},
		{"negative take profit", func(c *Config) { c.TakeProfit = -0.1 }},
		{"negative max holding", func(c *Config) { c.MaxHoldingDays = -5 }},
		{"bad entry timing", func(c *Config) { c.EntryTiming = "midnight" }},
		{"bad exit timing", func(c *Config) { c.ExitTiming = "vwap" }},
	}
	for _, tc := range cases {
		cfg := DefaultConfig()
		tc.mutate(&cfg)
		err := cfg.Validate()
		if err == nil {
			t.Errorf("%s: Validate() = nil, want ConfigError", tc.name)
			continue
		}
		if _, ok := err.(ConfigError); !ok {
			t.Errorf("%s: Validate() = %T, want ConfigError", tc.name, err)
		}
	}
}

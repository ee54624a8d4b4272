package engine

import "fmt"

// EntryTiming selects the reference price used when opening a position.
type EntryTiming string

// ExitTiming selects the reference price used when closing on a signal or
// max-holding exit. Forced stop/target exits always use the trigger price.
type ExitTiming string

const (
	EntryOpen  EntryTiming = "open"
	EntryClose EntryTiming = "close"
	// EntryNextOpen uses the previous bar's open. The one-bar lag is a fixed
	// contract, carried over from the system this engine reproduces.
	EntryNextOpen EntryTiming = "next_open"

	ExitOpen  ExitTiming = "open"
	ExitClose ExitTiming = "close"
)

// Default execution assumptions.
const (
	DefaultInitialCapital = 100000.0
	DefaultCommission     = 0.001
	DefaultSlippage       = 0.0005
)

// ConfigError reports invalid risk or sizing parameters, detected before
// any bar is processed.
type ConfigError struct{ Msg string }

func (e ConfigError) Error() string { return "engine: " + e.Msg }

// Config holds the risk and execution parameters for a single run.
// Zero values for StopLoss, TakeProfit and MaxHoldingDays disable them.
type Config struct {
	InitialCapital float64     `json:"initial_capital" yaml:"initial_capital"`
	Commission     float64     `json:"commission" yaml:"commission"`
	Slippage       float64     `json:"slippage" yaml:"slippage"`
	PositionSize   float64     `json:"position_size" yaml:"position_size"`
	StopLoss       float64     `json:"stop_loss,omitempty" yaml:"stop_loss"`
	TakeProfit     float64     `json:"take_profit,omitempty" yaml:"take_profit"`
	MaxHoldingDays int         `json:"max_holding_period,omitempty" yaml:"max_holding_period"`
	EntryTiming    EntryTiming `json:"entry_time" yaml:"entry_time"`
	ExitTiming     ExitTiming  `json:"exit_time" yaml:"exit_time"`
}

// DefaultConfig mirrors the platform defaults: full sizing, 0.1% commission,
// 0.05% slippage, entry at the bar open and exit at the bar close.
func DefaultConfig() Config {
	return Config{
		InitialCapital: DefaultInitialCapital,
		Commission:     DefaultCommission,
		Slippage:       DefaultSlippage,
		PositionSize:   1.0,
		EntryTiming:    EntryOpen,
		ExitTiming:     ExitClose,
	}
}

// Validate checks every parameter eagerly so a bad configuration never
// reaches the simulation loop.
func (c Config) Validate() error {
	if c.InitialCapital <= 0 {
		return ConfigError{Msg: fmt.Sprintf("initial capital must be positive, got %g", c.InitialCapital)}
	}
	if c.Commission < 0 || c.Commission >= 1 {
		return ConfigError{Msg: fmt.Sprintf("commission must be in [0,1), got %g", c.Commission)}
	}
	if c.Slippage < 0 || c.Slippage >= 1 {
		return ConfigError{Msg: fmt.Sprintf("slippage must be in [0,1), got %g", c.Slippage)}
	}
	if c.PositionSize <= 0 || c.PositionSize > 1 {
		return ConfigError{Msg: fmt.Sprintf("position size must be in (0,1], got %g", c.PositionSize)}
	}
	if c.StopLoss < 0 || c.StopLoss >= 1 {
		return ConfigError{Msg: fmt.Sprintf("stop loss must be in (0,1) when set, got %g", c.StopLoss)}
	}
	if c.TakeProfit < 0 {
		return ConfigError{Msg: fmt.Sprintf("take profit must be positive when set, got %g", c.TakeProfit)}
	}
	if c.MaxHoldingDays < 0 {
		return ConfigError{Msg: fmt.Sprintf("max holding period must be positive when set, got %d", c.MaxHoldingDays)}
	}
	switch c.EntryTiming {
	case EntryOpen, EntryClose, EntryNextOpen:
	default:
		return ConfigError{Msg: fmt.Sprintf("unknown entry timing %q", c.EntryTiming)}
	}
	switch c.ExitTiming {
	case ExitOpen, ExitClose:
	default:
		return ConfigError{Msg: fmt.Sprintf("unknown exit timing %q", c.ExitTiming)}
	}
	return nil
}

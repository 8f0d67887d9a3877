package config

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrMissingKey is returned when a required strategy key is absent.
	ErrMissingKey = errors.New("missing required config key")
	// ErrUnknownKey is returned for keys the engine does not consume.
	ErrUnknownKey = errors.New("unknown config key")
	// ErrInvalidValue is returned when a key holds an unusable value.
	ErrInvalidValue = errors.New("invalid config value")
)

// Strategy is the full set of trading thresholds. Every key is required.
// Fractions are expressed as decimals (0.05 = 5%).
type Strategy struct {
	TradeAmount       float64 `yaml:"tradeAmount" toml:"tradeAmount"`
	MaxTrades         int     `yaml:"maxTrades" toml:"maxTrades"`
	MaxTradesPerToken int     `yaml:"maxTradesPerToken" toml:"maxTradesPerToken"`
	TradeCooldownMs   int64   `yaml:"tradeCooldown" toml:"tradeCooldown"`

	ProfitThreshold float64 `yaml:"profitThreshold" toml:"profitThreshold"`
	LossThreshold   float64 `yaml:"lossThreshold" toml:"lossThreshold"`

	MomentumProfitThreshold       float64          `yaml:"momentumProfitThreshold" toml:"momentumProfitThreshold"`
	MomentumProfitThresholds      Bands            `yaml:"momentumProfitThresholds" toml:"momentumProfitThresholds"`
	MomentumPriceChangeThresholds PriceChangeBands `yaml:"momentumPriceChangeThresholds" toml:"momentumPriceChangeThresholds"`

	LossThresholdTrail              float64 `yaml:"lossThresholdTrail" toml:"lossThresholdTrail"`
	LossPriceChangeThresholdTrail   float64 `yaml:"lossPriceChangeThresholdTrail" toml:"lossPriceChangeThresholdTrail"`
	LossEarlyPriceChangeThreshold   float64 `yaml:"lossEarlyPriceChangeThreshold" toml:"lossEarlyPriceChangeThreshold"`
	NeutralZonePriceChangeThreshold float64 `yaml:"neutralZonePriceChangeThreshold" toml:"neutralZonePriceChangeThreshold"`
	MomentumStagnantTimeMs          int64   `yaml:"momentumStagnantTime" toml:"momentumStagnantTime"`
	MaxHoldTimeMs                   int64   `yaml:"maxHoldTime" toml:"maxHoldTime"`

	MarketCapLimits     Range   `yaml:"marketCapLimits" toml:"marketCapLimits"`
	PumpThreshold       float64 `yaml:"pumpThreshold" toml:"pumpThreshold"`
	BuyThreshold        int     `yaml:"buyThreshold" toml:"buyThreshold"`
	VolumeThreshold     float64 `yaml:"volumeThreshold" toml:"volumeThreshold"` // percent
	MinVolume           float64 `yaml:"minVolume" toml:"minVolume"`             // USD
	CreatorOwnershipMax float64 `yaml:"creatorOwnershipMax" toml:"creatorOwnershipMax"`

	UseDexScreenerFilter bool `yaml:"useDexScreenerFilter" toml:"useDexScreenerFilter"`

	TradeCooldownEnabled     bool    `yaml:"tradeCooldownEnabled" toml:"tradeCooldownEnabled"`
	TradeCooldownProfitCap   float64 `yaml:"tradeCooldownProfitCap" toml:"tradeCooldownProfitCap"` // SOL
	TradeCooldownDurationSec int64   `yaml:"tradeCooldownDuration" toml:"tradeCooldownDuration"`
}

// Bands are four ascending profit levels.
type Bands struct {
	Threshold1 float64 `yaml:"threshold1" toml:"threshold1"`
	Threshold2 float64 `yaml:"threshold2" toml:"threshold2"`
	Threshold3 float64 `yaml:"threshold3" toml:"threshold3"`
	Threshold4 float64 `yaml:"threshold4" toml:"threshold4"`
}

// PriceChangeBands are the per-band minimum price moves, plus Base below band 1.
type PriceChangeBands struct {
	Base       float64 `yaml:"base" toml:"base"`
	Threshold1 float64 `yaml:"threshold1" toml:"threshold1"`
	Threshold2 float64 `yaml:"threshold2" toml:"threshold2"`
	Threshold3 float64 `yaml:"threshold3" toml:"threshold3"`
	Threshold4 float64 `yaml:"threshold4" toml:"threshold4"`
}

// Range is an inclusive min/max bound.
type Range struct {
	Min float64 `yaml:"min" toml:"min"`
	Max float64 `yaml:"max" toml:"max"`
}

// TradeCooldown is the per-token re-entry wait.
func (s *Strategy) TradeCooldown() time.Duration {
	return time.Duration(s.TradeCooldownMs) * time.Millisecond
}

// StagnantTime is how long price may stall before a stagnation exit.
func (s *Strategy) StagnantTime() time.Duration {
	return time.Duration(s.MomentumStagnantTimeMs) * time.Millisecond
}

// MaxHold is the maximum position lifetime.
func (s *Strategy) MaxHold() time.Duration {
	return time.Duration(s.MaxHoldTimeMs) * time.Millisecond
}

// ProfitCapDuration is how long the profit-cap cooldown lasts.
func (s *Strategy) ProfitCapDuration() time.Duration {
	return time.Duration(s.TradeCooldownDurationSec) * time.Second
}

// Validate checks value ranges after every key is known to be present.
func (s *Strategy) Validate() error {
	var errs []error
	check := func(ok bool, key, format string, args ...interface{}) {
		if !ok {
			errs = append(errs, fmt.Errorf("%w: %s: %s", ErrInvalidValue, key, fmt.Sprintf(format, args...)))
		}
	}

	check(s.TradeAmount > 0, "tradeAmount", "must be > 0, got %v", s.TradeAmount)
	check(s.MaxTrades >= 1, "maxTrades", "must be >= 1, got %d", s.MaxTrades)
	check(s.MaxTradesPerToken >= 1, "maxTradesPerToken", "must be >= 1, got %d", s.MaxTradesPerToken)
	check(s.TradeCooldownMs >= 0, "tradeCooldown", "must be >= 0, got %d", s.TradeCooldownMs)
	check(s.ProfitThreshold > 0, "profitThreshold", "must be > 0, got %v", s.ProfitThreshold)
	check(s.LossThreshold < 0, "lossThreshold", "must be negative, got %v", s.LossThreshold)
	check(s.MomentumProfitThreshold >= 0, "momentumProfitThreshold", "must be >= 0, got %v", s.MomentumProfitThreshold)

	b := s.MomentumProfitThresholds
	check(b.Threshold1 <= b.Threshold2 && b.Threshold2 <= b.Threshold3 && b.Threshold3 <= b.Threshold4,
		"momentumProfitThresholds", "must be ascending, got %+v", b)
	check(s.LossThresholdTrail >= 0, "lossThresholdTrail", "must be >= 0, got %v", s.LossThresholdTrail)
	check(s.MomentumStagnantTimeMs > 0, "momentumStagnantTime", "must be > 0, got %d", s.MomentumStagnantTimeMs)
	check(s.MaxHoldTimeMs > 0, "maxHoldTime", "must be > 0, got %d", s.MaxHoldTimeMs)
	check(s.MarketCapLimits.Min <= s.MarketCapLimits.Max, "marketCapLimits", "min %v exceeds max %v",
		s.MarketCapLimits.Min, s.MarketCapLimits.Max)
	check(s.BuyThreshold >= 0, "buyThreshold", "must be >= 0, got %d", s.BuyThreshold)
	check(s.CreatorOwnershipMax >= 0 && s.CreatorOwnershipMax <= 1, "creatorOwnershipMax", "must be in [0,1], got %v",
		s.CreatorOwnershipMax)
	check(s.TradeCooldownDurationSec >= 0, "tradeCooldownDuration", "must be >= 0, got %d", s.TradeCooldownDurationSec)

	return errors.Join(errs...)
}

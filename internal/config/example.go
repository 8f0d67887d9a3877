package config

// Example returns a complete, valid strategy with the reference thresholds
// shipped in configs/strategy.yaml.
func Example() *Strategy {
	return &Strategy{
		TradeAmount:             0.2,
		MaxTrades:               3,
		MaxTradesPerToken:       3,
		TradeCooldownMs:         120_000,
		ProfitThreshold:         1.0,
		LossThreshold:           -0.06,
		MomentumProfitThreshold: 0.02,
		MomentumProfitThresholds: Bands{
			Threshold1: 0.15, Threshold2: 0.3, Threshold3: 0.6, Threshold4: 0.8,
		},
		MomentumPriceChangeThresholds: PriceChangeBands{
			Base: 0.01, Threshold1: 0.05, Threshold2: 0.08, Threshold3: 0.12, Threshold4: 0.15,
		},
		LossThresholdTrail:              0.045,
		LossPriceChangeThresholdTrail:   0.01,
		LossEarlyPriceChangeThreshold:   0.005,
		NeutralZonePriceChangeThreshold: 0.005,
		MomentumStagnantTimeMs:          1200,
		MaxHoldTimeMs:                   60_000,
		MarketCapLimits:                 Range{Min: 28, Max: 400},
		PumpThreshold:                   0.05,
		BuyThreshold:                    3,
		VolumeThreshold:                 10,
		MinVolume:                       1.5,
		CreatorOwnershipMax:             0.2,
		UseDexScreenerFilter:            true,
		TradeCooldownEnabled:            false,
		TradeCooldownProfitCap:          5,
		TradeCooldownDurationSec:        3600,
	}
}

package lending

import "fmt"

const (
	// DefaultAssetSymbol is registered at bootstrap when no asset is supplied.
	DefaultAssetSymbol = "XLM"
	// DefaultAssetDecimals matches the native asset precision.
	DefaultAssetDecimals = 7
	// DefaultMinCollateralRatio is expressed in whole percent.
	DefaultMinCollateralRatio int64 = 150
	// MinCollateralRatioFloor is the lowest ratio any asset may require.
	MinCollateralRatioFloor int64 = 100
	// MaxLiquidationIncentive bounds the liquidator bonus at 50%.
	MaxLiquidationIncentive int64 = 50_000_000
	// MaxAssetDecimals bounds registered asset precision.
	MaxAssetDecimals = 18
	// DefaultDistributionFrequency is one day.
	DefaultDistributionFrequency uint64 = 86_400
	// DefaultAMLThreshold flags amounts at or above 1.0 (scaled).
	DefaultAMLThreshold int64 = 100_000_000
)

// DefaultInterestRateConfig returns the bootstrap rate curve.
func DefaultInterestRateConfig() InterestRateConfig {
	return InterestRateConfig{
		BaseRate:        2_000_000,
		KinkUtilization: 80_000_000,
		Multiplier:      10_000_000,
		ReserveFactor:   10_000_000,
		RateCeiling:     50_000_000,
		RateFloor:       100_000,
	}
}

// DefaultRiskConfig returns the bootstrap liquidation bounds with every pause
// switch cleared.
func DefaultRiskConfig() RiskConfig {
	return RiskConfig{
		CloseFactor:          50_000_000,
		LiquidationIncentive: 10_000_000,
	}
}

// DefaultOracleConfig returns the bootstrap oracle tolerances.
func DefaultOracleConfig() OracleConfig {
	return OracleConfig{
		MaxPriceDeviation: 50_000_000,
		HeartbeatSeconds:  3_600,
		FallbackPrice:     150_000_000,
	}
}

// DefaultAsset returns the bootstrap asset definition.
func DefaultAsset() AssetInfo {
	return AssetInfo{
		Symbol:             DefaultAssetSymbol,
		Decimals:           DefaultAssetDecimals,
		MinCollateralRatio: DefaultMinCollateralRatio,
		Interest:           DefaultInterestRateConfig(),
		Risk:               DefaultRiskConfig(),
		Enabled:            true,
		DepositEnabled:     true,
		BorrowEnabled:      true,
	}
}

// Violations returns every rule the interest configuration breaks.
func (c InterestRateConfig) Violations() []string {
	var out []string
	if c.BaseRate < 0 || c.BaseRate > Scale {
		out = append(out, fmt.Sprintf("base rate %d must be within [0, %d]", c.BaseRate, Scale))
	}
	if c.KinkUtilization <= 0 || c.KinkUtilization > Scale {
		out = append(out, fmt.Sprintf("kink utilization %d must be within (0, %d]", c.KinkUtilization, Scale))
	}
	if c.Multiplier < 0 {
		out = append(out, fmt.Sprintf("multiplier %d must not be negative", c.Multiplier))
	}
	if c.ReserveFactor < 0 || c.ReserveFactor > Scale {
		out = append(out, fmt.Sprintf("reserve factor %d must be within [0, %d]", c.ReserveFactor, Scale))
	}
	if c.RateFloor < 0 {
		out = append(out, fmt.Sprintf("rate floor %d must not be negative", c.RateFloor))
	}
	if c.RateCeiling > Scale {
		out = append(out, fmt.Sprintf("rate ceiling %d must not exceed %d", c.RateCeiling, Scale))
	}
	if c.RateFloor > c.RateCeiling {
		out = append(out, fmt.Sprintf("rate floor %d exceeds rate ceiling %d", c.RateFloor, c.RateCeiling))
	}
	return out
}

// Violations returns every rule the risk configuration breaks.
func (c RiskConfig) Violations() []string {
	var out []string
	if c.CloseFactor <= 0 || c.CloseFactor > Scale {
		out = append(out, fmt.Sprintf("close factor %d must be within (0, %d]", c.CloseFactor, Scale))
	}
	if c.LiquidationIncentive < 0 || c.LiquidationIncentive > MaxLiquidationIncentive {
		out = append(out, fmt.Sprintf("liquidation incentive %d must be within [0, %d]", c.LiquidationIncentive, MaxLiquidationIncentive))
	}
	return out
}

// Violations returns every rule the oracle configuration breaks.
func (c OracleConfig) Violations() []string {
	var out []string
	if c.MaxPriceDeviation <= 0 || c.MaxPriceDeviation > Scale {
		out = append(out, fmt.Sprintf("max price deviation %d must be within (0, %d]", c.MaxPriceDeviation, Scale))
	}
	if c.HeartbeatSeconds == 0 {
		out = append(out, "heartbeat must be positive")
	}
	if c.FallbackPrice <= 0 {
		out = append(out, fmt.Sprintf("fallback price %d must be positive", c.FallbackPrice))
	}
	return out
}

// Violations returns every rule the asset definition breaks, including those
// of its nested interest and risk configuration.
func (a AssetInfo) Violations() []string {
	var out []string
	if NormalizeSymbol(a.Symbol) == "" {
		out = append(out, "asset symbol must not be empty")
	}
	if a.Decimals > MaxAssetDecimals {
		out = append(out, fmt.Sprintf("asset decimals %d exceed %d", a.Decimals, MaxAssetDecimals))
	}
	if a.MinCollateralRatio < MinCollateralRatioFloor {
		out = append(out, fmt.Sprintf("asset minimum collateral ratio %d below %d%%", a.MinCollateralRatio, MinCollateralRatioFloor))
	}
	out = append(out, a.Interest.Violations()...)
	out = append(out, a.Risk.Violations()...)
	return out
}

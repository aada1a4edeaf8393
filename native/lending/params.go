package lending

import (
	"log/slog"
	"strings"

	coreerrors "lendcore/core/errors"
	"lendcore/core/events"
	"lendcore/crypto"
)

// updateAsset runs an admin mutation against the asset named by symbol (the
// default asset when empty). The mutated asset is validated as a whole and
// the rate state recomputed unless keepRates is set.
func (e *Engine) updateAsset(caller crypto.Address, symbol, scope string, keepRates bool, mutate func(*AssetInfo) (map[string]int64, error)) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	asset, err := e.resolveAsset(symbol)
	if err != nil {
		return err
	}
	values, err := mutate(asset)
	if err != nil {
		return err
	}
	if violations := asset.Violations(); len(violations) > 0 {
		return coreerrors.Wrap(coreerrors.ErrInvalidInput, "lending engine: %s", strings.Join(violations, "; "))
	}
	now := uint64(e.now().Unix())
	if !keepRates {
		state, err := asset.Interest.Refresh(asset.State, now)
		if err != nil {
			return err
		}
		asset.State = state
	}
	if err := e.state.PutLendingAsset(asset); err != nil {
		return err
	}
	e.publishParams(caller, asset.Symbol, scope, values)
	s := asset.State
	e.metrics.SetRates(asset.Symbol, s.UtilizationRate, s.CurrentBorrowRate, s.CurrentSupplyRate)
	return nil
}

func (e *Engine) publishParams(caller crypto.Address, asset, scope string, values map[string]int64) {
	attrs := []any{slog.String("admin", caller.String()), slog.String("scope", scope)}
	if asset != "" {
		attrs = append(attrs, slog.String("asset", asset))
	}
	for key, value := range values {
		attrs = append(attrs, slog.Int64(key, value))
	}
	e.logger.Info("lending parameters updated", attrs...)
	e.emit(events.LendingParamsUpdated{Admin: caller.String(), Asset: asset, Scope: scope, Values: values})
}

func (e *Engine) updateInterest(caller crypto.Address, symbol, scope string, mutate func(*InterestRateConfig)) error {
	return e.updateAsset(caller, symbol, scope, false, func(a *AssetInfo) (map[string]int64, error) {
		mutate(&a.Interest)
		a.Interest.LastUpdate = uint64(e.now().Unix())
		return interestValues(a.Interest), nil
	})
}

func interestValues(c InterestRateConfig) map[string]int64 {
	return map[string]int64{
		"base_rate":        c.BaseRate,
		"kink_utilization": c.KinkUtilization,
		"multiplier":       c.Multiplier,
		"reserve_factor":   c.ReserveFactor,
		"rate_floor":       c.RateFloor,
		"rate_ceiling":     c.RateCeiling,
	}
}

// SetInterestRateConfig replaces the whole rate curve of symbol.
func (e *Engine) SetInterestRateConfig(caller crypto.Address, symbol string, cfg InterestRateConfig) error {
	return e.updateInterest(caller, symbol, "interest", func(c *InterestRateConfig) { *c = cfg })
}

func (e *Engine) SetBaseRate(caller crypto.Address, symbol string, rate int64) error {
	return e.updateInterest(caller, symbol, "interest.base_rate", func(c *InterestRateConfig) { c.BaseRate = rate })
}

func (e *Engine) SetKinkUtilization(caller crypto.Address, symbol string, kink int64) error {
	return e.updateInterest(caller, symbol, "interest.kink", func(c *InterestRateConfig) { c.KinkUtilization = kink })
}

func (e *Engine) SetMultiplier(caller crypto.Address, symbol string, multiplier int64) error {
	return e.updateInterest(caller, symbol, "interest.multiplier", func(c *InterestRateConfig) { c.Multiplier = multiplier })
}

func (e *Engine) SetReserveFactor(caller crypto.Address, symbol string, factor int64) error {
	return e.updateInterest(caller, symbol, "interest.reserve_factor", func(c *InterestRateConfig) { c.ReserveFactor = factor })
}

// SetRateLimits bounds the borrow rate curve to [floor, ceiling].
func (e *Engine) SetRateLimits(caller crypto.Address, symbol string, floor, ceiling int64) error {
	return e.updateInterest(caller, symbol, "interest.limits", func(c *InterestRateConfig) {
		c.RateFloor = floor
		c.RateCeiling = ceiling
	})
}

// EmergencyRateAdjustment overrides the current borrow rate of symbol. The
// override lasts until the next call recomputes the rates.
func (e *Engine) EmergencyRateAdjustment(caller crypto.Address, symbol string, rate int64) error {
	return e.updateAsset(caller, symbol, "interest.emergency", true, func(a *AssetInfo) (map[string]int64, error) {
		if rate < 0 || rate > Scale {
			return nil, coreerrors.Wrap(coreerrors.ErrInvalidInput, "lending engine: emergency rate %d outside [0, %d]", rate, Scale)
		}
		supply, err := a.Interest.SupplyRate(rate, a.State.UtilizationRate)
		if err != nil {
			return nil, err
		}
		a.State.CurrentBorrowRate = rate
		a.State.CurrentSupplyRate = supply
		e.logger.Warn("emergency borrow rate applied", slog.String("asset", a.Symbol), slog.String("rate", FormatPercent(rate)))
		return map[string]int64{"borrow_rate": rate, "supply_rate": supply}, nil
	})
}

func (e *Engine) updateRisk(caller crypto.Address, symbol, scope string, mutate func(*RiskConfig)) error {
	return e.updateAsset(caller, symbol, scope, false, func(a *AssetInfo) (map[string]int64, error) {
		mutate(&a.Risk)
		a.Risk.LastUpdate = uint64(e.now().Unix())
		return map[string]int64{
			"close_factor":          a.Risk.CloseFactor,
			"liquidation_incentive": a.Risk.LiquidationIncentive,
			"pause_borrow":          boolValue(a.Risk.PauseBorrow),
			"pause_deposit":         boolValue(a.Risk.PauseDeposit),
			"pause_withdraw":        boolValue(a.Risk.PauseWithdraw),
			"pause_liquidate":       boolValue(a.Risk.PauseLiquidate),
		}, nil
	})
}

// SetRiskConfig replaces the risk configuration of symbol.
func (e *Engine) SetRiskConfig(caller crypto.Address, symbol string, cfg RiskConfig) error {
	return e.updateRisk(caller, symbol, "risk", func(c *RiskConfig) { *c = cfg })
}

// SetRiskParams updates the liquidation bounds of symbol.
func (e *Engine) SetRiskParams(caller crypto.Address, symbol string, closeFactor, incentive int64) error {
	return e.updateRisk(caller, symbol, "risk.params", func(c *RiskConfig) {
		c.CloseFactor = closeFactor
		c.LiquidationIncentive = incentive
	})
}

// SetPauseSwitches sets the per-action pause switches of symbol.
func (e *Engine) SetPauseSwitches(caller crypto.Address, symbol string, borrow, deposit, withdraw, liquidate bool) error {
	return e.updateRisk(caller, symbol, "risk.pauses", func(c *RiskConfig) {
		c.PauseBorrow = borrow
		c.PauseDeposit = deposit
		c.PauseWithdraw = withdraw
		c.PauseLiquidate = liquidate
	})
}

// SetMinCollateralRatio sets the minimum ratio, in whole percent, of symbol.
func (e *Engine) SetMinCollateralRatio(caller crypto.Address, symbol string, ratio int64) error {
	return e.updateAsset(caller, symbol, "risk.min_ratio", false, func(a *AssetInfo) (map[string]int64, error) {
		a.MinCollateralRatio = ratio
		return map[string]int64{"min_collateral_ratio": ratio}, nil
	})
}

// SetOracle assigns the price oracle of symbol. The zero address removes it
// and the asset is priced at the fallback price.
func (e *Engine) SetOracle(caller crypto.Address, symbol string, oracle crypto.Address) error {
	if !oracle.IsZero() {
		if err := validateAccount(oracle); err != nil {
			return err
		}
	}
	return e.updateAsset(caller, symbol, "oracle.address", true, func(a *AssetInfo) (map[string]int64, error) {
		a.Oracle = oracle
		return map[string]int64{"configured": boolValue(!oracle.IsZero())}, nil
	})
}

// SetOracleParams updates the oracle tolerances shared by every asset.
func (e *Engine) SetOracleParams(caller crypto.Address, maxDeviation int64, heartbeat uint64, fallback int64) error {
	return e.SetOracleConfig(caller, OracleConfig{MaxPriceDeviation: maxDeviation, HeartbeatSeconds: heartbeat, FallbackPrice: fallback})
}

// SetOracleConfig replaces the oracle tolerances shared by every asset.
func (e *Engine) SetOracleConfig(caller crypto.Address, cfg OracleConfig) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if violations := cfg.Violations(); len(violations) > 0 {
		return coreerrors.Wrap(coreerrors.ErrInvalidInput, "lending engine: %s", strings.Join(violations, "; "))
	}
	if err := e.state.PutLendingOracleConfig(&cfg); err != nil {
		return err
	}
	e.publishParams(caller, "", "oracle.params", map[string]int64{
		"max_price_deviation": cfg.MaxPriceDeviation,
		"heartbeat":           int64(cfg.HeartbeatSeconds),
		"fallback_price":      cfg.FallbackPrice,
	})
	return nil
}

// ForceUpdatePrice stores price as the reference observation for symbol,
// bypassing the deviation check.
func (e *Engine) ForceUpdatePrice(caller crypto.Address, symbol string, price int64) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if err := validateAmount(price); err != nil {
		return err
	}
	asset, err := e.resolveAsset(symbol)
	if err != nil {
		return err
	}
	now := uint64(e.now().Unix())
	data := &OracleData{Asset: asset.Symbol, LastPrice: price, LastUpdateTime: now}
	if err := e.state.PutLendingOracleData(data); err != nil {
		return err
	}
	e.logger.Warn("oracle price forced",
		slog.String("admin", caller.String()),
		slog.String("asset", asset.Symbol),
		slog.String("price", FormatScaled(price)))
	e.emit(events.LendingPrice{Asset: asset.Symbol, Price: price, Reason: "forced", Timestamp: now})
	return nil
}

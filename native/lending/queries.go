package lending

import (
	"lendcore/crypto"
)

// PositionView pairs a position with its collateral ratio at the current
// price.
type PositionView struct {
	Position
	Ratio int64 `json:"ratio"`
}

// UtilizationMetrics summarises liquidity usage for an asset.
type UtilizationMetrics struct {
	Asset           string `json:"asset"`
	TotalSupplied   int64  `json:"total_supplied"`
	TotalBorrowed   int64  `json:"total_borrowed"`
	AvailableLiquid int64  `json:"available_liquidity"`
	UtilizationRate int64  `json:"utilization_rate"`
}

// AccruedInterest reports the interest a position has accrued, including the
// amount pending since the last settlement.
type AccruedInterest struct {
	Borrow int64 `json:"borrow"`
	Supply int64 `json:"supply"`
}

func (e *Engine) queryTxn(symbol string) (*txn, error) {
	if err := e.requireState(); err != nil {
		return nil, err
	}
	asset, err := e.resolveAsset(symbol)
	if err != nil {
		return nil, err
	}
	t := e.newTxn("query")
	t.asset = asset
	return t, nil
}

// Position returns the account's position in symbol together with its
// collateral ratio. Nothing is persisted.
func (e *Engine) Position(account crypto.Address, symbol string) (PositionView, error) {
	if err := validateAccount(account); err != nil {
		return PositionView{}, err
	}
	t, err := e.queryTxn(symbol)
	if err != nil {
		return PositionView{}, err
	}
	position, err := t.loadPosition(account, false)
	if err != nil {
		return PositionView{}, err
	}
	ratio, err := t.ratio(position)
	if err != nil {
		return PositionView{}, err
	}
	return PositionView{Position: *position, Ratio: ratio}, nil
}

// CollateralRatio returns the account's collateral ratio in symbol.
func (e *Engine) CollateralRatio(account crypto.Address, symbol string) (int64, error) {
	view, err := e.Position(account, symbol)
	if err != nil {
		return 0, err
	}
	return view.Ratio, nil
}

// CurrentRates returns the stored rate state of symbol.
func (e *Engine) CurrentRates(symbol string) (InterestRateState, error) {
	t, err := e.queryTxn(symbol)
	if err != nil {
		return InterestRateState{}, err
	}
	return t.asset.State, nil
}

// UtilizationMetrics returns liquidity usage of symbol.
func (e *Engine) UtilizationMetrics(symbol string) (UtilizationMetrics, error) {
	t, err := e.queryTxn(symbol)
	if err != nil {
		return UtilizationMetrics{}, err
	}
	s := t.asset.State
	available := s.TotalSupplied - s.TotalBorrowed
	if available < 0 {
		available = 0
	}
	return UtilizationMetrics{
		Asset:           t.asset.Symbol,
		TotalSupplied:   s.TotalSupplied,
		TotalBorrowed:   s.TotalBorrowed,
		AvailableLiquid: available,
		UtilizationRate: s.UtilizationRate,
	}, nil
}

// InterestRateConfig returns the rate curve of symbol.
func (e *Engine) InterestRateConfig(symbol string) (InterestRateConfig, error) {
	t, err := e.queryTxn(symbol)
	if err != nil {
		return InterestRateConfig{}, err
	}
	return t.asset.Interest, nil
}

// RiskConfig returns the risk configuration of symbol.
func (e *Engine) RiskConfig(symbol string) (RiskConfig, error) {
	t, err := e.queryTxn(symbol)
	if err != nil {
		return RiskConfig{}, err
	}
	return t.asset.Risk, nil
}

// UserAccruedInterest returns the interest accrued by the account's position
// in symbol as of now, without settling it.
func (e *Engine) UserAccruedInterest(account crypto.Address, symbol string) (AccruedInterest, error) {
	if err := validateAccount(account); err != nil {
		return AccruedInterest{}, err
	}
	t, err := e.queryTxn(symbol)
	if err != nil {
		return AccruedInterest{}, err
	}
	position, err := t.loadPosition(account, false)
	if err != nil {
		return AccruedInterest{}, err
	}
	s := t.asset.State
	if _, err := AccruePosition(position, s.CurrentBorrowRate, s.CurrentSupplyRate, t.now); err != nil {
		return AccruedInterest{}, err
	}
	return AccruedInterest{Borrow: position.AccruedBorrowInterest, Supply: position.AccruedSupplyInterest}, nil
}

// OracleConfig returns the oracle tolerances.
func (e *Engine) OracleConfig() (OracleConfig, error) {
	if err := e.requireState(); err != nil {
		return OracleConfig{}, err
	}
	return e.oracleConfig()
}

// OracleInfo returns the oracle assignment and last accepted price of symbol.
func (e *Engine) OracleInfo(symbol string) (OracleInfo, error) {
	t, err := e.queryTxn(symbol)
	if err != nil {
		return OracleInfo{}, err
	}
	cfg, err := e.oracleConfig()
	if err != nil {
		return OracleInfo{}, err
	}
	data, err := e.state.LendingOracleData(t.asset.Symbol)
	if err != nil {
		return OracleInfo{}, err
	}
	info := OracleInfo{Asset: t.asset.Symbol, Oracle: t.asset.Oracle, Config: cfg, Data: OracleData{Asset: t.asset.Symbol}}
	if data != nil {
		info.Data = *data
		info.Stale = data.IsStale(cfg, t.now)
	}
	return info, nil
}

// ReserveData returns the protocol reserve ledger.
func (e *Engine) ReserveData() (ReserveData, error) {
	if err := e.requireState(); err != nil {
		return ReserveData{}, err
	}
	t := e.newTxn("query")
	if err := t.loadReserve(); err != nil {
		return ReserveData{}, err
	}
	return *t.reserve, nil
}

// RevenueMetrics returns collected fees by source.
func (e *Engine) RevenueMetrics() (RevenueMetrics, error) {
	if err := e.requireState(); err != nil {
		return RevenueMetrics{}, err
	}
	t := e.newTxn("query")
	if err := t.loadReserve(); err != nil {
		return RevenueMetrics{}, err
	}
	return *t.revenue, nil
}

// UserActivity returns the activity counters of account.
func (e *Engine) UserActivity(account crypto.Address) (UserActivity, error) {
	if err := e.requireState(); err != nil {
		return UserActivity{}, err
	}
	activity, ok, err := e.state.LendingUserActivity(account)
	if err != nil || !ok || activity == nil {
		return UserActivity{}, err
	}
	return *activity, nil
}

// ProtocolActivity returns protocol-wide activity counters.
func (e *Engine) ProtocolActivity() (ProtocolActivity, error) {
	if err := e.requireState(); err != nil {
		return ProtocolActivity{}, err
	}
	activity, err := e.state.LendingProtocolActivity()
	if err != nil || activity == nil {
		return ProtocolActivity{}, err
	}
	return *activity, nil
}

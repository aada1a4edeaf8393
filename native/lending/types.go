package lending

import (
	"strings"

	"lendcore/crypto"
)

// Position is an account's collateral and debt record for one asset. Interest
// accrues into the separate accumulators and is never compounded into the
// principal fields.
type Position struct {
	Account               crypto.Address `json:"account"`
	Asset                 string         `json:"asset"`
	Collateral            int64          `json:"collateral"`
	Debt                  int64          `json:"debt"`
	AccruedBorrowInterest int64          `json:"accrued_borrow_interest"`
	AccruedSupplyInterest int64          `json:"accrued_supply_interest"`
	LastAccrualTime       uint64         `json:"last_accrual_time"`
}

// Clone returns a deep copy of the position.
func (p *Position) Clone() *Position {
	if p == nil {
		return nil
	}
	clone := *p
	if raw := p.Account.Bytes(); raw != nil {
		clone.Account = crypto.NewAddress(p.Account.Prefix(), raw)
	}
	return &clone
}

// InterestRateConfig shapes the kinked borrow rate curve. All values are 1e8
// scaled.
type InterestRateConfig struct {
	BaseRate        int64  `json:"base_rate" toml:"BaseRate"`
	KinkUtilization int64  `json:"kink_utilization" toml:"KinkUtilization"`
	Multiplier      int64  `json:"multiplier" toml:"Multiplier"`
	ReserveFactor   int64  `json:"reserve_factor" toml:"ReserveFactor"`
	RateCeiling     int64  `json:"rate_ceiling" toml:"RateCeiling"`
	RateFloor       int64  `json:"rate_floor" toml:"RateFloor"`
	LastUpdate      uint64 `json:"last_update" toml:"-"`
}

// InterestRateState is recomputed from the asset totals on every mutating
// call.
type InterestRateState struct {
	CurrentBorrowRate int64  `json:"current_borrow_rate"`
	CurrentSupplyRate int64  `json:"current_supply_rate"`
	UtilizationRate   int64  `json:"utilization_rate"`
	TotalBorrowed     int64  `json:"total_borrowed"`
	TotalSupplied     int64  `json:"total_supplied"`
	LastAccrualTime   uint64 `json:"last_accrual_time"`
}

// RiskConfig groups the liquidation bounds and per-action pause switches.
type RiskConfig struct {
	CloseFactor          int64  `json:"close_factor" toml:"CloseFactor"`
	LiquidationIncentive int64  `json:"liquidation_incentive" toml:"LiquidationIncentive"`
	PauseBorrow          bool   `json:"pause_borrow" toml:"PauseBorrow"`
	PauseDeposit         bool   `json:"pause_deposit" toml:"PauseDeposit"`
	PauseWithdraw        bool   `json:"pause_withdraw" toml:"PauseWithdraw"`
	PauseLiquidate       bool   `json:"pause_liquidate" toml:"PauseLiquidate"`
	LastUpdate           uint64 `json:"last_update" toml:"-"`
}

// ReserveData tracks the protocol's share of interest. CurrentReserves always
// equals TotalFeesCollected minus TotalFeesDistributed.
type ReserveData struct {
	TotalFeesCollected      int64          `json:"total_fees_collected"`
	TotalFeesDistributed    int64          `json:"total_fees_distributed"`
	CurrentReserves         int64          `json:"current_reserves"`
	TotalEmergencyWithdrawn int64          `json:"total_emergency_withdrawn"`
	Treasury                crypto.Address `json:"treasury"`
	LastDistributionTime    uint64         `json:"last_distribution_time"`
	DistributionFrequency   uint64         `json:"distribution_frequency"`
}

// Fee sources recorded in RevenueMetrics.
const (
	FeeSourceBorrow = "borrow"
	FeeSourceSupply = "supply"
	FeeSourceManual = "manual"
)

// RevenueMetrics buckets collected fees by source.
type RevenueMetrics struct {
	TotalBorrowFees int64 `json:"total_borrow_fees"`
	TotalSupplyFees int64 `json:"total_supply_fees"`
	TotalManualFees int64 `json:"total_manual_fees"`
}

// OracleConfig bounds accepted price observations.
type OracleConfig struct {
	MaxPriceDeviation int64  `json:"max_price_deviation" toml:"MaxPriceDeviation"`
	HeartbeatSeconds  uint64 `json:"heartbeat_seconds" toml:"HeartbeatSeconds"`
	FallbackPrice     int64  `json:"fallback_price" toml:"FallbackPrice"`
}

// OracleData stores the last accepted price for an asset.
type OracleData struct {
	Asset          string `json:"asset"`
	LastPrice      int64  `json:"last_price"`
	LastUpdateTime uint64 `json:"last_update_time"`
}

// AssetInfo carries the per-asset parameter set and live rate state.
type AssetInfo struct {
	Symbol             string             `json:"symbol"`
	Decimals           uint32             `json:"decimals"`
	Oracle             crypto.Address     `json:"oracle"`
	MinCollateralRatio int64              `json:"min_collateral_ratio"`
	Interest           InterestRateConfig `json:"interest"`
	Risk               RiskConfig         `json:"risk"`
	State              InterestRateState  `json:"state"`
	Enabled            bool               `json:"enabled"`
	DepositEnabled     bool               `json:"deposit_enabled"`
	BorrowEnabled      bool               `json:"borrow_enabled"`
	AddedAt            uint64             `json:"added_at"`
}

// Clone returns a deep copy of the asset info.
func (a *AssetInfo) Clone() *AssetInfo {
	if a == nil {
		return nil
	}
	clone := *a
	if raw := a.Oracle.Bytes(); raw != nil {
		clone.Oracle = crypto.NewAddress(a.Oracle.Prefix(), raw)
	}
	return &clone
}

// AssetRegistry lists supported symbols in insertion order and names the
// default asset used by the single-asset entry points.
type AssetRegistry struct {
	Symbols []string `json:"symbols"`
	Default string   `json:"default"`
}

// Contains reports whether symbol is registered.
func (r *AssetRegistry) Contains(symbol string) bool {
	if r == nil {
		return false
	}
	for _, s := range r.Symbols {
		if s == symbol {
			return true
		}
	}
	return false
}

// UserActivity tracks per-account ledger usage.
type UserActivity struct {
	TotalDeposits    int64  `json:"total_deposits"`
	TotalWithdrawals int64  `json:"total_withdrawals"`
	TotalBorrows     int64  `json:"total_borrows"`
	TotalRepayments  int64  `json:"total_repayments"`
	LastActivity     uint64 `json:"last_activity"`
	ActivityCount    uint32 `json:"activity_count"`
}

// ProtocolActivity summarises usage across all accounts.
type ProtocolActivity struct {
	TotalUsers        uint32 `json:"total_users"`
	TotalTransactions uint32 `json:"total_transactions"`
	LastUpdate        uint64 `json:"last_update"`
}

// AccountFlags hold compliance markers consulted before ledger operations.
type AccountFlags struct {
	Frozen      bool `json:"frozen"`
	Blacklisted bool `json:"blacklisted"`
	Verified    bool `json:"verified"`
}

// Settings are protocol-wide switches that are not part of any asset.
type Settings struct {
	KYCRequired    bool   `json:"kyc_required"`
	AMLThreshold   int64  `json:"aml_threshold"`
	EmergencyPause bool   `json:"emergency_pause"`
	MaxAssets      uint32 `json:"max_assets"`
}

// NormalizeSymbol canonicalises an asset ticker.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

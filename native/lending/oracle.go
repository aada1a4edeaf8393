package lending

import "lendcore/crypto"

// PriceSource supplies raw 1e8-scaled price samples from an external feed.
type PriceSource interface {
	Price(oracle crypto.Address, asset string) (int64, error)
}

// Reasons attached to fallback price decisions.
const (
	PriceReasonNoOracle    = "oracle_not_set"
	PriceReasonNoSource    = "source_not_configured"
	PriceReasonSourceErr   = "source_error"
	PriceReasonNonPositive = "non_positive"
	PriceReasonDeviation   = "deviation_exceeded"
)

// PriceDecision is the outcome of validating a raw price sample. Store is set
// when the observation must be persisted as the new reference price.
type PriceDecision struct {
	Price    int64
	Fallback bool
	Reason   string
	Store    *OracleData
}

// Deviation returns |price-last|/last on the 1e8 scale.
func Deviation(last, price int64) (int64, error) {
	if last <= 0 {
		return 0, nil
	}
	diff := price - last
	if diff < 0 {
		diff = -diff
	}
	return MulDiv(diff, Scale, last)
}

// ValidatePrice accepts the first observation unconditionally and rejects
// later ones that move further than the configured deviation from the last
// stored price. Rejected samples fall back to the configured fallback price
// and are never stored.
func ValidatePrice(cfg OracleConfig, last OracleData, asset string, raw int64, now uint64) PriceDecision {
	if raw <= 0 {
		return fallbackDecision(cfg, PriceReasonNonPositive)
	}
	if last.LastPrice > 0 {
		deviation, err := Deviation(last.LastPrice, raw)
		if err != nil || deviation > cfg.MaxPriceDeviation {
			return fallbackDecision(cfg, PriceReasonDeviation)
		}
	}
	return PriceDecision{
		Price: raw,
		Store: &OracleData{Asset: asset, LastPrice: raw, LastUpdateTime: now},
	}
}

func fallbackDecision(cfg OracleConfig, reason string) PriceDecision {
	return PriceDecision{Price: cfg.FallbackPrice, Fallback: true, Reason: reason}
}

// IsStale reports whether the stored observation is older than the heartbeat.
// It is advisory; callers decide whether to act on it.
func (d OracleData) IsStale(cfg OracleConfig, now uint64) bool {
	if now <= d.LastUpdateTime {
		return false
	}
	return now-d.LastUpdateTime > cfg.HeartbeatSeconds
}

// OracleInfo is the read model returned by Engine.OracleInfo.
type OracleInfo struct {
	Asset  string         `json:"asset"`
	Oracle crypto.Address `json:"oracle"`
	Config OracleConfig   `json:"config"`
	Data   OracleData     `json:"data"`
	Stale  bool           `json:"stale"`
}

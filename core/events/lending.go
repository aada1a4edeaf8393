package events

import (
	"strconv"
	"strings"

	"lendcore/core/types"
)

const (
	// TypeLendingDeposit is emitted when collateral is deposited.
	TypeLendingDeposit = "lending.deposit"
	// TypeLendingWithdraw is emitted when collateral is withdrawn.
	TypeLendingWithdraw = "lending.withdraw"
	// TypeLendingBorrow is emitted when debt is drawn against collateral.
	TypeLendingBorrow = "lending.borrow"
	// TypeLendingRepay is emitted when outstanding debt is repaid.
	TypeLendingRepay = "lending.repay"
	// TypeLendingLiquidation is emitted when an undercollateralised position
	// is partially closed by a liquidator.
	TypeLendingLiquidation = "lending.liquidation"
	// TypeLendingInterestAccrued is emitted when a position accrues interest.
	TypeLendingInterestAccrued = "lending.interest.accrued"
	// TypeLendingFeesCollected records fees booked into protocol reserves.
	TypeLendingFeesCollected = "lending.fees.collected"
	// TypeLendingFeesDistributed records reserve transfers to the treasury.
	TypeLendingFeesDistributed = "lending.fees.distributed"
	// TypeLendingReserveUpdated summarises the reserve after any change.
	TypeLendingReserveUpdated = "lending.reserve.updated"
	// TypeLendingPriceUpdated records an accepted oracle observation.
	TypeLendingPriceUpdated = "lending.oracle.price"
	// TypeLendingPriceFallback records a discarded or missing oracle price.
	TypeLendingPriceFallback = "lending.oracle.fallback"
	// TypeLendingParamsUpdated records an admin parameter change.
	TypeLendingParamsUpdated = "lending.params.updated"
	// TypeLendingLargeTransaction flags amounts above the AML threshold.
	TypeLendingLargeTransaction = "lending.aml.large_tx"
	// TypeLendingSuspiciousActivity flags security monitor hits.
	TypeLendingSuspiciousActivity = "lending.security.suspicious"
)

// LendingPositionChanged describes a ledger mutation on a single position.
type LendingPositionChanged struct {
	Action     string
	Account    string
	Asset      string
	Amount     int64
	Collateral int64
	Debt       int64
	Timestamp  uint64
}

// EventType satisfies the events.Event interface.
func (e LendingPositionChanged) EventType() string {
	switch strings.TrimSpace(e.Action) {
	case "deposit":
		return TypeLendingDeposit
	case "withdraw":
		return TypeLendingWithdraw
	case "borrow":
		return TypeLendingBorrow
	case "repay":
		return TypeLendingRepay
	default:
		return "lending." + strings.TrimSpace(e.Action)
	}
}

// Event converts the structured payload into a broadcastable event.
func (e LendingPositionChanged) Event() *types.Event {
	attrs := map[string]string{
		"account":    e.Account,
		"asset":      normalizeAsset(e.Asset),
		"amount":     strconv.FormatInt(e.Amount, 10),
		"collateral": strconv.FormatInt(e.Collateral, 10),
		"debt":       strconv.FormatInt(e.Debt, 10),
	}
	if e.Timestamp > 0 {
		attrs["timestamp"] = strconv.FormatUint(e.Timestamp, 10)
	}
	return &types.Event{Type: e.EventType(), Attributes: attrs}
}

// LendingLiquidation records the outcome of a liquidation call.
type LendingLiquidation struct {
	Liquidator       string
	Borrower         string
	Asset            string
	Requested        int64
	Repaid           int64
	CollateralSeized int64
	RatioBefore      int64
	Timestamp        uint64
}

// EventType satisfies the events.Event interface.
func (LendingLiquidation) EventType() string { return TypeLendingLiquidation }

// Event converts the structured payload into a broadcastable event.
func (e LendingLiquidation) Event() *types.Event {
	attrs := map[string]string{
		"liquidator":       e.Liquidator,
		"borrower":         e.Borrower,
		"asset":            normalizeAsset(e.Asset),
		"requested":        strconv.FormatInt(e.Requested, 10),
		"repaid":           strconv.FormatInt(e.Repaid, 10),
		"collateralSeized": strconv.FormatInt(e.CollateralSeized, 10),
		"ratioBefore":      strconv.FormatInt(e.RatioBefore, 10),
	}
	if e.Timestamp > 0 {
		attrs["timestamp"] = strconv.FormatUint(e.Timestamp, 10)
	}
	return &types.Event{Type: TypeLendingLiquidation, Attributes: attrs}
}

// LendingInterestAccrued records interest added to a position's accumulators.
type LendingInterestAccrued struct {
	Account        string
	Asset          string
	BorrowInterest int64
	SupplyInterest int64
	Elapsed        uint64
}

// EventType satisfies the events.Event interface.
func (LendingInterestAccrued) EventType() string { return TypeLendingInterestAccrued }

// Event converts the structured payload into a broadcastable event.
func (e LendingInterestAccrued) Event() *types.Event {
	return &types.Event{Type: TypeLendingInterestAccrued, Attributes: map[string]string{
		"account":        e.Account,
		"asset":          normalizeAsset(e.Asset),
		"borrowInterest": strconv.FormatInt(e.BorrowInterest, 10),
		"supplyInterest": strconv.FormatInt(e.SupplyInterest, 10),
		"elapsedSeconds": strconv.FormatUint(e.Elapsed, 10),
	}}
}

// LendingFeesCollected records a fee booked into reserves.
type LendingFeesCollected struct {
	Amount int64
	Source string
}

// EventType satisfies the events.Event interface.
func (LendingFeesCollected) EventType() string { return TypeLendingFeesCollected }

// Event converts the structured payload into a broadcastable event.
func (e LendingFeesCollected) Event() *types.Event {
	return &types.Event{Type: TypeLendingFeesCollected, Attributes: map[string]string{
		"amount": strconv.FormatInt(e.Amount, 10),
		"source": strings.TrimSpace(e.Source),
	}}
}

// LendingFeesDistributed records reserves leaving the protocol.
type LendingFeesDistributed struct {
	Amount    int64
	Treasury  string
	Emergency bool
}

// EventType satisfies the events.Event interface.
func (LendingFeesDistributed) EventType() string { return TypeLendingFeesDistributed }

// Event converts the structured payload into a broadcastable event.
func (e LendingFeesDistributed) Event() *types.Event {
	attrs := map[string]string{
		"amount":    strconv.FormatInt(e.Amount, 10),
		"emergency": strconv.FormatBool(e.Emergency),
	}
	if e.Treasury != "" {
		attrs["treasury"] = e.Treasury
	}
	return &types.Event{Type: TypeLendingFeesDistributed, Attributes: attrs}
}

// LendingReserveUpdated summarises reserve totals after a change.
type LendingReserveUpdated struct {
	TotalCollected  int64
	CurrentReserves int64
}

// EventType satisfies the events.Event interface.
func (LendingReserveUpdated) EventType() string { return TypeLendingReserveUpdated }

// Event converts the structured payload into a broadcastable event.
func (e LendingReserveUpdated) Event() *types.Event {
	return &types.Event{Type: TypeLendingReserveUpdated, Attributes: map[string]string{
		"totalCollected":  strconv.FormatInt(e.TotalCollected, 10),
		"currentReserves": strconv.FormatInt(e.CurrentReserves, 10),
	}}
}

// LendingPrice records an oracle price decision. Fallback marks prices that
// were substituted because the oracle was missing, failing or deviant.
type LendingPrice struct {
	Asset     string
	Price     int64
	Fallback  bool
	Reason    string
	Timestamp uint64
}

// EventType satisfies the events.Event interface.
func (e LendingPrice) EventType() string {
	if e.Fallback {
		return TypeLendingPriceFallback
	}
	return TypeLendingPriceUpdated
}

// Event converts the structured payload into a broadcastable event.
func (e LendingPrice) Event() *types.Event {
	attrs := map[string]string{
		"asset": normalizeAsset(e.Asset),
		"price": strconv.FormatInt(e.Price, 10),
	}
	if e.Reason != "" {
		attrs["reason"] = e.Reason
	}
	if e.Timestamp > 0 {
		attrs["timestamp"] = strconv.FormatUint(e.Timestamp, 10)
	}
	return &types.Event{Type: e.EventType(), Attributes: attrs}
}

// LendingParamsUpdated records an admin driven parameter change.
type LendingParamsUpdated struct {
	Admin  string
	Asset  string
	Scope  string
	Values map[string]int64
}

// EventType satisfies the events.Event interface.
func (LendingParamsUpdated) EventType() string { return TypeLendingParamsUpdated }

// Event converts the structured payload into a broadcastable event.
func (e LendingParamsUpdated) Event() *types.Event {
	attrs := map[string]string{
		"scope": strings.TrimSpace(e.Scope),
	}
	if e.Admin != "" {
		attrs["admin"] = e.Admin
	}
	if e.Asset != "" {
		attrs["asset"] = normalizeAsset(e.Asset)
	}
	for key, value := range e.Values {
		attrs[key] = strconv.FormatInt(value, 10)
	}
	return &types.Event{Type: TypeLendingParamsUpdated, Attributes: attrs}
}

// LendingSecurityAlert flags AML threshold crossings and suspicious activity.
type LendingSecurityAlert struct {
	Account   string
	Action    string
	Amount    int64
	Reason    string
	LargeTx   bool
	Timestamp uint64
}

// EventType satisfies the events.Event interface.
func (e LendingSecurityAlert) EventType() string {
	if e.LargeTx {
		return TypeLendingLargeTransaction
	}
	return TypeLendingSuspiciousActivity
}

// Event converts the structured payload into a broadcastable event.
func (e LendingSecurityAlert) Event() *types.Event {
	attrs := map[string]string{
		"account": e.Account,
		"action":  e.Action,
	}
	if e.Amount > 0 {
		attrs["amount"] = strconv.FormatInt(e.Amount, 10)
	}
	if e.Reason != "" {
		attrs["reason"] = e.Reason
	}
	if e.Timestamp > 0 {
		attrs["timestamp"] = strconv.FormatUint(e.Timestamp, 10)
	}
	return &types.Event{Type: e.EventType(), Attributes: attrs}
}

func normalizeAsset(asset string) string {
	normalized := strings.ToUpper(strings.TrimSpace(asset))
	if normalized == "" {
		return "UNKNOWN"
	}
	return normalized
}

package lending

import (
	"log/slog"

	"github.com/holiman/uint256"

	coreerrors "lendcore/core/errors"
	"lendcore/core/events"
	"lendcore/crypto"
)

// CollateralRatio returns (collateral*price/1e8)*100/debt in whole percent.
// A position without debt, or one whose ratio exceeds int64, reports
// InfiniteRatio.
func CollateralRatio(collateral, debt, price int64) (int64, error) {
	if debt <= 0 {
		return InfiniteRatio, nil
	}
	if collateral < 0 || price < 0 {
		return 0, coreerrors.Wrap(coreerrors.ErrInvalidInput, "lending: negative ratio operand %d*%d", collateral, price)
	}
	ratio := new(uint256.Int).Mul(uint256.NewInt(uint64(collateral)), uint256.NewInt(uint64(price)))
	ratio.Div(ratio, scaleU)
	ratio.Mul(ratio, uint256.NewInt(uint64(PercentScale)))
	ratio.Div(ratio, uint256.NewInt(uint64(debt)))
	if ratio.Gt(maxInt64U) {
		return InfiniteRatio, nil
	}
	return int64(ratio.Uint64()), nil
}

// LiquidationResult summarises an executed liquidation.
type LiquidationResult struct {
	Repaid      int64 `json:"repaid"`
	Seized      int64 `json:"seized"`
	RatioBefore int64 `json:"ratio_before"`
	RatioAfter  int64 `json:"ratio_after"`
}

// LiquidationAmounts computes how much debt a liquidation repays and how much
// collateral it seizes. Repayment is capped by the outstanding debt and the
// close factor; the seized amount includes the incentive and is capped by
// the available collateral.
func LiquidationAmounts(requested, debt, collateral int64, risk RiskConfig) (repay, seized int64, err error) {
	closeCap, err := MulScaled(debt, risk.CloseFactor)
	if err != nil {
		return 0, 0, err
	}
	repay = minInt64(requested, debt, closeCap)
	if repay <= 0 {
		return 0, 0, coreerrors.Wrap(coreerrors.ErrInvalidAmount, "lending engine: liquidation repays nothing")
	}
	bonus, err := MulScaled(repay, risk.LiquidationIncentive)
	if err != nil {
		return 0, 0, err
	}
	gross, err := CheckedAdd(repay, bonus)
	if err != nil {
		return 0, 0, err
	}
	return repay, minInt64(gross, collateral), nil
}

// Liquidate partially closes an undercollateralised position in the default
// asset.
func (e *Engine) Liquidate(liquidator, target crypto.Address, amount int64) (LiquidationResult, error) {
	return e.LiquidateAsset(liquidator, target, "", amount)
}

// LiquidateAsset partially closes the target's position in symbol. The target
// must be below the asset's minimum collateral ratio.
func (e *Engine) LiquidateAsset(liquidator, target crypto.Address, symbol string, amount int64) (result LiquidationResult, err error) {
	defer func() { err = e.finish(actionLiquidate, err) }()
	release, err := e.enter()
	if err != nil {
		return LiquidationResult{}, err
	}
	defer release()

	if err := e.requireState(); err != nil {
		return LiquidationResult{}, err
	}
	if err := validateAccount(target); err != nil {
		return LiquidationResult{}, err
	}
	t, err := e.begin(actionLiquidate, liquidator, symbol, amount)
	if err != nil {
		return LiquidationResult{}, err
	}
	if liquidator.Equal(target) {
		return LiquidationResult{}, coreerrors.Wrap(coreerrors.ErrInvalidOperation, "lending engine: self liquidation")
	}
	flags, err := e.state.LendingAccountFlags(target)
	if err != nil {
		return LiquidationResult{}, err
	}
	if flags != nil && flags.Frozen {
		return LiquidationResult{}, coreerrors.Wrap(coreerrors.ErrUnauthorized, "lending engine: target %s frozen", target)
	}
	position, err := t.loadPosition(target, false)
	if err != nil {
		return LiquidationResult{}, err
	}
	if err := t.accrue(); err != nil {
		return LiquidationResult{}, err
	}
	before, err := t.ratio(position)
	if err != nil {
		return LiquidationResult{}, err
	}
	if before >= t.asset.MinCollateralRatio {
		return LiquidationResult{}, coreerrors.Wrap(coreerrors.ErrNotEligibleForLiquidation,
			"lending engine: ratio %d%% meets minimum %d%%", before, t.asset.MinCollateralRatio)
	}
	repay, seized, err := LiquidationAmounts(amount, position.Debt, position.Collateral, t.asset.Risk)
	if err != nil {
		return LiquidationResult{}, err
	}
	borrowed, err := CheckedSub(t.asset.State.TotalBorrowed, repay)
	if err != nil {
		return LiquidationResult{}, err
	}
	position.Debt -= repay
	position.Collateral -= seized
	t.asset.State.TotalBorrowed = borrowed
	if err := t.refreshRates(); err != nil {
		return LiquidationResult{}, err
	}
	after, err := t.ratio(position)
	if err != nil {
		return LiquidationResult{}, err
	}
	t.activity = true
	t.amount = repay
	t.events = append(t.events, events.LendingLiquidation{
		Liquidator:       liquidator.String(),
		Borrower:         target.String(),
		Asset:            t.asset.Symbol,
		Requested:        amount,
		Repaid:           repay,
		CollateralSeized: seized,
		RatioBefore:      before,
		Timestamp:        t.now,
	})
	if err := t.commit(); err != nil {
		return LiquidationResult{}, err
	}
	e.metrics.ObserveLiquidation(t.asset.Symbol)
	e.logger.Info("lending position liquidated",
		slog.String("liquidator", liquidator.String()),
		slog.String("borrower", target.String()),
		slog.String("asset", t.asset.Symbol),
		slog.String("repaid", FormatScaled(repay)),
		slog.String("seized", FormatScaled(seized)),
		slog.Int64("ratioBefore", before))
	return LiquidationResult{Repaid: repay, Seized: seized, RatioBefore: before, RatioAfter: after}, nil
}

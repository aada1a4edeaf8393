package lending

import (
	"log/slog"

	coreerrors "lendcore/core/errors"
	"lendcore/core/events"
	"lendcore/crypto"
)

// CollectProtocolFees books a manual fee into reserves. Source selects the
// revenue bucket and defaults to the manual bucket.
func (e *Engine) CollectProtocolFees(caller crypto.Address, amount int64, source string) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if err := validateAmount(amount); err != nil {
		return err
	}
	switch source {
	case FeeSourceBorrow, FeeSourceSupply, FeeSourceManual:
	case "":
		source = FeeSourceManual
	default:
		return coreerrors.Wrap(coreerrors.ErrInvalidInput, "lending engine: unknown fee source %q", source)
	}
	t := e.newTxn("collect_fees")
	if err := t.collectFee(amount, source); err != nil {
		return err
	}
	return t.commit()
}

// releaseReserves moves amount out of current reserves into the distributed
// total. Both treasury distributions and emergency withdrawals go through it
// so current == collected - distributed holds afterwards.
func (t *txn) releaseReserves(amount int64) error {
	if err := validateAmount(amount); err != nil {
		return err
	}
	if err := t.loadReserve(); err != nil {
		return err
	}
	if amount > t.reserve.CurrentReserves {
		return coreerrors.Wrap(coreerrors.ErrInsufficientCollateral,
			"lending engine: %d exceeds reserves %d", amount, t.reserve.CurrentReserves)
	}
	distributed, err := CheckedAdd(t.reserve.TotalFeesDistributed, amount)
	if err != nil {
		return err
	}
	t.reserve.CurrentReserves -= amount
	t.reserve.TotalFeesDistributed = distributed
	return nil
}

// DistributeFeesToTreasury transfers amount from reserves to the treasury.
func (e *Engine) DistributeFeesToTreasury(caller crypto.Address, amount int64) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	t := e.newTxn("distribute_fees")
	if err := t.releaseReserves(amount); err != nil {
		return err
	}
	if t.reserve.Treasury.IsZero() {
		return coreerrors.Wrap(coreerrors.ErrInvalidAddress, "lending engine: treasury not configured")
	}
	t.reserve.LastDistributionTime = t.now
	t.events = append(t.events, events.LendingFeesDistributed{Amount: amount, Treasury: t.reserve.Treasury.String()})
	if err := t.commit(); err != nil {
		return err
	}
	e.logger.Info("protocol fees distributed",
		slog.String("admin", caller.String()),
		slog.String("treasury", t.reserve.Treasury.String()),
		slog.String("amount", FormatScaled(amount)))
	return nil
}

// EmergencyWithdrawFees drains amount from reserves outside the regular
// distribution schedule.
func (e *Engine) EmergencyWithdrawFees(caller crypto.Address, amount int64) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	t := e.newTxn("emergency_withdraw")
	if err := t.releaseReserves(amount); err != nil {
		return err
	}
	withdrawn, err := CheckedAdd(t.reserve.TotalEmergencyWithdrawn, amount)
	if err != nil {
		return err
	}
	t.reserve.TotalEmergencyWithdrawn = withdrawn
	t.events = append(t.events, events.LendingFeesDistributed{Amount: amount, Treasury: t.reserve.Treasury.String(), Emergency: true})
	if err := t.commit(); err != nil {
		return err
	}
	e.logger.Warn("emergency fee withdrawal",
		slog.String("admin", caller.String()),
		slog.String("amount", FormatScaled(amount)))
	return nil
}

// SetTreasury configures the account receiving fee distributions.
func (e *Engine) SetTreasury(caller, treasury crypto.Address) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if err := validateAccount(treasury); err != nil {
		return err
	}
	t := e.newTxn("set_treasury")
	if err := t.loadReserve(); err != nil {
		return err
	}
	t.reserve.Treasury = treasury
	if err := t.commit(); err != nil {
		return err
	}
	e.logger.Info("treasury updated", slog.String("admin", caller.String()), slog.String("treasury", treasury.String()))
	return nil
}

// SetDistributionFrequency configures the distribution interval in seconds.
func (e *Engine) SetDistributionFrequency(caller crypto.Address, seconds uint64) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if seconds == 0 {
		return coreerrors.Wrap(coreerrors.ErrInvalidInput, "lending engine: distribution frequency must be positive")
	}
	t := e.newTxn("set_distribution_frequency")
	if err := t.loadReserve(); err != nil {
		return err
	}
	t.reserve.DistributionFrequency = seconds
	if err := t.commit(); err != nil {
		return err
	}
	e.publishParams(caller, "", "reserve.frequency", map[string]int64{"distribution_frequency": int64(seconds)})
	return nil
}

// DistributionDue reports whether the distribution interval has elapsed
// since the last treasury distribution.
func (r ReserveData) DistributionDue(now uint64) bool {
	if r.DistributionFrequency == 0 || r.LastDistributionTime == 0 {
		return true
	}
	return now >= r.LastDistributionTime+r.DistributionFrequency
}

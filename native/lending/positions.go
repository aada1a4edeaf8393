package lending

import (
	"log/slog"

	coreerrors "lendcore/core/errors"
	"lendcore/core/events"
	"lendcore/crypto"
)

// Deposit adds collateral to the account's position in the default asset.
func (e *Engine) Deposit(account crypto.Address, amount int64) error {
	return e.DepositAsset(account, "", amount)
}

// DepositAsset adds collateral to the account's position in symbol, creating
// the position on first use.
func (e *Engine) DepositAsset(account crypto.Address, symbol string, amount int64) (err error) {
	defer func() { err = e.finish(actionDeposit, err) }()
	release, err := e.enter()
	if err != nil {
		return err
	}
	defer release()

	t, err := e.begin(actionDeposit, account, symbol, amount)
	if err != nil {
		return err
	}
	position, err := t.loadPosition(account, true)
	if err != nil {
		return err
	}
	if err := t.accrue(); err != nil {
		return err
	}
	collateral, err := CheckedAdd(position.Collateral, amount)
	if err != nil {
		return err
	}
	supplied, err := CheckedAdd(t.asset.State.TotalSupplied, amount)
	if err != nil {
		return err
	}
	position.Collateral = collateral
	t.asset.State.TotalSupplied = supplied
	if err := t.refreshRates(); err != nil {
		return err
	}
	t.recordChange(actionDeposit, position, amount)
	return t.commit()
}

// Borrow draws debt against the account's collateral in the default asset.
func (e *Engine) Borrow(account crypto.Address, amount int64) error {
	return e.BorrowAsset(account, "", amount)
}

// BorrowAsset draws debt in symbol. The post-borrow collateral ratio must stay
// at or above the asset minimum.
func (e *Engine) BorrowAsset(account crypto.Address, symbol string, amount int64) (err error) {
	defer func() { err = e.finish(actionBorrow, err) }()
	release, err := e.enter()
	if err != nil {
		return err
	}
	defer release()

	t, err := e.begin(actionBorrow, account, symbol, amount)
	if err != nil {
		return err
	}
	position, err := t.loadPosition(account, true)
	if err != nil {
		return err
	}
	if err := t.accrue(); err != nil {
		return err
	}
	debt, err := CheckedAdd(position.Debt, amount)
	if err != nil {
		return err
	}
	price, err := t.price()
	if err != nil {
		return err
	}
	ratio, err := CollateralRatio(position.Collateral, debt, price)
	if err != nil {
		return err
	}
	if ratio < t.asset.MinCollateralRatio {
		e.flagSuspicious(account, actionBorrow, alertRatioViolation, amount, t.now)
		return coreerrors.Wrap(coreerrors.ErrInsufficientCollateralRatio,
			"lending engine: borrow leaves ratio %d%% below %d%%", ratio, t.asset.MinCollateralRatio)
	}
	borrowed, err := CheckedAdd(t.asset.State.TotalBorrowed, amount)
	if err != nil {
		return err
	}
	position.Debt = debt
	t.asset.State.TotalBorrowed = borrowed
	if err := t.refreshRates(); err != nil {
		return err
	}
	t.recordChange(actionBorrow, position, amount)
	return t.commit()
}

// Repay reduces the account's debt in the default asset.
func (e *Engine) Repay(account crypto.Address, amount int64) error {
	return e.RepayAsset(account, "", amount)
}

// RepayAsset reduces the account's debt in symbol by min(amount, debt). An
// account without debt repays nothing and the call succeeds.
func (e *Engine) RepayAsset(account crypto.Address, symbol string, amount int64) (err error) {
	defer func() { err = e.finish(actionRepay, err) }()
	release, err := e.enter()
	if err != nil {
		return err
	}
	defer release()

	t, err := e.begin(actionRepay, account, symbol, amount)
	if err != nil {
		return err
	}
	position, err := t.loadPosition(account, true)
	if err != nil {
		return err
	}
	if err := t.accrue(); err != nil {
		return err
	}
	if position.Debt == 0 {
		// Nothing owed: the repayment is accepted and nothing is written.
		return nil
	}
	paid := minInt64(amount, position.Debt)
	borrowed, err := CheckedSub(t.asset.State.TotalBorrowed, paid)
	if err != nil {
		return err
	}
	position.Debt -= paid
	t.asset.State.TotalBorrowed = borrowed
	if err := t.refreshRates(); err != nil {
		return err
	}
	t.recordChange(actionRepay, position, paid)
	return t.commit()
}

// Withdraw removes collateral from the account's position in the default
// asset.
func (e *Engine) Withdraw(account crypto.Address, amount int64) error {
	return e.WithdrawAsset(account, "", amount)
}

// WithdrawAsset removes collateral in symbol. With outstanding debt the
// post-withdrawal ratio is simulated first and the call is rejected when it
// would fall below the asset minimum.
func (e *Engine) WithdrawAsset(account crypto.Address, symbol string, amount int64) (err error) {
	defer func() { err = e.finish(actionWithdraw, err) }()
	release, err := e.enter()
	if err != nil {
		return err
	}
	defer release()

	t, err := e.begin(actionWithdraw, account, symbol, amount)
	if err != nil {
		return err
	}
	position, err := t.loadPosition(account, true)
	if err != nil {
		return err
	}
	if err := t.accrue(); err != nil {
		return err
	}
	if position.Collateral < amount {
		return coreerrors.Wrap(coreerrors.ErrInsufficientCollateral,
			"lending engine: withdraw %d exceeds collateral %d", amount, position.Collateral)
	}
	remaining := position.Collateral - amount
	if position.Debt > 0 {
		price, err := t.price()
		if err != nil {
			return err
		}
		ratio, err := CollateralRatio(remaining, position.Debt, price)
		if err != nil {
			return err
		}
		if ratio < t.asset.MinCollateralRatio {
			return coreerrors.Wrap(coreerrors.ErrInsufficientCollateralRatio,
				"lending engine: withdraw leaves ratio %d%% below %d%%", ratio, t.asset.MinCollateralRatio)
		}
	}
	supplied, err := CheckedSub(t.asset.State.TotalSupplied, amount)
	if err != nil {
		return err
	}
	position.Collateral = remaining
	t.asset.State.TotalSupplied = supplied
	if err := t.refreshRates(); err != nil {
		return err
	}
	t.recordChange(actionWithdraw, position, amount)
	return t.commit()
}

// AccrueInterest settles interest on the account's position in symbol (the
// default asset when empty). Anyone may call it; a second call at the same
// timestamp adds nothing.
func (e *Engine) AccrueInterest(account crypto.Address, symbol string) (accrual Accrual, err error) {
	defer func() { err = e.finish(actionAccrue, err) }()
	release, err := e.enter()
	if err != nil {
		return Accrual{}, err
	}
	defer release()

	if err := e.requireState(); err != nil {
		return Accrual{}, err
	}
	if err := validateAccount(account); err != nil {
		return Accrual{}, err
	}
	asset, err := e.resolveAsset(symbol)
	if err != nil {
		return Accrual{}, err
	}
	t := e.newTxn(actionAccrue)
	t.asset = asset
	position, err := t.loadPosition(account, false)
	if err != nil {
		return Accrual{}, err
	}
	before := *position
	if err := t.accrue(); err != nil {
		return Accrual{}, err
	}
	accrual = Accrual{
		BorrowInterest: position.AccruedBorrowInterest - before.AccruedBorrowInterest,
		SupplyInterest: position.AccruedSupplyInterest - before.AccruedSupplyInterest,
	}
	if position.LastAccrualTime > before.LastAccrualTime {
		accrual.Elapsed = position.LastAccrualTime - before.LastAccrualTime
	}
	if err := t.commit(); err != nil {
		return Accrual{}, err
	}
	return accrual, nil
}

// recordChange stages the position event and marks the call for activity
// tracking.
func (t *txn) recordChange(action string, position *Position, amount int64) {
	t.activity = true
	t.amount = amount
	t.events = append(t.events, events.LendingPositionChanged{
		Action:     action,
		Account:    position.Account.String(),
		Asset:      position.Asset,
		Amount:     amount,
		Collateral: position.Collateral,
		Debt:       position.Debt,
		Timestamp:  t.now,
	})
	t.e.logger.Debug("lending position updated",
		slog.String("action", action),
		slog.String("account", position.Account.String()),
		slog.String("asset", position.Asset),
		slog.String("amount", FormatScaled(amount)))
}

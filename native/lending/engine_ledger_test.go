package lending

import (
	"testing"
	"time"

	coreerrors "lendcore/core/errors"
	"lendcore/core/events"
	"lendcore/crypto"
	nativecommon "lendcore/native/common"
)

func TestInitializeOnlyOnce(t *testing.T) {
	f := newEngineFixture(t)
	err := f.engine.Initialize(DefaultAsset(), DefaultOracleConfig(), makeAddress(0x7E))
	requireKind(t, err, coreerrors.ErrAlreadyInitialized)
	assets, _ := f.engine.SupportedAssets()
	if len(assets) != 1 || assets[0] != DefaultAssetSymbol {
		t.Fatalf("unexpected registry: %v", assets)
	}
}

func TestDepositBorrowRatio(t *testing.T) {
	f := newEngineFixture(t)
	user := makeAddress(0x01)
	if err := f.engine.Deposit(user, 2_000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := f.engine.Borrow(user, 1_000); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	ratio, err := f.engine.CollateralRatio(user, "")
	if err != nil {
		t.Fatalf("ratio: %v", err)
	}
	if ratio != 400 {
		t.Fatalf("unexpected ratio: got %d want 400", ratio)
	}

	writes := f.state.writes
	err = f.engine.Borrow(user, 2_000)
	requireKind(t, err, coreerrors.ErrInsufficientCollateralRatio)
	if got := f.position(t, user).Debt; got != 1_000 {
		t.Fatalf("failed borrow changed debt: got %d want 1000", got)
	}
	if f.state.writes != writes {
		t.Fatalf("failed borrow wrote state: %d writes", f.state.writes-writes)
	}
	if f.engine.SuspiciousCount(user) != 1 {
		t.Fatalf("ratio violation not flagged")
	}

	asset := f.asset(t)
	if asset.State.TotalSupplied != 2_000 || asset.State.TotalBorrowed != 1_000 {
		t.Fatalf("unexpected totals: %+v", asset.State)
	}
}

func TestLedgerPreconditions(t *testing.T) {
	f := newEngineFixture(t)
	user := makeAddress(0x01)

	requireKind(t, f.engine.Deposit(user, 0), coreerrors.ErrInvalidAmount)
	requireKind(t, f.engine.Deposit(user, -5), coreerrors.ErrInvalidAmount)
	requireKind(t, f.engine.Deposit(crypto.Address{}, 10), coreerrors.ErrInvalidAddress)
	requireKind(t, f.engine.Withdraw(user, 10), coreerrors.ErrInsufficientCollateral)
	requireKind(t, f.engine.DepositAsset(user, "BTC", 10), coreerrors.ErrAssetNotSupported)

	if err := f.engine.Deposit(user, 100); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	requireKind(t, f.engine.Withdraw(user, 101), coreerrors.ErrInsufficientCollateral)
}

func TestRepayWithoutDebtIsNoop(t *testing.T) {
	f := newEngineFixture(t)
	user := makeAddress(0x01)

	writes := f.state.writes
	if err := f.engine.Repay(user, 10); err != nil {
		t.Fatalf("repay without position: %v", err)
	}
	if _, ok, _ := f.state.LendingPosition(DefaultAssetSymbol, user); ok || f.state.writes != writes {
		t.Fatalf("repay without debt created a position")
	}

	if err := f.engine.Deposit(user, 100); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	writes = f.state.writes
	if err := f.engine.Repay(user, 10); err != nil {
		t.Fatalf("repay without debt: %v", err)
	}
	if f.state.writes != writes {
		t.Fatalf("repay without debt wrote state: %d writes", f.state.writes-writes)
	}
	if got := f.position(t, user); got.Debt != 0 || got.Collateral != 100 {
		t.Fatalf("unexpected position: %+v", got)
	}
}

func TestBorrowAgainstLargeCollateral(t *testing.T) {
	f := newEngineFixture(t)
	user := makeAddress(0x01)
	if err := f.engine.Deposit(user, 50_000_000_000_000_000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := f.engine.Borrow(user, 1); err != nil {
		t.Fatalf("borrow against large collateral: %v", err)
	}
	ratio, err := f.engine.CollateralRatio(user, "")
	if err != nil {
		t.Fatalf("ratio: %v", err)
	}
	if ratio != InfiniteRatio {
		t.Fatalf("oversized ratio must saturate: got %d", ratio)
	}
	if err := f.engine.Withdraw(user, 1_000); err != nil {
		t.Fatalf("withdraw against large collateral: %v", err)
	}
}

func TestRepayCapsAtDebt(t *testing.T) {
	f := newEngineFixture(t)
	user := makeAddress(0x01)
	if err := f.engine.Deposit(user, 2_000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := f.engine.Borrow(user, 1_000); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	if err := f.engine.Repay(user, 400); err != nil {
		t.Fatalf("repay: %v", err)
	}
	if got := f.position(t, user).Debt; got != 600 {
		t.Fatalf("unexpected debt: got %d want 600", got)
	}
	if err := f.engine.Repay(user, 5_000); err != nil {
		t.Fatalf("repay: %v", err)
	}
	if got := f.position(t, user).Debt; got != 0 {
		t.Fatalf("unexpected debt: got %d want 0", got)
	}
	if got := f.asset(t).State.TotalBorrowed; got != 0 {
		t.Fatalf("unexpected total borrowed: %d", got)
	}
	activity, _ := f.engine.UserActivity(user)
	if activity.TotalRepayments != 1_000 || activity.ActivityCount != 4 {
		t.Fatalf("unexpected activity: %+v", activity)
	}
}

func TestWithdrawSimulatesRatio(t *testing.T) {
	f := newEngineFixture(t)
	user := makeAddress(0x01)
	if err := f.engine.Deposit(user, 2_000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := f.engine.Borrow(user, 1_000); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	requireKind(t, f.engine.Withdraw(user, 1_300), coreerrors.ErrInsufficientCollateralRatio)
	if got := f.position(t, user).Collateral; got != 2_000 {
		t.Fatalf("failed withdraw changed collateral: %d", got)
	}
	if err := f.engine.Withdraw(user, 600); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if got := f.position(t, user).Collateral; got != 1_400 {
		t.Fatalf("unexpected collateral: %d", got)
	}
	if got := f.asset(t).State.TotalSupplied; got != 1_400 {
		t.Fatalf("unexpected total supplied: %d", got)
	}
}

func TestPauseSwitches(t *testing.T) {
	f := newEngineFixture(t)
	user := makeAddress(0x01)
	if err := f.engine.Deposit(user, 2_000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := f.engine.SetPauseSwitches(testAdmin, "", true, false, false, false); err != nil {
		t.Fatalf("pause: %v", err)
	}
	requireKind(t, f.engine.Borrow(user, 100), coreerrors.ErrProtocolPaused)
	if err := f.engine.Deposit(user, 100); err != nil {
		t.Fatalf("deposit while borrow paused: %v", err)
	}

	f.engine.SetPauses(nativecommon.StaticPauses{"lending": true})
	requireKind(t, f.engine.Deposit(user, 100), coreerrors.ErrProtocolPaused)
	f.engine.SetPauses(nil)

	if err := f.engine.SetEmergencyPause(testAdmin, true); err != nil {
		t.Fatalf("emergency pause: %v", err)
	}
	requireKind(t, f.engine.Deposit(user, 100), coreerrors.ErrProtocolPaused)
}

func TestAdminSettersRequireAdmin(t *testing.T) {
	f := newEngineFixture(t)
	outsider := makeAddress(0x02)
	requireKind(t, f.engine.SetBaseRate(outsider, "", 1), coreerrors.ErrUnauthorized)
	requireKind(t, f.engine.SetTreasury(outsider, outsider), coreerrors.ErrUnauthorized)
	requireKind(t, f.engine.SetAccountFrozen(outsider, outsider, true), coreerrors.ErrUnauthorized)

	requireKind(t, f.engine.SetRateLimits(testAdmin, "", 10, 5), coreerrors.ErrInvalidInput)
	requireKind(t, f.engine.SetRiskParams(testAdmin, "", 0, 10), coreerrors.ErrInvalidInput)
	requireKind(t, f.engine.SetMinCollateralRatio(testAdmin, "", 99), coreerrors.ErrInvalidInput)

	if err := f.engine.SetBaseRate(testAdmin, "", 3_000_000); err != nil {
		t.Fatalf("set base rate: %v", err)
	}
	rates, _ := f.engine.CurrentRates("")
	if rates.CurrentBorrowRate != 3_000_000 {
		t.Fatalf("rates not recomputed: %+v", rates)
	}
	if err := f.engine.EmergencyRateAdjustment(testAdmin, "", 40_000_000); err != nil {
		t.Fatalf("emergency rate: %v", err)
	}
	rates, _ = f.engine.CurrentRates("")
	if rates.CurrentBorrowRate != 40_000_000 {
		t.Fatalf("emergency rate not applied: %+v", rates)
	}
}

func TestComplianceChecks(t *testing.T) {
	f := newEngineFixture(t)
	user := makeAddress(0x01)
	if err := f.engine.SetAccountFrozen(testAdmin, user, true); err != nil {
		t.Fatalf("freeze: %v", err)
	}
	requireKind(t, f.engine.Deposit(user, 100), coreerrors.ErrUnauthorized)
	if f.engine.SuspiciousCount(user) != 1 {
		t.Fatalf("frozen attempt not counted")
	}
	if err := f.engine.SetAccountFrozen(testAdmin, user, false); err != nil {
		t.Fatalf("unfreeze: %v", err)
	}
	if err := f.engine.SetKYCRequired(testAdmin, true); err != nil {
		t.Fatalf("kyc: %v", err)
	}
	requireKind(t, f.engine.Deposit(user, 100), coreerrors.ErrUnauthorized)
	if err := f.engine.SetVerified(testAdmin, user, true); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if err := f.engine.Deposit(user, 100); err != nil {
		t.Fatalf("deposit after verification: %v", err)
	}
	if err := f.engine.SetBlacklisted(testAdmin, user, true); err != nil {
		t.Fatalf("blacklist: %v", err)
	}
	requireKind(t, f.engine.Deposit(user, 100), coreerrors.ErrUnauthorized)
}

func TestLargeTransactionFlaggedNotBlocked(t *testing.T) {
	f := newEngineFixture(t)
	user := makeAddress(0x01)
	if err := f.engine.Deposit(user, DefaultAMLThreshold); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	found := false
	for _, typ := range f.recorder.Types() {
		if typ == events.TypeLendingLargeTransaction {
			found = true
		}
	}
	if !found {
		t.Fatalf("large transaction not flagged: %v", f.recorder.Types())
	}
}

func TestOperationRateLimit(t *testing.T) {
	f := newEngineFixture(t)
	f.engine.SetOperationRateLimit(nativecommon.RateLimit{PerSecond: 1, Burst: 1})
	user := makeAddress(0x01)
	if err := f.engine.Deposit(user, 100); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	requireKind(t, f.engine.Deposit(user, 100), coreerrors.ErrInvalidOperation)
	f.clock.Advance(time.Second)
	if err := f.engine.Deposit(user, 100); err != nil {
		t.Fatalf("deposit after refill: %v", err)
	}
}

type reentrantSource struct {
	engine *Engine
	nested error
}

func (r *reentrantSource) Price(crypto.Address, string) (int64, error) {
	r.nested = r.engine.Deposit(makeAddress(0x09), 10)
	return 200_000_000, nil
}

func TestReentrancyGuardBlocksNestedCalls(t *testing.T) {
	f := newEngineFixture(t)
	source := &reentrantSource{engine: f.engine}
	f.engine.SetPriceSource(source)
	user := makeAddress(0x01)
	if err := f.engine.Deposit(user, 2_000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := f.engine.Borrow(user, 100); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	requireKind(t, source.nested, coreerrors.ErrInvalidOperation)
	if f.engine.guard.Locked() {
		t.Fatalf("guard left locked")
	}
	if _, ok, _ := f.state.LendingPosition(DefaultAssetSymbol, makeAddress(0x09)); ok {
		t.Fatalf("nested deposit created a position")
	}
}

package lending

import "testing"

func TestBorrowRateCurve(t *testing.T) {
	cfg := DefaultInterestRateConfig()
	cases := []struct {
		utilization int64
		want        int64
	}{
		{0, 2_000_000},
		{40_000_000, 2_000_000},
		{80_000_000, 2_000_000},
		{90_000_000, 3_000_000},
		{100_000_000, 4_000_000},
	}
	for _, tc := range cases {
		got, err := cfg.BorrowRate(tc.utilization)
		if err != nil {
			t.Fatalf("borrow rate: %v", err)
		}
		if got != tc.want {
			t.Fatalf("unexpected rate at %d: got %d want %d", tc.utilization, got, tc.want)
		}
	}
}

func TestBorrowRateClampsToLimits(t *testing.T) {
	cfg := DefaultInterestRateConfig()
	cfg.Multiplier = 1_000_000_000
	got, err := cfg.BorrowRate(Scale)
	if err != nil {
		t.Fatalf("borrow rate: %v", err)
	}
	if got != cfg.RateCeiling {
		t.Fatalf("expected ceiling clamp: got %d", got)
	}
	cfg = DefaultInterestRateConfig()
	cfg.BaseRate = 0
	if got, _ := cfg.BorrowRate(0); got != cfg.RateFloor {
		t.Fatalf("expected floor clamp: got %d", got)
	}
}

func TestSupplyRateRemovesReserveShare(t *testing.T) {
	cfg := DefaultInterestRateConfig()
	got, err := cfg.SupplyRate(2_000_000, 40_000_000)
	if err != nil {
		t.Fatalf("supply rate: %v", err)
	}
	if got != 720_000 {
		t.Fatalf("unexpected supply rate: got %d want 720000", got)
	}
}

func TestUtilizationWithoutLiquidity(t *testing.T) {
	if got, _ := Utilization(100, 0); got != 0 {
		t.Fatalf("expected zero utilization, got %d", got)
	}
}

func TestAccruePositionIsIdempotentPerTimestamp(t *testing.T) {
	p := &Position{Collateral: 1_000_000_000, Debt: 400_000_000, LastAccrualTime: 100}
	now := uint64(100 + SecondsPerYear)
	accrual, err := AccruePosition(p, 2_000_000, 720_000, now)
	if err != nil {
		t.Fatalf("accrue: %v", err)
	}
	if accrual.BorrowInterest != 8_000_000 || accrual.SupplyInterest != 7_200_000 {
		t.Fatalf("unexpected accrual: %+v", accrual)
	}
	again, err := AccruePosition(p, 2_000_000, 720_000, now)
	if err != nil {
		t.Fatalf("accrue: %v", err)
	}
	if again.BorrowInterest != 0 || again.SupplyInterest != 0 {
		t.Fatalf("second accrual added interest: %+v", again)
	}
	if p.Debt != 400_000_000 {
		t.Fatalf("interest compounded into principal: %d", p.Debt)
	}
}

func TestProtocolFees(t *testing.T) {
	borrowFee, supplyFee, err := ProtocolFees(Accrual{BorrowInterest: 8_000_000, SupplyInterest: 7_200_000}, 10_000_000)
	if err != nil {
		t.Fatalf("fees: %v", err)
	}
	if borrowFee != 800_000 || supplyFee != 800_000 {
		t.Fatalf("unexpected fees: borrow %d supply %d", borrowFee, supplyFee)
	}
	_, supplyFee, _ = ProtocolFees(Accrual{SupplyInterest: 7_200_000}, Scale)
	if supplyFee != 0 {
		t.Fatalf("expected zero supply fee at full reserve factor, got %d", supplyFee)
	}
}

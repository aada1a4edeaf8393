package lending

// Utilization computes totalBorrowed/totalSupplied on the 1e8 scale. When no
// liquidity exists the utilization is defined as zero.
func Utilization(totalBorrowed, totalSupplied int64) (int64, error) {
	if totalSupplied <= 0 || totalBorrowed <= 0 {
		return 0, nil
	}
	return MulDiv(totalBorrowed, Scale, totalSupplied)
}

// BorrowRate evaluates the kinked curve: the base rate plus the multiplier
// applied to utilization above the kink, clamped to [floor, ceiling].
func (c InterestRateConfig) BorrowRate(utilization int64) (int64, error) {
	rate := c.BaseRate
	if excess := utilization - c.KinkUtilization; excess > 0 {
		slope, err := MulDiv(excess, c.Multiplier, Scale)
		if err != nil {
			return 0, err
		}
		rate, err = CheckedAdd(rate, slope)
		if err != nil {
			return 0, err
		}
	}
	if c.RateFloor <= c.RateCeiling {
		rate = clampInt64(rate, c.RateFloor, c.RateCeiling)
	}
	return rate, nil
}

// SupplyRate derives the lender rate: the borrow rate scaled by utilization
// with the reserve factor share removed.
func (c InterestRateConfig) SupplyRate(borrowRate, utilization int64) (int64, error) {
	if borrowRate <= 0 || utilization <= 0 {
		return 0, nil
	}
	gross, err := MulDiv(borrowRate, utilization, Scale)
	if err != nil {
		return 0, err
	}
	reserve, err := MulDiv(gross, clampInt64(c.ReserveFactor, 0, Scale), Scale)
	if err != nil {
		return 0, err
	}
	return gross - reserve, nil
}

// Refresh recomputes utilization and both rates from the state's totals and
// stamps the accrual time.
func (c InterestRateConfig) Refresh(state InterestRateState, now uint64) (InterestRateState, error) {
	utilization, err := Utilization(state.TotalBorrowed, state.TotalSupplied)
	if err != nil {
		return state, err
	}
	borrow, err := c.BorrowRate(utilization)
	if err != nil {
		return state, err
	}
	supply, err := c.SupplyRate(borrow, utilization)
	if err != nil {
		return state, err
	}
	state.UtilizationRate = utilization
	state.CurrentBorrowRate = borrow
	state.CurrentSupplyRate = supply
	state.LastAccrualTime = now
	return state, nil
}

// Accrual reports the interest added to a position by AccruePosition.
type Accrual struct {
	Elapsed        uint64
	BorrowInterest int64
	SupplyInterest int64
}

// AccruePosition adds simple interest for the time elapsed since the
// position's last accrual. Debt accrues at the borrow rate and collateral at
// the supply rate. Nothing is added when no time has passed.
func AccruePosition(p *Position, borrowRate, supplyRate int64, now uint64) (Accrual, error) {
	if p == nil {
		return Accrual{}, nil
	}
	if p.LastAccrualTime == 0 || now <= p.LastAccrualTime {
		if p.LastAccrualTime == 0 {
			p.LastAccrualTime = now
		}
		return Accrual{}, nil
	}
	elapsed := now - p.LastAccrualTime
	borrowInterest, err := interestFor(p.Debt, borrowRate, elapsed)
	if err != nil {
		return Accrual{}, err
	}
	supplyInterest, err := interestFor(p.Collateral, supplyRate, elapsed)
	if err != nil {
		return Accrual{}, err
	}
	nextBorrow, err := CheckedAdd(p.AccruedBorrowInterest, borrowInterest)
	if err != nil {
		return Accrual{}, err
	}
	nextSupply, err := CheckedAdd(p.AccruedSupplyInterest, supplyInterest)
	if err != nil {
		return Accrual{}, err
	}
	p.AccruedBorrowInterest = nextBorrow
	p.AccruedSupplyInterest = nextSupply
	p.LastAccrualTime = now
	return Accrual{Elapsed: elapsed, BorrowInterest: borrowInterest, SupplyInterest: supplyInterest}, nil
}

// ProtocolFees splits newly accrued interest into the protocol's borrow and
// supply fee shares. The supply share grosses the lender interest back up to
// the pre-reserve amount and keeps the difference.
func ProtocolFees(accrual Accrual, reserveFactor int64) (borrowFee, supplyFee int64, err error) {
	rf := clampInt64(reserveFactor, 0, Scale)
	if accrual.BorrowInterest > 0 && rf > 0 {
		borrowFee, err = MulDiv(accrual.BorrowInterest, rf, Scale)
		if err != nil {
			return 0, 0, err
		}
	}
	if accrual.SupplyInterest > 0 && rf > 0 && rf < Scale {
		gross, err := MulDiv(accrual.SupplyInterest, Scale, Scale-rf)
		if err != nil {
			return 0, 0, err
		}
		supplyFee = gross - accrual.SupplyInterest
	}
	return borrowFee, supplyFee, nil
}

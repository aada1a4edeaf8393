package lending

import "math"

// recordActivity folds a successful ledger call into the per-account and
// protocol counters.
func (e *Engine) recordActivity(t *txn) error {
	user, ok, err := e.state.LendingUserActivity(t.account)
	if err != nil {
		return err
	}
	protocol, err := e.state.LendingProtocolActivity()
	if err != nil {
		return err
	}
	next := UserActivity{}
	if ok && user != nil {
		next = *user
	}
	totals := ProtocolActivity{}
	if protocol != nil {
		totals = *protocol
	}
	if !ok {
		totals.TotalUsers++
	}
	switch t.action {
	case actionDeposit:
		next.TotalDeposits = saturatingAdd(next.TotalDeposits, t.amount)
	case actionWithdraw:
		next.TotalWithdrawals = saturatingAdd(next.TotalWithdrawals, t.amount)
	case actionBorrow:
		next.TotalBorrows = saturatingAdd(next.TotalBorrows, t.amount)
	case actionRepay:
		next.TotalRepayments = saturatingAdd(next.TotalRepayments, t.amount)
	}
	next.ActivityCount++
	next.LastActivity = t.now
	totals.TotalTransactions++
	totals.LastUpdate = t.now
	if err := e.state.PutLendingUserActivity(t.account, &next); err != nil {
		return err
	}
	return e.state.PutLendingProtocolActivity(&totals)
}

// saturatingAdd keeps activity statistics from failing a ledger call on
// overflow.
func saturatingAdd(a, b int64) int64 {
	sum, err := CheckedAdd(a, b)
	if err != nil {
		return math.MaxInt64
	}
	return sum
}

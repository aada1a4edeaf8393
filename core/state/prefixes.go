package state

import (
	"fmt"
	"strings"

	"lendcore/crypto"
)

var (
	lendingRegistryKeyBytes         = []byte("lending/registry")
	lendingReserveKeyBytes          = []byte("lending/reserve")
	lendingRevenueKeyBytes          = []byte("lending/revenue")
	lendingOracleConfigKeyBytes     = []byte("lending/oracle/config")
	lendingProtocolActivityKeyBytes = []byte("lending/activity/protocol")
	lendingSettingsKeyBytes         = []byte("lending/settings")
	lendingAdminsKeyBytes           = []byte("lending/admins")

	governanceVersionCounterKeyBytes  = []byte("governance/counter/version")
	governanceBackupCounterKeyBytes   = []byte("governance/counter/backup")
	governanceProposalCounterKeyBytes = []byte("governance/counter/proposal")
	governanceCurrentKeyBytes         = []byte("governance/current")
	governanceHistoryKeyBytes         = []byte("governance/history")
	governanceProposalIndexKeyBytes   = []byte("governance/proposals/index")
)

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// LendingAssetKey addresses the parameter set of one asset.
func LendingAssetKey(symbol string) []byte {
	return []byte("lending/asset/" + normalizeSymbol(symbol))
}

// LendingPositionKey addresses an account's position in one asset.
func LendingPositionKey(symbol string, account crypto.Address) []byte {
	return append([]byte("lending/position/"+normalizeSymbol(symbol)+"/"), account.Bytes()...)
}

// LendingOracleDataKey addresses the last accepted price of an asset.
func LendingOracleDataKey(symbol string) []byte {
	return []byte("lending/oracle/data/" + normalizeSymbol(symbol))
}

// LendingAccountFlagsKey addresses the compliance flags of an account.
func LendingAccountFlagsKey(account crypto.Address) []byte {
	return append([]byte("lending/flags/"), account.Bytes()...)
}

// LendingUserActivityKey addresses the activity counters of an account.
func LendingUserActivityKey(account crypto.Address) []byte {
	return append([]byte("lending/activity/user/"), account.Bytes()...)
}

// GovernanceBackupKey addresses a configuration backup.
func GovernanceBackupKey(id uint64) []byte {
	return []byte(fmt.Sprintf("governance/backup/%d", id))
}

// GovernanceProposalKey addresses a configuration proposal.
func GovernanceProposalKey(id uint64) []byte {
	return []byte(fmt.Sprintf("governance/proposal/%d", id))
}

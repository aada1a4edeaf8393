package config

import (
	nativecommon "lendcore/native/common"
	"lendcore/native/lending"
)

// Genesis is the bootstrap state of a lending market. Addresses are bech32
// strings and every rate is 1e8 scaled.
type Genesis struct {
	Admins                []string               `toml:"Admins"`
	AdminKeyPath          string                 `toml:"AdminKeyPath,omitempty"`
	Treasury              string                 `toml:"Treasury"`
	DistributionFrequency uint64                 `toml:"DistributionFrequency"`
	MinCollateralRatio    int64                  `toml:"MinCollateralRatio"`
	MaxAssets             uint32                 `toml:"MaxAssets"`
	EmergencyPause        bool                   `toml:"EmergencyPause"`
	Oracle                lending.OracleConfig   `toml:"Oracle"`
	Compliance            Compliance             `toml:"Compliance"`
	RateLimit             nativecommon.RateLimit `toml:"RateLimit"`
	Pauses                Pauses                 `toml:"Pauses"`
	DefaultAsset          Asset                  `toml:"DefaultAsset"`
	Assets                []Asset                `toml:"Assets"`
}

// Asset describes one registry entry. The Disabled flags invert the engine's
// enable switches so an omitted key keeps the action open.
type Asset struct {
	Symbol             string                     `toml:"Symbol"`
	Decimals           uint32                     `toml:"Decimals"`
	Oracle             string                     `toml:"Oracle"`
	MinCollateralRatio int64                      `toml:"MinCollateralRatio"`
	Interest           lending.InterestRateConfig `toml:"Interest"`
	Risk               lending.RiskConfig         `toml:"Risk"`
	Disabled           bool                       `toml:"Disabled"`
	DepositDisabled    bool                       `toml:"DepositDisabled"`
	BorrowDisabled     bool                       `toml:"BorrowDisabled"`
}

// Compliance seeds the KYC and AML switches.
type Compliance struct {
	KYCRequired  bool  `toml:"KYCRequired"`
	AMLThreshold int64 `toml:"AMLThreshold"`
}

// Pauses lists module level pause switches consulted by the pause guard.
type Pauses struct {
	Lending bool `toml:"Lending"`
}

// View converts the switches into the guard's pause view.
func (p Pauses) View() nativecommon.StaticPauses {
	return nativecommon.StaticPauses{"lending": p.Lending}
}

package governance

import (
	"encoding/json"
	"time"

	"lukechampine.com/blake3"

	"lendcore/crypto"
	"lendcore/native/lending"
)

// ProposalStatus enumerates the lifecycle phases of a configuration proposal.
// Pending is the only non-terminal state.
type ProposalStatus uint8

const (
	// ProposalStatusUnspecified indicates the proposal has not yet been
	// initialised and should not appear in state.
	ProposalStatusUnspecified ProposalStatus = iota
	// ProposalStatusPending marks proposals awaiting an admin decision.
	ProposalStatusPending
	// ProposalStatusApproved marks proposals whose configuration was
	// activated.
	ProposalStatusApproved
	// ProposalStatusRejected marks proposals an admin turned down.
	ProposalStatusRejected
	// ProposalStatusCancelled marks proposals withdrawn or expired before a
	// decision.
	ProposalStatusCancelled
)

// StatusString provides a textual representation of the proposal status
// suitable for logs and APIs.
func (s ProposalStatus) StatusString() string {
	switch s {
	case ProposalStatusPending:
		return "pending"
	case ProposalStatusApproved:
		return "approved"
	case ProposalStatusRejected:
		return "rejected"
	case ProposalStatusCancelled:
		return "cancelled"
	default:
		return "unspecified"
	}
}

// ParseProposalStatus maps the textual status back to its enum value.
func ParseProposalStatus(raw string) (ProposalStatus, bool) {
	for _, s := range []ProposalStatus{ProposalStatusPending, ProposalStatusApproved, ProposalStatusRejected, ProposalStatusCancelled} {
		if s.StatusString() == raw {
			return s, true
		}
	}
	return ProposalStatusUnspecified, false
}

const (
	// HistoryLimit bounds the archived configuration versions.
	HistoryLimit = 10
	// DefaultProposalTTL applies when a proposal is created without an
	// explicit lifetime.
	DefaultProposalTTL = 7 * 24 * time.Hour
	// DefaultMaxAssets bounds the asset registry of the bootstrap
	// configuration.
	DefaultMaxAssets uint32 = 20
)

// ConfigurationVersion identifies one activated configuration.
type ConfigurationVersion struct {
	Number      uint64         `json:"number"`
	CreatedAt   uint64         `json:"created_at"`
	CreatedBy   crypto.Address `json:"created_by"`
	Description string         `json:"description"`
	Active      bool           `json:"active"`
}

// ProtocolParameters groups the protocol-wide knobs that are not part of a
// rate curve or risk profile.
type ProtocolParameters struct {
	MinCollateralRatio    int64          `json:"min_collateral_ratio"`
	TreasuryAccount       crypto.Address `json:"treasury_account"`
	DistributionFrequency uint64         `json:"distribution_frequency"`
	EmergencyPauseEnabled bool           `json:"emergency_pause_enabled"`
	MaxAssets             uint32         `json:"max_assets"`
}

// AssetConfiguration is the governed definition of one registry asset.
type AssetConfiguration struct {
	Symbol             string                     `json:"symbol"`
	Decimals           uint32                     `json:"decimals"`
	Oracle             crypto.Address             `json:"oracle"`
	MinCollateralRatio int64                      `json:"min_collateral_ratio"`
	Interest           lending.InterestRateConfig `json:"interest"`
	Risk               lending.RiskConfig         `json:"risk"`
	Enabled            bool                       `json:"enabled"`
	DepositEnabled     bool                       `json:"deposit_enabled"`
	BorrowEnabled      bool                       `json:"borrow_enabled"`
}

// AssetInfo converts the governed definition into the registry form.
func (a AssetConfiguration) AssetInfo() lending.AssetInfo {
	return lending.AssetInfo{
		Symbol:             lending.NormalizeSymbol(a.Symbol),
		Decimals:           a.Decimals,
		Oracle:             a.Oracle,
		MinCollateralRatio: a.MinCollateralRatio,
		Interest:           a.Interest,
		Risk:               a.Risk,
		Enabled:            a.Enabled,
		DepositEnabled:     a.DepositEnabled,
		BorrowEnabled:      a.BorrowEnabled,
	}
}

// ProtocolConfiguration is a versioned bundle of every governed parameter.
type ProtocolConfiguration struct {
	Version  ConfigurationVersion       `json:"version"`
	Interest lending.InterestRateConfig `json:"interest"`
	Risk     lending.RiskConfig         `json:"risk"`
	Oracle   lending.OracleConfig       `json:"oracle"`
	Params   ProtocolParameters         `json:"params"`
	Assets   []AssetConfiguration       `json:"assets"`
}

// DefaultConfiguration returns the bootstrap configuration matching the
// lending defaults.
func DefaultConfiguration() ProtocolConfiguration {
	return ProtocolConfiguration{
		Interest: lending.DefaultInterestRateConfig(),
		Risk:     lending.DefaultRiskConfig(),
		Oracle:   lending.DefaultOracleConfig(),
		Params: ProtocolParameters{
			MinCollateralRatio:    lending.DefaultMinCollateralRatio,
			DistributionFrequency: lending.DefaultDistributionFrequency,
			MaxAssets:             DefaultMaxAssets,
		},
	}
}

// Clone returns a deep copy of the configuration.
func (c *ProtocolConfiguration) Clone() *ProtocolConfiguration {
	if c == nil {
		return nil
	}
	clone := *c
	clone.Assets = append([]AssetConfiguration(nil), c.Assets...)
	return &clone
}

// MarketParameters projects the configuration onto the lending engine.
func (c *ProtocolConfiguration) MarketParameters() lending.MarketParameters {
	params := lending.MarketParameters{
		Interest:              c.Interest,
		Risk:                  c.Risk,
		Oracle:                c.Oracle,
		MinCollateralRatio:    c.Params.MinCollateralRatio,
		Treasury:              c.Params.TreasuryAccount,
		DistributionFrequency: c.Params.DistributionFrequency,
		EmergencyPause:        c.Params.EmergencyPauseEnabled,
		MaxAssets:             c.Params.MaxAssets,
	}
	for _, asset := range c.Assets {
		params.Assets = append(params.Assets, asset.AssetInfo())
	}
	return params
}

// Checksum digests the business fields of the configuration. Version
// metadata is excluded so a restored configuration hashes like its source.
func (c *ProtocolConfiguration) Checksum() ([32]byte, error) {
	business := c.Clone()
	business.Version = ConfigurationVersion{}
	for i := range business.Assets {
		business.Assets[i].Interest.LastUpdate = 0
		business.Assets[i].Risk.LastUpdate = 0
	}
	business.Interest.LastUpdate = 0
	business.Risk.LastUpdate = 0
	encoded, err := json.Marshal(business)
	if err != nil {
		return [32]byte{}, err
	}
	return blake3.Sum256(encoded), nil
}

// ConfigurationProposal is a pending change awaiting an admin decision.
type ConfigurationProposal struct {
	ID          uint64                 `json:"id"`
	Proposed    *ProtocolConfiguration `json:"proposed"`
	BaseVersion uint64                 `json:"base_version"`
	Creator     crypto.Address         `json:"creator"`
	Status      ProposalStatus         `json:"status"`
	Description string                 `json:"description"`
	CreatedAt   uint64                 `json:"created_at"`
	ExpiresAt   uint64                 `json:"expires_at"`
	DecidedBy   crypto.Address         `json:"decided_by"`
	DecidedAt   uint64                 `json:"decided_at"`
}

// ConfigurationBackup is an immutable snapshot of an active configuration.
type ConfigurationBackup struct {
	ID            uint64                 `json:"id"`
	Configuration *ProtocolConfiguration `json:"configuration"`
	CreatedAt     uint64                 `json:"created_at"`
	CreatedBy     crypto.Address         `json:"created_by"`
	Description   string                 `json:"description"`
	Checksum      string                 `json:"checksum"`
}

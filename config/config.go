package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"lendcore/crypto"
	"lendcore/native/governance"
	"lendcore/native/lending"
)

// Load loads the genesis from the given path. A missing file is replaced by
// the default genesis administered by a freshly generated key.
func Load(path string) (*Genesis, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	g := &Genesis{}
	meta, err := toml.DecodeFile(path, g)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("genesis %s: unknown key %s", path, undecoded[0].String())
	}
	g.applyDefaults()
	if err := Validate(g); err != nil {
		return nil, fmt.Errorf("genesis %s: %w", path, err)
	}
	return g, nil
}

// Default returns a genesis with the protocol defaults and no admins.
func Default() *Genesis {
	asset := lending.DefaultAsset()
	return &Genesis{
		Admins:                []string{},
		DistributionFrequency: lending.DefaultDistributionFrequency,
		MinCollateralRatio:    lending.DefaultMinCollateralRatio,
		MaxAssets:             governance.DefaultMaxAssets,
		Oracle:                lending.DefaultOracleConfig(),
		Compliance:            Compliance{AMLThreshold: lending.DefaultAMLThreshold},
		DefaultAsset: Asset{
			Symbol:             asset.Symbol,
			Decimals:           asset.Decimals,
			MinCollateralRatio: asset.MinCollateralRatio,
			Interest:           asset.Interest,
			Risk:               asset.Risk,
		},
		Assets: []Asset{},
	}
}

func (g *Genesis) applyDefaults() {
	defaults := Default()
	if g.DistributionFrequency == 0 {
		g.DistributionFrequency = defaults.DistributionFrequency
	}
	if g.MinCollateralRatio == 0 {
		g.MinCollateralRatio = defaults.MinCollateralRatio
	}
	if g.MaxAssets == 0 {
		g.MaxAssets = defaults.MaxAssets
	}
	if g.Oracle == (lending.OracleConfig{}) {
		g.Oracle = defaults.Oracle
	}
	if g.Compliance.AMLThreshold == 0 {
		g.Compliance.AMLThreshold = defaults.Compliance.AMLThreshold
	}
	if strings.TrimSpace(g.DefaultAsset.Symbol) == "" {
		g.DefaultAsset = defaults.DefaultAsset
	}
	g.DefaultAsset.fill(defaults.DefaultAsset)
	for i := range g.Assets {
		g.Assets[i].fill(defaults.DefaultAsset)
	}
	if g.Admins == nil {
		g.Admins = []string{}
	}
}

func (a *Asset) fill(defaults Asset) {
	a.Symbol = lending.NormalizeSymbol(a.Symbol)
	if a.MinCollateralRatio == 0 {
		a.MinCollateralRatio = defaults.MinCollateralRatio
	}
	if a.Interest == (lending.InterestRateConfig{}) {
		a.Interest = defaults.Interest
	}
	if a.Risk.CloseFactor == 0 && a.Risk.LiquidationIncentive == 0 {
		pauses := a.Risk
		a.Risk = defaults.Risk
		a.Risk.PauseBorrow = pauses.PauseBorrow
		a.Risk.PauseDeposit = pauses.PauseDeposit
		a.Risk.PauseWithdraw = pauses.PauseWithdraw
		a.Risk.PauseLiquidate = pauses.PauseLiquidate
	}
}

// createDefault generates an admin key, stores it next to the genesis and
// persists a default genesis administered by it.
func createDefault(path string) (*Genesis, error) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	keyPath := defaultAdminKeyPath(path)
	if err := writeKey(keyPath, key); err != nil {
		return nil, err
	}

	g := Default()
	admin := key.PubKey().Address().String()
	g.Admins = []string{admin}
	g.Treasury = admin
	g.AdminKeyPath = keyPath

	if err := persist(path, g); err != nil {
		return nil, err
	}
	return g, nil
}

func writeKey(path string, key *crypto.PrivateKey) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}
	return os.WriteFile(path, []byte(hex.EncodeToString(key.Bytes())), 0o600)
}

// LoadAdminKey reads a hex encoded admin key written by Load.
func LoadAdminKey(path string) (*crypto.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	decoded, err := hex.DecodeString(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("admin key %s: %w", path, err)
	}
	return crypto.PrivateKeyFromBytes(decoded)
}

func persist(path string, g *Genesis) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(g)
}

func defaultAdminKeyPath(genesisPath string) string {
	return filepath.Join(filepath.Dir(genesisPath), "admin.key")
}

// AdminAddresses decodes the genesis admins in file order.
func (g *Genesis) AdminAddresses() ([]crypto.Address, error) {
	out := make([]crypto.Address, 0, len(g.Admins))
	for _, raw := range g.Admins {
		addr, err := decodeAccount(raw)
		if err != nil {
			return nil, fmt.Errorf("admin %q: %w", raw, err)
		}
		out = append(out, addr)
	}
	return out, nil
}

// TreasuryAddress decodes the treasury account. An empty value yields the
// zero address.
func (g *Genesis) TreasuryAddress() (crypto.Address, error) {
	if strings.TrimSpace(g.Treasury) == "" {
		return crypto.Address{}, nil
	}
	addr, err := decodeAccount(g.Treasury)
	if err != nil {
		return crypto.Address{}, fmt.Errorf("treasury %q: %w", g.Treasury, err)
	}
	return addr, nil
}

// Info converts the asset into the registry form.
func (a Asset) Info() (lending.AssetInfo, error) {
	info := lending.AssetInfo{
		Symbol:             lending.NormalizeSymbol(a.Symbol),
		Decimals:           a.Decimals,
		MinCollateralRatio: a.MinCollateralRatio,
		Interest:           a.Interest,
		Risk:               a.Risk,
		Enabled:            !a.Disabled,
		DepositEnabled:     !a.DepositDisabled,
		BorrowEnabled:      !a.BorrowDisabled,
	}
	if strings.TrimSpace(a.Oracle) != "" {
		oracle, err := decodeAccount(a.Oracle)
		if err != nil {
			return lending.AssetInfo{}, fmt.Errorf("asset %s oracle: %w", info.Symbol, err)
		}
		info.Oracle = oracle
	}
	return info, nil
}

// ProtocolConfiguration builds the first governed configuration from the
// genesis. The default asset is listed first.
func (g *Genesis) ProtocolConfiguration() (*governance.ProtocolConfiguration, error) {
	treasury, err := g.TreasuryAddress()
	if err != nil {
		return nil, err
	}
	cfg := &governance.ProtocolConfiguration{
		Interest: g.DefaultAsset.Interest,
		Risk:     g.DefaultAsset.Risk,
		Oracle:   g.Oracle,
		Params: governance.ProtocolParameters{
			MinCollateralRatio:    g.MinCollateralRatio,
			TreasuryAccount:       treasury,
			DistributionFrequency: g.DistributionFrequency,
			EmergencyPauseEnabled: g.EmergencyPause,
			MaxAssets:             g.MaxAssets,
		},
	}
	for _, asset := range append([]Asset{g.DefaultAsset}, g.Assets...) {
		info, err := asset.Info()
		if err != nil {
			return nil, err
		}
		cfg.Assets = append(cfg.Assets, governance.AssetConfiguration{
			Symbol:             info.Symbol,
			Decimals:           info.Decimals,
			Oracle:             info.Oracle,
			MinCollateralRatio: info.MinCollateralRatio,
			Interest:           info.Interest,
			Risk:               info.Risk,
			Enabled:            info.Enabled,
			DepositEnabled:     info.DepositEnabled,
			BorrowEnabled:      info.BorrowEnabled,
		})
	}
	return cfg, nil
}

func decodeAccount(raw string) (crypto.Address, error) {
	addr, err := crypto.DecodeAddress(raw)
	if err != nil {
		return crypto.Address{}, err
	}
	if err := addr.Validate(); err != nil {
		return crypto.Address{}, err
	}
	return addr, nil
}

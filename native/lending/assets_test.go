package lending

import (
	"testing"

	coreerrors "lendcore/core/errors"
)

func btcAsset() AssetInfo {
	asset := DefaultAsset()
	asset.Symbol = "btc"
	asset.Decimals = 8
	asset.Oracle = testOracle
	return asset
}

func TestAssetRegistry(t *testing.T) {
	f := newEngineFixture(t)
	f.prices.prices["BTC"] = 3_000_000_000_000

	if err := f.engine.AddAsset(testAdmin, btcAsset()); err != nil {
		t.Fatalf("add asset: %v", err)
	}
	requireKind(t, f.engine.AddAsset(testAdmin, btcAsset()), coreerrors.ErrAlreadyExists)

	bad := btcAsset()
	bad.Symbol = "ETH"
	bad.Decimals = 19
	requireKind(t, f.engine.AddAsset(testAdmin, bad), coreerrors.ErrInvalidInput)
	bad = btcAsset()
	bad.Symbol = " "
	requireKind(t, f.engine.AddAsset(testAdmin, bad), coreerrors.ErrInvalidInput)

	assets, _ := f.engine.SupportedAssets()
	if len(assets) != 2 || assets[0] != "XLM" || assets[1] != "BTC" {
		t.Fatalf("unexpected asset order: %v", assets)
	}

	user := makeAddress(0x01)
	if err := f.engine.DepositAsset(user, "BTC", 1_000); err != nil {
		t.Fatalf("deposit btc: %v", err)
	}
	if err := f.engine.SetAssetEnabled(testAdmin, "BTC", false); err != nil {
		t.Fatalf("disable: %v", err)
	}
	requireKind(t, f.engine.DepositAsset(user, "BTC", 1_000), coreerrors.ErrAssetDisabled)

	if err := f.engine.SetAssetEnabled(testAdmin, "BTC", true); err != nil {
		t.Fatalf("enable: %v", err)
	}
	if err := f.engine.SetAssetParams(testAdmin, "BTC", true, false, 200); err != nil {
		t.Fatalf("asset params: %v", err)
	}
	requireKind(t, f.engine.BorrowAsset(user, "BTC", 10), coreerrors.ErrAssetDisabled)

	if err := f.engine.SetDefaultAsset(testAdmin, "BTC"); err != nil {
		t.Fatalf("default asset: %v", err)
	}
	if def, _ := f.engine.DefaultAsset(); def != "BTC" {
		t.Fatalf("unexpected default: %s", def)
	}
	requireKind(t, f.engine.SetDefaultAsset(testAdmin, "DOGE"), coreerrors.ErrAssetNotSupported)
}

func TestRegistryBoundedByMaxAssets(t *testing.T) {
	f := newEngineFixture(t)
	params := MarketParameters{
		Interest:              DefaultInterestRateConfig(),
		Risk:                  DefaultRiskConfig(),
		Oracle:                DefaultOracleConfig(),
		MinCollateralRatio:    DefaultMinCollateralRatio,
		DistributionFrequency: DefaultDistributionFrequency,
		MaxAssets:             1,
	}
	if err := f.engine.ApplyParameters(testAdmin, params); err != nil {
		t.Fatalf("apply: %v", err)
	}
	requireKind(t, f.engine.AddAsset(testAdmin, btcAsset()), coreerrors.ErrInvalidOperation)
}

func TestApplyParametersUpsertsAssets(t *testing.T) {
	f := newEngineFixture(t)
	interest := DefaultInterestRateConfig()
	interest.BaseRate = 4_000_000
	params := MarketParameters{
		Interest:              interest,
		Risk:                  DefaultRiskConfig(),
		Oracle:                DefaultOracleConfig(),
		MinCollateralRatio:    175,
		DistributionFrequency: 7_200,
		MaxAssets:             10,
		Assets:                []AssetInfo{btcAsset()},
	}
	if err := f.engine.ApplyParameters(testAdmin, params); err != nil {
		t.Fatalf("apply: %v", err)
	}
	def, _ := f.engine.Asset("")
	if def.MinCollateralRatio != 175 || def.State.CurrentBorrowRate != 4_000_000 {
		t.Fatalf("default asset not updated: %+v", def)
	}
	if _, err := f.engine.Asset("BTC"); err != nil {
		t.Fatalf("btc not added: %v", err)
	}
	reserve, _ := f.engine.ReserveData()
	if reserve.DistributionFrequency != 7_200 {
		t.Fatalf("frequency not applied: %+v", reserve)
	}

	bad := params
	bad.MinCollateralRatio = 50
	writes := f.state.writes
	requireKind(t, f.engine.ApplyParameters(testAdmin, bad), coreerrors.ErrInvalidInput)
	if f.state.writes != writes {
		t.Fatalf("rejected configuration wrote state")
	}
}

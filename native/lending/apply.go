package lending

import (
	"log/slog"
	"strings"

	coreerrors "lendcore/core/errors"
	"lendcore/crypto"
)

// MarketParameters is the subset of an activated protocol configuration the
// engine consumes. Interest, Risk and MinCollateralRatio apply to the default
// asset; Assets are upserted by symbol.
type MarketParameters struct {
	Interest              InterestRateConfig
	Risk                  RiskConfig
	Oracle                OracleConfig
	MinCollateralRatio    int64
	Treasury              crypto.Address
	DistributionFrequency uint64
	EmergencyPause        bool
	MaxAssets             uint32
	Assets                []AssetInfo
}

// ApplyParameters installs an activated configuration. Every entity is
// validated before the first write so a rejected configuration changes
// nothing.
func (e *Engine) ApplyParameters(caller crypto.Address, params MarketParameters) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	registry, err := e.state.LendingRegistry()
	if err != nil {
		return err
	}
	if registry == nil || registry.Default == "" {
		return errNotInitialised
	}
	if violations := params.Oracle.Violations(); len(violations) > 0 {
		return coreerrors.Wrap(coreerrors.ErrInvalidInput, "lending engine: %s", strings.Join(violations, "; "))
	}
	if params.DistributionFrequency == 0 {
		return coreerrors.Wrap(coreerrors.ErrInvalidInput, "lending engine: distribution frequency must be positive")
	}
	now := uint64(e.now().Unix())

	staged := make(map[string]*AssetInfo)
	order := append([]string(nil), registry.Symbols...)
	stage := func(asset *AssetInfo) error {
		if violations := asset.Violations(); len(violations) > 0 {
			return coreerrors.Wrap(coreerrors.ErrInvalidInput, "lending engine: %s: %s", asset.Symbol, strings.Join(violations, "; "))
		}
		state, err := asset.Interest.Refresh(asset.State, now)
		if err != nil {
			return err
		}
		asset.State = state
		staged[asset.Symbol] = asset
		return nil
	}

	def, err := e.resolveAsset(registry.Default)
	if err != nil {
		return err
	}
	def.Interest = params.Interest
	def.Interest.LastUpdate = now
	def.Risk = params.Risk
	def.Risk.LastUpdate = now
	def.MinCollateralRatio = params.MinCollateralRatio
	if err := stage(def); err != nil {
		return err
	}
	for _, info := range params.Assets {
		symbol := NormalizeSymbol(info.Symbol)
		current, ok := staged[symbol]
		if !ok && registry.Contains(symbol) {
			current, err = e.resolveAsset(symbol)
			if err != nil {
				return err
			}
		}
		if current == nil {
			fresh := info
			fresh.Symbol = symbol
			fresh.AddedAt = now
			fresh.Interest.LastUpdate = now
			fresh.Risk.LastUpdate = now
			fresh.State = InterestRateState{}
			if err := stage(&fresh); err != nil {
				return err
			}
			order = append(order, symbol)
			continue
		}
		current.Decimals = info.Decimals
		current.Oracle = info.Oracle
		current.MinCollateralRatio = info.MinCollateralRatio
		current.Interest = info.Interest
		current.Interest.LastUpdate = now
		current.Risk = info.Risk
		current.Risk.LastUpdate = now
		current.Enabled = info.Enabled
		current.DepositEnabled = info.DepositEnabled
		current.BorrowEnabled = info.BorrowEnabled
		if err := stage(current); err != nil {
			return err
		}
	}
	if params.MaxAssets > 0 && uint32(len(order)) > params.MaxAssets {
		return coreerrors.Wrap(coreerrors.ErrInvalidInput, "lending engine: %d assets exceed limit %d", len(order), params.MaxAssets)
	}

	t := e.newTxn("apply_configuration")
	if err := t.loadReserve(); err != nil {
		return err
	}
	if !params.Treasury.IsZero() {
		if err := validateAccount(params.Treasury); err != nil {
			return err
		}
		t.reserve.Treasury = params.Treasury
	}
	t.reserve.DistributionFrequency = params.DistributionFrequency
	settings, err := e.settings()
	if err != nil {
		return err
	}
	settings.EmergencyPause = params.EmergencyPause
	settings.MaxAssets = params.MaxAssets

	for _, symbol := range order {
		asset, ok := staged[symbol]
		if !ok {
			continue
		}
		if err := e.state.PutLendingAsset(asset); err != nil {
			return err
		}
	}
	if len(order) != len(registry.Symbols) {
		if err := e.state.PutLendingRegistry(&AssetRegistry{Symbols: order, Default: registry.Default}); err != nil {
			return err
		}
	}
	oracle := params.Oracle
	if err := e.state.PutLendingOracleConfig(&oracle); err != nil {
		return err
	}
	if err := e.state.PutLendingSettings(&settings); err != nil {
		return err
	}
	if err := t.commit(); err != nil {
		return err
	}
	e.logger.Info("protocol configuration applied",
		slog.String("admin", caller.String()),
		slog.Int("assets", len(order)),
		slog.Bool("emergencyPause", params.EmergencyPause))
	e.publishParams(caller, registry.Default, "configuration", interestValues(params.Interest))
	return nil
}

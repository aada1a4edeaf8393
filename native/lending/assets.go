package lending

import (
	"log/slog"
	"strings"

	coreerrors "lendcore/core/errors"
	"lendcore/crypto"
)

// AddAsset registers a new collateral/borrow asset. Symbols are unique and
// the registry keeps them in insertion order.
func (e *Engine) AddAsset(caller crypto.Address, info AssetInfo) error {
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
	asset, err := e.prepareAsset(info, registry)
	if err != nil {
		return err
	}
	next := &AssetRegistry{Symbols: append(append([]string(nil), registry.Symbols...), asset.Symbol), Default: registry.Default}
	if err := e.state.PutLendingAsset(asset); err != nil {
		return err
	}
	if err := e.state.PutLendingRegistry(next); err != nil {
		return err
	}
	e.publishParams(caller, asset.Symbol, "asset.add", map[string]int64{
		"decimals":             int64(asset.Decimals),
		"min_collateral_ratio": asset.MinCollateralRatio,
	})
	return nil
}

// prepareAsset validates a new asset against the registry and stamps its
// bookkeeping fields.
func (e *Engine) prepareAsset(info AssetInfo, registry *AssetRegistry) (*AssetInfo, error) {
	asset := info.Clone()
	asset.Symbol = NormalizeSymbol(asset.Symbol)
	if violations := asset.Violations(); len(violations) > 0 {
		return nil, coreerrors.Wrap(coreerrors.ErrInvalidInput, "lending engine: %s", strings.Join(violations, "; "))
	}
	if registry.Contains(asset.Symbol) {
		return nil, coreerrors.Wrap(coreerrors.ErrAlreadyExists, "lending engine: asset %s", asset.Symbol)
	}
	settings, err := e.settings()
	if err != nil {
		return nil, err
	}
	if settings.MaxAssets > 0 && uint32(len(registry.Symbols)) >= settings.MaxAssets {
		return nil, coreerrors.Wrap(coreerrors.ErrInvalidOperation, "lending engine: registry full at %d assets", settings.MaxAssets)
	}
	now := uint64(e.now().Unix())
	asset.AddedAt = now
	asset.Interest.LastUpdate = now
	asset.Risk.LastUpdate = now
	asset.State, err = asset.Interest.Refresh(InterestRateState{}, now)
	if err != nil {
		return nil, err
	}
	return asset, nil
}

// SetAssetParams updates the action switches and minimum ratio of symbol.
func (e *Engine) SetAssetParams(caller crypto.Address, symbol string, depositEnabled, borrowEnabled bool, minRatio int64) error {
	return e.updateAsset(caller, symbol, "asset.params", true, func(a *AssetInfo) (map[string]int64, error) {
		a.DepositEnabled = depositEnabled
		a.BorrowEnabled = borrowEnabled
		a.MinCollateralRatio = minRatio
		return map[string]int64{
			"deposit_enabled":      boolValue(depositEnabled),
			"borrow_enabled":       boolValue(borrowEnabled),
			"min_collateral_ratio": minRatio,
		}, nil
	})
}

// SetAssetEnabled enables or disables every operation on symbol.
func (e *Engine) SetAssetEnabled(caller crypto.Address, symbol string, enabled bool) error {
	if NormalizeSymbol(symbol) == "" {
		return coreerrors.Wrap(coreerrors.ErrInvalidAsset, "lending engine: asset symbol required")
	}
	return e.updateAsset(caller, symbol, "asset.enabled", true, func(a *AssetInfo) (map[string]int64, error) {
		a.Enabled = enabled
		return map[string]int64{"enabled": boolValue(enabled)}, nil
	})
}

// SetDefaultAsset selects the asset used by the single-asset entry points.
func (e *Engine) SetDefaultAsset(caller crypto.Address, symbol string) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	symbol = NormalizeSymbol(symbol)
	registry, err := e.state.LendingRegistry()
	if err != nil {
		return err
	}
	if registry == nil || registry.Default == "" {
		return errNotInitialised
	}
	if !registry.Contains(symbol) {
		return coreerrors.Wrap(coreerrors.ErrAssetNotSupported, "lending engine: asset %s", symbol)
	}
	next := &AssetRegistry{Symbols: append([]string(nil), registry.Symbols...), Default: symbol}
	if err := e.state.PutLendingRegistry(next); err != nil {
		return err
	}
	e.logger.Info("default lending asset changed",
		slog.String("admin", caller.String()),
		slog.String("previous", registry.Default),
		slog.String("asset", symbol))
	return nil
}

// Asset returns the registered asset named by symbol, or the default asset
// when symbol is empty.
func (e *Engine) Asset(symbol string) (AssetInfo, error) {
	if err := e.requireState(); err != nil {
		return AssetInfo{}, err
	}
	asset, err := e.resolveAsset(symbol)
	if err != nil {
		return AssetInfo{}, err
	}
	return *asset, nil
}

// SupportedAssets lists the registered symbols in insertion order.
func (e *Engine) SupportedAssets() ([]string, error) {
	if err := e.requireState(); err != nil {
		return nil, err
	}
	registry, err := e.state.LendingRegistry()
	if err != nil || registry == nil {
		return nil, err
	}
	return append([]string(nil), registry.Symbols...), nil
}

// DefaultAsset returns the symbol used by the single-asset entry points.
func (e *Engine) DefaultAsset() (string, error) {
	if err := e.requireState(); err != nil {
		return "", err
	}
	registry, err := e.state.LendingRegistry()
	if err != nil {
		return "", err
	}
	if registry == nil || registry.Default == "" {
		return "", errNotInitialised
	}
	return registry.Default, nil
}

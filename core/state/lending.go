package state

import (
	"fmt"

	"lendcore/crypto"
	"lendcore/native/lending"
)

func (m *Manager) LendingPosition(asset string, account crypto.Address) (*lending.Position, bool, error) {
	var position lending.Position
	ok, err := m.KVGet(LendingPositionKey(asset, account), &position)
	if err != nil || !ok {
		return nil, false, err
	}
	return &position, true, nil
}

func (m *Manager) PutLendingPosition(position *lending.Position) error {
	if position == nil {
		return fmt.Errorf("lending: position must not be nil")
	}
	return m.KVPut(LendingPositionKey(position.Asset, position.Account), position)
}

func (m *Manager) LendingAsset(symbol string) (*lending.AssetInfo, bool, error) {
	var asset lending.AssetInfo
	ok, err := m.KVGet(LendingAssetKey(symbol), &asset)
	if err != nil || !ok {
		return nil, false, err
	}
	return &asset, true, nil
}

func (m *Manager) PutLendingAsset(asset *lending.AssetInfo) error {
	if asset == nil {
		return fmt.Errorf("lending: asset must not be nil")
	}
	return m.KVPut(LendingAssetKey(asset.Symbol), asset)
}

// LendingRegistry returns nil when the market has not been initialised.
func (m *Manager) LendingRegistry() (*lending.AssetRegistry, error) {
	var registry lending.AssetRegistry
	ok, err := m.KVGet(lendingRegistryKeyBytes, &registry)
	if err != nil || !ok {
		return nil, err
	}
	return &registry, nil
}

func (m *Manager) PutLendingRegistry(registry *lending.AssetRegistry) error {
	if registry == nil {
		return fmt.Errorf("lending: registry must not be nil")
	}
	return m.KVPut(lendingRegistryKeyBytes, registry)
}

func (m *Manager) LendingReserve() (*lending.ReserveData, error) {
	var reserve lending.ReserveData
	ok, err := m.KVGet(lendingReserveKeyBytes, &reserve)
	if err != nil || !ok {
		return nil, err
	}
	return &reserve, nil
}

func (m *Manager) PutLendingReserve(reserve *lending.ReserveData) error {
	if reserve == nil {
		return fmt.Errorf("lending: reserve must not be nil")
	}
	return m.KVPut(lendingReserveKeyBytes, reserve)
}

func (m *Manager) LendingRevenue() (*lending.RevenueMetrics, error) {
	var revenue lending.RevenueMetrics
	ok, err := m.KVGet(lendingRevenueKeyBytes, &revenue)
	if err != nil || !ok {
		return nil, err
	}
	return &revenue, nil
}

func (m *Manager) PutLendingRevenue(revenue *lending.RevenueMetrics) error {
	if revenue == nil {
		return fmt.Errorf("lending: revenue must not be nil")
	}
	return m.KVPut(lendingRevenueKeyBytes, revenue)
}

func (m *Manager) LendingOracleConfig() (*lending.OracleConfig, bool, error) {
	var cfg lending.OracleConfig
	ok, err := m.KVGet(lendingOracleConfigKeyBytes, &cfg)
	if err != nil || !ok {
		return nil, false, err
	}
	return &cfg, true, nil
}

func (m *Manager) PutLendingOracleConfig(cfg *lending.OracleConfig) error {
	if cfg == nil {
		return fmt.Errorf("lending: oracle config must not be nil")
	}
	return m.KVPut(lendingOracleConfigKeyBytes, cfg)
}

func (m *Manager) LendingOracleData(asset string) (*lending.OracleData, error) {
	var data lending.OracleData
	ok, err := m.KVGet(LendingOracleDataKey(asset), &data)
	if err != nil || !ok {
		return nil, err
	}
	return &data, nil
}

func (m *Manager) PutLendingOracleData(data *lending.OracleData) error {
	if data == nil {
		return fmt.Errorf("lending: oracle data must not be nil")
	}
	return m.KVPut(LendingOracleDataKey(data.Asset), data)
}

func (m *Manager) LendingAccountFlags(account crypto.Address) (*lending.AccountFlags, error) {
	var flags lending.AccountFlags
	ok, err := m.KVGet(LendingAccountFlagsKey(account), &flags)
	if err != nil || !ok {
		return nil, err
	}
	return &flags, nil
}

func (m *Manager) PutLendingAccountFlags(account crypto.Address, flags *lending.AccountFlags) error {
	if flags == nil {
		return m.KVDelete(LendingAccountFlagsKey(account))
	}
	return m.KVPut(LendingAccountFlagsKey(account), flags)
}

func (m *Manager) LendingUserActivity(account crypto.Address) (*lending.UserActivity, bool, error) {
	var activity lending.UserActivity
	ok, err := m.KVGet(LendingUserActivityKey(account), &activity)
	if err != nil || !ok {
		return nil, false, err
	}
	return &activity, true, nil
}

func (m *Manager) PutLendingUserActivity(account crypto.Address, activity *lending.UserActivity) error {
	if activity == nil {
		return fmt.Errorf("lending: activity must not be nil")
	}
	return m.KVPut(LendingUserActivityKey(account), activity)
}

func (m *Manager) LendingProtocolActivity() (*lending.ProtocolActivity, error) {
	var activity lending.ProtocolActivity
	ok, err := m.KVGet(lendingProtocolActivityKeyBytes, &activity)
	if err != nil || !ok {
		return nil, err
	}
	return &activity, nil
}

func (m *Manager) PutLendingProtocolActivity(activity *lending.ProtocolActivity) error {
	if activity == nil {
		return fmt.Errorf("lending: activity must not be nil")
	}
	return m.KVPut(lendingProtocolActivityKeyBytes, activity)
}

func (m *Manager) LendingSettings() (*lending.Settings, error) {
	var settings lending.Settings
	ok, err := m.KVGet(lendingSettingsKeyBytes, &settings)
	if err != nil || !ok {
		return nil, err
	}
	return &settings, nil
}

func (m *Manager) PutLendingSettings(settings *lending.Settings) error {
	if settings == nil {
		return fmt.Errorf("lending: settings must not be nil")
	}
	return m.KVPut(lendingSettingsKeyBytes, settings)
}

// LendingAdmins returns the admin set and whether it was ever initialised.
func (m *Manager) LendingAdmins() ([]crypto.Address, bool, error) {
	var admins []crypto.Address
	ok, err := m.KVGet(lendingAdminsKeyBytes, &admins)
	if err != nil || !ok {
		return nil, false, err
	}
	return admins, true, nil
}

func (m *Manager) PutLendingAdmins(admins []crypto.Address) error {
	if admins == nil {
		admins = []crypto.Address{}
	}
	return m.KVPut(lendingAdminsKeyBytes, admins)
}

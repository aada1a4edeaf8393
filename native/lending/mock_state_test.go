package lending

import (
	"errors"
	"testing"
	"time"

	coreerrors "lendcore/core/errors"
	"lendcore/core/events"
	"lendcore/crypto"
)

type mockEngineState struct {
	positions map[string]*Position
	assets    map[string]*AssetInfo
	registry  *AssetRegistry
	reserve   *ReserveData
	revenue   *RevenueMetrics
	oracleCfg *OracleConfig
	oracle    map[string]*OracleData
	flags     map[string]*AccountFlags
	users     map[string]*UserActivity
	protocol  *ProtocolActivity
	settings  *Settings
	writes    int
}

func newMockEngineState() *mockEngineState {
	return &mockEngineState{
		positions: make(map[string]*Position),
		assets:    make(map[string]*AssetInfo),
		oracle:    make(map[string]*OracleData),
		flags:     make(map[string]*AccountFlags),
		users:     make(map[string]*UserActivity),
	}
}

func (m *mockEngineState) positionKey(asset string, account crypto.Address) string {
	return asset + "/" + account.String()
}

func (m *mockEngineState) LendingPosition(asset string, account crypto.Address) (*Position, bool, error) {
	p, ok := m.positions[m.positionKey(asset, account)]
	if !ok {
		return nil, false, nil
	}
	return p.Clone(), true, nil
}

func (m *mockEngineState) PutLendingPosition(p *Position) error {
	m.writes++
	m.positions[m.positionKey(p.Asset, p.Account)] = p.Clone()
	return nil
}

func (m *mockEngineState) LendingAsset(symbol string) (*AssetInfo, bool, error) {
	a, ok := m.assets[symbol]
	if !ok {
		return nil, false, nil
	}
	return a.Clone(), true, nil
}

func (m *mockEngineState) PutLendingAsset(a *AssetInfo) error {
	m.writes++
	m.assets[a.Symbol] = a.Clone()
	return nil
}

func (m *mockEngineState) LendingRegistry() (*AssetRegistry, error) {
	if m.registry == nil {
		return nil, nil
	}
	clone := AssetRegistry{Symbols: append([]string(nil), m.registry.Symbols...), Default: m.registry.Default}
	return &clone, nil
}

func (m *mockEngineState) PutLendingRegistry(r *AssetRegistry) error {
	m.writes++
	clone := AssetRegistry{Symbols: append([]string(nil), r.Symbols...), Default: r.Default}
	m.registry = &clone
	return nil
}

func (m *mockEngineState) LendingReserve() (*ReserveData, error) {
	if m.reserve == nil {
		return nil, nil
	}
	clone := *m.reserve
	return &clone, nil
}

func (m *mockEngineState) PutLendingReserve(r *ReserveData) error {
	m.writes++
	clone := *r
	m.reserve = &clone
	return nil
}

func (m *mockEngineState) LendingRevenue() (*RevenueMetrics, error) {
	if m.revenue == nil {
		return nil, nil
	}
	clone := *m.revenue
	return &clone, nil
}

func (m *mockEngineState) PutLendingRevenue(r *RevenueMetrics) error {
	m.writes++
	clone := *r
	m.revenue = &clone
	return nil
}

func (m *mockEngineState) LendingOracleConfig() (*OracleConfig, bool, error) {
	if m.oracleCfg == nil {
		return nil, false, nil
	}
	clone := *m.oracleCfg
	return &clone, true, nil
}

func (m *mockEngineState) PutLendingOracleConfig(cfg *OracleConfig) error {
	m.writes++
	clone := *cfg
	m.oracleCfg = &clone
	return nil
}

func (m *mockEngineState) LendingOracleData(asset string) (*OracleData, error) {
	d, ok := m.oracle[asset]
	if !ok {
		return nil, nil
	}
	clone := *d
	return &clone, nil
}

func (m *mockEngineState) PutLendingOracleData(d *OracleData) error {
	m.writes++
	clone := *d
	m.oracle[d.Asset] = &clone
	return nil
}

func (m *mockEngineState) LendingAccountFlags(account crypto.Address) (*AccountFlags, error) {
	f, ok := m.flags[account.String()]
	if !ok {
		return nil, nil
	}
	clone := *f
	return &clone, nil
}

func (m *mockEngineState) PutLendingAccountFlags(account crypto.Address, f *AccountFlags) error {
	m.writes++
	clone := *f
	m.flags[account.String()] = &clone
	return nil
}

func (m *mockEngineState) LendingUserActivity(account crypto.Address) (*UserActivity, bool, error) {
	a, ok := m.users[account.String()]
	if !ok {
		return nil, false, nil
	}
	clone := *a
	return &clone, true, nil
}

func (m *mockEngineState) PutLendingUserActivity(account crypto.Address, a *UserActivity) error {
	m.writes++
	clone := *a
	m.users[account.String()] = &clone
	return nil
}

func (m *mockEngineState) LendingProtocolActivity() (*ProtocolActivity, error) {
	if m.protocol == nil {
		return nil, nil
	}
	clone := *m.protocol
	return &clone, nil
}

func (m *mockEngineState) PutLendingProtocolActivity(a *ProtocolActivity) error {
	m.writes++
	clone := *a
	m.protocol = &clone
	return nil
}

func (m *mockEngineState) LendingSettings() (*Settings, error) {
	if m.settings == nil {
		return nil, nil
	}
	clone := *m.settings
	return &clone, nil
}

func (m *mockEngineState) PutLendingSettings(s *Settings) error {
	m.writes++
	clone := *s
	m.settings = &clone
	return nil
}

type stubAuthorizer struct {
	admins map[string]bool
}

func (s stubAuthorizer) RequireAdmin(caller crypto.Address) error {
	if !s.admins[caller.String()] {
		return coreerrors.ErrUnauthorized
	}
	return nil
}

type stubPrices struct {
	prices map[string]int64
	err    error
}

func (s *stubPrices) Price(_ crypto.Address, asset string) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	price, ok := s.prices[asset]
	if !ok {
		return 0, errors.New("no price")
	}
	return price, nil
}

func makeAddress(suffix byte) crypto.Address {
	raw := make([]byte, 20)
	raw[19] = suffix
	return crypto.NewAddress(crypto.AccountPrefix, raw)
}

var (
	testAdmin  = makeAddress(0xA1)
	testOracle = makeAddress(0x0C)
	testStart  = time.Unix(1_700_000_000, 0).UTC()
)

type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time          { return c.now }
func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type engineFixture struct {
	engine   *Engine
	state    *mockEngineState
	clock    *testClock
	prices   *stubPrices
	recorder *events.Recorder
}

// newEngineFixture returns an initialised engine whose default asset is
// priced at 2.0 by the stub oracle.
func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	state := newMockEngineState()
	clock := &testClock{now: testStart}
	prices := &stubPrices{prices: map[string]int64{DefaultAssetSymbol: 200_000_000}}
	recorder := events.NewRecorder(0)
	engine := NewEngine()
	engine.SetState(state)
	engine.SetNowFunc(clock.Now)
	engine.SetAuthorizer(stubAuthorizer{admins: map[string]bool{testAdmin.String(): true}})
	engine.SetPriceSource(prices)
	engine.SetEmitter(recorder)
	asset := DefaultAsset()
	asset.Oracle = testOracle
	if err := engine.Initialize(asset, DefaultOracleConfig(), makeAddress(0x7E)); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return &engineFixture{engine: engine, state: state, clock: clock, prices: prices, recorder: recorder}
}

func (f *engineFixture) position(t *testing.T, account crypto.Address) Position {
	t.Helper()
	p, ok, _ := f.state.LendingPosition(DefaultAssetSymbol, account)
	if !ok {
		t.Fatalf("position for %s not found", account)
	}
	return *p
}

func (f *engineFixture) asset(t *testing.T) AssetInfo {
	t.Helper()
	a, ok, _ := f.state.LendingAsset(DefaultAssetSymbol)
	if !ok {
		t.Fatalf("default asset missing")
	}
	return *a
}

func requireKind(t *testing.T, err error, kind *coreerrors.Kind) {
	t.Helper()
	if !errors.Is(err, kind) {
		t.Fatalf("unexpected error: got %v want %v", err, kind)
	}
}

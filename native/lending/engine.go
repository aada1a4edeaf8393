package lending

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	coreerrors "lendcore/core/errors"
	"lendcore/core/events"
	"lendcore/crypto"
	nativecommon "lendcore/native/common"
	"lendcore/observability/metrics"
)

var (
	errNilState       = errors.New("lending engine: state not configured")
	errNotInitialised = coreerrors.Wrap(coreerrors.ErrInvalidOperation, "lending engine: market not initialised")
)

const moduleName = "lending"

const (
	actionDeposit   = "deposit"
	actionWithdraw  = "withdraw"
	actionBorrow    = "borrow"
	actionRepay     = "repay"
	actionLiquidate = "liquidate"
	actionAccrue    = "accrue"
)

type engineState interface {
	LendingPosition(asset string, account crypto.Address) (*Position, bool, error)
	PutLendingPosition(position *Position) error
	LendingAsset(symbol string) (*AssetInfo, bool, error)
	PutLendingAsset(asset *AssetInfo) error
	LendingRegistry() (*AssetRegistry, error)
	PutLendingRegistry(registry *AssetRegistry) error
	LendingReserve() (*ReserveData, error)
	PutLendingReserve(reserve *ReserveData) error
	LendingRevenue() (*RevenueMetrics, error)
	PutLendingRevenue(revenue *RevenueMetrics) error
	LendingOracleConfig() (*OracleConfig, bool, error)
	PutLendingOracleConfig(cfg *OracleConfig) error
	LendingOracleData(asset string) (*OracleData, error)
	PutLendingOracleData(data *OracleData) error
	LendingAccountFlags(account crypto.Address) (*AccountFlags, error)
	PutLendingAccountFlags(account crypto.Address, flags *AccountFlags) error
	LendingUserActivity(account crypto.Address) (*UserActivity, bool, error)
	PutLendingUserActivity(account crypto.Address, activity *UserActivity) error
	LendingProtocolActivity() (*ProtocolActivity, error)
	PutLendingProtocolActivity(activity *ProtocolActivity) error
	LendingSettings() (*Settings, error)
	PutLendingSettings(settings *Settings) error
}

// Authorizer gates privileged operations on the admin set.
type Authorizer interface {
	RequireAdmin(caller crypto.Address) error
}

// Engine owns positions, rate state, reserves and the asset registry. Public
// operations are atomic: every check runs before the first write, and state
// is persisted in a single commit step at the end of the call.
type Engine struct {
	state   engineState
	auth    Authorizer
	prices  PriceSource
	pauses  nativecommon.PauseView
	emitter events.Emitter
	logger  *slog.Logger
	metrics *metrics.LendingMetrics
	nowFn   func() time.Time
	guard   nativecommon.ReentrancyGuard
	limiter *nativecommon.KeyedLimiter

	monitorMu  sync.Mutex
	suspicious map[string]uint32
}

// NewEngine constructs a lending engine with no-op collaborators.
func NewEngine() *Engine {
	return &Engine{
		emitter:    events.NoopEmitter{},
		logger:     slog.Default(),
		nowFn:      func() time.Time { return time.Now().UTC() },
		limiter:    nativecommon.NewKeyedLimiter(nativecommon.RateLimit{}),
		suspicious: make(map[string]uint32),
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetAuthorizer wires the admin set used by privileged operations.
func (e *Engine) SetAuthorizer(auth Authorizer) {
	if e == nil {
		return
	}
	e.auth = auth
}

// SetPriceSource configures the external feed sampled by the oracle adapter.
func (e *Engine) SetPriceSource(source PriceSource) {
	if e == nil {
		return
	}
	e.prices = source
}

func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetEmitter configures the event emitter. Nil resets it to a no-op emitter.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if e == nil {
		return
	}
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetLogger overrides the structured logger. Nil restores slog.Default.
func (e *Engine) SetLogger(logger *slog.Logger) {
	if e == nil {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	e.logger = logger.With(slog.String("module", moduleName))
}

// SetMetrics wires the prometheus collectors. Nil disables metrics.
func (e *Engine) SetMetrics(m *metrics.LendingMetrics) {
	if e == nil {
		return
	}
	e.metrics = m
}

// SetNowFunc overrides the clock. Nil restores the default UTC clock.
func (e *Engine) SetNowFunc(now func() time.Time) {
	if e == nil {
		return
	}
	if now == nil {
		e.nowFn = func() time.Time { return time.Now().UTC() }
		return
	}
	e.nowFn = now
}

// SetOperationRateLimit throttles ledger calls per account. A zero limit
// disables throttling.
func (e *Engine) SetOperationRateLimit(limit nativecommon.RateLimit) {
	if e == nil {
		return
	}
	e.limiter.SetLimit(limit)
}

func (e *Engine) now() time.Time {
	if e == nil || e.nowFn == nil {
		return time.Now().UTC()
	}
	return e.nowFn()
}

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(evt)
}

// enter acquires the reentrancy guard for a mutating call.
func (e *Engine) enter() (func(), error) {
	if e == nil {
		return nil, errNilState
	}
	release, err := e.guard.Enter()
	if err != nil {
		return nil, coreerrors.Wrap(coreerrors.ErrInvalidOperation, "lending engine: %v", err)
	}
	return release, nil
}

func (e *Engine) requireState() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	return nil
}

func (e *Engine) requireAdmin(caller crypto.Address) error {
	if err := e.requireState(); err != nil {
		return err
	}
	if e.auth == nil {
		return coreerrors.Wrap(coreerrors.ErrAdminNotSet, "lending engine: authorizer not configured")
	}
	return e.auth.RequireAdmin(caller)
}

func validateAccount(account crypto.Address) error {
	if err := account.Validate(); err != nil {
		return coreerrors.Wrap(coreerrors.ErrInvalidAddress, "lending engine: %v", err)
	}
	return nil
}

func validateAmount(amount int64) error {
	if amount <= 0 {
		return coreerrors.Wrap(coreerrors.ErrInvalidAmount, "lending engine: amount %d must be positive", amount)
	}
	return nil
}

// resolveAsset loads the asset named by symbol, or the registry default when
// symbol is empty.
func (e *Engine) resolveAsset(symbol string) (*AssetInfo, error) {
	symbol = NormalizeSymbol(symbol)
	if symbol == "" {
		registry, err := e.state.LendingRegistry()
		if err != nil {
			return nil, err
		}
		if registry == nil || registry.Default == "" {
			return nil, errNotInitialised
		}
		symbol = registry.Default
	}
	asset, ok, err := e.state.LendingAsset(symbol)
	if err != nil {
		return nil, err
	}
	if !ok || asset == nil {
		return nil, coreerrors.Wrap(coreerrors.ErrAssetNotSupported, "lending engine: asset %s", symbol)
	}
	return asset.Clone(), nil
}

func (e *Engine) oracleConfig() (OracleConfig, error) {
	cfg, ok, err := e.state.LendingOracleConfig()
	if err != nil {
		return OracleConfig{}, err
	}
	if !ok || cfg == nil {
		return DefaultOracleConfig(), nil
	}
	return *cfg, nil
}

func (e *Engine) settings() (Settings, error) {
	settings, err := e.state.LendingSettings()
	if err != nil {
		return Settings{}, err
	}
	if settings == nil {
		return Settings{AMLThreshold: DefaultAMLThreshold}, nil
	}
	return *settings, nil
}

// txn accumulates the entities touched by one public call. Nothing reaches the
// state backend until commit, so an error anywhere before commit leaves
// persisted state untouched.
type txn struct {
	e        *Engine
	action   string
	at       time.Time
	now      uint64
	account  crypto.Address
	asset    *AssetInfo
	position *Position
	created  bool
	reserve  *ReserveData
	revenue  *RevenueMetrics
	oracle   *OracleData
	priced   bool
	cached   int64
	activity bool
	amount   int64
	events   []events.Event
}

func (e *Engine) newTxn(action string) *txn {
	at := e.now()
	return &txn{e: e, action: action, at: at, now: uint64(at.Unix())}
}

// begin runs the shared preconditions of the position ledger operations.
func (e *Engine) begin(action string, account crypto.Address, symbol string, amount int64) (*txn, error) {
	if err := e.requireState(); err != nil {
		return nil, err
	}
	if err := validateAccount(account); err != nil {
		return nil, err
	}
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	if err := e.checkPaused(); err != nil {
		return nil, err
	}
	asset, err := e.resolveAsset(symbol)
	if err != nil {
		return nil, err
	}
	if err := checkAssetAction(asset, action); err != nil {
		return nil, err
	}
	t := e.newTxn(action)
	t.account = account
	t.asset = asset
	t.amount = amount
	if err := e.checkCompliance(t, account); err != nil {
		return nil, err
	}
	if err := e.limiter.Allow(account.String(), t.at); err != nil {
		return nil, coreerrors.Wrap(coreerrors.ErrInvalidOperation, "lending engine: %v", err)
	}
	return t, nil
}

func checkAssetAction(asset *AssetInfo, action string) error {
	if !asset.Enabled {
		return coreerrors.Wrap(coreerrors.ErrAssetDisabled, "lending engine: asset %s disabled", asset.Symbol)
	}
	paused := false
	enabled := true
	switch action {
	case actionDeposit:
		paused, enabled = asset.Risk.PauseDeposit, asset.DepositEnabled
	case actionBorrow:
		paused, enabled = asset.Risk.PauseBorrow, asset.BorrowEnabled
	case actionWithdraw:
		paused = asset.Risk.PauseWithdraw
	case actionLiquidate:
		paused = asset.Risk.PauseLiquidate
	}
	if paused {
		return coreerrors.Wrap(coreerrors.ErrProtocolPaused, "lending engine: %s paused for %s", action, asset.Symbol)
	}
	if !enabled {
		return coreerrors.Wrap(coreerrors.ErrAssetDisabled, "lending engine: %s disabled for %s", action, asset.Symbol)
	}
	return nil
}

// loadPosition loads the position of account in the transaction's asset. With
// create set, a missing position is initialised lazily.
func (t *txn) loadPosition(account crypto.Address, create bool) (*Position, error) {
	position, ok, err := t.e.state.LendingPosition(t.asset.Symbol, account)
	if err != nil {
		return nil, err
	}
	if !ok || position == nil {
		if !create {
			return nil, coreerrors.Wrap(coreerrors.ErrPositionNotFound, "lending engine: no %s position for %s", t.asset.Symbol, account)
		}
		t.created = true
		position = &Position{Account: account, Asset: t.asset.Symbol, LastAccrualTime: t.now}
	} else {
		position = position.Clone()
	}
	t.position = position
	return position, nil
}

// accrue refreshes the asset rate state and settles interest on the loaded
// position, booking the protocol's share into reserves.
func (t *txn) accrue() error {
	state, err := t.asset.Interest.Refresh(t.asset.State, t.now)
	if err != nil {
		return err
	}
	t.asset.State = state
	if t.position == nil {
		return nil
	}
	accrual, err := AccruePosition(t.position, state.CurrentBorrowRate, state.CurrentSupplyRate, t.now)
	if err != nil {
		return err
	}
	if accrual.BorrowInterest == 0 && accrual.SupplyInterest == 0 {
		return nil
	}
	t.events = append(t.events, events.LendingInterestAccrued{
		Account:        t.position.Account.String(),
		Asset:          t.asset.Symbol,
		BorrowInterest: accrual.BorrowInterest,
		SupplyInterest: accrual.SupplyInterest,
		Elapsed:        accrual.Elapsed,
	})
	borrowFee, supplyFee, err := ProtocolFees(accrual, t.asset.Interest.ReserveFactor)
	if err != nil {
		return err
	}
	if err := t.collectFee(borrowFee, FeeSourceBorrow); err != nil {
		return err
	}
	return t.collectFee(supplyFee, FeeSourceSupply)
}

// refreshRates recomputes the rate state after totals changed.
func (t *txn) refreshRates() error {
	state, err := t.asset.Interest.Refresh(t.asset.State, t.now)
	if err != nil {
		return err
	}
	t.asset.State = state
	return nil
}

func (t *txn) loadReserve() error {
	if t.reserve != nil {
		return nil
	}
	reserve, err := t.e.state.LendingReserve()
	if err != nil {
		return err
	}
	staged := ReserveData{DistributionFrequency: DefaultDistributionFrequency}
	if reserve != nil {
		staged = *reserve
	}
	revenue, err := t.e.state.LendingRevenue()
	if err != nil {
		return err
	}
	bucket := RevenueMetrics{}
	if revenue != nil {
		bucket = *revenue
	}
	t.reserve = &staged
	t.revenue = &bucket
	return nil
}

// collectFee books amount into reserves and the revenue bucket of source.
func (t *txn) collectFee(amount int64, source string) error {
	if amount <= 0 {
		return nil
	}
	if err := t.loadReserve(); err != nil {
		return err
	}
	collected, err := CheckedAdd(t.reserve.TotalFeesCollected, amount)
	if err != nil {
		return err
	}
	current, err := CheckedAdd(t.reserve.CurrentReserves, amount)
	if err != nil {
		return err
	}
	t.reserve.TotalFeesCollected = collected
	t.reserve.CurrentReserves = current
	switch source {
	case FeeSourceBorrow:
		t.revenue.TotalBorrowFees += amount
	case FeeSourceSupply:
		t.revenue.TotalSupplyFees += amount
	default:
		t.revenue.TotalManualFees += amount
	}
	t.events = append(t.events, events.LendingFeesCollected{Amount: amount, Source: source})
	return nil
}

// price resolves the collateral price for the transaction's asset once per
// call, staging any accepted observation for commit.
func (t *txn) price() (int64, error) {
	if t.priced {
		return t.cached, nil
	}
	price, err := t.samplePrice()
	if err != nil {
		return 0, err
	}
	t.priced = true
	t.cached = price
	return price, nil
}

func (t *txn) samplePrice() (int64, error) {
	cfg, err := t.e.oracleConfig()
	if err != nil {
		return 0, err
	}
	if t.asset.Oracle.IsZero() {
		t.recordFallback(cfg.FallbackPrice, PriceReasonNoOracle)
		return cfg.FallbackPrice, nil
	}
	if t.e.prices == nil {
		t.recordFallback(cfg.FallbackPrice, PriceReasonNoSource)
		return cfg.FallbackPrice, nil
	}
	raw, err := t.e.prices.Price(t.asset.Oracle, t.asset.Symbol)
	if err != nil {
		t.e.logger.Warn("price source failed, using fallback",
			slog.String("asset", t.asset.Symbol),
			slog.Any("error", err))
		t.recordFallback(cfg.FallbackPrice, PriceReasonSourceErr)
		return cfg.FallbackPrice, nil
	}
	last := OracleData{Asset: t.asset.Symbol}
	stored, err := t.e.state.LendingOracleData(t.asset.Symbol)
	if err != nil {
		return 0, err
	}
	if stored != nil {
		last = *stored
	}
	decision := ValidatePrice(cfg, last, t.asset.Symbol, raw, t.now)
	if decision.Fallback {
		t.recordFallback(decision.Price, decision.Reason)
		return decision.Price, nil
	}
	t.oracle = decision.Store
	t.events = append(t.events, events.LendingPrice{Asset: t.asset.Symbol, Price: decision.Price, Timestamp: t.now})
	return decision.Price, nil
}

func (t *txn) recordFallback(price int64, reason string) {
	t.e.metrics.ObservePriceFallback(reason)
	t.events = append(t.events, events.LendingPrice{
		Asset:     t.asset.Symbol,
		Price:     price,
		Fallback:  true,
		Reason:    reason,
		Timestamp: t.now,
	})
}

// ratio computes the collateral ratio of p at the current price.
func (t *txn) ratio(p *Position) (int64, error) {
	if p.Debt == 0 {
		return InfiniteRatio, nil
	}
	price, err := t.price()
	if err != nil {
		return 0, err
	}
	return CollateralRatio(p.Collateral, p.Debt, price)
}

// commit persists every staged entity and then publishes the staged events.
func (t *txn) commit() error {
	st := t.e.state
	if t.position != nil {
		if err := st.PutLendingPosition(t.position); err != nil {
			return err
		}
	}
	if t.asset != nil {
		if err := st.PutLendingAsset(t.asset); err != nil {
			return err
		}
	}
	if t.reserve != nil {
		if err := st.PutLendingReserve(t.reserve); err != nil {
			return err
		}
		if err := st.PutLendingRevenue(t.revenue); err != nil {
			return err
		}
	}
	if t.oracle != nil {
		if err := st.PutLendingOracleData(t.oracle); err != nil {
			return err
		}
	}
	if t.activity {
		if err := t.e.recordActivity(t); err != nil {
			return err
		}
	}
	for _, evt := range t.events {
		t.e.emit(evt)
	}
	if t.asset != nil {
		s := t.asset.State
		t.e.metrics.SetRates(t.asset.Symbol, s.UtilizationRate, s.CurrentBorrowRate, s.CurrentSupplyRate)
	}
	if t.reserve != nil {
		t.e.metrics.SetReserves(t.reserve.CurrentReserves)
		t.e.emit(events.LendingReserveUpdated{
			TotalCollected:  t.reserve.TotalFeesCollected,
			CurrentReserves: t.reserve.CurrentReserves,
		})
	}
	return nil
}

func (e *Engine) finish(action string, err error) error {
	if e == nil {
		return err
	}
	e.metrics.ObserveOperation(action, err)
	if err != nil {
		e.logger.Debug("lending operation rejected", slog.String("action", action), slog.Any("error", err))
	}
	return err
}

// Initialize registers the default asset and oracle configuration. It may run
// only once.
func (e *Engine) Initialize(asset AssetInfo, oracle OracleConfig, treasury crypto.Address) error {
	if err := e.requireState(); err != nil {
		return err
	}
	registry, err := e.state.LendingRegistry()
	if err != nil {
		return err
	}
	if registry != nil && registry.Default != "" {
		return coreerrors.Wrap(coreerrors.ErrAlreadyInitialized, "lending engine: default asset %s already registered", registry.Default)
	}
	asset.Symbol = NormalizeSymbol(asset.Symbol)
	if violations := asset.Violations(); len(violations) > 0 {
		return coreerrors.Wrap(coreerrors.ErrInvalidInput, "lending engine: %v", violations)
	}
	if violations := oracle.Violations(); len(violations) > 0 {
		return coreerrors.Wrap(coreerrors.ErrInvalidInput, "lending engine: %v", violations)
	}
	now := uint64(e.now().Unix())
	asset.AddedAt = now
	asset.Interest.LastUpdate = now
	asset.Risk.LastUpdate = now
	asset.State = InterestRateState{}
	if asset.State, err = asset.Interest.Refresh(asset.State, now); err != nil {
		return err
	}
	reserve := &ReserveData{Treasury: treasury, DistributionFrequency: DefaultDistributionFrequency}
	if err := e.state.PutLendingAsset(&asset); err != nil {
		return err
	}
	if err := e.state.PutLendingOracleConfig(&oracle); err != nil {
		return err
	}
	if err := e.state.PutLendingReserve(reserve); err != nil {
		return err
	}
	if err := e.state.PutLendingRevenue(&RevenueMetrics{}); err != nil {
		return err
	}
	if err := e.state.PutLendingSettings(&Settings{AMLThreshold: DefaultAMLThreshold}); err != nil {
		return err
	}
	if err := e.state.PutLendingRegistry(&AssetRegistry{Symbols: []string{asset.Symbol}, Default: asset.Symbol}); err != nil {
		return err
	}
	e.logger.Info("lending market initialised",
		slog.String("asset", asset.Symbol),
		slog.String("fallbackPrice", FormatScaled(oracle.FallbackPrice)))
	return nil
}

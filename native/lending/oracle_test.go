package lending

import (
	"errors"
	"testing"

	"lendcore/crypto"
)

func TestValidatePriceFirstObservationAccepted(t *testing.T) {
	cfg := DefaultOracleConfig()
	decision := ValidatePrice(cfg, OracleData{}, "XLM", 10_000_000_000, 10)
	if decision.Fallback || decision.Store == nil || decision.Store.LastPrice != 10_000_000_000 {
		t.Fatalf("first price rejected: %+v", decision)
	}
}

func TestValidatePriceRejectsDeviation(t *testing.T) {
	cfg := DefaultOracleConfig()
	last := OracleData{Asset: "XLM", LastPrice: 200_000_000, LastUpdateTime: 10}
	accepted := ValidatePrice(cfg, last, "XLM", 300_000_000, 20)
	if accepted.Fallback {
		t.Fatalf("50%% move should be accepted: %+v", accepted)
	}
	rejected := ValidatePrice(cfg, last, "XLM", 300_000_002, 20)
	if !rejected.Fallback || rejected.Store != nil || rejected.Price != cfg.FallbackPrice {
		t.Fatalf("deviant price accepted: %+v", rejected)
	}
	if rejected.Reason != PriceReasonDeviation {
		t.Fatalf("unexpected reason %q", rejected.Reason)
	}
	if zero := ValidatePrice(cfg, last, "XLM", 0, 20); !zero.Fallback {
		t.Fatalf("zero price accepted")
	}
}

func TestOracleStaleness(t *testing.T) {
	cfg := DefaultOracleConfig()
	data := OracleData{LastPrice: 1, LastUpdateTime: 1_000}
	if data.IsStale(cfg, 1_000+cfg.HeartbeatSeconds) {
		t.Fatalf("price at heartbeat boundary reported stale")
	}
	if !data.IsStale(cfg, 1_001+cfg.HeartbeatSeconds) {
		t.Fatalf("expired price not reported stale")
	}
}

func TestEngineFallsBackWithoutOracle(t *testing.T) {
	f := newEngineFixture(t)
	if err := f.engine.SetOracle(testAdmin, "", crypto.Address{}); err != nil {
		t.Fatalf("clear oracle: %v", err)
	}
	user := makeAddress(0x01)
	if err := f.engine.Deposit(user, 3_000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := f.engine.Borrow(user, 1_000); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	view, err := f.engine.Position(user, "")
	if err != nil {
		t.Fatalf("position: %v", err)
	}
	// 3000 * 1.5 * 100 / 1000
	if view.Ratio != 450 {
		t.Fatalf("unexpected fallback ratio: got %d want 450", view.Ratio)
	}
	if len(f.state.oracle) != 0 {
		t.Fatalf("fallback price persisted: %+v", f.state.oracle)
	}
}

func TestEngineFallsBackOnSourceError(t *testing.T) {
	f := newEngineFixture(t)
	f.prices.err = errors.New("feed offline")
	user := makeAddress(0x01)
	if err := f.engine.Deposit(user, 3_000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := f.engine.Borrow(user, 1_000); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	if ratio, _ := f.engine.CollateralRatio(user, ""); ratio != 450 {
		t.Fatalf("unexpected ratio: %d", ratio)
	}
}

func TestEngineStoresAcceptedPrice(t *testing.T) {
	f := newEngineFixture(t)
	user := makeAddress(0x01)
	if err := f.engine.Deposit(user, 3_000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := f.engine.Borrow(user, 1_000); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	info, err := f.engine.OracleInfo("")
	if err != nil {
		t.Fatalf("oracle info: %v", err)
	}
	if info.Data.LastPrice != 200_000_000 || info.Data.LastUpdateTime != uint64(testStart.Unix()) {
		t.Fatalf("unexpected stored price: %+v", info.Data)
	}
	if err := f.engine.ForceUpdatePrice(testAdmin, "", 50_000_000); err != nil {
		t.Fatalf("force price: %v", err)
	}
	info, _ = f.engine.OracleInfo("")
	if info.Data.LastPrice != 50_000_000 {
		t.Fatalf("forced price not stored: %+v", info.Data)
	}
}

package governance

import (
	"strings"
	"testing"
)

func TestDefaultConfigurationIsValid(t *testing.T) {
	cfg := DefaultConfiguration()
	report := Validate(&cfg)
	if !report.Valid() {
		t.Fatalf("default configuration invalid: %v", report.Errors)
	}
	if len(report.Warnings) != 0 {
		t.Fatalf("unexpected warnings %v", report.Warnings)
	}
}

func TestValidateAggregatesErrors(t *testing.T) {
	cfg := baseConfiguration()
	cfg.Interest.RateFloor = 60_000_000
	cfg.Risk.LiquidationIncentive = 60_000_000
	cfg.Oracle.FallbackPrice = 0
	cfg.Params.DistributionFrequency = 0
	report := Validate(cfg)
	if report.Valid() {
		t.Fatalf("expected errors")
	}
	if len(report.Errors) < 4 {
		t.Fatalf("expected every violation reported, got %v", report.Errors)
	}
}

func TestValidateAssets(t *testing.T) {
	cfg := baseConfiguration()
	dup := cfg.Assets[0]
	dup.Symbol = " xlm "
	cfg.Assets = append(cfg.Assets, dup)
	bad := cfg.Assets[0]
	bad.Symbol = "USDC"
	bad.Decimals = 30
	cfg.Assets = append(cfg.Assets, bad)
	report := Validate(cfg)
	var dupFound, decimalsFound bool
	for _, msg := range report.Errors {
		if strings.HasPrefix(msg, "XLM: duplicate") {
			dupFound = true
		}
		if strings.HasPrefix(msg, "USDC: asset decimals") {
			decimalsFound = true
		}
	}
	if !dupFound || !decimalsFound {
		t.Fatalf("missing asset errors in %v", report.Errors)
	}

	cfg = baseConfiguration()
	cfg.Params.MaxAssets = 0
	if Validate(cfg).Valid() {
		t.Fatalf("zero max assets accepted")
	}
	cfg.Params.MaxAssets = 1
	cfg.Assets = append(cfg.Assets, bad)
	if Validate(cfg).Valid() {
		t.Fatalf("asset count above max accepted")
	}
}

func TestValidateWarnings(t *testing.T) {
	cfg := baseConfiguration()
	cfg.Params.MinCollateralRatio = 1_500
	cfg.Params.MaxAssets = 150
	cfg.Params.EmergencyPauseEnabled = true
	report := Validate(cfg)
	if !report.Valid() {
		t.Fatalf("warnings must not block: %v", report.Errors)
	}
	if len(report.Warnings) != 3 {
		t.Fatalf("expected 3 warnings, got %v", report.Warnings)
	}
}

func TestChecksumIgnoresVersion(t *testing.T) {
	a := baseConfiguration()
	b := a.Clone()
	b.Version = ConfigurationVersion{Number: 9, Description: "other", Active: true}
	b.Interest.LastUpdate = 123
	sumA, err := a.Checksum()
	if err != nil {
		t.Fatalf("checksum: %v", err)
	}
	sumB, _ := b.Checksum()
	if sumA != sumB {
		t.Fatalf("version metadata changed checksum")
	}
	b.Risk.CloseFactor = 40_000_000
	sumB, _ = b.Checksum()
	if sumA == sumB {
		t.Fatalf("business change not reflected in checksum")
	}
}

func TestProposalStatusRoundTrip(t *testing.T) {
	for _, s := range []ProposalStatus{ProposalStatusPending, ProposalStatusApproved, ProposalStatusRejected, ProposalStatusCancelled} {
		parsed, ok := ParseProposalStatus(s.StatusString())
		if !ok || parsed != s {
			t.Fatalf("status %d did not round trip", s)
		}
	}
	if _, ok := ParseProposalStatus("bogus"); ok {
		t.Fatalf("unknown status parsed")
	}
}

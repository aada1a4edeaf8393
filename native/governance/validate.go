package governance

import (
	"fmt"
	"strings"

	coreerrors "lendcore/core/errors"
	"lendcore/native/lending"
)

const (
	warnMinRatioAbove = 1_000
	warnMaxAssetsOver = 100
)

// ValidationReport collects every violation found in a configuration.
// Warnings never block activation.
type ValidationReport struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// Valid reports whether the configuration may be activated.
func (r ValidationReport) Valid() bool { return len(r.Errors) == 0 }

// ValidationError carries an aggregated report and matches
// errors.ErrInvalidInput.
type ValidationError struct {
	Report ValidationReport
}

func (e *ValidationError) Error() string {
	return "governance: invalid configuration: " + strings.Join(e.Report.Errors, "; ")
}

func (e *ValidationError) Unwrap() error { return coreerrors.ErrInvalidInput }

// Validate checks cfg in one pass and returns every error and warning.
func Validate(cfg *ProtocolConfiguration) ValidationReport {
	var report ValidationReport
	if cfg == nil {
		report.Errors = append(report.Errors, "configuration missing")
		return report
	}
	report.Errors = append(report.Errors, cfg.Interest.Violations()...)
	report.Errors = append(report.Errors, cfg.Risk.Violations()...)
	report.Errors = append(report.Errors, cfg.Oracle.Violations()...)

	p := cfg.Params
	if p.MinCollateralRatio < lending.MinCollateralRatioFloor {
		report.Errors = append(report.Errors, fmt.Sprintf("minimum collateral ratio %d below %d%%", p.MinCollateralRatio, lending.MinCollateralRatioFloor))
	}
	if p.DistributionFrequency == 0 {
		report.Errors = append(report.Errors, "distribution frequency must be positive")
	}
	if p.MaxAssets == 0 {
		report.Errors = append(report.Errors, "max assets must be positive")
	} else if uint32(len(cfg.Assets)) > p.MaxAssets {
		report.Errors = append(report.Errors, fmt.Sprintf("%d assets exceed max assets %d", len(cfg.Assets), p.MaxAssets))
	}

	seen := make(map[string]struct{}, len(cfg.Assets))
	for i, asset := range cfg.Assets {
		info := asset.AssetInfo()
		label := info.Symbol
		if label == "" {
			label = fmt.Sprintf("asset[%d]", i)
		}
		if _, dup := seen[info.Symbol]; dup && info.Symbol != "" {
			report.Errors = append(report.Errors, fmt.Sprintf("%s: duplicate symbol", label))
		}
		seen[info.Symbol] = struct{}{}
		for _, violation := range info.Violations() {
			report.Errors = append(report.Errors, label+": "+violation)
		}
	}

	if p.MinCollateralRatio > warnMinRatioAbove {
		report.Warnings = append(report.Warnings, fmt.Sprintf("minimum collateral ratio %d%% is unusually high", p.MinCollateralRatio))
	}
	if p.MaxAssets > warnMaxAssetsOver {
		report.Warnings = append(report.Warnings, fmt.Sprintf("max assets %d is unusually high", p.MaxAssets))
	}
	if cfg.Interest.BaseRate > cfg.Interest.RateCeiling {
		report.Warnings = append(report.Warnings, "base rate exceeds rate ceiling and will be clamped")
	}
	if p.EmergencyPauseEnabled {
		report.Warnings = append(report.Warnings, "emergency pause enabled")
	}
	return report
}

func validateOrError(cfg *ProtocolConfiguration) (ValidationReport, error) {
	report := Validate(cfg)
	if !report.Valid() {
		return report, &ValidationError{Report: report}
	}
	return report, nil
}

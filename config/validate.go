package config

import (
	"errors"
	"fmt"
	"strings"

	"lendcore/native/governance"
)

// Validate checks the genesis addresses and runs the governance validator
// over the configuration it describes.
func Validate(g *Genesis) error {
	if g == nil {
		return fmt.Errorf("genesis missing")
	}
	admins, err := g.AdminAddresses()
	if err != nil {
		return err
	}
	if len(admins) == 0 {
		return fmt.Errorf("at least one admin required")
	}
	seen := make(map[string]struct{}, len(admins))
	for _, admin := range admins {
		if _, dup := seen[admin.String()]; dup {
			return fmt.Errorf("duplicate admin %s", admin.String())
		}
		seen[admin.String()] = struct{}{}
	}
	if g.RateLimit.PerSecond < 0 || g.RateLimit.Burst < 0 {
		return fmt.Errorf("rate limit must not be negative")
	}
	if g.Compliance.AMLThreshold < 0 {
		return fmt.Errorf("aml threshold must not be negative")
	}
	cfg, err := g.ProtocolConfiguration()
	if err != nil {
		return err
	}
	report := governance.Validate(cfg)
	if !report.Valid() {
		return errors.New(strings.Join(report.Errors, "; "))
	}
	return nil
}

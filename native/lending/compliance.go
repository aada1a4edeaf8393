package lending

import (
	"log/slog"

	coreerrors "lendcore/core/errors"
	"lendcore/core/events"
	"lendcore/crypto"
	nativecommon "lendcore/native/common"
)

const (
	alertFrozenAccount  = "frozen_account"
	alertRatioViolation = "ratio_violation"
	alertLargeTx        = "large_tx"
)

func (e *Engine) checkPaused() error {
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return coreerrors.Wrap(coreerrors.ErrProtocolPaused, "lending engine: %v", err)
	}
	settings, err := e.settings()
	if err != nil {
		return err
	}
	if settings.EmergencyPause {
		return coreerrors.Wrap(coreerrors.ErrProtocolPaused, "lending engine: emergency pause active")
	}
	return nil
}

// checkCompliance rejects frozen, blacklisted and, when KYC is required,
// unverified accounts. Amounts at or above the AML threshold are flagged but
// never blocked.
func (e *Engine) checkCompliance(t *txn, account crypto.Address) error {
	settings, err := e.settings()
	if err != nil {
		return err
	}
	flags, err := e.state.LendingAccountFlags(account)
	if err != nil {
		return err
	}
	if flags == nil {
		flags = &AccountFlags{}
	}
	if flags.Frozen {
		e.flagSuspicious(account, t.action, alertFrozenAccount, t.amount, t.now)
		return coreerrors.Wrap(coreerrors.ErrUnauthorized, "lending engine: account %s frozen", account)
	}
	if flags.Blacklisted {
		return coreerrors.Wrap(coreerrors.ErrUnauthorized, "lending engine: account %s blacklisted", account)
	}
	if settings.KYCRequired && !flags.Verified {
		return coreerrors.Wrap(coreerrors.ErrUnauthorized, "lending engine: account %s not verified", account)
	}
	threshold := settings.AMLThreshold
	if threshold <= 0 {
		threshold = DefaultAMLThreshold
	}
	if t.amount >= threshold {
		e.metrics.ObserveSecurityAlert(alertLargeTx)
		t.events = append(t.events, events.LendingSecurityAlert{
			Account:   account.String(),
			Action:    t.action,
			Amount:    t.amount,
			Reason:    alertLargeTx,
			LargeTx:   true,
			Timestamp: t.now,
		})
	}
	return nil
}

// flagSuspicious bumps the in-memory counter for account and publishes the
// alert immediately; the rejected call itself persists nothing.
func (e *Engine) flagSuspicious(account crypto.Address, action, reason string, amount int64, now uint64) {
	e.monitorMu.Lock()
	e.suspicious[account.String()]++
	count := e.suspicious[account.String()]
	e.monitorMu.Unlock()

	e.metrics.ObserveSecurityAlert(reason)
	e.logger.Warn("suspicious lending activity",
		slog.String("account", account.String()),
		slog.String("action", action),
		slog.String("reason", reason),
		slog.Any("count", count))
	e.emit(events.LendingSecurityAlert{
		Account:   account.String(),
		Action:    action,
		Amount:    amount,
		Reason:    reason,
		Timestamp: now,
	})
}

// SuspiciousCount returns how many alerts were raised for account since the
// engine started.
func (e *Engine) SuspiciousCount(account crypto.Address) uint32 {
	if e == nil {
		return 0
	}
	e.monitorMu.Lock()
	defer e.monitorMu.Unlock()
	return e.suspicious[account.String()]
}

// AccountFlags returns the compliance flags recorded for account.
func (e *Engine) AccountFlags(account crypto.Address) (AccountFlags, error) {
	if err := e.requireState(); err != nil {
		return AccountFlags{}, err
	}
	flags, err := e.state.LendingAccountFlags(account)
	if err != nil || flags == nil {
		return AccountFlags{}, err
	}
	return *flags, nil
}

func (e *Engine) updateFlags(caller, account crypto.Address, scope string, mutate func(*AccountFlags)) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if err := validateAccount(account); err != nil {
		return err
	}
	flags, err := e.state.LendingAccountFlags(account)
	if err != nil {
		return err
	}
	next := AccountFlags{}
	if flags != nil {
		next = *flags
	}
	mutate(&next)
	if err := e.state.PutLendingAccountFlags(account, &next); err != nil {
		return err
	}
	e.logger.Info("lending account flags updated",
		slog.String("admin", caller.String()),
		slog.String("account", account.String()),
		slog.String("scope", scope),
		slog.Bool("frozen", next.Frozen),
		slog.Bool("blacklisted", next.Blacklisted),
		slog.Bool("verified", next.Verified))
	e.emit(events.LendingParamsUpdated{
		Admin:  caller.String(),
		Scope:  scope,
		Values: map[string]int64{"frozen": boolValue(next.Frozen), "blacklisted": boolValue(next.Blacklisted), "verified": boolValue(next.Verified)},
	})
	return nil
}

// SetAccountFrozen freezes or unfreezes account.
func (e *Engine) SetAccountFrozen(caller, account crypto.Address, frozen bool) error {
	return e.updateFlags(caller, account, "compliance.frozen", func(f *AccountFlags) { f.Frozen = frozen })
}

// SetBlacklisted adds or removes account from the blacklist.
func (e *Engine) SetBlacklisted(caller, account crypto.Address, blacklisted bool) error {
	return e.updateFlags(caller, account, "compliance.blacklist", func(f *AccountFlags) { f.Blacklisted = blacklisted })
}

// SetVerified records the KYC status of account.
func (e *Engine) SetVerified(caller, account crypto.Address, verified bool) error {
	return e.updateFlags(caller, account, "compliance.kyc", func(f *AccountFlags) { f.Verified = verified })
}

// SetKYCRequired toggles whether unverified accounts are refused.
func (e *Engine) SetKYCRequired(caller crypto.Address, required bool) error {
	return e.updateSettings(caller, "compliance.kyc_required", func(s *Settings) error {
		s.KYCRequired = required
		return nil
	})
}

// SetAMLThreshold configures the amount at which large transactions are
// flagged.
func (e *Engine) SetAMLThreshold(caller crypto.Address, threshold int64) error {
	return e.updateSettings(caller, "compliance.aml_threshold", func(s *Settings) error {
		if err := validateAmount(threshold); err != nil {
			return err
		}
		s.AMLThreshold = threshold
		return nil
	})
}

// SetEmergencyPause halts every ledger operation while set.
func (e *Engine) SetEmergencyPause(caller crypto.Address, paused bool) error {
	return e.updateSettings(caller, "emergency_pause", func(s *Settings) error {
		s.EmergencyPause = paused
		return nil
	})
}

func (e *Engine) updateSettings(caller crypto.Address, scope string, mutate func(*Settings) error) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	settings, err := e.settings()
	if err != nil {
		return err
	}
	if err := mutate(&settings); err != nil {
		return err
	}
	if err := e.state.PutLendingSettings(&settings); err != nil {
		return err
	}
	e.logger.Info("lending settings updated", slog.String("admin", caller.String()), slog.String("scope", scope))
	e.emit(events.LendingParamsUpdated{
		Admin: caller.String(),
		Scope: scope,
		Values: map[string]int64{
			"kyc_required":    boolValue(settings.KYCRequired),
			"aml_threshold":   settings.AMLThreshold,
			"emergency_pause": boolValue(settings.EmergencyPause),
			"max_assets":      int64(settings.MaxAssets),
		},
	})
	return nil
}

// Settings returns the protocol-wide switches.
func (e *Engine) Settings() (Settings, error) {
	if err := e.requireState(); err != nil {
		return Settings{}, err
	}
	return e.settings()
}

func boolValue(v bool) int64 {
	if v {
		return 1
	}
	return 0
}

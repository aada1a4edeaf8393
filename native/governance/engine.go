package governance

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	coreerrors "lendcore/core/errors"
	"lendcore/core/events"
	"lendcore/core/types"
	"lendcore/crypto"
)

const (
	// EventTypeConfigurationActivated is emitted when a version becomes active.
	EventTypeConfigurationActivated = "gov.config.activated"
	// EventTypeBackupCreated is emitted when the active configuration is
	// snapshotted.
	EventTypeBackupCreated = "gov.backup.created"
	// EventTypeProposalCreated is emitted when a new proposal is accepted.
	EventTypeProposalCreated = "gov.proposed"
	// EventTypeProposalDecided is emitted when a proposal leaves Pending.
	EventTypeProposalDecided = "gov.decided"
)

var (
	errStateNotConfigured = errors.New("governance: state not configured")
)

type configState interface {
	GovernanceNextVersion() (uint64, error)
	GovernanceNextBackupID() (uint64, error)
	GovernanceNextProposalID() (uint64, error)
	GovernanceCurrentConfiguration() (*ProtocolConfiguration, bool, error)
	GovernancePutCurrentConfiguration(cfg *ProtocolConfiguration) error
	GovernanceClearCurrentConfiguration() error
	GovernanceHistory() ([]*ProtocolConfiguration, error)
	GovernancePutHistory(history []*ProtocolConfiguration) error
	GovernancePutBackup(b *ConfigurationBackup) error
	GovernanceGetBackup(id uint64) (*ConfigurationBackup, bool, error)
	GovernancePutProposal(p *ConfigurationProposal) error
	GovernanceGetProposal(id uint64) (*ConfigurationProposal, bool, error)
	GovernanceListProposals() ([]*ConfigurationProposal, error)
}

// Authorizer gates every mutating governance operation.
type Authorizer interface {
	RequireAdmin(caller crypto.Address) error
}

// Applier pushes an activated configuration into the live protocol. A
// failing applier aborts activation.
type Applier interface {
	ApplyConfiguration(caller crypto.Address, cfg *ProtocolConfiguration) error
}

// Engine manages configuration versions, backups and proposals.
type Engine struct {
	state   configState
	auth    Authorizer
	applier Applier
	emitter events.Emitter
	logger  *slog.Logger
	nowFn   func() time.Time
}

// NewEngine constructs a governance engine with default no-op dependencies.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		logger:  slog.Default(),
		nowFn:   func() time.Time { return time.Now().UTC() },
	}
}

// SetState wires the engine to the state backend providing persistence helpers.
func (e *Engine) SetState(state configState) { e.state = state }

func (e *Engine) SetAuthorizer(auth Authorizer) {
	if e == nil {
		return
	}
	e.auth = auth
}

// SetApplier configures the collaborator receiving activated configurations.
func (e *Engine) SetApplier(applier Applier) {
	if e == nil {
		return
	}
	e.applier = applier
}

// SetEmitter configures the event emitter used by the engine. Passing nil resets
// the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) SetLogger(logger *slog.Logger) {
	if e == nil {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	e.logger = logger.With(slog.String("module", "governance"))
}

// SetNowFunc overrides the time source. Nil restores the default UTC clock.
func (e *Engine) SetNowFunc(now func() time.Time) {
	if now == nil {
		e.nowFn = func() time.Time { return time.Now().UTC() }
		return
	}
	e.nowFn = now
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(governanceEvent{evt: event})
}

func (e *Engine) now() time.Time {
	if e == nil || e.nowFn == nil {
		return time.Now().UTC()
	}
	return e.nowFn()
}

func (e *Engine) authorize(caller crypto.Address) error {
	if e == nil || e.state == nil {
		return errStateNotConfigured
	}
	if e.auth == nil {
		return coreerrors.Wrap(coreerrors.ErrAdminNotSet, "governance: authorizer not configured")
	}
	return e.auth.RequireAdmin(caller)
}

func (e *Engine) current() (*ProtocolConfiguration, error) {
	cfg, ok, err := e.state.GovernanceCurrentConfiguration()
	if err != nil {
		return nil, err
	}
	if !ok || cfg == nil {
		return nil, coreerrors.Wrap(coreerrors.ErrNotFound, "governance: no active configuration")
	}
	return cfg, nil
}

// activate validates cfg, stores it as the new active version (archiving the
// previous one) and then pushes it through the applier. A rejected apply
// restores the previous records.
func (e *Engine) activate(caller crypto.Address, cfg *ProtocolConfiguration, description string) (*ProtocolConfiguration, ValidationReport, error) {
	next := cfg.Clone()
	report, err := validateOrError(next)
	if err != nil {
		return nil, report, err
	}
	previous, ok, err := e.state.GovernanceCurrentConfiguration()
	if err != nil {
		return nil, report, err
	}
	if !ok {
		previous = nil
	}
	var history []*ProtocolConfiguration
	if previous != nil {
		if history, err = e.state.GovernanceHistory(); err != nil {
			return nil, report, err
		}
	}
	number, err := e.state.GovernanceNextVersion()
	if err != nil {
		return nil, report, err
	}
	next.Version = ConfigurationVersion{
		Number:      number,
		CreatedAt:   uint64(e.now().Unix()),
		CreatedBy:   caller,
		Description: description,
		Active:      true,
	}
	if previous != nil {
		archived := previous.Clone()
		archived.Version.Active = false
		updated := append(append([]*ProtocolConfiguration(nil), history...), archived)
		if len(updated) > HistoryLimit {
			updated = updated[len(updated)-HistoryLimit:]
		}
		if err := e.state.GovernancePutHistory(updated); err != nil {
			return nil, report, err
		}
	}
	if err := e.state.GovernancePutCurrentConfiguration(next); err != nil {
		return nil, report, e.restore(previous, history, err)
	}
	if e.applier != nil {
		if err := e.applier.ApplyConfiguration(caller, next); err != nil {
			return nil, report, e.restore(previous, history, fmt.Errorf("governance: apply configuration: %w", err))
		}
	}
	for _, warning := range report.Warnings {
		e.logger.Warn("configuration warning", slog.Uint64("version", number), slog.String("warning", warning))
	}
	e.logger.Info("configuration activated",
		slog.Uint64("version", number),
		slog.String("admin", caller.String()),
		slog.String("description", description))
	e.emit(newActivatedEvent(next))
	return next, report, nil
}

// restore puts back the active configuration and history that were in place
// before a failed activation and returns cause.
func (e *Engine) restore(previous *ProtocolConfiguration, history []*ProtocolConfiguration, cause error) error {
	if previous == nil {
		if err := e.state.GovernanceClearCurrentConfiguration(); err != nil {
			return errors.Join(cause, fmt.Errorf("governance: clear configuration: %w", err))
		}
		return cause
	}
	if err := e.state.GovernancePutHistory(history); err != nil {
		return errors.Join(cause, fmt.Errorf("governance: restore history: %w", err))
	}
	if err := e.state.GovernancePutCurrentConfiguration(previous); err != nil {
		return errors.Join(cause, fmt.Errorf("governance: restore configuration: %w", err))
	}
	return cause
}

// CreateConfiguration installs the first configuration version.
func (e *Engine) CreateConfiguration(caller crypto.Address, cfg *ProtocolConfiguration, description string) (*ProtocolConfiguration, ValidationReport, error) {
	if err := e.authorize(caller); err != nil {
		return nil, ValidationReport{}, err
	}
	if _, ok, err := e.state.GovernanceCurrentConfiguration(); err != nil {
		return nil, ValidationReport{}, err
	} else if ok {
		return nil, ValidationReport{}, coreerrors.Wrap(coreerrors.ErrAlreadyExists, "governance: configuration already created")
	}
	return e.activate(caller, cfg, description)
}

// UpdateConfiguration activates cfg as a new version on top of the current
// one.
func (e *Engine) UpdateConfiguration(caller crypto.Address, cfg *ProtocolConfiguration, description string) (*ProtocolConfiguration, ValidationReport, error) {
	if err := e.authorize(caller); err != nil {
		return nil, ValidationReport{}, err
	}
	if _, err := e.current(); err != nil {
		return nil, ValidationReport{}, err
	}
	return e.activate(caller, cfg, description)
}

// CreateBackup snapshots the active configuration.
func (e *Engine) CreateBackup(caller crypto.Address, description string) (*ConfigurationBackup, error) {
	if err := e.authorize(caller); err != nil {
		return nil, err
	}
	current, err := e.current()
	if err != nil {
		return nil, err
	}
	sum, err := current.Checksum()
	if err != nil {
		return nil, err
	}
	id, err := e.state.GovernanceNextBackupID()
	if err != nil {
		return nil, err
	}
	backup := &ConfigurationBackup{
		ID:            id,
		Configuration: current.Clone(),
		CreatedAt:     uint64(e.now().Unix()),
		CreatedBy:     caller,
		Description:   description,
		Checksum:      hex.EncodeToString(sum[:]),
	}
	if err := e.state.GovernancePutBackup(backup); err != nil {
		return nil, err
	}
	e.logger.Info("configuration backup created", slog.Uint64("backup", id), slog.Uint64("version", current.Version.Number))
	e.emit(newBackupEvent(backup))
	return backup, nil
}

// RestoreFromBackup activates the content of backup id as a new version.
// History is never rewritten.
func (e *Engine) RestoreFromBackup(caller crypto.Address, id uint64) (*ProtocolConfiguration, error) {
	if err := e.authorize(caller); err != nil {
		return nil, err
	}
	backup, ok, err := e.state.GovernanceGetBackup(id)
	if err != nil {
		return nil, err
	}
	if !ok || backup == nil || backup.Configuration == nil {
		return nil, coreerrors.Wrap(coreerrors.ErrNotFound, "governance: backup %d", id)
	}
	sum, err := backup.Configuration.Checksum()
	if err != nil {
		return nil, err
	}
	if hex.EncodeToString(sum[:]) != backup.Checksum {
		return nil, coreerrors.Wrap(coreerrors.ErrInvalidOperation, "governance: backup %d checksum mismatch", id)
	}
	restored, _, err := e.activate(caller, backup.Configuration, fmt.Sprintf("Restored from backup %d", id))
	return restored, err
}

// CreateProposal stores a validated Pending proposal based on the active
// version. A non-positive ttl selects DefaultProposalTTL.
func (e *Engine) CreateProposal(caller crypto.Address, cfg *ProtocolConfiguration, description string, ttl time.Duration) (*ConfigurationProposal, error) {
	if err := e.authorize(caller); err != nil {
		return nil, err
	}
	if _, err := validateOrError(cfg); err != nil {
		return nil, err
	}
	current, err := e.current()
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = DefaultProposalTTL
	}
	id, err := e.state.GovernanceNextProposalID()
	if err != nil {
		return nil, err
	}
	now := e.now()
	proposal := &ConfigurationProposal{
		ID:          id,
		Proposed:    cfg.Clone(),
		BaseVersion: current.Version.Number,
		Creator:     caller,
		Status:      ProposalStatusPending,
		Description: description,
		CreatedAt:   uint64(now.Unix()),
		ExpiresAt:   uint64(now.Add(ttl).Unix()),
	}
	if err := e.state.GovernancePutProposal(proposal); err != nil {
		return nil, err
	}
	e.emit(newProposalEvent(EventTypeProposalCreated, proposal))
	return proposal, nil
}

func (e *Engine) pendingProposal(id uint64) (*ConfigurationProposal, error) {
	proposal, ok, err := e.state.GovernanceGetProposal(id)
	if err != nil {
		return nil, err
	}
	if !ok || proposal == nil {
		return nil, coreerrors.Wrap(coreerrors.ErrNotFound, "governance: proposal %d", id)
	}
	if proposal.Status != ProposalStatusPending {
		return nil, coreerrors.Wrap(coreerrors.ErrInvalidOperation, "governance: proposal %d is %s", id, proposal.Status.StatusString())
	}
	return proposal, nil
}

func (e *Engine) decide(caller crypto.Address, proposal *ConfigurationProposal, status ProposalStatus) error {
	proposal.Status = status
	proposal.DecidedBy = caller
	proposal.DecidedAt = uint64(e.now().Unix())
	if err := e.state.GovernancePutProposal(proposal); err != nil {
		return err
	}
	e.logger.Info("proposal decided",
		slog.Uint64("proposal", proposal.ID),
		slog.String("status", status.StatusString()),
		slog.String("admin", caller.String()))
	e.emit(newProposalEvent(EventTypeProposalDecided, proposal))
	return nil
}

// ApproveProposal activates a Pending proposal. Expired proposals are
// cancelled on the spot and the approval fails; proposals based on a version
// that is no longer active are refused and stay Pending.
func (e *Engine) ApproveProposal(caller crypto.Address, id uint64) (*ProtocolConfiguration, error) {
	if err := e.authorize(caller); err != nil {
		return nil, err
	}
	proposal, err := e.pendingProposal(id)
	if err != nil {
		return nil, err
	}
	if uint64(e.now().Unix()) > proposal.ExpiresAt {
		if err := e.decide(caller, proposal, ProposalStatusCancelled); err != nil {
			return nil, err
		}
		return nil, coreerrors.Wrap(coreerrors.ErrInvalidOperation, "governance: proposal %d expired", id)
	}
	current, err := e.current()
	if err != nil {
		return nil, err
	}
	if current.Version.Number != proposal.BaseVersion {
		return nil, coreerrors.Wrap(coreerrors.ErrInvalidOperation,
			"governance: proposal %d based on version %d, active is %d", id, proposal.BaseVersion, current.Version.Number)
	}
	description := fmt.Sprintf("Proposal %d", id)
	if proposal.Description != "" {
		description += ": " + proposal.Description
	}
	activated, _, err := e.activate(caller, proposal.Proposed, description)
	if err != nil {
		return nil, err
	}
	if err := e.decide(caller, proposal, ProposalStatusApproved); err != nil {
		return nil, err
	}
	return activated, nil
}

// RejectProposal closes a Pending proposal without activating it.
func (e *Engine) RejectProposal(caller crypto.Address, id uint64) error {
	if err := e.authorize(caller); err != nil {
		return err
	}
	proposal, err := e.pendingProposal(id)
	if err != nil {
		return err
	}
	return e.decide(caller, proposal, ProposalStatusRejected)
}

// CancelProposal withdraws a Pending proposal.
func (e *Engine) CancelProposal(caller crypto.Address, id uint64) error {
	if err := e.authorize(caller); err != nil {
		return err
	}
	proposal, err := e.pendingProposal(id)
	if err != nil {
		return err
	}
	return e.decide(caller, proposal, ProposalStatusCancelled)
}

// CurrentConfiguration returns the active configuration.
func (e *Engine) CurrentConfiguration() (*ProtocolConfiguration, error) {
	if e == nil || e.state == nil {
		return nil, errStateNotConfigured
	}
	return e.current()
}

// History returns archived versions, oldest first.
func (e *Engine) History() ([]*ProtocolConfiguration, error) {
	if e == nil || e.state == nil {
		return nil, errStateNotConfigured
	}
	return e.state.GovernanceHistory()
}

// Backup returns the backup with the given id.
func (e *Engine) Backup(id uint64) (*ConfigurationBackup, error) {
	if e == nil || e.state == nil {
		return nil, errStateNotConfigured
	}
	backup, ok, err := e.state.GovernanceGetBackup(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, coreerrors.Wrap(coreerrors.ErrNotFound, "governance: backup %d", id)
	}
	return backup, nil
}

// Proposal returns the proposal with the given id.
func (e *Engine) Proposal(id uint64) (*ConfigurationProposal, error) {
	if e == nil || e.state == nil {
		return nil, errStateNotConfigured
	}
	proposal, ok, err := e.state.GovernanceGetProposal(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, coreerrors.Wrap(coreerrors.ErrNotFound, "governance: proposal %d", id)
	}
	return proposal, nil
}

// ProposalsByStatus lists proposals in the given status ordered by id.
func (e *Engine) ProposalsByStatus(status ProposalStatus) ([]*ConfigurationProposal, error) {
	if e == nil || e.state == nil {
		return nil, errStateNotConfigured
	}
	all, err := e.state.GovernanceListProposals()
	if err != nil {
		return nil, err
	}
	out := make([]*ConfigurationProposal, 0, len(all))
	for _, p := range all {
		if p != nil && p.Status == status {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type governanceEvent struct {
	evt *types.Event
}

func (g governanceEvent) EventType() string {
	if g.evt == nil {
		return ""
	}
	return g.evt.Type
}

func (g governanceEvent) Event() *types.Event { return g.evt }

func newActivatedEvent(cfg *ProtocolConfiguration) *types.Event {
	attrs := map[string]string{
		"version": strconv.FormatUint(cfg.Version.Number, 10),
		"assets":  strconv.Itoa(len(cfg.Assets)),
	}
	if !cfg.Version.CreatedBy.IsZero() {
		attrs["admin"] = cfg.Version.CreatedBy.String()
	}
	if cfg.Version.Description != "" {
		attrs["description"] = cfg.Version.Description
	}
	return &types.Event{Type: EventTypeConfigurationActivated, Attributes: attrs}
}

func newBackupEvent(b *ConfigurationBackup) *types.Event {
	attrs := map[string]string{
		"id":       strconv.FormatUint(b.ID, 10),
		"checksum": b.Checksum,
	}
	if b.Configuration != nil {
		attrs["version"] = strconv.FormatUint(b.Configuration.Version.Number, 10)
	}
	return &types.Event{Type: EventTypeBackupCreated, Attributes: attrs}
}

func newProposalEvent(typ string, p *ConfigurationProposal) *types.Event {
	attrs := map[string]string{
		"id":          strconv.FormatUint(p.ID, 10),
		"status":      p.Status.StatusString(),
		"baseVersion": strconv.FormatUint(p.BaseVersion, 10),
	}
	if !p.Creator.IsZero() {
		attrs["creator"] = p.Creator.String()
	}
	if p.ExpiresAt > 0 {
		attrs["expiresAt"] = strconv.FormatUint(p.ExpiresAt, 10)
	}
	return &types.Event{Type: typ, Attributes: attrs}
}

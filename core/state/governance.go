package state

import (
	"fmt"

	"lendcore/native/governance"
)

func (m *Manager) GovernanceNextVersion() (uint64, error) {
	return m.NextCounter(governanceVersionCounterKeyBytes)
}

func (m *Manager) GovernanceNextBackupID() (uint64, error) {
	return m.NextCounter(governanceBackupCounterKeyBytes)
}

func (m *Manager) GovernanceNextProposalID() (uint64, error) {
	return m.NextCounter(governanceProposalCounterKeyBytes)
}

func (m *Manager) GovernanceCurrentConfiguration() (*governance.ProtocolConfiguration, bool, error) {
	var cfg governance.ProtocolConfiguration
	ok, err := m.KVGet(governanceCurrentKeyBytes, &cfg)
	if err != nil || !ok {
		return nil, false, err
	}
	return &cfg, true, nil
}

func (m *Manager) GovernancePutCurrentConfiguration(cfg *governance.ProtocolConfiguration) error {
	if cfg == nil {
		return fmt.Errorf("governance: configuration must not be nil")
	}
	return m.KVPut(governanceCurrentKeyBytes, cfg)
}

func (m *Manager) GovernanceClearCurrentConfiguration() error {
	return m.KVDelete(governanceCurrentKeyBytes)
}

// GovernanceHistory returns archived configurations oldest first.
func (m *Manager) GovernanceHistory() ([]*governance.ProtocolConfiguration, error) {
	history := []*governance.ProtocolConfiguration{}
	if _, err := m.KVGet(governanceHistoryKeyBytes, &history); err != nil {
		return nil, err
	}
	return history, nil
}

func (m *Manager) GovernancePutHistory(history []*governance.ProtocolConfiguration) error {
	return m.KVPut(governanceHistoryKeyBytes, history)
}

func (m *Manager) GovernancePutBackup(b *governance.ConfigurationBackup) error {
	if b == nil {
		return fmt.Errorf("governance: backup must not be nil")
	}
	return m.KVPut(GovernanceBackupKey(b.ID), b)
}

func (m *Manager) GovernanceGetBackup(id uint64) (*governance.ConfigurationBackup, bool, error) {
	var backup governance.ConfigurationBackup
	ok, err := m.KVGet(GovernanceBackupKey(id), &backup)
	if err != nil || !ok {
		return nil, false, err
	}
	return &backup, true, nil
}

// GovernancePutProposal stores the proposal and indexes its id.
func (m *Manager) GovernancePutProposal(p *governance.ConfigurationProposal) error {
	if p == nil {
		return fmt.Errorf("governance: proposal must not be nil")
	}
	if err := m.KVPut(GovernanceProposalKey(p.ID), p); err != nil {
		return err
	}
	return m.KVAppendID(governanceProposalIndexKeyBytes, p.ID)
}

func (m *Manager) GovernanceGetProposal(id uint64) (*governance.ConfigurationProposal, bool, error) {
	var proposal governance.ConfigurationProposal
	ok, err := m.KVGet(GovernanceProposalKey(id), &proposal)
	if err != nil || !ok {
		return nil, false, err
	}
	return &proposal, true, nil
}

func (m *Manager) GovernanceListProposals() ([]*governance.ConfigurationProposal, error) {
	ids, err := m.KVGetIDs(governanceProposalIndexKeyBytes)
	if err != nil {
		return nil, err
	}
	out := make([]*governance.ConfigurationProposal, 0, len(ids))
	for _, id := range ids {
		proposal, ok, err := m.GovernanceGetProposal(id)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, proposal)
		}
	}
	return out, nil
}

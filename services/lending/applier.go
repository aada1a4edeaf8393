package lending

import (
	"lendcore/crypto"
	"lendcore/native/governance"
	nativelending "lendcore/native/lending"
)

// engineApplier pushes activated configurations into the lending engine.
type engineApplier struct {
	engine *nativelending.Engine
}

func (a engineApplier) ApplyConfiguration(caller crypto.Address, cfg *governance.ProtocolConfiguration) error {
	return a.engine.ApplyParameters(caller, cfg.MarketParameters())
}

package lending

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"lendcore/config"
	coreerrors "lendcore/core/errors"
	"lendcore/core/events"
	"lendcore/core/state"
	"lendcore/native/admin"
	nativecommon "lendcore/native/common"
	"lendcore/native/governance"
	nativelending "lendcore/native/lending"
	"lendcore/observability"
	"lendcore/observability/metrics"
	"lendcore/storage"
)

const defaultEventRetention = 256

// Options configures a Protocol. Zero values select production defaults
// without metrics.
type Options struct {
	Logger         *slog.Logger
	Metrics        *metrics.LendingMetrics
	EventMetrics   *observability.EventMetrics
	Downstream     events.Emitter
	Prices         nativelending.PriceSource
	Pauses         nativecommon.PauseView
	Now            func() time.Time
	EventRetention int
}

// Modules exposes the protocol components to a serialized callback.
type Modules struct {
	Lending    *nativelending.Engine
	Admins     *admin.Set
	Governance *governance.Engine
}

// Protocol composes the lending engine, the admin set and configuration
// governance over one state store. Mutations are serialized; queries may run
// concurrently with each other.
type Protocol struct {
	mu      sync.RWMutex
	store   *state.Manager
	modules Modules
	sink    *EventSink
	logger  *slog.Logger
}

// New wires every module to db.
func New(db storage.Database, opts Options) *Protocol {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	retention := opts.EventRetention
	if retention <= 0 {
		retention = defaultEventRetention
	}
	store := state.NewManager(db)
	sink := NewEventSink(retention, opts.Downstream, logger, opts.EventMetrics)

	admins := admin.NewSet(store)
	admins.SetEmitter(sink)
	admins.SetLogger(logger)

	engine := nativelending.NewEngine()
	engine.SetState(store)
	engine.SetAuthorizer(admins)
	engine.SetPriceSource(opts.Prices)
	engine.SetPauses(opts.Pauses)
	engine.SetEmitter(sink)
	engine.SetLogger(logger)
	engine.SetMetrics(opts.Metrics)

	gov := governance.NewEngine()
	gov.SetState(store)
	gov.SetAuthorizer(admins)
	gov.SetApplier(engineApplier{engine: engine})
	gov.SetEmitter(sink)
	gov.SetLogger(logger)

	if opts.Now != nil {
		engine.SetNowFunc(opts.Now)
		gov.SetNowFunc(opts.Now)
	}

	return &Protocol{
		store:   store,
		modules: Modules{Lending: engine, Admins: admins, Governance: gov},
		sink:    sink,
		logger:  logger.With(slog.String("component", "protocol")),
	}
}

// Update runs fn with exclusive access to the modules.
func (p *Protocol) Update(fn func(Modules) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return fn(p.modules)
}

// View runs fn alongside other queries but never alongside an Update.
func (p *Protocol) View(fn func(Modules) error) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return fn(p.modules)
}

// Events returns the most recent protocol events, oldest first.
func (p *Protocol) Events() []*EventView {
	recent := p.sink.Recent()
	out := make([]*EventView, 0, len(recent))
	for _, evt := range recent {
		out = append(out, &EventView{Type: evt.Type, Attributes: evt.Attributes})
	}
	return out
}

// EventView is the query form of a retained event.
type EventView struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// Bootstrap brings an empty store to the genesis state. Every step is
// skipped when already done so restarts over a persistent store are no-ops.
func (p *Protocol) Bootstrap(g *config.Genesis) error {
	if g == nil {
		return fmt.Errorf("protocol: genesis required")
	}
	admins, err := g.AdminAddresses()
	if err != nil {
		return err
	}
	if len(admins) == 0 {
		return fmt.Errorf("protocol: genesis has no admin")
	}
	primary := admins[0]
	treasury, err := g.TreasuryAddress()
	if err != nil {
		return err
	}
	defaultAsset, err := g.DefaultAsset.Info()
	if err != nil {
		return err
	}
	cfg, err := g.ProtocolConfiguration()
	if err != nil {
		return err
	}

	return p.Update(func(m Modules) error {
		if err := m.Admins.Initialize(primary); err == nil {
			for _, extra := range admins[1:] {
				if err := m.Admins.AddAdmin(primary, extra); err != nil {
					return fmt.Errorf("protocol: add genesis admin: %w", err)
				}
			}
		} else if !errors.Is(err, coreerrors.ErrAlreadyInitialized) {
			return fmt.Errorf("protocol: initialise admins: %w", err)
		}

		fresh := true
		if err := m.Lending.Initialize(defaultAsset, g.Oracle, treasury); err != nil {
			if !errors.Is(err, coreerrors.ErrAlreadyInitialized) {
				return fmt.Errorf("protocol: initialise market: %w", err)
			}
			fresh = false
		}
		if fresh {
			if err := m.Lending.SetKYCRequired(primary, g.Compliance.KYCRequired); err != nil {
				return err
			}
			if err := m.Lending.SetAMLThreshold(primary, g.Compliance.AMLThreshold); err != nil {
				return err
			}
		}
		m.Lending.SetOperationRateLimit(g.RateLimit)

		if _, err := m.Governance.CurrentConfiguration(); err == nil {
			return nil
		} else if !errors.Is(err, coreerrors.ErrNotFound) {
			return err
		}
		if _, _, err := m.Governance.CreateConfiguration(primary, cfg, "genesis"); err != nil {
			return fmt.Errorf("protocol: genesis configuration: %w", err)
		}
		p.logger.Info("protocol bootstrapped",
			slog.String("admin", primary.String()),
			slog.Int("assets", len(cfg.Assets)))
		return nil
	})
}

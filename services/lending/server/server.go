package server

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	coreerrors "lendcore/core/errors"
	"lendcore/crypto"
	"lendcore/native/governance"
	nativelending "lendcore/native/lending"
	"lendcore/observability"
	"lendcore/services/lending"
)

// Config wires the query server.
type Config struct {
	Protocol      *lending.Protocol
	Logger        *slog.Logger
	Metrics       *observability.QueryMetrics
	ExposeMetrics bool
	// APITokens gates /v1 behind bearer authentication when non-empty.
	APITokens []string
}

// Server exposes the protocol's read models over HTTP. It never mutates
// state.
type Server struct {
	protocol *lending.Protocol
	logger   *slog.Logger
	metrics  *observability.QueryMetrics
	tokens   [][]byte
	router   chi.Router
}

// New constructs the query server and its routes.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		protocol: cfg.Protocol,
		logger:   logger.With(slog.String("component", "query")),
		metrics:  cfg.Metrics,
	}
	for _, token := range cfg.APITokens {
		if token = strings.TrimSpace(token); token != "" {
			s.tokens = append(s.tokens, []byte(token))
		}
	}
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if cfg.ExposeMetrics {
		r.Handle("/metrics", promhttp.Handler())
	}
	r.Route("/v1", func(v chi.Router) {
		v.Use(s.observe)
		v.Use(s.authenticate)
		v.Get("/assets", s.listAssets)
		v.Get("/assets/{symbol}", s.getAsset)
		v.Get("/assets/{symbol}/rates", s.getRates)
		v.Get("/assets/{symbol}/utilization", s.getUtilization)
		v.Get("/assets/{symbol}/oracle", s.getOracle)
		v.Get("/positions/{account}", s.getPosition)
		v.Get("/accounts/{account}", s.getAccount)
		v.Get("/protocol/activity", s.getProtocolActivity)
		v.Get("/protocol/settings", s.getSettings)
		v.Get("/reserve", s.getReserve)
		v.Get("/admins", s.listAdmins)
		v.Get("/config", s.getConfiguration)
		v.Get("/config/history", s.getHistory)
		v.Get("/config/backups/{id}", s.getBackup)
		v.Get("/proposals", s.listProposals)
		v.Get("/proposals/{id}", s.getProposal)
		v.Get("/events", s.listEvents)
	})
	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		s.metrics.Observe(route, recorder.status, time.Since(start))
		if recorder.status >= http.StatusInternalServerError {
			s.logger.Warn("query failed", slog.String("route", route), slog.Int("status", recorder.status))
		}
	})
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(s.tokens) == 0 {
			next.ServeHTTP(w, r)
			return
		}
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if ok {
			presented := []byte(strings.TrimSpace(token))
			for _, allowed := range s.tokens {
				if subtle.ConstantTimeCompare(presented, allowed) == 1 {
					next.ServeHTTP(w, r)
					return
				}
			}
		}
		writeJSONError(w, http.StatusUnauthorized, errors.New("authentication required"))
	})
}

// view runs fn under the protocol's read lock and renders its result.
func (s *Server) view(w http.ResponseWriter, fn func(lending.Modules) (any, error)) {
	var out any
	err := s.protocol.View(func(m lending.Modules) error {
		var err error
		out, err = fn(m)
		return err
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func accountParam(r *http.Request) (crypto.Address, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "account"))
	addr, err := crypto.DecodeAddress(raw)
	if err != nil {
		return crypto.Address{}, coreerrors.Wrap(coreerrors.ErrInvalidAddress, "account %q: %v", raw, err)
	}
	if addr.Prefix() != crypto.AccountPrefix {
		return crypto.Address{}, coreerrors.Wrap(coreerrors.ErrInvalidAddress, "account %q has prefix %s", raw, addr.Prefix())
	}
	return addr, nil
}

func idParam(r *http.Request) (uint64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, coreerrors.Wrap(coreerrors.ErrInvalidInput, "invalid id %q", raw)
	}
	return id, nil
}

func (s *Server) listAssets(w http.ResponseWriter, r *http.Request) {
	s.view(w, func(m lending.Modules) (any, error) {
		symbols, err := m.Lending.SupportedAssets()
		if err != nil {
			return nil, err
		}
		def, err := m.Lending.DefaultAsset()
		if err != nil {
			return nil, err
		}
		assets := make([]nativelending.AssetInfo, 0, len(symbols))
		for _, symbol := range symbols {
			info, err := m.Lending.Asset(symbol)
			if err != nil {
				return nil, err
			}
			assets = append(assets, info)
		}
		return map[string]any{"default": def, "assets": assets}, nil
	})
}

func (s *Server) getAsset(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	s.view(w, func(m lending.Modules) (any, error) {
		return m.Lending.Asset(symbol)
	})
}

type ratesView struct {
	Asset  string                           `json:"asset"`
	State  nativelending.InterestRateState  `json:"state"`
	Config nativelending.InterestRateConfig `json:"config"`
	Risk   nativelending.RiskConfig         `json:"risk"`
	Borrow string                           `json:"borrow_rate"`
	Supply string                           `json:"supply_rate"`
}

func (s *Server) getRates(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	s.view(w, func(m lending.Modules) (any, error) {
		state, err := m.Lending.CurrentRates(symbol)
		if err != nil {
			return nil, err
		}
		cfg, err := m.Lending.InterestRateConfig(symbol)
		if err != nil {
			return nil, err
		}
		risk, err := m.Lending.RiskConfig(symbol)
		if err != nil {
			return nil, err
		}
		return ratesView{
			Asset:  nativelending.NormalizeSymbol(symbol),
			State:  state,
			Config: cfg,
			Risk:   risk,
			Borrow: nativelending.FormatPercent(state.CurrentBorrowRate),
			Supply: nativelending.FormatPercent(state.CurrentSupplyRate),
		}, nil
	})
}

func (s *Server) getUtilization(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	s.view(w, func(m lending.Modules) (any, error) {
		return m.Lending.UtilizationMetrics(symbol)
	})
}

func (s *Server) getOracle(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	s.view(w, func(m lending.Modules) (any, error) {
		return m.Lending.OracleInfo(symbol)
	})
}

type positionView struct {
	nativelending.PositionView
	Accrued nativelending.AccruedInterest `json:"accrued"`
}

func (s *Server) getPosition(w http.ResponseWriter, r *http.Request) {
	account, err := accountParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	symbol := r.URL.Query().Get("asset")
	s.view(w, func(m lending.Modules) (any, error) {
		view, err := m.Lending.Position(account, symbol)
		if err != nil {
			return nil, err
		}
		accrued, err := m.Lending.UserAccruedInterest(account, symbol)
		if err != nil {
			return nil, err
		}
		return positionView{PositionView: view, Accrued: accrued}, nil
	})
}

type accountView struct {
	Account    crypto.Address             `json:"account"`
	Flags      nativelending.AccountFlags `json:"flags"`
	Activity   nativelending.UserActivity `json:"activity"`
	Suspicious uint32                     `json:"suspicious"`
}

func (s *Server) getAccount(w http.ResponseWriter, r *http.Request) {
	account, err := accountParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	s.view(w, func(m lending.Modules) (any, error) {
		flags, err := m.Lending.AccountFlags(account)
		if err != nil {
			return nil, err
		}
		activity, err := m.Lending.UserActivity(account)
		if err != nil {
			return nil, err
		}
		return accountView{
			Account:    account,
			Flags:      flags,
			Activity:   activity,
			Suspicious: m.Lending.SuspiciousCount(account),
		}, nil
	})
}

func (s *Server) getProtocolActivity(w http.ResponseWriter, r *http.Request) {
	s.view(w, func(m lending.Modules) (any, error) {
		return m.Lending.ProtocolActivity()
	})
}

func (s *Server) getSettings(w http.ResponseWriter, r *http.Request) {
	s.view(w, func(m lending.Modules) (any, error) {
		settings, err := m.Lending.Settings()
		if err != nil {
			return nil, err
		}
		oracle, err := m.Lending.OracleConfig()
		if err != nil {
			return nil, err
		}
		return map[string]any{"settings": settings, "oracle": oracle}, nil
	})
}

func (s *Server) getReserve(w http.ResponseWriter, r *http.Request) {
	s.view(w, func(m lending.Modules) (any, error) {
		reserve, err := m.Lending.ReserveData()
		if err != nil {
			return nil, err
		}
		revenue, err := m.Lending.RevenueMetrics()
		if err != nil {
			return nil, err
		}
		return map[string]any{"reserve": reserve, "revenue": revenue}, nil
	})
}

func (s *Server) listAdmins(w http.ResponseWriter, r *http.Request) {
	s.view(w, func(m lending.Modules) (any, error) {
		admins, err := m.Admins.Admins()
		if err != nil {
			return nil, err
		}
		return map[string]any{"admins": admins}, nil
	})
}

func (s *Server) getConfiguration(w http.ResponseWriter, r *http.Request) {
	s.view(w, func(m lending.Modules) (any, error) {
		return m.Governance.CurrentConfiguration()
	})
}

func (s *Server) getHistory(w http.ResponseWriter, r *http.Request) {
	s.view(w, func(m lending.Modules) (any, error) {
		history, err := m.Governance.History()
		if err != nil {
			return nil, err
		}
		if history == nil {
			history = []*governance.ProtocolConfiguration{}
		}
		return map[string]any{"history": history}, nil
	})
}

func (s *Server) getBackup(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	s.view(w, func(m lending.Modules) (any, error) {
		return m.Governance.Backup(id)
	})
}

func (s *Server) listProposals(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("status")
	if raw == "" {
		raw = "pending"
	}
	status, ok := governance.ParseProposalStatus(strings.ToLower(strings.TrimSpace(raw)))
	if !ok {
		writeError(w, coreerrors.Wrap(coreerrors.ErrInvalidInput, "unknown proposal status %q", raw))
		return
	}
	s.view(w, func(m lending.Modules) (any, error) {
		proposals, err := m.Governance.ProposalsByStatus(status)
		if err != nil {
			return nil, err
		}
		if proposals == nil {
			proposals = []*governance.ConfigurationProposal{}
		}
		return map[string]any{"proposals": proposals}, nil
	})
}

func (s *Server) getProposal(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	s.view(w, func(m lending.Modules) (any, error) {
		return m.Governance.Proposal(id)
	})
}

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"events": s.protocol.Events()})
}

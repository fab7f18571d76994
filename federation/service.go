package federation

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/josuabad/TuGranjita/errors"
	"github.com/josuabad/TuGranjita/health"
	"github.com/josuabad/TuGranjita/query"
	"github.com/josuabad/TuGranjita/types"
	"github.com/josuabad/TuGranjita/web"
)

// sensorSummaryDefault and sensorSummaryCeiling bound the per-sensor
// summary's q parameter.
const (
	sensorSummaryDefault = 10
	sensorSummaryCeiling = 100
)

// Service exposes the resolver over HTTP.
type Service struct {
	resolver *Resolver
	logger   *slog.Logger
	monitor  *health.Monitor
}

// NewService wraps a resolver in its HTTP surface.
func NewService(resolver *Resolver, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		resolver: resolver,
		logger:   logger.With("service", serviceName),
		monitor:  health.NewMonitor(),
	}
	s.monitor.UpdateHealthy("upstreams", "no failures observed")
	return s
}

// Router returns the service's route table.
func (s *Service) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/clients", s.handleCustomers).Methods(http.MethodGet)
	r.HandleFunc("/suppliers", s.handleSuppliers).Methods(http.MethodGet)
	r.HandleFunc("/clients/details/{name}", s.handleCustomerDetail).Methods(http.MethodGet)
	r.HandleFunc("/suppliers/details/{name}", s.handleSupplierDetail).Methods(http.MethodGet)
	r.HandleFunc("/summary", s.handleSummary).Methods(http.MethodGet)
	r.HandleFunc("/summary/{sensorId}", s.handleSensorSummary).Methods(http.MethodGet)
	r.HandleFunc("/health", s.monitor.Handler(serviceName)).Methods(http.MethodGet)
	return r
}

func (s *Service) handleCustomers(w http.ResponseWriter, r *http.Request) {
	body, err := s.resolver.ListByKind(r.Context(), types.PartyCustomer)
	s.respond(w, body, err)
}

func (s *Service) handleSuppliers(w http.ResponseWriter, r *http.Request) {
	body, err := s.resolver.ListByKind(r.Context(), types.PartySupplier)
	s.respond(w, body, err)
}

func (s *Service) handleCustomerDetail(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	body, err := s.resolver.DetailByName(r.Context(), types.PartyCustomer, name)
	s.respond(w, body, err)
}

func (s *Service) handleSupplierDetail(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	body, err := s.resolver.DetailByName(r.Context(), types.PartySupplier, name)
	s.respond(w, body, err)
}

func (s *Service) handleSummary(w http.ResponseWriter, r *http.Request) {
	body, err := s.resolver.Summary(r.Context())
	s.respond(w, body, err)
}

func (s *Service) handleSensorSummary(w http.ResponseWriter, r *http.Request) {
	count, err := query.PositiveInt(serviceName, "q", r.URL.Query(),
		sensorSummaryDefault, sensorSummaryCeiling)
	if err != nil {
		s.fail(w, err)
		return
	}
	body, err := s.resolver.SensorSummary(r.Context(), mux.Vars(r)["sensorId"], count)
	s.respond(w, body, err)
}

func (s *Service) respond(w http.ResponseWriter, body json.RawMessage, err error) {
	if err != nil {
		s.fail(w, err)
		return
	}
	s.monitor.UpdateHealthy("upstreams", "resolution ok")
	web.WriteJSON(w, http.StatusOK, body)
}

func (s *Service) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.IsBadRequest(err), errors.IsNotFound(err):
		s.logger.Debug("request rejected", "error", err)
	case errors.IsUpstream(err):
		s.monitor.UpdateUnhealthy("upstreams", errors.Detail(err))
		s.logger.Error("upstream resolution failed", "error", err)
	default:
		s.logger.Error("request failed", "error", err)
	}
	web.WriteError(w, web.DetailKey, err)
}

// Package crm implements the read-only party catalog: customer and
// supplier listings with search, location filtering, page-mode pagination,
// and the schema-conformance gate on every outgoing page.
package crm

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/josuabad/TuGranjita/errors"
	"github.com/josuabad/TuGranjita/health"
	"github.com/josuabad/TuGranjita/metric"
	"github.com/josuabad/TuGranjita/query"
	"github.com/josuabad/TuGranjita/schema"
	"github.com/josuabad/TuGranjita/store"
	"github.com/josuabad/TuGranjita/types"
	"github.com/josuabad/TuGranjita/web"
)

const serviceName = "crm"

// Service exposes the party catalog over HTTP
type Service struct {
	parties   store.Source[types.Party]
	validator *schema.Validator
	logger    *slog.Logger
	metrics   *metric.Metrics
	monitor   *health.Monitor
}

// NewService creates the catalog service. The validator must have the
// party schema compiled; metrics may be nil in tests.
func NewService(parties store.Source[types.Party], validator *schema.Validator,
	logger *slog.Logger, metrics *metric.Metrics) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		parties:   parties,
		validator: validator,
		logger:    logger.With("service", serviceName),
		metrics:   metrics,
		monitor:   health.NewMonitor(),
	}
}

// Router builds the service router
func (s *Service) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/parties", s.handleListParties).Methods(http.MethodGet)
	r.HandleFunc("/parties/{id}", s.handleGetParty).Methods(http.MethodGet)
	r.HandleFunc("/health", s.monitor.Handler(serviceName)).Methods(http.MethodGet)
	return r
}

// listResponse is the page-mode envelope for party listings
type listResponse struct {
	Total    int               `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"pageSize"`
	Data     []json.RawMessage `json:"data"`
}

func (s *Service) handleListParties(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()

	// All parameter validation happens before any data access
	pageParams, err := query.ParsePageParams(serviceName, values)
	if err != nil {
		s.fail(w, err)
		return
	}
	q, err := query.OptionalString(serviceName, values, "q")
	if err != nil {
		s.fail(w, err)
		return
	}
	locationID, err := query.OptionalString(serviceName, values, "locationId")
	if err != nil {
		s.fail(w, err)
		return
	}

	records, err := s.reload(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}

	// Fixed filter order: free text, then location
	filtered, err := query.Apply(records,
		matchesFreeText(q),
		matchesLocation(locationID),
	)
	if err != nil {
		s.fail(w, err)
		return
	}

	page, total := query.Paginate(filtered, pageParams)

	if err := schema.CheckPage(s.validator, serviceName, schema.KindParty, page, partyID); err != nil {
		s.fail(w, err)
		return
	}

	web.WriteJSON(w, http.StatusOK, listResponse{
		Total:    total,
		Page:     pageParams.Page,
		PageSize: pageParams.PageSize,
		Data:     store.Raws(page),
	})
}

func (s *Service) handleGetParty(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	records, err := s.reload(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}

	for _, record := range records {
		if record.Value.ID != id {
			continue
		}
		single := []store.Record[types.Party]{record}
		if err := schema.CheckPage(s.validator, serviceName, schema.KindParty, single, partyID); err != nil {
			s.fail(w, err)
			return
		}
		web.WriteJSON(w, http.StatusOK, record.Raw)
		return
	}

	s.fail(w, errors.NotFoundf(serviceName, "getParty", "party %q not found", id))
}

// ValidateAll sweeps the whole collection against the party schema. It is
// a startup sanity check: the result is reported, never enforced.
func (s *Service) ValidateAll(ctx context.Context) (int, error) {
	records, err := s.reload(ctx)
	if err != nil {
		return 0, err
	}
	if err := schema.CheckPage(s.validator, serviceName, schema.KindParty, records, partyID); err != nil {
		return len(records), err
	}
	return len(records), nil
}

// reload fetches a fresh snapshot and records store health and metrics
func (s *Service) reload(ctx context.Context) ([]store.Record[types.Party], error) {
	records, err := s.parties.Reload(ctx)
	status := "ok"
	if err != nil {
		status = "error"
		s.monitor.UpdateUnhealthy("party-store", errors.Detail(err))
	} else {
		s.monitor.UpdateHealthy("party-store", "reload ok")
	}
	if s.metrics != nil {
		s.metrics.StoreReloads.WithLabelValues(serviceName, "parties", status).Inc()
	}
	return records, err
}

// fail logs an error at severity matching its class and writes the body
func (s *Service) fail(w http.ResponseWriter, err error) {
	if errors.IsBadRequest(err) || errors.IsNotFound(err) {
		s.logger.Debug("request rejected", "error", err)
	} else {
		s.logger.Error("request failed", "error", err)
	}
	web.WriteError(w, web.DetailKey, err)
}

func partyID(p types.Party) string {
	return p.ID
}

// matchesFreeText matches q case-insensitively as a substring of the name
// or the email. An absent parameter is a no-op stage.
func matchesFreeText(q string) query.Predicate[store.Record[types.Party]] {
	if q == "" {
		return nil
	}
	needle := strings.ToLower(q)
	return func(r store.Record[types.Party]) (bool, error) {
		return strings.Contains(strings.ToLower(r.Value.Name), needle) ||
			strings.Contains(strings.ToLower(r.Value.Email), needle), nil
	}
}

// matchesLocation matches the address field exactly
func matchesLocation(locationID string) query.Predicate[store.Record[types.Party]] {
	if locationID == "" {
		return nil
	}
	return func(r store.Record[types.Party]) (bool, error) {
		return r.Value.Address == locationID, nil
	}
}

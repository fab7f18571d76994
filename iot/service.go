// Package iot serves the sensor catalog and its time-series readings.
// Both collections come from snapshot stores reloaded per request; every
// outgoing record passes the schema gate first.
package iot

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

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

const serviceName = "iot"

// Service answers sensor and reading queries. Readings carry their
// timestamps as opaque strings until the temporal filter needs them, so a
// record with a malformed timestamp only fails queries that filter on time.
type Service struct {
	sensors   store.Source[types.Sensor]
	readings  store.Source[types.Reading]
	validator *schema.Validator
	logger    *slog.Logger
	metrics   *metric.Metrics
	monitor   *health.Monitor
}

// NewService wires the sensor and reading stores to the HTTP surface.
// metrics may be nil in tests.
func NewService(sensors store.Source[types.Sensor], readings store.Source[types.Reading],
	validator *schema.Validator, logger *slog.Logger, metrics *metric.Metrics) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		sensors:   sensors,
		readings:  readings,
		validator: validator,
		logger:    logger.With("service", serviceName),
		metrics:   metrics,
		monitor:   health.NewMonitor(),
	}
}

// Router returns the service's route table.
func (s *Service) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/sensors", s.handleListSensors).Methods(http.MethodGet)
	r.HandleFunc("/readings", s.handleListReadings).Methods(http.MethodGet)
	r.HandleFunc("/health", s.monitor.Handler(serviceName)).Methods(http.MethodGet)
	return r
}

type sensorParams struct {
	Type       *string `json:"type"`
	LocationID *string `json:"locationId"`
}

type sensorsResponse struct {
	Status  string            `json:"status"`
	Message string            `json:"message"`
	Params  sensorParams      `json:"params"`
	Total   int               `json:"total"`
	Sensors []json.RawMessage `json:"sensors"`
}

func (s *Service) handleListSensors(w http.ResponseWriter, r *http.Request) {
	// The sensor listing has no rejection contract: absent and empty
	// filters both mean "do not filter".
	values := r.URL.Query()
	sensorType := values.Get("type")
	locationID := values.Get("locationId")

	records, err := s.reloadSensors(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}

	filtered, err := query.Apply(records,
		matchesSensorType(sensorType),
		matchesSensorLocation(locationID),
	)
	if err != nil {
		s.fail(w, err)
		return
	}

	if err := schema.CheckPage(s.validator, serviceName, schema.KindSensor, filtered,
		func(sensor types.Sensor) string { return sensor.ID }); err != nil {
		s.fail(w, err)
		return
	}

	web.WriteJSON(w, http.StatusOK, sensorsResponse{
		Status:  "success",
		Message: "sensor list retrieved",
		Params:  sensorParams{Type: optional(sensorType), LocationID: optional(locationID)},
		Total:   len(filtered),
		Sensors: store.Raws(filtered),
	})
}

type readingParams struct {
	SensorID   *string `json:"sensorId"`
	LocationID *string `json:"locationId"`
	From       *string `json:"from"`
	To         *string `json:"to"`
	Limit      int     `json:"limit"`
}

type readingsResponse struct {
	Status   string            `json:"status"`
	Message  string            `json:"message"`
	Params   readingParams     `json:"params"`
	Total    int               `json:"total"`
	Readings []json.RawMessage `json:"readings"`
}

func (s *Service) handleListReadings(w http.ResponseWriter, r *http.Request) {
	// Parameters are validated in full before any store access, so a
	// request rejected as 400 never observes store state.
	values := r.URL.Query()

	limit, err := query.ParseLimit(serviceName, values)
	if err != nil {
		s.fail(w, err)
		return
	}
	timeRange, err := query.ParseTimeRange(serviceName, values)
	if err != nil {
		s.fail(w, err)
		return
	}
	sensorID := values.Get("sensorId")
	locationID := values.Get("locationId")

	records, err := s.reloadReadings(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}

	locations, err := s.sensorLocations(r.Context(), locationID)
	if err != nil {
		s.fail(w, err)
		return
	}

	// Filter order is part of the contract: sensor, then location, then
	// the temporal bounds. Each stage sees only the previous stage's
	// survivors, so a reading with a broken timestamp outside the sensor
	// filter never trips the temporal stage.
	filtered, err := query.Apply(records,
		matchesReadingSensor(sensorID),
		matchesReadingLocation(locationID, locations),
		afterInstant(timeRange.From),
		beforeInstant(timeRange.To),
	)
	if err != nil {
		s.fail(w, err)
		return
	}

	limited, total := query.Limit(filtered, limit)

	if err := schema.CheckPage(s.validator, serviceName, schema.KindReading, limited,
		func(reading types.Reading) string { return reading.ID }); err != nil {
		s.fail(w, err)
		return
	}

	web.WriteJSON(w, http.StatusOK, readingsResponse{
		Status:  "success",
		Message: "reading list retrieved",
		Params: readingParams{
			SensorID:   optional(sensorID),
			LocationID: optional(locationID),
			From:       optional(values.Get("from")),
			To:         optional(values.Get("to")),
			Limit:      limit,
		},
		Total:    total,
		Readings: store.Raws(limited),
	})
}

// ValidateAll sweeps both backing collections through the schema gate and
// returns the number of records checked. Used by the startup sweep.
func (s *Service) ValidateAll(ctx context.Context) (int, error) {
	sensors, err := s.reloadSensors(ctx)
	if err != nil {
		return 0, err
	}
	if err := schema.CheckPage(s.validator, serviceName, schema.KindSensor, sensors,
		func(sensor types.Sensor) string { return sensor.ID }); err != nil {
		return 0, err
	}

	readings, err := s.reloadReadings(ctx)
	if err != nil {
		return len(sensors), err
	}
	if err := schema.CheckPage(s.validator, serviceName, schema.KindReading, readings,
		func(reading types.Reading) string { return reading.ID }); err != nil {
		return len(sensors), err
	}
	return len(sensors) + len(readings), nil
}

func (s *Service) reloadSensors(ctx context.Context) ([]store.Record[types.Sensor], error) {
	records, err := s.sensors.Reload(ctx)
	s.recordReload("sensor-store", "sensors", err)
	return records, err
}

func (s *Service) reloadReadings(ctx context.Context) ([]store.Record[types.Reading], error) {
	records, err := s.readings.Reload(ctx)
	s.recordReload("reading-store", "readings", err)
	return records, err
}

func (s *Service) recordReload(component, collection string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
		s.monitor.UpdateUnhealthy(component, errors.Detail(err))
	} else {
		s.monitor.UpdateHealthy(component, "reload ok")
	}
	if s.metrics != nil {
		s.metrics.StoreReloads.WithLabelValues(serviceName, collection, status).Inc()
	}
}

// sensorLocations builds the sensor-to-location index the reading location
// filter joins through. Skipped entirely when no location filter is set.
func (s *Service) sensorLocations(ctx context.Context, locationID string) (map[string]string, error) {
	if locationID == "" {
		return nil, nil
	}
	sensors, err := s.reloadSensors(ctx)
	if err != nil {
		return nil, err
	}
	locations := make(map[string]string, len(sensors))
	for _, record := range sensors {
		locations[record.Value.ID] = record.Value.Location
	}
	return locations, nil
}

func (s *Service) fail(w http.ResponseWriter, err error) {
	if errors.IsBadRequest(err) || errors.IsNotFound(err) {
		s.logger.Debug("request rejected", "error", err)
	} else {
		s.logger.Error("request failed", "error", err)
	}
	web.WriteError(w, web.ErrorsKey, err)
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func matchesSensorType(sensorType string) query.Predicate[store.Record[types.Sensor]] {
	if sensorType == "" {
		return nil
	}
	want := strings.ToLower(sensorType)
	return func(record store.Record[types.Sensor]) (bool, error) {
		return strings.ToLower(record.Value.Type) == want, nil
	}
}

func matchesSensorLocation(locationID string) query.Predicate[store.Record[types.Sensor]] {
	if locationID == "" {
		return nil
	}
	return func(record store.Record[types.Sensor]) (bool, error) {
		return record.Value.Location == locationID, nil
	}
}

func matchesReadingSensor(sensorID string) query.Predicate[store.Record[types.Reading]] {
	if sensorID == "" {
		return nil
	}
	return func(record store.Record[types.Reading]) (bool, error) {
		return record.Value.SensorID == sensorID, nil
	}
}

func matchesReadingLocation(locationID string, locations map[string]string) query.Predicate[store.Record[types.Reading]] {
	if locationID == "" {
		return nil
	}
	return func(record store.Record[types.Reading]) (bool, error) {
		return locations[record.Value.SensorID] == locationID, nil
	}
}

// readingInstant parses a stored reading timestamp. A failure here is data
// corruption, not a caller mistake: the record got past ingestion with a
// timestamp the temporal filter cannot order.
func readingInstant(record store.Record[types.Reading]) (time.Time, error) {
	ts, err := time.Parse(time.RFC3339, record.Value.Timestamp)
	if err != nil {
		return time.Time{}, errors.Integrityf(serviceName, "readingInstant",
			"reading %q carries unparseable timestamp %q", record.Value.ID, record.Value.Timestamp)
	}
	return ts, nil
}

func afterInstant(from *time.Time) query.Predicate[store.Record[types.Reading]] {
	if from == nil {
		return nil
	}
	return func(record store.Record[types.Reading]) (bool, error) {
		ts, err := readingInstant(record)
		if err != nil {
			return false, err
		}
		return !ts.Before(*from), nil
	}
}

func beforeInstant(to *time.Time) query.Predicate[store.Record[types.Reading]] {
	if to == nil {
		return nil
	}
	return func(record store.Record[types.Reading]) (bool, error) {
		ts, err := readingInstant(record)
		if err != nil {
			return false, err
		}
		return !ts.After(*to), nil
	}
}

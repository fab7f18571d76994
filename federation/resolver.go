// Package federation joins the CRM and IoT catalogs behind one unified
// surface. The resolver owns all cross-source reasoning; the two clients
// only fetch. Every response body is validated against the unified schema
// before it leaves the process.
package federation

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/josuabad/TuGranjita/errors"
	"github.com/josuabad/TuGranjita/query"
	"github.com/josuabad/TuGranjita/schema"
	"github.com/josuabad/TuGranjita/types"
)

const serviceName = "federation"

// summaryFanout bounds how many per-sensor reading fetches run at once
// during the cross-source summary.
const summaryFanout = 8

// summaryReadings is how many recent readings the cross-source summary
// attaches per sensor.
const summaryReadings = 5

// crmPageSize is the page size used when walking the full party
// collection upstream.
const crmPageSize = 100

// Envelope is the unified response shape: a type tag naming the resolution
// that produced the data, and the data itself.
type Envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Envelope type tags
const (
	TypeCustomers           = "clientes"
	TypeSuppliers           = "proveedores"
	TypeCustomerDetail      = "cliente_detalle"
	TypeSupplierDetail      = "proveedor_detalle"
	TypeSupplierWithSensors = "proveedor_detalle_con_sensores"
	TypeSummary             = "resumen"
	TypeSensorSummary       = "resumen_sensor"
)

type crmListPage struct {
	Total    int               `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"pageSize"`
	Data     []json.RawMessage `json:"data"`
}

type iotSensorList struct {
	Total   int               `json:"total"`
	Sensors []json.RawMessage `json:"sensors"`
}

type iotReadingList struct {
	Total    int               `json:"total"`
	Readings []json.RawMessage `json:"readings"`
}

// Resolver answers cross-source queries against the two upstream catalogs.
type Resolver struct {
	crm       *Client
	iot       *Client
	validator *schema.Validator
	logger    *slog.Logger
}

// NewResolver wires a resolver to its two upstream clients.
func NewResolver(crm, iot *Client, validator *schema.Validator, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		crm:       crm,
		iot:       iot,
		validator: validator,
		logger:    logger.With("service", serviceName),
	}
}

// party pairs a decoded record with its raw upstream bytes so detail
// responses can embed exactly what the source served.
type party struct {
	value types.Party
	raw   json.RawMessage
}

// allParties walks the CRM party collection page by page until the
// reported total is collected.
func (r *Resolver) allParties(ctx context.Context) ([]party, error) {
	var parties []party
	for page := 1; ; page++ {
		q := url.Values{}
		q.Set("page", strconv.Itoa(page))
		q.Set("pageSize", strconv.Itoa(crmPageSize))

		var result crmListPage
		if err := r.crm.GetJSON(ctx, "/parties", q, &result); err != nil {
			return nil, err
		}
		for _, raw := range result.Data {
			var p types.Party
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, errors.WrapUpstream(err, serviceName, "allParties",
					"crm service returned an unreadable party record")
			}
			parties = append(parties, party{value: p, raw: raw})
		}
		if len(result.Data) == 0 || len(parties) >= result.Total {
			return parties, nil
		}
	}
}

// ListByKind resolves the reduced party listing for one kind. Only name
// and email leave the resolver.
func (r *Resolver) ListByKind(ctx context.Context, kind types.PartyKind) (json.RawMessage, error) {
	parties, err := r.allParties(ctx)
	if err != nil {
		return nil, err
	}

	refs := []types.PartyRef{}
	for _, p := range parties {
		if p.value.Kind == kind {
			refs = append(refs, p.value.Ref())
		}
	}

	envType := TypeCustomers
	if kind == types.PartySupplier {
		envType = TypeSuppliers
	}
	return r.seal(Envelope{Type: envType, Data: refs})
}

// DetailByName resolves the full record of the party whose name matches
// case-insensitively and exactly. Supplier matches additionally carry the
// sensors installed at the supplier's location.
func (r *Resolver) DetailByName(ctx context.Context, kind types.PartyKind, name string) (json.RawMessage, error) {
	parties, err := r.allParties(ctx)
	if err != nil {
		return nil, err
	}

	var match *party
	for i := range parties {
		if parties[i].value.Kind == kind && strings.EqualFold(parties[i].value.Name, name) {
			match = &parties[i]
			break
		}
	}
	if match == nil {
		return nil, errors.NotFoundf(serviceName, "DetailByName",
			"no %s named %q", kind, name)
	}

	if kind != types.PartySupplier {
		return r.seal(Envelope{Type: TypeCustomerDetail, Data: match.raw})
	}

	sensors, err := r.sensorsAt(ctx, match.value.Address)
	if err != nil {
		return nil, err
	}
	if len(sensors) == 0 {
		return r.seal(Envelope{Type: TypeSupplierDetail, Data: match.raw})
	}

	// Re-open the raw record to attach the sensor join without losing
	// any field the source served.
	detail := map[string]any{}
	if err := json.Unmarshal(match.raw, &detail); err != nil {
		return nil, errors.WrapUpstream(err, serviceName, "DetailByName",
			"crm service returned an unreadable party record")
	}
	detail["sensoresAsociados"] = sensors
	return r.seal(Envelope{Type: TypeSupplierWithSensors, Data: detail})
}

// sensorsAt fetches the sensors installed at one location. An empty
// location joins with nothing.
func (r *Resolver) sensorsAt(ctx context.Context, location string) ([]json.RawMessage, error) {
	if location == "" {
		return nil, nil
	}
	q := url.Values{}
	q.Set("locationId", location)

	var result iotSensorList
	if err := r.iot.GetJSON(ctx, "/sensors", q, &result); err != nil {
		return nil, err
	}
	return result.Sensors, nil
}

// sensorSummary is one entry of the cross-source summary.
type sensorSummary struct {
	Sensor   json.RawMessage   `json:"sensor"`
	Readings []json.RawMessage `json:"ultimas_lecturas"`
}

// Summary resolves the full cross-source summary: every sensor with its
// most recent readings. A failed per-sensor reading fetch degrades that
// entry to an empty reading list instead of failing the whole response;
// only failure to list the sensors themselves is fatal.
func (r *Resolver) Summary(ctx context.Context) (json.RawMessage, error) {
	var sensorList iotSensorList
	if err := r.iot.GetJSON(ctx, "/sensors", nil, &sensorList); err != nil {
		return nil, err
	}

	summaries := make([]sensorSummary, len(sensorList.Sensors))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(summaryFanout)
	for i, raw := range sensorList.Sensors {
		i, raw := i, raw
		g.Go(func() error {
			var sensor types.Sensor
			if err := json.Unmarshal(raw, &sensor); err != nil {
				return errors.WrapUpstream(err, serviceName, "Summary",
					"iot service returned an unreadable sensor record")
			}

			readings, err := r.recentReadings(gctx, sensor.ID, summaryReadings)
			if err != nil {
				r.logger.Warn("summary entry degraded to empty readings",
					"sensor", sensor.ID, "error", err)
				readings = []json.RawMessage{}
			}
			summaries[i] = sensorSummary{Sensor: raw, Readings: readings}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return r.seal(Envelope{Type: TypeSummary, Data: summaries})
}

type sensorSummaryDetail struct {
	Sensor        json.RawMessage   `json:"sensor"`
	Readings      []json.RawMessage `json:"ultimas_lecturas"`
	TotalReadings int               `json:"total_lecturas"`
}

// SensorSummary resolves one sensor with its most recent count readings.
// The count arrives pre-validated by the handler.
func (r *Resolver) SensorSummary(ctx context.Context, sensorID string, count int) (json.RawMessage, error) {
	var sensorList iotSensorList
	if err := r.iot.GetJSON(ctx, "/sensors", nil, &sensorList); err != nil {
		return nil, err
	}

	var sensor json.RawMessage
	for _, raw := range sensorList.Sensors {
		var s types.Sensor
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, errors.WrapUpstream(err, serviceName, "SensorSummary",
				"iot service returned an unreadable sensor record")
		}
		if s.ID == sensorID {
			sensor = raw
			break
		}
	}
	if sensor == nil {
		return nil, errors.NotFoundf(serviceName, "SensorSummary",
			"no sensor with id %q", sensorID)
	}

	readings, err := r.recentReadings(ctx, sensorID, count)
	if err != nil {
		return nil, err
	}

	return r.seal(Envelope{Type: TypeSensorSummary, Data: sensorSummaryDetail{
		Sensor:        sensor,
		Readings:      readings,
		TotalReadings: len(readings),
	}})
}

// recentReadings fetches a sensor's readings and returns the most recent
// count of them, newest first.
func (r *Resolver) recentReadings(ctx context.Context, sensorID string, count int) ([]json.RawMessage, error) {
	q := url.Values{}
	q.Set("sensorId", sensorID)
	q.Set("limit", strconv.Itoa(query.MaxLimit))

	var result iotReadingList
	if err := r.iot.GetJSON(ctx, "/readings", q, &result); err != nil {
		return nil, err
	}

	type stamped struct {
		raw json.RawMessage
		at  time.Time
	}
	stampedReadings := make([]stamped, 0, len(result.Readings))
	for _, raw := range result.Readings {
		var reading types.Reading
		if err := json.Unmarshal(raw, &reading); err != nil {
			return nil, errors.WrapUpstream(err, serviceName, "recentReadings",
				"iot service returned an unreadable reading record")
		}
		at, err := time.Parse(time.RFC3339, reading.Timestamp)
		if err != nil {
			return nil, errors.WrapUpstream(err, serviceName, "recentReadings",
				"iot service returned a reading with an unreadable timestamp")
		}
		stampedReadings = append(stampedReadings, stamped{raw: raw, at: at})
	}

	sort.SliceStable(stampedReadings, func(i, j int) bool {
		return stampedReadings[i].at.After(stampedReadings[j].at)
	})
	if count < len(stampedReadings) {
		stampedReadings = stampedReadings[:count]
	}

	recent := make([]json.RawMessage, len(stampedReadings))
	for i, s := range stampedReadings {
		recent[i] = s.raw
	}
	return recent, nil
}

// seal marshals an envelope and validates it against the unified schema.
// Nothing leaves the resolver unvalidated.
func (r *Resolver) seal(env Envelope) (json.RawMessage, error) {
	body, err := json.Marshal(env)
	if err != nil {
		return nil, errors.WrapIntegrity(err, serviceName, "seal",
			"assembled response cannot be serialized")
	}
	if err := schema.CheckEnvelope(r.validator, serviceName, body); err != nil {
		return nil, err
	}
	return body, nil
}

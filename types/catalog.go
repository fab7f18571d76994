// Package types defines the catalog record types shared by the CRM and IoT
// services and the federation resolver. Wire names follow the backing data
// files; a record's JSON shape is the contract its schema validates.
package types

// PartyKind disambiguates the two views of the party collection
type PartyKind string

// Possible party kinds
const (
	PartyCustomer PartyKind = "cliente"
	PartySupplier PartyKind = "proveedor"
)

// Party is a customer or supplier record in the CRM catalog
type Party struct {
	ID      string    `json:"id"`
	Name    string    `json:"nombre"`
	TaxID   string    `json:"nif"`
	Address string    `json:"direccion,omitempty"`
	Email   string    `json:"correo_electronico,omitempty"`
	Phone   string    `json:"telefono,omitempty"`
	Kind    PartyKind `json:"tipo"`
}

// PartyRef is the data-minimized projection of a Party used by the
// federation list endpoints. Only name and email leave the resolver.
type PartyRef struct {
	Name  string `json:"nombre"`
	Email string `json:"correo_electronico"`
}

// Ref projects a party down to its reduced federation shape
func (p Party) Ref() PartyRef {
	return PartyRef{Name: p.Name, Email: p.Email}
}

// SensorStatus is the operational state of a sensor
type SensorStatus string

// Possible sensor statuses
const (
	SensorActive      SensorStatus = "activo"
	SensorMaintenance SensorStatus = "mantenimiento"
	SensorError       SensorStatus = "error"
	SensorInactive    SensorStatus = "inactivo"
)

// Sensor is an IoT sensor record
type Sensor struct {
	ID               string       `json:"id"`
	Name             string       `json:"nombre"`
	Type             string       `json:"tipo"`
	Location         string       `json:"ubicacion"`
	Model            string       `json:"modelo,omitempty"`
	Manufacturer     string       `json:"fabricante,omitempty"`
	MeasurementUnit  string       `json:"unidad_medida,omitempty"`
	MeasurementRange string       `json:"rango_medida,omitempty"`
	Status           SensorStatus `json:"estado"`
}

// Reading is a single sensor measurement. SensorID is a foreign key into
// the sensor collection by convention only; dangling references are legal
// and simply never match a location join.
//
// Timestamp stays a string until the temporal filter stage needs it: a
// value that fails to parse there is a data-integrity failure for the
// whole response, not something to drop silently.
type Reading struct {
	ID           string   `json:"id_lectura"`
	SensorID     string   `json:"id_sensor"`
	Value        float64  `json:"valor"`
	Unit         string   `json:"unidad"`
	Timestamp    string   `json:"timestamp"`
	BatteryLevel *float64 `json:"bateria,omitempty"`
}

package types

// ------------------------
// Common service state (retained)
// ------------------------

type ServiceState struct {
	Level  string `json:"level"`  // "idle", "ready", "degraded", "stopped"
	Status string `json:"status"` // freeform short code
	TS     int64  `json:"ts_ms"`
}

// Link is the link state reported for the cloud store.
type Link string

const (
	LinkUp       Link = "up"
	LinkDown     Link = "down"
	LinkDegraded Link = "degraded"
)

// ------------------------
// Readings
// ------------------------

// FuelLevelValue is the latest distance sample, in centimetres from the
// tank-top sensor down to the fuel surface (greater distance = less fuel).
type FuelLevelValue struct {
	DistanceCm float64 `json:"distance_cm"`
	TS         int64   `json:"ts_ms"`
}

type EnvValue struct {
	TempC    float64 `json:"temp_c"`
	Humidity float64 `json:"humidity"` // %RH
	TS       int64   `json:"ts_ms"`
}

// GeoFix is one position sample from the location source.
type GeoFix struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	TS        int64   `json:"ts_ms"`
}

// ------------------------
// Vehicle / alert state mirrored in the remote store
// ------------------------

// VehicleStatus is externally owned; this firmware only reads it.
type VehicleStatus struct {
	Stopped bool `json:"stopped"`
}

// FuelAlert is the remote alert record for the fuel channel.
type FuelAlert struct {
	Message    string  `json:"message"`
	Difference float64 `json:"difference"`
	Resolved   bool    `json:"resolved"`
}

// ------------------------
// Service configuration (published retained on config/<service>)
// ------------------------

type MonitorConfig struct {
	PeriodMs        uint32  `json:"period_ms"`         // cycle period, >0
	FuelThresholdCm float64 `json:"fuel_threshold_cm"` // delta to classify refuel/theft
	TempUpperC      float64 `json:"temp_upper_c"`
	TempLowerC      float64 `json:"temp_lower_c"`
}

type HeartbeatConfig struct {
	IntervalS float64 `json:"interval"`
}

type CloudConfig struct {
	Broker    string `json:"broker"` // e.g. "tcp://broker:1883"
	ClientID  string `json:"client_id"`
	Username  string `json:"username,omitempty"`
	Password  string `json:"password,omitempty"`
	TimeoutMs uint32 `json:"timeout_ms,omitempty"` // per-op publish/subscribe wait
}

type GeoConfig struct {
	MinIntervalMs uint32 `json:"min_interval_ms,omitempty"` // 0 = publish every fix
}

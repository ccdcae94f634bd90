// Package store defines the small key/value capability the firmware uses to
// talk to the remote record of its state. Decision logic depends only on
// this interface so it can run against any backend (or a test fake).
package store

import "context"

// KeyValue is a minimal typed view onto a remote path/value store.
// Paths are slash-separated, e.g. "alerts/is_resolved".
type KeyValue interface {
	GetBool(ctx context.Context, path string) (bool, error)
	SetBool(ctx context.Context, path string, v bool) error
	GetFloat(ctx context.Context, path string) (float64, error)
	SetFloat(ctx context.Context, path string, v float64) error
	SetString(ctx context.Context, path string, v string) error
}

// Remote schema paths.
const (
	PathCarStopped     = "car_status/stopped"
	PathAlertResolved  = "alerts/is_resolved"
	PathFuelTheft      = "alerts/fuel_theft"
	PathFuelDifference = "alerts/fuel_level_difference"
	PathFuelLevel      = "sensor/fuel_level"
	PathTemperature    = "sensor/temperature"
	PathHumidity       = "sensor/humidity"
	PathTempAlert      = "alerts/temperature_alert"
	PathLatitude       = "gps/latitude"
	PathLongitude      = "gps/longitude"
)

// ReadPaths lists every path this firmware reads; backends that cache
// remote state subscribe to these up front.
func ReadPaths() []string {
	return []string{PathCarStopped, PathAlertResolved}
}

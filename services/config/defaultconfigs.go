package config

// -----------------------------------------------------------------------------
// Embedded configuration
//
// Populate embeddedConfigs at build time (e.g. via code generation) or
// manually during development.
// Key: device ID (same value placed in ctx under CtxDeviceKey)
// Val: raw JSON bytes for that device
// -----------------------------------------------------------------------------

const cfgFuelmon = `{
  "monitor": {
      "period_ms": 5000,
      "fuel_threshold_cm": 2,
      "temp_upper_c": 40,
      "temp_lower_c": 0
  },
  "cloud": {
      "broker": "tcp://localhost:1883",
      "client_id": "fuelmon-01",
      "timeout_ms": 2000
  },
  "geo": {
      "min_interval_ms": 1000
  },
  "heartbeat": {
      "interval": 2
  }
}`

var embeddedConfigs = map[string][]byte{
	"fuelmon": []byte(cfgFuelmon),
}

// Package hcsr04 provides a driver for the HC-SR04 ultrasonic ranging
// sensor. The sensor is driven over a GPIO pin pair: a 10µs pulse on the
// trigger pin starts a measurement, then the echo pin goes high for a time
// proportional to the distance of the nearest surface.
//
// The echo wait is bounded. A transducer that never answers yields
// errcode.NoEcho rather than blocking the caller or returning a degenerate
// zero distance; readings outside the rated window yield ErrOutOfRange.
package hcsr04

import (
	"time"

	"fuelmon-go/errcode"
)

// Errors returned by the driver.
var (
	ErrNoEcho     = errcode.NoEcho
	ErrOutOfRange = errcode.OutOfRange
)

// OutputPin drives the trigger line.
type OutputPin interface {
	Set(level bool)
}

// InputPin reads the echo line.
type InputPin interface {
	Get() bool
}

// Rated measuring window of the HC-SR04.
const (
	MinRangeCm = 2.0
	MaxRangeCm = 400.0

	// Round-trip microseconds per centimetre at ~20°C (datasheet constant).
	usPerCm = 58.0

	triggerPulse = 10 * time.Microsecond
)

// Config controls non-hardware behaviour. All fields are optional.
type Config struct {
	// EchoTimeout bounds each of the two echo waits (rise and fall).
	// The sensor's own timeout is ~38ms; default 60 ms leaves margin.
	EchoTimeout time.Duration
}

// Device wraps the trigger/echo pin pair.
type Device struct {
	trig OutputPin
	echo InputPin
	cfg  Config

	// Injected for tests; default to the real clock.
	now   func() time.Time
	sleep func(time.Duration)
}

// New creates a new HC-SR04 device. Pins must already be configured
// (trigger as output low, echo as input).
func New(trig OutputPin, echo InputPin) *Device {
	return &Device{
		trig:  trig,
		echo:  echo,
		now:   time.Now,
		sleep: time.Sleep,
	}
}

// Configure applies optional config.
func (d *Device) Configure(cfgs ...Config) {
	if len(cfgs) > 0 {
		d.cfg = cfgs[0]
	}
	if d.cfg.EchoTimeout <= 0 {
		d.cfg.EchoTimeout = 60 * time.Millisecond
	}
}

// Measure triggers one ranging cycle and returns the echo pulse width.
func (d *Device) Measure() (time.Duration, error) {
	if d.cfg.EchoTimeout == 0 {
		d.Configure()
	}

	d.trig.Set(true)
	d.sleep(triggerPulse)
	d.trig.Set(false)

	// Wait for the echo line to rise.
	deadline := d.now().Add(d.cfg.EchoTimeout)
	for !d.echo.Get() {
		if d.now().After(deadline) {
			return 0, ErrNoEcho
		}
	}
	start := d.now()

	// Time the high pulse.
	deadline = start.Add(d.cfg.EchoTimeout)
	for d.echo.Get() {
		if d.now().After(deadline) {
			return 0, ErrNoEcho
		}
	}
	return d.now().Sub(start), nil
}

// DistanceCm converts an echo pulse width to centimetres.
func DistanceCm(echo time.Duration) float64 {
	return float64(echo.Microseconds()) / usPerCm
}

// ReadDistanceCm performs one measurement and validates it against the
// rated window. A zero or out-of-window result is an error, never a sample.
func (d *Device) ReadDistanceCm() (float64, error) {
	echo, err := d.Measure()
	if err != nil {
		return 0, err
	}
	cm := DistanceCm(echo)
	if cm < MinRangeCm || cm > MaxRangeCm {
		return 0, ErrOutOfRange
	}
	return cm, nil
}

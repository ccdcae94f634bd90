//go:build rp2040 || rp2350

package main

import (
	"context"
	"machine"
	"time"

	"fuelmon-go/drivers/aht20"
	"fuelmon-go/drivers/hcsr04"
	"fuelmon-go/errcode"
	"fuelmon-go/services/geo"
	"fuelmon-go/services/monitor"
	"fuelmon-go/types"
)

// Pin assignment for the fuelmon carrier board.
const (
	pinTrig = machine.GP14
	pinEcho = machine.GP15
)

func init() {
	OpenHardware = openRP2
}

func openRP2() (monitor.DistanceSensor, monitor.EnvSensor, geo.FixSource, error) {
	trig := pinTrig
	trig.Configure(machine.PinConfig{Mode: machine.PinOutput})
	trig.Set(false)
	echo := pinEcho
	echo.Configure(machine.PinConfig{Mode: machine.PinInput})

	dist := hcsr04.New(trig, echo)
	dist.Configure()

	if err := machine.I2C0.Configure(machine.I2CConfig{
		SCL: machine.I2C0_SCL_PIN,
		SDA: machine.I2C0_SDA_PIN,
	}); err != nil {
		return nil, nil, nil, err
	}
	env := aht20.New(machine.I2C0)
	env.Configure()

	// TODO: replace noFix with an NMEA reader on UART1 once the GPS header
	// is populated on the carrier board.
	return dist, &envSensor{d: &env}, noFix{}, nil
}

// envSensor adapts the aht20 driver to the monitor's sensor interface.
type envSensor struct {
	d *aht20.Device
}

func (e *envSensor) ReadEnv() (float64, float64, error) {
	var s aht20.Sample
	if err := e.d.Read(&s); err != nil {
		return 0, 0, err
	}
	return s.Celsius(), s.RelHumidity(), nil
}

// noFix is a fix source for boards without a GPS module fitted.
type noFix struct{}

func (noFix) NextFix(ctx context.Context) (types.GeoFix, error) {
	select {
	case <-time.After(10 * time.Second):
		return types.GeoFix{}, errcode.NoFix
	case <-ctx.Done():
		return types.GeoFix{}, ctx.Err()
	}
}

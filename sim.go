package main

import (
	"context"
	"math/rand"
	"time"

	"fuelmon-go/types"
	"fuelmon-go/x/mathx"
)

// Simulated sensors for host runs without hardware. The tank drains slowly
// with sensor jitter on top; every so often it jumps, which the monitor
// should flag as a refuel or a theft depending on direction.

type simTank struct {
	cm float64
}

func newSimTank(startCm float64) *simTank { return &simTank{cm: startCm} }

func (s *simTank) ReadDistanceCm() (float64, error) {
	// Slow drain: surface drops, distance grows.
	s.cm += 0.02
	switch rand.Intn(200) {
	case 0:
		s.cm -= 25 // refuel
	case 1:
		s.cm += 10 // siphon
	}
	s.cm = mathx.Clamp(s.cm, 5, 120)
	jitter := (rand.Float64() - 0.5) * 0.4
	return s.cm + jitter, nil
}

type simEnv struct {
	temp, humi float64
}

func newSimEnv(tempC, humidity float64) *simEnv {
	return &simEnv{temp: tempC, humi: humidity}
}

func (s *simEnv) ReadEnv() (float64, float64, error) {
	s.temp = mathx.Clamp(s.temp+(rand.Float64()-0.5)*0.6, -10, 55)
	s.humi = mathx.Clamp(s.humi+(rand.Float64()-0.5)*1.5, 10, 95)
	return s.temp, s.humi, nil
}

type simGPS struct {
	lat, lon float64
}

func newSimGPS(lat, lon float64) *simGPS { return &simGPS{lat: lat, lon: lon} }

func (s *simGPS) NextFix(ctx context.Context) (types.GeoFix, error) {
	select {
	case <-time.After(time.Second):
	case <-ctx.Done():
		return types.GeoFix{}, ctx.Err()
	}
	s.lat += (rand.Float64() - 0.5) * 0.0002
	s.lon += (rand.Float64() - 0.5) * 0.0002
	return types.GeoFix{Latitude: s.lat, Longitude: s.lon, TS: time.Now().UnixMilli()}, nil
}

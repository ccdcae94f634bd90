// Package geo publishes position fixes to the remote store. It runs beside
// the monitor cycle, driven by whatever fix source the platform injects
// (serial GPS, cellular module, or a fixture in tests), and pushes latitude
// and longitude whenever a fresh fix arrives.
package geo

import (
	"context"
	"time"

	"fuelmon-go/bus"
	"fuelmon-go/services/config"
	"fuelmon-go/store"
	"fuelmon-go/types"
	"fuelmon-go/x/timex"
)

var (
	topicConfigGeo = bus.Topic{"config", "geo"}
	topicGeoState  = bus.Topic{"geo", "state"}
)

// FixSource blocks until the next position fix is available. Implementations
// return errcode.NoFix (or any error) when the receiver has no solution;
// the service logs and keeps waiting.
type FixSource interface {
	NextFix(ctx context.Context) (types.GeoFix, error)
}

type Service struct {
	conn *bus.Connection
	kv   store.KeyValue
	src  FixSource
	cfg  types.GeoConfig

	lastPublished time.Time
	lastFix       types.GeoFix
}

func New(conn *bus.Connection, kv store.KeyValue, src FixSource, cfg types.GeoConfig) *Service {
	return &Service{conn: conn, kv: kv, src: src, cfg: cfg}
}

func (s *Service) Start(ctx context.Context) {
	go s.run(ctx)
}

func (s *Service) run(ctx context.Context) {
	cfgSub := s.conn.Subscribe(topicConfigGeo)
	defer s.conn.Unsubscribe(cfgSub)

	s.publishState("ready", "")

	fixes := make(chan types.GeoFix, 1)
	go s.pump(ctx, fixes)

	for {
		select {
		case <-ctx.Done():
			s.publishState("stopped", "context_cancelled")
			return
		case msg := <-cfgSub.Channel():
			var c types.GeoConfig
			if err := config.Decode(msg.Payload, &c); err != nil {
				println("[geo] bad config payload:", err.Error())
				continue
			}
			s.cfg = c
		case fix := <-fixes:
			s.handleFix(ctx, fix)
		}
	}
}

func (s *Service) pump(ctx context.Context, out chan<- types.GeoFix) {
	for {
		fix, err := s.src.NextFix(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			println("[geo] fix failed:", err.Error())
			continue
		}
		select {
		case out <- fix:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Service) handleFix(ctx context.Context, fix types.GeoFix) {
	// Rate limit and duplicate suppression: an unchanged position inside the
	// minimum interval is not worth a round trip.
	if min := time.Duration(s.cfg.MinIntervalMs) * time.Millisecond; min > 0 {
		if time.Since(s.lastPublished) < min &&
			fix.Latitude == s.lastFix.Latitude && fix.Longitude == s.lastFix.Longitude {
			return
		}
	}

	if err := s.kv.SetFloat(ctx, store.PathLatitude, fix.Latitude); err != nil {
		println("[geo] write failed:", store.PathLatitude, err.Error())
		return
	}
	if err := s.kv.SetFloat(ctx, store.PathLongitude, fix.Longitude); err != nil {
		println("[geo] write failed:", store.PathLongitude, err.Error())
		return
	}
	s.lastPublished = time.Now()
	s.lastFix = fix
}

func (s *Service) publishState(level, status string) {
	s.conn.Publish(s.conn.NewMessage(topicGeoState,
		types.ServiceState{Level: level, Status: status, TS: timex.NowMs()},
		true,
	))
}

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fuelmon-go/bus"
	"fuelmon-go/services/config"
	"fuelmon-go/services/geo"
	"fuelmon-go/services/heartbeat"
	"fuelmon-go/services/monitor"
	"fuelmon-go/store"
	"fuelmon-go/store/buskv"
	"fuelmon-go/store/mqttkv"
	"fuelmon-go/store/multikv"
	"fuelmon-go/types"
)

const deviceID = "fuelmon"

// OpenHardware is set by a platform build to hand out real sensor drivers
// (hcsr04 on a GPIO pair, aht20 on I2C, a serial GPS). When it is nil the
// simulated sensors stand in, so the same binary runs on a development host
// against a real broker.
var OpenHardware func() (monitor.DistanceSensor, monitor.EnvSensor, geo.FixSource, error)

func main() {
	// Allow USB CDC to enumerate before we print.
	time.Sleep(2 * time.Second)
	println("boot:", deviceID)

	ctx, cancel := context.WithCancel(
		context.WithValue(context.Background(), config.CtxDeviceKey, deviceID))
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		println("boot: shutdown requested")
		cancel()
	}()

	b := bus.NewBus(32)

	// Config first: each section lands as a retained config/<section> message
	// that is already waiting when the services subscribe.
	config.NewConfigService().Start(ctx, b.NewConnection("config"))

	boot := b.NewConnection("boot")
	var (
		cloudCfg types.CloudConfig
		monCfg   types.MonitorConfig
		geoCfg   types.GeoConfig
	)
	loadConfig(boot, "cloud", &cloudCfg)
	loadConfig(boot, "monitor", &monCfg)
	loadConfig(boot, "geo", &geoCfg)

	(&heartbeat.Service{}).Start(ctx, b.NewConnection("heartbeat"))

	// Cloud record plus a local bus mirror for on-device observers. The
	// mqtt client reconnects on its own; until then writes fail fast and the
	// cycle carries on.
	cloud, err := mqttkv.New(cloudCfg, store.ReadPaths(), b.NewConnection("cloud"))
	if err != nil {
		println("boot: cloud store:", err.Error())
		return
	}
	defer cloud.Close()
	kv := multikv.New(cloud, buskv.New(b.NewConnection("kv-mirror")))

	dist, env, fixes := openSensors()

	monitor.New(b.NewConnection("monitor"), kv, dist, env, monCfg).Start(ctx)
	geo.New(b.NewConnection("geo"), kv, fixes, geoCfg).Start(ctx)

	<-ctx.Done()
	// Give the services a moment to publish their stopped state.
	time.Sleep(200 * time.Millisecond)
	println("boot: stopped")
}

// loadConfig blocks briefly for the retained config/<section> message. A
// missing section is not fatal: the services apply their own defaults.
func loadConfig(conn *bus.Connection, section string, out any) {
	sub := conn.Subscribe(bus.Topic{"config", section})
	defer conn.Unsubscribe(sub)
	select {
	case msg := <-sub.Channel():
		if err := config.Decode(msg.Payload, out); err != nil {
			println("boot: bad", section, "config:", err.Error())
		}
	case <-time.After(2 * time.Second):
		println("boot: no", section, "config, using defaults")
	}
}

func openSensors() (monitor.DistanceSensor, monitor.EnvSensor, geo.FixSource) {
	if OpenHardware != nil {
		dist, env, fixes, err := OpenHardware()
		if err == nil {
			return dist, env, fixes
		}
		println("boot: hardware open failed, falling back to sim:", err.Error())
	}
	println("boot: using simulated sensors")
	return newSimTank(55), newSimEnv(22, 50), newSimGPS(51.5072, -0.1276)
}

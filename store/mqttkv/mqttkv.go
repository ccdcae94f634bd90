// Package mqttkv implements store.KeyValue over an MQTT broker. Each store
// path maps to a retained topic, so the broker holds the latest value the
// way a cloud key/value record would. Readable flags are kept in a local
// cache fed by subscriptions; writes are retained QoS-1 publishes.
package mqttkv

import (
	"context"
	"strconv"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"fuelmon-go/bus"
	"fuelmon-go/errcode"
	"fuelmon-go/types"
	"fuelmon-go/x/timex"
)

const defaultTimeout = 2 * time.Second

var topicCloudState = bus.Topic{"cloud", "state"}

type Store struct {
	client  mqtt.Client
	conn    *bus.Connection // internal bus, link state only; may be nil
	timeout time.Duration

	mu    sync.RWMutex
	cache map[string][]byte
}

// New connects to the broker and begins watching the given read paths.
// The paho client reconnects on its own; while the link is down every
// operation fails fast with errcode.StoreOffline.
func New(cfg types.CloudConfig, watch []string, conn *bus.Connection) (*Store, error) {
	s := &Store{
		conn:    conn,
		timeout: defaultTimeout,
		cache:   map[string][]byte{},
	}
	if cfg.TimeoutMs > 0 {
		s.timeout = time.Duration(cfg.TimeoutMs) * time.Millisecond
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		s.publishState(types.LinkUp, "connected")
		// (Re)subscribe after every connect; subscriptions do not survive
		// a clean-session reconnect.
		for _, p := range watch {
			c.Subscribe(p, 1, s.onMessage)
		}
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		s.publishState(types.LinkDegraded, err.Error())
	})

	s.client = mqtt.NewClient(opts)
	s.publishState(types.LinkDown, "connecting")
	if token := s.client.Connect(); token.WaitTimeout(s.timeout) && token.Error() != nil {
		// Connect keeps retrying in the background; report but don't fail.
		s.publishState(types.LinkDown, token.Error().Error())
	}
	return s, nil
}

func (s *Store) Close() {
	s.client.Disconnect(250)
	s.publishState(types.LinkDown, "closed")
}

func (s *Store) onMessage(_ mqtt.Client, msg mqtt.Message) {
	s.mu.Lock()
	s.cache[msg.Topic()] = msg.Payload()
	s.mu.Unlock()
}

func (s *Store) publishState(link types.Link, status string) {
	if s.conn == nil {
		return
	}
	s.conn.Publish(s.conn.NewMessage(topicCloudState,
		types.ServiceState{Level: string(link), Status: status, TS: timex.NowMs()},
		true,
	))
}

func (s *Store) cached(path string) ([]byte, error) {
	s.mu.RLock()
	raw, ok := s.cache[path]
	s.mu.RUnlock()
	if !ok {
		if !s.client.IsConnectionOpen() {
			return nil, errcode.StoreOffline
		}
		return nil, errcode.StoreNotFound
	}
	return raw, nil
}

func (s *Store) publish(ctx context.Context, path string, payload string) error {
	if !s.client.IsConnectionOpen() {
		return errcode.StoreOffline
	}
	token := s.client.Publish(path, 1, true, payload)
	timeout := s.timeout
	if dl, ok := ctx.Deadline(); ok {
		if until := time.Until(dl); until < timeout {
			timeout = until
		}
	}
	if !token.WaitTimeout(timeout) {
		return errcode.Timeout
	}
	if err := token.Error(); err != nil {
		return &errcode.E{C: errcode.StoreOffline, Op: "publish " + path, Err: err}
	}
	return nil
}

func (s *Store) GetBool(_ context.Context, path string) (bool, error) {
	raw, err := s.cached(path)
	if err != nil {
		return false, err
	}
	v, perr := strconv.ParseBool(string(raw))
	if perr != nil {
		return false, errcode.StoreDecode
	}
	return v, nil
}

func (s *Store) SetBool(ctx context.Context, path string, v bool) error {
	return s.publish(ctx, path, strconv.FormatBool(v))
}

func (s *Store) GetFloat(_ context.Context, path string) (float64, error) {
	raw, err := s.cached(path)
	if err != nil {
		return 0, err
	}
	v, perr := strconv.ParseFloat(string(raw), 64)
	if perr != nil {
		return 0, errcode.StoreDecode
	}
	return v, nil
}

func (s *Store) SetFloat(ctx context.Context, path string, v float64) error {
	return s.publish(ctx, path, strconv.FormatFloat(v, 'g', -1, 64))
}

func (s *Store) SetString(ctx context.Context, path string, v string) error {
	return s.publish(ctx, path, v)
}

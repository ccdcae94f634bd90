// Package buskv mirrors the remote schema onto internal bus retained topics.
// It backs the store.KeyValue interface for local observers (and for tests):
// a "set" is a retained publish, a "get" reads back the retained message.
package buskv

import (
	"context"
	"strings"

	"fuelmon-go/bus"
	"fuelmon-go/errcode"
)

type Store struct {
	conn *bus.Connection
}

func New(conn *bus.Connection) *Store {
	return &Store{conn: conn}
}

func topicFor(path string) bus.Topic {
	parts := strings.Split(path, "/")
	t := make(bus.Topic, 0, len(parts))
	for _, p := range parts {
		t = append(t, p)
	}
	return t
}

// get reads the retained payload at path, if any. A short-lived exact
// subscription sees the retained message synchronously on subscribe.
func (s *Store) get(path string) (any, error) {
	sub := s.conn.Subscribe(topicFor(path))
	defer s.conn.Unsubscribe(sub)
	select {
	case msg := <-sub.Channel():
		return msg.Payload, nil
	default:
		return nil, errcode.StoreNotFound
	}
}

func (s *Store) set(path string, v any) {
	s.conn.Publish(s.conn.NewMessage(topicFor(path), v, true))
}

func (s *Store) GetBool(_ context.Context, path string) (bool, error) {
	v, err := s.get(path)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, errcode.StoreDecode
	}
	return b, nil
}

func (s *Store) SetBool(_ context.Context, path string, v bool) error {
	s.set(path, v)
	return nil
}

func (s *Store) GetFloat(_ context.Context, path string) (float64, error) {
	v, err := s.get(path)
	if err != nil {
		return 0, err
	}
	switch f := v.(type) {
	case float64:
		return f, nil
	case float32:
		return float64(f), nil
	case int:
		return float64(f), nil
	default:
		return 0, errcode.StoreDecode
	}
}

func (s *Store) SetFloat(_ context.Context, path string, v float64) error {
	s.set(path, v)
	return nil
}

func (s *Store) SetString(_ context.Context, path string, v string) error {
	s.set(path, v)
	return nil
}

func (s *Store) GetString(_ context.Context, path string) (string, error) {
	v, err := s.get(path)
	if err != nil {
		return "", err
	}
	str, ok := v.(string)
	if !ok {
		return "", errcode.StoreDecode
	}
	return str, nil
}

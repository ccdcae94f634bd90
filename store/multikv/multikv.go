// Package multikv fans writes out to a primary store plus local mirrors.
// Reads always come from the primary: the cloud record owns the truth for
// externally-set flags, the mirrors only exist for on-device observers.
package multikv

import (
	"context"

	"fuelmon-go/store"
)

type Store struct {
	primary store.KeyValue
	mirrors []store.KeyValue
}

func New(primary store.KeyValue, mirrors ...store.KeyValue) *Store {
	return &Store{primary: primary, mirrors: mirrors}
}

func (s *Store) GetBool(ctx context.Context, path string) (bool, error) {
	return s.primary.GetBool(ctx, path)
}

func (s *Store) GetFloat(ctx context.Context, path string) (float64, error) {
	return s.primary.GetFloat(ctx, path)
}

func (s *Store) SetBool(ctx context.Context, path string, v bool) error {
	err := s.primary.SetBool(ctx, path, v)
	for _, m := range s.mirrors {
		_ = m.SetBool(ctx, path, v) // mirrors are best-effort
	}
	return err
}

func (s *Store) SetFloat(ctx context.Context, path string, v float64) error {
	err := s.primary.SetFloat(ctx, path, v)
	for _, m := range s.mirrors {
		_ = m.SetFloat(ctx, path, v)
	}
	return err
}

func (s *Store) SetString(ctx context.Context, path string, v string) error {
	err := s.primary.SetString(ctx, path, v)
	for _, m := range s.mirrors {
		_ = m.SetString(ctx, path, v)
	}
	return err
}

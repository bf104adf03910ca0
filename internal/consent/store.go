// Package consent persists the single "always allow external media" preference.
//
// The store never surfaces backend failures to callers: a backend that cannot be
// read behaves as if no preference was ever saved, and failed writes report false.
package consent

import (
	"errors"

	"go.uber.org/zap"

	"github.com/bnema/embed-consent/internal/logging"
)

// StorageKey is the key holding the preference marker
const StorageKey = "embedConsentAlwaysAllow"

const (
	markerValue = "true"
	probeKey    = "__embed_consent_test__"
)

// ErrUnavailable is returned by backends that cannot store anything
var ErrUnavailable = errors.New("consent storage unavailable")

// Backend is a string key/value persistence layer
type Backend interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Delete(key string) error
}

// Store wraps a Backend with the preference semantics
type Store struct {
	backend Backend
	key     string
	log     *zap.Logger
}

// NewStore creates a store. origin scopes the key so one backend can hold
// preferences for several sites; pass "" for a single-origin backend.
func NewStore(b Backend, origin string, log *zap.Logger) *Store {
	if b == nil {
		b = Unavailable{}
	}
	key := StorageKey
	if origin != "" {
		key = origin + "::" + StorageKey
	}
	return &Store{
		backend: b,
		key:     key,
		log:     logging.OrNop(log).Named("consent"),
	}
}

// Available probes the backend with a throwaway write
func (s *Store) Available() bool {
	if err := s.backend.Set(probeKey, probeKey); err != nil {
		s.log.Debug("storage probe failed", zap.Error(err))
		return false
	}
	if err := s.backend.Delete(probeKey); err != nil {
		s.log.Debug("storage probe cleanup failed", zap.Error(err))
		return false
	}
	return true
}

// Read returns the stored preference. Absence and any failure read as false.
func (s *Store) Read() bool {
	if !s.Available() {
		return false
	}
	v, ok, err := s.backend.Get(s.key)
	if err != nil {
		s.log.Warn("failed to read embed consent preference", zap.Error(err))
		return false
	}
	return ok && v == markerValue
}

// Write persists true as an explicit marker and removes the marker for false.
// It reports whether the backend accepted the change.
func (s *Store) Write(allow bool) bool {
	if !s.Available() {
		return false
	}

	var err error
	if allow {
		err = s.backend.Set(s.key, markerValue)
	} else {
		err = s.backend.Delete(s.key)
	}
	if err != nil {
		s.log.Warn("failed to save embed consent preference", zap.Bool("allow", allow), zap.Error(err))
		return false
	}
	return true
}

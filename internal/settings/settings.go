// Package settings holds the control plane's live-mutable, field-wise
// updatable server-side tuning knobs (timeouts, cost weights) that
// operators can update at runtime without a restart. Mesh-wide settings
// are not stored here; they pass through to the mesh in envelopes.
package settings

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// AppSettings is the server-side tuning surface exposed over HTTP.
// Every field can be updated independently; a request that omits a
// field leaves it untouched.
type AppSettings struct {
	mu sync.RWMutex

	getSettingsTimeout time.Duration
	signalDataTimeout  time.Duration
	routeCostWeight    float64
	routeHopsWeight    float64
}

// New builds an AppSettings seeded from startup configuration.
func New(getSettingsTimeout, signalDataTimeout time.Duration, routeCostWeight, routeHopsWeight float64) *AppSettings {
	return &AppSettings{
		getSettingsTimeout: getSettingsTimeout,
		signalDataTimeout:  signalDataTimeout,
		routeCostWeight:    routeCostWeight,
		routeHopsWeight:    routeHopsWeight,
	}
}

// Snapshot is an immutable read of AppSettings at a point in time.
type Snapshot struct {
	GetSettingsTimeout time.Duration
	SignalDataTimeout  time.Duration
	RouteCostWeight    float64
	RouteHopsWeight    float64
}

func (s *AppSettings) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		GetSettingsTimeout: s.getSettingsTimeout,
		SignalDataTimeout:  s.signalDataTimeout,
		RouteCostWeight:    s.routeCostWeight,
		RouteHopsWeight:    s.routeHopsWeight,
	}
}

// Update holds field-wise optional overrides; a nil field is left
// untouched.
type Update struct {
	GetSettingsTimeout *time.Duration
	SignalDataTimeout  *time.Duration
	RouteCostWeight    *float64
	RouteHopsWeight    *float64
}

// Apply merges u into the current settings, validating the resulting
// whole before committing any of it. On validation failure the
// settings are left unchanged.
func (s *AppSettings) Apply(u Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := Snapshot{
		GetSettingsTimeout: s.getSettingsTimeout,
		SignalDataTimeout:  s.signalDataTimeout,
		RouteCostWeight:    s.routeCostWeight,
		RouteHopsWeight:    s.routeHopsWeight,
	}

	if u.GetSettingsTimeout != nil {
		next.GetSettingsTimeout = *u.GetSettingsTimeout
	}
	if u.SignalDataTimeout != nil {
		next.SignalDataTimeout = *u.SignalDataTimeout
	}
	if u.RouteCostWeight != nil {
		next.RouteCostWeight = *u.RouteCostWeight
	}
	if u.RouteHopsWeight != nil {
		next.RouteHopsWeight = *u.RouteHopsWeight
	}

	if err := validate(next); err != nil {
		return err
	}

	s.getSettingsTimeout = next.GetSettingsTimeout
	s.signalDataTimeout = next.SignalDataTimeout
	s.routeCostWeight = next.RouteCostWeight
	s.routeHopsWeight = next.RouteHopsWeight
	return nil
}

func validate(s Snapshot) error {
	if s.GetSettingsTimeout <= 0 {
		return fmt.Errorf("get_settings_timeout must be positive")
	}
	if s.SignalDataTimeout <= 0 {
		return fmt.Errorf("signal_data_timeout must be positive")
	}
	if s.RouteCostWeight < 0 || math.IsNaN(s.RouteCostWeight) || math.IsInf(s.RouteCostWeight, 0) {
		return fmt.Errorf("route_cost_weight must be a finite, non-negative number")
	}
	if s.RouteHopsWeight < 0 || math.IsNaN(s.RouteHopsWeight) || math.IsInf(s.RouteHopsWeight, 0) {
		return fmt.Errorf("route_hops_weight must be a finite, non-negative number")
	}
	return nil
}

package port

import (
	"github.com/berfenger/ws3000mqtt/internal/core/domain"
)

type TopologyTracker interface {
	// Observe records a reading and reports whether the topology changed.
	Observe(reading domain.LiveReading) (domain.Topology, bool)
	// SetUnits applies the unit system of a freshly read station config.
	SetUnits(units domain.UnitSystem) (domain.Topology, bool)
	Topology() domain.Topology
}

type DiscoveryBuilder interface {
	Build(topology domain.Topology) []domain.GenericSensor
	BuildState(reading domain.LiveReading, topology domain.Topology) []domain.StatePayload
	Removed(previous, current []domain.GenericSensor) []domain.GenericSensor
	BridgeSensors() []domain.GenericSensor
}

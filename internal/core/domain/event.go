package domain

import "fmt"

// StatePayload is the value object published on one state topic each cycle.
type StatePayload struct {
	StateId string
	Values  []MeasurementValue
}

type MeasurementValue struct {
	Measurement Measurement
	Value       float64
}

type TopologyChangedEvent struct {
	Previous Topology
	Current  Topology
}

// TopologySettledEvent is published once, when the topology has seen a full
// debounce window with a known unit system. Anything registered before and
// missing from it is stale.
type TopologySettledEvent struct {
	Topology Topology
}

// StationUnreachable is reported by the poller when the station kept
// failing at the transport level.
type StationUnreachable struct {
	Failures int
	Error    error
}

func (e StationUnreachable) String() string {
	return fmt.Sprintf("station unreachable after %d consecutive failures: %v", e.Failures, e.Error)
}

package service

import (
	"errors"

	"github.com/berfenger/ws3000mqtt/internal/core/domain"
	"github.com/berfenger/ws3000mqtt/internal/core/port"
)

var ErrTopologyDegraded = errors.New("no channel detected")

// Detect returns the pairs present in at least one of the last window
// readings of history (oldest first).
func Detect(history []domain.LiveReading, window int, units domain.UnitSystem) domain.Topology {
	if window < 1 {
		window = 1
	}
	if len(history) > window {
		history = history[len(history)-window:]
	}
	var active []domain.ChannelMeasurement
	for _, reading := range history {
		for ch, c := range reading.Channels {
			for _, m := range domain.Measurements {
				if c.Has(m) {
					active = append(active, domain.ChannelMeasurement{Channel: ch, Measurement: m})
				}
			}
		}
	}
	return domain.NewTopology(units, active)
}

// TopologyDetector keeps the last threshold readings. An active pair is
// demoted only after threshold consecutive absent readings.
type TopologyDetector struct {
	threshold int
	history   []domain.LiveReading
	units     domain.UnitSystem
	current   domain.Topology
}

func NewTopologyDetector(threshold int) *TopologyDetector {
	if threshold < 1 {
		threshold = 1
	}
	return &TopologyDetector{
		threshold: threshold,
		history:   make([]domain.LiveReading, 0, threshold),
	}
}

func (d *TopologyDetector) Observe(reading domain.LiveReading) (domain.Topology, bool) {
	if len(d.history) == d.threshold {
		d.history = append(d.history[:0], d.history[1:]...)
	}
	d.history = append(d.history, reading)
	return d.update()
}

// SetUnits is called on every config read. The station is authoritative,
// a change of unit system is a topology change.
func (d *TopologyDetector) SetUnits(units domain.UnitSystem) (domain.Topology, bool) {
	d.units = units
	return d.update()
}

func (d *TopologyDetector) Topology() domain.Topology {
	return d.current
}

func (d *TopologyDetector) update() (domain.Topology, bool) {
	next := Detect(d.history, d.threshold, d.units)
	if next.Equal(d.current) {
		return d.current, false
	}
	d.current = next
	return next, true
}

var _ port.TopologyTracker = (*TopologyDetector)(nil)

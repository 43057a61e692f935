package ws3000

import (
	"time"

	"go.uber.org/zap"
)

// CreateSimulatedStationReader returns a reader over an in-memory console
// together with the transport, so callers can alter the station state.
func CreateSimulatedStationReader(station SimulatedStation, logger *zap.Logger) (StationReader, *SimulatedTransport) {
	t := NewSimulatedTransport(station)
	return CreateStationReader(SimulatedOpener(t), DEFAULT_MODEL, 200*time.Millisecond,
		logger.With(zap.String("target", "simulated")), nil), t
}

func CreateTestStationReader() (StationReader, *SimulatedTransport) {
	return CreateSimulatedStationReader(DefaultSimulatedStation(), zap.NewNop())
}

package actor

import (
	"slices"
	"testing"
	"time"

	adactor "github.com/berfenger/ws3000mqtt/internal/adapter/actor"
	"github.com/berfenger/ws3000mqtt/internal/config"
	"github.com/berfenger/ws3000mqtt/internal/core/domain"
	"github.com/berfenger/ws3000mqtt/internal/core/service"
	"github.com/berfenger/ws3000mqtt/internal/util"
	"github.com/berfenger/ws3000mqtt/internal/util/actorutil"
	"github.com/berfenger/ws3000mqtt/pkg/ws3000"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const waitFor = 5 * time.Second
const tickEvery = 10 * time.Millisecond

func testLogger(cfg config.Config) *zap.Logger {
	logCfg := zap.NewDevelopmentConfig()
	logCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)
	return zap.Must(logCfg.Build())
}

func testConfig(threshold int) config.Config {
	cfg := util.LoadTestConfig()
	cfg.Station.DebounceThreshold = threshold
	return cfg
}

func testBuilder(cfg config.Config) *service.DefaultDiscoveryBuilder {
	return service.NewDiscoveryBuilder(service.DiscoveryConfig{
		BaseTopic:   cfg.MQTT.BaseTopic,
		DeviceLabel: cfg.MQTT.DeviceLabel,
		StationId:   cfg.MQTT.StationId,
		Model:       cfg.USB.Model,
		Version:     ws3000.DRIVER_VERSION,
		ExpireAfter: cfg.MQTT.ExpireAfterSeconds,
	})
}

func newTestSystem(t *testing.T, logger *zap.Logger) *actor.ActorSystem {
	as := actorutil.NewActorSystemWithZapLogger(logger)
	t.Cleanup(as.Shutdown)
	return as
}

// spawnStationAndMQTT starts a station actor over a simulated console and a
// recording MQTT actor.
func spawnStationAndMQTT(as *actor.ActorSystem, logger *zap.Logger) (station, mqtt *actor.PID, sim *ws3000.SimulatedTransport, recorder *adactor.PublicationRecorder) {
	reader, sim := ws3000.CreateSimulatedStationReader(ws3000.DefaultSimulatedStation(), logger)
	recorder = &adactor.PublicationRecorder{}
	station = as.Root.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return adactor.NewStationActor(reader, 200*time.Millisecond, logger)
	}))
	mqtt = as.Root.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return adactor.NewTestMQTTActor(recorder)
	}))
	return station, mqtt, sim, recorder
}

func request[T any](t *testing.T, as *actor.ActorSystem, pid *actor.PID, msg any) T {
	result, err := as.Root.RequestFuture(pid, msg, waitFor).Result()
	require.NoError(t, err)
	resp, ok := result.(T)
	require.True(t, ok, "unexpected response %T", result)
	return resp
}

func topologyOf(t *testing.T, as *actor.ActorSystem, pid *actor.PID) domain.GetTopologyResponse {
	return request[domain.GetTopologyResponse](t, as, pid, domain.GetTopologyRequest{})
}

func countCommand(sim *ws3000.SimulatedTransport, cmd ws3000.Command) int {
	n := 0
	for _, c := range sim.Requests() {
		if c == cmd {
			n++
		}
	}
	return n
}

func pairs(channels ...int) []domain.ChannelMeasurement {
	var active []domain.ChannelMeasurement
	for _, ch := range channels {
		for _, m := range domain.Measurements {
			active = append(active, domain.ChannelMeasurement{Channel: ch, Measurement: m})
		}
	}
	return active
}

func sensorIds(sensors []domain.GenericSensor) []string {
	ids := make([]string, 0, len(sensors))
	for _, s := range sensors {
		ids = append(ids, s.Id)
	}
	slices.Sort(ids)
	return ids
}

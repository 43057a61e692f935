package actor

import (
	"testing"

	adactor "github.com/berfenger/ws3000mqtt/internal/adapter/actor"
	"github.com/berfenger/ws3000mqtt/internal/core/domain"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHADiscoveryActor(t *testing.T) {

	assert := assert.New(t)

	cfg := testConfig(1)
	logger := testLogger(cfg)
	as := newTestSystem(t, logger)

	recorder := &adactor.PublicationRecorder{}
	mqtt := as.Root.Spawn(actor.PropsFromProducer(func() actor.Actor { return adactor.NewTestMQTTActor(recorder) }))

	stream := &eventstream.EventStream{}
	pid := as.Root.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return NewHADiscoveryActor(mqtt, testBuilder(cfg), logger)
	}))
	sub := SubscribeTopologyChanges(as, stream, pid)
	defer stream.Unsubscribe(sub)

	published := func(n int) []domain.PublishDiscoveryRequest {
		require.Eventually(t, func() bool { return len(recorder.Discovery()) >= n }, waitFor, tickEvery)
		return recorder.Discovery()
	}

	// bridge sensor on start
	reqs := published(1)
	assert.Equal([]string{domain.SENSOR_ID_BRIDGE_STATE}, sensorIds(reqs[0].Sensors))

	// not established, nothing to register
	stream.Publish(domain.TopologyChangedEvent{Current: domain.NewTopology(domain.UNITS_UNKNOWN, pairs(1))})

	full := domain.NewTopology(domain.UNITS_CELSIUS, pairs(1, 2))
	stream.Publish(domain.TopologyChangedEvent{Current: full})
	reqs = published(2)
	assert.Equal([]string{"hum_ch1", "hum_ch2", "temp_ch1", "temp_ch2"}, sensorIds(reqs[1].Sensors))
	assert.Empty(reqs[1].Removed)

	// channel 2 goes away
	stream.Publish(domain.TopologyChangedEvent{Previous: full, Current: domain.NewTopology(domain.UNITS_CELSIUS, pairs(1))})
	reqs = published(3)
	assert.Equal([]string{"hum_ch1", "temp_ch1"}, sensorIds(reqs[2].Sensors))
	assert.Equal([]string{"hum_ch2", "temp_ch2"}, sensorIds(reqs[2].Removed))
	assert.Equal("uid_ws3000_temp_ch2", reqs[2].Removed[0].UniqueId)

	as.Root.Send(pid, RepublishDiscovery{})
	reqs = published(4)
	assert.Equal([]string{domain.SENSOR_ID_BRIDGE_STATE, "hum_ch1", "temp_ch1"}, sensorIds(reqs[3].Sensors))
	assert.Empty(reqs[3].Removed)

	health := request[domain.ActorHealthResponse](t, as, pid, domain.ActorHealthRequest{})
	assert.True(health.Healthy)
	assert.Len(recorder.Discovery(), 4)
}

// removedIds collects every cleared descriptor across requests.
func removedIds(reqs []domain.PublishDiscoveryRequest) []string {
	var removed []domain.GenericSensor
	for _, r := range reqs {
		removed = append(removed, r.Removed...)
	}
	return sensorIds(removed)
}

func TestHADiscoveryClearsStaleRetainedConfigs(t *testing.T) {

	assert := assert.New(t)

	cfg := testConfig(1)
	logger := testLogger(cfg)
	as := newTestSystem(t, logger)
	builder := testBuilder(cfg)

	// left on the broker by a run that still saw channel 5
	recorder := &adactor.PublicationRecorder{}
	recorder.SetRetained(builder.Build(domain.NewTopology(domain.UNITS_CELSIUS, pairs(1, 5)))...)
	mqtt := as.Root.Spawn(actor.PropsFromProducer(func() actor.Actor { return adactor.NewTestMQTTActor(recorder) }))

	stream := &eventstream.EventStream{}
	pid := as.Root.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return NewHADiscoveryActor(mqtt, builder, logger)
	}))
	sub := SubscribeTopologyChanges(as, stream, pid)
	defer stream.Unsubscribe(sub)

	require.Eventually(t, func() bool { return len(recorder.Discovery()) >= 1 }, waitFor, tickEvery)

	current := domain.NewTopology(domain.UNITS_CELSIUS, pairs(1))
	stream.Publish(domain.TopologyChangedEvent{Current: current})
	require.Eventually(t, func() bool { return len(recorder.Discovery()) >= 2 }, waitFor, tickEvery)
	assert.Empty(removedIds(recorder.Discovery()), "nothing cleared before the topology settles")

	stream.Publish(domain.TopologySettledEvent{Topology: current})
	require.Eventually(t, func() bool {
		return len(removedIds(recorder.Discovery())) == 2
	}, waitFor, tickEvery)
	assert.Equal([]string{"hum_ch5", "temp_ch5"}, removedIds(recorder.Discovery()))

	// a config seen after settling is cleared right away, a current one is kept
	late := builder.Build(domain.NewTopology(domain.UNITS_CELSIUS, pairs(1, 6)))
	for _, s := range late {
		as.Root.Send(pid, domain.RetainedDiscovery{Sensor: s})
	}
	require.Eventually(t, func() bool {
		return len(removedIds(recorder.Discovery())) == 4
	}, waitFor, tickEvery)
	assert.Equal([]string{"hum_ch5", "hum_ch6", "temp_ch5", "temp_ch6"}, removedIds(recorder.Discovery()))

	assert.Never(func() bool {
		return len(removedIds(recorder.Discovery())) > 4
	}, 50*tickEvery, tickEvery)
}

// topologyOwner spawns the discovery actor and answers its topology query
// the way the master does after a restart.
type topologyOwner struct {
	props    *actor.Props
	topology domain.GetTopologyResponse
}

func (o *topologyOwner) Receive(ctx actor.Context) {
	switch ctx.Message().(type) {
	case *actor.Started:
		ctx.Spawn(o.props)
	case domain.GetTopologyRequest:
		ctx.Respond(o.topology)
	}
}

func TestHADiscoveryRecoversTopologyFromParent(t *testing.T) {

	assert := assert.New(t)

	cfg := testConfig(1)
	logger := testLogger(cfg)
	as := newTestSystem(t, logger)
	builder := testBuilder(cfg)

	recorder := &adactor.PublicationRecorder{}
	recorder.SetRetained(builder.Build(domain.NewTopology(domain.UNITS_CELSIUS, pairs(1, 5)))...)
	mqtt := as.Root.Spawn(actor.PropsFromProducer(func() actor.Actor { return adactor.NewTestMQTTActor(recorder) }))

	owner := &topologyOwner{
		props: actor.PropsFromProducer(func() actor.Actor {
			return NewHADiscoveryActor(mqtt, builder, logger)
		}),
		topology: domain.GetTopologyResponse{
			Topology: domain.NewTopology(domain.UNITS_CELSIUS, pairs(1)),
			Settled:  true,
		},
	}
	as.Root.Spawn(actor.PropsFromProducer(func() actor.Actor { return owner }))

	require.Eventually(t, func() bool {
		for _, r := range recorder.Discovery() {
			if len(r.Sensors) == 2 {
				return true
			}
		}
		return false
	}, waitFor, tickEvery)
	require.Eventually(t, func() bool {
		return len(removedIds(recorder.Discovery())) == 2
	}, waitFor, tickEvery)

	assert.Equal([]string{"hum_ch5", "temp_ch5"}, removedIds(recorder.Discovery()))
	assert.Equal([]string{domain.SENSOR_ID_BRIDGE_STATE}, sensorIds(recorder.Discovery()[0].Sensors))
}

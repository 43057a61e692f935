package actor

import (
	"fmt"
	"slices"
	"time"

	"github.com/berfenger/ws3000mqtt/internal/core/domain"
	"github.com/berfenger/ws3000mqtt/internal/core/port"
	"github.com/berfenger/ws3000mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"go.uber.org/zap"
)

// HADiscoveryActor keeps the hub registration in line with the topology.
// Descriptors are only published when the topology changes.
//
// Configs retained on the broker from an earlier run, or from before a
// restart of this actor, are collected as candidates and cleared once the
// topology settles without them.
type HADiscoveryActor struct {
	behavior  actor.Behavior
	mqttActor *actor.PID
	builder   port.DiscoveryBuilder

	sensors  []domain.GenericSensor
	retained []domain.GenericSensor
	settled  bool

	logger *zap.Logger
}

// RepublishDiscovery asks for every descriptor to be sent again.
type RepublishDiscovery struct {
}

func NewHADiscoveryActor(mqttActor *actor.PID, builder port.DiscoveryBuilder, logger *zap.Logger) *HADiscoveryActor {
	act := &HADiscoveryActor{
		mqttActor: mqttActor,
		builder:   builder,
		behavior:  actor.NewBehavior(),
		logger:    actorutil.ActorLogger(domain.ACTOR_ID_HA_DISCOVERY, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *HADiscoveryActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *HADiscoveryActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("hadiscovery@starting started")
		ctx.Send(state.mqttActor, domain.PublishDiscoveryRequest{Sensors: state.builder.BridgeSensors()})
		ctx.Request(state.mqttActor, domain.SubscribeRetainedDiscoveryRequest{})
		// after a restart the current topology is only known upstream
		if parent := ctx.Parent(); parent != nil {
			actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(parent, domain.GetTopologyRequest{}, 5*time.Second), func(err error) any {
				return domain.GetTopologyResponse{ActorResponseMixIn: actorutil.ErrorResponse(err)}
			})
		}
		state.behavior.Become(state.DefaultReceive)
	default:
		state.logger.Debug("hadiscovery@starting default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *HADiscoveryActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_HA_DISCOVERY,
			Healthy: true,
			State:   "idle",
		})
	case domain.TopologyChangedEvent:
		state.onTopologyChanged(ctx, msg.Current)
	case domain.TopologySettledEvent:
		state.onSettled(ctx)
	case domain.GetTopologyResponse:
		if msg.HasResponseError() {
			state.logger.Warn("hadiscovery@default topology unknown", zap.Error(msg.GetResponseError()))
			return
		}
		if len(state.sensors) == 0 {
			state.onTopologyChanged(ctx, msg.Topology)
		}
		if msg.Settled && msg.Topology.Established() {
			state.onSettled(ctx)
		}
	case domain.RetainedDiscovery:
		state.onRetained(ctx, msg.Sensor)
	case RepublishDiscovery:
		state.logger.Info("hadiscovery@default republishing discovery", zap.Int("sensors", len(state.sensors)))
		ctx.Send(state.mqttActor, domain.PublishDiscoveryRequest{Sensors: state.registered()})
	default:
		state.logger.Debug("hadiscovery@default default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *HADiscoveryActor) onTopologyChanged(ctx actor.Context, topology domain.Topology) {
	if !topology.Established() {
		state.logger.Debug("hadiscovery@default topology not established")
		return
	}
	next := state.builder.Build(topology)
	removed := state.builder.Removed(state.sensors, next)
	if len(removed) == 0 && sameSensors(state.sensors, next) {
		return
	}
	state.logger.Info("hadiscovery@default publishing discovery",
		zap.Int("sensors", len(next)), zap.Int("removed", len(removed)))
	state.sensors = next
	ctx.Send(state.mqttActor, domain.PublishDiscoveryRequest{Sensors: next, Removed: removed})
}

func (state *HADiscoveryActor) onSettled(ctx actor.Context) {
	state.settled = true
	stale := state.builder.Removed(state.retained, state.registered())
	state.retained = nil
	if len(stale) == 0 {
		return
	}
	state.logger.Info("hadiscovery@default clearing stale discovery", zap.Int("removed", len(stale)))
	ctx.Send(state.mqttActor, domain.PublishDiscoveryRequest{Removed: stale})
}

func (state *HADiscoveryActor) onRetained(ctx actor.Context, sensor domain.GenericSensor) {
	if containsSensor(state.registered(), sensor) {
		return
	}
	if state.settled {
		state.logger.Info("hadiscovery@default clearing stale discovery", zap.String("unique_id", sensor.UniqueId))
		ctx.Send(state.mqttActor, domain.PublishDiscoveryRequest{Removed: []domain.GenericSensor{sensor}})
		return
	}
	if !containsSensor(state.retained, sensor) {
		state.retained = append(state.retained, sensor)
	}
}

// registered lists every descriptor this bridge currently owns.
func (state *HADiscoveryActor) registered() []domain.GenericSensor {
	return append(state.builder.BridgeSensors(), state.sensors...)
}

func sameSensors(a, b []domain.GenericSensor) bool {
	return slices.EqualFunc(a, b, func(x, y domain.GenericSensor) bool { return x.UniqueId == y.UniqueId })
}

func containsSensor(sensors []domain.GenericSensor, sensor domain.GenericSensor) bool {
	return slices.ContainsFunc(sensors, func(s domain.GenericSensor) bool { return s.UniqueId == sensor.UniqueId })
}

// SubscribeTopologyChanges routes topology events to pid. Subscribing from
// the spawner, before the event source starts, no event gets lost.
func SubscribeTopologyChanges(system *actor.ActorSystem, eventStream *eventstream.EventStream, pid *actor.PID) *eventstream.Subscription {
	return eventStream.SubscribeWithPredicate(func(evt any) {
		system.Root.Send(pid, evt)
	}, func(evt any) bool {
		switch evt.(type) {
		case domain.TopologyChangedEvent, domain.TopologySettledEvent:
			return true
		}
		return false
	})
}

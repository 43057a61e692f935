package actor

import (
	"errors"
	"fmt"
	"log"
	"time"

	adactor "github.com/berfenger/ws3000mqtt/internal/adapter/actor"
	"github.com/berfenger/ws3000mqtt/internal/config"
	"github.com/berfenger/ws3000mqtt/internal/core/domain"
	"github.com/berfenger/ws3000mqtt/internal/core/service"
	. "github.com/berfenger/ws3000mqtt/internal/util/actorutil"
	"github.com/berfenger/ws3000mqtt/pkg/ws3000"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"go.uber.org/zap"
)

type StationActorProvider func() actor.Actor

type MQTTActorProvider func() actor.Actor

// FatalHandler is called once when the station stays unreachable.
type FatalHandler func(domain.StationUnreachable)

type MasterOfPuppetsActor struct {
	config   config.Config
	behavior actor.Behavior
	stash    *Stash

	currentHealthCheck   healthCheckResult
	eventStream          *eventstream.EventStream
	stationActor         *actor.PID
	mqttActor            *actor.PID
	pollerActor          *actor.PID
	haDiscoveryActor     *actor.PID
	topologySubscription *eventstream.Subscription
	clockSync            *ClockSync
	stationActorProvider StationActorProvider
	mqttActorProvider    MQTTActorProvider
	onFatal              FatalHandler
	logger               *zap.Logger
}

type healthCheckResult struct {
	healthy        map[string]bool
	checksReceived int
	respondTo      *actor.PID
}

// The station itself is not checked: a closed handle after one failed
// exchange is normal, the poller decides when the station is down.
var healthCheckedActors = []string{domain.ACTOR_ID_MQTT, domain.ACTOR_ID_POLLER}

func NewMasterOfPuppetsActor(config config.Config, stationActorProvider StationActorProvider, mqttActorProvider MQTTActorProvider,
	onFatal FatalHandler, logger *zap.Logger) *MasterOfPuppetsActor {
	act := &MasterOfPuppetsActor{
		config:               config,
		behavior:             actor.NewBehavior(),
		stash:                &Stash{},
		logger:               ActorLogger(domain.ACTOR_ID_MASTER, logger),
		eventStream:          &eventstream.EventStream{},
		stationActorProvider: stationActorProvider,
		mqttActorProvider:    mqttActorProvider,
		onFatal:              onFatal,
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *MasterOfPuppetsActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *MasterOfPuppetsActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("master@starting started")

		state.currentHealthCheck.reset()

		stationActorPID, err := state.startStationActor(ctx)
		if err != nil {
			panic(err)
		}
		state.stationActor = stationActorPID

		mqttActorPID, err := state.startMQTTActor(ctx)
		if err != nil {
			panic(err)
		}
		state.mqttActor = mqttActorPID

		builder := service.NewDiscoveryBuilder(state.discoveryConfig())

		// discovery is subscribed to topology events before the poller can emit any
		if state.config.MQTT.HADiscoveryEnable {
			haDiscoveryPID, err := state.startHADiscoveryActor(ctx, builder)
			if err != nil {
				panic(err)
			}
			state.haDiscoveryActor = haDiscoveryPID
			state.topologySubscription = SubscribeTopologyChanges(ctx.ActorSystem(), state.eventStream, haDiscoveryPID)
		}

		pollerActorPID, err := state.startPollerActor(ctx, builder)
		if err != nil {
			panic(err)
		}
		state.pollerActor = pollerActorPID

		if state.config.Station.SyncTimeEnable {
			state.startClockSync(ctx)
		}

		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("master@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterOfPuppetsActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("master@default ActorHealthRequest")
		state.currentHealthCheck.reset()
		state.currentHealthCheck.respondTo = ctx.Sender()
		state.requestHealth(ctx, state.mqttActor, domain.ACTOR_ID_MQTT)
		state.requestHealth(ctx, state.pollerActor, domain.ACTOR_ID_POLLER)

		ctx.SetReceiveTimeout(1 * time.Second)

		state.behavior.BecomeStacked(state.HealthCheckReceive)
	case domain.GetTopologyRequest:
		ctx.Forward(state.pollerActor)
	case domain.StationUnreachable:
		state.logger.Error("master@default station unreachable", zap.Int("failures", msg.Failures), zap.Error(msg.Error))
		if state.onFatal != nil {
			state.onFatal(msg)
		}
	case adactor.HAStatusOnline:
		if state.haDiscoveryActor != nil {
			state.logger.Info("master@default hub online")
			ctx.Send(state.haDiscoveryActor, RepublishDiscovery{})
		}
	case syncClockTick:
		now := time.Now()
		state.logger.Debug("master@default syncing station clock", zap.Time("time", now))
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.stationActor, domain.SyncTimeRequest{Time: now}, 5*time.Second), func(err error) any {
			return domain.SyncTimeResponse{ActorResponseMixIn: ErrorResponse(err)}
		})
	case domain.SyncTimeResponse:
		if msg.HasResponseError() {
			state.logger.Warn("master@default station clock sync failed", zap.Error(msg.GetResponseError()))
		} else {
			state.logger.Info("master@default station clock synced")
		}
	case *actor.Terminated:
		// if some actor fails on boot, terminate
		if msg.Who.Id == state.stationActor.Id || msg.Who.Id == state.mqttActor.Id {
			state.logger.Error("master@default child terminated", zap.String("who", msg.Who.Id))
			panic(errors.New(msg.Who.Id + " terminated"))
		}
	case *actor.Stopping:
		if state.clockSync != nil {
			state.clockSync.Stop()
		}
		if state.topologySubscription != nil {
			state.eventStream.Unsubscribe(state.topologySubscription)
			state.topologySubscription = nil
		}
	default:
		state.logger.Debug("master@default stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterOfPuppetsActor) HealthCheckReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.ReceiveTimeout:
		// if some actor does not respond to healthCheck, assume not healthy
		ctx.CancelReceiveTimeout()
		state.currentHealthCheck.respond(ctx)
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case domain.ActorHealthResponse:
		state.logger.Debug("master@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy))
		state.currentHealthCheck.checksReceived++
		state.currentHealthCheck.healthy[msg.Id] = msg.Healthy
		if state.currentHealthCheck.allReceived() {
			ctx.CancelReceiveTimeout()
			state.currentHealthCheck.respond(ctx)
			state.behavior.UnbecomeStacked()
			state.stash.UnstashAll(ctx)
		} else {
			ctx.SetReceiveTimeout(1 * time.Second)
		}
	default:
		state.logger.Debug("master@healthcheck stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterOfPuppetsActor) requestHealth(ctx actor.Context, pid *actor.PID, id string) {
	PipeToSelfWithRecover(ctx, ctx.RequestFuture(pid, domain.ActorHealthRequest{}, 500*time.Millisecond), func(err error) any {
		return domain.ActorHealthResponse{
			Id:      id,
			Healthy: false,
		}
	})
}

func (state *MasterOfPuppetsActor) discoveryConfig() service.DiscoveryConfig {
	return service.DiscoveryConfig{
		BaseTopic:   state.config.MQTT.BaseTopic,
		DeviceLabel: state.config.MQTT.DeviceLabel,
		StationId:   state.config.MQTT.StationId,
		Model:       state.config.USB.Model,
		Version:     ws3000.DRIVER_VERSION,
		ExpireAfter: state.config.MQTT.ExpireAfterSeconds,
	}
}

func (state *MasterOfPuppetsActor) startStationActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	stationProps := actor.PropsFromProducer(func() actor.Actor {
		return state.stationActorProvider()
	}, actor.WithSupervisor(supervisor))
	return ctx.SpawnNamed(stationProps, domain.ACTOR_ID_STATION)
}

func (state *MasterOfPuppetsActor) startMQTTActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	mqttProps := actor.PropsFromProducer(func() actor.Actor {
		return state.mqttActorProvider()
	}, actor.WithSupervisor(supervisor))
	return ctx.SpawnNamed(mqttProps, domain.ACTOR_ID_MQTT)
}

func (state *MasterOfPuppetsActor) startPollerActor(ctx actor.Context, builder *service.DefaultDiscoveryBuilder) (*actor.PID, error) {

	decider := func(reason interface{}) actor.Directive {
		log.Printf("handling failure for child. reason: %v", reason)
		return actor.RestartDirective
	}
	supervisor := actor.NewOneForOneStrategy(3, 10*time.Second, decider)

	pollerProps := actor.PropsFromProducer(func() actor.Actor {
		return NewPollerActor(&state.config, state.stationActor, state.mqttActor, state.eventStream, builder, state.logger)
	}, actor.WithSupervisor(supervisor))
	return ctx.SpawnNamed(pollerProps, domain.ACTOR_ID_POLLER)
}

func (state *MasterOfPuppetsActor) startHADiscoveryActor(ctx actor.Context, builder *service.DefaultDiscoveryBuilder) (*actor.PID, error) {

	decider := func(reason interface{}) actor.Directive {
		log.Printf("handling failure for child. reason: %v", reason)
		return actor.RestartDirective
	}
	supervisor := actor.NewOneForOneStrategy(1, 10*time.Second, decider)

	haDiscProps := actor.PropsFromProducer(func() actor.Actor {
		return NewHADiscoveryActor(state.mqttActor, builder, state.logger)
	}, actor.WithSupervisor(supervisor))
	return ctx.SpawnNamed(haDiscProps, domain.ACTOR_ID_HA_DISCOVERY)
}

func (state *MasterOfPuppetsActor) startClockSync(ctx actor.Context) {
	clockSync, err := NewClockSync(state.config.Station.SyncTimeInterval(), state.logger)
	if err == nil {
		err = clockSync.Start(ctx.ActorSystem(), ctx.Self())
	}
	if err != nil {
		state.logger.Error("master@starting station clock sync disabled", zap.Error(err))
		return
	}
	state.clockSync = clockSync
}

func (state *healthCheckResult) reset() {
	state.healthy = make(map[string]bool, len(healthCheckedActors))
	state.checksReceived = 0
}

func (state *healthCheckResult) allReceived() bool {
	return state.checksReceived == len(healthCheckedActors)
}

func (state *healthCheckResult) allHealthy() bool {
	for _, id := range healthCheckedActors {
		if !state.healthy[id] {
			return false
		}
	}
	return true
}

func (state *healthCheckResult) respond(ctx actor.Context) {
	resp := domain.ActorHealthResponse{
		Id:      domain.ACTOR_ID_MASTER,
		Healthy: state.allHealthy(),
	}
	if state.respondTo != nil {
		ctx.Send(state.respondTo, resp)
	}
}

package actor

import (
	"errors"
	"fmt"
	"time"

	"github.com/berfenger/ws3000mqtt/internal/config"
	"github.com/berfenger/ws3000mqtt/internal/core/domain"
	"github.com/berfenger/ws3000mqtt/internal/core/port"
	"github.com/berfenger/ws3000mqtt/internal/core/service"
	. "github.com/berfenger/ws3000mqtt/internal/util/actorutil"
	"github.com/berfenger/ws3000mqtt/pkg/ws3000"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

const (
	POLLER_STATE_STARTING = "starting"
	POLLER_STATE_POLLING  = "polling"
	POLLER_STATE_DEGRADED = "degraded"
	POLLER_STATE_FAILING  = "failing"
)

// PollerActor runs the polling cycle: station config when stale, sensor
// values, topology tracking and state publication.
type PollerActor struct {
	behavior   actor.Behavior
	stash      *Stash
	scheduler  *scheduler.TimerScheduler
	cancelTick scheduler.CancelFunc

	config       *config.Config
	stationActor *actor.PID
	mqttActor    *actor.PID
	eventStream  *eventstream.EventStream
	tracker      port.TopologyTracker
	builder      port.DiscoveryBuilder

	stationConfig *domain.StationConfig
	startedAt     time.Time
	observations  int
	settled       bool
	failures      int
	lastError     error
	degraded      bool
	unreachable   bool

	logger *zap.Logger
}

type pollTick struct {
}

func NewPollerActor(config *config.Config, stationActor, mqttActor *actor.PID, eventStream *eventstream.EventStream,
	builder port.DiscoveryBuilder, logger *zap.Logger) *PollerActor {
	act := &PollerActor{
		config:       config,
		stationActor: stationActor,
		mqttActor:    mqttActor,
		eventStream:  eventStream,
		tracker:      service.NewTopologyDetector(config.Station.DebounceThreshold),
		builder:      builder,
		behavior:     actor.NewBehavior(),
		stash:        &Stash{},
		logger:       ActorLogger(domain.ACTOR_ID_POLLER, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *PollerActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *PollerActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("poller@starting started")
		state.startedAt = time.Now()
		state.scheduler = scheduler.NewTimerScheduler(ctx)
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
		ctx.Send(ctx.Self(), pollTick{})
	case *actor.Restarting:
	default:
		state.logger.Debug("poller@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *PollerActor) DefaultReceive(ctx actor.Context) {
	if state.receiveQuery(ctx) {
		return
	}
	switch msg := ctx.Message().(type) {
	case pollTick:
		state.stop()
		if state.configStale() {
			state.logger.Debug("poller@default tick, reading station config")
			PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.stationActor, domain.ReadStationConfigRequest{}, state.requestTimeout(2)), func(err error) any {
				return domain.ReadStationConfigResponse{ActorResponseMixIn: ErrorResponse(err)}
			})
			state.behavior.BecomeStacked(state.WaitingConfigReceive)
			return
		}
		state.logger.Debug("poller@default tick")
		state.requestSensorValues(ctx)
	case *actor.Stopping:
		state.stop()
	default:
		state.logger.Debug("poller@default unhandled", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *PollerActor) WaitingConfigReceive(ctx actor.Context) {
	if state.receiveQuery(ctx) {
		return
	}
	switch msg := ctx.Message().(type) {
	case domain.ReadStationConfigResponse:
		if msg.HasResponseError() {
			state.logger.Warn("poller@waitingConfig ReadStationConfigResponse error", zap.Error(msg.GetResponseError()))
			state.behavior.UnbecomeStacked()
			state.cycleFailed(ctx, msg.GetResponseError())
			return
		}
		state.onStationConfig(msg)
		state.behavior.UnbecomeStacked()
		state.requestSensorValues(ctx)
	case *actor.Stopping:
		state.stop()
	default:
		state.logger.Debug("poller@waitingConfig stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *PollerActor) WaitingValuesReceive(ctx actor.Context) {
	if state.receiveQuery(ctx) {
		return
	}
	switch msg := ctx.Message().(type) {
	case domain.ReadSensorValuesResponse:
		state.behavior.UnbecomeStacked()
		if msg.HasResponseError() {
			state.logger.Warn("poller@waitingValues ReadSensorValuesResponse error", zap.Error(msg.GetResponseError()))
			state.cycleFailed(ctx, msg.GetResponseError())
			return
		}
		state.onSensorValues(ctx, msg)
		state.cycleDone(ctx)
	case *actor.Stopping:
		state.stop()
	default:
		state.logger.Debug("poller@waitingValues stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

// receiveQuery answers requests that do not touch the cycle, in any state.
func (state *PollerActor) receiveQuery(ctx actor.Context) bool {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("poller ActorHealthRequest")
		// transient misses only show in State, the station is given
		// max_transport_failures cycles before it counts as down
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_POLLER,
			Healthy: !state.unreachable,
			State:   state.stateName(),
		})
		return true
	case domain.GetTopologyRequest:
		resp := domain.GetTopologyResponse{Topology: state.tracker.Topology(), Settled: state.settled}
		if state.stationConfig != nil {
			cfg := *state.stationConfig
			resp.Config = &cfg
		}
		ForRequest(msg).Respond(ctx, resp)
		return true
	}
	return false
}

func (state *PollerActor) requestSensorValues(ctx actor.Context) {
	PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.stationActor, domain.ReadSensorValuesRequest{}, state.requestTimeout(1)), func(err error) any {
		return domain.ReadSensorValuesResponse{ActorResponseMixIn: ErrorResponse(err)}
	})
	state.behavior.BecomeStacked(state.WaitingValuesReceive)
}

func (state *PollerActor) onStationConfig(msg domain.ReadStationConfigResponse) {
	cfg, err := service.InterpretConfig(msg.Configuration, msg.Calibration, msg.Model, ws3000.DRIVER_VERSION)
	if err != nil {
		// without a unit system the topology stays not established
		state.logger.Warn("poller@waitingConfig station config not usable", zap.Error(err))
		cfg.Units = domain.UNITS_UNKNOWN
	} else {
		state.logger.Info("poller@waitingConfig station config read",
			zap.String("units", string(cfg.Units)), zap.String("model", cfg.Model),
			zap.Any("calibration", cfg.Calibration))
	}
	state.stationConfig = &cfg
	previous := state.tracker.Topology()
	if topology, changed := state.tracker.SetUnits(cfg.Units); changed {
		state.publishTopologyChange(previous, topology)
	}
}

func (state *PollerActor) onSensorValues(ctx actor.Context, msg domain.ReadSensorValuesResponse) {
	var cfg domain.StationConfig
	if state.stationConfig != nil {
		cfg = *state.stationConfig
	}
	reading, err := service.Interpret(cfg, msg.SensorValues)
	if err != nil {
		state.logger.Warn("poller@waitingValues reading partially dropped", zap.Error(err))
	}
	if !msg.ReadAt.IsZero() {
		reading.ReadAt = msg.ReadAt
	}

	previous := state.tracker.Topology()
	topology, changed := state.tracker.Observe(reading)
	if changed {
		state.publishTopologyChange(previous, topology)
	}
	state.checkDegraded(topology)
	state.checkSettled(topology)

	if !topology.Established() {
		state.logger.Debug("poller@waitingValues topology not established, nothing published")
		return
	}
	payloads := state.builder.BuildState(reading, topology)
	if len(payloads) > 0 {
		ctx.Send(state.mqttActor, domain.PublishStateRequest{Payloads: payloads})
	}
}

func (state *PollerActor) publishTopologyChange(previous, current domain.Topology) {
	state.logger.Info("poller topology changed",
		zap.String("units", string(current.Units)), zap.Stringers("active", current.Active))
	state.eventStream.Publish(domain.TopologyChangedEvent{Previous: previous, Current: current})
}

// checkSettled announces the topology once a full debounce window has been
// observed with a known unit system.
func (state *PollerActor) checkSettled(topology domain.Topology) {
	state.observations++
	if state.settled || !topology.Established() || state.observations < state.config.Station.DebounceThreshold {
		return
	}
	state.settled = true
	state.logger.Info("poller topology settled", zap.Stringers("active", topology.Active))
	state.eventStream.Publish(domain.TopologySettledEvent{Topology: topology})
}

// checkDegraded warns once when no channel showed up within the bootstrap
// timeout. Polling goes on, the station may still be initializing.
func (state *PollerActor) checkDegraded(topology domain.Topology) {
	if !topology.Empty() {
		state.degraded = false
		return
	}
	timeout := state.config.Station.BootstrapTimeout()
	if state.degraded || time.Since(state.startedAt) < timeout {
		return
	}
	state.degraded = true
	state.logger.Warn("poller degraded startup", zap.Duration("bootstrap_timeout", timeout),
		zap.Error(service.ErrTopologyDegraded))
}

func (state *PollerActor) cycleDone(ctx actor.Context) {
	if state.failures > 0 {
		state.logger.Info("poller station reachable again", zap.Int("failures", state.failures))
	}
	state.failures = 0
	state.lastError = nil
	state.unreachable = false
	state.schedule(ctx, state.config.Station.PollInterval())
}

// cycleFailed drops the cycle. Frame errors keep the polling pace, other
// errors are transport failures and back off linearly.
func (state *PollerActor) cycleFailed(ctx actor.Context, err error) {
	if errors.Is(err, ws3000.ErrFrame) {
		state.logger.Warn("poller cycle dropped, bad frame", zap.Error(err))
		state.schedule(ctx, state.config.Station.PollInterval())
		return
	}
	state.failures++
	state.lastError = err
	maxFailures := state.config.Station.MaxTransportFailures
	if maxFailures > 0 && state.failures >= maxFailures && !state.unreachable {
		state.unreachable = true
		ev := domain.StationUnreachable{Failures: state.failures, Error: err}
		state.logger.Error("poller " + ev.String())
		if parent := ctx.Parent(); parent != nil {
			ctx.Send(parent, ev)
		}
	}
	state.schedule(ctx, time.Duration(state.failures)*state.config.USB.WaitBeforeRetry())
}

func (state *PollerActor) schedule(ctx actor.Context, delay time.Duration) {
	state.stash.UnstashAll(ctx)
	state.cancelTick = state.scheduler.SendOnce(delay, ctx.Self(), pollTick{})
}

func (state *PollerActor) stop() {
	if state.cancelTick != nil {
		state.cancelTick()
		state.cancelTick = nil
	}
}

func (state *PollerActor) configStale() bool {
	if state.stationConfig == nil || !state.stationConfig.Units.Known() {
		return true
	}
	refresh := state.config.Station.ConfigRefresh()
	return refresh > 0 && time.Since(state.stationConfig.ReadAt) >= refresh
}

func (state *PollerActor) requestTimeout(exchanges int) time.Duration {
	return time.Duration(exchanges*4)*state.config.USB.Timeout() + time.Second
}

func (state *PollerActor) stateName() string {
	switch {
	case state.stationConfig == nil:
		return POLLER_STATE_STARTING
	case state.failures > 0:
		return POLLER_STATE_FAILING
	case state.degraded:
		return POLLER_STATE_DEGRADED
	}
	return POLLER_STATE_POLLING
}

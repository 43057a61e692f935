package actor

import (
	"errors"
	"fmt"
	"time"

	"github.com/berfenger/ws3000mqtt/internal/core/domain"
	"github.com/berfenger/ws3000mqtt/internal/util/actorutil"
	"github.com/berfenger/ws3000mqtt/pkg/ws3000"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

const (
	STATION_STATE_IDLE         = "idle"
	STATION_STATE_DISCONNECTED = "disconnected"
)

// StationActor owns the station handle. Exchanges are serialized through its
// mailbox, one at a time.
type StationActor struct {
	behavior    actor.Behavior
	stash       *actorutil.Stash
	reader      ws3000.StationReader
	taskTimeout time.Duration
	logger      *zap.Logger
}

type backgroundTaskResult struct {
	message any
	replyTo *actor.PID
	err     error
}

func NewStationActor(reader ws3000.StationReader, exchangeTimeout time.Duration, logger *zap.Logger) *StationActor {
	if exchangeTimeout <= 0 {
		exchangeTimeout = ws3000.DEFAULT_TIMEOUT
	}
	act := &StationActor{
		reader:      reader,
		behavior:    actor.NewBehavior(),
		stash:       &actorutil.Stash{},
		taskTimeout: 3 * exchangeTimeout,
		logger:      actorutil.ActorLogger(domain.ACTOR_ID_STATION, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *StationActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *StationActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("station@starting started")
		if err := state.reader.Open(); err != nil {
			state.logger.Error("station@starting could not open the station", zap.Error(err))
			state.behavior.Become(state.DisconnectedReceive)
		} else {
			state.behavior.Become(state.DefaultReceive)
		}
		state.stash.UnstashAll(ctx)
	case *actor.Restarting:
		state.close()
	default:
		state.logger.Debug("station@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

// DisconnectedReceive reopens the handle on the next request.
func (state *StationActor) DisconnectedReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_STATION,
			Healthy: false,
			State:   STATION_STATE_DISCONNECTED,
		})
	case domain.ReadStationConfigRequest, domain.ReadSensorValuesRequest, domain.SyncTimeRequest:
		state.logger.Info("station@disconnected reopening station")
		if err := state.reader.Open(); err != nil {
			state.logger.Warn("station@disconnected reopen failed", zap.Error(err))
			state.respondError(ctx, msg, err)
			return
		}
		state.behavior.Become(state.DefaultReceive)
		state.DefaultReceive(ctx)
	case *actor.Stopping, *actor.Restarting:
		state.close()
	default:
		state.logger.Debug("station@disconnected default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *StationActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("station@default ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_STATION,
			Healthy: true,
			State:   STATION_STATE_IDLE,
		})
	case domain.ReadStationConfigRequest:
		state.logger.Debug("station@default ReadStationConfigRequest")
		state.runExchange(ctx, actorutil.ForRequest(msg).ReplyTo(ctx), state.readStationConfig,
			func(err error) any {
				return domain.ReadStationConfigResponse{ActorResponseMixIn: actorutil.ErrorResponse(err)}
			})
	case domain.ReadSensorValuesRequest:
		state.logger.Debug("station@default ReadSensorValuesRequest")
		state.runExchange(ctx, actorutil.ForRequest(msg).ReplyTo(ctx), state.readSensorValues,
			func(err error) any {
				return domain.ReadSensorValuesResponse{ActorResponseMixIn: actorutil.ErrorResponse(err)}
			})
	case domain.SyncTimeRequest:
		state.logger.Debug("station@default SyncTimeRequest", zap.Time("time", msg.Time))
		state.runExchange(ctx, actorutil.ForRequest(msg).ReplyTo(ctx), func() (any, error) {
			if err := state.reader.SyncTime(msg.Time); err != nil {
				return nil, err
			}
			return domain.SyncTimeResponse{}, nil
		}, func(err error) any {
			return domain.SyncTimeResponse{ActorResponseMixIn: actorutil.ErrorResponse(err)}
		})
	case *actor.Stopping, *actor.Restarting:
		state.close()
	default:
		state.logger.Debug("station@default default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *StationActor) WaitingStation(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case backgroundTaskResult:
		state.logger.Debug("station@waiting backgroundTaskResult", zap.String("type", fmt.Sprintf("%T", msg.message)))
		if msg.replyTo != nil {
			ctx.Send(msg.replyTo, msg.message)
		}
		state.behavior.UnbecomeStacked()
		if msg.err != nil && !errors.Is(msg.err, ws3000.ErrFrame) {
			// the handle is suspect after a transport failure
			state.logger.Warn("station@waiting transport failure, closing station", zap.Error(msg.err))
			state.close()
			state.behavior.Become(state.DisconnectedReceive)
		}
		state.stash.UnstashAll(ctx)
	case *actor.Stopping, *actor.Restarting:
		state.close()
	default:
		state.logger.Debug("station@waiting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *StationActor) runExchange(ctx actor.Context, replyTo *actor.PID, fn func() (any, error), onError func(error) any) {
	actorutil.NewBackgroundTask(ctx, func() (*backgroundTaskResult, error) {
		resp, err := fn()
		if err != nil {
			return nil, err
		}
		return &backgroundTaskResult{message: resp, replyTo: replyTo}, nil
	}).Recover(func(err error) backgroundTaskResult {
		return backgroundTaskResult{message: onError(err), replyTo: replyTo, err: err}
	}).WithTimeout(state.taskTimeout).PipeTo(ctx.Self())
	state.behavior.BecomeStacked(state.WaitingStation)
}

func (state *StationActor) readStationConfig() (any, error) {
	configuration, err := state.reader.ReadDeviceConfiguration()
	if err != nil {
		return nil, err
	}
	calibration, err := state.reader.ReadCalibration()
	if err != nil {
		if !errors.Is(err, ws3000.ErrFrame) {
			return nil, err
		}
		state.logger.Warn("station: calibration values unreadable", zap.Error(err))
		calibration = nil
	}
	return domain.ReadStationConfigResponse{
		Model:         state.reader.Model(),
		Configuration: configuration,
		Calibration:   calibration,
	}, nil
}

func (state *StationActor) readSensorValues() (any, error) {
	values, err := state.reader.ReadSensorValues()
	if err != nil {
		return nil, err
	}
	return domain.ReadSensorValuesResponse{
		SensorValues: values,
		ReadAt:       time.Now(),
	}, nil
}

func (state *StationActor) respondError(ctx actor.Context, msg any, err error) {
	var resp any
	switch msg.(type) {
	case domain.ReadStationConfigRequest:
		resp = domain.ReadStationConfigResponse{ActorResponseMixIn: actorutil.ErrorResponse(err)}
	case domain.ReadSensorValuesRequest:
		resp = domain.ReadSensorValuesResponse{ActorResponseMixIn: actorutil.ErrorResponse(err)}
	case domain.SyncTimeRequest:
		resp = domain.SyncTimeResponse{ActorResponseMixIn: actorutil.ErrorResponse(err)}
	default:
		return
	}
	if req, ok := msg.(domain.ActorRequest); ok {
		if pid := actorutil.ForRequest(req).ReplyTo(ctx); pid != nil {
			ctx.Send(pid, resp)
		}
	}
}

func (state *StationActor) close() {
	if err := state.reader.Close(); err != nil {
		state.logger.Warn("station: close failed", zap.Error(err))
	}
}

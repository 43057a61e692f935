package actor

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/berfenger/ws3000mqtt/internal/config"
	"github.com/berfenger/ws3000mqtt/internal/core/domain"
	"github.com/berfenger/ws3000mqtt/internal/mqtt"
	"github.com/berfenger/ws3000mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

const (
	PUBLISH_TIMEOUT = 5 * time.Second
)

type MQTTActor struct {
	config   *config.Config
	behavior actor.Behavior
	stash    *actorutil.Stash
	client   *mqtt.MQTTClient
	logger   *zap.Logger
}

type MQTTConnected struct {
}

type MQTTSubscribed struct {
}

type MQTTConnectionLost struct {
	Error error
}

// HAStatusOnline is sent to the parent when the hub comes back online and
// expects discovery messages again.
type HAStatusOnline struct {
}

type publishResult struct {
	ReplyTo *actor.PID
	Error   error
}

func NewMQTTActor(config *config.Config, logger *zap.Logger) *MQTTActor {
	act := &MQTTActor{
		config:   config,
		behavior: actor.NewBehavior(),
		stash:    &actorutil.Stash{},
		logger:   actorutil.ActorLogger(domain.ACTOR_ID_MQTT, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *MQTTActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *MQTTActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("mqtt@starting started")

		state.client = mqtt.CreateMQTTClient(state.config, mqtt.OptsFromConfig(state.config), func(_ pahomqtt.Client) {
		}, func(_ pahomqtt.Client, err error) {
			ctx.Send(ctx.Self(), MQTTConnectionLost{Error: err})
		})

		state.client.Connect(func(err error) {
			if err != nil {
				ctx.Send(ctx.Self(), MQTTConnectionLost{Error: err})
			} else {
				ctx.Send(ctx.Self(), MQTTConnected{})
			}
		}, 10*time.Second)

	case MQTTConnected:
		state.logger.Debug("mqtt@starting connected")

		// handled once connected, its result is logged like any other message
		ctx.Send(ctx.Self(), state.client.BridgeStateMessage(mqtt.MQTT_PAYLOAD_ONLINE))

		// the hub publishes "online" on its status topic after a restart
		parent := ctx.Parent()
		state.client.SubscribeToHAStatus(func(c pahomqtt.Client, m pahomqtt.Message) {
			if string(m.Payload()) == mqtt.MQTT_PAYLOAD_ONLINE && parent != nil {
				ctx.Send(parent, HAStatusOnline{})
			}
		}, func(err error) {
			if err != nil {
				ctx.Send(ctx.Self(), MQTTConnectionLost{Error: err})
			} else {
				ctx.Send(ctx.Self(), MQTTSubscribed{})
			}
		}, 1*time.Second)
	case MQTTSubscribed:
		state.logger.Debug("mqtt@starting subscribed")
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	case MQTTConnectionLost:
		// if connection lost, stop actor and let supervisor decide
		state.logger.Error("mqtt@starting connection lost", zap.Error(msg.Error))
		panic(msg.Error)
	case *actor.Restarting:
		state.stop()
	default:
		state.logger.Debug("mqtt@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MQTTActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Restarting:
		state.stop()
	case *actor.Stopping:
		state.stop()
	case domain.ActorHealthRequest:
		state.logger.Debug("mqtt@default ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_MQTT,
			Healthy: true,
			State:   "idle",
		})
	case domain.PublishMessageRequest:
		state.logger.Debug("mqtt@default PublishMessageRequest", zap.String("topic", msg.Topic))
		state.publishMessage(ctx, msg.Topic, msg.Payload, msg.Retain, actorutil.ForRequest(msg).ReplyTo(ctx))
	case domain.PublishStateRequest:
		state.logger.Debug("mqtt@default PublishStateRequest", zap.Int("payloads", len(msg.Payloads)))
		state.publishState(msg.Payloads)
	case domain.PublishDiscoveryRequest:
		state.logger.Debug("mqtt@default PublishDiscoveryRequest",
			zap.Int("sensors", len(msg.Sensors)), zap.Int("removed", len(msg.Removed)))
		if err := state.publishHomeAssistantDiscovery(ctx, msg.Sensors, msg.Removed); err != nil {
			state.logger.Error("mqtt@default PublishDiscoveryRequest error", zap.Error(err))
		}
	case domain.SubscribeRetainedDiscoveryRequest:
		state.logger.Debug("mqtt@default SubscribeRetainedDiscoveryRequest")
		state.subscribeRetainedDiscovery(ctx, actorutil.ForRequest(msg).ReplyTo(ctx))
	case MQTTConnectionLost:
		// if connection lost, stop actor and let supervisor decide
		state.logger.Error("mqtt@default connection lost", zap.Error(msg.Error))
		panic(msg.Error)
	default:
		state.logger.Debug("mqtt@default unhandled", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

// publishState sends one non retained message per channel. A failed publish
// is logged and skipped.
func (state *MQTTActor) publishState(payloads []domain.StatePayload) {
	for _, p := range payloads {
		message, err := mqtt.StatePayloadToMessage(p)
		if err != nil {
			state.logger.Error("mqtt@publish could not render state", zap.String("state", p.StateId), zap.Error(err))
			continue
		}
		topic := state.client.SensorStateTopic(p.StateId)
		state.logger.Sugar().Debugf("mqtt@publish: state publish %s => %s", topic, message)
		state.client.Publish(topic, message, mqtt.QOS_STATE, false, func(err error) {
			if err != nil {
				state.logger.Warn("mqtt@publish state publish failed", zap.String("topic", topic), zap.Error(err))
			}
		}, PUBLISH_TIMEOUT)
	}
}

func (state *MQTTActor) publishMessage(ctx actor.Context, topic, payload string, retain bool, replyTo *actor.PID) {
	state.logger.Sugar().Debugf("mqtt@publish: message publish %s => %s", topic, payload)
	state.client.Publish(topic, payload, 1, retain, func(err error) {
		ctx.Send(ctx.Self(), publishResult{ReplyTo: replyTo, Error: err})
	}, PUBLISH_TIMEOUT)
	state.behavior.BecomeStacked(state.MessagePublishResultReceive)
}

func (state *MQTTActor) MessagePublishResultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case publishResult:
		if msg.Error != nil {
			state.logger.Error("mqtt@publishing could not publish a message", zap.Error(msg.Error))
		}
		if msg.ReplyTo != nil {
			ctx.Send(msg.ReplyTo, domain.PublishMessageResponse{
				ActorResponseMixIn: actorutil.ErrorResponse(msg.Error),
			})
		}
		state.behavior.UnbecomeStacked()
		state.stash.UnstashOldest(ctx)
	default:
		state.logger.Debug("mqtt@publishing stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

// publishHomeAssistantDiscovery upserts sensors and clears removed ones with
// an empty retained payload, which makes the hub delete the entity. Clears go
// through PublishMessageRequest so each failure is reported.
func (state *MQTTActor) publishHomeAssistantDiscovery(ctx actor.Context, sensors, removed []domain.GenericSensor) error {
	for i, msg := range state.client.HADiscoveryClearMessages(removed) {
		state.logger.Info("mqtt@publish: removing sensor", zap.String("unique_id", removed[i].UniqueId))
		ctx.Send(ctx.Self(), msg)
	}
	for i := range sensors {
		msg := mqtt.GenericSensorToHADiscoveryMessage(state.client, sensors[i])
		payload, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		topic := state.client.HADiscoverySensorTopic(sensors[i])
		state.client.Publish(topic, payload, mqtt.QOS_DISCOVERY, true, func(error) {}, 1*time.Second)
	}
	return nil
}

// subscribeRetainedDiscovery reports every retained config of the station
// device to replyTo. Subscribing again replays them.
func (state *MQTTActor) subscribeRetainedDiscovery(ctx actor.Context, replyTo *actor.PID) {
	if replyTo == nil {
		return
	}
	filter := state.client.HADiscoveryDeviceFilter(domain.SENSOR_TYPE_SENSOR, state.config.MQTT.StationId)
	system := ctx.ActorSystem()
	logger := state.logger
	state.client.Subscribe(filter, 1, func(_ pahomqtt.Client, m pahomqtt.Message) {
		if sensor, ok := mqtt.ParseHADiscoveryMessage(m.Topic(), m.Payload()); ok {
			system.Root.Send(replyTo, domain.RetainedDiscovery{Sensor: sensor})
		}
	}, func(err error) {
		if err != nil {
			logger.Warn("mqtt@subscribe retained discovery failed", zap.String("filter", filter), zap.Error(err))
		}
	}, 1*time.Second)
}

func (state *MQTTActor) stop() {
	state.logger.Debug("mqtt: disconnect")
	if state.client != nil {
		state.client.Publish(state.client.BridgeStateTopic(), mqtt.MQTT_PAYLOAD_OFFLINE, 0, true, func(error) {}, 500*time.Millisecond)
		state.client.Disconnect(500 * time.Millisecond)
	}
}

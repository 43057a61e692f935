package actor

import (
	"sync"

	"github.com/berfenger/ws3000mqtt/internal/core/domain"
	"github.com/berfenger/ws3000mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
)

// PublicationRecorder keeps what a test MQTT actor was asked to publish.
type PublicationRecorder struct {
	mu        sync.Mutex
	states    [][]domain.StatePayload
	discovery []domain.PublishDiscoveryRequest
	messages  []domain.PublishMessageRequest
	retained  []domain.GenericSensor
}

// SetRetained sets the discovery configs the fake broker replays on
// subscription.
func (r *PublicationRecorder) SetRetained(sensors ...domain.GenericSensor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retained = sensors
}

func (r *PublicationRecorder) States() [][]domain.StatePayload {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]domain.StatePayload(nil), r.states...)
}

func (r *PublicationRecorder) Discovery() []domain.PublishDiscoveryRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.PublishDiscoveryRequest(nil), r.discovery...)
}

func (r *PublicationRecorder) Messages() []domain.PublishMessageRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.PublishMessageRequest(nil), r.messages...)
}

// TestMQTTActor stands in for the MQTT actor when no broker is around.
type TestMQTTActor struct {
	recorder *PublicationRecorder
}

func NewTestMQTTActor(recorder *PublicationRecorder) *TestMQTTActor {
	return &TestMQTTActor{recorder: recorder}
}

func (state *TestMQTTActor) Receive(ctx actor.Context) {
	r := state.recorder
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_MQTT,
			Healthy: true,
			State:   "idle",
		})
	case domain.PublishStateRequest:
		r.mu.Lock()
		r.states = append(r.states, msg.Payloads)
		r.mu.Unlock()
	case domain.PublishDiscoveryRequest:
		r.mu.Lock()
		r.discovery = append(r.discovery, msg)
		r.mu.Unlock()
	case domain.PublishMessageRequest:
		r.mu.Lock()
		r.messages = append(r.messages, msg)
		r.mu.Unlock()
		if pid := actorutil.ForRequest(msg).ReplyTo(ctx); pid != nil {
			ctx.Send(pid, domain.PublishMessageResponse{})
		}
	case domain.SubscribeRetainedDiscoveryRequest:
		r.mu.Lock()
		retained := append([]domain.GenericSensor(nil), r.retained...)
		r.mu.Unlock()
		if pid := actorutil.ForRequest(msg).ReplyTo(ctx); pid != nil {
			for _, s := range retained {
				ctx.Send(pid, domain.RetainedDiscovery{Sensor: s})
			}
		}
	}
}

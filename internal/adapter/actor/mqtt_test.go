package actor

import (
	"testing"
	"time"

	"github.com/berfenger/ws3000mqtt/internal/core/domain"
	"github.com/berfenger/ws3000mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestTestMQTTActorRecordsPublications(t *testing.T) {

	assert := assert.New(t)

	as := actorutil.NewActorSystemWithZapLogger(zap.NewNop())
	defer as.Shutdown()

	recorder := &PublicationRecorder{}
	pid := as.Root.Spawn(actor.PropsFromProducer(func() actor.Actor { return NewTestMQTTActor(recorder) }))

	result, err := as.Root.RequestFuture(pid, domain.ActorHealthRequest{}, 2*time.Second).Result()
	require.NoError(t, err)
	assert.True(result.(domain.ActorHealthResponse).Healthy)

	as.Root.Send(pid, domain.PublishStateRequest{Payloads: []domain.StatePayload{{StateId: "ch1"}}})
	as.Root.Send(pid, domain.PublishDiscoveryRequest{Sensors: []domain.GenericSensor{{Id: "temp_ch1"}}})

	result, err = as.Root.RequestFuture(pid, domain.PublishMessageRequest{Topic: "ws3000/x", Payload: "y"}, 2*time.Second).Result()
	require.NoError(t, err)
	_, ok := result.(domain.PublishMessageResponse)
	assert.True(ok)

	// mailbox order guarantees the earlier messages were handled
	assert.Len(recorder.States(), 1)
	assert.Len(recorder.Discovery(), 1)
	assert.Equal("ws3000/x", recorder.Messages()[0].Topic)
}

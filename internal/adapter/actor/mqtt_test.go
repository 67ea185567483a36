package actor

import (
	"testing"
	"time"

	"sunwarden2mqtt/internal/core/domain"
	"sunwarden2mqtt/internal/util"
	"sunwarden2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestMQTTActor(t *testing.T) {

	cfg := util.LoadTestConfig()

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)

	context := as.Root

	es := eventstream.EventStream{}

	props := actor.PropsFromProducer(func() actor.Actor { return NewTestMQTTActor(&cfg, &es, logger) })
	pid := context.Spawn(props)

	msg := domain.ActorHealthRequest{}
	result, err := context.RequestFuture(pid, msg, 2*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	resp, ok := result.(domain.ActorHealthResponse)
	assert.True(t, ok)
	assert.NotNil(t, resp)

	es.Publish(domain.FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
			Id: domain.SENSOR_ID_INVERTER_AC_POWER,
		},
		Value: 245,
	})
	es.Publish(domain.FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
			Id: domain.SENSOR_ID_SOLAR_PANEL_POWER,
		},
		Value: 345.32,
	})

	context.Stop(pid)

	as.Shutdown()
}

func TestAbsorptionPayload(t *testing.T) {
	assert.True(t, isAbsorptionPayload("absorption"))
	assert.True(t, isAbsorptionPayload("Absorption"))
	assert.True(t, isAbsorptionPayload(" 4 "))
	assert.False(t, isAbsorptionPayload("bulk"))
	assert.False(t, isAbsorptionPayload("float"))
	assert.False(t, isAbsorptionPayload("5"))
}

package actor

import (
	"testing"
	"time"

	adactor "sunwarden2mqtt/internal/adapter/actor"
	"sunwarden2mqtt/internal/core/domain"
	"sunwarden2mqtt/internal/util"
	"sunwarden2mqtt/pkg/hoymiles_modbus"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func spawnTestMaster(t *testing.T) (*actor.ActorSystem, *actor.PID) {
	t.Helper()

	as := actor.NewActorSystem()
	context := as.Root

	cfg := util.LoadTestConfig()
	logCfg := zap.NewDevelopmentConfig()
	logCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)
	logger := zap.Must(logCfg.Build())

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewMasterOfPuppetsActor(cfg, func() *adactor.DTUActor {
			return adactor.NewDTUActor(hoymiles_modbus.CreateTestDTUModbusReader(), logger)
		}, func(es *eventstream.EventStream) *adactor.MQTTActor {
			return adactor.NewTestMQTTActor(&cfg, es, logger)
		}, logger)
	})
	pid, err := context.SpawnNamed(props, domain.ACTOR_ID_MASTER)
	require.NoError(t, err)
	return as, pid
}

func TestMasterActorHealthCheck(t *testing.T) {
	require := require.New(t)

	as, pid := spawnTestMaster(t)
	context := as.Root

	res, err := context.RequestFuture(pid, domain.ActorHealthRequest{}, 10*time.Second).Result()
	require.NoError(err)
	healthResp, ok := res.(domain.ActorHealthResponse)
	require.True(ok)

	require.True(healthResp.Healthy, "healthy is true")

	context.Stop(pid)
	as.Shutdown()
}

func TestMasterActorBatteryTelemetryFlow(t *testing.T) {
	require := require.New(t)

	as, pid := spawnTestMaster(t)
	context := as.Root

	now := time.Now()
	for i := 0; i < 5; i++ {
		context.Send(pid, domain.BatterySampleMessage{
			Sample: domain.BatterySample{
				Voltage:   25.20 + float64(i)*0.001,
				Current:   -4.0,
				Timestamp: now.Add(time.Duration(i) * time.Second),
			},
		})
	}
	context.Send(pid, domain.BatterySoCMessage{
		Reading: domain.BatterySoCReading{SoC: 81.5, LastUpdate: now},
	})

	res, err := context.RequestFuture(pid, domain.GetBatteryReportRequest{}, 10*time.Second).Result()
	require.NoError(err)
	report, ok := res.(domain.GetBatteryReportResponse)
	require.True(ok)
	require.InDelta(25.20, report.Report.Voltage, 0.01)
	// configured fallback resistance is in effect before any calculation
	require.True(report.Report.ResistanceInUseOk)
	require.InDelta(0.02, report.Report.ResistanceInUse, 1e-9)

	stateRes, err := context.RequestFuture(pid, domain.GetBatteryStateRequest{}, 10*time.Second).Result()
	require.NoError(err)
	batteryState, ok := stateRes.(domain.GetBatteryStateResponse)
	require.True(ok)
	require.InDelta(81.5, batteryState.SoC.SoC, 1e-9)

	context.Stop(pid)
	as.Shutdown()
}

func TestMasterActorLimiterStateQuery(t *testing.T) {
	require := require.New(t)

	as, pid := spawnTestMaster(t)
	context := as.Root

	res, err := context.RequestFuture(pid, domain.GetLimiterStateRequest{}, 10*time.Second).Result()
	require.NoError(err)
	limiterState, ok := res.(domain.GetLimiterStateResponse)
	require.True(ok)
	require.True(limiterState.Enabled)
	require.Equal(domain.PowerLimiterShutdown, limiterState.State)
	require.Equal(int32(-1), limiterState.LastRequestedLimit)

	// runtime disable through the same path the MQTT switch uses
	enableRes, err := context.RequestFuture(pid, domain.PowerLimiterEnableRequest{Enable: false}, 10*time.Second).Result()
	require.NoError(err)
	enableResp, ok := enableRes.(domain.PowerLimiterEnableResponse)
	require.True(ok)
	require.True(enableResp.Changed)

	res, err = context.RequestFuture(pid, domain.GetLimiterStateRequest{}, 10*time.Second).Result()
	require.NoError(err)
	limiterState, ok = res.(domain.GetLimiterStateResponse)
	require.True(ok)
	require.False(limiterState.Enabled)

	context.Stop(pid)
	as.Shutdown()
}

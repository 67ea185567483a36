package actor

import (
	"fmt"
	"time"

	"sunwarden2mqtt/internal/config"
	"sunwarden2mqtt/internal/core/domain"
	"sunwarden2mqtt/internal/core/events"
	"sunwarden2mqtt/internal/core/service"
	. "sunwarden2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

const batteryGuardReportInterval = 60 * time.Second

// BatteryGuardActor owns the battery state estimator. It ingests the
// battery telemetry stream and serves open circuit voltage / resistance
// queries, plus a periodic diagnostics report.
type BatteryGuardActor struct {
	behavior  actor.Behavior
	stash     *Stash
	scheduler *scheduler.TimerScheduler

	config      *config.Config
	eventStream *eventstream.EventStream
	estimator   *service.BatteryStateEstimator
	lastSoC     domain.BatterySoCReading

	logger *zap.Logger
}

type batteryGuardReportTick struct {
}

func NewBatteryGuardActor(config *config.Config, eventStream *eventstream.EventStream, logger *zap.Logger) *BatteryGuardActor {
	act := &BatteryGuardActor{
		config:      config,
		behavior:    actor.NewBehavior(),
		stash:       &Stash{},
		logger:      ActorLogger(domain.ACTOR_ID_BATTERY_GUARD, logger),
		eventStream: eventStream,
		estimator:   service.NewBatteryStateEstimator(config.BatteryGuardConfig, logger),
	}
	act.behavior.Become(act.DefaultReceive)
	return act
}

func (state *BatteryGuardActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *BatteryGuardActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("battery_guard@default started")
		state.scheduler = scheduler.NewTimerScheduler(ctx)
		if state.estimator.Enabled() {
			state.scheduler.RequestOnce(batteryGuardReportInterval, ctx.Self(), batteryGuardReportTick{})
		}
	case domain.ActorHealthRequest:
		state.logger.Debug("battery_guard@default ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_BATTERY_GUARD,
			Healthy: true,
			State:   "idle",
		})
	case domain.BatterySampleMessage:
		state.estimator.UpdateBatteryValues(msg.Sample.Voltage, msg.Sample.Current, msg.Sample.Timestamp)
		for _, ev := range events.BatterySampleToUpdateEvents(msg.Sample) {
			state.eventStream.Publish(ev)
		}
	case domain.BatterySoCMessage:
		state.lastSoC = msg.Reading
		for _, ev := range events.BatterySoCToUpdateEvents(msg.Reading) {
			state.eventStream.Publish(ev)
		}
	case batteryGuardReportTick:
		report := state.estimator.Report(time.Now())
		state.logReport(report)
		for _, ev := range events.BatteryGuardReportToUpdateEvents(report) {
			state.eventStream.Publish(ev)
		}
		state.scheduler.RequestOnce(batteryGuardReportInterval, ctx.Self(), batteryGuardReportTick{})
	case domain.GetBatteryStateRequest:
		state.logger.Debug("battery_guard@default GetBatteryStateRequest")
		now := time.Now()
		resp := domain.GetBatteryStateResponse{
			SoC: state.lastSoC,
		}
		resp.OpenCircuitVoltage, resp.OpenCircuitVoltageOk = state.estimator.OpenCircuitVoltage(now)
		resp.InternalResistance, resp.InternalResistanceOk = state.estimator.InternalResistance()
		ctx.Respond(resp)
	case domain.GetBatteryReportRequest:
		state.logger.Debug("battery_guard@default GetBatteryReportRequest")
		ctx.Respond(domain.GetBatteryReportResponse{
			Report: state.estimator.Report(time.Now()),
		})
	default:
		state.logger.Debug("battery_guard@default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *BatteryGuardActor) logReport(report domain.BatteryGuardReport) {
	fields := []zap.Field{
		zap.Float64("voltage", report.Voltage),
		zap.Float64("voltage_avg", report.AveragedVoltage),
		zap.Uint("resistance_samples", report.CalculatedCount),
		zap.Int64("sample_period_ms", report.SamplePeriodMillis),
		zap.Uint("ocv_not_available", report.NotAvailableCounter),
	}
	if report.OpenCircuitVoltageOk {
		fields = append(fields, zap.Float64("open_circuit_voltage", report.OpenCircuitVoltage))
	}
	if report.ResistanceInUseOk {
		fields = append(fields, zap.Float64("resistance_ohm", report.ResistanceInUse))
	}
	state.logger.Info("battery_guard: periodic report", fields...)
}

package actor

import (
	"fmt"
	"time"

	"sunwarden2mqtt/internal/config"
	"sunwarden2mqtt/internal/core/domain"
	"sunwarden2mqtt/internal/core/events"
	"sunwarden2mqtt/internal/core/port"
	"sunwarden2mqtt/internal/core/service"
	. "sunwarden2mqtt/internal/util/actorutil"
	"sunwarden2mqtt/pkg/hoymiles_modbus"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

// PowerLimiterActor drives the zero-feed control loop. Every tick it asks
// the DTU actor for a fresh inverter feed, runs the limiter logic over the
// cached telemetry snapshot and pushes the resulting commands back to the
// DTU.
type PowerLimiterActor struct {
	ActorWithStates
	scheduler *scheduler.TimerScheduler
	stash     *Stash

	config      *config.Config
	dtuActor    *actor.PID
	eventStream *eventstream.EventStream
	logic       port.PowerLimiterLogic

	battery domain.BatterySoCReading
	solar   domain.SolarChargerReading
	meter   domain.PowerMeterReading

	logger *zap.Logger
}

type powerLimiterTick struct {
}

func NewPowerLimiterActor(config *config.Config, dtuActor *actor.PID, eventStream *eventstream.EventStream, logger *zap.Logger) *PowerLimiterActor {
	act := &PowerLimiterActor{
		config:      config,
		dtuActor:    dtuActor,
		stash:       &Stash{},
		logger:      ActorLogger(domain.ACTOR_ID_POWER_LIMITER, logger),
		eventStream: eventStream,
		logic:       service.NewDefaultPowerLimiterLogic(config.PowerLimiterConfig, logger),
		ActorWithStates: ActorWithStates{
			Behavior: actor.NewBehavior(),
		},
	}
	act.Become(PLStartingState{
		actor: act,
	})
	return act
}

func (state *PowerLimiterActor) Receive(context actor.Context) {
	state.Behavior.Receive(context)
}

// Starting state

type PLStartingState struct {
	ActorState
	actor *PowerLimiterActor
}

func (state PLStartingState) Name() string {
	return "starting"
}

func (state PLStartingState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.actor.logger.Debug("power_limiter@starting started")

		state.actor.scheduler = scheduler.NewTimerScheduler(ctx)

		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.actor.dtuActor, domain.GetDeviceInfoRequest{}, 3*time.Second), func(err error) any {
			return domain.GetDeviceInfoResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: err,
				},
			}
		})
		state.actor.Become(PLWaitingInfoState{
			actor: state.actor,
		})
	case *actor.Restarting:
	default:
		state.actor.logger.Debug("power_limiter@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.actor.stash.Stash(ctx, msg)
	}
}

// Waiting info state

type PLWaitingInfoState struct {
	ActorState
	actor *PowerLimiterActor
}

func (state PLWaitingInfoState) Name() string {
	return "waitingInfo"
}

func (state PLWaitingInfoState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.GetDeviceInfoResponse:
		if msg.HasResponseError() {
			state.actor.logger.Error("power_limiter@waitingInfo GetDeviceInfoResponse error", zap.Error(msg.GetResponseError()))
			panic(msg.GetResponseError())
		}
		state.actor.logger.Sugar().Infof("power_limiter@waitingInfo: controlling %s %s (serial %s)",
			msg.DTU.Manufacturer, msg.DTU.Model, msg.DTU.Serial)

		// publish initial control entity states
		state.actor.updateEnableSwitchState()
		state.actor.updateTargetConsumptionState()

		state.actor.scheduler.RequestOnce(state.actor.tickInterval(), ctx.Self(), powerLimiterTick{})
		state.actor.Become(PLControlState{
			actor: state.actor,
		})
		state.actor.stash.UnstashAll(ctx)
	default:
		state.actor.logger.Debug("power_limiter@waitingInfo: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.actor.stash.Stash(ctx, msg)
	}
}

// Control state

type PLControlState struct {
	ActorState
	actor *PowerLimiterActor
}

func (state PLControlState) Name() string {
	return "control"
}

func (state PLControlState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.actor.logger.Debug("power_limiter@control ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_POWER_LIMITER,
			Healthy: true,
			State:   state.actor.logic.State().String(),
		})
	case domain.BatterySoCMessage:
		state.actor.battery = msg.Reading
	case domain.SolarChargerMessage:
		state.actor.solar = msg.Reading
	case domain.PowerMeterMessage:
		state.actor.meter = msg.Reading
	case powerLimiterTick:
		state.actor.logger.Debug("power_limiter@control tick")
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.actor.dtuActor, domain.GetInverterFeedRequest{}, 3*time.Second), func(err error) any {
			return domain.GetInverterFeedResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: err,
				},
			}
		})
		// schedule next tick
		state.actor.scheduler.RequestOnce(state.actor.tickInterval(), ctx.Self(), powerLimiterTick{})
		state.actor.BecomeStacked(PLWaitingFeedState{
			actor: state.actor,
		})
	case domain.SendInverterCommandResponse:
		if msg.HasResponseError() {
			state.actor.logger.Error("power_limiter@control SendInverterCommandResponse error", zap.Error(msg.GetResponseError()))
		}
	case domain.PowerLimiterRequest:
		switch cmd := msg.(type) {
		case domain.PowerLimiterEnableRequest:
			state.actor.logger.Sugar().Debugf("power_limiter@control: cmd enable %t", cmd.Enable)
			changed := state.actor.logic.SetEnabled(cmd.Enable)
			state.actor.updateEnableSwitchState()
			if ctx.Sender() != nil {
				ctx.Respond(domain.PowerLimiterEnableResponse{Changed: changed})
			}
		case domain.PowerLimiterSetTargetConsumptionRequest:
			state.actor.logger.Sugar().Debugf("power_limiter@control: cmd setTargetConsumption %f", cmd.TargetConsumptionWatt)
			state.actor.logic.SetTargetConsumption(cmd.TargetConsumptionWatt)
			state.actor.updateTargetConsumptionState()
			if ctx.Sender() != nil {
				ctx.Respond(domain.PowerLimiterSetTargetConsumptionResponse{
					TargetConsumptionWatt: state.actor.logic.TargetConsumption(),
				})
			}
		}
	case domain.GetLimiterStateRequest:
		state.actor.logger.Debug("power_limiter@control GetLimiterStateRequest")
		ctx.Respond(domain.GetLimiterStateResponse{
			State:              state.actor.logic.State(),
			Enabled:            state.actor.logic.Enabled(),
			DischargeEnabled:   state.actor.logic.DischargeEnabled(),
			DirectFeedPercent:  state.actor.logic.DirectFeedPercent(),
			LastRequestedLimit: state.actor.logic.LastRequestedLimit(),
		})
	default:
		state.actor.logger.Debug("power_limiter@control recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

// Waiting feed state

type PLWaitingFeedState struct {
	ActorState
	actor *PowerLimiterActor
}

func (state PLWaitingFeedState) Name() string {
	return "waitingFeed"
}

func (state PLWaitingFeedState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.GetInverterFeedResponse:
		now := time.Now()
		var feed *domain.InverterFeed
		if msg.HasResponseError() {
			state.actor.logger.Warn("power_limiter@waitingFeed GetInverterFeedResponse error", zap.Error(msg.GetResponseError()))
		} else if msg.Feed != nil {
			feed = feedFromModbus(msg.Feed, now)
			for _, ev := range events.InverterFeedToUpdateEvents(*feed) {
				state.actor.eventStream.Publish(ev)
			}
		}

		result := state.actor.logic.Tick(domain.PowerLimiterInput{
			Feed:    feed,
			Battery: state.actor.battery,
			Solar:   state.actor.solar,
			Meter:   state.actor.meter,
		}, now)

		for _, ev := range events.PowerLimiterTickToUpdateEvents(result) {
			state.actor.eventStream.Publish(ev)
		}

		if !result.NoOp() {
			PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.actor.dtuActor, domain.SendInverterCommandRequest{
				Start:     result.SendStart,
				Stop:      result.SendStop,
				SetLimit:  result.SendLimit,
				LimitWatt: result.LimitWatt,
			}, 3*time.Second), func(err error) any {
				return domain.SendInverterCommandResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				}
			})
		}

		state.actor.UnbecomeStacked()
		state.actor.stash.UnstashAll(ctx)
	default:
		state.actor.logger.Debug("power_limiter@waitingFeed: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.actor.stash.Stash(ctx, msg)
	}
}

// Other actor function helpers

func (state *PowerLimiterActor) tickInterval() time.Duration {
	return time.Duration(state.config.PowerLimiterConfig.IntervalMillis) * time.Millisecond
}

func (state *PowerLimiterActor) updateEnableSwitchState() {
	state.eventStream.Publish(events.PowerLimiterEnableSwitchUpdateEvents(state.logic.Enabled()))
}

func (state *PowerLimiterActor) updateTargetConsumptionState() {
	for _, ev := range events.TargetConsumptionUpdateEvents(state.logic.TargetConsumption()) {
		state.eventStream.Publish(ev)
	}
}

func feedFromModbus(feed *hoymiles_modbus.InverterFeed, now time.Time) *domain.InverterFeed {
	return &domain.InverterFeed{
		Producing:          feed.Producing,
		ACPowerWatt:        feed.ACPowerWatt,
		DCVoltage:          feed.DCVoltage,
		DCPowerWatt:        feed.DCPowerWatt,
		TemperatureCelsius: feed.TemperatureCelsius,
		EfficiencyPercent:  feed.EfficiencyPercent,
		LastUpdate:         now,
	}
}

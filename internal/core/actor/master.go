package actor

import (
	"errors"
	"fmt"
	"log"
	"time"

	adactor "sunwarden2mqtt/internal/adapter/actor"
	"sunwarden2mqtt/internal/config"
	"sunwarden2mqtt/internal/core/domain"
	"sunwarden2mqtt/internal/core/events"
	. "sunwarden2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"go.uber.org/zap"
)

type MQTTActorProvider func(*eventstream.EventStream) *adactor.MQTTActor

type DTUActorProvider func() *adactor.DTUActor

type MasterOfPuppetsActor struct {
	config   config.Config
	behavior actor.Behavior
	stash    *Stash

	currentHealthCheck healthCheckResult
	eventStream        *eventstream.EventStream
	dtuActor           *actor.PID
	mqttActor          *actor.PID
	batteryGuardActor  *actor.PID
	powerLimiterActor  *actor.PID
	dtuActorProvider   DTUActorProvider
	mqttActorProvider  MQTTActorProvider
	logger             *zap.Logger
}

type healthCheckResult struct {
	dtuActorHealthy          bool
	mqttActorHealthy         bool
	batteryGuardActorHealthy bool
	powerLimiterActorHealthy bool
	checksReceived           int
	respondTo                *actor.PID
}

func NewMasterOfPuppetsActor(config config.Config, dtuActorProvider DTUActorProvider, mqttActorProvider MQTTActorProvider, logger *zap.Logger) *MasterOfPuppetsActor {
	act := &MasterOfPuppetsActor{
		config:            config,
		behavior:          actor.NewBehavior(),
		stash:             &Stash{},
		logger:            ActorLogger(domain.ACTOR_ID_MASTER, logger),
		eventStream:       &eventstream.EventStream{},
		dtuActorProvider:  dtuActorProvider,
		mqttActorProvider: mqttActorProvider,
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

		state.currentHealthCheck = healthCheckResult{}
		state.currentHealthCheck.reset()

		// start DTU child
		dtuActorPID, err := state.startDTUActor(ctx)
		if err != nil {
			panic(err)
		}
		state.dtuActor = dtuActorPID

		// start MQTT child
		mqttActorPID, err := state.startMQTTActor(ctx)
		if err != nil {
			panic(err)
		}
		state.mqttActor = mqttActorPID

		// start BatteryGuard child
		batteryGuardActorPID, err := state.startBatteryGuardActor(ctx)
		if err != nil {
			panic(err)
		}
		state.batteryGuardActor = batteryGuardActorPID

		// start PowerLimiter child
		powerLimiterActorPID, err := state.startPowerLimiterActor(ctx)
		if err != nil {
			panic(err)
		}
		state.powerLimiterActor = powerLimiterActorPID

		// start HA Discovery
		if state.config.MQTT.HADiscoveryEnable {
			_, err := state.startHADiscoveryActor(ctx)
			if err != nil {
				panic(err)
			}
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
		// DTU Actor Request
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.dtuActor, domain.ActorHealthRequest{}, 500*time.Millisecond), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_DTU,
				Healthy: false,
			}
		})
		// MQTT Actor Request
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.mqttActor, domain.ActorHealthRequest{}, 500*time.Millisecond), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_MQTT,
				Healthy: false,
			}
		})
		// BatteryGuard Actor Request
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.batteryGuardActor, domain.ActorHealthRequest{}, 500*time.Millisecond), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_BATTERY_GUARD,
				Healthy: false,
			}
		})
		// PowerLimiter Actor Request
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.powerLimiterActor, domain.ActorHealthRequest{}, 500*time.Millisecond), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_POWER_LIMITER,
				Healthy: false,
			}
		})

		ctx.SetReceiveTimeout(1 * time.Second)

		state.behavior.BecomeStacked(state.HealthCheckReceive)
	case adactor.ParsedCommand:
		// redirect parsedCommand to actor
		state.logger.Debug("master@default parsedCommand", zap.Any("command", msg.Command))
		if msg.Command != nil {
			cmd, err := ParsedMQTTCommandToCommand(*msg.Command)
			if err == nil && cmd != nil {
				switch pcmd := cmd.(type) {
				case domain.PowerLimiterRequest:
					ctx.Send(state.powerLimiterActor, pcmd)
				}
			}
		}
	case domain.BatterySampleMessage:
		ctx.Send(state.batteryGuardActor, msg)
	case domain.BatterySoCMessage:
		ctx.Send(state.batteryGuardActor, msg)
		ctx.Send(state.powerLimiterActor, msg)
	case domain.PowerMeterMessage:
		ctx.Send(state.powerLimiterActor, msg)
		for _, ev := range events.PowerMeterToUpdateEvents(msg.Reading) {
			state.eventStream.Publish(ev)
		}
	case domain.SolarChargerMessage:
		ctx.Send(state.powerLimiterActor, msg)
		for _, ev := range events.SolarChargerToUpdateEvents(msg.Reading) {
			state.eventStream.Publish(ev)
		}
	case domain.GetBatteryStateRequest:
		ctx.Forward(state.batteryGuardActor)
	case domain.GetBatteryReportRequest:
		ctx.Forward(state.batteryGuardActor)
	case domain.GetLimiterStateRequest:
		ctx.Forward(state.powerLimiterActor)
	case domain.PowerLimiterEnableRequest:
		ctx.Forward(state.powerLimiterActor)
	case domain.PowerLimiterSetTargetConsumptionRequest:
		ctx.Forward(state.powerLimiterActor)
	case *actor.Terminated:
		// if some actor fails on boot, terminate
		if msg.Who.Id == fmt.Sprintf("%s/%s", domain.ACTOR_ID_MASTER, domain.ACTOR_ID_DTU) {
			state.logger.Error("master@default dtu error")
			panic(errors.New("dtu terminated"))
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
		state.currentHealthCheck.respond(ctx)
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case domain.ActorHealthResponse:
		state.logger.Debug("master@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy))
		state.currentHealthCheck.checksReceived++
		if msg.Healthy {
			switch msg.Id {
			case domain.ACTOR_ID_DTU:
				state.currentHealthCheck.dtuActorHealthy = true
			case domain.ACTOR_ID_MQTT:
				state.currentHealthCheck.mqttActorHealthy = true
			case domain.ACTOR_ID_BATTERY_GUARD:
				state.currentHealthCheck.batteryGuardActorHealthy = true
			case domain.ACTOR_ID_POWER_LIMITER:
				state.currentHealthCheck.powerLimiterActorHealthy = true
			}
		}
		if state.currentHealthCheck.allReceived() {

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

func (state *MasterOfPuppetsActor) startDTUActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	dtuProps := actor.PropsFromProducer(func() actor.Actor {
		return state.dtuActorProvider()
	}, actor.WithSupervisor(supervisor))
	dtuActorPID, err := ctx.SpawnNamed(dtuProps, domain.ACTOR_ID_DTU)
	if err != nil {
		return nil, err
	}

	return dtuActorPID, nil
}

func (state *MasterOfPuppetsActor) startMQTTActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	mqttProps := actor.PropsFromProducer(func() actor.Actor {
		return state.mqttActorProvider(state.eventStream)
	}, actor.WithSupervisor(supervisor))
	mqttActorPID, err := ctx.SpawnNamed(mqttProps, domain.ACTOR_ID_MQTT)
	if err != nil {
		return nil, err
	}

	return mqttActorPID, nil
}

func (state *MasterOfPuppetsActor) startBatteryGuardActor(ctx actor.Context) (*actor.PID, error) {

	decider := func(reason interface{}) actor.Directive {
		log.Printf("handling failure for child. reason: %v", reason)
		return actor.RestartDirective
	}
	supervisor := actor.NewOneForOneStrategy(1, 10*time.Second, decider)

	guardProps := actor.PropsFromProducer(func() actor.Actor {
		return NewBatteryGuardActor(&state.config, state.eventStream, state.logger)
	}, actor.WithSupervisor(supervisor))
	guardPID, err := ctx.SpawnNamed(guardProps, domain.ACTOR_ID_BATTERY_GUARD)
	if err != nil {
		return nil, err
	}

	return guardPID, nil
}

func (state *MasterOfPuppetsActor) startPowerLimiterActor(ctx actor.Context) (*actor.PID, error) {

	decider := func(reason interface{}) actor.Directive {
		log.Printf("handling failure for child. reason: %v", reason)
		return actor.RestartDirective
	}
	supervisor := actor.NewOneForOneStrategy(1, 10*time.Second, decider)

	limiterProps := actor.PropsFromProducer(func() actor.Actor {
		return NewPowerLimiterActor(&state.config, state.dtuActor, state.eventStream, state.logger)
	}, actor.WithSupervisor(supervisor))
	limiterPID, err := ctx.SpawnNamed(limiterProps, domain.ACTOR_ID_POWER_LIMITER)
	if err != nil {
		return nil, err
	}

	return limiterPID, nil
}

func (state *MasterOfPuppetsActor) startHADiscoveryActor(ctx actor.Context) (*actor.PID, error) {

	decider := func(reason interface{}) actor.Directive {
		log.Printf("handling failure for child. reason: %v", reason)
		return actor.RestartDirective
	}
	supervisor := actor.NewOneForOneStrategy(1, 10*time.Second, decider)

	haDiscProps := actor.PropsFromProducer(func() actor.Actor {
		return NewHADiscoveryActor(&state.config, state.dtuActor, state.mqttActor, state.logger)
	}, actor.WithSupervisor(supervisor))
	haDiscPID, err := ctx.SpawnNamed(haDiscProps, domain.ACTOR_ID_HA_DISCOVERY)
	if err != nil {
		return nil, err
	}

	return haDiscPID, nil
}

func (state *healthCheckResult) reset() {
	state.dtuActorHealthy = false
	state.mqttActorHealthy = false
	state.batteryGuardActorHealthy = false
	state.powerLimiterActorHealthy = false
	state.checksReceived = 0
}

func (state *healthCheckResult) allReceived() bool {
	return state.checksReceived == 4
}

func (state *healthCheckResult) allHealthy() bool {
	return state.dtuActorHealthy && state.mqttActorHealthy &&
		state.batteryGuardActorHealthy && state.powerLimiterActorHealthy
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

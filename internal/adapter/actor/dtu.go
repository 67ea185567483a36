package actor

import (
	"fmt"
	"time"

	"sunwarden2mqtt/internal/core/domain"
	"sunwarden2mqtt/internal/util/actorutil"
	"sunwarden2mqtt/pkg/hoymiles_modbus"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/reugn/go-quartz/logger"
	"go.uber.org/zap"
)

// DTUActor serializes Modbus access to the DTU gateway. Requests are run on
// a background task while the actor stashes everything else.
type DTUActor struct {
	behavior actor.Behavior
	stash    *actorutil.Stash
	dtu      hoymiles_modbus.DTUModbusReader
	logger   *zap.Logger
}

type backgroundTaskResult struct {
	message any
	replyTo *actor.PID
}

func NewDTUActor(dtu hoymiles_modbus.DTUModbusReader, logger *zap.Logger) *DTUActor {
	act := &DTUActor{
		dtu:      dtu,
		behavior: actor.NewBehavior(),
		stash:    &actorutil.Stash{},
		logger:   actorutil.ActorLogger("dtu", logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *DTUActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *DTUActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("dtu@starting started")
		if err := state.dtu.Open(); err != nil {
			panic(err)
		}
		if err := state.dtu.Validate(); err != nil {
			panic(err)
		}
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	case *actor.Restarting:
		state.dtu.Close()
	default:
		state.logger.Debug("dtu@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *DTUActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("dtu@default: ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_DTU,
			Healthy: true,
			State:   "idle",
		})
	case domain.GetDeviceInfoRequest:
		state.logger.Debug("dtu@default: GetDeviceInfoRequest")
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)

		actorutil.MapBackgroundTask(actorutil.NewBackgroundTask(ctx, state.getDeviceInfo),
			mapTaskResult[domain.GetDeviceInfoResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.GetDeviceInfoResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				},
				replyTo: sender,
			}
		}).WithTimeout(2 * time.Second).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingModbus)
	case domain.GetInverterFeedRequest:
		state.logger.Debug("dtu@default: GetInverterFeedRequest")
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)

		actorutil.MapBackgroundTask(actorutil.NewBackgroundTask(ctx, state.getInverterFeed),
			mapTaskResult[domain.GetInverterFeedResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.GetInverterFeedResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				},
				replyTo: sender,
			}
		}).WithTimeout(2 * time.Second).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingModbus)
	case domain.SendInverterCommandRequest:
		state.logger.Debug("dtu@default: SendInverterCommandRequest")
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)

		actorutil.MapBackgroundTask(actorutil.NewBackgroundTaskNoError(ctx, func() *domain.SendInverterCommandResponse {
			a := state.sendInverterCommand(msg)
			return &a
		}),
			mapTaskResult[domain.SendInverterCommandResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.SendInverterCommandResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				},
				replyTo: sender,
			}
		}).WithTimeout(2 * time.Second).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingModbus)
	case *actor.Stopping:
		state.dtu.Close()
	default:
		state.logger.Debug("dtu@default default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *DTUActor) WaitingModbus(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case backgroundTaskResult:
		state.logger.Debug("dtu@WaitingModbus backgroundTaskResult", zap.String("type", fmt.Sprintf("%T", msg.message)))
		ctx.Send(msg.replyTo, msg.message)
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case *actor.Stopping:
		state.dtu.Close()
	default:
		state.logger.Debug("dtu@WaitingModbus stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (a *DTUActor) getDeviceInfo() (*domain.GetDeviceInfoResponse, error) {
	info, err := a.dtu.GetInfo()
	if err != nil {
		logger.Error(err)
		return nil, err
	}
	return &domain.GetDeviceInfoResponse{
		DTU: info,
	}, nil
}

func (a *DTUActor) getInverterFeed() (*domain.GetInverterFeedResponse, error) {
	feed, err := a.dtu.GetFeed()
	if err != nil {
		logger.Error(err)
		return nil, err
	}
	return &domain.GetInverterFeedResponse{
		Feed: feed,
	}, nil
}

// sendInverterCommand applies the batched start/stop and limit commands in
// order: start or stop first, then the non-persistent absolute limit.
func (a *DTUActor) sendInverterCommand(cmd domain.SendInverterCommandRequest) domain.SendInverterCommandResponse {
	if cmd.Start {
		if err := a.dtu.StartInverter(); err != nil {
			logger.Error(err)
			return commandError(err)
		}
	}
	if cmd.Stop {
		if err := a.dtu.StopInverter(); err != nil {
			logger.Error(err)
			return commandError(err)
		}
	}
	if cmd.SetLimit {
		if err := a.dtu.SetPowerLimit(cmd.LimitWatt, hoymiles_modbus.PowerLimitAbsoluteNonPersistent); err != nil {
			logger.Error(err)
			return commandError(err)
		}
	}
	return domain.SendInverterCommandResponse{}
}

func commandError(err error) domain.SendInverterCommandResponse {
	return domain.SendInverterCommandResponse{
		ActorResponseMixIn: domain.ActorResponseMixIn{
			ResponseError: err,
		},
	}
}

func mapTaskResult[T any](sender *actor.PID) func(t *T) *backgroundTaskResult {
	return func(t *T) *backgroundTaskResult {
		return &backgroundTaskResult{
			message: *t,
			replyTo: sender,
		}
	}
}

package actor

import (
	"context"
	"fmt"
	"time"

	"github.com/berfenger/sensorist2mqtt/internal/core/domain"
	"github.com/berfenger/sensorist2mqtt/internal/core/port"
	"github.com/berfenger/sensorist2mqtt/internal/metrics"
	"github.com/berfenger/sensorist2mqtt/internal/util/actorutil"
	"github.com/berfenger/sensorist2mqtt/pkg/sensorist"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

// SensoristActor owns the API client. Every call runs as a background task
// so a slow request never blocks the mailbox.
type SensoristActor struct {
	behavior actor.Behavior
	stash    *actorutil.Stash
	api      port.SensoristAPI
	timeout  time.Duration
	inFlight int
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

type apiTaskResult struct {
	message any
	replyTo *actor.PID
}

func NewSensoristActor(api port.SensoristAPI, timeout time.Duration, m *metrics.Metrics, logger *zap.Logger) *SensoristActor {
	if timeout <= 0 {
		timeout = sensorist.DefaultRequestTimeout
	}
	act := &SensoristActor{
		api:      api,
		timeout:  timeout,
		behavior: actor.NewBehavior(),
		stash:    &actorutil.Stash{},
		metrics:  m,
		logger:   actorutil.ActorLogger(domain.ACTOR_ID_SENSORIST, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *SensoristActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *SensoristActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("sensorist@starting started")
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	case *actor.Restarting:
	default:
		state.logger.Debug("sensorist@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *SensoristActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("sensorist@default: ActorHealthRequest")
		status := "idle"
		if state.inFlight > 0 {
			status = "busy"
		}
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_SENSORIST,
			Healthy: true,
			State:   status,
		})
	case domain.CredentialTestRequest:
		state.logger.Debug("sensorist@default: CredentialTestRequest")
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)
		runAPITask(state, ctx, sender, "test", func(c context.Context) (*domain.CredentialTestResponse, error) {
			body, err := state.api.Test(c)
			if err != nil {
				return nil, err
			}
			return &domain.CredentialTestResponse{Body: body}, nil
		}, func(err error) domain.CredentialTestResponse {
			return domain.CredentialTestResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: err},
			}
		})
	case domain.ListGatewaysRequest:
		state.logger.Debug("sensorist@default: ListGatewaysRequest")
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)
		runAPITask(state, ctx, sender, "list_gateways", func(c context.Context) (*domain.ListGatewaysResponse, error) {
			tree, err := state.api.ListGateways(c)
			if err != nil {
				return nil, err
			}
			return &domain.ListGatewaysResponse{Tree: tree}, nil
		}, func(err error) domain.ListGatewaysResponse {
			return domain.ListGatewaysResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: err},
			}
		})
	case domain.FetchSensorValueRequest:
		state.logger.Debug("sensorist@default: FetchSensorValueRequest", zap.String("sensor", msg.Sensor.UniqueID()))
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)
		sensor := msg.Sensor
		runAPITask(state, ctx, sender, "fetch_sensor_value", func(c context.Context) (*domain.FetchSensorValueResponse, error) {
			value, err := sensor.FetchValue(c, state.api)
			if err != nil {
				return nil, err
			}
			return &domain.FetchSensorValueResponse{UniqueId: sensor.UniqueID(), Value: value}, nil
		}, func(err error) domain.FetchSensorValueResponse {
			return domain.FetchSensorValueResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: err},
				UniqueId:           sensor.UniqueID(),
			}
		})
	case apiTaskResult:
		state.inFlight--
		state.logger.Debug("sensorist@default apiTaskResult", zap.String("type", fmt.Sprintf("%T", msg.message)))
		if msg.replyTo != nil {
			ctx.Send(msg.replyTo, msg.message)
		}
	default:
		state.logger.Debug("sensorist@default default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

// runAPITask runs fn in the background and routes its response, or the
// recovered error response, back through the actor to replyTo.
func runAPITask[T any](state *SensoristActor, ctx actor.Context, replyTo *actor.PID, operation string,
	fn func(context.Context) (*T, error), onError func(error) T) {
	state.inFlight++
	timeout := state.timeout
	m := state.metrics
	logger := state.logger
	task := actorutil.NewBackgroundTask(ctx, func() (*T, error) {
		c, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		resp, err := fn(c)
		m.APIRequest(operation, err)
		if err != nil {
			logger.Warn("sensorist@task request failed", zap.String("operation", operation), zap.Error(err))
		}
		return resp, err
	})
	actorutil.MapBackgroundTask(task, mapTaskResult[T](replyTo)).Recover(func(err error) apiTaskResult {
		return apiTaskResult{
			message: onError(err),
			replyTo: replyTo,
		}
	}).WithTimeout(timeout + time.Second).PipeTo(ctx.Self())
}

func mapTaskResult[T any](sender *actor.PID) func(t *T) *apiTaskResult {
	return func(t *T) *apiTaskResult {
		return &apiTaskResult{
			message: *t,
			replyTo: sender,
		}
	}
}

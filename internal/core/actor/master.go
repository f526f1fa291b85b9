package actor

import (
	"errors"
	"fmt"
	"time"

	adactor "github.com/berfenger/sensorist2mqtt/internal/adapter/actor"
	"github.com/berfenger/sensorist2mqtt/internal/config"
	"github.com/berfenger/sensorist2mqtt/internal/core/domain"
	"github.com/berfenger/sensorist2mqtt/internal/core/port"
	"github.com/berfenger/sensorist2mqtt/internal/metrics"
	. "github.com/berfenger/sensorist2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"go.uber.org/zap"
)

type MQTTActorProvider func(*eventstream.EventStream) *adactor.MQTTActor

type SensoristActorProvider func() *adactor.SensoristActor

type MasterOfPuppetsActor struct {
	config   config.Config
	behavior actor.Behavior
	stash    *Stash

	currentHealthCheck     healthCheckResult
	eventStream            *eventstream.EventStream
	sensoristActor         *actor.PID
	mqttActor              *actor.PID
	integrationActor       *actor.PID
	sensoristActorProvider SensoristActorProvider
	mqttActorProvider      MQTTActorProvider
	store                  port.ReadingStore
	metrics                *metrics.Metrics
	logger                 *zap.Logger
}

type healthCheckResult struct {
	healthy        map[string]bool
	checksReceived int
	respondTo      *actor.PID
}

var healthCheckedActors = []string{
	domain.ACTOR_ID_SENSORIST,
	domain.ACTOR_ID_MQTT,
	domain.ACTOR_ID_INTEGRATION,
}

func NewMasterOfPuppetsActor(config config.Config, sensoristActorProvider SensoristActorProvider, mqttActorProvider MQTTActorProvider,
	store port.ReadingStore, m *metrics.Metrics, logger *zap.Logger) *MasterOfPuppetsActor {
	act := &MasterOfPuppetsActor{
		config:                 config,
		behavior:               actor.NewBehavior(),
		stash:                  &Stash{},
		logger:                 ActorLogger(domain.ACTOR_ID_MASTER, logger),
		eventStream:            &eventstream.EventStream{},
		sensoristActorProvider: sensoristActorProvider,
		mqttActorProvider:      mqttActorProvider,
		store:                  store,
		metrics:                m,
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

// MasterSupervisor restarts failing children with an increasing delay.
func MasterSupervisor() actor.SupervisorStrategy {
	return actor.NewExponentialBackoffStrategy(10*time.Minute, 5*time.Second)
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

		// start Sensorist API child
		sensoristActorPID, err := state.startSensoristActor(ctx)
		if err != nil {
			panic(err)
		}
		state.sensoristActor = sensoristActorPID

		// start MQTT child
		mqttActorPID, err := state.startMQTTActor(ctx)
		if err != nil {
			panic(err)
		}
		state.mqttActor = mqttActorPID

		// start integration child
		integrationActorPID, err := state.startIntegrationActor(ctx)
		if err != nil {
			panic(err)
		}
		state.integrationActor = integrationActorPID

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
		for _, id := range healthCheckedActors {
			childId := id
			PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.child(childId), domain.ActorHealthRequest{}, 500*time.Millisecond), func(err error) any {
				return domain.ActorHealthResponse{
					Id:      childId,
					Healthy: false,
				}
			})
		}

		ctx.SetReceiveTimeout(1 * time.Second)

		state.behavior.BecomeStacked(state.HealthCheckReceive)
	case domain.DiscoveryTick:
		state.logger.Debug("master@default DiscoveryTick")
		ctx.Send(state.integrationActor, msg)
	case domain.DiscoverRequest, domain.ListEntitiesRequest:
		// keep the original sender so the integration answers it directly
		ctx.Forward(state.integrationActor)
	case *actor.Terminated:
		// if the API adapter dies, terminate
		if msg.Who.Id == fmt.Sprintf("%s/%s", domain.ACTOR_ID_MASTER, domain.ACTOR_ID_SENSORIST) {
			state.logger.Error("master@default sensorist actor terminated")
			panic(errors.New("sensorist terminated"))
		}
	default:
		state.logger.Debug("master@default unhandled", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *MasterOfPuppetsActor) HealthCheckReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.ReceiveTimeout:
		// if some actor does not respond to healthCheck, assume not healthy
		ctx.SetReceiveTimeout(0)
		state.currentHealthCheck.respond(ctx)
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case domain.ActorHealthResponse:
		state.logger.Debug("master@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy), zap.String("state", msg.State))
		state.currentHealthCheck.checksReceived++
		state.currentHealthCheck.healthy[msg.Id] = msg.Healthy
		if state.currentHealthCheck.allReceived() {
			ctx.SetReceiveTimeout(0)
			state.currentHealthCheck.respond(ctx)

			state.behavior.UnbecomeStacked()
			state.stash.UnstashAll(ctx)
		}
	default:
		state.logger.Debug("master@healthcheck stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterOfPuppetsActor) child(id string) *actor.PID {
	switch id {
	case domain.ACTOR_ID_SENSORIST:
		return state.sensoristActor
	case domain.ACTOR_ID_MQTT:
		return state.mqttActor
	case domain.ACTOR_ID_INTEGRATION:
		return state.integrationActor
	}
	return nil
}

func (state *MasterOfPuppetsActor) startSensoristActor(ctx actor.Context) (*actor.PID, error) {

	sensoristProps := actor.PropsFromProducer(func() actor.Actor {
		return state.sensoristActorProvider()
	})
	return ctx.SpawnNamed(sensoristProps, domain.ACTOR_ID_SENSORIST)
}

func (state *MasterOfPuppetsActor) startMQTTActor(ctx actor.Context) (*actor.PID, error) {

	mqttProps := actor.PropsFromProducer(func() actor.Actor {
		return state.mqttActorProvider(state.eventStream)
	})
	return ctx.SpawnNamed(mqttProps, domain.ACTOR_ID_MQTT)
}

func (state *MasterOfPuppetsActor) startIntegrationActor(ctx actor.Context) (*actor.PID, error) {

	integrationProps := actor.PropsFromProducer(func() actor.Actor {
		return NewIntegrationActor(&state.config, state.sensoristActor, state.mqttActor, state.eventStream,
			state.store, state.metrics, state.logger)
	}, actor.WithSupervisor(SensorSupervisor(state.logger)))
	return ctx.SpawnNamed(integrationProps, domain.ACTOR_ID_INTEGRATION)
}

func (state *healthCheckResult) reset() {
	state.healthy = make(map[string]bool, len(healthCheckedActors))
	state.checksReceived = 0
}

func (state *healthCheckResult) allReceived() bool {
	return state.checksReceived >= len(healthCheckedActors)
}

func (state *healthCheckResult) allHealthy() bool {
	for _, id := range healthCheckedActors {
		if !state.healthy[id] {
			return false
		}
	}
	return true
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

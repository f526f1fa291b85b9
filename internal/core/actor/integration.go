package actor

import (
	"errors"
	"fmt"
	"time"

	"github.com/berfenger/sensorist2mqtt/internal/config"
	"github.com/berfenger/sensorist2mqtt/internal/core/domain"
	"github.com/berfenger/sensorist2mqtt/internal/core/port"
	"github.com/berfenger/sensorist2mqtt/internal/core/service"
	"github.com/berfenger/sensorist2mqtt/internal/metrics"
	. "github.com/berfenger/sensorist2mqtt/internal/util/actorutil"
	"github.com/berfenger/sensorist2mqtt/pkg/sensorist"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"go.uber.org/zap"
)

// IntegrationActor is one configured Sensorist account. It validates the
// credentials, runs discovery passes and owns one SensorActor per sensor.
// Its known id set lives and dies with the actor.
type IntegrationActor struct {
	ActorWithStates
	stash          *Stash
	config         *config.Config
	sensoristActor *actor.PID
	mqttActor      *actor.PID
	eventStream    *eventstream.EventStream
	eventStreamSub *eventstream.Subscription
	store          port.ReadingStore
	metrics        *metrics.Metrics
	discoverer     *service.Discoverer
	entities       []domain.EntityRef

	logger *zap.Logger
}

func NewIntegrationActor(config *config.Config, sensoristActor *actor.PID, mqttActor *actor.PID,
	eventStream *eventstream.EventStream, store port.ReadingStore, m *metrics.Metrics, logger *zap.Logger) *IntegrationActor {
	actorLogger := ActorLogger(domain.ACTOR_ID_INTEGRATION, logger)
	act := &IntegrationActor{
		config:         config,
		sensoristActor: sensoristActor,
		mqttActor:      mqttActor,
		eventStream:    eventStream,
		store:          store,
		metrics:        m,
		stash:          &Stash{},
		discoverer: service.NewDiscoverer(service.NewKnownIDs(), service.DiscoveryOptions{
			RegisterDevices: config.Sensorist.RegisterDevices,
		}, actorLogger),
		logger: actorLogger,
		ActorWithStates: ActorWithStates{
			Behavior: actor.NewBehavior(),
		},
	}
	act.Become(integrationStartingState{
		actor: act,
	})
	return act
}

func (state *IntegrationActor) Receive(context actor.Context) {
	switch context.Message().(type) {
	case *actor.Stopping, *actor.Restarting:
		state.unsubscribeEvents()
	}
	state.Behavior.Receive(context)
}

// subscribeEvents relays broker (re)connections to the actor mailbox.
func (state *IntegrationActor) subscribeEvents(ctx actor.Context) {
	if state.eventStream == nil || state.eventStreamSub != nil {
		return
	}
	root := ctx.ActorSystem().Root
	self := ctx.Self()
	state.eventStreamSub = state.eventStream.Subscribe(func(value any) {
		if ev, ok := value.(domain.BrokerConnectedEvent); ok {
			root.Send(self, ev)
		}
	})
}

func (state *IntegrationActor) unsubscribeEvents() {
	if state.eventStreamSub != nil {
		state.eventStream.Unsubscribe(state.eventStreamSub)
		state.eventStreamSub = nil
	}
}

func (state *IntegrationActor) requestTimeout() time.Duration {
	timeout := state.config.Sensorist.RequestTimeout()
	if timeout <= 0 {
		timeout = sensorist.DefaultRequestTimeout
	}
	return timeout + time.Second
}

func (state *IntegrationActor) healthResponse(ctx actor.Context, healthy bool, name string) {
	ctx.Respond(domain.ActorHealthResponse{
		Id:      domain.ACTOR_ID_INTEGRATION,
		Healthy: healthy,
		State:   name,
	})
}

// Starting state: credential test

type integrationStartingState struct {
	ActorState
	actor *IntegrationActor
}

func (state integrationStartingState) Name() string {
	return "starting"
}

func (state integrationStartingState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.actor.logger.Debug("integration@starting started")
		state.actor.subscribeEvents(ctx)
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.actor.sensoristActor, domain.CredentialTestRequest{}, state.actor.requestTimeout()), func(err error) any {
			return domain.CredentialTestResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: fmt.Errorf("%w: %w", sensorist.ErrCannotConnect, err),
				},
			}
		})
	case domain.CredentialTestResponse:
		if err := msg.GetResponseError(); err != nil {
			if errors.Is(err, sensorist.ErrInvalidAuth) {
				// no automatic retry, the credentials need fixing
				state.actor.logger.Error("integration@starting invalid credentials, setup failed", zap.Error(err))
				state.actor.Become(integrationSetupFailedState{
					actor: state.actor,
					err:   err,
				})
				state.actor.stash.UnstashAll(ctx)
				return
			}
			// not ready yet, let the supervisor retry later
			state.actor.logger.Warn("integration@starting cannot connect, retrying later", zap.Error(err))
			panic(err)
		}
		state.actor.logger.Info("integration@starting credentials accepted")
		if state.actor.config.MQTT.HADiscoveryEnable {
			ctx.Send(state.actor.mqttActor, domain.PublishDiscoveryRequest{
				Sensors: domain.BridgeSensors(domain.BridgeDevice(state.actor.config.MQTT.BaseTopic)),
			})
		}
		state.actor.Become(integrationIdleState{
			actor: state.actor,
		})
		ctx.Send(ctx.Self(), domain.DiscoveryTick{})
		state.actor.stash.UnstashAll(ctx)
	case domain.ActorHealthRequest:
		state.actor.healthResponse(ctx, false, state.Name())
	case actor.AutoReceiveMessage, actor.SystemMessage:
	default:
		state.actor.logger.Debug("integration@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.actor.stash.Stash(ctx, msg)
	}
}

// Setup failed state

type integrationSetupFailedState struct {
	ActorState
	actor *IntegrationActor
	err   error
}

func (state integrationSetupFailedState) Name() string {
	return "setup_failed"
}

func (state integrationSetupFailedState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.actor.healthResponse(ctx, false, state.Name())
	case domain.DiscoverRequest:
		ForRequest(msg).Respond(ctx, domain.DiscoverResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: state.err},
		})
	case domain.ListEntitiesRequest:
		ForRequest(msg).Respond(ctx, domain.ListEntitiesResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: state.err},
		})
	default:
		state.actor.logger.Debug("integration@setup_failed: recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

// Idle state

type integrationIdleState struct {
	ActorState
	actor *IntegrationActor
}

func (state integrationIdleState) Name() string {
	return "idle"
}

func (state integrationIdleState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.actor.logger.Debug("integration@idle: ActorHealthRequest")
		state.actor.healthResponse(ctx, true, state.Name())
	case domain.DiscoveryTick:
		state.actor.logger.Debug("integration@idle DiscoveryTick")
		state.actor.BecomeStacked(integrationDiscoveringState{
			actor: state.actor,
		}.OnEnterAction(ctx))
	case domain.DiscoverRequest:
		state.actor.logger.Debug("integration@idle DiscoverRequest")
		state.actor.BecomeStacked(integrationDiscoveringState{
			actor:   state.actor,
			replyTo: ForRequest(msg).ReplyTo(ctx),
		}.OnEnterAction(ctx))
	case domain.ListEntitiesRequest:
		entities := make([]domain.EntityRef, len(state.actor.entities))
		copy(entities, state.actor.entities)
		ForRequest(msg).Respond(ctx, domain.ListEntitiesResponse{
			Entities: entities,
		})
	case domain.BrokerConnectedEvent:
		state.actor.logger.Debug("integration@idle BrokerConnectedEvent, republish")
		state.actor.republish(ctx)
	case *actor.Terminated:
		state.actor.logger.Warn("integration@idle child terminated", zap.String("pid", msg.Who.Id))
	default:
		state.actor.logger.Debug("integration@idle: recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

// Discovering state

type integrationDiscoveringState struct {
	ActorState
	actor   *IntegrationActor
	replyTo *actor.PID
}

func (state integrationDiscoveringState) Name() string {
	return "discovering"
}

func (state integrationDiscoveringState) OnEnterAction(ctx actor.Context) integrationDiscoveringState {
	PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.actor.sensoristActor, domain.ListGatewaysRequest{}, state.actor.requestTimeout()), func(err error) any {
		return domain.ListGatewaysResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{
				ResponseError: err,
			},
		}
	})
	return state
}

func (state integrationDiscoveringState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.actor.healthResponse(ctx, true, state.Name())
	case domain.ListGatewaysResponse:
		if msg.HasResponseError() {
			state.actor.logger.Error("integration@discovering could not list gateways", zap.Error(msg.GetResponseError()))
			state.respond(ctx, domain.DiscoverResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: msg.GetResponseError()},
			})
			state.exit(ctx)
			return
		}
		result, err := state.actor.discoverer.Map(msg.Tree)
		registered := state.actor.register(ctx, result)
		state.actor.logger.Info("integration@discovering pass completed", zap.Int("new_entities", len(registered)))
		state.respond(ctx, domain.DiscoverResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: err},
			Entities:           registered,
		})
		state.exit(ctx)
	case domain.DiscoveryTick:
		// a pass is already running
		state.actor.logger.Debug("integration@discovering drop DiscoveryTick")
	case actor.AutoReceiveMessage, actor.SystemMessage:
	default:
		state.actor.logger.Debug("integration@discovering: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.actor.stash.Stash(ctx, msg)
	}
}

func (state integrationDiscoveringState) respond(ctx actor.Context, resp domain.DiscoverResponse) {
	if state.replyTo != nil {
		ctx.Send(state.replyTo, resp)
	}
}

func (state integrationDiscoveringState) exit(ctx actor.Context) {
	state.actor.UnbecomeStacked()
	state.actor.stash.UnstashAll(ctx)
}

// register announces new entities to Home Assistant and starts polling the
// new sensors. An entity whose object id is already taken is dropped, Home
// Assistant would reject its unique id anyway.
func (state *IntegrationActor) register(ctx actor.Context, result service.DiscoveryResult) []domain.Entity {
	taken := make(map[string]struct{}, len(state.entities)+len(result.Entities))
	for _, ref := range state.entities {
		taken[ref.Entity.Component().Id] = struct{}{}
	}

	var accepted []domain.Entity
	for _, entity := range result.Entities {
		id := entity.Component().Id
		if _, ok := taken[id]; ok {
			state.logger.Warn("integration@discovering duplicate entity id, skipped",
				zap.String("object_id", id), zap.Int64("api_id", int64(entity.APIID())))
			continue
		}
		taken[id] = struct{}{}
		accepted = append(accepted, entity)
	}

	state.metrics.EntitiesDiscovered(len(accepted))
	if len(accepted) == 0 {
		return nil
	}

	state.publishDiscovery(ctx, accepted)

	registered := make([]domain.Entity, 0, len(accepted))
	for _, entity := range accepted {
		ref := domain.EntityRef{Entity: entity}
		if sensor, ok := entity.(*domain.SensorEntity); ok {
			pid, err := state.startSensorActor(ctx, sensor)
			if err != nil {
				state.logger.Error("integration@discovering could not start sensor", zap.String("sensor", sensor.UniqueID()), zap.Error(err))
				continue
			}
			ref.PID = pid
		}
		state.publishStaticState(entity)
		state.entities = append(state.entities, ref)
		registered = append(registered, entity)
	}
	return registered
}

// republish sends everything Home Assistant needs again after the broker
// connection was (re)established.
func (state *IntegrationActor) republish(ctx actor.Context) {
	if state.config.MQTT.HADiscoveryEnable {
		ctx.Send(state.mqttActor, domain.PublishDiscoveryRequest{
			Sensors: domain.BridgeSensors(domain.BridgeDevice(state.config.MQTT.BaseTopic)),
		})
	}

	entities := make([]domain.Entity, 0, len(state.entities))
	for _, ref := range state.entities {
		entities = append(entities, ref.Entity)
	}
	if len(entities) == 0 {
		return
	}
	state.publishDiscovery(ctx, entities)

	for _, ref := range state.entities {
		if ref.PID != nil {
			ctx.Send(ref.PID, domain.RepublishStateRequest{})
			continue
		}
		state.publishStaticState(ref.Entity)
	}
}

func (state *IntegrationActor) publishDiscovery(ctx actor.Context, entities []domain.Entity) {
	if !state.config.MQTT.HADiscoveryEnable {
		return
	}
	components := make([]domain.GenericSensor, 0, len(entities))
	for _, entity := range entities {
		components = append(components, entity.Component())
	}
	ctx.Send(state.mqttActor, domain.PublishDiscoveryRequest{
		Sensors: components,
	})
}

// publishStaticState publishes the firmware state of gateways and devices.
func (state *IntegrationActor) publishStaticState(entity domain.Entity) {
	switch e := entity.(type) {
	case *domain.GatewayEntity:
		state.publishFirmware(e.Component().Id, e.FirmwareVersion())
	case *domain.DeviceEntity:
		state.publishFirmware(e.Component().Id, e.FirmwareVersion())
	}
}

func (state *IntegrationActor) publishFirmware(id string, version string) {
	state.eventStream.Publish(domain.TextSensorUpdateEvent{
		SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
			Id: id,
		},
		Value: version,
	})
}

// startSensorActor names the child after the API id, which is unique among
// known ids.
func (state *IntegrationActor) startSensorActor(ctx actor.Context, sensor *domain.SensorEntity) (*actor.PID, error) {
	props := actor.PropsFromProducer(func() actor.Actor {
		return NewSensorActor(SensorActorParams{
			Sensor:         sensor,
			SensoristActor: state.sensoristActor,
			EventStream:    state.eventStream,
			Store:          state.store,
			Metrics:        state.metrics,
			Interval:       state.config.Sensorist.ScanInterval(),
			RequestTimeout: state.config.Sensorist.RequestTimeout(),
		}, state.logger)
	})

	return ctx.SpawnNamed(props, fmt.Sprintf("%s_%s", domain.ACTOR_ID_SENSOR, sensor.APIID().String()))
}

// SensorSupervisor restarts a failing sensor actor on its own.
func SensorSupervisor(logger *zap.Logger) actor.SupervisorStrategy {
	decider := func(reason interface{}) actor.Directive {
		logger.Warn("integration: sensor actor failure, restarting", zap.Any("reason", reason))
		return actor.RestartDirective
	}
	return actor.NewOneForOneStrategy(3, 10*time.Second, decider)
}

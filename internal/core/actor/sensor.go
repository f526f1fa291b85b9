package actor

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/berfenger/sensorist2mqtt/internal/core/domain"
	"github.com/berfenger/sensorist2mqtt/internal/core/port"
	"github.com/berfenger/sensorist2mqtt/internal/metrics"
	. "github.com/berfenger/sensorist2mqtt/internal/util/actorutil"
	"github.com/berfenger/sensorist2mqtt/pkg/sensorist"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

// SensorActor polls one sensor entity and publishes its state.
type SensorActor struct {
	behavior   actor.Behavior
	scheduler  *scheduler.TimerScheduler
	cancelTick scheduler.CancelFunc
	tickOwner  uint64

	sensor         *domain.SensorEntity
	sensoristActor *actor.PID
	eventStream    *eventstream.EventStream
	store          port.ReadingStore
	metrics        *metrics.Metrics
	interval       time.Duration
	requestTimeout time.Duration

	reading    domain.SensorReading
	refreshing bool

	logger *zap.Logger
}

// sensorTick carries the instance that scheduled it; ticks left over from a
// replaced instance are dropped.
type sensorTick struct {
	owner uint64
}

var sensorInstances atomic.Uint64

type SensorActorParams struct {
	Sensor         *domain.SensorEntity
	SensoristActor *actor.PID
	EventStream    *eventstream.EventStream
	Store          port.ReadingStore
	Metrics        *metrics.Metrics
	Interval       time.Duration
	RequestTimeout time.Duration
}

func NewSensorActor(params SensorActorParams, logger *zap.Logger) *SensorActor {
	act := &SensorActor{
		behavior:       actor.NewBehavior(),
		sensor:         params.Sensor,
		sensoristActor: params.SensoristActor,
		eventStream:    params.EventStream,
		store:          params.Store,
		metrics:        params.Metrics,
		interval:       params.Interval,
		requestTimeout: params.RequestTimeout,
		reading: domain.SensorReading{
			UniqueId: params.Sensor.UniqueID(),
			Name:     params.Sensor.Name(),
			Kind:     params.Sensor.Kind().String(),
		},
		logger: ActorLogger(domain.ACTOR_ID_SENSOR, logger).With(zap.String("sensor", params.Sensor.UniqueID())),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *SensorActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *SensorActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("sensor@starting started")

		state.scheduler = scheduler.NewTimerScheduler(ctx)
		state.restore()

		// first refresh right away, then every interval
		state.tickOwner = sensorInstances.Add(1)
		ctx.Send(ctx.Self(), sensorTick{owner: state.tickOwner})
		state.behavior.Become(state.DefaultReceive)
	case *actor.Restarting:
	default:
		state.logger.Debug("sensor@starting: recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *SensorActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("sensor@default: ActorHealthRequest")
		status := "available"
		if !state.reading.Available {
			status = "unavailable"
		}
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_SENSOR,
			Healthy: true,
			State:   status,
		})
	case sensorTick:
		if msg.owner != state.tickOwner {
			state.logger.Debug("sensor@default stale tick dropped")
			return
		}
		state.logger.Debug("sensor@default tick")
		state.refresh(ctx)
		if state.interval > 0 {
			state.cancelTick = state.scheduler.RequestOnce(state.interval, ctx.Self(), sensorTick{owner: state.tickOwner})
		}
	case domain.RefreshSensorRequest:
		state.logger.Debug("sensor@default RefreshSensorRequest")
		state.refresh(ctx)
	case domain.FetchSensorValueResponse:
		state.refreshing = false
		if msg.HasResponseError() {
			state.onRefreshError(msg.GetResponseError())
			return
		}
		state.onRefreshValue(msg.Value)
	case domain.GetSensorReadingRequest:
		ForRequest(msg).Respond(ctx, domain.GetSensorReadingResponse{
			Reading: state.reading,
		})
	case domain.RepublishStateRequest:
		state.logger.Debug("sensor@default RepublishStateRequest")
		if state.reading.Value != nil {
			state.publishValue(*state.reading.Value)
		}
		state.publishAvailability(state.reading.Available)
	case *actor.Stopping, *actor.Restarting:
		// the timer outlives this instance and would tick the next one
		state.stopTick()
	default:
		state.logger.Debug("sensor@default: recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *SensorActor) stopTick() {
	if state.cancelTick != nil {
		state.cancelTick()
		state.cancelTick = nil
	}
}

func (state *SensorActor) restore() {
	if state.store == nil {
		return
	}
	last, ok := state.store.Load(state.sensor.UniqueID())
	if !ok {
		return
	}
	state.logger.Debug("sensor@starting restored reading", zap.Float64("value", last.Value))
	value := last.Value
	updatedAt := last.UpdatedAt
	state.reading.Value = &value
	state.reading.UpdatedAt = &updatedAt
	state.reading.Available = true
	state.reading.Restored = true
	state.publishValue(value)
	state.publishAvailability(true)
}

func (state *SensorActor) refresh(ctx actor.Context) {
	if state.refreshing {
		state.logger.Debug("sensor@default refresh already in progress")
		return
	}
	state.refreshing = true
	uniqueID := state.sensor.UniqueID()
	PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.sensoristActor, domain.FetchSensorValueRequest{
		Sensor: state.sensor,
	}, state.requestTimeout+time.Second), func(err error) any {
		return domain.FetchSensorValueResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{
				ResponseError: err,
			},
			UniqueId: uniqueID,
		}
	})
}

func (state *SensorActor) onRefreshValue(value float64) {
	now := time.Now()
	state.reading.Value = &value
	state.reading.UpdatedAt = &now
	state.reading.Restored = false
	state.reading.Available = true

	state.publishValue(value)
	state.publishAvailability(true)
	state.metrics.SensorValue(state.reading.UniqueId, state.reading.Kind, value)

	if state.store != nil {
		err := state.store.Save(state.reading.UniqueId, port.Reading{Value: value, UpdatedAt: now})
		if err != nil {
			state.logger.Error("sensor@default could not persist reading", zap.Error(err))
		}
	}
}

// onRefreshError marks the entity unavailable for this cycle only. The last
// value is kept and the next tick retries.
func (state *SensorActor) onRefreshError(err error) {
	reason := errorReason(err)
	state.logger.Warn("sensor@default refresh failed", zap.String("reason", reason), zap.Error(err))
	state.reading.Available = false
	state.publishAvailability(false)
	state.metrics.SensorUnavailable(state.reading.UniqueId, reason)
}

func (state *SensorActor) publishValue(value float64) {
	state.eventStream.Publish(domain.FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
			Id: state.sensor.Component().Id,
		},
		Value:    value,
		Decimals: state.sensor.Metadata().Decimals,
	})
}

func (state *SensorActor) publishAvailability(available bool) {
	state.eventStream.Publish(domain.SensorAvailabilityUpdateEvent{
		SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
			Id: state.sensor.Component().Id,
		},
		Available: available,
	})
}

func errorReason(err error) string {
	if _, ok := sensorist.IsRemoteError(err); ok {
		return "remote_error"
	}
	switch {
	case errors.Is(err, sensorist.ErrSensorUnavailable):
		return "unavailable"
	case errors.Is(err, sensorist.ErrCannotConnect):
		return "cannot_connect"
	case errors.Is(err, sensorist.ErrMalformedResponse):
		return "malformed_response"
	case errors.Is(err, actor.ErrTimeout):
		return "timeout"
	}
	return "other"
}

package service

import (
	"github.com/berfenger/sensorist2mqtt/internal/core/domain"
	"github.com/berfenger/sensorist2mqtt/pkg/sensorist"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type DiscoveryOptions struct {
	// RegisterDevices adds device entities to the output. When false they
	// are only used as metadata holders for their sensors.
	RegisterDevices bool
}

type DiscoveryResult struct {
	// Entities holds the new entities in document order.
	Entities []domain.Entity
	Sensors  []*domain.SensorEntity
}

// Discover maps a gateway tree to the entities whose ids are not in known
// yet, and marks them as known. Gateway and device views are rebuilt on
// every pass so sensors always bind to a fresh parent, even when the
// parent was registered by an earlier pass.
//
// A sensor of unknown type is left out and not marked known. The pass goes
// on and the errors are returned along with the result.
func Discover(tree *sensorist.GatewayTree, known *KnownIDs, opts DiscoveryOptions) (DiscoveryResult, error) {
	var result DiscoveryResult
	var errs error

	if tree == nil {
		return result, nil
	}

	for _, gateway := range tree.Gateways {
		gatewayEntity := domain.NewGatewayEntity(gateway)
		if !known.Contains(gateway.ID) {
			result.Entities = append(result.Entities, gatewayEntity)
			known.Add(gateway.ID)
		}

		for _, device := range gateway.Devices {
			deviceEntity := domain.NewDeviceEntity(device, gatewayEntity)
			if !known.Contains(device.ID) {
				if opts.RegisterDevices {
					result.Entities = append(result.Entities, deviceEntity)
				}
				known.Add(device.ID)
			}

			for _, sensor := range device.Sensors {
				if known.Contains(sensor.ID) {
					continue
				}
				sensorEntity, err := domain.NewSensorEntity(sensor, deviceEntity, gatewayEntity)
				if err != nil {
					errs = multierr.Append(errs, err)
					continue
				}
				result.Entities = append(result.Entities, sensorEntity)
				result.Sensors = append(result.Sensors, sensorEntity)
				known.Add(sensor.ID)
			}
		}
	}

	return result, errs
}

// Discoverer runs discovery passes for one integration instance.
type Discoverer struct {
	known  *KnownIDs
	opts   DiscoveryOptions
	logger *zap.Logger
}

func NewDiscoverer(known *KnownIDs, opts DiscoveryOptions, logger *zap.Logger) *Discoverer {
	return &Discoverer{
		known:  known,
		opts:   opts,
		logger: logger,
	}
}

// Map runs a pass over a fetched gateway tree and logs skipped sensors.
func (d *Discoverer) Map(tree *sensorist.GatewayTree) (DiscoveryResult, error) {
	result, err := Discover(tree, d.known, d.opts)
	for _, e := range multierr.Errors(err) {
		d.logger.Warn("discovery: skipping sensor", zap.Error(e))
	}
	d.logger.Debug("discovery: pass completed",
		zap.Int("new_entities", len(result.Entities)),
		zap.Int("new_sensors", len(result.Sensors)),
		zap.Int("known_ids", d.known.Len()))
	return result, err
}

func (d *Discoverer) Known() *KnownIDs {
	return d.known
}

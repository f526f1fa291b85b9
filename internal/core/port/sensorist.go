package port

import (
	"context"
	"encoding/json"

	"github.com/berfenger/sensorist2mqtt/pkg/sensorist"
)

type CredentialTester interface {
	Test(ctx context.Context) (json.RawMessage, error)
}

type GatewayLister interface {
	ListGateways(ctx context.Context) (*sensorist.GatewayTree, error)
}

type MeasurementFetcher interface {
	GetSensorData(ctx context.Context, sensorID string) (*sensorist.MeasurementResponse, error)
}

// SensoristAPI is everything the bridge needs from the remote service.
type SensoristAPI interface {
	CredentialTester
	GatewayLister
	MeasurementFetcher
}

// ensure interface compliance
var (
	_ SensoristAPI = (*sensorist.Client)(nil)
	_ SensoristAPI = (*sensorist.TestClient)(nil)
)

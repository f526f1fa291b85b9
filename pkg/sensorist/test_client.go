package sensorist

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// TestClient is an in-memory stand-in for the Sensorist API.
type TestClient struct {
	mu        sync.Mutex
	tree      *GatewayTree
	values    map[string]float64
	usersBody json.RawMessage
	testErr   error
	listErr   error
	dataErr   error
	gate      chan struct{}
	calls     map[string]int
}

func NewTestClient() *TestClient {
	return &TestClient{
		tree:      SampleGatewayTree(),
		values:    map[string]float64{"1001": 21.5, "1002": 48.2, "1003": 3.01, "1004": 87, "2001": 19.8, "2002": 52.4},
		usersBody: json.RawMessage(`{"users":[{"id":1,"email":"test@sensorist.com"}]}`),
		calls:     map[string]int{},
	}
}

// SampleGatewayTree returns one gateway with two devices and six sensors.
func SampleGatewayTree() *GatewayTree {
	return &GatewayTree{
		Gateways: []Gateway{
			{
				ID: 1, Serial: "GW0001", Title: "Home", Firmware: "2.1.0", Type: TypeInfo{Name: "gw-4g"},
				Devices: []Device{
					{
						ID: 10, Serial: "DEV0010", Title: "Living room", Firmware: "1.4", Type: TypeInfo{Name: "th-10"},
						Sensors: []Sensor{
							{ID: 1001, Title: "Temperature", Type: TypeInfo{Name: "temp"}},
							{ID: 1002, Title: "Humidity", Type: TypeInfo{Name: "humi"}},
							{ID: 1003, Title: "Battery", Type: TypeInfo{Name: "batt"}},
							{ID: 1004, Title: "Wireless", Type: TypeInfo{Name: "wireless"}},
						},
					},
					{
						ID: 20, Serial: "DEV0020", Title: "Cellar", Firmware: "1.4", Type: TypeInfo{Name: "th-10"},
						Sensors: []Sensor{
							{ID: 2001, Title: "Temperature", Type: TypeInfo{Name: "temp"}},
							{ID: 2002, Title: "Humidity", Type: TypeInfo{Name: "humi"}},
						},
					},
				},
			},
		},
	}
}

func (c *TestClient) Test(ctx context.Context) (json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.testErr != nil {
		return nil, c.testErr
	}
	if isFalsy(c.usersBody) {
		return nil, fmt.Errorf("%w: empty users response", ErrInvalidAuth)
	}
	return c.usersBody, nil
}

func (c *TestClient) ListGateways(ctx context.Context) (*GatewayTree, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.listErr != nil {
		return nil, c.listErr
	}
	return c.tree, nil
}

func (c *TestClient) GetSensorData(ctx context.Context, sensorID string) (*MeasurementResponse, error) {
	c.mu.Lock()
	gate := c.gate
	c.calls[sensorID]++
	c.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", ErrCannotConnect, ctx.Err())
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dataErr != nil {
		return nil, c.dataErr
	}
	resp := &MeasurementResponse{Measurements: map[string]Measurement{}}
	if v, ok := c.values[sensorID]; ok {
		resp.Measurements[sensorID] = Measurement{Value: &v}
	}
	return resp, nil
}

func (c *TestClient) SetTree(tree *GatewayTree) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tree = tree
}

func (c *TestClient) SetValue(sensorID string, value float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[sensorID] = value
}

// ClearValue makes the sensor report no measurement.
func (c *TestClient) ClearValue(sensorID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.values, sensorID)
}

func (c *TestClient) SetUsersBody(body json.RawMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.usersBody = body
}

func (c *TestClient) SetTestError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.testErr = err
}

func (c *TestClient) SetListError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listErr = err
}

func (c *TestClient) SetDataError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dataErr = err
}

// Hold makes GetSensorData block until Release is called.
func (c *TestClient) Hold() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gate = make(chan struct{})
}

func (c *TestClient) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gate != nil {
		close(c.gate)
		c.gate = nil
	}
}

func (c *TestClient) Calls(sensorID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[sensorID]
}

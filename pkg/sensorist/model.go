package sensorist

import "strconv"

// ID is the native numeric identifier the API assigns to gateways, devices
// and sensors.
type ID int64

// String returns the decimal form used as key in measurement responses.
func (id ID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

type TypeInfo struct {
	Name string `json:"name"`
}

type GatewayTree struct {
	Gateways []Gateway `json:"gateways"`
}

type Gateway struct {
	ID       ID       `json:"id"`
	Serial   string   `json:"serial"`
	Title    string   `json:"title"`
	Firmware string   `json:"firmware"`
	Type     TypeInfo `json:"type"`
	Devices  []Device `json:"devices"`
}

type Device struct {
	ID       ID       `json:"id"`
	Serial   string   `json:"serial"`
	Title    string   `json:"title"`
	Firmware string   `json:"firmware"`
	Type     TypeInfo `json:"type"`
	Sensors  []Sensor `json:"devices"`
}

type Sensor struct {
	ID    ID       `json:"id"`
	Title string   `json:"title"`
	Type  TypeInfo `json:"type"`
}

type MeasurementResponse struct {
	Measurements map[string]Measurement `json:"measurements"`
}

type Measurement struct {
	Value *float64 `json:"value"`
	Time  string   `json:"time,omitempty"`
}

// SensorCount returns the number of leaf sensors in the tree.
func (t GatewayTree) SensorCount() int {
	count := 0
	for _, gw := range t.Gateways {
		for _, dev := range gw.Devices {
			count += len(dev.Sensors)
		}
	}
	return count
}

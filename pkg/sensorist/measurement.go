package sensorist

import "fmt"

// Value returns the latest value recorded for sensorID.
func (r *MeasurementResponse) Value(sensorID string) (float64, error) {
	if r == nil {
		return 0, fmt.Errorf("%w: empty response for sensor %s", ErrSensorUnavailable, sensorID)
	}
	m, ok := r.Measurements[sensorID]
	if !ok {
		return 0, fmt.Errorf("%w: no measurement for sensor %s", ErrSensorUnavailable, sensorID)
	}
	if m.Value == nil {
		return 0, fmt.Errorf("%w: sensor %s has no value", ErrSensorUnavailable, sensorID)
	}
	return *m.Value, nil
}

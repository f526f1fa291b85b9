package sensorist

import (
	"errors"
	"fmt"
)

var (
	ErrCannotConnect     = errors.New("sensorist: cannot connect")
	ErrInvalidAuth       = errors.New("sensorist: invalid authentication")
	ErrMalformedResponse = errors.New("sensorist: malformed response")
	ErrSensorUnavailable = errors.New("sensorist: sensor unavailable")
)

// RemoteError is returned when the API answers with a non-2xx status.
type RemoteError struct {
	StatusCode int
	Status     string
	URL        string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("sensorist: GET %s returned %s", e.URL, e.Status)
}

// IsRemoteError reports whether err carries a RemoteError and returns it.
func IsRemoteError(err error) (*RemoteError, bool) {
	var remoteErr *RemoteError
	if errors.As(err, &remoteErr) {
		return remoteErr, true
	}
	return nil, false
}

package port

import "time"

type Reading struct {
	Value     float64   `yaml:"value"`
	UpdatedAt time.Time `yaml:"updated_at"`
}

// ReadingStore persists the last reading of each sensor across restarts.
type ReadingStore interface {
	Load(uniqueID string) (Reading, bool)
	Save(uniqueID string, reading Reading) error
}

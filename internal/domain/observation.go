package domain

import "time"

// Observation is one SHEF-style (physical element, time, value) sample.
// Immutable once constructed; owned by the Hydrograph that loaded it.
type Observation struct {
	PhysicalElement string
	Duration        int
	TypeSource      string
	Extremum        string
	Value           Value
	ValidTime       time.Time
	BasisTime       time.Time
}

// IsForecast reports whether the observation came from a forecast type source.
func (o Observation) IsForecast() bool {
	return len(o.TypeSource) > 0 && (o.TypeSource[0] == 'F' || o.TypeSource[0] == 'C')
}

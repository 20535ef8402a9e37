package domain

import (
	"sort"
	"time"
)

// Hydrograph is the ordered-by-time series of observations for one
// station / physical element / type source combination. It is loaded once per
// recommendation run and not mutated afterwards.
type Hydrograph struct {
	StationID       string
	PhysicalElement string
	TypeSource      string
	Observations    []Observation
}

// NewHydrograph builds a hydrograph, sorting the samples by valid time.
// An empty row set produces an empty hydrograph, not an error.
func NewHydrograph(stationID, pe, ts string, obs []Observation) *Hydrograph {
	sorted := make([]Observation, len(obs))
	copy(sorted, obs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ValidTime.Before(sorted[j].ValidTime)
	})
	return &Hydrograph{
		StationID:       stationID,
		PhysicalElement: pe,
		TypeSource:      ts,
		Observations:    sorted,
	}
}

// Empty reports whether the hydrograph holds no samples at all.
func (h *Hydrograph) Empty() bool {
	return h == nil || len(h.Observations) == 0
}

// MaxForecast returns the sample with the greatest present value.
// Ties are broken by the earliest valid time: for a forecast series the first
// time the peak is reached is the crest of interest.
func (h *Hydrograph) MaxForecast() (Observation, bool) {
	return h.maxValue(false)
}

// MaxObserved returns the sample with the greatest present value, breaking
// ties by the latest valid time. The asymmetry with MaxForecast is deliberate:
// an observed maximum search wants the most recent occurrence, a forecast
// search the earliest.
func (h *Hydrograph) MaxObserved() (Observation, bool) {
	return h.maxValue(true)
}

func (h *Hydrograph) maxValue(tieLatest bool) (Observation, bool) {
	if h.Empty() {
		return Observation{}, false
	}
	var best Observation
	found := false
	for _, o := range h.Observations {
		if !o.Value.Valid {
			continue
		}
		switch {
		case !found:
			best, found = o, true
		case o.Value.Float64 > best.Value.Float64:
			best = o
		case o.Value.Float64 == best.Value.Float64 && tieLatest && o.ValidTime.After(best.ValidTime):
			best = o
		}
	}
	return best, found
}

// Latest returns the most recent sample with a present value.
func (h *Hydrograph) Latest() (Observation, bool) {
	if h.Empty() {
		return Observation{}, false
	}
	for i := len(h.Observations) - 1; i >= 0; i-- {
		if h.Observations[i].Value.Valid {
			return h.Observations[i], true
		}
	}
	return Observation{}, false
}

// Earliest returns the first sample with a present value.
func (h *Hydrograph) Earliest() (Observation, bool) {
	if h.Empty() {
		return Observation{}, false
	}
	for _, o := range h.Observations {
		if o.Value.Valid {
			return o, true
		}
	}
	return Observation{}, false
}

// MaxSince returns the greatest present value at or after the cutoff,
// breaking ties by the latest valid time. Used for the 6h/24h interval maxima.
func (h *Hydrograph) MaxSince(cutoff time.Time) Value {
	if h.Empty() {
		return Value{}
	}
	var best Value
	for _, o := range h.Observations {
		if !o.Value.Valid || o.ValidTime.Before(cutoff) {
			continue
		}
		if !best.Valid || o.Value.Float64 >= best.Float64 {
			best = o.Value
		}
	}
	return best
}

package domain

import "time"

// Trend classifies the short-term direction of a river at a forecast point.
type Trend int

const (
	TrendMissing Trend = iota
	TrendRise
	TrendUnchanged
	TrendFall
)

func (t Trend) String() string {
	switch t {
	case TrendRise:
		return "rise"
	case TrendUnchanged:
		return "unchanged"
	case TrendFall:
		return "fall"
	default:
		return "missing"
	}
}

// PointMetadata is the static configuration of one river gauge. It is loaded
// once per run from the data-access collaborator and never mutated; all
// per-run values live in PointDerivedState.
type PointMetadata struct {
	StationID string
	Name      string
	County    string
	State     string
	Stream    string
	HSA       string
	GroupID   string
	Lat       float64
	Lon       float64

	// PhysicalElement selects the unit of every threshold below:
	// "HG" stage in feet, "QR" flow in cfs.
	PhysicalElement string

	BankfullStage Value
	ActionStage   Value
	FloodStage    Value
	ActionFlow    Value
	FloodFlow     Value
	Ladder        CategoryLadder

	// RecordValue is the period-of-record maximum from the crest history,
	// absent for stations with no period of record.
	RecordValue Value

	// Optional per-point overrides; zero/absent falls back to site defaults.
	BackHours       int
	ForwardHours    int
	AdjustEndHours  Value
	ChangeThreshold Value
}

// UsesFlow reports whether the point's thresholds are in discharge units.
func (m PointMetadata) UsesFlow() bool {
	return m.PhysicalElement == "QR"
}

// FloodThreshold returns the configured flood stage or flood flow, whichever
// matches the point's physical element.
func (m PointMetadata) FloodThreshold() Value {
	if m.UsesFlow() {
		return m.FloodFlow
	}
	return m.FloodStage
}

// ActionThreshold returns the configured action stage or action flow.
func (m PointMetadata) ActionThreshold() Value {
	if m.UsesFlow() {
		return m.ActionFlow
	}
	return m.ActionStage
}

// HasCoordinate reports whether the point carries a usable geographic
// coordinate. Points without one are still constructed; downstream category
// checks exclude them implicitly.
func (m PointMetadata) HasCoordinate() bool {
	return m.Lat != 0 || m.Lon != 0
}

// SeriesCrossings holds the flood-threshold crossings and crest detected in
// one series (observed or forecast). Zero times mean "no crossing found".
type SeriesCrossings struct {
	RiseAbove  time.Time
	FallBelow  time.Time
	CrestTime  time.Time
	CrestValue Value
}

// PointDerivedState is everything recomputed for a forecast point on each
// recommendation run. It replaces the previous run's state wholesale and is
// never mutated field-by-field across runs.
type PointDerivedState struct {
	CurrentObservation    Observation
	HasCurrentObservation bool
	CurrentCategory       FloodCategory

	MaximumForecast     Observation
	HasMaximumForecast  bool
	MaxForecastCategory FloodCategory

	// Maximum observed-or-forecast: the worse of the current observation and
	// the forecast peak. Observed wins exact ties, so its time is attributed.
	MaxObservedForecast         Value
	MaxObservedForecastCategory FloodCategory
	MaxObservedForecastTime     time.Time

	Observed SeriesCrossings
	Forecast SeriesCrossings

	// Reconciled crossings: observed rise-above outranks forecast rise-above,
	// forecast fall-below outranks observed fall-below, and the crest comes
	// from whichever series holds the higher value.
	RiseAboveTime   time.Time
	FallBelowTime   time.Time
	CrestTime       time.Time
	CrestValue      Value
	CrestTypeSource string

	// ForecastEndsAboveFlood is set when the final forecast value is still at
	// or above flood level; the fall-below time is then stale and voided by
	// VirtualFallBelowTime.
	ForecastEndsAboveFlood bool

	ObservedMax6h  Value
	ObservedMax24h Value

	Trend Trend
}

// VirtualFallBelowTime returns the fall-below time shifted forward by the
// given number of hours. It returns false, meaning unknown, when no fall-below
// was found or when the forecast series never comes back below flood level, in
// which case an earlier mid-series crossing would be stale.
func (s PointDerivedState) VirtualFallBelowTime(applyShift bool, shiftHours float64) (time.Time, bool) {
	if s.FallBelowTime.IsZero() || s.ForecastEndsAboveFlood {
		return time.Time{}, false
	}
	if !applyShift {
		return s.FallBelowTime, true
	}
	return s.FallBelowTime.Add(time.Duration(shiftHours * float64(time.Hour))), true
}

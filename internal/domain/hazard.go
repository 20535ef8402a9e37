package domain

import (
	"time"

	"github.com/google/uuid"
)

// Hazard phenomenon codes and the potential lifecycle state of a freshly
// recommended, not yet issued, hazard.
const (
	PhenomenonFlood = "FL"
	PhenomenonHydro = "HY"
	StatePotential  = "POTENTIAL"
)

// Flood-record status codes, as carried in the VTEC flood record field.
const (
	FloodRecordNear    = "NR" // near or above the period-of-record maximum
	FloodRecordNo      = "NO" // a record is not expected
	FloodRecordUnknown = "UU" // no period of record, or no crest forecast
)

// warningConfidenceThreshold is the forecast confidence percentage at and
// above which a flooding point is recommended as a warning rather than a watch.
const warningConfidenceThreshold = 80

// PointDescriptor is the nested forecast-point summary carried on a hazard.
type PointDescriptor struct {
	ID   string  `json:"id"`
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// HazardAttributes is the attribute set of a recommended hazard event.
// Epoch-millisecond fields use 0 as "not applicable / unknown".
type HazardAttributes struct {
	PointID          string          `json:"pointID"`
	StreamName       string          `json:"streamName"`
	FloodStage       Value           `json:"floodStage"`
	ActionStage      Value           `json:"actionStage"`
	CurrentStage     Value           `json:"currentStage"`
	CurrentStageTime int64           `json:"currentStageTime"`
	RiseAbove        int64           `json:"riseAbove"`
	Crest            int64           `json:"crest"`
	CrestStage       Value           `json:"crestStage"`
	FallBelow        int64           `json:"fallBelow"`
	ImmediateCause   string          `json:"immediateCause"`
	FloodRecord      string          `json:"floodRecord"`
	FloodSeverity    string          `json:"floodSeverity"`
	ForecastPoint    PointDescriptor `json:"forecastPoint"`
}

// HazardEvent is one recommended hazard: a watch, warning, or informational
// statement for a single forecast point. Ownership passes to the caller; the
// engine holds no reference after the run.
type HazardEvent struct {
	ID           string           `json:"id"`
	Phenomenon   string           `json:"phenomenon"`
	Significance Significance     `json:"significance"`
	State        string           `json:"state"`
	CreationTime time.Time        `json:"creationTime"`
	StartTime    time.Time        `json:"startTime"`
	EndTime      time.Time        `json:"endTime,omitzero"`
	Attributes   HazardAttributes `json:"attributes"`
}

// HazardOptions carries the run-level inputs that shape event construction.
type HazardOptions struct {
	// ForecastConfidencePercentage at or above 80 recommends warnings,
	// below it watches.
	ForecastConfidencePercentage int
	// ShiftHours is the site or per-point end-time shift applied to the
	// virtual fall-below time.
	ShiftHours float64
	// RecordStageOffset and RecordFlowOffset are how close a crest must come
	// to the period-of-record maximum to flag a near-record flood.
	RecordStageOffset float64
	RecordFlowOffset  float64
}

// BuildHazardEvent constructs the recommended hazard for an included point.
// A point that itself reached a flood category becomes an FL warning or watch
// by confidence threshold; a point included only by group promotion or the
// non-flood option becomes an HY.S informational statement.
func BuildHazardEvent(meta PointMetadata, state PointDerivedState, ev HydroEvent, opts HazardOptions, systemTime time.Time) HazardEvent {
	flooding := state.MaxObservedForecastCategory > CategoryNoFlood

	hazard := HazardEvent{
		ID:           uuid.NewString(),
		State:        StatePotential,
		CreationTime: systemTime,
		StartTime:    ev.BeginTime,
		EndTime:      ev.EndTime,
	}
	if flooding {
		hazard.Phenomenon = PhenomenonFlood
		if opts.ForecastConfidencePercentage >= warningConfidenceThreshold {
			hazard.Significance = SigWarning
		} else {
			hazard.Significance = SigWatch
		}
	} else {
		hazard.Phenomenon = PhenomenonHydro
		hazard.Significance = SigStatement
	}
	if hazard.StartTime.IsZero() {
		hazard.StartTime = systemTime
	}

	attrs := HazardAttributes{
		PointID:        meta.StationID,
		StreamName:     meta.Stream,
		FloodStage:     meta.FloodThreshold(),
		ActionStage:    meta.ActionThreshold(),
		ImmediateCause: "ER",
		FloodRecord:    FloodRecordStatus(state.CrestValue, meta.RecordValue, meta.UsesFlow(), opts.RecordStageOffset, opts.RecordFlowOffset),
		RiseAbove:      epochMillis(state.RiseAboveTime),
		Crest:          epochMillis(state.CrestTime),
		CrestStage:     state.CrestValue,
		ForecastPoint: PointDescriptor{
			ID:   meta.StationID,
			Name: meta.Name,
			Lat:  meta.Lat,
			Lon:  meta.Lon,
		},
	}
	if state.HasCurrentObservation {
		attrs.CurrentStage = state.CurrentObservation.Value
		attrs.CurrentStageTime = epochMillis(state.CurrentObservation.ValidTime)
	}
	if fall, ok := state.VirtualFallBelowTime(true, opts.ShiftHours); ok {
		attrs.FallBelow = epochMillis(fall)
	}
	if flooding {
		attrs.FloodSeverity = state.MaxObservedForecastCategory.SeverityCode()
	} else {
		// Informational statements carry the areal "N" severity.
		attrs.FloodSeverity = "N"
	}
	hazard.Attributes = attrs
	return hazard
}

// FloodRecordStatus compares the forecast crest against the period-of-record
// maximum: near-record when the crest reaches the record minus the offset,
// otherwise not expected; unknown when either value is missing. The offset is
// unit-dependent, flow points using the flow offset.
func FloodRecordStatus(crest, record Value, isFlow bool, stageOffset, flowOffset float64) string {
	if !crest.Valid || !record.Valid {
		return FloodRecordUnknown
	}
	offset := stageOffset
	if isFlow {
		offset = flowOffset
	}
	if crest.Float64 >= record.Float64-offset {
		return FloodRecordNear
	}
	return FloodRecordNo
}

// epochMillis converts a time to epoch milliseconds with 0 as the
// "not applicable / unknown" sentinel for the zero time.
func epochMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

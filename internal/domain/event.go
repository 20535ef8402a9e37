package domain

import "time"

// VTECAction is the lifecycle action code carried by a hazard product.
type VTECAction string

const (
	ActionNew      VTECAction = "NEW"
	ActionContinue VTECAction = "CON"
	ActionExtend   VTECAction = "EXT"
	ActionCancel   VTECAction = "CAN"
	ActionExpire   VTECAction = "EXP"
	ActionRoutine  VTECAction = "ROU"
	ActionNone     VTECAction = "N/A"
)

// Significance is the VTEC significance code of a hazard product.
type Significance string

const (
	SigWarning   Significance = "W"
	SigWatch     Significance = "A"
	SigAdvisory  Significance = "Y"
	SigStatement Significance = "S"
)

// ProductRank orders the product classes a run can recommend. The ranking
// RVS < FLS < FLW is a total order used for the most-severe-product pass.
type ProductRank int

const (
	RankRVS ProductRank = iota
	RankFLS
	RankFLW
)

func (r ProductRank) String() string {
	switch r {
	case RankFLW:
		return "FLW"
	case RankFLS:
		return "FLS"
	default:
		return "RVS"
	}
}

// RecommendationReason explains why a point received its recommended action.
type RecommendationReason string

const (
	ReasonFLWNewFlooding       RecommendationReason = "FLW_NEW_FLOODING"
	ReasonFLWIncreasedFlooding RecommendationReason = "FLW_INCREASED_FLOODING"
	ReasonFLSContinuedFlooding RecommendationReason = "FLS_CONTINUED_FLOODING"
	ReasonFLSExpiredFlooding   RecommendationReason = "FLS_EXPIRED_FLOODING"
	ReasonFLSEndedFlooding     RecommendationReason = "FLS_ENDED_FLOODING"
	ReasonRVSNoFlooding        RecommendationReason = "RVS_NO_FLOODING"
	ReasonRVSNoData            RecommendationReason = "RVS_NO_DATA"
	ReasonFLWGroupInFLW        RecommendationReason = "FLW_GROUP_IN_FLW"
	ReasonFLSGroupInFLS        RecommendationReason = "FLS_GROUP_IN_FLS"
)

// GroupReason returns the promotion reason for members pulled into a
// recommendation by their group's severity.
func GroupReason(rank ProductRank) RecommendationReason {
	if rank >= RankFLW {
		return ReasonFLWGroupInFLW
	}
	return ReasonFLSGroupInFLS
}

// endTimeWithin is how close to its end time a previous event must be for the
// run to recommend EXP rather than dropping to a routine statement.
const endTimeWithin = 30 * time.Minute

// PreviousEventRecord is the VTEC-like state of the most recent prior product
// for one point and significance, as reported by the event baseline. A zero
// EndTime means the product was issued until-further-notice.
type PreviousEventRecord struct {
	PointID        string
	Phenomenon     string
	Significance   Significance
	Action         VTECAction
	ETN            int
	BeginTime      time.Time
	EndTime        time.Time
	SeverityCode   string
	ImmediateCause string
	RiseAboveTime  time.Time
	CrestTime      time.Time
	FallBelowTime  time.Time
	FloodRecord    string
}

// EventKey identifies one prior-product slot in the event history.
type EventKey struct {
	PointID      string
	Significance Significance
}

// EventHistory maps (point, significance) to the most recent prior product of
// that significance. A flat lookup; no nested event graphs.
type EventHistory map[EventKey]PreviousEventRecord

// MostRecentFlood returns the prior flood product that governs the point's
// lifecycle, preferring warning over watch over advisory.
func (h EventHistory) MostRecentFlood(pointID string) (PreviousEventRecord, bool) {
	for _, sig := range []Significance{SigWarning, SigWatch, SigAdvisory} {
		if rec, ok := h[EventKey{PointID: pointID, Significance: sig}]; ok {
			return rec, true
		}
	}
	return PreviousEventRecord{}, false
}

// HydroEvent is one recommendation unit bound to exactly one forecast point:
// the outcome of the per-point decision, later adjusted by the group-promotion
// and filter passes. Created fresh each run.
type HydroEvent struct {
	PointID     string
	Previous    PreviousEventRecord
	HasPrevious bool
	Active      bool

	Action VTECAction
	Reason RecommendationReason
	Rank   ProductRank

	BeginTime time.Time
	EndTime   time.Time

	Included bool
}

// DecideEvent runs the per-point recommendation decision: it derives the
// proposed begin/end times from the point's crossings, determines whether a
// prior product is still active, and picks the action, reason, and product
// rank. Absent previous-event data defaults every comparison to "no prior
// event" rather than failing.
func DecideEvent(meta PointMetadata, state PointDerivedState, prev PreviousEventRecord, hasPrev bool, shiftHours float64, systemTime time.Time) HydroEvent {
	ev := HydroEvent{
		PointID:     meta.StationID,
		Previous:    prev,
		HasPrevious: hasPrev,
	}

	ev.BeginTime = state.RiseAboveTime
	if ev.BeginTime.IsZero() {
		ev.BeginTime = systemTime
	}
	if end, ok := state.VirtualFallBelowTime(true, shiftHours); ok {
		ev.EndTime = end
	}

	ev.Active = hasPrev && prevStillActive(prev, systemTime)
	mofCat := state.MaxObservedForecastCategory

	if ev.Active {
		switch {
		case mofCat == CategoryNoFlood:
			ev.Action = ActionCancel
		case beginShifted(ev, prev, systemTime) || !ev.EndTime.Equal(prev.EndTime):
			ev.Action = ActionExtend
		default:
			ev.Action = ActionContinue
		}
		switch {
		case state.Trend == TrendRise:
			ev.Reason, ev.Rank = ReasonFLWIncreasedFlooding, RankFLW
		case mofCat > CategoryNoFlood || mofCat == CategoryNull:
			// A null category on an active event means the flooding is not
			// yet known to have ended; keep the statement severity.
			ev.Reason, ev.Rank = ReasonFLSContinuedFlooding, RankFLS
		default:
			ev.Reason, ev.Rank = ReasonFLSEndedFlooding, RankFLS
		}
		return ev
	}

	switch {
	case mofCat > CategoryNoFlood:
		ev.Action = ActionNew
		ev.Reason, ev.Rank = ReasonFLWNewFlooding, RankFLW
	case mofCat == CategoryNoFlood:
		if hasPrev && recentlyEnded(prev, systemTime) {
			ev.Action = ActionExpire
			ev.Reason, ev.Rank = ReasonFLSExpiredFlooding, RankFLS
		} else {
			ev.Action = ActionNone
			ev.Reason, ev.Rank = ReasonRVSNoFlooding, RankRVS
		}
	default:
		ev.Action = ActionNone
		ev.Reason, ev.Rank = ReasonRVSNoData, RankRVS
	}
	return ev
}

// prevStillActive reports whether the prior product still governs the point:
// it was not cancelled, expired, or routine, and its end time is absent or in
// the future.
func prevStillActive(prev PreviousEventRecord, systemTime time.Time) bool {
	switch prev.Action {
	case ActionCancel, ActionExpire, ActionRoutine:
		return false
	}
	return prev.EndTime.IsZero() || prev.EndTime.After(systemTime)
}

// beginShifted reports whether the begin time moved while the previous begin
// time is still in the future; once an event has begun its start is history
// and no longer extendable.
func beginShifted(ev HydroEvent, prev PreviousEventRecord, systemTime time.Time) bool {
	return prev.BeginTime.After(systemTime) && !ev.BeginTime.Equal(prev.BeginTime)
}

// recentlyEnded reports whether the prior product's end time is within the
// expiration window of the system time and the product was not already
// cancelled or expired.
func recentlyEnded(prev PreviousEventRecord, systemTime time.Time) bool {
	if prev.EndTime.IsZero() {
		return false
	}
	if prev.Action == ActionCancel || prev.Action == ActionExpire {
		return false
	}
	diff := systemTime.Sub(prev.EndTime)
	if diff < 0 {
		diff = -diff
	}
	return diff <= endTimeWithin
}

// MostSevere computes the most severe product rank across all events.
// The order RVS < FLS < FLW holds regardless of event ordering.
func MostSevere(events []*HydroEvent) ProductRank {
	most := RankRVS
	for _, ev := range events {
		if ev.Rank > most {
			most = ev.Rank
		}
	}
	return most
}

// ApplyInclusion marks each event included when its rank matches the most
// severe product, or unconditionally on an informational (RVS) run, where
// everything with data is reported.
func ApplyInclusion(events []*HydroEvent, mostSevere ProductRank) {
	for _, ev := range events {
		ev.Included = ev.Rank == mostSevere || mostSevere == RankRVS
	}
}

// FilterNoData drops inclusion for points with no data at all when the run is
// informational; a flood-severity run keeps promoted no-data members.
func FilterNoData(events []*HydroEvent, mostSevere ProductRank, states map[string]PointDerivedState) {
	if mostSevere > RankRVS {
		return
	}
	for _, ev := range events {
		if states[ev.PointID].MaxObservedForecastCategory == CategoryNull {
			ev.Included = false
		}
	}
}

package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hazardOptions(confidence int) HazardOptions {
	return HazardOptions{
		ForecastConfidencePercentage: confidence,
		ShiftHours:                   6,
		RecordStageOffset:            2,
		RecordFlowOffset:             5000,
	}
}

func TestBuildHazardEventWarningVsWatch(t *testing.T) {
	now := seriesBase
	meta := testMeta()
	rise := now.Add(2 * time.Hour)
	state := floodingState(rise, now.Add(20*time.Hour), CategoryModerate, TrendRise)
	ev := HydroEvent{PointID: meta.StationID, BeginTime: rise, EndTime: now.Add(26 * time.Hour)}

	t.Run("high confidence recommends a warning", func(t *testing.T) {
		hazard := BuildHazardEvent(meta, state, ev, hazardOptions(80), now)

		assert.Equal(t, PhenomenonFlood, hazard.Phenomenon)
		assert.Equal(t, SigWarning, hazard.Significance)
		assert.Equal(t, StatePotential, hazard.State)
		assert.Equal(t, rise, hazard.StartTime)
		assert.Equal(t, now, hazard.CreationTime)
		assert.NotEmpty(t, hazard.ID)
		assert.Equal(t, "2", hazard.Attributes.FloodSeverity)
	})

	t.Run("low confidence recommends a watch", func(t *testing.T) {
		hazard := BuildHazardEvent(meta, state, ev, hazardOptions(60), now)

		assert.Equal(t, PhenomenonFlood, hazard.Phenomenon)
		assert.Equal(t, SigWatch, hazard.Significance)
	})
}

func TestBuildHazardEventNonFlooding(t *testing.T) {
	now := seriesBase
	meta := testMeta()
	state := PointDerivedState{
		MaxObservedForecast:         NewValue(9),
		MaxObservedForecastCategory: CategoryNoFlood,
	}
	ev := HydroEvent{PointID: meta.StationID}

	hazard := BuildHazardEvent(meta, state, ev, hazardOptions(80), now)

	assert.Equal(t, PhenomenonHydro, hazard.Phenomenon)
	assert.Equal(t, SigStatement, hazard.Significance)
	assert.Equal(t, "N", hazard.Attributes.FloodSeverity)
	// No begin time proposed; the hazard starts now.
	assert.Equal(t, now, hazard.StartTime)
}

func TestBuildHazardEventAttributes(t *testing.T) {
	now := seriesBase
	meta := testMeta()
	meta.RecordValue = NewValue(22.5)

	rise := now.Add(2 * time.Hour)
	crest := now.Add(10 * time.Hour)
	fall := now.Add(20 * time.Hour)
	state := PointDerivedState{
		CurrentObservation: Observation{
			Value:     NewValue(11.5),
			ValidTime: now.Add(-30 * time.Minute),
		},
		HasCurrentObservation:       true,
		CurrentCategory:             CategoryNoFlood,
		MaxObservedForecast:         NewValue(14),
		MaxObservedForecastCategory: CategoryMinor,
		RiseAboveTime:               rise,
		CrestTime:                   crest,
		CrestValue:                  NewValue(14),
		FallBelowTime:               fall,
	}
	ev := HydroEvent{PointID: meta.StationID, BeginTime: rise, EndTime: fall.Add(6 * time.Hour)}

	hazard := BuildHazardEvent(meta, state, ev, hazardOptions(80), now)

	attrs := hazard.Attributes
	assert.Equal(t, "DEMO1", attrs.PointID)
	assert.Equal(t, "Demo River", attrs.StreamName)
	assert.Equal(t, NewValue(12), attrs.FloodStage)
	assert.Equal(t, NewValue(10), attrs.ActionStage)
	assert.Equal(t, NewValue(11.5), attrs.CurrentStage)
	assert.Equal(t, now.Add(-30*time.Minute).UnixMilli(), attrs.CurrentStageTime)
	assert.Equal(t, rise.UnixMilli(), attrs.RiseAbove)
	assert.Equal(t, crest.UnixMilli(), attrs.Crest)
	assert.Equal(t, NewValue(14), attrs.CrestStage)
	assert.Equal(t, fall.Add(6*time.Hour).UnixMilli(), attrs.FallBelow)
	assert.Equal(t, "ER", attrs.ImmediateCause)
	assert.Equal(t, FloodRecordNo, attrs.FloodRecord)
	assert.Equal(t, "DEMO1", attrs.ForecastPoint.ID)
	assert.Equal(t, 41.6, attrs.ForecastPoint.Lat)
}

func TestBuildHazardEventUnknownTimesAreZero(t *testing.T) {
	meta := testMeta()
	state := floodingState(time.Time{}, time.Time{}, CategoryMinor, TrendMissing)
	ev := HydroEvent{PointID: meta.StationID, BeginTime: seriesBase}

	hazard := BuildHazardEvent(meta, state, ev, hazardOptions(80), seriesBase)

	assert.Zero(t, hazard.Attributes.RiseAbove)
	assert.Zero(t, hazard.Attributes.Crest)
	assert.Zero(t, hazard.Attributes.FallBelow)
	assert.Zero(t, hazard.Attributes.CurrentStageTime)
	assert.False(t, hazard.Attributes.CurrentStage.Valid)
}

func TestFloodRecordStatus(t *testing.T) {
	tests := []struct {
		name     string
		crest    Value
		record   Value
		isFlow   bool
		expected string
	}{
		{"no crest forecast", Value{}, NewValue(22.5), false, FloodRecordUnknown},
		{"no period of record", NewValue(20), Value{}, false, FloodRecordUnknown},
		{"well below record", NewValue(15), NewValue(22.5), false, FloodRecordNo},
		{"within stage offset", NewValue(20.6), NewValue(22.5), false, FloodRecordNear},
		{"above record", NewValue(23), NewValue(22.5), false, FloodRecordNear},
		{"flow within flow offset", NewValue(46000), NewValue(50000), true, FloodRecordNear},
		{"flow outside flow offset", NewValue(40000), NewValue(50000), true, FloodRecordNo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FloodRecordStatus(tt.crest, tt.record, tt.isFlow, 2, 5000)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestHazardEventJSONOmitsZeroEndTime(t *testing.T) {
	meta := testMeta()
	state := floodingState(seriesBase, time.Time{}, CategoryMinor, TrendRise)
	ev := HydroEvent{PointID: meta.StationID, BeginTime: seriesBase}

	hazard := BuildHazardEvent(meta, state, ev, hazardOptions(80), seriesBase)
	require.True(t, hazard.EndTime.IsZero())

	data, err := json.Marshal(hazard)
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"endTime"`)
	assert.Contains(t, string(data), `"floodStage":12`)
}

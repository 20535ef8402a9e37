package recommender

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/river-flood-recommender/internal/domain"
	"github.com/couchcryptid/river-flood-recommender/internal/observability"
)

var runTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// --- fake store ---

type fakeStore struct {
	points   []PointRecord
	groups   []GroupRecord
	counties []CountyRecord
	ingest   []IngestRecord
	ranks    map[string][]TypeSourceRank
	series   map[string][]ObservationRow // keyed station|ts
	status   map[string][]ObservationRow
	crests   map[string][]float64
	history  domain.EventHistory

	pointsErr  error
	historyErr error
	seriesErr  map[string]error
}

func (f *fakeStore) ForecastPointInfo(_ context.Context) ([]PointRecord, error) {
	return f.points, f.pointsErr
}

func (f *fakeStore) ForecastGroupInfo(_ context.Context) ([]GroupRecord, error) {
	return f.groups, nil
}

func (f *fakeStore) ForecastCountyGroups(_ context.Context) ([]CountyRecord, error) {
	return f.counties, nil
}

func (f *fakeStore) RiverStatus(_ context.Context, stationID, _ string, _, _ time.Time) ([]ObservationRow, error) {
	return f.status[stationID], nil
}

func (f *fakeStore) IngestSettings(_ context.Context, stationID, _ string) ([]TypeSourceRank, error) {
	return f.ranks[stationID], nil
}

func (f *fakeStore) IngestTable(_ context.Context) ([]IngestRecord, error) {
	return f.ingest, nil
}

func (f *fakeStore) TimeSeries(_ context.Context, stationID, _, ts string, _, _ time.Time) ([]ObservationRow, error) {
	key := stationID + "|" + ts
	if err, ok := f.seriesErr[key]; ok {
		return nil, err
	}
	return f.series[key], nil
}

func (f *fakeStore) StageCrestHistory(_ context.Context, stationID string) ([]float64, error) {
	return f.crests[stationID], nil
}

func (f *fakeStore) FlowCrestHistory(_ context.Context, stationID string) ([]float64, error) {
	return f.crests[stationID], nil
}

func (f *fakeStore) PreviousEvents(_ context.Context) (domain.EventHistory, error) {
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	if f.history == nil {
		return domain.EventHistory{}, nil
	}
	return f.history, nil
}

func (f *fakeStore) SiteSettings(_ context.Context) (SiteSettings, error) {
	return SiteSettings{}, errors.New("no rpfparams row")
}

// --- fixture builders ---

func pointRecord(id, groupID string) PointRecord {
	return PointRecord{
		StationID:       id,
		Name:            id + " gauge",
		County:          "Demo",
		State:           "IA",
		Stream:          "Demo River",
		HSA:             "DMX",
		GroupID:         groupID,
		Lat:             41.6,
		Lon:             -93.6,
		PhysicalElement: "HG",
		BankfullStage:   domain.MissingSentinel,
		ActionStage:     10,
		FloodStage:      12,
		ActionFlow:      domain.MissingSentinel,
		FloodFlow:       domain.MissingSentinel,
		MinorStage:      12,
		ModerateStage:   15,
		MajorStage:      18,
		AdjustEndHours:  domain.MissingSentinel,
		ChangeThreshold: domain.MissingSentinel,
	}
}

func obsRow(id, ts string, h int, v float64) ObservationRow {
	return ObservationRow{
		StationID:       id,
		PhysicalElement: "HG",
		TypeSource:      ts,
		Extremum:        "Z",
		Value:           v,
		ValidTime:       runTime.Add(time.Duration(h) * time.Hour),
	}
}

func fcstRow(id string, h int, v float64, basis time.Time) ObservationRow {
	row := obsRow(id, "FF", h, v)
	row.BasisTime = basis
	return row
}

// floodingStore wires one point whose forecast rises above flood stage 12,
// crests at 14, and falls back below.
func floodingStore() *fakeStore {
	basis := runTime.Add(-time.Hour)
	return &fakeStore{
		points:   []PointRecord{pointRecord("DEMO1", "DEMO")},
		groups:   []GroupRecord{{GroupID: "DEMO", Name: "Demo River", Ordinal: 1}},
		counties: []CountyRecord{{County: "Demo", State: "IA"}},
		ingest: []IngestRecord{
			{TypeSource: "RG", StationID: "DEMO1", PhysicalElement: "HG"},
			{TypeSource: "FF", StationID: "DEMO1", PhysicalElement: "HG"},
		},
		ranks: map[string][]TypeSourceRank{
			"DEMO1": {{TypeSource: "RG", Rank: 1}, {TypeSource: "FF", Rank: 1}},
		},
		series: map[string][]ObservationRow{
			"DEMO1|RG": {obsRow("DEMO1", "RG", -4, 10), obsRow("DEMO1", "RG", -2, 10)},
			"DEMO1|FF": {
				fcstRow("DEMO1", 2, 10, basis),
				fcstRow("DEMO1", 4, 14, basis),
				fcstRow("DEMO1", 6, 14, basis),
				fcstRow("DEMO1", 8, 10, basis),
			},
		},
	}
}

func newTestEngine(store HydroStore) *Engine {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := clockwork.NewFakeClockAt(runTime)
	return New(store, clock, DefaultSiteSettings(), logger, observability.NewMetricsForTesting())
}

func defaultOpts() RunOptions {
	return RunOptions{ForecastConfidencePercentage: 80}
}

// --- tests ---

func TestRecommendFloodingForecastYieldsWarning(t *testing.T) {
	engine := newTestEngine(floodingStore())

	hazards, err := engine.Recommend(context.Background(), defaultOpts())
	require.NoError(t, err)
	require.Len(t, hazards, 1)

	hazard := hazards[0]
	assert.Equal(t, domain.PhenomenonFlood, hazard.Phenomenon)
	assert.Equal(t, domain.SigWarning, hazard.Significance)
	assert.Equal(t, domain.StatePotential, hazard.State)
	assert.Equal(t, "1", hazard.Attributes.FloodSeverity)

	// Flood stage 12 sits halfway up the 10-to-14 climb and drop.
	assert.Equal(t, runTime.Add(3*time.Hour), hazard.StartTime)
	assert.Equal(t, runTime.Add(13*time.Hour), hazard.EndTime, "fall-below plus the six hour shift")
	assert.Equal(t, runTime.Add(4*time.Hour).UnixMilli(), hazard.Attributes.Crest)
	assert.Equal(t, domain.NewValue(14.0), hazard.Attributes.CrestStage)
	assert.Equal(t, domain.NewValue(10.0), hazard.Attributes.CurrentStage)
	assert.Equal(t, domain.FloodRecordUnknown, hazard.Attributes.FloodRecord)
}

func TestRecommendLowConfidenceYieldsWatch(t *testing.T) {
	engine := newTestEngine(floodingStore())

	hazards, err := engine.Recommend(context.Background(), RunOptions{ForecastConfidencePercentage: 60})
	require.NoError(t, err)
	require.Len(t, hazards, 1)
	assert.Equal(t, domain.SigWatch, hazards[0].Significance)
}

func TestRecommendGroupPromotionIncludesQuietMember(t *testing.T) {
	store := floodingStore()
	// DEMO2 shares the recommend-all group but has no ingested data at all.
	store.points = append(store.points, pointRecord("DEMO2", "DEMO"))
	store.groups[0].RecommendAll = true

	engine := newTestEngine(store)

	hazards, err := engine.Recommend(context.Background(), defaultOpts())
	require.NoError(t, err)
	require.Len(t, hazards, 2)

	assert.Equal(t, domain.SigWarning, hazards[0].Significance)
	assert.Equal(t, "DEMO1", hazards[0].Attributes.PointID)

	// The promoted no-data member rides along as an informational statement.
	promoted := hazards[1]
	assert.Equal(t, "DEMO2", promoted.Attributes.PointID)
	assert.Equal(t, domain.PhenomenonHydro, promoted.Phenomenon)
	assert.Equal(t, domain.SigStatement, promoted.Significance)
	assert.Equal(t, "N", promoted.Attributes.FloodSeverity)
}

func TestRecommendWithoutRecommendAllDropsQuietMember(t *testing.T) {
	store := floodingStore()
	store.points = append(store.points, pointRecord("DEMO2", "DEMO"))

	engine := newTestEngine(store)

	hazards, err := engine.Recommend(context.Background(), defaultOpts())
	require.NoError(t, err)
	require.Len(t, hazards, 1)
	assert.Equal(t, "DEMO1", hazards[0].Attributes.PointID)
}

func TestRecommendNoFloodingIsInformational(t *testing.T) {
	store := floodingStore()
	basis := runTime.Add(-time.Hour)
	store.series["DEMO1|FF"] = []ObservationRow{
		fcstRow("DEMO1", 2, 10, basis),
		fcstRow("DEMO1", 4, 11, basis),
	}
	// A second point with no data stays out of an informational run.
	store.points = append(store.points, pointRecord("DEMO2", "DEMO"))

	engine := newTestEngine(store)

	hazards, err := engine.Recommend(context.Background(), defaultOpts())
	require.NoError(t, err)
	require.Len(t, hazards, 1)

	hazard := hazards[0]
	assert.Equal(t, "DEMO1", hazard.Attributes.PointID)
	assert.Equal(t, domain.PhenomenonHydro, hazard.Phenomenon)
	assert.Equal(t, domain.SigStatement, hazard.Significance)
}

func TestRecommendStaleForecastBasisIsDropped(t *testing.T) {
	store := floodingStore()
	stale := runTime.Add(-100 * time.Hour)
	store.series["DEMO1|FF"] = []ObservationRow{
		fcstRow("DEMO1", 2, 10, stale),
		fcstRow("DEMO1", 4, 14, stale),
	}

	engine := newTestEngine(store)

	hazards, err := engine.Recommend(context.Background(), defaultOpts())
	require.NoError(t, err)
	require.Len(t, hazards, 1)

	// With the stale issuance filtered out no flooding remains.
	assert.Equal(t, domain.PhenomenonHydro, hazards[0].Phenomenon)
}

func TestRecommendNewerBasisSupersedesOlder(t *testing.T) {
	store := floodingStore()
	older := runTime.Add(-12 * time.Hour)
	newer := runTime.Add(-time.Hour)
	// The older issuance floods, the newer one does not.
	store.series["DEMO1|FF"] = []ObservationRow{
		fcstRow("DEMO1", 4, 14, older),
		fcstRow("DEMO1", 4, 11, newer),
		fcstRow("DEMO1", 8, 10, newer),
	}

	engine := newTestEngine(store)

	hazards, err := engine.Recommend(context.Background(), defaultOpts())
	require.NoError(t, err)
	require.Len(t, hazards, 1)
	assert.Equal(t, domain.PhenomenonHydro, hazards[0].Phenomenon)
}

func TestRecommendActiveEventBelowFloodCancels(t *testing.T) {
	store := floodingStore()
	basis := runTime.Add(-time.Hour)
	store.series["DEMO1|FF"] = []ObservationRow{
		fcstRow("DEMO1", 2, 10, basis),
		fcstRow("DEMO1", 4, 9, basis),
	}
	store.history = domain.EventHistory{
		{PointID: "DEMO1", Significance: domain.SigWarning}: {
			PointID:      "DEMO1",
			Phenomenon:   domain.PhenomenonFlood,
			Significance: domain.SigWarning,
			Action:       domain.ActionContinue,
			BeginTime:    runTime.Add(-24 * time.Hour),
			EndTime:      runTime.Add(12 * time.Hour),
		},
	}

	engine := newTestEngine(store)

	hazards, err := engine.Recommend(context.Background(), defaultOpts())
	require.NoError(t, err)
	require.Len(t, hazards, 1)

	// The cancellation is staged as a statement: the water is below flood
	// stage, so no flood phenomenon remains.
	assert.Equal(t, domain.PhenomenonHydro, hazards[0].Phenomenon)
	assert.Equal(t, domain.SigStatement, hazards[0].Significance)
}

func TestRecommendMetadataFailureAborts(t *testing.T) {
	store := floodingStore()
	store.pointsErr = errors.New("connection refused")

	engine := newTestEngine(store)

	_, err := engine.Recommend(context.Background(), defaultOpts())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDataAccess)
	assert.Contains(t, err.Error(), "forecast point metadata")
}

func TestRecommendPreviousEventFailureContinues(t *testing.T) {
	store := floodingStore()
	store.historyErr = errors.New("prevprod table locked")

	engine := newTestEngine(store)

	hazards, err := engine.Recommend(context.Background(), defaultOpts())
	require.NoError(t, err)
	require.Len(t, hazards, 1)
	assert.Equal(t, domain.SigWarning, hazards[0].Significance)
}

func TestRecommendTimeSeriesFailureDegradesPoint(t *testing.T) {
	store := floodingStore()
	store.seriesErr = map[string]error{
		"DEMO1|RG": errors.New("disk error"),
		"DEMO1|FF": errors.New("disk error"),
	}

	engine := newTestEngine(store)

	// The degraded point has no data; an informational run filters it out.
	hazards, err := engine.Recommend(context.Background(), defaultOpts())
	require.NoError(t, err)
	assert.Empty(t, hazards)
}

func TestRecommendIncludeNonFloodPoints(t *testing.T) {
	store := floodingStore()
	// DEMO2 has data but stays below flood stage.
	store.points = append(store.points, pointRecord("DEMO2", "DEMO"))
	store.ingest = append(store.ingest,
		IngestRecord{TypeSource: "RG", StationID: "DEMO2", PhysicalElement: "HG"})
	store.ranks["DEMO2"] = []TypeSourceRank{{TypeSource: "RG", Rank: 1}}
	store.series["DEMO2|RG"] = []ObservationRow{obsRow("DEMO2", "RG", -2, 8)}

	engine := newTestEngine(store)

	opts := defaultOpts()
	opts.IncludeNonFloodPoints = true
	hazards, err := engine.Recommend(context.Background(), opts)
	require.NoError(t, err)
	require.Len(t, hazards, 2)

	assert.Equal(t, domain.PhenomenonFlood, hazards[0].Phenomenon)
	assert.Equal(t, domain.PhenomenonHydro, hazards[1].Phenomenon)
	assert.Equal(t, "DEMO2", hazards[1].Attributes.PointID)
}

func TestCheckReadiness(t *testing.T) {
	engine := newTestEngine(floodingStore())

	require.Error(t, engine.CheckReadiness(context.Background()))

	_, err := engine.Recommend(context.Background(), defaultOpts())
	require.NoError(t, err)
	assert.NoError(t, engine.CheckReadiness(context.Background()))
}

func TestRankedTypeSources(t *testing.T) {
	ranks := []TypeSourceRank{
		{TypeSource: "FF", Rank: 2},
		{TypeSource: "FX", Rank: 1},
		{TypeSource: "RG", Rank: 1},
		{TypeSource: "RP", Rank: 1},
		{TypeSource: "RM", Rank: 2},
	}

	t.Run("forecast sources sorted by rank", func(t *testing.T) {
		assert.Equal(t, []string{"FX", "FF"}, rankedTypeSources(ranks, true))
	})

	t.Run("observed sources keep only the best rank ties", func(t *testing.T) {
		assert.Equal(t, []string{"RG", "RP"}, rankedTypeSources(ranks, false))
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Nil(t, rankedTypeSources(nil, true))
	})
}

func TestFilterForecastBasis(t *testing.T) {
	cutoff := runTime.Add(-72 * time.Hour)
	valid := runTime.Add(4 * time.Hour)
	rows := []ObservationRow{
		{ValidTime: valid, BasisTime: runTime.Add(-10 * time.Hour), Value: 14},
		{ValidTime: valid, BasisTime: runTime.Add(-1 * time.Hour), Value: 11},
		{ValidTime: runTime.Add(8 * time.Hour), BasisTime: runTime.Add(-100 * time.Hour), Value: 16},
	}

	kept := filterForecastBasis(rows, cutoff)

	require.Len(t, kept, 1)
	assert.Equal(t, 11.0, kept[0].Value, "the newest issuance wins the shared valid time")
}

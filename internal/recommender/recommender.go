package recommender

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/river-flood-recommender/internal/domain"
	"github.com/couchcryptid/river-flood-recommender/internal/observability"
)

// Engine runs the recommendation pass. One Recommend call is one synchronous
// batch computation; all state is constructed fresh per run from the store.
type Engine struct {
	store    HydroStore
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *observability.Metrics
	defaults SiteSettings
	ready    atomic.Bool
}

// New creates an Engine. The clock supplies the system time, which may be a
// displaced/simulated time source.
func New(store HydroStore, clock clockwork.Clock, defaults SiteSettings, logger *slog.Logger, metrics *observability.Metrics) *Engine {
	return &Engine{
		store:    store,
		clock:    clock,
		defaults: defaults,
		logger:   logger,
		metrics:  metrics,
	}
}

// CheckReadiness returns nil once at least one recommendation run has
// completed.
func (e *Engine) CheckReadiness(_ context.Context) error {
	if !e.ready.Load() {
		return errors.New("no recommendation run has completed yet")
	}
	return nil
}

// Recommend executes one full recommendation pass and returns the recommended
// hazard event set. A failure to load a required metadata table aborts the run
// with an error wrapping ErrDataAccess; per-point failures degrade that point
// to "no data" and the run continues.
func (e *Engine) Recommend(ctx context.Context, opts RunOptions) ([]domain.HazardEvent, error) {
	start := time.Now()
	e.metrics.RunsTotal.Inc()

	hazards, err := e.run(ctx, opts)
	if err != nil {
		e.metrics.RunsFailed.Inc()
		return nil, err
	}

	e.metrics.RunDuration.Observe(time.Since(start).Seconds())
	e.metrics.LastRunEpoch.Set(float64(e.clock.Now().Unix()))
	e.ready.Store(true)
	return hazards, nil
}

func (e *Engine) run(ctx context.Context, opts RunOptions) ([]domain.HazardEvent, error) {
	systemTime := e.clock.Now()
	settings := e.loadSettings(ctx)

	pointRecs, err := e.store.ForecastPointInfo(ctx)
	if err != nil {
		return nil, dataAccess("load forecast point metadata", err)
	}
	groupRecs, err := e.store.ForecastGroupInfo(ctx)
	if err != nil {
		return nil, dataAccess("load forecast group metadata", err)
	}
	countyRecs, err := e.store.ForecastCountyGroups(ctx)
	if err != nil {
		return nil, dataAccess("load county groups", err)
	}
	ingestRecs, err := e.store.IngestTable(ctx)
	if err != nil {
		return nil, dataAccess("load ingest table", err)
	}
	ingested := ingestedSet(ingestRecs)

	history, err := e.store.PreviousEvents(ctx)
	if err != nil {
		// No prior events means every point decides as "no prior event".
		e.logger.Warn("previous event baseline unavailable, assuming no prior events", "error", err)
		history = domain.EventHistory{}
	}

	points, order := e.buildPoints(ctx, pointRecs)
	e.logger.Info("recommendation run started",
		"system_time", systemTime,
		"points", len(order),
		"groups", len(groupRecs),
	)

	states := make(map[string]domain.PointDerivedState, len(order))
	for _, id := range order {
		meta := points[id]
		states[id] = e.loadPointState(ctx, meta, settings, ingested, systemTime)
		e.metrics.PointsEvaluated.Inc()
	}

	groups := buildGroups(groupRecs, points, order)
	counties := buildCounties(countyRecs, points, order)
	for _, g := range groups {
		g.ComputeAggregate(states)
	}
	for _, c := range counties {
		c.ComputeAggregate(states)
	}

	events := make(map[string]*domain.HydroEvent, len(order))
	list := make([]*domain.HydroEvent, 0, len(order))
	for _, id := range order {
		meta := points[id]
		prev, hasPrev := history.MostRecentFlood(id)
		ev := domain.DecideEvent(meta, states[id], prev, hasPrev, pointShiftHours(meta, settings), systemTime)
		events[id] = &ev
		list = append(list, &ev)
	}

	mostSevere := domain.MostSevere(list)
	domain.ApplyInclusion(list, mostSevere)
	domain.PromoteGroups(groups, events)
	if opts.IncludeNonFloodPoints {
		for _, ev := range list {
			if states[ev.PointID].MaxObservedForecastCategory != domain.CategoryNull {
				ev.Included = true
			}
		}
	}
	domain.FilterNoData(list, mostSevere, states)
	markIncludedGroups(groups, counties, events)

	hazards := e.buildHazards(order, points, states, events, groups, settings, opts, systemTime)
	e.logger.Info("recommendation run finished",
		"most_severe", mostSevere.String(),
		"hazards", len(hazards),
	)
	return hazards, nil
}

// loadSettings prefers the database's site settings, falling back to the
// configured defaults when the row is absent or unreadable.
func (e *Engine) loadSettings(ctx context.Context) SiteSettings {
	settings, err := e.store.SiteSettings(ctx)
	if err != nil {
		e.logger.Warn("site settings unavailable, using defaults", "error", err)
		return e.defaults
	}
	return settings
}

// buildPoints converts the metadata rows, validates the category ladders, and
// attaches the period-of-record maximum from the crest history. All anomalies
// here are data-quality problems: logged, never fatal.
func (e *Engine) buildPoints(ctx context.Context, recs []PointRecord) (map[string]domain.PointMetadata, []string) {
	points := make(map[string]domain.PointMetadata, len(recs))
	order := make([]string, 0, len(recs))
	for _, rec := range recs {
		meta := toMetadata(rec)
		if err := meta.Ladder.Validate(); err != nil {
			e.logger.Warn("flood category ladder violation",
				"station", meta.StationID, "error", err)
		}
		if !meta.HasCoordinate() {
			e.logger.Warn("forecast point has no coordinate", "station", meta.StationID)
		}
		meta.RecordValue = e.loadRecordValue(ctx, meta)
		meta.Ladder[domain.CategoryRecord] = meta.RecordValue
		points[meta.StationID] = meta
		order = append(order, meta.StationID)
	}
	return points, order
}

func (e *Engine) loadRecordValue(ctx context.Context, meta domain.PointMetadata) domain.Value {
	var crests []float64
	var err error
	if meta.UsesFlow() {
		crests, err = e.store.FlowCrestHistory(ctx, meta.StationID)
	} else {
		crests, err = e.store.StageCrestHistory(ctx, meta.StationID)
	}
	if err != nil {
		e.logger.Warn("crest history unavailable", "station", meta.StationID, "error", err)
		return domain.Value{}
	}
	record := domain.Value{}
	for _, c := range crests {
		v := domain.FromSentinel(c)
		if v.GreaterThan(record) {
			record = v
		}
	}
	return record
}

// loadPointState retrieves the point's observed and forecast hydrographs and
// derives the per-run state. Any failure degrades the point to missing data.
func (e *Engine) loadPointState(ctx context.Context, meta domain.PointMetadata, settings SiteSettings, ingested map[string]bool, systemTime time.Time) domain.PointDerivedState {
	derive := domain.DeriveSettings{StageWindow: pointStageWindow(meta, settings)}

	if !ingested[meta.StationID+"|"+meta.PhysicalElement] {
		e.logger.Warn("station not in ingest table, no data",
			"station", meta.StationID, "pe", meta.PhysicalElement)
		e.metrics.PointsDegraded.Inc()
		return domain.DerivePointState(meta, nil, nil, derive, systemTime)
	}

	back := meta.BackHours
	if back <= 0 {
		back = settings.LookbackHours
	}
	forward := meta.ForwardHours
	if forward <= 0 {
		forward = settings.LookforwardHours
	}
	obsBegin := systemTime.Add(-time.Duration(back) * time.Hour)
	fcstEnd := systemTime.Add(time.Duration(forward) * time.Hour)

	ranks, err := e.store.IngestSettings(ctx, meta.StationID, meta.PhysicalElement)
	if err != nil {
		e.logger.Warn("ingest settings unavailable, no data",
			"station", meta.StationID, "error", err)
		e.metrics.PointsDegraded.Inc()
		return domain.DerivePointState(meta, nil, nil, derive, systemTime)
	}

	observed := e.loadObservedHydrograph(ctx, meta, ranks, obsBegin, systemTime)
	forecast := e.loadForecastHydrograph(ctx, meta, ranks, settings, systemTime, fcstEnd)
	return domain.DerivePointState(meta, observed, forecast, derive, systemTime)
}

func (e *Engine) loadObservedHydrograph(ctx context.Context, meta domain.PointMetadata, ranks []TypeSourceRank, begin, end time.Time) *domain.Hydrograph {
	ts := e.selectObservedTypeSource(ctx, meta, ranks, begin, end)
	if ts == "" {
		return nil
	}
	rows, err := e.store.TimeSeries(ctx, meta.StationID, meta.PhysicalElement, ts, begin, end)
	if err != nil {
		e.logger.Warn("observed time series unavailable",
			"station", meta.StationID, "ts", ts, "error", err)
		e.metrics.PointsDegraded.Inc()
		return nil
	}
	return hydrographFromRows(meta.StationID, meta.PhysicalElement, ts, rows)
}

// selectObservedTypeSource picks the observed type source: the highest-ranked
// one, and among candidates sharing that rank, the one with the most recent
// report in the river status table.
func (e *Engine) selectObservedTypeSource(ctx context.Context, meta domain.PointMetadata, ranks []TypeSourceRank, begin, end time.Time) string {
	candidates := rankedTypeSources(ranks, false)
	if len(candidates) == 0 {
		return ""
	}
	if len(candidates) == 1 {
		return candidates[0]
	}

	statusRows, err := e.store.RiverStatus(ctx, meta.StationID, meta.PhysicalElement, begin, end)
	if err != nil {
		e.logger.Warn("river status unavailable, using first ranked type source",
			"station", meta.StationID, "error", err)
		return candidates[0]
	}

	best := ""
	var bestTime time.Time
	for _, row := range statusRows {
		if !containsString(candidates, row.TypeSource) || !domain.FromSentinel(row.Value).Valid {
			continue
		}
		if best == "" || row.ValidTime.After(bestTime) {
			best, bestTime = row.TypeSource, row.ValidTime
		}
	}
	if best == "" {
		return candidates[0]
	}
	return best
}

func (e *Engine) loadForecastHydrograph(ctx context.Context, meta domain.PointMetadata, ranks []TypeSourceRank, settings SiteSettings, systemTime, end time.Time) *domain.Hydrograph {
	candidates := rankedTypeSources(ranks, true)
	if len(candidates) == 0 {
		return nil
	}
	ts := candidates[0]

	rows, err := e.store.TimeSeries(ctx, meta.StationID, meta.PhysicalElement, ts, systemTime, end)
	if err != nil {
		e.logger.Warn("forecast time series unavailable",
			"station", meta.StationID, "ts", ts, "error", err)
		e.metrics.PointsDegraded.Inc()
		return nil
	}
	rows = filterForecastBasis(rows, systemTime.Add(-time.Duration(settings.BasisHours)*time.Hour))
	return hydrographFromRows(meta.StationID, meta.PhysicalElement, ts, rows)
}

// filterForecastBasis drops forecast rows issued before the basis cutoff and,
// when several basis times remain for the same valid time, keeps the latest
// issuance.
func filterForecastBasis(rows []ObservationRow, cutoff time.Time) []ObservationRow {
	byValid := make(map[time.Time]ObservationRow, len(rows))
	for _, row := range rows {
		if row.BasisTime.Before(cutoff) {
			continue
		}
		if held, ok := byValid[row.ValidTime]; !ok || row.BasisTime.After(held.BasisTime) {
			byValid[row.ValidTime] = row
		}
	}
	kept := make([]ObservationRow, 0, len(byValid))
	for _, row := range byValid {
		kept = append(kept, row)
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].ValidTime.Before(kept[j].ValidTime) })
	return kept
}

func (e *Engine) buildHazards(order []string, points map[string]domain.PointMetadata, states map[string]domain.PointDerivedState, events map[string]*domain.HydroEvent, groups []*domain.ForecastGroup, settings SiteSettings, opts RunOptions, systemTime time.Time) []domain.HazardEvent {
	groupIncluded := make(map[string]bool, len(groups))
	for _, g := range groups {
		groupIncluded[g.ID] = g.Included
	}

	hazards := make([]domain.HazardEvent, 0, len(order))
	for _, id := range order {
		ev := events[id]
		if !ev.Included {
			continue
		}
		meta := points[id]
		if meta.GroupID != "" {
			if included, known := groupIncluded[meta.GroupID]; known && !included {
				continue
			}
		}

		hazard := domain.BuildHazardEvent(meta, states[id], *ev, domain.HazardOptions{
			ForecastConfidencePercentage: opts.ForecastConfidencePercentage,
			ShiftHours:                   pointShiftHours(meta, settings),
			RecordStageOffset:            settings.VTECRecordStageOffset,
			RecordFlowOffset:             settings.VTECRecordFlowOffset,
		}, systemTime)
		if hazard.EndTime.IsZero() {
			// No fall-below is known; stage the event with the configured
			// product expiration instead of until-further-notice.
			hazard.EndTime = hazard.StartTime.Add(time.Duration(settings.FLWExpirationHours) * time.Hour)
		}
		e.metrics.EventsRecommended.WithLabelValues(hazard.Phenomenon, string(hazard.Significance)).Inc()
		hazards = append(hazards, hazard)
	}
	return hazards
}

func toMetadata(rec PointRecord) domain.PointMetadata {
	return domain.PointMetadata{
		StationID:       rec.StationID,
		Name:            rec.Name,
		County:          rec.County,
		State:           rec.State,
		Stream:          rec.Stream,
		HSA:             rec.HSA,
		GroupID:         rec.GroupID,
		Lat:             rec.Lat,
		Lon:             rec.Lon,
		PhysicalElement: rec.PhysicalElement,
		BankfullStage:   domain.FromSentinel(rec.BankfullStage),
		ActionStage:     domain.FromSentinel(rec.ActionStage),
		FloodStage:      domain.FromSentinel(rec.FloodStage),
		ActionFlow:      domain.FromSentinel(rec.ActionFlow),
		FloodFlow:       domain.FromSentinel(rec.FloodFlow),
		Ladder: domain.CategoryLadder{
			domain.CategoryMinor:    domain.FromSentinel(rec.MinorStage),
			domain.CategoryModerate: domain.FromSentinel(rec.ModerateStage),
			domain.CategoryMajor:    domain.FromSentinel(rec.MajorStage),
		},
		BackHours:       rec.BackHours,
		ForwardHours:    rec.ForwardHours,
		AdjustEndHours:  domain.FromSentinel(rec.AdjustEndHours),
		ChangeThreshold: domain.FromSentinel(rec.ChangeThreshold),
	}
}

func buildGroups(recs []GroupRecord, points map[string]domain.PointMetadata, order []string) []*domain.ForecastGroup {
	groups := make([]*domain.ForecastGroup, 0, len(recs))
	for _, rec := range recs {
		g := &domain.ForecastGroup{
			ID:           rec.GroupID,
			Name:         rec.Name,
			Ordinal:      rec.Ordinal,
			RecommendAll: rec.RecommendAll,
		}
		for _, id := range order {
			if points[id].GroupID == rec.GroupID {
				g.PointIDs = append(g.PointIDs, id)
			}
		}
		groups = append(groups, g)
	}
	return groups
}

func buildCounties(recs []CountyRecord, points map[string]domain.PointMetadata, order []string) []*domain.CountyGroup {
	counties := make([]*domain.CountyGroup, 0, len(recs))
	for _, rec := range recs {
		c := &domain.CountyGroup{County: rec.County, State: rec.State}
		for _, id := range order {
			if points[id].County == rec.County && points[id].State == rec.State {
				c.PointIDs = append(c.PointIDs, id)
			}
		}
		counties = append(counties, c)
	}
	return counties
}

func markIncludedGroups(groups []*domain.ForecastGroup, counties []*domain.CountyGroup, events map[string]*domain.HydroEvent) {
	for _, g := range groups {
		g.Included = anyIncluded(g.PointIDs, events)
	}
	for _, c := range counties {
		c.Included = anyIncluded(c.PointIDs, events)
	}
}

func anyIncluded(pointIDs []string, events map[string]*domain.HydroEvent) bool {
	for _, id := range pointIDs {
		if ev, ok := events[id]; ok && ev.Included {
			return true
		}
	}
	return false
}

func pointShiftHours(meta domain.PointMetadata, settings SiteSettings) float64 {
	if meta.AdjustEndHours.Valid {
		return meta.AdjustEndHours.Float64
	}
	return settings.ShiftHours
}

func pointStageWindow(meta domain.PointMetadata, settings SiteSettings) float64 {
	if meta.ChangeThreshold.Valid {
		return meta.ChangeThreshold.Float64
	}
	return settings.StageWindow
}

// rankedTypeSources returns the type sources of the requested kind sorted by
// ascending rank, keeping only those tied at the best rank for observed
// sources (the current-observation selection resolves the tie) and all ranked
// sources for forecasts (the best one is used).
func rankedTypeSources(ranks []TypeSourceRank, forecast bool) []string {
	matching := make([]TypeSourceRank, 0, len(ranks))
	for _, r := range ranks {
		if len(r.TypeSource) == 0 {
			continue
		}
		isFcst := r.TypeSource[0] == 'F' || r.TypeSource[0] == 'C'
		if isFcst == forecast {
			matching = append(matching, r)
		}
	}
	if len(matching) == 0 {
		return nil
	}
	sort.SliceStable(matching, func(i, j int) bool { return matching[i].Rank < matching[j].Rank })

	if forecast {
		out := make([]string, len(matching))
		for i, r := range matching {
			out[i] = r.TypeSource
		}
		return out
	}

	best := matching[0].Rank
	var out []string
	for _, r := range matching {
		if r.Rank == best {
			out = append(out, r.TypeSource)
		}
	}
	return out
}

func hydrographFromRows(stationID, pe, ts string, rows []ObservationRow) *domain.Hydrograph {
	obs := make([]domain.Observation, 0, len(rows))
	for _, row := range rows {
		obs = append(obs, domain.Observation{
			PhysicalElement: row.PhysicalElement,
			Duration:        row.Duration,
			TypeSource:      row.TypeSource,
			Extremum:        row.Extremum,
			Value:           domain.FromSentinel(row.Value),
			ValidTime:       row.ValidTime,
			BasisTime:       row.BasisTime,
		})
	}
	return domain.NewHydrograph(stationID, pe, ts, obs)
}

func ingestedSet(recs []IngestRecord) map[string]bool {
	set := make(map[string]bool, len(recs))
	for _, rec := range recs {
		set[rec.StationID+"|"+rec.PhysicalElement] = true
	}
	return set
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Package ihfs provides the SQLite-backed implementation of the recommender's
// HydroStore, reading an IHFS-shaped hydrologic database.
package ihfs

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/couchcryptid/river-flood-recommender/internal/domain"
	"github.com/couchcryptid/river-flood-recommender/internal/recommender"
)

// Schema creates the subset of the IHFS tables the recommender reads. Times
// are stored as unix epoch seconds.
const Schema = `
	CREATE TABLE IF NOT EXISTS fpinfo (
		lid TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		county TEXT NOT NULL,
		state TEXT NOT NULL,
		stream TEXT NOT NULL DEFAULT '',
		hsa TEXT NOT NULL DEFAULT '',
		group_id TEXT NOT NULL DEFAULT '',
		lat REAL NOT NULL DEFAULT 0,
		lon REAL NOT NULL DEFAULT 0,
		pe TEXT NOT NULL DEFAULT 'HG',
		bf REAL, action_stage REAL, flood_stage REAL,
		action_flow REAL, flood_flow REAL,
		minor_stage REAL, moderate_stage REAL, major_stage REAL,
		back_hrs INTEGER, forward_hrs INTEGER,
		adjust_end_hrs REAL, change_threshold REAL
	);

	CREATE TABLE IF NOT EXISTS rpffcstgroup (
		group_id TEXT PRIMARY KEY,
		group_name TEXT NOT NULL,
		ordinal INTEGER NOT NULL DEFAULT 0,
		rec_all_included TEXT NOT NULL DEFAULT 'N'
	);

	CREATE TABLE IF NOT EXISTS countynum (
		county TEXT NOT NULL,
		state TEXT NOT NULL,
		PRIMARY KEY (county, state)
	);

	CREATE TABLE IF NOT EXISTS riverstatus (
		lid TEXT NOT NULL,
		pe TEXT NOT NULL,
		ts TEXT NOT NULL,
		value REAL NOT NULL,
		validtime INTEGER NOT NULL,
		PRIMARY KEY (lid, pe, ts)
	);

	CREATE TABLE IF NOT EXISTS ingestfilter (
		lid TEXT NOT NULL,
		pe TEXT NOT NULL,
		ts TEXT NOT NULL,
		ts_rank INTEGER NOT NULL DEFAULT 1,
		ingest TEXT NOT NULL DEFAULT 'T',
		PRIMARY KEY (lid, pe, ts)
	);

	CREATE TABLE IF NOT EXISTS riverdata (
		lid TEXT NOT NULL,
		pe TEXT NOT NULL,
		dur INTEGER NOT NULL DEFAULT 0,
		ts TEXT NOT NULL,
		extremum TEXT NOT NULL DEFAULT 'Z',
		value REAL NOT NULL,
		validtime INTEGER NOT NULL,
		basistime INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_riverdata_series
		ON riverdata(lid, pe, ts, validtime);

	CREATE TABLE IF NOT EXISTS crest (
		lid TEXT NOT NULL,
		stage REAL,
		q REAL
	);

	CREATE TABLE IF NOT EXISTS rpfparams (
		obshrs INTEGER NOT NULL,
		fcsthrs INTEGER NOT NULL,
		basishrs INTEGER NOT NULL,
		shifthrs REAL NOT NULL,
		stagewindow REAL NOT NULL,
		rec_stage_offset REAL NOT NULL,
		rec_flow_offset REAL NOT NULL,
		flw_exphrs INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS prevprod (
		lid TEXT NOT NULL,
		phenom TEXT NOT NULL,
		sig TEXT NOT NULL,
		action TEXT NOT NULL,
		etn INTEGER NOT NULL DEFAULT 0,
		begintime INTEGER,
		endtime INTEGER,
		severity TEXT NOT NULL DEFAULT '',
		immed_cause TEXT NOT NULL DEFAULT '',
		risetime INTEGER,
		cresttime INTEGER,
		falltime INTEGER,
		record TEXT NOT NULL DEFAULT '',
		producttime INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (lid, phenom, sig)
	);
`

// Store reads the hydrologic database. It implements recommender.HydroStore.
type Store struct {
	db *sql.DB
}

// Open opens the SQLite database at path in read-write mode and verifies the
// connection.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// NewFromDB wraps an existing connection; used by tests.
func NewFromDB(db *sql.DB) *Store {
	return &Store{db: db}
}

// InitSchema creates the tables if they are missing.
func (s *Store) InitSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("initialize schema: %w", err)
	}
	return nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ForecastPointInfo(ctx context.Context) ([]recommender.PointRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT lid, name, county, state, stream, hsa, group_id, lat, lon, pe,
		       bf, action_stage, flood_stage, action_flow, flood_flow,
		       minor_stage, moderate_stage, major_stage,
		       back_hrs, forward_hrs, adjust_end_hrs, change_threshold
		FROM fpinfo ORDER BY group_id, lid`)
	if err != nil {
		return nil, fmt.Errorf("query fpinfo: %w", err)
	}
	defer rows.Close()

	var recs []recommender.PointRecord
	for rows.Next() {
		var rec recommender.PointRecord
		var bf, actionStage, floodStage, actionFlow, floodFlow sql.NullFloat64
		var minor, moderate, major, adjustEnd, changeThreshold sql.NullFloat64
		var backHrs, forwardHrs sql.NullInt64
		if err := rows.Scan(
			&rec.StationID, &rec.Name, &rec.County, &rec.State, &rec.Stream,
			&rec.HSA, &rec.GroupID, &rec.Lat, &rec.Lon, &rec.PhysicalElement,
			&bf, &actionStage, &floodStage, &actionFlow, &floodFlow,
			&minor, &moderate, &major,
			&backHrs, &forwardHrs, &adjustEnd, &changeThreshold,
		); err != nil {
			return nil, fmt.Errorf("scan fpinfo: %w", err)
		}
		rec.BankfullStage = sentinelFloat(bf)
		rec.ActionStage = sentinelFloat(actionStage)
		rec.FloodStage = sentinelFloat(floodStage)
		rec.ActionFlow = sentinelFloat(actionFlow)
		rec.FloodFlow = sentinelFloat(floodFlow)
		rec.MinorStage = sentinelFloat(minor)
		rec.ModerateStage = sentinelFloat(moderate)
		rec.MajorStage = sentinelFloat(major)
		rec.BackHours = int(backHrs.Int64)
		rec.ForwardHours = int(forwardHrs.Int64)
		rec.AdjustEndHours = sentinelFloat(adjustEnd)
		rec.ChangeThreshold = sentinelFloat(changeThreshold)
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func (s *Store) ForecastGroupInfo(ctx context.Context) ([]recommender.GroupRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT group_id, group_name, ordinal, rec_all_included
		FROM rpffcstgroup ORDER BY ordinal, group_id`)
	if err != nil {
		return nil, fmt.Errorf("query rpffcstgroup: %w", err)
	}
	defer rows.Close()

	var recs []recommender.GroupRecord
	for rows.Next() {
		var rec recommender.GroupRecord
		var recAll string
		if err := rows.Scan(&rec.GroupID, &rec.Name, &rec.Ordinal, &recAll); err != nil {
			return nil, fmt.Errorf("scan rpffcstgroup: %w", err)
		}
		rec.RecommendAll = recAll == "Y"
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func (s *Store) ForecastCountyGroups(ctx context.Context) ([]recommender.CountyRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT county, state FROM countynum ORDER BY state, county`)
	if err != nil {
		return nil, fmt.Errorf("query countynum: %w", err)
	}
	defer rows.Close()

	var recs []recommender.CountyRecord
	for rows.Next() {
		var rec recommender.CountyRecord
		if err := rows.Scan(&rec.County, &rec.State); err != nil {
			return nil, fmt.Errorf("scan countynum: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func (s *Store) RiverStatus(ctx context.Context, stationID, pe string, begin, end time.Time) ([]recommender.ObservationRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT lid, pe, ts, value, validtime
		FROM riverstatus
		WHERE lid = ? AND pe = ? AND validtime >= ? AND validtime <= ?`,
		stationID, pe, begin.Unix(), end.Unix())
	if err != nil {
		return nil, fmt.Errorf("query riverstatus: %w", err)
	}
	defer rows.Close()

	var recs []recommender.ObservationRow
	for rows.Next() {
		var rec recommender.ObservationRow
		var validTime int64
		if err := rows.Scan(&rec.StationID, &rec.PhysicalElement, &rec.TypeSource, &rec.Value, &validTime); err != nil {
			return nil, fmt.Errorf("scan riverstatus: %w", err)
		}
		rec.ValidTime = time.Unix(validTime, 0).UTC()
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func (s *Store) IngestSettings(ctx context.Context, stationID, pe string) ([]recommender.TypeSourceRank, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ts, ts_rank FROM ingestfilter
		WHERE lid = ? AND pe = ? AND ingest = 'T'
		ORDER BY ts_rank, ts`,
		stationID, pe)
	if err != nil {
		return nil, fmt.Errorf("query ingestfilter: %w", err)
	}
	defer rows.Close()

	var recs []recommender.TypeSourceRank
	for rows.Next() {
		var rec recommender.TypeSourceRank
		if err := rows.Scan(&rec.TypeSource, &rec.Rank); err != nil {
			return nil, fmt.Errorf("scan ingestfilter: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func (s *Store) IngestTable(ctx context.Context) ([]recommender.IngestRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ts, lid, pe FROM ingestfilter WHERE ingest = 'T'`)
	if err != nil {
		return nil, fmt.Errorf("query ingest table: %w", err)
	}
	defer rows.Close()

	var recs []recommender.IngestRecord
	for rows.Next() {
		var rec recommender.IngestRecord
		if err := rows.Scan(&rec.TypeSource, &rec.StationID, &rec.PhysicalElement); err != nil {
			return nil, fmt.Errorf("scan ingest table: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func (s *Store) TimeSeries(ctx context.Context, stationID, pe, ts string, begin, end time.Time) ([]recommender.ObservationRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT lid, pe, dur, ts, extremum, value, validtime, basistime
		FROM riverdata
		WHERE lid = ? AND pe = ? AND ts = ? AND validtime >= ? AND validtime <= ?
		ORDER BY validtime`,
		stationID, pe, ts, begin.Unix(), end.Unix())
	if err != nil {
		return nil, fmt.Errorf("query time series: %w", err)
	}
	defer rows.Close()

	var recs []recommender.ObservationRow
	for rows.Next() {
		var rec recommender.ObservationRow
		var validTime, basisTime int64
		if err := rows.Scan(
			&rec.StationID, &rec.PhysicalElement, &rec.Duration, &rec.TypeSource,
			&rec.Extremum, &rec.Value, &validTime, &basisTime,
		); err != nil {
			return nil, fmt.Errorf("scan time series: %w", err)
		}
		rec.ValidTime = time.Unix(validTime, 0).UTC()
		if basisTime != 0 {
			rec.BasisTime = time.Unix(basisTime, 0).UTC()
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func (s *Store) StageCrestHistory(ctx context.Context, stationID string) ([]float64, error) {
	return s.crestHistory(ctx, stationID, "stage")
}

func (s *Store) FlowCrestHistory(ctx context.Context, stationID string) ([]float64, error) {
	return s.crestHistory(ctx, stationID, "q")
}

func (s *Store) crestHistory(ctx context.Context, stationID, column string) ([]float64, error) {
	// column is one of the two fixed names above, never user input.
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+column+` FROM crest WHERE lid = ? AND `+column+` IS NOT NULL`,
		stationID)
	if err != nil {
		return nil, fmt.Errorf("query crest history: %w", err)
	}
	defer rows.Close()

	var crests []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan crest history: %w", err)
		}
		crests = append(crests, v)
	}
	return crests, rows.Err()
}

func (s *Store) PreviousEvents(ctx context.Context) (domain.EventHistory, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT lid, phenom, sig, action, etn, begintime, endtime,
		       severity, immed_cause, risetime, cresttime, falltime, record
		FROM prevprod`)
	if err != nil {
		return nil, fmt.Errorf("query previous products: %w", err)
	}
	defer rows.Close()

	history := domain.EventHistory{}
	for rows.Next() {
		var rec domain.PreviousEventRecord
		var sig string
		var begin, end, rise, crest, fall sql.NullInt64
		var action string
		if err := rows.Scan(
			&rec.PointID, &rec.Phenomenon, &sig, &action, &rec.ETN,
			&begin, &end, &rec.SeverityCode, &rec.ImmediateCause,
			&rise, &crest, &fall, &rec.FloodRecord,
		); err != nil {
			return nil, fmt.Errorf("scan previous products: %w", err)
		}
		rec.Significance = domain.Significance(sig)
		rec.Action = domain.VTECAction(action)
		rec.BeginTime = nullTime(begin)
		rec.EndTime = nullTime(end)
		rec.RiseAboveTime = nullTime(rise)
		rec.CrestTime = nullTime(crest)
		rec.FallBelowTime = nullTime(fall)
		history[domain.EventKey{PointID: rec.PointID, Significance: rec.Significance}] = rec
	}
	return history, rows.Err()
}

func (s *Store) SiteSettings(ctx context.Context) (recommender.SiteSettings, error) {
	var settings recommender.SiteSettings
	err := s.db.QueryRowContext(ctx, `
		SELECT obshrs, fcsthrs, basishrs, shifthrs, stagewindow,
		       rec_stage_offset, rec_flow_offset, flw_exphrs
		FROM rpfparams LIMIT 1`).Scan(
		&settings.LookbackHours, &settings.LookforwardHours, &settings.BasisHours,
		&settings.ShiftHours, &settings.StageWindow,
		&settings.VTECRecordStageOffset, &settings.VTECRecordFlowOffset,
		&settings.FLWExpirationHours,
	)
	if err != nil {
		return recommender.SiteSettings{}, fmt.Errorf("query rpfparams: %w", err)
	}
	return settings, nil
}

// sentinelFloat converts a nullable column to the engine's missing sentinel.
func sentinelFloat(v sql.NullFloat64) float64 {
	if !v.Valid {
		return domain.MissingSentinel
	}
	return v.Float64
}

func nullTime(v sql.NullInt64) time.Time {
	if !v.Valid || v.Int64 == 0 {
		return time.Time{}
	}
	return time.Unix(v.Int64, 0).UTC()
}

// Package recommender orchestrates the river flood recommendation run: it
// loads forecast point metadata and time series through the HydroStore
// collaborator, derives per-point state, aggregates groups and counties, runs
// the per-event recommendation decision, and emits the recommended hazard
// event set.
package recommender

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/couchcryptid/river-flood-recommender/internal/domain"
)

// ErrDataAccess marks a failure to reach the hydrologic database or to load a
// required metadata table. It aborts the run; per-point failures never carry
// this sentinel and degrade to missing data instead.
var ErrDataAccess = errors.New("data access failure")

func dataAccess(op string, err error) error {
	return fmt.Errorf("%s: %w", op, errors.Join(ErrDataAccess, err))
}

// PointRecord is one forecast point metadata row. Numeric fields use the
// -9999 missing sentinel as stored; the engine decodes them.
type PointRecord struct {
	StationID       string
	Name            string
	County          string
	State           string
	Stream          string
	HSA             string
	GroupID         string
	Lat             float64
	Lon             float64
	PhysicalElement string

	BankfullStage float64
	ActionStage   float64
	FloodStage    float64
	ActionFlow    float64
	FloodFlow     float64
	MinorStage    float64
	ModerateStage float64
	MajorStage    float64

	BackHours       int
	ForwardHours    int
	AdjustEndHours  float64
	ChangeThreshold float64
}

// GroupRecord is one river forecast group metadata row.
type GroupRecord struct {
	GroupID      string
	Name         string
	Ordinal      int
	RecommendAll bool
}

// CountyRecord is one county served by the site's forecast points.
type CountyRecord struct {
	County string
	State  string
}

// ObservationRow is one raw time-series row; Value carries the -9999 missing
// sentinel as stored.
type ObservationRow struct {
	StationID       string
	PhysicalElement string
	Duration        int
	TypeSource      string
	Extremum        string
	Value           float64
	ValidTime       time.Time
	BasisTime       time.Time
}

// TypeSourceRank is one ingest-filter ranking row; lower rank is higher
// priority.
type TypeSourceRank struct {
	TypeSource string
	Rank       int
}

// IngestRecord says a (type source, station, physical element) combination is
// ingested at all.
type IngestRecord struct {
	TypeSource      string
	StationID       string
	PhysicalElement string
}

// HydroStore is the data-access collaborator: synchronous, blocking reads of
// the hydrologic database. The engine owns no storage; implementations live
// in adapters.
type HydroStore interface {
	// ForecastPointInfo returns the static metadata of every forecast point
	// in the site's area of responsibility.
	ForecastPointInfo(ctx context.Context) ([]PointRecord, error)

	// ForecastGroupInfo returns the river forecast group definitions.
	ForecastGroupInfo(ctx context.Context) ([]GroupRecord, error)

	// ForecastCountyGroups returns the counties covered by the given points.
	ForecastCountyGroups(ctx context.Context) ([]CountyRecord, error)

	// RiverStatus returns the latest-report rows for a station and physical
	// element within the window, one row per type source.
	RiverStatus(ctx context.Context, stationID, pe string, begin, end time.Time) ([]ObservationRow, error)

	// IngestSettings returns the ranked type sources for a station and
	// physical element.
	IngestSettings(ctx context.Context, stationID, pe string) ([]TypeSourceRank, error)

	// IngestTable returns every ingested combination for the site.
	IngestTable(ctx context.Context) ([]IngestRecord, error)

	// TimeSeries returns the raw rows for one station, physical element, and
	// type source within the window. No rows is an empty slice, not an error.
	TimeSeries(ctx context.Context, stationID, pe, ts string, begin, end time.Time) ([]ObservationRow, error)

	// StageCrestHistory and FlowCrestHistory return the recorded historical
	// crest values for a station.
	StageCrestHistory(ctx context.Context, stationID string) ([]float64, error)
	FlowCrestHistory(ctx context.Context, stationID string) ([]float64, error)

	// PreviousEvents returns the most recent prior product per point and
	// significance.
	PreviousEvents(ctx context.Context) (domain.EventHistory, error)

	// SiteSettings returns the site-wide defaults, if the database carries
	// them.
	SiteSettings(ctx context.Context) (SiteSettings, error)
}

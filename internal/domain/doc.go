// Package domain models river gauge hydrology for flood hazard recommendation.
//
// # Data Source
//
// Observed and forecast time series originate from a hydrologic database laid
// out in the IHFS (Integrated Hydrologic Forecast System) shape: SHEF-encoded
// samples keyed by station, physical element, and type source. The engine
// consumes rows through the recommender's HydroStore interface and never
// queries storage directly.
//
// # SHEF Conventions
//
// Physical element:
//
//	"HG": river stage in feet
//	"QR": river discharge (flow) in cfs
//	A forecast point is configured for exactly one of the two; all of its
//	thresholds (action, flood, category ladder) are in the same unit.
//
// Type source:
//
//	First letter "R"/"P": observed/processed data
//	First letter "F"/"C": forecast and contingency data
//	Ingest settings rank the type sources per station; the highest-ranked
//	observed source supplies the current observation, the highest-ranked
//	forecast source supplies the forecast series.
//
// Missing values:
//
//	The database encodes absence as the sentinel -9999. That sentinel is
//	decoded at the store boundary into Value{Valid: false}; no domain
//	computation compares against the sentinel directly, so a real measurement
//	can never collide with it.
//
// # Flood Categories
//
// Each forecast point carries an ordered category ladder
// [unused, minor, moderate, major, record]. A value's category is the highest
// rung it reaches, with near-equality within 1e-4 absorbed so that round-off
// introduced upstream cannot drop a value below the rung it was issued at.
// Ladder rungs may individually be absent; present rungs must be
// non-decreasing, and violations are logged as data-quality problems rather
// than treated as fatal.
package domain

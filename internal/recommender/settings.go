package recommender

// SiteSettings are the site-wide defaults a run falls back to when a point
// carries no override. They normally come from the database's rpfparams row;
// when that row is absent the configured defaults apply and the run continues.
type SiteSettings struct {
	LookbackHours         int
	LookforwardHours      int
	BasisHours            int
	ShiftHours            float64
	StageWindow           float64
	VTECRecordStageOffset float64
	VTECRecordFlowOffset  float64
	FLWExpirationHours    int
}

// DefaultSiteSettings are the compiled-in fallbacks, matching common WFO
// site configuration.
func DefaultSiteSettings() SiteSettings {
	return SiteSettings{
		LookbackHours:         72,
		LookforwardHours:      360,
		BasisHours:            72,
		ShiftHours:            6,
		StageWindow:           0.5,
		VTECRecordStageOffset: 2.0,
		VTECRecordFlowOffset:  5000.0,
		FLWExpirationHours:    12,
	}
}

// RunOptions are the dialog inputs of one recommendation run.
type RunOptions struct {
	// ForecastConfidencePercentage in 0-100; at or above 80 a flooding point
	// is recommended as a warning, below it as a watch.
	ForecastConfidencePercentage int

	// IncludeNonFloodPoints also includes points with data but no flooding,
	// as informational statements.
	IncludeNonFloodPoints bool
}

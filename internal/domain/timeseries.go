package domain

import "time"

// DeriveSettings are the resolved tunables for one point's derivation, after
// any per-point overrides have been applied over the site-wide defaults.
type DeriveSettings struct {
	// StageWindow is the minimum change that counts as a rise or fall when
	// classifying the trend.
	StageWindow float64
}

// DerivePointState computes every per-run derived field for a forecast point
// from its observed and forecast hydrographs: current observation, forecast
// maximum, maximum observed-or-forecast, flood-threshold crossings, crest,
// interval maxima, and trend. Either hydrograph may be nil or empty; the
// corresponding fields degrade to missing.
func DerivePointState(meta PointMetadata, observed, forecast *Hydrograph, settings DeriveSettings, systemTime time.Time) PointDerivedState {
	var s PointDerivedState

	if obs, ok := observed.Latest(); ok {
		s.CurrentObservation = obs
		s.HasCurrentObservation = true
		s.CurrentCategory = meta.Ladder.Category(obs.Value)
	} else {
		s.CurrentCategory = CategoryNull
	}

	if fcst, ok := forecast.MaxForecast(); ok {
		s.MaximumForecast = fcst
		s.HasMaximumForecast = true
		s.MaxForecastCategory = meta.Ladder.Category(fcst.Value)
	} else {
		s.MaxForecastCategory = CategoryNull
	}

	s.MaxObservedForecast, s.MaxObservedForecastTime = maxObservedForecast(s)
	s.MaxObservedForecastCategory = meta.Ladder.Category(s.MaxObservedForecast)

	threshold := meta.FloodThreshold()
	s.Observed = analyzeSeries(observedAnalysisSamples(observed, forecast), threshold, true)
	s.Forecast = analyzeSeries(forecastAnalysisSamples(observed, forecast), threshold, false)
	reconcileCrossings(&s, observed, forecast)

	if last, ok := forecast.Latest(); ok && threshold.Valid {
		s.ForecastEndsAboveFlood = last.Value.Float64 >= threshold.Float64
	}

	s.ObservedMax6h = observed.MaxSince(systemTime.Add(-6 * time.Hour))
	s.ObservedMax24h = observed.MaxSince(systemTime.Add(-24 * time.Hour))

	s.Trend = deriveTrend(observed, forecast, settings.StageWindow)
	return s
}

// maxObservedForecast picks the worse of the current observation and the
// forecast peak. The current observation wins exact ties, so its valid time
// is the one attributed; a missing side compares as the minimum.
func maxObservedForecast(s PointDerivedState) (Value, time.Time) {
	var cur, fcst Value
	var curTime, fcstTime time.Time
	if s.HasCurrentObservation {
		cur, curTime = s.CurrentObservation.Value, s.CurrentObservation.ValidTime
	}
	if s.HasMaximumForecast {
		fcst, fcstTime = s.MaximumForecast.Value, s.MaximumForecast.ValidTime
	}
	if !cur.Valid && !fcst.Valid {
		return Value{}, time.Time{}
	}
	if cur.AtLeast(fcst) {
		return cur, curTime
	}
	return fcst, fcstTime
}

// sample is one point of the combined chronological series walked by the
// crest and crossing analysis. Synthetic samples were borrowed from the other
// series to anchor the analysis at the series boundary.
type sample struct {
	t         time.Time
	v         float64
	synthetic bool
}

// observedAnalysisSamples builds the observed analysis series: every valid
// observed sample, plus the first forecast value appended as a synthetic
// anchor so a crest still in progress at the end of the observations can be
// recognized.
func observedAnalysisSamples(observed, forecast *Hydrograph) []sample {
	samples := validSamples(observed, nil)
	if first, ok := forecast.Earliest(); ok {
		samples = append(samples, sample{t: first.ValidTime, v: first.Value.Float64, synthetic: true})
	}
	return samples
}

// forecastAnalysisSamples builds the forecast analysis series: the latest
// observed value prepended as a synthetic anchor, then every valid forecast
// sample. The anchor lets the obs-to-forecast transition produce the forecast
// rise-above.
func forecastAnalysisSamples(observed, forecast *Hydrograph) []sample {
	var samples []sample
	if last, ok := observed.Latest(); ok {
		samples = append(samples, sample{t: last.ValidTime, v: last.Value.Float64, synthetic: true})
	}
	return validSamples(forecast, samples)
}

func validSamples(h *Hydrograph, dst []sample) []sample {
	if h.Empty() {
		return dst
	}
	for _, o := range h.Observations {
		if o.Value.Valid {
			dst = append(dst, sample{t: o.ValidTime, v: o.Value.Float64})
		}
	}
	return dst
}

// analyzeSeries walks one combined series detecting the crest and the
// flood-threshold crossings. When excludeSynthetic is set, a crossing implied
// only by a synthetic sample is skipped: on the observed series such a
// crossing belongs to the forecast determination instead.
func analyzeSeries(samples []sample, threshold Value, excludeSynthetic bool) SeriesCrossings {
	var c SeriesCrossings
	if len(samples) < 2 {
		return c
	}

	if idx, ok := detectCrest(samples); ok {
		c.CrestTime = samples[idx].t
		c.CrestValue = NewValue(samples[idx].v)
	}

	if !threshold.Valid {
		return c
	}
	thr := threshold.Float64
	for i := 1; i < len(samples); i++ {
		a, b := samples[i-1], samples[i]
		if excludeSynthetic && (a.synthetic || b.synthetic) {
			continue
		}
		// Only the first rise and the last fall are retained.
		if a.v < thr && b.v >= thr && c.RiseAbove.IsZero() {
			c.RiseAbove = interpolateCrossing(a, b, thr)
		}
		if a.v >= thr && b.v < thr {
			c.FallBelow = interpolateCrossing(a, b, thr)
		}
	}
	return c
}

// detectCrest walks the series tracking trend transitions. A rise followed by
// a fall marks a crest; a rise followed by an unchanged run is a continuing
// rise, and if a fall eventually ends the run the earliest point of the
// sustained plateau is the crest. When several crests occur, the highest one
// wins, first on value ties.
func detectCrest(samples []sample) (int, bool) {
	best := -1
	rising := false
	plateauStart := -1
	for i := 1; i < len(samples); i++ {
		prev, cur := samples[i-1].v, samples[i].v
		switch {
		case cur > prev:
			rising = true
			plateauStart = -1
		case cur == prev:
			if rising && plateauStart == -1 {
				plateauStart = i - 1
			}
		default:
			if rising {
				crest := i - 1
				if plateauStart != -1 {
					crest = plateauStart
				}
				if best == -1 || samples[crest].v > samples[best].v {
					best = crest
				}
			}
			rising = false
			plateauStart = -1
		}
	}
	return best, best != -1
}

// interpolateCrossing places the threshold crossing time linearly between the
// bracketing sample pair.
func interpolateCrossing(a, b sample, threshold float64) time.Time {
	if b.v == a.v {
		return a.t
	}
	frac := (threshold - a.v) / (b.v - a.v)
	return a.t.Add(time.Duration(frac * float64(b.t.Sub(a.t))))
}

// reconcileCrossings merges the per-series results: an observed rise-above
// takes priority over a forecast one, a forecast fall-below over an observed
// one, and the crest comes from whichever series holds the higher value, the
// observed series on ties.
func reconcileCrossings(s *PointDerivedState, observed, forecast *Hydrograph) {
	s.RiseAboveTime = s.Observed.RiseAbove
	if s.RiseAboveTime.IsZero() {
		s.RiseAboveTime = s.Forecast.RiseAbove
	}

	s.FallBelowTime = s.Forecast.FallBelow
	if s.FallBelowTime.IsZero() {
		s.FallBelowTime = s.Observed.FallBelow
	}

	switch {
	case s.Observed.CrestValue.Valid && s.Observed.CrestValue.AtLeast(s.Forecast.CrestValue):
		s.CrestTime = s.Observed.CrestTime
		s.CrestValue = s.Observed.CrestValue
		if observed != nil {
			s.CrestTypeSource = observed.TypeSource
		}
	case s.Forecast.CrestValue.Valid:
		s.CrestTime = s.Forecast.CrestTime
		s.CrestValue = s.Forecast.CrestValue
		if forecast != nil {
			s.CrestTypeSource = forecast.TypeSource
		}
	}
}

package domain

// deriveTrend classifies the river's direction at a point.
//
// The reference stage is the latest non-missing observation, or the first
// forecast sample when no observation exists. The observed data are searched
// from most recent backward, the forecast data from earliest forward, each for
// the nearest value differing from the reference by more than the window; the
// sign of that difference gives the series trend. The forecast trend wins when
// forecast data exist, otherwise the observed trend stands.
func deriveTrend(observed, forecast *Hydrograph, window float64) Trend {
	ref, refFromObs := trendReference(observed, forecast)
	if !ref.Valid {
		return TrendMissing
	}

	obsTrend := TrendUnchanged
	if observed != nil {
		refIdx := len(observed.Observations)
		if refFromObs {
			// Skip the reference sample itself.
			for i := len(observed.Observations) - 1; i >= 0; i-- {
				if observed.Observations[i].Value.Valid {
					refIdx = i
					break
				}
			}
		}
		for i := refIdx - 1; i >= 0; i-- {
			v := observed.Observations[i].Value
			if !v.Valid {
				continue
			}
			diff := ref.Float64 - v.Float64
			if diff > window {
				obsTrend = TrendRise
				break
			}
			if diff < -window {
				obsTrend = TrendFall
				break
			}
		}
	}

	if forecast.Empty() {
		return obsTrend
	}

	fcstTrend := TrendUnchanged
	start := 0
	if !refFromObs {
		// The reference is the first forecast sample; compare from the next.
		for i, o := range forecast.Observations {
			if o.Value.Valid {
				start = i + 1
				break
			}
		}
	}
	for i := start; i < len(forecast.Observations); i++ {
		v := forecast.Observations[i].Value
		if !v.Valid {
			continue
		}
		diff := v.Float64 - ref.Float64
		if diff > window {
			fcstTrend = TrendRise
			break
		}
		if diff < -window {
			fcstTrend = TrendFall
			break
		}
	}
	return fcstTrend
}

func trendReference(observed, forecast *Hydrograph) (Value, bool) {
	if obs, ok := observed.Latest(); ok {
		return obs.Value, true
	}
	if fcst, ok := forecast.Earliest(); ok {
		return fcst.Value, false
	}
	return Value{}, false
}

package domain

import "time"

// GroupAggregate holds the category maxima computed over a set of member
// forecast points: the worst current-observed category, the worst forecast
// category, and the combined maximum observed-or-forecast of the two.
type GroupAggregate struct {
	MaxCurrentCategory  FloodCategory
	MaxCurrentTime      time.Time
	MaxForecastCategory FloodCategory
	MaxForecastTime     time.Time
	MaxCategory         FloodCategory
	MaxTime             time.Time
}

// ForecastGroup is a named set of forecast points aggregated by river.
// Members are referenced by station id, never owned.
type ForecastGroup struct {
	ID           string
	Name         string
	Ordinal      int
	RecommendAll bool
	PointIDs     []string

	Aggregate GroupAggregate
	Included  bool
}

// CountyGroup is a named set of forecast points aggregated by county.
type CountyGroup struct {
	County   string
	State    string
	PointIDs []string

	Aggregate GroupAggregate
	Included  bool
}

// ComputeAggregate recomputes the group's maxima from its member states.
func (g *ForecastGroup) ComputeAggregate(states map[string]PointDerivedState) {
	g.Aggregate = computeMofo(g.PointIDs, states)
}

// ComputeAggregate recomputes the county's maxima from its member states.
func (c *CountyGroup) ComputeAggregate(states map[string]PointDerivedState) {
	c.Aggregate = computeMofo(c.PointIDs, states)
}

// computeMofo tracks the maximum current-observed and maximum forecast
// categories independently over the members, breaking category ties by the
// earlier time, then combines them: the observed side wins when its category
// is at least the forecast's, so an equal observation available earlier is
// preferred.
func computeMofo(pointIDs []string, states map[string]PointDerivedState) GroupAggregate {
	agg := GroupAggregate{
		MaxCurrentCategory:  CategoryNull,
		MaxForecastCategory: CategoryNull,
		MaxCategory:         CategoryNull,
	}
	for _, id := range pointIDs {
		state, ok := states[id]
		if !ok {
			continue
		}
		if state.HasCurrentObservation {
			cat, at := state.CurrentCategory, state.CurrentObservation.ValidTime
			if betterCategory(cat, at, agg.MaxCurrentCategory, agg.MaxCurrentTime) {
				agg.MaxCurrentCategory, agg.MaxCurrentTime = cat, at
			}
		}
		if state.HasMaximumForecast {
			cat, at := state.MaxForecastCategory, state.MaximumForecast.ValidTime
			if betterCategory(cat, at, agg.MaxForecastCategory, agg.MaxForecastTime) {
				agg.MaxForecastCategory, agg.MaxForecastTime = cat, at
			}
		}
	}

	if agg.MaxCurrentCategory >= agg.MaxForecastCategory {
		agg.MaxCategory, agg.MaxTime = agg.MaxCurrentCategory, agg.MaxCurrentTime
	} else {
		agg.MaxCategory, agg.MaxTime = agg.MaxForecastCategory, agg.MaxForecastTime
	}
	return agg
}

// betterCategory reports whether (cat, at) beats the current maximum:
// a strictly higher category always wins, an equal one only when earlier.
func betterCategory(cat FloodCategory, at time.Time, maxCat FloodCategory, maxAt time.Time) bool {
	if cat > maxCat {
		return true
	}
	return cat == maxCat && (maxAt.IsZero() || at.Before(maxAt))
}

// PromoteGroups runs the group-promotion pass: for each river group flagged
// "recommend all points in group" whose severity exceeds RVS and which has at
// least one included member, every other member still at "N/A" is promoted to
// the group's severity with a group reason and a routine action. Members are
// resolved by explicit station id, never by positional index.
func PromoteGroups(groups []*ForecastGroup, events map[string]*HydroEvent) {
	for _, g := range groups {
		if !g.RecommendAll {
			continue
		}
		rank := g.severityRank(events)
		if rank <= RankRVS || !g.hasIncludedMember(events) {
			continue
		}
		for _, id := range g.PointIDs {
			ev, ok := events[id]
			if !ok || ev.Included || ev.Action != ActionNone {
				continue
			}
			ev.Included = true
			ev.Action = ActionRoutine
			ev.Reason = GroupReason(rank)
			ev.Rank = rank
		}
	}
}

func (g *ForecastGroup) severityRank(events map[string]*HydroEvent) ProductRank {
	rank := RankRVS
	for _, id := range g.PointIDs {
		if ev, ok := events[id]; ok && ev.Rank > rank {
			rank = ev.Rank
		}
	}
	return rank
}

func (g *ForecastGroup) hasIncludedMember(events map[string]*HydroEvent) bool {
	for _, id := range g.PointIDs {
		if ev, ok := events[id]; ok && ev.Included {
			return true
		}
	}
	return false
}

package analytics

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

type stationAccumulator struct {
	station  Station
	near     int
	at       int
	utils    []float64
	arrivals []float64
}

// RankProblemStations summarises every station with at least one slot at or
// above the near-capacity threshold and orders them worst first: most
// at-capacity slots, then most near-capacity slots, then by name and ID.
//
// Averages and maxima are taken over the qualifying slots only. peaks may be
// nil; stations without a detected peak get a nil Peak.
func RankProblemStations(slots []HourlyStationSlot, peaks map[int64]PeakSlot, th Thresholds) []StationSummary {
	acc := make(map[int64]*stationAccumulator)
	for _, s := range slots {
		if s.DockCount <= 0 {
			continue
		}
		level := th.Level(s.UtilisationPct)
		if level == CapacityNormal {
			continue
		}
		a, ok := acc[s.StationID]
		if !ok {
			a = &stationAccumulator{station: Station{ID: s.StationID, Name: s.StationName, DockCount: s.DockCount}}
			acc[s.StationID] = a
		}
		if level == CapacityAt {
			a.at++
		} else {
			a.near++
		}
		a.utils = append(a.utils, s.UtilisationPct)
		a.arrivals = append(a.arrivals, float64(s.Arrivals))
	}

	out := make([]StationSummary, 0, len(acc))
	for id, a := range acc {
		sum := StationSummary{
			StationID:             id,
			StationName:           a.station.Name,
			DockCount:             a.station.DockCount,
			InstancesNearCapacity: a.near,
			InstancesAtCapacity:   a.at,
			AvgHourlyArrivals:     stat.Mean(a.arrivals, nil),
			MaxHourlyArrivals:     int(floats.Max(a.arrivals)),
			AvgUtilisationPct:     stat.Mean(a.utils, nil),
			MaxUtilisationPct:     floats.Max(a.utils),
		}
		if p, ok := peaks[id]; ok {
			peak := p
			sum.Peak = &peak
		}
		sum.PeakLabel = sum.Peak.Label()
		out = append(out, sum)
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.InstancesAtCapacity != b.InstancesAtCapacity {
			return a.InstancesAtCapacity > b.InstancesAtCapacity
		}
		if a.InstancesNearCapacity != b.InstancesNearCapacity {
			return a.InstancesNearCapacity > b.InstancesNearCapacity
		}
		if a.StationName != b.StationName {
			return a.StationName < b.StationName
		}
		return a.StationID < b.StationID
	})
	return out
}

// TopN returns at most n summaries. n <= 0 returns all of them.
func TopN(summaries []StationSummary, n int) []StationSummary {
	if n <= 0 || len(summaries) <= n {
		return summaries
	}
	return summaries[:n]
}

// FindStation looks a summary up by station name.
func FindStation(summaries []StationSummary, name string) (StationSummary, bool) {
	for _, s := range summaries {
		if s.StationName == name {
			return s, true
		}
	}
	return StationSummary{}, false
}

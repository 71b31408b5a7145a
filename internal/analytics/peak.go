package analytics

import (
	"gonum.org/v1/gonum/stat"
)

type peakKey struct {
	stationID int64
	hour      int
	dow       int
}

// DetectPeaks finds, for every station, the (hour, day-of-week) that most often
// reaches threshold utilisation.
//
// Candidates are ranked by occurrence count, then average utilisation, then the
// earliest hour, then the earliest day of week. Stations that never reach the
// threshold are absent from the result.
func DetectPeaks(slots []HourlyStationSlot, threshold float64) map[int64]PeakSlot {
	utils := make(map[peakKey][]float64)
	for _, s := range slots {
		if s.UtilisationPct < threshold {
			continue
		}
		k := peakKey{stationID: s.StationID, hour: s.Hour, dow: s.DayOfWeek}
		utils[k] = append(utils[k], s.UtilisationPct)
	}

	peaks := make(map[int64]PeakSlot)
	for k, u := range utils {
		candidate := PeakSlot{
			Hour:           k.hour,
			DayOfWeek:      k.dow,
			Occurrences:    len(u),
			AvgUtilisation: stat.Mean(u, nil),
		}
		current, ok := peaks[k.stationID]
		if !ok || beats(candidate, current) {
			peaks[k.stationID] = candidate
		}
	}
	return peaks
}

func beats(a, b PeakSlot) bool {
	if a.Occurrences != b.Occurrences {
		return a.Occurrences > b.Occurrences
	}
	if a.AvgUtilisation != b.AvgUtilisation {
		return a.AvgUtilisation > b.AvgUtilisation
	}
	if a.Hour != b.Hour {
		return a.Hour < b.Hour
	}
	return a.DayOfWeek < b.DayOfWeek
}

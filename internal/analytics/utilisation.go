package analytics

import (
	"sort"
	"time"
)

type slotKey struct {
	stationID int64
	date      time.Time
	hour      int
}

// HourlySlots counts arrivals per station per clock hour for trips ending in w.
//
// Trips ending at unknown stations, or at stations without docks, are ignored.
// The result is ordered by station ID, date and hour.
func HourlySlots(trips []Trip, stations []Station, w Window) []HourlyStationSlot {
	byID := indexDocked(stations)

	counts := make(map[slotKey]int)
	for _, t := range trips {
		end := t.End.UTC()
		if !w.Contains(end) {
			continue
		}
		if _, ok := byID[t.EndStationID]; !ok {
			continue
		}
		counts[slotKey{stationID: t.EndStationID, date: truncateDay(end), hour: end.Hour()}]++
	}

	slots := make([]HourlyStationSlot, 0, len(counts))
	for k, n := range counts {
		st := byID[k.stationID]
		slots = append(slots, NewSlot(st, k.date, k.hour, n))
	}

	SortSlots(slots)
	return slots
}

// NewSlot builds a slot and derives its day of week and utilisation.
func NewSlot(st Station, date time.Time, hour, arrivals int) HourlyStationSlot {
	date = truncateDay(date)
	return HourlyStationSlot{
		StationID:      st.ID,
		StationName:    st.Name,
		DockCount:      st.DockCount,
		Date:           date,
		Hour:           hour,
		DayOfWeek:      DayOfWeek(date),
		Arrivals:       arrivals,
		UtilisationPct: UtilisationPct(arrivals, st.DockCount),
	}
}

// UtilisationPct is arrivals as a percentage of docks. A station without docks
// has no defined utilisation and reports 0.
func UtilisationPct(arrivals, docks int) float64 {
	if docks <= 0 {
		return 0
	}
	return float64(arrivals) / float64(docks) * 100
}

// SortSlots orders slots by station ID, date and hour.
func SortSlots(slots []HourlyStationSlot) {
	sort.Slice(slots, func(i, j int) bool {
		a, b := slots[i], slots[j]
		if a.StationID != b.StationID {
			return a.StationID < b.StationID
		}
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		return a.Hour < b.Hour
	})
}

func indexDocked(stations []Station) map[int64]Station {
	byID := make(map[int64]Station, len(stations))
	for _, s := range stations {
		if s.DockCount > 0 {
			byID[s.ID] = s
		}
	}
	return byID
}

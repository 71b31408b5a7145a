package analytics

import (
	"sort"
)

// HourlyArrivals is the network-wide arrival count for one hour of one day type.
type HourlyArrivals struct {
	Hour     int     `json:"hour" msgpack:"hour"`
	DayType  DayType `json:"day_type" msgpack:"day_type"`
	Arrivals int     `json:"arrivals" msgpack:"arrivals"`
}

// CriticalTimes lists when the network receives the most bikes.
type CriticalTimes struct {
	Weekday       []HourlyArrivals `json:"weekday" msgpack:"weekday"`
	Weekend       []HourlyArrivals `json:"weekend" msgpack:"weekend"`
	TopWeekday    []HourlyArrivals `json:"top_weekday" msgpack:"top_weekday"`
	TopWeekend    []HourlyArrivals `json:"top_weekend" msgpack:"top_weekend"`
	TotalArrivals int              `json:"total_arrivals" msgpack:"total_arrivals"`
}

// CriticalTopHours is how many peak hours are reported per day type.
const CriticalTopHours = 3

// CountArrivals buckets trips ending in w by hour of day and day type.
func CountArrivals(trips []Trip, w Window) []HourlyArrivals {
	type key struct {
		hour int
		dt   DayType
	}
	counts := make(map[key]int)
	for _, t := range trips {
		end := t.End.UTC()
		if !w.Contains(end) {
			continue
		}
		counts[key{hour: end.Hour(), dt: DayTypeOf(DayOfWeek(end))}]++
	}
	out := make([]HourlyArrivals, 0, len(counts))
	for k, n := range counts {
		out = append(out, HourlyArrivals{Hour: k.hour, DayType: k.dt, Arrivals: n})
	}
	return out
}

// BuildCriticalTimes splits arrival counts by day type, ordered by hour, and
// picks the busiest hours of each. Ties go to the earlier hour.
func BuildCriticalTimes(counts []HourlyArrivals) CriticalTimes {
	var ct CriticalTimes
	for _, c := range counts {
		ct.TotalArrivals += c.Arrivals
		if c.DayType == Weekend {
			ct.Weekend = append(ct.Weekend, c)
		} else {
			ct.Weekday = append(ct.Weekday, c)
		}
	}
	byHour := func(rows []HourlyArrivals) {
		sort.Slice(rows, func(i, j int) bool { return rows[i].Hour < rows[j].Hour })
	}
	byHour(ct.Weekday)
	byHour(ct.Weekend)
	ct.TopWeekday = topArrivals(ct.Weekday, CriticalTopHours)
	ct.TopWeekend = topArrivals(ct.Weekend, CriticalTopHours)
	return ct
}

func topArrivals(rows []HourlyArrivals, n int) []HourlyArrivals {
	sorted := make([]HourlyArrivals, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Arrivals != sorted[j].Arrivals {
			return sorted[i].Arrivals > sorted[j].Arrivals
		}
		return sorted[i].Hour < sorted[j].Hour
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// HourLabels formats the hours of rows, e.g. "08:00, 17:00".
func HourLabels(rows []HourlyArrivals, n int) []string {
	labels := make([]string, 0, len(rows))
	for i, r := range rows {
		if n > 0 && i >= n {
			break
		}
		labels = append(labels, HourLabel(r.Hour))
	}
	return labels
}

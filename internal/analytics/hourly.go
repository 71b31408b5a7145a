package analytics

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// DayType splits the week for charting.
type DayType string

const (
	Weekday DayType = "weekday"
	Weekend DayType = "weekend"
)

// DayTypeOf classifies a 1-based day-of-week.
func DayTypeOf(dow int) DayType {
	if IsWeekend(dow) {
		return Weekend
	}
	return Weekday
}

// HourlyProfileRow aggregates one station's slots for one (day-of-week, hour).
type HourlyProfileRow struct {
	DayOfWeek         int     `json:"day_of_week" msgpack:"day_of_week"`
	DayName           string  `json:"day_name" msgpack:"day_name"`
	DayType           DayType `json:"day_type" msgpack:"day_type"`
	Hour              int     `json:"hour" msgpack:"hour"`
	AvgArrivals       float64 `json:"avg_arrivals" msgpack:"avg_arrivals"`
	AvgUtilisationPct float64 `json:"avg_utilisation_pct" msgpack:"avg_utilisation_pct"`
	MaxUtilisationPct float64 `json:"max_utilisation_pct" msgpack:"max_utilisation_pct"`
	NearCapacityCount int     `json:"near_capacity_count" msgpack:"near_capacity_count"`
	AtCapacityCount   int     `json:"at_capacity_count" msgpack:"at_capacity_count"`
}

// HourlyPeak is the busiest hour of a day type.
type HourlyPeak struct {
	Hour              int     `json:"hour" msgpack:"hour"`
	DayName           string  `json:"day_name" msgpack:"day_name"`
	AvgUtilisationPct float64 `json:"avg_utilisation_pct" msgpack:"avg_utilisation_pct"`
	AtCapacityCount   int     `json:"at_capacity_count" msgpack:"at_capacity_count"`
}

// HourlyProfile is the capacity pattern of a single station.
type HourlyProfile struct {
	StationID         int64              `json:"station_id" msgpack:"station_id"`
	StationName       string             `json:"station_name" msgpack:"station_name"`
	DockCount         int                `json:"dock_count" msgpack:"dock_count"`
	Rows              []HourlyProfileRow `json:"rows" msgpack:"rows"`
	TotalNearCapacity int                `json:"total_near_capacity" msgpack:"total_near_capacity"`
	TotalAtCapacity   int                `json:"total_at_capacity" msgpack:"total_at_capacity"`
	WeekdayPeak       *HourlyPeak        `json:"weekday_peak,omitempty" msgpack:"weekday_peak,omitempty"`
	WeekendPeak       *HourlyPeak        `json:"weekend_peak,omitempty" msgpack:"weekend_peak,omitempty"`
	// MaxUtilisationPct is the chart ceiling: the largest slot maximum, never below 150.
	MaxUtilisationPct float64 `json:"chart_max_utilisation_pct" msgpack:"chart_max_utilisation_pct"`
}

// WeekdayRows returns the rows for Monday to Friday.
func (p HourlyProfile) WeekdayRows() []HourlyProfileRow { return p.rowsOf(Weekday) }

// WeekendRows returns the rows for Saturday and Sunday.
func (p HourlyProfile) WeekendRows() []HourlyProfileRow { return p.rowsOf(Weekend) }

func (p HourlyProfile) rowsOf(dt DayType) []HourlyProfileRow {
	var rows []HourlyProfileRow
	for _, r := range p.Rows {
		if r.DayType == dt {
			rows = append(rows, r)
		}
	}
	return rows
}

const minChartUtilisation = 150

type dowHour struct {
	dow  int
	hour int
}

// StationHourlyProfile groups the slots of the named station by day of week and
// hour. Slots of other stations are ignored; ok is false if none match.
func StationHourlyProfile(slots []HourlyStationSlot, stationName string, th Thresholds) (HourlyProfile, bool) {
	type bucket struct {
		arrivals []float64
		utils    []float64
		near, at int
	}
	buckets := make(map[dowHour]*bucket)
	profile := HourlyProfile{StationName: stationName, MaxUtilisationPct: minChartUtilisation}
	found := false

	for _, s := range slots {
		if s.StationName != stationName {
			continue
		}
		if !found {
			profile.StationID = s.StationID
			profile.DockCount = s.DockCount
			found = true
		}
		k := dowHour{dow: s.DayOfWeek, hour: s.Hour}
		b, ok := buckets[k]
		if !ok {
			b = &bucket{}
			buckets[k] = b
		}
		b.arrivals = append(b.arrivals, float64(s.Arrivals))
		b.utils = append(b.utils, s.UtilisationPct)
		switch th.Level(s.UtilisationPct) {
		case CapacityAt:
			b.at++
		case CapacityNear:
			b.near++
		}
	}
	if !found {
		return HourlyProfile{}, false
	}

	for k, b := range buckets {
		row := HourlyProfileRow{
			DayOfWeek:         k.dow,
			DayName:           DayName(k.dow),
			DayType:           DayTypeOf(k.dow),
			Hour:              k.hour,
			AvgArrivals:       stat.Mean(b.arrivals, nil),
			AvgUtilisationPct: stat.Mean(b.utils, nil),
			MaxUtilisationPct: floats.Max(b.utils),
			NearCapacityCount: b.near,
			AtCapacityCount:   b.at,
		}
		profile.Rows = append(profile.Rows, row)
		profile.TotalNearCapacity += b.near
		profile.TotalAtCapacity += b.at
		if row.MaxUtilisationPct > profile.MaxUtilisationPct {
			profile.MaxUtilisationPct = row.MaxUtilisationPct
		}
	}
	sort.Slice(profile.Rows, func(i, j int) bool {
		if profile.Rows[i].DayOfWeek != profile.Rows[j].DayOfWeek {
			return profile.Rows[i].DayOfWeek < profile.Rows[j].DayOfWeek
		}
		return profile.Rows[i].Hour < profile.Rows[j].Hour
	})

	profile.WeekdayPeak = busiestRow(profile.WeekdayRows())
	profile.WeekendPeak = busiestRow(profile.WeekendRows())
	return profile, true
}

// busiestRow picks the row with the highest average utilisation; ties go to
// the earlier hour and then the earlier day.
func busiestRow(rows []HourlyProfileRow) *HourlyPeak {
	if len(rows) == 0 {
		return nil
	}
	best := rows[0]
	for _, r := range rows[1:] {
		switch {
		case r.AvgUtilisationPct > best.AvgUtilisationPct:
			best = r
		case r.AvgUtilisationPct == best.AvgUtilisationPct && (r.Hour < best.Hour || (r.Hour == best.Hour && r.DayOfWeek < best.DayOfWeek)):
			best = r
		}
	}
	return &HourlyPeak{
		Hour:              best.Hour,
		DayName:           best.DayName,
		AvgUtilisationPct: best.AvgUtilisationPct,
		AtCapacityCount:   best.AtCapacityCount,
	}
}

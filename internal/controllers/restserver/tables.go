package restserver

import (
	"strconv"

	"github.com/chrissnell/cyclehire/internal/analytics"
	"github.com/chrissnell/cyclehire/internal/service"
)

// The wrappers below embed a result so JSON and MessagePack output is
// unchanged while ?format=csv gets the main table of the report.

type capacityTable struct {
	analytics.Result[service.CapacityReport]
}

func (t capacityTable) Header() []string {
	return []string{"rank", "station_id", "station_name", "dock_count", "instances_near_capacity",
		"instances_at_capacity", "avg_hourly_arrivals", "max_hourly_arrivals",
		"avg_utilisation_pct", "max_utilisation_pct", "peak"}
}

func (t capacityTable) Rows() [][]string {
	rows := make([][]string, 0, len(t.Data.Stations))
	for i, s := range t.Data.Stations {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			strconv.FormatInt(s.StationID, 10),
			s.StationName,
			strconv.Itoa(s.DockCount),
			strconv.Itoa(s.InstancesNearCapacity),
			strconv.Itoa(s.InstancesAtCapacity),
			ftoa(s.AvgHourlyArrivals),
			strconv.Itoa(s.MaxHourlyArrivals),
			ftoa(s.AvgUtilisationPct),
			ftoa(s.MaxUtilisationPct),
			s.PeakLabel,
		})
	}
	return rows
}

type stationTable struct {
	analytics.Result[service.StationReport]
}

func (t stationTable) Header() []string {
	return []string{"day_of_week", "day_name", "day_type", "hour", "avg_arrivals",
		"avg_utilisation_pct", "max_utilisation_pct", "near_capacity_count", "at_capacity_count"}
}

func (t stationTable) Rows() [][]string {
	rows := make([][]string, 0, len(t.Data.Profile.Rows))
	for _, r := range t.Data.Profile.Rows {
		rows = append(rows, []string{
			strconv.Itoa(r.DayOfWeek),
			r.DayName,
			string(r.DayType),
			strconv.Itoa(r.Hour),
			ftoa(r.AvgArrivals),
			ftoa(r.AvgUtilisationPct),
			ftoa(r.MaxUtilisationPct),
			strconv.Itoa(r.NearCapacityCount),
			strconv.Itoa(r.AtCapacityCount),
		})
	}
	return rows
}

type flowsTable struct {
	analytics.Result[service.FlowsReport]
}

func (t flowsTable) Header() []string {
	return []string{"station_id", "station_name", "dock_count", "outflows", "inflows",
		"net_flow", "imbalance_pct", "classification"}
}

// Rows lists the significant stations only.
func (t flowsTable) Rows() [][]string {
	rows := make([][]string, 0, len(t.Data.Flows.Significant))
	for _, f := range t.Data.Flows.Significant {
		rows = append(rows, []string{
			strconv.FormatInt(f.StationID, 10),
			f.StationName,
			strconv.Itoa(f.DockCount),
			strconv.Itoa(f.Outflows),
			strconv.Itoa(f.Inflows),
			strconv.Itoa(f.NetFlow),
			ftoa(f.ImbalancePct),
			string(f.Classification),
		})
	}
	return rows
}

type criticalTable struct {
	analytics.Result[analytics.CriticalTimes]
}

func (t criticalTable) Header() []string {
	return []string{"day_type", "hour", "arrivals"}
}

func (t criticalTable) Rows() [][]string {
	var rows [][]string
	for _, set := range [][]analytics.HourlyArrivals{t.Data.Weekday, t.Data.Weekend} {
		for _, a := range set {
			rows = append(rows, []string{string(a.DayType), strconv.Itoa(a.Hour), strconv.Itoa(a.Arrivals)})
		}
	}
	return rows
}

func ftoa(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}

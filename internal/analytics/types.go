// Package analytics computes station capacity and network imbalance statistics
// from bicycle-hire trips and docking stations.
//
// Every function in this package is a pure transform of its inputs: nothing is
// cached or mutated here, and identical inputs always produce identical output.
package analytics

import (
	"fmt"
	"time"
)

// Trip is a single completed hire.
type Trip struct {
	ID             int64     `json:"id" msgpack:"id"`
	StartStationID int64     `json:"start_station_id" msgpack:"start_station_id"`
	EndStationID   int64     `json:"end_station_id" msgpack:"end_station_id"`
	Start          time.Time `json:"start" msgpack:"start"`
	End            time.Time `json:"end" msgpack:"end"`
}

// Station is a docking station. DockCount must be positive for the station to
// take part in utilisation calculations.
type Station struct {
	ID        int64  `json:"id" msgpack:"id"`
	Name      string `json:"name" msgpack:"name"`
	DockCount int    `json:"dock_count" msgpack:"dock_count"`
}

// CapacityLevel buckets an hourly utilisation percentage.
type CapacityLevel string

const (
	CapacityNormal CapacityLevel = "normal"
	CapacityNear   CapacityLevel = "near"
	CapacityAt     CapacityLevel = "at"
)

// HourlyStationSlot is the arrival count at one station within one clock hour.
type HourlyStationSlot struct {
	StationID      int64     `json:"station_id" msgpack:"station_id"`
	StationName    string    `json:"station_name" msgpack:"station_name"`
	DockCount      int       `json:"dock_count" msgpack:"dock_count"`
	Date           time.Time `json:"date" msgpack:"date"`
	Hour           int       `json:"hour" msgpack:"hour"`
	DayOfWeek      int       `json:"day_of_week" msgpack:"day_of_week"`
	Arrivals       int       `json:"arrivals" msgpack:"arrivals"`
	UtilisationPct float64   `json:"utilisation_pct" msgpack:"utilisation_pct"`
}

// PeakSlot is the (hour, day-of-week) at which a station most often runs full.
type PeakSlot struct {
	Hour           int     `json:"hour" msgpack:"hour"`
	DayOfWeek      int     `json:"day_of_week" msgpack:"day_of_week"`
	Occurrences    int     `json:"occurrences" msgpack:"occurrences"`
	AvgUtilisation float64 `json:"avg_utilisation_pct" msgpack:"avg_utilisation_pct"`
}

// Label renders the peak as e.g. "Monday 08:00-09:00".
func (p *PeakSlot) Label() string {
	if p == nil {
		return "Unknown"
	}
	return DayName(p.DayOfWeek) + " " + HourRange(p.Hour)
}

// StationSummary aggregates the high-utilisation slots of one station.
type StationSummary struct {
	StationID             int64     `json:"station_id" msgpack:"station_id"`
	StationName           string    `json:"station_name" msgpack:"station_name"`
	DockCount             int       `json:"dock_count" msgpack:"dock_count"`
	InstancesNearCapacity int       `json:"instances_near_capacity" msgpack:"instances_near_capacity"`
	InstancesAtCapacity   int       `json:"instances_at_capacity" msgpack:"instances_at_capacity"`
	AvgHourlyArrivals     float64   `json:"avg_hourly_arrivals" msgpack:"avg_hourly_arrivals"`
	MaxHourlyArrivals     int       `json:"max_hourly_arrivals" msgpack:"max_hourly_arrivals"`
	AvgUtilisationPct     float64   `json:"avg_utilisation_pct" msgpack:"avg_utilisation_pct"`
	MaxUtilisationPct     float64   `json:"max_utilisation_pct" msgpack:"max_utilisation_pct"`
	Peak                  *PeakSlot `json:"peak,omitempty" msgpack:"peak,omitempty"`
	PeakLabel             string    `json:"peak_label" msgpack:"peak_label"`
}

// FlowClass describes which way bikes drift at a station.
type FlowClass string

const (
	Generator   FlowClass = "generator"
	Accumulator FlowClass = "accumulator"
	Balanced    FlowClass = "balanced"
)

// StationFlow is the trip balance of one station over the analysis window.
type StationFlow struct {
	StationID      int64     `json:"station_id" msgpack:"station_id"`
	StationName    string    `json:"station_name" msgpack:"station_name"`
	DockCount      int       `json:"dock_count" msgpack:"dock_count"`
	Outflows       int       `json:"outflows" msgpack:"outflows"`
	Inflows        int       `json:"inflows" msgpack:"inflows"`
	NetFlow        int       `json:"net_flow" msgpack:"net_flow"`
	ImbalancePct   float64   `json:"imbalance_pct" msgpack:"imbalance_pct"`
	Classification FlowClass `json:"classification" msgpack:"classification"`
}

var dayNames = [...]string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

// DayOfWeek numbers days 1=Sunday through 7=Saturday.
func DayOfWeek(t time.Time) int {
	return int(t.UTC().Weekday()) + 1
}

// DayName maps a 1-based day-of-week number to its English name.
func DayName(dow int) string {
	if dow < 1 || dow > 7 {
		return "Unknown"
	}
	return dayNames[dow-1]
}

// IsWeekend reports whether a 1-based day-of-week is Saturday or Sunday.
func IsWeekend(dow int) bool {
	return dow == 1 || dow == 7
}

// HourRange formats an hour as "08:00-09:00".
func HourRange(hour int) string {
	return HourLabel(hour) + "-" + HourLabel(hour+1)
}

// HourLabel formats an hour as "08:00".
func HourLabel(hour int) string {
	return fmt.Sprintf("%02d:00", hour)
}

package analytics

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ExpansionThreshold is the at-capacity count above which a station is
// recommended for more docks.
const ExpansionThreshold = 20

// IntervalsInPeriod is the number of whole intervals in days, never less than one.
func IntervalsInPeriod(days int, interval Interval) int {
	d := interval.Days()
	if d <= 0 {
		return 1
	}
	n := days / d
	if n < 1 {
		return 1
	}
	return n
}

// PerInterval spreads a total over a number of intervals.
func PerInterval(total float64, intervals int) float64 {
	if intervals < 1 {
		intervals = 1
	}
	return total / float64(intervals)
}

// LostRentals estimates how many hires were turned away by saturation events.
func LostRentals(atCapacity int, a RevenueAssumptions) int {
	return atCapacity * a.LostRentalsPerEvent
}

// RevenueImpact is atCapacity × lost rentals per event × price per rental.
func RevenueImpact(atCapacity int, a RevenueAssumptions) decimal.Decimal {
	return decimal.NewFromInt(int64(LostRentals(atCapacity, a))).Mul(a.PricePerRental)
}

// CapacityInsight summarises the most problematic station of a ranking.
type CapacityInsight struct {
	HasData                  bool            `json:"has_data" msgpack:"has_data"`
	StartDate                string          `json:"start_date" msgpack:"start_date"`
	EndDate                  string          `json:"end_date" msgpack:"end_date"`
	Interval                 Interval        `json:"interval" msgpack:"interval"`
	DaysInPeriod             int             `json:"days_in_period" msgpack:"days_in_period"`
	IntervalsInPeriod        int             `json:"intervals_in_period" msgpack:"intervals_in_period"`
	StationName              string          `json:"station_name" msgpack:"station_name"`
	AtCapacityCount          int             `json:"at_capacity_count" msgpack:"at_capacity_count"`
	PeakHours                string          `json:"peak_hours" msgpack:"peak_hours"`
	AtCapacityPerInterval    float64         `json:"at_capacity_per_interval" msgpack:"at_capacity_per_interval"`
	LostRentals              int             `json:"lost_rentals" msgpack:"lost_rentals"`
	RevenueImpact            decimal.Decimal `json:"revenue_impact" msgpack:"revenue_impact"`
	RevenueImpactPerInterval decimal.Decimal `json:"revenue_impact_per_interval" msgpack:"revenue_impact_per_interval"`
	Currency                 string          `json:"currency" msgpack:"currency"`
}

// BuildCapacityInsight derives the headline figures for the worst station in
// ranked. An empty ranking yields HasData=false.
func BuildCapacityInsight(ranked []StationSummary, p Params, a RevenueAssumptions) CapacityInsight {
	days := p.Days()
	intervals := IntervalsInPeriod(days, p.Interval)
	ci := CapacityInsight{
		StartDate:         p.StartDate(),
		EndDate:           p.EndDate(),
		Interval:          p.Interval,
		DaysInPeriod:      days,
		IntervalsInPeriod: intervals,
		Currency:          a.Currency,
		RevenueImpact:     decimal.Zero,
		PeakHours:         "Unknown",
	}
	ci.RevenueImpactPerInterval = decimal.Zero
	if len(ranked) == 0 {
		return ci
	}

	top := ranked[0]
	ci.HasData = true
	ci.StationName = top.StationName
	ci.AtCapacityCount = top.InstancesAtCapacity
	if top.Peak != nil {
		ci.PeakHours = HourRange(top.Peak.Hour)
	}
	ci.AtCapacityPerInterval = PerInterval(float64(top.InstancesAtCapacity), intervals)
	ci.LostRentals = LostRentals(top.InstancesAtCapacity, a)
	ci.RevenueImpact = RevenueImpact(top.InstancesAtCapacity, a)
	ci.RevenueImpactPerInterval = ci.RevenueImpact.Div(decimal.NewFromInt(int64(intervals))).Round(2)
	return ci
}

// Narrative renders the insight as dashboard bullet points.
func (ci CapacityInsight) Narrative() []string {
	if !ci.HasData {
		return []string{"No capacity data found for the selected time period."}
	}
	return []string{
		fmt.Sprintf("%s is the most problematic station, reaching full capacity %d times between %s and %s.",
			ci.StationName, ci.AtCapacityCount, ci.StartDate, ci.EndDate),
		fmt.Sprintf("This station typically reaches capacity during %s, the critical time for rebalancing.", ci.PeakHours),
		fmt.Sprintf("On average it reaches capacity %.1f times per %s.", ci.AtCapacityPerInterval, ci.Interval.Unit()),
		fmt.Sprintf("Potential revenue impact: at least %s %s in lost short-ride revenue over %d days.",
			ci.Currency, ci.RevenueImpact.StringFixed(2), ci.DaysInPeriod),
	}
}

// StationInsight summarises the hourly profile of one station.
type StationInsight struct {
	StationName           string   `json:"station_name" msgpack:"station_name"`
	DockCount             int      `json:"dock_count" msgpack:"dock_count"`
	TimesNearCapacity     int      `json:"times_near_capacity" msgpack:"times_near_capacity"`
	TimesAtCapacity       int      `json:"times_at_capacity" msgpack:"times_at_capacity"`
	IssuesPerInterval     float64  `json:"issues_per_interval" msgpack:"issues_per_interval"`
	AtCapacityPerInterval float64  `json:"at_capacity_per_interval" msgpack:"at_capacity_per_interval"`
	Interval              Interval `json:"interval" msgpack:"interval"`
	RecommendExpansion    bool     `json:"recommend_expansion" msgpack:"recommend_expansion"`
	Recommendation        string   `json:"recommendation" msgpack:"recommendation"`
}

// BuildStationInsight derives per-interval rates and a recommendation from a profile.
func BuildStationInsight(profile HourlyProfile, p Params) StationInsight {
	intervals := IntervalsInPeriod(p.Days(), p.Interval)
	si := StationInsight{
		StationName:           profile.StationName,
		DockCount:             profile.DockCount,
		TimesNearCapacity:     profile.TotalNearCapacity,
		TimesAtCapacity:       profile.TotalAtCapacity,
		IssuesPerInterval:     PerInterval(float64(profile.TotalNearCapacity+profile.TotalAtCapacity), intervals),
		AtCapacityPerInterval: PerInterval(float64(profile.TotalAtCapacity), intervals),
		Interval:              p.Interval,
		RecommendExpansion:    profile.TotalAtCapacity > ExpansionThreshold,
	}
	if si.RecommendExpansion {
		si.Recommendation = "Recommended for capacity expansion"
	} else {
		si.Recommendation = "Moderate capacity issues, monitoring recommended"
	}
	return si
}

// SystemInsight summarises rebalancing needs across the network.
type SystemInsight struct {
	HasData               bool     `json:"has_data" msgpack:"has_data"`
	StartDate             string   `json:"start_date" msgpack:"start_date"`
	EndDate               string   `json:"end_date" msgpack:"end_date"`
	Interval              Interval `json:"interval" msgpack:"interval"`
	IntervalsInPeriod     int      `json:"intervals_in_period" msgpack:"intervals_in_period"`
	BikesToRebalance      int      `json:"bikes_to_rebalance" msgpack:"bikes_to_rebalance"`
	BikesPerInterval      float64  `json:"bikes_per_interval" msgpack:"bikes_per_interval"`
	ImbalanceShareOfTrips float64  `json:"imbalance_share_of_trips_pct" msgpack:"imbalance_share_of_trips_pct"`
	TopGenerator          string   `json:"top_generator" msgpack:"top_generator"`
	TopAccumulator        string   `json:"top_accumulator" msgpack:"top_accumulator"`
	WeekdayPeakHours      []string `json:"weekday_peak_hours" msgpack:"weekday_peak_hours"`
	WeekendPeakHours      []string `json:"weekend_peak_hours" msgpack:"weekend_peak_hours"`
}

// BuildSystemInsight combines the flow report with the critical times. It is
// safe to call with empty inputs.
func BuildSystemInsight(fr FlowReport, ct CriticalTimes, p Params) SystemInsight {
	intervals := IntervalsInPeriod(p.Days(), p.Interval)
	si := SystemInsight{
		HasData:               len(fr.Significant) > 0 && ct.TotalArrivals > 0,
		StartDate:             p.StartDate(),
		EndDate:               p.EndDate(),
		Interval:              p.Interval,
		IntervalsInPeriod:     intervals,
		BikesToRebalance:      int(fr.SystemImbalance),
		BikesPerInterval:      PerInterval(fr.SystemImbalance, intervals),
		ImbalanceShareOfTrips: fr.ImbalanceShareOfTrips,
		TopGenerator:          "generator stations",
		TopAccumulator:        "accumulator stations",
		WeekdayPeakHours:      HourLabels(ct.TopWeekday, 2),
		WeekendPeakHours:      HourLabels(ct.TopWeekend, 2),
	}
	if len(fr.Generators) > 0 {
		si.TopGenerator = fr.Generators[0].StationName
	}
	if len(fr.Accumulators) > 0 {
		si.TopAccumulator = fr.Accumulators[0].StationName
	}
	return si
}

// Narrative renders the insight as dashboard bullet points.
func (si SystemInsight) Narrative() []string {
	if !si.HasData {
		return []string{"Insufficient data available for the selected period to generate system insights."}
	}
	return []string{
		fmt.Sprintf("From %s to %s the system requires rebalancing of approximately %d bikes (%.1f%% of total trips).",
			si.StartDate, si.EndDate, si.BikesToRebalance, si.ImbalanceShareOfTrips),
		fmt.Sprintf("Focusing rebalancing at %s (needs bikes) and %s (excess bikes) targets the key times (weekdays: %s, weekends: %s).",
			si.TopGenerator, si.TopAccumulator, strings.Join(si.WeekdayPeakHours, ", "), strings.Join(si.WeekendPeakHours, ", ")),
		fmt.Sprintf("About %.0f bikes need moving per %s.", si.BikesPerInterval, si.Interval.Unit()),
	}
}

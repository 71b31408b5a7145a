package analytics

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrInvalidParams is returned when a query window cannot be analysed.
var ErrInvalidParams = errors.New("invalid analysis parameters")

const dateLayout = "2006-01-02"

// Interval is the normalisation period used to express totals as rates.
type Interval string

const (
	Daily     Interval = "daily"
	Weekly    Interval = "weekly"
	Monthly   Interval = "monthly"
	Quarterly Interval = "quarterly"
	Annual    Interval = "annual"
)

var intervalUnits = map[Interval]string{
	Daily:     "day",
	Weekly:    "week",
	Monthly:   "month",
	Quarterly: "quarter",
	Annual:    "year",
}

var intervalDays = map[Interval]int{
	Daily:     1,
	Weekly:    7,
	Monthly:   30,
	Quarterly: 90,
	Annual:    365,
}

// Intervals lists the supported intervals from shortest to longest.
func Intervals() []Interval {
	return []Interval{Daily, Weekly, Monthly, Quarterly, Annual}
}

// ParseInterval accepts an interval name in any case. An empty string selects Weekly.
func ParseInterval(s string) (Interval, error) {
	if s == "" {
		return Weekly, nil
	}
	i := Interval(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := intervalDays[i]; !ok {
		return "", fmt.Errorf("%w: unknown interval %q", ErrInvalidParams, s)
	}
	return i, nil
}

// Days returns the length of the interval in days.
func (i Interval) Days() int {
	return intervalDays[i]
}

// Unit names a single interval, e.g. "week".
func (i Interval) Unit() string {
	return intervalUnits[i]
}

// Title returns the capitalised name, e.g. "Weekly".
func (i Interval) Title() string {
	if i == "" {
		return ""
	}
	return strings.ToUpper(string(i[:1])) + string(i[1:])
}

// Span is the date range for which the dataset holds trips.
type Span struct {
	Min time.Time
	Max time.Time
}

// DefaultSpan covers the public London cycle hire dataset.
var DefaultSpan = Span{
	Min: time.Date(2015, 1, 4, 0, 0, 0, 0, time.UTC),
	Max: time.Date(2023, 1, 15, 0, 0, 0, 0, time.UTC),
}

// Params is the complete, immutable description of one analysis request.
type Params struct {
	Start    time.Time
	End      time.Time
	Interval Interval
	Station  string
}

// NewParams parses YYYY-MM-DD dates, clamps them to span and validates the result.
func NewParams(start, end string, interval string, span Span) (Params, error) {
	s, err := time.Parse(dateLayout, start)
	if err != nil {
		return Params{}, fmt.Errorf("%w: start date %q", ErrInvalidParams, start)
	}
	e, err := time.Parse(dateLayout, end)
	if err != nil {
		return Params{}, fmt.Errorf("%w: end date %q", ErrInvalidParams, end)
	}
	iv, err := ParseInterval(interval)
	if err != nil {
		return Params{}, err
	}

	p := Params{Start: s, End: e, Interval: iv}.Clamp(span)
	if err := p.Validate(); err != nil {
		return Params{}, err
	}
	return p, nil
}

// Clamp pulls both dates into span.
func (p Params) Clamp(span Span) Params {
	p.Start = clampDate(truncateDay(p.Start), span)
	p.End = clampDate(truncateDay(p.End), span)
	return p
}

// Validate checks the ordering of the window and the interval.
func (p Params) Validate() error {
	if p.End.Before(p.Start) {
		return fmt.Errorf("%w: end date %s is before start date %s", ErrInvalidParams,
			p.End.Format(dateLayout), p.Start.Format(dateLayout))
	}
	if p.Interval.Days() == 0 {
		return fmt.Errorf("%w: unknown interval %q", ErrInvalidParams, p.Interval)
	}
	return nil
}

// WithStation returns a copy of p scoped to a single station.
func (p Params) WithStation(name string) Params {
	p.Station = name
	return p
}

// WithInterval returns a copy of p normalising rates per iv.
func (p Params) WithInterval(iv Interval) Params {
	p.Interval = iv
	return p
}

// Window returns the instant range covered by the inclusive date range.
func (p Params) Window() Window {
	return Window{From: truncateDay(p.Start), To: truncateDay(p.End).AddDate(0, 0, 1)}
}

// Days is the number of whole days between Start and End.
func (p Params) Days() int {
	return int(truncateDay(p.End).Sub(truncateDay(p.Start)) / (24 * time.Hour))
}

// StartDate formats Start as YYYY-MM-DD.
func (p Params) StartDate() string { return p.Start.Format(dateLayout) }

// EndDate formats End as YYYY-MM-DD.
func (p Params) EndDate() string { return p.End.Format(dateLayout) }

// Key identifies the parameter tuple for caching.
func (p Params) Key() string {
	return strings.Join([]string{p.StartDate(), p.EndDate(), string(p.Interval), p.Station}, "|")
}

// Window is a half-open instant range [From, To).
type Window struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.From) && t.Before(w.To)
}

// Thresholds are the utilisation cut-offs. Peak and near-capacity are tuned
// independently of each other.
type Thresholds struct {
	Peak         float64 `json:"peak" yaml:"peak"`
	NearCapacity float64 `json:"near_capacity" yaml:"near_capacity"`
	AtCapacity   float64 `json:"at_capacity" yaml:"at_capacity"`
	// SignificantNetFlow is the |net flow| a station must exceed to be reported.
	SignificantNetFlow int `json:"significant_net_flow" yaml:"significant_net_flow"`
}

// DefaultThresholds returns 95/80/100 percent and a net flow of 20 bikes.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Peak:               95,
		NearCapacity:       80,
		AtCapacity:         100,
		SignificantNetFlow: 20,
	}
}

// Level buckets a utilisation percentage.
func (t Thresholds) Level(pct float64) CapacityLevel {
	switch {
	case pct >= t.AtCapacity:
		return CapacityAt
	case pct >= t.NearCapacity:
		return CapacityNear
	default:
		return CapacityNormal
	}
}

// RevenueAssumptions drive the lost-revenue estimate.
type RevenueAssumptions struct {
	LostRentalsPerEvent int             `json:"lost_rentals_per_event"`
	PricePerRental      decimal.Decimal `json:"price_per_rental"`
	Currency            string          `json:"currency"`
}

// DefaultRevenueAssumptions assumes five lost rentals per saturation event at
// £1.65 for a ride of up to 30 minutes.
func DefaultRevenueAssumptions() RevenueAssumptions {
	return RevenueAssumptions{
		LostRentalsPerEvent: 5,
		PricePerRental:      decimal.RequireFromString("1.65"),
		Currency:            "GBP",
	}
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func clampDate(t time.Time, span Span) time.Time {
	if !span.Min.IsZero() && t.Before(span.Min) {
		return span.Min
	}
	if !span.Max.IsZero() && t.After(span.Max) {
		return span.Max
	}
	return t
}

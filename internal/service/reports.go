package service

import (
	"context"
	"fmt"

	"github.com/chrissnell/cyclehire/internal/analytics"
)

// CapacityReport is the problem-station table with its headline insight.
type CapacityReport struct {
	StartDate string                     `json:"start_date" msgpack:"start_date"`
	EndDate   string                     `json:"end_date" msgpack:"end_date"`
	Interval  analytics.Interval         `json:"interval" msgpack:"interval"`
	Stations  []analytics.StationSummary `json:"stations" msgpack:"stations"`
	Insight   analytics.CapacityInsight  `json:"insight" msgpack:"insight"`
	Narrative []string                   `json:"narrative" msgpack:"narrative"`
}

// StationReport is the hourly breakdown of one ranked station.
type StationReport struct {
	Summary   analytics.StationSummary `json:"summary" msgpack:"summary"`
	Profile   analytics.HourlyProfile  `json:"profile" msgpack:"profile"`
	Insight   analytics.StationInsight `json:"insight" msgpack:"insight"`
	StartDate string                   `json:"start_date" msgpack:"start_date"`
	EndDate   string                   `json:"end_date" msgpack:"end_date"`
}

// FlowsReport is the network balance with its chart extracts and insight.
type FlowsReport struct {
	Flows           analytics.FlowReport    `json:"flows" msgpack:"flows"`
	TopGenerators   []analytics.StationFlow `json:"top_generators" msgpack:"top_generators"`
	TopAccumulators []analytics.StationFlow `json:"top_accumulators" msgpack:"top_accumulators"`
	Critical        analytics.CriticalTimes `json:"critical_times" msgpack:"critical_times"`
	Insight         analytics.SystemInsight `json:"insight" msgpack:"insight"`
	Narrative       []string                `json:"narrative" msgpack:"narrative"`
}

// Capacity ranks problem stations and keeps the first limit of them. A
// non-positive limit uses the configured top N.
func (s *Service) Capacity(ctx context.Context, p analytics.Params, limit int) (analytics.Result[CapacityReport], error) {
	if err := p.Validate(); err != nil {
		return analytics.Result[CapacityReport]{}, err
	}
	if limit <= 0 {
		limit = s.opts.TopN
	}

	ranked := s.Ranking(ctx, p)
	if !ranked.OK() {
		return analytics.Result[CapacityReport]{Status: analytics.StatusFailure, Reason: ranked.Reason}, nil
	}

	insight := analytics.BuildCapacityInsight(ranked.Data, p, s.opts.Revenue)
	report := CapacityReport{
		StartDate: p.StartDate(),
		EndDate:   p.EndDate(),
		Interval:  p.Interval,
		Stations:  analytics.TopN(ranked.Data, limit),
		Insight:   insight,
		Narrative: insight.Narrative(),
	}
	return analytics.Success(report, len(ranked.Data) == 0), nil
}

// StationHourly profiles p.Station, which must be one of the top ranked stations.
func (s *Service) StationHourly(ctx context.Context, p analytics.Params) (analytics.Result[StationReport], error) {
	if err := p.Validate(); err != nil {
		return analytics.Result[StationReport]{}, err
	}
	if p.Station == "" {
		return analytics.Result[StationReport]{}, fmt.Errorf("%w: no station selected", analytics.ErrInvalidParams)
	}

	ranked := s.Ranking(ctx, p)
	if !ranked.OK() {
		return analytics.Result[StationReport]{Status: analytics.StatusFailure, Reason: ranked.Reason}, nil
	}
	summary, ok := analytics.FindStation(analytics.TopN(ranked.Data, s.opts.TopN), p.Station)
	if !ok {
		return analytics.Result[StationReport]{}, fmt.Errorf("%w: %q", ErrStationNotRanked, p.Station)
	}

	profile := cached(ctx, s, kindStation, p, func(ctx context.Context) (analytics.HourlyProfile, bool, error) {
		slots, err := s.slots(ctx, p.Window())
		if err != nil {
			return analytics.HourlyProfile{}, false, fmt.Errorf("computing hourly utilisation: %w", err)
		}
		prof, found := analytics.StationHourlyProfile(slots, p.Station, s.opts.Thresholds)
		return prof, !found, nil
	})
	if !profile.OK() {
		return analytics.Result[StationReport]{Status: analytics.StatusFailure, Reason: profile.Reason}, nil
	}

	report := StationReport{
		Summary:   summary,
		Profile:   profile.Data,
		Insight:   analytics.BuildStationInsight(profile.Data, p),
		StartDate: p.StartDate(),
		EndDate:   p.EndDate(),
	}
	return analytics.Success(report, profile.Status == analytics.StatusEmpty), nil
}

// CriticalTimes finds the hours in which the network receives the most bikes.
func (s *Service) CriticalTimes(ctx context.Context, p analytics.Params) (analytics.Result[analytics.CriticalTimes], error) {
	if err := p.Validate(); err != nil {
		return analytics.Result[analytics.CriticalTimes]{}, err
	}
	p = p.WithStation("")
	return cached(ctx, s, kindCritical, p, func(ctx context.Context) (analytics.CriticalTimes, bool, error) {
		counts, err := s.arrivals(ctx, p.Window())
		if err != nil {
			return analytics.CriticalTimes{}, false, fmt.Errorf("counting network arrivals: %w", err)
		}
		ct := analytics.BuildCriticalTimes(counts)
		return ct, ct.TotalArrivals == 0, nil
	}), nil
}

// Flows computes the network balance and the system-wide rebalancing insight.
func (s *Service) Flows(ctx context.Context, p analytics.Params) (analytics.Result[FlowsReport], error) {
	if err := p.Validate(); err != nil {
		return analytics.Result[FlowsReport]{}, err
	}
	p = p.WithStation("")

	fr := cached(ctx, s, kindFlows, p, func(ctx context.Context) (analytics.FlowReport, bool, error) {
		report, err := s.flowReport(ctx, p.Window())
		if err != nil {
			return analytics.FlowReport{}, false, fmt.Errorf("computing station flows: %w", err)
		}
		return report, report.TotalTrips == 0, nil
	})
	if !fr.OK() {
		return analytics.Result[FlowsReport]{Status: analytics.StatusFailure, Reason: fr.Reason}, nil
	}

	ct, _ := s.CriticalTimes(ctx, p)
	if !ct.OK() {
		return analytics.Result[FlowsReport]{Status: analytics.StatusFailure, Reason: ct.Reason}, nil
	}

	insight := analytics.BuildSystemInsight(fr.Data, ct.Data, p)
	report := FlowsReport{
		Flows:           fr.Data,
		TopGenerators:   analytics.TopFlows(fr.Data.Generators, FlowChartStations),
		TopAccumulators: analytics.TopFlows(fr.Data.Accumulators, FlowChartStations),
		Critical:        ct.Data,
		Insight:         insight,
		Narrative:       insight.Narrative(),
	}
	return analytics.Success(report, fr.Status == analytics.StatusEmpty), nil
}

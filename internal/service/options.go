package service

import (
	"fmt"
	"time"

	"github.com/chrissnell/cyclehire/internal/analytics"
	"github.com/chrissnell/cyclehire/pkg/config"
	"github.com/shopspring/decimal"
)

// FlowChartStations is how many generators and accumulators are charted.
const FlowChartStations = 5

// Options are the analysis settings resolved from configuration.
type Options struct {
	Span            analytics.Span
	Thresholds      analytics.Thresholds
	Revenue         analytics.RevenueAssumptions
	TopN            int
	DefaultStart    string
	DefaultEnd      string
	DefaultInterval analytics.Interval
	TTL             time.Duration
}

// DefaultOptions mirrors the shipped configuration defaults.
func DefaultOptions() Options {
	return Options{
		Span:            analytics.DefaultSpan,
		Thresholds:      analytics.DefaultThresholds(),
		Revenue:         analytics.DefaultRevenueAssumptions(),
		TopN:            10,
		DefaultStart:    "2022-01-01",
		DefaultEnd:      analytics.DefaultSpan.Max.Format("2006-01-02"),
		DefaultInterval: analytics.Weekly,
		TTL:             time.Hour,
	}
}

// OptionsFromConfig converts validated configuration into Options.
func OptionsFromConfig(a config.AnalysisData, ttl time.Duration) (Options, error) {
	min, err := time.Parse("2006-01-02", a.DatasetStart)
	if err != nil {
		return Options{}, fmt.Errorf("dataset start: %w", err)
	}
	max, err := time.Parse("2006-01-02", a.DatasetEnd)
	if err != nil {
		return Options{}, fmt.Errorf("dataset end: %w", err)
	}
	price, err := decimal.NewFromString(a.PricePerRental)
	if err != nil {
		return Options{}, fmt.Errorf("price per rental %q: %w", a.PricePerRental, err)
	}
	interval, err := analytics.ParseInterval(a.DefaultInterval)
	if err != nil {
		return Options{}, err
	}

	return Options{
		Span: analytics.Span{Min: min, Max: max},
		Thresholds: analytics.Thresholds{
			Peak:               a.PeakThreshold,
			NearCapacity:       a.NearCapacityThreshold,
			AtCapacity:         a.AtCapacityThreshold,
			SignificantNetFlow: a.SignificantNetFlow,
		},
		Revenue: analytics.RevenueAssumptions{
			LostRentalsPerEvent: a.LostRentalsPerEvent,
			PricePerRental:      price,
			Currency:            a.Currency,
		},
		TopN:            a.TopN,
		DefaultStart:    a.DefaultStart,
		DefaultEnd:      a.DefaultEnd,
		DefaultInterval: interval,
		TTL:             ttl,
	}, nil
}

// Package service runs the analytics over warehouse data and caches the results.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chrissnell/cyclehire/internal/analytics"
	"github.com/chrissnell/cyclehire/internal/cache"
	"github.com/chrissnell/cyclehire/internal/warehouse"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ErrStationNotRanked is returned when an hourly profile is requested for a
// station outside the current problem-station ranking.
var ErrStationNotRanked = errors.New("station is not among the ranked problem stations")

// Report kinds, used as cache key prefixes.
const (
	kindRanking  = "ranking"
	kindStation  = "station"
	kindFlows    = "flows"
	kindCritical = "critical"
)

// Service answers dashboard queries.
type Service struct {
	source warehouse.Source
	cache  cache.Cache
	opts   Options
	group  singleflight.Group
	logger *zap.SugaredLogger
}

func New(source warehouse.Source, c cache.Cache, opts Options, logger *zap.SugaredLogger) *Service {
	if c == nil {
		c = cache.NewMemoryCache()
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Service{source: source, cache: c, opts: opts, logger: logger}
}

// Options returns the settings the service was built with.
func (s *Service) Options() Options {
	return s.opts
}

// Params resolves request parameters, substituting the configured defaults
// for blank values.
func (s *Service) Params(start, end, interval string) (analytics.Params, error) {
	if start == "" {
		start = s.opts.DefaultStart
	}
	if end == "" {
		end = s.opts.DefaultEnd
	}
	if interval == "" {
		interval = string(s.opts.DefaultInterval)
	}
	return analytics.NewParams(start, end, interval, s.opts.Span)
}

// Ping checks that the warehouse is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.source.Ping(ctx)
}

// computeTimeout bounds a shared computation once it is detached from the
// request that started it.
const computeTimeout = 5 * time.Minute

// cached returns the result stored under kind and p, computing it on a miss.
// Concurrent misses for the same key share one computation, which runs
// detached from any single caller's cancellation. Failures are logged and
// returned but never stored.
func cached[T any](ctx context.Context, s *Service, kind string, p analytics.Params,
	compute func(ctx context.Context) (T, bool, error)) analytics.Result[T] {

	// Cached aggregates do not depend on the rate interval.
	p = p.WithInterval("")
	key := kind + ":" + p.Key()

	if data, err := s.cache.Get(ctx, key); err == nil {
		var r analytics.Result[T]
		if err := msgpack.Unmarshal(data, &r); err == nil {
			return r
		}
		s.logger.Warnw("discarding undecodable cache entry", "key", key, "error", err)
	} else if !errors.Is(err, cache.ErrMiss) {
		s.logger.Warnw("cache read failed", "key", key, "error", err)
	}

	ch := s.group.DoChan(key, func() (interface{}, error) {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), computeTimeout)
		defer cancel()

		data, empty, err := compute(cctx)
		if err != nil {
			s.logger.Errorw("analysis failed", "kind", kind, "params", p.Key(), "error", err)
			return analytics.Failure[T](err), nil
		}

		r := analytics.Success(data, empty)
		enc, err := msgpack.Marshal(r)
		if err != nil {
			s.logger.Warnw("unable to encode result for cache", "key", key, "error", err)
			return r, nil
		}
		if err := s.cache.Set(cctx, key, enc, s.opts.TTL); err != nil {
			s.logger.Warnw("cache write failed", "key", key, "error", err)
		}
		return r, nil
	})

	select {
	case res := <-ch:
		return res.Val.(analytics.Result[T])
	case <-ctx.Done():
		return analytics.Failure[T](fmt.Errorf("waiting for %s: %w", kind, ctx.Err()))
	}
}

func (s *Service) slots(ctx context.Context, w analytics.Window) ([]analytics.HourlyStationSlot, error) {
	if agg, ok := s.source.(warehouse.Aggregator); ok {
		return agg.HourlySlots(ctx, w)
	}
	stations, trips, err := s.load(ctx, w)
	if err != nil {
		return nil, err
	}
	return analytics.HourlySlots(trips, stations, w), nil
}

func (s *Service) flowReport(ctx context.Context, w analytics.Window) (analytics.FlowReport, error) {
	sig := s.opts.Thresholds.SignificantNetFlow
	if agg, ok := s.source.(warehouse.Aggregator); ok {
		flows, total, err := agg.StationFlows(ctx, w)
		if err != nil {
			return analytics.FlowReport{}, err
		}
		return analytics.BuildFlowReport(flows, total, sig), nil
	}
	stations, trips, err := s.load(ctx, w)
	if err != nil {
		return analytics.FlowReport{}, err
	}
	return analytics.AnalyzeFlows(trips, stations, w, sig), nil
}

func (s *Service) arrivals(ctx context.Context, w analytics.Window) ([]analytics.HourlyArrivals, error) {
	if agg, ok := s.source.(warehouse.Aggregator); ok {
		return agg.NetworkArrivals(ctx, w)
	}
	trips, err := s.source.Trips(ctx, w)
	if err != nil {
		return nil, err
	}
	return analytics.CountArrivals(trips, w), nil
}

func (s *Service) load(ctx context.Context, w analytics.Window) ([]analytics.Station, []analytics.Trip, error) {
	stations, err := s.source.Stations(ctx)
	if err != nil {
		return nil, nil, err
	}
	trips, err := s.source.Trips(ctx, w)
	if err != nil {
		return nil, nil, err
	}
	s.logger.Debugw("loaded raw trips", "stations", len(stations), "trips", len(trips))
	return stations, trips, nil
}

// Ranking is every problem station in the window, most problematic first.
func (s *Service) Ranking(ctx context.Context, p analytics.Params) analytics.Result[[]analytics.StationSummary] {
	p = p.WithStation("")
	return cached(ctx, s, kindRanking, p, func(ctx context.Context) ([]analytics.StationSummary, bool, error) {
		slots, err := s.slots(ctx, p.Window())
		if err != nil {
			return nil, false, fmt.Errorf("computing hourly utilisation: %w", err)
		}
		peaks := analytics.DetectPeaks(slots, s.opts.Thresholds.Peak)
		ranked := analytics.RankProblemStations(slots, peaks, s.opts.Thresholds)
		return ranked, len(ranked) == 0, nil
	})
}

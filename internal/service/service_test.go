package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/chrissnell/cyclehire/internal/analytics"
	"github.com/chrissnell/cyclehire/internal/cache"
	"github.com/chrissnell/cyclehire/internal/warehouse"
)

// countingSource records how often raw trips are read.
type countingSource struct {
	*warehouse.MemorySource
	trips   atomic.Int32
	release chan struct{}
}

func (c *countingSource) Trips(ctx context.Context, w analytics.Window) ([]analytics.Trip, error) {
	c.trips.Add(1)
	if c.release != nil {
		<-c.release
	}
	// Behave like a database driver and give up on a cancelled context.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.MemorySource.Trips(ctx, w)
}

// aggregatingSource answers the aggregate queries itself.
type aggregatingSource struct {
	*countingSource
	aggregations atomic.Int32
}

func (a *aggregatingSource) HourlySlots(ctx context.Context, w analytics.Window) ([]analytics.HourlyStationSlot, error) {
	a.aggregations.Add(1)
	stations, _ := a.Stations(ctx)
	trips, _ := a.MemorySource.Trips(ctx, w)
	return analytics.HourlySlots(trips, stations, w), nil
}

func (a *aggregatingSource) StationFlows(ctx context.Context, w analytics.Window) ([]analytics.StationFlow, int, error) {
	a.aggregations.Add(1)
	stations, _ := a.Stations(ctx)
	trips, _ := a.MemorySource.Trips(ctx, w)
	r := analytics.AnalyzeFlows(trips, stations, w, 0)
	return r.Stations, r.TotalTrips, nil
}

func (a *aggregatingSource) NetworkArrivals(ctx context.Context, w analytics.Window) ([]analytics.HourlyArrivals, error) {
	a.aggregations.Add(1)
	trips, _ := a.MemorySource.Trips(ctx, w)
	return analytics.CountArrivals(trips, w), nil
}

var stations = []analytics.Station{
	{ID: 1, Name: "Hyde Park Corner", DockCount: 2},
	{ID: 2, Name: "Waterloo Station 3", DockCount: 10},
	{ID: 3, Name: "Empty Dock", DockCount: 0},
}

func at(day, hour, minute int) time.Time {
	return time.Date(2016, 3, day, hour, minute, 0, 0, time.UTC)
}

// fixtureTrips fills Hyde Park Corner on Monday and Tuesday at 08:00 and
// leaves Waterloo at 10%.
func fixtureTrips() []analytics.Trip {
	var trips []analytics.Trip
	id := int64(0)
	add := func(from, to int64, start, end time.Time) {
		id++
		trips = append(trips, analytics.Trip{ID: id, StartStationID: from, EndStationID: to, Start: start, End: end})
	}
	for _, day := range []int{7, 8} {
		add(2, 1, at(day, 7, 40), at(day, 8, 5))
		add(2, 1, at(day, 7, 45), at(day, 8, 10))
	}
	add(1, 2, at(7, 7, 50), at(7, 8, 20))
	return trips
}

func newTestService(src warehouse.Source) *Service {
	return New(src, cache.NewMemoryCache(), DefaultOptions(), nil)
}

func mustParams(t *testing.T, s *Service, start, end string) analytics.Params {
	t.Helper()
	p, err := s.Params(start, end, "weekly")
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestCapacity(t *testing.T) {
	src := &countingSource{MemorySource: warehouse.NewMemorySource(stations, fixtureTrips())}
	s := newTestService(src)
	p := mustParams(t, s, "2016-03-07", "2016-03-13")

	res, err := s.Capacity(context.Background(), p, 0)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != analytics.StatusSuccess {
		t.Fatalf("expected success, got %s (%s)", res.Status, res.Reason)
	}
	if len(res.Data.Stations) != 1 {
		t.Fatalf("expected only Hyde Park Corner to rank, got %+v", res.Data.Stations)
	}
	top := res.Data.Stations[0]
	if top.StationName != "Hyde Park Corner" || top.InstancesAtCapacity != 2 {
		t.Errorf("unexpected top station %+v", top)
	}
	if top.PeakLabel != "Monday 08:00-09:00" {
		t.Errorf("expected Monday peak, got %q", top.PeakLabel)
	}
	ins := res.Data.Insight
	if !ins.HasData || ins.LostRentals != 10 || ins.RevenueImpact.StringFixed(2) != "16.50" {
		t.Errorf("unexpected insight %+v", ins)
	}
	if len(res.Data.Narrative) != 4 {
		t.Errorf("expected 4 narrative lines, got %d", len(res.Data.Narrative))
	}

	// Served from cache even though the warehouse is now failing.
	src.SetError(errors.New("warehouse down"))
	again, err := s.Capacity(context.Background(), p, 0)
	if err != nil || again.Status != analytics.StatusSuccess {
		t.Fatalf("expected cached success, got %s (%v)", again.Status, err)
	}
	if n := src.trips.Load(); n != 1 {
		t.Errorf("expected one warehouse read, got %d", n)
	}
}

func TestFailuresAreNotCached(t *testing.T) {
	src := &countingSource{MemorySource: warehouse.NewMemorySource(stations, fixtureTrips())}
	src.SetError(errors.New("connection refused"))
	s := newTestService(src)
	p := mustParams(t, s, "2016-03-07", "2016-03-13")

	res, err := s.Capacity(context.Background(), p, 0)
	if err != nil {
		t.Fatalf("warehouse failures must not be returned as errors: %v", err)
	}
	if res.Status != analytics.StatusFailure || !strings.Contains(res.Reason, "connection refused") {
		t.Fatalf("expected failure with reason, got %s %q", res.Status, res.Reason)
	}

	src.SetError(nil)
	res, _ = s.Capacity(context.Background(), p, 0)
	if res.Status != analytics.StatusSuccess {
		t.Errorf("expected recovery after the warehouse came back, got %s", res.Status)
	}
}

func TestEmptyWindow(t *testing.T) {
	s := newTestService(warehouse.NewMemorySource(stations, fixtureTrips()))
	p := mustParams(t, s, "2017-01-01", "2017-01-31")

	capRes, _ := s.Capacity(context.Background(), p, 0)
	if capRes.Status != analytics.StatusEmpty || capRes.Data.Insight.HasData {
		t.Errorf("expected empty capacity result, got %s %+v", capRes.Status, capRes.Data.Insight)
	}
	flows, _ := s.Flows(context.Background(), p)
	if flows.Status != analytics.StatusEmpty || flows.Data.Insight.HasData {
		t.Errorf("expected empty flows result, got %s", flows.Status)
	}
	if flows.Data.Insight.TopGenerator != "generator stations" {
		t.Errorf("expected placeholder generator, got %q", flows.Data.Insight.TopGenerator)
	}
	ct, _ := s.CriticalTimes(context.Background(), p)
	if ct.Status != analytics.StatusEmpty {
		t.Errorf("expected empty critical times, got %s", ct.Status)
	}
}

func TestStationHourly(t *testing.T) {
	s := newTestService(warehouse.NewMemorySource(stations, fixtureTrips()))
	p := mustParams(t, s, "2016-03-07", "2016-03-13")
	ctx := context.Background()

	tests := []struct {
		name    string
		station string
		wantErr error
	}{
		{"ranked station", "Hyde Park Corner", nil},
		{"unranked station", "Waterloo Station 3", ErrStationNotRanked},
		{"unknown station", "Nowhere", ErrStationNotRanked},
		{"no station", "", analytics.ErrInvalidParams},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := s.StationHourly(ctx, p.WithStation(tt.station))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if res.Status != analytics.StatusSuccess {
				t.Fatalf("expected success, got %s", res.Status)
			}
			prof := res.Data.Profile
			if prof.TotalAtCapacity != 2 || prof.WeekdayPeak == nil || prof.WeekdayPeak.Hour != 8 {
				t.Errorf("unexpected profile %+v", prof)
			}
			if res.Data.Insight.RecommendExpansion {
				t.Error("two saturation events must not trigger an expansion recommendation")
			}
		})
	}
}

func TestFlows(t *testing.T) {
	s := newTestService(warehouse.NewMemorySource(stations, fixtureTrips()))
	s.opts.Thresholds.SignificantNetFlow = 0
	p := mustParams(t, s, "2016-03-07", "2016-03-13")

	res, err := s.Flows(context.Background(), p)
	if err != nil || res.Status != analytics.StatusSuccess {
		t.Fatalf("expected success, got %s (%v)", res.Status, err)
	}
	fr := res.Data.Flows
	// Waterloo sends 4 and receives 1; Hyde Park receives 4 and sends 1.
	if fr.TotalTrips != 5 || fr.SystemImbalance != 3 {
		t.Errorf("expected 5 trips and imbalance 3, got %d and %v", fr.TotalTrips, fr.SystemImbalance)
	}
	if len(res.Data.TopGenerators) != 1 || res.Data.TopGenerators[0].StationName != "Waterloo Station 3" {
		t.Errorf("unexpected generators %+v", res.Data.TopGenerators)
	}
	if res.Data.Insight.TopAccumulator != "Hyde Park Corner" {
		t.Errorf("unexpected accumulator %q", res.Data.Insight.TopAccumulator)
	}
	if got := res.Data.Critical.TotalArrivals; got != 5 {
		t.Errorf("expected 5 arrivals, got %d", got)
	}
}

func TestInvalidParams(t *testing.T) {
	s := newTestService(warehouse.NewMemorySource(stations, nil))
	if _, err := s.Params("2016-03-13", "2016-03-07", ""); !errors.Is(err, analytics.ErrInvalidParams) {
		t.Errorf("expected ErrInvalidParams for a reversed window, got %v", err)
	}
	bad := analytics.Params{Start: at(13, 0, 0), End: at(7, 0, 0), Interval: analytics.Weekly}
	if _, err := s.Capacity(context.Background(), bad, 0); !errors.Is(err, analytics.ErrInvalidParams) {
		t.Errorf("expected ErrInvalidParams, got %v", err)
	}

	p, err := s.Params("", "", "")
	if err != nil {
		t.Fatal(err)
	}
	if p.StartDate() != "2022-01-01" || p.EndDate() != "2023-01-15" || p.Interval != analytics.Weekly {
		t.Errorf("expected defaults, got %s", p.Key())
	}
}

func TestAggregatorIsPreferred(t *testing.T) {
	src := &aggregatingSource{countingSource: &countingSource{MemorySource: warehouse.NewMemorySource(stations, fixtureTrips())}}
	s := newTestService(src)
	p := mustParams(t, s, "2016-03-07", "2016-03-13")
	ctx := context.Background()

	capRes, _ := s.Capacity(ctx, p, 0)
	flows, _ := s.Flows(ctx, p)
	if !capRes.OK() || !flows.OK() {
		t.Fatalf("unexpected failure: %s / %s", capRes.Reason, flows.Reason)
	}
	if capRes.Data.Stations[0].InstancesAtCapacity != 2 || flows.Data.Flows.TotalTrips != 5 {
		t.Error("aggregated results differ from raw results")
	}
	if src.trips.Load() != 0 {
		t.Errorf("expected no raw trip reads, got %d", src.trips.Load())
	}
	if src.aggregations.Load() != 3 {
		t.Errorf("expected 3 aggregate queries, got %d", src.aggregations.Load())
	}
}

func TestConcurrentRequestsShareOneQuery(t *testing.T) {
	src := &countingSource{
		MemorySource: warehouse.NewMemorySource(stations, fixtureTrips()),
		release:      make(chan struct{}),
	}
	s := newTestService(src)
	p := mustParams(t, s, "2016-03-07", "2016-03-13")

	const callers = 8
	var wg sync.WaitGroup
	results := make([]analytics.Result[CapacityReport], callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = s.Capacity(context.Background(), p, 0)
		}(i)
	}

	time.Sleep(100 * time.Millisecond)
	close(src.release)
	wg.Wait()

	if n := src.trips.Load(); n != 1 {
		t.Errorf("expected a single warehouse read, got %d", n)
	}
	for i, r := range results {
		if r.Status != analytics.StatusSuccess {
			t.Errorf("caller %d: expected success, got %s", i, r.Status)
		}
	}
}

func TestCancelledCallerDoesNotFailOthers(t *testing.T) {
	src := &countingSource{
		MemorySource: warehouse.NewMemorySource(stations, fixtureTrips()),
		release:      make(chan struct{}),
	}
	s := newTestService(src)
	p := mustParams(t, s, "2016-03-07", "2016-03-13")

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan analytics.Result[CapacityReport], 1)
	go func() {
		r, _ := s.Capacity(ctx, p, 0)
		first <- r
	}()

	deadline := time.Now().Add(5 * time.Second)
	for src.trips.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("computation never reached the warehouse")
		}
		time.Sleep(5 * time.Millisecond)
	}

	second := make(chan analytics.Result[CapacityReport], 1)
	go func() {
		r, _ := s.Capacity(context.Background(), p, 0)
		second <- r
	}()
	time.Sleep(50 * time.Millisecond)

	cancel()
	if r := <-first; r.Status != analytics.StatusFailure {
		t.Errorf("expected the cancelled caller to fail, got %s", r.Status)
	}

	close(src.release)
	if r := <-second; r.Status != analytics.StatusSuccess {
		t.Fatalf("expected the live caller to succeed, got %s %q", r.Status, r.Reason)
	}
	if n := src.trips.Load(); n != 1 {
		t.Errorf("expected a single warehouse read, got %d", n)
	}

	// The shared result was cached despite the first caller leaving.
	src.SetError(errors.New("warehouse down"))
	if r, _ := s.Capacity(context.Background(), p, 0); r.Status != analytics.StatusSuccess {
		t.Errorf("expected a cached success, got %s", r.Status)
	}
}

func TestIntervalsShareCachedAggregates(t *testing.T) {
	src := &countingSource{MemorySource: warehouse.NewMemorySource(stations, fixtureTrips())}
	s := newTestService(src)
	weekly := mustParams(t, s, "2016-03-07", "2016-03-13")
	monthly := weekly.WithInterval(analytics.Monthly)
	ctx := context.Background()

	for _, p := range []analytics.Params{weekly, monthly} {
		capRes, _ := s.Capacity(ctx, p, 0)
		flows, _ := s.Flows(ctx, p)
		if !capRes.OK() || !flows.OK() {
			t.Fatalf("%s: unexpected failure: %s / %s", p.Interval, capRes.Reason, flows.Reason)
		}
		if capRes.Data.Interval != p.Interval || capRes.Data.Insight.Interval != p.Interval {
			t.Errorf("expected the %s interval in the report, got %s", p.Interval, capRes.Data.Interval)
		}
	}

	// ranking, flows and critical times, each read once
	if n := src.trips.Load(); n != 3 {
		t.Errorf("expected 3 warehouse reads, got %d", n)
	}
}

func TestCapacityLimit(t *testing.T) {
	trips := fixtureTrips()
	// Push Waterloo to 100% once so both stations rank.
	for i := 0; i < 10; i++ {
		trips = append(trips, analytics.Trip{ID: int64(100 + i), StartStationID: 1, EndStationID: 2,
			Start: at(9, 17, 0), End: at(9, 17, 30)})
	}
	s := newTestService(warehouse.NewMemorySource(stations, trips))
	p := mustParams(t, s, "2016-03-07", "2016-03-13")

	all, _ := s.Capacity(context.Background(), p, 0)
	one, _ := s.Capacity(context.Background(), p, 1)
	if len(all.Data.Stations) != 2 || len(one.Data.Stations) != 1 {
		t.Errorf("expected 2 and 1 stations, got %d and %d", len(all.Data.Stations), len(one.Data.Stations))
	}
	if one.Data.Insight.StationName != "Hyde Park Corner" {
		t.Errorf("insight must describe the top station, got %q", one.Data.Insight.StationName)
	}
}

package analytics

import (
	"math"
	"testing"
	"time"
)

func trip(id, from, to int64, start time.Time) Trip {
	return Trip{ID: id, StartStationID: from, EndStationID: to, Start: start, End: start.Add(20 * time.Minute)}
}

func TestAnalyzeFlowsScenario(t *testing.T) {
	stations := []Station{
		{ID: 1, Name: "S1", DockCount: 20},
		{ID: 2, Name: "S2", DockCount: 10},
	}
	trips := []Trip{
		trip(1, 1, 2, at(7, 8, 0)),
		trip(2, 1, 2, at(7, 9, 0)),
		trip(3, 2, 1, at(7, 18, 0)),
	}
	p := testParams(t, "2016-03-01", "2016-03-31", Weekly)

	report := AnalyzeFlows(trips, stations, p.Window(), 0)

	tests := []struct {
		name  string
		flow  StationFlow
		out   int
		in    int
		net   int
		class FlowClass
		pct   float64
	}{
		{"S1 generator", report.Stations[0], 2, 1, -1, Generator, -5},
		{"S2 accumulator", report.Stations[1], 1, 2, 1, Accumulator, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := tt.flow
			if f.Outflows != tt.out || f.Inflows != tt.in || f.NetFlow != tt.net {
				t.Errorf("expected out=%d in=%d net=%d, got %+v", tt.out, tt.in, tt.net, f)
			}
			if f.Classification != tt.class {
				t.Errorf("expected %s, got %s", tt.class, f.Classification)
			}
			if math.Abs(f.ImbalancePct-tt.pct) > 1e-9 {
				t.Errorf("expected imbalance %.2f%%, got %.4f%%", tt.pct, f.ImbalancePct)
			}
		})
	}

	if report.SystemImbalance != 1 {
		t.Errorf("expected system imbalance 1, got %.2f", report.SystemImbalance)
	}
	if report.TotalTrips != 3 {
		t.Errorf("expected 3 trips, got %d", report.TotalTrips)
	}
	if math.Abs(report.ImbalanceShareOfTrips-100.0/3) > 1e-9 {
		t.Errorf("expected imbalance share 33.33%%, got %.4f", report.ImbalanceShareOfTrips)
	}
	if len(report.Generators) != 1 || report.Generators[0].StationName != "S1" {
		t.Errorf("expected S1 as the only generator, got %+v", report.Generators)
	}
	if len(report.Accumulators) != 1 || report.Accumulators[0].StationName != "S2" {
		t.Errorf("expected S2 as the only accumulator, got %+v", report.Accumulators)
	}
}

func TestAnalyzeFlowsConservation(t *testing.T) {
	stations := []Station{
		{ID: 1, Name: "A", DockCount: 20},
		{ID: 2, Name: "B", DockCount: 15},
		{ID: 3, Name: "C", DockCount: 0},
		{ID: 4, Name: "D", DockCount: 30},
	}
	var trips []Trip
	id := int64(0)
	for day := 1; day <= 28; day++ {
		for h := 0; h < 24; h += 3 {
			id++
			from := int64(1 + (day*7+h)%4)
			to := int64(1 + (day*3+h*5)%4)
			trips = append(trips, trip(id, from, to, at(day, h, 0)))
		}
	}
	p := testParams(t, "2016-03-01", "2016-03-31", Monthly)
	report := AnalyzeFlows(trips, stations, p.Window(), 0)

	sum, absSum := 0, 0
	for _, f := range report.Stations {
		sum += f.NetFlow
		absSum += abs(f.NetFlow)
		if f.DockCount == 0 && f.ImbalancePct != 0 {
			t.Errorf("station without docks should report 0%% imbalance, got %.2f", f.ImbalancePct)
		}
	}
	if sum != 0 {
		t.Errorf("expected net flows to sum to 0 in a closed system, got %d", sum)
	}
	if report.SystemImbalance != float64(absSum)/2 {
		t.Errorf("expected system imbalance %.1f, got %.1f", float64(absSum)/2, report.SystemImbalance)
	}
	if report.TotalTrips != len(trips) {
		t.Errorf("expected %d trips, got %d", len(trips), report.TotalTrips)
	}
}

func TestAnalyzeFlowsRoundTrip(t *testing.T) {
	stations := []Station{{ID: 1, Name: "Loop", DockCount: 10}}
	trips := []Trip{trip(1, 1, 1, at(3, 10, 0))}
	p := testParams(t, "2016-03-01", "2016-03-31", Weekly)

	report := AnalyzeFlows(trips, stations, p.Window(), 0)
	if len(report.Stations) != 1 {
		t.Fatalf("expected 1 station, got %d", len(report.Stations))
	}
	f := report.Stations[0]
	if f.Outflows != 1 || f.Inflows != 1 || f.NetFlow != 0 || f.Classification != Balanced {
		t.Errorf("unexpected round trip flow %+v", f)
	}
	if len(report.Significant) != 0 {
		t.Errorf("a balanced station is never significant, got %+v", report.Significant)
	}
}

func TestAnalyzeFlowsWindowAndThreshold(t *testing.T) {
	stations := []Station{
		{ID: 1, Name: "Source", DockCount: 40},
		{ID: 2, Name: "Sink", DockCount: 40},
		{ID: 3, Name: "Quiet", DockCount: 40},
	}
	var trips []Trip
	for i := 0; i < 25; i++ {
		trips = append(trips, trip(int64(i), 1, 2, at(10, 7, i)))
	}
	for i := 0; i < 5; i++ {
		trips = append(trips, trip(int64(100+i), 1, 3, at(10, 8, i)))
	}
	// Starts before the window.
	trips = append(trips, trip(999, 2, 1, time.Date(2016, time.February, 29, 23, 50, 0, 0, time.UTC)))

	p := testParams(t, "2016-03-01", "2016-03-31", Weekly)
	report := AnalyzeFlows(trips, stations, p.Window(), DefaultThresholds().SignificantNetFlow)

	if report.TotalTrips != 30 {
		t.Errorf("expected 30 trips in the window, got %d", report.TotalTrips)
	}
	if len(report.Significant) != 2 {
		t.Fatalf("expected 2 significant stations, got %+v", report.Significant)
	}
	if report.Generators[0].StationName != "Source" || report.Generators[0].NetFlow != -30 {
		t.Errorf("unexpected generator %+v", report.Generators[0])
	}
	if report.Accumulators[0].StationName != "Sink" || report.Accumulators[0].NetFlow != 25 {
		t.Errorf("unexpected accumulator %+v", report.Accumulators[0])
	}
	if report.SystemImbalance != 30 {
		t.Errorf("expected system imbalance 30, got %.1f", report.SystemImbalance)
	}
}

func TestAnalyzeFlowsEmpty(t *testing.T) {
	p := testParams(t, "2016-03-01", "2016-03-31", Weekly)
	report := AnalyzeFlows(nil, []Station{{ID: 1, Name: "A", DockCount: 10}}, p.Window(), 20)
	if len(report.Stations) != 0 || report.TotalTrips != 0 {
		t.Errorf("expected an empty report, got %+v", report)
	}
	if report.ImbalanceShareOfTrips != 0 {
		t.Errorf("expected 0%% share without trips, got %.2f", report.ImbalanceShareOfTrips)
	}
}

func TestSplitFlowsOrdering(t *testing.T) {
	flows := []StationFlow{
		NewStationFlow(Station{ID: 4, Name: "g-small", DockCount: 10}, 30, 5),
		NewStationFlow(Station{ID: 2, Name: "g-big", DockCount: 10}, 60, 5),
		NewStationFlow(Station{ID: 1, Name: "g-tie", DockCount: 10}, 30, 5),
		NewStationFlow(Station{ID: 3, Name: "a-small", DockCount: 10}, 0, 21),
		NewStationFlow(Station{ID: 5, Name: "a-big", DockCount: 10}, 0, 90),
		NewStationFlow(Station{ID: 6, Name: "even", DockCount: 10}, 3, 3),
	}
	gens, accs := SplitFlows(flows)

	wantGens := []int64{2, 1, 4}
	if len(gens) != len(wantGens) {
		t.Fatalf("expected %d generators, got %d", len(wantGens), len(gens))
	}
	for i, id := range wantGens {
		if gens[i].StationID != id {
			t.Errorf("generator %d: expected station %d, got %d", i, id, gens[i].StationID)
		}
	}
	wantAccs := []int64{5, 3}
	if len(accs) != len(wantAccs) {
		t.Fatalf("expected %d accumulators, got %d", len(wantAccs), len(accs))
	}
	for i, id := range wantAccs {
		if accs[i].StationID != id {
			t.Errorf("accumulator %d: expected station %d, got %d", i, id, accs[i].StationID)
		}
	}
}

func TestClassifyNetFlow(t *testing.T) {
	tests := []struct {
		net      int
		expected FlowClass
	}{
		{-3, Generator},
		{0, Balanced},
		{7, Accumulator},
	}
	for _, tt := range tests {
		if got := ClassifyNetFlow(tt.net); got != tt.expected {
			t.Errorf("ClassifyNetFlow(%d): expected %s, got %s", tt.net, tt.expected, got)
		}
	}
}

package analytics

import (
	"math"
	"testing"
)

func TestRankProblemStations(t *testing.T) {
	th := DefaultThresholds()
	slots := []HourlyStationSlot{
		// A: two at-capacity slots, one near.
		slot(1, "A", 10, monday, 8, 10),
		slot(1, "A", 10, nextMon, 8, 12),
		slot(1, "A", 10, tuesday, 8, 8),
		// B: two at-capacity, three near.
		slot(2, "B", 20, monday, 9, 20),
		slot(2, "B", 20, tuesday, 9, 25),
		slot(2, "B", 20, nextMon, 9, 16),
		slot(2, "B", 20, nextTue, 9, 17),
		slot(2, "B", 20, saturday, 9, 18),
		// C: normal only, not ranked.
		slot(3, "C", 10, monday, 8, 5),
		// D: one near.
		slot(4, "D", 10, monday, 8, 9),
	}

	peaks := DetectPeaks(slots, th.Peak)
	ranked := RankProblemStations(slots, peaks, th)

	wantOrder := []string{"B", "A", "D"}
	if len(ranked) != len(wantOrder) {
		t.Fatalf("expected %d stations, got %d: %+v", len(wantOrder), len(ranked), ranked)
	}
	for i, name := range wantOrder {
		if ranked[i].StationName != name {
			t.Errorf("position %d: expected %s, got %s", i, name, ranked[i].StationName)
		}
	}

	a, ok := FindStation(ranked, "A")
	if !ok {
		t.Fatal("expected station A in the ranking")
	}
	if a.InstancesAtCapacity != 2 || a.InstancesNearCapacity != 1 {
		t.Errorf("A: expected 2 at / 1 near, got %d at / %d near", a.InstancesAtCapacity, a.InstancesNearCapacity)
	}
	if a.MaxHourlyArrivals != 12 {
		t.Errorf("A: expected max arrivals 12, got %d", a.MaxHourlyArrivals)
	}
	if math.Abs(a.AvgHourlyArrivals-10) > 1e-9 {
		t.Errorf("A: expected avg arrivals 10, got %.4f", a.AvgHourlyArrivals)
	}
	if math.Abs(a.MaxUtilisationPct-120) > 1e-9 {
		t.Errorf("A: expected max utilisation 120, got %.4f", a.MaxUtilisationPct)
	}
	if a.Peak == nil || a.Peak.Hour != 8 || a.Peak.DayOfWeek != 2 {
		t.Errorf("A: expected Monday 08:00 peak, got %+v", a.Peak)
	}

	d, _ := FindStation(ranked, "D")
	if d.Peak != nil {
		t.Errorf("D: expected no peak, got %+v", d.Peak)
	}
	if d.PeakLabel != "Unknown" {
		t.Errorf("D: expected Unknown peak label, got %q", d.PeakLabel)
	}

	if _, ok := FindStation(ranked, "C"); ok {
		t.Error("C never exceeded the near-capacity threshold and should not be ranked")
	}
}

func TestRankProblemStationsBucketsAreExclusive(t *testing.T) {
	th := DefaultThresholds()
	var slots []HourlyStationSlot
	for arrivals := 0; arrivals <= 30; arrivals++ {
		slots = append(slots, slot(1, "A", 20, monday, arrivals%24, arrivals))
	}

	var near, at int
	for _, s := range slots {
		switch th.Level(s.UtilisationPct) {
		case CapacityNear:
			near++
		case CapacityAt:
			at++
		}
	}

	ranked := RankProblemStations(slots, nil, th)
	if len(ranked) != 1 {
		t.Fatalf("expected 1 station, got %d", len(ranked))
	}
	if ranked[0].InstancesNearCapacity != near || ranked[0].InstancesAtCapacity != at {
		t.Errorf("expected %d near / %d at, got %d / %d", near, at,
			ranked[0].InstancesNearCapacity, ranked[0].InstancesAtCapacity)
	}
	// 16..19 arrivals are near (80%..95%), 20..30 are at capacity.
	if near != 4 || at != 11 {
		t.Errorf("unexpected bucket sizes near=%d at=%d", near, at)
	}
}

func TestRankProblemStationsTieBreak(t *testing.T) {
	slots := []HourlyStationSlot{
		slot(9, "Same", 10, monday, 8, 10),
		slot(3, "Same", 10, monday, 8, 10),
		slot(5, "Alpha", 10, monday, 8, 10),
	}
	ranked := RankProblemStations(slots, nil, DefaultThresholds())
	want := []int64{5, 3, 9}
	for i, id := range want {
		if ranked[i].StationID != id {
			t.Errorf("position %d: expected station %d, got %d", i, id, ranked[i].StationID)
		}
	}
}

func TestRankProblemStationsEmpty(t *testing.T) {
	ranked := RankProblemStations(nil, nil, DefaultThresholds())
	if len(ranked) != 0 {
		t.Fatalf("expected empty ranking, got %+v", ranked)
	}
	if got := TopN(ranked, 10); len(got) != 0 {
		t.Errorf("expected empty top 10, got %d", len(got))
	}
	if _, ok := FindStation(ranked, "anything"); ok {
		t.Error("expected lookup on an empty ranking to fail")
	}
}

func TestTopN(t *testing.T) {
	summaries := make([]StationSummary, 15)
	tests := []struct {
		n        int
		expected int
	}{
		{10, 10},
		{20, 15},
		{0, 15},
		{-1, 15},
	}
	for _, tt := range tests {
		if got := len(TopN(summaries, tt.n)); got != tt.expected {
			t.Errorf("TopN(%d): expected %d, got %d", tt.n, tt.expected, got)
		}
	}
}

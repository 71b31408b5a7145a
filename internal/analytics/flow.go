package analytics

import (
	"sort"
)

// FlowReport is the network balance over a window.
type FlowReport struct {
	// Stations holds every station that saw at least one trip, ordered by ID.
	Stations []StationFlow `json:"stations" msgpack:"stations"`
	// Significant holds stations whose |net flow| exceeds the reporting threshold.
	Significant  []StationFlow `json:"significant" msgpack:"significant"`
	Generators   []StationFlow `json:"generators" msgpack:"generators"`
	Accumulators []StationFlow `json:"accumulators" msgpack:"accumulators"`

	TotalTrips            int     `json:"total_trips" msgpack:"total_trips"`
	SystemImbalance       float64 `json:"system_imbalance" msgpack:"system_imbalance"`
	ImbalanceShareOfTrips float64 `json:"imbalance_share_of_trips_pct" msgpack:"imbalance_share_of_trips_pct"`
}

// ClassifyNetFlow maps a net flow to its station class.
func ClassifyNetFlow(net int) FlowClass {
	switch {
	case net > 0:
		return Accumulator
	case net < 0:
		return Generator
	default:
		return Balanced
	}
}

// AnalyzeFlows counts departures and arrivals per station for trips that start
// inside w. A trip that returns to its origin counts once on each side.
//
// System imbalance is half the sum of |net flow| over all stations, since one
// station's surplus is another's deficit. Trips touching stations missing from
// the station list still count toward TotalTrips.
func AnalyzeFlows(trips []Trip, stations []Station, w Window, significantNet int) FlowReport {
	byID := make(map[int64]Station, len(stations))
	for _, s := range stations {
		byID[s.ID] = s
	}

	out := make(map[int64]int)
	in := make(map[int64]int)
	total := 0
	for _, t := range trips {
		if !w.Contains(t.Start.UTC()) {
			continue
		}
		total++
		if _, ok := byID[t.StartStationID]; ok {
			out[t.StartStationID]++
		}
		if _, ok := byID[t.EndStationID]; ok {
			in[t.EndStationID]++
		}
	}

	var flows []StationFlow
	for _, s := range stations {
		o, i := out[s.ID], in[s.ID]
		if o == 0 && i == 0 {
			continue
		}
		flows = append(flows, NewStationFlow(s, o, i))
	}
	return BuildFlowReport(flows, total, significantNet)
}

// BuildFlowReport assembles a report from per-station flows, whether counted
// here or aggregated by the warehouse.
func BuildFlowReport(flows []StationFlow, totalTrips, significantNet int) FlowReport {
	report := FlowReport{TotalTrips: totalTrips}
	absSum := 0
	for _, f := range flows {
		if f.Outflows == 0 && f.Inflows == 0 {
			continue
		}
		absSum += abs(f.NetFlow)
		report.Stations = append(report.Stations, f)
	}
	sort.Slice(report.Stations, func(a, b int) bool {
		return report.Stations[a].StationID < report.Stations[b].StationID
	})

	for _, f := range report.Stations {
		if abs(f.NetFlow) > significantNet {
			report.Significant = append(report.Significant, f)
		}
	}
	report.Generators, report.Accumulators = SplitFlows(report.Significant)

	report.SystemImbalance = float64(absSum) / 2
	if totalTrips > 0 {
		report.ImbalanceShareOfTrips = report.SystemImbalance / float64(totalTrips) * 100
	}
	return report
}

// NewStationFlow derives net flow, imbalance and class from raw counts.
func NewStationFlow(s Station, outflows, inflows int) StationFlow {
	net := inflows - outflows
	f := StationFlow{
		StationID:      s.ID,
		StationName:    s.Name,
		DockCount:      s.DockCount,
		Outflows:       outflows,
		Inflows:        inflows,
		NetFlow:        net,
		Classification: ClassifyNetFlow(net),
	}
	if s.DockCount > 0 {
		f.ImbalancePct = float64(net) / float64(s.DockCount) * 100
	}
	return f
}

// SplitFlows separates generators (most negative first) from accumulators
// (most positive first). Balanced stations are dropped.
func SplitFlows(flows []StationFlow) (generators, accumulators []StationFlow) {
	for _, f := range flows {
		switch f.Classification {
		case Generator:
			generators = append(generators, f)
		case Accumulator:
			accumulators = append(accumulators, f)
		}
	}
	sort.SliceStable(generators, func(i, j int) bool {
		if generators[i].NetFlow != generators[j].NetFlow {
			return generators[i].NetFlow < generators[j].NetFlow
		}
		return generators[i].StationID < generators[j].StationID
	})
	sort.SliceStable(accumulators, func(i, j int) bool {
		if accumulators[i].NetFlow != accumulators[j].NetFlow {
			return accumulators[i].NetFlow > accumulators[j].NetFlow
		}
		return accumulators[i].StationID < accumulators[j].StationID
	})
	return generators, accumulators
}

// TopFlows returns at most n flows.
func TopFlows(flows []StationFlow, n int) []StationFlow {
	if n <= 0 || len(flows) <= n {
		return flows
	}
	return flows[:n]
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

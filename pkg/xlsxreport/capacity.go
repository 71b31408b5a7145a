// Package xlsxreport renders analysis results as Excel workbooks.
package xlsxreport

import (
	"fmt"

	"github.com/chrissnell/cyclehire/internal/analytics"
	"github.com/xuri/excelize/v2"
)

const (
	stationsSheet = "Problem Stations"
	insightSheet  = "Insight"
)

var stationHeaders = []string{
	"Rank", "Station", "Docks", "Near capacity", "At capacity",
	"Avg arrivals/hour", "Max arrivals/hour", "Avg utilisation %", "Max utilisation %", "Peak",
}

// Capacity builds a workbook with the ranked problem stations and the
// headline insight.
func Capacity(stations []analytics.StationSummary, insight analytics.CapacityInsight) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	f.SetDocProps(&excelize.DocProperties{
		Title:       "Problem stations",
		Subject:     "Dock capacity analysis",
		Creator:     "cyclehire",
		Description: fmt.Sprintf("Stations reaching capacity between %s and %s", insight.StartDate, insight.EndDate),
	})

	if err := writeStations(f, stations); err != nil {
		return nil, fmt.Errorf("failed to create stations sheet: %w", err)
	}
	if err := writeInsight(f, insight); err != nil {
		return nil, fmt.Errorf("failed to create insight sheet: %w", err)
	}

	idx, _ := f.GetSheetIndex(stationsSheet)
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeStations(f *excelize.File, stations []analytics.StationSummary) error {
	if _, err := f.NewSheet(stationsSheet); err != nil {
		return err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	for i, h := range stationHeaders {
		f.SetCellValue(stationsSheet, cell(i+1, 1), h)
	}
	f.SetCellStyle(stationsSheet, "A1", cell(len(stationHeaders), 1), bold)

	pct, err := f.NewStyle(&excelize.Style{NumFmt: 2}) // 0.00
	if err != nil {
		return err
	}

	for i, s := range stations {
		row := i + 2
		values := []any{
			i + 1, s.StationName, s.DockCount, s.InstancesNearCapacity, s.InstancesAtCapacity,
			s.AvgHourlyArrivals, s.MaxHourlyArrivals, s.AvgUtilisationPct, s.MaxUtilisationPct, s.PeakLabel,
		}
		for col, v := range values {
			f.SetCellValue(stationsSheet, cell(col+1, row), v)
		}
	}
	if len(stations) > 0 {
		f.SetCellStyle(stationsSheet, cell(6, 2), cell(9, len(stations)+1), pct)
	}

	f.SetColWidth(stationsSheet, "B", "B", 36)
	f.SetColWidth(stationsSheet, "C", "I", 16)
	f.SetColWidth(stationsSheet, "J", "J", 24)
	return f.SetPanes(stationsSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

func writeInsight(f *excelize.File, ci analytics.CapacityInsight) error {
	if _, err := f.NewSheet(insightSheet); err != nil {
		return err
	}

	rows := [][]any{
		{"Period", ci.StartDate + " to " + ci.EndDate},
		{"Days in period", ci.DaysInPeriod},
		{"Interval", ci.Interval.Title()},
		{"Station", ci.StationName},
		{"At capacity", ci.AtCapacityCount},
		{"At capacity per " + ci.Interval.Unit(), ci.AtCapacityPerInterval},
		{"Peak hours", ci.PeakHours},
		{"Lost rentals", ci.LostRentals},
		{"Revenue impact (" + ci.Currency + ")", ci.RevenueImpact.InexactFloat64()},
		{"Revenue impact per " + ci.Interval.Unit() + " (" + ci.Currency + ")", ci.RevenueImpactPerInterval.InexactFloat64()},
	}
	if !ci.HasData {
		rows = rows[:3]
	}
	for i, r := range rows {
		f.SetCellValue(insightSheet, cell(1, i+1), r[0])
		f.SetCellValue(insightSheet, cell(2, i+1), r[1])
	}

	next := len(rows) + 2
	for i, line := range ci.Narrative() {
		f.SetCellValue(insightSheet, cell(1, next+i), line)
	}
	f.SetColWidth(insightSheet, "A", "A", 36)
	f.SetColWidth(insightSheet, "B", "B", 28)
	return nil
}

func cell(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

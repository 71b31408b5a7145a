package warehouse

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/chrissnell/cyclehire/internal/analytics"
)

// ErrMalformedCSV is wrapped by every parse failure in an export file.
var ErrMalformedCSV = errors.New("malformed CSV export")

// Exports come either from the public BigQuery tables (snake_case headers,
// "2022-01-04 11:05:00 UTC") or from the TfL usage files ("Rental Id",
// "04/01/2022 11:05"). Headers are matched after lowercasing and dropping
// spaces and underscores, so both spellings resolve to the same column.
var tripTimeLayouts = []string{
	"2006-01-02 15:04:05 UTC",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"02/01/2006 15:04",
	"02/01/2006 15:04:05",
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	return strings.NewReplacer(" ", "", "_", "").Replace(h)
}

type columns map[string]int

func readHeader(r *csv.Reader, required ...string) (columns, error) {
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: reading header: %v", ErrMalformedCSV, err)
	}
	cols := make(columns, len(header))
	for i, h := range header {
		cols[normalizeHeader(h)] = i
	}
	for _, name := range required {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("%w: missing column %q", ErrMalformedCSV, name)
		}
	}
	return cols, nil
}

func (c columns) get(rec []string, name string) string {
	i, ok := c[name]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

// ReadStationsCSV parses a station export with id, name and docks_count columns.
func ReadStationsCSV(in io.Reader) ([]analytics.Station, error) {
	r := csv.NewReader(in)
	r.FieldsPerRecord = -1
	cols, err := readHeader(r, "id", "name", "dockscount")
	if err != nil {
		return nil, err
	}

	var stations []analytics.Station
	for line := 2; ; line++ {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedCSV, line, err)
		}
		id, err := strconv.ParseInt(cols.get(rec, "id"), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: station id: %v", ErrMalformedCSV, line, err)
		}
		docks := 0
		if v := cols.get(rec, "dockscount"); v != "" {
			if docks, err = strconv.Atoi(v); err != nil {
				return nil, fmt.Errorf("%w: line %d: docks_count: %v", ErrMalformedCSV, line, err)
			}
		}
		stations = append(stations, analytics.Station{ID: id, Name: cols.get(rec, "name"), DockCount: docks})
	}
	return stations, nil
}

// TripReader streams trips out of a hire export. Rows without a start or end
// station are skipped and counted.
type TripReader struct {
	r       *csv.Reader
	cols    columns
	line    int
	skipped int
}

// NewTripReader reads the header and prepares to stream rows.
func NewTripReader(in io.Reader) (*TripReader, error) {
	r := csv.NewReader(in)
	r.FieldsPerRecord = -1
	r.ReuseRecord = true
	cols, err := readHeader(r, "rentalid", "startstationid", "endstationid", "startdate", "enddate")
	if err != nil {
		return nil, err
	}
	return &TripReader{r: r, cols: cols, line: 1}, nil
}

// Next returns the next usable trip, or io.EOF when the file is exhausted.
func (tr *TripReader) Next() (analytics.Trip, error) {
	for {
		rec, err := tr.r.Read()
		tr.line++
		if err == io.EOF {
			return analytics.Trip{}, io.EOF
		}
		if err != nil {
			return analytics.Trip{}, fmt.Errorf("%w: line %d: %v", ErrMalformedCSV, tr.line, err)
		}

		from, to := tr.cols.get(rec, "startstationid"), tr.cols.get(rec, "endstationid")
		endDate := tr.cols.get(rec, "enddate")
		if from == "" || to == "" || endDate == "" {
			tr.skipped++
			continue
		}

		var t analytics.Trip
		if t.ID, err = strconv.ParseInt(tr.cols.get(rec, "rentalid"), 10, 64); err != nil {
			return t, tr.fieldError("rental_id", err)
		}
		if t.StartStationID, err = strconv.ParseInt(from, 10, 64); err != nil {
			return t, tr.fieldError("start_station_id", err)
		}
		if t.EndStationID, err = strconv.ParseInt(to, 10, 64); err != nil {
			return t, tr.fieldError("end_station_id", err)
		}
		if t.Start, err = parseTripTime(tr.cols.get(rec, "startdate")); err != nil {
			return t, tr.fieldError("start_date", err)
		}
		if t.End, err = parseTripTime(endDate); err != nil {
			return t, tr.fieldError("end_date", err)
		}
		return t, nil
	}
}

// ReadAll drains the reader.
func (tr *TripReader) ReadAll() ([]analytics.Trip, error) {
	var trips []analytics.Trip
	for {
		t, err := tr.Next()
		if err == io.EOF {
			return trips, nil
		}
		if err != nil {
			return nil, err
		}
		trips = append(trips, t)
	}
}

// Skipped is the number of rows dropped for missing stations or end dates.
func (tr *TripReader) Skipped() int {
	return tr.skipped
}

func (tr *TripReader) fieldError(field string, err error) error {
	return fmt.Errorf("%w: line %d: %s: %v", ErrMalformedCSV, tr.line, field, err)
}

func parseTripTime(s string) (time.Time, error) {
	for _, layout := range tripTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

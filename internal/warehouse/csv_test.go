package warehouse

import (
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

func TestReadStationsCSV(t *testing.T) {
	in := "id,installed,latitude,longitude,name,bikes_count,docks_count\n" +
		"1,true,51.529,-0.109,\"River Street , Clerkenwell\",10,19\n" +
		"2,true,51.499,-0.197,Phillimore Gardens,3,\n"

	stations, err := ReadStationsCSV(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ReadStationsCSV: %v", err)
	}
	if len(stations) != 2 {
		t.Fatalf("expected 2 stations, got %d", len(stations))
	}
	if stations[0].Name != "River Street , Clerkenwell" || stations[0].DockCount != 19 {
		t.Errorf("unexpected first station %+v", stations[0])
	}
	if stations[1].DockCount != 0 {
		t.Errorf("expected blank docks_count to read as 0, got %d", stations[1].DockCount)
	}
}

func TestReadStationsCSVErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"missing column", "id,name\n1,A\n"},
		{"bad id", "id,name,docks_count\nx,A,10\n"},
		{"bad docks", "id,name,docks_count\n1,A,ten\n"},
		{"empty file", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadStationsCSV(strings.NewReader(tt.in))
			if !errors.Is(err, ErrMalformedCSV) {
				t.Errorf("expected ErrMalformedCSV, got %v", err)
			}
		})
	}
}

func TestTripReaderFormats(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{
			name: "bigquery export",
			in: "rental_id,duration,bike_id,end_date,end_station_id,start_date,start_station_id\n" +
				"101,600,7,2022-01-04 11:15:00 UTC,2,2022-01-04 11:05:00 UTC,1\n",
		},
		{
			name: "tfl usage file",
			in: "\ufeffRental Id,Duration,Bike Id,End Date,EndStation Id,EndStation Name,Start Date,StartStation Id,StartStation Name\n" +
				"101,600,7,04/01/2022 11:15,2,B,04/01/2022 11:05,1,A\n",
		},
		{
			name: "iso timestamps",
			in: "rental_id,start_station_id,end_station_id,start_date,end_date\n" +
				"101,1,2,2022-01-04T11:05:00Z,2022-01-04T11:15:00Z\n",
		},
	}

	wantStart := time.Date(2022, 1, 4, 11, 5, 0, 0, time.UTC)
	wantEnd := time.Date(2022, 1, 4, 11, 15, 0, 0, time.UTC)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := NewTripReader(strings.NewReader(tt.in))
			if err != nil {
				t.Fatalf("NewTripReader: %v", err)
			}
			trip, err := tr.Next()
			if err != nil {
				t.Fatalf("Next: %v", err)
			}
			if trip.ID != 101 || trip.StartStationID != 1 || trip.EndStationID != 2 {
				t.Errorf("unexpected trip %+v", trip)
			}
			if !trip.Start.Equal(wantStart) || !trip.End.Equal(wantEnd) {
				t.Errorf("expected %v-%v, got %v-%v", wantStart, wantEnd, trip.Start, trip.End)
			}
			if _, err := tr.Next(); err != io.EOF {
				t.Errorf("expected io.EOF, got %v", err)
			}
		})
	}
}

func TestTripReaderSkipsIncompleteRows(t *testing.T) {
	in := "rental_id,start_station_id,end_station_id,start_date,end_date\n" +
		"1,1,2,2022-01-04 08:00:00,2022-01-04 08:10:00\n" +
		"2,1,,2022-01-04 08:00:00,\n" +
		"3,,2,2022-01-04 08:00:00,2022-01-04 08:10:00\n" +
		"4,2,1,2022-01-04 09:00:00,2022-01-04 09:20:00\n"

	tr, err := NewTripReader(strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	trips, err := tr.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(trips) != 2 || trips[0].ID != 1 || trips[1].ID != 4 {
		t.Errorf("expected trips 1 and 4, got %+v", trips)
	}
	if tr.Skipped() != 2 {
		t.Errorf("expected 2 skipped rows, got %d", tr.Skipped())
	}
}

func TestTripReaderBadTimestamp(t *testing.T) {
	in := "rental_id,start_station_id,end_station_id,start_date,end_date\n" +
		"1,1,2,yesterday,2022-01-04 08:10:00\n"
	tr, err := NewTripReader(strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	_, err = tr.Next()
	if !errors.Is(err, ErrMalformedCSV) {
		t.Fatalf("expected ErrMalformedCSV, got %v", err)
	}
	if !strings.Contains(err.Error(), "line 2") || !strings.Contains(err.Error(), "start_date") {
		t.Errorf("expected line and field in error, got %q", err)
	}
}

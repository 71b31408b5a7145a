package responseformat

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/vmihailenco/msgpack/v5"
)

type station struct {
	Name  string `json:"station_name"`
	Docks int    `json:"dock_count"`
}

type stationTable []station

func (t stationTable) Header() []string { return []string{"station_name", "dock_count"} }

func (t stationTable) Rows() [][]string {
	rows := make([][]string, len(t))
	for i, s := range t {
		rows[i] = []string{s.Name, strconv.Itoa(s.Docks)}
	}
	return rows
}

func TestWriteResponse(t *testing.T) {
	table := stationTable{{"River Street , Clerkenwell", 19}, {"Waterloo", 25}}
	f := NewFormatter()

	tests := []struct {
		name        string
		query       string
		data        any
		contentType string
		check       func(t *testing.T, body []byte)
	}{
		{
			name:        "json default",
			query:       "",
			data:        table,
			contentType: "application/json",
			check: func(t *testing.T, body []byte) {
				var got []station
				if err := json.Unmarshal(body, &got); err != nil || len(got) != 2 {
					t.Errorf("bad json %q: %v", body, err)
				}
			},
		},
		{
			name:        "msgpack uses json tags",
			query:       "?format=msgpack",
			data:        station{Name: "Waterloo", Docks: 25},
			contentType: "application/x-msgpack",
			check: func(t *testing.T, body []byte) {
				var got map[string]any
				if err := msgpack.Unmarshal(body, &got); err != nil {
					t.Fatal(err)
				}
				if got["station_name"] != "Waterloo" {
					t.Errorf("expected json tag keys, got %v", got)
				}
			},
		},
		{
			name:        "csv table",
			query:       "?format=csv",
			data:        table,
			contentType: "text/csv; charset=utf-8",
			check: func(t *testing.T, body []byte) {
				want := "station_name,dock_count\n\"River Street , Clerkenwell\",19\nWaterloo,25\n"
				if string(body) != want {
					t.Errorf("expected %q, got %q", want, body)
				}
			},
		},
		{
			name:        "csv falls back to json",
			query:       "?format=csv",
			data:        map[string]string{"status": "ok"},
			contentType: "application/json",
			check:       func(t *testing.T, body []byte) {},
		},
		{
			name:        "unknown format",
			query:       "?format=xml",
			data:        table,
			contentType: "application/json",
			check:       func(t *testing.T, body []byte) {},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/capacity"+tt.query, nil)
			rec := httptest.NewRecorder()
			if err := f.WriteResponse(rec, req, http.StatusOK, tt.data, map[string]string{"Cache-Control": "no-store"}); err != nil {
				t.Fatal(err)
			}
			if ct := rec.Header().Get("Content-Type"); ct != tt.contentType {
				t.Errorf("expected %s, got %s", tt.contentType, ct)
			}
			if rec.Header().Get("Cache-Control") != "no-store" {
				t.Error("expected extra headers to be applied")
			}
			tt.check(t, rec.Body.Bytes())
		})
	}
}

func TestWriteResponseStatus(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/flows", nil)
	rec := httptest.NewRecorder()
	NewFormatter().WriteResponse(rec, req, http.StatusBadGateway, map[string]string{"status": "failure"}, nil)
	if rec.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", rec.Code)
	}
}

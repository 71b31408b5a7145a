package restserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/chrissnell/cyclehire/internal/analytics"
	"github.com/chrissnell/cyclehire/internal/log"
	"github.com/chrissnell/cyclehire/internal/service"
	"github.com/chrissnell/cyclehire/internal/warehouse"
	"github.com/chrissnell/cyclehire/pkg/config"
)

func at(day, hour, minute int) time.Time {
	return time.Date(2016, 3, day, hour, minute, 0, 0, time.UTC)
}

func newTestSource() *warehouse.MemorySource {
	stations := []analytics.Station{
		{ID: 1, Name: "Hyde Park Corner", DockCount: 2},
		{ID: 2, Name: "Waterloo Station 3", DockCount: 10},
	}
	var trips []analytics.Trip
	for i, day := range []int{7, 8} {
		base := int64(i * 10)
		trips = append(trips,
			analytics.Trip{ID: base + 1, StartStationID: 2, EndStationID: 1, Start: at(day, 7, 40), End: at(day, 8, 5)},
			analytics.Trip{ID: base + 2, StartStationID: 2, EndStationID: 1, Start: at(day, 7, 45), End: at(day, 8, 10)},
		)
	}
	return warehouse.NewMemorySource(stations, trips)
}

func newTestController(t *testing.T, src warehouse.Source, rc config.RESTServerData) *Controller {
	t.Helper()
	svc := service.New(src, nil, service.DefaultOptions(), nil)
	ctrl, err := NewController(context.Background(), &sync.WaitGroup{}, svc, rc, nil)
	if err != nil {
		t.Fatal(err)
	}
	return ctrl
}

func serve(ctrl *Controller, method, target string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	ctrl.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func TestNewControllerDefaults(t *testing.T) {
	ctrl := newTestController(t, newTestSource(), config.RESTServerData{})
	if ctrl.Server.Addr != "0.0.0.0:8080" {
		t.Errorf("expected default listen address, got %s", ctrl.Server.Addr)
	}
	if _, err := NewController(context.Background(), &sync.WaitGroup{}, nil, config.RESTServerData{}, nil); err == nil {
		t.Error("expected an error without a service")
	}
}

func TestAPIRoutes(t *testing.T) {
	ctrl := newTestController(t, newTestSource(), config.RESTServerData{Port: 9000})
	window := "start=2016-03-07&end=2016-03-13&interval=weekly"

	tests := []struct {
		name        string
		target      string
		status      int
		contentType string
		contains    string
	}{
		{"params", "/api/params", http.StatusOK, "application/json", `"dataset_start":"2015-01-04"`},
		{"capacity", "/api/capacity?" + window, http.StatusOK, "application/json", `"station_name":"Hyde Park Corner"`},
		{"capacity csv", "/api/capacity?format=csv&" + window, http.StatusOK, "text/csv; charset=utf-8", "1,1,Hyde Park Corner,2,"},
		{"capacity msgpack", "/api/capacity?format=msgpack&" + window, http.StatusOK, "application/x-msgpack", "Hyde Park Corner"},
		{"capacity bad date", "/api/capacity?start=yesterday", http.StatusBadRequest, "application/json", `"status":"failure"`},
		{"capacity bad limit", "/api/capacity?limit=lots&" + window, http.StatusBadRequest, "application/json", "limit"},
		{"capacity reversed", "/api/capacity?start=2016-03-13&end=2016-03-07", http.StatusBadRequest, "application/json", "before start date"},
		{"station hourly", "/api/stations/Hyde%20Park%20Corner/hourly?" + window, http.StatusOK, "application/json", `"recommendation"`},
		{"station hourly csv", "/api/stations/Hyde%20Park%20Corner/hourly?format=csv&" + window, http.StatusOK, "text/csv; charset=utf-8", "2,Monday,weekday,8,"},
		{"station not ranked", "/api/stations/Waterloo%20Station%203/hourly?" + window, http.StatusBadRequest, "application/json", "not among the ranked"},
		{"flows", "/api/flows?" + window, http.StatusOK, "application/json", `"total_trips":4`},
		{"critical times", "/api/critical-times?" + window, http.StatusOK, "application/json", `"total_arrivals":4`},
		{"critical times csv", "/api/critical-times?format=csv&" + window, http.StatusOK, "text/csv; charset=utf-8", "weekday,8,4"},
		{"health", "/api/health", http.StatusOK, "application/json", `"status":"ok"`},
		{"index", "/", http.StatusOK, "text/html; charset=utf-8", "<title>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(ctrl, http.MethodGet, tt.target, nil)
			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, rec.Code, rec.Body.String())
			}
			if ct := rec.Header().Get("Content-Type"); ct != tt.contentType {
				t.Errorf("expected content type %q, got %q", tt.contentType, ct)
			}
			if !strings.Contains(rec.Body.String(), tt.contains) {
				t.Errorf("expected body to contain %q, got %s", tt.contains, rec.Body.String())
			}
			if rec.Header().Get("X-Request-ID") == "" {
				t.Error("expected a request ID header")
			}
		})
	}
}

func TestStationNameWithSlash(t *testing.T) {
	stations := []analytics.Station{
		{ID: 1, Name: "Kings Cross / St Pancras", DockCount: 2},
		{ID: 2, Name: "Waterloo Station 3", DockCount: 10},
	}
	trips := []analytics.Trip{
		{ID: 1, StartStationID: 2, EndStationID: 1, Start: at(7, 7, 40), End: at(7, 8, 5)},
		{ID: 2, StartStationID: 2, EndStationID: 1, Start: at(7, 7, 45), End: at(7, 8, 10)},
	}
	ctrl := newTestController(t, warehouse.NewMemorySource(stations, trips), config.RESTServerData{})

	rec := serve(ctrl, http.MethodGet,
		"/api/stations/Kings%20Cross%20%2F%20St%20Pancras/hourly?start=2016-03-07&end=2016-03-13", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"Kings Cross / St Pancras"`) {
		t.Errorf("expected the station in the profile, got %s", rec.Body.String())
	}
}

func TestCapacityWorkbookDownload(t *testing.T) {
	ctrl := newTestController(t, newTestSource(), config.RESTServerData{})
	rec := serve(ctrl, http.MethodGet, "/api/capacity/report.xlsx?start=2016-03-07&end=2016-03-13", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if cd := rec.Header().Get("Content-Disposition"); cd != `attachment; filename="problem-stations-2016-03-07-2016-03-13.xlsx"` {
		t.Errorf("unexpected Content-Disposition %q", cd)
	}
	// xlsx files are zip archives
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")) {
		t.Error("expected a zip archive")
	}
}

func TestWarehouseFailure(t *testing.T) {
	src := newTestSource()
	src.SetError(errors.New("connection refused"))
	ctrl := newTestController(t, src, config.RESTServerData{})

	tests := []struct {
		target string
		status int
	}{
		{"/api/capacity?start=2016-03-07&end=2016-03-13", http.StatusBadGateway},
		{"/api/flows?start=2016-03-07&end=2016-03-13", http.StatusBadGateway},
		{"/api/capacity/report.xlsx?start=2016-03-07&end=2016-03-13", http.StatusBadGateway},
		{"/api/health", http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rec := serve(ctrl, http.MethodGet, tt.target, nil)
			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, rec.Code)
			}
			if !strings.Contains(rec.Body.String(), "connection refused") {
				t.Errorf("expected the cause in the body, got %s", rec.Body.String())
			}
		})
	}
}

func TestEmptyWindowIsNotAnError(t *testing.T) {
	ctrl := newTestController(t, newTestSource(), config.RESTServerData{})
	rec := serve(ctrl, http.MethodGet, "/api/capacity?start=2020-01-01&end=2020-01-31", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Status analytics.Status `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Status != analytics.StatusEmpty {
		t.Errorf("expected empty status, got %s", body.Status)
	}
}

func TestCORS(t *testing.T) {
	origin := "https://dashboards.example.org"
	header := http.Header{"Origin": []string{origin}}

	enabled := newTestController(t, newTestSource(), config.RESTServerData{EnableCORS: true, AllowedOrigins: []string{origin}})
	rec := serve(enabled, http.MethodGet, "/api/params", header)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != origin {
		t.Errorf("expected origin to be allowed, got %q", got)
	}

	disabled := newTestController(t, newTestSource(), config.RESTServerData{})
	rec = serve(disabled, http.MethodGet, "/api/params", header)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("expected no CORS header, got %q", got)
	}
}

func TestRequestLogging(t *testing.T) {
	ctrl := newTestController(t, newTestSource(), config.RESTServerData{})
	rec := serve(ctrl, http.MethodGet, "/api/health", http.Header{"X-Request-Id": []string{"req-from-client"}})
	if got := rec.Header().Get("X-Request-ID"); got != "req-from-client" {
		t.Errorf("expected the client request ID to be echoed, got %q", got)
	}

	found := false
	for _, e := range log.GetHTTPLogBuffer().Entries() {
		if e.Fields["request_id"] == "req-from-client" {
			found = true
			if e.Fields["status"] != http.StatusOK {
				t.Errorf("expected status 200 to be logged, got %v", e.Fields["status"])
			}
		}
	}
	if !found {
		t.Fatal("request was not recorded in the HTTP log buffer")
	}

	rec = serve(ctrl, http.MethodGet, "/api/logs/http", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "req-from-client") {
		t.Errorf("expected the log endpoint to list the request, got %d %s", rec.Code, rec.Body.String())
	}
}

package restserver

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"strconv"
	"time"

	"github.com/chrissnell/cyclehire/internal/analytics"
	"github.com/chrissnell/cyclehire/internal/log"
	"github.com/chrissnell/cyclehire/internal/service"
	"github.com/chrissnell/cyclehire/pkg/responseformat"
	"github.com/chrissnell/cyclehire/pkg/xlsxreport"
	"github.com/gorilla/mux"
)

const healthTimeout = 5 * time.Second

// Handlers contains all HTTP handlers for the REST server
type Handlers struct {
	controller *Controller
	formatter  *responseformat.Formatter
}

// NewHandlers creates a new handlers instance
func NewHandlers(ctrl *Controller) *Handlers {
	return &Handlers{
		controller: ctrl,
		formatter:  responseformat.NewFormatter(),
	}
}

// ParamsResponse describes what the dashboard may ask for.
type ParamsResponse struct {
	DatasetStart    string               `json:"dataset_start"`
	DatasetEnd      string               `json:"dataset_end"`
	DefaultStart    string               `json:"default_start"`
	DefaultEnd      string               `json:"default_end"`
	DefaultInterval analytics.Interval   `json:"default_interval"`
	Intervals       []analytics.Interval `json:"intervals"`
	TopN            int                  `json:"top_n"`
}

// GetParams handles /api/params
func (h *Handlers) GetParams(w http.ResponseWriter, req *http.Request) {
	opts := h.controller.service.Options()
	h.write(w, req, http.StatusOK, ParamsResponse{
		DatasetStart:    opts.Span.Min.Format("2006-01-02"),
		DatasetEnd:      opts.Span.Max.Format("2006-01-02"),
		DefaultStart:    opts.DefaultStart,
		DefaultEnd:      opts.DefaultEnd,
		DefaultInterval: opts.DefaultInterval,
		Intervals:       analytics.Intervals(),
		TopN:            opts.TopN,
	})
}

// GetCapacity handles /api/capacity
func (h *Handlers) GetCapacity(w http.ResponseWriter, req *http.Request) {
	result, ok := h.capacity(w, req)
	if !ok {
		return
	}
	h.write(w, req, resultStatus(result.Status), capacityTable{result})
}

// GetCapacityWorkbook handles /api/capacity/report.xlsx
func (h *Handlers) GetCapacityWorkbook(w http.ResponseWriter, req *http.Request) {
	result, ok := h.capacity(w, req)
	if !ok {
		return
	}
	if !result.OK() {
		h.write(w, req, http.StatusBadGateway, result)
		return
	}

	data, err := xlsxreport.Capacity(result.Data.Stations, result.Data.Insight)
	if err != nil {
		log.Errorf("error building capacity workbook: %v", err)
		h.writeError(w, req, err)
		return
	}

	filename := fmt.Sprintf("problem-stations-%s-%s.xlsx", result.Data.StartDate, result.Data.EndDate)
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (h *Handlers) capacity(w http.ResponseWriter, req *http.Request) (analytics.Result[service.CapacityReport], bool) {
	p, ok := h.params(w, req)
	if !ok {
		return analytics.Result[service.CapacityReport]{}, false
	}

	limit := 0
	if v := req.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			h.writeError(w, req, fmt.Errorf("%w: limit %q", analytics.ErrInvalidParams, v))
			return analytics.Result[service.CapacityReport]{}, false
		}
		limit = n
	}

	result, err := h.controller.service.Capacity(req.Context(), p, limit)
	if err != nil {
		h.writeError(w, req, err)
		return analytics.Result[service.CapacityReport]{}, false
	}
	return result, true
}

// GetStationHourly handles /api/stations/{name}/hourly
func (h *Handlers) GetStationHourly(w http.ResponseWriter, req *http.Request) {
	p, ok := h.params(w, req)
	if !ok {
		return
	}
	name := mux.Vars(req)["name"]

	result, err := h.controller.service.StationHourly(req.Context(), p.WithStation(name))
	if err != nil {
		h.writeError(w, req, err)
		return
	}
	h.write(w, req, resultStatus(result.Status), stationTable{result})
}

// GetFlows handles /api/flows
func (h *Handlers) GetFlows(w http.ResponseWriter, req *http.Request) {
	p, ok := h.params(w, req)
	if !ok {
		return
	}
	result, err := h.controller.service.Flows(req.Context(), p)
	if err != nil {
		h.writeError(w, req, err)
		return
	}
	h.write(w, req, resultStatus(result.Status), flowsTable{result})
}

// GetCriticalTimes handles /api/critical-times
func (h *Handlers) GetCriticalTimes(w http.ResponseWriter, req *http.Request) {
	p, ok := h.params(w, req)
	if !ok {
		return
	}
	result, err := h.controller.service.CriticalTimes(req.Context(), p)
	if err != nil {
		h.writeError(w, req, err)
		return
	}
	h.write(w, req, resultStatus(result.Status), criticalTable{result})
}

// HealthResponse reports warehouse reachability.
type HealthResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// GetHealth handles /api/health
func (h *Handlers) GetHealth(w http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), healthTimeout)
	defer cancel()

	if err := h.controller.service.Ping(ctx); err != nil {
		h.write(w, req, http.StatusServiceUnavailable, HealthResponse{Status: "unavailable", Error: err.Error()})
		return
	}
	h.write(w, req, http.StatusOK, HealthResponse{Status: "ok"})
}

// GetHTTPLogs handles /api/logs/http
func (h *Handlers) GetHTTPLogs(w http.ResponseWriter, req *http.Request) {
	h.write(w, req, http.StatusOK, log.GetHTTPLogBuffer().Entries())
}

// ServeIndex serves the dashboard page.
func (h *Handlers) ServeIndex(w http.ResponseWriter, req *http.Request) {
	content, err := fs.ReadFile(h.controller.FS, "index.html")
	if err != nil {
		h.controller.logger.Errorf("Failed to read index.html: %v", err)
		http.Error(w, "Dashboard not available", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(content)
}

// params parses start, end and interval from the query string. On failure it
// writes a 400 and returns false.
func (h *Handlers) params(w http.ResponseWriter, req *http.Request) (analytics.Params, bool) {
	q := req.URL.Query()
	p, err := h.controller.service.Params(q.Get("start"), q.Get("end"), q.Get("interval"))
	if err != nil {
		h.writeError(w, req, err)
		return analytics.Params{}, false
	}
	return p, true
}

func (h *Handlers) write(w http.ResponseWriter, req *http.Request, status int, data any) {
	if err := h.formatter.WriteResponse(w, req, status, data, nil); err != nil {
		log.Errorf("error encoding response for %s: %v", req.URL.Path, err)
	}
}

// writeError maps request errors to 400 and anything else to 500.
func (h *Handlers) writeError(w http.ResponseWriter, req *http.Request, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, analytics.ErrInvalidParams) || errors.Is(err, service.ErrStationNotRanked) {
		status = http.StatusBadRequest
	}
	h.write(w, req, status, analytics.Failure[any](err))
}

// resultStatus maps a computation outcome to an HTTP status. Empty results
// are still a 200.
func resultStatus(s analytics.Status) int {
	if s == analytics.StatusFailure {
		return http.StatusBadGateway
	}
	return http.StatusOK
}

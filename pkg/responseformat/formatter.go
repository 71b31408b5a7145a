package responseformat

import (
	"encoding/csv"
	"encoding/json"
	"net/http"

	"github.com/vmihailenco/msgpack/v5"
)

// Format is a response encoding selected with the format query parameter.
type Format string

const (
	JSON    Format = "json"
	MsgPack Format = "msgpack"
	CSV     Format = "csv"
)

// FormatOf reads the format query parameter. Anything unrecognised is JSON.
func FormatOf(req *http.Request) Format {
	switch Format(req.URL.Query().Get("format")) {
	case MsgPack:
		return MsgPack
	case CSV:
		return CSV
	default:
		return JSON
	}
}

// Table is implemented by responses that can be flattened into rows.
type Table interface {
	Header() []string
	Rows() [][]string
}

// Formatter handles encoding and writing responses in JSON, MessagePack or CSV
type Formatter struct{}

// NewFormatter creates a new response formatter
func NewFormatter() *Formatter {
	return &Formatter{}
}

// WriteResponse writes data with the given status in the requested format.
// CSV is only produced when data implements Table; otherwise JSON is written.
func (f *Formatter) WriteResponse(w http.ResponseWriter, req *http.Request, status int, data any, headers map[string]string) error {
	for k, v := range headers {
		w.Header().Set(k, v)
	}

	switch FormatOf(req) {
	case MsgPack:
		return f.writeMsgPack(w, status, data)
	case CSV:
		if t, ok := data.(Table); ok {
			return f.writeCSV(w, status, t)
		}
	}
	return f.writeJSON(w, status, data)
}

func (f *Formatter) writeJSON(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

func (f *Formatter) writeMsgPack(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/x-msgpack")
	w.WriteHeader(status)
	encoder := msgpack.NewEncoder(w)
	encoder.SetCustomStructTag("json") // Use json tags for MessagePack
	return encoder.Encode(data)
}

func (f *Formatter) writeCSV(w http.ResponseWriter, status int, t Table) error {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.WriteHeader(status)
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header()); err != nil {
		return err
	}
	if err := cw.WriteAll(t.Rows()); err != nil {
		return err
	}
	return cw.Error()
}

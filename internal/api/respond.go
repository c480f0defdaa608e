package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"taskstats/internal/metrics"
)

const job = "api"

// MsgNotFound is the body of every 404.
const MsgNotFound = "Not found."

// handlerFunc is an http handler that reports unexpected failures instead
// of writing them. Client errors (400, 404) are written by the handler
// itself and return nil.
type handlerFunc func(w http.ResponseWriter, r *http.Request) error

// step adapts h into an http.HandlerFunc that records latency for name and
// turns a returned error into a 500 {"error": message}.
func step(name string, h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		err := h(w, r)
		metrics.RecordStep(job, name, err, time.Since(start))
		if err != nil {
			log.Printf("api: step=%s method=%s path=%s: %v", name, r.Method, r.URL.Path, err)
			writeError(w, http.StatusInternalServerError, err.Error())
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writePNG(w http.ResponseWriter, b []byte) {
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

// writeResult wraps a report in {"result": rows}.
func writeResult(w http.ResponseWriter, rows any) {
	writeJSON(w, http.StatusOK, map[string]any{"result": rows})
}

// wantChart reports whether the request asked for an image (chart=true, any
// case).
func wantChart(r *http.Request) bool {
	return strings.EqualFold(r.URL.Query().Get("chart"), "true")
}

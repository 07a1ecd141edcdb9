// Package monitor records request statistics and traces of the mock
// server for the admin API.
package monitor

import (
	"net/http"
	"time"
)

// DefaultMaxBodySize is how many body bytes a trace keeps by default.
const DefaultMaxBodySize = 64 * 1024

// Options configures a Monitor.
type Options struct {
	// Tracing enables trace capture. Statistics are always collected.
	Tracing     bool
	MaxTraces   int
	MaxBodySize int
}

// Monitor is the statistics collector and tracer pair the middleware
// reports to.
type Monitor struct {
	Stats   *Collector
	Traces  *Tracer
	tracing bool
	maxBody int
}

// New creates a Monitor.
func New(opts Options) *Monitor {
	maxBody := opts.MaxBodySize
	if maxBody <= 0 {
		maxBody = DefaultMaxBodySize
	}
	return &Monitor{
		Stats:   NewCollector(),
		Traces:  NewTracer(opts.MaxTraces),
		tracing: opts.Tracing,
		maxBody: maxBody,
	}
}

// Tracing reports whether traces are captured. Callers skip buffering
// bodies when it is false.
func (m *Monitor) Tracing() bool {
	return m != nil && m.tracing
}

// Exchange is a finished request as seen by the host middleware.
type Exchange struct {
	Operation      Operation
	Request        *http.Request
	RequestBody    []byte
	Status         int
	ResponseHeader http.Header
	ResponseBody   []byte
	Started        time.Time
	Duration       time.Duration
	// Err is the pipeline error rendered as the response, if any.
	Err error
}

// Observe records x in the statistics and, when tracing, as a trace.
func (m *Monitor) Observe(x Exchange) {
	if m == nil {
		return
	}
	m.Stats.RecordRequest(x.Operation, x.Duration, x.Status)
	if x.Err != nil {
		m.Stats.RecordError(x.Operation, x.Request.URL.Path, x.Status, x.Err.Error())
	}
	if !m.tracing {
		return
	}

	t := &Trace{
		OperationID: x.Operation.ID,
		PathName:    x.Operation.Path,
		Timestamp:   x.Started,
		Duration:    x.Duration.Nanoseconds(),
		Request: TraceRequest{
			Method:  x.Request.Method,
			URL:     x.Request.URL.String(),
			Path:    x.Request.URL.Path,
			Query:   x.Request.URL.Query(),
			Headers: x.Request.Header.Clone(),
			Body:    m.truncate(x.RequestBody),
		},
		Response: TraceResponse{
			StatusCode: x.Status,
			Headers:    x.ResponseHeader.Clone(),
			Body:       m.truncate(x.ResponseBody),
		},
	}
	if x.Err != nil {
		t.Error = x.Err.Error()
	}
	m.Traces.Record(t)
}

func (m *Monitor) truncate(b []byte) string {
	if len(b) > m.maxBody {
		return string(b[:m.maxBody])
	}
	return string(b)
}

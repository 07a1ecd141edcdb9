package monitor

import (
	"sync/atomic"
	"time"
)

// Summary is the snapshot returned by the stats endpoint.
type Summary struct {
	TotalRequests     int64           `json:"totalRequests"`
	TotalErrors       int64           `json:"totalErrors"`
	TotalOperations   int             `json:"totalOperations"`
	AvgResponseTimeMs float64         `json:"avgResponseTimeMs"`
	RequestsPerSecond float64         `json:"requestsPerSecond"`
	StartTime         time.Time       `json:"startTime"`
	Uptime            string          `json:"uptime"`
	TopOperations     []OperationStat `json:"topOperations"`
	RecentErrors      []ErrorStat     `json:"recentErrors"`
	RequestsByHour    []HourlyStat    `json:"requestsByHour"`
}

// OperationStat holds the counters of one declared operation, or of the
// unmatched bucket.
type OperationStat struct {
	Key               string  `json:"key"`
	OperationID       string  `json:"operationId,omitempty"`
	Method            string  `json:"method"`
	Path              string  `json:"path"`
	TotalRequests     int64   `json:"totalRequests"`
	TotalErrors       int64   `json:"totalErrors"`
	AvgResponseTimeMs float64 `json:"avgResponseTimeMs"`
	MinResponseTimeMs float64 `json:"minResponseTimeMs"`
	MaxResponseTimeMs float64 `json:"maxResponseTimeMs"`
	LastRequestTime   string  `json:"lastRequestTime,omitempty"`
}

// ErrorStat is one failed request.
type ErrorStat struct {
	Timestamp  time.Time `json:"timestamp"`
	Key        string    `json:"key"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	StatusCode int       `json:"statusCode"`
	Error      string    `json:"error"`
}

// HourlyStat is the request count of one clock hour.
type HourlyStat struct {
	Hour     string `json:"hour"`
	Requests int64  `json:"requests"`
	Errors   int64  `json:"errors"`
}

// Operation identifies what a request was matched to.
type Operation struct {
	// ID is the declared operationId, if any.
	ID     string
	Method string
	// Path is the matched template, empty when no path matched.
	Path string
}

// Key is the stats bucket of the operation.
func (o Operation) Key() string {
	if o.Path == "" {
		return "unmatched"
	}
	return o.Method + " " + o.Path
}

type operationCounter struct {
	op            Operation
	totalRequests atomic.Int64
	totalErrors   atomic.Int64
	totalTimeNs   atomic.Int64
	minTimeNs     atomic.Int64
	maxTimeNs     atomic.Int64
	lastRequest   atomic.Value // time.Time
}

func (a *operationCounter) stat() OperationStat {
	total := a.totalRequests.Load()
	var avg float64
	if total > 0 {
		avg = float64(a.totalTimeNs.Load()) / float64(total) / 1e6
	}
	var last string
	if t, ok := a.lastRequest.Load().(time.Time); ok && !t.IsZero() {
		last = t.Format(time.RFC3339)
	}
	return OperationStat{
		Key:               a.op.Key(),
		OperationID:       a.op.ID,
		Method:            a.op.Method,
		Path:              a.op.Path,
		TotalRequests:     total,
		TotalErrors:       a.totalErrors.Load(),
		AvgResponseTimeMs: avg,
		MinResponseTimeMs: float64(a.minTimeNs.Load()) / 1e6,
		MaxResponseTimeMs: float64(a.maxTimeNs.Load()) / 1e6,
		LastRequestTime:   last,
	}
}

// Trace is a captured request and response.
type Trace struct {
	ID          string        `json:"id"`
	OperationID string        `json:"operationId,omitempty"`
	PathName    string        `json:"pathName,omitempty"`
	Timestamp   time.Time     `json:"timestamp"`
	Duration    int64         `json:"duration"` // nanoseconds
	Request     TraceRequest  `json:"request"`
	Response    TraceResponse `json:"response"`
	Error       string        `json:"error,omitempty"`
}

// TraceRequest is the captured request.
type TraceRequest struct {
	Method  string              `json:"method"`
	URL     string              `json:"url"`
	Path    string              `json:"path"`
	Query   map[string][]string `json:"query"`
	Headers map[string][]string `json:"headers"`
	Body    string              `json:"body"`
}

// TraceResponse is the captured response.
type TraceResponse struct {
	StatusCode int                 `json:"statusCode"`
	Headers    map[string][]string `json:"headers"`
	Body       string              `json:"body"`
}

// TraceFilter selects traces. Zero fields match everything.
type TraceFilter struct {
	Method     string    `form:"method"`
	Path       string    `form:"path"`
	StatusCode int       `form:"status"`
	StartTime  time.Time `form:"since" time_format:"2006-01-02T15:04:05Z07:00"`
	EndTime    time.Time `form:"until" time_format:"2006-01-02T15:04:05Z07:00"`
	Limit      int       `form:"limit"`
}

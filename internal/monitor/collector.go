package monitor

import (
	"sort"
	"sync"
	"time"
)

const (
	maxRecentErrors = 100
	maxHourlySlots  = 168 // 7 days
	topOperations   = 10
)

// Collector aggregates request statistics per operation.
type Collector struct {
	mu           sync.RWMutex
	startTime    time.Time
	operations   map[string]*operationCounter
	recentErrors []ErrorStat
	hourly       map[string]*HourlyStat // "YYYY-MM-DD-HH"
	now          func() time.Time
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	c := &Collector{now: time.Now}
	c.reset()
	return c
}

func (c *Collector) reset() {
	c.startTime = c.now()
	c.operations = make(map[string]*operationCounter)
	c.recentErrors = make([]ErrorStat, 0)
	c.hourly = make(map[string]*HourlyStat)
}

// RecordRequest counts one request against op. Responses with status 400
// or above count as errors.
func (c *Collector) RecordRequest(op Operation, duration time.Duration, status int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := op.Key()
	counter, ok := c.operations[key]
	if !ok {
		counter = &operationCounter{op: op}
		counter.minTimeNs.Store(duration.Nanoseconds())
		c.operations[key] = counter
	}

	ns := duration.Nanoseconds()
	isError := status >= 400
	counter.totalRequests.Add(1)
	counter.totalTimeNs.Add(ns)
	counter.lastRequest.Store(c.now())
	if ns < counter.minTimeNs.Load() {
		counter.minTimeNs.Store(ns)
	}
	if ns > counter.maxTimeNs.Load() {
		counter.maxTimeNs.Store(ns)
	}
	if isError {
		counter.totalErrors.Add(1)
	}

	hourKey := c.now().Format("2006-01-02-15")
	h, ok := c.hourly[hourKey]
	if !ok {
		h = &HourlyStat{Hour: hourKey}
		c.hourly[hourKey] = h
		c.trimHourly()
	}
	h.Requests++
	if isError {
		h.Errors++
	}
}

// RecordError keeps the failure in the recent errors list.
func (c *Collector) RecordError(op Operation, path string, status int, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.recentErrors = append(c.recentErrors, ErrorStat{
		Timestamp:  c.now(),
		Key:        op.Key(),
		Method:     op.Method,
		Path:       path,
		StatusCode: status,
		Error:      message,
	})
	if len(c.recentErrors) > maxRecentErrors {
		c.recentErrors = c.recentErrors[len(c.recentErrors)-maxRecentErrors:]
	}
}

func (c *Collector) trimHourly() {
	if len(c.hourly) <= maxHourlySlots {
		return
	}
	keys := make([]string, 0, len(c.hourly))
	for k := range c.hourly {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys[:len(keys)-maxHourlySlots] {
		delete(c.hourly, k)
	}
}

// Summary returns the totals, the busiest operations, recent errors and
// the last 24 hours of traffic.
func (c *Collector) Summary() *Summary {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var totalRequests, totalErrors, totalTimeNs int64
	ops := make([]OperationStat, 0, len(c.operations))
	for _, op := range c.operations {
		s := op.stat()
		ops = append(ops, s)
		totalRequests += s.TotalRequests
		totalErrors += s.TotalErrors
		totalTimeNs += op.totalTimeNs.Load()
	}
	sort.Slice(ops, func(i, j int) bool {
		if ops[i].TotalRequests != ops[j].TotalRequests {
			return ops[i].TotalRequests > ops[j].TotalRequests
		}
		return ops[i].Key < ops[j].Key
	})
	top := ops
	if len(top) > topOperations {
		top = top[:topOperations]
	}

	var avg float64
	if totalRequests > 0 {
		avg = float64(totalTimeNs) / float64(totalRequests) / 1e6
	}
	uptime := c.now().Sub(c.startTime)
	var rps float64
	if uptime > 0 {
		rps = float64(totalRequests) / uptime.Seconds()
	}

	return &Summary{
		TotalRequests:     totalRequests,
		TotalErrors:       totalErrors,
		TotalOperations:   len(c.operations),
		AvgResponseTimeMs: avg,
		RequestsPerSecond: rps,
		StartTime:         c.startTime,
		Uptime:            formatDuration(uptime),
		TopOperations:     top,
		RecentErrors:      append([]ErrorStat(nil), c.recentErrors...),
		RequestsByHour:    c.lastDay(),
	}
}

// Operation returns the stats of one operation key ("GET /pets").
func (c *Collector) Operation(key string) (OperationStat, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	op, ok := c.operations[key]
	if !ok {
		return OperationStat{}, false
	}
	return op.stat(), true
}

func (c *Collector) lastDay() []HourlyStat {
	now := c.now()
	out := make([]HourlyStat, 0, 24)
	for i := 23; i >= 0; i-- {
		hour := now.Add(-time.Duration(i) * time.Hour)
		s := HourlyStat{Hour: hour.Format("15:00")}
		if h, ok := c.hourly[hour.Format("2006-01-02-15")]; ok {
			s.Requests = h.Requests
			s.Errors = h.Errors
		}
		out = append(out, s)
	}
	return out
}

// Reset clears every counter and restarts the uptime clock.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset()
}

func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Hour:
		return d.Round(time.Minute).String()
	case d >= time.Minute:
		return d.Round(time.Second).String()
	}
	return d.Round(time.Millisecond).String()
}

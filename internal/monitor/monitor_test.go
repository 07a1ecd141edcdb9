package monitor

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	listPets  = Operation{ID: "listPets", Method: "GET", Path: "/pets"}
	createPet = Operation{Method: "POST", Path: "/pets"}
)

func TestOperationKey(t *testing.T) {
	assert.Equal(t, "GET /pets", listPets.Key())
	assert.Equal(t, "unmatched", Operation{Method: "GET"}.Key())
}

func TestCollectorRecordRequest(t *testing.T) {
	c := NewCollector()
	c.RecordRequest(listPets, 100*time.Millisecond, 200)
	c.RecordRequest(listPets, 50*time.Millisecond, 200)
	c.RecordRequest(listPets, 200*time.Millisecond, 404)
	c.RecordRequest(createPet, 10*time.Millisecond, 201)

	s := c.Summary()
	assert.EqualValues(t, 4, s.TotalRequests)
	assert.EqualValues(t, 1, s.TotalErrors)
	assert.Equal(t, 2, s.TotalOperations)
	require.Len(t, s.TopOperations, 2)
	assert.Equal(t, "GET /pets", s.TopOperations[0].Key)
	assert.Len(t, s.RequestsByHour, 24)
	assert.EqualValues(t, 4, s.RequestsByHour[23].Requests)

	op, ok := c.Operation("GET /pets")
	require.True(t, ok)
	assert.Equal(t, "listPets", op.OperationID)
	assert.InDelta(t, 50, op.MinResponseTimeMs, 0.001)
	assert.InDelta(t, 200, op.MaxResponseTimeMs, 0.001)
	assert.InDelta(t, 350.0/3, op.AvgResponseTimeMs, 0.001)
	assert.NotEmpty(t, op.LastRequestTime)

	_, ok = c.Operation("DELETE /pets")
	assert.False(t, ok)
}

func TestCollectorRecentErrorsAreBounded(t *testing.T) {
	c := NewCollector()
	for i := 0; i < maxRecentErrors+5; i++ {
		c.RecordError(listPets, "/pets", 500, "boom")
	}
	assert.Len(t, c.Summary().RecentErrors, maxRecentErrors)
}

func TestCollectorReset(t *testing.T) {
	c := NewCollector()
	c.RecordRequest(listPets, time.Millisecond, 200)
	c.RecordError(listPets, "/pets", 500, "boom")
	c.Reset()

	s := c.Summary()
	assert.Zero(t, s.TotalRequests)
	assert.Empty(t, s.RecentErrors)
	assert.Empty(t, s.TopOperations)
}

func TestCollectorTrimsHourlySlots(t *testing.T) {
	c := NewCollector()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	for i := 0; i < maxHourlySlots+3; i++ {
		c.RecordRequest(listPets, time.Millisecond, 200)
		now = now.Add(time.Hour)
	}
	assert.Len(t, c.hourly, maxHourlySlots)
}

func TestTracerBoundsAndOrder(t *testing.T) {
	tr := NewTracer(3)
	for _, p := range []string{"/a", "/b", "/c", "/d"} {
		tr.Record(&Trace{Request: TraceRequest{Method: "GET", Path: p}})
	}

	list := tr.List(TraceFilter{})
	require.Len(t, list, 3)
	assert.Equal(t, "/d", list[0].Request.Path)
	assert.Equal(t, "/b", list[2].Request.Path)
	assert.NotEmpty(t, list[0].ID)
	assert.False(t, list[0].Timestamp.IsZero())

	assert.Same(t, list[1], tr.Get(list[1].ID))
	assert.Nil(t, tr.Get("nope"))

	tr.Clear()
	assert.Empty(t, tr.List(TraceFilter{}))
}

func TestTracerFilter(t *testing.T) {
	tr := NewTracer(0)
	tr.Record(&Trace{Request: TraceRequest{Method: "GET", Path: "/pets"}, Response: TraceResponse{StatusCode: 200}})
	tr.Record(&Trace{Request: TraceRequest{Method: "POST", Path: "/pets"}, Response: TraceResponse{StatusCode: 201}})
	tr.Record(&Trace{Request: TraceRequest{Method: "GET", Path: "/users"}, Response: TraceResponse{StatusCode: 404}})

	assert.Len(t, tr.List(TraceFilter{Method: "get"}), 2)
	assert.Len(t, tr.List(TraceFilter{Path: "/pets"}), 2)
	assert.Len(t, tr.List(TraceFilter{StatusCode: 404}), 1)
	assert.Len(t, tr.List(TraceFilter{Limit: 1}), 1)
	assert.Empty(t, tr.List(TraceFilter{StartTime: time.Now().Add(time.Hour)}))
}

func TestTracerSubscribe(t *testing.T) {
	tr := NewTracer(10)
	id, ch := tr.Subscribe()
	assert.Equal(t, 1, tr.Stats()["activeSubscribers"])

	tr.Record(&Trace{Request: TraceRequest{Path: "/pets"}})
	select {
	case got := <-ch:
		assert.Equal(t, "/pets", got.Request.Path)
	case <-time.After(time.Second):
		t.Fatal("no trace delivered")
	}

	tr.Unsubscribe(id)
	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, tr.Stats()["activeSubscribers"])
}

func TestObserve(t *testing.T) {
	m := New(Options{Tracing: true, MaxBodySize: 4})
	r := httptest.NewRequest(http.MethodPost, "/api/pets?x=1", nil)

	m.Observe(Exchange{
		Operation:      createPet,
		Request:        r,
		RequestBody:    []byte(`{"name":"Fido"}`),
		Status:         400,
		ResponseHeader: http.Header{"Content-Type": {"application/json"}},
		ResponseBody:   []byte(`{"status":400}`),
		Started:        time.Now(),
		Duration:       time.Millisecond,
		Err:            errors.New("bad body"),
	})

	s := m.Stats.Summary()
	assert.EqualValues(t, 1, s.TotalErrors)
	require.Len(t, s.RecentErrors, 1)
	assert.Equal(t, "bad body", s.RecentErrors[0].Error)

	traces := m.Traces.List(TraceFilter{})
	require.Len(t, traces, 1)
	assert.Equal(t, `{"na`, traces[0].Request.Body)
	assert.Equal(t, "1", traces[0].Request.Query["x"][0])
	assert.Equal(t, 400, traces[0].Response.StatusCode)
	assert.Equal(t, "bad body", traces[0].Error)
}

func TestObserveWithoutTracing(t *testing.T) {
	m := New(Options{})
	m.Observe(Exchange{Operation: listPets, Request: httptest.NewRequest(http.MethodGet, "/pets", nil), Status: 200})

	assert.False(t, m.Tracing())
	assert.EqualValues(t, 1, m.Stats.Summary().TotalRequests)
	assert.Empty(t, m.Traces.List(TraceFilter{}))

	var nilMonitor *Monitor
	assert.False(t, nilMonitor.Tracing())
	nilMonitor.Observe(Exchange{})
}

func TestStreamHandler(t *testing.T) {
	tr := NewTracer(10)
	srv := httptest.NewServer(NewStreamHandler(tr, nil))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		return tr.Stats()["activeSubscribers"] == 1
	}, time.Second, 10*time.Millisecond)

	tr.Record(&Trace{Request: TraceRequest{Method: "GET", Path: "/pets"}})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got Trace
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "/pets", got.Request.Path)
}

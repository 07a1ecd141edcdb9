// Package mock produces responses for declared operations, backed by a
// datastore.Store so that resources created by one request are returned by
// the next.
package mock

import (
	"context"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/prasenjit/go-mockapi/internal/datastore"
	"github.com/prasenjit/go-mockapi/internal/httperr"
	"github.com/prasenjit/go-mockapi/internal/metadata"
	"github.com/prasenjit/go-mockapi/internal/semantic"
)

const presetStatusKey = "mockapi.status"

// SetStatus presets the status code the mock should respond with. It is
// used only when the operation declares a response for it. A status set
// upstream with c.Status is honoured the same way, except for the status
// gin already starts with (200, or 404 in the NoRoute chain).
func SetStatus(c *gin.Context, status int) {
	c.Set(presetStatusKey, status)
}

// presetStatus returns the status chosen upstream of the mock, or zero.
func presetStatus(c *gin.Context) int {
	if status := c.GetInt(presetStatusKey); status != 0 {
		return status
	}
	if c.Writer.Written() {
		return 0
	}
	baseline := http.StatusOK
	if c.FullPath() == "" {
		// gin serves unmatched requests with a 404 already set.
		baseline = http.StatusNotFound
	}
	if status := c.Writer.Status(); status != baseline {
		return status
	}
	return 0
}

// Options configures a Mock.
type Options struct {
	Store   datastore.Store
	Routing metadata.RoutingConfig
	Logger  *slog.Logger
	// Now returns the current time; defaults to time.Now.
	Now func() time.Time
}

// Mock answers requests for declared operations.
type Mock struct {
	store   datastore.Store
	routing metadata.RoutingConfig
	logger  *slog.Logger
	now     func() time.Time
	seq     atomic.Int64
}

// New creates a Mock. A nil store gets an in-memory one.
func New(opts Options) *Mock {
	m := &Mock{
		store:   opts.Store,
		routing: opts.Routing,
		logger:  opts.Logger,
		now:     opts.Now,
	}
	if m.store == nil {
		m.store = datastore.NewMemoryStore()
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m
}

// Store returns the backing store.
func (m *Mock) Store() datastore.Store {
	return m.store
}

// exchange carries one request through a handler.
type exchange struct {
	c      *gin.Context
	md     *metadata.RequestMetadata
	resp   *semantic.Response
	status int
}

func (x *exchange) ctx() context.Context {
	return x.c.Request.Context()
}

// Handle writes the mock response for the operation in md. It returns an
// error for the caller to render when the response cannot be produced.
func (m *Mock) Handle(c *gin.Context, md *metadata.RequestMetadata) error {
	if md.Operation == nil {
		return httperr.New(httperr.KindMock, http.StatusInternalServerError, "no operation to mock for %s %s", c.Request.Method, c.Request.URL.Path)
	}

	if m.aborted(c) {
		return nil
	}

	resp, status := SelectResponse(md.Operation, presetStatus(c))
	x := &exchange{
		c:      c,
		md:     md,
		resp:   semantic.NewResponse(resp, md.Path),
		status: status,
	}
	family := Select(semantic.NewRequest(md).IsCollection, c.Request.Method)

	m.logger.Debug("mocking response",
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"operation", md.PathName,
		"family", family.String(),
		"status", status,
	)

	switch family {
	case ResourceQuery:
		return m.queryResource(x)
	case ResourceEdit:
		return m.editResource(x)
	case CollectionQuery:
		return m.queryCollection(x)
	case CollectionEdit:
		return m.editCollection(x)
	}
	return m.send(x, nil, false)
}

// aborted reports whether the client has gone away. Nothing is written for
// an aborted request.
func (m *Mock) aborted(c *gin.Context) bool {
	err := c.Request.Context().Err()
	if err == nil {
		return false
	}
	m.logger.Warn("request aborted, response not sent",
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"error", err,
	)
	c.Abort()
	return true
}

// Package middleware mounts the mock pipeline on gin. The handlers run in
// this order:
//
//	Monitor          statistics and traces
//	ErrorRenderer    renders pipeline errors as JSON
//	Metadata         matches the request to the current API document
//	ParseRequest     coerces parameters and decodes the body
//	ValidateRequest  rejects requests the operation does not accept
//	Mock             answers the request
//
// A failing handler records its error with c.Error and aborts the chain.
package middleware

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/prasenjit/go-mockapi/internal/apidoc"
	"github.com/prasenjit/go-mockapi/internal/datastore"
	"github.com/prasenjit/go-mockapi/internal/httperr"
	"github.com/prasenjit/go-mockapi/internal/metadata"
	"github.com/prasenjit/go-mockapi/internal/mock"
	"github.com/prasenjit/go-mockapi/internal/monitor"
	"github.com/prasenjit/go-mockapi/internal/validate"
)

const docErrKey = "mockapi.docerr"

// Options configures the pipeline.
type Options struct {
	Handle  *apidoc.Handle
	Routing metadata.RoutingConfig
	// Store backs the mock; an in-memory store is used when nil.
	Store   datastore.Store
	Logger  *slog.Logger
	Monitor *monitor.Monitor
}

// Pipeline is the assembled handler chain.
type Pipeline struct {
	opts   Options
	mock   *mock.Mock
	logger *slog.Logger
}

// New assembles the pipeline.
func New(opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		opts:   opts,
		logger: logger,
		mock: mock.New(mock.Options{
			Store:   opts.Store,
			Routing: opts.Routing,
			Logger:  logger,
		}),
	}
}

// Mock returns the mock the pipeline answers with.
func (p *Pipeline) Mock() *mock.Mock {
	return p.mock
}

// Handlers returns the middleware chain in order.
func (p *Pipeline) Handlers() []gin.HandlerFunc {
	return []gin.HandlerFunc{
		Monitor(p.opts.Monitor),
		ErrorRenderer(p.logger),
		Metadata(p.opts.Handle, p.opts.Routing, p.logger),
		ParseRequest(),
		ValidateRequest(),
		Mock(p.mock),
	}
}

func fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// ErrorRenderer writes the last error recorded on the context as
// {"status": n, "error": "..."} with the headers the error carries.
func ErrorRenderer(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		last := c.Errors.Last()
		if last == nil || c.Writer.Written() {
			return
		}
		err := last.Err
		status := httperr.StatusOf(err)

		var herr *httperr.Error
		if errors.As(err, &herr) {
			for k, vs := range herr.Header {
				for _, v := range vs {
					c.Writer.Header().Add(k, v)
				}
			}
		}

		attrs := []any{"method", c.Request.Method, "path", c.Request.URL.Path, "status", status, "error", err}
		if status >= http.StatusInternalServerError {
			logger.Error("request failed", attrs...)
		} else {
			logger.Debug("request rejected", attrs...)
		}

		if c.Request.Method == http.MethodHead {
			c.Status(status)
			c.Writer.WriteHeaderNow()
			return
		}
		c.JSON(status, gin.H{"status": status, "error": err.Error()})
	}
}

// Metadata resolves the request against the current document snapshot.
func Metadata(h *apidoc.Handle, routing metadata.RoutingConfig, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap := h.Current()
		md := metadata.Resolve(snap.Doc, routing, c.Request.Method, c.Request.URL.Path)
		metadata.Set(c, md)
		c.Set(docErrKey, snap.Err)

		switch {
		case md.API != nil && md.Path == nil:
			logger.Warn("no matching path in the API", "method", c.Request.Method, "path", c.Request.URL.Path)
		case md.Path != nil && md.Operation == nil:
			logger.Warn("no matching operation in the API", "method", c.Request.Method, "path", c.Request.URL.Path, "template", md.PathName)
		}
		c.Next()
	}
}

// ParseRequest fills in the parameter values and body of the metadata.
func ParseRequest() gin.HandlerFunc {
	return func(c *gin.Context) {
		md := metadata.From(c)
		if md.Operation == nil {
			c.Next()
			return
		}
		if err := parse(c.Request, md); err != nil {
			fail(c, err)
			return
		}
		c.Next()
	}
}

// ValidateRequest runs the request checks.
func ValidateRequest() gin.HandlerFunc {
	return func(c *gin.Context) {
		md := metadata.From(c)
		var docErr error
		if v, ok := c.Get(docErrKey); ok {
			docErr, _ = v.(error)
		}
		err := validate.Request(validate.Input{
			DocErr:   docErr,
			Metadata: md,
			Request:  c.Request,
			Values:   md.Values,
			Body:     md.Body,
			BodySize: md.BodySize,
		})
		if err != nil {
			fail(c, err)
			return
		}
		c.Next()
	}
}

// Mock answers requests for the API. Requests outside the API's base path
// pass through untouched.
func Mock(m *mock.Mock) gin.HandlerFunc {
	return func(c *gin.Context) {
		md := metadata.From(c)
		if md.API == nil {
			c.Next()
			return
		}
		if err := m.Handle(c, md); err != nil {
			fail(c, err)
		}
	}
}

// captureWriter keeps a copy of the response body for traces.
type captureWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *captureWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Monitor reports every request to mon once the rest of the chain has run.
func Monitor(mon *monitor.Monitor) gin.HandlerFunc {
	return func(c *gin.Context) {
		if mon == nil {
			c.Next()
			return
		}
		start := time.Now()

		var reqBody []byte
		var capture *captureWriter
		if mon.Tracing() {
			if c.Request.Body != nil {
				reqBody, _ = io.ReadAll(c.Request.Body)
				c.Request.Body = io.NopCloser(bytes.NewReader(reqBody))
			}
			capture = &captureWriter{ResponseWriter: c.Writer}
			c.Writer = capture
		}

		c.Next()

		md := metadata.From(c)
		op := monitor.Operation{Method: c.Request.Method, Path: md.PathName}
		if md.Operation != nil {
			op.ID = md.Operation.OperationID
		}
		x := monitor.Exchange{
			Operation:      op,
			Request:        c.Request,
			RequestBody:    reqBody,
			Status:         c.Writer.Status(),
			ResponseHeader: c.Writer.Header(),
			Started:        start,
			Duration:       time.Since(start),
		}
		if last := c.Errors.Last(); last != nil {
			x.Err = last.Err
		}
		if capture != nil {
			x.ResponseBody = capture.body.Bytes()
		}
		mon.Observe(x)
	}
}

package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/prasenjit/go-mockapi/internal/apidoc"
	"github.com/prasenjit/go-mockapi/internal/datastore"
	"github.com/prasenjit/go-mockapi/internal/monitor"
)

const defaultTraceLimit = 100

// Handler serves the admin API
type Handler struct {
	doc     *apidoc.Handle
	store   datastore.Store
	monitor *monitor.Monitor
	logger  *slog.Logger
}

// NewHandler creates a new handler
func NewHandler(doc *apidoc.Handle, store datastore.Store, mon *monitor.Monitor, logger *slog.Logger) *Handler {
	return &Handler{doc: doc, store: store, monitor: mon, logger: logger}
}

// DocumentStatus describes the current API document snapshot.
type DocumentStatus struct {
	Source      string    `json:"source"`
	Revision    uint64    `json:"revision"`
	LoadedAt    time.Time `json:"loadedAt"`
	Title       string    `json:"title,omitempty"`
	Version     string    `json:"version,omitempty"`
	SpecVersion string    `json:"specVersion,omitempty"`
	BasePath    string    `json:"basePath,omitempty"`
	Paths       int       `json:"paths"`
	Error       string    `json:"error,omitempty"`
}

func documentStatus(snap *apidoc.Snapshot) DocumentStatus {
	s := DocumentStatus{
		Source:   snap.Source,
		Revision: snap.Revision,
		LoadedAt: snap.LoadedAt,
	}
	if snap.Err != nil {
		s.Error = snap.Err.Error()
	}
	if d := snap.Doc; d != nil {
		s.Title = d.Title
		s.Version = d.Version
		s.SpecVersion = d.SpecVersion
		s.BasePath = d.BasePath
		s.Paths = len(d.Paths)
	}
	return s
}

// RouteInfo is one mocked operation.
type RouteInfo struct {
	Method      string `json:"method"`
	Path        string `json:"path"`
	Template    string `json:"template"`
	OperationID string `json:"operationId,omitempty"`
	Summary     string `json:"summary,omitempty"`
}

// HealthCheck returns health status. The server is degraded while the
// API document fails to load.
func (h *Handler) HealthCheck(c *gin.Context) {
	snap := h.doc.Current()
	status := "healthy"
	if snap.Err != nil {
		status = "degraded"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"document":  documentStatus(snap),
	})
}

// GetDocument returns the current document snapshot
func (h *Handler) GetDocument(c *gin.Context) {
	c.JSON(http.StatusOK, documentStatus(h.doc.Current()))
}

// ReloadDocument reloads the API document from its source file
func (h *Handler) ReloadDocument(c *gin.Context) {
	snap := h.doc.Reload(c.Request.Context())
	status := http.StatusOK
	if snap.Err != nil {
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, documentStatus(snap))
}

// GetRoutes lists the operations the mock answers
func (h *Handler) GetRoutes(c *gin.Context) {
	snap := h.doc.Current()
	if snap.Doc == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": snap.Err.Error()})
		return
	}

	routes := make([]RouteInfo, 0)
	for _, p := range snap.Doc.Paths {
		full := path.Join(snap.Doc.BasePath, p.Template)
		if strings.HasSuffix(p.Template, "/") && !strings.HasSuffix(full, "/") {
			full += "/"
		}
		for _, method := range p.Methods {
			op := p.Operations[method]
			routes = append(routes, RouteInfo{
				Method:      strings.ToUpper(method),
				Path:        full,
				Template:    p.Template,
				OperationID: op.OperationID,
				Summary:     op.Summary,
			})
		}
	}
	c.JSON(http.StatusOK, routes)
}

// GetStats returns the statistics summary
func (h *Handler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"summary": h.monitor.Stats.Summary(),
		"tracing": h.monitor.Traces.Stats(),
	})
}

// GetOperationStats returns statistics of the operation named by the key
// query parameter, e.g. ?key=GET%20/pets
func (h *Handler) GetOperationStats(c *gin.Context) {
	key := c.Query("key")
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "key query parameter is required"})
		return
	}
	stat, ok := h.monitor.Stats.Operation(key)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "No statistics for " + key})
		return
	}
	c.JSON(http.StatusOK, stat)
}

// ResetStats resets all statistics
func (h *Handler) ResetStats(c *gin.Context) {
	h.monitor.Stats.Reset()
	c.JSON(http.StatusOK, gin.H{"message": "Statistics reset"})
}

// ListTraces lists traces matching the query filter
func (h *Handler) ListTraces(c *gin.Context) {
	filter := monitor.TraceFilter{Limit: defaultTraceLimit}
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.monitor.Traces.List(filter))
}

// GetTrace returns a single trace
func (h *Handler) GetTrace(c *gin.Context) {
	trace := h.monitor.Traces.Get(c.Param("id"))
	if trace == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Trace not found"})
		return
	}
	c.JSON(http.StatusOK, trace)
}

// ClearTraces clears all traces
func (h *Handler) ClearTraces(c *gin.Context) {
	h.monitor.Traces.Clear()
	c.JSON(http.StatusOK, gin.H{"message": "Traces cleared"})
}

// ResourceInfo is a stored mock resource as the admin API shows it.
type ResourceInfo struct {
	Path       string          `json:"path"`
	Data       json.RawMessage `json:"data"`
	CreatedOn  time.Time       `json:"createdOn"`
	ModifiedOn time.Time       `json:"modifiedOn"`
}

// ListResources returns the stored resources grouped by collection. The
// collection query parameter narrows the result to one collection key.
func (h *Handler) ListResources(c *gin.Context) {
	ctx := c.Request.Context()
	keys, err := h.store.Collections(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if only := c.Query("collection"); only != "" {
		keys = []string{only}
	}

	out := make(map[string][]ResourceInfo, len(keys))
	for _, key := range keys {
		list, err := h.store.List(ctx, key)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		infos := make([]ResourceInfo, 0, len(list))
		for _, r := range list {
			infos = append(infos, ResourceInfo{
				Path:       r.Path(),
				Data:       r.Data,
				CreatedOn:  r.CreatedOn,
				ModifiedOn: r.ModifiedOn,
			})
		}
		out[key] = infos
	}
	c.JSON(http.StatusOK, out)
}

// ClearResources deletes every stored resource
func (h *Handler) ClearResources(c *gin.Context) {
	ctx := c.Request.Context()
	keys, err := h.store.Collections(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	deleted := 0
	for _, key := range keys {
		list, err := h.store.DeleteCollection(ctx, key)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		deleted += len(list)
	}
	h.logger.Info("cleared mock resources", "collections", len(keys), "resources", deleted)
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

package api

import (
	"net/http"
	"strings"
	"sync"

	"covidash/internal/engine"
	"covidash/internal/models"
	"covidash/web"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	mu    sync.RWMutex
	store *engine.ColumnStore
}

// NewHandler may be constructed with a nil store; data endpoints return 503
// until SetData publishes the loaded dataset.
func NewHandler(store *engine.ColumnStore) *Handler {
	return &Handler{store: store}
}

func (h *Handler) SetData(store *engine.ColumnStore) {
	h.mu.Lock()
	h.store = store
	h.mu.Unlock()
}

func (h *Handler) get() *engine.ColumnStore {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.store
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/", h.GetDashboardPage)
	api := e.Group("/api")
	api.GET("/status", h.GetStatus)
	api.GET("/regions", h.GetRegions)
	api.GET("/series", h.GetSeries)
	api.GET("/summary", h.GetSummary)
}

// --- HANDLERS ---

// regionParam reads ?region=; an absent or blank value selects the aggregate.
func regionParam(c echo.Context) string {
	r := strings.TrimSpace(c.QueryParam("region"))
	if r == "" {
		return engine.AllRegions
	}
	return r
}

func loading(c echo.Context) error {
	return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "loading"})
}

func (h *Handler) GetDashboardPage(c echo.Context) error {
	return c.HTMLBlob(http.StatusOK, web.Index)
}

func (h *Handler) GetStatus(c echo.Context) error {
	store := h.get()
	if store == nil {
		return c.JSON(http.StatusOK, models.StatusResponse{Ready: false})
	}
	return c.JSON(http.StatusOK, models.StatusResponse{
		Ready:       true,
		Rows:        store.Len(),
		Regions:     len(store.RegionDict),
		DroppedRows: store.DroppedRows,
	})
}

func (h *Handler) GetRegions(c echo.Context) error {
	store := h.get()
	if store == nil {
		return loading(c)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"regions": store.Regions()})
}

// GetSeries returns the full derived series for a region. An unknown region
// is an empty series, not an error; the page renders its "no data" state.
func (h *Handler) GetSeries(c echo.Context) error {
	store := h.get()
	if store == nil {
		return loading(c)
	}
	region := regionParam(c)
	points := store.Derive(region)
	if points == nil {
		points = []models.SeriesPoint{}
	}
	return c.JSON(http.StatusOK, models.SeriesResponse{
		Region: region,
		Points: points,
		Total:  len(points),
	})
}

func (h *Handler) GetSummary(c echo.Context) error {
	store := h.get()
	if store == nil {
		return loading(c)
	}
	region := regionParam(c)
	summary, ok := store.Summary(region)
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "no data for region " + region})
	}
	return c.JSON(http.StatusOK, summary)
}

package handlers

import (
	"errors"
	"net/http"

	"smart_aquarium/internal/store"

	"github.com/gin-gonic/gin"
)

// Common response/status constants to avoid magic strings and typos.
const (
	statusOK      = "ok"
	statusWritten = "written"
	statusMerged  = "merged"
	statusDeleted = "deleted"

	errReadValue       = "failed to read value"
	errWriteValue      = "failed to write value"
	errInvalidBodyPref = "invalid body: "
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// storeErrorStatus maps store errors onto HTTP codes: caller mistakes are
// 400, a closed store is 503, anything else 500.
func storeErrorStatus(err error) int {
	switch {
	case errors.Is(err, store.ErrInvalidPath), errors.Is(err, store.ErrInvalidValue):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// StoreValue documents the GET /api/v1/store response.
type StoreValue struct {
	Path   string `json:"path" example:"aquarium/devices/lights"`
	Exists bool   `json:"exists"`
	Value  any    `json:"value,omitempty"`
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}

// @Summary      Read a store value
// @Tags         store
// @Produce      json
// @Param        path  path  string  true  "Slash separated store path"  example(aquarium/sensors)
// @Success      200  {object}  StoreValue
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/store/{path} [get]
// @Security     BearerAuth
func (h *Handler) getValue(c *gin.Context) {
	p := c.Param("path")
	v, ok, err := h.services.Store.Get(p)
	if err != nil {
		h.logAndJSONError(c, storeErrorStatus(err), errReadValue, "store_get_failed", err, "path", p)
		return
	}
	clean, _ := store.CleanPath(p)
	c.JSON(http.StatusOK, StoreValue{Path: clean, Exists: ok, Value: v})
}

// @Summary      Replace a store value
// @Tags         store
// @Accept       json
// @Produce      json
// @Param        path  path  string  true  "Slash separated store path"
// @Param        body  body  object  true  "Any JSON value"
// @Success      200  {object}  map[string]string
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/store/{path} [put]
// @Security     BearerAuth
func (h *Handler) putValue(c *gin.Context) {
	var v any
	if err := c.ShouldBindJSON(&v); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	p := c.Param("path")
	if err := h.services.Store.Write(c.Request.Context(), p, v); err != nil {
		h.logAndJSONError(c, storeErrorStatus(err), errWriteValue, "store_write_failed", err, "path", p)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusWritten})
}

// @Summary      Merge into a store value
// @Description  Keys may be slash separated sub-paths; siblings are kept and null deletes.
// @Tags         store
// @Accept       json
// @Produce      json
// @Param        path  path  string  true  "Slash separated store path"
// @Param        body  body  object  true  "Partial object"
// @Success      200  {object}  map[string]string
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/store/{path} [patch]
// @Security     BearerAuth
func (h *Handler) patchValue(c *gin.Context) {
	var partial map[string]any
	if err := c.ShouldBindJSON(&partial); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	p := c.Param("path")
	if err := h.services.Store.Merge(c.Request.Context(), p, partial); err != nil {
		h.logAndJSONError(c, storeErrorStatus(err), errWriteValue, "store_merge_failed", err, "path", p)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusMerged})
}

// @Summary      Delete a store value
// @Tags         store
// @Produce      json
// @Param        path  path  string  true  "Slash separated store path"
// @Success      200  {object}  map[string]string
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/store/{path} [delete]
// @Security     BearerAuth
func (h *Handler) deleteValue(c *gin.Context) {
	p := c.Param("path")
	if err := h.services.Store.Write(c.Request.Context(), p, nil); err != nil {
		h.logAndJSONError(c, storeErrorStatus(err), errWriteValue, "store_delete_failed", err, "path", p)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusDeleted})
}

package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"qrscan-service/internal/domain/scan"
	"qrscan-service/internal/scanner"
	"qrscan-service/internal/service"
	"qrscan-service/internal/utils"
)

type Handler struct {
	scannerService *service.ScannerService
	log            zerolog.Logger
}

func NewHandler(
	scannerService *service.ScannerService,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		scannerService: scannerService,
		log:            log,
	}
}

func (h *Handler) Register(r *gin.Engine, authMiddleware gin.HandlerFunc) {
	r.GET("/healthz", h.healthz)

	// Public endpoints
	public := r.Group("/api/v1")
	{
		public.POST("/uids/validate", h.validateUID)
	}

	// Camera control
	protected := r.Group("/api/v1")
	protected.Use(authMiddleware)
	{
		protected.POST("/scanners", h.createScanner)
		protected.GET("/scanners/:id", h.getScanner)
		protected.DELETE("/scanners/:id", h.closeScanner)
		protected.GET("/scanners/:id/result", h.getResult)
		protected.GET("/scanners/:id/events", h.streamEvents)
		protected.POST("/scanners/:id/start", h.startScanner)
		protected.POST("/scanners/:id/stop", h.stopScanner)
		protected.POST("/scanners/:id/switch", h.switchCamera)
		protected.POST("/scanners/:id/rescan", h.rescan)
	}
}

func (h *Handler) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"scanners": h.scannerService.Count(),
	})
}

func (h *Handler) validateUID(c *gin.Context) {
	var payload scan.ValidateRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	result, err := h.scannerService.ValidateUID(payload.UID)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(result))
}

func (h *Handler) createScanner(c *gin.Context) {
	client := scan.ClientInfo{
		UserAgent: c.GetHeader("User-Agent"),
		CHMobile:  c.GetHeader("Sec-CH-UA-Mobile"),
		Origin: utils.PageOrigin(
			c.GetHeader("Origin"),
			c.Request.Host,
			c.Request.TLS != nil,
			c.GetHeader("X-Forwarded-Proto"),
		),
	}

	state, err := h.scannerService.CreateScanner(c.Request.Context(), client)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, successResponse(state))
}

func (h *Handler) getScanner(c *gin.Context) {
	state, err := h.scannerService.State(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(state))
}

func (h *Handler) closeScanner(c *gin.Context) {
	if err := h.scannerService.Close(c.Request.Context(), c.Param("id")); err != nil {
		h.handleError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) getResult(c *gin.Context) {
	result, err := h.scannerService.Result(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(result))
}

func (h *Handler) streamEvents(c *gin.Context) {
	states, err := h.scannerService.Watch(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Stream(func(w io.Writer) bool {
		state, ok := <-states
		if !ok {
			return false
		}
		c.SSEvent("state", state)
		return true
	})
}

func (h *Handler) startScanner(c *gin.Context) {
	var payload scan.StartRequest
	if err := c.ShouldBindJSON(&payload); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	state, err := h.scannerService.Start(c.Request.Context(), c.Param("id"), payload.Facing)
	h.respondControl(c, state, err)
}

func (h *Handler) stopScanner(c *gin.Context) {
	state, err := h.scannerService.Stop(c.Request.Context(), c.Param("id"))
	h.respondControl(c, state, err)
}

func (h *Handler) switchCamera(c *gin.Context) {
	state, err := h.scannerService.SwitchCamera(c.Request.Context(), c.Param("id"))
	h.respondControl(c, state, err)
}

func (h *Handler) rescan(c *gin.Context) {
	state, err := h.scannerService.Rescan(c.Request.Context(), c.Param("id"))
	h.respondControl(c, state, err)
}

// respondControl reports capture failures together with the scanner state;
// the scanner stays usable after any of them.
func (h *Handler) respondControl(c *gin.Context, state scanner.State, err error) {
	if err == nil {
		c.JSON(http.StatusOK, successResponse(state))
		return
	}

	status := 0
	switch scanner.KindOf(err) {
	case scanner.KindEnvironment:
		status = http.StatusForbidden
	case scanner.KindAcquisition:
		status = http.StatusUnprocessableEntity
	case scanner.KindMount:
		status = http.StatusInternalServerError
	}
	if status == 0 && errors.Is(err, scanner.ErrStopped) {
		status = http.StatusConflict
	}
	if status == 0 {
		h.handleError(c, err)
		return
	}

	h.log.Warn().
		Err(err).
		Str("scanner_id", state.ID).
		Str("error_kind", string(scanner.KindOf(err))).
		Msg("camera control failed")
	c.JSON(status, gin.H{
		"error":      err.Error(),
		"error_kind": scanner.KindOf(err),
		"data":       state,
	})
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse(err.Error()))
	case errors.Is(err, service.ErrTooManyScanners):
		c.JSON(http.StatusTooManyRequests, errorResponse(err.Error()))
	default:
		h.log.Error().Err(err).Msg("handler error")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
	}
}

func successResponse(data interface{}) gin.H {
	return gin.H{
		"data": data,
	}
}

func errorResponse(message string) gin.H {
	return gin.H{
		"error": message,
	}
}

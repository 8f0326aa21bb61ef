package handler

import (
	"errors"
	"net/http"
	"time"

	"landedcost/internal/service"
	"landedcost/pkg/money"
	"landedcost/pkg/response"

	"github.com/gin-gonic/gin"
)

type FxHandler struct {
	fxService service.FxService
}

func NewFxHandler(fxService service.FxService) *FxHandler {
	return &FxHandler{fxService: fxService}
}

func (h *FxHandler) RegisterRoutes(router *gin.RouterGroup) {
	fx := router.Group("/api/fx")
	{
		fx.GET("/rate", h.GetRate)
		fx.POST("/refresh", h.Refresh)
	}
}

// GetRate returns the applicable rate for a pair at an optional as-of date
func (h *FxHandler) GetRate(c *gin.Context) {
	base := c.Query("base")
	quote := c.Query("quote")
	if base == "" || quote == "" {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "base and quote query params are required"))
		return
	}

	var asOf *time.Time
	if s := c.Query("as_of"); s != "" {
		t, err := money.ParseDate(s)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
			return
		}
		asOf = &t
	}

	rate, err := h.fxService.Rate(c.Request.Context(), base, quote, asOf)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}
	if rate == nil {
		c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, "no rate found for pair"))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{
		"base":  base,
		"quote": quote,
		"rate":  rate.String(),
	}))
}

// Refresh pulls the daily feed and fills missing cross-rates
func (h *FxHandler) Refresh(c *gin.Context) {
	result, err := h.fxService.Refresh(c.Request.Context())
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUpstreamFetch):
			c.JSON(http.StatusBadGateway, response.Error(http.StatusBadGateway, err.Error()))
		case errors.Is(err, service.ErrImportAlreadyRunning):
			c.JSON(http.StatusConflict, response.Error(http.StatusConflict, err.Error()))
		default:
			c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		}
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

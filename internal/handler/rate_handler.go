package handler

import (
	"net/http"

	"landedcost/internal/repository"
	"landedcost/pkg/pagination"
	"landedcost/pkg/response"

	"github.com/gin-gonic/gin"
)

// RateHandler exposes read-only views over the rate store datasets.
type RateHandler struct {
	dutyRepo      repository.DutyRateRepository
	vatRepo       repository.VatRuleRepository
	deMinimisRepo repository.DeMinimisRepository
	surchargeRepo repository.SurchargeRepository
	freightRepo   repository.FreightRepository
	categoryRepo  repository.CategoryRepository
}

func NewRateHandler(
	dutyRepo repository.DutyRateRepository,
	vatRepo repository.VatRuleRepository,
	deMinimisRepo repository.DeMinimisRepository,
	surchargeRepo repository.SurchargeRepository,
	freightRepo repository.FreightRepository,
	categoryRepo repository.CategoryRepository,
) *RateHandler {
	return &RateHandler{
		dutyRepo:      dutyRepo,
		vatRepo:       vatRepo,
		deMinimisRepo: deMinimisRepo,
		surchargeRepo: surchargeRepo,
		freightRepo:   freightRepo,
		categoryRepo:  categoryRepo,
	}
}

func (h *RateHandler) RegisterRoutes(router *gin.RouterGroup) {
	api := router.Group("/api")
	{
		api.GET("/duty-rates", h.ListDutyRates)
		api.GET("/vat-rules", h.ListVatRules)
		api.GET("/de-minimis", h.ListDeMinimis)
		api.GET("/surcharges", h.ListSurcharges)
		api.GET("/freight-cards", h.ListFreightCards)
		api.GET("/categories", h.ListCategories)
	}
}

func (h *RateHandler) ListDutyRates(c *gin.Context) {
	params := pagination.ParseDataset(c)
	rates, total, err := h.dutyRepo.List(c.Request.Context(), c.Query("dest"), c.Query("hs6"), params.Page, params.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Paged(http.StatusOK, rates, params.Page, params.Limit, total))
}

func (h *RateHandler) ListVatRules(c *gin.Context) {
	params := pagination.ParseDataset(c)
	rules, total, err := h.vatRepo.List(c.Request.Context(), c.Query("dest"), params.Page, params.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Paged(http.StatusOK, rules, params.Page, params.Limit, total))
}

func (h *RateHandler) ListDeMinimis(c *gin.Context) {
	params := pagination.ParseDataset(c)
	thresholds, total, err := h.deMinimisRepo.List(c.Request.Context(), c.Query("dest"), params.Page, params.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Paged(http.StatusOK, thresholds, params.Page, params.Limit, total))
}

func (h *RateHandler) ListSurcharges(c *gin.Context) {
	params := pagination.ParseDataset(c)
	surcharges, total, err := h.surchargeRepo.List(c.Request.Context(), c.Query("dest"), params.Page, params.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Paged(http.StatusOK, surcharges, params.Page, params.Limit, total))
}

func (h *RateHandler) ListFreightCards(c *gin.Context) {
	params := pagination.ParseDataset(c)
	cards, total, err := h.freightRepo.List(c.Request.Context(), c.Query("mode"), params.Page, params.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Paged(http.StatusOK, cards, params.Page, params.Limit, total))
}

func (h *RateHandler) ListCategories(c *gin.Context) {
	params := pagination.ParseDataset(c)
	categories, total, err := h.categoryRepo.List(c.Request.Context(), params.Page, params.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Paged(http.StatusOK, categories, params.Page, params.Limit, total))
}

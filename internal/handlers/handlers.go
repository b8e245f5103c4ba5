package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"portfolio-tracker/internal/apperrors"
	"portfolio-tracker/internal/models"
)

type HistoryStore interface {
	CreateSnapshot(ctx context.Context, s models.Snapshot) (int64, error)
	ListSnapshots(ctx context.Context) ([]models.Summary, error)
	GetSnapshot(ctx context.Context, id int64) (models.Snapshot, error)
}

type PriceResolver interface {
	Resolve(ctx context.Context, symbol, date string) (models.Quote, error)
}

type Handler struct {
	store  HistoryStore
	prices PriceResolver
	log    *logrus.Logger
}

func NewHandler(s HistoryStore, p PriceResolver, log *logrus.Logger) *Handler {
	return &Handler{store: s, prices: p, log: log}
}

// Register mounts every route on r.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/health", h.Health)

	api := r.Group("/api")
	api.POST("/history", h.PostHistory)
	api.GET("/history", h.ListHistory)
	api.GET("/history/:id", h.GetHistory)
	api.GET("/stock/price", h.GetStockPrice)
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) PostHistory(c *gin.Context) {
	var req models.Snapshot
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warnf("invalid history body: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req.ID = 0
	if req.Stocks == nil {
		req.Stocks = []models.Position{}
	}

	id, err := h.store.CreateSnapshot(c.Request.Context(), req)
	if err != nil {
		h.fail(c, "create snapshot failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "id": id})
}

func (h *Handler) ListHistory(c *gin.Context) {
	rows, err := h.store.ListSnapshots(c.Request.Context())
	if err != nil {
		h.fail(c, "list snapshots failed", err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (h *Handler) GetHistory(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id must be an integer"})
		return
	}
	s, err := h.store.GetSnapshot(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "get snapshot failed", err)
		return
	}
	c.JSON(http.StatusOK, s)
}

type priceQuery struct {
	Symbol string `form:"symbol" binding:"required"`
	Date   string `form:"date"`
}

func (h *Handler) GetStockPrice(c *gin.Context) {
	var q priceQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol is required"})
		return
	}
	quote, err := h.prices.Resolve(c.Request.Context(), q.Symbol, q.Date)
	if err != nil {
		h.fail(c, "price lookup for "+q.Symbol+" failed", err)
		return
	}
	c.JSON(http.StatusOK, quote)
}

// fail logs err and writes it with the status of its category.
func (h *Handler) fail(c *gin.Context, msg string, err error) {
	status := apperrors.StatusCode(err)
	if status >= http.StatusInternalServerError {
		h.log.Errorf("%s: %v", msg, err)
	} else {
		h.log.Warnf("%s: %v", msg, err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

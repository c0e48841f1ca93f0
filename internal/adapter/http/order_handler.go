package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/getf1tickets/order-service/internal/adapter/http/middleware"
	domain "github.com/getf1tickets/order-service/internal/entity"
	"github.com/getf1tickets/order-service/internal/logging"
	"github.com/getf1tickets/order-service/internal/usecase"
)

type OrderHandler struct {
	create *usecase.CreateOrder
	get    *usecase.GetOrder
	stats  *usecase.GetOrderStats
}

func NewOrderHandler(create *usecase.CreateOrder, get *usecase.GetOrder, stats *usecase.GetOrderStats) *OrderHandler {
	return &OrderHandler{create: create, get: get, stats: stats}
}

type createOrderReq struct {
	Products []struct {
		ID       string `json:"id"`
		Quantity int64  `json:"quantity"`
	} `json:"products"`
	AddressID string `json:"addressId"`
}

func (r createOrderReq) validate() bool {
	if len(r.Products) == 0 || r.AddressID == "" {
		return false
	}
	for _, p := range r.Products {
		if p.ID == "" || p.Quantity <= 0 {
			return false
		}
	}
	return true
}

type orderResp struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Subtotal int64  `json:"subtotal"`
	Discount int64  `json:"discount"`
	Total    int64  `json:"total"`
}

// CreateOrder handles POST /orders. The body contract is strict: unknown
// fields are rejected like the schema validator in front of the original
// service did.
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req createOrderReq
	if err := decodeStrict(c.Request.Body, &req); err != nil || !req.validate() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request"})
		return
	}

	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	lines := make([]usecase.LineRequest, len(req.Products))
	for i, p := range req.Products {
		lines[i] = usecase.LineRequest{ProductID: p.ID, Quantity: p.Quantity}
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()
	ctx = logging.WithCtx(ctx, logging.From(c))

	order, err := h.create.Execute(ctx, usecase.CreateOrderInput{
		User:           user,
		AddressID:      req.AddressID,
		Lines:          lines,
		IdempotencyKey: c.GetHeader("X-Idempotency-Key"),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, orderResp{
		ID:       order.ID,
		Status:   string(order.Status),
		Subtotal: order.SubtotalCents,
		Discount: order.DiscountCents,
		Total:    order.TotalCents,
	})
}

func (h *OrderHandler) GetOrderByID(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	detail, err := h.get.Execute(ctx, user, c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	products := make([]gin.H, len(detail.Products))
	for i, p := range detail.Products {
		products[i] = gin.H{
			"id":       p.ProductID,
			"quantity": p.Quantity,
			"description": gin.H{
				"name":  p.Name,
				"price": p.PriceCents,
			},
		}
	}
	resp := gin.H{
		"id":       detail.Order.ID,
		"status":   detail.Order.Status,
		"subtotal": detail.Order.SubtotalCents,
		"total":    detail.Order.TotalCents,
		"products": products,
	}
	if detail.Address != nil {
		resp["address"] = gin.H{
			"id":      detail.Address.ID,
			"street":  detail.Address.Street,
			"city":    detail.Address.City,
			"zip":     detail.Address.Zip,
			"country": detail.Address.Country,
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (h *OrderHandler) GetStats(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	stats, err := h.stats.Execute(ctx)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// writeError maps domain errors to status codes once, at the edge. Internal
// detail is logged, never returned.
func (h *OrderHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	case errors.Is(err, domain.ErrInvalidQuantity), errors.Is(err, domain.ErrOutOfRange):
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request"})
	case errors.Is(err, usecase.ErrDuplicate):
		c.JSON(http.StatusConflict, gin.H{"error": "duplicate_request"})
	default:
		logging.From(c).Error("request failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}

func decodeStrict(r io.Reader, v any) error {
	dec := json.NewDecoder(io.LimitReader(r, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	// exactly one JSON document
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("trailing data")
	}
	return nil
}

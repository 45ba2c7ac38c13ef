package handlers

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/noorulameen-lester/Honey-Palace-sub000/internal/apperr"
	"github.com/noorulameen-lester/Honey-Palace-sub000/internal/checkout"
	"github.com/noorulameen-lester/Honey-Palace-sub000/internal/payment"
	"github.com/noorulameen-lester/Honey-Palace-sub000/internal/validation"
)

// OrdersHandler serves the order endpoints.
type OrdersHandler struct {
	svc *checkout.Service
	v   *validatorv10.Validate
	log *slog.Logger
}

// RegisterOrdersRoutes registers routes for order API.
func RegisterOrdersRoutes(r gin.IRouter, svc *checkout.Service, v *validatorv10.Validate, log *slog.Logger) {
	h := &OrdersHandler{svc: svc, v: v, log: log}
	r.POST("/orders", h.create)
	r.PATCH("/orders", h.updateStatus)
	r.GET("/orders", h.get)
	r.POST("/orders/verify", h.verify)
}

func (h *OrdersHandler) create(c *gin.Context) {
	ctx := c.Request.Context()

	var req validation.CreateOrderRequest
	if err := validation.BindAndValidate(c, &req, h.v); err != nil {
		fail(c, h.log, err, nil)
		return
	}

	res, err := h.svc.PlaceOrder(ctx, req)
	if err != nil {
		var extra gin.H
		if res.Order != nil {
			// persisted; the client can ask /send-otp to re-issue
			extra = gin.H{"insertedId": res.Order.ID, "orderId": res.Order.Code}
		}
		fail(c, h.log, err, extra)
		return
	}

	body := gin.H{
		"insertedId": res.Order.ID,
		"orderId":    res.Order.Code,
		"status":     res.Order.Status,
	}
	if res.Checkout != nil {
		addCheckout(body, res.Checkout)
	}
	if h.svc.EchoOTP() {
		body["otp"] = res.OTP
	}
	ok(c, body)
}

func (h *OrdersHandler) updateStatus(c *gin.Context) {
	var req validation.StatusUpdateRequest
	if err := validation.BindAndValidate(c, &req, h.v); err != nil {
		fail(c, h.log, err, nil)
		return
	}
	if _, err := h.svc.UpdateStatus(c.Request.Context(), req.OrderID, req.Status); err != nil {
		fail(c, h.log, err, nil)
		return
	}
	ok(c, gin.H{})
}

func (h *OrdersHandler) get(c *gin.Context) {
	id := c.Query("id")
	if id == "" {
		fail(c, h.log, apperr.Validation("id is required"), nil)
		return
	}
	o, err := h.svc.GetOrder(c.Request.Context(), id)
	if err != nil {
		fail(c, h.log, err, nil)
		return
	}
	ok(c, gin.H{"order": o.View()})
}

func (h *OrdersHandler) verify(c *gin.Context) {
	var req validation.VerifyOrderRequest
	if err := validation.BindAndValidate(c, &req, h.v); err != nil {
		fail(c, h.log, err, nil)
		return
	}
	res, err := h.svc.VerifyOrder(c.Request.Context(), req)
	if err != nil {
		fail(c, h.log, err, nil)
		return
	}

	body := gin.H{
		"verified":  res.Verified,
		"finalized": res.Finalized,
		"orderId":   res.Order.Code,
		"order":     res.Order.View(),
	}
	if res.Payment != "" {
		body["paymentStatus"] = res.Payment
	}
	if res.Checkout != nil {
		addCheckout(body, res.Checkout)
	}
	ok(c, body)
}

func addCheckout(body gin.H, co *payment.Checkout) {
	body["razorpayOrder"] = co.Intent
	body["key_id"] = co.KeyID
}

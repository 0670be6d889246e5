package payments

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"storefront/internal/apperr"
	"storefront/internal/auth"
	"storefront/internal/domain/order"
	"storefront/internal/httpx"
	"storefront/internal/orders"
)

// Orders is the part of the order service payments depend on.
type Orders interface {
	Place(ctx context.Context, userID int64, in orders.PlaceInput) (order.Order, error)
	MarkPaid(ctx context.Context, razorpayOrderID, paymentID string, amountPaise int64) (order.Order, error)
}

type Handler struct {
	gateway       Gateway
	keySecret     string
	webhookSecret string
	orders        Orders
	log           *slog.Logger
}

// NewHandler accepts a nil gateway; create-order then reports the missing
// credentials.
func NewHandler(gateway Gateway, keySecret, webhookSecret string, orders Orders, log *slog.Logger) *Handler {
	if webhookSecret == "" {
		webhookSecret = keySecret
	}
	return &Handler{
		gateway:       gateway,
		keySecret:     keySecret,
		webhookSecret: webhookSecret,
		orders:        orders,
		log:           log,
	}
}

type createOrderReq struct {
	Amount   float64 `json:"amount" binding:"required,min=1"`
	Currency string  `json:"currency" binding:"required,oneof=INR"`
}

func (h *Handler) CreateOrder(c *gin.Context) {
	var req createOrderReq
	if !httpx.BindJSON(c, &req) {
		return
	}
	if h.gateway == nil || h.keySecret == "" {
		httpx.Fail(c, http.StatusInternalServerError, ErrNotConfigured.Error(), nil)
		return
	}
	paise := order.ToPaise(decimal.NewFromFloat(req.Amount))
	o, err := h.gateway.CreateOrder(c.Request.Context(), paise, req.Currency, "rcpt_"+uuid.NewString()[:18])
	if err != nil {
		h.log.Error("razorpay create order failed", "err", err, "amount", paise)
		httpx.Fail(c, http.StatusBadGateway, "Failed to create payment order", nil)
		return
	}
	httpx.OK(c, "Razorpay order created", o)
}

type verifyReq struct {
	RazorpayOrderID   string              `json:"razorpay_order_id" binding:"required,max=100"`
	RazorpayPaymentID string              `json:"razorpay_payment_id" binding:"required,max=100"`
	RazorpaySignature string              `json:"razorpay_signature" binding:"required,max=200"`
	OrderData         *orders.CheckoutReq `json:"orderData" binding:"required"`
}

type verified struct {
	OrderID       string      `json:"orderId"`
	PaymentStatus string      `json:"paymentStatus"`
	Order         order.Order `json:"order"`
}

func (h *Handler) Verify(c *gin.Context) {
	var req verifyReq
	if !httpx.BindJSON(c, &req) {
		return
	}
	if !Verify(h.keySecret, CheckoutPayload(req.RazorpayOrderID, req.RazorpayPaymentID), req.RazorpaySignature) {
		h.log.Warn("payment signature mismatch", "razorpay_order_id", req.RazorpayOrderID)
		httpx.Fail(c, http.StatusBadRequest, "Invalid signature - payment verification failed", nil)
		return
	}
	if h.gateway == nil {
		httpx.Fail(c, http.StatusInternalServerError, ErrNotConfigured.Error(), nil)
		return
	}
	gwOrder, err := h.gateway.FetchOrder(c.Request.Context(), req.RazorpayOrderID)
	if err != nil {
		h.log.Error("razorpay fetch order failed", "err", err, "razorpay_order_id", req.RazorpayOrderID)
		httpx.Fail(c, http.StatusBadGateway, "Failed to confirm payment with the gateway", nil)
		return
	}
	if gwOrder.Amount <= 0 {
		httpx.Fail(c, http.StatusBadRequest, "Payment amount does not match the order total", nil)
		return
	}

	in := req.OrderData.Input(order.MethodRazorpay)
	in.PaymentStatus = order.PaymentPaid
	in.PaymentID = req.RazorpayPaymentID
	in.RazorpayOrderID = req.RazorpayOrderID
	in.AmountPaise = gwOrder.Amount
	o, err := h.orders.Place(c.Request.Context(), auth.UserID(c), in)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	httpx.OK(c, "Payment verified and order created", verified{
		OrderID:       o.OrderNumber,
		PaymentStatus: o.PaymentStatus,
		Order:         o,
	})
}

type webhookEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID      string `json:"id"`
				OrderID string `json:"order_id"`
				Status  string `json:"status"`
				Amount  int64  `json:"amount"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// Webhook must see the raw body: the signature covers the exact bytes sent.
func (h *Handler) Webhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		httpx.Fail(c, http.StatusBadRequest, "Unreadable webhook body", nil)
		return
	}
	if !Verify(h.webhookSecret, body, c.GetHeader("X-Razorpay-Signature")) {
		httpx.Fail(c, http.StatusBadRequest, "Invalid webhook signature", nil)
		return
	}
	var ev webhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		httpx.Fail(c, http.StatusBadRequest, "Invalid webhook payload", nil)
		return
	}

	entity := ev.Payload.Payment.Entity
	captured := ev.Event == "payment.captured" || (ev.Event == "" && entity.Status == "captured")
	if captured && entity.OrderID != "" {
		o, err := h.orders.MarkPaid(c.Request.Context(), strings.TrimSpace(entity.OrderID), entity.ID, entity.Amount)
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			// verify may not have created the order yet
			h.log.Info("webhook for unknown razorpay order", "razorpay_order_id", entity.OrderID)
		case errors.Is(err, apperr.ErrInvalid):
			// acknowledged so the gateway stops retrying; the order stays unpaid
			h.log.Warn("webhook capture ignored", "razorpay_order_id", entity.OrderID, "payment_id", entity.ID, "error", err)
		case err != nil:
			httpx.Error(c, err)
			return
		default:
			h.log.Info("payment captured", "order", o.OrderNumber, "payment_id", entity.ID)
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) Routes(api *gin.RouterGroup, authed gin.HandlerFunc) {
	g := api.Group("/payments")
	g.POST("/create-order", authed, h.CreateOrder)
	g.POST("/verify", authed, h.Verify)
	g.POST("/webhook", h.Webhook)
}

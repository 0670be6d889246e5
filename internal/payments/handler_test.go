package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/apperr"
	"storefront/internal/auth"
	"storefront/internal/domain/order"
	"storefront/internal/httpx"
	"storefront/internal/orders"
)

func init() {
	gin.SetMode(gin.TestMode)
	httpx.RegisterValidators()
}

const (
	keySecret     = "rzp_test_secret"
	webhookSecret = "whsec_test"
)

// orderTotal is the gateway amount the fakes agree on, in paise.
const orderTotal = 129950

type fakeGateway struct {
	amount  int64
	receipt string
	fetched []string
	fetchFn func(id string) (GatewayOrder, error)
}

func (g *fakeGateway) CreateOrder(_ context.Context, paise int64, currency, receipt string) (GatewayOrder, error) {
	g.amount, g.receipt = paise, receipt
	return GatewayOrder{ID: "order_Q1", Entity: "order", Amount: paise, Currency: currency, Receipt: receipt, Status: "created"}, nil
}

func (g *fakeGateway) FetchOrder(_ context.Context, id string) (GatewayOrder, error) {
	g.fetched = append(g.fetched, id)
	if g.fetchFn != nil {
		return g.fetchFn(id)
	}
	return GatewayOrder{ID: id, Entity: "order", Amount: orderTotal, Currency: "INR", Status: "paid"}, nil
}

// fakeOrders binds each gateway order to at most one order, like the
// unique index on orders.razorpay_order_id.
type fakeOrders struct {
	mu     sync.Mutex
	placed []orders.PlaceInput
	paid   map[string]string
}

func (f *fakeOrders) Place(_ context.Context, userID int64, in orders.PlaceInput) (order.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.placed {
		if p.RazorpayOrderID == in.RazorpayOrderID {
			return order.Order{}, apperr.Conflict("Payment already processed")
		}
	}
	if in.AmountPaise != orderTotal {
		return order.Order{}, apperr.Invalid("Payment amount does not match the order total")
	}
	f.placed = append(f.placed, in)
	return order.Order{
		ID:              1,
		OrderNumber:     "9F2C11AB",
		UserID:          userID,
		PaymentMethod:   in.PaymentMethod,
		PaymentStatus:   in.PaymentStatus,
		PaymentID:       in.PaymentID,
		RazorpayOrderID: in.RazorpayOrderID,
		OrderStatus:     order.StatusPending,
	}, nil
}

func (f *fakeOrders) MarkPaid(_ context.Context, rzpOrderID, paymentID string, amountPaise int64) (order.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rzpOrderID != "order_Q1" {
		return order.Order{}, apperr.NotFound("Order")
	}
	if amountPaise != orderTotal {
		return order.Order{}, apperr.Invalid("Captured amount does not match order total")
	}
	f.paid[rzpOrderID] = paymentID
	return order.Order{OrderNumber: "9F2C11AB", PaymentStatus: order.PaymentPaid}, nil
}

func newRouter(gw Gateway, secret string, fo *fakeOrders) *gin.Engine {
	r := gin.New()
	authed := func(c *gin.Context) { c.Set(auth.CtxUserIDKey, int64(7)) }
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	NewHandler(gw, secret, webhookSecret, fo, log).Routes(r.Group("/api"), authed)
	return r
}

func post(t *testing.T, r *gin.Engine, path string, body []byte, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestSignature(t *testing.T) {
	sig := Sign(keySecret, CheckoutPayload("order_Q1", "pay_Z9"))
	assert.Len(t, sig, 64)
	assert.True(t, Verify(keySecret, CheckoutPayload("order_Q1", "pay_Z9"), sig))
	assert.False(t, Verify(keySecret, CheckoutPayload("order_Q1", "pay_Z8"), sig))
	assert.False(t, Verify("", CheckoutPayload("order_Q1", "pay_Z9"), sig))
	assert.Equal(t, int64(49950), order.ToPaise(decimal.RequireFromString("499.499")))
}

func TestCreateOrder(t *testing.T) {
	gw := &fakeGateway{}
	r := newRouter(gw, keySecret, &fakeOrders{})

	w := post(t, r, "/api/payments/create-order", mustJSON(t, map[string]any{"amount": 1299.5, "currency": "INR"}), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(129950), gw.amount)
	assert.Contains(t, gw.receipt, "rcpt_")
	assert.Contains(t, w.Body.String(), `"id":"order_Q1"`)

	w = post(t, r, "/api/payments/create-order", mustJSON(t, map[string]any{"amount": 0.5, "currency": "INR"}), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = post(t, r, "/api/payments/create-order", mustJSON(t, map[string]any{"amount": 10, "currency": "USD"}), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	unconfigured := newRouter(nil, "", &fakeOrders{})
	w = post(t, unconfigured, "/api/payments/create-order", mustJSON(t, map[string]any{"amount": 10, "currency": "INR"}), nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Razorpay credentials are not configured")
}

func verifyBody(t *testing.T, signature string) []byte {
	return mustJSON(t, map[string]any{
		"razorpay_order_id":   "order_Q1",
		"razorpay_payment_id": "pay_Z9",
		"razorpay_signature":  signature,
		"orderData": map[string]any{
			"shippingAddress": map[string]any{
				"fullName": "Meera Iyer", "phone": "9876543210", "address": "12 MG Road, Indiranagar",
				"city": "Bengaluru", "state": "Karnataka", "pincode": "560038",
			},
			"couponCode": "welcome10",
		},
	})
}

func TestVerifyRejectsBadSignature(t *testing.T) {
	fo := &fakeOrders{}
	r := newRouter(&fakeGateway{}, keySecret, fo)

	w := post(t, r, "/api/payments/verify", verifyBody(t, "deadbeef"), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid signature - payment verification failed")
	assert.Empty(t, fo.placed)
}

func TestVerifyPlacesPaidOrder(t *testing.T) {
	fo := &fakeOrders{}
	r := newRouter(&fakeGateway{}, keySecret, fo)

	sig := Sign(keySecret, CheckoutPayload("order_Q1", "pay_Z9"))
	w := post(t, r, "/api/payments/verify", verifyBody(t, sig), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	require.Len(t, fo.placed, 1)
	in := fo.placed[0]
	assert.Equal(t, order.MethodRazorpay, in.PaymentMethod)
	assert.Equal(t, order.PaymentPaid, in.PaymentStatus)
	assert.Equal(t, "pay_Z9", in.PaymentID)
	assert.Equal(t, "order_Q1", in.RazorpayOrderID)
	assert.Equal(t, int64(orderTotal), in.AmountPaise, "amount comes from the gateway, not the client")
	assert.Equal(t, "India", in.ShippingAddress.Country)

	var env struct {
		Message string   `json:"message"`
		Data    verified `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, "Payment verified and order created", env.Message)
	assert.Equal(t, "9F2C11AB", env.Data.OrderID)
	assert.Equal(t, order.PaymentPaid, env.Data.PaymentStatus)
}

func TestVerifyReplayConflicts(t *testing.T) {
	fo := &fakeOrders{}
	r := newRouter(&fakeGateway{}, keySecret, fo)
	body := verifyBody(t, Sign(keySecret, CheckoutPayload("order_Q1", "pay_Z9")))

	w := post(t, r, "/api/payments/verify", body, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = post(t, r, "/api/payments/verify", body, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "Payment already processed")
	assert.Len(t, fo.placed, 1)
}

func TestVerifyChecksGatewayOrder(t *testing.T) {
	body := verifyBody(t, Sign(keySecret, CheckoutPayload("order_Q1", "pay_Z9")))

	short := &fakeGateway{fetchFn: func(id string) (GatewayOrder, error) {
		return GatewayOrder{ID: id, Amount: 100, Currency: "INR"}, nil
	}}
	fo := &fakeOrders{}
	w := post(t, newRouter(short, keySecret, fo), "/api/payments/verify", body, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "does not match the order total")
	assert.Equal(t, []string{"order_Q1"}, short.fetched)
	assert.Empty(t, fo.placed)

	down := &fakeGateway{fetchFn: func(string) (GatewayOrder, error) {
		return GatewayOrder{}, errors.New("gateway timeout")
	}}
	w = post(t, newRouter(down, keySecret, fo), "/api/payments/verify", body, nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Empty(t, fo.placed)

	w = post(t, newRouter(nil, keySecret, fo), "/api/payments/verify", body, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Empty(t, fo.placed)
}

func TestVerifyRequiresOrderData(t *testing.T) {
	r := newRouter(&fakeGateway{}, keySecret, &fakeOrders{})
	body := mustJSON(t, map[string]any{
		"razorpay_order_id":   "order_Q1",
		"razorpay_payment_id": "pay_Z9",
		"razorpay_signature":  Sign(keySecret, CheckoutPayload("order_Q1", "pay_Z9")),
	})
	w := post(t, r, "/api/payments/verify", body, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "orderData")
}

func TestWebhook(t *testing.T) {
	fo := &fakeOrders{paid: map[string]string{}}
	r := newRouter(&fakeGateway{}, keySecret, fo)

	short := []byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_Z9","order_id":"order_Q1","status":"captured","amount":100}}}}`)
	w := post(t, r, "/api/payments/webhook", short, map[string]string{"X-Razorpay-Signature": Sign(webhookSecret, short)})
	assert.Equal(t, http.StatusOK, w.Code, "mismatched captures are acknowledged")
	assert.Empty(t, fo.paid, "but never mark the order paid")

	body := []byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_Z9","order_id":"order_Q1","status":"captured","amount":129950}}}}`)

	w = post(t, r, "/api/payments/webhook", body, map[string]string{"X-Razorpay-Signature": Sign(keySecret, body)})
	assert.Equal(t, http.StatusBadRequest, w.Code, "signed with the wrong secret")
	assert.Empty(t, fo.paid)

	w = post(t, r, "/api/payments/webhook", body, map[string]string{"X-Razorpay-Signature": Sign(webhookSecret, body)})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	assert.Equal(t, "pay_Z9", fo.paid["order_Q1"])

	unknown := []byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_X","order_id":"order_nope","status":"captured"}}}}`)
	w = post(t, r, "/api/payments/webhook", unknown, map[string]string{"X-Razorpay-Signature": Sign(webhookSecret, unknown)})
	assert.Equal(t, http.StatusOK, w.Code)

	other := []byte(`{"event":"payment.failed","payload":{"payment":{"entity":{"id":"pay_Y","order_id":"order_Q1","status":"failed"}}}}`)
	w = post(t, r, "/api/payments/webhook", other, map[string]string{"X-Razorpay-Signature": Sign(webhookSecret, other)})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pay_Z9", fo.paid["order_Q1"])
}

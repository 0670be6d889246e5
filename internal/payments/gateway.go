// Package payments talks to Razorpay: it opens gateway orders, verifies the
// checkout signature before placing the order, and applies captured-payment
// webhooks.
package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	razorpay "github.com/razorpay/razorpay-go"
)

var ErrNotConfigured = errors.New("Razorpay credentials are not configured")

// GatewayOrder is the subset of the Razorpay order entity the storefront
// hands back to the checkout widget.
type GatewayOrder struct {
	ID       string `json:"id"`
	Entity   string `json:"entity"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
	KeyID    string `json:"keyId"`
}

type Gateway interface {
	CreateOrder(ctx context.Context, amountPaise int64, currency, receipt string) (GatewayOrder, error)
	FetchOrder(ctx context.Context, id string) (GatewayOrder, error)
}

type Razorpay struct {
	client *razorpay.Client
	keyID  string
}

// NewRazorpay returns nil when either credential is missing so callers can
// answer with ErrNotConfigured instead of failing at the gateway.
func NewRazorpay(keyID, keySecret string) *Razorpay {
	if keyID == "" || keySecret == "" {
		return nil
	}
	return &Razorpay{client: razorpay.NewClient(keyID, keySecret), keyID: keyID}
}

func (r *Razorpay) CreateOrder(ctx context.Context, amountPaise int64, currency, receipt string) (GatewayOrder, error) {
	if err := ctx.Err(); err != nil {
		return GatewayOrder{}, err
	}
	body, err := r.client.Order.Create(map[string]interface{}{
		"amount":   amountPaise,
		"currency": currency,
		"receipt":  receipt,
	}, nil)
	if err != nil {
		return GatewayOrder{}, fmt.Errorf("razorpay create order: %w", err)
	}
	o := r.decode(body)
	o.Amount, o.Currency, o.Receipt = amountPaise, currency, receipt
	if o.ID == "" {
		return GatewayOrder{}, errors.New("razorpay create order: response has no id")
	}
	return o, nil
}

// FetchOrder reads the order back from the gateway, the authority on the
// amount the customer was charged.
func (r *Razorpay) FetchOrder(ctx context.Context, id string) (GatewayOrder, error) {
	if err := ctx.Err(); err != nil {
		return GatewayOrder{}, err
	}
	body, err := r.client.Order.Fetch(id, nil, nil)
	if err != nil {
		return GatewayOrder{}, fmt.Errorf("razorpay fetch order %s: %w", id, err)
	}
	o := r.decode(body)
	if o.ID == "" {
		return GatewayOrder{}, fmt.Errorf("razorpay fetch order %s: response has no id", id)
	}
	return o, nil
}

func (r *Razorpay) decode(body map[string]interface{}) GatewayOrder {
	o := GatewayOrder{KeyID: r.keyID}
	o.ID, _ = body["id"].(string)
	o.Entity, _ = body["entity"].(string)
	o.Currency, _ = body["currency"].(string)
	o.Receipt, _ = body["receipt"].(string)
	o.Status, _ = body["status"].(string)
	o.Amount = paiseField(body["amount"])
	return o
}

// paiseField reads an integer amount out of a decoded JSON body.
func paiseField(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case json.Number:
		i, _ := n.Int64()
		return i
	case int64:
		return n
	case int:
		return int64(n)
	}
	return 0
}

// Sign returns the hex HMAC-SHA256 of payload under secret.
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify compares signature with the expected one in constant time.
func Verify(secret string, payload []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	return hmac.Equal([]byte(Sign(secret, payload)), []byte(signature))
}

// CheckoutPayload is what the checkout signature covers.
func CheckoutPayload(orderID, paymentID string) []byte {
	return []byte(orderID + "|" + paymentID)
}

package order

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	StatusPending    = "pending"
	StatusConfirmed  = "confirmed"
	StatusProcessing = "processing"
	StatusShipped    = "shipped"
	StatusDelivered  = "delivered"
	StatusCancelled  = "cancelled"
	StatusReturned   = "returned"
)

const (
	PaymentPending  = "pending"
	PaymentPaid     = "paid"
	PaymentFailed   = "failed"
	PaymentRefunded = "refunded"
)

const (
	MethodRazorpay = "razorpay"
	MethodCOD      = "cod"
)

var Statuses = []string{
	StatusPending, StatusConfirmed, StatusProcessing, StatusShipped,
	StatusDelivered, StatusCancelled, StatusReturned,
}

var PaymentStatuses = []string{PaymentPending, PaymentPaid, PaymentFailed, PaymentRefunded}

// Cancellable reports whether a customer may still cancel.
func Cancellable(status string) bool {
	return status == StatusPending || status == StatusConfirmed
}

// ToPaise converts rupees to the integer minor unit the gateway charges in.
func ToPaise(rupees decimal.Decimal) int64 {
	return rupees.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// Final statuses cannot be left once reached.
func Final(status string) bool {
	return status == StatusCancelled || status == StatusReturned
}

type Address struct {
	FullName string `json:"fullName"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
	City     string `json:"city"`
	State    string `json:"state"`
	Pincode  string `json:"pincode"`
	Country  string `json:"country"`
}

type Item struct {
	ProductID     int64            `json:"productId"`
	Name          string           `json:"name"`
	Quantity      int              `json:"quantity"`
	Price         decimal.Decimal  `json:"price"`
	OriginalPrice *decimal.Decimal `json:"originalPrice,omitempty"`
	SelectedSize  string           `json:"selectedSize"`
	SelectedColor string           `json:"selectedColor"`
	Image         string           `json:"image"`
}

type StatusChange struct {
	Status    string    `json:"status"`
	Notes     string    `json:"notes,omitempty"`
	UpdatedBy *int64    `json:"updatedBy,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Customer is the user slice joined into admin order views.
type Customer struct {
	ID        int64  `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

type Order struct {
	ID                 int64           `json:"id"`
	OrderNumber        string          `json:"orderId"`
	UserID             int64           `json:"userId"`
	Customer           *Customer       `json:"user,omitempty"`
	Items              []Item          `json:"items"`
	ShippingAddress    Address         `json:"shippingAddress"`
	BillingAddress     Address         `json:"billingAddress"`
	PaymentMethod      string          `json:"paymentMethod"`
	PaymentStatus      string          `json:"paymentStatus"`
	PaymentID          string          `json:"paymentId,omitempty"`
	RazorpayOrderID    string          `json:"razorpayOrderId,omitempty"`
	OrderStatus        string          `json:"orderStatus"`
	StatusHistory      []StatusChange  `json:"statusHistory"`
	TrackingNumber     string          `json:"trackingNumber,omitempty"`
	Subtotal           decimal.Decimal `json:"subtotal"`
	Discount           decimal.Decimal `json:"discount"`
	Tax                decimal.Decimal `json:"tax"`
	Shipping           decimal.Decimal `json:"shipping"`
	Total              decimal.Decimal `json:"total"`
	CouponCode         string          `json:"couponCode,omitempty"`
	EstimatedDelivery  *time.Time      `json:"estimatedDelivery,omitempty"`
	DeliveredAt        *time.Time      `json:"deliveredAt,omitempty"`
	CancelledAt        *time.Time      `json:"cancelledAt,omitempty"`
	CancellationReason string          `json:"cancellationReason,omitempty"`
	Notes              string          `json:"notes,omitempty"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`

	TotalItems   int             `json:"totalItems"`
	TotalSavings decimal.Decimal `json:"totalSavings"`
}

// Fill sets the derived totals from the line items.
func (o *Order) Fill() {
	o.TotalItems = 0
	o.TotalSavings = decimal.Zero
	for _, it := range o.Items {
		o.TotalItems += it.Quantity
		if it.OriginalPrice != nil && it.OriginalPrice.GreaterThan(it.Price) {
			o.TotalSavings = o.TotalSavings.Add(it.OriginalPrice.Sub(it.Price).Mul(decimal.NewFromInt(int64(it.Quantity))))
		}
	}
	if o.Items == nil {
		o.Items = []Item{}
	}
	if o.StatusHistory == nil {
		o.StatusHistory = []StatusChange{}
	}
}

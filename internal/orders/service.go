package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"storefront/internal/apperr"
	"storefront/internal/domain/order"
	"storefront/internal/mail"
	"storefront/internal/util"
)

// CartLine is a cart entry joined with the live product it points at.
type CartLine struct {
	ProductID     int64
	Quantity      int
	SelectedSize  string
	SelectedColor string

	Exists        bool
	Name          string
	Price         decimal.Decimal
	OriginalPrice *decimal.Decimal
	Images        []string
	Stock         int
	InStock       bool
	IsActive      bool
}

type ListFilter struct {
	UserID        int64
	Status        string
	PaymentStatus string
	From          *time.Time
	To            *time.Time
	Search        string
	Limit         int
	Offset        int
}

// Transition moves an order from one status to another. Empty strings leave
// the corresponding column untouched.
type Transition struct {
	From               string
	To                 string
	Notes              string
	By                 *int64
	TrackingNumber     string
	CancellationReason string
	PaymentStatus      string
	PaymentID          string
	RestoreStock       bool
	RecordHistory      bool
	At                 time.Time
}

type Store interface {
	CartLines(ctx context.Context, userID int64) ([]CartLine, error)
	Create(ctx context.Context, o *order.Order) error
	Get(ctx context.Context, key string) (order.Order, error)
	ByRazorpayOrder(ctx context.Context, razorpayOrderID string) (order.Order, error)
	List(ctx context.Context, f ListFilter) ([]order.Order, int, error)
	Transition(ctx context.Context, id int64, t Transition) (order.Order, error)
	SetPayment(ctx context.Context, id int64, status, paymentID string) (order.Order, error)
}

type Service struct {
	store     Store
	mailer    mail.Mailer
	composer  mail.Composer
	coupons   map[string]int
	log       *slog.Logger
	now       func() time.Time
	newNumber func() (string, error)
}

func NewService(store Store, mailer mail.Mailer, composer mail.Composer, coupons map[string]int, log *slog.Logger) *Service {
	return &Service{
		store:     store,
		mailer:    mailer,
		composer:  composer,
		coupons:   coupons,
		log:       log,
		now:       time.Now,
		newNumber: func() (string, error) { return util.RandomHex(4) },
	}
}

type PlaceInput struct {
	ShippingAddress order.Address
	BillingAddress  *order.Address
	PaymentMethod   string
	CouponCode      string
	Notes           string

	// set when the gateway already confirmed the payment
	PaymentStatus   string
	PaymentID       string
	RazorpayOrderID string
	// AmountPaise is what the gateway charged; the order total must match it.
	AmountPaise int64
}

// errPaymentProcessed means the gateway order or payment id already belongs
// to an order.
func errPaymentProcessed() error {
	return apperr.Conflict("Payment already processed")
}

type Unavailable struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// Place turns the user's cart into an order.
func (s *Service) Place(ctx context.Context, userID int64, in PlaceInput) (order.Order, error) {
	if in.RazorpayOrderID != "" {
		_, err := s.store.ByRazorpayOrder(ctx, in.RazorpayOrderID)
		switch {
		case err == nil:
			return order.Order{}, errPaymentProcessed()
		case !errors.Is(err, apperr.ErrNotFound):
			return order.Order{}, err
		}
	}

	lines, err := s.store.CartLines(ctx, userID)
	if err != nil {
		return order.Order{}, err
	}
	if len(lines) == 0 {
		return order.Order{}, apperr.Invalid("Cart is empty")
	}

	var (
		items       []order.Item
		unavailable []Unavailable
	)
	for _, l := range lines {
		switch {
		case !l.Exists || !l.IsActive || !l.InStock:
			name := l.Name
			if name == "" {
				name = "Unknown Product"
			}
			unavailable = append(unavailable, Unavailable{Name: name, Reason: "Product is no longer available"})
			continue
		case l.Stock < l.Quantity:
			unavailable = append(unavailable, Unavailable{
				Name:   l.Name,
				Reason: fmt.Sprintf("Only %d items available, but %d requested", l.Stock, l.Quantity),
			})
			continue
		}
		it := order.Item{
			ProductID:     l.ProductID,
			Name:          l.Name,
			Quantity:      l.Quantity,
			Price:         l.Price,
			OriginalPrice: l.OriginalPrice,
			SelectedSize:  l.SelectedSize,
			SelectedColor: l.SelectedColor,
		}
		if len(l.Images) > 0 {
			it.Image = l.Images[0]
		}
		items = append(items, it)
	}
	if len(unavailable) > 0 {
		return order.Order{}, apperr.Invalid("Some items are unavailable").
			WithDetails(map[string]any{"unavailableItems": unavailable})
	}

	code := strings.ToUpper(strings.TrimSpace(in.CouponCode))
	pct := 0
	if code != "" {
		var ok bool
		if pct, ok = s.coupons[code]; !ok {
			return order.Order{}, apperr.Invalid("Invalid coupon code")
		}
	}
	totals := ComputeTotals(items, pct)
	if in.AmountPaise != 0 && order.ToPaise(totals.Total) != in.AmountPaise {
		return order.Order{}, apperr.Invalid("Payment amount does not match the order total")
	}

	now := s.now().UTC()
	eta := now.AddDate(0, 0, 7)
	billing := in.ShippingAddress
	if in.BillingAddress != nil {
		billing = *in.BillingAddress
	}
	paymentStatus := in.PaymentStatus
	if paymentStatus == "" {
		paymentStatus = order.PaymentPending
	}

	o := order.Order{
		UserID:            userID,
		Items:             items,
		ShippingAddress:   in.ShippingAddress,
		BillingAddress:    billing,
		PaymentMethod:     in.PaymentMethod,
		PaymentStatus:     paymentStatus,
		PaymentID:         in.PaymentID,
		RazorpayOrderID:   in.RazorpayOrderID,
		OrderStatus:       order.StatusPending,
		StatusHistory:     []order.StatusChange{{Status: order.StatusPending, Notes: "Order placed", UpdatedAt: now}},
		Subtotal:          totals.Subtotal,
		Discount:          totals.Discount,
		Tax:               totals.Tax,
		Shipping:          totals.Shipping,
		Total:             totals.Total,
		CouponCode:        code,
		EstimatedDelivery: &eta,
		Notes:             strings.TrimSpace(in.Notes),
	}

	for attempt := 0; ; attempt++ {
		if o.OrderNumber, err = s.newNumber(); err != nil {
			return order.Order{}, err
		}
		err = s.store.Create(ctx, &o)
		if !errors.Is(err, errDuplicateNumber) || attempt == 4 {
			break
		}
	}
	if err != nil {
		return order.Order{}, err
	}

	placed, err := s.store.Get(ctx, o.OrderNumber)
	if err != nil {
		s.log.Warn("reload placed order failed", "order", o.OrderNumber, "error", err)
		o.Fill()
		placed = o
	}
	s.log.Info("order placed", "order", placed.OrderNumber, "user_id", userID, "total", placed.Total.String(),
		"payment_method", placed.PaymentMethod)
	if c := placed.Customer; c != nil {
		mail.SendBestEffort(ctx, s.log, s.mailer, s.composer.OrderConfirmation(c.Email, c.FirstName, placed))
	}
	return placed, nil
}

// Get loads an order the caller may see: their own, or any for admins.
func (s *Service) Get(ctx context.Context, key string, userID int64, admin bool) (order.Order, error) {
	o, err := s.store.Get(ctx, key)
	if err != nil {
		return order.Order{}, err
	}
	if !admin && o.UserID != userID {
		return order.Order{}, apperr.Forbidden("Access denied")
	}
	return o, nil
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]order.Order, int, error) {
	return s.store.List(ctx, f)
}

// Cancel lets a customer cancel while the order has not moved past
// confirmation. Stock goes back to the shelf.
func (s *Service) Cancel(ctx context.Context, key string, userID int64, admin bool, reason string) (order.Order, error) {
	o, err := s.Get(ctx, key, userID, admin)
	if err != nil {
		return order.Order{}, err
	}
	if !order.Cancellable(o.OrderStatus) {
		return order.Order{}, apperr.Conflict("Order cannot be cancelled once it is %s", o.OrderStatus)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "Cancelled by customer"
	}
	updated, err := s.store.Transition(ctx, o.ID, Transition{
		From:               o.OrderStatus,
		To:                 order.StatusCancelled,
		Notes:              reason,
		By:                 &userID,
		CancellationReason: reason,
		RestoreStock:       true,
		RecordHistory:      true,
		At:                 s.now().UTC(),
	})
	if err != nil {
		return order.Order{}, err
	}
	s.notifyStatus(ctx, updated)
	return updated, nil
}

type StatusUpdate struct {
	Status         string
	TrackingNumber string
	Notes          string
}

// UpdateStatus is the admin workflow. Cancelled and returned orders are
// closed for good.
func (s *Service) UpdateStatus(ctx context.Context, key string, adminID int64, u StatusUpdate) (order.Order, error) {
	o, err := s.store.Get(ctx, key)
	if err != nil {
		return order.Order{}, err
	}
	if order.Final(o.OrderStatus) {
		return order.Order{}, apperr.Conflict("Cannot change the status of a %s order", o.OrderStatus)
	}
	t := Transition{
		From:           o.OrderStatus,
		To:             u.Status,
		Notes:          strings.TrimSpace(u.Notes),
		By:             &adminID,
		TrackingNumber: strings.TrimSpace(u.TrackingNumber),
		RestoreStock:   u.Status == order.StatusCancelled,
		RecordHistory:  true,
		At:             s.now().UTC(),
	}
	if u.Status == order.StatusCancelled {
		t.CancellationReason = t.Notes
		if t.CancellationReason == "" {
			t.CancellationReason = "Cancelled by admin"
		}
	}
	updated, err := s.store.Transition(ctx, o.ID, t)
	if err != nil {
		return order.Order{}, err
	}
	s.log.Info("order status updated", "order", updated.OrderNumber, "from", o.OrderStatus, "to", u.Status, "admin_id", adminID)
	s.notifyStatus(ctx, updated)
	return updated, nil
}

func (s *Service) UpdatePayment(ctx context.Context, key, status, paymentID string) (order.Order, error) {
	o, err := s.store.Get(ctx, key)
	if err != nil {
		return order.Order{}, err
	}
	return s.store.SetPayment(ctx, o.ID, status, strings.TrimSpace(paymentID))
}

// MarkPaid records a gateway capture of amountPaise. Repeated notifications
// are no-ops; a capture that does not cover the order total is refused.
func (s *Service) MarkPaid(ctx context.Context, razorpayOrderID, paymentID string, amountPaise int64) (order.Order, error) {
	o, err := s.store.ByRazorpayOrder(ctx, razorpayOrderID)
	if err != nil {
		return order.Order{}, err
	}
	if o.PaymentStatus == order.PaymentPaid {
		return o, nil
	}
	if want := order.ToPaise(o.Total); amountPaise != want {
		return order.Order{}, apperr.Invalid("Captured amount %d does not match order total %d", amountPaise, want)
	}
	to := o.OrderStatus
	if order.Cancellable(to) {
		to = order.StatusProcessing
	}
	updated, err := s.store.Transition(ctx, o.ID, Transition{
		From:          o.OrderStatus,
		To:            to,
		Notes:         "Payment captured",
		PaymentStatus: order.PaymentPaid,
		PaymentID:     paymentID,
		RecordHistory: to != o.OrderStatus,
		At:            s.now().UTC(),
	})
	if err != nil {
		return order.Order{}, err
	}
	if c := updated.Customer; c != nil {
		mail.SendBestEffort(ctx, s.log, s.mailer, s.composer.PaymentConfirmation(c.Email, c.FirstName, updated))
	}
	return updated, nil
}

func (s *Service) notifyStatus(ctx context.Context, o order.Order) {
	if c := o.Customer; c != nil {
		mail.SendBestEffort(ctx, s.log, s.mailer, s.composer.OrderStatus(c.Email, c.FirstName, o))
	}
}

type InvoiceLine struct {
	Name          string          `json:"name"`
	SelectedSize  string          `json:"selectedSize,omitempty"`
	SelectedColor string          `json:"selectedColor,omitempty"`
	Quantity      int             `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unitPrice"`
	Amount        decimal.Decimal `json:"amount"`
}

type Invoice struct {
	InvoiceNumber string          `json:"invoiceNumber"`
	InvoiceDate   time.Time       `json:"invoiceDate"`
	Seller        string          `json:"seller"`
	OrderID       string          `json:"orderId"`
	OrderStatus   string          `json:"orderStatus"`
	PaymentMethod string          `json:"paymentMethod"`
	PaymentStatus string          `json:"paymentStatus"`
	BilledTo      order.Address   `json:"billedTo"`
	ShippedTo     order.Address   `json:"shippedTo"`
	Items         []InvoiceLine   `json:"items"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Discount      decimal.Decimal `json:"discount"`
	CouponCode    string          `json:"couponCode,omitempty"`
	Tax           decimal.Decimal `json:"tax"`
	Shipping      decimal.Decimal `json:"shipping"`
	Total         decimal.Decimal `json:"total"`
}

func (s *Service) Invoice(ctx context.Context, key string, userID int64, admin bool) (Invoice, error) {
	o, err := s.Get(ctx, key, userID, admin)
	if err != nil {
		return Invoice{}, err
	}
	inv := Invoice{
		InvoiceNumber: "INV-" + o.OrderNumber,
		InvoiceDate:   o.CreatedAt,
		Seller:        s.composer.Shop,
		OrderID:       o.OrderNumber,
		OrderStatus:   o.OrderStatus,
		PaymentMethod: o.PaymentMethod,
		PaymentStatus: o.PaymentStatus,
		BilledTo:      o.BillingAddress,
		ShippedTo:     o.ShippingAddress,
		Items:         make([]InvoiceLine, 0, len(o.Items)),
		Subtotal:      o.Subtotal,
		Discount:      o.Discount,
		CouponCode:    o.CouponCode,
		Tax:           o.Tax,
		Shipping:      o.Shipping,
		Total:         o.Total,
	}
	for _, it := range o.Items {
		inv.Items = append(inv.Items, InvoiceLine{
			Name:          it.Name,
			SelectedSize:  it.SelectedSize,
			SelectedColor: it.SelectedColor,
			Quantity:      it.Quantity,
			UnitPrice:     it.Price,
			Amount:        it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))),
		})
	}
	return inv, nil
}

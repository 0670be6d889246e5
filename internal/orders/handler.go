package orders

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"storefront/internal/auth"
	"storefront/internal/domain/order"
	"storefront/internal/httpx"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// AddressReq is the shipping/billing address accepted at checkout.
type AddressReq struct {
	FullName string `json:"fullName" binding:"required,min=2,max=100"`
	Phone    string `json:"phone" binding:"required,in_phone"`
	Address  string `json:"address" binding:"required,min=10,max=200"`
	City     string `json:"city" binding:"required,min=2,max=50"`
	State    string `json:"state" binding:"required,min=2,max=50"`
	Pincode  string `json:"pincode" binding:"required,pincode"`
	Country  string `json:"country" binding:"omitempty,max=60"`
}

func (a AddressReq) ToAddress() order.Address {
	country := strings.TrimSpace(a.Country)
	if country == "" {
		country = "India"
	}
	return order.Address{
		FullName: strings.TrimSpace(a.FullName),
		Phone:    strings.TrimSpace(a.Phone),
		Address:  strings.TrimSpace(a.Address),
		City:     strings.TrimSpace(a.City),
		State:    strings.TrimSpace(a.State),
		Pincode:  strings.TrimSpace(a.Pincode),
		Country:  country,
	}
}

// CheckoutReq is shared by direct placement and payment verification.
type CheckoutReq struct {
	ShippingAddress AddressReq  `json:"shippingAddress" binding:"required"`
	BillingAddress  *AddressReq `json:"billingAddress"`
	CouponCode      string      `json:"couponCode" binding:"omitempty,min=3,max=20"`
	Notes           string      `json:"notes" binding:"max=500"`
}

func (r CheckoutReq) Input(method string) PlaceInput {
	in := PlaceInput{
		ShippingAddress: r.ShippingAddress.ToAddress(),
		PaymentMethod:   method,
		CouponCode:      r.CouponCode,
		Notes:           r.Notes,
	}
	if r.BillingAddress != nil {
		b := r.BillingAddress.ToAddress()
		in.BillingAddress = &b
	}
	return in
}

// placeReq carries no gateway ids: a Razorpay order is only bound to a
// gateway order by payment verification.
type placeReq struct {
	CheckoutReq
	PaymentMethod string `json:"paymentMethod" binding:"required,oneof=razorpay cod"`
}

func (h *Handler) Place(c *gin.Context) {
	var req placeReq
	if !httpx.BindJSON(c, &req) {
		return
	}
	o, err := h.svc.Place(c.Request.Context(), auth.UserID(c), req.Input(req.PaymentMethod))
	if err != nil {
		httpx.Error(c, err)
		return
	}
	httpx.Created(c, "Order placed successfully", o)
}

type myOrdersQuery struct {
	httpx.PageQuery
	Status string `form:"status" binding:"omitempty,oneof=pending confirmed processing shipped delivered cancelled returned"`
}

func (h *Handler) Mine(c *gin.Context) {
	var q myOrdersQuery
	if !httpx.BindQuery(c, &q) {
		return
	}
	limit, offset := q.Normalize(10)
	list, total, err := h.svc.List(c.Request.Context(), ListFilter{
		UserID: auth.UserID(c),
		Status: q.Status,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		httpx.Error(c, err)
		return
	}
	httpx.Paginated(c, "Orders retrieved successfully", list, httpx.NewPagination(q.Page, limit, total))
}

func (h *Handler) Get(c *gin.Context) {
	o, err := h.svc.Get(c.Request.Context(), c.Param("orderId"), auth.UserID(c), auth.IsAdmin(c))
	if err != nil {
		httpx.Error(c, err)
		return
	}
	httpx.OK(c, "Order retrieved successfully", o)
}

func (h *Handler) Invoice(c *gin.Context) {
	inv, err := h.svc.Invoice(c.Request.Context(), c.Param("orderId"), auth.UserID(c), auth.IsAdmin(c))
	if err != nil {
		httpx.Error(c, err)
		return
	}
	httpx.OK(c, "Invoice generated successfully", inv)
}

type cancelReq struct {
	Reason string `json:"reason" binding:"max=500"`
}

func (h *Handler) Cancel(c *gin.Context) {
	var req cancelReq
	// the body is optional
	if c.Request.ContentLength != 0 && !httpx.BindJSON(c, &req) {
		return
	}
	o, err := h.svc.Cancel(c.Request.Context(), c.Param("orderId"), auth.UserID(c), auth.IsAdmin(c), req.Reason)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	httpx.OK(c, "Order cancelled successfully", o)
}

type adminListQuery struct {
	httpx.PageQuery
	Status        string `form:"status" binding:"omitempty,oneof=pending confirmed processing shipped delivered cancelled returned"`
	PaymentStatus string `form:"paymentStatus" binding:"omitempty,oneof=pending paid failed refunded"`
	StartDate     string `form:"startDate"`
	EndDate       string `form:"endDate"`
	Search        string `form:"search" binding:"max=100"`
}

// parseDate accepts a calendar date or an RFC 3339 timestamp. A bare end
// date covers the whole day.
func parseDate(v string, end bool) (*time.Time, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, true
	}
	if t, err := time.Parse(time.DateOnly, v); err == nil {
		if end {
			t = t.AddDate(0, 0, 1)
		}
		return &t, true
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return &t, true
	}
	return nil, false
}

func (h *Handler) AdminList(c *gin.Context) {
	var q adminListQuery
	if !httpx.BindQuery(c, &q) {
		return
	}
	from, ok1 := parseDate(q.StartDate, false)
	to, ok2 := parseDate(q.EndDate, true)
	if !ok1 || !ok2 {
		httpx.Fail(c, http.StatusBadRequest, "Validation failed", []httpx.FieldError{
			{Field: "startDate", Message: "dates must be YYYY-MM-DD or RFC 3339"},
		})
		return
	}
	limit, offset := q.Normalize(20)
	list, total, err := h.svc.List(c.Request.Context(), ListFilter{
		Status:        q.Status,
		PaymentStatus: q.PaymentStatus,
		From:          from,
		To:            to,
		Search:        strings.TrimSpace(q.Search),
		Limit:         limit,
		Offset:        offset,
	})
	if err != nil {
		httpx.Error(c, err)
		return
	}
	httpx.Paginated(c, "Orders retrieved successfully", list, httpx.NewPagination(q.Page, limit, total))
}

type statusReq struct {
	Status         string `json:"status" binding:"required,oneof=pending confirmed processing shipped delivered cancelled returned"`
	TrackingNumber string `json:"trackingNumber" binding:"omitempty,min=5,max=50"`
	Notes          string `json:"notes" binding:"max=500"`
}

func (h *Handler) AdminUpdateStatus(c *gin.Context) {
	var req statusReq
	if !httpx.BindJSON(c, &req) {
		return
	}
	o, err := h.svc.UpdateStatus(c.Request.Context(), c.Param("orderId"), auth.UserID(c), StatusUpdate{
		Status:         req.Status,
		TrackingNumber: req.TrackingNumber,
		Notes:          req.Notes,
	})
	if err != nil {
		httpx.Error(c, err)
		return
	}
	httpx.OK(c, "Order status updated successfully", o)
}

type paymentReq struct {
	PaymentStatus string `json:"paymentStatus" binding:"required,oneof=pending paid failed refunded"`
	PaymentID     string `json:"paymentId" binding:"omitempty,min=5,max=100"`
}

func (h *Handler) AdminUpdatePayment(c *gin.Context) {
	var req paymentReq
	if !httpx.BindJSON(c, &req) {
		return
	}
	o, err := h.svc.UpdatePayment(c.Request.Context(), c.Param("orderId"), req.PaymentStatus, req.PaymentID)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	httpx.OK(c, "Payment status updated successfully", o)
}

func (h *Handler) Routes(api *gin.RouterGroup, authed gin.HandlerFunc, admin ...gin.HandlerFunc) {
	g := api.Group("/orders", authed)
	g.POST("", h.Place)
	g.GET("", h.Mine)
	g.GET("/:orderId", h.Get)
	g.GET("/:orderId/invoice", h.Invoice)
	g.PATCH("/:orderId/cancel", h.Cancel)

	a := g.Group("/admin", admin...)
	a.GET("/all", h.AdminList)
	a.PATCH("/:orderId/status", h.AdminUpdateStatus)
	a.PATCH("/:orderId/payment", h.AdminUpdatePayment)
}

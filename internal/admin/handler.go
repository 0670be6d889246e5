package admin

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"storefront/internal/apperr"
	"storefront/internal/auth"
	"storefront/internal/domain/order"
	"storefront/internal/domain/user"
	"storefront/internal/httpx"
	"storefront/internal/orders"
)

type CustomerStats struct {
	OrderCount    int64           `json:"orderCount"`
	TotalSpent    decimal.Decimal `json:"totalSpent"`
	LastOrderDate *time.Time      `json:"lastOrderDate"`
}

type Customer struct {
	user.User
	Stats CustomerStats `json:"stats"`
}

type CustomerFilter struct {
	Search string
	Status string
	Limit  int
	Offset int
}

type Store interface {
	Dashboard(ctx context.Context, now time.Time) (Dashboard, error)
	Analytics(ctx context.Context, w Window) (Analytics, error)
	Customers(ctx context.Context, f CustomerFilter) ([]Customer, int, error)
	Customer(ctx context.Context, id int64) (Customer, error)
	SetActive(ctx context.Context, id int64, active bool) (Customer, error)
}

// OrderLister is the order query the customer drill-down needs.
type OrderLister interface {
	List(ctx context.Context, f orders.ListFilter) ([]order.Order, int, error)
}

type Handler struct {
	store  Store
	orders OrderLister
	now    func() time.Time
}

func NewHandler(store Store, orders OrderLister) *Handler {
	return &Handler{store: store, orders: orders, now: time.Now}
}

func (h *Handler) Dashboard(c *gin.Context) {
	d, err := h.store.Dashboard(c.Request.Context(), h.now())
	if err != nil {
		httpx.Error(c, err)
		return
	}
	d.computeGrowth()
	httpx.OK(c, "Dashboard statistics fetched successfully", d)
}

type analyticsQuery struct {
	Period string `form:"period" binding:"omitempty,oneof=7d 30d 90d 1y"`
}

func (h *Handler) Analytics(c *gin.Context) {
	var q analyticsQuery
	if !httpx.BindQuery(c, &q) {
		return
	}
	if q.Period == "" {
		q.Period = "30d"
	}
	w, _ := WindowFor(q.Period, h.now())
	a, err := h.store.Analytics(c.Request.Context(), w)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	a.computeGrowth()
	httpx.OK(c, "Analytics data fetched successfully", a)
}

type customersQuery struct {
	httpx.PageQuery
	Search string `form:"search" binding:"max=100"`
	Status string `form:"status" binding:"omitempty,oneof=all active inactive"`
}

func (q customersQuery) filter() CustomerFilter {
	return CustomerFilter{Search: strings.TrimSpace(q.Search), Status: q.Status}
}

func (h *Handler) Customers(c *gin.Context) {
	var q customersQuery
	if !httpx.BindQuery(c, &q) {
		return
	}
	f := q.filter()
	f.Limit, f.Offset = q.Normalize(10)
	list, total, err := h.store.Customers(c.Request.Context(), f)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	httpx.Paginated(c, "Customers fetched successfully", list, httpx.NewPagination(q.Page, f.Limit, total))
}

func (h *Handler) CustomerOrders(c *gin.Context) {
	id, ok := httpx.ParamID(c, "id")
	if !ok {
		return
	}
	var q httpx.PageQuery
	if !httpx.BindQuery(c, &q) {
		return
	}
	if _, err := h.store.Customer(c.Request.Context(), id); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			err = apperr.NotFound("Customer")
		}
		httpx.Error(c, err)
		return
	}
	limit, offset := q.Normalize(20)
	list, total, err := h.orders.List(c.Request.Context(), orders.ListFilter{UserID: id, Limit: limit, Offset: offset})
	if err != nil {
		httpx.Error(c, err)
		return
	}
	httpx.Paginated(c, "Customer orders fetched successfully", list, httpx.NewPagination(q.Page, limit, total))
}

type statusReq struct {
	IsActive *bool `json:"isActive" binding:"required"`
}

func (h *Handler) UpdateUserStatus(c *gin.Context) {
	id, ok := httpx.ParamID(c, "id")
	if !ok {
		return
	}
	var req statusReq
	if !httpx.BindJSON(c, &req) {
		return
	}
	if !*req.IsActive && id == auth.UserID(c) {
		httpx.Fail(c, http.StatusBadRequest, "You cannot deactivate your own account", nil)
		return
	}
	cust, err := h.store.SetActive(c.Request.Context(), id, *req.IsActive)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	verb := "deactivated"
	if *req.IsActive {
		verb = "activated"
	}
	httpx.OK(c, "User "+verb+" successfully", cust)
}

func (h *Handler) Routes(api *gin.RouterGroup, admin ...gin.HandlerFunc) {
	g := api.Group("/admin", admin...)
	g.GET("/dashboard", h.Dashboard)
	g.GET("/analytics", h.Analytics)
	g.GET("/customers", h.Customers)
	g.GET("/customers/export", h.ExportCustomers)
	g.GET("/customers/:id/orders", h.CustomerOrders)
	g.PUT("/users/:id/status", h.UpdateUserStatus)
}

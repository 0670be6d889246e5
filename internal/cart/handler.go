package cart

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"storefront/internal/auth"
	"storefront/internal/domain/cart"
	"storefront/internal/httpx"
)

// Line identifies a cart line: the same product in another size or colour
// is a separate line.
type Line struct {
	ProductID     int64
	SelectedSize  string
	SelectedColor string
}

type Store interface {
	Items(ctx context.Context, userID int64) ([]cart.Item, error)
	Count(ctx context.Context, userID int64) (int, error)
	Add(ctx context.Context, userID int64, l Line, qty int) error
	SetQuantity(ctx context.Context, userID int64, l Line, qty int) error
	Remove(ctx context.Context, userID int64, l Line) error
	Clear(ctx context.Context, userID int64) error
}

type Handler struct {
	store Store
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

type lineReq struct {
	ProductID     int64  `json:"productId" binding:"required,gt=0"`
	SelectedSize  string `json:"selectedSize" binding:"max=20"`
	SelectedColor string `json:"selectedColor" binding:"max=30"`
}

func (r lineReq) line() Line {
	return Line{
		ProductID:     r.ProductID,
		SelectedSize:  strings.TrimSpace(r.SelectedSize),
		SelectedColor: strings.TrimSpace(r.SelectedColor),
	}
}

type quantityReq struct {
	ProductID     int64  `json:"productId" binding:"required,gt=0"`
	SelectedSize  string `json:"selectedSize" binding:"max=20"`
	SelectedColor string `json:"selectedColor" binding:"max=30"`
	Quantity      int    `json:"quantity" binding:"required,min=1,max=100"`
}

func (r quantityReq) line() Line {
	return lineReq{r.ProductID, r.SelectedSize, r.SelectedColor}.line()
}

func (h *Handler) respond(c *gin.Context, msg string) {
	items, err := h.store.Items(c.Request.Context(), auth.UserID(c))
	if err != nil {
		httpx.Error(c, err)
		return
	}
	httpx.OK(c, msg, cart.New(items))
}

func (h *Handler) Get(c *gin.Context) {
	h.respond(c, "Cart retrieved successfully")
}

func (h *Handler) Count(c *gin.Context) {
	n, err := h.store.Count(c.Request.Context(), auth.UserID(c))
	if err != nil {
		httpx.Error(c, err)
		return
	}
	httpx.OK(c, "Cart count retrieved successfully", gin.H{"count": n})
}

func (h *Handler) Add(c *gin.Context) {
	var req quantityReq
	if !httpx.BindJSON(c, &req) {
		return
	}
	if err := h.store.Add(c.Request.Context(), auth.UserID(c), req.line(), req.Quantity); err != nil {
		httpx.Error(c, err)
		return
	}
	h.respond(c, "Item added to cart")
}

func (h *Handler) Update(c *gin.Context) {
	var req quantityReq
	if !httpx.BindJSON(c, &req) {
		return
	}
	if err := h.store.SetQuantity(c.Request.Context(), auth.UserID(c), req.line(), req.Quantity); err != nil {
		httpx.Error(c, err)
		return
	}
	h.respond(c, "Cart item updated")
}

func (h *Handler) Remove(c *gin.Context) {
	var req lineReq
	if !httpx.BindJSON(c, &req) {
		return
	}
	if err := h.store.Remove(c.Request.Context(), auth.UserID(c), req.line()); err != nil {
		httpx.Error(c, err)
		return
	}
	h.respond(c, "Item removed from cart")
}

func (h *Handler) Clear(c *gin.Context) {
	if err := h.store.Clear(c.Request.Context(), auth.UserID(c)); err != nil {
		httpx.Error(c, err)
		return
	}
	httpx.OK(c, "Cart cleared successfully", cart.New(nil))
}

func (h *Handler) Routes(api *gin.RouterGroup, authed gin.HandlerFunc) {
	g := api.Group("/cart", authed)
	g.GET("", h.Get)
	g.GET("/count", h.Count)
	g.POST("/add", h.Add)
	g.PUT("/update", h.Update)
	g.DELETE("/remove", h.Remove)
	g.DELETE("/clear", h.Clear)
}

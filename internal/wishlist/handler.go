package wishlist

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"storefront/internal/auth"
	"storefront/internal/domain/product"
	"storefront/internal/httpx"
)

type Item struct {
	ProductID int64           `json:"productId"`
	AddedAt   time.Time       `json:"addedAt"`
	Product   product.Summary `json:"product"`
}

type View struct {
	Items []Item `json:"items"`
	Count int    `json:"count"`
}

type Store interface {
	Items(ctx context.Context, userID int64) ([]Item, error)
	Add(ctx context.Context, userID, productID int64) error
	Remove(ctx context.Context, userID, productID int64) error
}

type Handler struct {
	store Store
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

type productReq struct {
	ProductID int64 `json:"productId" binding:"required,gt=0"`
}

func (h *Handler) respond(c *gin.Context, msg string) {
	items, err := h.store.Items(c.Request.Context(), auth.UserID(c))
	if err != nil {
		httpx.Error(c, err)
		return
	}
	httpx.OK(c, msg, View{Items: items, Count: len(items)})
}

func (h *Handler) Get(c *gin.Context) {
	h.respond(c, "Wishlist retrieved successfully")
}

func (h *Handler) Add(c *gin.Context) {
	var req productReq
	if !httpx.BindJSON(c, &req) {
		return
	}
	if err := h.store.Add(c.Request.Context(), auth.UserID(c), req.ProductID); err != nil {
		httpx.Error(c, err)
		return
	}
	h.respond(c, "Item added to wishlist")
}

func (h *Handler) Remove(c *gin.Context) {
	var req productReq
	if !httpx.BindJSON(c, &req) {
		return
	}
	if err := h.store.Remove(c.Request.Context(), auth.UserID(c), req.ProductID); err != nil {
		httpx.Error(c, err)
		return
	}
	h.respond(c, "Item removed from wishlist")
}

func (h *Handler) Routes(api *gin.RouterGroup, authed gin.HandlerFunc) {
	g := api.Group("/wishlist", authed)
	g.GET("", h.Get)
	g.POST("/add", h.Add)
	g.DELETE("/remove", h.Remove)
}

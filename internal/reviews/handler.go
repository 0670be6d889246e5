package reviews

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"storefront/internal/apperr"
	"storefront/internal/auth"
	"storefront/internal/domain/review"
	"storefront/internal/httpx"
)

// Store recomputes the product rating and review count on every write.
type Store interface {
	ByProduct(ctx context.Context, productID int64) ([]review.Review, error)
	Get(ctx context.Context, id int64) (review.Review, error)
	Create(ctx context.Context, productID, userID int64, rating int, comment string) (review.Review, error)
	Update(ctx context.Context, id int64, rating int, comment string) (review.Review, error)
	Delete(ctx context.Context, id int64) error
}

type Handler struct {
	store Store
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

type reviewReq struct {
	Rating  int    `json:"rating" binding:"required,min=1,max=5"`
	Comment string `json:"comment" binding:"max=1000"`
}

func (h *Handler) ByProduct(c *gin.Context) {
	id, ok := httpx.ParamID(c, "productId")
	if !ok {
		return
	}
	list, err := h.store.ByProduct(c.Request.Context(), id)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	httpx.OK(c, "Reviews retrieved successfully", list)
}

func (h *Handler) Create(c *gin.Context) {
	productID, ok := httpx.ParamID(c, "productId")
	if !ok {
		return
	}
	var req reviewReq
	if !httpx.BindJSON(c, &req) {
		return
	}
	rv, err := h.store.Create(c.Request.Context(), productID, auth.UserID(c), req.Rating, strings.TrimSpace(req.Comment))
	if err != nil {
		httpx.Error(c, err)
		return
	}
	httpx.Created(c, "Review added successfully", rv)
}

// owned loads the review and checks the caller wrote it. Admins may delete
// any review but only edit their own.
func (h *Handler) owned(c *gin.Context, allowAdmin bool) (int64, bool) {
	id, ok := httpx.ParamID(c, "id")
	if !ok {
		return 0, false
	}
	rv, err := h.store.Get(c.Request.Context(), id)
	if err != nil {
		httpx.Error(c, err)
		return 0, false
	}
	if rv.UserID != auth.UserID(c) && !(allowAdmin && auth.IsAdmin(c)) {
		httpx.Error(c, apperr.Forbidden("You can only modify your own reviews"))
		return 0, false
	}
	return id, true
}

func (h *Handler) Update(c *gin.Context) {
	id, ok := h.owned(c, false)
	if !ok {
		return
	}
	var req reviewReq
	if !httpx.BindJSON(c, &req) {
		return
	}
	rv, err := h.store.Update(c.Request.Context(), id, req.Rating, strings.TrimSpace(req.Comment))
	if err != nil {
		httpx.Error(c, err)
		return
	}
	httpx.OK(c, "Review updated successfully", rv)
}

func (h *Handler) Delete(c *gin.Context) {
	id, ok := h.owned(c, true)
	if !ok {
		return
	}
	if err := h.store.Delete(c.Request.Context(), id); err != nil {
		httpx.Error(c, err)
		return
	}
	httpx.OK(c, "Review deleted successfully", nil)
}

func (h *Handler) Routes(api *gin.RouterGroup, authed gin.HandlerFunc) {
	g := api.Group("/reviews")
	g.GET("/product/:productId", h.ByProduct)
	g.POST("/product/:productId", authed, h.Create)
	g.PUT("/:id", authed, h.Update)
	g.DELETE("/:id", authed, h.Delete)
}

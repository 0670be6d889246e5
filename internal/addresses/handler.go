package addresses

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"storefront/internal/auth"
	"storefront/internal/domain/user"
	"storefront/internal/httpx"
)

type Input struct {
	FullName  string `json:"fullName" binding:"required,min=2,max=100"`
	Phone     string `json:"phone" binding:"required,in_phone"`
	Address   string `json:"address" binding:"required,min=5,max=300"`
	City      string `json:"city" binding:"required,max=60"`
	State     string `json:"state" binding:"required,max=60"`
	Pincode   string `json:"pincode" binding:"required,pincode"`
	Country   string `json:"country" binding:"omitempty,max=60"`
	IsDefault bool   `json:"isDefault"`
}

type Patch struct {
	FullName  *string `json:"fullName" binding:"omitempty,min=2,max=100"`
	Phone     *string `json:"phone" binding:"omitempty,in_phone"`
	Address   *string `json:"address" binding:"omitempty,min=5,max=300"`
	City      *string `json:"city" binding:"omitempty,max=60"`
	State     *string `json:"state" binding:"omitempty,max=60"`
	Pincode   *string `json:"pincode" binding:"omitempty,pincode"`
	Country   *string `json:"country" binding:"omitempty,max=60"`
	IsDefault *bool   `json:"isDefault"`
}

type Store interface {
	List(ctx context.Context, userID int64) ([]user.Address, error)
	Create(ctx context.Context, userID int64, in Input) error
	Update(ctx context.Context, userID, id int64, p Patch) error
	Delete(ctx context.Context, userID, id int64) error
	SetDefault(ctx context.Context, userID, id int64) error
}

type Handler struct {
	store Store
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

func (h *Handler) List(c *gin.Context) {
	h.respondList(c, "Addresses retrieved successfully", false)
}

func (h *Handler) Create(c *gin.Context) {
	var in Input
	if !httpx.BindJSON(c, &in) {
		return
	}
	in.FullName = strings.TrimSpace(in.FullName)
	in.Address = strings.TrimSpace(in.Address)
	in.City = strings.TrimSpace(in.City)
	in.State = strings.TrimSpace(in.State)
	if in.Country = strings.TrimSpace(in.Country); in.Country == "" {
		in.Country = "India"
	}
	if err := h.store.Create(c.Request.Context(), auth.UserID(c), in); err != nil {
		httpx.Error(c, err)
		return
	}
	h.respondList(c, "Address added successfully", true)
}

func (h *Handler) Update(c *gin.Context) {
	id, ok := httpx.ParamID(c, "addressId")
	if !ok {
		return
	}
	var p Patch
	if !httpx.BindJSON(c, &p) {
		return
	}
	if err := h.store.Update(c.Request.Context(), auth.UserID(c), id, p); err != nil {
		httpx.Error(c, err)
		return
	}
	h.respondList(c, "Address updated successfully", false)
}

func (h *Handler) Delete(c *gin.Context) {
	id, ok := httpx.ParamID(c, "addressId")
	if !ok {
		return
	}
	if err := h.store.Delete(c.Request.Context(), auth.UserID(c), id); err != nil {
		httpx.Error(c, err)
		return
	}
	h.respondList(c, "Address deleted successfully", false)
}

func (h *Handler) SetDefault(c *gin.Context) {
	id, ok := httpx.ParamID(c, "addressId")
	if !ok {
		return
	}
	if err := h.store.SetDefault(c.Request.Context(), auth.UserID(c), id); err != nil {
		httpx.Error(c, err)
		return
	}
	h.respondList(c, "Default address updated successfully", false)
}

func (h *Handler) respondList(c *gin.Context, msg string, created bool) {
	list, err := h.store.List(c.Request.Context(), auth.UserID(c))
	if err != nil {
		httpx.Error(c, err)
		return
	}
	if created {
		httpx.Created(c, msg, list)
		return
	}
	httpx.OK(c, msg, list)
}

func (h *Handler) Routes(api *gin.RouterGroup, authed gin.HandlerFunc) {
	g := api.Group("/addresses", authed)
	g.GET("", h.List)
	g.POST("", h.Create)
	g.PUT("/:addressId", h.Update)
	g.DELETE("/:addressId", h.Delete)
	g.PATCH("/:addressId/default", h.SetDefault)
}

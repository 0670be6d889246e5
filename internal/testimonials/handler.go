// Package testimonials serves the curated customer reviews shown on the home
// page, under /customer-reviews.
package testimonials

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"storefront/internal/domain/testimonial"
	"storefront/internal/httpx"
)

type Filter struct {
	Status    string
	Search    string
	SortBy    string
	Ascending bool
	Limit     int
	Offset    int
}

type Input struct {
	CustomerName string
	Location     string
	Rating       int
	Comment      string
	DisplayOrder int
}

type Patch struct {
	CustomerName *string
	Location     *string
	Rating       *int
	Comment      *string
	IsActive     *bool
	DisplayOrder *int
}

type Store interface {
	Active(ctx context.Context, limit int) ([]testimonial.Testimonial, error)
	List(ctx context.Context, f Filter) ([]testimonial.Testimonial, int, error)
	Get(ctx context.Context, id int64) (testimonial.Testimonial, error)
	Create(ctx context.Context, in Input) (testimonial.Testimonial, error)
	Update(ctx context.Context, id int64, p Patch) (testimonial.Testimonial, error)
	Delete(ctx context.Context, id int64) error
	ToggleStatus(ctx context.Context, id int64) (testimonial.Testimonial, error)
}

type Handler struct {
	store Store
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

type activeQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=50"`
}

func (h *Handler) Active(c *gin.Context) {
	var q activeQuery
	if !httpx.BindQuery(c, &q) {
		return
	}
	if q.Limit == 0 {
		q.Limit = 10
	}
	list, err := h.store.Active(c.Request.Context(), q.Limit)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	httpx.OK(c, "Customer reviews fetched successfully", list)
}

type listQuery struct {
	httpx.PageQuery
	Status    string `form:"status" binding:"omitempty,oneof=all active inactive"`
	Search    string `form:"search" binding:"max=100"`
	SortBy    string `form:"sortBy" binding:"omitempty,oneof=createdAt rating displayOrder customerName"`
	SortOrder string `form:"sortOrder" binding:"omitempty,oneof=asc desc"`
}

func (h *Handler) List(c *gin.Context) {
	var q listQuery
	if !httpx.BindQuery(c, &q) {
		return
	}
	limit, offset := q.Normalize(20)
	list, total, err := h.store.List(c.Request.Context(), Filter{
		Status:    q.Status,
		Search:    strings.TrimSpace(q.Search),
		SortBy:    q.SortBy,
		Ascending: q.SortOrder == "asc",
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		httpx.Error(c, err)
		return
	}
	httpx.Paginated(c, "Customer reviews retrieved successfully", list, httpx.NewPagination(q.Page, limit, total))
}

func (h *Handler) Get(c *gin.Context) {
	id, ok := httpx.ParamID(c, "id")
	if !ok {
		return
	}
	t, err := h.store.Get(c.Request.Context(), id)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	httpx.OK(c, "Customer review retrieved successfully", t)
}

type createReq struct {
	CustomerName string `json:"customerName" binding:"required,min=2,max=100"`
	Location     string `json:"location" binding:"max=100"`
	Rating       int    `json:"rating" binding:"required,min=1,max=5"`
	Comment      string `json:"comment" binding:"required,min=10,max=500"`
	DisplayOrder int    `json:"displayOrder" binding:"min=0"`
}

func (h *Handler) Create(c *gin.Context) {
	var req createReq
	if !httpx.BindJSON(c, &req) {
		return
	}
	t, err := h.store.Create(c.Request.Context(), Input{
		CustomerName: strings.TrimSpace(req.CustomerName),
		Location:     strings.TrimSpace(req.Location),
		Rating:       req.Rating,
		Comment:      strings.TrimSpace(req.Comment),
		DisplayOrder: req.DisplayOrder,
	})
	if err != nil {
		httpx.Error(c, err)
		return
	}
	httpx.Created(c, "Customer review created successfully", t)
}

type updateReq struct {
	CustomerName *string `json:"customerName" binding:"omitempty,min=2,max=100"`
	Location     *string `json:"location" binding:"omitempty,max=100"`
	Rating       *int    `json:"rating" binding:"omitempty,min=1,max=5"`
	Comment      *string `json:"comment" binding:"omitempty,min=10,max=500"`
	IsActive     *bool   `json:"isActive"`
	DisplayOrder *int    `json:"displayOrder" binding:"omitempty,min=0"`
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

func (h *Handler) Update(c *gin.Context) {
	id, ok := httpx.ParamID(c, "id")
	if !ok {
		return
	}
	var req updateReq
	if !httpx.BindJSON(c, &req) {
		return
	}
	t, err := h.store.Update(c.Request.Context(), id, Patch{
		CustomerName: trimmed(req.CustomerName),
		Location:     trimmed(req.Location),
		Rating:       req.Rating,
		Comment:      trimmed(req.Comment),
		IsActive:     req.IsActive,
		DisplayOrder: req.DisplayOrder,
	})
	if err != nil {
		httpx.Error(c, err)
		return
	}
	httpx.OK(c, "Customer review updated successfully", t)
}

func (h *Handler) Delete(c *gin.Context) {
	id, ok := httpx.ParamID(c, "id")
	if !ok {
		return
	}
	if err := h.store.Delete(c.Request.Context(), id); err != nil {
		httpx.Error(c, err)
		return
	}
	httpx.OK(c, "Customer review deleted successfully", nil)
}

func (h *Handler) ToggleStatus(c *gin.Context) {
	id, ok := httpx.ParamID(c, "id")
	if !ok {
		return
	}
	t, err := h.store.ToggleStatus(c.Request.Context(), id)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	msg := "Customer review deactivated successfully"
	if t.IsActive {
		msg = "Customer review activated successfully"
	}
	httpx.OK(c, msg, t)
}

func (h *Handler) Routes(api *gin.RouterGroup, admin ...gin.HandlerFunc) {
	g := api.Group("/customer-reviews")
	g.GET("/active", h.Active)

	a := g.Group("", admin...)
	a.GET("", h.List)
	a.GET("/:id", h.Get)
	a.POST("", h.Create)
	a.PUT("/:id", h.Update)
	a.DELETE("/:id", h.Delete)
	a.PATCH("/:id/toggle-status", h.ToggleStatus)
}

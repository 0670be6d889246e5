package contact

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"storefront/internal/auth"
	"storefront/internal/domain/contact"
	"storefront/internal/httpx"
	"storefront/internal/util"
)

type Store interface {
	Create(ctx context.Context, m contact.Message) (contact.Message, error)
	List(ctx context.Context, status string, limit, offset int) ([]contact.Message, int, error)
	SetStatus(ctx context.Context, id int64, status string) (contact.Message, error)
}

type Handler struct {
	store Store
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

type createReq struct {
	Name    string `json:"name" binding:"required,min=2,max=100"`
	Email   string `json:"email" binding:"required,email,max=254"`
	Phone   string `json:"phone" binding:"omitempty,in_phone"`
	Subject string `json:"subject" binding:"required,min=2,max=150"`
	Message string `json:"message" binding:"required,min=5,max=2000"`
}

// Create accepts anonymous messages; a signed-in sender is linked.
func (h *Handler) Create(c *gin.Context) {
	var req createReq
	if !httpx.BindJSON(c, &req) {
		return
	}
	m := contact.Message{
		Name:      strings.TrimSpace(req.Name),
		Email:     util.NormalizeEmail(req.Email),
		Phone:     strings.TrimSpace(req.Phone),
		Subject:   strings.TrimSpace(req.Subject),
		Message:   strings.TrimSpace(req.Message),
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
	if id := auth.UserID(c); id != 0 {
		m.UserID = &id
	}
	out, err := h.store.Create(c.Request.Context(), m)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	httpx.Created(c, "Message received. We will get back to you soon.", out)
}

type listQuery struct {
	httpx.PageQuery
	Status string `form:"status" binding:"omitempty,oneof=new read responded closed"`
}

func (h *Handler) List(c *gin.Context) {
	var q listQuery
	if !httpx.BindQuery(c, &q) {
		return
	}
	limit, offset := q.Normalize(20)
	list, total, err := h.store.List(c.Request.Context(), q.Status, limit, offset)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	httpx.Paginated(c, "Contact messages fetched", list, httpx.NewPagination(q.Page, limit, total))
}

type statusReq struct {
	Status string `json:"status" binding:"required,oneof=new read responded closed"`
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	id, ok := httpx.ParamID(c, "id")
	if !ok {
		return
	}
	var req statusReq
	if !httpx.BindJSON(c, &req) {
		return
	}
	m, err := h.store.SetStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	httpx.OK(c, "Message status updated successfully", m)
}

func (h *Handler) Routes(api *gin.RouterGroup, optional gin.HandlerFunc, admin ...gin.HandlerFunc) {
	g := api.Group("/contact")
	g.POST("", optional, h.Create)

	a := g.Group("/messages", admin...)
	a.GET("", h.List)
	a.PATCH("/:id/status", h.UpdateStatus)
}

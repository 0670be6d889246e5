package categories

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"storefront/internal/domain/category"
	"storefront/internal/httpx"
	"storefront/internal/util"
)

type SubcategoryReq struct {
	Name        string `json:"name" yaml:"name" binding:"required,max=60"`
	Description string `json:"description" yaml:"description" binding:"max=300"`
}

type CreateCategoryReq struct {
	Name          string           `json:"name" yaml:"name" binding:"required,min=2,max=60"`
	Description   string           `json:"description" yaml:"description" binding:"max=500"`
	Image         string           `json:"image" yaml:"image" binding:"omitempty,http_url"`
	Subcategories []SubcategoryReq `json:"subcategories" yaml:"subcategories" binding:"dive"`
	Featured      bool             `json:"featured" yaml:"featured"`
	SortOrder     int              `json:"sortOrder" yaml:"sortOrder"`
	IsActive      *bool            `json:"isActive" yaml:"isActive"`
}

type UpdateCategoryReq struct {
	Name          *string           `json:"name" binding:"omitempty,min=2,max=60"`
	Description   *string           `json:"description" binding:"omitempty,max=500"`
	Image         *string           `json:"image" binding:"omitempty,http_url"`
	Subcategories *[]SubcategoryReq `json:"subcategories" binding:"omitempty,dive"`
	Featured      *bool             `json:"featured"`
	SortOrder     *int              `json:"sortOrder"`
	IsActive      *bool             `json:"isActive"`
}

// Input is a validated category ready for the store.
type Input struct {
	Name          string
	Slug          string
	Description   string
	Image         string
	Subcategories []category.Subcategory
	Featured      bool
	SortOrder     int
	IsActive      bool
}

type Patch struct {
	Name          *string
	Slug          *string
	Description   *string
	Image         *string
	Subcategories []category.Subcategory
	Featured      *bool
	SortOrder     *int
	IsActive      *bool
}

type Store interface {
	ListActive(ctx context.Context) ([]category.Category, error)
	ListAll(ctx context.Context) ([]category.Category, error)
	Get(ctx context.Context, idOrSlug string) (category.Category, error)
	Create(ctx context.Context, in Input) (category.Category, error)
	Update(ctx context.Context, id int64, p Patch) (category.Category, error)
	Delete(ctx context.Context, id int64) error
}

type Handler struct {
	store Store
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

func subcategories(in []SubcategoryReq) []category.Subcategory {
	out := make([]category.Subcategory, 0, len(in))
	for _, s := range in {
		name := strings.TrimSpace(s.Name)
		out = append(out, category.Subcategory{Name: name, Slug: util.Slugify(name), Description: strings.TrimSpace(s.Description)})
	}
	return out
}

// ToInput normalizes a create request. Exported for the seed command.
func (req CreateCategoryReq) ToInput() Input {
	name := strings.TrimSpace(req.Name)
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	return Input{
		Name:          name,
		Slug:          util.Slugify(name),
		Description:   strings.TrimSpace(req.Description),
		Image:         req.Image,
		Subcategories: subcategories(req.Subcategories),
		Featured:      req.Featured,
		SortOrder:     req.SortOrder,
		IsActive:      active,
	}
}

func (h *Handler) ListPublic(c *gin.Context) {
	items, err := h.store.ListActive(c.Request.Context())
	if err != nil {
		httpx.Error(c, err)
		return
	}
	httpx.OK(c, "Categories retrieved successfully", items)
}

func (h *Handler) AdminList(c *gin.Context) {
	items, err := h.store.ListAll(c.Request.Context())
	if err != nil {
		httpx.Error(c, err)
		return
	}
	httpx.OK(c, "Categories retrieved successfully", items)
}

func (h *Handler) Get(c *gin.Context) {
	cat, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		httpx.Error(c, err)
		return
	}
	httpx.OK(c, "Category retrieved successfully", cat)
}

func (h *Handler) AdminCreate(c *gin.Context) {
	var req CreateCategoryReq
	if !httpx.BindJSON(c, &req) {
		return
	}
	in := req.ToInput()
	if in.Slug == "" {
		httpx.Fail(c, http.StatusBadRequest, "Validation failed", []httpx.FieldError{{Field: "name", Message: "must contain letters or digits"}})
		return
	}
	created, err := h.store.Create(c.Request.Context(), in)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	httpx.Created(c, "Category created successfully", created)
}

func (h *Handler) AdminUpdate(c *gin.Context) {
	id, ok := httpx.ParamID(c, "id")
	if !ok {
		return
	}
	var req UpdateCategoryReq
	if !httpx.BindJSON(c, &req) {
		return
	}
	p := Patch{
		Description: req.Description,
		Image:       req.Image,
		Featured:    req.Featured,
		SortOrder:   req.SortOrder,
		IsActive:    req.IsActive,
	}
	// keep slug synced with name
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		slug := util.Slugify(name)
		p.Name, p.Slug = &name, &slug
	}
	if req.Subcategories != nil {
		p.Subcategories = subcategories(*req.Subcategories)
	}
	updated, err := h.store.Update(c.Request.Context(), id, p)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	httpx.OK(c, "Category updated successfully", updated)
}

func (h *Handler) AdminDelete(c *gin.Context) {
	id, ok := httpx.ParamID(c, "id")
	if !ok {
		return
	}
	if err := h.store.Delete(c.Request.Context(), id); err != nil {
		httpx.Error(c, err)
		return
	}
	httpx.OK(c, "Category deleted successfully", nil)
}

func (h *Handler) Routes(api *gin.RouterGroup, admin ...gin.HandlerFunc) {
	g := api.Group("/categories")
	g.GET("", h.ListPublic)
	g.GET("/:id", h.Get)

	a := g.Group("", admin...)
	a.GET("/admin/all", h.AdminList)
	a.POST("", h.AdminCreate)
	a.PUT("/:id", h.AdminUpdate)
	a.DELETE("/:id", h.AdminDelete)
}

package products

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"storefront/internal/auth"
	"storefront/internal/domain/product"
	"storefront/internal/httpx"
	"storefront/internal/util"
)

// Filter selects products for List. Zero values mean "no constraint".
type Filter struct {
	CategoryID      int64
	CategorySlug    string
	Subcategory     string
	MinPrice        *decimal.Decimal
	MaxPrice        *decimal.Decimal
	Query           string
	InStock         *bool
	Featured        *bool
	IsNew           *bool
	Active          *bool
	IncludeInactive bool
	Sort            string
	Limit           int
	Offset          int
}

type Input struct {
	Name          string
	Description   string
	Price         decimal.Decimal
	OriginalPrice *decimal.Decimal
	CategoryID    int64
	Subcategory   string
	Material      string
	Colors        []string
	Sizes         []string
	Images        []string
	Tags          []string
	Stock         int
	IsFeatured    bool
	IsNew         bool
	IsActive      bool
}

type Patch struct {
	Name               *string
	Description        *string
	Price              *decimal.Decimal
	OriginalPrice      *decimal.Decimal
	ClearOriginalPrice bool
	CategoryID         *int64
	Subcategory        *string
	Material           *string
	Colors             *[]string
	Sizes              *[]string
	Images             *[]string
	Tags               *[]string
	Stock              *int
	IsFeatured         *bool
	IsNew              *bool
	IsActive           *bool
}

type Store interface {
	List(ctx context.Context, f Filter) ([]product.Product, int, error)
	Get(ctx context.Context, id int64, includeInactive bool) (product.Product, error)
	Create(ctx context.Context, in Input, by int64) (product.Product, error)
	Update(ctx context.Context, id int64, p Patch, by int64) (product.Product, error)
	SoftDelete(ctx context.Context, id, by int64) error
	ToggleStatus(ctx context.Context, id, by int64) (product.Product, error)
	ToggleFeatured(ctx context.Context, id, by int64) (product.Product, error)
}

type Handler struct {
	store Store
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

type listQuery struct {
	httpx.PageQuery
	Category    string   `form:"category"`
	Subcategory string   `form:"subcategory"`
	MinPrice    *float64 `form:"minPrice" binding:"omitempty,gte=0"`
	MaxPrice    *float64 `form:"maxPrice" binding:"omitempty,gte=0"`
	Q           string   `form:"q" binding:"max=100"`
	Search      string   `form:"search" binding:"max=100"`
	InStock     *bool    `form:"inStock"`
	Featured    *bool    `form:"featured"`
	Sort        string   `form:"sort" binding:"omitempty,oneof=price -price createdAt -createdAt rating -rating"`
	Status      string   `form:"status" binding:"omitempty,oneof=all active inactive"`
}

func (q listQuery) filter() Filter {
	f := Filter{
		Subcategory: strings.TrimSpace(q.Subcategory),
		Query:       strings.TrimSpace(q.Q),
		InStock:     q.InStock,
		Featured:    q.Featured,
		Sort:        q.Sort,
	}
	if f.Query == "" {
		f.Query = strings.TrimSpace(q.Search)
	}
	setCategory(&f, q.Category)
	if q.MinPrice != nil {
		d := decimal.NewFromFloat(*q.MinPrice)
		f.MinPrice = &d
	}
	if q.MaxPrice != nil {
		d := decimal.NewFromFloat(*q.MaxPrice)
		f.MaxPrice = &d
	}
	return f
}

// setCategory accepts either a numeric id or a slug.
func setCategory(f *Filter, v string) {
	v = strings.TrimSpace(v)
	if v == "" {
		return
	}
	if id, err := strconv.ParseInt(v, 10, 64); err == nil {
		f.CategoryID = id
		return
	}
	f.CategorySlug = v
}

func (h *Handler) list(c *gin.Context, msg string, f Filter, q listQuery) {
	limit, offset := q.Normalize(12)
	f.Limit, f.Offset = limit, offset
	items, total, err := h.store.List(c.Request.Context(), f)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	httpx.Paginated(c, msg, items, httpx.NewPagination(q.Page, limit, total))
}

func (h *Handler) ListPublic(c *gin.Context) {
	var q listQuery
	if !httpx.BindQuery(c, &q) {
		return
	}
	h.list(c, "Products retrieved successfully", q.filter(), q)
}

func (h *Handler) ByCategory(c *gin.Context) {
	var q listQuery
	if !httpx.BindQuery(c, &q) {
		return
	}
	f := q.filter()
	f.CategoryID, f.CategorySlug = 0, ""
	setCategory(&f, c.Param("categoryId"))
	h.list(c, "Products retrieved successfully", f, q)
}

func (h *Handler) Search(c *gin.Context) {
	var q listQuery
	if !httpx.BindQuery(c, &q) {
		return
	}
	f := q.filter()
	if f.Query == "" {
		httpx.Fail(c, http.StatusBadRequest, "Search query is required", []httpx.FieldError{{Field: "q", Message: "is required"}})
		return
	}
	h.list(c, "Search results retrieved successfully", f, q)
}

func (h *Handler) Featured(c *gin.Context) {
	featured := true
	h.shortList(c, "Featured products retrieved successfully", Filter{Featured: &featured, Sort: "-rating"})
}

func (h *Handler) NewArrivals(c *gin.Context) {
	h.shortList(c, "New arrivals retrieved successfully", Filter{Sort: "-createdAt"})
}

func (h *Handler) shortList(c *gin.Context, msg string, f Filter) {
	f.Limit = 8
	if n, err := strconv.Atoi(c.Query("limit")); err == nil && n > 0 && n <= 50 {
		f.Limit = n
	}
	items, _, err := h.store.List(c.Request.Context(), f)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	httpx.OK(c, msg, items)
}

func (h *Handler) GetPublic(c *gin.Context) {
	id, ok := httpx.ParamID(c, "id")
	if !ok {
		return
	}
	p, err := h.store.Get(c.Request.Context(), id, auth.IsAdmin(c))
	if err != nil {
		httpx.Error(c, err)
		return
	}
	httpx.OK(c, "Product retrieved successfully", p)
}

func (h *Handler) AdminList(c *gin.Context) {
	var q listQuery
	if !httpx.BindQuery(c, &q) {
		return
	}
	f := q.filter()
	f.IncludeInactive = true
	switch q.Status {
	case "active":
		v := true
		f.Active = &v
	case "inactive":
		v := false
		f.Active = &v
	}
	h.list(c, "Products retrieved successfully", f, q)
}

type productReq struct {
	Name          string           `json:"name" binding:"required,min=2,max=200"`
	Description   string           `json:"description" binding:"required,min=10,max=5000"`
	Price         decimal.Decimal  `json:"price"`
	OriginalPrice *decimal.Decimal `json:"originalPrice"`
	CategoryID    int64            `json:"category" binding:"required,gt=0"`
	Subcategory   string           `json:"subcategory" binding:"max=100"`
	Material      string           `json:"material" binding:"max=100"`
	Colors        []string         `json:"colors" binding:"max=30,dive,min=1,max=40"`
	Sizes         []string         `json:"sizes" binding:"max=30,dive,min=1,max=20"`
	Images        []string         `json:"images" binding:"max=10,dive,http_url"`
	Tags          []string         `json:"tags" binding:"max=30,dive,max=40"`
	Stock         *int             `json:"stock" binding:"required,gte=0"`
	IsFeatured    bool             `json:"isFeatured"`
	IsNew         bool             `json:"isNew"`
	IsActive      *bool            `json:"isActive"`
}

type productPatchReq struct {
	Name          *string          `json:"name" binding:"omitempty,min=2,max=200"`
	Description   *string          `json:"description" binding:"omitempty,min=10,max=5000"`
	Price         *decimal.Decimal `json:"price"`
	OriginalPrice *decimal.Decimal `json:"originalPrice"`
	CategoryID    *int64           `json:"category" binding:"omitempty,gt=0"`
	Subcategory   *string          `json:"subcategory" binding:"omitempty,max=100"`
	Material      *string          `json:"material" binding:"omitempty,max=100"`
	Colors        *[]string        `json:"colors" binding:"omitempty,max=30,dive,min=1,max=40"`
	Sizes         *[]string        `json:"sizes" binding:"omitempty,max=30,dive,min=1,max=20"`
	Images        *[]string        `json:"images" binding:"omitempty,max=10,dive,http_url"`
	Tags          *[]string        `json:"tags" binding:"omitempty,max=30,dive,max=40"`
	Stock         *int             `json:"stock" binding:"omitempty,gte=0"`
	IsFeatured    *bool            `json:"isFeatured"`
	IsNew         *bool            `json:"isNew"`
	IsActive      *bool            `json:"isActive"`
}

func priceErrors(price *decimal.Decimal, original *decimal.Decimal) []httpx.FieldError {
	var errs []httpx.FieldError
	if price != nil && !price.IsPositive() {
		errs = append(errs, httpx.FieldError{Field: "price", Message: "must be greater than 0"})
	}
	if original != nil && original.IsNegative() {
		errs = append(errs, httpx.FieldError{Field: "originalPrice", Message: "must be greater than or equal to 0"})
	}
	return errs
}

func (h *Handler) AdminCreate(c *gin.Context) {
	var req productReq
	if !httpx.BindJSON(c, &req) {
		return
	}
	if errs := priceErrors(&req.Price, req.OriginalPrice); errs != nil {
		httpx.Fail(c, http.StatusBadRequest, "Validation failed", errs)
		return
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	original := req.OriginalPrice
	if original != nil && original.IsZero() {
		original = nil
	}
	p, err := h.store.Create(c.Request.Context(), Input{
		Name:          strings.TrimSpace(req.Name),
		Description:   strings.TrimSpace(req.Description),
		Price:         req.Price.Round(2),
		OriginalPrice: original,
		CategoryID:    req.CategoryID,
		Subcategory:   strings.TrimSpace(req.Subcategory),
		Material:      strings.TrimSpace(req.Material),
		Colors:        trimAll(req.Colors),
		Sizes:         trimAll(req.Sizes),
		Images:        trimAll(req.Images),
		Tags:          util.NormalizeTags(req.Tags),
		Stock:         *req.Stock,
		IsFeatured:    req.IsFeatured,
		IsNew:         req.IsNew,
		IsActive:      active,
	}, auth.UserID(c))
	if err != nil {
		httpx.Error(c, err)
		return
	}
	httpx.Created(c, "Product created successfully", p)
}

func (h *Handler) AdminUpdate(c *gin.Context) {
	id, ok := httpx.ParamID(c, "id")
	if !ok {
		return
	}
	var req productPatchReq
	if !httpx.BindJSON(c, &req) {
		return
	}
	if errs := priceErrors(req.Price, req.OriginalPrice); errs != nil {
		httpx.Fail(c, http.StatusBadRequest, "Validation failed", errs)
		return
	}
	p := Patch{
		Name:          trimPtr(req.Name),
		Description:   trimPtr(req.Description),
		Price:         req.Price,
		OriginalPrice: req.OriginalPrice,
		CategoryID:    req.CategoryID,
		Subcategory:   trimPtr(req.Subcategory),
		Material:      trimPtr(req.Material),
		Colors:        trimAllPtr(req.Colors),
		Sizes:         trimAllPtr(req.Sizes),
		Images:        trimAllPtr(req.Images),
		Stock:         req.Stock,
		IsFeatured:    req.IsFeatured,
		IsNew:         req.IsNew,
		IsActive:      req.IsActive,
	}
	// an explicit zero removes the original price
	if req.OriginalPrice != nil && req.OriginalPrice.IsZero() {
		p.OriginalPrice, p.ClearOriginalPrice = nil, true
	}
	if req.Tags != nil {
		tags := util.NormalizeTags(*req.Tags)
		p.Tags = &tags
	}
	updated, err := h.store.Update(c.Request.Context(), id, p, auth.UserID(c))
	if err != nil {
		httpx.Error(c, err)
		return
	}
	httpx.OK(c, "Product updated successfully", updated)
}

func (h *Handler) AdminDelete(c *gin.Context) {
	id, ok := httpx.ParamID(c, "id")
	if !ok {
		return
	}
	if err := h.store.SoftDelete(c.Request.Context(), id, auth.UserID(c)); err != nil {
		httpx.Error(c, err)
		return
	}
	httpx.OK(c, "Product deleted successfully", nil)
}

func (h *Handler) ToggleStatus(c *gin.Context) {
	h.toggle(c, h.store.ToggleStatus, "Product status updated successfully")
}

func (h *Handler) ToggleFeatured(c *gin.Context) {
	h.toggle(c, h.store.ToggleFeatured, "Product featured status updated successfully")
}

func (h *Handler) toggle(c *gin.Context, fn func(context.Context, int64, int64) (product.Product, error), msg string) {
	id, ok := httpx.ParamID(c, "id")
	if !ok {
		return
	}
	p, err := fn(c.Request.Context(), id, auth.UserID(c))
	if err != nil {
		httpx.Error(c, err)
		return
	}
	httpx.OK(c, msg, p)
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func trimAllPtr(in *[]string) *[]string {
	if in == nil {
		return nil
	}
	out := trimAll(*in)
	return &out
}

func trimPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

// Routes registers the catalog. optional resolves the caller when a token is
// sent so admins can read inactive products.
func (h *Handler) Routes(api *gin.RouterGroup, optional gin.HandlerFunc, admin ...gin.HandlerFunc) {
	g := api.Group("/products")
	g.GET("", h.ListPublic)
	g.GET("/featured", h.Featured)
	g.GET("/new-arrivals", h.NewArrivals)
	g.GET("/search", h.Search)
	g.GET("/category/:categoryId", h.ByCategory)
	g.GET("/:id", optional, h.GetPublic)

	a := g.Group("", admin...)
	a.GET("/admin/all", h.AdminList)
	a.POST("", h.AdminCreate)
	a.PUT("/:id", h.AdminUpdate)
	a.DELETE("/:id", h.AdminDelete)
	a.PATCH("/:id/toggle-status", h.ToggleStatus)
	a.PATCH("/:id/toggle-featured", h.ToggleFeatured)

	api.GET("/shop/products", h.ListPublic)
}

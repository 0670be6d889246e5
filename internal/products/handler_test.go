package products

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/apperr"
	"storefront/internal/auth"
	"storefront/internal/domain/product"
	"storefront/internal/httpx"
)

func init() {
	gin.SetMode(gin.TestMode)
	httpx.RegisterValidators()
}

type memStore struct {
	mu         sync.Mutex
	next       int64
	rows       []product.Product
	categories map[int64]string
	lastFilter Filter
}

func newMemStore() *memStore {
	return &memStore{categories: map[int64]string{1: "sarees", 2: "kurtas"}}
}

func (m *memStore) List(_ context.Context, f Filter) ([]product.Product, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastFilter = f
	out := []product.Product{}
	for _, p := range m.rows {
		if !f.IncludeInactive && !p.IsActive {
			continue
		}
		if f.Active != nil && p.IsActive != *f.Active {
			continue
		}
		if f.CategoryID > 0 && p.CategoryID != f.CategoryID {
			continue
		}
		if f.CategorySlug != "" && p.Category.Slug != f.CategorySlug {
			continue
		}
		if f.Featured != nil && p.IsFeatured != *f.Featured {
			continue
		}
		if f.MinPrice != nil && p.Price.LessThan(*f.MinPrice) {
			continue
		}
		if f.MaxPrice != nil && p.Price.GreaterThan(*f.MaxPrice) {
			continue
		}
		if f.Query != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(f.Query)) {
			continue
		}
		out = append(out, p)
	}
	if f.Sort == "price" {
		sort.Slice(out, func(i, j int) bool { return out[i].Price.LessThan(out[j].Price) })
	}
	total := len(out)
	if f.Offset >= len(out) {
		return []product.Product{}, total, nil
	}
	out = out[f.Offset:]
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, total, nil
}

func (m *memStore) Get(_ context.Context, id int64, includeInactive bool) (product.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.rows {
		if p.ID == id && (includeInactive || p.IsActive) {
			return p, nil
		}
	}
	return product.Product{}, apperr.NotFound("Product")
}

func (m *memStore) Create(_ context.Context, in Input, by int64) (product.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	slug, ok := m.categories[in.CategoryID]
	if !ok {
		return product.Product{}, apperr.Invalid("Category not found")
	}
	m.next++
	p := product.Product{
		ID: m.next, Name: in.Name, Description: in.Description, Price: in.Price, OriginalPrice: in.OriginalPrice,
		CategoryID: in.CategoryID, Category: product.CategoryRef{ID: in.CategoryID, Slug: slug},
		Colors: in.Colors, Sizes: in.Sizes, Images: in.Images, Tags: in.Tags, Stock: in.Stock,
		InStock: in.Stock > 0, IsFeatured: in.IsFeatured, IsNew: in.IsNew, IsActive: in.IsActive, CreatedBy: &by,
	}
	p.Fill()
	m.rows = append(m.rows, p)
	return p, nil
}

func (m *memStore) Update(_ context.Context, id int64, p Patch, by int64) (product.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rows {
		r := &m.rows[i]
		if r.ID != id {
			continue
		}
		if p.Name != nil {
			r.Name = *p.Name
		}
		if p.Price != nil {
			r.Price = *p.Price
		}
		if p.ClearOriginalPrice {
			r.OriginalPrice = nil
		} else if p.OriginalPrice != nil {
			r.OriginalPrice = p.OriginalPrice
		}
		if p.Stock != nil {
			r.Stock = *p.Stock
			r.InStock = r.Stock > 0
		}
		if p.Tags != nil {
			r.Tags = *p.Tags
		}
		r.UpdatedBy = &by
		r.Fill()
		return *r, nil
	}
	return product.Product{}, apperr.NotFound("Product")
}

func (m *memStore) SoftDelete(_ context.Context, id, _ int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rows {
		if m.rows[i].ID == id {
			m.rows = append(m.rows[:i], m.rows[i+1:]...)
			return nil
		}
	}
	return apperr.NotFound("Product")
}

func (m *memStore) toggle(id int64, fn func(*product.Product)) (product.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rows {
		if m.rows[i].ID == id {
			fn(&m.rows[i])
			m.rows[i].Fill()
			return m.rows[i], nil
		}
	}
	return product.Product{}, apperr.NotFound("Product")
}

func (m *memStore) ToggleStatus(_ context.Context, id, _ int64) (product.Product, error) {
	return m.toggle(id, func(p *product.Product) { p.IsActive = !p.IsActive })
}

func (m *memStore) ToggleFeatured(_ context.Context, id, _ int64) (product.Product, error) {
	return m.toggle(id, func(p *product.Product) { p.IsFeatured = !p.IsFeatured })
}

func newRouter(store Store) *gin.Engine {
	r := gin.New()
	optional := func(c *gin.Context) {
		if c.GetHeader("X-Admin") == "yes" {
			c.Set(auth.CtxUserIDKey, int64(9))
			c.Set(auth.CtxRoleKey, "admin")
		}
	}
	admin := func(c *gin.Context) {
		if c.GetHeader("X-Admin") != "yes" {
			httpx.Fail(c, http.StatusForbidden, "Access denied. Insufficient permissions.", nil)
			return
		}
		optional(c)
	}
	NewHandler(store).Routes(r.Group("/api"), optional, admin)
	return r
}

type envelope struct {
	Message    string            `json:"message"`
	Data       json.RawMessage   `json:"data"`
	Errors     []httpx.FieldError `json:"errors"`
	Pagination *httpx.Pagination `json:"pagination"`
}

func call(t *testing.T, r *gin.Engine, method, path string, admin bool, body any) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if admin {
		req.Header.Set("X-Admin", "yes")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return w.Code, env
}

func saree(name string, price float64) map[string]any {
	return map[string]any{
		"name":        name,
		"description": "Handwoven silk with zari border",
		"price":       price,
		"category":    1,
		"stock":       5,
		"images":      []string{"https://cdn.example.com/a.jpg"},
		"tags":        []string{" Silk ", "silk", "Festive"},
	}
}

func TestCreateProduct(t *testing.T) {
	store := newMemStore()
	r := newRouter(store)

	code, _ := call(t, r, http.MethodPost, "/api/products", false, saree("Kanjivaram", 4999))
	assert.Equal(t, http.StatusForbidden, code)

	body := saree("Kanjivaram", 4999)
	body["originalPrice"] = 6999
	code, env := call(t, r, http.MethodPost, "/api/products", true, body)
	require.Equal(t, http.StatusCreated, code)
	var p product.Product
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.Equal(t, []string{"silk", "festive"}, p.Tags)
	assert.Equal(t, 29, p.DiscountPercentage)
	assert.True(t, p.IsActive)
	assert.True(t, p.IsAvailable)

	body = saree("Bad", 0)
	code, env = call(t, r, http.MethodPost, "/api/products", true, body)
	assert.Equal(t, http.StatusBadRequest, code)
	require.Len(t, env.Errors, 1)
	assert.Equal(t, "price", env.Errors[0].Field)

	body = saree("Orphan", 100)
	body["category"] = 77
	code, env = call(t, r, http.MethodPost, "/api/products", true, body)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Category not found", env.Message)

	body = saree("Bad image", 100)
	body["images"] = []string{"not a url"}
	code, _ = call(t, r, http.MethodPost, "/api/products", true, body)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestListFiltersAndPagination(t *testing.T) {
	store := newMemStore()
	r := newRouter(store)
	for _, s := range []struct {
		name  string
		price float64
	}{{"Banarasi", 3000}, {"Chanderi", 1500}, {"Tussar", 2200}} {
		code, _ := call(t, r, http.MethodPost, "/api/products", true, saree(s.name, s.price))
		require.Equal(t, http.StatusCreated, code)
	}

	code, env := call(t, r, http.MethodGet, "/api/products?sort=price&limit=2", false, nil)
	require.Equal(t, http.StatusOK, code)
	var items []product.Product
	require.NoError(t, json.Unmarshal(env.Data, &items))
	require.Len(t, items, 2)
	assert.Equal(t, "Chanderi", items[0].Name)
	require.NotNil(t, env.Pagination)
	assert.Equal(t, 3, env.Pagination.Total)
	assert.Equal(t, 2, env.Pagination.Pages)
	assert.True(t, env.Pagination.HasNext)

	_, env = call(t, r, http.MethodGet, "/api/products?minPrice=2000&maxPrice=2500", false, nil)
	require.NoError(t, json.Unmarshal(env.Data, &items))
	require.Len(t, items, 1)
	assert.Equal(t, "Tussar", items[0].Name)

	_, _ = call(t, r, http.MethodGet, "/api/products?category=sarees", false, nil)
	assert.Equal(t, "sarees", store.lastFilter.CategorySlug)
	_, _ = call(t, r, http.MethodGet, "/api/products/category/2", false, nil)
	assert.Equal(t, int64(2), store.lastFilter.CategoryID)

	code, _ = call(t, r, http.MethodGet, "/api/products?sort=name", false, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = call(t, r, http.MethodGet, "/api/products/search?q=tus", false, nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &items))
	assert.Len(t, items, 1)

	code, _ = call(t, r, http.MethodGet, "/api/products/search", false, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = call(t, r, http.MethodGet, "/api/shop/products", false, nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestInactiveProductsAreHidden(t *testing.T) {
	store := newMemStore()
	r := newRouter(store)
	_, _ = call(t, r, http.MethodPost, "/api/products", true, saree("Paithani", 5000))

	code, env := call(t, r, http.MethodPatch, "/api/products/1/toggle-status", true, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"isActive":false`)

	code, _ = call(t, r, http.MethodGet, "/api/products/1", false, nil)
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = call(t, r, http.MethodGet, "/api/products/1", true, nil)
	assert.Equal(t, http.StatusOK, code)

	_, env = call(t, r, http.MethodGet, "/api/products", false, nil)
	assert.Equal(t, 0, env.Pagination.Total)

	_, env = call(t, r, http.MethodGet, "/api/products/admin/all?status=inactive", true, nil)
	assert.Equal(t, 1, env.Pagination.Total)
	assert.NotNil(t, store.lastFilter.Active)
	assert.True(t, store.lastFilter.IncludeInactive)
}

func TestUpdateClearsOriginalPrice(t *testing.T) {
	store := newMemStore()
	r := newRouter(store)
	body := saree("Bandhani", 1200)
	body["originalPrice"] = 1500
	_, _ = call(t, r, http.MethodPost, "/api/products", true, body)

	code, env := call(t, r, http.MethodPut, "/api/products/1", true, map[string]any{"originalPrice": 0, "stock": 0})
	require.Equal(t, http.StatusOK, code)
	var p product.Product
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.Nil(t, p.OriginalPrice)
	assert.Equal(t, 0, p.DiscountPercentage)
	assert.False(t, p.InStock)
	assert.False(t, p.IsAvailable)
	assert.True(t, decimal.NewFromInt(1200).Equal(p.Price))

	code, _ = call(t, r, http.MethodPut, "/api/products/1", true, map[string]any{"price": -5})
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = call(t, r, http.MethodPut, "/api/products/99", true, map[string]any{"name": "Ghost"})
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = call(t, r, http.MethodPut, "/api/products/abc", true, map[string]any{"name": "Ghost"})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestFeaturedAndDelete(t *testing.T) {
	store := newMemStore()
	r := newRouter(store)
	_, _ = call(t, r, http.MethodPost, "/api/products", true, saree("Ikat", 900))
	_, _ = call(t, r, http.MethodPost, "/api/products", true, saree("Jamdani", 1900))

	code, _ := call(t, r, http.MethodPatch, "/api/products/2/toggle-featured", true, nil)
	require.Equal(t, http.StatusOK, code)

	_, env := call(t, r, http.MethodGet, "/api/products/featured", false, nil)
	var items []product.Product
	require.NoError(t, json.Unmarshal(env.Data, &items))
	require.Len(t, items, 1)
	assert.Equal(t, "Jamdani", items[0].Name)
	assert.Equal(t, 8, store.lastFilter.Limit)

	_, _ = call(t, r, http.MethodGet, "/api/products/new-arrivals?limit=3", false, nil)
	assert.Equal(t, 3, store.lastFilter.Limit)
	assert.Equal(t, "-createdAt", store.lastFilter.Sort)

	code, _ = call(t, r, http.MethodDelete, "/api/products/1", true, nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = call(t, r, http.MethodDelete, "/api/products/1", true, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

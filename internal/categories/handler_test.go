package categories

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/apperr"
	"storefront/internal/domain/category"
	"storefront/internal/httpx"
)

func init() {
	gin.SetMode(gin.TestMode)
	httpx.RegisterValidators()
}

type memStore struct {
	mu       sync.Mutex
	next     int64
	rows     []category.Category
	products map[int64]int
}

func (m *memStore) ListActive(context.Context) ([]category.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []category.Category{}
	for _, c := range m.rows {
		if c.IsActive {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memStore) ListAll(context.Context) ([]category.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]category.Category{}, m.rows...), nil
}

func (m *memStore) Get(_ context.Context, key string) (category.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.rows {
		if strconv.FormatInt(c.ID, 10) == key || c.Slug == key {
			return c, nil
		}
	}
	return category.Category{}, apperr.NotFound("Category")
}

func (m *memStore) Create(_ context.Context, in Input) (category.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.rows {
		if c.Name == in.Name || c.Slug == in.Slug {
			return category.Category{}, apperr.Conflict("Category with this name already exists")
		}
	}
	m.next++
	c := category.Category{ID: m.next, Name: in.Name, Slug: in.Slug, Description: in.Description,
		Subcategories: in.Subcategories, SortOrder: in.SortOrder, IsActive: in.IsActive, Featured: in.Featured}
	m.rows = append(m.rows, c)
	return c, nil
}

func (m *memStore) Update(_ context.Context, id int64, p Patch) (category.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rows {
		if m.rows[i].ID != id {
			continue
		}
		if p.Name != nil {
			m.rows[i].Name, m.rows[i].Slug = *p.Name, *p.Slug
		}
		if p.IsActive != nil {
			m.rows[i].IsActive = *p.IsActive
		}
		if p.Subcategories != nil {
			m.rows[i].Subcategories = p.Subcategories
		}
		return m.rows[i], nil
	}
	return category.Category{}, apperr.NotFound("Category")
}

func (m *memStore) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n := m.products[id]; n > 0 {
		return apperr.Conflict("Cannot delete category with %d existing products", n)
	}
	for i := range m.rows {
		if m.rows[i].ID == id {
			m.rows = append(m.rows[:i], m.rows[i+1:]...)
			return nil
		}
	}
	return apperr.NotFound("Category")
}

func newRouter(store Store) *gin.Engine {
	r := gin.New()
	admin := func(c *gin.Context) {
		if c.GetHeader("X-Admin") != "yes" {
			httpx.Fail(c, http.StatusForbidden, "Access denied. Insufficient permissions.", nil)
		}
	}
	NewHandler(store).Routes(r.Group("/api"), admin)
	return r
}

func call(t *testing.T, r *gin.Engine, method, path string, admin bool, body any) (int, json.RawMessage, string) {
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
	var env struct {
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return w.Code, env.Data, env.Message
}

func TestCreateCategory(t *testing.T) {
	store := &memStore{products: map[int64]int{}}
	r := newRouter(store)
	body := map[string]any{
		"name":          "  Men's Ethnic Wear ",
		"subcategories": []map[string]string{{"name": "Kurta Sets"}},
	}

	code, _, _ := call(t, r, http.MethodPost, "/api/categories", false, body)
	assert.Equal(t, http.StatusForbidden, code)

	code, data, _ := call(t, r, http.MethodPost, "/api/categories", true, body)
	require.Equal(t, http.StatusCreated, code)
	var c category.Category
	require.NoError(t, json.Unmarshal(data, &c))
	assert.Equal(t, "Men's Ethnic Wear", c.Name)
	assert.Equal(t, "men-s-ethnic-wear", c.Slug)
	assert.True(t, c.IsActive)
	require.Len(t, c.Subcategories, 1)
	assert.Equal(t, "kurta-sets", c.Subcategories[0].Slug)

	code, _, msg := call(t, r, http.MethodPost, "/api/categories", true, body)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "Category with this name already exists", msg)

	code, _, _ = call(t, r, http.MethodPost, "/api/categories", true, map[string]string{"name": "!!"})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestGetBySlugAndList(t *testing.T) {
	store := &memStore{products: map[int64]int{}}
	r := newRouter(store)
	_, _, _ = call(t, r, http.MethodPost, "/api/categories", true, map[string]any{"name": "Sarees"})
	_, _, _ = call(t, r, http.MethodPost, "/api/categories", true, map[string]any{"name": "Hidden", "isActive": false})

	code, data, _ := call(t, r, http.MethodGet, "/api/categories/sarees", false, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(data), `"slug":"sarees"`)

	code, _, _ = call(t, r, http.MethodGet, "/api/categories/1", false, nil)
	assert.Equal(t, http.StatusOK, code)

	code, _, msg := call(t, r, http.MethodGet, "/api/categories/unknown", false, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Category not found", msg)

	_, data, _ = call(t, r, http.MethodGet, "/api/categories", false, nil)
	var public []category.Category
	require.NoError(t, json.Unmarshal(data, &public))
	assert.Len(t, public, 1)

	_, data, _ = call(t, r, http.MethodGet, "/api/categories/admin/all", true, nil)
	var all []category.Category
	require.NoError(t, json.Unmarshal(data, &all))
	assert.Len(t, all, 2)
}

func TestUpdateAndDelete(t *testing.T) {
	store := &memStore{products: map[int64]int{}}
	r := newRouter(store)
	_, _, _ = call(t, r, http.MethodPost, "/api/categories", true, map[string]any{"name": "Tops"})

	code, data, _ := call(t, r, http.MethodPut, "/api/categories/1", true, map[string]any{"name": "Tops & Tees"})
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(data), `"slug":"tops-tees"`)

	store.products[1] = 3
	code, _, msg := call(t, r, http.MethodDelete, "/api/categories/1", true, nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "Cannot delete category with 3 existing products", msg)

	store.products[1] = 0
	code, _, _ = call(t, r, http.MethodDelete, "/api/categories/1", true, nil)
	assert.Equal(t, http.StatusOK, code)

	code, _, _ = call(t, r, http.MethodDelete, "/api/categories/1", true, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

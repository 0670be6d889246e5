package cart

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/apperr"
	"storefront/internal/auth"
	"storefront/internal/domain/cart"
	"storefront/internal/domain/product"
	"storefront/internal/httpx"
)

func init() {
	gin.SetMode(gin.TestMode)
	httpx.RegisterValidators()
}

type memStore struct {
	mu       sync.Mutex
	next     int64
	lines    map[int64][]cart.Item
	products map[int64]*product.Summary
}

func newMemStore() *memStore {
	return &memStore{
		lines: map[int64][]cart.Item{},
		products: map[int64]*product.Summary{
			1: {ID: 1, Name: "Lehenga", Price: decimal.NewFromInt(2500), Stock: 4, InStock: true, IsActive: true},
			2: {ID: 2, Name: "Dupatta", Price: decimal.RequireFromString("499.50"), Stock: 9, InStock: true, IsActive: true},
			3: {ID: 3, Name: "Retired", Price: decimal.NewFromInt(10), IsActive: false},
		},
	}
}

func (m *memStore) find(userID int64, l Line) int {
	for i, it := range m.lines[userID] {
		if it.ProductID == l.ProductID && it.SelectedSize == l.SelectedSize && it.SelectedColor == l.SelectedColor {
			return i
		}
	}
	return -1
}

func (m *memStore) Items(_ context.Context, userID int64) ([]cart.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []cart.Item{}
	for _, it := range m.lines[userID] {
		it.Product = m.products[it.ProductID]
		out = append(out, it)
	}
	return out, nil
}

func (m *memStore) Count(_ context.Context, userID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, it := range m.lines[userID] {
		n += it.Quantity
	}
	return n, nil
}

func (m *memStore) Add(_ context.Context, userID int64, l Line, qty int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[l.ProductID]
	if !ok {
		return apperr.NotFound("Product")
	}
	if !p.IsActive {
		return apperr.Invalid("Product is not available")
	}
	if i := m.find(userID, l); i >= 0 {
		m.lines[userID][i].Quantity = min(m.lines[userID][i].Quantity+qty, cart.MaxQuantity)
		return nil
	}
	m.next++
	m.lines[userID] = append(m.lines[userID], cart.Item{ID: m.next, ProductID: l.ProductID, Quantity: qty,
		SelectedSize: l.SelectedSize, SelectedColor: l.SelectedColor})
	return nil
}

func (m *memStore) SetQuantity(_ context.Context, userID int64, l Line, qty int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.find(userID, l)
	if i < 0 {
		return apperr.NotFound("Cart item")
	}
	m.lines[userID][i].Quantity = qty
	return nil
}

func (m *memStore) Remove(_ context.Context, userID int64, l Line) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := m.find(userID, l); i >= 0 {
		m.lines[userID] = append(m.lines[userID][:i], m.lines[userID][i+1:]...)
	}
	return nil
}

func (m *memStore) Clear(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.lines, userID)
	return nil
}

func newRouter(store Store) *gin.Engine {
	r := gin.New()
	authed := func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			httpx.Fail(c, http.StatusUnauthorized, "Access token is required", nil)
			return
		}
		c.Set(auth.CtxUserIDKey, int64(7))
	}
	NewHandler(store).Routes(r.Group("/api"), authed)
	return r
}

func call(t *testing.T, r *gin.Engine, method, path string, body any) (int, cart.Cart, string) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer test")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var env struct {
		Message string    `json:"message"`
		Data    cart.Cart `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return w.Code, env.Data, env.Message
}

func TestAddMergesLinesAndCaps(t *testing.T) {
	r := newRouter(newMemStore())

	code, c, msg := call(t, r, http.MethodPost, "/api/cart/add", map[string]any{"productId": 1, "quantity": 2, "selectedSize": " M "})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Item added to cart", msg)
	require.Len(t, c.Items, 1)
	assert.Equal(t, "M", c.Items[0].SelectedSize)

	_, c, _ = call(t, r, http.MethodPost, "/api/cart/add", map[string]any{"productId": 1, "quantity": 3, "selectedSize": "M"})
	require.Len(t, c.Items, 1)
	assert.Equal(t, 5, c.Items[0].Quantity)

	_, c, _ = call(t, r, http.MethodPost, "/api/cart/add", map[string]any{"productId": 1, "quantity": 1, "selectedSize": "L"})
	assert.Len(t, c.Items, 2)

	_, c, _ = call(t, r, http.MethodPost, "/api/cart/add", map[string]any{"productId": 1, "quantity": 100, "selectedSize": "L"})
	for _, it := range c.Items {
		if it.SelectedSize == "L" {
			assert.Equal(t, cart.MaxQuantity, it.Quantity)
		}
	}
}

func TestAddRejectsUnknownAndInactive(t *testing.T) {
	r := newRouter(newMemStore())

	code, _, msg := call(t, r, http.MethodPost, "/api/cart/add", map[string]any{"productId": 99, "quantity": 1})
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Product not found", msg)

	code, _, msg = call(t, r, http.MethodPost, "/api/cart/add", map[string]any{"productId": 3, "quantity": 1})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Product is not available", msg)

	code, _, _ = call(t, r, http.MethodPost, "/api/cart/add", map[string]any{"productId": 1, "quantity": 101})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestTotalsUpdateAndClear(t *testing.T) {
	r := newRouter(newMemStore())
	_, _, _ = call(t, r, http.MethodPost, "/api/cart/add", map[string]any{"productId": 1, "quantity": 1})
	_, c, _ := call(t, r, http.MethodPost, "/api/cart/add", map[string]any{"productId": 2, "quantity": 2})
	assert.Equal(t, 3, c.TotalItems)
	assert.True(t, decimal.NewFromInt(3499).Equal(c.TotalAmount), c.TotalAmount.String())

	code, c, _ := call(t, r, http.MethodPut, "/api/cart/update", map[string]any{"productId": 1, "quantity": 4})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 6, c.TotalItems)

	code, _, msg := call(t, r, http.MethodPut, "/api/cart/update", map[string]any{"productId": 1, "quantity": 1, "selectedColor": "Red"})
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Cart item not found", msg)

	_, c, _ = call(t, r, http.MethodDelete, "/api/cart/remove", map[string]any{"productId": 2})
	assert.Len(t, c.Items, 1)

	req := httptest.NewRequest(http.MethodGet, "/api/cart/count", nil)
	req.Header.Set("Authorization", "Bearer test")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Contains(t, w.Body.String(), `"count":4`)

	code, c, _ = call(t, r, http.MethodDelete, "/api/cart/clear", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, c.Items)
	assert.Equal(t, 0, c.TotalItems)
}

func TestCartRequiresAuth(t *testing.T) {
	r := newRouter(newMemStore())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/cart", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

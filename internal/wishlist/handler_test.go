package wishlist

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
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
	mu       sync.Mutex
	saved    map[int64][]int64
	products map[int64]product.Summary
}

func (m *memStore) Items(_ context.Context, userID int64) ([]Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Item{}
	for _, id := range m.saved[userID] {
		out = append(out, Item{ProductID: id, Product: m.products[id]})
	}
	return out, nil
}

func (m *memStore) Add(_ context.Context, userID, productID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[productID]; !ok {
		return apperr.NotFound("Product")
	}
	for _, id := range m.saved[userID] {
		if id == productID {
			return nil
		}
	}
	m.saved[userID] = append(m.saved[userID], productID)
	return nil
}

func (m *memStore) Remove(_ context.Context, userID, productID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := m.saved[userID][:0]
	for _, id := range m.saved[userID] {
		if id != productID {
			ids = append(ids, id)
		}
	}
	m.saved[userID] = ids
	return nil
}

func call(t *testing.T, r *gin.Engine, method, path string, body any) (int, View, string) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var env struct {
		Message string `json:"message"`
		Data    View   `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return w.Code, env.Data, env.Message
}

func TestWishlist(t *testing.T) {
	store := &memStore{
		saved:    map[int64][]int64{},
		products: map[int64]product.Summary{5: {ID: 5, Name: "Anarkali"}},
	}
	r := gin.New()
	NewHandler(store).Routes(r.Group("/api"), func(c *gin.Context) { c.Set(auth.CtxUserIDKey, int64(3)) })

	code, v, _ := call(t, r, http.MethodPost, "/api/wishlist/add", map[string]any{"productId": 5})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, v.Count)

	_, v, _ = call(t, r, http.MethodPost, "/api/wishlist/add", map[string]any{"productId": 5})
	assert.Equal(t, 1, v.Count, "adding twice keeps one entry")
	assert.Equal(t, "Anarkali", v.Items[0].Product.Name)

	code, _, msg := call(t, r, http.MethodPost, "/api/wishlist/add", map[string]any{"productId": 6})
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Product not found", msg)

	code, _, _ = call(t, r, http.MethodPost, "/api/wishlist/add", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, code)

	_, v, _ = call(t, r, http.MethodDelete, "/api/wishlist/remove", map[string]any{"productId": 5})
	assert.Equal(t, 0, v.Count)

	code, v, _ = call(t, r, http.MethodGet, "/api/wishlist", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Empty(t, v.Items)
}

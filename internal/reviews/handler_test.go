package reviews

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/apperr"
	"storefront/internal/auth"
	"storefront/internal/domain/review"
	"storefront/internal/httpx"
)

func init() {
	gin.SetMode(gin.TestMode)
	httpx.RegisterValidators()
}

type productStats struct {
	sum, count int
}

type memStore struct {
	mu        sync.Mutex
	reviews   []review.Review
	products  map[int64]*productStats
	delivered map[[2]int64]bool
}

func newMemStore() *memStore {
	return &memStore{
		products:  map[int64]*productStats{1: {}, 2: {}},
		delivered: map[[2]int64]bool{},
	}
}

func (m *memStore) ByProduct(_ context.Context, productID int64) ([]review.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []review.Review{}
	for _, rv := range m.reviews {
		if rv.ProductID == productID {
			out = append(out, rv)
		}
	}
	return out, nil
}

func (m *memStore) Get(_ context.Context, id int64) (review.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rv := range m.reviews {
		if rv.ID == id {
			return rv, nil
		}
	}
	return review.Review{}, apperr.NotFound("Review")
}

func (m *memStore) refresh(productID int64) {
	s := &productStats{}
	for _, rv := range m.reviews {
		if rv.ProductID == productID {
			s.sum += rv.Rating
			s.count++
		}
	}
	m.products[productID] = s
}

func (m *memStore) Create(_ context.Context, productID, userID int64, rating int, comment string) (review.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[productID]; !ok {
		return review.Review{}, apperr.NotFound("Product")
	}
	for _, rv := range m.reviews {
		if rv.ProductID == productID && rv.UserID == userID {
			return review.Review{}, apperr.Conflict("You have already reviewed this product")
		}
	}
	rv := review.Review{
		ID: int64(len(m.reviews) + 1), ProductID: productID, UserID: userID, Rating: rating, Comment: comment,
		IsVerified: m.delivered[[2]int64{userID, productID}], CreatedAt: time.Now(),
	}
	m.reviews = append(m.reviews, rv)
	m.refresh(productID)
	return rv, nil
}

func (m *memStore) Update(_ context.Context, id int64, rating int, comment string) (review.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.reviews {
		if m.reviews[i].ID == id {
			m.reviews[i].Rating, m.reviews[i].Comment = rating, comment
			m.refresh(m.reviews[i].ProductID)
			return m.reviews[i], nil
		}
	}
	return review.Review{}, apperr.NotFound("Review")
}

func (m *memStore) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, rv := range m.reviews {
		if rv.ID == id {
			m.reviews = append(m.reviews[:i], m.reviews[i+1:]...)
			m.refresh(rv.ProductID)
			return nil
		}
	}
	return apperr.NotFound("Review")
}

func newRouter(store Store) *gin.Engine {
	r := gin.New()
	authed := func(c *gin.Context) {
		id, err := strconv.ParseInt(c.GetHeader("X-User"), 10, 64)
		if err != nil {
			httpx.Fail(c, http.StatusUnauthorized, "Access token is required", nil)
			return
		}
		c.Set(auth.CtxUserIDKey, id)
		if c.GetHeader("X-Admin") == "yes" {
			c.Set(auth.CtxRoleKey, "admin")
		}
	}
	NewHandler(store).Routes(r.Group("/api"), authed)
	return r
}

func do(r *gin.Engine, method, path, user string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-User", user)
	}
	if user == "99" {
		req.Header.Set("X-Admin", "yes")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestReviewLifecycle(t *testing.T) {
	store := newMemStore()
	store.delivered[[2]int64{5, 1}] = true
	r := newRouter(store)

	w := do(r, http.MethodPost, "/api/reviews/product/1", "", map[string]any{"rating": 5})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, http.MethodPost, "/api/reviews/product/1", "5", map[string]any{"rating": 5, "comment": "  Lovely weave  "})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"isVerified":true`)
	assert.Contains(t, w.Body.String(), `"comment":"Lovely weave"`)

	w = do(r, http.MethodPost, "/api/reviews/product/1", "6", map[string]any{"rating": 2})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"isVerified":false`)
	assert.Equal(t, productStats{sum: 7, count: 2}, *store.products[1])

	w = do(r, http.MethodPost, "/api/reviews/product/1", "5", map[string]any{"rating": 4})
	assert.Equal(t, http.StatusConflict, w.Code)
	w = do(r, http.MethodPost, "/api/reviews/product/77", "5", map[string]any{"rating": 4})
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = do(r, http.MethodPost, "/api/reviews/product/1", "7", map[string]any{"rating": 6})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodGet, "/api/reviews/product/1", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var env struct {
		Data []review.Review `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Len(t, env.Data, 2)

	w = do(r, http.MethodPut, "/api/reviews/1", "6", map[string]any{"rating": 1})
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = do(r, http.MethodPut, "/api/reviews/1", "5", map[string]any{"rating": 3})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, productStats{sum: 5, count: 2}, *store.products[1])

	w = do(r, http.MethodDelete, "/api/reviews/2", "5", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = do(r, http.MethodDelete, "/api/reviews/2", "99", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, productStats{sum: 3, count: 1}, *store.products[1])

	w = do(r, http.MethodDelete, "/api/reviews/2", "6", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

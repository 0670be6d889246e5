package newsletter

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/apperr"
	"storefront/internal/domain/newsletter"
	"storefront/internal/httpx"
	"storefront/internal/mail"
)

func init() {
	gin.SetMode(gin.TestMode)
	httpx.RegisterValidators()
}

type memStore struct {
	mu   sync.Mutex
	subs []newsletter.Subscriber
}

func (m *memStore) find(match func(newsletter.Subscriber) bool) *newsletter.Subscriber {
	for i := range m.subs {
		if match(m.subs[i]) {
			return &m.subs[i]
		}
	}
	return nil
}

func (m *memStore) ByEmail(_ context.Context, email string) (newsletter.Subscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s := m.find(func(s newsletter.Subscriber) bool { return s.Email == email }); s != nil {
		return *s, nil
	}
	return newsletter.Subscriber{}, apperr.NotFound("Email")
}

func (m *memStore) Create(_ context.Context, s newsletter.Subscriber) (newsletter.Subscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.ID = int64(len(m.subs) + 1)
	s.Status = newsletter.StatusActive
	s.SubscribedAt = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s.Fill()
	m.subs = append(m.subs, s)
	return s, nil
}

func (m *memStore) Resubscribe(_ context.Context, s newsletter.Subscriber) (newsletter.Subscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur := m.find(func(x newsletter.Subscriber) bool { return x.ID == s.ID })
	s.Status, s.UnsubscribedAt = newsletter.StatusActive, nil
	s.Fill()
	*cur = s
	return s, nil
}

func (m *memStore) Unsubscribe(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur := m.find(func(x newsletter.Subscriber) bool { return x.ID == id })
	now := time.Now()
	cur.Status, cur.UnsubscribedAt = newsletter.StatusUnsubscribed, &now
	cur.Fill()
	return nil
}

func (m *memStore) List(_ context.Context, f Filter) ([]newsletter.Subscriber, int, error) {
	list, _ := m.Export(context.Background(), f.Status)
	return list, len(list), nil
}

func (m *memStore) Export(_ context.Context, status string) ([]newsletter.Subscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []newsletter.Subscriber{}
	for _, s := range m.subs {
		if status == "" || status == "all" || s.Status == status {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memStore) Update(_ context.Context, id int64, p Patch) (newsletter.Subscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur := m.find(func(x newsletter.Subscriber) bool { return x.ID == id })
	if cur == nil {
		return newsletter.Subscriber{}, apperr.NotFound("Newsletter subscriber")
	}
	if p.Status != nil {
		cur.Status = *p.Status
	}
	if p.Tags != nil {
		cur.Tags = p.Tags
	}
	if p.Preferences != nil {
		cur.Preferences = *p.Preferences
	}
	cur.Fill()
	return *cur, nil
}

func (m *memStore) Delete(_ context.Context, id int64) error {
	return errors.New("not used")
}

func (m *memStore) Bulk(_ context.Context, action string, ids []int64, tag string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, id := range ids {
		cur := m.find(func(x newsletter.Subscriber) bool { return x.ID == id })
		if cur == nil {
			continue
		}
		if action == "addTag" {
			cur.Tags = newsletter.MergeTags(cur.Tags, []string{tag})
			n++
		}
	}
	return n, nil
}

func (m *memStore) Stats(_ context.Context, since *time.Time, _ time.Time) (Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var st Stats
	for _, s := range m.subs {
		if since != nil && s.SubscribedAt.Before(*since) {
			continue
		}
		st.Overview.Total++
		if s.Status == newsletter.StatusActive {
			st.Overview.Active++
		} else {
			st.Overview.Unsubscribed++
		}
	}
	return st, nil
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []mail.Message
}

func (r *recordingMailer) Send(_ context.Context, msg mail.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
	return nil
}

func newRouter(store Store, mailer mail.Mailer) *gin.Engine {
	r := gin.New()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(store, mailer, mail.Composer{Shop: "Storefront"}, log)
	h.now = func() time.Time { return time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC) }
	h.Routes(r.Group("/api"))
	return r
}

func do(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "newsletter-test")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSubscribeLifecycle(t *testing.T) {
	store := &memStore{}
	mailer := &recordingMailer{}
	r := newRouter(store, mailer)

	w := do(r, http.MethodPost, "/api/newsletter/subscribe", map[string]any{
		"email": " Riya@Example.com ", "firstName": "Riya", "tags": []string{"Sarees", "sarees"},
		"preferences": map[string]bool{"styleTips": false},
		"metadata":    map[string]string{"utmSource": "instagram"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.Len(t, store.subs, 1)
	s := store.subs[0]
	assert.Equal(t, "riya@example.com", s.Email)
	assert.Equal(t, []string{"sarees"}, s.Tags)
	assert.Equal(t, newsletter.Preferences{Promotions: true, NewProducts: true, StyleTips: false, OrderUpdates: true}, s.Preferences)
	assert.Equal(t, "instagram", s.Metadata.UTMSource)
	assert.Equal(t, "newsletter-test", s.Metadata.UserAgent)
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "riya@example.com", mailer.sent[0].To)

	w = do(r, http.MethodPost, "/api/newsletter/subscribe", map[string]any{"email": "riya@example.com"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(r, http.MethodPost, "/api/newsletter/unsubscribe", map[string]any{"email": "RIYA@example.com"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, newsletter.StatusUnsubscribed, store.subs[0].Status)

	w = do(r, http.MethodPost, "/api/newsletter/unsubscribe", map[string]any{"email": "riya@example.com"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(r, http.MethodPost, "/api/newsletter/unsubscribe", map[string]any{"email": "nobody@example.com"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodPost, "/api/newsletter/subscribe", map[string]any{
		"email": "riya@example.com", "tags": []string{"kurtas"}, "preferences": map[string]bool{"promotions": false},
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "resubscribed")
	s = store.subs[0]
	assert.Equal(t, newsletter.StatusActive, s.Status)
	assert.Equal(t, []string{"sarees", "kurtas"}, s.Tags)
	assert.False(t, s.Preferences.Promotions)
	assert.False(t, s.Preferences.StyleTips)
	assert.Equal(t, "instagram", s.Metadata.UTMSource)
	assert.Len(t, mailer.sent, 1, "resubscribing sends no second welcome")

	w = do(r, http.MethodPost, "/api/newsletter/subscribe", map[string]any{"email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatsAndExport(t *testing.T) {
	store := &memStore{}
	r := newRouter(store, &recordingMailer{})
	for _, e := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		require.Equal(t, http.StatusCreated, do(r, http.MethodPost, "/api/newsletter/subscribe", map[string]any{"email": e}).Code)
	}
	require.Equal(t, http.StatusOK, do(r, http.MethodPost, "/api/newsletter/unsubscribe", map[string]any{"email": "c@example.com"}).Code)

	w := do(r, http.MethodGet, "/api/newsletter/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var env struct {
		Data Stats `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, 3, env.Data.Overview.Total)
	assert.Equal(t, 66.67, env.Data.Overview.ActiveRate)
	assert.Equal(t, "all", env.Data.Period)

	w = do(r, http.MethodGet, "/api/newsletter/stats?period=day", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, 0, env.Data.Overview.Total)
	assert.Equal(t, float64(0), env.Data.Overview.ActiveRate)

	w = do(r, http.MethodGet, "/api/newsletter/export?status=active&fields=email,status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
	records, err := csv.NewReader(strings.NewReader(w.Body.String())).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"email", "status"}, {"a@example.com", "active"}, {"b@example.com", "active"}}, records)

	w = do(r, http.MethodGet, "/api/newsletter/export?fields=email,password", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodGet, "/api/newsletter/export?format=json", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":3`)
}

func TestExportEscapesFormulas(t *testing.T) {
	store := &memStore{}
	r := newRouter(store, &recordingMailer{})
	w := do(r, http.MethodPost, "/api/newsletter/subscribe", map[string]any{
		"email": "eve@example.com", "firstName": "=cmd|' /C calc'!A0", "lastName": "-1+1",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = do(r, http.MethodGet, "/api/newsletter/export?fields=email,firstName,lastName", nil)
	require.Equal(t, http.StatusOK, w.Code)
	records, err := csv.NewReader(strings.NewReader(w.Body.String())).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"eve@example.com", "'=cmd|' /C calc'!A0", "'-1+1"}, records[1])
}

func TestBulkAndUpdate(t *testing.T) {
	store := &memStore{}
	r := newRouter(store, &recordingMailer{})
	require.Equal(t, http.StatusCreated, do(r, http.MethodPost, "/api/newsletter/subscribe", map[string]any{"email": "a@example.com"}).Code)

	w := do(r, http.MethodPost, "/api/newsletter/bulk-action", map[string]any{"action": "addTag", "subscriberIds": []int64{1}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(r, http.MethodPost, "/api/newsletter/bulk-action", map[string]any{"action": "purge", "subscriberIds": []int64{1}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(r, http.MethodPost, "/api/newsletter/bulk-action", map[string]any{"action": "addTag", "subscriberIds": []int64{}, "tag": "vip"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/api/newsletter/bulk-action", map[string]any{"action": "addTag", "subscriberIds": []int64{1, 9}, "tag": " VIP "})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"modifiedCount":1`)
	assert.Equal(t, []string{"vip"}, store.subs[0].Tags)

	w = do(r, http.MethodPut, "/api/newsletter/subscribers/1", map[string]any{"status": "bounced", "tags": []string{"Festive"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, newsletter.StatusBounced, store.subs[0].Status)
	assert.Equal(t, []string{"festive"}, store.subs[0].Tags)
	w = do(r, http.MethodPut, "/api/newsletter/subscribers/5", map[string]any{"status": "active"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = do(r, http.MethodPut, "/api/newsletter/subscribers/1", map[string]any{"status": "gone"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPeriodStart(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 30, 0, 0, time.UTC)
	assert.Nil(t, PeriodStart("all", now))
	assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), *PeriodStart("day", now))
	assert.Equal(t, time.Date(2026, 3, 8, 12, 30, 0, 0, time.UTC), *PeriodStart("week", now))
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), *PeriodStart("month", now))
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), *PeriodStart("year", now))
}

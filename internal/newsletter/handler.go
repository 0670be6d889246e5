package newsletter

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"storefront/internal/apperr"
	"storefront/internal/domain/newsletter"
	"storefront/internal/httpx"
	"storefront/internal/mail"
	"storefront/internal/util"
)

type Filter struct {
	Status    string
	Search    string
	SortBy    string
	Ascending bool
	Limit     int
	Offset    int
}

type Patch struct {
	Email       *string
	FirstName   *string
	LastName    *string
	Status      *string
	Preferences *newsletter.Preferences
	Tags        []string
}

type DayCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

type Stats struct {
	Overview struct {
		Total        int     `json:"total"`
		Active       int     `json:"active"`
		Unsubscribed int     `json:"unsubscribed"`
		Bounced      int     `json:"bounced"`
		ActiveRate   float64 `json:"activeRate"`
	} `json:"overview"`
	Trends struct {
		Subscriptions []DayCount `json:"subscriptionTrends"`
		TopTags       []TagCount `json:"topTags"`
	} `json:"trends"`
	Preferences struct {
		Promotions   int `json:"promotions"`
		NewProducts  int `json:"newProducts"`
		StyleTips    int `json:"styleTips"`
		OrderUpdates int `json:"orderUpdates"`
	} `json:"preferences"`
	Period string `json:"period"`
}

type Store interface {
	ByEmail(ctx context.Context, email string) (newsletter.Subscriber, error)
	Create(ctx context.Context, s newsletter.Subscriber) (newsletter.Subscriber, error)
	Resubscribe(ctx context.Context, s newsletter.Subscriber) (newsletter.Subscriber, error)
	Unsubscribe(ctx context.Context, id int64) error
	List(ctx context.Context, f Filter) ([]newsletter.Subscriber, int, error)
	Export(ctx context.Context, status string) ([]newsletter.Subscriber, error)
	Update(ctx context.Context, id int64, p Patch) (newsletter.Subscriber, error)
	Delete(ctx context.Context, id int64) error
	Bulk(ctx context.Context, action string, ids []int64, tag string) (int64, error)
	Stats(ctx context.Context, since *time.Time, now time.Time) (Stats, error)
}

type Handler struct {
	store    Store
	mailer   mail.Mailer
	composer mail.Composer
	log      *slog.Logger
	now      func() time.Time
}

func NewHandler(store Store, mailer mail.Mailer, composer mail.Composer, log *slog.Logger) *Handler {
	return &Handler{store: store, mailer: mailer, composer: composer, log: log, now: time.Now}
}

type preferencesReq struct {
	Promotions   *bool `json:"promotions"`
	NewProducts  *bool `json:"newProducts"`
	StyleTips    *bool `json:"styleTips"`
	OrderUpdates *bool `json:"orderUpdates"`
}

// apply overlays the fields that were sent on p.
func (r *preferencesReq) apply(p newsletter.Preferences) newsletter.Preferences {
	if r == nil {
		return p
	}
	set := func(dst *bool, v *bool) {
		if v != nil {
			*dst = *v
		}
	}
	set(&p.Promotions, r.Promotions)
	set(&p.NewProducts, r.NewProducts)
	set(&p.StyleTips, r.StyleTips)
	set(&p.OrderUpdates, r.OrderUpdates)
	return p
}

type metadataReq struct {
	IPAddress   string `json:"ipAddress" binding:"omitempty,ip"`
	UserAgent   string `json:"userAgent" binding:"max=500"`
	Referrer    string `json:"referrer" binding:"max=500"`
	UTMSource   string `json:"utmSource" binding:"max=100"`
	UTMMedium   string `json:"utmMedium" binding:"max=100"`
	UTMCampaign string `json:"utmCampaign" binding:"max=100"`
}

type subscribeReq struct {
	Email       string          `json:"email" binding:"required,email,max=254"`
	FirstName   string          `json:"firstName" binding:"max=50"`
	LastName    string          `json:"lastName" binding:"max=50"`
	Preferences *preferencesReq `json:"preferences"`
	Tags        []string        `json:"tags" binding:"max=20,dive,max=30"`
	Metadata    *metadataReq    `json:"metadata"`
}

// metadata fills request-derived fields the client did not send.
func (r subscribeReq) metadata(c *gin.Context) newsletter.Metadata {
	m := newsletter.Metadata{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		Referrer:  c.Request.Referer(),
	}
	if r.Metadata != nil {
		m = m.Merge(newsletter.Metadata{
			IPAddress:   r.Metadata.IPAddress,
			UserAgent:   r.Metadata.UserAgent,
			Referrer:    r.Metadata.Referrer,
			UTMSource:   r.Metadata.UTMSource,
			UTMMedium:   r.Metadata.UTMMedium,
			UTMCampaign: r.Metadata.UTMCampaign,
		})
	}
	return m
}

func (h *Handler) Subscribe(c *gin.Context) {
	var req subscribeReq
	if !httpx.BindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()
	email := util.NormalizeEmail(req.Email)
	tags := util.NormalizeTags(req.Tags)

	existing, err := h.store.ByEmail(ctx, email)
	switch {
	case err == nil && existing.Status == newsletter.StatusActive:
		httpx.Error(c, apperr.Conflict(alreadySubscribed))
		return
	case err == nil:
		existing.Preferences = req.Preferences.apply(existing.Preferences)
		existing.Tags = newsletter.MergeTags(existing.Tags, tags)
		existing.Metadata = existing.Metadata.Merge(req.metadata(c))
		if name := strings.TrimSpace(req.FirstName); name != "" {
			existing.FirstName = name
		}
		if name := strings.TrimSpace(req.LastName); name != "" {
			existing.LastName = name
		}
		s, err := h.store.Resubscribe(ctx, existing)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.OK(c, "Welcome back! You have been resubscribed to our newsletter.", s)
		return
	case !errors.Is(err, apperr.ErrNotFound):
		httpx.Error(c, err)
		return
	}

	s, err := h.store.Create(ctx, newsletter.Subscriber{
		Email:       email,
		FirstName:   strings.TrimSpace(req.FirstName),
		LastName:    strings.TrimSpace(req.LastName),
		Source:      newsletter.SourceWebsite,
		Preferences: req.Preferences.apply(newsletter.DefaultPreferences()),
		Tags:        tags,
		Metadata:    req.metadata(c),
	})
	if err != nil {
		httpx.Error(c, err)
		return
	}
	mail.SendBestEffort(ctx, h.log, h.mailer, h.composer.NewsletterWelcome(s.Email, s.FirstName))
	httpx.Created(c, "Successfully subscribed to newsletter!", s)
}

type unsubscribeReq struct {
	Email string `json:"email" binding:"required,email"`
}

func (h *Handler) Unsubscribe(c *gin.Context) {
	var req unsubscribeReq
	if !httpx.BindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()
	s, err := h.store.ByEmail(ctx, util.NormalizeEmail(req.Email))
	if errors.Is(err, apperr.ErrNotFound) {
		httpx.Fail(c, http.StatusNotFound, "Email not found in newsletter subscribers", nil)
		return
	}
	if err != nil {
		httpx.Error(c, err)
		return
	}
	if s.Status == newsletter.StatusUnsubscribed {
		httpx.Fail(c, http.StatusBadRequest, "Email is already unsubscribed", nil)
		return
	}
	if err := h.store.Unsubscribe(ctx, s.ID); err != nil {
		httpx.Error(c, err)
		return
	}
	httpx.OK(c, "You have been unsubscribed from our newsletter.", nil)
}

type listQuery struct {
	httpx.PageQuery
	Status    string `form:"status" binding:"omitempty,oneof=all active unsubscribed bounced"`
	Search    string `form:"search" binding:"max=100"`
	SortBy    string `form:"sortBy" binding:"omitempty,oneof=subscribedAt email firstName lastName status"`
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
	httpx.Paginated(c, "Newsletter subscribers retrieved successfully", list, httpx.NewPagination(q.Page, limit, total))
}

type statsQuery struct {
	Period string `form:"period" binding:"omitempty,oneof=all day week month year"`
}

// PeriodStart returns the first instant counted for period, or nil for all.
func PeriodStart(period string, now time.Time) *time.Time {
	var t time.Time
	switch period {
	case "day":
		t = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	case "week":
		t = now.AddDate(0, 0, -7)
	case "month":
		t = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	case "year":
		t = time.Date(now.Year(), 1, 1, 0, 0, 0, 0, now.Location())
	default:
		return nil
	}
	return &t
}

func (h *Handler) Stats(c *gin.Context) {
	var q statsQuery
	if !httpx.BindQuery(c, &q) {
		return
	}
	if q.Period == "" {
		q.Period = "all"
	}
	now := h.now()
	st, err := h.store.Stats(c.Request.Context(), PeriodStart(q.Period, now), now)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	if st.Overview.Total > 0 {
		st.Overview.ActiveRate = math.Round(float64(st.Overview.Active)/float64(st.Overview.Total)*10000) / 100
	}
	st.Period = q.Period
	httpx.OK(c, "Newsletter statistics retrieved successfully", st)
}

type updateReq struct {
	Email       *string         `json:"email" binding:"omitempty,email,max=254"`
	FirstName   *string         `json:"firstName" binding:"omitempty,max=50"`
	LastName    *string         `json:"lastName" binding:"omitempty,max=50"`
	Status      *string         `json:"status" binding:"omitempty,oneof=active unsubscribed bounced"`
	Preferences *preferencesReq `json:"preferences"`
	Tags        *[]string       `json:"tags" binding:"omitempty,max=20,dive,max=30"`
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
	p := Patch{FirstName: req.FirstName, LastName: req.LastName, Status: req.Status}
	if req.Email != nil {
		e := util.NormalizeEmail(*req.Email)
		p.Email = &e
	}
	if req.Preferences != nil {
		// unspecified preferences reset to their defaults
		prefs := req.Preferences.apply(newsletter.DefaultPreferences())
		p.Preferences = &prefs
	}
	if req.Tags != nil {
		p.Tags = util.NormalizeTags(*req.Tags)
	}
	s, err := h.store.Update(c.Request.Context(), id, p)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	httpx.OK(c, "Newsletter subscriber updated successfully", s)
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
	httpx.OK(c, "Newsletter subscriber deleted successfully", nil)
}

type bulkReq struct {
	Action string  `json:"action" binding:"required,oneof=activate unsubscribe delete addTag removeTag"`
	IDs    []int64 `json:"subscriberIds" binding:"required,min=1,max=500,dive,gt=0"`
	Tag    string  `json:"tag" binding:"max=30"`
}

var bulkMessages = map[string]string{
	"activate":    "Subscribers activated successfully",
	"unsubscribe": "Subscribers unsubscribed successfully",
	"delete":      "Subscribers deleted successfully",
	"addTag":      "Tag added to subscribers",
	"removeTag":   "Tag removed from subscribers",
}

func (h *Handler) Bulk(c *gin.Context) {
	var req bulkReq
	if !httpx.BindJSON(c, &req) {
		return
	}
	tag := strings.ToLower(strings.TrimSpace(req.Tag))
	if (req.Action == "addTag" || req.Action == "removeTag") && tag == "" {
		httpx.Fail(c, http.StatusBadRequest, "Validation failed", []httpx.FieldError{{Field: "tag", Message: "is required for tag actions"}})
		return
	}
	n, err := h.store.Bulk(c.Request.Context(), req.Action, req.IDs, tag)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	httpx.OK(c, bulkMessages[req.Action], gin.H{"modifiedCount": n, "action": req.Action})
}

func (h *Handler) Routes(api *gin.RouterGroup, admin ...gin.HandlerFunc) {
	g := api.Group("/newsletter")
	g.POST("/subscribe", h.Subscribe)
	g.POST("/unsubscribe", h.Unsubscribe)

	a := g.Group("", admin...)
	a.GET("/subscribers", h.List)
	a.GET("/stats", h.Stats)
	a.PUT("/subscribers/:id", h.Update)
	a.DELETE("/subscribers/:id", h.Delete)
	a.GET("/export", h.Export)
	a.POST("/bulk-action", h.Bulk)
}

package newsletter

import (
	"encoding/csv"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"storefront/internal/domain/newsletter"
	"storefront/internal/httpx"
	"storefront/internal/util"
)

var exportColumns = map[string]func(s newsletter.Subscriber) string{
	"email":        func(s newsletter.Subscriber) string { return s.Email },
	"firstName":    func(s newsletter.Subscriber) string { return s.FirstName },
	"lastName":     func(s newsletter.Subscriber) string { return s.LastName },
	"status":       func(s newsletter.Subscriber) string { return s.Status },
	"source":       func(s newsletter.Subscriber) string { return s.Source },
	"subscribedAt": func(s newsletter.Subscriber) string { return s.SubscribedAt.UTC().Format(time.RFC3339) },
	"unsubscribedAt": func(s newsletter.Subscriber) string {
		if s.UnsubscribedAt == nil {
			return ""
		}
		return s.UnsubscribedAt.UTC().Format(time.RFC3339)
	},
	"tags": func(s newsletter.Subscriber) string { return strings.Join(s.Tags, ";") },
}

var defaultExportFields = []string{"email", "firstName", "lastName", "status", "subscribedAt"}

type exportQuery struct {
	Format string `form:"format" binding:"omitempty,oneof=csv json"`
	Status string `form:"status" binding:"omitempty,oneof=all active unsubscribed bounced"`
	Fields string `form:"fields" binding:"max=200"`
}

// exportFields parses a comma list, returning the first unknown name on failure.
func exportFields(raw string) ([]string, string) {
	if strings.TrimSpace(raw) == "" {
		return defaultExportFields, ""
	}
	var out []string
	for _, f := range strings.Split(raw, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		if _, ok := exportColumns[f]; !ok {
			return nil, f
		}
		out = append(out, f)
	}
	if len(out) == 0 {
		return defaultExportFields, ""
	}
	return out, ""
}

func (h *Handler) Export(c *gin.Context) {
	var q exportQuery
	if !httpx.BindQuery(c, &q) {
		return
	}
	fields, bad := exportFields(q.Fields)
	if bad != "" {
		httpx.Fail(c, http.StatusBadRequest, "Validation failed", []httpx.FieldError{{Field: "fields", Message: "unknown field " + bad}})
		return
	}
	list, err := h.store.Export(c.Request.Context(), q.Status)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	if q.Format == "json" {
		httpx.OK(c, "Newsletter subscribers exported successfully", gin.H{
			"subscribers": list,
			"count":       len(list),
			"exportedAt":  h.now().UTC().Format(time.RFC3339),
		})
		return
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", "attachment; filename=newsletter-subscribers.csv")
	c.Status(http.StatusOK)
	w := csv.NewWriter(c.Writer)
	_ = w.Write(fields)
	row := make([]string, len(fields))
	for _, s := range list {
		for i, f := range fields {
			row[i] = util.CSVCell(exportColumns[f](s))
		}
		_ = w.Write(row)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		h.log.Error("newsletter export write failed", "err", err)
	}
}

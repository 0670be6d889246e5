package newsletter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"storefront/internal/apperr"
	"storefront/internal/db"
	"storefront/internal/domain/newsletter"
)

const alreadySubscribed = "Email is already subscribed to newsletter"

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{db: db}
}

const subscriberColumns = `id, email, first_name, last_name, status, source, subscribed_at, unsubscribed_at,
	preferences, tags, metadata, created_at, updated_at`

var sortColumns = map[string]string{
	"subscribedAt": "subscribed_at",
	"email":        "email",
	"firstName":    "lower(first_name)",
	"lastName":     "lower(last_name)",
	"status":       "status",
}

func scan(row pgx.Row) (newsletter.Subscriber, error) {
	var s newsletter.Subscriber
	err := row.Scan(&s.ID, &s.Email, &s.FirstName, &s.LastName, &s.Status, &s.Source, &s.SubscribedAt,
		&s.UnsubscribedAt, &s.Preferences, &s.Tags, &s.Metadata, &s.CreatedAt, &s.UpdatedAt)
	s.Fill()
	return s, err
}

func (r *Repo) query(ctx context.Context, sql string, args ...any) ([]newsletter.Subscriber, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query subscribers: %w", err)
	}
	defer rows.Close()

	out := []newsletter.Subscriber{}
	for rows.Next() {
		s, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subscriber: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *Repo) ByEmail(ctx context.Context, email string) (newsletter.Subscriber, error) {
	s, err := scan(r.db.QueryRow(ctx, `SELECT `+subscriberColumns+` FROM newsletter_subscribers WHERE email = $1`, email))
	return s, db.Translate(err, "Email", "")
}

func (r *Repo) Create(ctx context.Context, s newsletter.Subscriber) (newsletter.Subscriber, error) {
	out, err := scan(r.db.QueryRow(ctx, `
		INSERT INTO newsletter_subscribers (email, first_name, last_name, status, source, preferences, tags, metadata)
		VALUES ($1, $2, $3, 'active', $4, $5, $6, $7)
		RETURNING `+subscriberColumns,
		s.Email, s.FirstName, s.LastName, s.Source, s.Preferences, s.Tags, s.Metadata))
	return out, db.Translate(err, "Subscriber", alreadySubscribed)
}

// Resubscribe reactivates s with the merged preferences, tags and metadata
// the caller computed.
func (r *Repo) Resubscribe(ctx context.Context, s newsletter.Subscriber) (newsletter.Subscriber, error) {
	out, err := scan(r.db.QueryRow(ctx, `
		UPDATE newsletter_subscribers SET
		  status = 'active', unsubscribed_at = NULL, subscribed_at = now(),
		  first_name = $2, last_name = $3, preferences = $4, tags = $5, metadata = $6, updated_at = now()
		WHERE id = $1 AND status <> 'active'
		RETURNING `+subscriberColumns,
		s.ID, s.FirstName, s.LastName, s.Preferences, s.Tags, s.Metadata))
	if errors.Is(err, pgx.ErrNoRows) {
		return newsletter.Subscriber{}, apperr.Conflict(alreadySubscribed)
	}
	return out, db.Translate(err, "Subscriber", alreadySubscribed)
}

func (r *Repo) Unsubscribe(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx, `
		UPDATE newsletter_subscribers SET status = 'unsubscribed', unsubscribed_at = now(), updated_at = now()
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("unsubscribe: %w", err)
	}
	return nil
}

func filterWhere(status, search string) db.Where {
	var w db.Where
	if status != "" && status != "all" {
		w.Add("status = ?", status)
	}
	if search != "" {
		p := "%" + search + "%"
		w.Add("(email ILIKE ? OR first_name ILIKE ? OR last_name ILIKE ?)", p, p, p)
	}
	return w
}

func (r *Repo) List(ctx context.Context, f Filter) ([]newsletter.Subscriber, int, error) {
	w := filterWhere(f.Status, f.Search)
	var total int
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM newsletter_subscribers`+w.String(), w.Args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count subscribers: %w", err)
	}
	col, ok := sortColumns[f.SortBy]
	if !ok {
		col = "subscribed_at"
	}
	dir := " DESC"
	if f.Ascending {
		dir = " ASC"
	}
	page, args := w.Page(f.Limit, f.Offset)
	list, err := r.query(ctx, `SELECT `+subscriberColumns+` FROM newsletter_subscribers`+w.String()+
		` ORDER BY `+col+dir+`, id DESC`+page, args...)
	return list, total, err
}

// Export returns every subscriber with the status, newest first.
func (r *Repo) Export(ctx context.Context, status string) ([]newsletter.Subscriber, error) {
	w := filterWhere(status, "")
	return r.query(ctx, `SELECT `+subscriberColumns+` FROM newsletter_subscribers`+w.String()+
		` ORDER BY subscribed_at DESC`, w.Args...)
}

func (r *Repo) Update(ctx context.Context, id int64, p Patch) (newsletter.Subscriber, error) {
	var prefs any
	if p.Preferences != nil {
		prefs = *p.Preferences
	}
	var tags any
	if p.Tags != nil {
		tags = p.Tags
	}
	out, err := scan(r.db.QueryRow(ctx, `
		UPDATE newsletter_subscribers SET
		  email       = COALESCE($2, email),
		  first_name  = COALESCE($3, first_name),
		  last_name   = COALESCE($4, last_name),
		  status      = COALESCE($5, status),
		  unsubscribed_at = CASE
		    WHEN $5::text = 'unsubscribed' AND status <> 'unsubscribed' THEN now()
		    WHEN $5::text = 'active' THEN NULL
		    ELSE unsubscribed_at END,
		  preferences = COALESCE($6, preferences),
		  tags        = COALESCE($7, tags),
		  updated_at  = now()
		WHERE id = $1
		RETURNING `+subscriberColumns,
		id, p.Email, p.FirstName, p.LastName, p.Status, prefs, tags))
	return out, db.Translate(err, "Newsletter subscriber", "Email is already used by another subscriber")
}

func (r *Repo) Delete(ctx context.Context, id int64) error {
	ct, err := r.db.Exec(ctx, `DELETE FROM newsletter_subscribers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete subscriber: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperr.NotFound("Newsletter subscriber")
	}
	return nil
}

func (r *Repo) Bulk(ctx context.Context, action string, ids []int64, tag string) (int64, error) {
	var (
		sql  string
		args = []any{ids}
	)
	switch action {
	case "activate":
		sql = `UPDATE newsletter_subscribers SET status = 'active', unsubscribed_at = NULL, updated_at = now()
			WHERE id = ANY($1) AND status <> 'active'`
	case "unsubscribe":
		sql = `UPDATE newsletter_subscribers SET status = 'unsubscribed', unsubscribed_at = now(), updated_at = now()
			WHERE id = ANY($1) AND status <> 'unsubscribed'`
	case "delete":
		sql = `DELETE FROM newsletter_subscribers WHERE id = ANY($1)`
	case "addTag":
		sql = `UPDATE newsletter_subscribers SET tags = array_append(tags, $2), updated_at = now()
			WHERE id = ANY($1) AND NOT ($2 = ANY(tags))`
		args = append(args, tag)
	case "removeTag":
		sql = `UPDATE newsletter_subscribers SET tags = array_remove(tags, $2), updated_at = now()
			WHERE id = ANY($1) AND $2 = ANY(tags)`
		args = append(args, tag)
	default:
		return 0, apperr.Invalid("Invalid bulk action")
	}
	ct, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("bulk %s: %w", action, err)
	}
	return ct.RowsAffected(), nil
}

// Stats aggregates subscribers who joined at or after since (all when nil).
// The trend always covers the 30 days before now.
func (r *Repo) Stats(ctx context.Context, since *time.Time, now time.Time) (Stats, error) {
	var st Stats
	err := r.db.QueryRow(ctx, `
		SELECT count(*),
		       count(*) FILTER (WHERE status = 'active'),
		       count(*) FILTER (WHERE status = 'unsubscribed'),
		       count(*) FILTER (WHERE status = 'bounced'),
		       count(*) FILTER (WHERE (preferences->>'promotions')::boolean),
		       count(*) FILTER (WHERE (preferences->>'newProducts')::boolean),
		       count(*) FILTER (WHERE (preferences->>'styleTips')::boolean),
		       count(*) FILTER (WHERE (preferences->>'orderUpdates')::boolean)
		FROM newsletter_subscribers
		WHERE $1::timestamptz IS NULL OR subscribed_at >= $1
	`, since).Scan(&st.Overview.Total, &st.Overview.Active, &st.Overview.Unsubscribed, &st.Overview.Bounced,
		&st.Preferences.Promotions, &st.Preferences.NewProducts, &st.Preferences.StyleTips, &st.Preferences.OrderUpdates)
	if err != nil {
		return Stats{}, fmt.Errorf("subscriber counts: %w", err)
	}

	st.Trends.Subscriptions = []DayCount{}
	rows, err := r.db.Query(ctx, `
		SELECT to_char(date_trunc('day', subscribed_at), 'YYYY-MM-DD') AS day, count(*)
		FROM newsletter_subscribers
		WHERE subscribed_at >= $1
		GROUP BY day ORDER BY day
	`, now.AddDate(0, 0, -30))
	if err != nil {
		return Stats{}, fmt.Errorf("subscription trend: %w", err)
	}
	for rows.Next() {
		var d DayCount
		if err := rows.Scan(&d.Date, &d.Count); err != nil {
			rows.Close()
			return Stats{}, err
		}
		st.Trends.Subscriptions = append(st.Trends.Subscriptions, d)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return Stats{}, err
	}

	st.Trends.TopTags = []TagCount{}
	rows, err = r.db.Query(ctx, `
		SELECT t, count(*) AS n
		FROM newsletter_subscribers, unnest(tags) AS t
		WHERE $1::timestamptz IS NULL OR subscribed_at >= $1
		GROUP BY t ORDER BY n DESC, t LIMIT 10
	`, since)
	if err != nil {
		return Stats{}, fmt.Errorf("top tags: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var tc TagCount
		if err := rows.Scan(&tc.Tag, &tc.Count); err != nil {
			return Stats{}, err
		}
		st.Trends.TopTags = append(st.Trends.TopTags, tc)
	}
	return st, rows.Err()
}

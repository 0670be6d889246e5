package admin

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"storefront/internal/apperr"
	"storefront/internal/db"
	"storefront/internal/domain/user"
)

const (
	lowStockThreshold = 10
	dashboardTop      = 10
	analyticsTop      = 20
)

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{db: db}
}

// queryAll runs q and scans every row with fn. The result is never nil.
func queryAll[T any](ctx context.Context, pool *pgxpool.Pool, what, q string, fn func(pgx.CollectableRow) (T, error), args ...any) ([]T, error) {
	rows, err := pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", what, err)
	}
	out, err := pgx.CollectRows(rows, fn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", what, err)
	}
	return out, nil
}

func scanProductSales(row pgx.CollectableRow) (ProductSales, error) {
	var p ProductSales
	err := row.Scan(&p.ProductID, &p.Name, &p.Image, &p.TotalSold, &p.Revenue)
	return p, err
}

const productSales = `
	SELECT p.id, p.name, COALESCE(p.images[1], ''), sum(i.quantity), sum(i.quantity * i.price) AS revenue
	FROM order_items i
	JOIN orders o ON o.id = i.order_id
	JOIN products p ON p.id = i.product_id
	WHERE o.order_status <> 'cancelled' AND o.created_at >= $1 AND o.created_at < $2
	GROUP BY p.id
	ORDER BY revenue DESC, p.id
	LIMIT $3`

func (r *Repo) Dashboard(ctx context.Context, now time.Time) (Dashboard, error) {
	var d Dashboard
	month, prevMonth := MonthBounds(now)
	year := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())

	err := r.db.QueryRow(ctx, `
		SELECT (SELECT count(*) FROM users WHERE role = 'customer'),
		       (SELECT count(*) FROM products WHERE deleted_at IS NULL),
		       (SELECT count(*) FROM categories),
		       (SELECT count(*) FROM orders)
	`).Scan(&d.Overview.TotalUsers, &d.Overview.TotalProducts, &d.Overview.TotalCategories, &d.Overview.TotalOrders)
	if err != nil {
		return Dashboard{}, fmt.Errorf("dashboard counts: %w", err)
	}

	err = r.db.QueryRow(ctx, `
		SELECT COALESCE(sum(total) FILTER (WHERE created_at >= $1), 0),
		       COALESCE(sum(total) FILTER (WHERE created_at >= $2 AND created_at < $1), 0),
		       COALESCE(sum(total) FILTER (WHERE created_at >= $3), 0),
		       count(*) FILTER (WHERE created_at >= $1),
		       count(*) FILTER (WHERE created_at >= $2 AND created_at < $1)
		FROM orders
		WHERE order_status <> 'cancelled'
	`, month, prevMonth, year).Scan(&d.Growth.Revenue.Current, &d.Growth.Revenue.Previous, &d.Overview.YearlyRevenue,
		&d.Growth.Orders.Current, &d.Growth.Orders.Previous)
	if err != nil {
		return Dashboard{}, fmt.Errorf("dashboard revenue: %w", err)
	}
	d.Overview.MonthlyRevenue = d.Growth.Revenue.Current

	err = r.db.QueryRow(ctx, `
		SELECT count(*) FILTER (WHERE created_at >= $1),
		       count(*) FILTER (WHERE created_at >= $2 AND created_at < $1)
		FROM users
		WHERE role = 'customer'
	`, month, prevMonth).Scan(&d.Growth.Users.Current, &d.Growth.Users.Previous)
	if err != nil {
		return Dashboard{}, fmt.Errorf("dashboard signups: %w", err)
	}

	d.RecentOrders, err = queryAll(ctx, r.db, "recent orders", `
		SELECT o.id, o.order_number, u.first_name, u.last_name, u.email, o.total, o.order_status, o.created_at
		FROM orders o
		JOIN users u ON u.id = o.user_id
		ORDER BY o.created_at DESC, o.id DESC
		LIMIT $1
	`, func(row pgx.CollectableRow) (RecentOrder, error) {
		var o RecentOrder
		err := row.Scan(&o.ID, &o.OrderNumber, &o.FirstName, &o.LastName, &o.Email, &o.TotalAmount, &o.Status, &o.CreatedAt)
		return o, err
	}, dashboardTop)
	if err != nil {
		return Dashboard{}, err
	}

	d.TopProducts, err = queryAll(ctx, r.db, "top products", productSales, scanProductSales, month, now, dashboardTop)
	if err != nil {
		return Dashboard{}, err
	}

	d.LowStock, err = queryAll(ctx, r.db, "low stock", `
		SELECT id, name, stock, COALESCE(images[1], '')
		FROM products
		WHERE stock < $1 AND is_active AND deleted_at IS NULL
		ORDER BY stock, id
		LIMIT $2
	`, func(row pgx.CollectableRow) (LowStock, error) {
		var p LowStock
		err := row.Scan(&p.ProductID, &p.Name, &p.Stock, &p.Image)
		return p, err
	}, lowStockThreshold, dashboardTop)
	if err != nil {
		return Dashboard{}, err
	}

	d.CategoryStats, err = queryAll(ctx, r.db, "category stats", `
		SELECT c.id, c.name, count(p.id) AS products, count(p.id) FILTER (WHERE p.is_active)
		FROM categories c
		LEFT JOIN products p ON p.category_id = c.id AND p.deleted_at IS NULL
		GROUP BY c.id
		ORDER BY products DESC, c.name
	`, func(row pgx.CollectableRow) (CategoryCount, error) {
		var cc CategoryCount
		err := row.Scan(&cc.CategoryID, &cc.Name, &cc.ProductCount, &cc.ActiveProducts)
		return cc, err
	})
	if err != nil {
		return Dashboard{}, err
	}
	return d, nil
}

// bucketFormats are the to_char layouts of the analytics time series.
var bucketFormats = map[string]string{
	"day":   "YYYY-MM-DD",
	"month": "YYYY-MM",
}

func (r *Repo) Analytics(ctx context.Context, w Window) (Analytics, error) {
	a := Analytics{Period: w.Period}
	layout, ok := bucketFormats[w.Bucket]
	if !ok {
		return Analytics{}, fmt.Errorf("analytics: unknown bucket %q", w.Bucket)
	}
	m := &a.Metrics

	err := r.db.QueryRow(ctx, `
		SELECT COALESCE(sum(total) FILTER (WHERE created_at >= $1), 0),
		       count(*) FILTER (WHERE created_at >= $1),
		       COALESCE(avg(total) FILTER (WHERE created_at >= $1), 0),
		       COALESCE(sum(total) FILTER (WHERE created_at < $1), 0),
		       count(*) FILTER (WHERE created_at < $1),
		       COALESCE(avg(total) FILTER (WHERE created_at < $1), 0)
		FROM orders
		WHERE order_status <> 'cancelled' AND created_at >= $2 AND created_at < $3
	`, w.Start, w.PrevStart, w.End).Scan(&m.Revenue.Current, &m.Orders.Current, &m.AverageOrder.Current,
		&m.Revenue.Previous, &m.Orders.Previous, &m.AverageOrder.Previous)
	if err != nil {
		return Analytics{}, fmt.Errorf("analytics metrics: %w", err)
	}

	err = r.db.QueryRow(ctx, `
		SELECT count(*) FILTER (WHERE created_at >= $1), count(*) FILTER (WHERE created_at < $1)
		FROM users
		WHERE role = 'customer' AND created_at >= $2 AND created_at < $3
	`, w.Start, w.PrevStart, w.End).Scan(&m.Customers.Current, &m.Customers.Previous)
	if err != nil {
		return Analytics{}, fmt.Errorf("analytics customers: %w", err)
	}

	a.SalesData, err = queryAll(ctx, r.db, "sales series", `
		SELECT to_char(created_at, '`+layout+`') AS bucket, sum(total), count(*)
		FROM orders
		WHERE order_status <> 'cancelled' AND created_at >= $1 AND created_at < $2
		GROUP BY bucket
		ORDER BY bucket
	`, func(row pgx.CollectableRow) (SalesPoint, error) {
		var p SalesPoint
		err := row.Scan(&p.Date, &p.Revenue, &p.Orders)
		return p, err
	}, w.Start, w.End)
	if err != nil {
		return Analytics{}, err
	}

	a.UserRegistrations, err = queryAll(ctx, r.db, "registration series", `
		SELECT to_char(created_at, '`+layout+`') AS bucket, count(*)
		FROM users
		WHERE role = 'customer' AND created_at >= $1 AND created_at < $2
		GROUP BY bucket
		ORDER BY bucket
	`, func(row pgx.CollectableRow) (RegistrationPoint, error) {
		var p RegistrationPoint
		err := row.Scan(&p.Date, &p.Registrations)
		return p, err
	}, w.Start, w.End)
	if err != nil {
		return Analytics{}, err
	}

	a.ProductPerformance, err = queryAll(ctx, r.db, "product performance", productSales, scanProductSales, w.Start, w.End, analyticsTop)
	if err != nil {
		return Analytics{}, err
	}
	if a.TopProducts, err = r.topProducts(ctx, w, a.ProductPerformance); err != nil {
		return Analytics{}, err
	}

	a.CategoryPerformance, err = queryAll(ctx, r.db, "category performance", `
		SELECT c.id, c.name, sum(i.quantity), sum(i.quantity * i.price) AS revenue
		FROM order_items i
		JOIN orders o ON o.id = i.order_id
		JOIN products p ON p.id = i.product_id
		JOIN categories c ON c.id = p.category_id
		WHERE o.order_status <> 'cancelled' AND o.created_at >= $1 AND o.created_at < $2
		GROUP BY c.id
		ORDER BY revenue DESC, c.name
	`, func(row pgx.CollectableRow) (CategorySales, error) {
		var cs CategorySales
		err := row.Scan(&cs.CategoryID, &cs.CategoryName, &cs.TotalSold, &cs.Revenue)
		return cs, err
	}, w.Start, w.End)
	if err != nil {
		return Analytics{}, err
	}

	a.OrdersByStatus, err = queryAll(ctx, r.db, "orders by status", `
		SELECT order_status, count(*) AS n
		FROM orders
		WHERE created_at >= $1 AND created_at < $2
		GROUP BY order_status
		ORDER BY n DESC, order_status
	`, func(row pgx.CollectableRow) (StatusCount, error) {
		var s StatusCount
		err := row.Scan(&s.Status, &s.Count)
		return s, err
	}, w.Start, w.End)
	if err != nil {
		return Analytics{}, err
	}

	a.PaymentMethods, err = queryAll(ctx, r.db, "payment methods", `
		SELECT payment_method, count(*), COALESCE(sum(total), 0) AS revenue
		FROM orders
		WHERE order_status <> 'cancelled' AND created_at >= $1 AND created_at < $2
		GROUP BY payment_method
		ORDER BY revenue DESC
	`, func(row pgx.CollectableRow) (MethodSplit, error) {
		var s MethodSplit
		err := row.Scan(&s.Method, &s.Orders, &s.Revenue)
		return s, err
	}, w.Start, w.End)
	if err != nil {
		return Analytics{}, err
	}

	a.CustomerInsights, err = queryAll(ctx, r.db, "customer insights", `
		SELECT shipping_address->>'city' AS city, count(DISTINCT user_id), sum(total) AS revenue
		FROM orders
		WHERE order_status <> 'cancelled' AND created_at >= $1 AND created_at < $2
		  AND COALESCE(shipping_address->>'city', '') <> ''
		GROUP BY city
		ORDER BY revenue DESC
		LIMIT 10
	`, func(row pgx.CollectableRow) (CityInsight, error) {
		var ci CityInsight
		err := row.Scan(&ci.City, &ci.Customers, &ci.Revenue)
		return ci, err
	}, w.Start, w.End)
	if err != nil {
		return Analytics{}, err
	}
	return a, nil
}

// topProducts pairs the ten best sellers with their units sold in the
// previous window.
func (r *Repo) topProducts(ctx context.Context, w Window, perf []ProductSales) ([]TopProduct, error) {
	if len(perf) > dashboardTop {
		perf = perf[:dashboardTop]
	}
	out := make([]TopProduct, len(perf))
	if len(perf) == 0 {
		return out, nil
	}
	ids := make([]int64, len(perf))
	for i, p := range perf {
		ids[i] = p.ProductID
		out[i] = TopProduct{ProductID: p.ProductID, Name: p.Name, Sales: p.TotalSold, Revenue: p.Revenue}
	}

	rows, err := r.db.Query(ctx, `
		SELECT i.product_id, sum(i.quantity)
		FROM order_items i
		JOIN orders o ON o.id = i.order_id
		WHERE o.order_status <> 'cancelled' AND o.created_at >= $1 AND o.created_at < $2
		  AND i.product_id = ANY($3)
		GROUP BY i.product_id
	`, w.PrevStart, w.Start, ids)
	if err != nil {
		return nil, fmt.Errorf("previous product sales: %w", err)
	}
	defer rows.Close()
	prev := make(map[int64]int64, len(ids))
	for rows.Next() {
		var id, sold int64
		if err := rows.Scan(&id, &sold); err != nil {
			return nil, err
		}
		prev[id] = sold
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		out[i].PreviousSold = prev[out[i].ProductID]
	}
	return out, nil
}

const selectCustomer = `
	SELECT u.id, u.first_name, u.last_name, u.email, u.phone, u.role, u.is_active, u.email_verified,
	       u.last_login_at, u.created_at, u.updated_at,
	       count(o.id),
	       COALESCE(sum(o.total) FILTER (WHERE o.order_status <> 'cancelled'), 0),
	       max(o.created_at)
	FROM users u
	LEFT JOIN orders o ON o.user_id = u.id`

func scanCustomer(row pgx.Row) (Customer, error) {
	var c Customer
	u := &c.User
	err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.Phone, &u.Role, &u.IsActive, &u.EmailVerified,
		&u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt,
		&c.Stats.OrderCount, &c.Stats.TotalSpent, &c.Stats.LastOrderDate)
	return c, err
}

func customerWhere(f CustomerFilter) *db.Where {
	w := &db.Where{}
	w.Add("u.role = ?", user.RoleCustomer)
	if f.Search != "" {
		like := "%" + f.Search + "%"
		w.Add("(u.first_name ILIKE ? OR u.last_name ILIKE ? OR u.email ILIKE ? OR u.phone ILIKE ?)", like, like, like, like)
	}
	switch f.Status {
	case "active":
		w.Raw("u.is_active")
	case "inactive":
		w.Raw("NOT u.is_active")
	}
	return w
}

// Customers lists customers with their order stats, newest first. A zero
// Limit returns every match.
func (r *Repo) Customers(ctx context.Context, f CustomerFilter) ([]Customer, int, error) {
	w := customerWhere(f)

	var total int
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM users u`+w.String(), w.Args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count customers: %w", err)
	}

	q := selectCustomer + w.String() + " GROUP BY u.id ORDER BY u.created_at DESC, u.id DESC"
	args := w.Args
	if f.Limit > 0 {
		var page string
		page, args = w.Page(f.Limit, f.Offset)
		q += page
	}
	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list customers: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Customer, error) { return scanCustomer(row) })
	if err != nil {
		return nil, 0, fmt.Errorf("scan customer: %w", err)
	}
	return out, total, nil
}

func (r *Repo) Customer(ctx context.Context, id int64) (Customer, error) {
	c, err := scanCustomer(r.db.QueryRow(ctx, selectCustomer+` WHERE u.id = $1 GROUP BY u.id`, id))
	if err != nil {
		return Customer{}, db.Translate(err, "User", "")
	}
	return c, nil
}

// SetActive toggles a user's access. Deactivation also revokes every
// outstanding refresh token.
func (r *Repo) SetActive(ctx context.Context, id int64, active bool) (Customer, error) {
	err := db.InTx(ctx, r.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE users SET is_active = $2, updated_at = now() WHERE id = $1`, id, active)
		if err != nil {
			return fmt.Errorf("update user status: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return apperr.NotFound("User")
		}
		if !active {
			_, err = tx.Exec(ctx, `UPDATE refresh_tokens SET revoked_at = now() WHERE user_id = $1 AND revoked_at IS NULL`, id)
			if err != nil {
				return fmt.Errorf("revoke sessions: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return Customer{}, err
	}
	return r.Customer(ctx, id)
}

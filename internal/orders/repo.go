package orders

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"storefront/internal/apperr"
	"storefront/internal/db"
	"storefront/internal/domain/order"
)

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{db: db}
}

func (r *Repo) CartLines(ctx context.Context, userID int64) ([]CartLine, error) {
	rows, err := r.db.Query(ctx, `
		SELECT ci.product_id, ci.quantity, ci.selected_size, ci.selected_color,
		       p.id IS NOT NULL, COALESCE(p.name, ''), COALESCE(p.price, 0), p.original_price,
		       COALESCE(p.images, '{}'), COALESCE(p.stock, 0), COALESCE(p.in_stock, false),
		       COALESCE(p.is_active, false)
		FROM cart_items ci
		LEFT JOIN products p ON p.id = ci.product_id AND p.deleted_at IS NULL
		WHERE ci.user_id = $1
		ORDER BY ci.added_at, ci.id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("load cart lines: %w", err)
	}
	defer rows.Close()

	var out []CartLine
	for rows.Next() {
		var l CartLine
		if err := rows.Scan(&l.ProductID, &l.Quantity, &l.SelectedSize, &l.SelectedColor, &l.Exists, &l.Name,
			&l.Price, &l.OriginalPrice, &l.Images, &l.Stock, &l.InStock, &l.IsActive); err != nil {
			return nil, fmt.Errorf("scan cart line: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// Create stores the order, decrements stock and empties the cart in one
// transaction. A line whose product no longer has enough stock rolls the
// whole placement back.
func (r *Repo) Create(ctx context.Context, o *order.Order) error {
	err := db.InTx(ctx, r.db, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO orders (order_number, user_id, shipping_address, billing_address, payment_method,
			  payment_status, payment_id, razorpay_order_id, order_status, subtotal, discount, tax, shipping,
			  total, coupon_code, estimated_delivery, notes)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
			RETURNING id, created_at, updated_at
		`, o.OrderNumber, o.UserID, o.ShippingAddress, o.BillingAddress, o.PaymentMethod, o.PaymentStatus,
			o.PaymentID, o.RazorpayOrderID, o.OrderStatus, o.Subtotal, o.Discount, o.Tax, o.Shipping, o.Total,
			o.CouponCode, o.EstimatedDelivery, o.Notes).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
		if err != nil {
			return err
		}

		for _, it := range o.Items {
			if _, err := tx.Exec(ctx, `
				INSERT INTO order_items (order_id, product_id, name, quantity, price, original_price,
				  selected_size, selected_color, image)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
			`, o.ID, it.ProductID, it.Name, it.Quantity, it.Price, it.OriginalPrice, it.SelectedSize,
				it.SelectedColor, it.Image); err != nil {
				return fmt.Errorf("insert order item: %w", err)
			}
			ct, err := tx.Exec(ctx, `
				UPDATE products SET stock = stock - $2, in_stock = stock - $2 > 0, updated_at = now()
				WHERE id = $1 AND stock >= $2 AND deleted_at IS NULL
			`, it.ProductID, it.Quantity)
			if err != nil {
				return fmt.Errorf("decrement stock: %w", err)
			}
			if ct.RowsAffected() == 0 {
				return apperr.Invalid("Insufficient stock for %s", it.Name)
			}
		}

		for _, h := range o.StatusHistory {
			if err := insertHistory(ctx, tx, o.ID, h); err != nil {
				return err
			}
		}

		_, err = tx.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, o.UserID)
		return err
	})
	if _, ok := apperr.Message(err); ok {
		return err
	}
	if err := paymentConflict(err); err != nil {
		return err
	}
	if db.IsUniqueViolation(err) {
		return errDuplicateNumber
	}
	if err != nil {
		return fmt.Errorf("create order: %w", err)
	}
	return nil
}

var errDuplicateNumber = errors.New("duplicate order number")

// paymentConflict reports a second order claiming the same gateway order
// or payment id.
func paymentConflict(err error) error {
	switch db.UniqueConstraint(err) {
	case "orders_razorpay_order_key", "orders_payment_id_key":
		return errPaymentProcessed()
	}
	return nil
}

func insertHistory(ctx context.Context, tx pgx.Tx, orderID int64, h order.StatusChange) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO order_status_history (order_id, status, notes, updated_by, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, orderID, h.Status, h.Notes, h.UpdatedBy, h.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert status history: %w", err)
	}
	return nil
}

const selectOrder = `
	SELECT o.id, o.order_number, o.user_id, o.shipping_address, o.billing_address, o.payment_method,
	       o.payment_status, o.payment_id, o.razorpay_order_id, o.order_status, o.tracking_number,
	       o.subtotal, o.discount, o.tax, o.shipping, o.total, o.coupon_code, o.estimated_delivery,
	       o.delivered_at, o.cancelled_at, o.cancellation_reason, o.notes, o.created_at, o.updated_at,
	       u.id, u.first_name, u.last_name, u.email, u.phone
	FROM orders o
	JOIN users u ON u.id = o.user_id`

func scanOrder(row pgx.Row) (order.Order, error) {
	var (
		o order.Order
		c order.Customer
	)
	err := row.Scan(&o.ID, &o.OrderNumber, &o.UserID, &o.ShippingAddress, &o.BillingAddress, &o.PaymentMethod,
		&o.PaymentStatus, &o.PaymentID, &o.RazorpayOrderID, &o.OrderStatus, &o.TrackingNumber,
		&o.Subtotal, &o.Discount, &o.Tax, &o.Shipping, &o.Total, &o.CouponCode, &o.EstimatedDelivery,
		&o.DeliveredAt, &o.CancelledAt, &o.CancellationReason, &o.Notes, &o.CreatedAt, &o.UpdatedAt,
		&c.ID, &c.FirstName, &c.LastName, &c.Email, &c.Phone)
	o.Customer = &c
	return o, err
}

// load attaches items and history to the scanned orders.
func (r *Repo) load(ctx context.Context, orders []order.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]int64, len(orders))
	idx := make(map[int64]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		idx[o.ID] = i
	}

	rows, err := r.db.Query(ctx, `
		SELECT order_id, product_id, name, quantity, price, original_price, selected_size, selected_color, image
		FROM order_items WHERE order_id = ANY($1) ORDER BY id
	`, ids)
	if err != nil {
		return fmt.Errorf("load order items: %w", err)
	}
	for rows.Next() {
		var (
			oid int64
			it  order.Item
		)
		if err := rows.Scan(&oid, &it.ProductID, &it.Name, &it.Quantity, &it.Price, &it.OriginalPrice,
			&it.SelectedSize, &it.SelectedColor, &it.Image); err != nil {
			rows.Close()
			return fmt.Errorf("scan order item: %w", err)
		}
		o := &orders[idx[oid]]
		o.Items = append(o.Items, it)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = r.db.Query(ctx, `
		SELECT order_id, status, notes, updated_by, updated_at
		FROM order_status_history WHERE order_id = ANY($1) ORDER BY updated_at, id
	`, ids)
	if err != nil {
		return fmt.Errorf("load order history: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			oid int64
			h   order.StatusChange
		)
		if err := rows.Scan(&oid, &h.Status, &h.Notes, &h.UpdatedBy, &h.UpdatedAt); err != nil {
			return fmt.Errorf("scan order history: %w", err)
		}
		o := &orders[idx[oid]]
		o.StatusHistory = append(o.StatusHistory, h)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for i := range orders {
		orders[i].Fill()
	}
	return nil
}

func (r *Repo) one(ctx context.Context, where string, args ...any) (order.Order, error) {
	o, err := scanOrder(r.db.QueryRow(ctx, selectOrder+" WHERE "+where+" LIMIT 1", args...))
	if err != nil {
		return order.Order{}, db.Translate(err, "Order", "")
	}
	list := []order.Order{o}
	if err := r.load(ctx, list); err != nil {
		return order.Order{}, err
	}
	return list[0], nil
}

// Get accepts the public order number or the numeric id. The order number
// wins when both could match.
func (r *Repo) Get(ctx context.Context, key string) (order.Order, error) {
	var id *int64
	if n, err := strconv.ParseInt(key, 10, 64); err == nil {
		id = &n
	}
	return r.one(ctx, `(o.order_number = upper($1) OR o.id = $2) ORDER BY o.order_number = upper($1) DESC`, key, id)
}

func (r *Repo) ByRazorpayOrder(ctx context.Context, razorpayOrderID string) (order.Order, error) {
	return r.one(ctx, `o.razorpay_order_id = $1`, razorpayOrderID)
}

func listWhere(f ListFilter) *db.Where {
	w := &db.Where{}
	if f.UserID > 0 {
		w.Add("o.user_id = ?", f.UserID)
	}
	if f.Status != "" {
		w.Add("o.order_status = ?", f.Status)
	}
	if f.PaymentStatus != "" {
		w.Add("o.payment_status = ?", f.PaymentStatus)
	}
	if f.From != nil {
		w.Add("o.created_at >= ?", *f.From)
	}
	if f.To != nil {
		w.Add("o.created_at < ?", *f.To)
	}
	if f.Search != "" {
		like := "%" + f.Search + "%"
		w.Add("(o.order_number ILIKE ? OR u.email ILIKE ?)", like, like)
	}
	return w
}

func (r *Repo) List(ctx context.Context, f ListFilter) ([]order.Order, int, error) {
	w := listWhere(f)

	var total int
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM orders o JOIN users u ON u.id = o.user_id`+w.String(), w.Args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	page, args := w.Page(f.Limit, f.Offset)
	q := selectOrder + w.String() + " ORDER BY o.created_at DESC, o.id DESC" + page
	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	out := []order.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, 0, fmt.Errorf("scan order: %w", err)
		}
		out = append(out, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, r.load(ctx, out)
}

// Transition applies t under a row lock. The order must still be in t.From,
// otherwise a concurrent update won and the caller gets a conflict.
func (r *Repo) Transition(ctx context.Context, id int64, t Transition) (order.Order, error) {
	err := db.InTx(ctx, r.db, func(tx pgx.Tx) error {
		var current string
		if err := tx.QueryRow(ctx, `SELECT order_status FROM orders WHERE id = $1 FOR UPDATE`, id).Scan(&current); err != nil {
			return db.Translate(err, "Order", "")
		}
		if current != t.From {
			return apperr.Conflict("Order status changed from %s to %s, please retry", t.From, current)
		}

		var deliveredAt, cancelledAt *time.Time
		if t.To == order.StatusDelivered && t.From != order.StatusDelivered {
			deliveredAt = &t.At
		}
		if t.To == order.StatusCancelled {
			cancelledAt = &t.At
		}
		_, err := tx.Exec(ctx, `
			UPDATE orders SET
			  order_status        = $2,
			  tracking_number     = COALESCE(NULLIF($3, ''), tracking_number),
			  delivered_at        = COALESCE($4, delivered_at),
			  cancelled_at        = COALESCE($5, cancelled_at),
			  cancellation_reason = COALESCE(NULLIF($6, ''), cancellation_reason),
			  payment_status      = COALESCE(NULLIF($7, ''), payment_status),
			  payment_id          = COALESCE(NULLIF($8, ''), payment_id),
			  updated_at          = $9
			WHERE id = $1
		`, id, t.To, t.TrackingNumber, deliveredAt, cancelledAt, t.CancellationReason, t.PaymentStatus, t.PaymentID, t.At)
		if err != nil {
			return fmt.Errorf("update order: %w", err)
		}

		if t.RecordHistory {
			if err := insertHistory(ctx, tx, id, order.StatusChange{Status: t.To, Notes: t.Notes, UpdatedBy: t.By, UpdatedAt: t.At}); err != nil {
				return err
			}
		}

		if t.RestoreStock {
			_, err := tx.Exec(ctx, `
				UPDATE products p SET stock = p.stock + oi.quantity, in_stock = true, updated_at = now()
				FROM (SELECT product_id, SUM(quantity) AS quantity FROM order_items WHERE order_id = $1 GROUP BY product_id) oi
				WHERE p.id = oi.product_id
			`, id)
			if err != nil {
				return fmt.Errorf("restore stock: %w", err)
			}
		}
		return nil
	})
	if perr := paymentConflict(err); perr != nil {
		return order.Order{}, perr
	}
	if err != nil {
		return order.Order{}, err
	}
	return r.one(ctx, `o.id = $1`, id)
}

func (r *Repo) SetPayment(ctx context.Context, id int64, status, paymentID string) (order.Order, error) {
	ct, err := r.db.Exec(ctx, `
		UPDATE orders SET payment_status = $2, payment_id = COALESCE(NULLIF($3, ''), payment_id), updated_at = now()
		WHERE id = $1
	`, id, status, paymentID)
	if err != nil {
		if perr := paymentConflict(err); perr != nil {
			return order.Order{}, perr
		}
		return order.Order{}, fmt.Errorf("update payment: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return order.Order{}, apperr.NotFound("Order")
	}
	return r.one(ctx, `o.id = $1`, id)
}

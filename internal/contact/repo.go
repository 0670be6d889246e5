package contact

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"storefront/internal/db"
	"storefront/internal/domain/contact"
)

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{db: db}
}

const messageColumns = `id, name, email, phone, subject, message, status, user_id, ip, user_agent, created_at, updated_at`

func scan(row pgx.Row) (contact.Message, error) {
	var m contact.Message
	err := row.Scan(&m.ID, &m.Name, &m.Email, &m.Phone, &m.Subject, &m.Message, &m.Status, &m.UserID,
		&m.IP, &m.UserAgent, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

func (r *Repo) Create(ctx context.Context, m contact.Message) (contact.Message, error) {
	out, err := scan(r.db.QueryRow(ctx, `
		INSERT INTO contact_messages (name, email, phone, subject, message, user_id, ip, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+messageColumns,
		m.Name, m.Email, m.Phone, m.Subject, m.Message, m.UserID, m.IP, m.UserAgent))
	if err != nil {
		return contact.Message{}, fmt.Errorf("create contact message: %w", err)
	}
	return out, nil
}

func (r *Repo) List(ctx context.Context, status string, limit, offset int) ([]contact.Message, int, error) {
	var w db.Where
	if status != "" {
		w.Add("status = ?", status)
	}
	var total int
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM contact_messages`+w.String(), w.Args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count contact messages: %w", err)
	}
	page, args := w.Page(limit, offset)
	rows, err := r.db.Query(ctx, `SELECT `+messageColumns+` FROM contact_messages`+w.String()+
		` ORDER BY created_at DESC, id DESC`+page, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list contact messages: %w", err)
	}
	defer rows.Close()

	out := []contact.Message{}
	for rows.Next() {
		m, err := scan(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan contact message: %w", err)
		}
		out = append(out, m)
	}
	return out, total, rows.Err()
}

func (r *Repo) SetStatus(ctx context.Context, id int64, status string) (contact.Message, error) {
	m, err := scan(r.db.QueryRow(ctx, `
		UPDATE contact_messages SET status = $2, updated_at = now() WHERE id = $1
		RETURNING `+messageColumns, id, status))
	return m, db.Translate(err, "Message", "")
}

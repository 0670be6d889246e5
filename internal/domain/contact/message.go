package contact

import "time"

const (
	StatusNew       = "new"
	StatusRead      = "read"
	StatusResponded = "responded"
	StatusClosed    = "closed"
)

type Message struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	Subject   string    `json:"subject"`
	Message   string    `json:"message"`
	Status    string    `json:"status"`
	UserID    *int64    `json:"userId,omitempty"`
	IP        string    `json:"ipAddress,omitempty"`
	UserAgent string    `json:"userAgent,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

package review

import "time"

type Review struct {
	ID         int64     `json:"id"`
	ProductID  int64     `json:"productId"`
	UserID     int64     `json:"userId"`
	UserName   string    `json:"userName"`
	Rating     int       `json:"rating"`
	Comment    string    `json:"comment"`
	IsVerified bool      `json:"isVerified"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

package cart

import (
	"time"

	"github.com/shopspring/decimal"

	"storefront/internal/domain/product"
)

const MaxQuantity = 100

type Item struct {
	ID            int64            `json:"id"`
	ProductID     int64            `json:"productId"`
	Quantity      int              `json:"quantity"`
	SelectedSize  string           `json:"selectedSize"`
	SelectedColor string           `json:"selectedColor"`
	AddedAt       time.Time        `json:"addedAt"`
	Product       *product.Summary `json:"product"`
}

type Cart struct {
	Items       []Item          `json:"items"`
	TotalItems  int             `json:"totalItems"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
}

// New computes the totals. Lines whose product is gone do not count.
func New(items []Item) Cart {
	c := Cart{Items: items, TotalAmount: decimal.Zero}
	if c.Items == nil {
		c.Items = []Item{}
	}
	for _, it := range c.Items {
		c.TotalItems += it.Quantity
		if it.Product != nil {
			c.TotalAmount = c.TotalAmount.Add(it.Product.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
		}
	}
	return c
}

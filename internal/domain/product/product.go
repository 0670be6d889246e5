package product

import (
	"time"

	"github.com/shopspring/decimal"
)

// CategoryRef is the slice of the category embedded in product responses.
type CategoryRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type Product struct {
	ID            int64            `json:"id"`
	Name          string           `json:"name"`
	Description   string           `json:"description"`
	Price         decimal.Decimal  `json:"price"`
	OriginalPrice *decimal.Decimal `json:"originalPrice,omitempty"`
	CategoryID    int64            `json:"-"`
	Category      CategoryRef      `json:"category"`
	Subcategory   string           `json:"subcategory"`
	Material      string           `json:"material"`
	Colors        []string         `json:"colors"`
	Sizes         []string         `json:"sizes"`
	Images        []string         `json:"images"`
	Tags          []string         `json:"tags"`
	Stock         int              `json:"stock"`
	Rating        decimal.Decimal  `json:"rating"`
	ReviewCount   int              `json:"reviewCount"`
	InStock       bool             `json:"inStock"`
	IsFeatured    bool             `json:"isFeatured"`
	IsNew         bool             `json:"isNew"`
	IsActive      bool             `json:"isActive"`
	CreatedBy     *int64           `json:"createdBy,omitempty"`
	UpdatedBy     *int64           `json:"updatedBy,omitempty"`
	CreatedAt     time.Time        `json:"createdAt"`
	UpdatedAt     time.Time        `json:"updatedAt"`

	DiscountPercentage int  `json:"discountPercentage"`
	IsAvailable        bool `json:"isAvailable"`
}

var hundred = decimal.NewFromInt(100)

// DiscountPercent is round((original-price)/original*100) when the original
// price is above the selling price, else 0.
func DiscountPercent(price decimal.Decimal, original *decimal.Decimal) int {
	if original == nil || !original.GreaterThan(price) || original.IsZero() {
		return 0
	}
	return int(original.Sub(price).Div(*original).Mul(hundred).Round(0).IntPart())
}

// Available reports whether the product can be bought right now.
func (p Product) Available() bool {
	return p.IsActive && p.InStock && p.Stock > 0
}

// Fill sets the derived fields. Stores call it after every scan.
func (p *Product) Fill() {
	p.DiscountPercentage = DiscountPercent(p.Price, p.OriginalPrice)
	p.IsAvailable = p.Available()
	if p.Colors == nil {
		p.Colors = []string{}
	}
	if p.Sizes == nil {
		p.Sizes = []string{}
	}
	if p.Images == nil {
		p.Images = []string{}
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
}

// Summary is the product snapshot shown inside carts and wishlists.
type Summary struct {
	ID            int64            `json:"id"`
	Name          string           `json:"name"`
	Price         decimal.Decimal  `json:"price"`
	OriginalPrice *decimal.Decimal `json:"originalPrice,omitempty"`
	Images        []string         `json:"images"`
	Stock         int              `json:"stock"`
	InStock       bool             `json:"inStock"`
	IsActive      bool             `json:"isActive"`
	Rating        decimal.Decimal  `json:"rating"`
	ReviewCount   int              `json:"reviewCount"`
}

func (s Summary) Available() bool {
	return s.IsActive && s.InStock && s.Stock > 0
}

func (s Summary) FirstImage() string {
	if len(s.Images) == 0 {
		return ""
	}
	return s.Images[0]
}

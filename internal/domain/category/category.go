package category

import "time"

type Subcategory struct {
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description,omitempty"`
}

type Category struct {
	ID            int64         `json:"id"`
	Name          string        `json:"name"`
	Slug          string        `json:"slug"`
	Description   string        `json:"description"`
	Image         string        `json:"image"`
	Subcategories []Subcategory `json:"subcategories"`
	Featured      bool          `json:"featured"`
	SortOrder     int           `json:"sortOrder"`
	IsActive      bool          `json:"isActive"`
	ProductCount  int           `json:"productCount"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

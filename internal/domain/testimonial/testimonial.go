// Package testimonial holds the curated customer reviews shown on the
// storefront home page. They are not tied to products or users.
package testimonial

import "time"

type Testimonial struct {
	ID           int64     `json:"id"`
	CustomerName string    `json:"customerName"`
	Location     string    `json:"location"`
	Rating       int       `json:"rating"`
	Comment      string    `json:"comment"`
	IsActive     bool      `json:"isActive"`
	DisplayOrder int       `json:"displayOrder"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

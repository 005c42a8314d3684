package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Availability is the display flag derived from a product's stock.
type Availability string

const (
	Available    Availability = "Available"
	NotAvailable Availability = "Not available"
)

// AvailabilityFor returns the availability a product with the given stock must carry.
func AvailabilityFor(count int) Availability {
	if count > 0 {
		return Available
	}
	return NotAvailable
}

type Product struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Price        decimal.Decimal `json:"price"`
	Count        int             `json:"count"`
	Availability Availability    `json:"availability"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// ProductPatch carries the fields of a product update; nil fields are left untouched.
type ProductPatch struct {
	Name        *string          `json:"name,omitempty"`
	Description *string          `json:"description,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	Count       *int             `json:"count,omitempty"`
}

// Apply copies the set fields of the patch onto p and re-derives availability.
func (pp ProductPatch) Apply(p *Product) {
	if pp.Name != nil {
		p.Name = *pp.Name
	}
	if pp.Description != nil {
		p.Description = *pp.Description
	}
	if pp.Price != nil {
		p.Price = *pp.Price
	}
	if pp.Count != nil {
		p.Count = *pp.Count
	}
	p.Availability = AvailabilityFor(p.Count)
}

package schema

import (
	"time"

	"gorm.io/datatypes"
)

// PropertyCategory tells whether a listing is for rent or for sale.
type PropertyCategory string

const (
	CategoryRent PropertyCategory = "RENT"
	CategorySale PropertyCategory = "SALE"
)

// PropertyTypes lists accepted listing types.
var PropertyTypes = []string{"apartment", "house", "villa", "land", "commercial", "office", "studio"}

// Property is a real-estate listing.
type Property struct {
	ID           uint                        `gorm:"primarykey" json:"id"`
	Title        string                      `gorm:"type:varchar(200);not null" json:"title"`
	Description  string                      `gorm:"type:text" json:"description,omitempty"`
	Category     PropertyCategory            `gorm:"type:varchar(8);not null;index" json:"category"`
	Type         string                      `gorm:"type:varchar(32);not null;index" json:"type"`
	Price        float64                     `gorm:"not null;index" json:"price"`
	PriceDisplay string                      `gorm:"type:varchar(64)" json:"price_display,omitempty"`
	Location     string                      `gorm:"type:varchar(255)" json:"location,omitempty"`
	City         string                      `gorm:"type:varchar(120);index" json:"city"`
	Bedrooms     int                         `json:"bedrooms"`
	Bathrooms    int                         `json:"bathrooms"`
	Area         float64                     `json:"area"`
	Images       datatypes.JSONSlice[string] `json:"images"`
	Features     datatypes.JSONSlice[string] `json:"features"`
	IsActive     bool                        `gorm:"not null;index" json:"is_active"`
	IsFeatured   bool                        `gorm:"not null;default:false;index" json:"is_featured"`
	Views        int                         `gorm:"not null;default:0" json:"views"`
	CreatedByID  *uint                       `json:"created_by_id,omitempty"`
	CreatedAt    time.Time                   `json:"created_at"`
	UpdatedAt    time.Time                   `json:"updated_at"`
}

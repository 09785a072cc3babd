package models

// PropertyCreateRequest represents a new listing
type PropertyCreateRequest struct {
	Title        string   `json:"title" validate:"required,min=3,max=200"`
	Description  string   `json:"description" validate:"omitempty,max=10000" sanitize:"rich"`
	Category     string   `json:"category" validate:"required,oneof=RENT SALE"`
	Type         string   `json:"type" validate:"required,oneof=apartment house villa land commercial office studio"`
	Price        float64  `json:"price" validate:"gte=0"`
	PriceDisplay string   `json:"price_display" validate:"omitempty,max=64"`
	Location     string   `json:"location" validate:"omitempty,max=255"`
	City         string   `json:"city" validate:"required,min=2,max=120"`
	Bedrooms     int      `json:"bedrooms" validate:"gte=0,lte=50"`
	Bathrooms    int      `json:"bathrooms" validate:"gte=0,lte=50"`
	Area         float64  `json:"area" validate:"gte=0"`
	Images       []string `json:"images" validate:"omitempty,max=50,dive,url"`
	Features     []string `json:"features" validate:"omitempty,max=50,dive,min=1,max=60"`
	IsActive     *bool    `json:"is_active"`
	IsFeatured   bool     `json:"is_featured"`
}

// PropertyUpdateRequest represents a partial listing update
type PropertyUpdateRequest struct {
	Title        *string   `json:"title" validate:"omitempty,min=3,max=200"`
	Description  *string   `json:"description" validate:"omitempty,max=10000" sanitize:"rich"`
	Category     *string   `json:"category" validate:"omitempty,oneof=RENT SALE"`
	Type         *string   `json:"type" validate:"omitempty,oneof=apartment house villa land commercial office studio"`
	Price        *float64  `json:"price" validate:"omitempty,gte=0"`
	PriceDisplay *string   `json:"price_display" validate:"omitempty,max=64"`
	Location     *string   `json:"location" validate:"omitempty,max=255"`
	City         *string   `json:"city" validate:"omitempty,min=2,max=120"`
	Bedrooms     *int      `json:"bedrooms" validate:"omitempty,gte=0,lte=50"`
	Bathrooms    *int      `json:"bathrooms" validate:"omitempty,gte=0,lte=50"`
	Area         *float64  `json:"area" validate:"omitempty,gte=0"`
	Images       *[]string `json:"images" validate:"omitempty,max=50,dive,url"`
	Features     *[]string `json:"features" validate:"omitempty,max=50,dive,min=1,max=60"`
	IsActive     *bool     `json:"is_active"`
	IsFeatured   *bool     `json:"is_featured"`
}

// PropertyBulkUpdateRequest applies the same change to many listings
type PropertyBulkUpdateRequest struct {
	IDs        []uint   `json:"ids" validate:"required,min=1,max=500"`
	IsActive   *bool    `json:"is_active"`
	IsFeatured *bool    `json:"is_featured"`
	Price      *float64 `json:"price" validate:"omitempty,gte=0"`
}

// PropertyListQuery holds the public listing filters
type PropertyListQuery struct {
	Category   string   `query:"category" validate:"omitempty,oneof=RENT SALE"`
	Type       string   `query:"type" validate:"omitempty,oneof=apartment house villa land commercial office studio"`
	City       string   `query:"city" validate:"omitempty,max=120"`
	MinPrice   *float64 `query:"min_price" validate:"omitempty,gte=0"`
	MaxPrice   *float64 `query:"max_price" validate:"omitempty,gte=0"`
	Bedrooms   *int     `query:"bedrooms" validate:"omitempty,gte=0,lte=50"`
	MinArea    *float64 `query:"min_area" validate:"omitempty,gte=0"`
	Featured   *bool    `query:"featured"`
	IncludeAll bool     `query:"include_inactive"`
	Search     string   `query:"q" validate:"omitempty,max=120"`
	Page       int      `query:"page" validate:"omitempty,min=1"`
	Limit      int      `query:"limit" validate:"omitempty,min=1,max=100"`
	Sort       string   `query:"sort" validate:"omitempty,oneof=created_at price area views title"`
	Order      string   `query:"order" validate:"omitempty,oneof=asc desc"`
}

// BulkUpdateResponse reports how many listings changed
type BulkUpdateResponse struct {
	Updated int64 `json:"updated"`
}

// ImportResponse summarises a property import
type ImportResponse struct {
	Imported int           `json:"imported"`
	Failed   int           `json:"failed"`
	Errors   []ImportError `json:"errors,omitempty"`
}

// ImportError describes a rejected import row
type ImportError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// MediaResponse is returned after a media upload
type MediaResponse struct {
	URL    string   `json:"url"`
	Images []string `json:"images"`
}

// PropertyStats summarises the catalogue for the admin dashboard
type PropertyStats struct {
	Total        int64              `json:"total"`
	Active       int64              `json:"active"`
	Inactive     int64              `json:"inactive"`
	Featured     int64              `json:"featured"`
	TotalViews   int64              `json:"total_views"`
	ByCategory   map[string]int64   `json:"by_category"`
	ByType       map[string]int64   `json:"by_type"`
	AveragePrice map[string]float64 `json:"average_price"`
	TopCities    []CityCount        `json:"top_cities"`
}

// CityCount is the number of active listings in a city
type CityCount struct {
	City  string `json:"city"`
	Count int64  `json:"count"`
}

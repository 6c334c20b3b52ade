package domain

import "time"

// Product status constants.
const (
	ProductStatusDraft     = "draft"
	ProductStatusPublished = "published"
	ProductStatusArchived  = "archived"
)

// Sort orders accepted by product listing.
const (
	SortByNewest    = "newest"
	SortByPriceAsc  = "price_asc"
	SortByPriceDesc = "price_desc"
	SortByNameAsc   = "name_asc"
	SortByRating    = "rating"
)

// Product is a catalog entry. TotalRating and ReviewCount are derived from
// approved reviews and are only ever written by the rating aggregator.
type Product struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Slug        string         `json:"slug"`
	Description string         `json:"description"`
	CategoryID  *string        `json:"categoryId,omitempty"`
	Status      string         `json:"status"`
	BasePrice   int64          `json:"basePrice"`
	Currency    string         `json:"currency"`
	Stock       int            `json:"stock"`
	Images      []string       `json:"images"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	TotalRating float64        `json:"totalRating"`
	ReviewCount int            `json:"reviewCount"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// Rating returns the cached rating aggregate.
func (p *Product) Rating() RatingSummary {
	return RatingSummary{Average: p.TotalRating, Count: p.ReviewCount}
}

// InStock reports whether at least qty units are available.
func (p *Product) InStock(qty int) bool {
	return p.Stock >= qty
}

// CreateProductInput holds the fields a client may set on a new product.
type CreateProductInput struct {
	Name        string         `json:"name" validate:"required,min=1,max=255"`
	Description string         `json:"description" validate:"max=5000"`
	CategoryID  *string        `json:"categoryId" validate:"omitempty,uuid"`
	Status      string         `json:"status" validate:"omitempty,oneof=draft published archived"`
	BasePrice   int64          `json:"basePrice" validate:"gte=0"`
	Currency    string         `json:"currency" validate:"omitempty,len=3"`
	Stock       int            `json:"stock" validate:"gte=0"`
	Images      []string       `json:"images" validate:"omitempty,dive,url"`
	Metadata    map[string]any `json:"metadata"`
}

// UpdateProductInput holds optional product changes. Rating fields are
// deliberately absent.
type UpdateProductInput struct {
	Name        *string        `json:"name" validate:"omitempty,min=1,max=255"`
	Description *string        `json:"description" validate:"omitempty,max=5000"`
	CategoryID  *string        `json:"categoryId" validate:"omitempty,uuid"`
	Status      *string        `json:"status" validate:"omitempty,oneof=draft published archived"`
	BasePrice   *int64         `json:"basePrice" validate:"omitempty,gte=0"`
	Currency    *string        `json:"currency" validate:"omitempty,len=3"`
	Stock       *int           `json:"stock" validate:"omitempty,gte=0"`
	Images      []string       `json:"images" validate:"omitempty,dive,url"`
	Metadata    map[string]any `json:"metadata"`
}

// Apply copies the set fields of in onto p.
func (in UpdateProductInput) Apply(p *Product) {
	if in.Name != nil {
		p.Name = *in.Name
	}
	if in.Description != nil {
		p.Description = *in.Description
	}
	if in.CategoryID != nil {
		p.CategoryID = in.CategoryID
	}
	if in.Status != nil {
		p.Status = *in.Status
	}
	if in.BasePrice != nil {
		p.BasePrice = *in.BasePrice
	}
	if in.Currency != nil {
		p.Currency = *in.Currency
	}
	if in.Stock != nil {
		p.Stock = *in.Stock
	}
	if in.Images != nil {
		p.Images = in.Images
	}
	if in.Metadata != nil {
		p.Metadata = in.Metadata
	}
}

// IsValidStatus checks whether status is a known product status.
func IsValidStatus(status string) bool {
	switch status {
	case ProductStatusDraft, ProductStatusPublished, ProductStatusArchived:
		return true
	}
	return false
}

// IsValidSortBy checks a listing sort key. Empty means the default order.
func IsValidSortBy(sortBy string) bool {
	switch sortBy {
	case "", SortByNewest, SortByPriceAsc, SortByPriceDesc, SortByNameAsc, SortByRating:
		return true
	}
	return false
}

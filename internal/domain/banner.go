package domain

import "time"

// Banner positions on the storefront homepage.
const (
	BannerPositionHeroSlider     = "hero_slider"
	BannerPositionMidBanner      = "mid_banner"
	BannerPositionCategoryBanner = "category_banner"
)

// Banner link types.
const (
	BannerLinkTypeInternal = "internal"
	BannerLinkTypeExternal = "external"
)

// Banner is a promotional slot shown on the homepage.
type Banner struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Subtitle  *string    `json:"subtitle,omitempty"`
	ImageURL  string     `json:"imageUrl"`
	LinkURL   string     `json:"linkUrl"`
	LinkType  string     `json:"linkType"`
	Position  string     `json:"position"`
	SortOrder int        `json:"sortOrder"`
	IsActive  bool       `json:"isActive"`
	StartsAt  *time.Time `json:"startsAt,omitempty"`
	EndsAt    *time.Time `json:"endsAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// IsLive reports whether the banner is active and inside its schedule at now.
// StartsAt is inclusive, EndsAt exclusive.
func (b *Banner) IsLive(now time.Time) bool {
	if !b.IsActive {
		return false
	}
	if b.StartsAt != nil && now.Before(*b.StartsAt) {
		return false
	}
	if b.EndsAt != nil && !now.Before(*b.EndsAt) {
		return false
	}
	return true
}

type CreateBannerInput struct {
	Title     string     `json:"title" validate:"required,max=255"`
	Subtitle  *string    `json:"subtitle" validate:"omitempty,max=255"`
	ImageURL  string     `json:"imageUrl" validate:"required,url"`
	LinkURL   string     `json:"linkUrl" validate:"required"`
	LinkType  string     `json:"linkType" validate:"required,oneof=internal external"`
	Position  string     `json:"position" validate:"required,oneof=hero_slider mid_banner category_banner"`
	SortOrder int        `json:"sortOrder" validate:"gte=0"`
	IsActive  *bool      `json:"isActive"`
	StartsAt  *time.Time `json:"startsAt"`
	EndsAt    *time.Time `json:"endsAt"`
}

type UpdateBannerInput struct {
	Title     *string    `json:"title" validate:"omitempty,max=255"`
	Subtitle  *string    `json:"subtitle" validate:"omitempty,max=255"`
	ImageURL  *string    `json:"imageUrl" validate:"omitempty,url"`
	LinkURL   *string    `json:"linkUrl"`
	LinkType  *string    `json:"linkType" validate:"omitempty,oneof=internal external"`
	Position  *string    `json:"position" validate:"omitempty,oneof=hero_slider mid_banner category_banner"`
	SortOrder *int       `json:"sortOrder" validate:"omitempty,gte=0"`
	IsActive  *bool      `json:"isActive"`
	StartsAt  *time.Time `json:"startsAt"`
	EndsAt    *time.Time `json:"endsAt"`
}

// IsValidBannerPosition checks whether position is a known banner slot.
func IsValidBannerPosition(position string) bool {
	switch position {
	case BannerPositionHeroSlider, BannerPositionMidBanner, BannerPositionCategoryBanner:
		return true
	}
	return false
}

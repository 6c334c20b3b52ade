package domain

import "time"

// Homepage section types the storefront knows how to render.
const (
	SectionHero        = "hero"
	SectionCategories  = "categories"
	SectionFeatured    = "featured_products"
	SectionNewArrivals = "new_arrivals"
	SectionTopRated    = "top_rated"
	SectionBanners     = "banners"
)

// ThemeSettings is the singleton storefront appearance document.
type ThemeSettings struct {
	StoreName        string            `json:"storeName" validate:"required,max=100"`
	LogoURL          *string           `json:"logoUrl,omitempty" validate:"omitempty,url"`
	PrimaryColor     string            `json:"primaryColor" validate:"required,hexcolor"`
	SecondaryColor   string            `json:"secondaryColor" validate:"required,hexcolor"`
	FontFamily       string            `json:"fontFamily" validate:"required,max=100"`
	HomepageSections []HomepageSection `json:"homepageSections" validate:"dive"`
	UpdatedAt        time.Time         `json:"updatedAt"`
	UpdatedBy        string            `json:"updatedBy,omitempty"`
}

// HomepageSection is one ordered block on the homepage.
type HomepageSection struct {
	Type    string `json:"type" validate:"required,oneof=hero categories featured_products new_arrivals top_rated banners"`
	Title   string `json:"title" validate:"max=100"`
	Enabled bool   `json:"enabled"`
	Limit   int    `json:"limit" validate:"gte=0,lte=50"`
}

// DefaultTheme is served until an admin saves settings.
func DefaultTheme() ThemeSettings {
	return ThemeSettings{
		StoreName:      "AnasityShop",
		PrimaryColor:   "#1f2937",
		SecondaryColor: "#f59e0b",
		FontFamily:     "Inter",
		HomepageSections: []HomepageSection{
			{Type: SectionHero, Enabled: true},
			{Type: SectionCategories, Title: "Shop by category", Enabled: true, Limit: 8},
			{Type: SectionFeatured, Title: "Featured", Enabled: true, Limit: 8},
			{Type: SectionTopRated, Title: "Top rated", Enabled: true, Limit: 8},
		},
	}
}

// EnabledSections returns the sections to render, in order.
func (t *ThemeSettings) EnabledSections() []HomepageSection {
	out := make([]HomepageSection, 0, len(t.HomepageSections))
	for _, s := range t.HomepageSections {
		if s.Enabled {
			out = append(out, s)
		}
	}
	return out
}

// Homepage is the composed storefront landing payload.
type Homepage struct {
	Theme      ThemeSettings       `json:"theme"`
	Sections   []HomepageSection   `json:"sections"`
	Banners    map[string][]Banner `json:"banners"`
	TopRated   []Product           `json:"topRated,omitempty"`
	Categories []*Category         `json:"categories,omitempty"`
}

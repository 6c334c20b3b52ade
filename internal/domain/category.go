package domain

import (
	"sort"
	"time"
)

// Category is a node in the product category hierarchy.
type Category struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Slug         string      `json:"slug"`
	ParentID     *string     `json:"parentId,omitempty"`
	SortOrder    int         `json:"sortOrder"`
	IsActive     bool        `json:"isActive"`
	ImageURL     *string     `json:"imageUrl,omitempty"`
	Description  *string     `json:"description,omitempty"`
	Level        int         `json:"level"`
	ProductCount int         `json:"productCount"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
	Children     []*Category `json:"children,omitempty"`
}

type CreateCategoryInput struct {
	Name        string  `json:"name" validate:"required,min=1,max=255"`
	ParentID    *string `json:"parentId" validate:"omitempty,uuid"`
	SortOrder   int     `json:"sortOrder" validate:"gte=0"`
	IsActive    *bool   `json:"isActive"`
	ImageURL    *string `json:"imageUrl" validate:"omitempty,url"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
}

type UpdateCategoryInput struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=255"`
	ParentID    *string `json:"parentId" validate:"omitempty,uuid"`
	SortOrder   *int    `json:"sortOrder" validate:"omitempty,gte=0"`
	IsActive    *bool   `json:"isActive"`
	ImageURL    *string `json:"imageUrl" validate:"omitempty,url"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
}

// BuildCategoryTree nests a flat category list under their parents and sorts
// each level by SortOrder then Name. Categories whose parent is missing from
// the list are treated as roots. Level is recomputed from depth.
func BuildCategoryTree(flat []Category) []*Category {
	nodes := make(map[string]*Category, len(flat))
	for i := range flat {
		c := flat[i]
		c.Children = nil
		nodes[c.ID] = &c
	}

	var roots []*Category
	for i := range flat {
		n := nodes[flat[i].ID]
		if n.ParentID != nil {
			if parent, ok := nodes[*n.ParentID]; ok && parent != n {
				parent.Children = append(parent.Children, n)
				continue
			}
		}
		roots = append(roots, n)
	}

	var walk func(level []*Category, depth int)
	walk = func(level []*Category, depth int) {
		sort.SliceStable(level, func(i, j int) bool {
			if level[i].SortOrder != level[j].SortOrder {
				return level[i].SortOrder < level[j].SortOrder
			}
			return level[i].Name < level[j].Name
		})
		for _, n := range level {
			n.Level = depth
			walk(n.Children, depth+1)
		}
	}
	walk(roots, 0)
	return roots
}

package domain

import "time"

// MaxCartItemQuantity caps the quantity of a single line.
const MaxCartItemQuantity = 99

// Cart is a user's shopping cart. Subtotal and ItemCount are derived from
// Items by Recalculate, which must run before every save.
type Cart struct {
	UserID    string     `json:"userId"`
	Items     []CartItem `json:"items"`
	Currency  string     `json:"currency"`
	Subtotal  int64      `json:"subtotal"`
	ItemCount int        `json:"itemCount"`
	Version   int        `json:"version"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	ExpiresAt time.Time  `json:"expiresAt"`
}

// CartItem is one product line in a cart. Price is captured from the product
// when the line is added.
type CartItem struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Quantity  int    `json:"quantity"`
	ImageURL  string `json:"imageUrl,omitempty"`
}

// NewCart returns an empty cart for userID.
func NewCart(userID, currency string, now time.Time, ttl time.Duration) *Cart {
	return &Cart{
		UserID:    userID,
		Items:     []CartItem{},
		Currency:  currency,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// Recalculate recomputes Subtotal and ItemCount from Items.
func (c *Cart) Recalculate() {
	var subtotal int64
	var count int
	for _, it := range c.Items {
		subtotal += it.Price * int64(it.Quantity)
		count += it.Quantity
	}
	c.Subtotal = subtotal
	c.ItemCount = count
}

// FindItem returns the index of the line for productID, or -1.
func (c *Cart) FindItem(productID string) int {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// AddItem merges item into the cart: an existing line for the same product
// has its quantity increased and its price and name refreshed. The resulting
// quantity is capped at MaxCartItemQuantity.
func (c *Cart) AddItem(item CartItem) {
	if i := c.FindItem(item.ProductID); i >= 0 {
		existing := &c.Items[i]
		existing.Quantity = min(existing.Quantity+item.Quantity, MaxCartItemQuantity)
		existing.Price = item.Price
		existing.Name = item.Name
		existing.ImageURL = item.ImageURL
		return
	}
	item.Quantity = min(item.Quantity, MaxCartItemQuantity)
	c.Items = append(c.Items, item)
}

// SetQuantity changes a line's quantity; zero or less removes it. It returns
// false when the product is not in the cart.
func (c *Cart) SetQuantity(productID string, qty int) bool {
	i := c.FindItem(productID)
	if i < 0 {
		return false
	}
	if qty <= 0 {
		c.Items = append(c.Items[:i], c.Items[i+1:]...)
		return true
	}
	c.Items[i].Quantity = min(qty, MaxCartItemQuantity)
	return true
}

// RemoveItem drops the line for productID. It returns false when absent.
func (c *Cart) RemoveItem(productID string) bool {
	return c.SetQuantity(productID, 0)
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.Items = []CartItem{}
}

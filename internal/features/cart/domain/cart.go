package domain

// Item is one product selection in a user's cart.
type Item struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name,omitempty"`
	Price     float64 `json:"price,omitempty"`
	Quantity  int     `json:"quantity"`
	Size      string  `json:"size,omitempty"`
	Color     string  `json:"color,omitempty"`
	Image     string  `json:"image,omitempty"`
}

// Cart is the document the cart service keeps per user.
type Cart struct {
	UserID string `json:"userId"`
	Items  []Item `json:"items"`
}

// IsEmpty reports whether the cart has nothing to check out.
func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.Items) == 0
}

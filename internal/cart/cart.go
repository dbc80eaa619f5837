// Package cart holds the shopper's in-session cart and turns it into a
// recorded order at checkout.
package cart

import (
	"fmt"
	"sync"

	"gulf-store/internal/domain"
	"gulf-store/internal/notify"
)

// Cart is an ordered list of unique products with quantities of at least one.
// It is not persisted; a restart empties it.
type Cart struct {
	mu       sync.Mutex
	items    []domain.CartItem
	notifier notify.Notifier
}

// New returns an empty cart that reports additions to notifier.
func New(notifier notify.Notifier) *Cart {
	if notifier == nil {
		notifier = notify.Discard
	}
	return &Cart{notifier: notifier}
}

// AddedNotice is the message shown after a product lands in the cart.
func AddedNotice(name string) string {
	return fmt.Sprintf("تمت إضافة %s للسلة", name)
}

// Add increments the product's quantity, or appends it with quantity one.
// It returns the new quantity.
func (c *Cart) Add(p domain.Product) int {
	c.mu.Lock()
	qty := 1
	found := false
	for i := range c.items {
		if c.items[i].ID == p.ID {
			c.items[i].Quantity++
			qty = c.items[i].Quantity
			found = true
			break
		}
	}
	if !found {
		c.items = append(c.items, domain.CartItem{Product: p, Quantity: 1})
	}
	c.mu.Unlock()

	c.notifier.Notify(AddedNotice(p.Name))
	return qty
}

// UpdateQuantity shifts a line's quantity by delta, never below one. Unknown
// ids are ignored.
func (c *Cart) UpdateQuantity(id string, delta int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.items {
		if c.items[i].ID == id {
			c.items[i].Quantity = max(1, c.items[i].Quantity+delta)
			return
		}
	}
}

// Remove drops the line for id.
func (c *Cart) Remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.items {
		if c.items[i].ID == id {
			c.items = append(c.items[:i:i], c.items[i+1:]...)
			return
		}
	}
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = nil
}

// RemoveOrdered takes the ordered quantities out of the cart. Lines added or
// grown after the snapshot keep the difference.
func (c *Cart) RemoveOrdered(ordered []domain.CartItem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, o := range ordered {
		for i := range c.items {
			if c.items[i].ID != o.ID {
				continue
			}
			c.items[i].Quantity -= o.Quantity
			if c.items[i].Quantity <= 0 {
				c.items = append(c.items[:i:i], c.items[i+1:]...)
			}
			break
		}
	}
}

// Items returns a snapshot of the cart lines in insertion order.
func (c *Cart) Items() []domain.CartItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.CartItem{}, c.items...)
}

// Count is the sum of all quantities.
func (c *Cart) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, item := range c.items {
		n += item.Quantity
	}
	return n
}

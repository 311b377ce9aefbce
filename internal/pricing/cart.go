package pricing

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrItemNotFound is returned when an action names an item missing from the cart
	ErrItemNotFound = errors.New("cart item not found")

	// ErrInvalidParent is returned when an item would end up under something other than a root bundle header
	ErrInvalidParent = errors.New("parent must be a root bundle header")

	// ErrInvalidItem is returned for items with missing or out of range fields
	ErrInvalidItem = errors.New("invalid cart item")
)

// Cart is an arena of proposal items keyed by id with an explicit order.
// The tree has two levels: root items and children of root bundle headers.
// A Cart is never mutated in place; Reduce returns a new one.
type Cart struct {
	items map[uuid.UUID]Item
	order []uuid.UUID
}

// NewCart builds a cart from items in display order and recomputes auto-priced bundles
func NewCart(items []Item) (Cart, error) {
	c := Cart{items: make(map[uuid.UUID]Item, len(items)), order: make([]uuid.UUID, 0, len(items))}
	for _, it := range items {
		if it.ID == uuid.Nil {
			return Cart{}, fmt.Errorf("%w: missing id", ErrInvalidItem)
		}
		if _, dup := c.items[it.ID]; dup {
			return Cart{}, fmt.Errorf("%w: duplicate id %s", ErrInvalidItem, it.ID)
		}
		c.items[it.ID] = it
		c.order = append(c.order, it.ID)
	}
	for _, it := range items {
		if it.ParentID != nil {
			if err := c.checkParent(it, *it.ParentID); err != nil {
				return Cart{}, err
			}
		}
	}
	c.recalculateBundles()
	return c, nil
}

// Len returns the number of items
func (c Cart) Len() int {
	return len(c.order)
}

// Item returns the item with the given id
func (c Cart) Item(id uuid.UUID) (Item, bool) {
	it, ok := c.items[id]
	return it, ok
}

// Items returns every item, each root followed by its children
func (c Cart) Items() []Item {
	out := make([]Item, 0, len(c.order))
	for _, id := range c.order {
		it := c.items[id]
		if !it.IsRoot() {
			continue
		}
		out = append(out, it)
		out = append(out, c.Children(id)...)
	}
	return out
}

// Children returns the direct children of id in order
func (c Cart) Children(id uuid.UUID) []Item {
	var out []Item
	for _, cid := range c.order {
		it := c.items[cid]
		if it.ParentID != nil && *it.ParentID == id {
			out = append(out, it)
		}
	}
	return out
}

// Totals computes the financial summary of the cart
func (c Cart) Totals(hasVAT bool, vatRate decimal.Decimal) Totals {
	return ComputeTotals(c.Items(), hasVAT, vatRate)
}

func (c Cart) clone() Cart {
	n := Cart{items: make(map[uuid.UUID]Item, len(c.items)), order: make([]uuid.UUID, len(c.order))}
	for id, it := range c.items {
		n.items[id] = it
	}
	copy(n.order, c.order)
	return n
}

func (c Cart) checkParent(child Item, parentID uuid.UUID) error {
	parent, ok := c.items[parentID]
	if !ok || !parent.IsBundleHeader || !parent.IsRoot() || parentID == child.ID {
		return ErrInvalidParent
	}
	if child.IsBundleHeader {
		return fmt.Errorf("%w: bundle headers cannot be nested", ErrInvalidParent)
	}
	return nil
}

// recalculateBundles re-derives the price of every auto-mode bundle header
func (c *Cart) recalculateBundles() {
	all := make([]Item, 0, len(c.order))
	for _, id := range c.order {
		all = append(all, c.items[id])
	}
	for _, id := range c.order {
		it := c.items[id]
		if it.IsBundleHeader && !it.IsManualPrice {
			it.RetailPrice = BundleAutoPrice(id, all)
			c.items[id] = it
		}
	}
}

func (c *Cart) remove(id uuid.UUID) {
	delete(c.items, id)
	for i, oid := range c.order {
		if oid == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

// Action is one edit of a cart
type Action interface {
	apply(c *Cart) error
}

// Reduce applies action to a copy of cart and returns it with every auto-mode bundle
// recomputed. The input cart is left untouched.
func Reduce(cart Cart, action Action) (Cart, error) {
	next := cart.clone()
	if err := action.apply(&next); err != nil {
		return cart, err
	}
	next.recalculateBundles()
	return next, nil
}

// AddItem appends a new item. Item.ID must be set by the caller.
type AddItem struct {
	Item Item
}

func (a AddItem) apply(c *Cart) error {
	it := a.Item
	if it.ID == uuid.Nil {
		return fmt.Errorf("%w: missing id", ErrInvalidItem)
	}
	if _, dup := c.items[it.ID]; dup {
		return fmt.Errorf("%w: duplicate id %s", ErrInvalidItem, it.ID)
	}
	if it.ProductName == "" {
		return fmt.Errorf("%w: product name is required", ErrInvalidItem)
	}
	if it.Quantity.IsZero() {
		it.Quantity = decimal.NewFromInt(1)
	}
	if err := validateAmounts(it); err != nil {
		return err
	}
	if it.ParentID != nil {
		if err := c.checkParent(it, *it.ParentID); err != nil {
			return err
		}
	}
	if !it.IsBundleHeader {
		it.IsManualPrice = false
	}
	c.items[it.ID] = it
	c.order = append(c.order, it.ID)
	return nil
}

// RemoveItem deletes an item. Removing a bundle header removes its children.
type RemoveItem struct {
	ID uuid.UUID
}

func (a RemoveItem) apply(c *Cart) error {
	it, ok := c.items[a.ID]
	if !ok {
		return ErrItemNotFound
	}
	if it.IsBundleHeader {
		for _, child := range c.Children(a.ID) {
			c.remove(child.ID)
		}
	}
	c.remove(a.ID)
	return nil
}

// SetQuantity changes the quantity of an item
type SetQuantity struct {
	ID       uuid.UUID
	Quantity decimal.Decimal
}

func (a SetQuantity) apply(c *Cart) error {
	if !a.Quantity.IsPositive() {
		return fmt.Errorf("%w: quantity must be positive", ErrInvalidItem)
	}
	return c.update(a.ID, func(it *Item) error {
		it.Quantity = a.Quantity
		return nil
	})
}

// SetMarkup changes the markup percent applied to the base price
type SetMarkup struct {
	ID      uuid.UUID
	Percent decimal.Decimal
}

func (a SetMarkup) apply(c *Cart) error {
	if a.Percent.LessThan(hundred.Neg()) {
		return fmt.Errorf("%w: markup below -100%%", ErrInvalidItem)
	}
	return c.update(a.ID, func(it *Item) error {
		it.MarkupPercent = a.Percent
		return nil
	})
}

// SetBasePrice changes the cost price of an item
type SetBasePrice struct {
	ID    uuid.UUID
	Price decimal.Decimal
}

func (a SetBasePrice) apply(c *Cart) error {
	if a.Price.IsNegative() {
		return fmt.Errorf("%w: base price is negative", ErrInvalidItem)
	}
	return c.update(a.ID, func(it *Item) error {
		it.BasePrice = a.Price
		return nil
	})
}

// SetRetailPrice sets the retail price directly. On a bundle header this pins the
// price and stops automatic recalculation.
type SetRetailPrice struct {
	ID    uuid.UUID
	Price decimal.Decimal
}

func (a SetRetailPrice) apply(c *Cart) error {
	if a.Price.IsNegative() {
		return fmt.Errorf("%w: retail price is negative", ErrInvalidItem)
	}
	return c.update(a.ID, func(it *Item) error {
		it.RetailPrice = Round2(a.Price)
		if it.IsBundleHeader {
			it.IsManualPrice = true
		}
		return nil
	})
}

// Recalculate returns a bundle header to auto mode
type Recalculate struct {
	ID uuid.UUID
}

func (a Recalculate) apply(c *Cart) error {
	return c.update(a.ID, func(it *Item) error {
		if !it.IsBundleHeader {
			return fmt.Errorf("%w: only bundle headers can be recalculated", ErrInvalidItem)
		}
		it.IsManualPrice = false
		return nil
	})
}

// MoveItem attaches an item to a bundle header, or detaches it to the root when ParentID is nil
type MoveItem struct {
	ID       uuid.UUID
	ParentID *uuid.UUID
}

func (a MoveItem) apply(c *Cart) error {
	it, ok := c.items[a.ID]
	if !ok {
		return ErrItemNotFound
	}
	if a.ParentID != nil {
		if err := c.checkParent(it, *a.ParentID); err != nil {
			return err
		}
		p := *a.ParentID
		it.ParentID = &p
	} else {
		it.ParentID = nil
	}
	c.remove(a.ID)
	c.items[a.ID] = it
	c.order = append(c.order, a.ID)
	return nil
}

func (c *Cart) update(id uuid.UUID, fn func(it *Item) error) error {
	it, ok := c.items[id]
	if !ok {
		return ErrItemNotFound
	}
	if err := fn(&it); err != nil {
		return err
	}
	c.items[id] = it
	return nil
}

func validateAmounts(it Item) error {
	switch {
	case it.Quantity.IsNegative():
		return fmt.Errorf("%w: quantity is negative", ErrInvalidItem)
	case it.BasePrice.IsNegative():
		return fmt.Errorf("%w: base price is negative", ErrInvalidItem)
	case it.RetailPrice.IsNegative():
		return fmt.Errorf("%w: retail price is negative", ErrInvalidItem)
	case it.MarkupPercent.LessThan(hundred.Neg()):
		return fmt.Errorf("%w: markup below -100%%", ErrInvalidItem)
	}
	return nil
}

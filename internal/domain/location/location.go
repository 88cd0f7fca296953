// Package location keeps the device position and the user's delivery
// addresses.
package location

import (
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/xenking/foodcart/internal/domain/order"
)

// Book stores the current position, the chosen delivery address and saved
// addresses.
type Book struct {
	mu       sync.RWMutex
	current  *order.Coordinates
	delivery *order.Address
	saved    []order.Address
}

// NewBook creates an empty Book.
func NewBook() *Book {
	return &Book{}
}

func (b *Book) SetCurrent(c order.Coordinates) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = &c
}

func (b *Book) Current() (order.Coordinates, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.current == nil {
		return order.Coordinates{}, false
	}
	return *b.current, true
}

// SetDeliveryAddress chooses the address used for checkout.
func (b *Book) SetDeliveryAddress(a order.Address) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.delivery = &a
}

// DeliveryAddress returns the address used for checkout.
func (b *Book) DeliveryAddress() (order.Address, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.delivery == nil {
		return order.Address{}, false
	}
	return *b.delivery, true
}

// AddSaved stores an address and returns it with an assigned ID.
func (b *Book) AddSaved(a order.Address) order.Address {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.saved = append(b.saved, a)
	return a
}

// RemoveSaved deletes a saved address by ID.
func (b *Book) RemoveSaved(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.saved = slices.DeleteFunc(b.saved, func(a order.Address) bool { return a.ID == id })
}

func (b *Book) Saved() []order.Address {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.saved)
}

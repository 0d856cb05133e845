package catalog

import (
	"errors"
	"fmt"

	"EStore/internal/filestore"
)

var (
	ErrNotFound          = errors.New("item not found")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// Catalog is the only path through which an item's available quantity
// changes. Everything it does runs under the backing store's lock.
type Catalog[T Entity[T]] struct {
	store *filestore.Store[T]
}

type (
	Products = Catalog[Product]
	Kits     = Catalog[Kit]
)

func New[T Entity[T]](store *filestore.Store[T]) *Catalog[T] {
	return &Catalog[T]{store: store}
}

func (c *Catalog[T]) Name() string { return c.store.Name() }

func (c *Catalog[T]) Ping() error { return c.store.Ping() }

func (c *Catalog[T]) Len() int { return c.store.Len() }

func (c *Catalog[T]) Create(draft T) (T, error) {
	if err := Validate(draft); err != nil {
		var zero T
		return zero, err
	}
	return c.store.Create(draft)
}

func (c *Catalog[T]) Get(id int) (T, bool) {
	return c.store.Get(id)
}

// Update replaces an existing item. It reports false when the id is unknown.
func (c *Catalog[T]) Update(item T) (T, bool, error) {
	if err := Validate(item); err != nil {
		var zero T
		return zero, false, err
	}
	return c.store.Update(item)
}

func (c *Catalog[T]) Delete(id int) (bool, error) {
	return c.store.Delete(id)
}

func (c *Catalog[T]) List() []T {
	return c.store.List()
}

// Find returns items whose name contains name, ignoring case, by ascending id.
func (c *Catalog[T]) Find(name string) []T {
	return c.store.Filter(func(it T) bool {
		return MatchName(it.ItemName(), name)
	})
}

// UpdateQuantity adds delta to the item's available quantity. The result may
// not go below zero.
func (c *Catalog[T]) UpdateQuantity(id, delta int) (T, error) {
	var updated T
	err := c.store.Atomically(func(tx *filestore.Tx[T]) error {
		it, ok := tx.Get(id)
		if !ok {
			return ErrNotFound
		}
		next, err := AddQuantity(it.Available(), delta)
		if err != nil {
			return err
		}
		if next < 0 {
			return fmt.Errorf("%w: available=%d delta=%d", ErrInsufficientStock, it.Available(), delta)
		}
		updated = it.WithQuantity(next)
		tx.Put(updated)
		return nil
	})
	return updated, err
}

// Transact runs fn inside the catalog's critical section. Callers that keep
// state derived from stock levels (carts) update it from within fn.
func (c *Catalog[T]) Transact(fn func(tx *filestore.Tx[T]) error) error {
	return c.store.Atomically(fn)
}

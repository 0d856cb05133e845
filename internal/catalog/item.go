package catalog

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"EStore/internal/filestore"
)

var ErrInvalidItem = errors.New("invalid item")

// Item is anything the store sells: a price and a stock level.
type Item interface {
	EntityID() int
	ItemName() string
	UnitPrice() int64
	Available() int
}

// Entity is an Item value that can be re-stamped with a new id or quantity.
type Entity[T any] interface {
	filestore.Entity[T]
	Item
	WithQuantity(qty int) T
}

type Product struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
	Quantity   int    `json:"quantity"`
}

func (p Product) EntityID() int    { return p.ID }
func (p Product) ItemName() string { return p.Name }
func (p Product) UnitPrice() int64 { return p.PriceCents }
func (p Product) Available() int   { return p.Quantity }

func (p Product) WithID(id int) Product {
	p.ID = id
	return p
}

func (p Product) WithQuantity(qty int) Product {
	p.Quantity = qty
	return p
}

// Kit is a bundle sold as one item. ProductIDs is kept as given and never
// resolved against the product catalog.
type Kit struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
	Quantity   int    `json:"quantity"`
	ProductIDs []int  `json:"product_ids"`
}

func (k Kit) EntityID() int    { return k.ID }
func (k Kit) ItemName() string { return k.Name }
func (k Kit) UnitPrice() int64 { return k.PriceCents }
func (k Kit) Available() int   { return k.Quantity }

func (k Kit) WithID(id int) Kit {
	k.ID = id
	return k
}

func (k Kit) WithQuantity(qty int) Kit {
	k.Quantity = qty
	return k
}

func (k Kit) Clone() Kit {
	k.ProductIDs = slices.Clone(k.ProductIDs)
	return k
}

func Validate(it Item) error {
	switch {
	case strings.TrimSpace(it.ItemName()) == "":
		return fmt.Errorf("%w: name required", ErrInvalidItem)
	case it.UnitPrice() < 0:
		return fmt.Errorf("%w: price must be >= 0", ErrInvalidItem)
	case it.Available() < 0:
		return fmt.Errorf("%w: quantity must be >= 0", ErrInvalidItem)
	}
	return nil
}

// AddQuantity returns available+delta, rejecting a delta whose sum does not
// fit in an int.
func AddQuantity(available, delta int) (int, error) {
	if (delta > 0 && available > math.MaxInt-delta) || (delta < 0 && available < math.MinInt-delta) {
		return 0, fmt.Errorf("%w: quantity delta %d out of range", ErrInvalidItem, delta)
	}
	return available + delta, nil
}

// MatchName reports whether name contains substr, ignoring case. An empty
// substr matches everything.
func MatchName(name, substr string) bool {
	if substr == "" {
		return true
	}
	return strings.Contains(strings.ToLower(name), strings.ToLower(substr))
}

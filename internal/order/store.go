package order

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"EStore/internal/filestore"
)

var ErrInvalidOrder = errors.New("invalid order")

// Line snapshots an item at purchase time. It refers to the item by id only.
type Line struct {
	ItemID         int    `json:"item_id"`
	Name           string `json:"name"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

type Order struct {
	ID         int       `json:"id"`
	Purchaser  int       `json:"purchaser_id"`
	Lines      []Line    `json:"lines"`
	TotalCents int64     `json:"total_cents"`
	CreatedAt  time.Time `json:"created_at"`
}

func (o Order) EntityID() int { return o.ID }

func (o Order) WithID(id int) Order {
	o.ID = id
	return o
}

func (o Order) Clone() Order {
	o.Lines = slices.Clone(o.Lines)
	return o
}

// Ledger records completed purchases in orders.json. It never touches stock.
type Ledger struct {
	store *filestore.Store[Order]
	now   func() time.Time
}

func NewLedger(store *filestore.Store[Order]) *Ledger {
	return &Ledger{store: store, now: func() time.Time { return time.Now().UTC() }}
}

func (l *Ledger) Ping() error { return l.store.Ping() }

// Create records an order for the user with id purchaser.
func (l *Ledger) Create(purchaser int, lines []Line) (Order, error) {
	if purchaser < 0 {
		return Order{}, fmt.Errorf("%w: bad purchaser %d", ErrInvalidOrder, purchaser)
	}
	total, err := totalOf(lines)
	if err != nil {
		return Order{}, err
	}

	return l.store.Create(Order{
		Purchaser:  purchaser,
		Lines:      append([]Line(nil), lines...),
		TotalCents: total,
		CreatedAt:  l.now(),
	})
}

func (l *Ledger) Get(id int) (Order, bool) {
	return l.store.Get(id)
}

func (l *Ledger) Delete(id int) (bool, error) {
	return l.store.Delete(id)
}

func (l *Ledger) List() []Order {
	return l.store.List()
}

func (l *Ledger) ForPurchaser(purchaser int) []Order {
	return l.Find("", purchaser)
}

// Find returns the purchaser's orders with at least one line whose name
// contains name, ignoring case. An empty name matches every order.
func (l *Ledger) Find(name string, purchaser int) []Order {
	name = strings.ToLower(name)
	return l.store.Filter(func(o Order) bool {
		if o.Purchaser != purchaser {
			return false
		}
		if name == "" {
			return true
		}
		for _, ln := range o.Lines {
			if strings.Contains(strings.ToLower(ln.Name), name) {
				return true
			}
		}
		return false
	})
}

func totalOf(lines []Line) (int64, error) {
	if len(lines) == 0 {
		return 0, fmt.Errorf("%w: no lines", ErrInvalidOrder)
	}

	var total int64
	for _, ln := range lines {
		if ln.Quantity <= 0 || ln.UnitPriceCents < 0 {
			return 0, fmt.Errorf("%w: bad line for item %d", ErrInvalidOrder, ln.ItemID)
		}
		if ln.UnitPriceCents > 0 && int64(ln.Quantity) > math.MaxInt64/ln.UnitPriceCents {
			return 0, fmt.Errorf("%w: total overflow", ErrInvalidOrder)
		}
		sub := ln.UnitPriceCents * int64(ln.Quantity)
		if total > math.MaxInt64-sub {
			return 0, fmt.Errorf("%w: total overflow", ErrInvalidOrder)
		}
		total += sub
	}
	return total, nil
}

// Package cart holds per-user reservations against a catalog. Reserving an
// item takes it out of the catalog's available quantity; releasing or
// clearing puts it back; checkout turns the reservations into an order.
package cart

import (
	"errors"
	"maps"
	"slices"
	"sync"

	"go.uber.org/zap"

	"EStore/internal/catalog"
	"EStore/internal/filestore"
	"EStore/internal/order"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrItemNotFound    = errors.New("item not found")
	ErrOutOfStock      = errors.New("item out of stock")
	ErrNotInCart       = errors.New("item not in cart")
	ErrEmptyCart       = errors.New("cart is empty")
)

// Reservation is the outcome of a Reserve or Release call. Granted may be
// less than Requested.
type Reservation struct {
	ItemID    int `json:"item_id"`
	Requested int `json:"requested"`
	Granted   int `json:"granted"`
	InCart    int `json:"in_cart"`
	Available int `json:"available"`
}

type Line[T catalog.Item] struct {
	Item     T   `json:"item"`
	Quantity int `json:"quantity"`
}

func (l Line[T]) SubtotalCents() int64 {
	return l.Item.UnitPrice() * int64(l.Quantity)
}

type Option func(*options)

type options struct {
	log     *zap.Logger
	metrics *Metrics
}

func WithLogger(log *zap.Logger) Option {
	return func(o *options) { o.log = log }
}

func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// Manager keeps carts in memory, keyed by user id. Locks are always taken in
// the order catalog store, cart map, order ledger.
type Manager[T catalog.Entity[T]] struct {
	catalog *catalog.Catalog[T]
	ledger  *order.Ledger
	log     *zap.Logger
	metrics *Metrics

	mu    sync.Mutex
	carts map[int]map[int]int
}

func NewManager[T catalog.Entity[T]](c *catalog.Catalog[T], ledger *order.Ledger, opts ...Option) *Manager[T] {
	o := options{log: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	return &Manager[T]{
		catalog: c,
		ledger:  ledger,
		log:     o.log.With(zap.String("catalog", c.Name())),
		metrics: o.metrics,
		carts:   make(map[int]map[int]int),
	}
}

// Reserve moves up to qty units of the item from the catalog into the user's
// cart. When less than qty is available, everything that is left is granted.
func (m *Manager[T]) Reserve(user, itemID, qty int) (Reservation, error) {
	if qty <= 0 {
		return Reservation{}, ErrInvalidQuantity
	}

	res := Reservation{ItemID: itemID, Requested: qty}
	err := m.catalog.Transact(func(tx *filestore.Tx[T]) error {
		it, ok := tx.Get(itemID)
		if !ok {
			return ErrItemNotFound
		}

		available := it.Available()
		if available <= 0 {
			return ErrOutOfStock
		}

		res.Granted = min(qty, available)
		res.Available = available - res.Granted
		tx.Put(it.WithQuantity(res.Available))

		m.mu.Lock()
		defer m.mu.Unlock()

		lines := m.carts[user]
		if lines == nil {
			lines = make(map[int]int)
			m.carts[user] = lines
		}
		lines[itemID] += res.Granted
		res.InCart = lines[itemID]
		return nil
	})

	m.observe(reserveOutcome(res, err))
	m.log.Debug("reserve",
		zap.Int("user_id", user),
		zap.Int("item_id", itemID),
		zap.Int("requested", qty),
		zap.Int("granted", res.Granted),
		zap.Error(err),
	)
	return res, err
}

// Release returns up to qty units from the cart to the catalog. If the item
// has since been deleted from the catalog, the cart shrinks and nothing is
// returned.
func (m *Manager[T]) Release(user, itemID, qty int) (Reservation, error) {
	if qty <= 0 {
		return Reservation{}, ErrInvalidQuantity
	}

	res := Reservation{ItemID: itemID, Requested: qty}
	err := m.catalog.Transact(func(tx *filestore.Tx[T]) error {
		m.mu.Lock()
		defer m.mu.Unlock()

		lines := m.carts[user]
		have := lines[itemID]
		if have == 0 {
			return ErrNotInCart
		}

		res.Granted = min(qty, have)
		res.InCart = have - res.Granted

		if it, ok := tx.Get(itemID); ok {
			next, err := catalog.AddQuantity(it.Available(), res.Granted)
			if err != nil {
				return err
			}
			res.Available = next
			tx.Put(it.WithQuantity(next))
		}
		m.setLine(user, itemID, res.InCart)
		return nil
	})

	if err == nil || errors.Is(err, filestore.ErrStorageUnavailable) {
		m.observe(outcomeReleased)
	}
	return res, err
}

// Cart lists the user's lines by ascending item id. Lines whose item no
// longer exists in the catalog are left out.
func (m *Manager[T]) Cart(user int) []Line[T] {
	var out []Line[T]
	_ = m.catalog.Transact(func(tx *filestore.Tx[T]) error {
		m.mu.Lock()
		defer m.mu.Unlock()

		out = m.linesLocked(tx, user)
		return nil
	})
	return out
}

func (m *Manager[T]) TotalCost(user int) int64 {
	var total int64
	for _, l := range m.Cart(user) {
		total += l.SubtotalCents()
	}
	return total
}

// Clear returns every reservation of the user to the catalog.
func (m *Manager[T]) Clear(user int) error {
	return m.catalog.Transact(func(tx *filestore.Tx[T]) error {
		m.mu.Lock()
		defer m.mu.Unlock()

		restocked := make([]T, 0, len(m.carts[user]))
		for itemID, qty := range m.carts[user] {
			it, ok := tx.Get(itemID)
			if !ok {
				continue
			}
			next, err := catalog.AddQuantity(it.Available(), qty)
			if err != nil {
				return err
			}
			restocked = append(restocked, it.WithQuantity(next))
		}
		for _, it := range restocked {
			tx.Put(it)
		}
		delete(m.carts, user)
		return nil
	})
}

// Checkout records the cart as an order and empties it. Reserved stock stays
// out of the catalog. If the order was created but could not be written, the
// cart is still dropped and the storage error is returned with the order.
func (m *Manager[T]) Checkout(user int) (order.Order, error) {
	var placed order.Order
	err := m.catalog.Transact(func(tx *filestore.Tx[T]) error {
		m.mu.Lock()
		defer m.mu.Unlock()

		cartLines := m.linesLocked(tx, user)
		if len(cartLines) == 0 {
			delete(m.carts, user)
			return ErrEmptyCart
		}

		lines := make([]order.Line, 0, len(cartLines))
		for _, l := range cartLines {
			lines = append(lines, order.Line{
				ItemID:         l.Item.EntityID(),
				Name:           l.Item.ItemName(),
				Quantity:       l.Quantity,
				UnitPriceCents: l.Item.UnitPrice(),
			})
		}

		o, err := m.ledger.Create(user, lines)
		if err != nil && !errors.Is(err, filestore.ErrStorageUnavailable) {
			return err
		}
		delete(m.carts, user)
		placed = o
		return err
	})
	if err != nil {
		m.log.Warn("checkout", zap.Int("user_id", user), zap.Int("order_id", placed.ID), zap.Error(err))
		return placed, err
	}

	m.log.Info("checkout", zap.Int("user_id", user), zap.Int("order_id", placed.ID), zap.Int64("total_cents", placed.TotalCents))
	return placed, nil
}

func (m *Manager[T]) linesLocked(tx *filestore.Tx[T], user int) []Line[T] {
	lines := m.carts[user]
	out := make([]Line[T], 0, len(lines))
	for _, itemID := range slices.Sorted(maps.Keys(lines)) {
		it, ok := tx.Get(itemID)
		if !ok {
			continue
		}
		out = append(out, Line[T]{Item: it, Quantity: lines[itemID]})
	}
	return out
}

func (m *Manager[T]) setLine(user, itemID, qty int) {
	lines := m.carts[user]
	if qty > 0 {
		lines[itemID] = qty
		return
	}
	delete(lines, itemID)
	if len(lines) == 0 {
		delete(m.carts, user)
	}
}

func (m *Manager[T]) observe(outcome string) {
	if m.metrics != nil {
		m.metrics.Reservations.WithLabelValues(outcome).Inc()
	}
}

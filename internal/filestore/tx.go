package filestore

// Tx is the view of a store handed to Atomically. It must not be retained
// after the callback returns.
type Tx[T Entity[T]] struct {
	s     *Store[T]
	dirty bool
}

func (tx *Tx[T]) Get(id int) (T, bool) {
	e, ok := tx.s.entities[id]
	return clone(e), ok
}

// Create ignores any id carried by draft and assigns the next one.
func (tx *Tx[T]) Create(draft T) T {
	id := tx.s.nextID
	tx.s.nextID++

	e := draft.WithID(id)
	tx.s.entities[id] = clone(e)
	tx.dirty = true
	return e
}

// Put replaces an existing entity and reports whether its id was present.
func (tx *Tx[T]) Put(e T) bool {
	id := e.EntityID()
	if _, ok := tx.s.entities[id]; !ok {
		return false
	}
	tx.s.entities[id] = clone(e)
	tx.dirty = true
	return true
}

func (tx *Tx[T]) Delete(id int) bool {
	if _, ok := tx.s.entities[id]; !ok {
		return false
	}
	delete(tx.s.entities, id)
	tx.dirty = true
	return true
}

func (tx *Tx[T]) Filter(keep func(T) bool) []T {
	return tx.s.snapshot(keep)
}
